package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/refconnect/refterm/app"
	"github.com/refconnect/refterm/domain"
	"github.com/refconnect/refterm/ui/common"
)

var (
	requestTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(common.COLOR_DIM))
	nameStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color(common.COLOR_USERNAME)).Bold(true)
)

type Model struct {
	app      *app.App
	Requests []domain.FollowRequest
	Selected int
	Offset   int
	Width    int
	Height   int
	Count    int
	Status   string
	Error    string
	loading  bool
	seq      int
}

type requestsLoadedMsg struct {
	seq      int
	requests []domain.FollowRequest
	err      error
}

type answeredMsg struct {
	accept   bool
	username string
	err      error
}

func InitialModel(a *app.App, width, height int) Model {
	return Model{
		app:      a,
		Requests: []domain.FollowRequest{},
		Width:    width,
		Height:   height,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case common.ActivateViewMsg:
		return m.reload()

	case requestsLoadedMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.loading = false
		m.Requests = msg.requests
		m.Count = len(msg.requests)
		if msg.err != nil {
			m.Error = "Could not refresh follow requests"
		}
		m.clamp()
		return m, nil

	case answeredMsg:
		m.Requests = m.app.Graph.Pending()
		m.Count = len(m.Requests)
		m.clamp()
		if msg.err != nil {
			if errors.Is(msg.err, domain.ErrInFlight) {
				m.Status = "ℹ Still working on that request"
			} else {
				m.Error = fmt.Sprintf("Failed to answer @%s: %v", msg.username, msg.err)
			}
			return m, common.ClearStatusAfter(3 * time.Second)
		}
		if msg.accept {
			m.Status = fmt.Sprintf("✓ @%s can now follow you", msg.username)
		} else {
			m.Status = fmt.Sprintf("Declined @%s", msg.username)
		}
		return m, common.ClearStatusAfter(3 * time.Second)

	case common.ClearStatusMsg:
		m.Status = ""
		m.Error = ""
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			m.Selected, m.Offset = common.MoveSelection(m.Selected, m.Offset, -1, len(m.Requests))
		case "down", "j":
			m.Selected, m.Offset = common.MoveSelection(m.Selected, m.Offset, 1, len(m.Requests))
		case "r":
			return m.reload()
		case "a":
			if req, ok := m.selected(); ok {
				return m, answer(m.app, req, true)
			}
		case "d":
			if req, ok := m.selected(); ok {
				return m, answer(m.app, req, false)
			}
		case "enter", "v":
			if req, ok := m.selected(); ok {
				id := req.FollowerId
				return m, func() tea.Msg { return common.ViewProfileMsg{UserId: id} }
			}
		}
	}
	return m, nil
}

func (m Model) reload() (Model, tea.Cmd) {
	m.seq++
	m.loading = true
	return m, loadRequests(m.app, m.seq)
}

func (m *Model) clamp() {
	if m.Selected >= len(m.Requests) {
		m.Selected = len(m.Requests) - 1
	}
	if m.Selected < 0 {
		m.Selected = 0
	}
	if m.Offset > m.Selected {
		m.Offset = m.Selected
	}
}

func (m Model) selected() (domain.FollowRequest, bool) {
	if m.Selected < 0 || m.Selected >= len(m.Requests) {
		return domain.FollowRequest{}, false
	}
	return m.Requests[m.Selected], true
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("follow requests (%d)", len(m.Requests))))
	s.WriteString("\n\n")

	if m.loading && len(m.Requests) == 0 {
		s.WriteString(common.ListEmptyStyle.Render("Loading requests..."))
		return s.String()
	}

	if len(m.Requests) == 0 {
		s.WriteString(common.ListEmptyStyle.Render("No pending requests."))
		s.WriteString("\n")
	}

	start, end := common.Page(m.Offset, len(m.Requests))
	for i := start; i < end; i++ {
		req := m.Requests[i]
		u := m.app.Display.Requester(req)
		line := nameStyle.Render(u.Name) + " " +
			requestTextStyle.Render(fmt.Sprintf("@%s wants to follow you · %s", u.UserName, common.FormatTimeAgo(req.RequestedAt)))
		if i == m.Selected {
			s.WriteString(common.ListSelectedPrefix + line)
		} else {
			s.WriteString(common.ListUnselectedPrefix + line)
		}
		s.WriteString("\n")
	}

	if len(m.Requests) > common.DefaultItemsPerPage {
		s.WriteString("\n")
		s.WriteString(common.ListBadgeStyle.Render(fmt.Sprintf("showing %d-%d of %d", start+1, end, len(m.Requests))))
	}

	if m.Status != "" {
		s.WriteString("\n")
		s.WriteString(common.ListStatusStyle.Render(m.Status))
	}
	if m.Error != "" {
		s.WriteString("\n")
		s.WriteString(common.ListErrorStyle.Render(m.Error))
	}

	return s.String()
}

func loadRequests(a *app.App, seq int) tea.Cmd {
	return func() tea.Msg {
		list, err := a.Graph.GetPendingRequests(context.Background())
		return requestsLoadedMsg{seq: seq, requests: list, err: err}
	}
}

func answer(a *app.App, req domain.FollowRequest, accept bool) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		var err error
		if accept {
			err = a.Graph.AcceptFollowRequest(ctx, req.FollowerId, req.Id)
		} else {
			err = a.Graph.RejectFollowRequest(ctx, req.FollowerId, req.Id)
		}
		return answeredMsg{accept: accept, username: a.Display.Requester(req).UserName, err: err}
	}
}
