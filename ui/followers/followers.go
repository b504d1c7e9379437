package followers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/refconnect/refterm/app"
	"github.com/refconnect/refterm/domain"
	"github.com/refconnect/refterm/graph"
	"github.com/refconnect/refterm/ui/common"
)

// Mode selects which side of the viewer's edges the list shows.
type Mode int

const (
	Followers Mode = iota
	Following
)

func (m Mode) String() string {
	if m == Following {
		return "following"
	}
	return "followers"
}

type Model struct {
	app      *app.App
	Mode     Mode
	Edges    []domain.FollowEdge
	Selected int
	Offset   int
	Width    int
	Height   int
	Status   string
	Error    string
	loading  bool
	seq      int
	confirm  string
}

type edgesLoadedMsg struct {
	seq   int
	edges []domain.FollowEdge
	err   error
}

type followResultMsg struct {
	username string
	status   domain.FollowStatus
	err      error
}

type unfollowResultMsg struct {
	targetId string
	username string
	err      error
}

func InitialModel(a *app.App, mode Mode, width, height int) Model {
	return Model{
		app:    a,
		Mode:   mode,
		Edges:  []domain.FollowEdge{},
		Width:  width,
		Height: height,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Confirming reports whether an unfollow prompt is open.
func (m Model) Confirming() bool {
	return m.confirm != ""
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case common.ActivateViewMsg:
		m.confirm = ""
		return m.reload()

	case edgesLoadedMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.Error = fmt.Sprintf("Could not load %s", m.Mode)
			return m, nil
		}
		m.Edges = msg.edges
		m.Selected = 0
		m.Offset = 0
		return m, nil

	case followResultMsg:
		switch {
		case errors.Is(msg.err, domain.ErrInFlight):
			m.Status = fmt.Sprintf("ℹ Still working on @%s", msg.username)
		case msg.err != nil:
			m.Error = fmt.Sprintf("Failed to follow @%s: %v", msg.username, msg.err)
		case msg.status == domain.StatusRequested:
			m.Status = fmt.Sprintf("✓ Follow request sent to @%s", msg.username)
		default:
			m.Status = fmt.Sprintf("✓ Following @%s", msg.username)
		}
		return m, common.ClearStatusAfter(3 * time.Second)

	case unfollowResultMsg:
		if msg.err != nil {
			m.Error = fmt.Sprintf("Failed to unfollow @%s: %v", msg.username, msg.err)
			return m, common.ClearStatusAfter(3 * time.Second)
		}
		kept := m.Edges[:0:0]
		for _, e := range m.Edges {
			if e.FollowingId != msg.targetId {
				kept = append(kept, e)
			}
		}
		m.Edges = kept
		if m.Selected >= len(m.Edges) {
			m.Selected = max(len(m.Edges)-1, 0)
		}
		m.Offset = min(m.Offset, m.Selected)
		m.Status = fmt.Sprintf("Unfollowed @%s", msg.username)
		return m, common.ClearStatusAfter(3 * time.Second)

	case common.ClearStatusMsg:
		m.Status = ""
		m.Error = ""
		return m, nil

	case tea.KeyMsg:
		if m.confirm != "" {
			targetId := m.confirm
			switch msg.String() {
			case "y", "Y":
				m.confirm = ""
				e, _ := m.selected()
				return m, unfollow(m.app, targetId, m.app.Display.Followed(e).UserName)
			case "n", "N", "esc":
				m.confirm = ""
			}
			return m, nil
		}

		switch msg.String() {
		case "up", "k":
			m.Selected, m.Offset = common.MoveSelection(m.Selected, m.Offset, -1, len(m.Edges))
		case "down", "j":
			m.Selected, m.Offset = common.MoveSelection(m.Selected, m.Offset, 1, len(m.Edges))
		case "r":
			return m.reload()
		case "enter", "v":
			if e, ok := m.selected(); ok {
				id := m.other(e)
				return m, func() tea.Msg { return common.ViewProfileMsg{UserId: id} }
			}
		case "f":
			if e, ok := m.selected(); ok && m.Mode == Followers {
				return m, followBack(m.app, e)
			}
		case "u":
			if e, ok := m.selected(); ok && m.Mode == Following {
				m.confirm = e.FollowingId
			}
		}
	}
	return m, nil
}

func (m Model) reload() (Model, tea.Cmd) {
	m.seq++
	m.loading = true
	return m, loadEdges(m.app, m.Mode, m.seq)
}

func (m Model) selected() (domain.FollowEdge, bool) {
	if m.Selected < 0 || m.Selected >= len(m.Edges) {
		return domain.FollowEdge{}, false
	}
	return m.Edges[m.Selected], true
}

// other returns the user on the far side of the edge from the viewer.
func (m Model) other(e domain.FollowEdge) string {
	if m.Mode == Following {
		return e.FollowingId
	}
	return e.FollowerId
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("%s (%d)", m.Mode, len(m.Edges))))
	s.WriteString("\n\n")

	if m.loading && len(m.Edges) == 0 {
		s.WriteString(common.ListEmptyStyle.Render("Loading..."))
		return s.String()
	}
	if len(m.Edges) == 0 {
		if m.Mode == Following {
			s.WriteString(common.ListEmptyStyle.Render("You are not following anyone yet."))
		} else {
			s.WriteString(common.ListEmptyStyle.Render("No followers yet."))
		}
		s.WriteString("\n")
	}

	start, end := common.Page(m.Offset, len(m.Edges))
	for i := start; i < end; i++ {
		e := m.Edges[i]
		u := m.app.Display.Follower(e)
		if m.Mode == Following {
			u = m.app.Display.Followed(e)
		}
		line := common.UsernameStyle.Render(u.Name) + " " +
			common.TimeStyle.Render(fmt.Sprintf("@%s · since %s", u.UserName, common.FormatTimeAgo(e.FollowedAt)))
		if i == m.Selected {
			s.WriteString(common.ListSelectedPrefix + line)
		} else {
			s.WriteString(common.ListUnselectedPrefix + line)
		}
		s.WriteString("\n")
	}

	if len(m.Edges) > common.DefaultItemsPerPage {
		s.WriteString("\n")
		s.WriteString(common.ListBadgeStyle.Render(fmt.Sprintf("showing %d-%d of %d", start+1, end, len(m.Edges))))
	}

	if m.confirm != "" {
		e, _ := m.selected()
		s.WriteString("\n")
		s.WriteString(common.ConfirmStyle.Render(fmt.Sprintf("Unfollow @%s? y/n", m.app.Display.Followed(e).UserName)))
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

func loadEdges(a *app.App, mode Mode, seq int) tea.Cmd {
	return func() tea.Msg {
		actor := a.Session.Actor()
		if actor == nil {
			return edgesLoadedMsg{seq: seq, err: domain.ErrNotAuthenticated}
		}
		var (
			edges []domain.FollowEdge
			err   error
		)
		if mode == Following {
			edges, err = a.Graph.Following(context.Background(), actor.Id)
		} else {
			edges, err = a.Graph.Followers(context.Background(), actor.Id)
		}
		return edgesLoadedMsg{seq: seq, edges: edges, err: err}
	}
}

// followBack connects to a follower, using the visibility carried on the
// edge when the graph has not seen the user's profile yet.
func followBack(a *app.App, e domain.FollowEdge) tea.Cmd {
	return func() tea.Msg {
		if e.Follower != nil && e.Follower.IsProfilePublic != nil {
			a.Graph.Observe(&domain.Profile{UserRef: *e.Follower})
		}
		username := a.Display.Follower(e).UserName
		err := a.Graph.Connect(context.Background(), e.FollowerId)
		return followResultMsg{username: username, status: a.Graph.Status(e.FollowerId), err: err}
	}
}

func unfollow(a *app.App, targetId, username string) tea.Cmd {
	return func() tea.Msg {
		err := a.Graph.Unfollow(context.Background(), targetId, graph.Confirmed)
		return unfollowResultMsg{targetId: targetId, username: username, err: err}
	}
}
