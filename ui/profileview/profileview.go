package profileview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/refconnect/refterm/app"
	"github.com/refconnect/refterm/display"
	"github.com/refconnect/refterm/domain"
	"github.com/refconnect/refterm/graph"
	"github.com/refconnect/refterm/ui/common"
	"github.com/refconnect/refterm/util"
)

var (
	displayNameStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(common.COLOR_USERNAME)).
				Bold(true)

	handleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_SECONDARY))

	bioStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_WHITE))

	metadataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_DIM))

	followBadgeStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(common.COLOR_SUCCESS))

	requestedBadgeStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(common.COLOR_LIKE))

	notFollowBadgeStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(common.COLOR_DIM))

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_DIM))

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_DIM)).
			Italic(true)
)

const maxProfilePosts = 10

type Model struct {
	app      *app.App
	UserId   string
	Profile  *domain.Profile
	Posts    []display.Post
	Status   domain.FollowStatus
	Selected int
	Offset   int
	Width    int
	Height   int
	Info     string
	Error    string
	loading  bool
	busy     bool
	seq      int
	// action waiting for a y/n answer: "unfollow" or "cancel request"
	confirm string
}

func InitialModel(a *app.App, width, height int) Model {
	return Model{
		app:    a,
		Width:  width,
		Height: height,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

type profileLoadedMsg struct {
	seq     int
	profile *domain.Profile
	status  domain.FollowStatus
	err     error
}

type followChangedMsg struct {
	action string
	err    error
}

type likeResultMsg struct {
	err error
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case common.ViewProfileMsg:
		m.UserId = msg.UserId
		m.Profile = nil
		m.Posts = nil
		m.Status = domain.StatusUnknown
		m.Selected = 0
		m.Offset = 0
		m.Info = ""
		m.Error = ""
		m.confirm = ""
		m.loading = true
		m.seq++
		return m, loadProfile(m.app, m.UserId, m.seq)

	case profileLoadedMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.Error = msg.err.Error()
			return m, nil
		}
		m.Profile = msg.profile
		m.Status = msg.status
		m.Posts = m.app.Display.Posts(msg.profile.Posts)
		if len(m.Posts) > maxProfilePosts {
			m.Posts = m.Posts[:maxProfilePosts]
		}
		return m, nil

	case followChangedMsg:
		m.busy = false
		m.Status = m.app.Graph.Status(m.UserId)
		if msg.err != nil {
			switch {
			case errors.Is(msg.err, domain.ErrInFlight):
				m.Info = "ℹ Still working on the last request"
			case errors.Is(msg.err, domain.ErrSelfFollow):
				m.Info = "ℹ Self-follow not allowed"
			default:
				m.Error = fmt.Sprintf("Failed to %s: %v", msg.action, msg.err)
			}
			return m, common.ClearStatusAfter(3 * time.Second)
		}
		name := "@" + display.Handle(m.profileRef())
		switch m.Status {
		case domain.StatusFollowing:
			m.Info = "✓ Following " + name
		case domain.StatusRequested:
			m.Info = "✓ Follow request sent to " + name
		default:
			if msg.action == "cancel request" {
				m.Info = "Request to " + name + " withdrawn"
			} else {
				m.Info = "Unfollowed " + name
			}
		}
		return m, common.ClearStatusAfter(2 * time.Second)

	case likeResultMsg:
		if m.Profile != nil {
			m.Posts = m.app.Display.Posts(m.Profile.Posts)
			if len(m.Posts) > maxProfilePosts {
				m.Posts = m.Posts[:maxProfilePosts]
			}
		}
		if msg.err != nil && !errors.Is(msg.err, domain.ErrInFlight) {
			m.Error = fmt.Sprintf("Failed to update like: %v", msg.err)
			return m, common.ClearStatusAfter(3 * time.Second)
		}
		return m, nil

	case common.ClearStatusMsg:
		m.Info = ""
		m.Error = ""
		return m, nil

	case tea.KeyMsg:
		if m.confirm != "" {
			return m.updateConfirm(msg)
		}
		switch msg.String() {
		case "up", "k":
			m.Selected, m.Offset = common.MoveSelection(m.Selected, m.Offset, -1, len(m.Posts))
		case "down", "j":
			m.Selected, m.Offset = common.MoveSelection(m.Selected, m.Offset, 1, len(m.Posts))
		case "f":
			return m.follow()
		case "l":
			if m.Selected < len(m.Posts) {
				return m, toggleLike(m.app, m.Posts[m.Selected].Id)
			}
		case "r":
			if m.UserId != "" {
				return m.Update(common.ViewProfileMsg{UserId: m.UserId})
			}
		case "esc":
			return m, func() tea.Msg { return common.FeedView }
		}
	}
	return m, nil
}

// follow starts the action that fits the current status. Removing a
// relationship asks first.
func (m Model) follow() (Model, tea.Cmd) {
	if m.Profile == nil || m.busy {
		return m, nil
	}
	switch m.Status {
	case domain.StatusFollowing:
		m.confirm = "unfollow"
	case domain.StatusRequested:
		m.confirm = "cancel request"
	default:
		m.busy = true
		return m, connect(m.app, m.UserId)
	}
	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		action := m.confirm
		m.confirm = ""
		m.busy = true
		if action == "unfollow" {
			return m, unfollow(m.app, m.UserId)
		}
		return m, cancelRequest(m.app, m.UserId)
	case "n", "N", "esc":
		m.confirm = ""
	}
	return m, nil
}

// Confirming reports whether the view waits for a y/n answer.
func (m Model) Confirming() bool {
	return m.confirm != ""
}

func (m Model) profileRef() *domain.UserRef {
	if m.Profile == nil {
		return nil
	}
	return &m.Profile.UserRef
}

func (m Model) followBadge() string {
	switch m.Status {
	case domain.StatusFollowing:
		return followBadgeStyle.Render("following")
	case domain.StatusRequested:
		return requestedBadgeStyle.Render("requested")
	case domain.StatusNotFollowing:
		return notFollowBadgeStyle.Render("not following")
	default:
		return notFollowBadgeStyle.Render("status unknown")
	}
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render("profile"))
	s.WriteString("\n")

	if m.loading {
		s.WriteString(emptyStyle.Render("Loading profile..."))
		return s.String()
	}

	if m.Error != "" && m.Profile == nil {
		s.WriteString(emptyStyle.Render("Error: " + m.Error))
		return s.String()
	}

	if m.Profile == nil {
		s.WriteString(emptyStyle.Render("No profile to display"))
		return s.String()
	}

	leftPanelWidth := common.CalculateLeftPanelWidth(m.Width)
	rightPanelWidth := common.CalculateRightPanelWidth(m.Width, leftPanelWidth)
	contentWidth := common.CalculateContentWidth(rightPanelWidth, 2)

	ref := m.profileRef()
	s.WriteString(displayNameStyle.Render(display.DisplayName(ref)))
	s.WriteString("\n")
	s.WriteString(handleStyle.Render("@" + display.Handle(ref)))
	s.WriteString("\n")

	if m.Profile.Description != "" {
		s.WriteString("\n")
		s.WriteString(bioStyle.Render(m.Profile.Description))
		s.WriteString("\n")
	}

	meta := "joined " + common.FormatTimeAgo(m.Profile.CreatedAt)
	if m.Profile.Extended {
		meta += fmt.Sprintf(" · %d followers · %d following", m.Profile.FollowersCount, m.Profile.FollowingCount)
	}
	if m.Profile.Visibility() == domain.VisibilityPrivate {
		meta += " · private"
	}
	s.WriteString("\n")
	s.WriteString(metadataStyle.Render(meta+" · ") + m.followBadge())
	s.WriteString("\n\n")

	s.WriteString(separatorStyle.Render(strings.Repeat("─", contentWidth)))
	s.WriteString("\n")

	if !m.Profile.Extended {
		s.WriteString(emptyStyle.Render("This profile is private. Follow to see posts."))
		s.WriteString("\n")
	} else {
		s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("recent posts (%d)", len(m.Posts))))
		s.WriteString("\n")
		if len(m.Posts) == 0 {
			s.WriteString(emptyStyle.Render("No posts yet."))
			s.WriteString("\n")
		}
		start, end := common.Page(m.Offset, len(m.Posts))
		for i := start; i < end; i++ {
			p := m.Posts[i]
			prefix := common.ListUnselectedPrefix
			if i == m.Selected {
				prefix = common.ListSelectedPrefix
			}
			likes := m.app.Likes.State(p.Id)
			heart := "♡"
			if likes.Liked {
				heart = common.LikedStyle.Render("♥")
			}
			s.WriteString(prefix + common.TimeStyle.Render(common.FormatTimeAgo(p.Post.CreatedAt)) +
				fmt.Sprintf(" · %s %d\n", heart, likes.Count))
			s.WriteString("  " + util.TruncateVisibleLength(util.NormalizeInput(p.Text), contentWidth))
			s.WriteString("\n\n")
		}
	}

	if m.confirm != "" {
		s.WriteString(common.ConfirmStyle.Render(fmt.Sprintf("%s @%s? y/n", strings.ToUpper(m.confirm[:1])+m.confirm[1:], display.Handle(ref))))
		s.WriteString("\n")
	}
	if m.Info != "" {
		s.WriteString(common.ListStatusStyle.Render(m.Info))
		s.WriteString("\n")
	}
	if m.Error != "" {
		s.WriteString(common.ListErrorStyle.Render(m.Error))
		s.WriteString("\n")
	}

	return s.String()
}

// loadProfile fetches the profile and the viewer's follow status toward it.
func loadProfile(a *app.App, userId string, seq int) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		p, err := a.Profile(ctx, userId)
		if err != nil {
			return profileLoadedMsg{seq: seq, err: err}
		}
		status, err := a.Graph.CheckFollowStatus(ctx, userId)
		if err != nil && !errors.Is(err, domain.ErrSelfFollow) {
			status = a.Graph.Status(userId)
		}
		return profileLoadedMsg{seq: seq, profile: p, status: status}
	}
}

func connect(a *app.App, userId string) tea.Cmd {
	return func() tea.Msg {
		return followChangedMsg{action: "follow", err: a.Graph.Connect(context.Background(), userId)}
	}
}

func unfollow(a *app.App, userId string) tea.Cmd {
	return func() tea.Msg {
		err := a.Graph.Unfollow(context.Background(), userId, graph.Confirmed)
		return followChangedMsg{action: "unfollow", err: err}
	}
}

func cancelRequest(a *app.App, userId string) tea.Cmd {
	return func() tea.Msg {
		err := a.Graph.CancelFollowRequest(context.Background(), userId, graph.Confirmed)
		return followChangedMsg{action: "cancel request", err: err}
	}
}

func toggleLike(a *app.App, postId string) tea.Cmd {
	return func() tea.Msg {
		_, err := a.Likes.Toggle(context.Background(), postId)
		return likeResultMsg{err: err}
	}
}
