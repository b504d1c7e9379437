package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/refconnect/refterm/app"
	"github.com/refconnect/refterm/ui/chats"
	"github.com/refconnect/refterm/ui/common"
	"github.com/refconnect/refterm/ui/feed"
	"github.com/refconnect/refterm/ui/followers"
	"github.com/refconnect/refterm/ui/notifications"
	"github.com/refconnect/refterm/ui/profileview"
	"github.com/refconnect/refterm/ui/writepost"
)

var (
	modelStyle = lipgloss.NewStyle().
			Align(lipgloss.Top, lipgloss.Top).
			BorderStyle(lipgloss.HiddenBorder()).MarginLeft(1)
	focusedModelStyle = lipgloss.NewStyle().
				Align(lipgloss.Top, lipgloss.Top).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color(common.COLOR_ACCENT)).MarginLeft(1)
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_WHITE)).
			Background(lipgloss.Color(common.COLOR_ACCENT)).
			Padding(0, 1)
)

// tabOrder is the cycle tab and shift+tab walk through. The profile view is
// reached from the lists and left with esc.
var tabOrder = []common.SessionState{
	common.WritePostView,
	common.FeedView,
	common.NotificationsView,
	common.FollowersView,
	common.FollowingView,
	common.ChatsView,
}

type MainModel struct {
	width              int
	height             int
	app                *app.App
	state              common.SessionState
	writeModel         writepost.Model
	feedModel          feed.Model
	profileViewModel   profileview.Model
	notificationsModel notifications.Model
	followersModel     followers.Model
	followingModel     followers.Model
	chatsModel         chats.Model
}

func NewModel(a *app.App, width, height int) MainModel {
	width = common.DefaultWindowWidth(width)
	height = common.DefaultWindowHeight(height)

	return MainModel{
		width:              width,
		height:             height,
		app:                a,
		state:              common.WritePostView,
		writeModel:         writepost.InitialModel(a, common.TextInputDefaultWidth),
		feedModel:          feed.InitialModel(a, width, height),
		profileViewModel:   profileview.InitialModel(a, width, height),
		notificationsModel: notifications.InitialModel(a, width, height),
		followersModel:     followers.InitialModel(a, followers.Followers, width, height),
		followingModel:     followers.InitialModel(a, followers.Following, width, height),
		chatsModel:         chats.InitialModel(a, width, height),
	}
}

func (m MainModel) Init() tea.Cmd {
	return tea.Batch(
		m.writeModel.Init(),
		// Loads the feed shown next to the editor and the request badge.
		func() tea.Msg { return common.ActivateViewMsg{} },
	)
}

// State returns the focused view.
func (m MainModel) State() common.SessionState {
	return m.state
}

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.feedModel.Width, m.feedModel.Height = msg.Width, msg.Height
		m.profileViewModel.Width, m.profileViewModel.Height = msg.Width, msg.Height
		m.notificationsModel.Width, m.notificationsModel.Height = msg.Width, msg.Height
		m.followersModel.Width, m.followersModel.Height = msg.Width, msg.Height
		m.followingModel.Width, m.followingModel.Height = msg.Width, msg.Height
		m.chatsModel.Width, m.chatsModel.Height = msg.Width, msg.Height
		return m, nil

	case common.ActivateViewMsg:
		m.feedModel, cmd = m.feedModel.Update(msg)
		cmds = append(cmds, cmd)
		m.notificationsModel, cmd = m.notificationsModel.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case common.SessionState:
		if msg == common.UpdateFeed {
			m.feedModel, cmd = m.feedModel.Update(msg)
			return m, cmd
		}
		return m.switchTo(msg)

	case common.ViewProfileMsg:
		m.writeModel.Blur()
		m.profileViewModel, cmd = m.profileViewModel.Update(msg)
		m.state = common.ProfileView
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "tab":
			if !m.confirming() && m.state != common.ProfileView {
				return m.switchTo(m.cycle(1))
			}
			return m, nil
		case "shift+tab":
			if !m.confirming() && m.state != common.ProfileView {
				return m.switchTo(m.cycle(-1))
			}
			return m, nil
		case "esc":
			if m.state == common.WritePostView {
				return m.switchTo(common.FeedView)
			}
		}
		return m.updateFocused(msg)
	}

	// Results and ticks go to every view. Views ignore messages that are
	// not theirs and drop stale loads by sequence number.
	m.writeModel, cmd = m.writeModel.Update(msg)
	cmds = append(cmds, cmd)
	m.feedModel, cmd = m.feedModel.Update(msg)
	cmds = append(cmds, cmd)
	m.profileViewModel, cmd = m.profileViewModel.Update(msg)
	cmds = append(cmds, cmd)
	m.notificationsModel, cmd = m.notificationsModel.Update(msg)
	cmds = append(cmds, cmd)
	m.followersModel, cmd = m.followersModel.Update(msg)
	cmds = append(cmds, cmd)
	m.followingModel, cmd = m.followingModel.Update(msg)
	cmds = append(cmds, cmd)
	m.chatsModel, cmd = m.chatsModel.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m MainModel) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.state {
	case common.WritePostView:
		m.writeModel, cmd = m.writeModel.Update(msg)
	case common.FeedView:
		m.feedModel, cmd = m.feedModel.Update(msg)
	case common.ProfileView:
		m.profileViewModel, cmd = m.profileViewModel.Update(msg)
	case common.NotificationsView:
		m.notificationsModel, cmd = m.notificationsModel.Update(msg)
	case common.FollowersView:
		m.followersModel, cmd = m.followersModel.Update(msg)
	case common.FollowingView:
		m.followingModel, cmd = m.followingModel.Update(msg)
	case common.ChatsView:
		m.chatsModel, cmd = m.chatsModel.Update(msg)
	}
	return m, cmd
}

// switchTo focuses state and tells the newly visible view to reload.
func (m MainModel) switchTo(state common.SessionState) (tea.Model, tea.Cmd) {
	if state == m.state {
		return m, nil
	}
	m.state = state

	var cmd tea.Cmd
	activate := common.ActivateViewMsg{}
	switch state {
	case common.WritePostView:
		cmd = m.writeModel.Focus()
		return m, cmd
	case common.FeedView:
		m.feedModel, cmd = m.feedModel.Update(activate)
	case common.NotificationsView:
		m.notificationsModel, cmd = m.notificationsModel.Update(activate)
	case common.FollowersView:
		m.followersModel, cmd = m.followersModel.Update(activate)
	case common.FollowingView:
		m.followingModel, cmd = m.followingModel.Update(activate)
	case common.ChatsView:
		m.chatsModel, cmd = m.chatsModel.Update(activate)
	}
	m.writeModel.Blur()
	return m, cmd
}

func (m MainModel) cycle(delta int) common.SessionState {
	for i, s := range tabOrder {
		if s == m.state {
			return tabOrder[(i+delta+len(tabOrder))%len(tabOrder)]
		}
	}
	return common.FeedView
}

// confirming reports whether the focused view holds a y/n prompt or an
// open composer.
func (m MainModel) confirming() bool {
	switch m.state {
	case common.FeedView:
		return m.feedModel.Confirming()
	case common.ProfileView:
		return m.profileViewModel.Confirming()
	case common.FollowingView:
		return m.followingModel.Confirming()
	case common.ChatsView:
		return m.chatsModel.Confirming() || m.chatsModel.Typing
	}
	return false
}

func (m MainModel) View() string {
	if m.width < common.MinWindowWidth || m.height < common.MinWindowHeight {
		message := fmt.Sprintf(
			"Terminal too small!\n\nMinimum required: %dx%d\nCurrent size: %dx%d\n\nPlease resize your terminal.",
			common.MinWindowWidth, common.MinWindowHeight, m.width, m.height,
		)
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(lipgloss.Color(common.COLOR_CRITICAL)).
			Bold(true).
			Render(message)
	}

	var s strings.Builder
	s.WriteString(m.header())
	s.WriteString("\n")

	availableHeight := common.CalculateAvailableHeight(m.height)
	leftPanelWidth := common.CalculateLeftPanelWidth(m.width)
	rightPanelWidth := common.CalculateRightPanelWidth(m.width, leftPanelWidth)

	left := lipgloss.NewStyle().
		MaxHeight(availableHeight).
		Height(availableHeight).
		Width(leftPanelWidth).
		MaxWidth(leftPanelWidth).
		Margin(1).
		Render(m.writeModel.View())
	right := lipgloss.NewStyle().
		MaxHeight(availableHeight).
		Height(availableHeight).
		Width(rightPanelWidth).
		MaxWidth(rightPanelWidth).
		Margin(1).
		Render(m.rightView())

	if m.state == common.WritePostView {
		s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			focusedModelStyle.Render(left),
			modelStyle.Render(right)))
	} else {
		s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			modelStyle.Render(left),
			focusedModelStyle.Render(right)))
	}

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(common.COLOR_HELP)).
		Width(m.width).
		Align(lipgloss.Center)

	currentContentHeight := common.HeaderHeight + availableHeight + common.PanelMarginVertical
	if remaining := m.height - currentContentHeight - common.FooterHeight; remaining > 0 {
		s.WriteString(strings.Repeat("\n", remaining))
	}
	s.WriteString(helpStyle.Render(m.help()))
	return s.String()
}

func (m MainModel) header() string {
	name := "signed out"
	if actor := m.app.Session.Actor(); actor != nil {
		name = "@" + actor.Id
	}
	text := fmt.Sprintf("refterm · %s", name)
	if n := len(m.app.Graph.Pending()); n > 0 {
		text += fmt.Sprintf(" · %d follow requests", n)
	}
	return headerStyle.Width(m.width).Render(text)
}

func (m MainModel) rightView() string {
	switch m.state {
	case common.ProfileView:
		return m.profileViewModel.View()
	case common.NotificationsView:
		return m.notificationsModel.View()
	case common.FollowersView:
		return m.followersModel.View()
	case common.FollowingView:
		return m.followingModel.View()
	case common.ChatsView:
		return m.chatsModel.View()
	default:
		return m.feedModel.View()
	}
}

func (m MainModel) currentFocusedModel() string {
	switch m.state {
	case common.WritePostView:
		return "write"
	case common.FeedView:
		return "feed"
	case common.ProfileView:
		return "profile"
	case common.NotificationsView:
		return "requests"
	case common.FollowersView:
		return "followers"
	case common.FollowingView:
		return "following"
	case common.ChatsView:
		return "chats"
	default:
		return "feed"
	}
}

func (m MainModel) help() string {
	var viewCommands string
	switch m.state {
	case common.WritePostView:
		viewCommands = "ctrl+s: post • esc: feed"
	case common.FeedView:
		viewCommands = "↑/↓ • l: like • c: comments • enter: profile • d: delete • r: refresh"
	case common.ProfileView:
		viewCommands = "↑/↓ • f: follow • l: like • r: reload • esc: back"
	case common.NotificationsView:
		viewCommands = "↑/↓ • a: accept • d: decline • v: profile • r: refresh"
	case common.FollowersView:
		viewCommands = "↑/↓ • enter: profile • f: follow back"
	case common.FollowingView:
		viewCommands = "↑/↓ • enter: profile • u: unfollow"
	case common.ChatsView:
		switch {
		case m.chatsModel.Typing:
			viewCommands = "ctrl+s: send • esc: stop typing"
		case m.chatsModel.Open != "":
			viewCommands = "↑/↓ • i: write • x: delete • r: refresh • esc: back"
		default:
			viewCommands = "↑/↓ • enter: open • a: accept • d: decline • r: refresh"
		}
	}

	if m.state == common.ProfileView {
		return fmt.Sprintf("focused > %s\t\tkeys > %s • ctrl-c: exit", m.currentFocusedModel(), viewCommands)
	}
	return fmt.Sprintf("focused > %s\t\tkeys > tab: next • shift+tab: prev • %s • ctrl-c: exit",
		m.currentFocusedModel(), viewCommands)
}
