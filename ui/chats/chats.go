package chats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/refconnect/refterm/app"
	"github.com/refconnect/refterm/chat"
	"github.com/refconnect/refterm/domain"
	"github.com/refconnect/refterm/ui/common"
	"github.com/refconnect/refterm/util"
)

var (
	chatNameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(common.COLOR_USERNAME)).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color(common.COLOR_DIM))
)

const composerHeight = 3

// Model lists the viewer's chats with the join requests waiting on them.
// Opening a chat shows its messages and a composer.
type Model struct {
	app      *app.App
	Chats    []domain.Chat
	Requests []domain.ChatJoinRequest
	Messages []domain.Message
	Open     string
	Composer textarea.Model
	Typing   bool
	Selected int
	Offset   int
	Width    int
	Height   int
	Status   string
	Error    string
	confirm  string
	loading  bool
	seq      int
}

type chatsLoadedMsg struct {
	seq      int
	chats    []domain.Chat
	requests []domain.ChatJoinRequest
	err      error
}

type messagesLoadedMsg struct {
	seq    int
	chatId string
	err    error
}

type sentMsg struct{ err error }

type deletedMsg struct{ err error }

type answeredMsg struct {
	accept   bool
	username string
	err      error
}

func InitialModel(a *app.App, width, height int) Model {
	ta := textarea.New()
	ta.Placeholder = "Message"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetWidth(common.TextInputDefaultWidth)
	ta.SetHeight(composerHeight)

	return Model{
		app:      a,
		Chats:    []domain.Chat{},
		Composer: ta,
		Width:    width,
		Height:   height,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Confirming reports whether a delete prompt is open.
func (m Model) Confirming() bool {
	return m.confirm != ""
}

func (m Model) rows() int {
	return len(m.Chats) + len(m.Requests)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case common.ActivateViewMsg:
		if m.Open != "" {
			return m.reloadMessages()
		}
		return m.reload()

	case chatsLoadedMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.loading = false
		m.Chats = msg.chats
		m.Requests = msg.requests
		if msg.err != nil {
			m.Error = "Could not refresh chats"
		}
		m.clamp(m.rows())
		return m, nil

	case messagesLoadedMsg:
		if msg.seq != m.seq || msg.chatId != m.Open {
			return m, nil
		}
		m.loading = false
		m.Messages = m.app.Chats.Messages()
		if msg.err != nil {
			m.Error = "Could not load messages"
		}
		m.Selected, m.Offset = common.MoveSelection(0, 0, len(m.Messages)-1, len(m.Messages))
		return m, nil

	case sentMsg:
		m.Messages = m.app.Chats.Messages()
		if msg.err != nil {
			m.Error = fmt.Sprintf("Failed to send: %v", msg.err)
			return m, common.ClearStatusAfter(3 * time.Second)
		}
		m.Composer.Reset()
		m.Selected, m.Offset = common.MoveSelection(0, 0, len(m.Messages)-1, len(m.Messages))
		return m, nil

	case deletedMsg:
		m.Messages = m.app.Chats.Messages()
		m.clamp(len(m.Messages))
		if msg.err != nil {
			m.Error = fmt.Sprintf("Failed to delete: %v", msg.err)
		} else {
			m.Status = "Message deleted"
		}
		return m, common.ClearStatusAfter(3 * time.Second)

	case answeredMsg:
		m.Requests = m.app.Chats.Incoming()
		m.Chats = m.app.Chats.Chats()
		m.clamp(m.rows())
		if msg.err != nil {
			if errors.Is(msg.err, domain.ErrInFlight) {
				m.Status = "ℹ Still working on that request"
			} else {
				m.Error = fmt.Sprintf("Failed to answer @%s: %v", msg.username, msg.err)
			}
			return m, common.ClearStatusAfter(3 * time.Second)
		}
		if msg.accept {
			m.Status = fmt.Sprintf("✓ @%s joined", msg.username)
		} else {
			m.Status = fmt.Sprintf("Declined @%s", msg.username)
		}
		return m, common.ClearStatusAfter(3 * time.Second)

	case common.ClearStatusMsg:
		m.Status = ""
		m.Error = ""
		return m, nil

	case tea.KeyMsg:
		if m.confirm != "" {
			return m.answerConfirm(msg)
		}
		if m.Typing {
			return m.updateComposer(msg)
		}
		if m.Open != "" {
			return m.updateConversation(msg)
		}
		return m.updateList(msg)
	}

	if m.Typing {
		var cmd tea.Cmd
		m.Composer, cmd = m.Composer.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.Selected, m.Offset = common.MoveSelection(m.Selected, m.Offset, -1, m.rows())
	case "down", "j":
		m.Selected, m.Offset = common.MoveSelection(m.Selected, m.Offset, 1, m.rows())
	case "r":
		return m.reload()
	case "enter":
		if m.Selected < len(m.Chats) {
			m.Open = m.Chats[m.Selected].ChatId
			m.Messages = nil
			return m.reloadMessages()
		}
	case "a", "d":
		if i := m.Selected - len(m.Chats); i >= 0 && i < len(m.Requests) {
			return m, answer(m.app, m.Requests[i], msg.String() == "a")
		}
	}
	return m, nil
}

func (m Model) updateConversation(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.Open = ""
		m.Messages = nil
		m.app.Chats.Select("")
		m.Selected, m.Offset = 0, 0
		return m, nil
	case "up", "k":
		m.Selected, m.Offset = common.MoveSelection(m.Selected, m.Offset, -1, len(m.Messages))
	case "down", "j":
		m.Selected, m.Offset = common.MoveSelection(m.Selected, m.Offset, 1, len(m.Messages))
	case "r":
		return m.reloadMessages()
	case "i", "enter":
		m.Typing = true
		return m, m.Composer.Focus()
	case "x":
		if m.Selected >= 0 && m.Selected < len(m.Messages) {
			sel := m.Messages[m.Selected]
			if m.app.Session.Actor().Owns(sel.SenderId) {
				m.confirm = sel.MessageId
			}
		}
	}
	return m, nil
}

func (m Model) updateComposer(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.Typing = false
		m.Composer.Blur()
		return m, nil
	case "ctrl+s":
		text := strings.TrimSpace(m.Composer.Value())
		if text == "" {
			return m, nil
		}
		if limit := m.app.Conf.Conf.MaxChars; limit > 0 && util.CountVisibleChars(text) > limit {
			m.Error = fmt.Sprintf("Message too long (max %d characters)", limit)
			return m, common.ClearStatusAfter(3 * time.Second)
		}
		return m, send(m.app, m.Open, text)
	}
	var cmd tea.Cmd
	m.Composer, cmd = m.Composer.Update(msg)
	return m, cmd
}

func (m Model) answerConfirm(msg tea.KeyMsg) (Model, tea.Cmd) {
	id := m.confirm
	m.confirm = ""
	switch msg.String() {
	case "y", "Y":
		return m, deleteMessage(m.app, id)
	}
	return m, nil
}

func (m Model) reload() (Model, tea.Cmd) {
	m.seq++
	m.loading = true
	return m, loadChats(m.app, m.seq)
}

func (m Model) reloadMessages() (Model, tea.Cmd) {
	m.seq++
	m.loading = true
	return m, loadMessages(m.app, m.Open, m.seq)
}

func (m *Model) clamp(n int) {
	if m.Selected >= n {
		m.Selected = n - 1
	}
	if m.Selected < 0 {
		m.Selected = 0
	}
	if m.Offset > m.Selected {
		m.Offset = m.Selected
	}
}

func (m Model) View() string {
	if m.Open != "" {
		return m.conversationView()
	}
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("chats (%d)", len(m.Chats))))
	s.WriteString("\n\n")

	if m.loading && m.rows() == 0 {
		s.WriteString(common.ListEmptyStyle.Render("Loading chats..."))
		return s.String()
	}
	if len(m.Chats) == 0 {
		s.WriteString(common.ListEmptyStyle.Render("No chats yet."))
		s.WriteString("\n")
	}

	start, end := common.Page(m.Offset, m.rows())
	for i := start; i < end; i++ {
		var line string
		if i < len(m.Chats) {
			c := m.Chats[i]
			line = chatNameStyle.Render(c.Title()) + " " +
				dimStyle.Render(fmt.Sprintf("%d members", len(c.Members)))
		} else {
			r := m.Requests[i-len(m.Chats)]
			line = dimStyle.Render(fmt.Sprintf("@%s wants to join %s · %s",
				requester(r), groupName(r), common.FormatTimeAgo(r.RequestedAt)))
		}
		if i == m.Selected {
			s.WriteString(common.ListSelectedPrefix + line)
		} else {
			s.WriteString(common.ListUnselectedPrefix + line)
		}
		s.WriteString("\n")
	}

	if m.rows() > common.DefaultItemsPerPage {
		s.WriteString("\n")
		s.WriteString(common.ListBadgeStyle.Render(fmt.Sprintf("showing %d-%d of %d", start+1, end, m.rows())))
	}
	m.writeFooter(&s)
	return s.String()
}

func (m Model) conversationView() string {
	var s strings.Builder

	title := m.Open
	if c, ok := m.app.Chats.Current(); ok && c.ChatId == m.Open {
		title = c.Title()
	}
	s.WriteString(common.CaptionStyle.Render(title))
	s.WriteString("\n\n")

	if m.loading && len(m.Messages) == 0 {
		s.WriteString(common.ListEmptyStyle.Render("Loading messages..."))
		s.WriteString("\n")
	} else if len(m.Messages) == 0 {
		s.WriteString(common.ListEmptyStyle.Render("No messages yet."))
		s.WriteString("\n")
	}

	start, end := common.Page(m.Offset, len(m.Messages))
	for i := start; i < end; i++ {
		msg := m.Messages[i]
		sender := msg.SenderName
		if sender == "" {
			sender = msg.SenderId
		}
		meta := common.FormatTimeAgo(msg.CreatedAt)
		if msg.Edited {
			meta += " · edited"
		}
		line := chatNameStyle.Render("@"+sender) + " " + dimStyle.Render(meta) + "\n    " + msg.Content
		if i == m.Selected {
			s.WriteString(common.ListSelectedPrefix + line)
		} else {
			s.WriteString(common.ListUnselectedPrefix + line)
		}
		s.WriteString("\n")
	}

	if m.confirm != "" {
		s.WriteString("\n")
		s.WriteString(common.ConfirmStyle.Render("Delete this message? (y/n)"))
	}
	if m.Typing {
		s.WriteString("\n")
		s.WriteString(m.Composer.View())
	}
	m.writeFooter(&s)
	return s.String()
}

func (m Model) writeFooter(s *strings.Builder) {
	if m.Status != "" {
		s.WriteString("\n")
		s.WriteString(common.ListStatusStyle.Render(m.Status))
	}
	if m.Error != "" {
		s.WriteString("\n")
		s.WriteString(common.ListErrorStyle.Render(m.Error))
	}
}

func requester(r domain.ChatJoinRequest) string {
	if r.User != nil && r.User.UserName != "" {
		return r.User.UserName
	}
	return r.UserId
}

func groupName(r domain.ChatJoinRequest) string {
	if r.Chat != nil {
		return r.Chat.Title()
	}
	return r.ChatId
}

func loadChats(a *app.App, seq int) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		list, err := a.Chats.Fetch(ctx)
		if err != nil {
			return chatsLoadedMsg{seq: seq, chats: a.Chats.Chats(), requests: a.Chats.Incoming(), err: err}
		}
		reqs, err := a.Chats.FetchIncoming(ctx)
		if err != nil {
			reqs = a.Chats.Incoming()
		}
		return chatsLoadedMsg{seq: seq, chats: list, requests: reqs, err: err}
	}
}

func loadMessages(a *app.App, chatId string, seq int) tea.Cmd {
	return func() tea.Msg {
		_, err := a.Chats.FetchMessages(context.Background(), chatId)
		return messagesLoadedMsg{seq: seq, chatId: chatId, err: err}
	}
}

func send(a *app.App, chatId, text string) tea.Cmd {
	return func() tea.Msg {
		_, err := a.Chats.Send(context.Background(), chatId, text)
		return sentMsg{err: err}
	}
}

func deleteMessage(a *app.App, messageId string) tea.Cmd {
	return func() tea.Msg {
		return deletedMsg{err: a.Chats.DeleteMessage(context.Background(), messageId, chat.Confirmed)}
	}
}

func answer(a *app.App, req domain.ChatJoinRequest, accept bool) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		var err error
		if accept {
			err = a.Chats.AcceptJoin(ctx, req.Id)
		} else {
			err = a.Chats.DeclineJoin(ctx, req.Id)
		}
		return answeredMsg{accept: accept, username: requester(req), err: err}
	}
}
