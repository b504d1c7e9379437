package writepost

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/refconnect/refterm/app"
	"github.com/refconnect/refterm/domain"
	"github.com/refconnect/refterm/ui/common"
	"github.com/refconnect/refterm/util"
)

var (
	counterStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(common.COLOR_DIM))
	counterOverStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(common.COLOR_ERROR))
)

type Model struct {
	app      *app.App
	Textarea textarea.Model
	MaxChars int
	Status   string
	Error    string
	posting  bool
}

type postCreatedMsg struct {
	post domain.Post
	err  error
}

func InitialModel(a *app.App, width int) Model {
	ta := textarea.New()
	ta.Placeholder = "What happened on the pitch?"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetWidth(common.TextInputDefaultWidth)
	ta.SetHeight(common.TextAreaDefaultHeight)
	ta.Focus()

	return Model{
		app:      a,
		Textarea: ta,
		MaxChars: a.Conf.Conf.MaxChars,
	}
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m *Model) Focus() tea.Cmd {
	return m.Textarea.Focus()
}

func (m *Model) Blur() {
	m.Textarea.Blur()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case postCreatedMsg:
		m.posting = false
		if msg.err != nil {
			m.Error = fmt.Sprintf("Failed to post: %v", msg.err)
			return m, common.ClearStatusAfter(3 * time.Second)
		}
		m.Textarea.Reset()
		m.Status = "✓ Posted"
		m.Error = ""
		return m, tea.Batch(
			common.ClearStatusAfter(2*time.Second),
			func() tea.Msg { return common.UpdateFeed },
		)

	case common.ClearStatusMsg:
		m.Status = ""
		m.Error = ""
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+s" {
			if m.posting {
				return m, nil
			}
			text := strings.TrimSpace(m.Textarea.Value())
			if text == "" {
				m.Error = "Post cannot be empty"
				return m, nil
			}
			if m.MaxChars > 0 && util.CountVisibleChars(text) > m.MaxChars {
				m.Error = fmt.Sprintf("Post is too long (%d characters allowed)", m.MaxChars)
				return m, nil
			}
			m.posting = true
			m.Status = "Posting..."
			m.Error = ""
			return m, createPost(m.app, text)
		}
	}

	var cmd tea.Cmd
	m.Textarea, cmd = m.Textarea.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render("new post"))
	s.WriteString("\n\n")
	s.WriteString(m.Textarea.View())
	s.WriteString("\n")

	n := util.CountVisibleChars(m.Textarea.Value())
	counter := fmt.Sprintf("%d/%d", n, m.MaxChars)
	if m.MaxChars > 0 && n > m.MaxChars {
		s.WriteString(counterOverStyle.Render(counter))
	} else {
		s.WriteString(counterStyle.Render(counter))
	}
	s.WriteString(common.ListBadgeStyle.Render("  ctrl+s: post"))
	s.WriteString("\n")

	if m.Status != "" {
		s.WriteString(common.ListStatusStyle.Render(m.Status))
		s.WriteString("\n")
	}
	if m.Error != "" {
		s.WriteString(common.ListErrorStyle.Render(m.Error))
		s.WriteString("\n")
	}
	return s.String()
}

func createPost(a *app.App, text string) tea.Cmd {
	return func() tea.Msg {
		post, err := a.Posts.Create(context.Background(), domain.CreatePost{Description: text})
		return postCreatedMsg{post: post, err: err}
	}
}
