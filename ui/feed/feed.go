package feed

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
	"github.com/refconnect/refterm/posts"
	"github.com/refconnect/refterm/ui/common"
	"github.com/refconnect/refterm/util"
)

var (
	contentStyle  = lipgloss.NewStyle()
	handleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(common.COLOR_SECONDARY))
	mediaStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(common.COLOR_LINK)).Underline(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(common.COLOR_WHITE))
)

type Model struct {
	app      *app.App
	Posts    []display.Post
	Selected int
	Offset   int
	Width    int
	Height   int
	Status   string
	Error    string
	loading  bool
	seq      int
	// post waiting for a y/n answer before it is deleted
	confirmDelete string
}

func InitialModel(a *app.App, width, height int) Model {
	return Model{
		app:    a,
		Posts:  []display.Post{},
		Width:  width,
		Height: height,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

type feedLoadedMsg struct {
	seq int
	err error
}

type likeCheckedMsg struct {
	postId string
	err    error
}

type likeResultMsg struct {
	postId string
	liked  bool
	err    error
}

type deleteResultMsg struct {
	postId string
	err    error
}

type commentsLoadedMsg struct {
	postId string
	count  int
	err    error
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case common.ActivateViewMsg:
		return m.reload()

	case common.SessionState:
		if msg == common.UpdateFeed {
			return m.reload()
		}

	case feedLoadedMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.loading = false
		m.sync()
		if msg.err != nil {
			m.Error = "Could not refresh the feed, showing what was loaded before"
		}
		return m, checkLikes(m.app, m.visibleIds())

	case likeCheckedMsg:
		m.sync()
		if msg.err != nil && !errors.Is(msg.err, domain.ErrSessionChanged) {
			m.Error = fmt.Sprintf("Could not check like state: %v", msg.err)
			return m, common.ClearStatusAfter(3 * time.Second)
		}
		return m, nil

	case likeResultMsg:
		m.sync()
		if msg.err != nil {
			if errors.Is(msg.err, domain.ErrInFlight) {
				return m, nil
			}
			m.Error = fmt.Sprintf("Failed to update like: %v", msg.err)
			return m, common.ClearStatusAfter(3 * time.Second)
		}
		if msg.liked {
			m.Status = "♥ Liked"
		} else {
			m.Status = "Like removed"
		}
		return m, common.ClearStatusAfter(2 * time.Second)

	case deleteResultMsg:
		m.sync()
		if msg.err != nil {
			m.Error = fmt.Sprintf("Failed to delete post: %v", msg.err)
		} else {
			m.Status = "✓ Post deleted"
		}
		return m, common.ClearStatusAfter(3 * time.Second)

	case commentsLoadedMsg:
		m.sync()
		if msg.err != nil {
			m.Error = fmt.Sprintf("Failed to load comments: %v", msg.err)
		} else {
			m.Status = fmt.Sprintf("%d comments", msg.count)
		}
		return m, common.ClearStatusAfter(3 * time.Second)

	case common.ClearStatusMsg:
		m.Status = ""
		m.Error = ""
		return m, nil

	case tea.KeyMsg:
		if m.confirmDelete != "" {
			return m.updateConfirm(msg)
		}
		switch msg.String() {
		case "up", "k":
			m.Selected, m.Offset = common.MoveSelection(m.Selected, m.Offset, -1, len(m.Posts))
		case "down", "j":
			m.Selected, m.Offset = common.MoveSelection(m.Selected, m.Offset, 1, len(m.Posts))
			return m, checkLikes(m.app, m.visibleIds())
		case "r":
			return m.reload()
		case "l":
			if p, ok := m.selected(); ok {
				return m, toggleLike(m.app, p.Id)
			}
		case "c":
			if p, ok := m.selected(); ok {
				return m, loadComments(m.app, p.Id)
			}
		case "enter", "p":
			if p, ok := m.selected(); ok && p.Author.Id != "" {
				id := p.Author.Id
				return m, func() tea.Msg { return common.ViewProfileMsg{UserId: id} }
			}
		case "d":
			if p, ok := m.selected(); ok {
				if !m.app.Session.Actor().Owns(p.Post.UserId) {
					m.Error = "You can only delete your own posts"
					return m, common.ClearStatusAfter(2 * time.Second)
				}
				m.confirmDelete = p.Id
			}
		}
	}
	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		id := m.confirmDelete
		m.confirmDelete = ""
		m.Status = "Deleting..."
		return m, deletePost(m.app, id)
	case "n", "N", "esc":
		m.confirmDelete = ""
	}
	return m, nil
}

func (m Model) reload() (Model, tea.Cmd) {
	m.seq++
	m.loading = true
	m.Error = ""
	return m, loadFeed(m.app, m.seq)
}

// sync re-reads the post list from the store.
func (m *Model) sync() {
	m.Posts = m.app.Display.Posts(m.app.Posts.Posts())
	if m.Selected >= len(m.Posts) {
		m.Selected = max(len(m.Posts)-1, 0)
	}
	if m.Offset > m.Selected {
		m.Offset = m.Selected
	}
}

func (m Model) selected() (display.Post, bool) {
	if m.Selected < 0 || m.Selected >= len(m.Posts) {
		return display.Post{}, false
	}
	return m.Posts[m.Selected], true
}

func (m Model) visibleIds() []string {
	start, end := common.Page(m.Offset, len(m.Posts))
	var ids []string
	for _, p := range m.Posts[start:end] {
		if !m.app.Likes.State(p.Id).Known {
			ids = append(ids, p.Id)
		}
	}
	return ids
}

// Confirming reports whether the view waits for a y/n answer.
func (m Model) Confirming() bool {
	return m.confirmDelete != ""
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("feed (%d)", len(m.Posts))))
	s.WriteString("\n\n")

	if m.loading && len(m.Posts) == 0 {
		s.WriteString(common.ListEmptyStyle.Render("Loading posts..."))
		return s.String()
	}

	if len(m.Posts) == 0 {
		s.WriteString(common.ListEmptyStyle.Render("No posts yet. Write the first one!"))
	}

	leftPanelWidth := common.CalculateLeftPanelWidth(m.Width)
	contentWidth := common.CalculateContentWidth(common.CalculateRightPanelWidth(m.Width, leftPanelWidth), 2)

	start, end := common.Page(m.Offset, len(m.Posts))
	for i := start; i < end; i++ {
		p := m.Posts[i]
		likes := m.app.Likes.State(p.Id)

		heart := "♡"
		if likes.Liked {
			heart = common.LikedStyle.Render("♥")
		}
		if likes.Pending {
			heart += "…"
		}
		header := fmt.Sprintf("%s %s · %s · %s %d",
			common.UsernameStyle.Render(p.Author.Name),
			handleStyle.Render("@"+p.Author.UserName),
			common.TimeStyle.Render(common.FormatTimeAgo(p.Post.CreatedAt)),
			heart, p.Likes)

		text := util.TruncateVisibleLength(util.NormalizeInput(p.Text), min(contentWidth, common.MaxContentTruncateWidth))
		if i == m.Selected {
			s.WriteString(common.ListSelectedPrefix + header + "\n")
			s.WriteString("  " + selectedStyle.Bold(true).Render(text))
		} else {
			s.WriteString(common.ListUnselectedPrefix + header + "\n")
			s.WriteString("  " + contentStyle.Render(text))
		}
		if p.MediaURL != "" {
			s.WriteString("\n  " + mediaStyle.Render(p.MediaURL))
		}
		s.WriteString("\n\n")
	}

	if len(m.Posts) > common.DefaultItemsPerPage {
		s.WriteString(common.ListBadgeStyle.Render(fmt.Sprintf("showing %d-%d of %d", start+1, end, len(m.Posts))))
		s.WriteString("\n")
	}

	if m.confirmDelete != "" {
		s.WriteString(common.ConfirmStyle.Render("Delete this post? y/n"))
		s.WriteString("\n")
	}
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

func loadFeed(a *app.App, seq int) tea.Cmd {
	return func() tea.Msg {
		return feedLoadedMsg{seq: seq, err: a.Refresh(context.Background())}
	}
}

// checkLikes asks the server for the viewer's like state of each post.
func checkLikes(a *app.App, ids []string) tea.Cmd {
	if len(ids) == 0 {
		return nil
	}
	cmds := make([]tea.Cmd, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, func() tea.Msg {
			_, err := a.Likes.IsLiked(context.Background(), id)
			return likeCheckedMsg{postId: id, err: err}
		})
	}
	return tea.Batch(cmds...)
}

func toggleLike(a *app.App, postId string) tea.Cmd {
	return func() tea.Msg {
		liked, err := a.Likes.Toggle(context.Background(), postId)
		return likeResultMsg{postId: postId, liked: liked, err: err}
	}
}

func deletePost(a *app.App, postId string) tea.Cmd {
	return func() tea.Msg {
		err := a.Posts.Delete(context.Background(), postId, posts.Confirmed)
		return deleteResultMsg{postId: postId, err: err}
	}
}

func loadComments(a *app.App, postId string) tea.Cmd {
	return func() tea.Msg {
		list, err := a.Posts.Comments(context.Background(), postId)
		return commentsLoadedMsg{postId: postId, count: len(list), err: err}
	}
}
