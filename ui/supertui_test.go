package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/refconnect/refterm/app/apptest"
	"github.com/refconnect/refterm/ui/common"
)

func update(t *testing.T, m MainModel, msg tea.Msg) (MainModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mm, ok := next.(MainModel)
	if !ok {
		t.Fatalf("Expected MainModel, got %T", next)
	}
	return mm, cmd
}

func TestNewModelStartsInWriteView(t *testing.T) {
	a, _ := apptest.New(t, "alice")
	m := NewModel(a, 0, 0)

	if m.State() != common.WritePostView {
		t.Errorf("Expected WritePostView, got %d", m.State())
	}
	if m.width != common.MinWindowWidth || m.height != common.MinWindowHeight {
		t.Errorf("Expected default size, got %dx%d", m.width, m.height)
	}
}

func TestTabCycles(t *testing.T) {
	a, _ := apptest.New(t, "alice")
	m := NewModel(a, 120, 40)

	want := []common.SessionState{
		common.FeedView,
		common.NotificationsView,
		common.FollowersView,
		common.FollowingView,
		common.ChatsView,
		common.WritePostView,
	}
	for _, s := range want {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
		if m.State() != s {
			t.Fatalf("Expected state %d, got %d", s, m.State())
		}
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.State() != common.ChatsView {
		t.Errorf("Expected shift+tab to go back to ChatsView, got %d", m.State())
	}
}

func TestSwitchActivatesView(t *testing.T) {
	a, _ := apptest.New(t, "alice")
	m := NewModel(a, 120, 40)

	m, cmd := update(t, m, common.NotificationsView)
	if m.State() != common.NotificationsView {
		t.Errorf("Expected NotificationsView, got %d", m.State())
	}
	if cmd == nil {
		t.Error("Expected a load command for the new view")
	}
}

func TestViewProfileSwitchesAndEscReturns(t *testing.T) {
	a, _ := apptest.New(t, "alice")
	m := NewModel(a, 120, 40)

	m, cmd := update(t, m, common.ViewProfileMsg{UserId: "carol"})
	if m.State() != common.ProfileView {
		t.Fatalf("Expected ProfileView, got %d", m.State())
	}
	if cmd == nil {
		t.Fatal("Expected a profile load command")
	}
	m, _ = update(t, m, cmd())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.State() != common.ProfileView {
		t.Errorf("Expected tab to be ignored in ProfileView, got %d", m.State())
	}

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("Expected a command for esc")
	}
	m, _ = update(t, m, cmd())
	if m.State() != common.FeedView {
		t.Errorf("Expected FeedView after esc, got %d", m.State())
	}
}

func TestCtrlCQuits(t *testing.T) {
	a, _ := apptest.New(t, "alice")
	m := NewModel(a, 120, 40)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("Expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("Expected QuitMsg, got %T", cmd())
	}
}

func TestViewTooSmall(t *testing.T) {
	a, _ := apptest.New(t, "alice")
	m := NewModel(a, 120, 40)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 60, Height: 20})

	if !strings.Contains(m.View(), "Terminal too small!") {
		t.Error("Expected too small message")
	}
}

func TestViewShowsHeaderAndHelp(t *testing.T) {
	a, srv := apptest.New(t, "bob")
	srv.SeedRequest("alice", "bob")
	m := NewModel(a, 140, 40)

	m, cmd := update(t, m, common.NotificationsView)
	m, _ = update(t, m, cmd())

	view := m.View()
	if !strings.Contains(view, "@bob") {
		t.Error("Expected actor in header")
	}
	if !strings.Contains(view, "1 follow requests") {
		t.Error("Expected request badge in header")
	}
	if !strings.Contains(view, "a: accept") {
		t.Error("Expected notification keys in help")
	}
}

func TestTabHeldWhileComposingMessage(t *testing.T) {
	a, srv := apptest.New(t, "carol")
	srv.SeedChat("crew", "alice", "Match officials", "carol")
	m := NewModel(a, 140, 40)

	m, cmd := update(t, m, common.ChatsView)
	m, _ = update(t, m, cmd())
	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(t, m, cmd())
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'i'}})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.State() != common.ChatsView {
		t.Errorf("Expected tab held while composing, got %d", m.State())
	}
	if !strings.Contains(m.View(), "ctrl+s: send") {
		t.Error("Expected composer keys in help")
	}
}
