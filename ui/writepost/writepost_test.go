package writepost

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/refconnect/refterm/app/apptest"
	"github.com/refconnect/refterm/ui/common"
)

func TestEmptyPostRejected(t *testing.T) {
	a, srv := apptest.New(t, "alice")
	m := InitialModel(a, 120)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd != nil {
		t.Error("Expected no command for an empty post")
	}
	if m.Error != "Post cannot be empty" {
		t.Errorf("Expected empty post error, got %q", m.Error)
	}
	if srv.CallCount("POST /posts") != 0 {
		t.Error("Expected no create call")
	}
}

func TestTooLongPostRejected(t *testing.T) {
	a, _ := apptest.New(t, "alice")
	m := InitialModel(a, 120)
	m.MaxChars = 5
	m.Textarea.SetValue("yellow card")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd != nil {
		t.Error("Expected no command for a long post")
	}
	if !strings.Contains(m.Error, "too long") {
		t.Errorf("Expected too long error, got %q", m.Error)
	}
	if !strings.Contains(m.View(), "11/5") {
		t.Errorf("Expected counter in view, got:\n%s", m.View())
	}
}

func TestPostCreated(t *testing.T) {
	a, _ := apptest.New(t, "alice")
	m := InitialModel(a, 120)
	m.Textarea.SetValue("great assessor feedback today")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd == nil {
		t.Fatal("Expected a create command")
	}
	if !m.posting {
		t.Error("Expected posting flag")
	}

	m, cmd = m.Update(cmd())
	if m.Status != "✓ Posted" {
		t.Errorf("Expected posted status, got %q", m.Status)
	}
	if m.Textarea.Value() != "" {
		t.Error("Expected textarea to be reset")
	}
	if cmd == nil {
		t.Error("Expected feed refresh command")
	}

	posts := a.Posts.Posts()
	if len(posts) != 1 || posts[0].UserId != "alice" {
		t.Errorf("Expected one post by alice in the store, got %+v", posts)
	}
}

func TestClearStatus(t *testing.T) {
	a, _ := apptest.New(t, "alice")
	m := InitialModel(a, 120)
	m.Status = "x"
	m, _ = m.Update(common.ClearStatusMsg{})
	if m.Status != "" {
		t.Error("Expected status to be cleared")
	}
}
