package chats

import (
	"net/http"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/refconnect/refterm/api/apitest"
	"github.com/refconnect/refterm/app/apptest"
	"github.com/refconnect/refterm/ui/common"
)

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// loaded opens alice's chat list: the crew group she owns with carol in it
// and a pending join request from bob.
func loaded(t *testing.T) (Model, *apitest.Server) {
	t.Helper()
	a, srv := apptest.New(t, "alice")
	srv.SeedChat("crew", "alice", "Match officials", "carol")
	srv.SeedMessage("crew", "carol", "meet at gate 3")
	srv.SeedJoinRequest("crew", "bob")

	m := InitialModel(a, 120, 40)
	m, cmd := m.Update(common.ActivateViewMsg{})
	if cmd == nil {
		t.Fatal("Expected a load command on activation")
	}
	if !m.loading {
		t.Error("Expected loading to be true")
	}
	m, _ = m.Update(cmd())
	return m, srv
}

// opened enters the first chat of the loaded list.
func opened(t *testing.T) (Model, *apitest.Server) {
	t.Helper()
	m, srv := loaded(t)
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("Expected a message load on enter")
	}
	m, _ = m.Update(cmd())
	return m, srv
}

func TestInitialModel(t *testing.T) {
	a, _ := apptest.New(t, "alice")
	m := InitialModel(a, 120, 40)

	if m.Width != 120 || m.Height != 40 {
		t.Errorf("Expected 120x40, got %dx%d", m.Width, m.Height)
	}
	if len(m.Chats) != 0 || m.Open != "" {
		t.Errorf("Expected an empty closed list, got %d chats open=%q", len(m.Chats), m.Open)
	}
}

func TestChatsLoaded(t *testing.T) {
	m, _ := loaded(t)

	if len(m.Chats) != 1 || len(m.Requests) != 1 {
		t.Fatalf("Expected 1 chat and 1 request, got %d and %d", len(m.Chats), len(m.Requests))
	}
	view := m.View()
	if !strings.Contains(view, "Match officials") {
		t.Errorf("Expected chat title in view, got:\n%s", view)
	}
	if !strings.Contains(view, "@bob wants to join Match officials") {
		t.Errorf("Expected join request line, got:\n%s", view)
	}
}

func TestEmptyList(t *testing.T) {
	a, _ := apptest.New(t, "bob")
	m := InitialModel(a, 120, 40)
	m, cmd := m.Update(common.ActivateViewMsg{})
	m, _ = m.Update(cmd())

	if !strings.Contains(m.View(), "No chats yet.") {
		t.Errorf("Expected empty notice, got:\n%s", m.View())
	}
}

func TestLoadFailureShowsError(t *testing.T) {
	a, srv := apptest.New(t, "alice")
	srv.Fail("GET /Chats", http.StatusInternalServerError)

	m := InitialModel(a, 120, 40)
	m, cmd := m.Update(common.ActivateViewMsg{})
	m, _ = m.Update(cmd())

	if m.Error != "Could not refresh chats" {
		t.Errorf("Expected refresh error, got %q", m.Error)
	}
}

func TestStaleLoadIgnored(t *testing.T) {
	m, _ := loaded(t)
	stale := chatsLoadedMsg{seq: m.seq - 1}

	m, _ = m.Update(stale)
	if len(m.Chats) != 1 {
		t.Errorf("Expected stale load ignored, got %d chats", len(m.Chats))
	}
}

func TestOpenChatShowsMessages(t *testing.T) {
	m, _ := opened(t)

	if m.Open != "crew" {
		t.Fatalf("Expected crew open, got %q", m.Open)
	}
	if len(m.Messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(m.Messages))
	}
	view := m.View()
	if !strings.Contains(view, "meet at gate 3") {
		t.Errorf("Expected message content, got:\n%s", view)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.Open != "" || len(m.Messages) != 0 {
		t.Errorf("Expected chat closed, got open=%q with %d messages", m.Open, len(m.Messages))
	}
}

func TestSendFromComposer(t *testing.T) {
	m, srv := opened(t)

	m, _ = m.Update(key('i'))
	if !m.Typing {
		t.Fatal("Expected composer focused")
	}
	m.Composer.SetValue("on my way")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd == nil {
		t.Fatal("Expected a send command")
	}
	m, _ = m.Update(cmd())

	if srv.MessageCount("crew") != 2 {
		t.Errorf("Expected message stored on the server, got %d", srv.MessageCount("crew"))
	}
	if len(m.Messages) != 2 || m.Messages[1].Content != "on my way" {
		t.Errorf("Expected sent message appended, got %+v", m.Messages)
	}
	if m.Composer.Value() != "" {
		t.Errorf("Expected composer cleared, got %q", m.Composer.Value())
	}
}

func TestSendTooLong(t *testing.T) {
	m, srv := opened(t)
	m, _ = m.Update(key('i'))
	m.Composer.SetValue(strings.Repeat("x", m.app.Conf.Conf.MaxChars+1))

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if !strings.Contains(m.Error, "too long") {
		t.Errorf("Expected length error, got %q", m.Error)
	}
	if got := srv.CallCount("POST /Messages"); got != 0 {
		t.Errorf("Expected no send, got %d calls", got)
	}
}

func TestDeleteOwnMessage(t *testing.T) {
	a, srv := apptest.New(t, "carol")
	srv.SeedChat("crew", "alice", "Match officials", "carol")
	srv.SeedMessage("crew", "alice", "kickoff 15:00")
	srv.SeedMessage("crew", "carol", "typo")

	m := InitialModel(a, 120, 40)
	m, cmd := m.Update(common.ActivateViewMsg{})
	m, _ = m.Update(cmd())
	m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = m.Update(cmd())

	m, _ = m.Update(key('k'))
	m, _ = m.Update(key('x'))
	if m.Confirming() {
		t.Fatal("Expected no prompt for someone else's message")
	}

	m, _ = m.Update(key('j'))
	m, _ = m.Update(key('x'))
	if !m.Confirming() {
		t.Fatal("Expected delete prompt for own message")
	}
	m, cmd = m.Update(key('y'))
	if cmd == nil {
		t.Fatal("Expected a delete command")
	}
	m, _ = m.Update(cmd())

	if srv.MessageCount("crew") != 1 {
		t.Errorf("Expected one message left on the server, got %d", srv.MessageCount("crew"))
	}
	if m.Status != "Message deleted" || len(m.Messages) != 1 {
		t.Errorf("Expected deletion reflected, got status %q and %d messages", m.Status, len(m.Messages))
	}
}

func TestAnswerJoinRequest(t *testing.T) {
	tests := []struct {
		name   string
		key    rune
		member bool
		status string
	}{
		{"accept", 'a', true, "✓ @bob joined"},
		{"decline", 'd', false, "Declined @bob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, srv := loaded(t)
			m, _ = m.Update(key('j'))
			m, cmd := m.Update(key(tt.key))
			if cmd == nil {
				t.Fatal("Expected an answer command")
			}
			m, _ = m.Update(cmd())

			if m.Status != tt.status {
				t.Errorf("Expected status %q, got %q", tt.status, m.Status)
			}
			if srv.IsMember("crew", "bob") != tt.member {
				t.Errorf("Expected membership %v", tt.member)
			}
			if len(m.Requests) != 0 {
				t.Errorf("Expected request removed, got %d", len(m.Requests))
			}
		})
	}
}

func TestAnswerFailureShowsError(t *testing.T) {
	m, srv := loaded(t)
	srv.Fail("POST /ChatJoinRequests/{requestId}/accept", http.StatusInternalServerError)

	m, _ = m.Update(key('j'))
	m, cmd := m.Update(key('a'))
	m, _ = m.Update(cmd())

	if !strings.Contains(m.Error, "Failed to answer @bob") {
		t.Errorf("Expected answer error, got %q", m.Error)
	}
	if len(m.Requests) != 1 {
		t.Errorf("Expected request kept after failure, got %d", len(m.Requests))
	}
}
