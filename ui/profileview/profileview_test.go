package profileview

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/refconnect/refterm/api/apitest"
	"github.com/refconnect/refterm/app/apptest"
	"github.com/refconnect/refterm/domain"
	"github.com/refconnect/refterm/ui/common"
)

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// open loads the profile of userId as alice.
func open(t *testing.T, userId string) (Model, *apitest.Server) {
	t.Helper()
	a, srv := apptest.New(t, "alice")
	srv.SeedPost("post-1", "carol", "VAR review notes", 1)
	srv.SeedPost("post-2", "carol", "cup final appointment", 0)

	m := InitialModel(a, 120, 40)
	m, cmd := m.Update(common.ViewProfileMsg{UserId: userId})
	if !m.loading {
		t.Error("Expected loading to be true after ViewProfileMsg")
	}
	if cmd == nil {
		t.Fatal("Expected a command to be returned")
	}
	m, _ = m.Update(cmd())
	return m, srv
}

func TestInitialModel(t *testing.T) {
	a, _ := apptest.New(t, "alice")
	m := InitialModel(a, 120, 40)

	if m.Width != 120 {
		t.Errorf("Expected Width 120, got %d", m.Width)
	}
	if m.Height != 40 {
		t.Errorf("Expected Height 40, got %d", m.Height)
	}
	if m.Profile != nil {
		t.Error("Expected nil Profile")
	}
	if m.Status != domain.StatusUnknown {
		t.Errorf("Expected unknown status, got %s", m.Status)
	}
	if m.loading {
		t.Error("Expected loading to be false")
	}
}

func TestProfileLoaded(t *testing.T) {
	m, _ := open(t, "carol")

	if m.loading {
		t.Error("Expected loading to be false after load")
	}
	if m.Profile == nil {
		t.Fatal("Expected Profile to be set")
	}
	if !m.Profile.Extended {
		t.Error("Expected extended profile for a public user")
	}
	if len(m.Posts) != 2 {
		t.Errorf("Expected 2 posts, got %d", len(m.Posts))
	}
	if m.Status != domain.StatusNotFollowing {
		t.Errorf("Expected not_following, got %s", m.Status)
	}
	view := m.View()
	if !strings.Contains(view, "@carol") || !strings.Contains(view, "not following") {
		t.Errorf("Expected handle and status in view, got:\n%s", view)
	}
}

func TestPrivateProfileFallsBack(t *testing.T) {
	m, _ := open(t, "bob")

	if m.Profile == nil {
		t.Fatal("Expected Profile to be set")
	}
	if m.Profile.Extended {
		t.Error("Expected basic profile for a private user")
	}
	if !strings.Contains(m.View(), "This profile is private") {
		t.Errorf("Expected private notice, got:\n%s", m.View())
	}
}

func TestProfileLoadedError(t *testing.T) {
	m, _ := open(t, "nobody")

	if m.loading {
		t.Error("Expected loading to be false after error")
	}
	if m.Error == "" {
		t.Error("Expected an error")
	}
	if !strings.Contains(m.View(), "Error:") {
		t.Errorf("Expected error in view, got:\n%s", m.View())
	}
}

func TestStaleProfileIgnored(t *testing.T) {
	m, _ := open(t, "carol")
	m.seq = 7

	m, _ = m.Update(profileLoadedMsg{seq: 6, err: &testError{"late"}})
	if m.Error != "" {
		t.Errorf("Expected stale result to be ignored, got error %q", m.Error)
	}
}

type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}

func TestFollowPublic(t *testing.T) {
	m, srv := open(t, "carol")

	m, cmd := m.Update(key('f'))
	if cmd == nil {
		t.Fatal("Expected follow command")
	}
	m, _ = m.Update(cmd())

	if m.Status != domain.StatusFollowing {
		t.Errorf("Expected following, got %s", m.Status)
	}
	if !srv.IsFollowing("alice", "carol") {
		t.Error("Expected edge on the server")
	}
	if !strings.Contains(m.Info, "Following @carol") {
		t.Errorf("Expected following info, got %q", m.Info)
	}
}

func TestFollowPrivateSendsRequest(t *testing.T) {
	m, srv := open(t, "bob")

	m, cmd := m.Update(key('f'))
	m, _ = m.Update(cmd())

	if m.Status != domain.StatusRequested {
		t.Errorf("Expected requested, got %s", m.Status)
	}
	if !srv.HasRequest("alice", "bob") {
		t.Error("Expected request on the server")
	}
	if !strings.Contains(m.View(), "requested") {
		t.Errorf("Expected requested badge, got:\n%s", m.View())
	}
}

func TestUnfollowAsksFirst(t *testing.T) {
	m, srv := open(t, "carol")
	m, cmd := m.Update(key('f'))
	m, _ = m.Update(cmd())

	m, cmd = m.Update(key('f'))
	if cmd != nil {
		t.Error("Expected no command before confirmation")
	}
	if !m.Confirming() {
		t.Fatal("Expected confirmation prompt")
	}
	if !strings.Contains(m.View(), "Unfollow @carol? y/n") {
		t.Errorf("Expected prompt in view, got:\n%s", m.View())
	}

	m, _ = m.Update(key('n'))
	if m.Confirming() || !srv.IsFollowing("alice", "carol") {
		t.Error("Expected declined prompt to keep the edge")
	}

	m, _ = m.Update(key('f'))
	m, cmd = m.Update(key('y'))
	m, _ = m.Update(cmd())
	if m.Status != domain.StatusNotFollowing {
		t.Errorf("Expected not_following, got %s", m.Status)
	}
	if srv.IsFollowing("alice", "carol") {
		t.Error("Expected edge to be gone")
	}
}

func TestCancelRequest(t *testing.T) {
	m, srv := open(t, "bob")
	m, cmd := m.Update(key('f'))
	m, _ = m.Update(cmd())

	m, _ = m.Update(key('f'))
	if !strings.Contains(m.View(), "Cancel request @bob? y/n") {
		t.Errorf("Expected cancel prompt, got:\n%s", m.View())
	}
	m, cmd = m.Update(key('y'))
	m, _ = m.Update(cmd())

	if m.Status != domain.StatusNotFollowing {
		t.Errorf("Expected not_following, got %s", m.Status)
	}
	if srv.HasRequest("alice", "bob") {
		t.Error("Expected request to be gone")
	}
}

func TestFailedFollowKeepsStatus(t *testing.T) {
	m, srv := open(t, "carol")
	srv.Fail("POST /Follows", 500)

	m, cmd := m.Update(key('f'))
	m, _ = m.Update(cmd())

	if m.Status != domain.StatusNotFollowing {
		t.Errorf("Expected not_following after failure, got %s", m.Status)
	}
	if !strings.Contains(m.Error, "Failed to follow") {
		t.Errorf("Expected failure message, got %q", m.Error)
	}
}

func TestNavigation(t *testing.T) {
	m, _ := open(t, "carol")

	m, _ = m.Update(key('j'))
	if m.Selected != 1 {
		t.Errorf("Expected Selected 1 after down, got %d", m.Selected)
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if m.Selected != 1 {
		t.Errorf("Expected Selected 1 (stay at end), got %d", m.Selected)
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if m.Selected != 0 {
		t.Errorf("Expected Selected 0 after up, got %d", m.Selected)
	}
}

func TestLikeOnProfilePost(t *testing.T) {
	m, srv := open(t, "carol")
	for i, p := range m.Posts {
		if p.Id == "post-1" {
			m.Selected = i
		}
	}

	m, cmd := m.Update(key('l'))
	if cmd == nil {
		t.Fatal("Expected like command")
	}
	m, _ = m.Update(cmd())
	if !srv.HasLike("alice", "post-1") {
		t.Error("Expected like on the server")
	}
	if m.Error != "" {
		t.Errorf("Expected no error, got %q", m.Error)
	}
}

func TestEscapeReturnsToFeed(t *testing.T) {
	a, _ := apptest.New(t, "alice")
	m := InitialModel(a, 120, 40)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEscape})
	if cmd == nil {
		t.Fatal("Expected command for escape")
	}
	if msg := cmd(); msg != common.FeedView {
		t.Errorf("Expected FeedView, got %v", msg)
	}
}
