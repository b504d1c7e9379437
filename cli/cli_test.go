package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/refconnect/refterm/api/apitest"
	"github.com/refconnect/refterm/app/apptest"
	"github.com/refconnect/refterm/domain"
)

// mockSession implements cli.Session for testing
type mockSession struct {
	reader io.Reader
	writer *bytes.Buffer
}

func newMockSession(input string) *mockSession {
	return &mockSession{
		reader: strings.NewReader(input),
		writer: &bytes.Buffer{},
	}
}

func (m *mockSession) Write(p []byte) (n int, err error) {
	return m.writer.Write(p)
}

func (m *mockSession) Read(p []byte) (n int, err error) {
	return m.reader.Read(p)
}

// newTestHandler returns a handler logged in as userId with input as stdin.
func newTestHandler(t *testing.T, userId, input string) (*Handler, *bytes.Buffer, *apitest.Server) {
	t.Helper()
	a, srv := apptest.New(t, userId)
	a.Conf.Conf.MaxChars = 150
	session := newMockSession(input)
	return NewHandler(session, a, a.Conf), session.writer, srv
}

func run(t *testing.T, h *Handler, args ...string) error {
	t.Helper()
	return h.Execute(context.Background(), args)
}

func TestExecute_Help(t *testing.T) {
	handler, output, _ := newTestHandler(t, "alice", "")

	if err := run(t, handler, "--help"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	result := output.String()
	if !strings.Contains(result, "refterm CLI") {
		t.Errorf("Expected help output to contain 'refterm CLI', got: %s", result)
	}
	for _, cmd := range []string{"post", "timeline", "follow", "requests", "accept"} {
		if !strings.Contains(result, cmd) {
			t.Errorf("Expected help output to contain %q, got: %s", cmd, result)
		}
	}
}

func TestExecute_HelpJSON(t *testing.T) {
	handler, output, _ := newTestHandler(t, "alice", "")

	if err := run(t, handler, "--help", "--json"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	var resp HelpResponse
	if err := json.Unmarshal(output.Bytes(), &resp); err != nil {
		t.Fatalf("Expected valid JSON, got error: %v, output: %s", err, output.String())
	}
	if len(resp.Commands) != len(helpCommands) {
		t.Errorf("Expected %d commands, got %d", len(helpCommands), len(resp.Commands))
	}
	if resp.Version == "" {
		t.Error("Expected version in help output")
	}
}

func TestExecute_NoArgsShowsHelp(t *testing.T) {
	handler, output, _ := newTestHandler(t, "alice", "")

	if err := run(t, handler); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(output.String(), "Usage:") {
		t.Errorf("Expected usage in output, got: %s", output.String())
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	handler, output, _ := newTestHandler(t, "alice", "")

	err := run(t, handler, "boost")
	if err == nil {
		t.Fatal("Expected error for unknown command")
	}
	if !strings.Contains(output.String(), "unknown command: boost") {
		t.Errorf("Expected unknown command message, got: %s", output.String())
	}
}

func TestExecute_RequiresSession(t *testing.T) {
	handler, output, srv := newTestHandler(t, "", "")

	err := run(t, handler, "timeline")
	if !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("Expected ErrNotAuthenticated, got %v", err)
	}
	if !strings.Contains(output.String(), "REFTERM_TOKEN") {
		t.Errorf("Expected hint about credentials, got: %s", output.String())
	}
	if len(srv.Calls()) != 0 {
		t.Errorf("Expected no API calls, got %v", srv.Calls())
	}
}

func TestParseGlobalFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		want     []string
		wantJSON bool
		wantYes  bool
	}{
		{"none", []string{"post", "hi"}, []string{"post", "hi"}, false, false},
		{"json long", []string{"timeline", "--json"}, []string{"timeline"}, true, false},
		{"json short", []string{"-j", "timeline"}, []string{"timeline"}, true, false},
		{"yes", []string{"delete", "p1", "-y"}, []string{"delete", "p1"}, false, true},
		{"both", []string{"--yes", "unfollow", "bob", "--json"}, []string{"unfollow", "bob"}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, jsonMode, yes := parseGlobalFlags(tt.args)
			if strings.Join(got, " ") != strings.Join(tt.want, " ") {
				t.Errorf("Expected args %v, got %v", tt.want, got)
			}
			if jsonMode != tt.wantJSON {
				t.Errorf("Expected json %v, got %v", tt.wantJSON, jsonMode)
			}
			if yes != tt.wantYes {
				t.Errorf("Expected yes %v, got %v", tt.wantYes, yes)
			}
		})
	}
}

func TestFollow(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   domain.FollowStatus
	}{
		{"public profile", "carol", domain.StatusFollowing},
		{"private profile", "bob", domain.StatusRequested},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, output, srv := newTestHandler(t, "alice", "")

			if err := run(t, handler, "follow", tt.target, "--json"); err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			var resp FollowResponse
			if err := json.Unmarshal(output.Bytes(), &resp); err != nil {
				t.Fatalf("Expected valid JSON, got error: %v, output: %s", err, output.String())
			}
			if resp.Status != string(tt.want) {
				t.Errorf("Expected status %s, got %s", tt.want, resp.Status)
			}
			if tt.want == domain.StatusFollowing && !srv.IsFollowing("alice", tt.target) {
				t.Error("Expected follow edge on the server")
			}
			if tt.want == domain.StatusRequested && !srv.HasRequest("alice", tt.target) {
				t.Error("Expected follow request on the server")
			}
		})
	}
}

func TestFollowSelf(t *testing.T) {
	handler, _, srv := newTestHandler(t, "alice", "")

	if err := run(t, handler, "follow", "alice"); !errors.Is(err, domain.ErrSelfFollow) {
		t.Errorf("Expected ErrSelfFollow, got %v", err)
	}
	if len(srv.Calls()) != 0 {
		t.Errorf("Expected no API calls, got %v", srv.Calls())
	}
}

func TestUnfollowConfirmation(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		flags    []string
		wantGone bool
	}{
		{"answered yes", "y\n", nil, true},
		{"answered no", "n\n", nil, false},
		{"no input", "", nil, false},
		{"yes flag", "", []string{"--yes"}, true},
		{"json without yes", "y\n", []string{"--json"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, output, srv := newTestHandler(t, "alice", tt.input)
			srv.SeedFollow("alice", "carol")

			err := run(t, handler, append([]string{"unfollow", "carol"}, tt.flags...)...)
			if tt.wantGone {
				if err != nil {
					t.Fatalf("Expected no error, got: %v", err)
				}
				if srv.IsFollowing("alice", "carol") {
					t.Error("Expected the edge to be removed")
				}
				return
			}
			if !errors.Is(err, domain.ErrNotConfirmed) {
				t.Errorf("Expected ErrNotConfirmed, got %v", err)
			}
			if !srv.IsFollowing("alice", "carol") {
				t.Error("Expected the edge to remain")
			}
			if srv.CallCount("DELETE /Follows") != 0 {
				t.Errorf("Expected no unfollow call, output: %s", output.String())
			}
		})
	}
}

func TestCancelRequest(t *testing.T) {
	handler, output, srv := newTestHandler(t, "alice", "")
	srv.SeedRequest("alice", "bob")

	if err := run(t, handler, "cancel", "bob", "-y"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if srv.HasRequest("alice", "bob") {
		t.Error("Expected the request to be withdrawn")
	}
	if !strings.Contains(output.String(), "Cancelled follow request to bob") {
		t.Errorf("Expected confirmation output, got: %s", output.String())
	}
}

func TestStatus(t *testing.T) {
	handler, output, srv := newTestHandler(t, "alice", "")
	srv.SeedFollow("alice", "carol")

	if err := run(t, handler, "status", "carol"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(output.String(), "Following carol") {
		t.Errorf("Expected following status, got: %s", output.String())
	}
}

func TestFollowersAndFollowing(t *testing.T) {
	handler, output, srv := newTestHandler(t, "carol", "")
	srv.SeedFollow("alice", "carol")
	srv.SeedFollow("bob", "carol")
	srv.SeedFollow("carol", "alice")

	if err := run(t, handler, "followers", "--json"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	var resp UsersResponse
	if err := json.Unmarshal(output.Bytes(), &resp); err != nil {
		t.Fatalf("Expected valid JSON, got error: %v, output: %s", err, output.String())
	}
	if resp.Count != 2 {
		t.Errorf("Expected 2 followers, got %d", resp.Count)
	}

	output.Reset()
	if err := run(t, handler, "following"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(output.String(), "Alice Moreau @alice") {
		t.Errorf("Expected alice in following, got: %s", output.String())
	}
}

func TestProfile(t *testing.T) {
	tests := []struct {
		name     string
		userId   string
		wantText string
	}{
		{"public", "carol", "followers"},
		{"private", "bob", "This profile is private"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, output, _ := newTestHandler(t, "alice", "")

			if err := run(t, handler, "profile", tt.userId); err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if !strings.Contains(output.String(), "@"+tt.userId) {
				t.Errorf("Expected handle in output, got: %s", output.String())
			}
			if !strings.Contains(output.String(), tt.wantText) {
				t.Errorf("Expected %q in output, got: %s", tt.wantText, output.String())
			}
		})
	}
}

func TestFormatTimeAgo(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{time.Minute + time.Second, "1 minute ago"},
		{5 * time.Minute, "5 minutes ago"},
		{time.Hour + time.Minute, "1 hour ago"},
		{3 * time.Hour, "3 hours ago"},
		{25 * time.Hour, "1 day ago"},
		{72 * time.Hour, "3 days ago"},
	}

	for _, tt := range tests {
		if got := FormatTimeAgo(time.Now().Add(-tt.ago)); got != tt.want {
			t.Errorf("Expected %q for %v, got %q", tt.want, tt.ago, got)
		}
	}
}
