package cli

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/refconnect/refterm/domain"
)

func TestPost_TextMode(t *testing.T) {
	handler, output, _ := newTestHandler(t, "alice", "")

	if err := run(t, handler, "post", "Hello from CLI"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(output.String(), "Posted:") {
		t.Errorf("Expected 'Posted:' in output, got: %s", output.String())
	}
	if got := len(handler.app.Posts.Posts()); got != 1 {
		t.Errorf("Expected the new post in the store, got %d posts", got)
	}
}

func TestPost_JSONMode(t *testing.T) {
	handler, output, _ := newTestHandler(t, "alice", "")

	if err := run(t, handler, "post", "Hello", "from", "CLI", "--json"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	var resp PostResponse
	if err := json.Unmarshal(output.Bytes(), &resp); err != nil {
		t.Fatalf("Expected valid JSON, got error: %v, output: %s", err, output.String())
	}
	if resp.ID == "" {
		t.Error("Expected a post id")
	}
	if resp.Message != "Hello from CLI" {
		t.Errorf("Expected message 'Hello from CLI', got %s", resp.Message)
	}
}

func TestPost_Stdin(t *testing.T) {
	handler, output, _ := newTestHandler(t, "alice", "  Message from stdin\n")

	if err := run(t, handler, "post", "-", "--json"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	var resp PostResponse
	if err := json.Unmarshal(output.Bytes(), &resp); err != nil {
		t.Fatalf("Expected valid JSON, got error: %v, output: %s", err, output.String())
	}
	if resp.Message != "Message from stdin" {
		t.Errorf("Expected trimmed stdin message, got %q", resp.Message)
	}
}

func TestPost_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		input   string
		wantOut string
	}{
		{"no args", []string{"post"}, "", "usage: post"},
		{"empty stdin", []string{"post", "-"}, "   \n", "message cannot be empty"},
		{"too long", []string{"post", strings.Repeat("a", 151)}, "", "message too long (151 chars, max 150)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, output, srv := newTestHandler(t, "alice", tt.input)

			if err := run(t, handler, tt.args...); err == nil {
				t.Fatal("Expected an error")
			}
			if !strings.Contains(output.String(), tt.wantOut) {
				t.Errorf("Expected %q in output, got: %s", tt.wantOut, output.String())
			}
			if srv.CallCount("POST /posts") != 0 {
				t.Error("Expected no create call")
			}
		})
	}
}

func TestPost_ServerError(t *testing.T) {
	handler, output, srv := newTestHandler(t, "alice", "")
	srv.Fail("POST /posts", http.StatusInternalServerError)

	if err := run(t, handler, "post", "hello", "--json"); err == nil {
		t.Fatal("Expected an error")
	}
	var resp map[string]string
	if err := json.Unmarshal(output.Bytes(), &resp); err != nil {
		t.Fatalf("Expected valid JSON, got error: %v, output: %s", err, output.String())
	}
	if resp["error"] == "" {
		t.Error("Expected an error field")
	}
}

func TestEdit(t *testing.T) {
	handler, output, srv := newTestHandler(t, "alice", "")
	srv.SeedPost("post-1", "alice", "first draft", 0)
	srv.SeedPost("post-2", "bob", "not mine", 0)

	if err := run(t, handler, "edit", "post-1", "final", "version"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(output.String(), "Updated: post-1") {
		t.Errorf("Expected update confirmation, got: %s", output.String())
	}
	if p, _ := handler.app.Posts.Get("post-1"); p.Description != "final version" {
		t.Errorf("Expected updated description, got %q", p.Description)
	}

	if err := run(t, handler, "edit", "post-2", "hijack"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name     string
		userId   string
		input    string
		flags    []string
		wantErr  error
		wantGone bool
	}{
		{"confirmed at prompt", "alice", "yes\n", nil, nil, true},
		{"declined at prompt", "alice", "\n", nil, domain.ErrNotConfirmed, false},
		{"yes flag", "alice", "", []string{"-y"}, nil, true},
		{"not the author", "bob", "", []string{"-y"}, domain.ErrForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, output, srv := newTestHandler(t, tt.userId, tt.input)
			srv.SeedPost("post-1", "alice", "to be removed", 0)

			err := run(t, handler, append([]string{"delete", "post-1"}, tt.flags...)...)
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			deleted := srv.CallCount("DELETE /posts/{postId}") == 1
			if deleted != tt.wantGone {
				t.Errorf("Expected deleted=%v, output: %s", tt.wantGone, output.String())
			}
			if _, ok := handler.app.Posts.Get("post-1"); ok == tt.wantGone {
				t.Errorf("Expected local presence %v", !tt.wantGone)
			}
		})
	}
}

func TestComments(t *testing.T) {
	handler, output, srv := newTestHandler(t, "alice", "")
	srv.SeedPost("post-1", "bob", "derby recap", 0)

	if err := run(t, handler, "comment", "post-1", "great", "positioning"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(output.String(), "Commented:") {
		t.Errorf("Expected comment confirmation, got: %s", output.String())
	}
	if got := srv.CommentCount("post-1"); got != 1 {
		t.Errorf("Expected 1 comment on the server, got %d", got)
	}

	output.Reset()
	if err := run(t, handler, "comments", "post-1", "--json"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	var resp CommentsResponse
	if err := json.Unmarshal(output.Bytes(), &resp); err != nil {
		t.Fatalf("Expected valid JSON, got error: %v, output: %s", err, output.String())
	}
	if resp.Count != 1 || resp.Comments[0].Content != "great positioning" {
		t.Errorf("Expected the comment back, got %+v", resp)
	}
	if resp.Comments[0].Author != "alice" {
		t.Errorf("Expected author alice, got %s", resp.Comments[0].Author)
	}
}
