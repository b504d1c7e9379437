package cli

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRequests_Empty(t *testing.T) {
	handler, output, _ := newTestHandler(t, "bob", "")

	if err := run(t, handler, "requests"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(output.String(), "No pending follow requests.") {
		t.Errorf("Expected empty message, got: %s", output.String())
	}
}

func TestRequests_JSONMode(t *testing.T) {
	handler, output, srv := newTestHandler(t, "bob", "")
	id := srv.SeedRequest("alice", "bob")
	srv.SeedRequest("carol", "bob")

	if err := run(t, handler, "requests", "--json"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	var resp RequestsResponse
	if err := json.Unmarshal(output.Bytes(), &resp); err != nil {
		t.Fatalf("Expected valid JSON, got error: %v, output: %s", err, output.String())
	}
	if resp.Count != 2 {
		t.Fatalf("Expected 2 requests, got %d", resp.Count)
	}
	if resp.Requests[0].ID != id || resp.Requests[0].Name != "Alice Moreau" {
		t.Errorf("Expected alice's request first, got %+v", resp.Requests[0])
	}
}

func TestAcceptAndDecline(t *testing.T) {
	handler, output, srv := newTestHandler(t, "bob", "")
	srv.SeedRequest("alice", "bob")
	srv.SeedRequest("carol", "bob")

	if err := run(t, handler, "accept", "alice"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !srv.IsFollowing("alice", "bob") {
		t.Error("Expected alice to follow bob")
	}
	if !strings.Contains(output.String(), "Request from @alice accepted") {
		t.Errorf("Expected accept output, got: %s", output.String())
	}

	if err := run(t, handler, "decline", "carol"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if srv.HasRequest("carol", "bob") || srv.IsFollowing("carol", "bob") {
		t.Error("Expected carol's request removed without an edge")
	}
	if got := len(handler.app.Graph.Pending()); got != 0 {
		t.Errorf("Expected no pending requests left, got %d", got)
	}
}

func TestAccept_NoRequest(t *testing.T) {
	handler, output, srv := newTestHandler(t, "bob", "")

	if err := run(t, handler, "accept", "alice"); err == nil {
		t.Fatal("Expected an error")
	}
	if !strings.Contains(output.String(), "no pending request from alice") {
		t.Errorf("Expected missing request message, got: %s", output.String())
	}
	if srv.CallCount("POST /FollowRequests/Accept") != 0 {
		t.Error("Expected no accept call")
	}
}
