package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/refconnect/refterm/api"
	"github.com/refconnect/refterm/api/apitest"
	"github.com/refconnect/refterm/domain"
	"github.com/refconnect/refterm/session"
)

// newTestServer knows alice and carol (public) and bob (private). alice
// owns the crew group with carol in it.
func newTestServer(t *testing.T) *apitest.Server {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddUser("alice", "alice", true)
	srv.AddUser("bob", "bob", false)
	srv.AddUser("carol", "carol", true)
	srv.SeedChat("crew", "alice", "Match officials", "carol")
	return srv
}

func storeFor(srv *apitest.Server, userId string) (*Store, *session.State) {
	sess := session.New()
	sess.Begin(domain.Actor{Id: userId, Role: domain.RoleReferee}, "token-"+userId)
	return New(api.NewClient(srv.URL, sess), sess), sess
}

func TestFetchChatsAndMessages(t *testing.T) {
	srv := newTestServer(t)
	srv.SeedMessage("crew", "alice", "kickoff moved to 15:00")
	srv.SeedMessage("crew", "carol", "noted")
	s, _ := storeFor(srv, "carol")
	ctx := context.Background()

	chats, err := s.Fetch(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(chats) != 1 || chats[0].ChatId != "crew" || !chats[0].IsGroup {
		t.Fatalf("Expected the crew group, got %+v", chats)
	}

	msgs, err := s.FetchMessages(ctx, "crew")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "kickoff moved to 15:00" || msgs[1].SenderId != "carol" {
		t.Errorf("Expected both messages oldest first, got %+v", msgs)
	}
	if msgs[0].SenderName != "alice" {
		t.Errorf("Expected sender name alice, got %q", msgs[0].SenderName)
	}
	current, ok := s.Current()
	if !ok || current.Title() != "Match officials" {
		t.Errorf("Expected crew to be open, got %+v", current)
	}
}

func TestFetchMessagesOfForeignChatFails(t *testing.T) {
	srv := newTestServer(t)
	s, _ := storeFor(srv, "bob")

	_, err := s.FetchMessages(context.Background(), "crew")
	if !api.IsForbidden(err) {
		t.Fatalf("Expected forbidden, got: %v", err)
	}
	if s.Err() == nil {
		t.Error("Expected the error slot to be set")
	}
	if len(s.Messages()) != 0 {
		t.Errorf("Expected no messages, got %d", len(s.Messages()))
	}
}

func TestGroupListingAndSearch(t *testing.T) {
	srv := newTestServer(t)
	srv.SeedChat("var", "carol", "VAR review room")
	s, _ := storeFor(srv, "bob")
	ctx := context.Background()

	groups, err := s.FetchGroups(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"var", []string{"var"}},
		{"  OFFICIALS ", []string{"crew"}},
		{"nothing", nil},
		{"", []string{"crew", "var"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if _, err := s.SearchGroups(ctx, tt.query); err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			var got []string
			for _, c := range s.Groups() {
				got = append(got, c.ChatId)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSendAppendsToOpenChat(t *testing.T) {
	srv := newTestServer(t)
	srv.SeedChat("other", "carol", "Other group")
	s, _ := storeFor(srv, "carol")
	ctx := context.Background()

	if _, err := s.FetchMessages(ctx, "crew"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	msg, err := s.Send(ctx, "", "  on my way  ")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if msg.Content != "on my way" || msg.ChatId != "crew" {
		t.Errorf("Expected trimmed message in crew, got %+v", msg)
	}
	if _, err := s.Send(ctx, "other", "elsewhere"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].MessageId != msg.MessageId {
		t.Errorf("Expected only the open chat's message locally, got %+v", msgs)
	}
	if srv.MessageCount("other") != 1 {
		t.Errorf("Expected message stored in other, got %d", srv.MessageCount("other"))
	}
}

func TestSendRejectsBadContent(t *testing.T) {
	tests := []struct {
		name    string
		chatId  string
		content string
		want    error
	}{
		{"no chat", "", "hello", domain.ErrNoChat},
		{"blank", "crew", "   ", domain.ErrEmptyContent},
		{"too long", "crew", strings.Repeat("x", 11), domain.ErrTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			sess := session.New()
			sess.Begin(domain.Actor{Id: "carol", Role: domain.RoleReferee}, "token-carol")
			s := New(api.NewClient(srv.URL, sess), sess, WithMaxChars(10))

			_, err := s.Send(context.Background(), tt.chatId, tt.content)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got: %v", tt.want, err)
			}
			if got := srv.CallCount("POST /Messages"); got != 0 {
				t.Errorf("Expected no server call, got %d", got)
			}
		})
	}
}

func TestEditMessage(t *testing.T) {
	srv := newTestServer(t)
	own := srv.SeedMessage("crew", "carol", "typo")
	other := srv.SeedMessage("crew", "alice", "agenda")
	s, _ := storeFor(srv, "carol")
	ctx := context.Background()
	if _, err := s.FetchMessages(ctx, "crew"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if err := s.EditMessage(ctx, own, "fixed"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	msgs := s.Messages()
	if msgs[0].Content != "fixed" || !msgs[0].Edited {
		t.Errorf("Expected edited message, got %+v", msgs[0])
	}
	if content, _ := srv.MessageContent(own); content != "fixed" {
		t.Errorf("Expected server copy to change, got %q", content)
	}

	err := s.EditMessage(ctx, other, "hijacked")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Expected forbidden, got: %v", err)
	}
	if got := srv.CallCount("PUT /Messages/{messageId}"); got != 1 {
		t.Errorf("Expected one server edit, got %d", got)
	}
}

func TestDeleteMessage(t *testing.T) {
	srv := newTestServer(t)
	id := srv.SeedMessage("crew", "carol", "wrong chat")
	s, _ := storeFor(srv, "carol")
	ctx := context.Background()
	if _, err := s.FetchMessages(ctx, "crew"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	decline := func(string, string) bool { return false }
	if err := s.DeleteMessage(ctx, id, decline); !errors.Is(err, domain.ErrNotConfirmed) {
		t.Errorf("Expected not confirmed, got: %v", err)
	}
	if got := srv.CallCount("DELETE /Messages/{messageId}"); got != 0 {
		t.Errorf("Expected no server call without confirmation, got %d", got)
	}

	srv.Fail("DELETE /Messages/{messageId}", http.StatusNotFound)
	if err := s.DeleteMessage(ctx, id, Confirmed); err != nil {
		t.Fatalf("Expected a missing message to count as deleted, got: %v", err)
	}
	if len(s.Messages()) != 0 {
		t.Errorf("Expected message dropped locally, got %+v", s.Messages())
	}
}

func TestCreateGroup(t *testing.T) {
	srv := newTestServer(t)
	s, _ := storeFor(srv, "alice")
	ctx := context.Background()

	if _, err := s.CreateGroup(ctx, "  ", "", nil); !errors.Is(err, domain.ErrEmptyContent) {
		t.Errorf("Expected empty name to be rejected, got: %v", err)
	}

	c, err := s.CreateGroup(ctx, "Assessors", "post-match reviews", []string{"carol", " carol", "alice", ""})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if c.OwnerId != "alice" || c.Name != "Assessors" {
		t.Errorf("Expected alice's group, got %+v", c)
	}
	if len(c.Members) != 2 {
		t.Errorf("Expected owner and carol as members, got %+v", c.Members)
	}
	if !srv.IsMember(c.ChatId, "carol") {
		t.Error("Expected carol in the group on the server")
	}
	if chats := s.Chats(); len(chats) != 1 || chats[0].ChatId != c.ChatId {
		t.Errorf("Expected new group in the chat list, got %+v", chats)
	}
}

func TestUpdateGroup(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	alice, _ := storeFor(srv, "alice")
	if _, err := alice.Fetch(ctx); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := alice.UpdateGroup(ctx, "crew", "", " "); !errors.Is(err, domain.ErrEmptyContent) {
		t.Errorf("Expected empty update to be rejected, got: %v", err)
	}
	if err := alice.UpdateGroup(ctx, "crew", "Crew 14", ""); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if c := alice.Chats()[0]; c.Name != "Crew 14" {
		t.Errorf("Expected renamed group, got %q", c.Name)
	}

	carol, _ := storeFor(srv, "carol")
	if _, err := carol.Fetch(ctx); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := carol.UpdateGroup(ctx, "crew", "Mine now", ""); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Expected forbidden for a member, got: %v", err)
	}
	if got := srv.CallCount("PUT /Chats/{chatId}"); got != 1 {
		t.Errorf("Expected one server update, got %d", got)
	}
}

func TestDeleteGroupClosesOpenChat(t *testing.T) {
	srv := newTestServer(t)
	srv.SeedMessage("crew", "alice", "bye")
	srv.SeedJoinRequest("crew", "bob")
	s, _ := storeFor(srv, "alice")
	ctx := context.Background()

	if _, err := s.Fetch(ctx); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := s.FetchIncoming(ctx); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := s.FetchMessages(ctx, "crew"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if err := s.DeleteGroup(ctx, "crew", Confirmed); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if srv.ChatExists("crew") {
		t.Error("Expected group deleted on the server")
	}
	if s.CurrentId() != "" || len(s.Messages()) != 0 {
		t.Errorf("Expected the open chat to be closed, got %q with %d messages", s.CurrentId(), len(s.Messages()))
	}
	if len(s.Chats()) != 0 || len(s.Incoming()) != 0 {
		t.Errorf("Expected group and its requests gone, got %+v / %+v", s.Chats(), s.Incoming())
	}
}

func TestJoinRequestWorkflow(t *testing.T) {
	tests := []struct {
		name   string
		accept bool
	}{
		{"accept", true},
		{"decline", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			ctx := context.Background()
			bob, _ := storeFor(srv, "bob")
			alice, _ := storeFor(srv, "alice")

			req, err := bob.RequestJoin(ctx, "crew")
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if req.Id == "" || req.UserId != "bob" {
				t.Errorf("Expected a stored request from bob, got %+v", req)
			}
			if len(bob.Outgoing()) != 1 {
				t.Errorf("Expected one outgoing request, got %d", len(bob.Outgoing()))
			}

			if _, err := alice.Fetch(ctx); err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			incoming, err := alice.FetchIncoming(ctx)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if len(incoming) != 1 || incoming[0].User == nil || incoming[0].User.UserName != "bob" {
				t.Fatalf("Expected bob's request with user, got %+v", incoming)
			}

			if tt.accept {
				err = alice.AcceptJoin(ctx, req.Id)
			} else {
				err = alice.DeclineJoin(ctx, req.Id)
			}
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if len(alice.Incoming()) != 0 {
				t.Errorf("Expected request consumed locally, got %+v", alice.Incoming())
			}
			if srv.HasJoinRequest("crew", "bob") {
				t.Error("Expected request consumed on the server")
			}
			if got := srv.IsMember("crew", "bob"); got != tt.accept {
				t.Errorf("Expected membership %v, got %v", tt.accept, got)
			}
			if got := alice.Chats()[0].HasMember("bob"); got != tt.accept {
				t.Errorf("Expected local membership %v, got %v", tt.accept, got)
			}
		})
	}
}

func TestFetchChatRequestsOwnerOnly(t *testing.T) {
	srv := newTestServer(t)
	srv.SeedJoinRequest("crew", "bob")
	ctx := context.Background()

	alice, _ := storeFor(srv, "alice")
	reqs, err := alice.FetchChatRequests(ctx, "crew")
	if err != nil || len(reqs) != 1 {
		t.Fatalf("Expected one request for the owner, got %d (%v)", len(reqs), err)
	}

	carol, _ := storeFor(srv, "carol")
	if _, err := carol.FetchChatRequests(ctx, "crew"); !api.IsForbidden(err) {
		t.Errorf("Expected forbidden for a member, got: %v", err)
	}
}

func TestRequestJoinRejectsKnownMember(t *testing.T) {
	srv := newTestServer(t)
	s, _ := storeFor(srv, "carol")
	ctx := context.Background()
	if _, err := s.Fetch(ctx); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if _, err := s.RequestJoin(ctx, "crew"); !errors.Is(err, domain.ErrAlreadyMember) {
		t.Errorf("Expected already a member, got: %v", err)
	}
	if got := srv.CallCount("POST /ChatJoinRequests"); got != 0 {
		t.Errorf("Expected no server call, got %d", got)
	}
}

func TestRequestJoinConflict(t *testing.T) {
	tests := []struct {
		name    string
		seed    func(srv *apitest.Server) string
		wantErr error
	}{
		{
			name:    "request already pending",
			seed:    func(srv *apitest.Server) string { return srv.SeedJoinRequest("crew", "bob") },
			wantErr: nil,
		},
		{
			name: "already a member",
			seed: func(srv *apitest.Server) string {
				srv.SeedChat("crew", "alice", "Match officials", "carol", "bob")
				return ""
			},
			wantErr: domain.ErrAlreadyMember,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			existing := tt.seed(srv)
			s, _ := storeFor(srv, "bob")

			req, err := s.RequestJoin(context.Background(), "crew")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got: %v", tt.wantErr, err)
				}
				if len(s.Outgoing()) != 0 {
					t.Errorf("Expected no outgoing request, got %+v", s.Outgoing())
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected the existing request to count, got: %v", err)
			}
			if req.Id != existing {
				t.Errorf("Expected request %s, got %s", existing, req.Id)
			}
			if got := srv.CallCount("GET /ChatJoinRequests/my-requests"); got != 1 {
				t.Errorf("Expected one lookup after the conflict, got %d", got)
			}
		})
	}
}

func TestRequestJoinConflictLookupFailureReportsBoth(t *testing.T) {
	srv := newTestServer(t)
	srv.SeedJoinRequest("crew", "bob")
	srv.Fail("GET /ChatJoinRequests/my-requests", http.StatusBadGateway)
	s, _ := storeFor(srv, "bob")

	_, err := s.RequestJoin(context.Background(), "crew")
	if !api.IsConflict(err) {
		t.Errorf("Expected the conflict to be kept, got: %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Errorf("Expected the lookup failure to be reported, got: %v", err)
	}
	if s.Err() == nil || !strings.Contains(s.Err().Error(), "status 502") {
		t.Errorf("Expected both failures in the error slot, got: %v", s.Err())
	}
}

func TestCancelJoin(t *testing.T) {
	srv := newTestServer(t)
	id := srv.SeedJoinRequest("crew", "bob")
	s, _ := storeFor(srv, "bob")
	ctx := context.Background()

	if _, err := s.FetchOutgoing(ctx); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := s.CancelJoin(ctx, id, nil); !errors.Is(err, domain.ErrNotConfirmed) {
		t.Errorf("Expected not confirmed, got: %v", err)
	}
	if err := s.CancelJoin(ctx, id, Confirmed); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(s.Outgoing()) != 0 || srv.HasJoinRequest("crew", "bob") {
		t.Error("Expected request withdrawn locally and on the server")
	}
	if err := s.CancelJoin(ctx, id, Confirmed); err != nil {
		t.Errorf("Expected a second cancel to count as done, got: %v", err)
	}
}

func TestMutationInFlightIsRejected(t *testing.T) {
	srv := newTestServer(t)
	id := srv.SeedMessage("crew", "carol", "draft")
	s, _ := storeFor(srv, "carol")
	ctx := context.Background()

	gate := srv.Hold("PUT /Messages/{messageId}")
	done := make(chan error, 1)
	go func() { done <- s.EditMessage(ctx, id, "first") }()
	<-gate.Entered

	if err := s.EditMessage(ctx, id, "second"); !errors.Is(err, domain.ErrInFlight) {
		t.Errorf("Expected in flight, got: %v", err)
	}
	if !s.Loading() {
		t.Error("Expected the store to report loading")
	}
	gate.Release()
	if err := <-done; err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if content, _ := srv.MessageContent(id); content != "first" {
		t.Errorf("Expected the first edit on the server, got %q", content)
	}
}

// staleMessages answers with the list read before the call was held, the
// way a slow response carries an old snapshot.
type staleMessages struct {
	*api.Client
	entered chan struct{}
	release chan struct{}
}

func (b *staleMessages) Messages(ctx context.Context, chatId string) ([]domain.Message, error) {
	list, err := b.Client.Messages(ctx, chatId)
	close(b.entered)
	<-b.release
	return list, err
}

func TestChangesDuringMessageLoadAreKept(t *testing.T) {
	srv := newTestServer(t)
	old := srv.SeedMessage("crew", "carol", "old news")
	sess := session.New()
	sess.Begin(domain.Actor{Id: "carol", Role: domain.RoleReferee}, "token-carol")
	backend := &staleMessages{
		Client:  api.NewClient(srv.URL, sess),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := New(backend, sess)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := s.FetchMessages(ctx, "crew")
		done <- err
	}()
	<-backend.entered

	sent, err := s.Send(ctx, "crew", "fresh")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := s.DeleteMessage(ctx, old, Confirmed); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	close(backend.release)
	if err := <-done; err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].MessageId != sent.MessageId {
		t.Errorf("Expected only the message sent during the load, got %+v", msgs)
	}
}

func TestSessionChangeDropsChatList(t *testing.T) {
	srv := newTestServer(t)
	s, sess := storeFor(srv, "carol")
	ctx := context.Background()

	gate := srv.Hold("GET /Chats")
	done := make(chan error, 1)
	go func() {
		_, err := s.Fetch(ctx)
		done <- err
	}()
	<-gate.Entered

	sess.End()
	sess.Begin(domain.Actor{Id: "bob", Role: domain.RoleReferee}, "token-bob")
	gate.Release()

	if err := <-done; !errors.Is(err, domain.ErrSessionChanged) {
		t.Errorf("Expected session changed, got: %v", err)
	}
	if len(s.Chats()) != 0 {
		t.Errorf("Expected carol's chats to be dropped, got %+v", s.Chats())
	}
}

func TestChatsRequireSession(t *testing.T) {
	srv := newTestServer(t)
	sess := session.New()
	s := New(api.NewClient(srv.URL, sess), sess)

	if _, err := s.Fetch(context.Background()); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("Expected not authenticated, got: %v", err)
	}
	if len(srv.Calls()) != 0 {
		t.Errorf("Expected no server calls, got %v", srv.Calls())
	}
}
