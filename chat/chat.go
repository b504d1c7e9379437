// Package chat holds the viewer's chats, the open conversation and the
// group join-request workflow.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/refconnect/refterm/api"
	"github.com/refconnect/refterm/domain"
	"github.com/refconnect/refterm/session"
	"github.com/refconnect/refterm/util"
)

// Backend is the part of the API client the store drives.
type Backend interface {
	Chats(ctx context.Context) ([]domain.Chat, error)
	GroupChats(ctx context.Context) ([]domain.Chat, error)
	SearchGroupChats(ctx context.Context, query string) ([]domain.Chat, error)
	CreateGroupChat(ctx context.Context, in domain.CreateGroupChat) (domain.Chat, error)
	UpdateChat(ctx context.Context, chatId string, in domain.UpdateChat) error
	DeleteChat(ctx context.Context, chatId string) error
	Messages(ctx context.Context, chatId string) ([]domain.Message, error)
	SendMessage(ctx context.Context, in domain.CreateMessage) (domain.Message, error)
	UpdateMessage(ctx context.Context, messageId string, in domain.UpdateMessage) error
	DeleteMessage(ctx context.Context, messageId string) error
	RequestJoinChat(ctx context.Context, chatId string) (domain.ChatJoinRequest, error)
	OwnerJoinRequests(ctx context.Context) ([]domain.ChatJoinRequest, error)
	ChatJoinRequests(ctx context.Context, chatId string) ([]domain.ChatJoinRequest, error)
	MyJoinRequests(ctx context.Context) ([]domain.ChatJoinRequest, error)
	AcceptJoinRequest(ctx context.Context, requestId string) error
	DeclineJoinRequest(ctx context.Context, requestId string) error
	CancelJoinRequest(ctx context.Context, requestId string) error
}

// ConfirmFunc asks the user to confirm a destructive action on id.
type ConfirmFunc func(action, id string) bool

func Confirmed(string, string) bool { return true }

type Option func(*Store)

// WithMaxChars limits the visible length of messages.
func WithMaxChars(n int) Option {
	return func(s *Store) { s.maxChars = n }
}

// change is a local mutation kept for replay onto lists that were loading
// while it landed.
type change struct {
	seq   uint64
	apply func()
}

// Store is the chat container for one session. Lists are replaced by the
// Fetch calls and patched in place by the mutations. Only one mutation per
// chat, message or request runs at a time.
type Store struct {
	api      Backend
	session  *session.State
	maxChars int

	mu        sync.Mutex
	epoch     uint64
	chats     []domain.Chat
	groups    []domain.Chat
	current   string
	messages  []domain.Message
	incoming  []domain.ChatJoinRequest
	outgoing  []domain.ChatJoinRequest
	inflight  map[string]bool
	loading   int
	fetching  int
	seq       uint64
	journal   []change
	err       error
	listeners []func()
}

func New(backend Backend, sess *session.State, opts ...Option) *Store {
	s := &Store{
		api:      backend,
		session:  sess,
		maxChars: 500,
	}
	s.reset(sess.Epoch())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) reset(epoch uint64) {
	s.epoch = epoch
	s.chats = nil
	s.groups = nil
	s.current = ""
	s.messages = nil
	s.incoming = nil
	s.outgoing = nil
	s.inflight = map[string]bool{}
	s.loading = 0
	s.fetching = 0
	s.journal = nil
	s.err = nil
}

// syncLocked drops the state of an ended session. Caller holds mu.
func (s *Store) syncLocked(epoch uint64) {
	if s.epoch != epoch {
		s.reset(epoch)
	}
}

func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify() {
	s.mu.Lock()
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Chats returns the chats the viewer belongs to.
func (s *Store) Chats() []domain.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Chat(nil), s.chats...)
}

// Groups returns the last group listing or search result.
func (s *Store) Groups() []domain.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Chat(nil), s.groups...)
}

// Messages returns the messages of the open chat, oldest first.
func (s *Store) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages...)
}

// Incoming returns the join requests waiting on the viewer as owner.
func (s *Store) Incoming() []domain.ChatJoinRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatJoinRequest(nil), s.incoming...)
}

// Outgoing returns the viewer's own pending join requests.
func (s *Store) Outgoing() []domain.ChatJoinRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatJoinRequest(nil), s.outgoing...)
}

// Current returns the open chat when it is in a local list.
func (s *Store) Current() (domain.Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatLocked(s.current)
}

func (s *Store) CurrentId() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Select opens chatId without loading its messages. An empty id closes
// the open chat.
func (s *Store) Select(chatId string) {
	s.mu.Lock()
	s.syncLocked(s.session.Epoch())
	if s.current != chatId {
		s.current = chatId
		s.messages = nil
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Store) ClearErr() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
	s.notify()
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

func (s *Store) chatLocked(chatId string) (domain.Chat, bool) {
	if chatId == "" {
		return domain.Chat{}, false
	}
	for _, list := range [][]domain.Chat{s.chats, s.groups} {
		for _, c := range list {
			if c.ChatId == chatId {
				return c, true
			}
		}
	}
	return domain.Chat{}, false
}

func (s *Store) messageLocked(messageId string) (domain.Message, bool) {
	for _, m := range s.messages {
		if m.MessageId == messageId {
			return m, true
		}
	}
	return domain.Message{}, false
}

// op is one running call: the in-flight guard, the session it belongs to
// and, for list loads, the journal position it started at.
type op struct {
	name  string
	key   string
	actor *domain.Actor
	epoch uint64
	load  bool
	since uint64
}

// begin checks the session and takes the guard for key. An empty key runs
// unguarded.
func (s *Store) begin(name, key string, load bool) (*op, error) {
	actor, epoch := s.session.Current()
	if actor == nil {
		return nil, s.fail(name, domain.ErrNotAuthenticated)
	}

	s.mu.Lock()
	s.syncLocked(epoch)
	if key != "" && s.inflight[key] {
		s.mu.Unlock()
		return nil, domain.ErrInFlight
	}
	if key != "" {
		s.inflight[key] = true
	}
	if load {
		s.fetching++
	}
	s.loading++
	s.err = nil
	o := &op{name: name, key: key, actor: actor, epoch: epoch, load: load, since: s.seq}
	s.mu.Unlock()
	s.notify()
	return o, nil
}

// release ends o and reports whether its session is still the active one.
// Caller holds mu.
func (s *Store) releaseLocked(o *op) bool {
	if s.epoch != o.epoch {
		return false
	}
	if o.key != "" {
		delete(s.inflight, o.key)
	}
	s.loading = max(s.loading-1, 0)
	if o.load {
		s.fetching = max(s.fetching-1, 0)
	}
	return s.session.Still(o.epoch)
}

// record applies fn and keeps it for lists still loading. Caller holds mu.
func (s *Store) recordLocked(fn func()) {
	fn()
	s.seq++
	if s.fetching > 0 {
		s.journal = append(s.journal, change{seq: s.seq, apply: fn})
	}
}

// finish applies a successful mutation. Loads go through land instead.
func (s *Store) finish(o *op, fn func()) error {
	s.mu.Lock()
	if !s.releaseLocked(o) {
		s.trimLocked()
		s.mu.Unlock()
		log.Debug("dropping chat result from an ended session", "op", o.name)
		return domain.ErrSessionChanged
	}
	if fn != nil {
		s.recordLocked(fn)
	}
	s.trimLocked()
	s.err = nil
	s.mu.Unlock()
	s.notify()
	return nil
}

// land stores a loaded list through set and replays the mutations that
// finished while it was loading.
func (s *Store) land(o *op, set func()) error {
	s.mu.Lock()
	if !s.releaseLocked(o) {
		s.trimLocked()
		s.mu.Unlock()
		log.Debug("dropping chat list from an ended session", "op", o.name)
		return domain.ErrSessionChanged
	}
	set()
	for _, c := range s.journal {
		if c.seq > o.since {
			c.apply()
		}
	}
	s.trimLocked()
	s.err = nil
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Store) trimLocked() {
	if s.fetching == 0 {
		s.journal = nil
	}
}

// abort releases o and records err without touching the lists.
func (s *Store) abort(o *op, err error) error {
	s.mu.Lock()
	live := s.releaseLocked(o)
	s.trimLocked()
	s.mu.Unlock()
	if !live {
		return domain.ErrSessionChanged
	}
	return s.fail(o.name, err)
}

func (s *Store) fail(name string, err error) error {
	log.Error("chat action failed", "op", name, "err", err)
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.notify()
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Store) checkContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", domain.ErrEmptyContent
	}
	if s.maxChars > 0 && util.CountVisibleChars(content) > s.maxChars {
		return "", fmt.Errorf("%w: %d characters allowed", domain.ErrTooLong, s.maxChars)
	}
	return content, nil
}

// Fetch replaces the viewer's chat list. On failure the previous list
// stays and the error slot is set.
func (s *Store) Fetch(ctx context.Context) ([]domain.Chat, error) {
	o, err := s.begin("fetch chats", "", true)
	if err != nil {
		return nil, err
	}
	list, err := s.api.Chats(ctx)
	if err != nil {
		return nil, s.abort(o, err)
	}
	if err := s.land(o, func() { s.chats = list }); err != nil {
		return nil, err
	}
	return list, nil
}

// FetchGroups lists every group chat for browsing.
func (s *Store) FetchGroups(ctx context.Context) ([]domain.Chat, error) {
	o, err := s.begin("fetch groups", "", true)
	if err != nil {
		return nil, err
	}
	list, err := s.api.GroupChats(ctx)
	if err != nil {
		return nil, s.abort(o, err)
	}
	if err := s.land(o, func() { s.groups = list }); err != nil {
		return nil, err
	}
	return list, nil
}

// SearchGroups replaces the group listing with the groups matching query.
// An empty query lists every group.
func (s *Store) SearchGroups(ctx context.Context, query string) ([]domain.Chat, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.FetchGroups(ctx)
	}
	o, err := s.begin("search groups", "", true)
	if err != nil {
		return nil, err
	}
	list, err := s.api.SearchGroupChats(ctx, query)
	if err != nil {
		return nil, s.abort(o, err)
	}
	if err := s.land(o, func() { s.groups = list }); err != nil {
		return nil, err
	}
	return list, nil
}

// FetchMessages opens chatId and loads its messages. An answer for a chat
// that is no longer open is dropped.
func (s *Store) FetchMessages(ctx context.Context, chatId string) ([]domain.Message, error) {
	if chatId == "" {
		return nil, s.fail("fetch messages", domain.ErrNoChat)
	}
	s.Select(chatId)
	o, err := s.begin("fetch messages", "", true)
	if err != nil {
		return nil, err
	}
	list, err := s.api.Messages(ctx, chatId)
	if err != nil {
		return nil, s.abort(o, err)
	}
	if err := s.land(o, func() {
		if s.current == chatId {
			s.messages = list
		} else {
			log.Debug("dropping messages of a closed chat", "chat", chatId)
		}
	}); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) addMessageLocked(m domain.Message) {
	if m.ChatId != s.current {
		return
	}
	if _, ok := s.messageLocked(m.MessageId); !ok {
		s.messages = append(s.messages, m)
	}
}

// Send posts content to chatId, or to the open chat when chatId is empty,
// and appends the stored message if that chat is open.
func (s *Store) Send(ctx context.Context, chatId, content string) (domain.Message, error) {
	if chatId == "" {
		chatId = s.CurrentId()
	}
	if chatId == "" {
		return domain.Message{}, s.fail("send message", domain.ErrNoChat)
	}
	content, err := s.checkContent(content)
	if err != nil {
		return domain.Message{}, s.fail("send message", err)
	}
	o, err := s.begin("send message", "", false)
	if err != nil {
		return domain.Message{}, err
	}

	msg, err := s.api.SendMessage(ctx, domain.CreateMessage{ChatId: chatId, Content: content})
	if err != nil {
		return domain.Message{}, s.abort(o, err)
	}
	if msg.SenderId == "" {
		msg.SenderId = o.actor.Id
	}
	if err := s.finish(o, func() { s.addMessageLocked(msg) }); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// EditMessage replaces the content of one of the viewer's messages.
func (s *Store) EditMessage(ctx context.Context, messageId, content string) error {
	content, err := s.checkContent(content)
	if err != nil {
		return s.fail("edit message", err)
	}
	o, err := s.begin("edit message", "message:"+messageId, false)
	if err != nil {
		return err
	}
	s.mu.Lock()
	m, known := s.messageLocked(messageId)
	s.mu.Unlock()
	if known && m.SenderId != o.actor.Id {
		return s.abort(o, domain.ErrForbidden)
	}

	if err := s.api.UpdateMessage(ctx, messageId, domain.UpdateMessage{Content: content}); err != nil {
		return s.abort(o, err)
	}
	return s.finish(o, func() {
		for i := range s.messages {
			if s.messages[i].MessageId == messageId {
				s.messages[i].Content = content
				s.messages[i].Edited = true
			}
		}
	})
}

// DeleteMessage removes a message after confirmation. Only the sender or
// an admin may delete. A message already gone on the server counts as
// deleted.
func (s *Store) DeleteMessage(ctx context.Context, messageId string, confirm ConfirmFunc) error {
	if confirm == nil || !confirm("delete message", messageId) {
		return domain.ErrNotConfirmed
	}
	o, err := s.begin("delete message", "message:"+messageId, false)
	if err != nil {
		return err
	}
	s.mu.Lock()
	m, known := s.messageLocked(messageId)
	s.mu.Unlock()
	if known && !o.actor.Owns(m.SenderId) {
		return s.abort(o, domain.ErrForbidden)
	}

	if err := s.api.DeleteMessage(ctx, messageId); err != nil && !api.IsNotFound(err) {
		return s.abort(o, err)
	}
	return s.finish(o, func() {
		kept := s.messages[:0:0]
		for _, m := range s.messages {
			if m.MessageId != messageId {
				kept = append(kept, m)
			}
		}
		s.messages = kept
	})
}

func upsertChat(list []domain.Chat, c domain.Chat) []domain.Chat {
	for i := range list {
		if list[i].ChatId == c.ChatId {
			list[i] = c
			return list
		}
	}
	return append(list, c)
}

func dropChat(list []domain.Chat, chatId string) []domain.Chat {
	var kept []domain.Chat
	for _, c := range list {
		if c.ChatId != chatId {
			kept = append(kept, c)
		}
	}
	return kept
}

// CreateGroup creates a group owned by the viewer with memberIds as the
// first members and adds it to the chat list.
func (s *Store) CreateGroup(ctx context.Context, name, description string, memberIds []string) (domain.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Chat{}, s.fail("create group", domain.ErrEmptyContent)
	}
	o, err := s.begin("create group", "", false)
	if err != nil {
		return domain.Chat{}, err
	}

	seen := map[string]bool{o.actor.Id: true}
	in := domain.CreateGroupChat{
		GroupName:      name,
		Description:    strings.TrimSpace(description),
		InitialUserIds: []string{},
	}
	for _, id := range memberIds {
		id = strings.TrimSpace(id)
		if id != "" && !seen[id] {
			seen[id] = true
			in.InitialUserIds = append(in.InitialUserIds, id)
		}
	}

	c, err := s.api.CreateGroupChat(ctx, in)
	if err != nil {
		return domain.Chat{}, s.abort(o, err)
	}
	if c.OwnerId == "" {
		c.OwnerId = o.actor.Id
	}
	if err := s.finish(o, func() { s.chats = upsertChat(s.chats, c) }); err != nil {
		return domain.Chat{}, err
	}
	return c, nil
}

// ownerCheck rejects changes to a known group the actor does not own.
// Chats missing from the local lists are left to the server to judge.
func (s *Store) ownerCheck(o *op, chatId string) error {
	s.mu.Lock()
	c, known := s.chatLocked(chatId)
	s.mu.Unlock()
	if known && c.OwnerId != "" && !o.actor.Owns(c.OwnerId) {
		return domain.ErrForbidden
	}
	return nil
}

// UpdateGroup renames a group or changes its description. Empty values
// keep the current ones.
func (s *Store) UpdateGroup(ctx context.Context, chatId, name, description string) error {
	in := domain.UpdateChat{Name: strings.TrimSpace(name), Description: strings.TrimSpace(description)}
	if in.Name == "" && in.Description == "" {
		return s.fail("update group", domain.ErrEmptyContent)
	}
	o, err := s.begin("update group", "chat:"+chatId, false)
	if err != nil {
		return err
	}
	if err := s.ownerCheck(o, chatId); err != nil {
		return s.abort(o, err)
	}

	if err := s.api.UpdateChat(ctx, chatId, in); err != nil {
		return s.abort(o, err)
	}
	return s.finish(o, func() {
		for _, list := range [][]domain.Chat{s.chats, s.groups} {
			for i := range list {
				if list[i].ChatId != chatId {
					continue
				}
				if in.Name != "" {
					list[i].Name = in.Name
				}
				if in.Description != "" {
					list[i].Description = in.Description
				}
			}
		}
	})
}

// DeleteGroup removes a group after confirmation and closes it if open.
// A group already gone on the server counts as deleted.
func (s *Store) DeleteGroup(ctx context.Context, chatId string, confirm ConfirmFunc) error {
	if confirm == nil || !confirm("delete group", chatId) {
		return domain.ErrNotConfirmed
	}
	o, err := s.begin("delete group", "chat:"+chatId, false)
	if err != nil {
		return err
	}
	if err := s.ownerCheck(o, chatId); err != nil {
		return s.abort(o, err)
	}

	if err := s.api.DeleteChat(ctx, chatId); err != nil && !api.IsNotFound(err) {
		return s.abort(o, err)
	}
	return s.finish(o, func() {
		s.chats = dropChat(s.chats, chatId)
		s.groups = dropChat(s.groups, chatId)
		s.incoming = dropRequests(s.incoming, func(r domain.ChatJoinRequest) bool { return r.ChatId == chatId })
		if s.current == chatId {
			s.current = ""
			s.messages = nil
		}
	})
}

func dropRequests(list []domain.ChatJoinRequest, match func(domain.ChatJoinRequest) bool) []domain.ChatJoinRequest {
	var kept []domain.ChatJoinRequest
	for _, r := range list {
		if !match(r) {
			kept = append(kept, r)
		}
	}
	return kept
}

func upsertRequest(list []domain.ChatJoinRequest, req domain.ChatJoinRequest) []domain.ChatJoinRequest {
	for i := range list {
		if list[i].ChatId == req.ChatId && list[i].UserId == req.UserId {
			list[i] = req
			return list
		}
	}
	return append(list, req)
}

// RequestJoin asks the owner of a group to let the viewer in. When the
// server reports a conflict, the viewer's requests are reloaded to tell an
// existing request from a membership.
func (s *Store) RequestJoin(ctx context.Context, chatId string) (domain.ChatJoinRequest, error) {
	o, err := s.begin("join group", "join:"+chatId, false)
	if err != nil {
		return domain.ChatJoinRequest{}, err
	}
	s.mu.Lock()
	c, known := s.chatLocked(chatId)
	s.mu.Unlock()
	if known && (c.HasMember(o.actor.Id) || c.OwnerId == o.actor.Id) {
		return domain.ChatJoinRequest{}, s.abort(o, domain.ErrAlreadyMember)
	}

	req, err := s.api.RequestJoinChat(ctx, chatId)
	if err != nil && !api.IsConflict(err) {
		return domain.ChatJoinRequest{}, s.abort(o, err)
	}
	if err != nil {
		mine, lerr := s.api.MyJoinRequests(ctx)
		if lerr != nil {
			return domain.ChatJoinRequest{}, s.abort(o, errors.Join(err, lerr))
		}
		found := false
		for _, r := range mine {
			if r.ChatId == chatId {
				req, found = r, true
				break
			}
		}
		if !found {
			return domain.ChatJoinRequest{}, s.abort(o, domain.ErrAlreadyMember)
		}
	}
	if req.UserId == "" {
		req.UserId = o.actor.Id
	}
	if req.ChatId == "" {
		req.ChatId = chatId
	}
	if req.Status == "" {
		req.Status = "Pending"
	}
	if err := s.finish(o, func() { s.outgoing = upsertRequest(s.outgoing, req) }); err != nil {
		return domain.ChatJoinRequest{}, err
	}
	return req, nil
}

// FetchIncoming loads the pending requests for every group the viewer owns.
func (s *Store) FetchIncoming(ctx context.Context) ([]domain.ChatJoinRequest, error) {
	return s.loadIncoming(ctx, "join requests", s.api.OwnerJoinRequests)
}

// FetchChatRequests loads the pending requests of one group into the
// incoming list.
func (s *Store) FetchChatRequests(ctx context.Context, chatId string) ([]domain.ChatJoinRequest, error) {
	return s.loadIncoming(ctx, "chat join requests", func(ctx context.Context) ([]domain.ChatJoinRequest, error) {
		return s.api.ChatJoinRequests(ctx, chatId)
	})
}

func (s *Store) loadIncoming(ctx context.Context, name string,
	call func(context.Context) ([]domain.ChatJoinRequest, error)) ([]domain.ChatJoinRequest, error) {
	o, err := s.begin(name, "", true)
	if err != nil {
		return nil, err
	}
	list, err := call(ctx)
	if err != nil {
		return nil, s.abort(o, err)
	}
	if err := s.land(o, func() { s.incoming = list }); err != nil {
		return nil, err
	}
	return list, nil
}

// FetchOutgoing loads the viewer's own pending requests.
func (s *Store) FetchOutgoing(ctx context.Context) ([]domain.ChatJoinRequest, error) {
	o, err := s.begin("my join requests", "", true)
	if err != nil {
		return nil, err
	}
	list, err := s.api.MyJoinRequests(ctx)
	if err != nil {
		return nil, s.abort(o, err)
	}
	if err := s.land(o, func() { s.outgoing = list }); err != nil {
		return nil, err
	}
	return list, nil
}

// AcceptJoin lets the requester into the group and drops the request from
// the incoming list.
func (s *Store) AcceptJoin(ctx context.Context, requestId string) error {
	return s.consume(ctx, "accept join", requestId, true, s.api.AcceptJoinRequest)
}

// DeclineJoin turns the requester away and drops the request from the
// incoming list.
func (s *Store) DeclineJoin(ctx context.Context, requestId string) error {
	return s.consume(ctx, "decline join", requestId, false, s.api.DeclineJoinRequest)
}

func (s *Store) consume(ctx context.Context, name, requestId string, accept bool,
	call func(context.Context, string) error) error {
	o, err := s.begin(name, "request:"+requestId, false)
	if err != nil {
		return err
	}
	var req domain.ChatJoinRequest
	s.mu.Lock()
	for _, r := range s.incoming {
		if r.Id == requestId {
			req = r
			break
		}
	}
	s.mu.Unlock()

	if err := call(ctx, requestId); err != nil {
		return s.abort(o, err)
	}
	return s.finish(o, func() {
		s.incoming = dropRequests(s.incoming, func(r domain.ChatJoinRequest) bool { return r.Id == requestId })
		if !accept || req.ChatId == "" {
			return
		}
		for _, list := range [][]domain.Chat{s.chats, s.groups} {
			for i := range list {
				if list[i].ChatId == req.ChatId && !list[i].HasMember(req.UserId) {
					list[i].Members = append(list[i].Members, domain.ChatMember{ChatId: req.ChatId, UserId: req.UserId})
				}
			}
		}
	})
}

// CancelJoin withdraws one of the viewer's requests after confirmation. A
// request already gone on the server counts as withdrawn.
func (s *Store) CancelJoin(ctx context.Context, requestId string, confirm ConfirmFunc) error {
	if confirm == nil || !confirm("cancel join request", requestId) {
		return domain.ErrNotConfirmed
	}
	o, err := s.begin("cancel join", "request:"+requestId, false)
	if err != nil {
		return err
	}
	if err := s.api.CancelJoinRequest(ctx, requestId); err != nil && !api.IsNotFound(err) {
		return s.abort(o, err)
	}
	return s.finish(o, func() {
		s.outgoing = dropRequests(s.outgoing, func(r domain.ChatJoinRequest) bool { return r.Id == requestId })
	})
}
