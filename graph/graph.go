// Package graph drives the viewer's follow relationships: follow, request,
// unfollow, cancel, accept and decline, and derives the follow status
// shown to the user.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/refconnect/refterm/api"
	"github.com/refconnect/refterm/domain"
	"github.com/refconnect/refterm/session"
)

// Backend is the part of the API client the machine drives.
type Backend interface {
	Follow(ctx context.Context, edge domain.FollowEdge) error
	Unfollow(ctx context.Context, edge domain.FollowEdge) error
	SendFollowRequest(ctx context.Context, req domain.FollowRequest) error
	CancelFollowRequest(ctx context.Context, req domain.FollowRequest) error
	AcceptFollowRequest(ctx context.Context, req domain.FollowRequest) error
	DeclineFollowRequest(ctx context.Context, req domain.FollowRequest) error
	PendingFollowRequests(ctx context.Context) ([]domain.FollowRequest, error)
	Followers(ctx context.Context, userId string) ([]domain.FollowEdge, error)
	Following(ctx context.Context, userId string) ([]domain.FollowEdge, error)
}

// ConfirmFunc asks the user to confirm a destructive action on target.
type ConfirmFunc func(action, targetId string) bool

// Confirmed approves every action. For callers that collected consent up
// front, like a CLI --yes flag.
func Confirmed(string, string) bool { return true }

type Option func(*Machine)

func WithStatusSource(src StatusSource) Option {
	return func(m *Machine) { m.source = src }
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// Machine is the follow state container for one session. Only its own
// methods write the caches; views read snapshots.
type Machine struct {
	api     Backend
	session *session.State
	source  StatusSource
	now     func() time.Time

	mu         sync.Mutex
	epoch      uint64
	status     map[string]domain.FollowStatus
	outgoing   map[string]domain.FollowRequest
	visibility map[string]domain.Visibility
	pending    []domain.FollowRequest
	inflight   map[string]bool
	gen        map[string]uint64
	err        error
	listeners  []func()
}

func New(backend Backend, sess *session.State, opts ...Option) *Machine {
	m := &Machine{
		api:     backend,
		session: sess,
		now:     time.Now,
	}
	m.reset(sess.Epoch())
	for _, opt := range opts {
		opt(m)
	}
	if m.source == nil {
		m.source = FollowingScan{Backend: backend}
	}
	return m
}

func (m *Machine) reset(epoch uint64) {
	m.epoch = epoch
	m.status = map[string]domain.FollowStatus{}
	m.outgoing = map[string]domain.FollowRequest{}
	m.visibility = map[string]domain.Visibility{}
	m.pending = nil
	m.inflight = map[string]bool{}
	m.gen = map[string]uint64{}
	m.err = nil
}

// Subscribe registers fn to run after every state change.
func (m *Machine) Subscribe(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Machine) notify() {
	m.mu.Lock()
	listeners := append([]func(){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Status returns the last derived status for target, StatusUnknown if it
// has not been checked in this session.
func (m *Machine) Status(targetId string) domain.FollowStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status[targetId]
}

// Pending returns a snapshot of the incoming requests.
func (m *Machine) Pending() []domain.FollowRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.FollowRequest(nil), m.pending...)
}

// Err returns the last failure, nil after a success.
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Observe records the visibility of a fetched profile.
func (m *Machine) Observe(p *domain.Profile) {
	if p == nil || p.Id == "" {
		return
	}
	m.SetVisibility(p.Id, p.Visibility())
}

func (m *Machine) SetVisibility(targetId string, v domain.Visibility) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncEpoch(m.session.Epoch())
	m.visibility[targetId] = v
}

func (m *Machine) Visibility(targetId string) domain.Visibility {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visibility[targetId]
}

// syncEpoch drops caches belonging to an earlier session. Caller holds mu.
func (m *Machine) syncEpoch(epoch uint64) {
	if m.epoch != epoch {
		m.reset(epoch)
	}
}

// op is one guarded mutation: precondition checks, in-flight guard and the
// session guard around the network call.
type op struct {
	name   string
	key    string
	target string
	actor  *domain.Actor
	epoch  uint64
}

func (m *Machine) begin(name, key, target string) (*op, error) {
	actor, epoch := m.session.Current()
	if actor == nil {
		m.fail(name, target, domain.ErrNotAuthenticated)
		return nil, domain.ErrNotAuthenticated
	}
	if target == actor.Id {
		m.fail(name, target, domain.ErrSelfFollow)
		return nil, domain.ErrSelfFollow
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncEpoch(epoch)
	if m.inflight[key] {
		return nil, domain.ErrInFlight
	}
	m.inflight[key] = true
	m.gen[key]++
	return &op{name: name, key: key, target: target, actor: actor, epoch: epoch}, nil
}

// finish releases the in-flight guard and applies fn if the session that
// started the op is still active. It returns ErrSessionChanged otherwise.
func (m *Machine) finish(o *op, fn func()) error {
	m.mu.Lock()
	if m.epoch == o.epoch {
		delete(m.inflight, o.key)
	}
	if !m.session.Still(o.epoch) || m.epoch != o.epoch {
		m.mu.Unlock()
		log.Debug("dropping follow result from an ended session", "op", o.name, "target", o.target)
		return domain.ErrSessionChanged
	}
	if fn != nil {
		fn()
	}
	m.err = nil
	m.mu.Unlock()
	m.notify()
	return nil
}

// abort releases the guard and records err without touching the caches.
func (m *Machine) abort(o *op, err error) error {
	m.mu.Lock()
	if m.epoch == o.epoch {
		delete(m.inflight, o.key)
	}
	stale := !m.session.Still(o.epoch) || m.epoch != o.epoch
	m.mu.Unlock()
	if stale {
		return domain.ErrSessionChanged
	}
	m.fail(o.name, o.target, err)
	return fmt.Errorf("%s: %w", o.name, err)
}

func (m *Machine) fail(name, target string, err error) {
	log.Error("follow action failed", "op", name, "target", target, "err", err)
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
	m.notify()
}

// Follow creates a follow edge to a public target.
func (m *Machine) Follow(ctx context.Context, targetId string) error {
	o, err := m.begin("follow", targetId, targetId)
	if err != nil {
		return err
	}
	if m.Visibility(targetId) == domain.VisibilityPrivate {
		return m.abort(o, domain.ErrTargetPrivate)
	}

	edge := domain.FollowEdge{FollowerId: o.actor.Id, FollowingId: targetId, FollowedAt: m.now()}
	err = m.api.Follow(ctx, edge)
	if err != nil && !api.IsConflict(err) {
		return m.abort(o, err)
	}
	// A conflict means the edge already exists.
	return m.finish(o, func() {
		m.status[targetId] = domain.StatusFollowing
		delete(m.outgoing, targetId)
	})
}

// SendFollowRequest proposes a follow to a private target.
func (m *Machine) SendFollowRequest(ctx context.Context, targetId string) error {
	o, err := m.begin("follow request", targetId, targetId)
	if err != nil {
		return err
	}
	if m.Visibility(targetId) == domain.VisibilityPublic {
		return m.abort(o, domain.ErrTargetPublic)
	}

	// The server requires an identifier and assigns its own. Later lookups go
	// by (follower, following) pair, so a mismatch is harmless.
	req := domain.FollowRequest{
		Id:          uuid.New().String(),
		FollowerId:  o.actor.Id,
		FollowingId: targetId,
		RequestedAt: m.now(),
	}
	err = m.api.SendFollowRequest(ctx, req)
	if err == nil {
		return m.finish(o, func() {
			m.status[targetId] = domain.StatusRequested
			m.outgoing[targetId] = req
		})
	}
	if !api.IsConflict(err) {
		return m.abort(o, err)
	}

	// Either an edge or a request already exists. Ask which.
	status, serr := m.source.FollowStatus(ctx, o.actor.Id, targetId)
	if serr != nil {
		return m.abort(o, errors.Join(err, serr))
	}
	return m.finish(o, func() {
		if status == domain.StatusFollowing {
			m.status[targetId] = domain.StatusFollowing
			delete(m.outgoing, targetId)
			return
		}
		m.status[targetId] = domain.StatusRequested
		m.outgoing[targetId] = req
	})
}

// Connect follows public targets and sends a request to everyone else.
func (m *Machine) Connect(ctx context.Context, targetId string) error {
	if m.Visibility(targetId) == domain.VisibilityPublic {
		return m.Follow(ctx, targetId)
	}
	return m.SendFollowRequest(ctx, targetId)
}

// Unfollow removes the viewer's edge to target after confirmation. An edge
// that is already gone counts as success.
func (m *Machine) Unfollow(ctx context.Context, targetId string, confirm ConfirmFunc) error {
	if confirm == nil || !confirm("unfollow", targetId) {
		return domain.ErrNotConfirmed
	}
	o, err := m.begin("unfollow", targetId, targetId)
	if err != nil {
		return err
	}

	edge := domain.FollowEdge{FollowerId: o.actor.Id, FollowingId: targetId, FollowedAt: m.now()}
	if err := m.api.Unfollow(ctx, edge); err != nil && !api.IsNotFound(err) {
		return m.abort(o, err)
	}
	return m.finish(o, func() {
		m.status[targetId] = domain.StatusNotFollowing
	})
}

// CancelFollowRequest withdraws the viewer's pending request to target after
// confirmation. A request that is already gone counts as success.
func (m *Machine) CancelFollowRequest(ctx context.Context, targetId string, confirm ConfirmFunc) error {
	if confirm == nil || !confirm("cancel request", targetId) {
		return domain.ErrNotConfirmed
	}
	o, err := m.begin("cancel request", targetId, targetId)
	if err != nil {
		return err
	}

	m.mu.Lock()
	req, known := m.outgoing[targetId]
	m.mu.Unlock()
	if !known {
		req = domain.FollowRequest{
			Id:          uuid.New().String(),
			FollowerId:  o.actor.Id,
			FollowingId: targetId,
			RequestedAt: m.now(),
		}
	}

	if err := m.api.CancelFollowRequest(ctx, req); err != nil && !api.IsNotFound(err) {
		return m.abort(o, err)
	}
	return m.finish(o, func() {
		m.status[targetId] = domain.StatusNotFollowing
		delete(m.outgoing, targetId)
	})
}

// AcceptFollowRequest approves the pending request from requester. requestId
// may be empty.
func (m *Machine) AcceptFollowRequest(ctx context.Context, requesterId, requestId string) error {
	return m.consume(ctx, "accept", requesterId, requestId, m.api.AcceptFollowRequest)
}

// RejectFollowRequest declines the pending request from requester.
func (m *Machine) RejectFollowRequest(ctx context.Context, requesterId, requestId string) error {
	return m.consume(ctx, "decline", requesterId, requestId, m.api.DeclineFollowRequest)
}

func (m *Machine) consume(ctx context.Context, name, requesterId, requestId string,
	call func(context.Context, domain.FollowRequest) error) error {
	o, err := m.begin(name, "incoming:"+requesterId, requesterId)
	if err != nil {
		return err
	}

	req := domain.FollowRequest{
		Id:          requestId,
		FollowerId:  requesterId,
		FollowingId: o.actor.Id,
		RequestedAt: m.now(),
	}
	m.mu.Lock()
	for _, p := range m.pending {
		if p.FollowerId == requesterId && (requestId == "" || p.Id == requestId) {
			req.RequestedAt = p.RequestedAt
			if req.Id == "" {
				req.Id = p.Id
			}
			break
		}
	}
	m.mu.Unlock()
	if req.Id == "" {
		req.Id = uuid.New().String()
	}

	if err := call(ctx, req); err != nil {
		return m.abort(o, err)
	}
	return m.finish(o, func() {
		var kept []domain.FollowRequest
		for _, p := range m.pending {
			if p.FollowerId != requesterId {
				kept = append(kept, p)
			}
		}
		m.pending = kept
	})
}

// CheckFollowStatus derives the viewer's status toward target from the
// server and caches it. An answer overtaken by a mutation on target is
// dropped and the cached status returned instead.
func (m *Machine) CheckFollowStatus(ctx context.Context, targetId string) (domain.FollowStatus, error) {
	actor, epoch := m.session.Current()
	if actor == nil {
		m.fail("check status", targetId, domain.ErrNotAuthenticated)
		return domain.StatusUnknown, domain.ErrNotAuthenticated
	}
	if actor.Id == targetId {
		return domain.StatusUnknown, domain.ErrSelfFollow
	}

	m.mu.Lock()
	m.syncEpoch(epoch)
	gen, busy := m.gen[targetId], m.inflight[targetId]
	m.mu.Unlock()

	status, err := m.source.FollowStatus(ctx, actor.Id, targetId)
	if !m.session.Still(epoch) {
		return domain.StatusUnknown, domain.ErrSessionChanged
	}
	if err != nil {
		m.fail("check status", targetId, err)
		return domain.StatusUnknown, fmt.Errorf("check status: %w", err)
	}

	m.mu.Lock()
	m.syncEpoch(epoch)
	if busy || m.inflight[targetId] || m.gen[targetId] != gen {
		// A mutation on target overlapped the lookup; its result wins.
		settled := m.status[targetId]
		m.mu.Unlock()
		log.Debug("dropping status answer overtaken by a mutation", "target", targetId)
		return settled, nil
	}
	switch status {
	case domain.StatusFollowing:
		delete(m.outgoing, targetId)
	case domain.StatusNotFollowing:
		// There is no sent-requests endpoint, so only requests sent from this
		// session can be recognised.
		if _, ok := m.outgoing[targetId]; ok {
			status = domain.StatusRequested
		}
	}
	m.status[targetId] = status
	m.err = nil
	m.mu.Unlock()
	m.notify()
	return status, nil
}

// GetPendingRequests refreshes and returns the incoming requests. On failure
// the previous list is kept.
func (m *Machine) GetPendingRequests(ctx context.Context) ([]domain.FollowRequest, error) {
	actor, epoch := m.session.Current()
	if actor == nil {
		m.fail("pending requests", "", domain.ErrNotAuthenticated)
		return nil, domain.ErrNotAuthenticated
	}

	reqs, err := m.api.PendingFollowRequests(ctx)
	if !m.session.Still(epoch) {
		return nil, domain.ErrSessionChanged
	}
	if err != nil {
		m.fail("pending requests", "", err)
		return m.Pending(), fmt.Errorf("pending requests: %w", err)
	}

	m.mu.Lock()
	m.syncEpoch(epoch)
	m.pending = append([]domain.FollowRequest(nil), reqs...)
	m.err = nil
	m.mu.Unlock()
	m.notify()
	return reqs, nil
}

// Followers lists the users following userId.
func (m *Machine) Followers(ctx context.Context, userId string) ([]domain.FollowEdge, error) {
	if m.session.Actor() == nil {
		return nil, domain.ErrNotAuthenticated
	}
	edges, err := m.api.Followers(ctx, userId)
	if err != nil {
		log.Error("failed to load followers", "user", userId, "err", err)
		return nil, fmt.Errorf("followers: %w", err)
	}
	return edges, nil
}

// Following lists the users userId follows.
func (m *Machine) Following(ctx context.Context, userId string) ([]domain.FollowEdge, error) {
	if m.session.Actor() == nil {
		return nil, domain.ErrNotAuthenticated
	}
	edges, err := m.api.Following(ctx, userId)
	if err != nil {
		log.Error("failed to load following", "user", userId, "err", err)
		return nil, fmt.Errorf("following: %w", err)
	}
	return edges, nil
}
