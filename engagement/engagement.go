// Package engagement tracks the viewer's likes with optimistic updates.
package engagement

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/refconnect/refterm/api"
	"github.com/refconnect/refterm/domain"
	"github.com/refconnect/refterm/session"
)

// Backend is the part of the API client the tracker drives.
type Backend interface {
	Like(ctx context.Context, postId string) error
	Unlike(ctx context.Context, postId string) error
	LikeExists(ctx context.Context, postId string) (bool, error)
}

// State is the displayed like state of one post. Known is set once the
// server has confirmed Liked; before that Liked is a guess from a payload.
type State struct {
	Liked   bool
	Count   int
	Known   bool
	Pending bool
}

type entry struct {
	liked    bool
	known    bool
	count    int
	inflight bool
	gen      uint64
}

func (e *entry) state() State {
	return State{Liked: e.liked, Count: e.count, Known: e.known, Pending: e.inflight}
}

type Option func(*Tracker)

// WithErrorHandler receives every failed like or unlike after rollback.
func WithErrorHandler(fn func(postId string, err error)) Option {
	return func(t *Tracker) { t.onError = fn }
}

// Tracker holds per-post like state for one session.
type Tracker struct {
	api     Backend
	session *session.State
	onError func(postId string, err error)

	mu        sync.Mutex
	epoch     uint64
	posts     map[string]*entry
	err       error
	listeners []func(postId string, st State)
}

func New(backend Backend, sess *session.State, opts ...Option) *Tracker {
	t := &Tracker{
		api:     backend,
		session: sess,
		epoch:   sess.Epoch(),
		posts:   map[string]*entry{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Subscribe registers fn to run after every change of a post's state.
func (t *Tracker) Subscribe(fn func(postId string, st State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

func (t *Tracker) emit(postId string, st State) {
	t.mu.Lock()
	listeners := append([]func(string, State){}, t.listeners...)
	t.mu.Unlock()
	for _, fn := range listeners {
		fn(postId, st)
	}
}

// entryLocked returns the entry for postId, dropping state from an ended
// session first. Caller holds mu.
func (t *Tracker) entryLocked(epoch uint64, postId string) *entry {
	if t.epoch != epoch {
		t.epoch = epoch
		t.posts = map[string]*entry{}
		t.err = nil
	}
	e, ok := t.posts[postId]
	if !ok {
		e = &entry{}
		t.posts[postId] = e
	}
	return e
}

// Seed loads the count and a liked guess from a post payload. Posts with a
// call in flight are left alone, and a server-confirmed liked flag is kept.
func (t *Tracker) Seed(post domain.Post) {
	actor, epoch := t.session.Current()
	t.mu.Lock()
	e := t.entryLocked(epoch, post.PostId)
	if e.inflight {
		t.mu.Unlock()
		return
	}
	e.count = post.LikeTotal()
	if !e.known && actor != nil {
		e.liked = post.LikedBy(actor.Id)
	}
	st := e.state()
	t.mu.Unlock()
	t.emit(post.PostId, st)
}

// State returns the displayed state of postId.
func (t *Tracker) State(postId string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.posts[postId]; ok && t.epoch == t.session.Epoch() {
		return e.state()
	}
	return State{}
}

// Err returns the last like failure.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// IsLiked asks the server whether the viewer likes postId and makes the
// answer authoritative for later toggles. An answer overtaken by a like or
// unlike is dropped in favour of the toggle's result.
func (t *Tracker) IsLiked(ctx context.Context, postId string) (bool, error) {
	actor, epoch := t.session.Current()
	if actor == nil {
		return false, domain.ErrNotAuthenticated
	}

	t.mu.Lock()
	e := t.entryLocked(epoch, postId)
	gen, busy := e.gen, e.inflight
	t.mu.Unlock()

	liked, err := t.api.LikeExists(ctx, postId)
	if err != nil {
		log.Warn("like check failed", "post", postId, "err", err)
		return false, fmt.Errorf("like check: %w", err)
	}
	if !t.session.Still(epoch) {
		return false, domain.ErrSessionChanged
	}

	t.mu.Lock()
	e = t.entryLocked(epoch, postId)
	if busy || e.inflight || e.gen != gen {
		current := e.liked
		t.mu.Unlock()
		log.Debug("dropping like check overtaken by a toggle", "post", postId)
		return current, nil
	}
	e.liked = liked
	e.known = true
	st := e.state()
	t.mu.Unlock()
	t.emit(postId, st)
	return liked, nil
}

// Like marks postId liked and bumps the count before the server answers.
// On failure both are rolled back.
func (t *Tracker) Like(ctx context.Context, postId string) error {
	return t.set(ctx, postId, true)
}

// Unlike clears the like and decrements the count, clamped at zero.
func (t *Tracker) Unlike(ctx context.Context, postId string) error {
	return t.set(ctx, postId, false)
}

// Toggle flips the displayed state and returns the state it asked for.
func (t *Tracker) Toggle(ctx context.Context, postId string) (bool, error) {
	want := !t.State(postId).Liked
	return want, t.set(ctx, postId, want)
}

func (t *Tracker) set(ctx context.Context, postId string, want bool) error {
	actor, epoch := t.session.Current()
	if actor == nil {
		t.mu.Lock()
		t.err = domain.ErrNotAuthenticated
		t.mu.Unlock()
		return domain.ErrNotAuthenticated
	}

	t.mu.Lock()
	e := t.entryLocked(epoch, postId)
	if e.inflight {
		t.mu.Unlock()
		return domain.ErrInFlight
	}
	if e.known && e.liked == want {
		t.mu.Unlock()
		return nil
	}
	prev := *e
	e.gen++
	e.liked = want
	if want {
		e.count++
	} else {
		e.count = max(e.count-1, 0)
	}
	e.inflight = true
	st := e.state()
	t.mu.Unlock()
	t.emit(postId, st)

	var err error
	if want {
		err = t.api.Like(ctx, postId)
	} else {
		err = t.api.Unlike(ctx, postId)
	}

	t.mu.Lock()
	if t.epoch != epoch || !t.session.Still(epoch) {
		t.mu.Unlock()
		return domain.ErrSessionChanged
	}
	e.inflight = false

	// 409 on like and 404 on unlike mean the server was already there. Its
	// count already reflects that, so only the flag changes.
	alreadyThere := (want && api.IsConflict(err)) || (!want && api.IsNotFound(err))
	switch {
	case err == nil:
		e.known = true
		t.err = nil
	case alreadyThere:
		e.liked = want
		e.known = true
		e.count = prev.count
		t.err = nil
		err = nil
	default:
		e.liked = prev.liked
		e.known = prev.known
		e.count = prev.count
		t.err = err
	}
	st = e.state()
	t.mu.Unlock()
	t.emit(postId, st)

	if err != nil {
		action := "unlike"
		if want {
			action = "like"
		}
		log.Error("rolled back optimistic "+action, "post", postId, "err", err)
		if t.onError != nil {
			t.onError(postId, err)
		}
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}
