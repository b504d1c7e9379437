// Package session holds the authenticated identity for one client session.
package session

import (
	"sync"

	"github.com/refconnect/refterm/domain"
)

// State is the session container. The zero value is a logged-out session.
type State struct {
	mu    sync.RWMutex
	actor *domain.Actor
	token string
	epoch uint64
}

func New() *State {
	return &State{}
}

// Begin starts a session for actor. Any previous session is ended.
func (s *State) Begin(actor domain.Actor, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := actor
	s.actor = &a
	s.token = token
	s.epoch++
}

// End tears the session down. Results of calls started before End are
// discarded by epoch comparison.
func (s *State) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actor = nil
	s.token = ""
	s.epoch++
}

// Actor returns a copy of the current actor, or nil when logged out.
func (s *State) Actor() *domain.Actor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.actor == nil {
		return nil
	}
	a := *s.actor
	return &a
}

// Token implements api.TokenSource.
func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *State) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Current returns the actor together with the epoch it belongs to.
func (s *State) Current() (*domain.Actor, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.actor == nil {
		return nil, s.epoch
	}
	a := *s.actor
	return &a, s.epoch
}

// Still reports whether the session that produced epoch is still active.
func (s *State) Still(epoch uint64) bool {
	return s.Epoch() == epoch
}
