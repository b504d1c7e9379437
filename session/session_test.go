package session

import (
	"testing"

	"github.com/refconnect/refterm/domain"
)

func TestSessionLifecycle(t *testing.T) {
	s := New()
	if s.Actor() != nil {
		t.Fatal("Expected no actor before Begin")
	}

	start := s.Epoch()
	s.Begin(domain.Actor{Id: "u1", Role: domain.RoleReferee}, "tok")

	if a := s.Actor(); a == nil || a.Id != "u1" {
		t.Fatalf("Expected actor u1, got %+v", a)
	}
	if s.Token() != "tok" {
		t.Errorf("Expected token 'tok', got %q", s.Token())
	}
	if s.Still(start) {
		t.Error("Expected epoch to change on Begin")
	}

	_, epoch := s.Current()
	s.End()
	if s.Actor() != nil || s.Token() != "" {
		t.Error("Expected End to clear actor and token")
	}
	if s.Still(epoch) {
		t.Error("Expected epoch to change on End")
	}
}

func TestActorIsACopy(t *testing.T) {
	s := New()
	s.Begin(domain.Actor{Id: "u1"}, "tok")
	a := s.Actor()
	a.Id = "mutated"
	if s.Actor().Id != "u1" {
		t.Error("Expected session actor to be unaffected by caller mutation")
	}
}
