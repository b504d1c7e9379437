package domain

import "testing"

func intPtr(n int) *int { return &n }

func TestResolveLikeCount(t *testing.T) {
	likes := []Like{{UserId: "a"}, {UserId: "b"}}

	tests := []struct {
		name  string
		count *int
		likes []Like
		want  int
	}{
		{"explicit count wins", intPtr(7), likes, 7},
		{"explicit zero wins", intPtr(0), likes, 0},
		{"falls back to list", nil, likes, 2},
		{"nothing", nil, nil, 0},
		{"negative clamps", intPtr(-3), nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveLikeCount(tt.count, tt.likes); got != tt.want {
				t.Errorf("ResolveLikeCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestActorOwns(t *testing.T) {
	owner := &Actor{Id: "u1", Role: RoleReferee}
	admin := &Actor{Id: "root", Role: RoleAdmin}
	var nobody *Actor

	if !owner.Owns("u1") {
		t.Error("Expected owner to own their post")
	}
	if owner.Owns("u2") {
		t.Error("Expected non-owner to be rejected")
	}
	if !admin.Owns("u2") {
		t.Error("Expected admin to own any post")
	}
	if nobody.Owns("u1") {
		t.Error("Expected nil actor to own nothing")
	}
}

func TestParseRole(t *testing.T) {
	if ParseRole("admin") != RoleAdmin {
		t.Error("Expected admin role")
	}
	if ParseRole("superuser") != RoleVisitor {
		t.Error("Expected unknown role to map to visitor")
	}
}

func TestProfileVisibility(t *testing.T) {
	yes, no := true, false
	if (&Profile{}).Visibility() != VisibilityUnknown {
		t.Error("Expected unknown visibility without flag")
	}
	if (&Profile{UserRef: UserRef{IsProfilePublic: &yes}}).Visibility() != VisibilityPublic {
		t.Error("Expected public visibility")
	}
	if (&Profile{UserRef: UserRef{IsProfilePublic: &no}}).Visibility() != VisibilityPrivate {
		t.Error("Expected private visibility")
	}
}

func TestFollowStatusString(t *testing.T) {
	if StatusUnknown.String() != "unknown" {
		t.Errorf("Expected 'unknown', got %s", StatusUnknown.String())
	}
	if StatusRequested.String() != "requested" {
		t.Errorf("Expected 'requested', got %s", StatusRequested.String())
	}
}
