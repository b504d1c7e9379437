package display

import (
	"testing"

	"github.com/refconnect/refterm/domain"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		ref  *domain.UserRef
		want string
	}{
		{"nil user", nil, "Unknown User"},
		{"first and last", &domain.UserRef{FirstName: "Pierluigi", LastName: "Collina", UserName: "pc"}, "Pierluigi Collina"},
		{"first only", &domain.UserRef{FirstName: "Howard", UserName: "hw"}, "Howard"},
		{"user name", &domain.UserRef{UserName: "refmark"}, "refmark"},
		{"empty", &domain.UserRef{}, "Unknown User"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayName(tt.ref); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestHandle(t *testing.T) {
	if got := Handle(nil); got != "unknown" {
		t.Errorf("Expected unknown, got %q", got)
	}
	if got := Handle(&domain.UserRef{UserName: "refmark"}); got != "refmark" {
		t.Errorf("Expected refmark, got %q", got)
	}
}

func TestAssetURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		raw  string
		want string
	}{
		{"empty", "http://host/api", "", ""},
		{"absolute", "http://host/api", "https://cdn.example.com/a.png", "https://cdn.example.com/a.png"},
		{"uploads under api base", "http://host/api", "/uploads/a.png", "http://host/uploads/a.png"},
		{"api path under api base", "http://host/api/", "/api/files/a.png", "http://host/api/files/a.png"},
		{"other path under api base", "http://host/api", "/img/a.png", "http://host/api/img/a.png"},
		{"relative without slash", "http://host", "uploads/a.png", "http://host/uploads/a.png"},
		{"base with trailing slash", "http://host/", "/a.png", "http://host/a.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AssetURL(tt.base, tt.raw); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestAdapterFallsBackToIds(t *testing.T) {
	a := New("http://host/api")

	u := a.Requester(domain.FollowRequest{FollowerId: "alice"})
	if u.Id != "alice" || u.Name != "Unknown User" || u.UserName != "unknown" {
		t.Errorf("Expected id fallback with unknown names, got %+v", u)
	}

	u = a.Follower(domain.FollowEdge{
		FollowerId: "bob",
		Follower:   &domain.UserRef{Id: "bob", UserName: "bob", ProfileImageUrl: "/uploads/bob.png"},
	})
	if u.AvatarURL != "http://host/uploads/bob.png" {
		t.Errorf("Expected normalized avatar, got %q", u.AvatarURL)
	}
}

func TestPostRow(t *testing.T) {
	count := 3
	row := New("http://host/api").Post(domain.Post{
		PostId:      "post-1",
		UserId:      "bob",
		Description: "match report",
		LikeCount:   &count,
		Comments:    []domain.Comment{{CommentId: "c1"}},
	})
	if row.Likes != 3 || row.Comments != 1 {
		t.Errorf("Expected 3 likes and 1 comment, got %d and %d", row.Likes, row.Comments)
	}
	if row.Author.Id != "bob" {
		t.Errorf("Expected author id bob, got %q", row.Author.Id)
	}
}
