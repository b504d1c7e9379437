// Package display turns domain records into the flat rows the views and
// feeds render.
package display

import (
	"regexp"
	"strings"

	"github.com/refconnect/refterm/domain"
)

const (
	UnknownName   = "Unknown User"
	UnknownHandle = "unknown"
)

// User is one rendered user row.
type User struct {
	Id        string
	Name      string
	UserName  string
	AvatarURL string
}

// Post is one rendered feed row.
type Post struct {
	Id        string
	Author    User
	Text      string
	MediaURL  string
	MediaType string
	Likes     int
	Comments  int
	Post      domain.Post
}

// Adapter resolves asset paths against the API base URL.
type Adapter struct {
	baseURL string
}

func New(apiBaseURL string) Adapter {
	return Adapter{baseURL: apiBaseURL}
}

// DisplayName prefers "first last", then the user name.
func DisplayName(u *domain.UserRef) string {
	if u == nil {
		return UnknownName
	}
	if u.FirstName != "" {
		return strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	if u.UserName != "" {
		return u.UserName
	}
	return UnknownName
}

func Handle(u *domain.UserRef) string {
	if u == nil || u.UserName == "" {
		return UnknownHandle
	}
	return u.UserName
}

var (
	absoluteURL = regexp.MustCompile(`(?i)^https?://`)
	apiSuffix   = regexp.MustCompile(`(?i)/api/?$`)
	assetPrefix = regexp.MustCompile(`(?i)^/(api|uploads)/`)
)

// AssetURL makes a server-returned asset path absolute. Absolute URLs pass
// through. When the base ends in /api, paths under /api/ or /uploads/ are
// served from the host root instead.
func AssetURL(base, raw string) string {
	if raw == "" || absoluteURL.MatchString(raw) {
		return raw
	}
	path := raw
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if apiSuffix.MatchString(base) && assetPrefix.MatchString(path) {
		base = apiSuffix.ReplaceAllString(base, "")
	}
	return strings.TrimSuffix(base, "/") + path
}

// User renders ref, falling back to id when the payload carried no user.
func (a Adapter) User(ref *domain.UserRef, id string) User {
	u := User{
		Id:       id,
		Name:     DisplayName(ref),
		UserName: Handle(ref),
	}
	if ref != nil {
		if ref.Id != "" {
			u.Id = ref.Id
		}
		u.AvatarURL = AssetURL(a.baseURL, ref.ProfileImageUrl)
	}
	return u
}

func (a Adapter) Follower(e domain.FollowEdge) User {
	return a.User(e.Follower, e.FollowerId)
}

func (a Adapter) Followed(e domain.FollowEdge) User {
	return a.User(e.Following, e.FollowingId)
}

func (a Adapter) Requester(r domain.FollowRequest) User {
	return a.User(r.Requester, r.FollowerId)
}

func (a Adapter) Profile(p *domain.Profile) User {
	if p == nil {
		return a.User(nil, "")
	}
	return a.User(&p.UserRef, p.Id)
}

func (a Adapter) Post(p domain.Post) Post {
	return Post{
		Id:        p.PostId,
		Author:    a.User(p.User, p.UserId),
		Text:      p.Description,
		MediaURL:  AssetURL(a.baseURL, p.MediaUrl),
		MediaType: p.MediaType,
		Likes:     p.LikeTotal(),
		Comments:  len(p.Comments),
		Post:      p,
	}
}

// Posts renders a feed, keeping order.
func (a Adapter) Posts(list []domain.Post) []Post {
	out := make([]Post, 0, len(list))
	for _, p := range list {
		out = append(out, a.Post(p))
	}
	return out
}
