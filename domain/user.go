package domain

import "time"

// UserRef is the user object embedded in follow, post and comment payloads.
type UserRef struct {
	Id              string    `json:"id"`
	UserName        string    `json:"userName"`
	FirstName       string    `json:"firstName,omitempty"`
	LastName        string    `json:"lastName,omitempty"`
	ProfileImageUrl string    `json:"profileImageUrl,omitempty"`
	Description     string    `json:"description,omitempty"`
	IsProfilePublic *bool     `json:"isProfilePublic,omitempty"`
	CreatedAt       time.Time `json:"createdAt,omitempty"`
}

// Profile is a user profile as returned by the profile endpoints. Extended is
// set when the counts and posts came from the extended projection.
type Profile struct {
	UserRef
	FollowersCount int    `json:"followersCount"`
	FollowingCount int    `json:"followingCount"`
	Posts          []Post `json:"posts,omitempty"`
	Extended       bool   `json:"-"`
}

// Visibility of a follow target.
type Visibility int

const (
	VisibilityUnknown Visibility = iota
	VisibilityPublic
	VisibilityPrivate
)

func (p *Profile) Visibility() Visibility {
	if p == nil || p.IsProfilePublic == nil {
		return VisibilityUnknown
	}
	if *p.IsProfilePublic {
		return VisibilityPublic
	}
	return VisibilityPrivate
}
