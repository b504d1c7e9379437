package domain

import "time"

type FollowStatus string

const (
	// StatusUnknown means the status has not been checked against the server.
	StatusUnknown      FollowStatus = ""
	StatusFollowing    FollowStatus = "following"
	StatusRequested    FollowStatus = "requested"
	StatusNotFollowing FollowStatus = "not_following"
)

func (s FollowStatus) String() string {
	if s == StatusUnknown {
		return "unknown"
	}
	return string(s)
}

// FollowEdge is a confirmed follower -> following subscription.
type FollowEdge struct {
	FollowerId  string    `json:"followerId"`
	FollowingId string    `json:"followingId"`
	FollowedAt  time.Time `json:"followedAt"`
	Follower    *UserRef  `json:"follower,omitempty"`
	Following   *UserRef  `json:"following,omitempty"`
}

// FollowRequest is a pending proposal from FollowerId to FollowingId.
type FollowRequest struct {
	Id          string    `json:"followRequestId"`
	FollowerId  string    `json:"followerId"`
	FollowingId string    `json:"followingId"`
	RequestedAt time.Time `json:"requestedAt"`
	Requester   *UserRef  `json:"requester,omitempty"`
	Target      *UserRef  `json:"target,omitempty"`
}
