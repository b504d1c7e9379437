package graph

import (
	"context"

	"github.com/refconnect/refterm/domain"
)

// StatusSource derives the follow status of viewer toward target from the
// server. It is the only place that knows how status is computed.
type StatusSource interface {
	FollowStatus(ctx context.Context, viewerId, targetId string) (domain.FollowStatus, error)
}

// FollowingLister is satisfied by the API client.
type FollowingLister interface {
	Following(ctx context.Context, userId string) ([]domain.FollowEdge, error)
}

// FollowingScan derives status by scanning the viewer's following list. The
// API has no status endpoint, so it can only answer following or
// not_following.
type FollowingScan struct {
	Backend FollowingLister
}

func (s FollowingScan) FollowStatus(ctx context.Context, viewerId, targetId string) (domain.FollowStatus, error) {
	edges, err := s.Backend.Following(ctx, viewerId)
	if err != nil {
		return domain.StatusUnknown, err
	}
	for _, e := range edges {
		id := e.FollowingId
		if id == "" && e.Following != nil {
			id = e.Following.Id
		}
		if id == targetId {
			return domain.StatusFollowing, nil
		}
	}
	return domain.StatusNotFollowing, nil
}
