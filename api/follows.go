package api

import (
	"context"
	"net/http"

	"github.com/refconnect/refterm/domain"
)

// Follow creates a follow edge directly. Only valid for public targets.
func (c *Client) Follow(ctx context.Context, edge domain.FollowEdge) error {
	return c.do(ctx, http.MethodPost, "/Follows", nil, followBody{
		FollowerId:  edge.FollowerId,
		FollowingId: edge.FollowingId,
		FollowedAt:  edge.FollowedAt,
	}, nil)
}

func (c *Client) Unfollow(ctx context.Context, edge domain.FollowEdge) error {
	return c.do(ctx, http.MethodDelete, "/Follows", nil, followBody{
		FollowerId:  edge.FollowerId,
		FollowingId: edge.FollowingId,
		FollowedAt:  edge.FollowedAt,
	}, nil)
}

func (c *Client) SendFollowRequest(ctx context.Context, req domain.FollowRequest) error {
	return c.do(ctx, http.MethodPost, "/FollowRequests", nil, requestBody(req), nil)
}

func (c *Client) CancelFollowRequest(ctx context.Context, req domain.FollowRequest) error {
	return c.do(ctx, http.MethodDelete, "/FollowRequests", nil, requestBody(req), nil)
}

// AcceptFollowRequest expects FollowerId to be the requester and FollowingId
// the viewer.
func (c *Client) AcceptFollowRequest(ctx context.Context, req domain.FollowRequest) error {
	return c.do(ctx, http.MethodPost, "/FollowRequests/Accept", nil, requestBody(req), nil)
}

func (c *Client) DeclineFollowRequest(ctx context.Context, req domain.FollowRequest) error {
	return c.do(ctx, http.MethodPost, "/FollowRequests/Decline", nil, requestBody(req), nil)
}

// PendingFollowRequests lists incoming requests where the viewer is the target.
func (c *Client) PendingFollowRequests(ctx context.Context) ([]domain.FollowRequest, error) {
	var dtos []followRequestDTO
	if err := c.do(ctx, http.MethodGet, "/FollowRequests/Pending", nil, nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.FollowRequest, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (c *Client) Followers(ctx context.Context, userId string) ([]domain.FollowEdge, error) {
	return c.edges(ctx, "/follow/"+escape(userId)+"/followers")
}

func (c *Client) Following(ctx context.Context, userId string) ([]domain.FollowEdge, error) {
	return c.edges(ctx, "/follow/"+escape(userId)+"/following")
}

func (c *Client) edges(ctx context.Context, path string) ([]domain.FollowEdge, error) {
	var dtos []followDTO
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.FollowEdge, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func requestBody(req domain.FollowRequest) followRequestBody {
	return followRequestBody{
		FollowRequestId: req.Id,
		FollowerId:      req.FollowerId,
		FollowingId:     req.FollowingId,
		RequestedAt:     req.RequestedAt,
	}
}
