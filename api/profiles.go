package api

import (
	"context"
	"net/http"

	"github.com/refconnect/refterm/domain"
)

// Profile fetches the extended projection and falls back to the basic one
// when the viewer is not allowed to see it.
func (c *Client) Profile(ctx context.Context, userId string) (*domain.Profile, error) {
	var dto profileDTO
	err := c.do(ctx, http.MethodGet, "/profiles/"+escape(userId)+"/extended", nil, nil, &dto)
	if err == nil {
		return withId(dto.toDomain(true), userId), nil
	}
	if !IsForbidden(err) {
		return nil, err
	}

	dto = profileDTO{}
	if err := c.do(ctx, http.MethodGet, "/profiles/"+escape(userId), nil, nil, &dto); err != nil {
		return nil, err
	}
	return withId(dto.toDomain(false), userId), nil
}

func withId(p *domain.Profile, userId string) *domain.Profile {
	if p.Id == "" {
		p.Id = userId
	}
	return p
}
