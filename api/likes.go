package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

func (c *Client) Like(ctx context.Context, postId string) error {
	return c.do(ctx, http.MethodPost, "/Like", nil, likeBody{PostId: postId}, nil)
}

func (c *Client) Unlike(ctx context.Context, postId string) error {
	return c.do(ctx, http.MethodDelete, "/Like", nil, likeBody{PostId: postId}, nil)
}

// LikeExists reports whether the viewer currently likes postId.
func (c *Client) LikeExists(ctx context.Context, postId string) (bool, error) {
	var raw json.RawMessage
	q := url.Values{"postId": {postId}}
	if err := c.do(ctx, http.MethodGet, "/Like/exists", q, nil, &raw); err != nil {
		return false, err
	}
	return parseExists(raw), nil
}
