package api

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/refconnect/refterm/domain"
)

func (c *Client) Posts(ctx context.Context) ([]domain.Post, error) {
	var dtos []postDTO
	if err := c.do(ctx, http.MethodGet, "/posts", nil, nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.Post, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// CreatePost returns the server's copy of the new post. When the server
// answers without a body, the post is rebuilt from the payload.
func (c *Client) CreatePost(ctx context.Context, in domain.CreatePost) (domain.Post, error) {
	var dto postDTO
	if err := c.do(ctx, http.MethodPost, "/posts", nil, in, &dto); err != nil {
		return domain.Post{}, err
	}
	post := dto.toDomain()
	if post.PostId == "" {
		log.Warn("create post response carried no post id", "userId", in.UserId)
		post.UserId = in.UserId
		post.Description = in.Description
		post.MediaUrl = in.MediaUrl
		post.MediaType = in.MediaType
		post.CreatedAt = time.Now()
	}
	return post, nil
}

// UpdatePost returns the edited post. Fields the server leaves out are
// taken from the payload.
func (c *Client) UpdatePost(ctx context.Context, postId string, in domain.UpdatePost) (domain.Post, error) {
	var dto postDTO
	if err := c.do(ctx, http.MethodPut, "/posts/"+escape(postId), nil, in, &dto); err != nil {
		return domain.Post{}, err
	}
	post := dto.toDomain()
	if post.PostId == "" {
		post.PostId = postId
		post.Description = in.Description
		post.MediaUrl = in.MediaUrl
		post.MediaType = in.MediaType
	}
	return post, nil
}

func (c *Client) DeletePost(ctx context.Context, postId string) error {
	return c.do(ctx, http.MethodDelete, "/posts/"+escape(postId), nil, nil, nil)
}

func (c *Client) AddComment(ctx context.Context, in domain.CreateComment) (domain.Comment, error) {
	var dto commentDTO
	if err := c.do(ctx, http.MethodPost, "/comments", nil, in, &dto); err != nil {
		return domain.Comment{}, err
	}
	return dto.toDomain(), nil
}

func (c *Client) DeleteComment(ctx context.Context, commentId string) error {
	return c.do(ctx, http.MethodDelete, "/comments/"+escape(commentId), nil, nil, nil)
}

func (c *Client) Comments(ctx context.Context, postId string) ([]domain.Comment, error) {
	var dtos []commentDTO
	if err := c.do(ctx, http.MethodGet, "/posts/"+escape(postId)+"/comments", nil, nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.Comment, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain())
	}
	return out, nil
}
