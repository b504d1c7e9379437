package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/refconnect/refterm/domain"
)

type joinBody struct {
	ChatId string `json:"chatId"`
}

// Chats lists the chats the viewer is a member of.
func (c *Client) Chats(ctx context.Context) ([]domain.Chat, error) {
	return c.chats(ctx, "/Chats", nil)
}

// GroupChats lists every group chat, joined or not.
func (c *Client) GroupChats(ctx context.Context) ([]domain.Chat, error) {
	return c.chats(ctx, "/Chats/groups", nil)
}

func (c *Client) SearchGroupChats(ctx context.Context, query string) ([]domain.Chat, error) {
	return c.chats(ctx, "/Chats/groups/search", url.Values{"query": {query}})
}

func (c *Client) chats(ctx context.Context, path string, q url.Values) ([]domain.Chat, error) {
	var dtos []chatDTO
	if err := c.do(ctx, http.MethodGet, path, q, nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.Chat, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// CreateGroupChat returns the server's copy of the new group. When the
// server answers without a body, the group is rebuilt from the payload.
func (c *Client) CreateGroupChat(ctx context.Context, in domain.CreateGroupChat) (domain.Chat, error) {
	var dto chatDTO
	if err := c.do(ctx, http.MethodPost, "/Chats/group", nil, in, &dto); err != nil {
		return domain.Chat{}, err
	}
	chat := dto.toDomain()
	if chat.ChatId == "" {
		chat.Name = in.GroupName
		chat.Description = in.Description
		chat.IsGroup = true
		chat.CreatedAt = time.Now()
	}
	return chat, nil
}

func (c *Client) UpdateChat(ctx context.Context, chatId string, in domain.UpdateChat) error {
	return c.do(ctx, http.MethodPut, "/Chats/"+escape(chatId), nil, in, nil)
}

func (c *Client) DeleteChat(ctx context.Context, chatId string) error {
	return c.do(ctx, http.MethodDelete, "/Chats/"+escape(chatId), nil, nil, nil)
}

func (c *Client) Messages(ctx context.Context, chatId string) ([]domain.Message, error) {
	var dtos []messageDTO
	if err := c.do(ctx, http.MethodGet, "/Messages/chat/"+escape(chatId), nil, nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.Message, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// SendMessage returns the stored message. Fields the server leaves out are
// taken from the payload.
func (c *Client) SendMessage(ctx context.Context, in domain.CreateMessage) (domain.Message, error) {
	var dto messageDTO
	if err := c.do(ctx, http.MethodPost, "/Messages", nil, in, &dto); err != nil {
		return domain.Message{}, err
	}
	msg := dto.toDomain()
	if msg.ChatId == "" {
		msg.ChatId = in.ChatId
	}
	if msg.Content == "" {
		msg.Content = in.Content
		msg.MediaUrl = in.MediaUrl
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	return msg, nil
}

func (c *Client) UpdateMessage(ctx context.Context, messageId string, in domain.UpdateMessage) error {
	return c.do(ctx, http.MethodPut, "/Messages/"+escape(messageId), nil, in, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, messageId string) error {
	return c.do(ctx, http.MethodDelete, "/Messages/"+escape(messageId), nil, nil, nil)
}

// RequestJoinChat asks the owner of chatId to add the viewer. The returned
// request is empty when the server answers without a body.
func (c *Client) RequestJoinChat(ctx context.Context, chatId string) (domain.ChatJoinRequest, error) {
	var dto chatJoinRequestDTO
	if err := c.do(ctx, http.MethodPost, "/ChatJoinRequests", nil, joinBody{ChatId: chatId}, &dto); err != nil {
		return domain.ChatJoinRequest{}, err
	}
	req := dto.toDomain()
	if req.ChatId == "" {
		req.ChatId = chatId
	}
	return req, nil
}

// OwnerJoinRequests lists pending requests for every group the viewer owns.
func (c *Client) OwnerJoinRequests(ctx context.Context) ([]domain.ChatJoinRequest, error) {
	return c.joinRequests(ctx, "/ChatJoinRequests/owner")
}

func (c *Client) ChatJoinRequests(ctx context.Context, chatId string) ([]domain.ChatJoinRequest, error) {
	return c.joinRequests(ctx, "/ChatJoinRequests/chat/"+escape(chatId))
}

// MyJoinRequests lists the viewer's own pending requests.
func (c *Client) MyJoinRequests(ctx context.Context) ([]domain.ChatJoinRequest, error) {
	return c.joinRequests(ctx, "/ChatJoinRequests/my-requests")
}

func (c *Client) joinRequests(ctx context.Context, path string) ([]domain.ChatJoinRequest, error) {
	var dtos []chatJoinRequestDTO
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.ChatJoinRequest, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (c *Client) AcceptJoinRequest(ctx context.Context, requestId string) error {
	return c.do(ctx, http.MethodPost, "/ChatJoinRequests/"+escape(requestId)+"/accept", nil, nil, nil)
}

func (c *Client) DeclineJoinRequest(ctx context.Context, requestId string) error {
	return c.do(ctx, http.MethodPost, "/ChatJoinRequests/"+escape(requestId)+"/decline", nil, nil, nil)
}

func (c *Client) CancelJoinRequest(ctx context.Context, requestId string) error {
	return c.do(ctx, http.MethodDelete, "/ChatJoinRequests/"+escape(requestId), nil, nil, nil)
}
