package api

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/refconnect/refterm/domain"
)

// The backend serializes timestamps with and without zone offsets and with
// variable fractional digits.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	// Unparseable timestamps are dropped rather than failing the whole payload.
	t.Time = time.Time{}
	return nil
}

type userDTO struct {
	Id              string   `json:"id"`
	UserId          string   `json:"userId"`
	UserName        string   `json:"userName"`
	FirstName       string   `json:"firstName"`
	LastName        string   `json:"lastName"`
	ProfileImageUrl string   `json:"profileImageUrl"`
	Description     string   `json:"description"`
	IsProfilePublic *bool    `json:"isProfilePublic"`
	CreatedAt       flexTime `json:"createdAt"`
}

func (u *userDTO) toDomain() *domain.UserRef {
	if u == nil {
		return nil
	}
	id := u.Id
	if id == "" {
		id = u.UserId
	}
	return &domain.UserRef{
		Id:              id,
		UserName:        u.UserName,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		ProfileImageUrl: u.ProfileImageUrl,
		Description:     u.Description,
		IsProfilePublic: u.IsProfilePublic,
		CreatedAt:       u.CreatedAt.Time,
	}
}

type followDTO struct {
	FollowerId  string   `json:"followerId"`
	FollowingId string   `json:"followingId"`
	FollowedAt  flexTime `json:"followedAt"`
	Follower    *userDTO `json:"follower"`
	Following   *userDTO `json:"following"`
}

func (f followDTO) toDomain() domain.FollowEdge {
	return domain.FollowEdge{
		FollowerId:  f.FollowerId,
		FollowingId: f.FollowingId,
		FollowedAt:  f.FollowedAt.Time,
		Follower:    f.Follower.toDomain(),
		Following:   f.Following.toDomain(),
	}
}

// followRequestDTO accepts the requester under either followerRequest or
// follower, depending on the endpoint projection.
type followRequestDTO struct {
	FollowRequestId  string   `json:"followRequestId"`
	Id               string   `json:"id"`
	FollowerId       string   `json:"followerId"`
	FollowingId      string   `json:"followingId"`
	RequestedAt      flexTime `json:"requestedAt"`
	FollowerRequest  *userDTO `json:"followerRequest"`
	Follower         *userDTO `json:"follower"`
	FollowingRequest *userDTO `json:"followingRequest"`
	Following        *userDTO `json:"following"`
}

func (f followRequestDTO) toDomain() domain.FollowRequest {
	id := f.FollowRequestId
	if id == "" {
		id = f.Id
	}
	requester := f.FollowerRequest
	if requester == nil {
		requester = f.Follower
	}
	target := f.FollowingRequest
	if target == nil {
		target = f.Following
	}
	req := domain.FollowRequest{
		Id:          id,
		FollowerId:  f.FollowerId,
		FollowingId: f.FollowingId,
		RequestedAt: f.RequestedAt.Time,
		Requester:   requester.toDomain(),
		Target:      target.toDomain(),
	}
	if req.FollowerId == "" && req.Requester != nil {
		req.FollowerId = req.Requester.Id
	}
	return req
}

type likeDTO struct {
	UserId  string   `json:"userId"`
	PostId  string   `json:"postId"`
	LikedAt flexTime `json:"likedAt"`
}

type commentDTO struct {
	CommentId       string   `json:"commentId"`
	Id              string   `json:"id"`
	PostId          string   `json:"postId"`
	UserId          string   `json:"userId"`
	Content         string   `json:"content"`
	CreatedAt       flexTime `json:"createdAt"`
	ParentCommentId string   `json:"parentCommentId"`
	User            *userDTO `json:"user"`
}

func (c commentDTO) toDomain() domain.Comment {
	id := c.CommentId
	if id == "" {
		id = c.Id
	}
	return domain.Comment{
		CommentId:       id,
		PostId:          c.PostId,
		UserId:          c.UserId,
		Content:         c.Content,
		CreatedAt:       c.CreatedAt.Time,
		ParentCommentId: c.ParentCommentId,
		User:            c.User.toDomain(),
	}
}

type postDTO struct {
	PostId      string       `json:"postId"`
	Id          string       `json:"id"`
	UserId      string       `json:"userId"`
	Description string       `json:"description"`
	MediaUrl    string       `json:"mediaUrl"`
	MediaType   string       `json:"mediaType"`
	CreatedAt   flexTime     `json:"createdAt"`
	LikeCount   *int         `json:"likeCount"`
	Likes       []likeDTO    `json:"likes"`
	User        *userDTO     `json:"user"`
	Comments    []commentDTO `json:"comments"`
}

func (p postDTO) toDomain() domain.Post {
	id := p.PostId
	if id == "" {
		id = p.Id
	}
	post := domain.Post{
		PostId:      id,
		UserId:      p.UserId,
		Description: p.Description,
		MediaUrl:    p.MediaUrl,
		MediaType:   p.MediaType,
		CreatedAt:   p.CreatedAt.Time,
		LikeCount:   p.LikeCount,
		User:        p.User.toDomain(),
	}
	if post.UserId == "" && post.User != nil {
		post.UserId = post.User.Id
	}
	for _, l := range p.Likes {
		post.Likes = append(post.Likes, domain.Like{UserId: l.UserId, PostId: l.PostId, LikedAt: l.LikedAt.Time})
	}
	for _, c := range p.Comments {
		post.Comments = append(post.Comments, c.toDomain())
	}
	return post
}

type profileDTO struct {
	userDTO
	FollowersCount int       `json:"followersCount"`
	FollowingCount int       `json:"followingCount"`
	Posts          []postDTO `json:"posts"`
}

func (p profileDTO) toDomain(extended bool) *domain.Profile {
	profile := &domain.Profile{
		UserRef:        *p.userDTO.toDomain(),
		FollowersCount: p.FollowersCount,
		FollowingCount: p.FollowingCount,
		Extended:       extended,
	}
	for _, post := range p.Posts {
		profile.Posts = append(profile.Posts, post.toDomain())
	}
	return profile
}

// parseExists accepts a raw boolean, an {exists: bool} object, or any other
// JSON value judged by truthiness.
func parseExists(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}

	var obj struct {
		Exists *bool `json:"exists"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Exists != nil {
		return *obj.Exists
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

// Request bodies. Field names are exactly what the backend binds.

type followBody struct {
	FollowerId  string    `json:"followerId"`
	FollowingId string    `json:"followingId"`
	FollowedAt  time.Time `json:"followedAt"`
}

type followRequestBody struct {
	FollowRequestId string    `json:"followRequestId"`
	FollowerId      string    `json:"followerId"`
	FollowingId     string    `json:"followingId"`
	RequestedAt     time.Time `json:"requestedAt"`
}

type likeBody struct {
	PostId string `json:"postId"`
}

type chatMemberDTO struct {
	ChatId   string   `json:"chatId"`
	UserId   string   `json:"userId"`
	JoinedAt flexTime `json:"joinedAt"`
}

// chatDTO accepts the member list under members or chatUsers and the group
// name under name or groupName.
type chatDTO struct {
	ChatId      string          `json:"chatId"`
	Id          string          `json:"id"`
	Name        string          `json:"name"`
	GroupName   string          `json:"groupName"`
	Description string          `json:"description"`
	IsGroup     *bool           `json:"isGroup"`
	OwnerId     string          `json:"ownerId"`
	MatchId     string          `json:"matchId"`
	CreatedAt   flexTime        `json:"createdAt"`
	Members     []chatMemberDTO `json:"members"`
	ChatUsers   []chatMemberDTO `json:"chatUsers"`
}

func (c *chatDTO) toDomain() domain.Chat {
	id := c.ChatId
	if id == "" {
		id = c.Id
	}
	name := c.Name
	if name == "" {
		name = c.GroupName
	}
	chat := domain.Chat{
		ChatId:      id,
		Name:        name,
		Description: c.Description,
		OwnerId:     c.OwnerId,
		MatchId:     c.MatchId,
		CreatedAt:   c.CreatedAt.Time,
	}
	if c.IsGroup != nil {
		chat.IsGroup = *c.IsGroup
	} else {
		chat.IsGroup = name != "" || c.OwnerId != ""
	}
	members := c.Members
	if members == nil {
		members = c.ChatUsers
	}
	for _, m := range members {
		member := domain.ChatMember{ChatId: m.ChatId, UserId: m.UserId, JoinedAt: m.JoinedAt.Time}
		if member.ChatId == "" {
			member.ChatId = id
		}
		chat.Members = append(chat.Members, member)
	}
	return chat
}

// messageDTO accepts the older userId/sentAt field names as well.
type messageDTO struct {
	MessageId  string   `json:"messageId"`
	Id         string   `json:"id"`
	ChatId     string   `json:"chatId"`
	SenderId   string   `json:"senderId"`
	UserId     string   `json:"userId"`
	SenderName string   `json:"senderName"`
	Content    string   `json:"content"`
	MediaUrl   string   `json:"mediaUrl"`
	CreatedAt  flexTime `json:"createdAt"`
	SentAt     flexTime `json:"sentAt"`
	Edited     bool     `json:"edited"`
}

func (m messageDTO) toDomain() domain.Message {
	msg := domain.Message{
		MessageId:  m.MessageId,
		ChatId:     m.ChatId,
		SenderId:   m.SenderId,
		SenderName: m.SenderName,
		Content:    m.Content,
		MediaUrl:   m.MediaUrl,
		CreatedAt:  m.CreatedAt.Time,
		Edited:     m.Edited,
	}
	if msg.MessageId == "" {
		msg.MessageId = m.Id
	}
	if msg.SenderId == "" {
		msg.SenderId = m.UserId
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = m.SentAt.Time
	}
	return msg
}

type chatJoinRequestDTO struct {
	ChatJoinRequestId string   `json:"chatJoinRequestId"`
	Id                string   `json:"id"`
	ChatId            string   `json:"chatId"`
	UserId            string   `json:"userId"`
	Status            string   `json:"status"`
	RequestedAt       flexTime `json:"requestedAt"`
	CreatedAt         flexTime `json:"createdAt"`
	User              *userDTO `json:"user"`
	Chat              *chatDTO `json:"chat"`
}

func (r chatJoinRequestDTO) toDomain() domain.ChatJoinRequest {
	req := domain.ChatJoinRequest{
		Id:          r.ChatJoinRequestId,
		ChatId:      r.ChatId,
		UserId:      r.UserId,
		Status:      r.Status,
		RequestedAt: r.RequestedAt.Time,
		User:        r.User.toDomain(),
	}
	if req.Id == "" {
		req.Id = r.Id
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = r.CreatedAt.Time
	}
	if req.UserId == "" && req.User != nil {
		req.UserId = req.User.Id
	}
	if r.Chat != nil {
		chat := r.Chat.toDomain()
		req.Chat = &chat
		if req.ChatId == "" {
			req.ChatId = chat.ChatId
		}
	}
	return req
}
