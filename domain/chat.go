package domain

import "time"

// Chat is a conversation. Group chats have a name and an owner; match
// chats link to a match instead.
type Chat struct {
	ChatId      string       `json:"chatId"`
	Name        string       `json:"name,omitempty"`
	Description string       `json:"description,omitempty"`
	IsGroup     bool         `json:"isGroup"`
	OwnerId     string       `json:"ownerId,omitempty"`
	MatchId     string       `json:"matchId,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	Members     []ChatMember `json:"members,omitempty"`
}

// Title is the name shown for the chat.
func (c Chat) Title() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.MatchId != "":
		return "Match " + c.MatchId
	default:
		return "Chat " + c.ChatId
	}
}

// HasMember reports whether userId is listed among the members.
func (c Chat) HasMember(userId string) bool {
	for _, m := range c.Members {
		if m.UserId == userId {
			return true
		}
	}
	return false
}

type ChatMember struct {
	ChatId   string    `json:"chatId"`
	UserId   string    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Message struct {
	MessageId  string    `json:"messageId"`
	ChatId     string    `json:"chatId"`
	SenderId   string    `json:"senderId"`
	SenderName string    `json:"senderName,omitempty"`
	Content    string    `json:"content"`
	MediaUrl   string    `json:"mediaUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	Edited     bool      `json:"edited"`
}

type CreateMessage struct {
	ChatId   string `json:"chatId"`
	Content  string `json:"content"`
	MediaUrl string `json:"mediaUrl,omitempty"`
}

type UpdateMessage struct {
	Content string `json:"content"`
}

type CreateGroupChat struct {
	GroupName      string   `json:"groupName"`
	Description    string   `json:"description,omitempty"`
	InitialUserIds []string `json:"initialUserIds"`
}

// UpdateChat changes the name and description of a group. Empty fields
// are left as they are.
type UpdateChat struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// ChatJoinRequest asks the owner of ChatId to add UserId to the group.
type ChatJoinRequest struct {
	Id          string    `json:"chatJoinRequestId"`
	ChatId      string    `json:"chatId"`
	UserId      string    `json:"userId"`
	Status      string    `json:"status,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
	User        *UserRef  `json:"user,omitempty"`
	Chat        *Chat     `json:"chat,omitempty"`
}
