package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Output handles formatting responses in text or JSON format
type Output struct {
	writer   io.Writer
	jsonMode bool
}

// NewOutput creates a new output handler
func NewOutput(w io.Writer, jsonMode bool) *Output {
	return &Output{
		writer:   w,
		jsonMode: jsonMode,
	}
}

// IsJSON returns true if output is in JSON mode
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// Error outputs an error message
func (o *Output) Error(err error) {
	if o.jsonMode {
		o.writeJSON(map[string]any{
			"error": err.Error(),
		})
	} else {
		fmt.Fprintf(o.writer, "Error: %v\n", err)
	}
}

// Success outputs a success message (text mode only, JSON uses specific methods)
func (o *Output) Success(format string, args ...any) {
	if !o.jsonMode {
		fmt.Fprintf(o.writer, format, args...)
	}
}

// Print outputs a line (text mode only)
func (o *Output) Print(format string, args ...any) {
	if !o.jsonMode {
		fmt.Fprintf(o.writer, format, args...)
	}
}

// Println outputs a line with newline (text mode only)
func (o *Output) Println(text string) {
	if !o.jsonMode {
		fmt.Fprintln(o.writer, text)
	}
}

// JSON outputs any value as JSON
func (o *Output) JSON(v any) {
	if o.jsonMode {
		o.writeJSON(v)
	}
}

func (o *Output) writeJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(o.writer, `{"error":"failed to marshal JSON: %s"}`+"\n", err.Error())
		return
	}
	fmt.Fprintln(o.writer, string(data))
}

// PostResponse represents a created or edited post
type PostResponse struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// TimelinePost represents a post in timeline output
type TimelinePost struct {
	ID           string    `json:"id"`
	Author       string    `json:"author"`
	AuthorName   string    `json:"author_name"`
	Message      string    `json:"message"`
	MediaURL     string    `json:"media_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	Liked        bool      `json:"liked"`
}

// TimelineResponse represents the timeline output
type TimelineResponse struct {
	Posts []TimelinePost `json:"posts"`
	Count int            `json:"count"`
}

// LikeResponse is the state of a post after like or unlike
type LikeResponse struct {
	PostID    string `json:"post_id"`
	Liked     bool   `json:"liked"`
	LikeCount int    `json:"like_count"`
}

// DeleteResponse confirms a deletion
type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// CommentItem represents a comment in output
type CommentItem struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	ParentID  string    `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentsResponse represents the comments output
type CommentsResponse struct {
	Comments []CommentItem `json:"comments"`
	Count    int           `json:"count"`
}

// FollowResponse is the follow status toward a user
type FollowResponse struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// RequestItem represents an incoming follow request
type RequestItem struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Name        string    `json:"name"`
	RequestedAt time.Time `json:"requested_at"`
}

// RequestsResponse represents the requests output
type RequestsResponse struct {
	Requests []RequestItem `json:"requests"`
	Count    int           `json:"count"`
}

// UserItem represents a user in followers and following output
type UserItem struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Name     string    `json:"name"`
	Since    time.Time `json:"since"`
}

// UsersResponse represents a list of users
type UsersResponse struct {
	Users []UserItem `json:"users"`
	Count int        `json:"count"`
}

// ProfileResponse represents a profile
type ProfileResponse struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	Bio            string `json:"bio,omitempty"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	Public         *bool  `json:"public,omitempty"`
	Extended       bool   `json:"extended"`
	FollowersCount int    `json:"followers_count"`
	FollowingCount int    `json:"following_count"`
	PostCount      int    `json:"post_count"`
	Status         string `json:"status"`
}

// HelpCommand represents a command in help output
type HelpCommand struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Usage       string   `json:"usage"`
	Flags       []string `json:"flags,omitempty"`
}

// HelpResponse represents the help output
type HelpResponse struct {
	Version     string        `json:"version"`
	Commands    []HelpCommand `json:"commands"`
	GlobalFlags []string      `json:"global_flags"`
}

// ChatItem represents a chat in output
type ChatItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Group       bool      `json:"group"`
	Owner       string    `json:"owner,omitempty"`
	Members     int       `json:"members"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChatsResponse represents a list of chats
type ChatsResponse struct {
	Chats []ChatItem `json:"chats"`
	Count int        `json:"count"`
}

// MessageItem represents a chat message in output
type MessageItem struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chat_id"`
	Sender     string    `json:"sender"`
	SenderName string    `json:"sender_name,omitempty"`
	Content    string    `json:"content"`
	Edited     bool      `json:"edited"`
	CreatedAt  time.Time `json:"created_at"`
}

// MessagesResponse represents the messages of one chat
type MessagesResponse struct {
	ChatID   string        `json:"chat_id"`
	Messages []MessageItem `json:"messages"`
	Count    int           `json:"count"`
}

// JoinRequestItem represents a group join request
type JoinRequestItem struct {
	ID          string    `json:"id"`
	ChatID      string    `json:"chat_id"`
	ChatName    string    `json:"chat_name,omitempty"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	Status      string    `json:"status,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// JoinRequestsResponse represents a list of join requests
type JoinRequestsResponse struct {
	Requests []JoinRequestItem `json:"requests"`
	Count    int               `json:"count"`
}

// FormatTimeAgo returns a human-readable time difference
func FormatTimeAgo(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return "just now"
	} else if duration < time.Hour {
		mins := int(duration.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	} else if duration < 24*time.Hour {
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}
	days := int(duration.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}
