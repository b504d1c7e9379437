package domain

import "time"

type Post struct {
	PostId      string    `json:"postId"`
	UserId      string    `json:"userId"`
	Description string    `json:"description"`
	MediaUrl    string    `json:"mediaUrl,omitempty"`
	MediaType   string    `json:"mediaType,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	LikeCount   *int      `json:"likeCount,omitempty"`
	Likes       []Like    `json:"likes,omitempty"`
	User        *UserRef  `json:"user,omitempty"`
	Comments    []Comment `json:"comments,omitempty"`
}

// LikeTotal is the displayed like count of the post.
func (p *Post) LikeTotal() int {
	return ResolveLikeCount(p.LikeCount, p.Likes)
}

// LikedBy reports whether the embedded likes contain userId. The list is
// often absent on list endpoints, so a false result is not authoritative.
func (p *Post) LikedBy(userId string) bool {
	for _, l := range p.Likes {
		if l.UserId == userId {
			return true
		}
	}
	return false
}

// ResolveLikeCount prefers the explicit count and falls back to the length
// of the membership list. The result is clamped at zero.
func ResolveLikeCount(count *int, likes []Like) int {
	n := len(likes)
	if count != nil {
		n = *count
	}
	return max(n, 0)
}

type Like struct {
	UserId  string    `json:"userId"`
	PostId  string    `json:"postId"`
	LikedAt time.Time `json:"likedAt"`
}

type Comment struct {
	CommentId       string    `json:"commentId"`
	PostId          string    `json:"postId"`
	UserId          string    `json:"userId"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"createdAt"`
	ParentCommentId string    `json:"parentCommentId,omitempty"`
	User            *UserRef  `json:"user,omitempty"`
}

// CreatePost is the payload for a new post. UserId is filled in from the
// session by the post store.
type CreatePost struct {
	UserId      string `json:"userId"`
	Description string `json:"description"`
	MediaUrl    string `json:"mediaUrl,omitempty"`
	MediaType   string `json:"mediaType,omitempty"`
}

type CreateComment struct {
	PostId          string `json:"postId"`
	UserId          string `json:"userId"`
	Content         string `json:"content"`
	ParentCommentId string `json:"parentCommentId,omitempty"`
}

// UpdatePost is the payload for editing an existing post.
type UpdatePost struct {
	Description string `json:"description"`
	MediaUrl    string `json:"mediaUrl"`
	MediaType   string `json:"mediaType"`
}
