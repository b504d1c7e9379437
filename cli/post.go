package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/refconnect/refterm/display"
	"github.com/refconnect/refterm/domain"
	"github.com/refconnect/refterm/posts"
	"github.com/refconnect/refterm/util"
)

// readMessage joins args into a message, or reads stdin when the only
// argument is "-".
func (h *Handler) readMessage(args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(h.input)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}
	return strings.TrimSpace(strings.Join(args, " ")), nil
}

func (h *Handler) checkLength(message string) error {
	if message == "" {
		return fmt.Errorf("message cannot be empty")
	}
	visibleChars := util.CountVisibleChars(message)
	if maxChars := h.conf.Conf.MaxChars; maxChars > 0 && visibleChars > maxChars {
		return fmt.Errorf("message too long (%d chars, max %d)", visibleChars, maxChars)
	}
	return nil
}

// handlePost creates a new post
func (h *Handler) handlePost(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return h.fail(usage("post <message> or post -"))
	}
	message, err := h.readMessage(args)
	if err != nil {
		return h.fail(err)
	}
	if err := h.checkLength(message); err != nil {
		return h.fail(err)
	}

	post, err := h.app.Posts.Create(ctx, domain.CreatePost{Description: message})
	if err != nil {
		return h.fail(err)
	}

	if h.output.IsJSON() {
		h.output.JSON(PostResponse{ID: post.PostId, Message: post.Description, CreatedAt: post.CreatedAt})
	} else {
		h.output.Success("Posted: %s\n", post.PostId)
	}
	return nil
}

// handleEdit replaces the text of a post
func (h *Handler) handleEdit(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return h.fail(usage("edit <postId> <message>"))
	}
	postId := args[0]
	message, err := h.readMessage(args[1:])
	if err != nil {
		return h.fail(err)
	}
	if err := h.checkLength(message); err != nil {
		return h.fail(err)
	}
	if err := h.app.Refresh(ctx); err != nil {
		return h.fail(err)
	}

	post, err := h.app.Posts.Update(ctx, postId, domain.UpdatePost{Description: message})
	if err != nil {
		return h.fail(err)
	}
	if h.output.IsJSON() {
		h.output.JSON(PostResponse{ID: post.PostId, Message: post.Description, CreatedAt: post.CreatedAt})
	} else {
		h.output.Success("Updated: %s\n", post.PostId)
	}
	return nil
}

// handleDelete removes a post after confirmation
func (h *Handler) handleDelete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return h.fail(usage("delete <postId>"))
	}
	postId := args[0]
	// Load the list so ownership is checked before asking.
	if err := h.app.Refresh(ctx); err != nil {
		return h.fail(err)
	}
	if p, ok := h.app.Posts.Get(postId); ok {
		if actor := h.app.Session.Actor(); actor != nil && !actor.Owns(p.UserId) {
			return h.fail(domain.ErrForbidden)
		}
	}

	confirm := posts.ConfirmFunc(func(action, id string) bool {
		return h.confirm("Delete post", id)
	})
	if err := h.app.Posts.Delete(ctx, postId, confirm); err != nil {
		return h.fail(err)
	}
	if h.output.IsJSON() {
		h.output.JSON(DeleteResponse{ID: postId, Deleted: true})
	} else {
		h.output.Success("Deleted: %s\n", postId)
	}
	return nil
}

// handleComment adds a comment to a post
func (h *Handler) handleComment(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return h.fail(usage("comment <postId> <text>"))
	}
	text, err := h.readMessage(args[1:])
	if err != nil {
		return h.fail(err)
	}
	c, err := h.app.Posts.AddComment(ctx, args[0], text, "")
	if err != nil {
		return h.fail(err)
	}
	if h.output.IsJSON() {
		h.output.JSON(h.commentItem(c))
	} else {
		h.output.Success("Commented: %s\n", c.CommentId)
	}
	return nil
}

// handleComments lists the comments of a post
func (h *Handler) handleComments(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return h.fail(usage("comments <postId>"))
	}
	list, err := h.app.Posts.Comments(ctx, args[0])
	if err != nil {
		return h.fail(err)
	}

	if h.output.IsJSON() {
		items := make([]CommentItem, 0, len(list))
		for _, c := range list {
			items = append(items, h.commentItem(c))
		}
		h.output.JSON(CommentsResponse{Comments: items, Count: len(items)})
		return nil
	}
	if len(list) == 0 {
		h.output.Println("No comments yet.")
		return nil
	}
	for _, c := range list {
		h.output.Print("@%s (%s)\n", h.app.Display.User(c.User, c.UserId).UserName, FormatTimeAgo(c.CreatedAt))
		h.output.Print("%s\n\n", c.Content)
	}
	return nil
}

func (h *Handler) commentItem(c domain.Comment) CommentItem {
	return CommentItem{
		ID:        c.CommentId,
		PostID:    c.PostId,
		Author:    h.app.Display.User(c.User, c.UserId).UserName,
		Content:   c.Content,
		ParentID:  c.ParentCommentId,
		CreatedAt: c.CreatedAt,
	}
}

func timelinePost(p display.Post, liked bool) TimelinePost {
	return TimelinePost{
		ID:           p.Id,
		Author:       p.Author.UserName,
		AuthorName:   p.Author.Name,
		Message:      util.StripANSI(p.Text),
		MediaURL:     p.MediaURL,
		CreatedAt:    p.Post.CreatedAt,
		LikeCount:    p.Likes,
		CommentCount: p.Comments,
		Liked:        liked,
	}
}
