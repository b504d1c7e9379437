package cli

import (
	"context"
	"fmt"
	"strconv"
)

const defaultTimelineLimit = 20

// handleTimeline shows the most recent posts
func (h *Handler) handleTimeline(ctx context.Context, args []string) error {
	limit := defaultTimelineLimit

	for i := 0; i < len(args); i++ {
		if args[i] == "-n" && i+1 < len(args) {
			n, err := strconv.Atoi(args[i+1])
			if err != nil {
				return h.fail(fmt.Errorf("invalid value for -n: %s", args[i+1]))
			}
			if n < 1 {
				return h.fail(fmt.Errorf("-n must be at least 1"))
			}
			limit = n
			i++
		}
	}

	if err := h.app.Refresh(ctx); err != nil {
		return h.fail(err)
	}
	list := h.app.Display.Posts(h.app.Posts.Posts())
	if len(list) > limit {
		list = list[:limit]
	}

	if len(list) == 0 {
		if h.output.IsJSON() {
			h.output.JSON(TimelineResponse{Posts: []TimelinePost{}, Count: 0})
		} else {
			h.output.Println("No posts in timeline.")
		}
		return nil
	}

	if h.output.IsJSON() {
		out := make([]TimelinePost, 0, len(list))
		for _, p := range list {
			out = append(out, timelinePost(p, h.app.Likes.State(p.Id).Liked))
		}
		h.output.JSON(TimelineResponse{Posts: out, Count: len(out)})
		return nil
	}

	for _, p := range list {
		heart := "♡"
		if h.app.Likes.State(p.Id).Liked {
			heart = "♥"
		}
		h.output.Print("%s @%s (%s) [%s]\n", p.Author.Name, p.Author.UserName, FormatTimeAgo(p.Post.CreatedAt), p.Id)
		h.output.Print("%s\n", p.Text)
		if p.MediaURL != "" {
			h.output.Print("%s\n", p.MediaURL)
		}
		h.output.Print("%s %d  💬 %d\n\n", heart, p.Likes, p.Comments)
	}
	return nil
}

func (h *Handler) handleLike(ctx context.Context, args []string) error {
	return h.setLike(ctx, args, true)
}

func (h *Handler) handleUnlike(ctx context.Context, args []string) error {
	return h.setLike(ctx, args, false)
}

// setLike seeds the count from the timeline and asks the server for the
// current like before changing it, so repeated commands stay idempotent.
func (h *Handler) setLike(ctx context.Context, args []string, want bool) error {
	name := "unlike"
	if want {
		name = "like"
	}
	if len(args) != 1 {
		return h.fail(usage(name + " <postId>"))
	}
	postId := args[0]

	if err := h.app.Refresh(ctx); err != nil {
		return h.fail(err)
	}
	if _, err := h.app.Likes.IsLiked(ctx, postId); err != nil {
		return h.fail(err)
	}

	var err error
	if want {
		err = h.app.Likes.Like(ctx, postId)
	} else {
		err = h.app.Likes.Unlike(ctx, postId)
	}
	if err != nil {
		return h.fail(err)
	}

	st := h.app.Likes.State(postId)
	if h.output.IsJSON() {
		h.output.JSON(LikeResponse{PostID: postId, Liked: st.Liked, LikeCount: st.Count})
	} else if want {
		h.output.Success("Liked %s (%d likes)\n", postId, st.Count)
	} else {
		h.output.Success("Unliked %s (%d likes)\n", postId, st.Count)
	}
	return nil
}
