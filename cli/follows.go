package cli

import (
	"context"

	"github.com/refconnect/refterm/domain"
	"github.com/refconnect/refterm/graph"
)

func (h *Handler) target(args []string, name string) (string, error) {
	if len(args) != 1 {
		return "", usage(name + " <userId>")
	}
	if actor := h.app.Session.Actor(); actor != nil && actor.Id == args[0] {
		return "", domain.ErrSelfFollow
	}
	return args[0], nil
}

func (h *Handler) printStatus(userId string, status domain.FollowStatus) {
	if h.output.IsJSON() {
		h.output.JSON(FollowResponse{UserID: userId, Status: string(status)})
		return
	}
	switch status {
	case domain.StatusFollowing:
		h.output.Success("Following %s\n", userId)
	case domain.StatusRequested:
		h.output.Success("Follow request sent to %s\n", userId)
	case domain.StatusNotFollowing:
		h.output.Success("Not following %s\n", userId)
	default:
		h.output.Success("Status toward %s is unknown\n", userId)
	}
}

// handleFollow loads the target's profile so the graph knows whether to
// follow directly or send a request.
func (h *Handler) handleFollow(ctx context.Context, args []string) error {
	userId, err := h.target(args, "follow")
	if err != nil {
		return h.fail(err)
	}
	if _, err := h.app.Profile(ctx, userId); err != nil {
		return h.fail(err)
	}
	if err := h.app.Graph.Connect(ctx, userId); err != nil {
		return h.fail(err)
	}
	h.printStatus(userId, h.app.Graph.Status(userId))
	return nil
}

func (h *Handler) handleUnfollow(ctx context.Context, args []string) error {
	userId, err := h.target(args, "unfollow")
	if err != nil {
		return h.fail(err)
	}
	confirm := graph.ConfirmFunc(func(action, id string) bool {
		return h.confirm("Unfollow", id)
	})
	if err := h.app.Graph.Unfollow(ctx, userId, confirm); err != nil {
		return h.fail(err)
	}
	h.printStatus(userId, domain.StatusNotFollowing)
	return nil
}

func (h *Handler) handleCancel(ctx context.Context, args []string) error {
	userId, err := h.target(args, "cancel")
	if err != nil {
		return h.fail(err)
	}
	confirm := graph.ConfirmFunc(func(action, id string) bool {
		return h.confirm("Cancel follow request to", id)
	})
	if err := h.app.Graph.CancelFollowRequest(ctx, userId, confirm); err != nil {
		return h.fail(err)
	}
	if h.output.IsJSON() {
		h.output.JSON(FollowResponse{UserID: userId, Status: string(domain.StatusNotFollowing)})
	} else {
		h.output.Success("Cancelled follow request to %s\n", userId)
	}
	return nil
}

func (h *Handler) handleStatus(ctx context.Context, args []string) error {
	userId, err := h.target(args, "status")
	if err != nil {
		return h.fail(err)
	}
	status, err := h.app.Graph.CheckFollowStatus(ctx, userId)
	if err != nil {
		return h.fail(err)
	}
	h.printStatus(userId, status)
	return nil
}

func (h *Handler) handleFollowers(ctx context.Context, args []string) error {
	return h.listEdges(ctx, args, false)
}

func (h *Handler) handleFollowing(ctx context.Context, args []string) error {
	return h.listEdges(ctx, args, true)
}

// listEdges prints the followers or followed users of the given user,
// defaulting to the session actor.
func (h *Handler) listEdges(ctx context.Context, args []string, following bool) error {
	name := "followers"
	if following {
		name = "following"
	}
	if len(args) > 1 {
		return h.fail(usage(name + " [userId]"))
	}
	userId := h.app.Session.Actor().Id
	if len(args) == 1 {
		userId = args[0]
	}

	var (
		edges []domain.FollowEdge
		err   error
	)
	if following {
		edges, err = h.app.Graph.Following(ctx, userId)
	} else {
		edges, err = h.app.Graph.Followers(ctx, userId)
	}
	if err != nil {
		return h.fail(err)
	}

	users := make([]UserItem, 0, len(edges))
	for _, e := range edges {
		u := h.app.Display.Follower(e)
		if following {
			u = h.app.Display.Followed(e)
		}
		users = append(users, UserItem{ID: u.Id, Username: u.UserName, Name: u.Name, Since: e.FollowedAt})
	}

	if h.output.IsJSON() {
		h.output.JSON(UsersResponse{Users: users, Count: len(users)})
		return nil
	}
	if len(users) == 0 {
		h.output.Print("No %s.\n", name)
		return nil
	}
	h.output.Print("%s of %s (%d):\n\n", name, userId, len(users))
	for _, u := range users {
		h.output.Print("%s @%s (since %s)\n", u.Name, u.Username, FormatTimeAgo(u.Since))
	}
	return nil
}

func (h *Handler) handleProfile(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return h.fail(usage("profile <userId>"))
	}
	p, err := h.app.Profile(ctx, args[0])
	if err != nil {
		return h.fail(err)
	}
	status := domain.StatusUnknown
	if actor := h.app.Session.Actor(); actor != nil && actor.Id != p.Id {
		if status, err = h.app.Graph.CheckFollowStatus(ctx, p.Id); err != nil {
			return h.fail(err)
		}
	}

	u := h.app.Display.Profile(p)
	resp := ProfileResponse{
		ID:             u.Id,
		Username:       u.UserName,
		Name:           u.Name,
		Bio:            p.Description,
		AvatarURL:      u.AvatarURL,
		Public:         p.IsProfilePublic,
		Extended:       p.Extended,
		FollowersCount: p.FollowersCount,
		FollowingCount: p.FollowingCount,
		PostCount:      len(p.Posts),
		Status:         string(status),
	}
	if h.output.IsJSON() {
		h.output.JSON(resp)
		return nil
	}

	h.output.Print("%s @%s\n", resp.Name, resp.Username)
	if resp.Bio != "" {
		h.output.Print("%s\n", resp.Bio)
	}
	if !p.Extended {
		h.output.Println("This profile is private. Follow to see posts and counts.")
	} else {
		h.output.Print("%d followers · %d following · %d posts\n", resp.FollowersCount, resp.FollowingCount, resp.PostCount)
	}
	if status != domain.StatusUnknown {
		h.output.Print("You: %s\n", status)
	}
	return nil
}
