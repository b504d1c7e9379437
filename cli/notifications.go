package cli

import (
	"context"
	"fmt"

	"github.com/refconnect/refterm/domain"
)

// handleRequests lists incoming follow requests
func (h *Handler) handleRequests(ctx context.Context, args []string) error {
	list, err := h.app.Graph.GetPendingRequests(ctx)
	if err != nil {
		return h.fail(err)
	}

	if h.output.IsJSON() {
		items := make([]RequestItem, 0, len(list))
		for _, r := range list {
			u := h.app.Display.Requester(r)
			items = append(items, RequestItem{
				ID:          r.Id,
				UserID:      r.FollowerId,
				Username:    u.UserName,
				Name:        u.Name,
				RequestedAt: r.RequestedAt,
			})
		}
		h.output.JSON(RequestsResponse{Requests: items, Count: len(items)})
		return nil
	}

	if len(list) == 0 {
		h.output.Println("No pending follow requests.")
		return nil
	}
	h.output.Print("Follow requests (%d):\n\n", len(list))
	for _, r := range list {
		u := h.app.Display.Requester(r)
		h.output.Print("%s @%s wants to follow you (%s) [%s]\n", u.Name, u.UserName, FormatTimeAgo(r.RequestedAt), r.FollowerId)
	}
	return nil
}

func (h *Handler) handleAccept(ctx context.Context, args []string) error {
	return h.answer(ctx, args, true)
}

func (h *Handler) handleDecline(ctx context.Context, args []string) error {
	return h.answer(ctx, args, false)
}

// answer resolves the request id of requester from the pending list and
// accepts or declines it.
func (h *Handler) answer(ctx context.Context, args []string, accept bool) error {
	name := "decline"
	if accept {
		name = "accept"
	}
	if len(args) != 1 {
		return h.fail(usage(name + " <userId>"))
	}
	requesterId := args[0]

	list, err := h.app.Graph.GetPendingRequests(ctx)
	if err != nil {
		return h.fail(err)
	}
	var req *domain.FollowRequest
	for i := range list {
		if list[i].FollowerId == requesterId {
			req = &list[i]
			break
		}
	}
	if req == nil {
		return h.fail(fmt.Errorf("no pending request from %s", requesterId))
	}

	if accept {
		err = h.app.Graph.AcceptFollowRequest(ctx, req.FollowerId, req.Id)
	} else {
		err = h.app.Graph.RejectFollowRequest(ctx, req.FollowerId, req.Id)
	}
	if err != nil {
		return h.fail(err)
	}

	status := "declined"
	if accept {
		status = "accepted"
	}
	if h.output.IsJSON() {
		h.output.JSON(FollowResponse{UserID: requesterId, Status: status})
	} else {
		h.output.Success("Request from @%s %s\n", h.app.Display.Requester(*req).UserName, status)
	}
	return nil
}
