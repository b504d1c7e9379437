package cli

import (
	"context"
	"strings"

	"github.com/refconnect/refterm/chat"
	"github.com/refconnect/refterm/domain"
)

func chatItem(c domain.Chat) ChatItem {
	return ChatItem{
		ID:          c.ChatId,
		Name:        c.Title(),
		Description: c.Description,
		Group:       c.IsGroup,
		Owner:       c.OwnerId,
		Members:     len(c.Members),
		CreatedAt:   c.CreatedAt,
	}
}

func (h *Handler) printChats(list []domain.Chat, empty string) {
	items := make([]ChatItem, 0, len(list))
	for _, c := range list {
		items = append(items, chatItem(c))
	}
	if h.output.IsJSON() {
		h.output.JSON(ChatsResponse{Chats: items, Count: len(items)})
		return
	}
	if len(items) == 0 {
		h.output.Println(empty)
		return
	}
	for _, c := range items {
		h.output.Print("%s (%d members) [%s]\n", c.Name, c.Members, c.ID)
		if c.Description != "" {
			h.output.Print("  %s\n", c.Description)
		}
	}
}

// handleChats lists the chats the user belongs to
func (h *Handler) handleChats(ctx context.Context, args []string) error {
	list, err := h.app.Chats.Fetch(ctx)
	if err != nil {
		return h.fail(err)
	}
	h.printChats(list, "No chats.")
	return nil
}

// handleGroups lists every group chat, or those matching the query
func (h *Handler) handleGroups(ctx context.Context, args []string) error {
	list, err := h.app.Chats.SearchGroups(ctx, strings.Join(args, " "))
	if err != nil {
		return h.fail(err)
	}
	h.printChats(list, "No groups found.")
	return nil
}

func (h *Handler) handleMessages(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return h.fail(usage("messages <chatId>"))
	}
	list, err := h.app.Chats.FetchMessages(ctx, args[0])
	if err != nil {
		return h.fail(err)
	}

	if h.output.IsJSON() {
		items := make([]MessageItem, 0, len(list))
		for _, m := range list {
			items = append(items, MessageItem{
				ID:         m.MessageId,
				ChatID:     m.ChatId,
				Sender:     m.SenderId,
				SenderName: m.SenderName,
				Content:    m.Content,
				Edited:     m.Edited,
				CreatedAt:  m.CreatedAt,
			})
		}
		h.output.JSON(MessagesResponse{ChatID: args[0], Messages: items, Count: len(items)})
		return nil
	}

	if len(list) == 0 {
		h.output.Println("No messages.")
		return nil
	}
	for _, m := range list {
		sender := m.SenderName
		if sender == "" {
			sender = m.SenderId
		}
		edited := ""
		if m.Edited {
			edited = " (edited)"
		}
		h.output.Print("@%s (%s)%s [%s]\n  %s\n", sender, FormatTimeAgo(m.CreatedAt), edited, m.MessageId, m.Content)
	}
	return nil
}

func (h *Handler) handleSend(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return h.fail(usage("send <chatId> <message> | send <chatId> -"))
	}
	message, err := h.readMessage(args[1:])
	if err != nil {
		return h.fail(err)
	}
	if err := h.checkLength(message); err != nil {
		return h.fail(err)
	}

	msg, err := h.app.Chats.Send(ctx, args[0], message)
	if err != nil {
		return h.fail(err)
	}
	if h.output.IsJSON() {
		h.output.JSON(MessageItem{ID: msg.MessageId, ChatID: msg.ChatId, Sender: msg.SenderId, Content: msg.Content, CreatedAt: msg.CreatedAt})
	} else {
		h.output.Success("Sent: %s\n", msg.MessageId)
	}
	return nil
}

func (h *Handler) handleEditMessage(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return h.fail(usage("edit-message <messageId> <text>"))
	}
	text := strings.TrimSpace(strings.Join(args[1:], " "))
	if err := h.checkLength(text); err != nil {
		return h.fail(err)
	}
	if err := h.app.Chats.EditMessage(ctx, args[0], text); err != nil {
		return h.fail(err)
	}
	if h.output.IsJSON() {
		h.output.JSON(MessageItem{ID: args[0], Content: text, Edited: true})
	} else {
		h.output.Success("Edited: %s\n", args[0])
	}
	return nil
}

func (h *Handler) handleDeleteMessage(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return h.fail(usage("delete-message <messageId>"))
	}
	confirm := chat.ConfirmFunc(func(action, id string) bool {
		return h.confirm("Delete message", id)
	})
	if err := h.app.Chats.DeleteMessage(ctx, args[0], confirm); err != nil {
		return h.fail(err)
	}
	h.printDeleted(args[0])
	return nil
}

func (h *Handler) printDeleted(id string) {
	if h.output.IsJSON() {
		h.output.JSON(DeleteResponse{ID: id, Deleted: true})
	} else {
		h.output.Success("Deleted: %s\n", id)
	}
}

// splitDescription pulls a -d <description> flag out of args.
func splitDescription(args []string) ([]string, string) {
	var rest []string
	description := ""
	for i := 0; i < len(args); i++ {
		if args[i] == "-d" && i+1 < len(args) {
			description = args[i+1]
			i++
			continue
		}
		rest = append(rest, args[i])
	}
	return rest, description
}

// handleCreateGroup creates a group with the listed users as members
func (h *Handler) handleCreateGroup(ctx context.Context, args []string) error {
	args, description := splitDescription(args)
	if len(args) == 0 {
		return h.fail(usage("create-group <name> [userId...] [-d <description>]"))
	}
	c, err := h.app.Chats.CreateGroup(ctx, args[0], description, args[1:])
	if err != nil {
		return h.fail(err)
	}
	if h.output.IsJSON() {
		h.output.JSON(chatItem(c))
	} else {
		h.output.Success("Created group %s [%s]\n", c.Title(), c.ChatId)
	}
	return nil
}

func (h *Handler) handleUpdateGroup(ctx context.Context, args []string) error {
	args, description := splitDescription(args)
	if len(args) == 0 {
		return h.fail(usage("update-group <chatId> [name] [-d <description>]"))
	}
	name := strings.Join(args[1:], " ")
	if err := h.app.Chats.UpdateGroup(ctx, args[0], name, description); err != nil {
		return h.fail(err)
	}
	if h.output.IsJSON() {
		h.output.JSON(ChatItem{ID: args[0], Name: name, Description: description, Group: true})
	} else {
		h.output.Success("Updated group %s\n", args[0])
	}
	return nil
}

func (h *Handler) handleDeleteGroup(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return h.fail(usage("delete-group <chatId>"))
	}
	confirm := chat.ConfirmFunc(func(action, id string) bool {
		return h.confirm("Delete group", id)
	})
	if err := h.app.Chats.DeleteGroup(ctx, args[0], confirm); err != nil {
		return h.fail(err)
	}
	h.printDeleted(args[0])
	return nil
}

func joinRequestItem(r domain.ChatJoinRequest) JoinRequestItem {
	item := JoinRequestItem{
		ID:          r.Id,
		ChatID:      r.ChatId,
		UserID:      r.UserId,
		Status:      r.Status,
		RequestedAt: r.RequestedAt,
	}
	if r.User != nil {
		item.Username = r.User.UserName
	}
	if r.Chat != nil {
		item.ChatName = r.Chat.Title()
	}
	return item
}

func (h *Handler) printJoinRequests(list []domain.ChatJoinRequest, mine bool) {
	items := make([]JoinRequestItem, 0, len(list))
	for _, r := range list {
		items = append(items, joinRequestItem(r))
	}
	if h.output.IsJSON() {
		h.output.JSON(JoinRequestsResponse{Requests: items, Count: len(items)})
		return
	}
	if len(items) == 0 {
		h.output.Println("No pending join requests.")
		return
	}
	h.output.Print("Join requests (%d):\n\n", len(items))
	for _, r := range items {
		group := r.ChatName
		if group == "" {
			group = r.ChatID
		}
		if mine {
			h.output.Print("You asked to join %s (%s) [%s]\n", group, FormatTimeAgo(r.RequestedAt), r.ID)
			continue
		}
		who := r.Username
		if who == "" {
			who = r.UserID
		}
		h.output.Print("@%s wants to join %s (%s) [%s]\n", who, group, FormatTimeAgo(r.RequestedAt), r.ID)
	}
}

func (h *Handler) handleJoin(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return h.fail(usage("join <chatId>"))
	}
	req, err := h.app.Chats.RequestJoin(ctx, args[0])
	if err != nil {
		return h.fail(err)
	}
	if h.output.IsJSON() {
		h.output.JSON(joinRequestItem(req))
	} else {
		h.output.Success("Join request sent to %s\n", args[0])
	}
	return nil
}

// handleJoinRequests lists requests to the user's groups, or to one group
func (h *Handler) handleJoinRequests(ctx context.Context, args []string) error {
	var (
		list []domain.ChatJoinRequest
		err  error
	)
	switch len(args) {
	case 0:
		list, err = h.app.Chats.FetchIncoming(ctx)
	case 1:
		list, err = h.app.Chats.FetchChatRequests(ctx, args[0])
	default:
		return h.fail(usage("join-requests [chatId]"))
	}
	if err != nil {
		return h.fail(err)
	}
	h.printJoinRequests(list, false)
	return nil
}

func (h *Handler) handleMyJoinRequests(ctx context.Context, args []string) error {
	list, err := h.app.Chats.FetchOutgoing(ctx)
	if err != nil {
		return h.fail(err)
	}
	h.printJoinRequests(list, true)
	return nil
}

func (h *Handler) handleAcceptJoin(ctx context.Context, args []string) error {
	return h.answerJoin(ctx, args, true)
}

func (h *Handler) handleDeclineJoin(ctx context.Context, args []string) error {
	return h.answerJoin(ctx, args, false)
}

func (h *Handler) answerJoin(ctx context.Context, args []string, accept bool) error {
	name, verb := "decline-join", "Declined"
	if accept {
		name, verb = "accept-join", "Accepted"
	}
	if len(args) != 1 {
		return h.fail(usage(name + " <requestId>"))
	}
	var err error
	if accept {
		err = h.app.Chats.AcceptJoin(ctx, args[0])
	} else {
		err = h.app.Chats.DeclineJoin(ctx, args[0])
	}
	if err != nil {
		return h.fail(err)
	}
	if h.output.IsJSON() {
		h.output.JSON(JoinRequestItem{ID: args[0], Status: strings.ToLower(verb)})
	} else {
		h.output.Success("%s join request %s\n", verb, args[0])
	}
	return nil
}

func (h *Handler) handleCancelJoin(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return h.fail(usage("cancel-join <requestId>"))
	}
	confirm := chat.ConfirmFunc(func(action, id string) bool {
		return h.confirm("Cancel join request", id)
	})
	if err := h.app.Chats.CancelJoin(ctx, args[0], confirm); err != nil {
		return h.fail(err)
	}
	if h.output.IsJSON() {
		h.output.JSON(DeleteResponse{ID: args[0], Deleted: true})
	} else {
		h.output.Success("Cancelled join request %s\n", args[0])
	}
	return nil
}
