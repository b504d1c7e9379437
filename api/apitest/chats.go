package apitest

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/refconnect/refterm/domain"
)

const joinPending = "Pending"

func (s *Server) handleChats(mux *http.ServeMux) {
	s.handle(mux, "GET /Chats", s.myChats)
	s.handle(mux, "GET /Chats/groups", s.groupChats)
	s.handle(mux, "GET /Chats/groups/search", s.searchGroupChats)
	s.handle(mux, "POST /Chats/group", s.createGroupChat)
	s.handle(mux, "PUT /Chats/{chatId}", s.updateChat)
	s.handle(mux, "DELETE /Chats/{chatId}", s.deleteChat)
	s.handle(mux, "GET /Messages/chat/{chatId}", s.listMessages)
	s.handle(mux, "POST /Messages", s.sendMessage)
	s.handle(mux, "PUT /Messages/{messageId}", s.updateMessage)
	s.handle(mux, "DELETE /Messages/{messageId}", s.deleteMessage)
	s.handle(mux, "POST /ChatJoinRequests", s.createJoinRequest)
	s.handle(mux, "GET /ChatJoinRequests/owner", s.ownerJoinRequests)
	s.handle(mux, "GET /ChatJoinRequests/chat/{chatId}", s.chatJoinRequests)
	s.handle(mux, "GET /ChatJoinRequests/my-requests", s.myJoinRequests)
	s.handle(mux, "POST /ChatJoinRequests/{requestId}/accept", s.acceptJoinRequest)
	s.handle(mux, "POST /ChatJoinRequests/{requestId}/decline", s.declineJoinRequest)
	s.handle(mux, "DELETE /ChatJoinRequests/{requestId}", s.cancelJoinRequest)
}

// SeedChat stores a group chat owned by ownerId. The owner is always a
// member.
func (s *Server) SeedChat(chatId, ownerId, name string, members ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &domain.Chat{ChatId: chatId, Name: name, IsGroup: true, OwnerId: ownerId, CreatedAt: time.Now()}
	for _, id := range append([]string{ownerId}, members...) {
		addMember(c, id)
	}
	s.chats[chatId] = c
}

// SeedMessage stores a message and returns its id.
func (s *Server) SeedMessage(chatId, senderId, content string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeMessage(chatId, senderId, content, "").MessageId
}

// SeedJoinRequest stores a pending request from userId and returns its id.
func (s *Server) SeedJoinRequest(chatId, userId string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeJoinRequest(chatId, userId).Id
}

func (s *Server) IsMember(chatId, userId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatId]
	return ok && c.HasMember(userId)
}

func (s *Server) ChatExists(chatId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.chats[chatId]
	return ok
}

func (s *Server) HasJoinRequest(chatId, userId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.findJoinRequest(chatId, userId)
	return ok
}

func (s *Server) MessageCount(chatId string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if m.ChatId == chatId {
			n++
		}
	}
	return n
}

// MessageContent returns the stored content of messageId.
func (s *Server) MessageContent(messageId string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.findMessage(messageId); i >= 0 {
		return s.messages[i].Content, true
	}
	return "", false
}

func addMember(c *domain.Chat, userId string) {
	if c.HasMember(userId) {
		return
	}
	c.Members = append(c.Members, domain.ChatMember{ChatId: c.ChatId, UserId: userId, JoinedAt: time.Now()})
}

func (s *Server) storeMessage(chatId, senderId, content, mediaUrl string) domain.Message {
	s.seq++
	m := domain.Message{
		MessageId:  fmt.Sprintf("msg-%03d", s.seq),
		ChatId:     chatId,
		SenderId:   senderId,
		SenderName: s.users[senderId].UserName,
		Content:    content,
		MediaUrl:   mediaUrl,
		CreatedAt:  time.Now(),
	}
	s.messages = append(s.messages, m)
	return m
}

func (s *Server) storeJoinRequest(chatId, userId string) domain.ChatJoinRequest {
	s.seq++
	req := domain.ChatJoinRequest{
		Id:          fmt.Sprintf("join-%03d", s.seq),
		ChatId:      chatId,
		UserId:      userId,
		Status:      joinPending,
		RequestedAt: time.Now(),
	}
	s.joinRequests[req.Id] = req
	return req
}

func (s *Server) findMessage(id string) int {
	for i, m := range s.messages {
		if m.MessageId == id {
			return i
		}
	}
	return -1
}

func (s *Server) findJoinRequest(chatId, userId string) (domain.ChatJoinRequest, bool) {
	for _, req := range s.joinRequests {
		if req.ChatId == chatId && req.UserId == userId {
			return req, true
		}
	}
	return domain.ChatJoinRequest{}, false
}

func (s *Server) chatsWhere(match func(*domain.Chat) bool) []domain.Chat {
	out := []domain.Chat{}
	for _, c := range s.chats {
		if match(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatId < out[j].ChatId })
	return out
}

func (s *Server) myChats(w http.ResponseWriter, r *http.Request, caller string) {
	writeJSON(w, http.StatusOK, s.chatsWhere(func(c *domain.Chat) bool { return c.HasMember(caller) }))
}

func (s *Server) groupChats(w http.ResponseWriter, r *http.Request, caller string) {
	writeJSON(w, http.StatusOK, s.chatsWhere(func(c *domain.Chat) bool { return c.IsGroup }))
}

func (s *Server) searchGroupChats(w http.ResponseWriter, r *http.Request, caller string) {
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("query")))
	writeJSON(w, http.StatusOK, s.chatsWhere(func(c *domain.Chat) bool {
		return c.IsGroup && (strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Description), q))
	}))
}

func (s *Server) createGroupChat(w http.ResponseWriter, r *http.Request, caller string) {
	var in domain.CreateGroupChat
	if !decode(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.GroupName) == "" {
		http.Error(w, `{"message":"groupName is required"}`, http.StatusBadRequest)
		return
	}
	for _, id := range in.InitialUserIds {
		if _, ok := s.users[id]; !ok {
			http.Error(w, `{"message":"unknown user"}`, http.StatusBadRequest)
			return
		}
	}
	s.seq++
	c := &domain.Chat{
		ChatId:      fmt.Sprintf("chat-%03d", s.seq),
		Name:        in.GroupName,
		Description: in.Description,
		IsGroup:     true,
		OwnerId:     caller,
		CreatedAt:   time.Now(),
	}
	for _, id := range append([]string{caller}, in.InitialUserIds...) {
		addMember(c, id)
	}
	s.chats[c.ChatId] = c
	writeJSON(w, http.StatusCreated, c)
}

// ownedChat answers 404 or 403 itself and returns nil unless caller may
// manage chatId.
func (s *Server) ownedChat(w http.ResponseWriter, chatId, caller string) *domain.Chat {
	c, ok := s.chats[chatId]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return nil
	}
	if c.OwnerId != caller && !s.admins[caller] {
		w.WriteHeader(http.StatusForbidden)
		return nil
	}
	return c
}

func (s *Server) updateChat(w http.ResponseWriter, r *http.Request, caller string) {
	c := s.ownedChat(w, r.PathValue("chatId"), caller)
	if c == nil {
		return
	}
	var in domain.UpdateChat
	if !decode(w, r, &in) {
		return
	}
	if in.Name != "" {
		c.Name = in.Name
	}
	if in.Description != "" {
		c.Description = in.Description
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteChat(w http.ResponseWriter, r *http.Request, caller string) {
	c := s.ownedChat(w, r.PathValue("chatId"), caller)
	if c == nil {
		return
	}
	delete(s.chats, c.ChatId)
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.ChatId != c.ChatId {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	for id, req := range s.joinRequests {
		if req.ChatId == c.ChatId {
			delete(s.joinRequests, id)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request, caller string) {
	c, ok := s.chats[r.PathValue("chatId")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if !c.HasMember(caller) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	out := []domain.Message{}
	for _, m := range s.messages {
		if m.ChatId == c.ChatId {
			out = append(out, m)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request, caller string) {
	var in domain.CreateMessage
	if !decode(w, r, &in) {
		return
	}
	c, ok := s.chats[in.ChatId]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if !c.HasMember(caller) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if strings.TrimSpace(in.Content) == "" && in.MediaUrl == "" {
		http.Error(w, `{"message":"content is required"}`, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, s.storeMessage(in.ChatId, caller, in.Content, in.MediaUrl))
}

func (s *Server) updateMessage(w http.ResponseWriter, r *http.Request, caller string) {
	i := s.findMessage(r.PathValue("messageId"))
	if i < 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if s.messages[i].SenderId != caller {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	var in domain.UpdateMessage
	if !decode(w, r, &in) {
		return
	}
	s.messages[i].Content = in.Content
	s.messages[i].Edited = true
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request, caller string) {
	i := s.findMessage(r.PathValue("messageId"))
	if i < 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if s.messages[i].SenderId != caller && !s.admins[caller] {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	s.messages = append(s.messages[:i], s.messages[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) joinRequestWire(req domain.ChatJoinRequest) map[string]any {
	out := map[string]any{
		"chatJoinRequestId": req.Id,
		"chatId":            req.ChatId,
		"userId":            req.UserId,
		"status":            req.Status,
		"requestedAt":       req.RequestedAt,
		"user":              s.userWire(req.UserId),
	}
	if c, ok := s.chats[req.ChatId]; ok {
		out["chat"] = c
	}
	return out
}

func (s *Server) joinRequestsWhere(match func(domain.ChatJoinRequest) bool) []map[string]any {
	var reqs []domain.ChatJoinRequest
	for _, req := range s.joinRequests {
		if match(req) {
			reqs = append(reqs, req)
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].Id < reqs[j].Id })
	out := []map[string]any{}
	for _, req := range reqs {
		out = append(out, s.joinRequestWire(req))
	}
	return out
}

func (s *Server) createJoinRequest(w http.ResponseWriter, r *http.Request, caller string) {
	var in struct {
		ChatId string `json:"chatId"`
	}
	if !decode(w, r, &in) {
		return
	}
	c, ok := s.chats[in.ChatId]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if !c.IsGroup {
		http.Error(w, `{"message":"only group chats take join requests"}`, http.StatusBadRequest)
		return
	}
	if _, pending := s.findJoinRequest(c.ChatId, caller); pending || c.HasMember(caller) {
		w.WriteHeader(http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusCreated, s.joinRequestWire(s.storeJoinRequest(c.ChatId, caller)))
}

func (s *Server) ownerJoinRequests(w http.ResponseWriter, r *http.Request, caller string) {
	writeJSON(w, http.StatusOK, s.joinRequestsWhere(func(req domain.ChatJoinRequest) bool {
		c, ok := s.chats[req.ChatId]
		return ok && c.OwnerId == caller
	}))
}

func (s *Server) chatJoinRequests(w http.ResponseWriter, r *http.Request, caller string) {
	c := s.ownedChat(w, r.PathValue("chatId"), caller)
	if c == nil {
		return
	}
	writeJSON(w, http.StatusOK, s.joinRequestsWhere(func(req domain.ChatJoinRequest) bool {
		return req.ChatId == c.ChatId
	}))
}

func (s *Server) myJoinRequests(w http.ResponseWriter, r *http.Request, caller string) {
	writeJSON(w, http.StatusOK, s.joinRequestsWhere(func(req domain.ChatJoinRequest) bool {
		return req.UserId == caller
	}))
}

func (s *Server) consumeJoinRequest(w http.ResponseWriter, r *http.Request, caller string, accept bool) {
	req, ok := s.joinRequests[r.PathValue("requestId")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	c := s.ownedChat(w, req.ChatId, caller)
	if c == nil {
		return
	}
	delete(s.joinRequests, req.Id)
	if accept {
		addMember(c, req.UserId)
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) acceptJoinRequest(w http.ResponseWriter, r *http.Request, caller string) {
	s.consumeJoinRequest(w, r, caller, true)
}

func (s *Server) declineJoinRequest(w http.ResponseWriter, r *http.Request, caller string) {
	s.consumeJoinRequest(w, r, caller, false)
}

func (s *Server) cancelJoinRequest(w http.ResponseWriter, r *http.Request, caller string) {
	req, ok := s.joinRequests[r.PathValue("requestId")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if req.UserId != caller {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	delete(s.joinRequests, req.Id)
	w.WriteHeader(http.StatusNoContent)
}
