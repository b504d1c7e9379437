// Package apitest provides an in-memory REST backend for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/refconnect/refterm/domain"
)

// NetworkFailure as an injected status makes the server drop the connection
// without answering.
const NetworkFailure = 0

type pair struct{ a, b string }

// Server is a fake backend holding users, follows, requests, posts, likes,
// comments and chats in memory. Callers are identified by their bearer token.
type Server struct {
	*httptest.Server

	mu             sync.Mutex
	existsAsObject bool
	users          map[string]domain.UserRef
	admins         map[string]bool
	tokens         map[string]string
	follows        map[pair]domain.FollowEdge
	requests       map[pair]domain.FollowRequest
	posts          []domain.Post
	likes          map[pair]time.Time
	comments       map[string]domain.Comment
	chats          map[string]*domain.Chat
	messages       []domain.Message
	joinRequests   map[string]domain.ChatJoinRequest
	failures       map[string][]int
	gates          map[string]*Gate
	calls          []string
	seq            int
}

// Gate holds one request to a route until released.
type Gate struct {
	Entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *Gate) Release() {
	g.once.Do(func() { close(g.release) })
}

func NewServer() *Server {
	s := &Server{
		existsAsObject: true,
		users:          map[string]domain.UserRef{},
		admins:         map[string]bool{},
		tokens:         map[string]string{},
		follows:        map[pair]domain.FollowEdge{},
		requests:       map[pair]domain.FollowRequest{},
		likes:          map[pair]time.Time{},
		comments:       map[string]domain.Comment{},
		chats:          map[string]*domain.Chat{},
		joinRequests:   map[string]domain.ChatJoinRequest{},
		failures:       map[string][]int{},
		gates:          map[string]*Gate{},
	}

	mux := http.NewServeMux()
	s.handle(mux, "POST /Follows", s.createFollow)
	s.handle(mux, "DELETE /Follows", s.deleteFollow)
	s.handle(mux, "POST /FollowRequests", s.createRequest)
	s.handle(mux, "DELETE /FollowRequests", s.deleteRequest)
	s.handle(mux, "POST /FollowRequests/Accept", s.acceptRequest)
	s.handle(mux, "POST /FollowRequests/Decline", s.declineRequest)
	s.handle(mux, "GET /FollowRequests/Pending", s.pendingRequests)
	s.handle(mux, "GET /follow/{userId}/followers", s.followers)
	s.handle(mux, "GET /follow/{userId}/following", s.following)
	s.handle(mux, "POST /Like", s.createLike)
	s.handle(mux, "DELETE /Like", s.deleteLike)
	s.handle(mux, "GET /Like/exists", s.likeExists)
	s.handle(mux, "GET /posts", s.listPosts)
	s.handle(mux, "POST /posts", s.createPost)
	s.handle(mux, "PUT /posts/{postId}", s.updatePost)
	s.handle(mux, "DELETE /posts/{postId}", s.deletePost)
	s.handle(mux, "GET /posts/{postId}/comments", s.listComments)
	s.handle(mux, "POST /comments", s.createComment)
	s.handle(mux, "DELETE /comments/{commentId}", s.deleteComment)
	s.handle(mux, "GET /profiles/{id}", s.basicProfile)
	s.handle(mux, "GET /profiles/{id}/extended", s.extendedProfile)
	s.handleChats(mux)

	s.Server = httptest.NewServer(mux)
	// Fresh connections keep dropped ones from being retried by the transport.
	s.Server.Config.SetKeepAlivesEnabled(false)
	return s
}

// AddUser registers a user and returns its bearer token.
func (s *Server) AddUser(id, userName string, public bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = domain.UserRef{
		Id:              id,
		UserName:        userName,
		IsProfilePublic: &public,
		CreatedAt:       time.Now().Add(-48 * time.Hour),
	}
	token := "token-" + id
	s.tokens[token] = id
	return token
}

// MakeAdmin lets id delete content it does not own.
func (s *Server) MakeAdmin(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[id] = true
}

// SetName sets first and last name of an existing user.
func (s *Server) SetName(id, first, last string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	u.FirstName, u.LastName = first, last
	s.users[id] = u
}

// SeedPost stores a post with likeCount likes from synthetic users.
func (s *Server) SeedPost(postId, userId, description string, likeCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append([]domain.Post{{
		PostId:      postId,
		UserId:      userId,
		Description: description,
		CreatedAt:   time.Now(),
	}}, s.posts...)
	for i := 0; i < likeCount; i++ {
		s.likes[pair{fmt.Sprintf("seed-%d", i), postId}] = time.Now()
	}
}

// SeedFollow creates an edge directly, bypassing visibility checks.
func (s *Server) SeedFollow(followerId, followingId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.follows[pair{followerId, followingId}] = domain.FollowEdge{
		FollowerId: followerId, FollowingId: followingId, FollowedAt: time.Now(),
	}
}

// SeedRequest creates a pending request directly.
func (s *Server) SeedRequest(followerId, followingId string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("req-%d", s.seq)
	s.requests[pair{followerId, followingId}] = domain.FollowRequest{
		Id: id, FollowerId: followerId, FollowingId: followingId, RequestedAt: time.Now(),
	}
	return id
}

// ExistsAsObject switches GET /Like/exists between {"exists": b} and a
// bare boolean.
func (s *Server) ExistsAsObject(asObject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.existsAsObject = asObject
}

// Fail makes the next len(statuses) calls to route answer with the given
// statuses. Use NetworkFailure to drop the connection.
func (s *Server) Fail(route string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], statuses...)
}

// Hold parks the next call to route until the returned gate is released.
func (s *Server) Hold(route string) *Gate {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := &Gate{Entered: make(chan struct{}), release: make(chan struct{})}
	s.gates[route] = g
	return g
}

// Calls returns the routes hit so far, in order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount counts hits on route.
func (s *Server) CallCount(route string) int {
	n := 0
	for _, c := range s.Calls() {
		if c == route {
			n++
		}
	}
	return n
}

func (s *Server) IsFollowing(followerId, followingId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.follows[pair{followerId, followingId}]
	return ok
}

func (s *Server) HasRequest(followerId, followingId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.requests[pair{followerId, followingId}]
	return ok
}

func (s *Server) LikeCount(postId string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.likeCountLocked(postId)
}

func (s *Server) HasLike(userId, postId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.likes[pair{userId, postId}]
	return ok
}

func (s *Server) CommentCount(postId string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.comments {
		if c.PostId == postId {
			n++
		}
	}
	return n
}

func (s *Server) handle(mux *http.ServeMux, route string, h func(w http.ResponseWriter, r *http.Request, caller string)) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, route)
		var status int
		failing := false
		if q := s.failures[route]; len(q) > 0 {
			status, failing = q[0], true
			s.failures[route] = q[1:]
		}
		gate := s.gates[route]
		delete(s.gates, route)
		caller := s.tokens[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
		s.mu.Unlock()

		if gate != nil {
			close(gate.Entered)
			select {
			case <-gate.release:
			case <-r.Context().Done():
				return
			}
		}

		if failing {
			if status == NetworkFailure {
				dropConnection(w)
				return
			}
			http.Error(w, `{"message":"injected failure"}`, status)
			return
		}

		if caller == "" {
			http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		h(w, r, caller)
	})
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("apitest: response writer cannot hijack")
	}
	conn, _, err := hj.Hijack()
	if err == nil {
		conn.Close()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, `{"message":"bad request"}`, http.StatusBadRequest)
		return false
	}
	return true
}

type followWire struct {
	FollowerId  string    `json:"followerId"`
	FollowingId string    `json:"followingId"`
	FollowedAt  time.Time `json:"followedAt"`
}

type requestWire struct {
	FollowRequestId string    `json:"followRequestId"`
	FollowerId      string    `json:"followerId"`
	FollowingId     string    `json:"followingId"`
	RequestedAt     time.Time `json:"requestedAt"`
}

func (s *Server) createFollow(w http.ResponseWriter, r *http.Request, caller string) {
	var in followWire
	if !decode(w, r, &in) {
		return
	}
	if in.FollowerId != caller || in.FollowingId == caller {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	target, ok := s.users[in.FollowingId]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if target.IsProfilePublic != nil && !*target.IsProfilePublic {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	key := pair{in.FollowerId, in.FollowingId}
	if _, exists := s.follows[key]; exists {
		w.WriteHeader(http.StatusConflict)
		return
	}
	s.follows[key] = domain.FollowEdge{FollowerId: in.FollowerId, FollowingId: in.FollowingId, FollowedAt: time.Now()}
	delete(s.requests, key)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) deleteFollow(w http.ResponseWriter, r *http.Request, caller string) {
	var in followWire
	if !decode(w, r, &in) {
		return
	}
	key := pair{in.FollowerId, in.FollowingId}
	if _, exists := s.follows[key]; !exists || in.FollowerId != caller {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	delete(s.follows, key)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createRequest(w http.ResponseWriter, r *http.Request, caller string) {
	var in requestWire
	if !decode(w, r, &in) {
		return
	}
	if in.FollowRequestId == "" {
		http.Error(w, `{"message":"followRequestId is required"}`, http.StatusBadRequest)
		return
	}
	if in.FollowerId != caller || in.FollowingId == caller {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if _, ok := s.users[in.FollowingId]; !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	key := pair{in.FollowerId, in.FollowingId}
	_, following := s.follows[key]
	_, pending := s.requests[key]
	if following || pending {
		w.WriteHeader(http.StatusConflict)
		return
	}
	// The server assigns its own identifier.
	s.seq++
	s.requests[key] = domain.FollowRequest{
		Id:          fmt.Sprintf("req-%d", s.seq),
		FollowerId:  in.FollowerId,
		FollowingId: in.FollowingId,
		RequestedAt: time.Now(),
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) deleteRequest(w http.ResponseWriter, r *http.Request, caller string) {
	var in requestWire
	if !decode(w, r, &in) {
		return
	}
	key := pair{in.FollowerId, in.FollowingId}
	if _, exists := s.requests[key]; !exists || in.FollowerId != caller {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	delete(s.requests, key)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) consumeRequest(w http.ResponseWriter, r *http.Request, caller string, accept bool) {
	var in requestWire
	if !decode(w, r, &in) {
		return
	}
	if in.FollowingId != "" && in.FollowingId != caller {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	key := pair{in.FollowerId, caller}
	if _, exists := s.requests[key]; !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	delete(s.requests, key)
	if accept {
		s.follows[key] = domain.FollowEdge{FollowerId: in.FollowerId, FollowingId: caller, FollowedAt: time.Now()}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) acceptRequest(w http.ResponseWriter, r *http.Request, caller string) {
	s.consumeRequest(w, r, caller, true)
}

func (s *Server) declineRequest(w http.ResponseWriter, r *http.Request, caller string) {
	s.consumeRequest(w, r, caller, false)
}

func (s *Server) userWire(id string) map[string]any {
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	return map[string]any{
		"id":              u.Id,
		"userName":        u.UserName,
		"firstName":       u.FirstName,
		"lastName":        u.LastName,
		"profileImageUrl": u.ProfileImageUrl,
		"isProfilePublic": u.IsProfilePublic,
		"createdAt":       u.CreatedAt.UTC().Format("2006-01-02T15:04:05.9999999"),
	}
}

func (s *Server) pendingRequests(w http.ResponseWriter, r *http.Request, caller string) {
	out := []map[string]any{}
	for _, req := range s.requests {
		if req.FollowingId != caller {
			continue
		}
		out = append(out, map[string]any{
			"followRequestId": req.Id,
			"followerId":      req.FollowerId,
			"followingId":     req.FollowingId,
			"requestedAt":     req.RequestedAt,
			"followerRequest": s.userWire(req.FollowerId),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["followRequestId"].(string) < out[j]["followRequestId"].(string)
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) edgesWhere(match func(domain.FollowEdge) bool) []map[string]any {
	out := []map[string]any{}
	for _, e := range s.follows {
		if !match(e) {
			continue
		}
		out = append(out, map[string]any{
			"followerId":  e.FollowerId,
			"followingId": e.FollowingId,
			"followedAt":  e.FollowedAt,
			"follower":    s.userWire(e.FollowerId),
			"following":   s.userWire(e.FollowingId),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		return a["followerId"].(string)+a["followingId"].(string) < b["followerId"].(string)+b["followingId"].(string)
	})
	return out
}

func (s *Server) followers(w http.ResponseWriter, r *http.Request, caller string) {
	id := r.PathValue("userId")
	writeJSON(w, http.StatusOK, s.edgesWhere(func(e domain.FollowEdge) bool { return e.FollowingId == id }))
}

func (s *Server) following(w http.ResponseWriter, r *http.Request, caller string) {
	id := r.PathValue("userId")
	writeJSON(w, http.StatusOK, s.edgesWhere(func(e domain.FollowEdge) bool { return e.FollowerId == id }))
}

func (s *Server) findPost(id string) int {
	for i, p := range s.posts {
		if p.PostId == id {
			return i
		}
	}
	return -1
}

func (s *Server) likeCountLocked(postId string) int {
	n := 0
	for k := range s.likes {
		if k.b == postId {
			n++
		}
	}
	return n
}

func (s *Server) createLike(w http.ResponseWriter, r *http.Request, caller string) {
	var in struct {
		PostId string `json:"postId"`
	}
	if !decode(w, r, &in) {
		return
	}
	if s.findPost(in.PostId) < 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	key := pair{caller, in.PostId}
	if _, exists := s.likes[key]; exists {
		w.WriteHeader(http.StatusConflict)
		return
	}
	s.likes[key] = time.Now()
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) deleteLike(w http.ResponseWriter, r *http.Request, caller string) {
	var in struct {
		PostId string `json:"postId"`
	}
	if !decode(w, r, &in) {
		return
	}
	key := pair{caller, in.PostId}
	if _, exists := s.likes[key]; !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	delete(s.likes, key)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) likeExists(w http.ResponseWriter, r *http.Request, caller string) {
	_, exists := s.likes[pair{caller, r.URL.Query().Get("postId")}]
	if s.existsAsObject {
		writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
		return
	}
	writeJSON(w, http.StatusOK, exists)
}

// postWire omits the likes list, like the real list endpoint.
func (s *Server) postWire(p domain.Post) map[string]any {
	return map[string]any{
		"postId":      p.PostId,
		"userId":      p.UserId,
		"description": p.Description,
		"mediaUrl":    p.MediaUrl,
		"mediaType":   p.MediaType,
		"createdAt":   p.CreatedAt,
		"likeCount":   s.likeCountLocked(p.PostId),
		"user":        s.userWire(p.UserId),
	}
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request, caller string) {
	out := make([]map[string]any, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, s.postWire(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request, caller string) {
	var in domain.CreatePost
	if !decode(w, r, &in) {
		return
	}
	if in.UserId != caller {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	s.seq++
	p := domain.Post{
		PostId:      fmt.Sprintf("post-%d", s.seq),
		UserId:      in.UserId,
		Description: in.Description,
		MediaUrl:    in.MediaUrl,
		MediaType:   in.MediaType,
		CreatedAt:   time.Now(),
	}
	s.posts = append([]domain.Post{p}, s.posts...)
	writeJSON(w, http.StatusCreated, s.postWire(p))
}

func (s *Server) updatePost(w http.ResponseWriter, r *http.Request, caller string) {
	i := s.findPost(r.PathValue("postId"))
	if i < 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if s.posts[i].UserId != caller {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	var in domain.UpdatePost
	if !decode(w, r, &in) {
		return
	}
	s.posts[i].Description = in.Description
	s.posts[i].MediaUrl = in.MediaUrl
	s.posts[i].MediaType = in.MediaType
	writeJSON(w, http.StatusOK, s.postWire(s.posts[i]))
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request, caller string) {
	i := s.findPost(r.PathValue("postId"))
	if i < 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if s.posts[i].UserId != caller && !s.admins[caller] {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	s.posts = append(s.posts[:i], s.posts[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request, caller string) {
	postId := r.PathValue("postId")
	out := []domain.Comment{}
	for _, c := range s.comments {
		if c.PostId == postId {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CommentId < out[j].CommentId })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request, caller string) {
	var in domain.CreateComment
	if !decode(w, r, &in) {
		return
	}
	if s.findPost(in.PostId) < 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.seq++
	c := domain.Comment{
		CommentId:       fmt.Sprintf("comment-%03d", s.seq),
		PostId:          in.PostId,
		UserId:          caller,
		Content:         in.Content,
		ParentCommentId: in.ParentCommentId,
		CreatedAt:       time.Now(),
	}
	s.comments[c.CommentId] = c
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request, caller string) {
	id := r.PathValue("commentId")
	c, ok := s.comments[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if c.UserId != caller {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	delete(s.comments, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) basicProfile(w http.ResponseWriter, r *http.Request, caller string) {
	u := s.userWire(r.PathValue("id"))
	if u == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) extendedProfile(w http.ResponseWriter, r *http.Request, caller string) {
	id := r.PathValue("id")
	u, ok := s.users[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_, follows := s.follows[pair{caller, id}]
	if caller != id && !follows && u.IsProfilePublic != nil && !*u.IsProfilePublic {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	out := s.userWire(id)
	followers, following := 0, 0
	for k := range s.follows {
		if k.b == id {
			followers++
		}
		if k.a == id {
			following++
		}
	}
	out["followersCount"] = followers
	out["followingCount"] = following
	posts := []map[string]any{}
	for _, p := range s.posts {
		if p.UserId == id {
			posts = append(posts, s.postWire(p))
		}
	}
	out["posts"] = posts
	writeJSON(w, http.StatusOK, out)
}
