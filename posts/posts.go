// Package posts holds the post list shown in feeds and the mutations on it.
package posts

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/refconnect/refterm/api"
	"github.com/refconnect/refterm/domain"
	"github.com/refconnect/refterm/session"
	"github.com/refconnect/refterm/util"
)

// Backend is the part of the API client the store drives.
type Backend interface {
	Posts(ctx context.Context) ([]domain.Post, error)
	CreatePost(ctx context.Context, in domain.CreatePost) (domain.Post, error)
	UpdatePost(ctx context.Context, postId string, in domain.UpdatePost) (domain.Post, error)
	DeletePost(ctx context.Context, postId string) error
	AddComment(ctx context.Context, in domain.CreateComment) (domain.Comment, error)
	DeleteComment(ctx context.Context, commentId string) error
	Comments(ctx context.Context, postId string) ([]domain.Comment, error)
}

// ConfirmFunc asks the user to confirm a destructive action on postId.
type ConfirmFunc func(action, postId string) bool

func Confirmed(string, string) bool { return true }

type Option func(*Store)

// WithMaxChars limits the visible length of post descriptions.
func WithMaxChars(n int) Option {
	return func(s *Store) { s.maxChars = n }
}

// Store is the post container for one session. The list is replaced by
// Fetch and patched in place by the other mutations.
type Store struct {
	api      Backend
	session  *session.State
	maxChars int

	mu        sync.Mutex
	epoch     uint64
	posts     []domain.Post
	loading   int
	err       error
	listeners []func()
}

func New(backend Backend, sess *session.State, opts ...Option) *Store {
	s := &Store{
		api:      backend,
		session:  sess,
		maxChars: 500,
		epoch:    sess.Epoch(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify() {
	s.mu.Lock()
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Posts returns a copy of the current list, newest first.
func (s *Store) Posts() []domain.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Post(nil), s.posts...)
}

// Get returns the post with postId from the local list.
func (s *Store) Get(postId string) (domain.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(postId); i >= 0 {
		return s.posts[i], true
	}
	return domain.Post{}, false
}

func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

func (s *Store) indexLocked(postId string) int {
	for i, p := range s.posts {
		if p.PostId == postId {
			return i
		}
	}
	return -1
}

// syncLocked drops the list of an ended session. Caller holds mu.
func (s *Store) syncLocked(epoch uint64) {
	if s.epoch != epoch {
		s.epoch = epoch
		s.posts = nil
		s.loading = 0
		s.err = nil
	}
}

func (s *Store) setErr(op string, err error) error {
	log.Error("post action failed", "op", op, "err", err)
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.notify()
	return fmt.Errorf("%s: %w", op, err)
}

// start marks a call as running and returns the epoch it belongs to.
func (s *Store) start() uint64 {
	epoch := s.session.Epoch()
	s.mu.Lock()
	s.syncLocked(epoch)
	s.loading++
	s.err = nil
	s.mu.Unlock()
	s.notify()
	return epoch
}

// done ends a call started with start. It reports false, leaving the state
// alone, when the session changed meanwhile.
func (s *Store) done(epoch uint64, fn func()) bool {
	s.mu.Lock()
	if s.epoch != epoch || !s.session.Still(epoch) {
		s.mu.Unlock()
		return false
	}
	s.loading = max(s.loading-1, 0)
	if fn != nil {
		fn()
	}
	s.mu.Unlock()
	s.notify()
	return true
}

// Fetch replaces the list with the server's. On failure the previous list
// stays and the error slot is set.
func (s *Store) Fetch(ctx context.Context) error {
	epoch := s.start()
	list, err := s.api.Posts(ctx)
	if !s.done(epoch, func() {
		if err == nil {
			s.posts = list
		}
	}) {
		return domain.ErrSessionChanged
	}
	if err != nil {
		return s.setErr("fetch posts", err)
	}
	return nil
}

func (s *Store) checkContent(description, mediaUrl string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" && mediaUrl == "" {
		return "", domain.ErrEmptyContent
	}
	if s.maxChars > 0 && util.CountVisibleChars(description) > s.maxChars {
		return "", fmt.Errorf("%w: %d characters allowed", domain.ErrTooLong, s.maxChars)
	}
	return description, nil
}

// Create posts as the session actor and prepends the server's copy.
func (s *Store) Create(ctx context.Context, in domain.CreatePost) (domain.Post, error) {
	actor := s.session.Actor()
	if actor == nil {
		return domain.Post{}, s.setErr("create post", domain.ErrNotAuthenticated)
	}
	description, err := s.checkContent(in.Description, in.MediaUrl)
	if err != nil {
		return domain.Post{}, s.setErr("create post", err)
	}
	in.Description = description
	in.UserId = actor.Id

	epoch := s.start()
	post, err := s.api.CreatePost(ctx, in)
	if err == nil && post.UserId == "" {
		post.UserId = actor.Id
	}
	if !s.done(epoch, func() {
		if err == nil {
			s.posts = append([]domain.Post{post}, s.posts...)
		}
	}) {
		return domain.Post{}, domain.ErrSessionChanged
	}
	if err != nil {
		return domain.Post{}, s.setErr("create post", err)
	}
	return post, nil
}

// allowed checks that the session actor may change the local post postId.
// Posts not in the local list are left to the server to judge.
func (s *Store) allowed(postId string) (*domain.Actor, error) {
	actor := s.session.Actor()
	if actor == nil {
		return nil, domain.ErrNotAuthenticated
	}
	if p, ok := s.Get(postId); ok && !actor.Owns(p.UserId) {
		return nil, domain.ErrForbidden
	}
	return actor, nil
}

// Update edits a post owned by the actor and replaces it in place. Likes
// and the author ref are kept when the server leaves them out.
func (s *Store) Update(ctx context.Context, postId string, in domain.UpdatePost) (domain.Post, error) {
	if _, err := s.allowed(postId); err != nil {
		return domain.Post{}, s.setErr("update post", err)
	}
	description, err := s.checkContent(in.Description, in.MediaUrl)
	if err != nil {
		return domain.Post{}, s.setErr("update post", err)
	}
	in.Description = description

	epoch := s.start()
	post, err := s.api.UpdatePost(ctx, postId, in)
	if !s.done(epoch, func() {
		if err != nil {
			return
		}
		if i := s.indexLocked(postId); i >= 0 {
			old := s.posts[i]
			if post.LikeCount == nil && post.Likes == nil {
				post.LikeCount, post.Likes = old.LikeCount, old.Likes
			}
			if post.User == nil {
				post.User = old.User
			}
			if post.UserId == "" {
				post.UserId = old.UserId
			}
			if post.CreatedAt.IsZero() {
				post.CreatedAt = old.CreatedAt
			}
			s.posts[i] = post
		}
	}) {
		return domain.Post{}, domain.ErrSessionChanged
	}
	if err != nil {
		return domain.Post{}, s.setErr("update post", err)
	}
	return post, nil
}

// Delete removes a post after confirmation. Only the author or an admin may
// delete. A post that is already gone on the server is dropped locally.
func (s *Store) Delete(ctx context.Context, postId string, confirm ConfirmFunc) error {
	if confirm == nil || !confirm("delete post", postId) {
		return domain.ErrNotConfirmed
	}
	if _, err := s.allowed(postId); err != nil {
		return s.setErr("delete post", err)
	}

	epoch := s.start()
	err := s.api.DeletePost(ctx, postId)
	if api.IsNotFound(err) {
		log.Debug("post already deleted", "post", postId)
		err = nil
	}
	if !s.done(epoch, func() {
		if err != nil {
			return
		}
		if i := s.indexLocked(postId); i >= 0 {
			s.posts = append(s.posts[:i:i], s.posts[i+1:]...)
		}
	}) {
		return domain.ErrSessionChanged
	}
	if err != nil {
		return s.setErr("delete post", err)
	}
	return nil
}

// AddComment sends a comment on postId. The local list is not refreshed;
// call Comments or Fetch for up to date counts.
func (s *Store) AddComment(ctx context.Context, postId, content, parentCommentId string) (domain.Comment, error) {
	actor := s.session.Actor()
	if actor == nil {
		return domain.Comment{}, s.setErr("add comment", domain.ErrNotAuthenticated)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Comment{}, s.setErr("add comment", domain.ErrEmptyContent)
	}

	c, err := s.api.AddComment(ctx, domain.CreateComment{
		PostId:          postId,
		UserId:          actor.Id,
		Content:         content,
		ParentCommentId: parentCommentId,
	})
	if err != nil {
		return domain.Comment{}, s.setErr("add comment", err)
	}
	if c.PostId == "" {
		c.PostId = postId
	}
	return c, nil
}

// DeleteComment removes a comment on the server. Failures are logged and
// recorded in the error slot.
func (s *Store) DeleteComment(ctx context.Context, commentId string) error {
	if s.session.Actor() == nil {
		return s.setErr("delete comment", domain.ErrNotAuthenticated)
	}
	if err := s.api.DeleteComment(ctx, commentId); err != nil {
		return s.setErr("delete comment", err)
	}
	return nil
}

// Comments fetches the comments of postId and stores them on the local copy.
func (s *Store) Comments(ctx context.Context, postId string) ([]domain.Comment, error) {
	epoch := s.session.Epoch()
	list, err := s.api.Comments(ctx, postId)
	if err != nil {
		log.Warn("comment fetch failed", "post", postId, "err", err)
		return nil, fmt.Errorf("fetch comments: %w", err)
	}
	if !s.session.Still(epoch) {
		return nil, domain.ErrSessionChanged
	}
	s.mu.Lock()
	if i := s.indexLocked(postId); i >= 0 && s.epoch == epoch {
		s.posts[i].Comments = list
	}
	s.mu.Unlock()
	s.notify()
	return list, nil
}

// SetLikes mirrors a like count from the engagement tracker onto the
// local copy of postId.
func (s *Store) SetLikes(postId string, count int) {
	s.mu.Lock()
	i := s.indexLocked(postId)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	n := max(count, 0)
	s.posts[i].LikeCount = &n
	s.mu.Unlock()
	s.notify()
}
