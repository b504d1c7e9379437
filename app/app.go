// Package app wires the session, the API client and the state containers
// for one client session.
package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/refconnect/refterm/api"
	"github.com/refconnect/refterm/chat"
	"github.com/refconnect/refterm/display"
	"github.com/refconnect/refterm/domain"
	"github.com/refconnect/refterm/engagement"
	"github.com/refconnect/refterm/graph"
	"github.com/refconnect/refterm/posts"
	"github.com/refconnect/refterm/session"
	"github.com/refconnect/refterm/util"
)

// App is everything a view, a CLI command or a feed handler needs. Each SSH
// session gets its own App so state never leaks between users.
type App struct {
	Conf    *util.AppConfig
	Session *session.State
	API     *api.Client
	Graph   *graph.Machine
	Likes   *engagement.Tracker
	Posts   *posts.Store
	Chats   *chat.Store
	Display display.Adapter
}

func New(conf *util.AppConfig) *App {
	sess := session.New()
	client := api.NewClientFromConf(conf, sess)

	a := &App{
		Conf:    conf,
		Session: sess,
		API:     client,
		Graph:   graph.New(client, sess),
		Likes: engagement.New(client, sess, engagement.WithErrorHandler(func(postId string, err error) {
			log.Warn("like state rolled back", "post", postId, "err", err)
		})),
		Posts:   posts.New(client, sess, posts.WithMaxChars(conf.Conf.MaxChars)),
		Chats:   chat.New(client, sess, chat.WithMaxChars(conf.Conf.MaxChars)),
		Display: display.New(client.BaseURL()),
	}
	a.Likes.Subscribe(func(postId string, st engagement.State) {
		a.Posts.SetLikes(postId, st.Count)
	})
	return a
}

// Login starts a session for actor.
func (a *App) Login(actor domain.Actor, token string) {
	a.Session.Begin(actor, token)
	log.Info("session started", "user", actor.Id, "role", actor.Role)
}

// LoginFromConf starts a session from the configured token and user id.
func (a *App) LoginFromConf() error {
	c := a.Conf.Conf
	if c.Token == "" || c.UserId == "" {
		return fmt.Errorf("set token and userId in %s or REFTERM_TOKEN and REFTERM_USER_ID: %w",
			util.ConfigFileName, domain.ErrNotAuthenticated)
	}
	a.Login(domain.Actor{Id: c.UserId, Role: domain.ParseRole(c.Role)}, c.Token)
	return nil
}

func (a *App) Logout() {
	if actor := a.Session.Actor(); actor != nil {
		log.Info("session ended", "user", actor.Id)
	}
	a.Session.End()
}

// Refresh reloads the feed and seeds the like tracker from it.
func (a *App) Refresh(ctx context.Context) error {
	err := a.Posts.Fetch(ctx)
	for _, p := range a.Posts.Posts() {
		a.Likes.Seed(p)
	}
	return err
}

// Profile loads a profile, records its visibility for follow decisions and
// seeds the like tracker from its posts.
func (a *App) Profile(ctx context.Context, userId string) (*domain.Profile, error) {
	p, err := a.API.Profile(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	a.Graph.Observe(p)
	for _, post := range p.Posts {
		a.Likes.Seed(post)
	}
	return p, nil
}
