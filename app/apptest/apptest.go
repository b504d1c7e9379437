// Package apptest builds an App logged in against an in-memory backend.
package apptest

import (
	"testing"

	"github.com/refconnect/refterm/api/apitest"
	"github.com/refconnect/refterm/app"
	"github.com/refconnect/refterm/domain"
	"github.com/refconnect/refterm/util"
)

// New returns an App logged in as userId. The backend knows alice and
// carol (public) and bob (private).
func New(tb testing.TB, userId string) (*app.App, *apitest.Server) {
	tb.Helper()
	srv := apitest.NewServer()
	tb.Cleanup(srv.Close)
	srv.AddUser("alice", "alice", true)
	srv.AddUser("bob", "bob", false)
	srv.AddUser("carol", "carol", true)
	srv.SetName("alice", "Alice", "Moreau")

	conf := util.DefaultConf()
	conf.Conf.ApiBaseUrl = srv.URL
	conf.Conf.RateLimit = 0
	a := app.New(conf)
	if userId != "" {
		a.Login(domain.Actor{Id: userId, Role: domain.RoleReferee}, "token-"+userId)
	}
	return a, srv
}
