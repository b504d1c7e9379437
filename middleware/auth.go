package middleware

import (
	"net"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/refconnect/refterm/app"
	"github.com/refconnect/refterm/util"
)

type ctxKey struct{}

var appKey ctxKey

// AppFromSession returns the App the auth middleware attached to s.
func AppFromSession(s ssh.Session) *app.App {
	a, _ := s.Context().Value(appKey).(*app.App)
	return a
}

// AuthMiddleware gives every SSH session its own App, logged in with the
// REFTERM_TOKEN and REFTERM_USER_ID the client sent. Sessions without
// credentials get a signed-out App; the CLI and TUI refuse to act on it.
func AuthMiddleware(conf *util.AppConfig) wish.Middleware {
	return func(h ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			ip := remoteIP(s.RemoteAddr().String())
			keyHash := util.PkToHash(util.PublicKeyToString(s.PublicKey()))

			a := app.New(conf.ForSession(s.Environ()))
			if err := a.LoginFromConf(); err != nil {
				log.Warn("ssh session without credentials", "ip", ip, "key", shortHash(keyHash))
			} else {
				util.LogPublicKey(s)
				log.Info("ssh session authenticated", "ip", ip, "key", shortHash(keyHash), "user", a.Session.Actor().Id)
			}
			defer a.Logout()

			s.Context().SetValue(appKey, a)
			h(s)
		}
	}
}

// remoteIP strips the port from a remote address. Addresses without a port
// are returned unchanged.
func remoteIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16]
	}
	return h
}
