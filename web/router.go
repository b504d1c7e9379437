// Package web publishes the configured account's feed over HTTP as RSS,
// Atom and JSON Feed.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/refconnect/refterm/app"
	"github.com/refconnect/refterm/util"
	"golang.org/x/time/rate"
)

const (
	requestsPerSecond = 5
	requestBurst      = 10
	maxBodyBytes      = 1 << 10
	shutdownTimeout   = 5 * time.Second
)

// NewRouter builds the feed routes around a logged-in App.
func NewRouter(a *app.App) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(MaxBytesMiddleware(maxBodyBytes))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": util.GetVersion()})
	})

	limited := router.Group("/")
	limited.Use(RateLimitMiddleware(NewRateLimiter(rate.Limit(requestsPerSecond), requestBurst)))
	limited.GET("/feed", func(c *gin.Context) { HandleFeed(c, a, "") })
	limited.GET("/feed.rss", func(c *gin.Context) { HandleFeed(c, a, FormatRSS) })
	limited.GET("/feed.atom", func(c *gin.Context) { HandleFeed(c, a, FormatAtom) })
	limited.GET("/feed.json", func(c *gin.Context) { HandleFeed(c, a, FormatJSON) })

	return router
}

// Serve runs the feed server until ctx is cancelled.
func Serve(ctx context.Context, a *app.App) error {
	if a.Conf.Conf.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	addr := fmt.Sprintf("%s:%d", a.Conf.Conf.Host, a.Conf.Conf.HttpPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting feed server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("feed server: %w", err)
	case <-ctx.Done():
	}

	log.Info("Stopping feed server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("feed server shutdown: %w", err)
	}
	return nil
}
