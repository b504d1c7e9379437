package web

import (
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/feeds"
	"github.com/refconnect/refterm/app"
	"github.com/refconnect/refterm/display"
	"github.com/refconnect/refterm/domain"
	"github.com/refconnect/refterm/util"
)

const (
	FormatRSS  = "rss"
	FormatAtom = "atom"
	FormatJSON = "json"

	defaultFeedItems = 20
	maxFeedItems     = 100
	itemTitleWidth   = 60
)

var contentTypes = map[string]string{
	FormatRSS:  "application/rss+xml; charset=utf-8",
	FormatAtom: "application/atom+xml; charset=utf-8",
	FormatJSON: "application/feed+json; charset=utf-8",
}

// FeedFormat picks a feed format from an Accept header. Browsers and
// unknown types get RSS.
func FeedFormat(accept string) string {
	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(part, ";", 2)[0]))
		switch mediaType {
		case "application/atom+xml":
			return FormatAtom
		case "application/feed+json", "application/json":
			return FormatJSON
		case "application/rss+xml":
			return FormatRSS
		}
	}
	return FormatRSS
}

// ParseLimit reads the item count from a query value, falling back to the
// default and capping at maxFeedItems.
func ParseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultFeedItems
	}
	return min(n, maxFeedItems)
}

func itemTitle(p display.Post) string {
	text := util.NormalizeInput(p.Text)
	if text == "" {
		text = "Post by @" + p.Author.UserName
	}
	return util.TruncateVisibleLength(text, itemTitleWidth)
}

func postLink(base, postId string) string {
	return fmt.Sprintf("%s/posts/%s", strings.TrimSuffix(base, "/"), postId)
}

// BuildFeed renders the viewer's feed. Posts keep their feed order.
func BuildFeed(a *app.App, list []domain.Post, limit int) *feeds.Feed {
	base := a.API.BaseURL()
	title := util.Name + " feed"
	if actor := a.Session.Actor(); actor != nil {
		title = fmt.Sprintf("%s feed of @%s", util.Name, actor.Id)
	}

	feed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: base},
		Description: "Posts from the referees you follow",
		Created:     time.Now(),
	}

	rows := a.Display.Posts(list)
	if len(rows) > limit {
		rows = rows[:limit]
	}
	for _, p := range rows {
		item := &feeds.Item{
			Id:          p.Id,
			Title:       itemTitle(p),
			Link:        &feeds.Link{Href: postLink(base, p.Id)},
			Author:      &feeds.Author{Name: fmt.Sprintf("%s (@%s)", p.Author.Name, p.Author.UserName)},
			Description: p.Text,
			Created:     p.Post.CreatedAt,
		}
		if p.MediaURL != "" {
			item.Content = fmt.Sprintf("<p>%s</p><p><a href=\"%s\">%s</a></p>",
				html.EscapeString(p.Text), html.EscapeString(p.MediaURL), html.EscapeString(p.MediaURL))
		}
		feed.Items = append(feed.Items, item)
		if p.Post.CreatedAt.After(feed.Updated) {
			feed.Updated = p.Post.CreatedAt
		}
	}
	return feed
}

func render(feed *feeds.Feed, format string) (string, error) {
	switch format {
	case FormatAtom:
		return feed.ToAtom()
	case FormatJSON:
		return feed.ToJSON()
	default:
		return feed.ToRss()
	}
}

// HandleFeed serves the feed in format, or negotiates it from the Accept
// header when format is empty. When the refresh fails the last good list
// is served with an X-Stale header.
func HandleFeed(c *gin.Context, a *app.App, format string) {
	if format == "" {
		format = FeedFormat(c.GetHeader("Accept"))
	}

	if a.Session.Actor() == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Feed account not configured"})
		return
	}

	err := a.Refresh(c.Request.Context())
	list := a.Posts.Posts()
	if err != nil {
		if len(list) == 0 {
			log.Error("feed refresh failed", "err", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Feed unavailable"})
			return
		}
		log.Warn("serving stale feed", "err", err, "posts", len(list))
		c.Header("X-Stale", "true")
	}

	body, err := render(BuildFeed(a, list, ParseLimit(c.Query("limit"))), format)
	if err != nil {
		log.Error("feed rendering failed", "format", format, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render feed"})
		return
	}
	c.Data(http.StatusOK, contentTypes[format], []byte(body))
}
