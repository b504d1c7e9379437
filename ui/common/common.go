// Package common holds the view states, messages, styles and layout helpers
// shared by the terminal views.
package common

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type SessionState uint

const (
	FeedView SessionState = iota
	WritePostView
	ProfileView
	NotificationsView
	FollowersView
	FollowingView
	ChatsView
	UpdateFeed
)

const (
	DefaultItemsPerPage     = 10
	HoursPerDay             = 24
	TextInputDefaultWidth   = 40
	TextAreaDefaultHeight   = 8
	HeaderHeight            = 1
	FooterHeight            = 1
	PanelMarginVertical     = 2
	MinWindowWidth          = 80
	MinWindowHeight         = 24
	MaxContentTruncateWidth = 200
)

// ViewProfileMsg opens the profile of UserId.
type ViewProfileMsg struct {
	UserId string
}

// ActivateViewMsg tells the view that became visible to reload.
type ActivateViewMsg struct{}

// ClearStatusMsg clears transient status and error lines.
type ClearStatusMsg struct{}

func ClearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}

func DefaultWindowWidth(width int) int {
	if width <= 0 {
		return MinWindowWidth
	}
	return width
}

func DefaultWindowHeight(height int) int {
	if height <= 0 {
		return MinWindowHeight
	}
	return height
}

func CalculateLeftPanelWidth(totalWidth int) int {
	return TextInputDefaultWidth + 10
}

func CalculateRightPanelWidth(totalWidth, leftPanelWidth int) int {
	return max(totalWidth-leftPanelWidth-6, 20)
}

func CalculateContentWidth(panelWidth, padding int) int {
	return max(panelWidth-padding*2, 10)
}

func CalculateAvailableHeight(totalHeight int) int {
	return max(totalHeight-HeaderHeight-FooterHeight-PanelMarginVertical-1, 5)
}

// FormatTimeAgo renders t relative to now.
func FormatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < HoursPerDay*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/HoursPerDay))
	}
}

// Page clamps a scroll window of DefaultItemsPerPage rows over n items.
func Page(offset, n int) (start, end int) {
	start = max(min(offset, n), 0)
	end = min(start+DefaultItemsPerPage, n)
	return start, end
}

// MoveSelection moves selected by delta within n items and returns the
// selection and offset that keep it visible.
func MoveSelection(selected, offset, delta, n int) (int, int) {
	if n == 0 {
		return 0, 0
	}
	selected = max(min(selected+delta, n-1), 0)
	if selected < offset {
		offset = selected
	}
	if selected >= offset+DefaultItemsPerPage {
		offset = selected - DefaultItemsPerPage + 1
	}
	return selected, offset
}
