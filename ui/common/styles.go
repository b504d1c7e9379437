package common

import "github.com/charmbracelet/lipgloss"

// ANSI 256 palette
const (
	COLOR_ACCENT    = "62"
	COLOR_WHITE     = "255"
	COLOR_DIM       = "241"
	COLOR_HELP      = "245"
	COLOR_USERNAME  = "212"
	COLOR_SECONDARY = "109"
	COLOR_SUCCESS   = "42"
	COLOR_ERROR     = "196"
	COLOR_CRITICAL  = "160"
	COLOR_LINK      = "39"
	COLOR_LIKE      = "220"
)

const (
	ListSelectedPrefix   = "› "
	ListUnselectedPrefix = "  "
)

var (
	CaptionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_SECONDARY)).
			Bold(true)

	ListItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_WHITE))

	ListItemSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(COLOR_WHITE)).
				Background(lipgloss.Color(COLOR_ACCENT)).
				Bold(true)

	ListBadgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_DIM))

	ListBadgeEnabledStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(COLOR_SUCCESS))

	ListEmptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_DIM)).
			Italic(true)

	ListStatusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_SUCCESS))

	ListErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_ERROR))

	ConfirmStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_LIKE)).
			Bold(true)

	UsernameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_USERNAME)).
			Bold(true)

	TimeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_DIM))

	LikedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_LIKE))
)
