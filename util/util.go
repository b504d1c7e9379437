package util

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/mattn/go-runewidth"
	gossh "golang.org/x/crypto/ssh"
)

//go:embed version.txt
var embeddedVersion string

var ansiEscapeRegex = regexp.MustCompile(`\x1b\[[0-9;]*m|\x1b\]8;;[^\x1b]*\x1b\\`)
var whitespaceRegex = regexp.MustCompile(`\s+`)

func LogPublicKey(s ssh.Session) {
	log.Printf("%s@%s opened a new ssh-session..", s.User(), s.RemoteAddr())
}

func PublicKeyToString(s ssh.PublicKey) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(string(gossh.MarshalAuthorizedKey(s)))
}

func PkToHash(pk string) string {
	h := sha256.New()
	h.Write([]byte(pk))
	return hex.EncodeToString(h.Sum(nil))
}

func GetVersion() string {
	return strings.TrimSpace(embeddedVersion)
}

func GetNameAndVersion() string {
	return fmt.Sprintf("%s / %s", Name, GetVersion())
}

// NormalizeInput collapses newlines and runs of whitespace into single spaces.
func NormalizeInput(text string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(text, " "))
}

// StripANSI removes SGR and OSC 8 escape sequences.
func StripANSI(text string) string {
	return ansiEscapeRegex.ReplaceAllString(text, "")
}

// CountVisibleChars counts display cells, ignoring escape sequences.
func CountVisibleChars(text string) int {
	return runewidth.StringWidth(StripANSI(text))
}

// TruncateVisibleLength shortens text to at most maxWidth display cells,
// appending an ellipsis when something was cut.
func TruncateVisibleLength(text string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	plain := StripANSI(text)
	if runewidth.StringWidth(plain) <= maxWidth {
		return plain
	}
	return runewidth.Truncate(plain, maxWidth, "…")
}

func DateTimeFormat() string {
	return "2006-01-02 15:04"
}
