package api

import (
	"errors"
	"fmt"
	"net/http"
)

// NetworkError means no response was received.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: request failed: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusError is a response outside the 2xx range.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: server returned status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: server returned status %d: %s", e.Method, e.Path, e.StatusCode, truncateBody(e.Body))
}

func truncateBody(s string) string {
	const maxPreview = 200
	if len(s) <= maxPreview {
		return s
	}
	return s[:maxPreview] + "..."
}

// StatusCode returns the HTTP status of err, or 0 when err is not a StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

func IsNotFound(err error) bool     { return StatusCode(err) == http.StatusNotFound }
func IsForbidden(err error) bool    { return StatusCode(err) == http.StatusForbidden }
func IsConflict(err error) bool     { return StatusCode(err) == http.StatusConflict }
func IsUnauthorized(err error) bool { return StatusCode(err) == http.StatusUnauthorized }

func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
