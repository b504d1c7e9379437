package domain

import "errors"

// Client-side failures. All but ErrSessionChanged are raised before any
// network call.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSelfFollow       = errors.New("self-follow not allowed")
	ErrForbidden        = errors.New("not permitted for this user")
	ErrNotConfirmed     = errors.New("action not confirmed")
	ErrInFlight         = errors.New("another request for this item is still running")
	ErrEmptyContent     = errors.New("content cannot be empty")
	ErrTooLong          = errors.New("content is too long")
	ErrTargetPrivate    = errors.New("profile is private, send a follow request instead")
	ErrTargetPublic     = errors.New("profile is public, follow directly instead")
	ErrAlreadyMember    = errors.New("already a member of this chat")
	ErrNoChat           = errors.New("no chat selected")
	ErrSessionChanged   = errors.New("session changed while the request was running")
)
