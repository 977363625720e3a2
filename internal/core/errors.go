package core

import "errors"

var (
	// ErrMeetingNotFound is surfaced verbatim to the caller; no partial
	// side effects are performed when it is returned.
	ErrMeetingNotFound = errors.New("meeting does not exist")

	// ErrInvalidSignal covers malformed messages: missing required field
	// or unknown kind. Produces no side effects.
	ErrInvalidSignal = errors.New("invalid signal")

	// ErrDirectoryUnavailable means the external store failed. Never
	// swallowed at the router level; callers apply their own backoff.
	ErrDirectoryUnavailable = errors.New("directory unavailable")
)
