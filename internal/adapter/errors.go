package adapter

import "errors"

var (
	// ErrNetworkUnavailable means the server could not be reached at the
	// transport level. The request may be retried later.
	ErrNetworkUnavailable = errors.New("server is unavailable")

	// ErrUnauthorized means the stored token is missing, expired or invalid.
	ErrUnauthorized = errors.New("authentication required")

	// ErrNotAMember means the authenticated user does not belong to the
	// requested circle.
	ErrNotAMember = errors.New("not a member of the circle")

	// ErrInvitationInvalid means the invitation token is unknown, already
	// consumed or expired.
	ErrInvitationInvalid = errors.New("invitation is invalid")

	// ErrCircleNotFound means the requested circle does not exist.
	ErrCircleNotFound = errors.New("circle not found")

	// ErrBadRequest means the server rejected the request payload.
	ErrBadRequest = errors.New("bad request")

	// ErrServerFailure means the server answered with a 5xx status.
	ErrServerFailure = errors.New("internal server error")
)
