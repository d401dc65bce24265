// Package adapter provides transport-layer abstractions for communicating
// with the sync server.
//
// The primary abstraction is [ServerAdapter], which decouples the device
// agent from the underlying protocol. The package ships an HTTP/REST
// implementation ([NewHTTPServerAdapter]).
//
// Error values defined in errors.go are mapped from HTTP status codes by
// mapHTTPError so that callers can use [errors.Is] for transport-agnostic
// error handling (e.g. [ErrNotAMember] for 403, [ErrInvitationInvalid] for
// 409 and 410).
package adapter

import (
	"context"

	"github.com/openkin/circlesync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/server_adapter_mock.go -package=mock

// ServerAdapter defines transport-agnostic communication with the sync
// server. Implementations are responsible for serialisation, authentication
// header management, and mapping transport-level errors to the sentinel
// values defined in this package.
type ServerAdapter interface {
	// SetToken stores the bearer token that will be attached to all
	// subsequent authenticated requests. It should be called immediately
	// after a successful AcceptInvitation.
	SetToken(token string)

	// Token returns the bearer token currently stored in the adapter, or an
	// empty string if no token has been set yet.
	Token() string

	// AcceptInvitation redeems a single-use invitation token. On success the
	// session token from the response is stored via SetToken. Returns
	// [ErrInvitationInvalid] (wrapped) when the token is unknown, consumed
	// or expired.
	AcceptInvitation(ctx context.Context, token string, req models.AcceptInvitationRequest) (models.AcceptInvitationResponse, error)

	// PushChanges sends the device's pending queue to the circle's ledger in
	// one batch. Returns [ErrNetworkUnavailable] (wrapped) when the server
	// cannot be reached; the caller keeps its queue and retries later.
	PushChanges(ctx context.Context, circleID string, req models.PushRequest) (models.PushResponse, error)

	// PullChanges fetches the circle's state: the full snapshot when since
	// is nil, or only the ledger entries newer than *since.
	PullChanges(ctx context.Context, circleID string, since *int64) (models.PullResponse, error)
}
