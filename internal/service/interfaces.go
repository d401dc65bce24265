package service

import (
	"context"

	"github.com/openkin/circlesync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/service_mock.go -package=mock

// SyncService accepts pushed change batches into a circle's ledger and
// answers pull queries against it. The acting user is taken from the request
// context and must be a member of the targeted circle.
type SyncService interface {
	// Ingest appends the pushed batch to the circle's ledger, all-or-nothing.
	// Changes already ledgered under the same client-assigned ID are skipped.
	Ingest(ctx context.Context, circleID string, req models.PushRequest) (models.PushResponse, error)

	// Query returns the full materialized snapshot when since is nil, or the
	// ledger entries newer than *since otherwise. Watermark always carries
	// the circle's latest ledger version.
	Query(ctx context.Context, circleID string, since *int64) (models.PullResponse, error)
}

// InvitationService handles single-use invitation acceptance, including the
// account bootstrap for invitees who do not have one yet.
type InvitationService interface {
	// Accept consumes the invitation token, creates or authenticates the
	// invitee's account, joins them to the circle and issues a session token.
	Accept(ctx context.Context, token string, req models.AcceptInvitationRequest) (models.AcceptInvitationResponse, error)
}

// AuthService issues and validates the JWTs that authenticate sync and
// realtime requests.
type AuthService interface {
	CreateToken(ctx context.Context, user models.User) (models.Token, error)
	ParseToken(ctx context.Context, tokenString string) (models.Token, error)
}
