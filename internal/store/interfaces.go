package store

import (
	"context"

	"github.com/openkin/circlesync/models"
)

// LedgerRepository is the append-only, versioned change ledger scoped to a
// circle — the durable source of truth on the server side.
type LedgerRepository interface {
	// AppendBatch appends the changes to the circle's ledger in array order,
	// all-or-nothing, assigning each the next per-circle version. Changes
	// whose client-assigned ID is already present in the ledger are skipped
	// idempotently. Returns the number of changes accepted by this call.
	AppendBatch(ctx context.Context, circleID, deviceID string, changes []models.SyncChange) (int, error)

	// ListSince returns ledger entries with version greater than since, in
	// version order.
	ListSince(ctx context.Context, circleID string, since int64) ([]models.SyncChange, error)

	// LatestVersion returns the highest assigned version for the circle,
	// zero when the ledger is empty.
	LatestVersion(ctx context.Context, circleID string) (int64, error)

	// Snapshot materializes the current state of every synced record type:
	// for each entity the latest ledger entry wins, deletions excluded.
	Snapshot(ctx context.Context, circleID string) (models.CircleSnapshot, error)
}

// CircleRepository provides circle and membership lookups.
type CircleRepository interface {
	// GetCircle returns the circle by ID or [ErrCircleNotFound].
	GetCircle(ctx context.Context, circleID string) (models.CareCircle, error)

	// IsMember reports whether the user is an active member of the circle.
	IsMember(ctx context.Context, circleID string, userID int64) (bool, error)

	// ListMembers returns all members of the circle.
	ListMembers(ctx context.Context, circleID string) ([]models.CircleMember, error)
}

// InvitationRepository manages single-use invitation tokens.
type InvitationRepository interface {
	// FindInvitation returns the invitation by token, consumed or not.
	// Unknown tokens yield [ErrInvitationInvalid].
	FindInvitation(ctx context.Context, token string) (models.Invitation, error)

	// ConsumeInvitation atomically marks the invitation consumed and inserts
	// the circle membership for userID. A token that is already consumed or
	// expired yields [ErrInvitationInvalid]; the membership is not inserted.
	ConsumeInvitation(ctx context.Context, token string, userID int64) (models.Invitation, error)
}

// UserRepository handles account lookup and the invitation-time bootstrap.
type UserRepository interface {
	// CreateUser persists a new account and returns it with server-assigned
	// fields populated.
	CreateUser(ctx context.Context, user models.User) (models.User, error)

	// FindUserByEmail returns the account for the email or
	// [ErrNoUserWasFound].
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
}
