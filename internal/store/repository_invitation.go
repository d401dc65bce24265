package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/models"
)

// invitationRepository is the PostgreSQL-backed implementation of
// [InvitationRepository].
type invitationRepository struct {
	logger *logger.Logger
	db     *DB
}

// NewInvitationRepository constructs an [InvitationRepository] backed by the
// provided database connection and logger.
func NewInvitationRepository(db *DB, logger *logger.Logger) InvitationRepository {
	logger.Debug().Msg("creating invitation repository")
	return &invitationRepository{
		db:     db,
		logger: logger,
	}
}

// FindInvitation implements [InvitationRepository].
func (r *invitationRepository) FindInvitation(ctx context.Context, token string) (models.Invitation, error) {
	var inv models.Invitation
	row := r.db.QueryRowContext(ctx, selectInvitation, token)
	if err := row.Scan(&inv.Token, &inv.CircleID, &inv.Email, &inv.Role, &inv.Consumed, &inv.ExpiresAt, &inv.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Invitation{}, ErrInvitationInvalid
		}
		return models.Invitation{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return inv, nil
}

// ConsumeInvitation implements [InvitationRepository].
//
// The consumed flag flip and the membership insert happen in one transaction.
// The UPDATE's WHERE clause only matches unconsumed, unexpired tokens, so a
// second accept of the same token matches zero rows and reports
// [ErrInvitationInvalid] — never a silent duplicate join.
func (r *invitationRepository) ConsumeInvitation(ctx context.Context, token string, userID int64) (models.Invitation, error) {
	log := logger.FromContext(ctx)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Invitation{}, fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var inv models.Invitation
	row := tx.QueryRowContext(ctx, consumeInvitation, token)
	if err = row.Scan(&inv.Token, &inv.CircleID, &inv.Email, &inv.Role, &inv.Consumed, &inv.ExpiresAt, &inv.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Invitation{}, ErrInvitationInvalid
		}
		log.Err(err).Str("func", "*invitationRepository.ConsumeInvitation").Msg("error consuming invitation")
		return models.Invitation{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	if _, err = tx.ExecContext(ctx, insertMember, inv.CircleID, userID, inv.Role); err != nil {
		log.Err(err).Str("func", "*invitationRepository.ConsumeInvitation").Msg("error inserting membership")
		return models.Invitation{}, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	if err = tx.Commit(); err != nil {
		return models.Invitation{}, fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
	}

	return inv, nil
}
