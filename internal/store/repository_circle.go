package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/models"
)

// circleRepository is the PostgreSQL-backed implementation of
// [CircleRepository].
type circleRepository struct {
	logger *logger.Logger
	db     *DB
}

// NewCircleRepository constructs a [CircleRepository] backed by the provided
// database connection and logger.
func NewCircleRepository(db *DB, logger *logger.Logger) CircleRepository {
	logger.Debug().Msg("creating circle repository")
	return &circleRepository{
		db:     db,
		logger: logger,
	}
}

// GetCircle implements [CircleRepository].
func (r *circleRepository) GetCircle(ctx context.Context, circleID string) (models.CareCircle, error) {
	log := logger.FromContext(ctx)

	var circle models.CareCircle
	var settings sql.Null[[]byte]
	row := r.db.QueryRowContext(ctx, selectCircle, circleID)
	if err := row.Scan(&circle.ID, &circle.DisplayName, &settings, &circle.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.CareCircle{}, ErrCircleNotFound
		}
		log.Err(err).Str("func", "*circleRepository.GetCircle").Msg("error scanning circle")
		return models.CareCircle{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if settings.Valid {
		circle.Settings = json.RawMessage(settings.V)
	}

	return circle, nil
}

// IsMember implements [CircleRepository].
func (r *circleRepository) IsMember(ctx context.Context, circleID string, userID int64) (bool, error) {
	var isMember bool
	if err := r.db.QueryRowContext(ctx, selectIsMember, circleID, userID).Scan(&isMember); err != nil {
		return false, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return isMember, nil
}

// ListMembers implements [CircleRepository].
func (r *circleRepository) ListMembers(ctx context.Context, circleID string) ([]models.CircleMember, error) {
	log := logger.FromContext(ctx)

	rows, err := r.db.QueryContext(ctx, selectMembers, circleID)
	if err != nil {
		log.Err(err).Str("func", "*circleRepository.ListMembers").Msg("error querying members")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var members []models.CircleMember
	for rows.Next() {
		var member models.CircleMember
		var prefs sql.Null[[]byte]
		if err = rows.Scan(&member.CircleID, &member.UserID, &member.Role, &prefs, &member.JoinedAt); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		if prefs.Valid {
			member.NotificationPrefs = json.RawMessage(prefs.V)
		}
		members = append(members, member)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return members, nil
}
