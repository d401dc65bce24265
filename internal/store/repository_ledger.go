package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/models"
)

// ledgerRepository is the PostgreSQL-backed implementation of
// [LedgerRepository]. All writes go through AppendBatch inside a single
// transaction so a failed push never leaves a partial batch behind.
type ledgerRepository struct {
	logger *logger.Logger
	db     *DB
}

// NewLedgerRepository constructs a [LedgerRepository] backed by the provided
// database connection and logger.
func NewLedgerRepository(db *DB, logger *logger.Logger) LedgerRepository {
	logger.Debug().Msg("creating ledger repository")
	return &ledgerRepository{
		db:     db,
		logger: logger,
	}
}

// AppendBatch implements [LedgerRepository].
//
// The circle row is locked for the duration of the transaction, which both
// serializes version assignment per circle and confirms the circle exists
// ([ErrCircleNotFound] otherwise). Each change is inserted with the next
// version; a change whose client-assigned ID is already ledgered is skipped
// without consuming a version. Any failure rolls the whole batch back and is
// reported as [ErrPersistenceFailure].
func (r *ledgerRepository) AppendBatch(ctx context.Context, circleID, deviceID string, changes []models.SyncChange) (int, error) {
	log := logger.FromContext(ctx)

	if len(changes) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Err(err).Str("func", "*ledgerRepository.AppendBatch").Msg("error beginning transaction")
		return 0, fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var lockedID string
	if err = tx.QueryRowContext(ctx, lockCircleForAppend, circleID).Scan(&lockedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrCircleNotFound
		}
		log.Err(err).Str("func", "*ledgerRepository.AppendBatch").Msg("error locking circle row")
		return 0, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	var next int64
	if err = tx.QueryRowContext(ctx, selectLatestVersion, circleID).Scan(&next); err != nil {
		log.Err(err).Str("func", "*ledgerRepository.AppendBatch").Msg("error reading latest version")
		return 0, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	synced := 0
	for _, change := range changes {
		res, execErr := tx.ExecContext(ctx, insertChange,
			circleID,
			next+1,
			change.ID,
			change.EntityType,
			change.EntityID,
			change.Action,
			nullableJSON(change.Data),
			change.Timestamp,
			deviceID,
		)
		if execErr != nil {
			if postgresError(execErr) == pgerrcode.ForeignKeyViolation {
				return 0, ErrCircleNotFound
			}
			log.Err(execErr).
				Str("func", "*ledgerRepository.AppendBatch").
				Str("change_id", change.ID).
				Msg("error inserting change")
			return 0, fmt.Errorf("%w: %w", ErrPersistenceFailure, execErr)
		}

		affected, raErr := res.RowsAffected()
		if raErr != nil {
			return 0, fmt.Errorf("%w: %w", ErrPersistenceFailure, raErr)
		}
		// A conflict on (circle_id, change_id) means this change was already
		// acknowledged on an earlier push; skip it without burning a version.
		if affected == 1 {
			next++
			synced++
		}
	}

	if err = tx.Commit(); err != nil {
		log.Err(err).Str("func", "*ledgerRepository.AppendBatch").Msg("error committing batch")
		return 0, fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
	}

	return synced, nil
}

// ListSince implements [LedgerRepository].
func (r *ledgerRepository) ListSince(ctx context.Context, circleID string, since int64) ([]models.SyncChange, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildListSinceQuery(circleID, since)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "*ledgerRepository.ListSince").Msg("error querying ledger")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var changes []models.SyncChange
	for rows.Next() {
		var change models.SyncChange
		var data sql.Null[[]byte]
		if err = rows.Scan(
			&change.CircleID,
			&change.Version,
			&change.ID,
			&change.EntityType,
			&change.EntityID,
			&change.Action,
			&data,
			&change.Timestamp,
			&change.DeviceID,
		); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		if data.Valid {
			change.Data = json.RawMessage(data.V)
		}
		changes = append(changes, change)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return changes, nil
}

// LatestVersion implements [LedgerRepository].
func (r *ledgerRepository) LatestVersion(ctx context.Context, circleID string) (int64, error) {
	var version int64
	if err := r.db.QueryRowContext(ctx, selectLatestVersion, circleID).Scan(&version); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return version, nil
}

// Snapshot implements [LedgerRepository]. The latest ledger entry per entity
// wins; entities whose latest action is a delete are excluded.
func (r *ledgerRepository) Snapshot(ctx context.Context, circleID string) (models.CircleSnapshot, error) {
	log := logger.FromContext(ctx)

	var snapshot models.CircleSnapshot
	query, args, err := buildSnapshotQuery(circleID)
	if err != nil {
		return snapshot, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "*ledgerRepository.Snapshot").Msg("error querying snapshot")
		return snapshot, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	for rows.Next() {
		var entityType, entityID string
		var action models.ChangeAction
		var data sql.Null[[]byte]
		if err = rows.Scan(&entityType, &entityID, &action, &data); err != nil {
			return snapshot, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		if action == models.ActionDelete || !data.Valid {
			continue
		}
		snapshot.Add(entityType, json.RawMessage(data.V))
	}
	if err = rows.Err(); err != nil {
		return snapshot, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return snapshot, nil
}

func nullableJSON(data json.RawMessage) any {
	if len(data) == 0 {
		return nil
	}
	return []byte(data)
}
