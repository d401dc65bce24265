package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/internal/utils"
	"github.com/openkin/circlesync/models"
)

// localStateStore is the SQLite-backed implementation of [LocalStateStore].
// Scalar state lives in a key/value table; the pending queue and the record
// cache get their own tables so queue order and record identity are enforced
// by the schema rather than by application code.
type localStateStore struct {
	logger *logger.Logger
	db     *DB
}

// NewLocalStateStore constructs a [LocalStateStore] over an open SQLite
// handle.
func NewLocalStateStore(db *DB, logger *logger.Logger) LocalStateStore {
	logger.Debug().Msg("creating local state store")
	return &localStateStore{
		db:     db,
		logger: logger,
	}
}

// DeviceID implements [LocalStateStore]. The identity is generated once and
// reused for the lifetime of the state file.
func (s *localStateStore) DeviceID(ctx context.Context) (string, error) {
	deviceID, err := s.stateValue(ctx, stateKeyDeviceID)
	if err != nil {
		return "", err
	}
	if deviceID != "" {
		return deviceID, nil
	}

	deviceID = utils.NewDeviceID()
	if err = s.setStateValue(ctx, stateKeyDeviceID, deviceID); err != nil {
		return "", err
	}
	s.logger.Info().Str("device_id", deviceID).Msg("generated new device identity")

	return deviceID, nil
}

// CircleID implements [LocalStateStore].
func (s *localStateStore) CircleID(ctx context.Context) (string, error) {
	return s.stateValue(ctx, stateKeyCircleID)
}

// BindCircle implements [LocalStateStore]. Binding replaces any previous
// binding wholesale: the old watermark, last-sync marker and pending queue
// belong to the old circle and must not bleed into the new one, so they are
// dropped in the same transaction that writes the new identity.
func (s *localStateStore) BindCircle(ctx context.Context, circleID, token string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, key := range []string{stateKeyWatermark, stateKeyLastSync} {
		if _, err = tx.ExecContext(ctx, deleteStateValue, key); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}
	}
	if _, err = tx.ExecContext(ctx, clearPendingChanges); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	for key, value := range map[string]string{stateKeyCircleID: circleID, stateKeyToken: token} {
		if _, err = tx.ExecContext(ctx, upsertStateValue, key, value); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
	}

	return nil
}

// UnbindCircle implements [LocalStateStore]. The device identity survives;
// everything tied to the circle is dropped.
func (s *localStateStore) UnbindCircle(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, key := range []string{stateKeyCircleID, stateKeyToken, stateKeyWatermark, stateKeyLastSync} {
		if _, err = tx.ExecContext(ctx, deleteStateValue, key); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}
	}
	// pending changes are scoped to the old circle and must not leak into the
	// next one; already-synced records stay, their lifecycle belongs to the
	// application layer
	if _, err = tx.ExecContext(ctx, clearPendingChanges); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
	}

	return nil
}

// Token implements [LocalStateStore].
func (s *localStateStore) Token(ctx context.Context) (string, error) {
	return s.stateValue(ctx, stateKeyToken)
}

// Watermark implements [LocalStateStore].
func (s *localStateStore) Watermark(ctx context.Context) (int64, error) {
	raw, err := s.stateValue(ctx, stateKeyWatermark)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}

	watermark, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt watermark value %q: %w", raw, err)
	}
	return watermark, nil
}

// SetWatermark implements [LocalStateStore].
func (s *localStateStore) SetWatermark(ctx context.Context, watermark int64) error {
	return s.setStateValue(ctx, stateKeyWatermark, strconv.FormatInt(watermark, 10))
}

// LastSync implements [LocalStateStore].
func (s *localStateStore) LastSync(ctx context.Context) (time.Time, error) {
	raw, err := s.stateValue(ctx, stateKeyLastSync)
	if err != nil {
		return time.Time{}, err
	}
	if raw == "" {
		return time.Time{}, nil
	}

	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt last sync value %q: %w", raw, err)
	}
	return at, nil
}

// SetLastSync implements [LocalStateStore].
func (s *localStateStore) SetLastSync(ctx context.Context, at time.Time) error {
	return s.setStateValue(ctx, stateKeyLastSync, at.Format(time.RFC3339Nano))
}

// EnqueueChange implements [LocalStateStore].
func (s *localStateStore) EnqueueChange(ctx context.Context, change models.SyncChange) error {
	log := logger.FromContext(ctx)

	_, err := s.db.ExecContext(ctx, enqueuePendingChange,
		change.ID,
		change.EntityType,
		change.EntityID,
		change.Action,
		nullableJSON(change.Data),
		change.Timestamp,
	)
	if err != nil {
		log.Err(err).Str("func", "*localStateStore.EnqueueChange").Str("change_id", change.ID).Msg("error enqueueing change")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

// PendingChanges implements [LocalStateStore].
func (s *localStateStore) PendingChanges(ctx context.Context) ([]models.SyncChange, error) {
	rows, err := s.db.QueryContext(ctx, selectPendingChanges)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var changes []models.SyncChange
	for rows.Next() {
		var change models.SyncChange
		var data sql.Null[[]byte]
		if err = rows.Scan(&change.ID, &change.EntityType, &change.EntityID, &change.Action, &data, &change.Timestamp); err != nil {
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

// PendingCount implements [LocalStateStore].
func (s *localStateStore) PendingCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, countPendingChanges).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return count, nil
}

// RemovePending implements [LocalStateStore].
func (s *localStateStore) RemovePending(ctx context.Context, changeIDs []string) error {
	if len(changeIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, changeID := range changeIDs {
		if _, err = tx.ExecContext(ctx, deletePendingChange, changeID); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
	}

	return nil
}

// ApplyRemote implements [LocalStateStore]. The upsert only replaces a cached
// record with a higher-versioned one, so replaying old ledger entries never
// regresses the cache.
func (s *localStateStore) ApplyRemote(ctx context.Context, change models.SyncChange) error {
	log := logger.FromContext(ctx)

	var err error
	switch change.Action {
	case models.ActionDelete:
		_, err = s.db.ExecContext(ctx, deleteRecord, change.EntityType, change.EntityID)
	case models.ActionCreate, models.ActionUpdate:
		_, err = s.db.ExecContext(ctx, upsertRecord, change.EntityType, change.EntityID, []byte(change.Data), change.Version)
	default:
		return fmt.Errorf("unknown change action %q", change.Action)
	}
	if err != nil {
		log.Err(err).Str("func", "*localStateStore.ApplyRemote").Str("change_id", change.ID).Msg("error applying remote change")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

// Records implements [LocalStateStore].
func (s *localStateStore) Records(ctx context.Context, entityType string) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, selectRecords, entityType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var records [][]byte
	for rows.Next() {
		var data []byte
		if err = rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		records = append(records, data)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return records, nil
}

// Close implements [LocalStateStore].
func (s *localStateStore) Close() error {
	return s.db.Close()
}

// stateValue reads one key from the device_state table, empty string when
// absent.
func (s *localStateStore) stateValue(ctx context.Context, key string) (string, error) {
	var value string
	if err := s.db.QueryRowContext(ctx, selectStateValue, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return value, nil
}

func (s *localStateStore) setStateValue(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, upsertStateValue, key, value); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}
