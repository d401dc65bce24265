package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/openkin/circlesync/internal/config"
	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStateStore(t *testing.T, path string) LocalStateStore {
	t.Helper()

	db, err := NewConnectSQLite(context.Background(), config.DeviceStorage{StatePath: path}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewLocalStateStore(db, logger.Nop())
}

func pendingChange(id, entityID string, action models.ChangeAction) models.SyncChange {
	return models.SyncChange{
		ID:         id,
		EntityType: "medication",
		EntityID:   entityID,
		Action:     action,
		Data:       json.RawMessage(`{"name":"aspirin"}`),
		Timestamp:  time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestLocalStateStore_DeviceIDStable(t *testing.T) {
	s := newTestStateStore(t, ":memory:")
	ctx := context.Background()

	first, err := s.DeviceID(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := s.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second, "device identity must not change between calls")
}

func TestLocalStateStore_QueueFIFOOrder(t *testing.T) {
	s := newTestStateStore(t, ":memory:")
	ctx := context.Background()

	require.NoError(t, s.EnqueueChange(ctx, pendingChange("c1", "med-1", models.ActionCreate)))
	require.NoError(t, s.EnqueueChange(ctx, pendingChange("c2", "med-1", models.ActionUpdate)))
	require.NoError(t, s.EnqueueChange(ctx, pendingChange("c3", "med-2", models.ActionCreate)))

	changes, err := s.PendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 3)
	assert.Equal(t, "c1", changes[0].ID)
	assert.Equal(t, "c2", changes[1].ID)
	assert.Equal(t, "c3", changes[2].ID)

	count, err := s.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestLocalStateStore_QueueSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	first := newTestStateStore(t, path)
	require.NoError(t, first.EnqueueChange(ctx, pendingChange("c1", "med-1", models.ActionCreate)))
	require.NoError(t, first.SetWatermark(ctx, 12))
	deviceID, err := first.DeviceID(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	reopened := newTestStateStore(t, path)

	changes, err := reopened.PendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "c1", changes[0].ID)

	watermark, err := reopened.Watermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), watermark)

	sameDevice, err := reopened.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, deviceID, sameDevice)
}

func TestLocalStateStore_RemovePending(t *testing.T) {
	s := newTestStateStore(t, ":memory:")
	ctx := context.Background()

	require.NoError(t, s.EnqueueChange(ctx, pendingChange("c1", "med-1", models.ActionCreate)))
	require.NoError(t, s.EnqueueChange(ctx, pendingChange("c2", "med-2", models.ActionCreate)))

	require.NoError(t, s.RemovePending(ctx, []string{"c1"}))

	changes, err := s.PendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "c2", changes[0].ID)

	// removing nothing is a no-op
	require.NoError(t, s.RemovePending(ctx, nil))
}

func TestLocalStateStore_WatermarkDefaultsToZero(t *testing.T) {
	s := newTestStateStore(t, ":memory:")

	watermark, err := s.Watermark(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), watermark)
}

func TestLocalStateStore_ApplyRemote(t *testing.T) {
	s := newTestStateStore(t, ":memory:")
	ctx := context.Background()

	create := pendingChange("c1", "med-1", models.ActionCreate)
	create.Version = 1
	require.NoError(t, s.ApplyRemote(ctx, create))

	update := pendingChange("c2", "med-1", models.ActionUpdate)
	update.Data = json.RawMessage(`{"name":"ibuprofen"}`)
	update.Version = 2
	require.NoError(t, s.ApplyRemote(ctx, update))

	records, err := s.Records(ctx, "medication")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.JSONEq(t, `{"name":"ibuprofen"}`, string(records[0]))

	// replaying an older entry must not regress the cache
	require.NoError(t, s.ApplyRemote(ctx, create))
	records, err = s.Records(ctx, "medication")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.JSONEq(t, `{"name":"ibuprofen"}`, string(records[0]))

	del := pendingChange("c3", "med-1", models.ActionDelete)
	del.Version = 3
	require.NoError(t, s.ApplyRemote(ctx, del))

	records, err = s.Records(ctx, "medication")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLocalStateStore_RebindResetsCircleState(t *testing.T) {
	s := newTestStateStore(t, ":memory:")
	ctx := context.Background()

	deviceID, err := s.DeviceID(ctx)
	require.NoError(t, err)

	require.NoError(t, s.BindCircle(ctx, "circle-a", "token-a"))
	require.NoError(t, s.SetWatermark(ctx, 42))
	require.NoError(t, s.SetLastSync(ctx, time.Now()))
	require.NoError(t, s.EnqueueChange(ctx, pendingChange("c1", "med-1", models.ActionCreate)))
	require.NoError(t, s.ApplyRemote(ctx, models.SyncChange{
		ID: "c2", EntityType: "medication", EntityID: "med-2",
		Action: models.ActionCreate, Data: json.RawMessage(`{"name":"aspirin"}`), Version: 1,
	}))

	require.NoError(t, s.BindCircle(ctx, "circle-b", "token-b"))

	circleID, err := s.CircleID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "circle-b", circleID)

	token, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-b", token)

	watermark, err := s.Watermark(ctx)
	require.NoError(t, err)
	assert.Zero(t, watermark, "old circle's watermark must not carry over")

	lastSync, err := s.LastSync(ctx)
	require.NoError(t, err)
	assert.True(t, lastSync.IsZero())

	count, err := s.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "queued changes belong to the old circle")

	sameDevice, err := s.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, deviceID, sameDevice)

	records, err := s.Records(ctx, "medication")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestLocalStateStore_UnbindCircleKeepsIdentity(t *testing.T) {
	s := newTestStateStore(t, ":memory:")
	ctx := context.Background()

	deviceID, err := s.DeviceID(ctx)
	require.NoError(t, err)

	require.NoError(t, s.BindCircle(ctx, "circle-1", "jwt-token"))
	require.NoError(t, s.EnqueueChange(ctx, pendingChange("c1", "med-1", models.ActionCreate)))
	require.NoError(t, s.SetWatermark(ctx, 5))
	require.NoError(t, s.SetLastSync(ctx, time.Now()))
	require.NoError(t, s.ApplyRemote(ctx, models.SyncChange{
		ID: "c2", EntityType: "medication", EntityID: "med-2",
		Action: models.ActionCreate, Data: json.RawMessage(`{"name":"aspirin"}`), Version: 1,
	}))

	require.NoError(t, s.UnbindCircle(ctx))

	circleID, err := s.CircleID(ctx)
	require.NoError(t, err)
	assert.Empty(t, circleID)

	token, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	count, err := s.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	watermark, err := s.Watermark(ctx)
	require.NoError(t, err)
	assert.Zero(t, watermark)

	lastSync, err := s.LastSync(ctx)
	require.NoError(t, err)
	assert.True(t, lastSync.IsZero())

	sameDevice, err := s.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, deviceID, sameDevice)

	records, err := s.Records(ctx, "medication")
	require.NoError(t, err)
	assert.Len(t, records, 1, "synced records survive leaving the circle")
}
