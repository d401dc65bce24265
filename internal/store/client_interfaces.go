package store

import (
	"context"
	"time"

	"github.com/openkin/circlesync/models"
)

//go:generate mockgen -source=client_interfaces.go -destination=../mock/client_store_mock.go -package=mock

// LocalStateStore is the device agent's durable local state: identity, circle
// binding, auth token, the FIFO queue of unsynced changes, the pull watermark
// and the materialized record cache. Everything survives process restarts.
type LocalStateStore interface {
	// DeviceID returns the stable device identity, generating and persisting
	// one on first call.
	DeviceID(ctx context.Context) (string, error)

	// CircleID returns the bound circle, or empty when the device is not a
	// member of any circle yet.
	CircleID(ctx context.Context) (string, error)

	// BindCircle records the circle the device belongs to and the auth token
	// covering it. Any state scoped to a previously bound circle (watermark,
	// last-sync marker, pending queue) is reset atomically with the rebind.
	BindCircle(ctx context.Context, circleID, token string) (err error)

	// UnbindCircle drops the circle binding, the token, the pending queue and
	// the watermark. Already-synced records are kept: their lifecycle belongs
	// to the application layer.
	UnbindCircle(ctx context.Context) error

	// Token returns the stored auth token, or empty when none is stored.
	Token(ctx context.Context) (string, error)

	// Watermark returns the highest server ledger version this device has
	// pulled, zero before the first pull.
	Watermark(ctx context.Context) (int64, error)

	// SetWatermark records the pull watermark.
	SetWatermark(ctx context.Context, watermark int64) error

	// LastSync returns the time of the last successful sync, zero before the
	// first one.
	LastSync(ctx context.Context) (time.Time, error)

	// SetLastSync records the time of a successful sync.
	SetLastSync(ctx context.Context, at time.Time) error

	// EnqueueChange appends a change to the pending queue.
	EnqueueChange(ctx context.Context, change models.SyncChange) error

	// PendingChanges returns the whole queue in enqueue order.
	PendingChanges(ctx context.Context) ([]models.SyncChange, error)

	// PendingCount returns the queue length.
	PendingCount(ctx context.Context) (int, error)

	// RemovePending drops the identified changes from the queue after the
	// server has acknowledged them.
	RemovePending(ctx context.Context, changeIDs []string) error

	// ApplyRemote folds a pulled ledger entry into the materialized record
	// cache: create and update upsert, delete removes.
	ApplyRemote(ctx context.Context, change models.SyncChange) error

	// Records returns the cached payloads for one entity type.
	Records(ctx context.Context, entityType string) ([][]byte, error)

	// Close releases the underlying database handle.
	Close() error
}
