// Package workers provides the device agent's background jobs.
//
// It defines the Worker interface and a Workers aggregate that starts
// multiple workers in a unified way, plus the periodic sync job that keeps
// the device converging even when no realtime notification arrives.
package workers

import (
	"context"

	"github.com/openkin/circlesync/models"
)

// Worker is the interface implemented by background jobs.
//
// Run starts the worker's execution. Implementations are expected to spawn
// goroutines internally and return promptly; Stop blocks until the worker
// has fully wound down.
type Worker interface {
	Run()
	Stop()
}

// Syncer is the subset of the device sync client the periodic job needs.
type Syncer interface {
	Sync(ctx context.Context) (models.SyncResult, error)
}
