package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/openkin/circlesync/internal/client"
	"github.com/openkin/circlesync/internal/config"
	"github.com/openkin/circlesync/internal/logger"
)

// SyncJob periodically runs a full sync cycle. Realtime notifications cover
// the happy path; this job is the safety net that drains the offline queue
// and catches up after missed broadcasts.
type SyncJob struct {
	syncer   Syncer
	interval time.Duration
	logger   *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewSyncJob builds the periodic sync worker.
func NewSyncJob(syncer Syncer, cfg config.DeviceWorkers, log *logger.Logger) *SyncJob {
	return &SyncJob{
		syncer:   syncer,
		interval: cfg.SyncInterval,
		logger:   log,
	}
}

// Run starts the periodic loop. The first sync fires immediately, then once
// per interval. Calling Run on a running job is a no-op.
func (j *SyncJob) Run() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	j.running = true

	j.wg.Add(1)
	go j.loop(ctx)
}

// Stop cancels the loop and waits for an in-flight sync to finish.
func (j *SyncJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	cancel := j.cancel
	j.mu.Unlock()

	cancel()
	j.wg.Wait()
}

func (j *SyncJob) loop(ctx context.Context) {
	defer j.wg.Done()

	log := j.logger.With().Str("func", "SyncJob.loop").Dur("interval", j.interval).Logger()
	log.Info().Msg("periodic sync job started")

	j.syncOnce(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("periodic sync job stopped")
			return
		case <-ticker.C:
			j.syncOnce(ctx)
		}
	}
}

func (j *SyncJob) syncOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	_, err := j.syncer.Sync(ctx)
	switch {
	case err == nil:
	case errors.Is(err, client.ErrNotBound):
		// nothing to sync until the device joins a circle
	case errors.Is(err, context.Canceled):
	default:
		j.logger.Warn().Err(err).Str("func", "SyncJob.syncOnce").Msg("periodic sync failed")
	}
}
