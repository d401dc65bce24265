package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openkin/circlesync/internal/adapter"
	"github.com/openkin/circlesync/internal/config"
	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/internal/store"
	"github.com/openkin/circlesync/internal/utils"
	"github.com/openkin/circlesync/models"
)

// DeviceSyncClient is the device-side sync engine. It owns the durable local
// state, talks to the server through a [adapter.ServerAdapter], and keeps a
// realtime connection that turns peer pushes into prompt pulls.
//
// All methods are safe for concurrent use.
type DeviceSyncClient struct {
	state    store.LocalStateStore
	server   adapter.ServerAdapter
	realtime *realtimeConn
	events   *eventBus
	logger   *logger.Logger

	// syncMu serializes push/pull cycles so a slow sync and a realtime
	// triggered pull cannot interleave.
	syncMu sync.Mutex

	// pushSignal collapses TrackChange-triggered push attempts: one buffered
	// slot means a push already in flight absorbs any number of new signals.
	pushSignal chan struct{}

	pusherMu     sync.Mutex
	pusherCancel context.CancelFunc
	pusherDone   chan struct{}
}

// NewDeviceSyncClient wires the device agent together. The realtime endpoint
// is derived from the adapter's server address.
func NewDeviceSyncClient(state store.LocalStateStore, server adapter.ServerAdapter, cfg *config.DeviceConfig, log *logger.Logger) (*DeviceSyncClient, error) {
	wsURL, err := realtimeURL(cfg.Adapter.HTTPAddress)
	if err != nil {
		return nil, fmt.Errorf("derive realtime endpoint: %w", err)
	}

	c := &DeviceSyncClient{
		state:      state,
		server:     server,
		events:     newEventBus(),
		logger:     log,
		pushSignal: make(chan struct{}, 1),
	}
	c.realtime = newRealtimeConn(wsURL, cfg.Realtime, c.events, c.pullOnNotify, log)

	return c, nil
}

// Initialize restores persisted identity and session state. When the device
// is already bound to a circle the realtime connection is started.
func (c *DeviceSyncClient) Initialize(ctx context.Context) error {
	log := c.logger.With().Str("func", "Initialize").Logger()

	deviceID, err := c.state.DeviceID(ctx)
	if err != nil {
		return fmt.Errorf("load device identity: %w", err)
	}

	token, err := c.state.Token(ctx)
	if err != nil {
		return fmt.Errorf("load session token: %w", err)
	}
	if token != "" {
		c.server.SetToken(token)
	}

	circleID, err := c.state.CircleID(ctx)
	if err != nil {
		return fmt.Errorf("load circle binding: %w", err)
	}

	log.Info().Str("device_id", deviceID).Str("circle_id", circleID).Msg("device agent initialized")

	c.startPusher()

	if circleID != "" && token != "" {
		c.realtime.Start(realtimeSession{circleID: circleID, deviceID: deviceID, token: token})
	}

	return nil
}

// JoinCircle redeems an invitation token and binds this device to the
// resulting circle.
func (c *DeviceSyncClient) JoinCircle(ctx context.Context, inviteToken, password string) (models.CareCircle, error) {
	log := c.logger.With().Str("func", "JoinCircle").Logger()

	response, err := c.server.AcceptInvitation(ctx, inviteToken, models.AcceptInvitationRequest{Password: password})
	if err != nil {
		return models.CareCircle{}, fmt.Errorf("accept invitation: %w", err)
	}

	if err = c.state.BindCircle(ctx, response.Circle.ID, response.Token); err != nil {
		return models.CareCircle{}, fmt.Errorf("bind circle: %w", err)
	}

	deviceID, err := c.state.DeviceID(ctx)
	if err != nil {
		return models.CareCircle{}, fmt.Errorf("load device identity: %w", err)
	}

	log.Info().Str("circle_id", response.Circle.ID).Msg("joined circle")

	c.realtime.Stop()
	c.realtime.Start(realtimeSession{circleID: response.Circle.ID, deviceID: deviceID, token: response.Token})

	// initial full pull so the new member sees the circle's data right away
	if _, err = c.PullFromCloud(ctx); err != nil {
		log.Warn().Err(err).Msg("initial pull after join failed")
	}

	return response.Circle, nil
}

// LeaveCircle unbinds the device: the realtime connection is closed and all
// circle-scoped local state is dropped. Device identity survives.
func (c *DeviceSyncClient) LeaveCircle(ctx context.Context) error {
	c.realtime.Stop()
	c.server.SetToken("")

	if err := c.state.UnbindCircle(ctx); err != nil {
		return fmt.Errorf("unbind circle: %w", err)
	}

	c.logger.Info().Str("func", "LeaveCircle").Msg("left circle")

	return nil
}

// TrackChange records a local mutation in the durable pending queue. The
// change gets a client-assigned ID so retried pushes stay idempotent.
func (c *DeviceSyncClient) TrackChange(ctx context.Context, entityType, entityID string, action models.ChangeAction, data json.RawMessage) (models.SyncChange, error) {
	deviceID, err := c.state.DeviceID(ctx)
	if err != nil {
		return models.SyncChange{}, fmt.Errorf("load device identity: %w", err)
	}

	change := models.SyncChange{
		ID:         utils.NewChangeID(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Data:       data,
		Timestamp:  time.Now().UTC(),
		DeviceID:   deviceID,
	}

	if err = c.state.EnqueueChange(ctx, change); err != nil {
		return models.SyncChange{}, fmt.Errorf("enqueue change: %w", err)
	}

	// best-effort immediate push, never blocking the caller
	select {
	case c.pushSignal <- struct{}{}:
	default:
	}

	return change, nil
}

// PushToCloud sends the pending queue to the server in one batch and removes
// acknowledged changes. Returns the number of changes the server accepted.
// On failure the queue is kept intact for the next attempt.
func (c *DeviceSyncClient) PushToCloud(ctx context.Context) (int, error) {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	return c.pushLocked(ctx)
}

// PullFromCloud fetches ledger entries newer than the stored watermark,
// folds them into the local record cache and advances the watermark.
func (c *DeviceSyncClient) PullFromCloud(ctx context.Context) (int, error) {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	return c.pullLocked(ctx)
}

// Sync runs a full push-then-pull cycle and records the completion time.
// Failures are routine for an offline device, so the outcome always arrives
// as a [models.SyncResult] value alongside the error.
func (c *DeviceSyncClient) Sync(ctx context.Context) (models.SyncResult, error) {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	log := c.logger.With().Str("func", "Sync").Logger()

	pushed, err := c.pushLocked(ctx)
	if err != nil {
		c.events.publish(Event{Type: EventSyncFailed, Err: err})
		return models.SyncResult{Error: err.Error()}, err
	}

	pulled, err := c.pullLocked(ctx)
	if err != nil {
		c.events.publish(Event{Type: EventSyncFailed, Err: err})
		return models.SyncResult{Pushed: pushed, Error: err.Error()}, err
	}

	now := time.Now().UTC()
	if err = c.state.SetLastSync(ctx, now); err != nil {
		err = fmt.Errorf("record sync time: %w", err)
		return models.SyncResult{Pushed: pushed, Pulled: pulled, Error: err.Error()}, err
	}

	log.Debug().Int("pushed", pushed).Int("pulled", pulled).Msg("sync cycle complete")
	c.events.publish(Event{Type: EventSyncCompleted, Count: pushed + pulled, At: now})

	c.ensureRealtime(ctx)

	return models.SyncResult{Success: true, Pushed: pushed, Pulled: pulled}, nil
}

// Status reports the agent's current sync state.
func (c *DeviceSyncClient) Status(ctx context.Context) (models.SyncStatus, error) {
	circleID, err := c.state.CircleID(ctx)
	if err != nil {
		return models.SyncStatus{}, err
	}
	pending, err := c.state.PendingCount(ctx)
	if err != nil {
		return models.SyncStatus{}, err
	}
	lastSync, err := c.state.LastSync(ctx)
	if err != nil {
		return models.SyncStatus{}, err
	}

	return models.SyncStatus{
		Connected:      c.realtime.State() == StateSubscribed,
		CircleID:       circleID,
		PendingChanges: pending,
		LastSync:       lastSync,
	}, nil
}

// Records returns the locally cached payloads for one entity type.
func (c *DeviceSyncClient) Records(ctx context.Context, entityType string) ([][]byte, error) {
	return c.state.Records(ctx, entityType)
}

// Events subscribes to the client's event stream. The returned function
// unsubscribes and closes the channel.
func (c *DeviceSyncClient) Events() (<-chan Event, func()) {
	return c.events.subscribe()
}

// Close stops the realtime connection and releases the local store.
func (c *DeviceSyncClient) Close() error {
	c.realtime.Stop()
	c.stopPusher()
	c.events.close()
	return c.state.Close()
}

// startPusher launches the goroutine that drains TrackChange push signals.
func (c *DeviceSyncClient) startPusher() {
	c.pusherMu.Lock()
	defer c.pusherMu.Unlock()
	if c.pusherCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.pusherCancel = cancel
	c.pusherDone = make(chan struct{})

	go func() {
		defer close(c.pusherDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.pushSignal:
				if _, err := c.PushToCloud(ctx); err != nil && !errors.Is(err, ErrNotBound) {
					c.logger.Debug().Err(err).Str("func", "startPusher").Msg("background push failed, queue kept")
				}
			}
		}
	}()
}

func (c *DeviceSyncClient) stopPusher() {
	c.pusherMu.Lock()
	cancel, done := c.pusherCancel, c.pusherDone
	c.pusherCancel = nil
	c.pusherMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *DeviceSyncClient) pushLocked(ctx context.Context) (int, error) {
	log := c.logger.With().Str("func", "PushToCloud").Logger()

	circleID, err := c.requireCircle(ctx)
	if err != nil {
		return 0, err
	}

	pending, err := c.state.PendingChanges(ctx)
	if err != nil {
		return 0, fmt.Errorf("load pending queue: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	deviceID, err := c.state.DeviceID(ctx)
	if err != nil {
		return 0, fmt.Errorf("load device identity: %w", err)
	}

	response, err := c.server.PushChanges(ctx, circleID, models.PushRequest{
		Changes:  pending,
		DeviceID: deviceID,
	})
	if err != nil {
		log.Warn().Err(err).Int("pending", len(pending)).Msg("push failed, queue kept")
		return 0, fmt.Errorf("push changes: %w", err)
	}

	changeIDs := make([]string, 0, len(pending))
	for _, change := range pending {
		changeIDs = append(changeIDs, change.ID)
	}
	if err = c.state.RemovePending(ctx, changeIDs); err != nil {
		return 0, fmt.Errorf("ack pending queue: %w", err)
	}

	log.Debug().Int("synced", response.Synced).Msg("changes pushed")

	return response.Synced, nil
}

func (c *DeviceSyncClient) pullLocked(ctx context.Context) (int, error) {
	log := c.logger.With().Str("func", "PullFromCloud").Logger()

	circleID, err := c.requireCircle(ctx)
	if err != nil {
		return 0, err
	}

	watermark, err := c.state.Watermark(ctx)
	if err != nil {
		return 0, fmt.Errorf("load watermark: %w", err)
	}

	response, err := c.server.PullChanges(ctx, circleID, &watermark)
	if err != nil {
		return 0, fmt.Errorf("pull changes: %w", err)
	}

	for _, change := range response.Changes {
		if err = c.state.ApplyRemote(ctx, change); err != nil {
			return 0, fmt.Errorf("apply change %s: %w", change.ID, err)
		}
	}

	if response.Watermark > watermark {
		if err = c.state.SetWatermark(ctx, response.Watermark); err != nil {
			return 0, fmt.Errorf("advance watermark: %w", err)
		}
	}

	log.Debug().Int("applied", len(response.Changes)).Int64("watermark", response.Watermark).Msg("changes pulled")

	return len(response.Changes), nil
}

// pullOnNotify is the realtime trigger: a peer pushed, fetch promptly.
func (c *DeviceSyncClient) pullOnNotify(ctx context.Context) {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	if _, err := c.pullLocked(ctx); err != nil {
		c.logger.Warn().Err(err).Str("func", "pullOnNotify").Msg("realtime triggered pull failed")
	}
}

// ensureRealtime restarts a dormant realtime connection, e.g. after the
// reconnect budget was exhausted while offline.
func (c *DeviceSyncClient) ensureRealtime(ctx context.Context) {
	if c.realtime.State() != StateDisconnected {
		return
	}

	circleID, err := c.state.CircleID(ctx)
	if err != nil || circleID == "" {
		return
	}
	deviceID, err := c.state.DeviceID(ctx)
	if err != nil {
		return
	}
	token, err := c.state.Token(ctx)
	if err != nil || token == "" {
		return
	}

	c.realtime.Start(realtimeSession{circleID: circleID, deviceID: deviceID, token: token})
}

func (c *DeviceSyncClient) requireCircle(ctx context.Context) (string, error) {
	circleID, err := c.state.CircleID(ctx)
	if err != nil {
		return "", fmt.Errorf("load circle binding: %w", err)
	}
	if circleID == "" {
		return "", ErrNotBound
	}
	return circleID, nil
}
