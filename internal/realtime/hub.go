package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/openkin/circlesync/internal/config"
	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/models"
)

// Broadcaster delivers a realtime frame to every subscriber of a circle.
type Broadcaster interface {
	Broadcast(ctx context.Context, circleID string, frame models.RealtimeFrame)
}

// Hub tracks live realtime sessions grouped by circle and fans frames out to
// them. Each circle has its own lock, so a broadcast to one circle never
// blocks traffic to another.
type Hub struct {
	cfg    config.Realtime
	logger *logger.Logger

	// circles maps circleID to *circleSet.
	circles sync.Map
}

// circleSet is the live session set of one circle.
type circleSet struct {
	mu       sync.RWMutex
	closed   bool
	sessions map[*Session]struct{}
}

// NewHub constructs an empty Hub.
func NewHub(cfg config.Realtime, logger *logger.Logger) *Hub {
	return &Hub{
		cfg:    cfg,
		logger: logger,
	}
}

// Broadcast implements [Broadcaster]. The frame is serialized once and handed
// to every subscriber's send queue. A subscriber whose queue is full is
// skipped rather than awaited, so one slow connection cannot stall the rest
// of the circle.
func (h *Hub) Broadcast(ctx context.Context, circleID string, frame models.RealtimeFrame) {
	log := logger.FromContext(ctx)

	raw, ok := h.circles.Load(circleID)
	if !ok {
		return
	}
	set := raw.(*circleSet)

	payload, err := json.Marshal(frame)
	if err != nil {
		log.Err(err).Str("circle_id", circleID).Str("frame_type", frame.Type).Msg("error serializing frame")
		return
	}

	set.mu.RLock()
	defer set.mu.RUnlock()
	for sess := range set.sessions {
		select {
		case sess.send <- payload:
		default:
			log.Warn().
				Str("circle_id", circleID).
				Str("device_id", sess.deviceID).
				Msg("dropping frame for slow subscriber")
		}
	}
}

// SubscriberCount returns the number of live sessions for the circle.
func (h *Hub) SubscriberCount(circleID string) int {
	raw, ok := h.circles.Load(circleID)
	if !ok {
		return 0
	}
	set := raw.(*circleSet)

	set.mu.RLock()
	defer set.mu.RUnlock()
	return len(set.sessions)
}

// register adds the session to its circle's set, creating the set when the
// circle has no subscribers yet.
func (h *Hub) register(sess *Session) {
	for {
		raw, _ := h.circles.LoadOrStore(sess.circleID, &circleSet{sessions: make(map[*Session]struct{})})
		set := raw.(*circleSet)

		set.mu.Lock()
		if set.closed {
			// lost a race with the last unregister; the set was removed
			set.mu.Unlock()
			continue
		}
		set.sessions[sess] = struct{}{}
		set.mu.Unlock()
		return
	}
}

// unregister removes the session and drops the circle's set entirely once it
// is empty, so idle circles hold no hub state.
func (h *Hub) unregister(sess *Session) {
	raw, ok := h.circles.Load(sess.circleID)
	if !ok {
		return
	}
	set := raw.(*circleSet)

	set.mu.Lock()
	delete(set.sessions, sess)
	if len(set.sessions) == 0 {
		set.closed = true
		h.circles.Delete(sess.circleID)
	}
	set.mu.Unlock()
}
