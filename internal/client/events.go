package client

import (
	"sync"
	"time"
)

// EventType identifies a client event category.
type EventType string

const (
	// EventSyncCompleted fires after a successful push+pull cycle.
	EventSyncCompleted EventType = "sync_completed"
	// EventSyncFailed fires when a sync cycle fails; Err carries the cause.
	EventSyncFailed EventType = "sync_failed"
	// EventRemoteUpdate fires when a peer device pushed changes to the circle.
	EventRemoteUpdate EventType = "remote_update"
	// EventMemberJoined fires when someone accepts an invitation to the circle.
	EventMemberJoined EventType = "member_joined"
	// EventMemberLeft fires when a member leaves the circle.
	EventMemberLeft EventType = "member_left"
	// EventConnectionState fires on every realtime connection state change.
	EventConnectionState EventType = "connection_state"
)

// Event is delivered to subscribers of [DeviceSyncClient.Events]. Only the
// fields relevant to the event type are populated.
type Event struct {
	Type     EventType
	CircleID string
	DeviceID string
	UserID   int64
	Count    int
	State    ConnectionState
	Err      error
	At       time.Time
}

const eventBufferSize = 16

// eventBus fans events out to subscribers. Delivery is best-effort: a
// subscriber that stops draining its channel loses events instead of blocking
// the sync path.
type eventBus struct {
	mu     sync.Mutex
	closed bool
	subs   map[chan Event]struct{}
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[chan Event]struct{})}
}

func (b *eventBus) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, eventBufferSize)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}

	return ch, unsubscribe
}

func (b *eventBus) publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *eventBus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
