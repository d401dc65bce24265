package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openkin/circlesync/internal/config"
	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/models"
)

// ConnectionState describes where the realtime connection is in its
// lifecycle.
type ConnectionState string

const (
	StateDisconnected   ConnectionState = "disconnected"
	StateConnecting     ConnectionState = "connecting"
	StateAuthenticating ConnectionState = "authenticating"
	StateSubscribed     ConnectionState = "subscribed"
)

const handshakeReadTimeout = 10 * time.Second

// realtimeSession is the per-connection identity: set when the loop starts,
// immutable for its lifetime.
type realtimeSession struct {
	circleID string
	deviceID string
	token    string
}

// realtimeConn maintains the websocket connection to the server: it dials,
// performs the auth/subscribe handshake, listens for broadcast frames and
// reconnects with capped exponential backoff. After BackoffMaxAttempts
// consecutive failures it goes dormant until restarted by the next Sync or
// JoinCircle.
type realtimeConn struct {
	url      string
	cfg      config.DeviceRealtime
	dialer   *websocket.Dialer
	events   *eventBus
	onUpdate func(ctx context.Context)
	logger   *logger.Logger

	mu      sync.Mutex
	state   ConnectionState
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func newRealtimeConn(wsURL string, cfg config.DeviceRealtime, events *eventBus, onUpdate func(ctx context.Context), log *logger.Logger) *realtimeConn {
	return &realtimeConn{
		url:      wsURL,
		cfg:      cfg,
		dialer:   websocket.DefaultDialer,
		events:   events,
		onUpdate: onUpdate,
		logger:   log,
		state:    StateDisconnected,
	}
}

// Start launches the connection loop for the given session. A loop that is
// already running keeps its session; call Stop first to rebind.
func (c *realtimeConn) Start(session realtimeSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go c.run(ctx, session)
}

// Stop tears the connection down and waits for the loop to exit.
func (c *realtimeConn) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
}

// State returns the current connection state.
func (c *realtimeConn) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *realtimeConn) setState(state ConnectionState) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()

	if changed {
		c.events.publish(Event{Type: EventConnectionState, State: state})
	}
}

func (c *realtimeConn) run(ctx context.Context, session realtimeSession) {
	log := c.logger.With().Str("func", "realtimeConn.run").Str("circle_id", session.circleID).Logger()

	defer func() {
		c.setState(StateDisconnected)
		c.mu.Lock()
		c.running = false
		close(c.done)
		c.mu.Unlock()
	}()

	for attempt := 0; ; {
		if ctx.Err() != nil {
			return
		}

		c.setState(StateConnecting)
		conn, err := c.connect(ctx, session)
		if err != nil {
			attempt++
			log.Warn().Err(err).Int("attempt", attempt).Msg("realtime connect failed")
			if c.cfg.BackoffMaxAttempts > 0 && attempt >= c.cfg.BackoffMaxAttempts {
				log.Error().Msg("realtime reconnect attempts exhausted")
				c.events.publish(Event{Type: EventConnectionState, State: StateDisconnected, Err: err})
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoffDelay(c.cfg, attempt)):
			}
			continue
		}

		c.setState(StateSubscribed)
		attempt = 0
		log.Info().Msg("realtime connection established")

		c.listen(ctx, conn, session)
		conn.Close() //nolint:errcheck
	}
}

// connect dials the server and performs the in-band handshake: auth frame,
// subscribe frame, then the server's connected acknowledgement.
func (c *realtimeConn) connect(ctx context.Context, session realtimeSession) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.setState(StateAuthenticating)

	if err = conn.WriteJSON(models.RealtimeFrame{Type: models.FrameAuth, Token: session.token}); err != nil {
		conn.Close() //nolint:errcheck
		return nil, fmt.Errorf("write auth frame: %w", err)
	}
	if err = conn.WriteJSON(models.RealtimeFrame{
		Type:     models.FrameSubscribe,
		CircleID: session.circleID,
		DeviceID: session.deviceID,
	}); err != nil {
		conn.Close() //nolint:errcheck
		return nil, fmt.Errorf("write subscribe frame: %w", err)
	}

	var ack models.RealtimeFrame
	_ = conn.SetReadDeadline(time.Now().Add(handshakeReadTimeout))
	if err = conn.ReadJSON(&ack); err != nil {
		conn.Close() //nolint:errcheck
		return nil, fmt.Errorf("read handshake ack: %w", err)
	}
	if ack.Type != models.FrameConnected {
		conn.Close() //nolint:errcheck
		return nil, fmt.Errorf("unexpected handshake ack %q", ack.Type)
	}
	_ = conn.SetReadDeadline(time.Time{})

	return conn, nil
}

// listen consumes broadcast frames until the connection breaks or ctx is
// cancelled.
func (c *realtimeConn) listen(ctx context.Context, conn *websocket.Conn, session realtimeSession) {
	log := c.logger.With().Str("func", "realtimeConn.listen").Logger()

	go func() {
		<-ctx.Done()
		conn.Close() //nolint:errcheck
	}()

	for {
		var frame models.RealtimeFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Msg("realtime connection lost")
			}
			return
		}

		switch frame.Type {
		case models.FrameSyncUpdate:
			// changes this device pushed come back as broadcasts too
			if frame.DeviceID == session.deviceID {
				continue
			}
			c.events.publish(Event{
				Type:     EventRemoteUpdate,
				CircleID: frame.CircleID,
				DeviceID: frame.DeviceID,
				Count:    frame.Count,
			})
			if c.onUpdate != nil {
				c.onUpdate(ctx)
			}
		case models.FrameMemberJoined:
			c.events.publish(Event{Type: EventMemberJoined, CircleID: frame.CircleID, UserID: frame.UserID})
		case models.FrameMemberLeft:
			c.events.publish(Event{Type: EventMemberLeft, CircleID: frame.CircleID, UserID: frame.UserID})
		case models.FramePong:
		default:
			log.Debug().Str("type", frame.Type).Msg("ignoring unknown frame")
		}
	}
}

// backoffDelay computes the capped exponential delay before reconnect
// attempt n (n >= 1).
func backoffDelay(cfg config.DeviceRealtime, attempt int) time.Duration {
	delay := cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= cfg.BackoffCap {
			return cfg.BackoffCap
		}
	}
	if cfg.BackoffCap > 0 && delay > cfg.BackoffCap {
		return cfg.BackoffCap
	}
	return delay
}

// realtimeURL converts the server's HTTP base address into the websocket
// endpoint address.
func realtimeURL(httpAddress string) (string, error) {
	address := strings.TrimSpace(httpAddress)
	if address == "" {
		return "", fmt.Errorf("server address is empty")
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}

	parsed, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("invalid server address %q: %w", address, err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	parsed.Path = "/api/ws"

	return parsed.String(), nil
}
