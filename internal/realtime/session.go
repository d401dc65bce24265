package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/models"
)

// Close codes sent when a handshake is rejected.
const (
	CloseMissingCredentials = 4001
	CloseNotAMember         = 4003
	CloseMalformedFrame     = 4400
)

const handshakeTimeout = 10 * time.Second

// TokenParser validates a bearer token and resolves the user behind it.
type TokenParser interface {
	ParseToken(ctx context.Context, tokenString string) (models.Token, error)
}

// MembershipChecker reports whether a user belongs to a circle.
type MembershipChecker interface {
	IsMember(ctx context.Context, circleID string, userID int64) (bool, error)
}

// Session is one authenticated, subscribed realtime connection.
type Session struct {
	hub    *Hub
	conn   *websocket.Conn
	logger *logger.Logger

	send chan []byte

	circleID string
	deviceID string
	userID   int64
}

// HandleConnection runs the handshake on a freshly upgraded connection and,
// on success, serves it until the peer disconnects.
//
// The handshake is two client frames: an auth frame carrying the bearer
// token, then a subscribe frame naming the circle and the device. Rejections
// close the connection with a frame-level code: 4001 when credentials are
// missing or invalid, 4003 when the user is not a member of the circle, 4400
// when a frame is malformed or out of order.
//
// When the session ends, a member_left frame is delivered to the circle's
// remaining subscribers through events.
func (h *Hub) HandleConnection(ctx context.Context, conn *websocket.Conn, tokens TokenParser, members MembershipChecker, events Broadcaster) {
	log := logger.FromContext(ctx)

	sess, err := h.handshake(ctx, conn, tokens, members)
	if err != nil {
		log.Warn().Err(err).Msg("realtime handshake rejected")
		conn.Close()
		return
	}

	log.Info().
		Str("circle_id", sess.circleID).
		Str("device_id", sess.deviceID).
		Int64("user_id", sess.userID).
		Msg("realtime session subscribed")

	h.register(sess)
	go sess.writePump()
	sess.readPump()

	// readPump has already unregistered the session, so the departing
	// connection never sees its own departure.
	events.Broadcast(ctx, sess.circleID, models.RealtimeFrame{
		Type:     models.FrameMemberLeft,
		CircleID: sess.circleID,
		UserID:   sess.userID,
	})
}

func (h *Hub) handshake(ctx context.Context, conn *websocket.Conn, tokens TokenParser, members MembershipChecker) (*Session, error) {
	deadline := time.Now().Add(handshakeTimeout)
	_ = conn.SetReadDeadline(deadline)

	var auth models.RealtimeFrame
	if err := conn.ReadJSON(&auth); err != nil || auth.Type != models.FrameAuth {
		closeWith(conn, CloseMalformedFrame, "expected auth frame")
		return nil, errHandshake("expected auth frame", err)
	}
	if auth.Token == "" {
		closeWith(conn, CloseMissingCredentials, "missing token")
		return nil, errHandshake("missing token", nil)
	}

	token, err := tokens.ParseToken(ctx, auth.Token)
	if err != nil {
		closeWith(conn, CloseMissingCredentials, "invalid token")
		return nil, errHandshake("invalid token", err)
	}

	var sub models.RealtimeFrame
	if err = conn.ReadJSON(&sub); err != nil || sub.Type != models.FrameSubscribe {
		closeWith(conn, CloseMalformedFrame, "expected subscribe frame")
		return nil, errHandshake("expected subscribe frame", err)
	}
	if sub.CircleID == "" || sub.DeviceID == "" {
		closeWith(conn, CloseMalformedFrame, "subscribe frame missing circle or device")
		return nil, errHandshake("subscribe frame missing circle or device", nil)
	}

	isMember, err := members.IsMember(ctx, sub.CircleID, token.UserID)
	if err != nil {
		closeWith(conn, websocket.CloseInternalServerErr, "membership check failed")
		return nil, errHandshake("membership check failed", err)
	}
	if !isMember {
		closeWith(conn, CloseNotAMember, "not a member of the circle")
		return nil, errHandshake("not a member of the circle", nil)
	}

	sess := &Session{
		hub:      h,
		conn:     conn,
		logger:   h.logger,
		send:     make(chan []byte, h.cfg.SendBuffer),
		circleID: sub.CircleID,
		deviceID: sub.DeviceID,
		userID:   token.UserID,
	}

	_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	if err = conn.WriteJSON(models.RealtimeFrame{Type: models.FrameConnected, CircleID: sess.circleID}); err != nil {
		return nil, errHandshake("writing connected frame", err)
	}

	return sess, nil
}

// readPump consumes frames from the peer until the connection dies. The read
// deadline is pushed forward by every pong, so a peer that stops answering
// pings gets dropped.
func (s *Session) readPump() {
	defer func() {
		s.hub.unregister(s)
		close(s.send)
		s.conn.Close()
	}()

	readTimeout := 2 * s.hub.cfg.PingInterval
	_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		var frame models.RealtimeFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn().
					Str("circle_id", s.circleID).
					Str("device_id", s.deviceID).
					Err(err).
					Msg("realtime session dropped")
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))

		if frame.Type == models.FramePing {
			s.enqueue(models.RealtimeFrame{Type: models.FramePong})
		}
	}
}

// writePump drains the send queue and keeps the connection alive with
// periodic protocol-level pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			if !ok {
				_ = s.conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(s.hub.cfg.WriteTimeout),
				)
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.hub.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.hub.cfg.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

// enqueue hands a frame to the write pump without blocking the read loop.
func (s *Session) enqueue(frame models.RealtimeFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case s.send <- payload:
	default:
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second),
	)
}

type handshakeError struct {
	reason string
	cause  error
}

func (e *handshakeError) Error() string {
	if e.cause != nil {
		return e.reason + ": " + e.cause.Error()
	}
	return e.reason
}

func (e *handshakeError) Unwrap() error { return e.cause }

func errHandshake(reason string, cause error) error {
	return &handshakeError{reason: reason, cause: cause}
}
