package models

import "time"

// Realtime frame types exchanged over the websocket connection.
// Client → server: auth, subscribe, ping.
// Server → client: connected, sync_update, member_joined, member_left, pong.
const (
	FrameAuth      = "auth"
	FrameSubscribe = "subscribe"
	FramePing      = "ping"

	FrameConnected    = "connected"
	FrameSyncUpdate   = "sync_update"
	FrameMemberJoined = "member_joined"
	FrameMemberLeft   = "member_left"
	FramePong         = "pong"
)

// RealtimeFrame is the JSON envelope for every message on the realtime
// connection. Broadcast frames stay compact on purpose: a sync_update carries
// enough metadata for a peer to decide whether to pull, never the payloads.
type RealtimeFrame struct {
	Type      string     `json:"type"`
	Token     string     `json:"token,omitempty"`
	CircleID  string     `json:"circle_id,omitempty"`
	DeviceID  string     `json:"device_id,omitempty"`
	UserID    int64      `json:"user_id,omitempty"`
	Count     int        `json:"count,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// SyncUpdateFrame builds the compact broadcast emitted after a successful
// ingest: circle, change count and the originating device.
func SyncUpdateFrame(circleID, deviceID string, count int) RealtimeFrame {
	return RealtimeFrame{
		Type:     FrameSyncUpdate,
		CircleID: circleID,
		DeviceID: deviceID,
		Count:    count,
	}
}
