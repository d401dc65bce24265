package models

import "time"

// SyncResult is how push/pull/sync outcomes are reported to the caller.
// Sync failures are routine (offline devices), so they travel as values on
// this struct, never as panics that could take down the host application.
type SyncResult struct {
	// Success is true when the operation completed against the server.
	Success bool `json:"success"`

	// Pushed is the number of changes acknowledged by the server.
	Pushed int `json:"pushed"`

	// Pulled is the number of remote changes applied locally.
	Pulled int `json:"pulled"`

	// Error holds a human-readable failure description when Success is false.
	Error string `json:"error,omitempty"`
}

// SyncStatus is the snapshot surfaced to the status-rendering layer.
type SyncStatus struct {
	// Connected reports whether the realtime connection is open and
	// subscribed.
	Connected bool `json:"connected"`

	// CircleID is the currently bound circle, empty when unbound.
	CircleID string `json:"circle_id,omitempty"`

	// PendingChanges is the current pending-queue length.
	PendingChanges int `json:"pending_changes"`

	// LastSync is the time of the last successful sync, zero if never.
	LastSync time.Time `json:"last_sync,omitempty"`
}
