package models

import (
	"encoding/json"
	"time"
)

// ChangeAction identifies the kind of mutation a SyncChange carries.
type ChangeAction string

const (
	ActionCreate ChangeAction = "create"
	ActionUpdate ChangeAction = "update"
	ActionDelete ChangeAction = "delete"
)

// Valid reports whether the action is one of the three supported mutations.
func (a ChangeAction) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// SyncChange is the atomic unit of synchronization. The client assigns ID at
// enqueue time so the value stays stable across retried pushes; the server
// assigns Version when the change is committed to the circle's ledger.
//
// EntityType, EntityID and Data are opaque to the sync engine — the engine
// moves records, it never interprets them.
type SyncChange struct {
	// ID is the client-assigned change token (timestamp + random suffix).
	ID string `json:"id"`

	// CircleID scopes the change to one care circle. Populated server-side
	// from the request path; clients do not set it.
	CircleID string `json:"circle_id,omitempty"`

	// EntityType names the logical record kind (medication, appointment, ...).
	EntityType string `json:"entity_type"`

	// EntityID identifies the record being mutated.
	EntityID string `json:"entity_id"`

	// Action is one of create, update, delete.
	Action ChangeAction `json:"action"`

	// Data is the new payload. Required for create/update, may be empty for
	// delete.
	Data json.RawMessage `json:"data,omitempty"`

	// Timestamp is the client wall-clock time at enqueue.
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the originating device, used by peers to suppress
	// re-delivery of their own changes.
	DeviceID string `json:"device_id"`

	// Version is the strictly increasing per-circle ledger position.
	// Zero until the change has been acknowledged by the server.
	Version int64 `json:"version,omitempty"`
}
