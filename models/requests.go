package models

import "encoding/json"

// PushRequest is the body of POST /api/circles/{circleID}/sync: the sending
// device's entire pending queue as one batch, in enqueue order.
type PushRequest struct {
	Changes  []SyncChange `json:"changes"`
	DeviceID string       `json:"device_id"`
}

// PushResponse acknowledges a batch push. Synced counts the changes accepted
// into the ledger by this call; retried duplicates are not counted twice.
// Conflicts is always empty — divergent-write detection is a known gap and
// conflict semantics are last-write-wins by ledger order.
type PushResponse struct {
	Synced    int          `json:"synced"`
	Conflicts []SyncChange `json:"conflicts"`
}

// CircleSnapshot is the full materialized view of every synced record type
// for a circle. Record payloads are opaque to the sync engine.
type CircleSnapshot struct {
	Medications  []json.RawMessage `json:"medications"`
	Doctors      []json.RawMessage `json:"doctors"`
	Appointments []json.RawMessage `json:"appointments"`
	Contacts     []json.RawMessage `json:"contacts"`
	Notes        []json.RawMessage `json:"notes"`
	Accounts     []json.RawMessage `json:"accounts"`
}

// Add places a record payload into the bucket for its entity type. Types the
// engine does not recognize are dropped — the snapshot only reports the
// record families the API contract names.
func (s *CircleSnapshot) Add(entityType string, data json.RawMessage) {
	switch entityType {
	case "medication":
		s.Medications = append(s.Medications, data)
	case "doctor":
		s.Doctors = append(s.Doctors, data)
	case "appointment":
		s.Appointments = append(s.Appointments, data)
	case "contact":
		s.Contacts = append(s.Contacts, data)
	case "note":
		s.Notes = append(s.Notes, data)
	case "account":
		s.Accounts = append(s.Accounts, data)
	}
}

// PullResponse is returned by GET /api/circles/{circleID}/sync.
//
// When the request carried no `since` watermark, Snapshot holds the full
// materialized state and Changes is empty. With a watermark, Changes holds
// the ledger entries newer than it. Watermark is the highest ledger version
// the caller should record either way.
type PullResponse struct {
	Snapshot  *CircleSnapshot `json:"snapshot,omitempty"`
	Changes   []SyncChange    `json:"changes,omitempty"`
	Watermark int64           `json:"watermark"`
}
