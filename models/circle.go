package models

import (
	"encoding/json"
	"time"
)

// MemberRole describes what a circle member is allowed to do. Roles are
// enforced by the authorization layer; the sync engine only transports them.
type MemberRole string

const (
	RoleOwner     MemberRole = "owner"
	RoleCaregiver MemberRole = "caregiver"
	RoleViewer    MemberRole = "viewer"
)

// CareCircle is a named group of members sharing one synchronized dataset.
// Created once and long-lived; deletion is an owner action that cascades
// client-side sync state.
type CareCircle struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"display_name"`
	Settings    json.RawMessage `json:"settings,omitempty"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
}

// CircleMember is the (circle, user) membership record.
type CircleMember struct {
	CircleID string     `json:"circle_id"`
	UserID   int64      `json:"user_id"`
	Role     MemberRole `json:"role"`

	// NotificationPrefs is an opaque preferences blob owned by the
	// notification layer.
	NotificationPrefs json.RawMessage `json:"notification_prefs,omitempty"`

	JoinedAt *time.Time `json:"joined_at,omitempty"`
}
