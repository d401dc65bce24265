package models

import "time"

// User represents an account entity used for authentication and authorization.
// The sync engine only needs identity; profile data lives elsewhere.
type User struct {
	// UserID is the internal unique identifier of the user.
	UserID int64 `json:"id"`

	// Email is the unique login identifier, typically the address the
	// invitation was sent to.
	Email string `json:"email"`

	// Name is the display name of the user. Non-sensitive.
	Name string `json:"name,omitempty"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// Never exposed via JSON and never plaintext.
	PasswordHash string `json:"-"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the name of the database table
// associated with the User model.
func (u User) TableName() string {
	return "users"
}
