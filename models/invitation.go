package models

import "time"

// Invitation is a single-use token that grants circle membership when
// accepted. Once consumed (or expired) the token is terminally invalid.
type Invitation struct {
	Token     string     `json:"token"`
	CircleID  string     `json:"circle_id"`
	Email     string     `json:"email,omitempty"`
	Role      MemberRole `json:"role"`
	Consumed  bool       `json:"consumed"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Expired reports whether the invitation's deadline has passed. Invitations
// without a deadline never expire.
func (i Invitation) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !i.ExpiresAt.After(now)
}

// AcceptInvitationRequest is the body of POST /api/invitations/{token}/accept.
// Password is only required when the invitee has no account yet and one must
// be bootstrapped as part of the join.
type AcceptInvitationRequest struct {
	Password string `json:"password,omitempty"`
}

// AcceptInvitationResponse is returned on a successful join: a bearer token
// for the new session, the resolved user and the joined circle.
type AcceptInvitationResponse struct {
	Token  string     `json:"token"`
	User   User       `json:"user"`
	Circle CareCircle `json:"circle"`
}
