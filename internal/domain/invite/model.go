package invite

import "time"

// Invitation is a single-use code minted by an admin that lets a new user
// register, optionally bound to an email address.
type Invitation struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Email       string    `json:"email,omitempty"`
	CreatedByID string    `json:"created_by_id"`
	UsedByID    string    `json:"used_by_id,omitempty"`
	UsedAt      time.Time `json:"used_at,omitempty"`
	Revoked     bool      `json:"revoked"`
	CreatedAt   time.Time `json:"created_at"`
}

// Usable reports whether the invitation can still be accepted.
func (i Invitation) Usable() bool {
	return !i.Revoked && i.UsedByID == ""
}
