package user

import "time"

// User is a principal that can own projects and be assigned tasks.
type User struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Email     string            `json:"email,omitempty"`
	DiscordID string            `json:"discord_id,omitempty"`
	IsAdmin   bool              `json:"is_admin"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
