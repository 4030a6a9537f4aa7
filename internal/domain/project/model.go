package project

import (
	"regexp"
	"time"
)

// NameMax bounds the project name length.
const NameMax = 100

// DescriptionMax bounds the project description length.
const DescriptionMax = 1000

// Palette holds the colors assigned to projects created without one.
var Palette = []string{
	"#4f46e5", "#0891b2", "#059669", "#d97706",
	"#dc2626", "#7c3aed", "#db2777", "#475569",
}

// ColorPattern matches a six-digit hex color.
var ColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Project groups tasks under a single owner with an explicit member set.
// The owner is implicitly a member for authorization purposes but never
// appears in Members.
type Project struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color"`
	IsPersonal  bool      `json:"is_personal"`
	Members     []string  `json:"members,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
