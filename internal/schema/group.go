package schema

import "time"

// Group is user-defined metadata for a named tag applied to servers.
// The stored name never carries the '@' display prefix.
type Group struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// NewGroup creates group metadata with creation timestamps set.
func NewGroup(name, description string) Group {
	now := time.Now().UTC().Format(time.RFC3339)

	return Group{
		Name:        StripGroupPrefix(name),
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Touch updates the modification timestamp.
func (g *Group) Touch() {
	g.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}
