package domain

import (
	"strings"
	"time"
)

// Company is the tenant boundary. Roles and user memberships are scoped to it.
type Company struct {
	ID        string
	Name      string
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasName reports whether the company is already called name, ignoring case.
func (c Company) HasName(name string) bool {
	return strings.EqualFold(strings.TrimSpace(c.Name), strings.TrimSpace(name))
}
