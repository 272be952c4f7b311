package domain

import (
	"strings"
	"time"
)

// Role is a named bundle of permissions owned by a company.
// A nil CompanyID marks a global role visible to every company.
type Role struct {
	ID        string
	Name      string
	CompanyID *string
	IsSystem  bool
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsGlobal reports whether the role is tenant-less.
func (r Role) IsGlobal() bool {
	return r.CompanyID == nil
}

// OwnedBy reports whether the role belongs to the given company.
func (r Role) OwnedBy(companyID string) bool {
	return r.CompanyID != nil && *r.CompanyID == companyID
}

// UsableIn reports whether members of companyID may hold the role.
func (r Role) UsableIn(companyID string) bool {
	return r.IsGlobal() || r.OwnedBy(companyID)
}

// HasName reports whether the role is already called name, ignoring case.
func (r Role) HasName(name string) bool {
	return strings.EqualFold(strings.TrimSpace(r.Name), strings.TrimSpace(name))
}

// Permission is a grantable capability identified by a stable key.
type Permission struct {
	ID          string
	Key         string
	Description *string
}

// RolePermission links a role with a permission.
type RolePermission struct {
	RoleID       string
	PermissionID string
}

// UserRole assigns a role to a user inside a company.
type UserRole struct {
	UserID     string
	CompanyID  string
	RoleID     string
	AssignedAt time.Time
}
