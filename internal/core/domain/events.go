package domain

import "time"

// RolePermissionsChangedEvent is emitted after a role's permission links change.
type RolePermissionsChangedEvent struct {
	EventID        string
	CompanyID      string
	RoleID         string
	PermissionKeys []string
	Added          []string
	Removed        []string
	ChangedBy      string
	ChangedAt      time.Time
}

// RoleDeletedEvent is emitted after a role is retired.
type RoleDeletedEvent struct {
	EventID   string
	CompanyID string
	RoleID    string
	DeletedBy string
	DeletedAt time.Time
}

// MembershipChangedEvent is emitted when a user gains or loses a role.
type MembershipChangedEvent struct {
	EventID   string
	CompanyID string
	UserID    string
	RoleID    string
	Assigned  bool
	ChangedBy string
	ChangedAt time.Time
}

// RefreshTokenRotatedEvent is emitted after a refresh token is exchanged.
type RefreshTokenRotatedEvent struct {
	EventID   string
	UserID    string
	OldJTI    string
	NewJTI    string
	RotatedAt time.Time
}
