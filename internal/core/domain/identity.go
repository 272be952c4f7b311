package domain

import "time"

// User mirrors the persisted representation in the users table.
type User struct {
	ID           string
	CompanyID    string
	Email        string
	DisplayName  string
	PasswordHash string
	Deleted      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the caller decoded from a validated access token.
// It is passed explicitly to anything that needs to know who is calling.
type Identity struct {
	UserID    string
	Email     string
	Name      string
	JTI       string
	CompanyID string
	RoleIDs   []string
	ExpiresAt time.Time
}

// HasRole reports whether the token carried roleID.
func (i *Identity) HasRole(roleID string) bool {
	if i == nil {
		return false
	}
	for _, id := range i.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}
