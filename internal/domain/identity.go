package domain

import "github.com/google/uuid"

// Identity is the authenticated caller decoded from a bearer token.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Role   Role
}

func (i Identity) HasRole(role Role) bool {
	return i.Role == role
}
