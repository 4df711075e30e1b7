package domain

import "errors"

// Authentication and authorization errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateAccount   = errors.New("user already exists with this email")
	ErrTokenInvalid       = errors.New("invalid or expired token")
	ErrSessionExpired     = errors.New("session expired")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrNoSession          = errors.New("no active session")
)

// Lookup errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrAuditEntryNotFound = errors.New("audit log not found")
)
