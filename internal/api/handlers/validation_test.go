package handlers_test

import (
	"testing"

	"github.com/dom/product-console/internal/api/handlers"
	"github.com/stretchr/testify/assert"
)

func TestValidateStruct_Register(t *testing.T) {
	base := handlers.RegisterRequest{
		Email:     "a@example.com",
		Password:  "Passw0rd",
		FirstName: "Al",
		LastName:  "Bo",
	}

	tests := []struct {
		name      string
		mutate    func(r *handlers.RegisterRequest)
		wantField string
		wantMsg   string
	}{
		{name: "valid", mutate: func(r *handlers.RegisterRequest) {}},
		{name: "valid with role", mutate: func(r *handlers.RegisterRequest) { r.Role = "admin" }},
		{
			name:      "bad email",
			mutate:    func(r *handlers.RegisterRequest) { r.Email = "a@" },
			wantField: "email",
			wantMsg:   "Please provide a valid email",
		},
		{
			name:      "password too short",
			mutate:    func(r *handlers.RegisterRequest) { r.Password = "Ab1" },
			wantField: "password",
			wantMsg:   "Password must be at least 6 characters long",
		},
		{
			name:      "password without uppercase",
			mutate:    func(r *handlers.RegisterRequest) { r.Password = "password1" },
			wantField: "password",
			wantMsg:   "Password must contain at least one lowercase letter, one uppercase letter, and one number",
		},
		{
			name:      "password without digit",
			mutate:    func(r *handlers.RegisterRequest) { r.Password = "Password" },
			wantField: "password",
			wantMsg:   "Password must contain at least one lowercase letter, one uppercase letter, and one number",
		},
		{
			name:      "first name too long",
			mutate:    func(r *handlers.RegisterRequest) { r.FirstName = string(make([]byte, 51)) },
			wantField: "firstName",
			wantMsg:   "First name must be between 2 and 50 characters",
		},
		{
			name:      "unknown role",
			mutate:    func(r *handlers.RegisterRequest) { r.Role = "root" },
			wantField: "role",
			wantMsg:   "Role must be one of: admin, user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)

			details := handlers.ValidateStruct(req)
			if tt.wantField == "" {
				assert.Nil(t, details)
				return
			}
			if assert.Len(t, details, 1) {
				assert.Equal(t, tt.wantField, details[0].Field)
				assert.Equal(t, tt.wantMsg, details[0].Message)
			}
		})
	}
}

func TestValidateStruct_Login(t *testing.T) {
	details := handlers.ValidateStruct(handlers.LoginRequest{Email: "a@example.com"})
	if assert.Len(t, details, 1) {
		assert.Equal(t, "password", details[0].Field)
		assert.Equal(t, "Password is required", details[0].Message)
	}
}
