package service_test

import (
	"context"
	"testing"

	"github.com/dom/product-console/internal/domain"
	"github.com/dom/product-console/internal/service"
	"github.com/dom/product-console/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_Register(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		input    service.RegisterInput
		setup    func()
		wantErr  error
		wantRole domain.Role
	}{
		{
			name: "defaults to user role",
			input: service.RegisterInput{
				Email: "jane@example.com", Password: "Secret1", FirstName: "Jane", LastName: "Doe",
			},
			wantRole: domain.RoleUser,
		},
		{
			name: "explicit admin role",
			input: service.RegisterInput{
				Email: "boss@example.com", Password: "Secret1", FirstName: "Big", LastName: "Boss", Role: domain.RoleAdmin,
			},
			wantRole: domain.RoleAdmin,
		},
		{
			name: "duplicate email",
			input: service.RegisterInput{
				Email: "taken@example.com", Password: "Secret1", FirstName: "Tak", LastName: "En",
			},
			setup: func() {
				testutil.NewUserBuilder().WithEmail("taken@example.com").Build(t, f.db.DB)
			},
			wantErr: domain.ErrDuplicateAccount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.db.Truncate(t)
			if tt.setup != nil {
				tt.setup()
			}

			result, err := f.services.Auth.Register(ctx, tt.input)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, result)
				assert.Zero(t, testutil.CountAuditEntries(t, f.db.DB, domain.ActionRegister))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.input.Email, result.User.Email)
			assert.Equal(t, tt.wantRole, result.User.Role)
			assert.NotEmpty(t, result.Token)

			claims, err := f.services.Tokens.Verify(result.Token)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRole, claims.Role)

			assert.Equal(t, int64(1), testutil.CountAuditEntries(t, f.db.DB, domain.ActionRegister))
		})
	}
}

func TestAuthService_Register_RollsBackWhenAuditFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	broken := f.withBrokenAudit()

	_, err := broken.Auth.Register(ctx, service.RegisterInput{
		Email: "ghost@example.com", Password: "Secret1", FirstName: "Gh", LastName: "Ost",
	})
	require.ErrorIs(t, err, errAuditDown)

	exists, err := f.repos.User.ExistsByEmail(ctx, "ghost@example.com")
	require.NoError(t, err)
	assert.False(t, exists, "user must not survive a failed audit append")
	assert.Empty(t, f.publisher.Actions())
}

func TestAuthService_VerifyCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, password := testutil.NewUserBuilder().WithEmail("alice@example.com").Build(t, f.db.DB)

	t.Run("valid credentials return the public user", func(t *testing.T) {
		got, err := f.services.Auth.VerifyCredentials(ctx, "alice@example.com", password)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, user.Role, got.Role)
	})

	t.Run("unknown email and wrong password fail the same way", func(t *testing.T) {
		_, unknownErr := f.services.Auth.VerifyCredentials(ctx, "nobody@example.com", password)
		_, wrongErr := f.services.Auth.VerifyCredentials(ctx, "alice@example.com", "Wrong123")

		assert.ErrorIs(t, unknownErr, domain.ErrInvalidCredentials)
		assert.ErrorIs(t, wrongErr, domain.ErrInvalidCredentials)
		assert.Equal(t, unknownErr.Error(), wrongErr.Error())
	})
}

func TestAuthService_Login(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, password := testutil.NewUserBuilder().AsAdmin().Build(t, f.db.DB)

	result, err := f.services.Auth.Login(ctx, service.LoginInput{Email: user.Email, Password: password})
	require.NoError(t, err)

	claims, err := f.services.Auth.ValidateToken(result.Token)
	require.NoError(t, err)
	subject, err := claims.SubjectID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, subject)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	assert.True(t, result.ExpiresAt.After(result.User.CreatedAt))

	assert.Equal(t, int64(1), testutil.CountAuditEntries(t, f.db.DB, domain.ActionLogin))
	assert.Equal(t, []domain.AuditAction{domain.ActionLogin}, f.publisher.Actions())

	_, err = f.services.Auth.Login(ctx, service.LoginInput{Email: user.Email, Password: "Nope1234"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Equal(t, int64(1), testutil.CountAuditEntries(t, f.db.DB, domain.ActionLogin))
}

func TestAuthService_GetUserByID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, _ := testutil.NewUserBuilder().Build(t, f.db.DB)

	got, err := f.services.Auth.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	_, err = f.services.Auth.GetUserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAuthService_EnsureDefaultAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.services.Auth.EnsureDefaultAdmin(ctx, "root@example.com", "Root1234")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.services.Auth.EnsureDefaultAdmin(ctx, "root@example.com", "Root1234")
	require.NoError(t, err)
	assert.False(t, created)

	user, err := f.services.Auth.VerifyCredentials(ctx, "root@example.com", "Root1234")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, user.Role)
}
