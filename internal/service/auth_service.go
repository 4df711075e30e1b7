package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dom/product-console/internal/auth"
	"github.com/dom/product-console/internal/domain"
	"github.com/dom/product-console/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuthService struct {
	repos  *repository.Repositories
	hasher *auth.Hasher
	tokens *auth.TokenIssuer
	audit  *auditRecorder
	lg     *zap.SugaredLogger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(repos *repository.Repositories, hasher *auth.Hasher, tokens *auth.TokenIssuer, audit *auditRecorder, lg *zap.SugaredLogger) *AuthService {
	return &AuthService{
		repos:  repos,
		hasher: hasher,
		tokens: tokens,
		audit:  audit,
		lg:     lg,
	}
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      domain.Role
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	User      domain.PublicUser
	Token     string
	ExpiresAt time.Time
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	role := input.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("register: unknown role %q", role)
	}

	exists, err := s.repos.User.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("register: check email: %w", err)
	}
	if exists {
		return nil, domain.ErrDuplicateAccount
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        input.Email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var (
		token string
		entry *domain.AuditEntry
	)
	err = s.repos.Tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.User.Create(ctx, user); err != nil {
			return err
		}
		entry = s.audit.entry(ctx, identityOf(user), domain.ActionRegister, domain.EntityUser, &user.ID, "User registered successfully")
		if err := s.audit.append(ctx, tx, entry); err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		signed, err := s.tokens.Issue(user.ID, user.Email, user.Role)
		if err != nil {
			return err
		}
		token = signed
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateAccount) {
			return nil, err
		}
		return nil, fmt.Errorf("register: %w", err)
	}
	s.audit.publish(entry)

	s.lg.Infow("user registered", "userId", user.ID, "role", user.Role)
	return &AuthResult{User: user.Public(), Token: token, ExpiresAt: now.Add(s.tokens.TTL())}, nil
}

// VerifyCredentials checks an email and plaintext password against the stored
// hash. Unknown emails and wrong passwords fail identically with
// domain.ErrInvalidCredentials.
func (s *AuthService) VerifyCredentials(ctx context.Context, email, password string) (domain.PublicUser, error) {
	user, err := s.repos.User.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Burn a comparison so unknown emails cost the same as wrong passwords.
			_ = s.hasher.Compare(s.dummy(), password)
			return domain.PublicUser{}, domain.ErrInvalidCredentials
		}
		return domain.PublicUser{}, fmt.Errorf("verify credentials: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return domain.PublicUser{}, domain.ErrInvalidCredentials
	}
	return user.Public(), nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	user, err := s.VerifyCredentials(ctx, input.Email, input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	token, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	actor := domain.Identity{UserID: user.ID, Email: user.Email, Role: user.Role}
	s.audit.record(ctx, s.repos, s.audit.entry(ctx, actor, domain.ActionLogin, domain.EntityUser, &user.ID, "User logged in successfully"))

	return &AuthResult{User: user, Token: token, ExpiresAt: now.Add(s.tokens.TTL())}, nil
}

func (s *AuthService) ValidateToken(token string) (*auth.Claims, error) {
	return s.tokens.Verify(token)
}

func (s *AuthService) GetUserByID(ctx context.Context, id uuid.UUID) (domain.PublicUser, error) {
	user, err := s.repos.User.GetByID(ctx, id)
	if err != nil {
		return domain.PublicUser{}, err
	}
	return user.Public(), nil
}

// EnsureDefaultAdmin creates the administrator account when no user holds the
// email yet. It reports whether an account was created.
func (s *AuthService) EnsureDefaultAdmin(ctx context.Context, email, password string) (bool, error) {
	exists, err := s.repos.User.ExistsByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}
	if exists {
		return false, nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("seed admin: hash password: %w", err)
	}
	now := time.Now().UTC()
	admin := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Admin",
		LastName:     "User",
		Role:         domain.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repos.User.Create(ctx, admin); err != nil {
		if errors.Is(err, domain.ErrDuplicateAccount) {
			return false, nil
		}
		return false, fmt.Errorf("seed admin: %w", err)
	}
	s.lg.Infow("seeded default admin", "email", email)
	return true, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(uuid.NewString())
	})
	return s.dummyHash
}

func identityOf(u *domain.User) domain.Identity {
	return domain.Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
}
