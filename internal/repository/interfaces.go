package repository

import (
	"context"

	"github.com/dom/product-console/internal/domain"
	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error)
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AuditRepository is append-only: entries can be created and read, never changed.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AuditEntry, error)
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, int64, error)
	Stats(ctx context.Context, days int) (*domain.AuditStats, error)
}

// Transactor runs fn against repositories bound to one database transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(repos *Repositories) error) error
}

type Repositories struct {
	User    UserRepository
	Product ProductRepository
	Audit   AuditRepository
	Tx      Transactor
}
