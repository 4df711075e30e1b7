package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dom/product-console/internal/domain"
	"github.com/dom/product-console/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ProductService struct {
	repos *repository.Repositories
	audit *auditRecorder
	lg    *zap.SugaredLogger
}

func NewProductService(repos *repository.Repositories, audit *auditRecorder, lg *zap.SugaredLogger) *ProductService {
	return &ProductService{repos: repos, audit: audit, lg: lg}
}

type CreateProductInput struct {
	Name        string
	Description string
	Price       float64
	Image       *string
}

func (s *ProductService) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	return s.repos.Product.List(ctx, filter)
}

func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.repos.Product.GetByID(ctx, id)
}

// Create stores the product and its CREATE audit entry atomically.
func (s *ProductService) Create(ctx context.Context, actor domain.Identity, input CreateProductInput) (*domain.Product, error) {
	now := time.Now().UTC()
	product := &domain.Product{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Image:       input.Image,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var entry *domain.AuditEntry
	err := s.repos.Tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Product.Create(ctx, product); err != nil {
			return err
		}
		entry = s.audit.entry(ctx, actor, domain.ActionCreate, domain.EntityProduct, &product.ID, "Created product: "+product.Name)
		return s.audit.append(ctx, tx, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.audit.publish(entry)
	return product, nil
}

func (s *ProductService) Update(ctx context.Context, actor domain.Identity, id uuid.UUID, changes domain.ProductChanges) (*domain.Product, error) {
	var (
		product *domain.Product
		entry   *domain.AuditEntry
	)
	err := s.repos.Tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		existing, err := tx.Product.GetByID(ctx, id)
		if err != nil {
			return err
		}
		changes.Apply(existing)
		existing.UpdatedAt = time.Now().UTC()
		if err := tx.Product.Update(ctx, existing); err != nil {
			return err
		}
		product = existing
		entry = s.audit.entry(ctx, actor, domain.ActionUpdate, domain.EntityProduct, &existing.ID, "Updated product: "+existing.Name)
		return s.audit.append(ctx, tx, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	s.audit.publish(entry)
	return product, nil
}

func (s *ProductService) Delete(ctx context.Context, actor domain.Identity, id uuid.UUID) error {
	var entry *domain.AuditEntry
	err := s.repos.Tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		existing, err := tx.Product.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Product.Delete(ctx, id); err != nil {
			return err
		}
		entry = s.audit.entry(ctx, actor, domain.ActionDelete, domain.EntityProduct, &existing.ID, "Deleted product: "+existing.Name)
		return s.audit.append(ctx, tx, entry)
	})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.audit.publish(entry)
	return nil
}
