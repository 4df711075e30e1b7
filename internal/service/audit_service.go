package service

import (
	"context"
	"time"

	"github.com/dom/product-console/internal/domain"
	"github.com/dom/product-console/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultAuditPageSize = 20
	MaxAuditPageSize     = 100
	auditStatsDays       = 30
)

type AuditService struct {
	repo repository.AuditRepository
	lg   *zap.SugaredLogger
}

func NewAuditService(repo repository.AuditRepository, lg *zap.SugaredLogger) *AuditService {
	return &AuditService{repo: repo, lg: lg}
}

type AuditQuery struct {
	Page       int
	Limit      int
	UserID     *uuid.UUID
	Action     domain.AuditAction
	EntityType domain.EntityType
	DateFrom   *time.Time
	DateTo     *time.Time
}

type Pagination struct {
	CurrentPage     int   `json:"currentPage"`
	TotalPages      int   `json:"totalPages"`
	TotalItems      int64 `json:"totalItems"`
	ItemsPerPage    int   `json:"itemsPerPage"`
	HasNextPage     bool  `json:"hasNextPage"`
	HasPreviousPage bool  `json:"hasPreviousPage"`
}

type AuditPage struct {
	Entries    []*domain.AuditEntry
	Pagination Pagination
}

// NormalizePage clamps page to >= 1 and limit to 1..MaxAuditPageSize, using the
// default page size when limit is unset.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultAuditPageSize
	}
	if limit > MaxAuditPageSize {
		limit = MaxAuditPageSize
	}
	return page, limit
}

func (s *AuditService) List(ctx context.Context, q AuditQuery) (*AuditPage, error) {
	page, limit := NormalizePage(q.Page, q.Limit)
	entries, total, err := s.repo.List(ctx, domain.AuditFilter{
		ActorID:    q.UserID,
		Action:     q.Action,
		EntityType: q.EntityType,
		From:       q.DateFrom,
		To:         q.DateTo,
		Limit:      limit,
		Offset:     (page - 1) * limit,
	})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*domain.AuditEntry{}
	}
	return &AuditPage{Entries: entries, Pagination: paginate(page, limit, total)}, nil
}

func (s *AuditService) ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) (*AuditPage, error) {
	return s.List(ctx, AuditQuery{Page: page, Limit: limit, UserID: &userID})
}

func (s *AuditService) Get(ctx context.Context, id uuid.UUID) (*domain.AuditEntry, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *AuditService) Stats(ctx context.Context) (*domain.AuditStats, error) {
	return s.repo.Stats(ctx, auditStatsDays)
}

func paginate(page, limit int, total int64) Pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		CurrentPage:     page,
		TotalPages:      totalPages,
		TotalItems:      total,
		ItemsPerPage:    limit,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}
