package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/dom/product-console/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *auditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.AuditEntry, error) {
	var entry domain.AuditEntry
	err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAuditEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// List returns one page of entries, newest first, and the total matching count.
func (r *auditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.AuditEntry{})
	if filter.ActorID != nil {
		q = q.Where("actor_id = ?", *filter.ActorID)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.EntityType != "" {
		q = q.Where("entity_type = ?", filter.EntityType)
	}
	if filter.From != nil {
		q = q.Where("occurred_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("occurred_at <= ?", *filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []*domain.AuditEntry
	err := q.Order("occurred_at DESC").Limit(filter.Limit).Offset(filter.Offset).Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *auditRepository) Stats(ctx context.Context, days int) (*domain.AuditStats, error) {
	db := r.db.WithContext(ctx)
	stats := &domain.AuditStats{
		ActionStats:   []domain.CountByKey{},
		EntityStats:   []domain.CountByKey{},
		DailyActivity: []domain.DailyCount{},
	}

	err := db.Model(&domain.AuditEntry{}).
		Select("action AS key, COUNT(*) AS count").
		Group("action").Order("count DESC").
		Scan(&stats.ActionStats).Error
	if err != nil {
		return nil, err
	}

	err = db.Model(&domain.AuditEntry{}).
		Select("entity_type AS key, COUNT(*) AS count").
		Group("entity_type").Order("count DESC").
		Scan(&stats.EntityStats).Error
	if err != nil {
		return nil, err
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	err = db.Model(&domain.AuditEntry{}).
		Select("TO_CHAR(DATE(occurred_at), 'YYYY-MM-DD') AS date, COUNT(*) AS count").
		Where("occurred_at >= ?", since).
		Group("DATE(occurred_at)").Order("DATE(occurred_at) DESC").
		Scan(&stats.DailyActivity).Error
	if err != nil {
		return nil, err
	}

	if err := db.Model(&domain.AuditEntry{}).Count(&stats.TotalLogs).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
