package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dom/product-console/internal/domain"
	"github.com/dom/product-console/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// AuditPublisher receives entries after they are durably recorded.
type AuditPublisher interface {
	Publish(entry *domain.AuditEntry)
}

type requestMetaKey struct{}

// RequestMeta is request context copied into audit entry metadata.
type RequestMeta struct {
	RequestID string `json:"requestId,omitempty"`
	ClientIP  string `json:"clientIp,omitempty"`
}

func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func requestMetaFrom(ctx context.Context) (RequestMeta, bool) {
	meta, ok := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta, ok
}

type auditRecorder struct {
	publisher AuditPublisher
	lg        *zap.SugaredLogger
	now       func() time.Time
}

func newAuditRecorder(publisher AuditPublisher, lg *zap.SugaredLogger) *auditRecorder {
	return &auditRecorder{publisher: publisher, lg: lg, now: time.Now}
}

func (r *auditRecorder) entry(ctx context.Context, actor domain.Identity, action domain.AuditAction, entityType domain.EntityType, entityID *uuid.UUID, details string) *domain.AuditEntry {
	e := &domain.AuditEntry{
		ID:         uuid.New(),
		ActorID:    actor.UserID,
		ActorEmail: actor.Email,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Timestamp:  r.now().UTC(),
	}
	if details != "" {
		e.Details = &details
	}
	if meta, ok := requestMetaFrom(ctx); ok {
		if b, err := json.Marshal(meta); err == nil {
			e.Metadata = datatypes.JSON(b)
		}
	}
	return e
}

// append writes the entry through repos, which may be bound to a transaction.
// Publishing happens separately, once the surrounding transaction has committed.
func (r *auditRecorder) append(ctx context.Context, repos *repository.Repositories, e *domain.AuditEntry) error {
	return repos.Audit.Create(ctx, e)
}

func (r *auditRecorder) publish(e *domain.AuditEntry) {
	if r.publisher != nil {
		r.publisher.Publish(e)
	}
}

// record appends outside any transaction. Failures are logged and swallowed.
func (r *auditRecorder) record(ctx context.Context, repos *repository.Repositories, e *domain.AuditEntry) {
	if err := r.append(ctx, repos, e); err != nil {
		r.lg.Errorw("audit: failed to record entry", "action", e.Action, "entityType", e.EntityType, "actorId", e.ActorID, "error", err)
		return
	}
	r.publish(e)
}
