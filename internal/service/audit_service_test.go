package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/product-console/internal/domain"
	"github.com/dom/product-console/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAudit(t *testing.T, f *fixture, actor uuid.UUID, action domain.AuditAction, entity domain.EntityType, at time.Time) *domain.AuditEntry {
	t.Helper()
	e := &domain.AuditEntry{
		ID:         uuid.New(),
		ActorID:    actor,
		ActorEmail: "actor@example.com",
		Action:     action,
		EntityType: entity,
		Timestamp:  at.UTC(),
	}
	require.NoError(t, f.repos.Audit.Create(context.Background(), e))
	return e
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name                string
		page, limit         int
		wantPage, wantLimit int
	}{
		{name: "defaults", page: 0, limit: 0, wantPage: 1, wantLimit: service.DefaultAuditPageSize},
		{name: "negative page", page: -3, limit: 10, wantPage: 1, wantLimit: 10},
		{name: "limit clamped", page: 2, limit: 500, wantPage: 2, wantLimit: service.MaxAuditPageSize},
		{name: "in range", page: 4, limit: 25, wantPage: 4, wantLimit: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, limit := service.NormalizePage(tt.page, tt.limit)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}

func TestAuditService_ListPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		seedAudit(t, f, actor, domain.ActionCreate, domain.EntityProduct, base.Add(time.Duration(i)*time.Minute))
	}

	first, err := f.services.Audit.List(ctx, service.AuditQuery{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, first.Entries, 2)
	assert.Equal(t, service.Pagination{
		CurrentPage: 1, TotalPages: 3, TotalItems: 5, ItemsPerPage: 2,
		HasNextPage: true, HasPreviousPage: false,
	}, first.Pagination)
	assert.True(t, first.Entries[0].Timestamp.After(first.Entries[1].Timestamp))

	last, err := f.services.Audit.List(ctx, service.AuditQuery{Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, last.Entries, 1)
	assert.False(t, last.Pagination.HasNextPage)
	assert.True(t, last.Pagination.HasPreviousPage)

	beyond, err := f.services.Audit.List(ctx, service.AuditQuery{Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.NotNil(t, beyond.Entries)
	assert.Empty(t, beyond.Entries)
}

func TestAuditService_ListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	now := time.Now()

	seedAudit(t, f, alice, domain.ActionLogin, domain.EntityUser, now.Add(-72*time.Hour))
	seedAudit(t, f, alice, domain.ActionCreate, domain.EntityProduct, now.Add(-2*time.Hour))
	seedAudit(t, f, bob, domain.ActionCreate, domain.EntityProduct, now.Add(-time.Hour))
	seedAudit(t, f, bob, domain.ActionDelete, domain.EntityProduct, now.Add(-30*time.Minute))

	from := now.Add(-24 * time.Hour)
	to := now.Add(-90 * time.Minute)

	tests := []struct {
		name  string
		query service.AuditQuery
		want  int64
	}{
		{name: "no filter", query: service.AuditQuery{}, want: 4},
		{name: "by user", query: service.AuditQuery{UserID: &alice}, want: 2},
		{name: "by action", query: service.AuditQuery{Action: domain.ActionCreate}, want: 2},
		{name: "by entity type", query: service.AuditQuery{EntityType: domain.EntityUser}, want: 1},
		{name: "date range", query: service.AuditQuery{DateFrom: &from, DateTo: &to}, want: 1},
		{name: "combined", query: service.AuditQuery{UserID: &bob, Action: domain.ActionDelete}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.services.Audit.List(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, page.Pagination.TotalItems)
			assert.Len(t, page.Entries, int(tt.want))
		})
	}

	byUser, err := f.services.Audit.ListByUser(ctx, bob, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), byUser.Pagination.TotalItems)
}

func TestAuditService_Get(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := seedAudit(t, f, uuid.New(), domain.ActionRegister, domain.EntityUser, time.Now())

	got, err := f.services.Audit.Get(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionRegister, got.Action)

	_, err = f.services.Audit.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrAuditEntryNotFound)
}

func TestAuditService_Stats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()
	now := time.Now()

	seedAudit(t, f, actor, domain.ActionCreate, domain.EntityProduct, now)
	seedAudit(t, f, actor, domain.ActionCreate, domain.EntityProduct, now.Add(-time.Minute))
	seedAudit(t, f, actor, domain.ActionLogin, domain.EntityUser, now.Add(-48*time.Hour))
	seedAudit(t, f, actor, domain.ActionLogin, domain.EntityUser, now.AddDate(0, 0, -45))

	stats, err := f.services.Audit.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.TotalLogs)
	assert.ElementsMatch(t, []domain.CountByKey{
		{Key: "CREATE", Count: 2},
		{Key: "LOGIN", Count: 2},
	}, stats.ActionStats)
	assert.ElementsMatch(t, []domain.CountByKey{
		{Key: "PRODUCT", Count: 2},
		{Key: "USER", Count: 2},
	}, stats.EntityStats)

	var recent int64
	for _, d := range stats.DailyActivity {
		recent += d.Count
	}
	assert.Equal(t, int64(3), recent, "daily activity covers the last 30 days only")
}
