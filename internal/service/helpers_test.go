package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dom/product-console/internal/domain"
	"github.com/dom/product-console/internal/repository"
	"github.com/dom/product-console/internal/repository/postgres"
	"github.com/dom/product-console/internal/service"
	"github.com/dom/product-console/internal/testutil"
	"go.uber.org/zap"
)

// recordingPublisher captures entries handed to the live feed.
type recordingPublisher struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
}

func (p *recordingPublisher) Publish(entry *domain.AuditEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entry)
}

func (p *recordingPublisher) Actions() []domain.AuditAction {
	p.mu.Lock()
	defer p.mu.Unlock()
	actions := make([]domain.AuditAction, 0, len(p.entries))
	for _, e := range p.entries {
		actions = append(actions, e.Action)
	}
	return actions
}

var errAuditDown = errors.New("audit store unavailable")

// failingAudit rejects every append so tests can observe rollback.
type failingAudit struct {
	repository.AuditRepository
}

func (failingAudit) Create(context.Context, *domain.AuditEntry) error {
	return errAuditDown
}

// failingAuditTx hands transactional callers an audit repository that fails.
type failingAuditTx struct {
	inner repository.Transactor
}

func (f failingAuditTx) WithinTransaction(ctx context.Context, fn func(repos *repository.Repositories) error) error {
	return f.inner.WithinTransaction(ctx, func(repos *repository.Repositories) error {
		broken := *repos
		broken.Audit = failingAudit{repos.Audit}
		return fn(&broken)
	})
}

type fixture struct {
	db        *testutil.TestDB
	repos     *repository.Repositories
	services  *service.Services
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	publisher := &recordingPublisher{}
	return &fixture{
		db:        testDB,
		repos:     repos,
		services:  service.NewServices(repos, testutil.TestConfig(), publisher, zap.NewNop().Sugar()),
		publisher: publisher,
	}
}

// withBrokenAudit returns services whose transactional audit appends fail.
func (f *fixture) withBrokenAudit() *service.Services {
	repos := *f.repos
	repos.Tx = failingAuditTx{inner: f.repos.Tx}
	return service.NewServices(&repos, testutil.TestConfig(), f.publisher, zap.NewNop().Sugar())
}
