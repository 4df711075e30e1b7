package service

import (
	"github.com/dom/product-console/internal/auth"
	"github.com/dom/product-console/internal/config"
	"github.com/dom/product-console/internal/repository"
	"go.uber.org/zap"
)

type Services struct {
	Auth    *AuthService
	Product *ProductService
	Audit   *AuditService
	Tokens  *auth.TokenIssuer
}

// NewServices wires the services. publisher may be nil when nothing listens for
// new audit entries.
func NewServices(repos *repository.Repositories, cfg *config.Config, publisher AuditPublisher, lg *zap.SugaredLogger) *Services {
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL())
	hasher := auth.NewHasher(cfg.BcryptCost)
	recorder := newAuditRecorder(publisher, lg)

	return &Services{
		Auth:    NewAuthService(repos, hasher, tokens, recorder, lg),
		Product: NewProductService(repos, recorder, lg),
		Audit:   NewAuditService(repos.Audit, lg),
		Tokens:  tokens,
	}
}
