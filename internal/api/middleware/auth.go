package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dom/product-console/internal/auth"
	"github.com/dom/product-console/internal/domain"
	"go.uber.org/zap"
)

type contextKey string

const (
	IdentityKey contextKey = "identity"
)

// TokenVerifier is satisfied by *auth.TokenIssuer.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Auth rejects requests without a valid bearer token and attaches the caller's
// Identity to the request context. Expired and malformed tokens get the same
// response.
func Auth(verifier TokenVerifier, lg *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				lg.Warnw("auth: missing bearer token", "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, "Access token required")
				return
			}

			identity, err := IdentityFromToken(verifier, token)
			if err != nil {
				lg.Warnw("auth: token rejected", "path", r.URL.Path, "error", err)
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			noteUser(r.Context(), identity.UserID.String())
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireRole admits only callers whose role equals role. It must run after Auth.
func RequireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := GetIdentity(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !identity.HasRole(role) {
				writeError(w, http.StatusForbidden, fmt.Sprintf(
					"Insufficient permissions: requires role '%s', current role '%s'", role, identity.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFromToken verifies token and converts its claims to an Identity.
func IdentityFromToken(verifier TokenVerifier, token string) (domain.Identity, error) {
	claims, err := verifier.Verify(token)
	if err != nil {
		return domain.Identity{}, err
	}
	userID, err := claims.SubjectID()
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: bad subject", domain.ErrTokenInvalid)
	}
	return domain.Identity{UserID: userID, Email: claims.Email, Role: claims.Role}, nil
}

func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

func GetIdentity(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(domain.Identity)
	return identity, ok
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
