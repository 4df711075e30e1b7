package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dom/product-console/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultTokenTTL = 24 * time.Hour

// Claims is the identity carried by a bearer token.
type Claims struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// SubjectID parses the sub claim.
func (c *Claims) SubjectID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

type VerifyReason string

const (
	ReasonExpired VerifyReason = "expired"
	ReasonInvalid VerifyReason = "invalid"
)

// VerifyError reports why a token was rejected. It matches domain.ErrTokenInvalid
// under errors.Is regardless of reason.
type VerifyError struct {
	Reason VerifyReason
	Err    error
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("token %s: %v", e.Reason, e.Err)
}

func (e *VerifyError) Unwrap() []error {
	return []error{domain.ErrTokenInvalid, e.Err}
}

// TokenIssuer mints and verifies HS256 bearer tokens with a server-held secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the issuer's time source.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	i.now = now
	return i
}

func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

func (i *TokenIssuer) Issue(subjectID uuid.UUID, email string, role domain.Role) (string, error) {
	now := i.now()
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &VerifyError{Reason: ReasonExpired, Err: err}
		}
		return nil, &VerifyError{Reason: ReasonInvalid, Err: err}
	}
	if !token.Valid {
		return nil, &VerifyError{Reason: ReasonInvalid, Err: errors.New("token not valid")}
	}
	if _, err := claims.SubjectID(); err != nil {
		return nil, &VerifyError{Reason: ReasonInvalid, Err: fmt.Errorf("subject: %w", err)}
	}
	if !claims.Role.Valid() {
		return nil, &VerifyError{Reason: ReasonInvalid, Err: fmt.Errorf("unknown role %q", claims.Role)}
	}
	return claims, nil
}
