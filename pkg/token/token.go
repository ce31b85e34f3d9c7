// Package token issues and verifies the signed access tokens handed out on
// login and registration. Tokens are HS256 JWTs; verification is stateless
// and needs only the shared secret and the current time.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"university-user-service/pkg/idx"
)

// DefaultTTL is the access token lifetime when none is configured.
const DefaultTTL = 7 * 24 * time.Hour

// MinSecretLength is the shortest HMAC secret accepted.
const MinSecretLength = 32

var (
	// ErrInvalidToken is returned for any verification failure: bad
	// signature, tampered payload, wrong algorithm, expiry or malformed input.
	ErrInvalidToken = errors.New("invalid or expired token")

	ErrWeakSecret = fmt.Errorf("token secret must be at least %d bytes", MinSecretLength)
)

// Claims is the token payload. The registered "jti" claim identifies the
// token for revocation.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenID returns the jti claim.
func (c *Claims) TokenID() string {
	return c.RegisteredClaims.ID
}

// ExpiresAtTime returns the expiry, or the zero time when absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Config configures a Manager.
type Config struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// Manager signs and verifies access tokens.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager validates cfg and builds a Manager.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if ttl < 0 {
		return nil, errors.New("token ttl must be positive")
	}

	m := &Manager{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns the configured token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a new token for the given identity.
func (m *Manager) Issue(userID, email, role string) (string, *Claims, error) {
	now := m.now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        idx.NewAt(now),
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature, algorithm, issuer and expiry and returns the
// decoded claims. Every failure wraps ErrInvalidToken.
func (m *Manager) Verify(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tok.Valid || claims.UserID == "" || claims.TokenID() == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
