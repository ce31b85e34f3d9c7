package auth

import (
	"context"
	"time"

	domain "university-user-service/internal/domain/user"
	"university-user-service/pkg/token"
)

// Usecase defines registration, login and logout.
type Usecase interface {
	Register(ctx context.Context, in RegisterRequest) (*Result, error)
	Login(ctx context.Context, in LoginRequest) (*Result, error)
	Logout(ctx context.Context, claims *token.Claims) error
}

// UserStore is the slice of the user repository the credential flow needs.
type UserStore interface {
	Create(ctx context.Context, u *domain.User) (string, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
	CompareDummy(password string)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(userID, email, role string) (string, *token.Claims, error)
}

// Revoker records logged-out token IDs until they expire.
type Revoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
}
