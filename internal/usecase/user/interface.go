package user

import (
	"context"

	domain "university-user-service/internal/domain/user"
)

// Usecase defines the directory and profile operations on user records.
type Usecase interface {
	GetUser(ctx context.Context, in GetUserRequest) (*User, error)
	ListUsers(ctx context.Context, in ListUsersRequest) (*ListUsersResponse, error)
	UpdateUser(ctx context.Context, in UpdateUserRequest) (*User, error)
	DeleteUser(ctx context.Context, in DeleteUserRequest) error
}

// Repository defines the interface for user data access operations.
// Implementations must enforce email uniqueness and report a violation as
// an AlreadyExistsError.
type Repository interface {
	Create(ctx context.Context, u *domain.User) (string, error)
	// GetByID returns a NotFoundError when no record has the id.
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmail returns (nil, nil) when no record has the address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Update writes the non-empty fields of u. A missing record is a NotFoundError.
	Update(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, query string, page, limit int64) ([]domain.User, int64, error)
}

// PasswordHasher hashes a new password on update.
type PasswordHasher interface {
	Hash(password string) (string, error)
}
