package user

import (
	"time"

	domain "university-user-service/internal/domain/user"
)

// GetUserRequest identifies a single user.
type GetUserRequest struct {
	ID string
}

// DeleteUserRequest identifies the user to remove.
type DeleteUserRequest struct {
	ID string
}

// UpdateUserRequest is a partial update; empty fields are left unchanged.
type UpdateUserRequest struct {
	ID       string `validate:"required"`
	Name     string `validate:"omitempty,max=100"`
	Email    string `validate:"omitempty,email,max=255"`
	Password string `validate:"omitempty,min=6,max=72,maxbytes=72"`
	Role     string `validate:"omitempty,oneof=admin manager user"`
	Avatar   string `validate:"omitempty,max=255"`
}

// ListUsersRequest supports pagination and search over name and email.
type ListUsersRequest struct {
	Query string
	Page  int64
	Limit int64
}

// ListUsersResponse represents the response payload for user listing.
type ListUsersResponse struct {
	Users      []User
	Pagination *domain.Pagination
}

// User is the public view of a user record. It never carries the password hash.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FromDomain converts a domain record to its public view.
func FromDomain(u *domain.User) User {
	return User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role.String(),
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
