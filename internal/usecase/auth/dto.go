package auth

import (
	"time"

	"university-user-service/internal/usecase/user"
)

// RegisterRequest is the payload for creating an account.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72,maxbytes=72"`
	Role     string `json:"role" validate:"omitempty,oneof=admin manager user"`
	Avatar   string `json:"avatar" validate:"omitempty,max=255"`
}

// LoginRequest is the payload for exchanging credentials for a token.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Result is returned by Register and Login.
type Result struct {
	Token     string
	ExpiresAt time.Time
	User      user.User
}
