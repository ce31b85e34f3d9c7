package gormdb

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	domain "university-user-service/internal/domain/user"
)

// UserSchema represents the database schema for the users table.
type UserSchema struct {
	ID           string `gorm:"primaryKey;size:26"`
	Name         string `gorm:"size:100;not null"`
	Email        string `gorm:"size:255;not null;uniqueIndex:idx_users_email"`
	PasswordHash string `gorm:"column:password_hash;not null"`
	Role         string `gorm:"size:16;not null;default:user"`
	Avatar       string `gorm:"size:255"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

func (m *UserSchema) toDomain() *domain.User {
	return &domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.Role(m.Role),
		Avatar:       m.Avatar,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func fromDomain(u *domain.User) UserSchema {
	return UserSchema{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role.String(),
		Avatar:       u.Avatar,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// Migrate creates or updates the tables this package owns.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&UserSchema{}); err != nil {
		return fmt.Errorf("failed to migrate users table: %w", err)
	}
	return nil
}
