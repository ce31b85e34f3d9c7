package gormdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	domain "university-user-service/internal/domain/user"
	pkgerrors "university-user-service/pkg/errors"
	"university-user-service/pkg/idx"
	"university-user-service/pkg/logger"
	"university-user-service/pkg/security"
)

const pgUniqueViolation = "23505"

var (
	errUserNotFound = pkgerrors.NewNotFoundError("user", "user not found")
	errEmailTaken   = pkgerrors.NewAlreadyExistsError("user", "email already exists")
)

// UserRepo implements the user Repository with GORM. It runs against
// PostgreSQL in production and SQLite in development and tests.
type UserRepo struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewUserRepo creates a new instance of UserRepo.
func NewUserRepo(db *gorm.DB, log *zap.Logger) *UserRepo {
	return &UserRepo{db: db, log: log}
}

// Create inserts a new user. An empty ID is filled with a fresh ULID.
// A duplicate email is reported as an AlreadyExistsError.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) (string, error) {
	if u == nil {
		return "", errors.New("user cannot be nil")
	}
	if u.ID == "" {
		u.ID = idx.New()
	}
	if u.Role == "" {
		u.Role = domain.DefaultRole
	}

	model := fromDomain(u)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			logger.WithContext(ctx, r.log).Debug("duplicate email on insert")
			return "", errEmailTaken
		}
		logger.WithContext(ctx, r.log).Error("failed to create user in db", zap.Error(err))
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	u.CreatedAt, u.UpdatedAt = model.CreatedAt, model.UpdatedAt
	return model.ID, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errUserNotFound
		}
		logger.WithContext(ctx, r.log).Error("failed to get user from db", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return model.toDomain(), nil
}

// GetByEmail retrieves a user by normalised email, or nil when none exists.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var model UserSchema
	err := r.db.WithContext(ctx).Where("email = ?", domain.NormalizeEmail(email)).Limit(1).Find(&model).Error
	if err != nil {
		logger.WithContext(ctx, r.log).Error("failed to get user by email from db", zap.Error(err))
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	if model.ID == "" {
		return nil, nil
	}
	return model.toDomain(), nil
}

// Update writes the non-empty fields of u.
func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("user cannot be nil")
	}

	changes := map[string]any{"updated_at": time.Now().UTC()}
	if u.Name != "" {
		changes["name"] = u.Name
	}
	if u.Email != "" {
		changes["email"] = domain.NormalizeEmail(u.Email)
	}
	if u.PasswordHash != "" {
		changes["password_hash"] = u.PasswordHash
	}
	if u.Role != "" {
		changes["role"] = u.Role.String()
	}
	if u.Avatar != "" {
		changes["avatar"] = u.Avatar
	}

	res := r.db.WithContext(ctx).Model(&UserSchema{}).Where("id = ?", u.ID).Updates(changes)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return errEmailTaken
		}
		logger.WithContext(ctx, r.log).Error("failed to update user in db", zap.String("id", u.ID), zap.Error(res.Error))
		return fmt.Errorf("failed to update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errUserNotFound
	}
	return nil
}

// Delete removes a user by ID.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&UserSchema{})
	if res.Error != nil {
		logger.WithContext(ctx, r.log).Error("failed to delete user in db", zap.String("id", id), zap.Error(res.Error))
		return fmt.Errorf("failed to delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errUserNotFound
	}
	return nil
}

// List returns one page of users ordered by creation, filtered by a
// case-insensitive substring match on name or email, plus the total number
// of matches. query must already be normalised; LIKE wildcards in it match
// literally.
func (r *UserRepo) List(ctx context.Context, query string, page, limit int64) ([]domain.User, int64, error) {
	filtered := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&UserSchema{}).Scopes(search(query))
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		logger.WithContext(ctx, r.log).Error("failed to count users", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	var models []UserSchema
	err := filtered().Order("id ASC").
		Offset(int(domain.Offset(page, limit))).
		Limit(int(limit)).
		Find(&models).Error
	if err != nil {
		logger.WithContext(ctx, r.log).Error("failed to list users from db",
			zap.String("query", query), zap.Int64("page", page), zap.Int64("limit", limit), zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]domain.User, len(models))
	for i := range models {
		users[i] = *models[i].toDomain()
	}
	return users, total, nil
}

func search(query string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if query == "" {
			return db
		}
		pattern := "%" + strings.ToLower(security.EscapeLike(query)) + "%"
		return db.Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\'`, pattern, pattern)
	}
}

// isUniqueViolation recognises duplicate-key errors from either driver.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
