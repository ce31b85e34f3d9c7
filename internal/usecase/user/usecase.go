package user

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	domain "university-user-service/internal/domain/user"
	pkgerrors "university-user-service/pkg/errors"
	"university-user-service/pkg/idx"
	"university-user-service/pkg/logger"
	"university-user-service/pkg/security"
)

var (
	errUserNotFound = pkgerrors.NewNotFoundError("user", "user not found")
	errEmailTaken   = pkgerrors.NewAlreadyExistsError("user", "email already exists")

	errPasswordTooLong = pkgerrors.NewValidationError("password", "must be at most 72 bytes")
)

// Service implements the business logic for user management operations.
type Service struct {
	repo     Repository
	hasher   PasswordHasher
	log      *zap.Logger
	validate *validator.Validate
}

// New creates a new instance of Service.
func New(r Repository, h PasswordHasher, log *zap.Logger) *Service {
	return &Service{repo: r, hasher: h, log: log, validate: NewValidator()}
}

// GetUser retrieves a user by ID. Malformed IDs are reported as not found.
func (uc *Service) GetUser(ctx context.Context, in GetUserRequest) (*User, error) {
	id, err := idx.Parse(in.ID)
	if err != nil {
		return nil, errUserNotFound
	}

	u, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, uc.repoError(ctx, "failed to get user", err, zap.String("id", id))
	}

	out := FromDomain(u)
	return &out, nil
}

// ListUsers retrieves a paginated list of users, optionally filtered by a
// case-insensitive match on name or email.
func (uc *Service) ListUsers(ctx context.Context, in ListUsersRequest) (*ListUsersResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	query, err := security.NormalizeSearchQuery(in.Query)
	if err != nil {
		log.Warn("invalid search query", zap.String("query", in.Query), zap.Error(err))
		return nil, pkgerrors.NewValidationError("q", err.Error())
	}
	page, limit := domain.NormalizePage(in.Page, in.Limit)

	log.Debug("listing users", zap.String("query", query), zap.Int64("page", page), zap.Int64("limit", limit))

	records, total, err := uc.repo.List(ctx, query, page, limit)
	if err != nil {
		return nil, uc.repoError(ctx, "failed to list users", err)
	}

	users := make([]User, len(records))
	for i := range records {
		users[i] = FromDomain(&records[i])
	}

	return &ListUsersResponse{
		Users:      users,
		Pagination: domain.NewPagination(total, page, limit),
	}, nil
}

// UpdateUser applies a partial update. A new password is hashed before it is
// stored, and a changed email is re-checked for uniqueness.
func (uc *Service) UpdateUser(ctx context.Context, in UpdateUserRequest) (*User, error) {
	log := logger.WithContext(ctx, uc.log)

	id, err := idx.Parse(in.ID)
	if err != nil {
		return nil, errUserNotFound
	}
	in.ID = id
	in.Name = strings.TrimSpace(in.Name)
	in.Email = domain.NormalizeEmail(in.Email)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("update validation failed", zap.String("id", id), zap.Error(err))
		return nil, FormatValidationError(err)
	}

	if in.Email != "" {
		existing, err := uc.repo.GetByEmail(ctx, in.Email)
		if err != nil {
			return nil, uc.repoError(ctx, "failed to check existing email", err)
		}
		if existing != nil && existing.ID != id {
			log.Warn("email already exists", zap.String("id", id), zap.String("existing_id", existing.ID))
			return nil, errEmailTaken
		}
	}

	patch := &domain.User{
		ID:     id,
		Name:   in.Name,
		Email:  in.Email,
		Role:   domain.Role(in.Role),
		Avatar: in.Avatar,
	}
	if in.Password != "" {
		hash, err := uc.hasher.Hash(in.Password)
		if errors.Is(err, security.ErrPasswordTooLong) {
			return nil, errPasswordTooLong
		}
		if err != nil {
			return nil, pkgerrors.NewInternalError("failed to hash password", err)
		}
		patch.PasswordHash = hash
	}

	if err := uc.repo.Update(ctx, patch); err != nil {
		return nil, uc.repoError(ctx, "failed to update user", err, zap.String("id", id))
	}

	u, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, uc.repoError(ctx, "failed to reload user", err, zap.String("id", id))
	}

	log.Info("user updated", zap.String("id", id), zap.Bool("password_changed", in.Password != ""))
	out := FromDomain(u)
	return &out, nil
}

// DeleteUser removes a user record.
func (uc *Service) DeleteUser(ctx context.Context, in DeleteUserRequest) error {
	id, err := idx.Parse(in.ID)
	if err != nil {
		return errUserNotFound
	}

	if err := uc.repo.Delete(ctx, id); err != nil {
		return uc.repoError(ctx, "failed to delete user", err, zap.String("id", id))
	}

	logger.WithContext(ctx, uc.log).Info("user deleted", zap.String("id", id))
	return nil
}

// repoError passes classified repository errors through and wraps anything
// else as internal.
func (uc *Service) repoError(ctx context.Context, msg string, err error, fields ...zap.Field) error {
	var k pkgerrors.Kinder
	if errors.As(err, &k) && k.Kind() != pkgerrors.KindInternal {
		return err
	}
	logger.WithContext(ctx, uc.log).Error(msg, append(fields, zap.Error(err))...)
	return pkgerrors.NewInternalError(msg, err)
}
