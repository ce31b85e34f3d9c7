package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	domain "university-user-service/internal/domain/user"
	"university-user-service/internal/usecase/user"
	pkgerrors "university-user-service/pkg/errors"
	"university-user-service/pkg/idx"
	"university-user-service/pkg/logger"
	"university-user-service/pkg/security"
	"university-user-service/pkg/token"
)

// ErrInvalidCredentials is returned for both an unknown email and a wrong
// password.
var ErrInvalidCredentials = pkgerrors.NewUnauthorizedError("invalid credentials")

var (
	errEmailTaken      = pkgerrors.NewAlreadyExistsError("user", "email already exists")
	errPasswordTooLong = pkgerrors.NewValidationError("password", "must be at most 72 bytes")
)

// Service implements Usecase.
type Service struct {
	users    UserStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	revoker  Revoker
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

// New creates the credential service. revoker may be nil, in which case
// logout has no server-side effect.
func New(users UserStore, hasher PasswordHasher, tokens TokenIssuer, revoker Revoker, log *zap.Logger) *Service {
	return &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		revoker:  revoker,
		log:      log,
		validate: user.NewValidator(),
		now:      time.Now,
	}
}

// Register creates an account and signs the first token for it.
func (s *Service) Register(ctx context.Context, in RegisterRequest) (*Result, error) {
	log := logger.WithContext(ctx, s.log)

	in.Name = strings.TrimSpace(in.Name)
	in.Email = domain.NormalizeEmail(in.Email)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	in.Avatar = strings.TrimSpace(in.Avatar)

	if err := s.validate.Struct(in); err != nil {
		log.Warn("register validation failed", zap.Error(err))
		return nil, user.FormatValidationError(err)
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		log.Error("failed to check existing email", zap.Error(err))
		return nil, pkgerrors.NewInternalError("failed to validate email uniqueness", err)
	}
	if existing != nil {
		log.Warn("email already exists", zap.String("existing_id", existing.ID))
		return nil, errEmailTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if errors.Is(err, security.ErrPasswordTooLong) {
		return nil, errPasswordTooLong
	}
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to hash password", err)
	}

	role, _ := domain.ParseRole(in.Role)
	now := s.now().UTC()
	u := &domain.User{
		ID:           idx.NewAt(now),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		Avatar:       in.Avatar,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The unique index still decides concurrent registrations of one address.
	if _, err := s.users.Create(ctx, u); err != nil {
		if pkgerrors.KindOf(err) == pkgerrors.KindConflict {
			return nil, errEmailTaken
		}
		log.Error("failed to create user", zap.Error(err))
		return nil, pkgerrors.NewInternalError("failed to create user", err)
	}

	res, err := s.issue(u)
	if err != nil {
		return nil, err
	}

	log.Info("user registered", zap.String("id", u.ID), zap.String("role", role.String()))
	return res, nil
}

// Login verifies credentials and signs a fresh token.
func (s *Service) Login(ctx context.Context, in LoginRequest) (*Result, error) {
	log := logger.WithContext(ctx, s.log)

	in.Email = domain.NormalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, user.FormatValidationError(err)
	}

	u, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		log.Error("failed to look up user", zap.Error(err))
		return nil, pkgerrors.NewInternalError("failed to look up user", err)
	}

	if u == nil {
		s.hasher.CompareDummy(in.Password)
		log.Info("login failed")
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Compare(u.PasswordHash, in.Password) {
		log.Info("login failed", zap.String("id", u.ID))
		return nil, ErrInvalidCredentials
	}

	res, err := s.issue(u)
	if err != nil {
		return nil, err
	}

	log.Info("user logged in", zap.String("id", u.ID))
	return res, nil
}

// Logout revokes the presented token until its natural expiry.
func (s *Service) Logout(ctx context.Context, claims *token.Claims) error {
	log := logger.WithContext(ctx, s.log)

	if claims == nil {
		return pkgerrors.NewUnauthorizedError("no token")
	}
	if s.revoker == nil {
		log.Info("logout without revocation store; token stays valid until expiry", zap.String("jti", claims.TokenID()))
		return nil
	}

	if err := s.revoker.Revoke(ctx, claims.TokenID(), claims.ExpiresAtTime()); err != nil {
		log.Error("failed to revoke token", zap.String("jti", claims.TokenID()), zap.Error(err))
		return pkgerrors.NewInternalError("failed to revoke token", err)
	}

	log.Info("token revoked", zap.String("jti", claims.TokenID()))
	return nil
}

func (s *Service) issue(u *domain.User) (*Result, error) {
	raw, claims, err := s.tokens.Issue(u.ID, u.Email, u.Role.String())
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to issue token", err)
	}

	return &Result{
		Token:     raw,
		ExpiresAt: claims.ExpiresAtTime(),
		User:      user.FromDomain(u),
	}, nil
}
