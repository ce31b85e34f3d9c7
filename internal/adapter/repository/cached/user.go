package cached

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"university-user-service/internal/adapter/cache"
	domain "university-user-service/internal/domain/user"
	"university-user-service/internal/usecase/user"
	"university-user-service/pkg/logger"
)

// UserRepository implements user.Repository with cache-aside reads by ID.
// Records read through the cache carry no password hash.
type UserRepository struct {
	dbRepo user.Repository
	cache  cache.UserCache
	log    *zap.Logger
	group  singleflight.Group
}

// NewUserRepository wraps dbRepo with c.
func NewUserRepository(dbRepo user.Repository, c cache.UserCache, log *zap.Logger) *UserRepository {
	return &UserRepository{
		dbRepo: dbRepo,
		cache:  c,
		log:    log,
	}
}

// Create delegates to the DB repository.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (string, error) {
	return r.dbRepo.Create(ctx, u)
}

// GetByID retrieves a user by ID using the cache-aside pattern. Concurrent
// misses for one ID share a single database read.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	log := logger.WithContext(ctx, r.log)

	cachedUser, err := r.cache.Get(ctx, id)
	if err != nil {
		log.Warn("cache get error, falling back to database", zap.String("id", id), zap.Error(err))
	} else if cachedUser != nil {
		return cachedUser, nil
	}

	result, err, shared := r.group.Do("user:"+id, func() (any, error) {
		u, err := r.dbRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := r.cache.Set(ctx, u); err != nil {
			log.Warn("failed to cache user", zap.String("id", id), zap.Error(err))
		}
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug("user load shared by concurrent callers", zap.String("id", id))
	}

	// Callers may mutate the result; hand each its own copy.
	u := *result.(*domain.User)
	return &u, nil
}

// GetByEmail delegates to the DB repository; login needs the stored hash.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.dbRepo.GetByEmail(ctx, email)
}

// Update updates the user in DB and invalidates the cache.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	if err := r.dbRepo.Update(ctx, u); err != nil {
		return err
	}
	r.invalidate(ctx, u.ID)
	return nil
}

// Delete deletes the user from DB and invalidates the cache.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if err := r.dbRepo.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// List delegates to the DB repository.
func (r *UserRepository) List(ctx context.Context, query string, page, limit int64) ([]domain.User, int64, error) {
	return r.dbRepo.List(ctx, query, page, limit)
}

func (r *UserRepository) invalidate(ctx context.Context, id string) {
	if err := r.cache.Delete(ctx, id); err != nil {
		logger.WithContext(ctx, r.log).Warn("failed to invalidate cached user", zap.String("id", id), zap.Error(err))
	}
}
