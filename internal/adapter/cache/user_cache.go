package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domain "university-user-service/internal/domain/user"
)

// UserCache defines the interface for user caching operations.
type UserCache interface {
	// Get returns nil, nil on a cache miss.
	Get(ctx context.Context, id string) (*domain.User, error)
	Set(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, ids ...string) error
}

// cachedUser is the stored form of a user. It deliberately has no password
// hash field, so a cache hit never yields credentials.
type cachedUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RedisUserCache implements UserCache using Redis as the backing store.
type RedisUserCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisUserCache creates a Redis-backed user cache. Keys are
// prefix + "user:" + id.
func NewRedisUserCache(client redis.Cmdable, prefix string, ttl time.Duration, log *zap.Logger) *RedisUserCache {
	return &RedisUserCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		log:    log,
	}
}

func (c *RedisUserCache) cacheKey(id string) string {
	return c.prefix + "user:" + id
}

// Get retrieves a user from Redis cache.
func (c *RedisUserCache) Get(ctx context.Context, id string) (*domain.User, error) {
	data, err := c.client.Get(ctx, c.cacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.log.Debug("cache miss", zap.String("user_id", id))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user from cache: %w", err)
	}

	var cu cachedUser
	if err := json.Unmarshal(data, &cu); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached user: %w", err)
	}

	c.log.Debug("cache hit", zap.String("user_id", id))
	return &domain.User{
		ID:        cu.ID,
		Name:      cu.Name,
		Email:     cu.Email,
		Role:      domain.Role(cu.Role),
		Avatar:    cu.Avatar,
		CreatedAt: cu.CreatedAt,
		UpdatedAt: cu.UpdatedAt,
	}, nil
}

// Set stores a user in Redis with the configured TTL.
func (c *RedisUserCache) Set(ctx context.Context, user *domain.User) error {
	if user == nil {
		return errors.New("cannot cache nil user")
	}

	data, err := json.Marshal(cachedUser{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role.String(),
		Avatar:    user.Avatar,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal user for cache: %w", err)
	}

	if err := c.client.Set(ctx, c.cacheKey(user.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	c.log.Debug("cached user", zap.String("user_id", user.ID), zap.Duration("ttl", c.ttl))
	return nil
}

// Delete removes users from the cache.
func (c *RedisUserCache) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.cacheKey(id)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}

	c.log.Debug("deleted from cache", zap.Int("count", len(ids)))
	return nil
}
