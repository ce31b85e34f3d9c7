package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TokenDenylist records revoked token IDs in Redis. Each entry expires when
// the token itself would have, so the list never outgrows the set of live
// tokens.
type TokenDenylist struct {
	client redis.Cmdable
	prefix string
	log    *zap.Logger
	now    func() time.Time
}

// NewTokenDenylist creates a denylist with keys prefix + "revoked:" + jti.
func NewTokenDenylist(client redis.Cmdable, prefix string, log *zap.Logger) *TokenDenylist {
	return &TokenDenylist{client: client, prefix: prefix, log: log, now: time.Now}
}

func (d *TokenDenylist) key(jti string) string {
	return d.prefix + "revoked:" + jti
}

// Revoke adds jti to the list until expiresAt. Already expired tokens are
// not stored.
func (d *TokenDenylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return errors.New("token id is required")
	}

	ttl := expiresAt.Sub(d.now())
	if ttl <= 0 {
		d.log.Debug("token already expired, not stored", zap.String("jti", jti))
		return nil
	}

	if err := d.client.Set(ctx, d.key(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti has been revoked.
func (d *TokenDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token denylist: %w", err)
	}
	return n > 0, nil
}
