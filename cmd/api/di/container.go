package di

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"university-user-service/cmd/api/infrastructure"
	"university-user-service/internal/adapter/cache"
	"university-user-service/internal/adapter/db/gormdb"
	ginhandler "university-user-service/internal/adapter/gin/handler"
	"university-user-service/internal/adapter/gin/middleware"
	ginrouter "university-user-service/internal/adapter/gin/router"
	"university-user-service/internal/adapter/repository/cached"
	"university-user-service/internal/config"
	"university-user-service/internal/usecase/auth"
	"university-user-service/internal/usecase/user"
	"university-user-service/pkg/logger"
	redisclient "university-user-service/pkg/redis"
	"university-user-service/pkg/security"
	"university-user-service/pkg/token"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *gorm.DB
	RedisClient *redisclient.Client
	Tokens      *token.Manager
	UserUC      user.Usecase
	AuthUC      auth.Usecase
	Router      *gin.Engine
}

// NewContainer creates and initializes all application dependencies
func NewContainer(ctx context.Context, cfg *config.Config, l *zap.Logger) (_ *Container, err error) {
	// Validate configuration before initializing any dependencies
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	c := &Container{Config: cfg, Logger: l}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	// Initialize database
	c.DB, err = infrastructure.NewDatabase(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := gormdb.Migrate(ctx, c.DB); err != nil {
		return nil, err
	}

	// Initialize Redis client
	c.RedisClient, err = infrastructure.NewRedisClient(ctx, cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	hasher, err := security.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}
	c.Tokens, err = token.NewManager(token.Config{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.JWTIssuer,
		TTL:    cfg.Auth.TokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token manager: %w", err)
	}

	// Initialize repository; the cache decorator and the denylist need Redis.
	var (
		repo        user.Repository = gormdb.NewUserRepo(c.DB, l)
		revoker     auth.Revoker
		revocations middleware.RevocationChecker
	)
	if c.RedisClient != nil {
		userCache := cache.NewRedisUserCache(c.RedisClient.Client, cfg.Redis.KeyPrefix, cfg.Redis.CacheTTL, l)
		repo = cached.NewUserRepository(repo, userCache, l)

		denylist := cache.NewTokenDenylist(c.RedisClient.Client, cfg.Redis.KeyPrefix, l)
		revoker, revocations = denylist, denylist
	}

	// Initialize use cases
	c.UserUC = user.New(repo, hasher, l)
	c.AuthUC = auth.New(repo, hasher, c.Tokens, revoker, l)

	checks := map[string]ginhandler.PingFunc{"database": c.pingDB}
	if c.RedisClient != nil {
		checks["redis"] = c.RedisClient.Ping
	}

	c.Router = ginrouter.SetupRouter(ginrouter.Handlers{
		Auth:   ginhandler.NewAuthHandler(c.AuthUC, l),
		User:   ginhandler.NewUserHandler(c.UserUC, l),
		Health: ginhandler.NewHealthHandler(cfg.Logger.ServiceName, cfg.Logger.ServiceVersion, checks, l),
	}, ginrouter.Options{
		CORSOrigins:    cfg.App.CORSOrigins,
		WriteRoles:     cfg.Auth.WriteRoles,
		Limiter:        c.rateLimiter(),
		Verifier:       c.Tokens,
		Revocations:    revocations,
		TrustedProxies: cfg.App.TrustedProxies,
	}, l)

	return c, nil
}

// NewMigrator opens only the database, for the migrate command.
func NewMigrator(cfg *config.Config, l *zap.Logger) (*Container, error) {
	db, err := infrastructure.NewDatabase(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return &Container{Config: cfg, Logger: l, DB: db}, nil
}

// Migrate applies the schema.
func (c *Container) Migrate(ctx context.Context) error {
	if err := gormdb.Migrate(ctx, c.DB); err != nil {
		return err
	}
	logger.WithContext(ctx, c.Logger).Info("schema migrated", zap.String("driver", c.Config.DB.Driver))
	return nil
}

func (c *Container) rateLimiter() middleware.Limiter {
	rl := c.Config.RateLimit
	if !rl.Enabled {
		return nil
	}
	limiterCfg := middleware.RateLimiterConfig{
		RequestsPerSecond: rl.RequestsPerSecond,
		BurstCapacity:     rl.Burst,
	}
	if c.RedisClient != nil {
		return middleware.NewRedisLimiter(c.RedisClient.Client, c.Config.Redis.KeyPrefix, limiterCfg)
	}
	return middleware.NewLocalLimiter(limiterCfg)
}

func (c *Container) pingDB(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	var errs []error

	// Close Redis connection
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	// Close database connection
	if c.DB != nil {
		if err := infrastructure.CloseDatabase(c.DB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	return errors.Join(errs...)
}
