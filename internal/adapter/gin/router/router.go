package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"university-user-service/internal/adapter/gin/handler"
	"university-user-service/internal/adapter/gin/middleware"
)

// Handlers groups the HTTP handlers mounted by SetupRouter.
type Handlers struct {
	Auth   *handler.AuthHandler
	User   *handler.UserHandler
	Health *handler.HealthHandler
}

// Options configures the middleware chain.
type Options struct {
	// CORSOrigins lists allowed origins; empty or "*" allows any origin.
	CORSOrigins []string
	// WriteRoles restricts PUT and DELETE on users when non-empty.
	WriteRoles []string
	// Limiter is nil when rate limiting is disabled.
	Limiter middleware.Limiter
	// Verifier checks bearer tokens.
	Verifier middleware.TokenVerifier
	// Revocations is nil when the token denylist is disabled.
	Revocations middleware.RevocationChecker
	// TrustedProxies lists the proxy IPs or CIDRs whose X-Forwarded-For is
	// honoured. Empty means none; the client IP is the socket peer.
	TrustedProxies []string
}

// SetupRouter configures and returns a Gin router with all routes and middleware
func SetupRouter(h Handlers, opts Options, log *zap.Logger) *gin.Engine {
	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		log.Warn("invalid trusted proxies, trusting none", zap.Strings("proxies", opts.TrustedProxies), zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(cors.New(corsConfig(opts.CORSOrigins)))
	if opts.Limiter != nil {
		router.Use(middleware.RateLimiter(opts.Limiter, log))
	}

	router.GET("/", h.Health.Index)
	router.GET("/health", h.Health.Health)

	users := router.Group("/api/users")
	{
		users.POST("/register", h.Auth.Register)
		users.POST("/login", h.Auth.Login)

		protected := users.Group("")
		protected.Use(middleware.Authenticate(opts.Verifier, opts.Revocations, log))
		{
			protected.POST("/logout", h.Auth.Logout)
			protected.GET("/me", h.User.Me)
			protected.GET("", h.User.ListUsers)
			protected.GET("/:id", h.User.GetUser)

			write := []gin.HandlerFunc{}
			if len(opts.WriteRoles) > 0 {
				write = append(write, middleware.RequireRoles(opts.WriteRoles...))
			}
			protected.PUT("/:id", append(write, h.User.UpdateUser)...)
			protected.DELETE("/:id", append(write, h.User.DeleteUser)...)
		}
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
