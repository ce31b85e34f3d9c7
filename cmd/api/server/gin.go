package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupGinServer wraps the router in an http.Server with timeouts.
func SetupGinServer(router http.Handler, ginAddr string, l *zap.Logger) *http.Server {
	l.Info("Gin REST API configured", zap.String("address", ginAddr), zap.String("mode", gin.Mode()))

	return &http.Server{
		Addr:              ginAddr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// SetGinMode applies the configured Gin mode, falling back to release.
func SetGinMode(mode string) {
	switch mode {
	case gin.DebugMode, gin.TestMode, gin.ReleaseMode:
		gin.SetMode(mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
}
