package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	t.Run("All up", func(t *testing.T) {
		h := NewHealthHandler("svc", "1.0.0", map[string]PingFunc{"database": ok, "redis": ok}, zaptest.NewLogger(t))
		r := newEngine()
		r.GET("/health", h.Health)

		w := perform(r, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, map[string]any{"database": "up", "redis": "up"}, body["checks"])
	})

	t.Run("Dependency down", func(t *testing.T) {
		h := NewHealthHandler("svc", "1.0.0", map[string]PingFunc{"database": down, "redis": ok}, zaptest.NewLogger(t))
		r := newEngine()
		r.GET("/health", h.Health)

		w := perform(r, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		body := decode(t, w)
		assert.Equal(t, "unhealthy", body["status"])
		assert.Equal(t, "down", body["checks"].(map[string]any)["database"])
	})
}

func TestIndex(t *testing.T) {
	h := NewHealthHandler("university-user-service", "1.2.3", nil, zaptest.NewLogger(t))
	r := newEngine()
	r.GET("/", h.Index)

	w := perform(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "university-user-service", body["service"])
	assert.Equal(t, "1.2.3", body["version"])
	assert.Contains(t, body["endpoints"], "register")
}
