package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"university-user-service/internal/adapter/gin/middleware"
	"university-user-service/pkg/token"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	testUserID = "01JH0000000000000000000000"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// authed returns an Authenticate middleware and a bearer header for a
// caller with the given role.
func authed(t *testing.T, role string) (gin.HandlerFunc, string, *token.Manager) {
	t.Helper()
	m, err := token.NewManager(token.Config{Secret: testSecret})
	require.NoError(t, err)
	raw, _, err := m.Issue(testUserID, "me@uni.edu", role)
	require.NoError(t, err)
	return middleware.Authenticate(m, nil, zaptest.NewLogger(t)), "Bearer " + raw, m
}

func perform(r http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if len(header) > 0 {
		req.Header.Set("Authorization", header[0])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
