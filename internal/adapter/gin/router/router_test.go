package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"university-user-service/internal/adapter/cache"
	"university-user-service/internal/adapter/db/gormdb"
	"university-user-service/internal/adapter/gin/handler"
	"university-user-service/internal/adapter/gin/middleware"
	"university-user-service/internal/adapter/repository/cached"
	"university-user-service/internal/usecase/auth"
	"university-user-service/internal/usecase/user"
	"university-user-service/pkg/security"
	"university-user-service/pkg/token"
)

type testServer struct {
	router http.Handler
	redis  *miniredis.Miniredis
}

func newTestServer(t testing.TB, writeRoles ...string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard, TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, gormdb.Migrate(context.Background(), db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hasher, err := security.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := token.NewManager(token.Config{Secret: "0123456789abcdef0123456789abcdef", Issuer: "test"})
	require.NoError(t, err)

	repo := cached.NewUserRepository(
		gormdb.NewUserRepo(db, log),
		cache.NewRedisUserCache(rdb, "test:", time.Minute, log),
		log,
	)
	denylist := cache.NewTokenDenylist(rdb, "test:", log)

	h := Handlers{
		Auth: handler.NewAuthHandler(auth.New(repo, hasher, tokens, denylist, log), log),
		User: handler.NewUserHandler(user.New(repo, hasher, log), log),
		Health: handler.NewHealthHandler("test", "0.0.0", map[string]handler.PingFunc{
			"database": sqlDB.PingContext,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}, log),
	}

	r := SetupRouter(h, Options{
		WriteRoles:  writeRoles,
		Limiter:     middleware.NewLocalLimiter(middleware.RateLimiterConfig{RequestsPerSecond: 1e6, BurstCapacity: 1_000_000}),
		Verifier:    tokens,
		Revocations: denylist,
	}, log)

	return &testServer{router: r, redis: mr}
}

func (s *testServer) do(t *testing.T, method, path string, body any, bearer string) (int, map[string]any, string) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out, w.Body.String()
}

func (s *testServer) register(t *testing.T, name, email, role string) (string, string) {
	t.Helper()
	code, body, raw := s.do(t, http.MethodPost, "/api/users/register", map[string]string{
		"name": name, "email": email, "password": "secret123", "role": role,
	}, "")
	require.Equal(t, http.StatusCreated, code, raw)
	return body["token"].(string), body["user"].(map[string]any)["id"].(string)
}

func TestRegisterListAndNoPasswordLeak(t *testing.T) {
	s := newTestServer(t)

	tok, _ := s.register(t, "A", "a@uni.edu", "")
	assert.NotEmpty(t, tok)

	code, body, _ := s.do(t, http.MethodGet, "/api/users", nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "no token", body["message"])

	code, body, raw := s.do(t, http.MethodGet, "/api/users", nil, tok)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, "A", body["data"].([]any)[0].(map[string]any)["name"])
	assert.NotContains(t, raw, "password")
	assert.NotContains(t, raw, "$2a$")
}

func TestDuplicateRegistration(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "A", "a@uni.edu", "")

	code, body, _ := s.do(t, http.MethodPost, "/api/users/register", map[string]string{
		"name": "B", "email": "A@UNI.EDU", "password": "another1",
	}, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "conflict", body["error"])

	code, _, _ = s.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "a@uni.edu", "password": "secret123"}, "")
	assert.Equal(t, http.StatusOK, code, "original record unchanged")
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "A", "a@uni.edu", "")

	code, ok, _ := s.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "a@uni.edu", "password": "secret123"}, "")
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, ok["token"])

	wrongCode, _, wrongBody := s.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "a@uni.edu", "password": "nope1234"}, "")
	unknownCode, _, unknownBody := s.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "ghost@uni.edu", "password": "secret123"}, "")

	assert.Equal(t, http.StatusUnauthorized, wrongCode)
	assert.Equal(t, http.StatusUnauthorized, unknownCode)
	assert.JSONEq(t, wrongBody, unknownBody)

	code, _, _ = s.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "a@uni.edu"}, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestProfileLifecycle(t *testing.T) {
	s := newTestServer(t)
	tok, id := s.register(t, "A", "a@uni.edu", "")

	code, body, _ := s.do(t, http.MethodGet, "/api/users/me", nil, tok)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, body["data"].(map[string]any)["id"])

	code, body, _ = s.do(t, http.MethodPut, "/api/users/"+id, map[string]string{"name": "A2", "password": "newsecret"}, tok)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "A2", body["data"].(map[string]any)["name"])

	code, body, _ = s.do(t, http.MethodGet, "/api/users/"+id, nil, tok)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "A2", body["data"].(map[string]any)["name"], "cache invalidated on update")

	code, _, _ = s.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "a@uni.edu", "password": "newsecret"}, "")
	assert.Equal(t, http.StatusOK, code, "updated password is hashed and usable")

	code, _, _ = s.do(t, http.MethodGet, "/api/users/not-a-ulid", nil, tok)
	assert.Equal(t, http.StatusNotFound, code)

	code, _, _ = s.do(t, http.MethodDelete, "/api/users/"+id, nil, tok)
	require.Equal(t, http.StatusOK, code)

	code, _, _ = s.do(t, http.MethodGet, "/api/users/"+id, nil, tok)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	tok, _ := s.register(t, "A", "a@uni.edu", "")

	code, _, _ := s.do(t, http.MethodPost, "/api/users/logout", nil, tok)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, s.redis.Keys())

	code, body, _ := s.do(t, http.MethodGet, "/api/users/me", nil, tok)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid or expired token", body["message"])
}

func TestWriteRoles(t *testing.T) {
	s := newTestServer(t, "admin")
	userTok, userID := s.register(t, "U", "u@uni.edu", "user")
	adminTok, _ := s.register(t, "Root", "root@uni.edu", "admin")

	code, body, _ := s.do(t, http.MethodPut, "/api/users/"+userID, map[string]string{"name": "U2"}, userTok)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", body["error"])

	code, _, _ = s.do(t, http.MethodGet, "/api/users/"+userID, nil, userTok)
	assert.Equal(t, http.StatusOK, code, "reads are not gated")

	code, _, _ = s.do(t, http.MethodPut, "/api/users/"+userID, map[string]string{"name": "U2"}, adminTok)
	assert.Equal(t, http.StatusOK, code)

	code, _, _ = s.do(t, http.MethodDelete, "/api/users/"+userID, nil, userTok)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestHealthAndIndex(t *testing.T) {
	s := newTestServer(t)

	code, body, _ := s.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])

	s.redis.Close()
	code, body, _ = s.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "down", body["checks"].(map[string]any)["redis"])

	code, body, _ = s.do(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
}

func TestMultibytePasswordOverByteLimitIsRejected(t *testing.T) {
	s := newTestServer(t)
	long := strings.Repeat("é", 40)

	code, body, raw := s.do(t, http.MethodPost, "/api/users/register", map[string]string{
		"name": "A", "email": "a@uni.edu", "password": long,
	}, "")
	assert.Equal(t, http.StatusBadRequest, code, raw)
	assert.Equal(t, "validation_error", body["error"])

	tok, id := s.register(t, "A", "a@uni.edu", "")
	code, body, raw = s.do(t, http.MethodPut, "/api/users/"+id, map[string]string{"password": long}, tok)
	assert.Equal(t, http.StatusBadRequest, code, raw)
	assert.Equal(t, "validation_error", body["error"])

	code, _, _ = s.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "a@uni.edu", "password": "secret123"}, "")
	assert.Equal(t, http.StatusOK, code, "password unchanged")
}

func TestListUsersHugePage(t *testing.T) {
	s := newTestServer(t)
	tok, _ := s.register(t, "A", "a@uni.edu", "")

	code, body, raw := s.do(t, http.MethodGet, "/api/users?page=9223372036854775807&limit=100", nil, tok)
	require.Equal(t, http.StatusOK, code, raw)
	assert.Empty(t, body["data"], "past the last page")

	page := body["pagination"].(map[string]any)["page"].(float64)
	assert.Less(t, page, float64(math.MaxInt64))
	assert.Equal(t, float64(1), body["pagination"].(map[string]any)["total"])
}

func TestClientIPIgnoresUntrustedForwardedFor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t, zaptest.Level(zap.ErrorLevel))
	h := Handlers{Health: handler.NewHealthHandler("test", "0.0.0", nil, log)}

	hits := func(proxies []string) []int {
		r := SetupRouter(h, Options{
			Limiter:        middleware.NewLocalLimiter(middleware.RateLimiterConfig{RequestsPerSecond: 0.001, BurstCapacity: 1}),
			TrustedProxies: proxies,
		}, log)
		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.7:40000"
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			codes = append(codes, w.Code)
		}
		return codes
	}

	limited := []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}
	assert.Equal(t, limited, hits(nil), "no proxy trusted by default")
	assert.Equal(t, limited, hits([]string{"not-an-ip"}), "invalid list trusts none")
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusOK}, hits([]string{"203.0.113.0/24"}),
		"a trusted proxy forwards distinct clients")
}
