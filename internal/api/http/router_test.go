package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/persistence"
	"github.com/spec-kit/auth-service/internal/repository"
	"github.com/spec-kit/auth-service/internal/service"
)

type testServer struct {
	app     *fiber.App
	users   *service.UserService
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Config{Auth: config.AuthConfig{
		JWTSecret:       "0123456789-0123456789-0123456789",
		TokenTTLMinutes: 2,
		HeaderName:      fiber.HeaderAuthorization,
		SchemePrefix:    "Bearer ",
	}}
	logger := zap.NewNop()
	repo := repository.NewMemoryUserRepository()
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	authService, err := service.NewAuthService(cfg, service.AuthDependencies{
		Users: repo, Hasher: hasher, Events: dispatcher, Logger: logger,
	})
	require.NoError(t, err)
	userService := service.NewUserService(service.UserDependencies{
		Users: repo, Hasher: hasher, Events: dispatcher, Logger: logger,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), cfg.Auth.HeaderName, logger, metrics)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second, authMiddleware)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("auth-service", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Auth:   handlers.NewAuthHandler(authService),
		Users:  handlers.NewUsersHandler(userService),
	})
	return &testServer{app: app, users: userService, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &payload), string(raw))
	}
	return resp.StatusCode, payload
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	status, body := s.do(t, fiber.MethodPost, "/auth", "", map[string]string{"username": username, "password": password})
	require.Equal(t, fiber.StatusOK, status, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestLoginEndpoint(t *testing.T) {
	s := newTestServer(t)
	_, err := s.users.Create(context.Background(), "alice", "s3cret", domain.RoleAdmin)
	require.NoError(t, err)

	status, body := s.do(t, fiber.MethodPost, "/auth", "", map[string]string{"username": "alice", "password": "s3cret"})
	assert.Equal(t, fiber.StatusOK, status)
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["expires_at"])

	wrongStatus, wrongBody := s.do(t, fiber.MethodPost, "/auth", "", map[string]string{"username": "alice", "password": "nope"})
	ghostStatus, ghostBody := s.do(t, fiber.MethodPost, "/auth", "", map[string]string{"username": "ghost", "password": "x"})
	assert.Equal(t, fiber.StatusBadRequest, wrongStatus)
	assert.Equal(t, fiber.StatusBadRequest, ghostStatus)
	assert.Equal(t, wrongBody, ghostBody)
	assert.Equal(t, "AUTHENTICATION_FAILED", errorCode(wrongBody))

	status, body = s.do(t, fiber.MethodPost, "/auth", "", map[string]string{"username": "alice"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
}

func TestUserRoutesAccessControl(t *testing.T) {
	s := newTestServer(t)
	alice, err := s.users.Create(context.Background(), "alice", "s3cret", domain.RoleAdmin)
	require.NoError(t, err)

	status, body := s.do(t, fiber.MethodPost, "/users", "", map[string]string{"username": "bob", "password": "hunter2"})
	require.Equal(t, fiber.StatusCreated, status, body)
	created := body["data"].(map[string]any)
	assert.Equal(t, "CLIENT", created["role"])
	assert.NotContains(t, created, "password_hash")
	bobID := int64(created["id"].(float64))

	status, body = s.do(t, fiber.MethodPost, "/users", "", map[string]string{"username": "bob", "password": "other"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(body))

	adminToken := s.login(t, "alice", "s3cret")
	bobToken := s.login(t, "bob", "hunter2")

	status, body = s.do(t, fiber.MethodPost, "/users", "", map[string]string{"username": "mallory", "password": "pw", "role": "ADMIN"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, _ = s.do(t, fiber.MethodPost, "/users", bobToken, map[string]string{"username": "mallory", "password": "pw", "role": "ROLE_ADMIN"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = s.do(t, fiber.MethodPost, "/users", "", map[string]string{"username": "carol", "password": "pw", "role": "CLIENT"})
	assert.Equal(t, fiber.StatusCreated, status)

	status, body = s.do(t, fiber.MethodPost, "/users", adminToken, map[string]string{"username": "root2", "password": "pw", "role": "ADMIN"})
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, "ADMIN", body["data"].(map[string]any)["role"])

	cases := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"list without token", "/users", "", fiber.StatusUnauthorized},
		{"list as client", "/users", bobToken, fiber.StatusForbidden},
		{"list as admin", "/users", adminToken, fiber.StatusOK},
		{"list with garbage token", "/users", "garbage", fiber.StatusUnauthorized},
		{"self lookup", fmt.Sprintf("/users/%d", bobID), bobToken, fiber.StatusOK},
		{"other user as client", fmt.Sprintf("/users/%d", alice.ID), bobToken, fiber.StatusForbidden},
		{"any user as admin", fmt.Sprintf("/users/%d", bobID), adminToken, fiber.StatusOK},
		{"missing user as admin", "/users/999", adminToken, fiber.StatusNotFound},
		{"lookup without token", fmt.Sprintf("/users/%d", bobID), "", fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := s.do(t, fiber.MethodGet, tc.path, tc.token, nil)
			assert.Equal(t, tc.want, status)
		})
	}

	status, body = s.do(t, fiber.MethodGet, "/users", adminToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 4)
}

func TestCreateUser_PasswordLengthInBytes(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodPost, "/users", "", map[string]string{"username": "zoe", "password": strings.Repeat("é", 40)})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, _ = s.do(t, fiber.MethodPost, "/users", "", map[string]string{"username": "zoe", "password": strings.Repeat("é", 36)})
	assert.Equal(t, fiber.StatusCreated, status)
}

func TestUnknownRouteAndHealth(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = s.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "in-memory", deps["postgres"])
	assert.Equal(t, "disabled", deps["redis"])
}

func TestRequestIDAndMetrics(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(fiber.MethodGet, "/users", nil)
	req.Header.Set(observability.RequestIDHeader, "req-123")
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "req-123", resp.Header.Get(observability.RequestIDHeader))

	resp, err = s.app.Test(httptest.NewRequest(fiber.MethodGet, "/health/live", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get(observability.RequestIDHeader))

	snapshot := s.metrics.Snapshot()
	assert.Equal(t, int64(2), snapshot.Auth[observability.AuthOutcomeUnauthenticated])
}

func TestErrorMiddlewareRecoversPanics(t *testing.T) {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, 0, nil)
	app.Get("/boom", func(c *fiber.Ctx) error {
		panic("boom")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
