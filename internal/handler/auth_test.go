package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/reviewhub/backend/internal/config"
	"github.com/reviewhub/backend/internal/model"
	"github.com/reviewhub/backend/internal/opaque"
	"github.com/reviewhub/backend/internal/service"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct-horse-battery"

type fakeCredentialStore struct {
	user *model.User
}

func (f *fakeCredentialStore) CreateUser(_ context.Context, loginID, email, displayName, passwordHash string) (*model.User, error) {
	f.user = &model.User{ID: 1, LoginID: loginID, Email: email, DisplayName: displayName, PasswordHash: passwordHash}
	copied := *f.user
	return &copied, nil
}

func (f *fakeCredentialStore) GetUserByLoginID(_ context.Context, loginID string) (*model.User, error) {
	if f.user == nil || f.user.LoginID != loginID {
		return nil, pgx.ErrNoRows
	}
	copied := *f.user
	return &copied, nil
}

func (f *fakeCredentialStore) GetUserByID(_ context.Context, userID int64) (*model.User, error) {
	if f.user == nil || f.user.ID != userID {
		return nil, pgx.ErrNoRows
	}
	copied := *f.user
	return &copied, nil
}

func (f *fakeCredentialStore) RecordFailedLogin(_ context.Context, userID int64, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	f.user.FailedAttempts++
	if f.user.FailedAttempts >= threshold &&
		(f.user.LockedUntil == nil || !f.user.LockedUntil.After(time.Now())) {
		until := lockUntil
		f.user.LockedUntil = &until
	}
	return f.user.FailedAttempts, f.user.LockedUntil, nil
}

func (f *fakeCredentialStore) ResetLoginState(_ context.Context, _ int64) error {
	f.user.FailedAttempts = 0
	f.user.LockedUntil = nil
	return nil
}

func (f *fakeCredentialStore) UpdatePassword(_ context.Context, _ int64, passwordHash string) error {
	f.user.PasswordHash = passwordHash
	return nil
}

type testEnv struct {
	router *gin.Engine
	store  *fakeCredentialStore
	repo   *fakeCatalogRepo
	codec  *opaque.Codec
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	codec, err := opaque.NewCodec("handler-test-secret", opaque.DefaultRelations())
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	store := &fakeCredentialStore{}
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if _, err := store.CreateUser(context.Background(), "alice", "", "alice", string(hash)); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	authSvc, err := service.NewAuthService(store, codec, config.AuthConfig{
		JWTAccessSecret:  "access-secret",
		JWTRefreshSecret: "refresh-secret",
		JWTAccessTTL:     "15m",
		JWTRefreshTTL:    "168h",
		LockoutThreshold: "5",
		LockoutDuration:  "2h",
		CookieSecure:     "false",
	})
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}

	repo := newFakeCatalogRepo()
	repo.users[1] = &model.UserSummary{ID: 1, DisplayName: "alice"}
	catalogSvc := service.NewCatalogService(repo)

	boundary := NewBoundary(codec)
	authHandler := NewAuthHandler(authSvc, boundary, nil)
	catalogHandler := NewCatalogHandler(catalogSvc, nil, boundary)

	router := gin.New()
	api := router.Group("/api/v1")
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.POST("/auth/logout", authHandler.Logout)
	api.GET("/auth/config", authHandler.Config)

	guarded := api.Group("")
	guarded.Use(AuthMiddleware(authSvc))
	guarded.GET("/auth/me", authHandler.Me)
	guarded.POST("/auth/password", authHandler.ChangePassword)
	guarded.GET("/items/:id", catalogHandler.GetItem)
	guarded.POST("/items", catalogHandler.CreateItem)
	guarded.PUT("/items/:id", catalogHandler.UpdateItem)

	return &testEnv{router: router, store: store, repo: repo, codec: codec}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, val := range header {
		req.Header.Set(key, val)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T) (string, *http.Cookie) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/auth/login",
		model.AuthRequest{ID: "alice", Password: testPassword}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp model.AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal login response: %v", err)
	}

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "reviewhub_refresh" {
			return resp.AccessToken, cookie
		}
	}
	t.Fatal("refresh cookie not set on login")
	return "", nil
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)

	access, cookie := env.login(t)
	if access == "" {
		t.Fatal("empty access token")
	}
	if !cookie.HttpOnly {
		t.Fatal("refresh cookie must be HttpOnly")
	}
	if cookie.Value == "" {
		t.Fatal("empty refresh cookie")
	}
}

func TestLoginEndpointRejectsBadJSON(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLoginEndpointWrongPassword(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login",
		model.AuthRequest{ID: "alice", Password: "wrong-password"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLoginEndpointLockedAccount(t *testing.T) {
	env := newTestEnv(t)

	until := time.Now().Add(90 * time.Minute)
	env.store.user.FailedAttempts = 5
	env.store.user.LockedUntil = &until

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login",
		model.AuthRequest{ID: "alice", Password: testPassword}, nil)
	if rec.Code != http.StatusLocked {
		t.Fatalf("status = %d, want 423", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After header missing")
	}

	var resp model.AccountLockedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.RetryAfter < 1 || resp.RetryAfter > 90*60 {
		t.Fatalf("retryAfter = %d, want within lock window", resp.RetryAfter)
	}
}

func TestGuardedRouteRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/auth/me", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/auth/me", nil,
		map[string]string{"Authorization": "Bearer garbage"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d, want 401", rec.Code)
	}
}

func TestMeReturnsOpaqueIdentifier(t *testing.T) {
	env := newTestEnv(t)
	access, _ := env.login(t)

	rec := env.do(t, http.MethodGet, "/api/v1/auth/me", nil,
		map[string]string{"Authorization": "Bearer " + access})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	encoded, ok := body["identifier"].(string)
	if !ok || len(encoded) != 32 {
		t.Fatalf("identifier = %v, want 32-char opaque string", body["identifier"])
	}
	id, err := env.codec.DecodeID(encoded)
	if err != nil || id != env.store.user.ID {
		t.Fatalf("identifier decodes to %d (%v), want %d", id, err, env.store.user.ID)
	}
}

func TestRefreshEndpointUsesCookie(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.login(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp model.AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("empty access token after refresh")
	}
}

func TestRefreshEndpointWithoutCookie(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/refresh", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/logout", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "reviewhub_refresh" && cookie.MaxAge >= 0 {
			t.Fatal("refresh cookie not expired on logout")
		}
	}
}

func TestAuthConfigEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/auth/config", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp model.AuthConfigResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.AllowSignup || resp.OIDCEnabled {
		t.Fatalf("config = %+v, want both disabled", resp)
	}
}
