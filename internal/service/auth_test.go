package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/reviewhub/backend/internal/config"
	"github.com/reviewhub/backend/internal/model"
	"github.com/reviewhub/backend/internal/opaque"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct-horse-battery"

// fakeCredentialStore mirrors the atomic increment-and-maybe-lock
// semantics of the real store against a single in-memory account.
type fakeCredentialStore struct {
	user   *model.User
	nextID int64
	now    func() time.Time
	resets int
}

func (f *fakeCredentialStore) CreateUser(_ context.Context, loginID, email, displayName, passwordHash string) (*model.User, error) {
	f.nextID++
	f.user = &model.User{
		ID:           f.nextID,
		LoginID:      loginID,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
	}
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
	if f.user == nil || f.user.ID != userID {
		return 0, nil, pgx.ErrNoRows
	}
	f.user.FailedAttempts++
	// crossing the threshold sets the lock; an already-active lock is
	// never extended
	if f.user.FailedAttempts >= threshold &&
		(f.user.LockedUntil == nil || !f.user.LockedUntil.After(f.now())) {
		until := lockUntil
		f.user.LockedUntil = &until
	}
	return f.user.FailedAttempts, f.user.LockedUntil, nil
}

func (f *fakeCredentialStore) ResetLoginState(_ context.Context, userID int64) error {
	if f.user == nil || f.user.ID != userID {
		return pgx.ErrNoRows
	}
	f.user.FailedAttempts = 0
	f.user.LockedUntil = nil
	f.resets++
	return nil
}

func (f *fakeCredentialStore) UpdatePassword(_ context.Context, userID int64, passwordHash string) error {
	if f.user == nil || f.user.ID != userID {
		return pgx.ErrNoRows
	}
	f.user.PasswordHash = passwordHash
	return nil
}

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time {
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newAuthFixture(t *testing.T) (*AuthService, *fakeCredentialStore, *testClock) {
	t.Helper()

	clock := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := &fakeCredentialStore{now: clock.Now}

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if _, err := store.CreateUser(context.Background(), "alice", "", "alice", string(hash)); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	codec, err := opaque.NewCodec("auth-test-secret", opaque.DefaultRelations())
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	svc, err := NewAuthService(store, codec, config.AuthConfig{
		JWTAccessSecret:  "access-secret",
		JWTRefreshSecret: "refresh-secret",
		JWTAccessTTL:     "15m",
		JWTRefreshTTL:    "168h",
		LockoutThreshold: "5",
		LockoutDuration:  "2h",
		AllowSignup:      "true",
	})
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	svc.now = clock.Now
	return svc, store, clock
}

func TestNewAuthServiceRejectsSharedSecret(t *testing.T) {
	codec, err := opaque.NewCodec("auth-test-secret", nil)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	_, err = NewAuthService(&fakeCredentialStore{}, codec, config.AuthConfig{
		JWTAccessSecret:  "same-secret",
		JWTRefreshSecret: "same-secret",
		JWTAccessTTL:     "15m",
		JWTRefreshTTL:    "168h",
		LockoutThreshold: "5",
		LockoutDuration:  "2h",
	})
	if !errors.Is(err, ErrMisconfigured) {
		t.Fatalf("err = %v, want ErrMisconfigured", err)
	}
}

func TestLoginSuccess(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	access, refresh, expiresIn, err := svc.Login(context.Background(), "alice", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if access == "" || refresh == "" {
		t.Fatal("expected a token pair")
	}
	if expiresIn != 900 {
		t.Fatalf("expiresIn = %d, want 900", expiresIn)
	}
}

func TestLoginUnknownAccount(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	if _, _, _, err := svc.Login(context.Background(), "nobody-here", testPassword); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestLoginFailuresBelowThresholdStayOpen(t *testing.T) {
	svc, store, _ := newAuthFixture(t)

	for i := 0; i < 4; i++ {
		if _, _, _, err := svc.Login(context.Background(), "alice", "wrong-password"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("attempt %d: err = %v, want ErrUnauthorized", i+1, err)
		}
	}
	if store.user.FailedAttempts != 4 {
		t.Fatalf("FailedAttempts = %d, want 4", store.user.FailedAttempts)
	}
	if store.user.LockedUntil != nil {
		t.Fatalf("account locked below threshold: %v", store.user.LockedUntil)
	}

	// the next correct login must still work
	if _, _, _, err := svc.Login(context.Background(), "alice", testPassword); err != nil {
		t.Fatalf("Login after failures: %v", err)
	}
}

func TestLoginThresholdAttemptLocks(t *testing.T) {
	svc, store, clock := newAuthFixture(t)

	for i := 0; i < 5; i++ {
		if _, _, _, err := svc.Login(context.Background(), "alice", "wrong-password"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("attempt %d: err = %v, want ErrUnauthorized", i+1, err)
		}
	}

	if store.user.LockedUntil == nil {
		t.Fatal("threshold crossed but no lock set")
	}
	want := clock.Now().Add(2 * time.Hour)
	if !store.user.LockedUntil.Equal(want) {
		t.Fatalf("LockedUntil = %v, want %v", store.user.LockedUntil, want)
	}
}

func TestLoginWhileLockedRejectsCorrectPassword(t *testing.T) {
	svc, store, clock := newAuthFixture(t)

	for i := 0; i < 5; i++ {
		svc.Login(context.Background(), "alice", "wrong-password")
	}

	clock.Advance(time.Minute)
	_, _, _, err := svc.Login(context.Background(), "alice", testPassword)

	var locked *AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("err = %v, want AccountLockedError", err)
	}
	if locked.RetryAfter != 2*time.Hour-time.Minute {
		t.Fatalf("RetryAfter = %v, want %v", locked.RetryAfter, 2*time.Hour-time.Minute)
	}
	// the attempt is still counted, but the lock deadline stays put
	if store.user.FailedAttempts != 6 {
		t.Fatalf("FailedAttempts = %d, want 6", store.user.FailedAttempts)
	}
	want := clock.Now().Add(-time.Minute).Add(2 * time.Hour)
	if !store.user.LockedUntil.Equal(want) {
		t.Fatalf("active lock was extended: %v, want %v", store.user.LockedUntil, want)
	}
}

func TestLoginAfterLockExpiry(t *testing.T) {
	svc, store, clock := newAuthFixture(t)

	for i := 0; i < 5; i++ {
		svc.Login(context.Background(), "alice", "wrong-password")
	}

	clock.Advance(2*time.Hour + time.Second)
	if _, _, _, err := svc.Login(context.Background(), "alice", testPassword); err != nil {
		t.Fatalf("Login after expiry: %v", err)
	}
	if store.user.FailedAttempts != 0 || store.user.LockedUntil != nil {
		t.Fatalf("login state not reset: attempts=%d locked=%v",
			store.user.FailedAttempts, store.user.LockedUntil)
	}
	if store.resets != 1 {
		t.Fatalf("resets = %d, want 1", store.resets)
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc, store, _ := newAuthFixture(t)

	access, _, _, err := svc.Login(context.Background(), "alice", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	user, err := svc.ParseAccessToken(access)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if user.ID != store.user.ID || user.LoginID != "alice" {
		t.Fatalf("AuthUser = %+v", user)
	}
}

func TestTokenSubjectIsOpaque(t *testing.T) {
	svc, store, _ := newAuthFixture(t)

	access, _, _, err := svc.Login(context.Background(), "alice", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// JWT claims are only base64-encoded, so the subject must already be
	// in opaque form
	parts := strings.Split(access, ".")
	if len(parts) != 3 {
		t.Fatalf("not a JWT: %q", access)
	}
	claims, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode claims: %v", err)
	}
	if !strings.Contains(string(claims), svc.codec.EncodeID(store.user.ID)) {
		t.Fatal("subject is not the opaque identifier")
	}
	if strings.Contains(string(claims), `"sub":"1"`) {
		t.Fatal("raw identifier leaked into token claims")
	}
}

func TestAccessTokenExpires(t *testing.T) {
	svc, _, clock := newAuthFixture(t)

	access, _, _, err := svc.Login(context.Background(), "alice", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	clock.Advance(16 * time.Minute)
	if _, err := svc.ParseAccessToken(access); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestParseAccessTokenRejectsGarbage(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	for _, input := range []string{"", "garbage", "a.b.c"} {
		if _, err := svc.ParseAccessToken(input); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("ParseAccessToken(%q) err = %v, want ErrTokenInvalid", input, err)
		}
	}
}

func TestParseAccessTokenRejectsRefreshToken(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	// a refresh token is signed with a different derived key and must
	// never pass as an access token
	_, refresh, _, err := svc.Login(context.Background(), "alice", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := svc.ParseAccessToken(refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestRefreshIssuesNewPair(t *testing.T) {
	svc, _, clock := newAuthFixture(t)

	_, refresh, _, err := svc.Login(context.Background(), "alice", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	clock.Advance(time.Hour)
	access, _, _, err := svc.Refresh(context.Background(), refresh)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := svc.ParseAccessToken(access); err != nil {
		t.Fatalf("refreshed access token invalid: %v", err)
	}
}

func TestRefreshRejectsEmptyAndGarbage(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	if _, _, _, err := svc.Refresh(context.Background(), ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("empty token err = %v, want ErrUnauthorized", err)
	}
	if _, _, _, err := svc.Refresh(context.Background(), "garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("garbage token err = %v, want ErrTokenInvalid", err)
	}
}

func TestRefreshExpires(t *testing.T) {
	svc, _, clock := newAuthFixture(t)

	_, refresh, _, err := svc.Login(context.Background(), "alice", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	clock.Advance(169 * time.Hour)
	if _, _, _, err := svc.Refresh(context.Background(), refresh); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestPasswordChangeInvalidatesRefreshTokens(t *testing.T) {
	svc, store, _ := newAuthFixture(t)

	_, refresh, _, err := svc.Login(context.Background(), "alice", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.ChangePassword(context.Background(), store.user.ID, testPassword, "a-new-password-1"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, _, _, err := svc.Refresh(context.Background(), refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid after password change", err)
	}

	// a pair issued under the new password works
	_, refresh2, _, err := svc.Login(context.Background(), "alice", "a-new-password-1")
	if err != nil {
		t.Fatalf("Login with new password: %v", err)
	}
	if _, _, _, err := svc.Refresh(context.Background(), refresh2); err != nil {
		t.Fatalf("Refresh with new pair: %v", err)
	}
}

func TestChangePasswordRejectsWrongCurrent(t *testing.T) {
	svc, store, _ := newAuthFixture(t)

	err := svc.ChangePassword(context.Background(), store.user.ID, "wrong-password", "a-new-password-1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestChangePasswordRejectsShortNew(t *testing.T) {
	svc, store, _ := newAuthFixture(t)

	err := svc.ChangePassword(context.Background(), store.user.ID, testPassword, "short")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRegisterValidatesCredentials(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	cases := []struct {
		loginID  string
		password string
	}{
		{"ab", "long-enough-password"},
		{"bob", "short"},
		{"", ""},
	}
	for _, tc := range cases {
		if _, _, _, err := svc.Register(context.Background(), tc.loginID, tc.password); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("Register(%q, %q) err = %v, want ErrInvalidInput", tc.loginID, tc.password, err)
		}
	}
}

func TestRegisterDisabled(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	svc.allowSignup = false

	if _, _, _, err := svc.Register(context.Background(), "bob", "long-enough-password"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc, store, _ := newAuthFixture(t)

	// the fixture account already exists under this login id; bootstrap
	// must leave it untouched
	before := store.user.PasswordHash
	if err := svc.EnsureAdmin(context.Background(), "alice", "another-password-1"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if store.user.PasswordHash != before {
		t.Fatal("EnsureAdmin overwrote an existing account")
	}
}
