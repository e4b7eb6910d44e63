package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/reviewhub/backend/internal/config"
	"github.com/reviewhub/backend/internal/db"
	"github.com/reviewhub/backend/internal/model"
	"github.com/reviewhub/backend/internal/opaque"
	"golang.org/x/crypto/bcrypt"
)

const (
	refreshCookieName = "reviewhub_refresh"
	minLoginIDLength  = 3
	minPasswordLength = 8
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrConflict      = errors.New("conflict")
	ErrNotFound      = errors.New("not found")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenInvalid  = errors.New("token invalid")
	ErrMisconfigured = errors.New("auth config invalid")
)

// AccountLockedError reports a login attempt against a locked account
// together with how long the caller has to wait.
type AccountLockedError struct {
	RetryAfter time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, retry after %s", e.RetryAfter.Round(time.Second))
}

// dummyHash is compared against on a lookup miss so an unknown login id
// costs the same as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("reviewhub-timing-pad"), bcrypt.DefaultCost)

// CredentialStore is the durable account record the guard drives.
// RecordFailedLogin must apply increment-and-maybe-lock as one atomic
// operation; the guard never does read-modify-write across round trips.
type CredentialStore interface {
	CreateUser(ctx context.Context, loginID, email, displayName, passwordHash string) (*model.User, error)
	GetUserByLoginID(ctx context.Context, loginID string) (*model.User, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	RecordFailedLogin(ctx context.Context, userID int64, threshold int, lockUntil time.Time) (int, *time.Time, error)
	ResetLoginState(ctx context.Context, userID int64) error
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   int
}

type AuthService struct {
	store         CredentialStore
	codec         *opaque.Codec
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	lockThreshold int
	lockDuration  time.Duration
	allowSignup   bool
	cookieCfg     CookieConfig
	now           func() time.Time
}

type authClaims struct {
	LoginID string `json:"loginId"`
	jwt.RegisteredClaims
}

func NewAuthService(store CredentialStore, codec *opaque.Codec, cfg config.AuthConfig) (*AuthService, error) {
	if cfg.JWTAccessSecret == "" || cfg.JWTRefreshSecret == "" {
		return nil, fmt.Errorf("%w: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required", ErrMisconfigured)
	}
	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return nil, fmt.Errorf("%w: access and refresh secrets must differ", ErrMisconfigured)
	}

	accessTTL, err := time.ParseDuration(cfg.JWTAccessTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JWT_ACCESS_TTL", ErrMisconfigured)
	}

	refreshTTL, err := time.ParseDuration(cfg.JWTRefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JWT_REFRESH_TTL", ErrMisconfigured)
	}

	lockThreshold, err := strconv.Atoi(cfg.LockoutThreshold)
	if err != nil || lockThreshold < 1 {
		return nil, fmt.Errorf("%w: invalid LOCKOUT_THRESHOLD", ErrMisconfigured)
	}

	lockDuration, err := time.ParseDuration(cfg.LockoutDuration)
	if err != nil || lockDuration <= 0 {
		return nil, fmt.Errorf("%w: invalid LOCKOUT_DURATION", ErrMisconfigured)
	}

	allowSignup, err := parseBool(cfg.AllowSignup, false)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ALLOW_SIGNUP", ErrMisconfigured)
	}

	cookieSecure, err := parseBool(cfg.CookieSecure, true)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_COOKIE_SECURE", ErrMisconfigured)
	}

	cookieSameSite, err := parseSameSite(cfg.CookieSameSite)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_COOKIE_SAMESITE", ErrMisconfigured)
	}

	if cookieSameSite == http.SameSiteNoneMode && !cookieSecure {
		return nil, fmt.Errorf("%w: SameSite=None requires Secure cookie", ErrMisconfigured)
	}

	cookiePath := cfg.CookiePath
	if strings.TrimSpace(cookiePath) == "" {
		cookiePath = "/"
	}

	return &AuthService{
		store:         store,
		codec:         codec,
		accessSecret:  []byte(cfg.JWTAccessSecret),
		refreshSecret: []byte(cfg.JWTRefreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		lockThreshold: lockThreshold,
		lockDuration:  lockDuration,
		allowSignup:   allowSignup,
		cookieCfg: CookieConfig{
			Name:     refreshCookieName,
			Path:     cookiePath,
			Domain:   cfg.CookieDomain,
			Secure:   cookieSecure,
			SameSite: cookieSameSite,
			MaxAge:   int(refreshTTL.Seconds()),
		},
		now: time.Now,
	}, nil
}

func (s *AuthService) EnsureAdmin(ctx context.Context, loginID, password string) error {
	if strings.TrimSpace(loginID) == "" || strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: ADMIN_USERNAME/ADMIN_PASSWORD are required", ErrMisconfigured)
	}

	_, err := s.store.GetUserByLoginID(ctx, loginID)
	if err == nil {
		return nil
	}
	if !db.IsNoRows(err) {
		return err
	}

	if err := validateCredentials(loginID, password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = s.store.CreateUser(ctx, loginID, "", loginID, string(hash))
	return err
}

func (s *AuthService) AllowSignup() bool {
	return s.allowSignup
}

func (s *AuthService) CookieConfig() CookieConfig {
	return s.cookieCfg
}

func (s *AuthService) Register(ctx context.Context, loginID, password string) (string, string, int64, error) {
	if !s.allowSignup {
		return "", "", 0, ErrForbidden
	}

	if err := validateCredentials(loginID, password); err != nil {
		return "", "", 0, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", "", 0, err
	}

	user, err := s.store.CreateUser(ctx, loginID, "", loginID, string(hash))
	if err != nil {
		if isUniqueViolation(err) {
			return "", "", 0, ErrConflict
		}
		return "", "", 0, err
	}

	return s.issueTokens(user)
}

// Login drives the lockout state machine. Outcomes: token pair
// (authenticated), ErrUnauthorized (rejected, attempt recorded), or
// AccountLockedError. The current lock state is re-read from the store
// on every call; nothing is cached in process.
func (s *AuthService) Login(ctx context.Context, loginID, password string) (string, string, int64, error) {
	if err := validateCredentials(loginID, password); err != nil {
		return "", "", 0, err
	}

	user, err := s.store.GetUserByLoginID(ctx, loginID)
	if err != nil {
		if db.IsNoRows(err) {
			// burn a comparison so a miss and a mismatch cost the same
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return "", "", 0, ErrUnauthorized
		}
		return "", "", 0, err
	}

	now := s.now()
	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		// the attempt is still recorded, but an active lock is never extended
		if _, _, err := s.store.RecordFailedLogin(ctx, user.ID, s.lockThreshold, now.Add(s.lockDuration)); err != nil {
			return "", "", 0, err
		}
		return "", "", 0, &AccountLockedError{RetryAfter: user.LockedUntil.Sub(now)}
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		attempts, lockedUntil, err := s.store.RecordFailedLogin(ctx, user.ID, s.lockThreshold, now.Add(s.lockDuration))
		if err != nil {
			return "", "", 0, err
		}
		if lockedUntil != nil && now.Before(*lockedUntil) {
			slog.Warn("account locked after repeated failures",
				"loginId", loginID, "attempts", attempts, "lockedUntil", lockedUntil)
		}
		return "", "", 0, ErrUnauthorized
	}

	if user.FailedAttempts > 0 || user.LockedUntil != nil {
		if err := s.store.ResetLoginState(ctx, user.ID); err != nil {
			return "", "", 0, err
		}
	}

	return s.issueTokens(user)
}

// Refresh verifies a refresh token and issues a fresh pair. The signing
// secret is derived from the account's current password hash, so the
// account is re-read here and a password change invalidates every
// outstanding refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, string, int64, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", "", 0, ErrUnauthorized
	}

	var user *model.User
	var storeErr error
	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(refreshToken, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		sub, err := t.Claims.GetSubject()
		if err != nil {
			return nil, ErrTokenInvalid
		}
		userID, err := s.codec.DecodeID(sub)
		if err != nil {
			return nil, ErrTokenInvalid
		}
		u, err := s.store.GetUserByID(ctx, userID)
		if err != nil {
			if db.IsNoRows(err) {
				return nil, ErrTokenInvalid
			}
			storeErr = err
			return nil, err
		}
		user = u
		return s.refreshSecretFor(u.PasswordHash), nil
	}, jwt.WithTimeFunc(s.now))
	if storeErr != nil {
		return "", "", 0, storeErr
	}
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", 0, ErrTokenExpired
		}
		return "", "", 0, ErrTokenInvalid
	}
	if !token.Valid || user == nil {
		return "", "", 0, ErrTokenInvalid
	}

	return s.issueTokens(user)
}

// ParseAccessToken verifies signature and expiry only; it never touches
// the store.
func (s *AuthService) ParseAccessToken(tokenStr string) (*model.AuthUser, error) {
	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.accessSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	userID, err := s.codec.DecodeID(claims.Subject)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	return &model.AuthUser{
		ID:      userID,
		LoginID: claims.LoginID,
	}, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	next = strings.TrimSpace(next)
	if len(next) < minPasswordLength || len(next) > 128 {
		return ErrInvalidInput
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrUnauthorized
		}
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return ErrUnauthorized
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return s.store.UpdatePassword(ctx, userID, string(hash))
}

// IssueTokens mints a pair for an already-authenticated account (OIDC
// login lands here).
func (s *AuthService) IssueTokens(user *model.User) (string, string, int64, error) {
	return s.issueTokens(user)
}

func (s *AuthService) issueTokens(user *model.User) (string, string, int64, error) {
	accessToken, expiresIn, err := s.signToken(user, s.accessSecret, s.accessTTL)
	if err != nil {
		return "", "", 0, err
	}

	refreshToken, _, err := s.signToken(user, s.refreshSecretFor(user.PasswordHash), s.refreshTTL)
	if err != nil {
		return "", "", 0, err
	}

	return accessToken, refreshToken, expiresIn, nil
}

func (s *AuthService) signToken(user *model.User, secret []byte, ttl time.Duration) (string, int64, error) {
	now := s.now()
	// the subject is the opaque form: a signed token is still readable,
	// and internal identifiers never leave the system in clear form
	claims := authClaims{
		LoginID: user.LoginID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.codec.EncodeID(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(ttl.Seconds()), nil
}

// refreshSecretFor binds refresh-token validity to the current password
// hash: changing the password rotates the derived key.
func (s *AuthService) refreshSecretFor(passwordHash string) []byte {
	mac := hmac.New(sha256.New, s.refreshSecret)
	mac.Write([]byte(passwordHash))
	return mac.Sum(nil)
}

func validateCredentials(loginID, password string) error {
	loginID = strings.TrimSpace(loginID)
	password = strings.TrimSpace(password)

	if len(loginID) < minLoginIDLength || len(loginID) > 64 {
		return ErrInvalidInput
	}
	if len(password) < minPasswordLength || len(password) > 128 {
		return ErrInvalidInput
	}
	return nil
}

func parseBool(value string, fallback bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, err
	}
	return parsed, nil
}

func parseSameSite(value string) (http.SameSite, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return http.SameSiteLaxMode, nil
	}
	switch value {
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, ErrInvalidInput
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
