package config

import (
	"os"
	"strings"
)

// Config holds everything read from the environment at startup.
// Postgres connection settings are not here; the db package reads
// DATABASE_URL / PG* itself.
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Opaque    OpaqueConfig
	OIDC      OIDCConfig
	Embedding EmbeddingConfig
}

type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// AuthConfig values stay as strings here; the auth service parses and
// validates them on construction.
type AuthConfig struct {
	JWTAccessSecret  string
	JWTRefreshSecret string
	JWTAccessTTL     string
	JWTRefreshTTL    string
	LockoutThreshold string
	LockoutDuration  string
	AllowSignup      string
	CookieSecure     string
	CookieSameSite   string
	CookiePath       string
	CookieDomain     string
	AdminUsername    string
	AdminPassword    string
}

type OpaqueConfig struct {
	Secret string
}

type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (c OIDCConfig) Enabled() bool {
	return c.Issuer != "" && c.ClientID != "" && c.RedirectURL != ""
}

type EmbeddingConfig struct {
	APIKey string
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Addr:           getenv("LISTEN_ADDR", ":8080"),
			AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		},
		Auth: AuthConfig{
			JWTAccessSecret:  os.Getenv("JWT_ACCESS_SECRET"),
			JWTRefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
			JWTAccessTTL:     getenv("JWT_ACCESS_TTL", "15m"),
			JWTRefreshTTL:    getenv("JWT_REFRESH_TTL", "168h"),
			LockoutThreshold: getenv("LOCKOUT_THRESHOLD", "5"),
			LockoutDuration:  getenv("LOCKOUT_DURATION", "2h"),
			AllowSignup:      os.Getenv("ALLOW_SIGNUP"),
			CookieSecure:     os.Getenv("AUTH_COOKIE_SECURE"),
			CookieSameSite:   os.Getenv("AUTH_COOKIE_SAMESITE"),
			CookiePath:       os.Getenv("AUTH_COOKIE_PATH"),
			CookieDomain:     os.Getenv("AUTH_COOKIE_DOMAIN"),
			AdminUsername:    os.Getenv("ADMIN_USERNAME"),
			AdminPassword:    os.Getenv("ADMIN_PASSWORD"),
		},
		Opaque: OpaqueConfig{
			Secret: os.Getenv("OPAQUE_ID_SECRET"),
		},
		OIDC: OIDCConfig{
			Issuer:       os.Getenv("OIDC_ISSUER"),
			ClientID:     os.Getenv("OIDC_CLIENT_ID"),
			ClientSecret: os.Getenv("OIDC_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("OIDC_REDIRECT_URL"),
		},
		Embedding: EmbeddingConfig{
			APIKey: os.Getenv("AI_API_KEY"),
		},
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
