package model

import "time"

type AuthRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

type AuthResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type AuthConfigResponse struct {
	AllowSignup bool `json:"allowSignup"`
	OIDCEnabled bool `json:"oidcEnabled"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AuthUser is the authenticated identity attached to a request after
// token verification.
type AuthUser struct {
	ID      int64
	LoginID string
}

// User is the durable account record. FailedAttempts and LockedUntil
// carry the lockout state machine: LockedUntil in the future means
// LOCKED, anything else means OPEN.
type User struct {
	ID             int64
	LoginID        string
	Email          string
	DisplayName    string
	PasswordHash   string
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserSummary is the public projection of an account embedded in
// catalog payloads.
type UserSummary struct {
	ID          int64
	DisplayName string
}
