package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserID identifies an account.
type UserID = int64

// User is an account row, never carrying the password hash.
type User struct {
	ID              UserID     `json:"id"`
	Username        string     `json:"username"`
	DisplayName     string     `json:"display_name"`
	AvatarURL       *string    `json:"avatar_url,omitempty"`
	Email           *string    `json:"email,omitempty"`
	Country         *string    `json:"country,omitempty"`
	Timezone        *string    `json:"timezone,omitempty"`
	TOSVersion      int        `json:"tos_version"`
	PrivacyVersion  int        `json:"privacy_version"`
	IsActive        bool       `json:"is_active"`
	IsAdmin         bool       `json:"is_admin"`
	CreatedAt       time.Time  `json:"created_at"`
	LastLogin       *time.Time `json:"last_login,omitempty"`
}

// RegisterRequest is the payload for account creation.
type RegisterRequest struct {
	Username    string
	Password    string
	DisplayName string
	Email       *string
}

// LoginRequest is the payload for authentication. TOTPCode is required only
// when the account has 2FA enabled.
type LoginRequest struct {
	Username string
	Password string
	TOTPCode *string
}

// SessionTokens is the pair handed back after a successful login or refresh.
type SessionTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AccessTokenClaims is the JWT payload for a short-lived access token.
type AccessTokenClaims struct {
	Subject  UserID `json:"sub"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// UsernameTakenError reports a registration attempt with a username already
// in use.
type UsernameTakenError struct{ Username string }

func (e *UsernameTakenError) Error() string { return fmt.Sprintf("auth: username %q is taken", e.Username) }

// EmailTakenError reports a registration attempt with an email already in
// use.
type EmailTakenError struct{ Email string }

func (e *EmailTakenError) Error() string { return fmt.Sprintf("auth: email %q is taken", e.Email) }

// InvalidUsernameError reports a username that fails format validation.
type InvalidUsernameError struct{ Reason string }

func (e *InvalidUsernameError) Error() string { return "auth: invalid username: " + e.Reason }

// WeakPasswordError reports a password that fails strength validation.
type WeakPasswordError struct{ Reason string }

func (e *WeakPasswordError) Error() string { return "auth: weak password: " + e.Reason }

// ErrUserNotFound is returned when no account matches a username or ID.
var ErrUserNotFound = fmt.Errorf("auth: user not found")

// ErrInvalidPassword is returned on a password mismatch.
var ErrInvalidPassword = fmt.Errorf("auth: invalid password")

// ErrTwoFactorRequired is returned when a login omits a TOTP code for an
// account that has 2FA enabled.
var ErrTwoFactorRequired = fmt.Errorf("auth: two-factor code required")

// ErrInvalidTwoFactorCode is returned when a TOTP code fails verification.
var ErrInvalidTwoFactorCode = fmt.Errorf("auth: invalid two-factor code")

// ErrInvalidRefreshToken is returned when a refresh token is unknown or
// doesn't match the presenting device.
var ErrInvalidRefreshToken = fmt.Errorf("auth: invalid refresh token")

// ErrSessionExpired is returned when a refresh token has expired.
var ErrSessionExpired = fmt.Errorf("auth: session expired")

// ErrHashingFailed wraps an unexpected Argon2 hashing failure.
var ErrHashingFailed = fmt.Errorf("auth: password hashing failed")
