// Package auth implements account registration, password + TOTP login,
// JWT access tokens, and refresh-token sessions.
package auth

import (
	"context"
	"errors"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	accessTokenDuration  = 15 * time.Minute
	refreshTokenDuration = 7 * 24 * time.Hour
	defaultStartBalance  = 10000
)

// Manager is the authentication and session store, backed by a Postgres
// pool.
type Manager struct {
	pool      *pgxpool.Pool
	pepper    string
	jwtSecret []byte
	issuer    string
}

// NewManager builds a Manager. pepper is a server-side secret appended to
// every password before hashing; jwtSecret signs access tokens.
func NewManager(pool *pgxpool.Pool, pepper, jwtSecret string) *Manager {
	return &Manager{
		pool:      pool,
		pepper:    pepper,
		jwtSecret: []byte(jwtSecret),
		issuer:    "feltstack",
	}
}

// Register creates an account and its wallet, enforcing username/password
// rules and uniqueness.
func (m *Manager) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if err := validateUsername(req.Username); err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}

	var exists bool
	err := m.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, req.Username).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &UsernameTakenError{Username: req.Username}
	}

	if req.Email != nil {
		err := m.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, *req.Email).Scan(&exists)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, &EmailTakenError{Email: *req.Email}
		}
	}

	passwordHash, err := hashPassword(req.Password, m.pepper)
	if err != nil {
		return nil, err
	}

	var user User
	err = pgx.BeginTxFunc(ctx, m.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO users (username, password_hash, display_name, email)
			VALUES ($1, $2, $3, $4)
			RETURNING id, username, display_name, avatar_url, email, country, timezone,
			          tos_version, privacy_version, is_active, is_admin, created_at, last_login
		`, req.Username, passwordHash, req.DisplayName, req.Email).Scan(
			&user.ID, &user.Username, &user.DisplayName, &user.AvatarURL, &user.Email,
			&user.Country, &user.Timezone, &user.TOSVersion, &user.PrivacyVersion,
			&user.IsActive, &user.IsAdmin, &user.CreatedAt, &user.LastLogin)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `INSERT INTO wallets (user_id, balance) VALUES ($1, $2)`, user.ID, defaultStartBalance)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates a username/password (and TOTP code, if 2FA is
// enabled) and issues a fresh session.
func (m *Manager) Login(ctx context.Context, req LoginRequest, deviceFingerprint string) (*User, *SessionTokens, error) {
	var user User
	var passwordHash string
	err := m.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, display_name, avatar_url, email, country, timezone,
		       tos_version, privacy_version, is_active, is_admin, created_at, last_login
		FROM users
		WHERE username = $1
	`, req.Username).Scan(
		&user.ID, &user.Username, &passwordHash, &user.DisplayName, &user.AvatarURL, &user.Email,
		&user.Country, &user.Timezone, &user.TOSVersion, &user.PrivacyVersion,
		&user.IsActive, &user.IsAdmin, &user.CreatedAt, &user.LastLogin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrUserNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	if err := verifyPassword(req.Password, m.pepper, passwordHash); err != nil {
		return nil, nil, err
	}

	var secret string
	var enabled bool
	err = m.pool.QueryRow(ctx, `SELECT secret, enabled FROM two_factor_auth WHERE user_id = $1`, user.ID).Scan(&secret, &enabled)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, err
	}
	if enabled {
		if req.TOTPCode == nil {
			return nil, nil, ErrTwoFactorRequired
		}
		if !totp.Validate(*req.TOTPCode, secret) {
			return nil, nil, ErrInvalidTwoFactorCode
		}
	}

	if _, err := m.pool.Exec(ctx, `UPDATE users SET last_login = now() WHERE id = $1`, user.ID); err != nil {
		return nil, nil, err
	}

	tokens, err := m.createSession(ctx, user.ID, user.Username, user.IsAdmin, deviceFingerprint)
	if err != nil {
		return nil, nil, err
	}
	return &user, tokens, nil
}

func (m *Manager) createSession(ctx context.Context, userID UserID, username string, isAdmin bool, deviceFingerprint string) (*SessionTokens, error) {
	accessToken, err := m.generateAccessToken(userID, username, isAdmin)
	if err != nil {
		return nil, err
	}

	refreshToken := uuid.NewString()
	expiresAt := time.Now().Add(refreshTokenDuration)
	_, err = m.pool.Exec(ctx, `
		INSERT INTO sessions (token, user_id, device_fingerprint, expires_at)
		VALUES ($1, $2, $3, $4)
	`, refreshToken, userID, deviceFingerprint, expiresAt)
	if err != nil {
		return nil, err
	}

	return &SessionTokens{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// RefreshToken rotates a refresh token into a new access/refresh pair,
// rejecting mismatched devices and expired sessions.
func (m *Manager) RefreshToken(ctx context.Context, refreshToken, deviceFingerprint string) (*SessionTokens, error) {
	var userID UserID
	var storedFingerprint string
	var expiresAt time.Time
	err := m.pool.QueryRow(ctx, `
		SELECT user_id, device_fingerprint, expires_at FROM sessions WHERE token = $1
	`, refreshToken).Scan(&userID, &storedFingerprint, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}

	if time.Now().After(expiresAt) {
		_, _ = m.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, refreshToken)
		return nil, ErrSessionExpired
	}
	if storedFingerprint != deviceFingerprint {
		return nil, ErrInvalidRefreshToken
	}

	var username string
	var isAdmin bool
	err = m.pool.QueryRow(ctx, `SELECT username, is_admin FROM users WHERE id = $1`, userID).Scan(&username, &isAdmin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if _, err := m.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, refreshToken); err != nil {
		return nil, err
	}

	return m.createSession(ctx, userID, username, isAdmin, deviceFingerprint)
}

// Logout invalidates a refresh token.
func (m *Manager) Logout(ctx context.Context, refreshToken string) error {
	_, err := m.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, refreshToken)
	return err
}

// VerifyAccessToken parses and validates a JWT access token, returning its
// claims.
func (m *Manager) VerifyAccessToken(token string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (m *Manager) generateAccessToken(userID UserID, username string, isAdmin bool) (string, error) {
	now := time.Now()
	claims := AccessTokenClaims{
		Subject:  userID,
		Username: username,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenDuration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.jwtSecret)
}

// EnrollTwoFactor generates a new TOTP secret for userID and stores it
// disabled; the account must call ConfirmTwoFactor with a valid code before
// it is enforced at login.
func (m *Manager) EnrollTwoFactor(ctx context.Context, userID UserID, accountName string) (*otp.Key, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: accountName,
	})
	if err != nil {
		return nil, err
	}

	_, err = m.pool.Exec(ctx, `
		INSERT INTO two_factor_auth (user_id, secret, enabled)
		VALUES ($1, $2, false)
		ON CONFLICT (user_id) DO UPDATE SET secret = EXCLUDED.secret, enabled = false
	`, userID, key.Secret())
	if err != nil {
		return nil, err
	}
	return key, nil
}

// ConfirmTwoFactor verifies a TOTP code against the pending secret and, on
// success, enables 2FA enforcement at login.
func (m *Manager) ConfirmTwoFactor(ctx context.Context, userID UserID, code string) error {
	var secret string
	err := m.pool.QueryRow(ctx, `SELECT secret FROM two_factor_auth WHERE user_id = $1`, userID).Scan(&secret)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if !totp.Validate(code, secret) {
		return ErrInvalidTwoFactorCode
	}

	_, err = m.pool.Exec(ctx, `UPDATE two_factor_auth SET enabled = true WHERE user_id = $1`, userID)
	return err
}

func validateUsername(username string) error {
	if len(username) < 3 || len(username) > 20 {
		return &InvalidUsernameError{Reason: "username must be 3-20 characters"}
	}
	for _, r := range username {
		if !(r >= 'a' && r <= 'z') && !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') && r != '_' {
			return &InvalidUsernameError{Reason: "username can only contain letters, numbers, and underscores"}
		}
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return &WeakPasswordError{Reason: "password must be at least 8 characters"}
	}

	var hasDigit, hasUpper, hasLower bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		}
	}
	if !hasDigit || !hasUpper || !hasLower {
		return &WeakPasswordError{Reason: "password must contain at least one number, one uppercase and one lowercase letter"}
	}
	return nil
}
