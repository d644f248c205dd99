package auth

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	moduledb "github.com/feltstack/feltstack/pkg/db"
)

func setupManager(t *testing.T) *Manager {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping auth integration test")
	}

	ctx := context.Background()
	d, err := moduledb.Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, moduledb.Migrate(ctx, d))
	t.Cleanup(func() { d.Close() })

	return NewManager(d.Pool, "test-pepper", "test-jwt-secret")
}

func testUsername(t *testing.T) string {
	t.Helper()
	return "u_" + uuid.NewString()[:8]
}

func TestRegisterAndLogin(t *testing.T) {
	mgr := setupManager(t)
	ctx := context.Background()
	username := testUsername(t)

	user, err := mgr.Register(ctx, RegisterRequest{
		Username:    username,
		Password:    "Password123!",
		DisplayName: "Test User",
	})
	require.NoError(t, err)
	require.Equal(t, username, user.Username)

	_, tokens, err := mgr.Login(ctx, LoginRequest{Username: username, Password: "Password123!"}, "device-a")
	require.NoError(t, err)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)

	claims, err := mgr.VerifyAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.Subject)
}

func TestLoginWrongPassword(t *testing.T) {
	mgr := setupManager(t)
	ctx := context.Background()
	username := testUsername(t)

	_, err := mgr.Register(ctx, RegisterRequest{Username: username, Password: "Password123!", DisplayName: "x"})
	require.NoError(t, err)

	_, _, err = mgr.Login(ctx, LoginRequest{Username: username, Password: "WrongPassword1"}, "device-a")
	require.ErrorIs(t, err, ErrInvalidPassword)
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	mgr := setupManager(t)
	_, err := mgr.Register(context.Background(), RegisterRequest{
		Username: testUsername(t), Password: "weak", DisplayName: "x",
	})
	require.Error(t, err)
	var weak *WeakPasswordError
	require.ErrorAs(t, err, &weak)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	mgr := setupManager(t)
	ctx := context.Background()
	username := testUsername(t)

	_, err := mgr.Register(ctx, RegisterRequest{Username: username, Password: "Password123!", DisplayName: "x"})
	require.NoError(t, err)

	_, err = mgr.Register(ctx, RegisterRequest{Username: username, Password: "Password123!", DisplayName: "y"})
	require.Error(t, err)
	var taken *UsernameTakenError
	require.ErrorAs(t, err, &taken)
}

func TestRefreshTokenRotatesAndRejectsReuse(t *testing.T) {
	mgr := setupManager(t)
	ctx := context.Background()
	username := testUsername(t)

	_, err := mgr.Register(ctx, RegisterRequest{Username: username, Password: "Password123!", DisplayName: "x"})
	require.NoError(t, err)

	_, tokens, err := mgr.Login(ctx, LoginRequest{Username: username, Password: "Password123!"}, "device-a")
	require.NoError(t, err)

	newTokens, err := mgr.RefreshToken(ctx, tokens.RefreshToken, "device-a")
	require.NoError(t, err)
	require.NotEqual(t, tokens.RefreshToken, newTokens.RefreshToken)

	// The rotated-out token must no longer work.
	_, err = mgr.RefreshToken(ctx, tokens.RefreshToken, "device-a")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshTokenRejectsDeviceMismatch(t *testing.T) {
	mgr := setupManager(t)
	ctx := context.Background()
	username := testUsername(t)

	_, err := mgr.Register(ctx, RegisterRequest{Username: username, Password: "Password123!", DisplayName: "x"})
	require.NoError(t, err)

	_, tokens, err := mgr.Login(ctx, LoginRequest{Username: username, Password: "Password123!"}, "device-a")
	require.NoError(t, err)

	_, err = mgr.RefreshToken(ctx, tokens.RefreshToken, "device-b")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestTwoFactorEnrollmentRequiresCodeAtLogin(t *testing.T) {
	mgr := setupManager(t)
	ctx := context.Background()
	username := testUsername(t)

	user, err := mgr.Register(ctx, RegisterRequest{Username: username, Password: "Password123!", DisplayName: "x"})
	require.NoError(t, err)

	key, err := mgr.EnrollTwoFactor(ctx, user.ID, username)
	require.NoError(t, err)

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)
	require.NoError(t, mgr.ConfirmTwoFactor(ctx, user.ID, code))

	_, _, err = mgr.Login(ctx, LoginRequest{Username: username, Password: "Password123!"}, "device-a")
	require.ErrorIs(t, err, ErrTwoFactorRequired)

	code, err = totp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)
	_, _, err = mgr.Login(ctx, LoginRequest{
		Username: username, Password: "Password123!", TOTPCode: &code,
	}, "device-a")
	require.NoError(t, err)
}
