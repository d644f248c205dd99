package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "01234567890123456789012345678901")
	t.Setenv("PASSWORD_PEPPER", "0123456789012345")
}

func TestFromEnvRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PASSWORD_PEPPER", "0123456789012345")
	_, err := FromEnv()
	require.Error(t, err)
	require.IsType(t, &MissingRequiredError{}, err)
}

func TestFromEnvRejectsShortJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "tooshort")
	t.Setenv("PASSWORD_PEPPER", "0123456789012345")
	_, err := FromEnv()
	require.Error(t, err)
	require.IsType(t, &InvalidError{}, err)
}

func TestFromEnvAppliesDefaults(t *testing.T) {
	setRequired(t)
	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:6969", cfg.Bind)
	require.Equal(t, 1, cfg.NumTables)
	require.Equal(t, 9, cfg.TableDefaults.MaxPlayers)
	require.Equal(t, int64(10), cfg.TableDefaults.SmallBlind)
}

func TestFromEnvRejectsBotCountAboveMaxPlayers(t *testing.T) {
	setRequired(t)
	t.Setenv("TABLE_MAX_PLAYERS", "4")
	t.Setenv("TARGET_BOT_COUNT", "10")
	_, err := FromEnv()
	require.Error(t, err)
	require.IsType(t, &InvalidError{}, err)
}

func TestFromEnvUnknownBotDifficultyFallsBackToStandard(t *testing.T) {
	setRequired(t)
	t.Setenv("DEFAULT_BOT_DIFFICULTY", "nonsense")
	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "standard", string(cfg.TableDefaults.BotDifficulty))
}
