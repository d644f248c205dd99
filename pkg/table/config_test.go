package table

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig("test table")
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadBlinds(t *testing.T) {
	cfg := DefaultConfig("bad blinds")
	cfg.SmallBlind = 100
	cfg.BigBlind = 100
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadBuyInRange(t *testing.T) {
	cfg := DefaultConfig("bad buyin")
	cfg.MinBuyInBB = 100
	cfg.MaxBuyInBB = 50
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsOversizedTable(t *testing.T) {
	cfg := DefaultConfig("too big")
	cfg.MaxPlayers = 24
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsChipCapOutOfRange(t *testing.T) {
	cfg := DefaultConfig("cap")
	cfg.AbsoluteChipCap = 0
	require.Error(t, cfg.Validate())
}

func TestBuyInChipsCappedByAbsoluteChipCap(t *testing.T) {
	cfg := DefaultConfig("capped")
	cfg.BigBlind = 100
	cfg.MaxBuyInBB = 10000
	cfg.AbsoluteChipCap = 5000

	require.Equal(t, cfg.BigBlind*cfg.MinBuyInBB, cfg.MinBuyInChips())
	require.Equal(t, int64(5000), cfg.MaxBuyInChips())
}

func TestSpeedActionTimeout(t *testing.T) {
	require.Equal(t, 30, int(SpeedNormal.ActionTimeout().Seconds()))
	require.Equal(t, 15, int(SpeedTurbo.ActionTimeout().Seconds()))
	require.Equal(t, 5, int(SpeedHyper.ActionTimeout().Seconds()))
}
