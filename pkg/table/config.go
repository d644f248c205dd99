// Package table runs each poker table as an independent actor: a goroutine
// owning the table's state, reachable only through a message inbox, so
// callers never touch table internals from another goroutine.
package table

import (
	"fmt"
	"time"
)

// Speed controls how long a player has to act.
type Speed string

const (
	SpeedNormal Speed = "normal"
	SpeedTurbo  Speed = "turbo"
	SpeedHyper  Speed = "hyper"
)

// ActionTimeout returns the per-action clock for this speed.
func (s Speed) ActionTimeout() time.Duration {
	switch s {
	case SpeedTurbo:
		return 15 * time.Second
	case SpeedHyper:
		return 5 * time.Second
	default:
		return 30 * time.Second
	}
}

// BotDifficulty is a preset playstyle assigned to bot-filled seats.
type BotDifficulty string

const (
	BotEasy     BotDifficulty = "easy"
	BotStandard BotDifficulty = "standard"
	BotTAG      BotDifficulty = "tag"
)

// Config describes a table's ruleset and bot-fill policy. ID is assigned by
// the registry at creation time.
type Config struct {
	ID                 int64
	Name               string
	MinPlayers         int
	MaxPlayers         int
	SmallBlind         int64
	BigBlind           int64
	MinBuyInBB         int64
	MaxBuyInBB         int64
	AbsoluteChipCap    int64
	TopUpCooldownHands int
	Speed              Speed
	BotsEnabled        bool
	TargetBotCount     int
	BotDifficulty      BotDifficulty
	IsPrivate          bool
	PassphraseHash     string
	InviteToken        string
	InviteExpiresAt    *time.Time
}

// DefaultConfig mirrors the reference server's defaults: a public 10-max
// table at 50/100 blinds with bots backfilling to 5 players.
func DefaultConfig(name string) Config {
	return Config{
		Name:               name,
		MinPlayers:         2,
		MaxPlayers:         10,
		SmallBlind:         50,
		BigBlind:           100,
		MinBuyInBB:         20,
		MaxBuyInBB:         100,
		AbsoluteChipCap:    100000,
		TopUpCooldownHands: 20,
		Speed:              SpeedNormal,
		BotsEnabled:        true,
		TargetBotCount:     5,
		BotDifficulty:      BotStandard,
	}
}

// Validate checks the invariants the reference server enforces before a
// table is created.
func (c Config) Validate() error {
	if c.BigBlind <= c.SmallBlind {
		return fmt.Errorf("table: big blind must be greater than small blind")
	}
	if c.MaxBuyInBB <= c.MinBuyInBB {
		return fmt.Errorf("table: max buy-in must be greater than min buy-in")
	}
	if c.MaxPlayers <= 0 || c.MaxPlayers > 23 {
		return fmt.Errorf("table: max players must be between 1 and 23")
	}
	if c.AbsoluteChipCap <= 0 || c.AbsoluteChipCap > 100000 {
		return fmt.Errorf("table: absolute chip cap must be between 1 and 100,000")
	}
	return nil
}

// MinBuyInChips is the lowest buy-in this table will accept.
func (c Config) MinBuyInChips() int64 { return c.BigBlind * c.MinBuyInBB }

// MaxBuyInChips is the highest buy-in this table will accept, capped by
// AbsoluteChipCap.
func (c Config) MaxBuyInChips() int64 {
	bbMax := c.BigBlind * c.MaxBuyInBB
	if bbMax > c.AbsoluteChipCap {
		return c.AbsoluteChipCap
	}
	return bbMax
}
