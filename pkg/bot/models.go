// Package bot drives synthetic players that fill empty seats: a stateless
// decision function scores a hand and picks a legal action, and a manager
// spawns/despawns bots per table to keep headcount at its configured
// target.
package bot

import (
	"math/rand"
	"time"

	"github.com/feltstack/feltstack/pkg/table"
)

// ID identifies one bot within a table.
type ID int32

// Config describes one bot seat.
type Config struct {
	ID            ID
	Name          string
	Difficulty    table.BotDifficulty
	TableID       int64
	StartingChips int64
}

// DifficultyParams tunes a bot's playstyle. Presets are grounded on the
// reference implementation's VPIP/PFR/aggression model: the fraction of
// hands a bot voluntarily plays, how often it raises rather than calls
// pre-flop, and how aggressively it bets once in a hand.
type DifficultyParams struct {
	VPIP              float64 // fraction of hands voluntarily played
	PFR               float64 // fraction of hands raised pre-flop
	AggressionFactor  float64 // bets+raises per call
	FoldTo3Bet        float64 // fraction of re-raises folded to
	CBetFrequency     float64 // continuation-bet frequency on the flop
	BaseThinkTime     time.Duration
	ThinkTimeVariance time.Duration
	Bluffs            bool
	BluffFrequency    float64
}

// EasyParams is a loose-passive player: plays many hands, rarely aggressive.
func EasyParams() DifficultyParams {
	return DifficultyParams{
		VPIP: 0.45, PFR: 0.10, AggressionFactor: 0.5, FoldTo3Bet: 0.70,
		CBetFrequency: 0.40, BaseThinkTime: 1500 * time.Millisecond,
		ThinkTimeVariance: 1000 * time.Millisecond, Bluffs: false,
	}
}

// StandardParams is a balanced tight-aggressive player.
func StandardParams() DifficultyParams {
	return DifficultyParams{
		VPIP: 0.30, PFR: 0.20, AggressionFactor: 1.5, FoldTo3Bet: 0.50,
		CBetFrequency: 0.65, BaseThinkTime: 2000 * time.Millisecond,
		ThinkTimeVariance: 1500 * time.Millisecond, Bluffs: true, BluffFrequency: 0.15,
	}
}

// TAGParams is very tight pre-flop, very aggressive once in a hand.
func TAGParams() DifficultyParams {
	return DifficultyParams{
		VPIP: 0.20, PFR: 0.18, AggressionFactor: 2.5, FoldTo3Bet: 0.35,
		CBetFrequency: 0.75, BaseThinkTime: 2500 * time.Millisecond,
		ThinkTimeVariance: 2000 * time.Millisecond, Bluffs: true, BluffFrequency: 0.25,
	}
}

// ParamsFor resolves a difficulty preset's parameters.
func ParamsFor(d table.BotDifficulty) DifficultyParams {
	switch d {
	case table.BotEasy:
		return EasyParams()
	case table.BotTAG:
		return TAGParams()
	default:
		return StandardParams()
	}
}

// Stats tracks a bot's lifetime performance, used for telemetry and anomaly
// detection.
type Stats struct {
	HandsPlayed       int
	HandsWon          int
	VPIPCount         int
	PFRCount          int
	ShowdownCount     int
	AggressiveActions int
	PassiveActions    int
	StartingChips     int64
	CurrentChips      int64
}

// VPIP is the fraction of hands this bot voluntarily put money into.
func (s Stats) VPIP() float64 {
	if s.HandsPlayed == 0 {
		return 0
	}
	return float64(s.VPIPCount) / float64(s.HandsPlayed)
}

// PFR is the fraction of hands this bot raised pre-flop.
func (s Stats) PFR() float64 {
	if s.HandsPlayed == 0 {
		return 0
	}
	return float64(s.PFRCount) / float64(s.HandsPlayed)
}

// AggressionFactor is the ratio of aggressive actions to passive ones.
func (s Stats) AggressionFactor() float64 {
	if s.PassiveActions == 0 {
		return float64(s.AggressiveActions)
	}
	return float64(s.AggressiveActions) / float64(s.PassiveActions)
}

// ShowdownRate is the fraction of hands this bot took to showdown.
func (s Stats) ShowdownRate() float64 {
	if s.HandsPlayed == 0 {
		return 0
	}
	return float64(s.ShowdownCount) / float64(s.HandsPlayed)
}

// WinRate is net chips won per hand.
func (s Stats) WinRate() float64 {
	if s.HandsPlayed == 0 {
		return 0
	}
	return float64(s.CurrentChips-s.StartingChips) / float64(s.HandsPlayed)
}

// Player is one bot's live state: its config, difficulty parameters, and
// running stats.
type Player struct {
	Config         Config
	Params         DifficultyParams
	Stats          Stats
	LastActionTime time.Time
}

// NewPlayer creates a bot player seeded with its starting chip count.
func NewPlayer(cfg Config) *Player {
	return &Player{
		Config: cfg,
		Params: ParamsFor(cfg.Difficulty),
		Stats: Stats{
			StartingChips: cfg.StartingChips,
			CurrentChips:  cfg.StartingChips,
		},
	}
}

// ThinkDelay returns a randomized pause before the bot acts, so its moves
// don't land suspiciously instantly.
func (p *Player) ThinkDelay() time.Duration {
	variance := time.Duration(0)
	if p.Params.ThinkTimeVariance > 0 {
		variance = time.Duration(rand.Int63n(int64(p.Params.ThinkTimeVariance)))
	}
	if rand.Intn(2) == 0 {
		variance = -variance
	}
	delay := p.Params.BaseThinkTime + variance
	if delay < 500*time.Millisecond {
		delay = 500 * time.Millisecond
	}
	return delay
}

// RecordHand updates stats after a hand the bot participated in.
func (p *Player) RecordHand(won bool, chips int64) {
	p.Stats.HandsPlayed++
	if won {
		p.Stats.HandsWon++
	}
	p.Stats.CurrentChips = chips
}
