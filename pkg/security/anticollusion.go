// Package security implements shadow-flagging heuristics that watch for
// collusion between seats without ever blocking play: every detection just
// writes a row an operator can review later.
package security

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// FlagType names the heuristic that raised a flag.
type FlagType string

const (
	// FlagSameIPTable marks two accounts sharing a client IP seated at the
	// same table simultaneously.
	FlagSameIPTable FlagType = "same_ip_table"
)

// FlagSeverity is a coarse triage hint for whoever reviews flags.
type FlagSeverity string

const (
	SeverityLow    FlagSeverity = "low"
	SeverityMedium FlagSeverity = "medium"
	SeverityHigh   FlagSeverity = "high"
)

// Detector tracks per-user IPs and per-table seating to raise
// CollusionFlag rows, the Go analogue of the reference AntiCollusionDetector
// (user_ips/table_players maps guarded by a single mutex instead of two
// async RwLocks).
type Detector struct {
	pool *pgxpool.Pool

	mu           sync.RWMutex
	userIPs      map[int64]string
	tablePlayers map[int64]map[int64]bool
}

// NewDetector builds a Detector backed by pool. A nil pool is valid and
// disables persistence (flags are still computed, just not written) — used
// by tests that don't stand up a database.
func NewDetector(pool *pgxpool.Pool) *Detector {
	return &Detector{
		pool:         pool,
		userIPs:      make(map[int64]string),
		tablePlayers: make(map[int64]map[int64]bool),
	}
}

// RegisterUserIP records the client IP a user most recently connected from,
// typically called on login.
func (d *Detector) RegisterUserIP(userID int64, ip string) {
	if ip == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.userIPs[userID] = ip
}

// TrackJoin records userID as seated at tableID and checks whether any other
// seat at that table shares userID's registered IP, raising a
// FlagSameIPTable flag if so. The join itself is never blocked — a false
// positive (e.g. a household with two players) just produces a flag for an
// operator to dismiss.
func (d *Detector) TrackJoin(ctx context.Context, tableID, userID int64) {
	d.mu.Lock()
	players, ok := d.tablePlayers[tableID]
	if !ok {
		players = make(map[int64]bool)
		d.tablePlayers[tableID] = players
	}
	userIP, hasIP := d.userIPs[userID]
	var collidesWith int64
	found := false
	if hasIP {
		for other := range players {
			if other == userID {
				continue
			}
			if ip, ok := d.userIPs[other]; ok && ip == userIP {
				collidesWith = other
				found = true
				break
			}
		}
	}
	players[userID] = true
	d.mu.Unlock()

	if found {
		d.raise(ctx, userID, tableID, FlagSameIPTable, SeverityMedium, map[string]any{
			"other_user_id": collidesWith,
		})
	}
}

// TrackLeave removes userID from tableID's tracked seating.
func (d *Detector) TrackLeave(tableID, userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if players, ok := d.tablePlayers[tableID]; ok {
		delete(players, userID)
	}
}

func (d *Detector) raise(ctx context.Context, userID, tableID int64, flagType FlagType, severity FlagSeverity, details map[string]any) {
	if d.pool == nil {
		return
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return
	}
	_, _ = d.pool.Exec(ctx, `
		INSERT INTO collusion_flags (user_id, table_id, flag_type, severity, details)
		VALUES ($1, $2, $3, $4, $5)`,
		userID, tableID, string(flagType), string(severity), payload)
}
