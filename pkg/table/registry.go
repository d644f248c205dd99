package table

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/feltstack/feltstack/pkg/wallet"
)

// ErrTableNotFound is returned by Registry.Get/Close for an unknown or
// already-closed table ID.
var ErrTableNotFound = fmt.Errorf("table: not found")

// Registry owns the set of live table actors, backed by a `tables` row per
// actor for restart recovery. It is the only thing in the server that
// creates or closes an Actor.
type Registry struct {
	pool   *pgxpool.Pool
	wallet *wallet.Manager
	log    slog.Logger

	mu     sync.RWMutex
	actors map[int64]*Actor
}

// NewRegistry constructs an empty registry. Call LoadAll to repopulate it
// from persisted table rows after a restart.
func NewRegistry(pool *pgxpool.Pool, walletMgr *wallet.Manager, log slog.Logger) *Registry {
	if log == nil {
		log = slog.Disabled
	}
	return &Registry{
		pool:   pool,
		wallet: walletMgr,
		log:    log,
		actors: make(map[int64]*Actor),
	}
}

// Create persists cfg as a new table row and starts its actor.
func (r *Registry) Create(ctx context.Context, cfg Config) (*Actor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO tables (
			name, min_players, max_players, small_blind, big_blind,
			min_buy_in_bb, max_buy_in_bb, absolute_chip_cap, top_up_cooldown_hands,
			speed, bots_enabled, target_bot_count, bot_difficulty,
			is_private, passphrase_hash, invite_token, invite_expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id
	`,
		cfg.Name, cfg.MinPlayers, cfg.MaxPlayers, cfg.SmallBlind, cfg.BigBlind,
		cfg.MinBuyInBB, cfg.MaxBuyInBB, cfg.AbsoluteChipCap, cfg.TopUpCooldownHands,
		cfg.Speed, cfg.BotsEnabled, cfg.TargetBotCount, cfg.BotDifficulty,
		cfg.IsPrivate, nullableString(cfg.PassphraseHash), nullableString(cfg.InviteToken), cfg.InviteExpiresAt,
	).Scan(&cfg.ID)
	if err != nil {
		return nil, err
	}

	r.log.Infof("table %d created: %s", cfg.ID, cfg.Name)

	a := New(cfg, r.wallet, r.log)
	r.mu.Lock()
	r.actors[cfg.ID] = a
	r.mu.Unlock()
	return a, nil
}

// Get returns the live actor for tableID, or ErrTableNotFound.
func (r *Registry) Get(tableID int64) (*Actor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actors[tableID]
	if !ok {
		return nil, ErrTableNotFound
	}
	return a, nil
}

// List returns every currently live actor, in no particular order.
func (r *Registry) List() []*Actor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Actor, 0, len(r.actors))
	for _, a := range r.actors {
		out = append(out, a)
	}
	return out
}

// Close stops tableID's actor and marks its row closed. Seated players are
// not cashed out here; callers should drain the table with Leave first.
func (r *Registry) Close(ctx context.Context, tableID int64) error {
	r.mu.Lock()
	a, ok := r.actors[tableID]
	if ok {
		delete(r.actors, tableID)
	}
	r.mu.Unlock()
	if !ok {
		return ErrTableNotFound
	}

	if err := a.Close(ctx); err != nil {
		return err
	}
	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
	}

	_, err := r.pool.Exec(ctx, `UPDATE tables SET closed_at = now() WHERE id = $1`, tableID)
	return err
}

// LoadAll starts an actor for every table row not yet closed. It's meant to
// be called once, at server startup, after Migrate.
func (r *Registry) LoadAll(ctx context.Context) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, min_players, max_players, small_blind, big_blind,
		       min_buy_in_bb, max_buy_in_bb, absolute_chip_cap, top_up_cooldown_hands,
		       speed, bots_enabled, target_bot_count, bot_difficulty,
		       is_private, COALESCE(passphrase_hash, ''), COALESCE(invite_token, ''), invite_expires_at
		FROM tables
		WHERE closed_at IS NULL
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var loaded int
	for rows.Next() {
		var cfg Config
		if err := rows.Scan(
			&cfg.ID, &cfg.Name, &cfg.MinPlayers, &cfg.MaxPlayers, &cfg.SmallBlind, &cfg.BigBlind,
			&cfg.MinBuyInBB, &cfg.MaxBuyInBB, &cfg.AbsoluteChipCap, &cfg.TopUpCooldownHands,
			&cfg.Speed, &cfg.BotsEnabled, &cfg.TargetBotCount, &cfg.BotDifficulty,
			&cfg.IsPrivate, &cfg.PassphraseHash, &cfg.InviteToken, &cfg.InviteExpiresAt,
		); err != nil {
			return err
		}

		a := New(cfg, r.wallet, r.log)
		r.mu.Lock()
		r.actors[cfg.ID] = a
		r.mu.Unlock()
		loaded++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	r.log.Infof("loaded %d tables from storage", loaded)
	return nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
