package bot

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/feltstack/feltstack/pkg/table"
)

// Manager keeps one table's bot headcount at its configured target,
// spawning and despawning Player entries as humans join and leave.
type Manager struct {
	tableID int64
	cfg     table.Config
	pool    *pgxpool.Pool

	mu        sync.RWMutex
	bots      map[ID]*Player
	nextBotID ID
}

// NewManager creates an empty bot manager for one table.
func NewManager(tableID int64, cfg table.Config, pool *pgxpool.Pool) *Manager {
	return &Manager{
		tableID:   tableID,
		cfg:       cfg,
		pool:      pool,
		bots:      make(map[ID]*Player),
		nextBotID: 1,
	}
}

// stakesTier buckets a table by its big blind, used to cap bot ratios at
// higher stakes.
func (m *Manager) stakesTier() string {
	switch {
	case m.cfg.BigBlind <= 10:
		return "micro"
	case m.cfg.BigBlind <= 50:
		return "low"
	case m.cfg.BigBlind <= 200:
		return "mid"
	case m.cfg.BigBlind <= 1000:
		return "high"
	default:
		return "nosebleed"
	}
}

// AdjustBotCount spawns or despawns bots to bring total headcount
// (humans + bots) to the table's target, given the current human count. It
// returns the IDs spawned (positive adjustment) or despawned (negative
// adjustment) so the caller can seat or cash out the corresponding table
// players; the two cases are distinguished by which of spawnedIDs and
// despawnedIDs is non-empty. At mid stakes and above, bots are despawned
// entirely when fewer than two humans are seated, so bots never prop up a
// table on their own at meaningful stakes.
func (m *Manager) AdjustBotCount(ctx context.Context, humanCount int) (spawnedIDs, despawnedIDs []ID, err error) {
	if !m.cfg.BotsEnabled {
		return nil, nil, nil
	}

	m.mu.RLock()
	botCount := len(m.bots)
	m.mu.RUnlock()

	tier := m.stakesTier()
	if (tier == "mid" || tier == "high" || tier == "nosebleed") && humanCount < 2 {
		ids, err := m.despawnAll(ctx)
		return nil, ids, err
	}

	target := m.cfg.TargetBotCount
	total := humanCount + botCount
	switch {
	case total < target:
		ids, err := m.Spawn(ctx, target-total)
		return ids, nil, err
	case total > target && botCount > 0:
		toDespawn := total - target
		if toDespawn > botCount {
			toDespawn = botCount
		}
		ids, err := m.Despawn(ctx, toDespawn)
		return nil, ids, err
	default:
		return nil, nil, nil
	}
}

// Spawn adds count new bot players, returning their assigned IDs.
func (m *Manager) Spawn(ctx context.Context, count int) ([]ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	spawned := make([]ID, 0, count)
	for i := 0; i < count; i++ {
		id := m.nextBotID
		m.nextBotID++

		cfg := Config{
			ID:            id,
			Name:          generateBotName(id),
			Difficulty:    m.cfg.BotDifficulty,
			TableID:       m.tableID,
			StartingChips: m.cfg.MinBuyInChips(),
		}
		m.bots[id] = NewPlayer(cfg)
		spawned = append(spawned, id)
	}
	return spawned, nil
}

// Despawn removes up to count bots, saving each one's telemetry first, and
// returns the IDs removed so the caller can cash them out of the table
// before the next poll finds their seat orphaned.
func (m *Manager) Despawn(ctx context.Context, count int) ([]ID, error) {
	m.mu.Lock()
	ids := make([]ID, 0, count)
	for id := range m.bots {
		if len(ids) >= count {
			break
		}
		ids = append(ids, id)
	}
	m.mu.Unlock()

	despawned := make([]ID, 0, len(ids))
	for _, id := range ids {
		m.mu.Lock()
		p, ok := m.bots[id]
		if ok {
			delete(m.bots, id)
		}
		m.mu.Unlock()
		if !ok {
			continue
		}

		if err := m.saveTelemetry(ctx, p); err != nil {
			return despawned, err
		}
		despawned = append(despawned, id)
	}
	return despawned, nil
}

func (m *Manager) despawnAll(ctx context.Context) ([]ID, error) {
	m.mu.RLock()
	count := len(m.bots)
	m.mu.RUnlock()
	return m.Despawn(ctx, count)
}

// Get returns a bot by ID, or nil if it's not active.
func (m *Manager) Get(id ID) *Player {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bots[id]
}

// GetByUsername returns a bot by its generated display name.
func (m *Manager) GetByUsername(name string) *Player {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.bots {
		if p.Config.Name == name {
			return p
		}
	}
	return nil
}

// IDs returns every active bot's ID, in no particular order.
func (m *Manager) IDs() []ID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]ID, 0, len(m.bots))
	for id := range m.bots {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the current number of active bots.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bots)
}

func (m *Manager) saveTelemetry(ctx context.Context, p *Player) error {
	if m.pool == nil {
		return nil
	}
	_, err := m.pool.Exec(ctx, `
		INSERT INTO bot_telemetry (
			bot_id, table_id, stakes_tier, difficulty, hands_played,
			win_rate, vpip, pfr, aggression_factor, showdown_rate
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		int32(p.Config.ID), p.Config.TableID, m.stakesTier(), string(p.Config.Difficulty),
		p.Stats.HandsPlayed, p.Stats.WinRate(), p.Stats.VPIP(), p.Stats.PFR(),
		p.Stats.AggressionFactor(), p.Stats.ShowdownRate(),
	)
	return err
}

func generateBotName(id ID) string {
	prefixes := []string{"Bot", "AI", "Chip", "Card", "Poker", "Stack", "River", "Flop", "Turn", "Dealer"}
	suffixes := []string{"Master", "Pro", "King", "Queen", "Ace", "Jack", "Shark", "Fish", "Whale", "Player"}
	return fmt.Sprintf("%s%s_%d", prefixes[rand.Intn(len(prefixes))], suffixes[rand.Intn(len(suffixes))], id)
}

// Anomaly describes a bot whose observed stats have drifted from its
// configured difficulty preset.
type Anomaly struct {
	BotID   ID
	Message string
}

// CheckAnomalies flags bots whose observed VPIP, aggression, or win rate
// deviate significantly from their difficulty preset, for offline review.
func (m *Manager) CheckAnomalies() []Anomaly {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var anomalies []Anomaly
	for id, p := range m.bots {
		if p.Stats.HandsPlayed == 0 {
			continue
		}
		expected := p.Params
		if d := p.Stats.VPIP() - expected.VPIP; d > 0.15 || d < -0.15 {
			anomalies = append(anomalies, Anomaly{BotID: id, Message: fmt.Sprintf(
				"VPIP anomaly: expected %.1f%%, observed %.1f%%", expected.VPIP*100, p.Stats.VPIP()*100)})
		}
		if d := p.Stats.AggressionFactor() - expected.AggressionFactor; d > 0.5 || d < -0.5 {
			anomalies = append(anomalies, Anomaly{BotID: id, Message: fmt.Sprintf(
				"aggression anomaly: expected %.2f, observed %.2f", expected.AggressionFactor, p.Stats.AggressionFactor())})
		}
		if p.Stats.WinRate() > float64(m.cfg.BigBlind)*3 {
			anomalies = append(anomalies, Anomaly{BotID: id, Message: fmt.Sprintf(
				"excessive win rate: %.2f chips/hand", p.Stats.WinRate())})
		}
	}
	return anomalies
}
