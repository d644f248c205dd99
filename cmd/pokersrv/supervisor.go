package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/decred/slog"

	"github.com/feltstack/feltstack/pkg/bot"
	"github.com/feltstack/feltstack/pkg/table"
	"github.com/feltstack/feltstack/pkg/wallet"
)

// tableSupervisor owns one table's bot headcount and turn-taking: it keeps
// bot.Manager's roster at the table's target bot count, seating and cashing
// bots out of the live table.Actor as the roster changes, and drives each
// seated bot's turn through bot.Driver. This is the orchestration layer
// bot.Driver's doc comment defers to — whatever owns both a table.Registry
// and a bot.Manager per table.
type tableSupervisor struct {
	actor   *table.Actor
	botMgr  *bot.Manager
	driver  *bot.Driver
	wallet  *wallet.Manager
	log     slog.Logger
	tableID int64

	seated map[bot.ID]bool
}

func newTableSupervisor(actor *table.Actor, tableID int64, cfg table.Config, walletMgr *wallet.Manager, log slog.Logger) *tableSupervisor {
	botMgr := bot.NewManager(tableID, cfg, nil)
	return &tableSupervisor{
		actor:   actor,
		botMgr:  botMgr,
		driver:  bot.NewDriver(actor, botMgr),
		wallet:  walletMgr,
		log:     log,
		tableID: tableID,
		seated:  make(map[bot.ID]bool),
	}
}

// run drives bot headcount adjustment and bot turn-taking for this table
// until ctx is canceled.
func (s *tableSupervisor) run(ctx context.Context) {
	headcountTicker := time.NewTicker(5 * time.Second)
	defer headcountTicker.Stop()
	turnTicker := time.NewTicker(750 * time.Millisecond)
	defer turnTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-headcountTicker.C:
			s.adjustBots(ctx)
		case <-turnTicker.C:
			s.driveBotTurns(ctx)
		}
	}
}

func (s *tableSupervisor) adjustBots(ctx context.Context) {
	sv, err := s.actor.GetState(ctx)
	if err != nil {
		return
	}
	humanCount := sv.PlayerCount - len(s.seated)
	if humanCount < 0 {
		humanCount = 0
	}

	spawned, despawned, err := s.botMgr.AdjustBotCount(ctx, humanCount)
	if err != nil {
		s.log.Errorf("table %d: adjust bot count: %v", s.tableID, err)
		return
	}

	for _, id := range spawned {
		if err := s.seatBot(ctx, id); err != nil {
			s.log.Errorf("table %d: seat bot %d: %v", s.tableID, id, err)
		}
	}
	for _, id := range despawned {
		s.unseatBot(ctx, id)
	}
}

// seatBot gives a newly spawned bot a wallet funded for its stakes (if it
// doesn't already have one from a prior stint at this table) and joins it
// to the table through the same escrow path a human buy-in uses.
func (s *tableSupervisor) seatBot(ctx context.Context, id bot.ID) error {
	userID := botUserID(id)
	p := s.botMgr.Get(id)
	if p == nil {
		return fmt.Errorf("bot %d: not in roster", id)
	}

	var notFound *wallet.WalletNotFoundError
	if _, err := s.wallet.GetWallet(ctx, userID); errors.As(err, &notFound) {
		if err := s.wallet.CreateWallet(ctx, userID); err != nil {
			return fmt.Errorf("create wallet: %w", err)
		}
		seed := p.Config.StartingChips * 100
		if _, err := s.wallet.AdjustBalance(ctx, userID, seed, fmt.Sprintf("bot_seed_%d", userID), "bot bankroll seed"); err != nil {
			return fmt.Errorf("seed wallet: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("check wallet: %w", err)
	}

	if err := s.actor.Join(ctx, userID, p.Config.Name, p.Config.StartingChips, ""); err != nil {
		return fmt.Errorf("join: %w", err)
	}
	s.seated[id] = true
	return nil
}

func (s *tableSupervisor) unseatBot(ctx context.Context, id bot.ID) {
	if !s.seated[id] {
		return
	}
	if err := s.actor.Leave(ctx, botUserID(id)); err != nil {
		s.log.Errorf("table %d: leave bot %d: %v", s.tableID, id, err)
	}
	delete(s.seated, id)
}

func (s *tableSupervisor) driveBotTurns(ctx context.Context) {
	for id := range s.seated {
		if _, err := s.driver.MaybeAct(ctx, botUserID(id)); err != nil {
			s.log.Errorf("table %d: bot %d act: %v", s.tableID, id, err)
		}
	}
}
