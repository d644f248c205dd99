package bot

import (
	"context"
	"time"

	"github.com/feltstack/feltstack/pkg/poker"
	"github.com/feltstack/feltstack/pkg/table"
	"github.com/feltstack/feltstack/pkg/view"
)

// TableActor is the slice of table.Actor a driver needs: view construction,
// state metadata, and action submission. Declared locally so decision logic
// can be unit-tested against a fake without spinning up a real actor.
type TableActor interface {
	GetView(ctx context.Context, userID int64) (*view.GameView, error)
	TakeAction(ctx context.Context, userID int64, action table.Action, amount int64) error
}

// Driver watches one table's turn order and acts on behalf of every seated
// bot, the way the reference design's in-process bot loop polls the current
// player and submits a decision through the same path a human client would.
// It depends only on the TableActor interface, not *table.Actor directly, so
// that pkg/table (which pkg/bot already imports for Action and BotDifficulty)
// never has to import pkg/bot back: whatever owns both a table.Registry and a
// bot.Manager per table — the server bootstrap — ticks MaybeAct for each bot
// seat on an interval.
type Driver struct {
	actor   TableActor
	manager *Manager
}

// NewDriver ties a bot manager to the table actor it plays on.
func NewDriver(actor TableActor, manager *Manager) *Driver {
	return &Driver{actor: actor, manager: manager}
}

// MaybeAct checks whether the current player on the clock is a bot and, if
// so, decides and submits one action. It returns false if nothing was a
// bot's turn. Callers poll this on a short interval (the table supervisor's
// turn ticker); a real turn only ever sees one bot act, since TakeAction
// advances CurrentPlayer for the next poll.
func (d *Driver) MaybeAct(ctx context.Context, userID int64) (bool, error) {
	// Bots sit at the table under negative synthetic user IDs, while the
	// roster is keyed by the positive bot ID.
	botID := ID(userID)
	if userID < 0 {
		botID = ID(-userID)
	}
	botPlayer := d.manager.Get(botID)
	if botPlayer == nil {
		return false, nil
	}

	gv, err := d.actor.GetView(ctx, userID)
	if err != nil {
		return false, err
	}
	if gv.CurrentPlayer != currentPlayerKey(userID) {
		return false, nil
	}

	situation, ok := buildSituation(gv, userID)
	if !ok {
		return false, nil
	}

	select {
	case <-time.After(botPlayer.ThinkDelay()):
	case <-ctx.Done():
		return false, ctx.Err()
	}

	decision := Decide(situation, botPlayer.Params)
	if err := d.actor.TakeAction(ctx, userID, decision.Action, decision.Amount); err != nil {
		return false, err
	}

	recordAction(botPlayer, decision.Action)
	return true, nil
}

func recordAction(p *Player, action table.Action) {
	switch action {
	case table.ActionBet, table.ActionRaise, table.ActionAllIn:
		p.Stats.AggressiveActions++
	case table.ActionCall, table.ActionCheck:
		p.Stats.PassiveActions++
	}
}

func buildSituation(gv *view.GameView, userID int64) (Situation, bool) {
	key := currentPlayerKey(userID)
	var self *poker.PlayerView
	playersRemaining := 0
	for _, p := range gv.Players {
		if !p.Folded {
			playersRemaining++
		}
		if p.ID == key {
			self = p
		}
	}
	if self == nil || len(self.Hand) < 2 {
		return Situation{}, false
	}

	hole := make([]poker.Card, 0, len(self.Hand))
	for _, cv := range self.Hand {
		hole = append(hole, poker.NewCardFromSuitValue(poker.Suit(cv.Suit), poker.Value(cv.Value)))
	}
	board := make([]poker.Card, 0, len(gv.Board))
	for _, cv := range gv.Board {
		board = append(board, poker.NewCardFromSuitValue(poker.Suit(cv.Suit), poker.Value(cv.Value)))
	}

	callAmount := int64(0)
	if diff := currentBetDiff(gv, self); diff > 0 {
		callAmount = diff
	}

	return Situation{
		HoleCards:        hole,
		Board:            board,
		PotSize:          gv.Pot.Size,
		CallAmount:       callAmount,
		OwnStack:         self.Balance,
		BigBlind:         gv.Blinds.Big,
		CanCheck:         callAmount == 0,
		Position:         gv.PlayPositions[key],
		PlayersRemaining: playersRemaining,
	}, true
}

func currentBetDiff(gv *view.GameView, self *poker.PlayerView) int64 {
	highest := self.CurrentBet
	for _, p := range gv.Players {
		if p.CurrentBet > highest {
			highest = p.CurrentBet
		}
	}
	return highest - self.CurrentBet
}

func currentPlayerKey(userID int64) string {
	return table.UserIDKey(userID)
}
