package bot

import (
	"math/rand"

	"github.com/feltstack/feltstack/pkg/poker"
	"github.com/feltstack/feltstack/pkg/table"
)

// Situation is everything a decision needs to know about the hand in
// progress, mirroring the reference design's stateless decision inputs:
// hole cards, board, pot size, the amount owed to continue, the bot's own
// stack, whether checking is legal, seat position, and how many players
// remain in the hand.
type Situation struct {
	HoleCards        []poker.Card
	Board            []poker.Card
	PotSize          int64
	CallAmount       int64
	OwnStack         int64
	BigBlind         int64
	CanCheck         bool
	Position         int
	PlayersRemaining int
}

// Decision is the bot's chosen move.
type Decision struct {
	Action table.Action
	Amount int64
}

var rankValue = map[string]int{
	"2": 2, "3": 3, "4": 4, "5": 5, "6": 6, "7": 7, "8": 8, "9": 9, "10": 10,
	"J": 11, "Q": 12, "K": 13, "A": 14,
}

// handStrength scores a hand 0..1, higher is stronger. Pre-flop it uses a
// hole-card heuristic (pair/suited/connected/high-card bonuses); once three
// or more board cards are out it defers to the hand evaluator.
func handStrength(s Situation) float64 {
	if len(s.Board) < 3 || len(s.HoleCards) < 2 {
		return preFlopStrength(s.HoleCards)
	}

	hv, err := poker.EvaluateHand(s.HoleCards, s.Board)
	if err != nil {
		return preFlopStrength(s.HoleCards)
	}
	return (float64(hv.Rank) + 1) / float64(poker.RoyalFlush+1)
}

func preFlopStrength(hole []poker.Card) float64 {
	if len(hole) < 2 {
		return 0
	}
	a, b := rankValue[hole[0].GetValue()], rankValue[hole[1].GetValue()]
	hi, lo := a, b
	if lo > hi {
		hi, lo = lo, hi
	}

	score := float64(hi+lo) / 28.0
	if a == b {
		score += 0.15 + float64(hi)*0.01
	}
	if hole[0].GetSuit() == hole[1].GetSuit() {
		score += 0.05
	}
	gap := hi - lo
	switch {
	case gap <= 1:
		score += 0.05
	case gap >= 4:
		score -= 0.05
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Decide picks a legal action for s given a bot's playstyle. It is a pure
// function of its inputs plus the process-global random source used for
// bet sizing variance and bluff rolls, matching the reference design's
// stateless-per-call decision shape.
func Decide(s Situation, params DifficultyParams) Decision {
	strength := handStrength(s)
	bluffing := params.Bluffs && rand.Float64() < params.BluffFrequency

	if len(s.Board) == 0 {
		return decidePreFlop(s, params, strength, bluffing)
	}
	return decidePostFlop(s, params, strength, bluffing)
}

func decidePreFlop(s Situation, params DifficultyParams, strength float64, bluffing bool) Decision {
	playThreshold := 1 - params.VPIP
	raiseThreshold := 1 - params.PFR

	if strength < playThreshold && !bluffing {
		if s.CanCheck {
			return Decision{Action: table.ActionCheck}
		}
		return Decision{Action: table.ActionFold}
	}

	if (strength >= raiseThreshold || bluffing) && s.CallAmount < s.OwnStack {
		return Decision{Action: raiseAction(s), Amount: betSize(s, params, strength)}
	}
	if s.CanCheck {
		return Decision{Action: table.ActionCheck}
	}
	return Decision{Action: table.ActionCall, Amount: s.CallAmount}
}

func decidePostFlop(s Situation, params DifficultyParams, strength float64, bluffing bool) Decision {
	if s.CanCheck {
		wantsToBet := strength > 0.55 || (bluffing && rand.Float64() < params.CBetFrequency)
		if !wantsToBet {
			return Decision{Action: table.ActionCheck}
		}
		return Decision{Action: raiseAction(s), Amount: betSize(s, params, strength)}
	}

	potOdds := 0.0
	if s.PotSize+s.CallAmount > 0 {
		potOdds = float64(s.CallAmount) / float64(s.PotSize+s.CallAmount)
	}

	// Facing a bet: continue only if our equity beats the price, we're
	// pot-committed, or we're bluff-raising; otherwise respect FoldTo3Bet.
	switch {
	case bluffing && s.CallAmount < s.OwnStack:
		return Decision{Action: raiseAction(s), Amount: betSize(s, params, strength)}
	case strength > potOdds+0.1:
		if strength > 0.8 && rand.Float64() < params.AggressionFactor/(params.AggressionFactor+1) {
			return Decision{Action: raiseAction(s), Amount: betSize(s, params, strength)}
		}
		return Decision{Action: table.ActionCall, Amount: s.CallAmount}
	case rand.Float64() < 1-params.FoldTo3Bet:
		return Decision{Action: table.ActionCall, Amount: s.CallAmount}
	default:
		return Decision{Action: table.ActionFold}
	}
}

// raiseAction picks Bet vs Raise vs AllIn depending on whether there's
// already an outstanding bet and how much stack is left.
func raiseAction(s Situation) table.Action {
	if s.OwnStack <= s.CallAmount {
		return table.ActionAllIn
	}
	if s.CallAmount > 0 {
		return table.ActionRaise
	}
	return table.ActionBet
}

// betSize derives a bet/raise amount from the pot and the bot's aggression,
// clamped to at least one big blind and at most the bot's remaining stack.
func betSize(s Situation, params DifficultyParams, strength float64) int64 {
	fraction := 0.5 + params.AggressionFactor*0.2*strength
	amount := s.CallAmount + int64(float64(s.PotSize)*fraction)

	if s.BigBlind > 0 && amount < s.BigBlind {
		amount = s.BigBlind
	}
	if amount > s.OwnStack {
		amount = s.OwnStack
	}
	return amount
}
