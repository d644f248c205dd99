// Package view builds the redacted, per-user snapshot sent to table
// subscribers over the HTTP/WS gateway. It is pure: given a table's shared,
// already-redacted update plus the actor-level fields a poker.Table doesn't
// know about (spectators, waitlist, open seats, seat positions), it produces
// one GameView with no further I/O or mutation.
package view

import "github.com/feltstack/feltstack/pkg/poker"

// Blinds is the small/big blind pair shown to every subscriber.
type Blinds struct {
	Small int64 `json:"small"`
	Big   int64 `json:"big"`
}

// Pot is the pot size shown to every subscriber, summed across side pots.
type Pot struct {
	Size int64 `json:"size"`
}

// GameView is the server's complete per-subscriber snapshot, matching the
// JSON shape clients receive over the websocket stream: everything but
// Players is identical across every subscriber of a table at a given
// moment, so callers building fan-out for N subscribers should construct
// the shared fields once per publish and only vary Players.
type GameView struct {
	TableID       string              `json:"table_id"`
	Phase         string              `json:"phase"`
	Blinds        Blinds              `json:"blinds"`
	Spectators    []string            `json:"spectators"`
	Waitlist      []string            `json:"waitlist"`
	OpenSeats     []int               `json:"open_seats"`
	Players       []*poker.PlayerView `json:"players"`
	Board         []poker.CardView    `json:"board"`
	Pot           Pot                 `json:"pot"`
	PlayPositions map[string]int      `json:"play_positions"`
	CurrentPlayer string              `json:"current_player"`
	GameStarted   bool                `json:"game_started"`
}

// SharedFields holds everything about a table's view that's identical for
// every subscriber, independent of who is asking. It's computed once per
// publish by the table actor, which is the only thing that knows about
// spectators, the waitlist, and open seats.
type SharedFields struct {
	Blinds     Blinds
	Spectators []string
	Waitlist   []string
	OpenSeats  []int
}

// Project combines a poker.TableUpdate (already redacted for the requesting
// subscriber by Table.BuildView/Subscribe) with the table-actor-owned shared
// fields into one GameView. Pure: no I/O, no mutation.
func Project(update *poker.TableUpdate, shared SharedFields) *GameView {
	playPositions := make(map[string]int, len(update.Players))
	for i, p := range update.Players {
		playPositions[p.ID] = i
	}

	spectators := shared.Spectators
	if spectators == nil {
		spectators = []string{}
	}
	waitlist := shared.Waitlist
	if waitlist == nil {
		waitlist = []string{}
	}
	openSeats := shared.OpenSeats
	if openSeats == nil {
		openSeats = []int{}
	}

	return &GameView{
		TableID:       update.TableID,
		Phase:         update.Phase,
		Blinds:        shared.Blinds,
		Spectators:    spectators,
		Waitlist:      waitlist,
		OpenSeats:     openSeats,
		Players:       update.Players,
		Board:         update.CommunityCards,
		Pot:           Pot{Size: update.Pot},
		PlayPositions: playPositions,
		CurrentPlayer: update.CurrentPlayer,
		GameStarted:   update.GameStarted,
	}
}
