package table

import (
	"github.com/feltstack/feltstack/pkg/view"
)

// Response is what every actor command resolves to. Exactly one of Err or
// the message-specific payload fields is meaningful per command.
type Response struct {
	Err error

	// Populated by commands that return table state.
	State *StateView
	View  *view.GameView
}

// StateView is the read-only snapshot returned by GetState, grounded on the
// reference server's TableStateResponse.
type StateView struct {
	TableID        int64    `json:"table_id"`
	Name           string   `json:"name"`
	PlayerCount    int      `json:"player_count"`
	MaxPlayers     int      `json:"max_players"`
	WaitlistCount  int      `json:"waitlist_count"`
	SmallBlind     int64    `json:"small_blind"`
	BigBlind       int64    `json:"big_blind"`
	PotSize        int64    `json:"pot_size"`
	IsActive       bool     `json:"is_active"`
	Phase          string   `json:"phase"`
	Players        []string `json:"players"`
	IsPrivate      bool     `json:"is_private"`
	Speed          Speed    `json:"speed"`
}

// joinTable, leaveTable, etc. are the actor's internal command shapes — the
// Go analogue of the reference server's TableMessage enum variants, one
// struct per variant instead of one sum type, each carrying its own reply
// channel (the channel doubles as Rust's oneshot::Sender).
type command struct {
	reply chan Response
	op    func(a *Actor) Response
}

func newCommand(op func(a *Actor) Response) command {
	return command{reply: make(chan Response, 1), op: op}
}
