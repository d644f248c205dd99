package table

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/feltstack/feltstack/pkg/poker"
	"github.com/feltstack/feltstack/pkg/view"
	"github.com/feltstack/feltstack/pkg/wallet"
)

// InsufficientChipsError reports a buy-in or top-up below the table's
// configured minimum, or above what the wallet can cover.
type InsufficientChipsError struct {
	Required, Available int64
}

func (e *InsufficientChipsError) Error() string {
	return fmt.Sprintf("table: need %d chips, have %d", e.Required, e.Available)
}

// ErrTableFull is returned by Join when every seat is taken.
var ErrTableFull = fmt.Errorf("table: full")

// ErrNotAtTable is returned by actions from a user who isn't seated.
var ErrNotAtTable = fmt.Errorf("table: not at table")

// ErrAccessDenied is returned by Join on a private table given the wrong
// passphrase.
var ErrAccessDenied = fmt.Errorf("table: access denied")

// ErrRateLimited is returned by SendChat when a user exceeds the chat rate
// limit.
var ErrRateLimited = fmt.Errorf("table: rate limited")

// Actor owns one poker.Table and every piece of state around it (waitlist,
// spectators, chat rate limits, top-up cooldowns). All of it is touched only
// from the run loop goroutine; every other goroutine communicates through
// Join/Leave/Action/... which enqueue a command and block on its reply.
type Actor struct {
	id     int64
	cfg    Config
	table  *poker.Table
	wallet *wallet.Manager
	log    slog.Logger

	inbox chan command

	waitlist      []waitlistEntry
	spectators    map[int64]string
	chatLimiters  map[int64]*rate.Limiter
	topUpLastHand map[int64]int
	handCount     int
	paused        bool
	closed        bool

	// kickVotes and resetVotes tally support for a pending vote, keyed by
	// the target user ID (0 means "everyone" for a reset-all vote), each
	// mapping to the set of supporting user IDs. A passing vote moves its
	// target into toKick/toReset (or sets resetAllMoney) rather than
	// applying immediately, since removing or re-stacking a player mid-hand
	// breaks pot and seat bookkeeping; applyDeferredVotesLocked drains
	// these queues only once the table is between hands.
	kickVotes     map[int64]map[int64]bool
	resetVotes    map[int64]map[int64]bool
	toKick        map[int64]bool
	toReset       map[int64]bool
	resetAllMoney bool

	done chan struct{}
}

type waitlistEntry struct {
	UserID   int64
	Username string
}

// New builds an Actor and starts its run loop in a new goroutine. Callers
// get back only a handle-shaped set of methods (Join, Leave, Action, ...);
// nothing outside this package ever reaches into table/wallet state
// directly.
func New(cfg Config, walletMgr *wallet.Manager, log slog.Logger) *Actor {
	if log == nil {
		log = slog.Disabled
	}

	pokerTable := poker.NewTable(poker.TableConfig{
		ID:            strconv.FormatInt(cfg.ID, 10),
		MinPlayers:    cfg.MinPlayers,
		MaxPlayers:    cfg.MaxPlayers,
		SmallBlind:    cfg.SmallBlind,
		BigBlind:      cfg.BigBlind,
		StartingChips: cfg.MaxBuyInChips(),
		TimeBank:      cfg.Speed.ActionTimeout(),
		Log:           log,
	})

	a := &Actor{
		id:            cfg.ID,
		cfg:           cfg,
		table:         pokerTable,
		wallet:        walletMgr,
		log:           log,
		inbox:         make(chan command, 128),
		spectators:    make(map[int64]string),
		chatLimiters:  make(map[int64]*rate.Limiter),
		topUpLastHand: make(map[int64]int),
		kickVotes:     make(map[int64]map[int64]bool),
		resetVotes:    make(map[int64]map[int64]bool),
		toKick:        make(map[int64]bool),
		toReset:       make(map[int64]bool),
		done:          make(chan struct{}),
	}

	go a.run()
	return a
}

// ID is the table's registry identifier.
func (a *Actor) ID() int64 { return a.id }

// run is the actor's single-goroutine event loop: every state mutation
// happens here, serialized by channel delivery rather than a mutex.
func (a *Actor) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	defer close(a.done)

	for {
		select {
		case cmd, ok := <-a.inbox:
			if !ok {
				return
			}
			resp := cmd.op(a)
			cmd.reply <- resp
			if a.closed {
				return
			}

		case <-ticker.C:
			if a.paused || a.closed {
				continue
			}
			a.table.HandleTimeouts()
			a.table.MaybeAdvancePhase()
			if a.table.GetGamePhase() == poker.PhaseWaiting {
				a.applyDeferredVotesLocked()
			}
		}
	}
}

// send enqueues op and blocks for its reply, or returns ctx.Err() if ctx is
// done first — the timeout-bounded analogue of awaiting a Rust oneshot.
func (a *Actor) send(ctx context.Context, op func(a *Actor) Response) Response {
	cmd := newCommand(op)
	select {
	case a.inbox <- cmd:
	case <-ctx.Done():
		return Response{Err: ctx.Err()}
	}
	select {
	case resp := <-cmd.reply:
		return resp
	case <-ctx.Done():
		return Response{Err: ctx.Err()}
	}
}

func userIDString(userID int64) string { return strconv.FormatInt(userID, 10) }

// UserIDKey is the player-ID string a given user ID is seated under, the
// same key poker.Table uses internally. Exposed so callers outside this
// package (the bot driver matching itself against CurrentPlayer) can derive
// it without duplicating the format.
func UserIDKey(userID int64) string { return userIDString(userID) }

// Join seats a user, buying in from their wallet for amount chips.
// passphrase is checked against the table's passphrase hash when the table
// is private.
func (a *Actor) Join(ctx context.Context, userID int64, username string, amount int64, passphrase string) error {
	if a.cfg.IsPrivate {
		if err := checkPassphrase(passphrase, a.cfg.PassphraseHash); err != nil {
			return ErrAccessDenied
		}
	}
	if amount < a.cfg.MinBuyInChips() || amount > a.cfg.MaxBuyInChips() {
		return &InsufficientChipsError{Required: a.cfg.MinBuyInChips(), Available: amount}
	}

	resp := a.send(ctx, func(a *Actor) Response {
		if len(a.table.GetPlayers()) >= a.cfg.MaxPlayers {
			return Response{Err: ErrTableFull}
		}
		if a.table.GetPlayer(userIDString(userID)) != nil {
			return Response{Err: fmt.Errorf("table: already seated")}
		}

		if _, err := a.wallet.TransferToEscrow(ctx, wallet.TransferRequest{
			UserID:         userID,
			TableID:        a.id,
			Amount:         amount,
			IdempotencyKey: uuid.New().String(),
			Description:    "table buy-in",
		}); err != nil {
			return Response{Err: err}
		}

		if err := a.table.AddPlayer(userIDString(userID), amount); err != nil {
			return Response{Err: err}
		}
		delete(a.spectators, userID)
		a.removeFromWaitlistLocked(userID)
		return Response{}
	})
	return resp.Err
}

// Leave cashes a seated player out back to their wallet and removes them
// from the table.
func (a *Actor) Leave(ctx context.Context, userID int64) error {
	resp := a.send(ctx, func(a *Actor) Response {
		player := a.table.GetPlayer(userIDString(userID))
		if player == nil {
			return Response{Err: ErrNotAtTable}
		}
		balance := player.Balance

		if err := a.table.RemovePlayer(userIDString(userID)); err != nil {
			return Response{Err: err}
		}

		if balance > 0 {
			if _, err := a.wallet.TransferFromEscrow(ctx, wallet.TransferRequest{
				UserID:         userID,
				TableID:        a.id,
				Amount:         balance,
				IdempotencyKey: uuid.New().String(),
				Description:    "table cash-out",
			}); err != nil {
				return Response{Err: err}
			}
		}
		return Response{}
	})
	return resp.Err
}

// TakeAction applies a player's bet/raise/call/check/fold to the table.
// amount is ignored for Fold and Check.
func (a *Actor) TakeAction(ctx context.Context, userID int64, action Action, amount int64) error {
	resp := a.send(ctx, func(a *Actor) Response {
		idStr := userIDString(userID)
		if a.table.GetPlayer(idStr) == nil {
			return Response{Err: ErrNotAtTable}
		}

		var err error
		switch action {
		case ActionFold:
			err = a.table.HandleFold(idStr)
		case ActionCheck:
			err = a.table.MakeBet(idStr, a.table.GetPlayer(idStr).CurrentBet)
		case ActionCall, ActionBet, ActionRaise, ActionAllIn:
			err = a.table.MakeBet(idStr, amount)
		default:
			err = fmt.Errorf("table: unknown action %q", action)
		}
		if err != nil {
			return Response{Err: err}
		}
		return Response{}
	})
	return resp.Err
}

// StartGame begins a new hand once enough players are ready.
func (a *Actor) StartGame(ctx context.Context) error {
	resp := a.send(ctx, func(a *Actor) Response {
		if err := a.table.StartGame(); err != nil {
			return Response{Err: err}
		}
		a.handCount++
		return Response{}
	})
	return resp.Err
}

// TopUp adds chips from a user's wallet to their existing stack, subject to
// the table's top-up cooldown and absolute chip cap.
func (a *Actor) TopUp(ctx context.Context, userID int64, amount int64) error {
	resp := a.send(ctx, func(a *Actor) Response {
		player := a.table.GetPlayer(userIDString(userID))
		if player == nil {
			return Response{Err: ErrNotAtTable}
		}

		if last, ok := a.topUpLastHand[userID]; ok && a.handCount-last < a.cfg.TopUpCooldownHands {
			return Response{Err: ErrRateLimited}
		}
		if player.Balance+amount > a.cfg.MaxBuyInChips() {
			amount = a.cfg.MaxBuyInChips() - player.Balance
		}
		if amount <= 0 {
			return Response{Err: &InsufficientChipsError{Required: 1, Available: 0}}
		}

		if _, err := a.wallet.TransferToEscrow(ctx, wallet.TransferRequest{
			UserID:         userID,
			TableID:        a.id,
			Amount:         amount,
			IdempotencyKey: uuid.New().String(),
			Description:    "chip top-up",
		}); err != nil {
			return Response{Err: err}
		}

		player.Balance += amount
		a.topUpLastHand[userID] = a.handCount
		return Response{}
	})
	return resp.Err
}

// JoinWaitlist queues a user for the next open seat.
func (a *Actor) JoinWaitlist(ctx context.Context, userID int64, username string) error {
	resp := a.send(ctx, func(a *Actor) Response {
		for _, e := range a.waitlist {
			if e.UserID == userID {
				return Response{}
			}
		}
		a.waitlist = append(a.waitlist, waitlistEntry{UserID: userID, Username: username})
		return Response{}
	})
	return resp.Err
}

// LeaveWaitlist removes a user from the waitlist.
func (a *Actor) LeaveWaitlist(ctx context.Context, userID int64) error {
	resp := a.send(ctx, func(a *Actor) Response {
		a.removeFromWaitlistLocked(userID)
		return Response{}
	})
	return resp.Err
}

func (a *Actor) removeFromWaitlistLocked(userID int64) {
	for i, e := range a.waitlist {
		if e.UserID == userID {
			a.waitlist = append(a.waitlist[:i], a.waitlist[i+1:]...)
			return
		}
	}
}

// Spectate marks userID as a read-only observer.
func (a *Actor) Spectate(ctx context.Context, userID int64, username string) error {
	resp := a.send(ctx, func(a *Actor) Response {
		a.spectators[userID] = username
		return Response{}
	})
	return resp.Err
}

// StopSpectating removes userID from the spectator set.
func (a *Actor) StopSpectating(ctx context.Context, userID int64) error {
	resp := a.send(ctx, func(a *Actor) Response {
		delete(a.spectators, userID)
		return Response{}
	})
	return resp.Err
}

// chatRateLimit allows one message per 2 seconds with a burst of 3,
// per-user.
func (a *Actor) chatRateLimit(userID int64) *rate.Limiter {
	l, ok := a.chatLimiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Every(2*time.Second), 3)
		a.chatLimiters[userID] = l
	}
	return l
}

// ChatMessage is a broadcastable message posted through SendChat.
type ChatMessage struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// SendChat posts a chat message, subject to a per-user rate limit.
func (a *Actor) SendChat(ctx context.Context, userID int64, username, text string) (*ChatMessage, error) {
	var msg *ChatMessage
	resp := a.send(ctx, func(a *Actor) Response {
		if !a.chatRateLimit(userID).Allow() {
			return Response{Err: ErrRateLimited}
		}
		msg = &ChatMessage{UserID: userID, Username: username, Text: text, CreatedAt: time.Now()}
		return Response{}
	})
	if resp.Err != nil {
		return nil, resp.Err
	}
	return msg, nil
}

// Pause stops the table from auto-advancing on the tick loop. Seated
// players can still act, but timeouts and phase advancement freeze.
func (a *Actor) Pause(ctx context.Context) error {
	resp := a.send(ctx, func(a *Actor) Response {
		a.paused = true
		return Response{}
	})
	return resp.Err
}

// Resume un-pauses a table paused with Pause.
func (a *Actor) Resume(ctx context.Context) error {
	resp := a.send(ctx, func(a *Actor) Response {
		a.paused = false
		return Response{}
	})
	return resp.Err
}

// Close shuts the actor down. Commands sent after the run loop has exited
// are never answered; their send returns ctx.Err() once the caller's
// context ends.
func (a *Actor) Close(ctx context.Context) error {
	resp := a.send(ctx, func(a *Actor) Response {
		a.closed = true
		return Response{}
	})
	return resp.Err
}

// Done reports when the run loop has exited after Close.
func (a *Actor) Done() <-chan struct{} { return a.done }

// GetState returns a read-only snapshot of table metadata.
func (a *Actor) GetState(ctx context.Context) (*StateView, error) {
	resp := a.send(ctx, func(a *Actor) Response {
		cfg := a.table.GetConfig()
		players := a.table.GetPlayers()
		names := make([]string, 0, len(players))
		for _, p := range players {
			names = append(names, p.ID)
		}
		return Response{State: &StateView{
			TableID:       a.id,
			Name:          a.cfg.Name,
			PlayerCount:   len(players),
			MaxPlayers:    cfg.MaxPlayers,
			WaitlistCount: len(a.waitlist),
			SmallBlind:    cfg.SmallBlind,
			BigBlind:      cfg.BigBlind,
			PotSize:       a.table.GetPot(),
			IsActive:      !a.paused,
			Phase:         a.table.GetGamePhase().String(),
			Players:       names,
			IsPrivate:     a.cfg.IsPrivate,
			Speed:         a.cfg.Speed,
		}}
	})
	return resp.State, resp.Err
}

// Subscribe streams TableUpdate snapshots for ctx's lifetime, rendering
// userID's own hole cards when they're a seated player.
func (a *Actor) Subscribe(ctx context.Context, userID int64) (<-chan *poker.TableUpdate, error) {
	ch := a.table.Subscribe(ctx, userIDString(userID))
	return ch, nil
}

// GetView returns a one-shot redacted GameView for userID, combining the
// poker table's own player/board/pot projection with the actor-owned
// spectator/waitlist/open-seat fields the table has no notion of.
func (a *Actor) GetView(ctx context.Context, userID int64) (*view.GameView, error) {
	resp := a.send(ctx, func(a *Actor) Response {
		update := a.table.BuildView(userIDString(userID))
		cfg := a.table.GetConfig()

		spectators := make([]string, 0, len(a.spectators))
		for _, name := range a.spectators {
			spectators = append(spectators, name)
		}
		waitlist := make([]string, 0, len(a.waitlist))
		for _, e := range a.waitlist {
			waitlist = append(waitlist, e.Username)
		}
		openSeats := make([]int, 0)
		for seat := 0; seat < cfg.MaxPlayers-len(a.table.GetPlayers()); seat++ {
			openSeats = append(openSeats, seat)
		}

		gv := view.Project(update, view.SharedFields{
			Blinds:     view.Blinds{Small: cfg.SmallBlind, Big: cfg.BigBlind},
			Spectators: spectators,
			Waitlist:   waitlist,
			OpenSeats:  openSeats,
		})
		return Response{View: gv}
	})
	return resp.View, resp.Err
}

// ShowCards reveals a folded or all-in player's hand to other subscribers
// once the hand reaches showdown.
func (a *Actor) ShowCards(ctx context.Context, userID int64) error {
	resp := a.send(ctx, func(a *Actor) Response {
		return Response{Err: a.table.ShowCards(userIDString(userID))}
	})
	return resp.Err
}

// HideCards reverts a prior ShowCards.
func (a *Actor) HideCards(ctx context.Context, userID int64) error {
	resp := a.send(ctx, func(a *Actor) Response {
		return Response{Err: a.table.HideCards(userIDString(userID))}
	})
	return resp.Err
}
