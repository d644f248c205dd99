package table

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/feltstack/feltstack/pkg/wallet"
)

func parseUserID(playerID string) (int64, error) {
	return strconv.ParseInt(playerID, 10, 64)
}

// VoteKind is the action a table-wide vote can enact.
type VoteKind int

const (
	// VoteKick proposes removing targetUserID from the table.
	VoteKick VoteKind = iota
	// VoteReset proposes restoring targetUserID's stack to the table's
	// starting chip count, or everyone's if targetUserID is 0.
	VoteReset
)

func (k VoteKind) String() string {
	switch k {
	case VoteKick:
		return "kick"
	case VoteReset:
		return "reset"
	default:
		return "unknown"
	}
}

// ErrCannotVoteOnSelf is returned by Vote when a user tries to kick or
// reset themselves.
var ErrCannotVoteOnSelf = fmt.Errorf("table: cannot vote on self")

// Vote casts userID's ballot for kind against targetUserID (ignored, pass 0,
// for a table-wide reset vote). Once supporters reach quorum the vote is
// enqueued into the deferred kick/reset state and applied the next time the
// table is between hands — never mid-hand, since removing a seat or
// rewriting a stack while a pot is live breaks the bookkeeping.
func (a *Actor) Vote(ctx context.Context, userID int64, kind VoteKind, targetUserID int64) error {
	resp := a.send(ctx, func(a *Actor) Response {
		if targetUserID != 0 && userID == targetUserID {
			return Response{Err: ErrCannotVoteOnSelf}
		}
		if a.table.GetPlayer(userIDString(userID)) == nil && !a.isWaitlistedLocked(userID) {
			return Response{Err: ErrNotAtTable}
		}

		var supporters map[int64]bool
		switch kind {
		case VoteKick:
			if a.table.GetPlayer(userIDString(targetUserID)) == nil {
				return Response{Err: ErrNotAtTable}
			}
			supporters = a.kickVotes[targetUserID]
			if supporters == nil {
				supporters = make(map[int64]bool)
				a.kickVotes[targetUserID] = supporters
			}
		case VoteReset:
			supporters = a.resetVotes[targetUserID]
			if supporters == nil {
				supporters = make(map[int64]bool)
				a.resetVotes[targetUserID] = supporters
			}
		default:
			return Response{Err: fmt.Errorf("table: unknown vote kind %d", kind)}
		}
		supporters[userID] = true

		if a.quorumReachedLocked(userID, supporters) {
			switch kind {
			case VoteKick:
				a.toKick[targetUserID] = true
				delete(a.kickVotes, targetUserID)
			case VoteReset:
				if targetUserID == 0 {
					a.resetAllMoney = true
				} else {
					a.toReset[targetUserID] = true
				}
				delete(a.resetVotes, targetUserID)
			}
		}
		return Response{}
	})
	return resp.Err
}

func (a *Actor) isWaitlistedLocked(userID int64) bool {
	for _, e := range a.waitlist {
		if e.UserID == userID {
			return true
		}
	}
	return false
}

// electorateLocked returns the distinct user IDs eligible to vote: every
// seated player plus everyone on the waitlist.
func (a *Actor) electorateLocked() map[int64]bool {
	electorate := make(map[int64]bool)
	for _, p := range a.table.GetPlayers() {
		if uid, err := parseUserID(p.ID); err == nil {
			electorate[uid] = true
		}
	}
	for _, e := range a.waitlist {
		electorate[e.UserID] = true
	}
	return electorate
}

// quorumReachedLocked reports whether supporters forms a strict majority of
// the table's electorate, computed excluding the voter who just cast this
// ballot (the vote quorum rule is left configurable by the reference
// implementation; this is the documented interpretation). The voter's own
// ballot still counts toward the supporter tally.
func (a *Actor) quorumReachedLocked(voterID int64, supporters map[int64]bool) bool {
	electorate := a.electorateLocked()
	others := len(electorate)
	if electorate[voterID] {
		others--
	}
	needed := others/2 + 1

	count := 0
	for uid := range supporters {
		if electorate[uid] {
			count++
		}
	}
	return count >= needed
}

// applyDeferredVotesLocked drains the toKick/toReset queues and the
// resetAllMoney flag, the table-level analogue of the reference server's
// RemovePlayers phase. Only called between hands.
func (a *Actor) applyDeferredVotesLocked() {
	for userID := range a.toKick {
		a.kickPlayerLocked(userID)
	}
	a.toKick = make(map[int64]bool)

	startingChips := a.cfg.MaxBuyInChips()
	for userID := range a.toReset {
		if player := a.table.GetPlayer(userIDString(userID)); player != nil {
			player.Balance = startingChips
		}
	}
	a.toReset = make(map[int64]bool)

	if a.resetAllMoney {
		for _, p := range a.table.GetPlayers() {
			p.Balance = startingChips
		}
		a.resetAllMoney = false
	}
}

func (a *Actor) kickPlayerLocked(userID int64) {
	player := a.table.GetPlayer(userIDString(userID))
	if player == nil {
		a.removeFromWaitlistLocked(userID)
		return
	}
	balance := player.Balance
	if err := a.table.RemovePlayer(userIDString(userID)); err != nil {
		a.log.Warnf("table %d: kick vote failed to remove player %d: %v", a.id, userID, err)
		return
	}
	delete(a.spectators, userID)
	a.removeFromWaitlistLocked(userID)
	if balance <= 0 {
		return
	}
	if _, err := a.wallet.TransferFromEscrow(context.Background(), wallet.TransferRequest{
		UserID:         userID,
		TableID:        a.id,
		Amount:         balance,
		IdempotencyKey: uuid.New().String(),
		Description:    "kicked from table by vote",
	}); err != nil {
		a.log.Warnf("table %d: cash out kicked player %d: %v", a.id, userID, err)
	}
}
