package table

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/feltstack/feltstack/pkg/poker"
)

// newVoteTestActor builds an Actor with a real poker.Table but no wallet,
// running a bare command loop (not the full run(), which also drives
// timeouts/phase advancement on a real ticker) so Vote's send/reply
// round-trip works without depending on wall-clock timing.
func newVoteTestActor(t *testing.T, seatedIDs ...int64) *Actor {
	t.Helper()
	pokerTable := poker.NewTable(poker.TableConfig{
		ID:            "vote-test",
		MinPlayers:    2,
		MaxPlayers:    6,
		SmallBlind:    10,
		BigBlind:      20,
		StartingChips: 1000,
	})
	for _, id := range seatedIDs {
		require.NoError(t, pokerTable.AddPlayer(userIDString(id), 1000))
	}
	a := &Actor{
		id:         1,
		cfg:        Config{ID: 1, MaxBuyInBB: 100, BigBlind: 20, AbsoluteChipCap: 100000},
		table:      pokerTable,
		inbox:      make(chan command, 8),
		kickVotes:  make(map[int64]map[int64]bool),
		resetVotes: make(map[int64]map[int64]bool),
		toKick:     make(map[int64]bool),
		toReset:    make(map[int64]bool),
	}
	go func() {
		for cmd := range a.inbox {
			cmd.reply <- cmd.op(a)
		}
	}()
	t.Cleanup(func() { close(a.inbox) })
	return a
}

func TestVoteCannotTargetSelf(t *testing.T) {
	a := newVoteTestActor(t, 1, 2, 3)
	err := a.Vote(context.Background(), 1, VoteKick, 1)
	require.ErrorIs(t, err, ErrCannotVoteOnSelf)
}

func TestVoteKickPassesOnMajorityExcludingVoter(t *testing.T) {
	// 4 seated players: 1 proposes kicking 4. Electorate excluding the
	// voter is {2,3,4} (3 people), so quorum is 2. The second supporting
	// vote (from 2) should trip it.
	a := newVoteTestActor(t, 1, 2, 3, 4)

	require.NoError(t, a.Vote(context.Background(), 1, VoteKick, 4))
	require.False(t, a.toKick[4], "single vote must not reach quorum")

	require.NoError(t, a.Vote(context.Background(), 2, VoteKick, 4))
	require.True(t, a.toKick[4], "two of three eligible voters should reach majority")
}

func TestVoteResetAllRequiresTargetZero(t *testing.T) {
	a := newVoteTestActor(t, 1, 2, 3)

	require.NoError(t, a.Vote(context.Background(), 1, VoteReset, 0))
	require.False(t, a.resetAllMoney)
	require.NoError(t, a.Vote(context.Background(), 2, VoteReset, 0))
	require.True(t, a.resetAllMoney, "majority of {1,2,3} excluding each voter reaches quorum at 2 votes")
}

func TestApplyDeferredVotesDrainsKickQueue(t *testing.T) {
	a := newVoteTestActor(t, 1, 2, 3)
	// Zero the kicked player's balance so the deferred-kick path doesn't
	// need a live wallet to cash them out.
	a.table.GetPlayer(userIDString(3)).Balance = 0
	a.toKick[3] = true

	a.applyDeferredVotesLocked()

	require.Nil(t, a.table.GetPlayer(userIDString(3)))
	require.Empty(t, a.toKick)
}

func TestApplyDeferredVotesResetsBalance(t *testing.T) {
	a := newVoteTestActor(t, 1, 2)
	player := a.table.GetPlayer(userIDString(1))
	player.Balance = 1
	a.toReset[1] = true

	a.applyDeferredVotesLocked()

	require.Equal(t, a.cfg.MaxBuyInChips(), a.table.GetPlayer(userIDString(1)).Balance)
	require.Empty(t, a.toReset)
}
