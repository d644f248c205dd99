package poker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	return NewTable(TableConfig{
		ID:            "t1",
		MinPlayers:    2,
		MaxPlayers:    6,
		SmallBlind:    10,
		BigBlind:      20,
		StartingChips: 1000,
		Log:           createTestLogger(),
	})
}

func TestBuildViewHidesOtherPlayersHands(t *testing.T) {
	table := newTestTable(t)
	require.NoError(t, table.AddPlayer("p1", 1000))
	require.NoError(t, table.AddPlayer("p2", 1000))

	view := table.BuildView("p1")
	for _, p := range view.Players {
		if p.ID == "p1" {
			continue
		}
		require.Empty(t, p.Hand)
	}
}

func TestBuildViewRevealsFoldedHandOnlyWhenShowing(t *testing.T) {
	table := newTestTable(t)
	require.NoError(t, table.AddPlayer("p1", 1000))
	require.NoError(t, table.AddPlayer("p2", 1000))
	require.NoError(t, table.StartGame())

	p2 := table.GetPlayer("p2")
	p2.HasFolded = true
	p2.Hand = []Card{NewCardFromSuitValue(Hearts, Ace)}
	table.game.phase = PhaseShowdown

	view := table.BuildView("p1")
	for _, p := range view.Players {
		if p.ID == "p2" {
			require.Empty(t, p.Hand, "folded, non-showing hand must stay hidden at showdown")
		}
	}

	require.NoError(t, table.ShowCards("p2"))
	view = table.BuildView("p1")
	for _, p := range view.Players {
		if p.ID == "p2" {
			require.NotEmpty(t, p.Hand, "hand must be visible once shown")
		}
	}

	require.NoError(t, table.HideCards("p2"))
	view = table.BuildView("p1")
	for _, p := range view.Players {
		if p.ID == "p2" {
			require.Empty(t, p.Hand, "HideCards should re-hide the hand")
		}
	}
}

func TestStartGameRejectsSecondCallMidHand(t *testing.T) {
	table := newTestTable(t)
	require.NoError(t, table.AddPlayer("p1", 1000))
	require.NoError(t, table.AddPlayer("p2", 1000))
	require.NoError(t, table.StartGame())

	pot := table.GetPot()
	err := table.StartGame()
	require.ErrorIs(t, err, ErrGameAlreadyInProgress)
	require.Equal(t, pot, table.GetPot(), "the in-flight hand's pot must survive a duplicate StartGame call")
}

func TestBuildViewRevealsNonFoldedHandsAtShowdown(t *testing.T) {
	table := newTestTable(t)
	require.NoError(t, table.AddPlayer("p1", 1000))
	require.NoError(t, table.AddPlayer("p2", 1000))
	require.NoError(t, table.StartGame())

	table.game.phase = PhaseShowdown
	p2 := table.GetPlayer("p2")
	p2.Hand = []Card{NewCardFromSuitValue(Spades, King)}

	view := table.BuildView("p1")
	for _, p := range view.Players {
		if p.ID == "p2" {
			require.NotEmpty(t, p.Hand)
		}
	}
}
