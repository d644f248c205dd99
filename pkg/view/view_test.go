package view

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/feltstack/feltstack/pkg/poker"
)

func TestProjectBuildsPlayPositionsAndDefaultsEmptySlices(t *testing.T) {
	update := &poker.TableUpdate{
		TableID: "1",
		Phase:   "preflop",
		Players: []*poker.PlayerView{
			{ID: "alice", Balance: 1000},
			{ID: "bob", Balance: 900},
		},
		Pot:           150,
		CurrentPlayer: "alice",
		GameStarted:   true,
	}

	gv := Project(update, SharedFields{Blinds: Blinds{Small: 50, Big: 100}})

	require.Equal(t, "1", gv.TableID)
	require.Equal(t, int64(150), gv.Pot.Size)
	require.Equal(t, 0, gv.PlayPositions["alice"])
	require.Equal(t, 1, gv.PlayPositions["bob"])
	require.Equal(t, Blinds{Small: 50, Big: 100}, gv.Blinds)
	require.Empty(t, gv.Spectators)
	require.Empty(t, gv.Waitlist)
	require.Empty(t, gv.OpenSeats)
}

func TestProjectPreservesSuppliedSharedFields(t *testing.T) {
	update := &poker.TableUpdate{TableID: "2"}

	gv := Project(update, SharedFields{
		Spectators: []string{"carol"},
		Waitlist:   []string{"dave"},
		OpenSeats:  []int{3, 4},
	})

	require.Equal(t, []string{"carol"}, gv.Spectators)
	require.Equal(t, []string{"dave"}, gv.Waitlist)
	require.Equal(t, []int{3, 4}, gv.OpenSeats)
}
