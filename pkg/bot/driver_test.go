package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/feltstack/feltstack/pkg/poker"
	"github.com/feltstack/feltstack/pkg/table"
	"github.com/feltstack/feltstack/pkg/view"
)

type fakeActor struct {
	gv          *view.GameView
	lastAction  table.Action
	lastAmount  int64
	lastUserID  int64
	takeActions int
}

func (f *fakeActor) GetView(ctx context.Context, userID int64) (*view.GameView, error) {
	return f.gv, nil
}

func (f *fakeActor) TakeAction(ctx context.Context, userID int64, action table.Action, amount int64) error {
	f.lastAction = action
	f.lastAmount = amount
	f.lastUserID = userID
	f.takeActions++
	return nil
}

func cardView(s poker.Suit, v poker.Value) poker.CardView {
	c := poker.NewCardFromSuitValue(s, v)
	return poker.CardView{Suit: c.GetSuit(), Value: c.GetValue()}
}

func TestMaybeActSkipsWhenNotBotsTurn(t *testing.T) {
	m := NewManager(1, testConfig(), nil)
	_, err := m.Spawn(context.Background(), 1)
	require.NoError(t, err)
	id := m.IDs()[0]

	fa := &fakeActor{gv: &view.GameView{
		CurrentPlayer: "someone-else",
		Players:       []*poker.PlayerView{{ID: table.UserIDKey(int64(id)), Hand: []poker.CardView{cardView(poker.Hearts, poker.Ace), cardView(poker.Spades, poker.King)}}},
	}}
	d := NewDriver(fa, m)

	acted, err := d.MaybeAct(context.Background(), int64(id))
	require.NoError(t, err)
	require.False(t, acted)
	require.Equal(t, 0, fa.takeActions)
}

func TestMaybeActSkipsWhenUserIsNotABot(t *testing.T) {
	m := NewManager(1, testConfig(), nil)
	fa := &fakeActor{gv: &view.GameView{}}
	d := NewDriver(fa, m)

	acted, err := d.MaybeAct(context.Background(), 999)
	require.NoError(t, err)
	require.False(t, acted)
}

func TestMaybeActSubmitsDecisionOnBotsTurn(t *testing.T) {
	m := NewManager(1, testConfig(), nil)
	_, err := m.Spawn(context.Background(), 1)
	require.NoError(t, err)
	id := m.IDs()[0]
	key := table.UserIDKey(int64(id))

	fa := &fakeActor{gv: &view.GameView{
		CurrentPlayer: key,
		Blinds:        view.Blinds{Small: 50, Big: 100},
		Pot:           view.Pot{Size: 200},
		PlayPositions: map[string]int{key: 0},
		Players: []*poker.PlayerView{
			{ID: key, Balance: 1000, CurrentBet: 0, Hand: []poker.CardView{cardView(poker.Hearts, poker.Ace), cardView(poker.Spades, poker.Ace)}},
			{ID: "opponent", Balance: 1000, CurrentBet: 0},
		},
	}}
	d := NewDriver(fa, m)

	acted, err := d.MaybeAct(context.Background(), int64(id))
	require.NoError(t, err)
	require.True(t, acted)
	require.Equal(t, 1, fa.takeActions)
	require.Equal(t, int64(id), fa.lastUserID)
}
