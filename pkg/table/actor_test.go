package table

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	moduledb "github.com/feltstack/feltstack/pkg/db"
	"github.com/feltstack/feltstack/pkg/wallet"
)

func setupRegistry(t *testing.T) *Registry {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping table integration test")
	}

	ctx := context.Background()
	d, err := moduledb.Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, moduledb.Migrate(ctx, d))
	t.Cleanup(func() { d.Close() })

	walletMgr := wallet.NewManager(d.Pool)
	return NewRegistry(d.Pool, walletMgr, nil)
}

func newTestUser(t *testing.T, reg *Registry) int64 {
	t.Helper()
	userID := int64(uuid.New().ID())
	require.NoError(t, reg.wallet.CreateWallet(context.Background(), userID))
	_, err := reg.wallet.AdjustBalance(context.Background(), userID, 1_000_000, uuid.NewString(), "test seed")
	require.NoError(t, err)
	return userID
}

func TestRegistryCreateJoinAndGetState(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	cfg := DefaultConfig("integration table")
	a, err := reg.Create(ctx, cfg)
	require.NoError(t, err)
	require.NotZero(t, a.ID())

	found, err := reg.Get(a.ID())
	require.NoError(t, err)
	require.Same(t, a, found)

	user := newTestUser(t, reg)
	require.NoError(t, a.Join(ctx, user, "player-1", a.cfg.MinBuyInChips(), ""))

	state, err := a.GetState(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, state.PlayerCount)
	require.Equal(t, cfg.Name, state.Name)

	require.NoError(t, a.Leave(ctx, user))

	state, err = a.GetState(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, state.PlayerCount)
}

func TestJoinRejectsBuyInBelowMinimum(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	a, err := reg.Create(ctx, DefaultConfig("min buyin"))
	require.NoError(t, err)

	user := newTestUser(t, reg)
	err = a.Join(ctx, user, "player-1", a.cfg.MinBuyInChips()-1, "")
	require.Error(t, err)
	var insufficient *InsufficientChipsError
	require.ErrorAs(t, err, &insufficient)
}

func TestJoinRejectsFullTable(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	cfg := DefaultConfig("tiny table")
	cfg.MaxPlayers = 1
	a, err := reg.Create(ctx, cfg)
	require.NoError(t, err)

	first := newTestUser(t, reg)
	require.NoError(t, a.Join(ctx, first, "player-1", a.cfg.MinBuyInChips(), ""))

	second := newTestUser(t, reg)
	err = a.Join(ctx, second, "player-2", a.cfg.MinBuyInChips(), "")
	require.ErrorIs(t, err, ErrTableFull)
}

func TestPrivateTableRejectsWrongPassphrase(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	hash, err := HashPassphrase("let-me-in")
	require.NoError(t, err)

	cfg := DefaultConfig("private table")
	cfg.IsPrivate = true
	cfg.PassphraseHash = hash
	a, err := reg.Create(ctx, cfg)
	require.NoError(t, err)

	user := newTestUser(t, reg)
	err = a.Join(ctx, user, "player-1", a.cfg.MinBuyInChips(), "wrong")
	require.ErrorIs(t, err, ErrAccessDenied)

	require.NoError(t, a.Join(ctx, user, "player-1", a.cfg.MinBuyInChips(), "let-me-in"))
}

func TestChatRateLimit(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	a, err := reg.Create(ctx, DefaultConfig("chat table"))
	require.NoError(t, err)

	user := newTestUser(t, reg)
	for i := 0; i < 3; i++ {
		_, err := a.SendChat(ctx, user, "player-1", "hello")
		require.NoError(t, err)
	}
	_, err = a.SendChat(ctx, user, "player-1", "too fast")
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestRegistryCloseRemovesTable(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	a, err := reg.Create(ctx, DefaultConfig("closeable"))
	require.NoError(t, err)

	require.NoError(t, reg.Close(ctx, a.ID()))

	_, err = reg.Get(a.ID())
	require.ErrorIs(t, err, ErrTableNotFound)
}
