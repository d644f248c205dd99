package wallet

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	moduledb "github.com/feltstack/feltstack/pkg/db"
)

// setupManager connects to DATABASE_URL and migrates the schema. Tests skip
// when no database is configured, mirroring the original Rust integration
// suite's reliance on a live Postgres instance.
func setupManager(t *testing.T) (*Manager, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping wallet integration test")
	}

	ctx := context.Background()
	d, err := moduledb.Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, moduledb.Migrate(ctx, d))

	t.Cleanup(func() { d.Close() })
	return NewManager(d.Pool), d.Pool
}

func newTestUserID(t *testing.T) int64 {
	t.Helper()
	// Deterministic-looking but collision-resistant per test run.
	return int64(uuid.New().ID())
}

func TestCreateWalletAndGetBalance(t *testing.T) {
	mgr, _ := setupManager(t)
	ctx := context.Background()
	userID := newTestUserID(t)

	require.NoError(t, mgr.CreateWallet(ctx, userID))

	balance, err := mgr.GetBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, mgr.defaultBalance, balance)
}

func TestGetWalletNotFound(t *testing.T) {
	mgr, _ := setupManager(t)
	_, err := mgr.GetWallet(context.Background(), newTestUserID(t))
	require.Error(t, err)
	var notFound *WalletNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestTransferToAndFromEscrow(t *testing.T) {
	mgr, _ := setupManager(t)
	ctx := context.Background()
	userID := newTestUserID(t)
	tableID := int64(newTestUserID(t))

	require.NoError(t, mgr.CreateWallet(ctx, userID))
	startBalance, err := mgr.GetBalance(ctx, userID)
	require.NoError(t, err)

	buyIn := TransferRequest{
		UserID:         userID,
		TableID:        tableID,
		Amount:         500,
		IdempotencyKey: uuid.NewString(),
	}
	newBalance, err := mgr.TransferToEscrow(ctx, buyIn)
	require.NoError(t, err)
	require.Equal(t, startBalance-500, newBalance)

	escrow, err := mgr.GetEscrow(ctx, tableID)
	require.NoError(t, err)
	require.Equal(t, int64(500), escrow.Balance)

	// Replaying the same idempotency key must fail, not double-debit.
	_, err = mgr.TransferToEscrow(ctx, buyIn)
	require.Error(t, err)
	var dup *DuplicateTransactionError
	require.ErrorAs(t, err, &dup)

	cashOut := TransferRequest{
		UserID:         userID,
		TableID:        tableID,
		Amount:         500,
		IdempotencyKey: uuid.NewString(),
	}
	finalBalance, err := mgr.TransferFromEscrow(ctx, cashOut)
	require.NoError(t, err)
	require.Equal(t, startBalance, finalBalance)

	entries, err := mgr.GetEntries(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, CashOut, entries[0].EntryType)
	require.Equal(t, BuyIn, entries[1].EntryType)
}

func TestTransferToEscrowInsufficientBalance(t *testing.T) {
	mgr, _ := setupManager(t)
	ctx := context.Background()
	userID := newTestUserID(t)
	tableID := int64(newTestUserID(t))

	require.NoError(t, mgr.CreateWallet(ctx, userID))

	_, err := mgr.TransferToEscrow(ctx, TransferRequest{
		UserID:         userID,
		TableID:        tableID,
		Amount:         mgr.defaultBalance + 1,
		IdempotencyKey: uuid.NewString(),
	})
	require.Error(t, err)
	var insufficient *InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
}

func TestClaimFaucetRespectsCooldown(t *testing.T) {
	mgr, _ := setupManager(t)
	ctx := context.Background()
	userID := newTestUserID(t)
	require.NoError(t, mgr.CreateWallet(ctx, userID))

	balanceBefore, err := mgr.GetBalance(ctx, userID)
	require.NoError(t, err)

	claim, err := mgr.ClaimFaucet(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, mgr.faucetAmount, claim.Amount)
	require.True(t, claim.NextClaimAt.After(time.Now()))

	balanceAfter, err := mgr.GetBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, balanceBefore+mgr.faucetAmount, balanceAfter)

	_, err = mgr.ClaimFaucet(ctx, userID)
	require.Error(t, err)
	var notAvailable *FaucetNotAvailableError
	require.ErrorAs(t, err, &notAvailable)
}

func TestAdjustBalance(t *testing.T) {
	mgr, _ := setupManager(t)
	ctx := context.Background()
	userID := newTestUserID(t)
	require.NoError(t, mgr.CreateWallet(ctx, userID))

	before, err := mgr.GetBalance(ctx, userID)
	require.NoError(t, err)

	after, err := mgr.AdjustBalance(ctx, userID, -250, uuid.NewString(), "manual correction")
	require.NoError(t, err)
	require.Equal(t, before-250, after)
}
