package wallet

import (
	"fmt"
	"time"
)

// TableID identifies a poker table's escrow account.
type TableID = int64

// Wallet is a user's chip balance.
type Wallet struct {
	UserID    int64     `json:"user_id"`
	Balance   int64     `json:"balance"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableEscrow holds the chips a table currently has in play across all
// seated players' buy-ins.
type TableEscrow struct {
	TableID   TableID   `json:"table_id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntryDirection is which side of the ledger an entry posts to.
type EntryDirection string

const (
	Debit  EntryDirection = "debit"
	Credit EntryDirection = "credit"
)

// EntryType classifies why a ledger entry was created.
type EntryType string

const (
	BuyIn       EntryType = "buy_in"
	CashOut     EntryType = "cash_out"
	Rake        EntryType = "rake"
	Bonus       EntryType = "bonus"
	AdminAdjust EntryType = "admin_adjust"
	Transfer    EntryType = "transfer"
)

// WalletEntry is one row of the double-entry ledger. Amount is signed:
// negative for debits, positive for credits; BalanceAfter is the wallet or
// escrow balance immediately following this entry.
type WalletEntry struct {
	ID             int64          `json:"id"`
	UserID         int64          `json:"user_id"`
	TableID        *TableID       `json:"table_id,omitempty"`
	Amount         int64          `json:"amount"`
	BalanceAfter   int64          `json:"balance_after"`
	Direction      EntryDirection `json:"direction"`
	EntryType      EntryType      `json:"entry_type"`
	IdempotencyKey string         `json:"idempotency_key"`
	Description    *string        `json:"description,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// FaucetClaim records a single daily-faucet payout.
type FaucetClaim struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Amount      int64     `json:"amount"`
	ClaimedAt   time.Time `json:"claimed_at"`
	NextClaimAt time.Time `json:"next_claim_at"`
}

// TransferRequest moves chips between a user's wallet and a table's escrow.
type TransferRequest struct {
	UserID         int64
	TableID        TableID
	Amount         int64
	IdempotencyKey string
	Description    string
}

// InsufficientBalanceError reports a debit that would have overdrawn an
// account.
type InsufficientBalanceError struct {
	UserID    int64
	Available int64
	Required  int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("wallet: user %d has %d chips, needs %d", e.UserID, e.Available, e.Required)
}

// DuplicateTransactionError reports an idempotency key that was already used.
type DuplicateTransactionError struct {
	IdempotencyKey string
}

func (e *DuplicateTransactionError) Error() string {
	return fmt.Sprintf("wallet: idempotency key %q already used", e.IdempotencyKey)
}

// FaucetNotAvailableError reports a faucet claim attempted before cooldown.
type FaucetNotAvailableError struct {
	NextClaimAt time.Time
}

func (e *FaucetNotAvailableError) Error() string {
	return fmt.Sprintf("wallet: faucet not available until %s", e.NextClaimAt.Format(time.RFC3339))
}

// WalletNotFoundError reports a lookup against a user with no wallet row.
type WalletNotFoundError struct {
	UserID int64
}

func (e *WalletNotFoundError) Error() string {
	return fmt.Sprintf("wallet: no wallet for user %d", e.UserID)
}

// EscrowNotFoundError reports a lookup against a table with no escrow row.
type EscrowNotFoundError struct {
	TableID TableID
}

func (e *EscrowNotFoundError) Error() string {
	return fmt.Sprintf("wallet: no escrow for table %d", e.TableID)
}

// InvalidAmountError reports a non-positive transfer amount.
type InvalidAmountError struct {
	Amount int64
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("wallet: invalid amount %d", e.Amount)
}

// ErrBalanceOverflow is returned when crediting an account would overflow
// int64.
var ErrBalanceOverflow = fmt.Errorf("wallet: balance overflow")
