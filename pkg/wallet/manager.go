// Package wallet implements the double-entry chip ledger: per-user wallets,
// per-table escrow accounts, buy-in/cash-out transfers between them, and a
// daily faucet.
package wallet

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultDefaultBalance   = 10000
	defaultFaucetAmount     = 1000
	defaultFaucetCooldownHr = 24
)

// Manager is the wallet ledger, backed by a Postgres pool.
type Manager struct {
	pool           *pgxpool.Pool
	defaultBalance int64
	faucetAmount   int64
	faucetCooldown time.Duration
}

// NewManager builds a Manager. DEFAULT_WALLET_BALANCE, FAUCET_AMOUNT, and
// FAUCET_COOLDOWN_HOURS override the defaults when set.
func NewManager(pool *pgxpool.Pool) *Manager {
	return &Manager{
		pool:           pool,
		defaultBalance: envInt64("DEFAULT_WALLET_BALANCE", defaultDefaultBalance),
		faucetAmount:   envInt64("FAUCET_AMOUNT", defaultFaucetAmount),
		faucetCooldown: time.Duration(envInt64("FAUCET_COOLDOWN_HOURS", defaultFaucetCooldownHr)) * time.Hour,
	}
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// CreateWallet opens a wallet for user, seeded with the manager's default
// balance. A second call for the same user is a no-op.
func (m *Manager) CreateWallet(ctx context.Context, userID int64) error {
	_, err := m.pool.Exec(ctx, `
		INSERT INTO wallets (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, m.defaultBalance)
	return err
}

// GetWallet returns a user's wallet row.
func (m *Manager) GetWallet(ctx context.Context, userID int64) (*Wallet, error) {
	var w Wallet
	err := m.pool.QueryRow(ctx, `
		SELECT user_id, balance, currency, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
	`, userID).Scan(&w.UserID, &w.Balance, &w.Currency, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &WalletNotFoundError{UserID: userID}
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetBalance is a convenience wrapper over GetWallet for callers that only
// need the chip count.
func (m *Manager) GetBalance(ctx context.Context, userID int64) (int64, error) {
	w, err := m.GetWallet(ctx, userID)
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

// GetEscrow returns a table's escrow row.
func (m *Manager) GetEscrow(ctx context.Context, tableID TableID) (*TableEscrow, error) {
	var e TableEscrow
	err := m.pool.QueryRow(ctx, `
		SELECT table_id, balance, created_at, updated_at
		FROM table_escrows
		WHERE table_id = $1
	`, tableID).Scan(&e.TableID, &e.Balance, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &EscrowNotFoundError{TableID: tableID}
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// TransferToEscrow moves chips from a user's wallet into a table's escrow
// (a buy-in). It is idempotent on req.IdempotencyKey and returns the user's
// new wallet balance.
func (m *Manager) TransferToEscrow(ctx context.Context, req TransferRequest) (int64, error) {
	if req.Amount <= 0 {
		return 0, &InvalidAmountError{Amount: req.Amount}
	}

	var newBalance int64
	err := pgx.BeginTxFunc(ctx, m.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if used, err := idempotencyKeyUsed(ctx, tx, req.IdempotencyKey); err != nil {
			return err
		} else if used {
			return &DuplicateTransactionError{IdempotencyKey: req.IdempotencyKey}
		}

		// Atomic debit-with-check: avoids a separate read-then-write race.
		err := tx.QueryRow(ctx, `
			UPDATE wallets
			SET balance = balance - $1, updated_at = now()
			WHERE user_id = $2 AND balance >= $1
			RETURNING balance
		`, req.Amount, req.UserID).Scan(&newBalance)
		if errors.Is(err, pgx.ErrNoRows) {
			return m.explainDebitFailure(ctx, tx, req.UserID, req.Amount)
		}
		if err != nil {
			return err
		}

		desc := req.Description
		if desc == "" {
			desc = "buy-in"
		}
		if _, err := m.createEntry(ctx, tx, req.UserID, &req.TableID, -req.Amount, newBalance,
			Debit, BuyIn, req.IdempotencyKey, desc); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO table_escrows (table_id, balance, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (table_id) DO UPDATE SET
				balance = table_escrows.balance + EXCLUDED.balance,
				updated_at = now()
		`, req.TableID, req.Amount)
		return err
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// TransferFromEscrow moves chips from a table's escrow back into a user's
// wallet (a cash-out). It is idempotent on req.IdempotencyKey and returns
// the user's new wallet balance.
func (m *Manager) TransferFromEscrow(ctx context.Context, req TransferRequest) (int64, error) {
	if req.Amount <= 0 {
		return 0, &InvalidAmountError{Amount: req.Amount}
	}

	var newBalance int64
	err := pgx.BeginTxFunc(ctx, m.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if used, err := idempotencyKeyUsed(ctx, tx, req.IdempotencyKey); err != nil {
			return err
		} else if used {
			return &DuplicateTransactionError{IdempotencyKey: req.IdempotencyKey}
		}

		var escrowBalance int64
		err := tx.QueryRow(ctx, `
			UPDATE table_escrows
			SET balance = balance - $1, updated_at = now()
			WHERE table_id = $2 AND balance >= $1
			RETURNING balance
		`, req.Amount, req.TableID).Scan(&escrowBalance)
		if errors.Is(err, pgx.ErrNoRows) {
			return m.explainEscrowDebitFailure(ctx, tx, req.UserID, req.TableID, req.Amount)
		}
		if err != nil {
			return err
		}

		var currentBalance int64
		err = tx.QueryRow(ctx, `
			SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE
		`, req.UserID).Scan(&currentBalance)
		if errors.Is(err, pgx.ErrNoRows) {
			return &WalletNotFoundError{UserID: req.UserID}
		}
		if err != nil {
			return err
		}

		newBalance = currentBalance + req.Amount
		if newBalance < currentBalance {
			return ErrBalanceOverflow
		}

		if _, err := tx.Exec(ctx, `
			UPDATE wallets SET balance = $1, updated_at = now() WHERE user_id = $2
		`, newBalance, req.UserID); err != nil {
			return err
		}

		desc := req.Description
		if desc == "" {
			desc = "cash-out"
		}
		_, err = m.createEntry(ctx, tx, req.UserID, &req.TableID, req.Amount, newBalance,
			Credit, CashOut, req.IdempotencyKey, desc)
		return err
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// ClaimFaucet credits the daily faucet amount to a user's wallet if their
// cooldown has elapsed.
func (m *Manager) ClaimFaucet(ctx context.Context, userID int64) (*FaucetClaim, error) {
	var claim FaucetClaim
	err := pgx.BeginTxFunc(ctx, m.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		var nextClaimAt time.Time
		err := tx.QueryRow(ctx, `
			SELECT next_claim_at FROM faucet_claims
			WHERE user_id = $1
			ORDER BY claimed_at DESC
			LIMIT 1
			FOR UPDATE
		`, userID).Scan(&nextClaimAt)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if err == nil && time.Now().Before(nextClaimAt) {
			return &FaucetNotAvailableError{NextClaimAt: nextClaimAt}
		}

		var currentBalance int64
		err = tx.QueryRow(ctx, `
			SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE
		`, userID).Scan(&currentBalance)
		if errors.Is(err, pgx.ErrNoRows) {
			return &WalletNotFoundError{UserID: userID}
		}
		if err != nil {
			return err
		}

		newBalance := currentBalance + m.faucetAmount
		if newBalance < currentBalance {
			return ErrBalanceOverflow
		}

		if _, err := tx.Exec(ctx, `
			UPDATE wallets SET balance = $1, updated_at = now() WHERE user_id = $2
		`, newBalance, userID); err != nil {
			return err
		}

		idempotencyKey := uuid.New().String()
		if _, err := m.createEntry(ctx, tx, userID, nil, m.faucetAmount, newBalance,
			Credit, Bonus, idempotencyKey, "daily faucet claim"); err != nil {
			return err
		}

		claimedAt := time.Now()
		nextClaim := claimedAt.Add(m.faucetCooldown)
		err = tx.QueryRow(ctx, `
			INSERT INTO faucet_claims (user_id, amount, claimed_at, next_claim_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id, user_id, amount, claimed_at, next_claim_at
		`, userID, m.faucetAmount, claimedAt, nextClaim).Scan(
			&claim.ID, &claim.UserID, &claim.Amount, &claim.ClaimedAt, &claim.NextClaimAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// AdjustBalance applies an administrative credit or debit outside the
// buy-in/cash-out flow (e.g. manual correction, promotional bonus).
func (m *Manager) AdjustBalance(ctx context.Context, userID int64, delta int64, idempotencyKey, description string) (int64, error) {
	if delta == 0 {
		return 0, &InvalidAmountError{Amount: delta}
	}

	direction := Credit
	if delta < 0 {
		direction = Debit
	}

	var newBalance int64
	err := pgx.BeginTxFunc(ctx, m.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if used, err := idempotencyKeyUsed(ctx, tx, idempotencyKey); err != nil {
			return err
		} else if used {
			return &DuplicateTransactionError{IdempotencyKey: idempotencyKey}
		}

		err := tx.QueryRow(ctx, `
			UPDATE wallets
			SET balance = balance + $1, updated_at = now()
			WHERE user_id = $2 AND balance + $1 >= 0
			RETURNING balance
		`, delta, userID).Scan(&newBalance)
		if errors.Is(err, pgx.ErrNoRows) {
			return m.explainDebitFailure(ctx, tx, userID, -delta)
		}
		if err != nil {
			return err
		}

		_, err = m.createEntry(ctx, tx, userID, nil, delta, newBalance, direction, AdminAdjust, idempotencyKey, description)
		return err
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// GetEntries returns a user's most recent ledger entries, newest first.
func (m *Manager) GetEntries(ctx context.Context, userID int64, limit int64) ([]WalletEntry, error) {
	rows, err := m.pool.Query(ctx, `
		SELECT id, user_id, table_id, amount, balance_after, direction, entry_type,
		       idempotency_key, description, created_at
		FROM wallet_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []WalletEntry
	for rows.Next() {
		var e WalletEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.TableID, &e.Amount, &e.BalanceAfter,
			&e.Direction, &e.EntryType, &e.IdempotencyKey, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (m *Manager) createEntry(ctx context.Context, tx pgx.Tx, userID int64, tableID *TableID, amount, balanceAfter int64,
	direction EntryDirection, entryType EntryType, idempotencyKey, description string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO wallet_entries (user_id, table_id, amount, balance_after, direction, entry_type, idempotency_key, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, userID, tableID, amount, balanceAfter, direction, entryType, idempotencyKey, description).Scan(&id)
	return id, err
}

func idempotencyKeyUsed(ctx context.Context, tx pgx.Tx, key string) (bool, error) {
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM wallet_entries WHERE idempotency_key = $1`, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// explainDebitFailure distinguishes "wallet missing" from "insufficient
// balance" after an atomic UPDATE ... WHERE balance >= $1 matched no rows.
func (m *Manager) explainDebitFailure(ctx context.Context, tx pgx.Tx, userID int64, required int64) error {
	var available int64
	err := tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE user_id = $1`, userID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return &WalletNotFoundError{UserID: userID}
	}
	if err != nil {
		return err
	}
	return &InsufficientBalanceError{UserID: userID, Available: available, Required: required}
}

func (m *Manager) explainEscrowDebitFailure(ctx context.Context, tx pgx.Tx, userID int64, tableID TableID, required int64) error {
	var available int64
	err := tx.QueryRow(ctx, `SELECT balance FROM table_escrows WHERE table_id = $1`, tableID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return &EscrowNotFoundError{TableID: tableID}
	}
	if err != nil {
		return err
	}
	return &InsufficientBalanceError{UserID: userID, Available: available, Required: required}
}
