package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// LedgerRepositoryPG implements domain.LedgerRepository backed by PostgreSQL.
// All balance arithmetic happens in SQL, never read-modify-write in Go, so
// concurrent jobs sharing an owner cannot lose updates.
type LedgerRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new ledger repository backed by PostgreSQL.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepositoryPG {
	return &LedgerRepositoryPG{pool: pool}
}

// Balance returns the owner's current balance. Owners without a row have a
// balance of zero.
func (r *LedgerRepositoryPG) Balance(ctx context.Context, ownerID string) (int, error) {
	var balance int
	err := r.pool.QueryRow(ctx,
		`SELECT balance FROM credit_balances WHERE owner_id = $1`, ownerID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// Credit adds amount to the owner's balance, creating the row if needed.
func (r *LedgerRepositoryPG) Credit(ctx context.Context, ownerID string, amount int) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO credit_balances (owner_id, balance)
VALUES ($1, $2)
ON CONFLICT (owner_id) DO UPDATE
SET balance = credit_balances.balance + EXCLUDED.balance,
    updated_at = NOW();
`, ownerID, amount)
	if err != nil {
		return fmt.Errorf("credit: %w", err)
	}
	return nil
}

// Debit subtracts amount from the owner's balance. The conditional update
// rejects the debit outright when the balance is too low.
func (r *LedgerRepositoryPG) Debit(ctx context.Context, ownerID string, amount int) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE credit_balances
SET balance = balance - $2, updated_at = NOW()
WHERE owner_id = $1 AND balance >= $2;
`, ownerID, amount)
	if err != nil {
		return fmt.Errorf("debit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientCredits
	}
	return nil
}
