package repositories

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/theplug/backend/internal/models"
)

type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

var _ LedgerRepository = (*LedgerRepo)(nil)

func (r *LedgerRepo) RunInTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgLedgerTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

type pgLedgerTx struct {
	tx     pgx.Tx
	locked bool
}

func (t *pgLedgerTx) LockAccounts(ctx context.Context, ids ...int64) (map[int64]*models.Account, error) {
	if t.locked {
		return nil, ErrAlreadyLocked
	}
	t.locked = true

	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rows, err := t.tx.Query(ctx, `
		SELECT id, username, password_hash, coins, earnings, created_at
		FROM users WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, sorted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make(map[int64]*models.Account, len(sorted))
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Coins, &a.Earnings, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts[a.ID] = &a
	}
	return accounts, rows.Err()
}

func (t *pgLedgerTx) DebitCoins(ctx context.Context, accountID, value int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE users SET coins = coins - $1
		WHERE id = $2 AND coins >= $1
	`, value, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientCoins
	}
	return nil
}

func (t *pgLedgerTx) CreditEarnings(ctx context.Context, accountID, value int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE users SET earnings = earnings + $1 WHERE id = $2`, value, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgLedgerTx) InsertGift(ctx context.Context, g *models.GiftTransaction) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO gifts (from_user, to_user, value)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, g.FromAccountID, g.ToAccountID, g.Value).Scan(&g.ID, &g.CreatedAt)
}
