package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/theplug/backend/internal/models"
)

const pgUniqueViolation = "23505"

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

var _ AccountRepository = (*AccountRepo)(nil)

func (r *AccountRepo) Create(ctx context.Context, username, passwordHash string, initialCoins int64) (*models.Account, error) {
	a := models.Account{Username: username, PasswordHash: passwordHash}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, coins)
		VALUES ($1, $2, $3)
		RETURNING id, coins, earnings, created_at
	`, username, passwordHash, initialCoins).Scan(&a.ID, &a.Coins, &a.Earnings, &a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, coins, earnings, created_at
		FROM users WHERE id = $1
	`, id))
}

func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, coins, earnings, created_at
		FROM users WHERE username = $1
	`, username))
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Coins, &a.Earnings, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
