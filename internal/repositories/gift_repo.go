package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/theplug/backend/internal/models"
)

type GiftRepo struct {
	pool *pgxpool.Pool
}

func NewGiftRepo(pool *pgxpool.Pool) *GiftRepo {
	return &GiftRepo{pool: pool}
}

var _ GiftRepository = (*GiftRepo)(nil)

// ListForAccount returns gifts sent or received by the account, newest first.
func (r *GiftRepo) ListForAccount(ctx context.Context, accountID int64, limit, offset int) ([]models.GiftTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT g.id, g.from_user, g.to_user, f.username, t.username, g.value, g.created_at
		FROM gifts g
		JOIN users f ON f.id = g.from_user
		JOIN users t ON t.id = g.to_user
		WHERE g.from_user = $1 OR g.to_user = $1
		ORDER BY g.id DESC LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	gifts := make([]models.GiftTransaction, 0)
	for rows.Next() {
		var g models.GiftTransaction
		if err := rows.Scan(&g.ID, &g.FromAccountID, &g.ToAccountID, &g.FromUsername, &g.ToUsername, &g.Value, &g.CreatedAt); err != nil {
			return nil, err
		}
		gifts = append(gifts, g)
	}
	return gifts, rows.Err()
}
