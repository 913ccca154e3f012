package repositories

import (
	"context"

	"github.com/theplug/backend/internal/models"
)

// AccountRepository is the durable table of identities and balances.
type AccountRepository interface {
	Create(ctx context.Context, username, passwordHash string, initialCoins int64) (*models.Account, error)
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
}

// GiftRepository reads the append-only gift log.
type GiftRepository interface {
	ListForAccount(ctx context.Context, accountID int64, limit, offset int) ([]models.GiftTransaction, error)
}

// LedgerRepository runs fn inside one transaction. Everything written through
// the LedgerTx becomes visible together when fn returns nil and is discarded otherwise.
type LedgerRepository interface {
	RunInTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx is the set of writes allowed inside a ledger transaction.
type LedgerTx interface {
	// LockAccounts locks the given accounts in ascending id order and returns the
	// ones that exist. It may be called once per transaction.
	LockAccounts(ctx context.Context, ids ...int64) (map[int64]*models.Account, error)
	DebitCoins(ctx context.Context, accountID, value int64) error
	CreditEarnings(ctx context.Context, accountID, value int64) error
	InsertGift(ctx context.Context, g *models.GiftTransaction) error
}
