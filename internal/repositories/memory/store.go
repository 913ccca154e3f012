// Package memory is an in-process implementation of the repository interfaces,
// used for local development (STORAGE_TYPE=memory) and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/theplug/backend/internal/models"
	"github.com/theplug/backend/internal/repositories"
)

// Store keeps accounts and gifts in maps. Ledger transactions serialize per
// account through accountLocks, acquired in ascending id order.
type Store struct {
	mu sync.RWMutex

	accounts      map[int64]*models.Account
	usernameIndex map[string]int64
	gifts         []models.GiftTransaction
	accountLocks  map[int64]*sync.Mutex

	nextAccountID int64
	nextGiftID    int64

	now func() time.Time
}

func New() *Store {
	return &Store{
		accounts:      make(map[int64]*models.Account),
		usernameIndex: make(map[string]int64),
		accountLocks:  make(map[int64]*sync.Mutex),
		now:           time.Now,
	}
}

var (
	_ repositories.AccountRepository = (*Store)(nil)
	_ repositories.GiftRepository    = (*Store)(nil)
	_ repositories.LedgerRepository  = (*Store)(nil)
)

// Accounts

func (s *Store) Create(ctx context.Context, username, passwordHash string, initialCoins int64) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usernameIndex[username]; ok {
		return nil, repositories.ErrUsernameTaken
	}

	s.nextAccountID++
	a := &models.Account{
		ID:           s.nextAccountID,
		Username:     username,
		PasswordHash: passwordHash,
		Coins:        initialCoins,
		CreatedAt:    s.now(),
	}
	s.accounts[a.ID] = a
	s.usernameIndex[username] = a.ID
	s.accountLocks[a.ID] = &sync.Mutex{}

	cp := *a
	return &cp, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	s.mu.RLock()
	id, ok := s.usernameIndex[username]
	s.mu.RUnlock()
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

// Gifts

func (s *Store) ListForAccount(ctx context.Context, accountID int64, limit, offset int) ([]models.GiftTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.GiftTransaction, 0)
	skipped := 0
	for i := len(s.gifts) - 1; i >= 0 && len(out) < limit; i-- {
		g := s.gifts[i]
		if g.FromAccountID != accountID && g.ToAccountID != accountID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		g.FromUsername = s.accounts[g.FromAccountID].Username
		g.ToUsername = s.accounts[g.ToAccountID].Username
		out = append(out, g)
	}
	return out, nil
}

// GiftCount returns the number of gift rows ever written.
func (s *Store) GiftCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.gifts)
}

// Ledger

func (s *Store) RunInTx(ctx context.Context, fn func(tx repositories.LedgerTx) error) error {
	tx := &memTx{
		store:    s,
		coins:    make(map[int64]int64),
		earnings: make(map[int64]int64),
	}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

type memTx struct {
	store  *Store
	held   []*sync.Mutex
	locked map[int64]bool

	// pending deltas, applied on commit
	coins    map[int64]int64
	earnings map[int64]int64
	gifts    []*models.GiftTransaction
}

func (t *memTx) LockAccounts(ctx context.Context, ids ...int64) (map[int64]*models.Account, error) {
	if t.locked != nil {
		return nil, repositories.ErrAlreadyLocked
	}
	t.locked = make(map[int64]bool, len(ids))

	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	accounts := make(map[int64]*models.Account, len(sorted))
	for _, id := range sorted {
		if t.locked[id] {
			continue
		}
		t.store.mu.RLock()
		l, ok := t.store.accountLocks[id]
		t.store.mu.RUnlock()
		if !ok {
			continue
		}

		l.Lock()
		t.held = append(t.held, l)
		t.locked[id] = true

		a, err := t.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		accounts[id] = a
	}
	return accounts, nil
}

func (t *memTx) DebitCoins(ctx context.Context, accountID, value int64) error {
	if !t.locked[accountID] {
		return fmt.Errorf("debit account %d: not locked", accountID)
	}
	a, err := t.store.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if a.Coins+t.coins[accountID] < value {
		return repositories.ErrInsufficientCoins
	}
	t.coins[accountID] -= value
	return nil
}

func (t *memTx) CreditEarnings(ctx context.Context, accountID, value int64) error {
	if !t.locked[accountID] {
		return fmt.Errorf("credit account %d: not locked", accountID)
	}
	t.earnings[accountID] += value
	return nil
}

func (t *memTx) InsertGift(ctx context.Context, g *models.GiftTransaction) error {
	t.gifts = append(t.gifts, g)
	return nil
}

func (t *memTx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, delta := range t.coins {
		if s.accounts[id].Coins+delta < 0 {
			return repositories.ErrInsufficientCoins
		}
	}
	for id, delta := range t.coins {
		s.accounts[id].Coins += delta
	}
	for id, delta := range t.earnings {
		s.accounts[id].Earnings += delta
	}
	for _, g := range t.gifts {
		s.nextGiftID++
		g.ID = s.nextGiftID
		g.CreatedAt = s.now()
		s.gifts = append(s.gifts, *g)
	}
	return nil
}

func (t *memTx) release() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.held[i].Unlock()
	}
	t.held = nil
}
