package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theplug/backend/internal/models"
	"github.com/theplug/backend/internal/repositories"
)

func newAccounts(t *testing.T, s *Store, coins int64, names ...string) []*models.Account {
	t.Helper()
	out := make([]*models.Account, 0, len(names))
	for _, n := range names {
		a, err := s.Create(context.Background(), n, "hash", coins)
		require.NoError(t, err)
		out = append(out, a)
	}
	return out
}

func TestCreate_DuplicateUsername(t *testing.T) {
	s := New()
	newAccounts(t, s, 100, "alice")

	_, err := s.Create(context.Background(), "alice", "other", 100)
	assert.ErrorIs(t, err, repositories.ErrUsernameTaken)

	_, err = s.Create(context.Background(), "Alice", "other", 100)
	assert.NoError(t, err, "usernames are case sensitive")
}

func TestGetByUsername_NotFound(t *testing.T) {
	s := New()
	_, err := s.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestRunInTx_CommitAppliesAllWrites(t *testing.T) {
	s := New()
	accs := newAccounts(t, s, 100, "alice", "bob")
	ctx := context.Background()

	var gift *models.GiftTransaction
	err := s.RunInTx(ctx, func(tx repositories.LedgerTx) error {
		locked, err := tx.LockAccounts(ctx, accs[1].ID, accs[0].ID)
		require.NoError(t, err)
		require.Len(t, locked, 2)

		require.NoError(t, tx.DebitCoins(ctx, accs[0].ID, 30))
		require.NoError(t, tx.CreditEarnings(ctx, accs[1].ID, 30))
		gift = &models.GiftTransaction{FromAccountID: accs[0].ID, ToAccountID: accs[1].ID, Value: 30}
		return tx.InsertGift(ctx, gift)
	})
	require.NoError(t, err)

	alice, _ := s.GetByID(ctx, accs[0].ID)
	bob, _ := s.GetByID(ctx, accs[1].ID)
	assert.Equal(t, int64(70), alice.Coins)
	assert.Equal(t, int64(30), bob.Earnings)
	assert.Equal(t, int64(1), gift.ID)
	assert.False(t, gift.CreatedAt.IsZero())
	assert.Equal(t, 1, s.GiftCount())
}

func TestRunInTx_ErrorDiscardsWrites(t *testing.T) {
	s := New()
	accs := newAccounts(t, s, 100, "alice", "bob")
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(tx repositories.LedgerTx) error {
		_, _ = tx.LockAccounts(ctx, accs[0].ID, accs[1].ID)
		require.NoError(t, tx.DebitCoins(ctx, accs[0].ID, 40))
		require.NoError(t, tx.CreditEarnings(ctx, accs[1].ID, 40))
		_ = tx.InsertGift(ctx, &models.GiftTransaction{FromAccountID: accs[0].ID, ToAccountID: accs[1].ID, Value: 40})
		return boom
	})
	assert.ErrorIs(t, err, boom)

	alice, _ := s.GetByID(ctx, accs[0].ID)
	bob, _ := s.GetByID(ctx, accs[1].ID)
	assert.Equal(t, int64(100), alice.Coins)
	assert.Equal(t, int64(0), bob.Earnings)
	assert.Equal(t, 0, s.GiftCount())
}

func TestLedgerTx_Guards(t *testing.T) {
	s := New()
	accs := newAccounts(t, s, 10, "alice", "bob")
	ctx := context.Background()

	_ = s.RunInTx(ctx, func(tx repositories.LedgerTx) error {
		assert.Error(t, tx.DebitCoins(ctx, accs[0].ID, 1), "debit requires lock")

		locked, err := tx.LockAccounts(ctx, accs[0].ID, 999)
		require.NoError(t, err)
		assert.NotContains(t, locked, int64(999))

		_, err = tx.LockAccounts(ctx, accs[1].ID)
		assert.ErrorIs(t, err, repositories.ErrAlreadyLocked)

		assert.ErrorIs(t, tx.DebitCoins(ctx, accs[0].ID, 11), repositories.ErrInsufficientCoins)
		require.NoError(t, tx.DebitCoins(ctx, accs[0].ID, 6))
		assert.ErrorIs(t, tx.DebitCoins(ctx, accs[0].ID, 6), repositories.ErrInsufficientCoins, "pending debits count")
		return nil
	})
}

func TestLockAccounts_DuplicateIDsDoNotDeadlock(t *testing.T) {
	s := New()
	accs := newAccounts(t, s, 10, "alice")
	ctx := context.Background()

	err := s.RunInTx(ctx, func(tx repositories.LedgerTx) error {
		locked, err := tx.LockAccounts(ctx, accs[0].ID, accs[0].ID)
		require.NoError(t, err)
		assert.Len(t, locked, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestRunInTx_OpposingLockOrderDoesNotDeadlock(t *testing.T) {
	s := New()
	accs := newAccounts(t, s, 1000, "alice", "bob")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		from, to := accs[i%2], accs[(i+1)%2]
		go func() {
			defer wg.Done()
			_ = s.RunInTx(ctx, func(tx repositories.LedgerTx) error {
				if _, err := tx.LockAccounts(ctx, from.ID, to.ID); err != nil {
					return err
				}
				if err := tx.DebitCoins(ctx, from.ID, 1); err != nil {
					return err
				}
				return tx.CreditEarnings(ctx, to.ID, 1)
			})
		}()
	}
	wg.Wait()

	alice, _ := s.GetByID(ctx, accs[0].ID)
	bob, _ := s.GetByID(ctx, accs[1].ID)
	assert.Equal(t, int64(900), alice.Coins)
	assert.Equal(t, int64(900), bob.Coins)
	assert.Equal(t, int64(100), alice.Earnings)
	assert.Equal(t, int64(100), bob.Earnings)
}

func TestListForAccount_NewestFirstWithPaging(t *testing.T) {
	s := New()
	accs := newAccounts(t, s, 100, "alice", "bob", "carol")
	ctx := context.Background()

	send := func(from, to *models.Account, v int64) {
		require.NoError(t, s.RunInTx(ctx, func(tx repositories.LedgerTx) error {
			_, _ = tx.LockAccounts(ctx, from.ID, to.ID)
			_ = tx.DebitCoins(ctx, from.ID, v)
			_ = tx.CreditEarnings(ctx, to.ID, v)
			return tx.InsertGift(ctx, &models.GiftTransaction{FromAccountID: from.ID, ToAccountID: to.ID, Value: v})
		}))
	}
	send(accs[0], accs[1], 1)
	send(accs[2], accs[1], 2)
	send(accs[1], accs[0], 3)

	gifts, err := s.ListForAccount(ctx, accs[0].ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, gifts, 2)
	assert.Equal(t, int64(3), gifts[0].Value)
	assert.Equal(t, "bob", gifts[0].FromUsername)
	assert.Equal(t, "alice", gifts[0].ToUsername)

	page, err := s.ListForAccount(ctx, accs[1].ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(2), page[0].Value)
}
