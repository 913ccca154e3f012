package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/theplug/backend/internal/metrics"
	"github.com/theplug/backend/internal/models"
	"github.com/theplug/backend/internal/repositories"
	"go.uber.org/zap"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

type WalletService struct {
	accounts repositories.AccountRepository
	gifts    repositories.GiftRepository
	ledger   repositories.LedgerRepository
	log      *zap.Logger
}

func NewWalletService(
	accounts repositories.AccountRepository,
	gifts repositories.GiftRepository,
	ledger repositories.LedgerRepository,
	log *zap.Logger,
) *WalletService {
	return &WalletService{
		accounts: accounts,
		gifts:    gifts,
		ledger:   ledger,
		log:      log,
	}
}

// Transfer moves value coins from the sender's balance to the recipient's
// earnings and records the gift. The three writes commit together or not
// at all; on any error no balance has changed.
func (s *WalletService) Transfer(ctx context.Context, fromID int64, toUsername string, value int64) (*models.GiftTransaction, error) {
	gift, err := s.transfer(ctx, fromID, toUsername, value)
	metrics.RecordGift(giftResult(err), value)
	if err != nil {
		s.log.Info("gift rejected",
			zap.Int64("from_id", fromID),
			zap.String("to_username", toUsername),
			zap.Int64("value", value),
			zap.Error(err))
		return nil, err
	}

	s.log.Info("gift sent",
		zap.Int64("gift_id", gift.ID),
		zap.Int64("from_id", gift.FromAccountID),
		zap.Int64("to_id", gift.ToAccountID),
		zap.Int64("value", gift.Value))
	return gift, nil
}

func (s *WalletService) transfer(ctx context.Context, fromID int64, toUsername string, value int64) (*models.GiftTransaction, error) {
	if value <= 0 {
		return nil, ErrInvalidValue
	}
	if toUsername == "" {
		return nil, ErrUnknownRecipient
	}

	receiver, err := s.accounts.GetByUsername(ctx, toUsername)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUnknownRecipient
	}
	if err != nil {
		return nil, fmt.Errorf("transfer: resolve recipient: %w", err)
	}
	if receiver.ID == fromID {
		return nil, ErrSelfTransfer
	}

	var gift *models.GiftTransaction
	err = s.ledger.RunInTx(ctx, func(tx repositories.LedgerTx) error {
		locked, err := tx.LockAccounts(ctx, fromID, receiver.ID)
		if err != nil {
			return fmt.Errorf("lock accounts: %w", err)
		}
		sender, ok := locked[fromID]
		if !ok {
			return ErrAccountNotFound
		}
		to, ok := locked[receiver.ID]
		if !ok {
			return ErrUnknownRecipient
		}
		if sender.Coins < value {
			return ErrInsufficientFunds
		}

		if err := tx.DebitCoins(ctx, sender.ID, value); err != nil {
			if errors.Is(err, repositories.ErrInsufficientCoins) {
				return ErrInsufficientFunds
			}
			return fmt.Errorf("debit sender: %w", err)
		}
		if err := tx.CreditEarnings(ctx, to.ID, value); err != nil {
			return fmt.Errorf("credit recipient: %w", err)
		}

		g := &models.GiftTransaction{
			FromAccountID: sender.ID,
			ToAccountID:   to.ID,
			FromUsername:  sender.Username,
			ToUsername:    to.Username,
			Value:         value,
		}
		if err := tx.InsertGift(ctx, g); err != nil {
			return fmt.Errorf("record gift: %w", err)
		}
		gift = g
		return nil
	})
	if err != nil {
		if isWalletError(err) {
			return nil, err
		}
		if errors.Is(err, repositories.ErrInsufficientCoins) {
			return nil, ErrInsufficientFunds
		}
		return nil, fmt.Errorf("transfer: %w", err)
	}
	return gift, nil
}

// Balance returns the current snapshot of an account.
func (s *WalletService) Balance(ctx context.Context, accountID int64) (*models.Account, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	return a, nil
}

// History lists gifts the account sent or received, newest first.
func (s *WalletService) History(ctx context.Context, accountID int64, limit, offset int) ([]models.GiftTransaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	gifts, err := s.gifts.ListForAccount(ctx, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	if gifts == nil {
		gifts = []models.GiftTransaction{}
	}
	return gifts, nil
}

func isWalletError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrUnknownRecipient) ||
		errors.Is(err, ErrSelfTransfer) ||
		errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, ErrAccountNotFound)
}

func giftResult(err error) string {
	switch {
	case err == nil:
		return metrics.GiftOK
	case errors.Is(err, ErrInsufficientFunds):
		return metrics.GiftInsufficientFunds
	case errors.Is(err, ErrUnknownRecipient):
		return metrics.GiftUnknownRecipient
	case errors.Is(err, ErrSelfTransfer):
		return metrics.GiftSelfTransfer
	case errors.Is(err, ErrInvalidValue):
		return metrics.GiftInvalid
	default:
		return metrics.GiftError
	}
}
