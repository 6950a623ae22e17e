package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Jezerjjv/saving-back/internal/apperr"
	"github.com/Jezerjjv/saving-back/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransferInput creates a transfer. A nil Date means now; a given date is
// stored as-is so callers can backdate materialized periodic transfers.
type TransferInput struct {
	FromAccountID      uint
	ToAccountID        uint
	Amount             decimal.Decimal
	Description        string
	Date               *time.Time
	PeriodicTransferID *uint
}

func (in TransferInput) validate() error {
	if in.FromAccountID == 0 || in.ToAccountID == 0 {
		return apperr.Invalid("accountId", "origin and destination are required")
	}
	if in.FromAccountID == in.ToAccountID {
		return apperr.Invalid("toAccountId", "origin and destination must differ")
	}
	return requirePositive("amount", in.Amount)
}

// CreateTransfer moves Amount from one account to the other in one step.
// Sufficient funds are not checked here.
func (s *Store) CreateTransfer(ctx context.Context, userID uint, in TransferInput) (*models.Transfer, error) {
	var out *models.Transfer
	err := s.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		out, err = s.CreateTransferTx(tx, userID, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTransferTx is CreateTransfer inside a caller-owned transaction.
func (s *Store) CreateTransferTx(tx *gorm.DB, userID uint, in TransferInput) (*models.Transfer, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	accs, err := lockAccounts(tx, userID, in.FromAccountID, in.ToAccountID)
	if err != nil {
		return nil, err
	}

	date := s.clock.Now().UTC()
	if in.Date != nil {
		date = in.Date.UTC()
	}
	tr := models.Transfer{
		UserID:             userID,
		FromAccountID:      in.FromAccountID,
		ToAccountID:        in.ToAccountID,
		Amount:             in.Amount,
		Description:        strings.TrimSpace(in.Description),
		Date:               date,
		PeriodicTransferID: in.PeriodicTransferID,
	}
	if err := tx.Create(&tr).Error; err != nil {
		return nil, apperr.Infra("create transfer", err)
	}
	if err := applyDelta(tx, accs[in.FromAccountID], in.Amount.Neg()); err != nil {
		return nil, err
	}
	if err := applyDelta(tx, accs[in.ToAccountID], in.Amount); err != nil {
		return nil, err
	}
	return &tr, nil
}

func loadTransfer(tx *gorm.DB, userID, id uint) (*models.Transfer, error) {
	var tr models.Transfer
	err := tx.Where("id = ? AND user_id = ?", id, userID).First(&tr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("transfer %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.Infra("load transfer", err)
	}
	return &tr, nil
}

func (s *Store) GetTransfer(ctx context.Context, userID, id uint) (*models.Transfer, error) {
	return loadTransfer(s.db.WithContext(ctx), userID, id)
}

// DeleteTransfer reverses both legs and removes the row.
func (s *Store) DeleteTransfer(ctx context.Context, userID, id uint) error {
	return s.WithTx(ctx, func(tx *gorm.DB) error {
		tr, err := loadTransfer(forUpdate(tx), userID, id)
		if err != nil {
			return err
		}
		accs, err := lockAccounts(tx, userID, tr.FromAccountID, tr.ToAccountID)
		if err != nil {
			return err
		}
		if err := applyDelta(tx, accs[tr.FromAccountID], tr.Amount); err != nil {
			return err
		}
		if err := applyDelta(tx, accs[tr.ToAccountID], tr.Amount.Neg()); err != nil {
			return err
		}
		res := tx.Where("id = ? AND user_id = ?", tr.ID, userID).Delete(&models.Transfer{})
		if res.Error != nil {
			return apperr.Infra("delete transfer", res.Error)
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("transfer %d: %w", id, apperr.ErrNotFound)
		}
		return nil
	})
}

// ListTransfers returns transfers newest first, optionally limited to a month.
func (s *Store) ListTransfers(ctx context.Context, userID uint, year, month int) ([]models.Transfer, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if year > 0 && month >= 1 && month <= 12 {
		start, end := MonthRange(year, time.Month(month))
		q = q.Where("date >= ? AND date < ?", start, end)
	}
	list := []models.Transfer{}
	if err := q.Order("date DESC, id DESC").Find(&list).Error; err != nil {
		return nil, apperr.Infra("list transfers", err)
	}
	return list, nil
}
