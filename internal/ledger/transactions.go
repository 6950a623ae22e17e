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
	"gorm.io/gorm/clause"
)

// TransactionInput creates a transaction. SubType becomes the income or
// expense sub-type tag, whichever matches Type. A nil Date means now.
type TransactionInput struct {
	Name           string
	CategoryID     *uint
	Amount         decimal.Decimal
	AccountID      uint
	Type           string
	SubType        string
	Date           *time.Time
	FixedIncomeID  *uint
	FixedExpenseID *uint
}

// TransactionPatch leaves nil fields unchanged. ClearCategory removes the
// category and wins over CategoryID.
type TransactionPatch struct {
	Name          *string
	CategoryID    *uint
	ClearCategory bool
	Amount        *decimal.Decimal
	AccountID     *uint
	Type          *string
	SubType       *string
	Date          *time.Time
}

type TransactionFilter struct {
	Year       int
	Month      int
	Type       string
	AccountID  uint
	CategoryID uint
	Limit      int
	Offset     int
}

func validType(t string) error {
	if t != models.TypeIncome && t != models.TypeExpense {
		return apperr.Invalid("type", "must be income or expense")
	}
	return nil
}

// setSubType stores sub only on the column that matches the transaction type.
func setSubType(t *models.Transaction, sub string) {
	t.IncomeType, t.ExpenseType = nil, nil
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return
	}
	v := sub
	if t.Type == models.TypeIncome {
		t.IncomeType = &v
	} else {
		t.ExpenseType = &v
	}
}

func (t TransactionInput) validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return apperr.Invalid("name", "is required")
	}
	if err := requirePositive("amount", t.Amount); err != nil {
		return err
	}
	if err := validType(t.Type); err != nil {
		return err
	}
	if t.AccountID == 0 {
		return apperr.Invalid("accountId", "is required")
	}
	return nil
}

// CreateTransaction records a transaction and applies its effect on the
// account balance atomically.
func (s *Store) CreateTransaction(ctx context.Context, userID uint, in TransactionInput) (*models.Transaction, error) {
	var out *models.Transaction
	err := s.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		out, err = s.CreateTransactionTx(tx, userID, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTransactionTx is CreateTransaction inside a caller-owned transaction.
func (s *Store) CreateTransactionTx(tx *gorm.DB, userID uint, in TransactionInput) (*models.Transaction, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := CheckCategoryTx(tx, userID, in.CategoryID); err != nil {
		return nil, err
	}
	accs, err := lockAccounts(tx, userID, in.AccountID)
	if err != nil {
		return nil, err
	}

	date := s.clock.Now().UTC()
	if in.Date != nil {
		date = Noon(*in.Date)
	}
	t := models.Transaction{
		UserID:         userID,
		Name:           strings.TrimSpace(in.Name),
		CategoryID:     in.CategoryID,
		Amount:         in.Amount,
		AccountID:      in.AccountID,
		Type:           in.Type,
		FixedIncomeID:  in.FixedIncomeID,
		FixedExpenseID: in.FixedExpenseID,
		Date:           date,
	}
	setSubType(&t, in.SubType)

	if err := tx.Create(&t).Error; err != nil {
		return nil, apperr.Infra("create transaction", err)
	}
	if err := applyDelta(tx, accs[in.AccountID], t.Delta()); err != nil {
		return nil, err
	}
	return &t, nil
}

// forUpdate row-locks what the next query loads until the transaction ends.
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func loadTransaction(tx *gorm.DB, userID, id uint) (*models.Transaction, error) {
	var t models.Transaction
	err := tx.Where("id = ? AND user_id = ?", id, userID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("transaction %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.Infra("load transaction", err)
	}
	return &t, nil
}

func (s *Store) GetTransaction(ctx context.Context, userID, id uint) (*models.Transaction, error) {
	return loadTransaction(s.db.WithContext(ctx), userID, id)
}

// UpdateTransaction reverses the old effect on the old account and applies
// the new effect on the (possibly different) new account.
func (s *Store) UpdateTransaction(ctx context.Context, userID, id uint, p TransactionPatch) (*models.Transaction, error) {
	var out *models.Transaction
	err := s.WithTx(ctx, func(tx *gorm.DB) error {
		old, err := loadTransaction(forUpdate(tx), userID, id)
		if err != nil {
			return err
		}

		next := *old
		if p.Name != nil {
			next.Name = strings.TrimSpace(*p.Name)
			if next.Name == "" {
				return apperr.Invalid("name", "is required")
			}
		}
		switch {
		case p.ClearCategory:
			next.CategoryID = nil
		case p.CategoryID != nil:
			if err := CheckCategoryTx(tx, userID, p.CategoryID); err != nil {
				return err
			}
			next.CategoryID = p.CategoryID
		}
		if p.Amount != nil {
			if err := requirePositive("amount", *p.Amount); err != nil {
				return err
			}
			next.Amount = *p.Amount
		}
		if p.AccountID != nil {
			next.AccountID = *p.AccountID
		}
		if p.Type != nil {
			if err := validType(*p.Type); err != nil {
				return err
			}
			next.Type = *p.Type
		}
		if p.Date != nil {
			next.Date = Noon(*p.Date)
		}
		sub := ""
		if old.IncomeType != nil {
			sub = *old.IncomeType
		} else if old.ExpenseType != nil {
			sub = *old.ExpenseType
		}
		if p.SubType != nil {
			sub = *p.SubType
		}
		setSubType(&next, sub)

		accs, err := lockAccounts(tx, userID, old.AccountID, next.AccountID)
		if err != nil {
			return err
		}
		if err := applyDelta(tx, accs[old.AccountID], old.Delta().Neg()); err != nil {
			return err
		}
		if err := applyDelta(tx, accs[next.AccountID], next.Delta()); err != nil {
			return err
		}
		if err := tx.Save(&next).Error; err != nil {
			return apperr.Infra("update transaction", err)
		}
		out = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteTransaction removes the row and reverses its effect.
func (s *Store) DeleteTransaction(ctx context.Context, userID, id uint) error {
	return s.WithTx(ctx, func(tx *gorm.DB) error {
		t, err := loadTransaction(forUpdate(tx), userID, id)
		if err != nil {
			return err
		}
		accs, err := lockAccounts(tx, userID, t.AccountID)
		if err != nil {
			return err
		}
		if err := applyDelta(tx, accs[t.AccountID], t.Delta().Neg()); err != nil {
			return err
		}
		res := tx.Where("id = ? AND user_id = ?", t.ID, userID).Delete(&models.Transaction{})
		if res.Error != nil {
			return apperr.Infra("delete transaction", res.Error)
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("transaction %d: %w", id, apperr.ErrNotFound)
		}
		return nil
	})
}

// ListTransactions returns the user's transactions, newest first, and the
// total number of rows matching f.
func (s *Store) ListTransactions(ctx context.Context, userID uint, f TransactionFilter) ([]models.Transaction, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID)
	if f.Year > 0 {
		if f.Month >= 1 && f.Month <= 12 {
			start, end := MonthRange(f.Year, time.Month(f.Month))
			q = q.Where("date >= ? AND date < ?", start, end)
		} else {
			start, end := YearRange(f.Year)
			q = q.Where("date >= ? AND date < ?", start, end)
		}
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.AccountID != 0 {
		q = q.Where("account_id = ?", f.AccountID)
	}
	if f.CategoryID != 0 {
		q = q.Where("category_id = ?", f.CategoryID)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, apperr.Infra("count transactions", err)
	}

	list := []models.Transaction{}
	q = q.Order("date DESC, id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, 0, apperr.Infra("list transactions", err)
	}
	return list, total, nil
}
