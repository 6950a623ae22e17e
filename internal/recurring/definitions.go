// Package recurring stores fixed incomes, fixed expenses and periodic
// transfers, and materializes them into ledger rows once per month.
package recurring

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Jezerjjv/saving-back/internal/apperr"
	"github.com/Jezerjjv/saving-back/internal/ledger"
	"github.com/Jezerjjv/saving-back/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Kind selects fixed incomes or fixed expenses.
type Kind int

const (
	Income Kind = iota
	Expense
)

func (k Kind) String() string {
	if k == Expense {
		return "fixed-expense"
	}
	return "fixed-income"
}

func (k Kind) table() string {
	if k == Expense {
		return models.FixedExpense{}.TableName()
	}
	return models.FixedIncome{}.TableName()
}

// TxType is the transaction type a definition of this kind produces.
func (k Kind) TxType() string {
	if k == Expense {
		return models.TypeExpense
	}
	return models.TypeIncome
}

// ClampDay maps any day-of-month input into 1..31; zero or negative is 1.
func ClampDay(n int) int {
	if n < 1 {
		return 1
	}
	if n > 31 {
		return 31
	}
	return n
}

type FixedInput struct {
	Name       string
	CategoryID *uint
	Amount     decimal.Decimal
	AccountID  uint
	DayOfMonth int
}

type PeriodicInput struct {
	FromAccountID uint
	ToAccountID   uint
	Amount        decimal.Decimal
	Description   string
	DayOfMonth    int
}

// Definitions is the CRUD store for recurring definitions.
type Definitions struct {
	db *gorm.DB
}

func NewDefinitions(db *gorm.DB) *Definitions {
	return &Definitions{db: db}
}

func checkAccounts(db *gorm.DB, userID uint, ids ...uint) error {
	for _, id := range ids {
		var n int64
		if err := db.Model(&models.Account{}).Where("id = ? AND user_id = ?", id, userID).Count(&n).Error; err != nil {
			return apperr.Infra("check account", err)
		}
		if n == 0 {
			return apperr.Invalid("accountId", fmt.Sprintf("account %d not found", id))
		}
	}
	return nil
}

func (in FixedInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Invalid("name", "is required")
	}
	if !in.Amount.IsPositive() {
		return apperr.Invalid("amount", "must be positive")
	}
	if in.AccountID == 0 {
		return apperr.Invalid("accountId", "is required")
	}
	return nil
}

func (in PeriodicInput) validate() error {
	if in.FromAccountID == 0 || in.ToAccountID == 0 {
		return apperr.Invalid("accountId", "origin and destination are required")
	}
	if in.FromAccountID == in.ToAccountID {
		return apperr.Invalid("toAccountId", "accounts must differ")
	}
	if !in.Amount.IsPositive() {
		return apperr.Invalid("amount", "must be positive")
	}
	return nil
}

// ---------- fixed incomes / expenses ----------

func (d *Definitions) ListFixed(ctx context.Context, kind Kind, userID uint) ([]models.FixedEntry, error) {
	out := []models.FixedEntry{}
	if err := d.db.WithContext(ctx).Table(kind.table()).
		Where("user_id = ?", userID).
		Order("day_of_month, id").
		Find(&out).Error; err != nil {
		return nil, apperr.Infra("list "+kind.String(), err)
	}
	return out, nil
}

func loadFixed(db *gorm.DB, kind Kind, userID, id uint) (*models.FixedEntry, error) {
	var e models.FixedEntry
	err := db.Table(kind.table()).Where("id = ? AND user_id = ?", id, userID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s %d: %w", kind, id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.Infra("load "+kind.String(), err)
	}
	return &e, nil
}

func (d *Definitions) GetFixed(ctx context.Context, kind Kind, userID, id uint) (*models.FixedEntry, error) {
	return loadFixed(d.db.WithContext(ctx), kind, userID, id)
}

func (d *Definitions) CreateFixed(ctx context.Context, kind Kind, userID uint, in FixedInput) (*models.FixedEntry, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	db := d.db.WithContext(ctx)
	if err := checkAccounts(db, userID, in.AccountID); err != nil {
		return nil, err
	}
	if err := ledger.CheckCategoryTx(db, userID, in.CategoryID); err != nil {
		return nil, err
	}
	e := models.FixedEntry{
		UserID:     userID,
		Name:       strings.TrimSpace(in.Name),
		CategoryID: in.CategoryID,
		Amount:     in.Amount,
		AccountID:  in.AccountID,
		DayOfMonth: ClampDay(in.DayOfMonth),
	}
	if err := db.Table(kind.table()).Create(&e).Error; err != nil {
		return nil, apperr.Infra("create "+kind.String(), err)
	}
	return &e, nil
}

// UpdateFixed replaces the definition's fields. Already materialized
// transactions are not touched.
func (d *Definitions) UpdateFixed(ctx context.Context, kind Kind, userID, id uint, in FixedInput) (*models.FixedEntry, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	db := d.db.WithContext(ctx)
	e, err := loadFixed(db, kind, userID, id)
	if err != nil {
		return nil, err
	}
	if err := checkAccounts(db, userID, in.AccountID); err != nil {
		return nil, err
	}
	if err := ledger.CheckCategoryTx(db, userID, in.CategoryID); err != nil {
		return nil, err
	}
	e.Name = strings.TrimSpace(in.Name)
	e.CategoryID = in.CategoryID
	e.Amount = in.Amount
	e.AccountID = in.AccountID
	e.DayOfMonth = ClampDay(in.DayOfMonth)
	if err := db.Table(kind.table()).Where("id = ?", e.ID).Updates(map[string]interface{}{
		"name":         e.Name,
		"category_id":  e.CategoryID,
		"amount":       e.Amount,
		"account_id":   e.AccountID,
		"day_of_month": e.DayOfMonth,
	}).Error; err != nil {
		return nil, apperr.Infra("update "+kind.String(), err)
	}
	return e, nil
}

func (d *Definitions) DeleteFixed(ctx context.Context, kind Kind, userID, id uint) error {
	res := d.db.WithContext(ctx).Table(kind.table()).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.FixedEntry{})
	if res.Error != nil {
		return apperr.Infra("delete "+kind.String(), res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, apperr.ErrNotFound)
	}
	return nil
}

// ---------- periodic transfers ----------

func (d *Definitions) ListPeriodic(ctx context.Context, userID uint) ([]models.PeriodicTransfer, error) {
	out := []models.PeriodicTransfer{}
	if err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("day_of_month, id").
		Find(&out).Error; err != nil {
		return nil, apperr.Infra("list periodic transfers", err)
	}
	return out, nil
}

func loadPeriodic(db *gorm.DB, userID, id uint) (*models.PeriodicTransfer, error) {
	var p models.PeriodicTransfer
	err := db.Where("id = ? AND user_id = ?", id, userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("periodic transfer %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.Infra("load periodic transfer", err)
	}
	return &p, nil
}

func (d *Definitions) GetPeriodic(ctx context.Context, userID, id uint) (*models.PeriodicTransfer, error) {
	return loadPeriodic(d.db.WithContext(ctx), userID, id)
}

func (d *Definitions) CreatePeriodic(ctx context.Context, userID uint, in PeriodicInput) (*models.PeriodicTransfer, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	db := d.db.WithContext(ctx)
	if err := checkAccounts(db, userID, in.FromAccountID, in.ToAccountID); err != nil {
		return nil, err
	}
	p := models.PeriodicTransfer{
		UserID:        userID,
		FromAccountID: in.FromAccountID,
		ToAccountID:   in.ToAccountID,
		Amount:        in.Amount,
		Description:   strings.TrimSpace(in.Description),
		DayOfMonth:    ClampDay(in.DayOfMonth),
	}
	if err := db.Create(&p).Error; err != nil {
		return nil, apperr.Infra("create periodic transfer", err)
	}
	return &p, nil
}

func (d *Definitions) UpdatePeriodic(ctx context.Context, userID, id uint, in PeriodicInput) (*models.PeriodicTransfer, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	db := d.db.WithContext(ctx)
	p, err := loadPeriodic(db, userID, id)
	if err != nil {
		return nil, err
	}
	if err := checkAccounts(db, userID, in.FromAccountID, in.ToAccountID); err != nil {
		return nil, err
	}
	p.FromAccountID = in.FromAccountID
	p.ToAccountID = in.ToAccountID
	p.Amount = in.Amount
	p.Description = strings.TrimSpace(in.Description)
	p.DayOfMonth = ClampDay(in.DayOfMonth)
	if err := db.Save(p).Error; err != nil {
		return nil, apperr.Infra("update periodic transfer", err)
	}
	return p, nil
}

func (d *Definitions) DeletePeriodic(ctx context.Context, userID, id uint) error {
	res := d.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.PeriodicTransfer{})
	if res.Error != nil {
		return apperr.Infra("delete periodic transfer", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("periodic transfer %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}
