package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FixedEntry is the shared shape of fixed incomes and fixed expenses.
// Each kind lives in its own table.
type FixedEntry struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	UserID     uint            `gorm:"index;not null" json:"-"`
	Name       string          `gorm:"size:255;not null" json:"name"`
	CategoryID *uint           `json:"categoryId"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	AccountID  uint            `gorm:"index;not null" json:"accountId"`
	DayOfMonth int             `gorm:"not null;default:1" json:"dayOfMonth"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"-"`
}

type FixedIncome struct {
	FixedEntry
}

func (FixedIncome) TableName() string { return "fixed_incomes" }

type FixedExpense struct {
	FixedEntry
}

func (FixedExpense) TableName() string { return "fixed_expenses" }

type PeriodicTransfer struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UserID        uint            `gorm:"index;not null" json:"-"`
	FromAccountID uint            `gorm:"index;not null" json:"fromAccountId"`
	ToAccountID   uint            `gorm:"index;not null" json:"toAccountId"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	Description   string          `gorm:"size:255" json:"description"`
	DayOfMonth    int             `gorm:"not null;default:1" json:"dayOfMonth"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"-"`
}

// InterestHistory holds one row per account per accrual day.
type InterestHistory struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"uniqueIndex:idx_interest_day;not null" json:"-"`
	Date      string          `gorm:"size:10;uniqueIndex:idx_interest_day;not null" json:"date"`
	AccountID uint            `gorm:"uniqueIndex:idx_interest_day;not null" json:"accountId"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	CreatedAt time.Time       `json:"createdAt"`
}
