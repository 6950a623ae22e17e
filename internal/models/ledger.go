package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeIncome  = "income"
	TypeExpense = "expense"

	// SubTypeFixed tags transactions materialized from a fixed definition.
	SubTypeFixed = "fixed"

	AccountBank = "bank"
	AccountCash = "cash"

	CurrencyEUR  = "EUR"
	CurrencyUSD  = "USD"
	CurrencyUSDT = "USDT"
)

// Account balance is always the sum of the signed effects of every
// transaction and transfer leg that references it.
type Account struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	UserID      uint             `gorm:"index;not null" json:"-"`
	Name        string           `gorm:"size:128;not null" json:"name"`
	Balance     decimal.Decimal  `gorm:"type:decimal(20,8);not null;default:0" json:"balance"`
	AccountType string           `gorm:"size:16;not null;default:bank" json:"accountType"`
	Currency    string           `gorm:"size:8;not null;default:EUR" json:"currency"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"-"`
	Products    []AccountProduct `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"products,omitempty"`
}

type AccountProduct struct {
	ID            uint                `gorm:"primaryKey" json:"id"`
	AccountID     uint                `gorm:"index;not null" json:"accountId"`
	Name          string              `gorm:"size:128;not null" json:"name"`
	ProductTypeID *uint               `gorm:"index" json:"productTypeId"`
	Balance       decimal.Decimal     `gorm:"type:decimal(20,8);not null;default:0" json:"balance"`
	InterestRate  decimal.NullDecimal `gorm:"type:decimal(10,4)" json:"interestRate"`
	ProductType   *ProductType        `gorm:"foreignKey:ProductTypeID" json:"productType,omitempty"`
}

// Transaction amounts are positive; the sign comes from Type.
type Transaction struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UserID         uint            `gorm:"index;not null" json:"-"`
	Name           string          `gorm:"size:255;not null" json:"name"`
	CategoryID     *uint           `gorm:"index" json:"categoryId"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	AccountID      uint            `gorm:"index;not null" json:"accountId"`
	Type           string          `gorm:"size:16;index;not null" json:"type"`
	IncomeType     *string         `gorm:"size:16" json:"incomeType"`
	ExpenseType    *string         `gorm:"size:16" json:"expenseType"`
	FixedIncomeID  *uint           `gorm:"index" json:"fixedIncomeId,omitempty"`
	FixedExpenseID *uint           `gorm:"index" json:"fixedExpenseId,omitempty"`
	Date           time.Time       `gorm:"index;not null" json:"date"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"-"`
}

// Delta is the signed effect of t on its account.
func (t *Transaction) Delta() decimal.Decimal {
	if t.Type == TypeExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}

type Transfer struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	UserID             uint            `gorm:"index;not null" json:"-"`
	FromAccountID      uint            `gorm:"index;not null" json:"fromAccountId"`
	ToAccountID        uint            `gorm:"index;not null" json:"toAccountId"`
	Amount             decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	Description        string          `gorm:"size:255" json:"description"`
	Date               time.Time       `gorm:"index;not null" json:"date"`
	PeriodicTransferID *uint           `gorm:"index" json:"periodicTransferId,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
}

// AppSetting is one JSON-encoded per-user setting.
type AppSetting struct {
	ID     uint   `gorm:"primaryKey"`
	UserID uint   `gorm:"uniqueIndex:idx_setting_user_key;not null"`
	Key    string `gorm:"size:64;uniqueIndex:idx_setting_user_key;not null"`
	Value  string `gorm:"type:text"`
}

// QuickTemplate is a saved income or expense the client offers as a
// one-tap shortcut when ShowInQuick is set.
type QuickTemplate struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"index;not null" json:"-"`
	Type        string          `gorm:"size:16;not null" json:"type"`
	Name        string          `gorm:"size:128;not null" json:"name"`
	Icon        string          `gorm:"size:50" json:"icon"`
	CategoryID  *uint           `gorm:"index" json:"categoryId"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	AccountID   uint            `gorm:"index;not null" json:"accountId"`
	ShowInQuick bool            `gorm:"not null" json:"showInQuick"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"-"`
}
