package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AssetCrypto = "crypto"
	AssetStock  = "stock"
)

// Holding is a crypto or stock position. Crypto symbols are lower-case
// CoinGecko ids, stock symbols upper-case tickers.
type Holding struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UserID         uint            `gorm:"index;not null" json:"-"`
	AssetClass     string          `gorm:"size:8;index;not null" json:"assetClass"`
	Symbol         string          `gorm:"size:32;not null" json:"symbol"`
	AmountInvested decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amountInvested"`
	PriceBought    decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"priceBought"`
	Currency       string          `gorm:"size:8;not null;default:EUR" json:"currency"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Units is the number of coins or shares bought.
func (h *Holding) Units() decimal.Decimal {
	if h.PriceBought.IsZero() {
		return decimal.Zero
	}
	return h.AmountInvested.Div(h.PriceBought)
}

// PriceCache keeps the last successful quote per symbol.
type PriceCache struct {
	AssetClass string          `gorm:"primaryKey;size:8"`
	Symbol     string          `gorm:"primaryKey;size:32"`
	PriceEUR   decimal.Decimal `gorm:"type:decimal(20,8)"`
	PriceUSD   decimal.Decimal `gorm:"type:decimal(20,8)"`
	UpdatedAt  time.Time
}

// DailyClose is the end-of-day valuation of a user's holdings of one class.
type DailyClose struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UserID        uint            `gorm:"uniqueIndex:idx_close_day;not null" json:"-"`
	AssetClass    string          `gorm:"size:8;uniqueIndex:idx_close_day;not null" json:"assetClass"`
	Date          string          `gorm:"size:10;uniqueIndex:idx_close_day;not null" json:"date"`
	TotalValueEUR decimal.Decimal `gorm:"type:decimal(20,8)" json:"totalValueEur"`
	TotalValueUSD decimal.Decimal `gorm:"type:decimal(20,8)" json:"totalValueUsd"`
	GainLossEUR   decimal.Decimal `gorm:"type:decimal(20,8)" json:"gainLossEur"`
	GainLossUSD   decimal.Decimal `gorm:"type:decimal(20,8)" json:"gainLossUsd"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// HoldingDaily is the cumulative gain/loss of one holding at a close.
type HoldingDaily struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	HoldingID   uint            `gorm:"uniqueIndex:idx_holding_day;not null" json:"holdingId"`
	Date        string          `gorm:"size:10;uniqueIndex:idx_holding_day;not null" json:"date"`
	GainLossEUR decimal.Decimal `gorm:"type:decimal(20,8)" json:"gainLossEur"`
	GainLossUSD decimal.Decimal `gorm:"type:decimal(20,8)" json:"gainLossUsd"`
}
