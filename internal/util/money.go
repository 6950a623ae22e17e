package util

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatMoney renders d in currency with its symbol, rounded to cents.
// USDT is shown as USD.
func FormatMoney(d decimal.Decimal, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	switch code {
	case "":
		code = money.EUR
	case "USDT":
		code = money.USD
	}
	if money.GetCurrency(code) == nil {
		code = money.EUR
	}
	return money.New(d.Shift(2).Round(0).IntPart(), code).Display()
}

// FormatEUR is FormatMoney in euros.
func FormatEUR(d decimal.Decimal) string { return FormatMoney(d, money.EUR) }
