package util

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	d := decimal.RequireFromString("1234.567")
	eur := FormatEUR(d)
	assert.Contains(t, eur, "€")
	assert.Contains(t, eur, "1,234.57")
	assert.Contains(t, FormatMoney(d, "usd"), "$")
	assert.Equal(t, FormatMoney(d, "USD"), FormatMoney(d, "USDT"))
	assert.Equal(t, eur, FormatMoney(d, "XXX-unknown"))
}
