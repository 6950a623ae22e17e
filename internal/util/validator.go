package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxAmount caps any single money amount accepted from a client.
var MaxAmount = decimal.NewFromInt(1_000_000_000)

// ParseAmount parses a positive decimal amount below MaxAmount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q", s)
	}
	return d, ValidateAmount(d)
}

// ValidateAmount requires 0 < amount < MaxAmount.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", amount)
	}
	if amount.GreaterThanOrEqual(MaxAmount) {
		return fmt.Errorf("amount too large, got %s", amount)
	}
	return nil
}

// ParseDate parses YYYY-MM-DD as noon UTC of that day.
func ParseDate(dateStr string) (time.Time, error) {
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("date is empty")
	}
	t, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format: %w", err)
	}
	return t.Add(12 * time.Hour), nil
}

// ValidateDate checks the YYYY-MM-DD format.
func ValidateDate(dateStr string) error {
	_, err := ParseDate(dateStr)
	return err
}

// ValidateName requires a non-blank name of at most max runes.
func ValidateName(field, name string, max int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%s is empty", field)
	}
	if len([]rune(name)) > max {
		return fmt.Errorf("%s too long, max %d characters", field, max)
	}
	return nil
}

// ValidateDay requires a day of month in 1..31.
func ValidateDay(day int) error {
	if day < 1 || day > 31 {
		return fmt.Errorf("dayOfMonth must be 1-31, got %d", day)
	}
	return nil
}
