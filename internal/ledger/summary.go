package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/Jezerjjv/saving-back/internal/apperr"
	"github.com/Jezerjjv/saving-back/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	uncategorized     = "Uncategorized"
	uncategorizedIcon = "📁"
)

type CategoryTotal struct {
	CategoryID *uint           `json:"categoryId"`
	Name       string          `json:"name"`
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
}

// MonthSummary aggregates one month of a user's transactions.
type MonthSummary struct {
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
	Net        decimal.Decimal `json:"net"`
	Count      int             `json:"count"`
	ByCategory []CategoryTotal `json:"byCategory"`
}

func (s *Store) MonthlySummary(ctx context.Context, userID uint, year int, month time.Month) (*MonthSummary, error) {
	if month < 1 || month > 12 {
		return nil, apperr.Invalid("month", "must be 1-12")
	}
	start, end := MonthRange(year, month)
	db := s.db.WithContext(ctx)

	txs, err := loadBetween(db, userID, start, end, "")
	if err != nil {
		return nil, err
	}
	cats, err := categoryIndex(db, userID)
	if err != nil {
		return nil, err
	}

	sum := &MonthSummary{Year: year, Month: int(month), Count: len(txs)}
	byCat := map[uint]*CategoryTotal{}
	for i := range txs {
		t := &txs[i]
		var key uint
		if t.CategoryID != nil {
			key = *t.CategoryID
		}
		ct, ok := byCat[key]
		if !ok {
			name, _ := label(cats, t.CategoryID)
			ct = &CategoryTotal{CategoryID: t.CategoryID, Name: name}
			byCat[key] = ct
		}
		if t.Type == models.TypeIncome {
			sum.Income = sum.Income.Add(t.Amount)
			ct.Income = ct.Income.Add(t.Amount)
		} else {
			sum.Expense = sum.Expense.Add(t.Amount)
			ct.Expense = ct.Expense.Add(t.Amount)
		}
	}
	sum.Net = sum.Income.Sub(sum.Expense)

	sum.ByCategory = make([]CategoryTotal, 0, len(byCat))
	for _, ct := range byCat {
		sum.ByCategory = append(sum.ByCategory, *ct)
	}
	sort.Slice(sum.ByCategory, func(i, j int) bool {
		return sum.ByCategory[i].Expense.GreaterThan(sum.ByCategory[j].Expense)
	})
	return sum, nil
}

// loadBetween returns the user's transactions dated in [start, end), newest
// first, optionally restricted to one type. A zero end drops the date range.
func loadBetween(db *gorm.DB, userID uint, start, end time.Time, txType string) ([]models.Transaction, error) {
	q := db.Where("user_id = ?", userID)
	if !end.IsZero() {
		q = q.Where("date >= ? AND date < ?", start, end)
	}
	if txType != "" {
		q = q.Where("type = ?", txType)
	}
	var txs []models.Transaction
	if err := q.Order("date DESC, id DESC").Find(&txs).Error; err != nil {
		return nil, apperr.Infra("load transactions", err)
	}
	return txs, nil
}

func categoryIndex(db *gorm.DB, userID uint) (map[uint]models.Category, error) {
	var cats []models.Category
	if err := db.Where("user_id = ?", userID).Find(&cats).Error; err != nil {
		return nil, apperr.Infra("load categories", err)
	}
	out := make(map[uint]models.Category, len(cats))
	for _, c := range cats {
		out[c.ID] = c
	}
	return out, nil
}

// label names a transaction's category, falling back to Uncategorized.
func label(cats map[uint]models.Category, id *uint) (string, string) {
	if id == nil {
		return uncategorized, uncategorizedIcon
	}
	c, ok := cats[*id]
	if !ok {
		return uncategorized, uncategorizedIcon
	}
	icon := c.Icon
	if icon == "" {
		icon = uncategorizedIcon
	}
	return c.Name, icon
}

// YearRange returns the half-open UTC range covering year.
func YearRange(year int) (time.Time, time.Time) {
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}

type MonthTotals struct {
	Year    int             `json:"year"`
	Month   int             `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// YearSummary returns income, expense and balance for each of the twelve
// months of year. Months without transactions are zero.
func (s *Store) YearSummary(ctx context.Context, userID uint, year int) ([]MonthTotals, error) {
	start, end := YearRange(year)
	txs, err := loadBetween(s.db.WithContext(ctx), userID, start, end, "")
	if err != nil {
		return nil, err
	}
	out := make([]MonthTotals, 12)
	for i := range out {
		out[i] = MonthTotals{Year: year, Month: i + 1}
	}
	for i := range txs {
		m := &out[txs[i].Date.UTC().Month()-1]
		if txs[i].Type == models.TypeIncome {
			m.Income = m.Income.Add(txs[i].Amount)
		} else {
			m.Expense = m.Expense.Add(txs[i].Amount)
		}
	}
	for i := range out {
		out[i].Balance = out[i].Income.Sub(out[i].Expense)
	}
	return out, nil
}

// DayIndicator flags a calendar day that has at least one transaction.
type DayIndicator struct {
	Month      int  `json:"month"`
	Day        int  `json:"day"`
	HasIncome  bool `json:"hasIncome"`
	HasExpense bool `json:"hasExpense"`
}

// DailyIndicators lists the days of year with transactions, in calendar
// order.
func (s *Store) DailyIndicators(ctx context.Context, userID uint, year int) ([]DayIndicator, error) {
	start, end := YearRange(year)
	txs, err := loadBetween(s.db.WithContext(ctx), userID, start, end, "")
	if err != nil {
		return nil, err
	}
	byDay := map[int]*DayIndicator{}
	for i := range txs {
		d := txs[i].Date.UTC()
		key := int(d.Month())*100 + d.Day()
		ind, ok := byDay[key]
		if !ok {
			ind = &DayIndicator{Month: int(d.Month()), Day: d.Day()}
			byDay[key] = ind
		}
		if txs[i].Type == models.TypeIncome {
			ind.HasIncome = true
		} else {
			ind.HasExpense = true
		}
	}
	out := make([]DayIndicator, 0, len(byDay))
	for _, ind := range byDay {
		out = append(out, *ind)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return out[i].Day < out[j].Day
	})
	return out, nil
}

type CategoryGroup struct {
	CategoryID *uint                `json:"categoryId"`
	Name       string               `json:"name"`
	Icon       string               `json:"icon"`
	Items      []models.Transaction `json:"items"`
}

type DayGroup struct {
	Date       string          `json:"date"`
	Categories []CategoryGroup `json:"categories"`
}

// GroupedTransactions groups the month's transactions by day, newest day
// first, and within a day by category in order of first appearance. A zero
// year lists every transaction.
func (s *Store) GroupedTransactions(ctx context.Context, userID uint, year int, month time.Month) ([]DayGroup, error) {
	db := s.db.WithContext(ctx)
	var (
		txs []models.Transaction
		err error
	)
	if year == 0 {
		txs, err = loadBetween(db, userID, time.Time{}, time.Time{}, "")
	} else {
		if month < 1 || month > 12 {
			return nil, apperr.Invalid("month", "must be 1-12")
		}
		start, end := MonthRange(year, month)
		txs, err = loadBetween(db, userID, start, end, "")
	}
	if err != nil {
		return nil, err
	}
	cats, err := categoryIndex(db, userID)
	if err != nil {
		return nil, err
	}

	out := []DayGroup{}
	var day *DayGroup
	var slot map[uint]int
	for i := range txs {
		t := txs[i]
		date := t.Date.UTC().Format("2006-01-02")
		if day == nil || day.Date != date {
			out = append(out, DayGroup{Date: date})
			day = &out[len(out)-1]
			slot = map[uint]int{}
		}
		var key uint
		if t.CategoryID != nil {
			key = *t.CategoryID
		}
		idx, ok := slot[key]
		if !ok {
			name, icon := label(cats, t.CategoryID)
			day.Categories = append(day.Categories, CategoryGroup{CategoryID: t.CategoryID, Name: name, Icon: icon})
			idx = len(day.Categories) - 1
			slot[key] = idx
		}
		day.Categories[idx].Items = append(day.Categories[idx].Items, t)
	}
	return out, nil
}

type CategorySum struct {
	CategoryID *uint           `json:"categoryId"`
	Name       string          `json:"name"`
	Icon       string          `json:"icon"`
	Total      decimal.Decimal `json:"total"`
}

// TotalsByCategory sums one type of transaction per category for the month,
// largest first.
func (s *Store) TotalsByCategory(ctx context.Context, userID uint, txType string, year int, month time.Month) ([]CategorySum, error) {
	if err := validType(txType); err != nil {
		return nil, err
	}
	if month < 1 || month > 12 {
		return nil, apperr.Invalid("month", "must be 1-12")
	}
	db := s.db.WithContext(ctx)
	start, end := MonthRange(year, month)
	txs, err := loadBetween(db, userID, start, end, txType)
	if err != nil {
		return nil, err
	}
	cats, err := categoryIndex(db, userID)
	if err != nil {
		return nil, err
	}
	byCat := map[uint]*CategorySum{}
	for i := range txs {
		t := &txs[i]
		var key uint
		if t.CategoryID != nil {
			key = *t.CategoryID
		}
		cs, ok := byCat[key]
		if !ok {
			name, icon := label(cats, t.CategoryID)
			cs = &CategorySum{CategoryID: t.CategoryID, Name: name, Icon: icon}
			byCat[key] = cs
		}
		cs.Total = cs.Total.Add(t.Amount)
	}
	out := make([]CategorySum, 0, len(byCat))
	for _, cs := range byCat {
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Total.Equal(out[j].Total) {
			return out[i].Total.GreaterThan(out[j].Total)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
