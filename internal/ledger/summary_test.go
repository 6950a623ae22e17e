package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/Jezerjjv/saving-back/internal/apperr"
	"github.com/Jezerjjv/saving-back/internal/ledger"
	"github.com/Jezerjjv/saving-back/internal/models"
	"github.com/Jezerjjv/saving-back/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedYear books a small 2024 history for uid and returns the Home category.
func seedYear(t *testing.T, s *ledger.Store, uid, acc uint) *models.Category {
	t.Helper()
	ctx := context.Background()
	home, err := s.CreateCategory(ctx, uid, "Home", "🏠")
	require.NoError(t, err)
	food, err := s.CreateCategory(ctx, uid, "Food", "")
	require.NoError(t, err)

	rows := []struct {
		day    time.Time
		name   string
		amount string
		typ    string
		cat    *uint
	}{
		{time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), "Salary", "1000", models.TypeIncome, nil},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "Rent", "800", models.TypeExpense, &home.ID},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "Bread", "2.5", models.TypeExpense, &food.ID},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "Cheese", "7.5", models.TypeExpense, &food.ID},
		{time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), "Refund", "30", models.TypeIncome, &home.ID},
		{time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), "Bus", "1.5", models.TypeExpense, nil},
		{time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), "Old", "99", models.TypeExpense, nil},
	}
	for _, r := range rows {
		r := r
		_, err := s.CreateTransaction(ctx, uid, ledger.TransactionInput{
			Name: r.name, Amount: testutil.D(r.amount), AccountID: acc, Type: r.typ, CategoryID: r.cat, Date: &r.day,
		})
		require.NoError(t, err)
	}
	return home
}

func TestYearSummaryHasTwelveMonths(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()
	uid := testutil.User(t, db, "ana")
	acc := testutil.Account(t, db, uid, "Main", "0")
	seedYear(t, s, uid, acc.ID)

	months, err := s.YearSummary(ctx, uid, 2024)
	require.NoError(t, err)
	require.Len(t, months, 12)
	for i, m := range months {
		assert.Equal(t, 2024, m.Year)
		assert.Equal(t, i+1, m.Month)
	}
	assert.True(t, testutil.D("1000").Equal(months[0].Income))
	assert.True(t, testutil.D("1000").Equal(months[0].Balance))
	assert.True(t, months[1].Balance.IsZero())
	assert.True(t, testutil.D("30").Equal(months[2].Income))
	assert.True(t, testutil.D("811.5").Equal(months[2].Expense))
	assert.True(t, testutil.D("-781.5").Equal(months[2].Balance))

	other := testutil.User(t, db, "bob")
	months, err = s.YearSummary(ctx, other, 2024)
	require.NoError(t, err)
	require.Len(t, months, 12)
	assert.True(t, months[2].Expense.IsZero())
}

func TestDailyIndicators(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()
	uid := testutil.User(t, db, "ana")
	acc := testutil.Account(t, db, uid, "Main", "0")
	seedYear(t, s, uid, acc.ID)

	days, err := s.DailyIndicators(ctx, uid, 2024)
	require.NoError(t, err)
	assert.Equal(t, []ledger.DayIndicator{
		{Month: 1, Day: 31, HasIncome: true},
		{Month: 3, Day: 1, HasExpense: true},
		{Month: 3, Day: 20, HasIncome: true, HasExpense: true},
	}, days)

	days, err = s.DailyIndicators(ctx, uid, 2022)
	require.NoError(t, err)
	assert.Empty(t, days)
}

func TestGroupedTransactions(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()
	uid := testutil.User(t, db, "ana")
	acc := testutil.Account(t, db, uid, "Main", "0")
	home := seedYear(t, s, uid, acc.ID)

	days, err := s.GroupedTransactions(ctx, uid, 2024, time.March)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2024-03-20", days[0].Date)
	assert.Equal(t, "2024-03-01", days[1].Date)

	var names []string
	for _, g := range days[0].Categories {
		names = append(names, g.Name)
	}
	assert.ElementsMatch(t, []string{"Home", "Uncategorized"}, names)

	require.Len(t, days[1].Categories, 2)
	for _, g := range days[1].Categories {
		switch g.Name {
		case "Food":
			assert.Len(t, g.Items, 2)
			assert.Equal(t, "📁", g.Icon)
		case "Home":
			require.Len(t, g.Items, 1)
			assert.Equal(t, home.ID, *g.CategoryID)
			assert.Equal(t, "🏠", g.Icon)
		default:
			t.Errorf("unexpected group %q", g.Name)
		}
	}

	all, err := s.GroupedTransactions(ctx, uid, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "2023-12-31", all[len(all)-1].Date)

	_, err = s.GroupedTransactions(ctx, uid, 2024, 13)
	assert.True(t, apperr.IsValidation(err))
}

func TestTotalsByCategory(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()
	uid := testutil.User(t, db, "ana")
	acc := testutil.Account(t, db, uid, "Main", "0")
	seedYear(t, s, uid, acc.ID)

	exp, err := s.TotalsByCategory(ctx, uid, models.TypeExpense, 2024, time.March)
	require.NoError(t, err)
	require.Len(t, exp, 3)
	assert.Equal(t, "Home", exp[0].Name)
	assert.True(t, testutil.D("800").Equal(exp[0].Total))
	assert.Equal(t, "Food", exp[1].Name)
	assert.True(t, testutil.D("10").Equal(exp[1].Total))
	assert.Equal(t, "Uncategorized", exp[2].Name)
	assert.Nil(t, exp[2].CategoryID)

	inc, err := s.TotalsByCategory(ctx, uid, models.TypeIncome, 2024, time.March)
	require.NoError(t, err)
	require.Len(t, inc, 1)
	assert.True(t, testutil.D("30").Equal(inc[0].Total))

	_, err = s.TotalsByCategory(ctx, uid, "gift", 2024, time.March)
	assert.True(t, apperr.IsValidation(err))
}
