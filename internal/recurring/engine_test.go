package recurring_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Jezerjjv/saving-back/internal/apperr"
	"github.com/Jezerjjv/saving-back/internal/clock"
	"github.com/Jezerjjv/saving-back/internal/ledger"
	"github.com/Jezerjjv/saving-back/internal/models"
	"github.com/Jezerjjv/saving-back/internal/recurring"
	"github.com/Jezerjjv/saving-back/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var now = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func newEngine(t *testing.T, key recurring.DuplicateKey) (*recurring.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	store := ledger.NewStore(db, clock.NewFixed(now))
	return recurring.NewEngine(store, key), db
}

func fixed(t *testing.T, e *recurring.Engine, kind recurring.Kind, uid, acc uint, name, amount string, day int) *models.FixedEntry {
	t.Helper()
	def, err := e.Definitions().CreateFixed(context.Background(), kind, uid, recurring.FixedInput{
		Name: name, Amount: testutil.D(amount), AccountID: acc, DayOfMonth: day,
	})
	require.NoError(t, err)
	return def
}

func TestDateForClampsToMonthEnd(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		day   int
		want  time.Time
	}{
		{2024, time.April, 31, time.Date(2024, 4, 30, 12, 0, 0, 0, time.UTC)},
		{2023, time.February, 30, time.Date(2023, 2, 28, 12, 0, 0, 0, time.UTC)},
		{2024, time.February, 31, time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)},
		{2024, time.March, 0, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		{2024, time.March, 99, time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, recurring.DateFor(c.year, c.month, c.day), "%d-%02d day %d", c.year, c.month, c.day)
	}
}

func TestApplyFixedExpensesMaterializesOnce(t *testing.T) {
	e, db := newEngine(t, recurring.ByName)
	ctx := context.Background()
	uid := testutil.User(t, db, "ana")
	acc := testutil.Account(t, db, uid, "Main", "1000")
	fixed(t, e, recurring.Expense, uid, acc.ID, "Rent", "800", 1)

	got, err := e.ApplyFixedExpensesForMonth(ctx, uid, 3, 2024, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Rent", got[0].Name)
	assert.Equal(t, models.TypeExpense, got[0].Type)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), got[0].Date.UTC())
	require.NotNil(t, got[0].ExpenseType)
	assert.Equal(t, models.SubTypeFixed, *got[0].ExpenseType)
	assert.True(t, testutil.D("200").Equal(testutil.Balance(t, db, acc.ID)))

	again, err := e.ApplyFixedExpensesForMonth(ctx, uid, 3, 2024, nil)
	require.NoError(t, err)
	assert.NotNil(t, again)
	assert.Empty(t, again)
	assert.True(t, testutil.D("200").Equal(testutil.Balance(t, db, acc.ID)))
}

func TestApplyFixedDefaultsToCurrentMonth(t *testing.T) {
	e, db := newEngine(t, recurring.ByName)
	ctx := context.Background()
	uid := testutil.User(t, db, "ana")
	acc := testutil.Account(t, db, uid, "Main", "0")
	fixed(t, e, recurring.Income, uid, acc.ID, "Salary", "2000", 28)

	got, err := e.ApplyFixedIncomesForMonth(ctx, uid, 0, 0, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2024, 3, 28, 12, 0, 0, 0, time.UTC), got[0].Date.UTC())
	require.NotNil(t, got[0].FixedIncomeID)
	assert.True(t, testutil.D("2000").Equal(testutil.Balance(t, db, acc.ID)))
}

func TestApplyFixedShortMonth(t *testing.T) {
	e, db := newEngine(t, recurring.ByName)
	ctx := context.Background()
	uid := testutil.User(t, db, "ana")
	acc := testutil.Account(t, db, uid, "Main", "0")
	fixed(t, e, recurring.Income, uid, acc.ID, "Bonus", "10", 31)

	got, err := e.ApplyFixedIncomesForMonth(ctx, uid, 4, 2024, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 30, got[0].Date.UTC().Day())
}

func TestApplyFixedDayFilter(t *testing.T) {
	e, db := newEngine(t, recurring.ByName)
	ctx := context.Background()
	uid := testutil.User(t, db, "ana")
	acc := testutil.Account(t, db, uid, "Main", "0")
	fixed(t, e, recurring.Income, uid, acc.ID, "Early", "1", 5)
	fixed(t, e, recurring.Income, uid, acc.ID, "Late", "2", 20)

	day := 20
	got, err := e.ApplyFixedIncomesForMonth(ctx, uid, 3, 2024, &day)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Late", got[0].Name)

	day = 6
	got, err = e.ApplyFixedIncomesForMonth(ctx, uid, 3, 2024, &day)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestApplyFixedRejectsBadMonth(t *testing.T) {
	e, db := newEngine(t, recurring.ByName)
	uid := testutil.User(t, db, "ana")

	_, err := e.ApplyFixedExpensesForMonth(context.Background(), uid, 13, 2024, nil)
	assert.True(t, apperr.IsValidation(err))
}

func TestDuplicateKeyStrategies(t *testing.T) {
	for _, tc := range []struct {
		key  recurring.DuplicateKey
		want int
	}{
		{recurring.ByName, 1},
		{recurring.ByID, 2},
	} {
		t.Run(string(tc.key), func(t *testing.T) {
			e, db := newEngine(t, tc.key)
			ctx := context.Background()
			uid := testutil.User(t, db, "ana")
			acc := testutil.Account(t, db, uid, "Main", "0")
			fixed(t, e, recurring.Expense, uid, acc.ID, "Gym", "30", 3)
			fixed(t, e, recurring.Expense, uid, acc.ID, "Gym", "30", 10)

			got, err := e.ApplyFixedExpensesForMonth(ctx, uid, 3, 2024, nil)
			require.NoError(t, err)
			assert.Len(t, got, tc.want)

			again, err := e.ApplyFixedExpensesForMonth(ctx, uid, 3, 2024, nil)
			require.NoError(t, err)
			assert.Empty(t, again)
		})
	}
}

func TestManualFixedTransactionCountsAsApplied(t *testing.T) {
	e, db := newEngine(t, recurring.ByName)
	ctx := context.Background()
	uid := testutil.User(t, db, "ana")
	acc := testutil.Account(t, db, uid, "Main", "0")
	fixed(t, e, recurring.Income, uid, acc.ID, "Salary", "100", 1)

	store := ledger.NewStore(db, clock.NewFixed(now))
	_, err := store.CreateTransaction(ctx, uid, ledger.TransactionInput{
		Name: "Salary", Amount: testutil.D("100"), AccountID: acc.ID,
		Type: models.TypeIncome, SubType: models.SubTypeFixed,
	})
	require.NoError(t, err)

	got, err := e.ApplyFixedIncomesForMonth(ctx, uid, 3, 2024, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestConcurrentApplyCreatesOneRow(t *testing.T) {
	e, db := newEngine(t, recurring.ByName)
	ctx := context.Background()
	uid := testutil.User(t, db, "ana")
	acc := testutil.Account(t, db, uid, "Main", "1000")
	fixed(t, e, recurring.Expense, uid, acc.ID, "Rent", "800", 1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.ApplyFixedExpensesForMonth(ctx, uid, 3, 2024, nil)
			if err != nil {
				t.Errorf("apply: %v", err)
				return
			}
			mu.Lock()
			total += len(got)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, total)
	var n int64
	require.NoError(t, db.Model(&models.Transaction{}).Where("user_id = ?", uid).Count(&n).Error)
	assert.EqualValues(t, 1, n)
	assert.True(t, testutil.D("200").Equal(testutil.Balance(t, db, acc.ID)))
}

func TestApplySingleFixed(t *testing.T) {
	e, db := newEngine(t, recurring.ByName)
	ctx := context.Background()
	uid := testutil.User(t, db, "ana")
	acc := testutil.Account(t, db, uid, "Main", "0")
	def := fixed(t, e, recurring.Income, uid, acc.ID, "Salary", "100", 10)

	tx, err := e.ApplySingleFixedIncome(ctx, uid, def.ID, 3, 2024)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, 10, tx.Date.UTC().Day())

	tx, err = e.ApplySingleFixedIncome(ctx, uid, def.ID, 3, 2024)
	require.NoError(t, err)
	assert.Nil(t, tx)

	_, err = e.ApplySingleFixedIncome(ctx, uid, 9999, 3, 2024)
	assert.True(t, apperr.IsNotFound(err))

	other := testutil.User(t, db, "bob")
	_, err = e.ApplySingleFixedIncome(ctx, other, def.ID, 3, 2024)
	assert.True(t, apperr.IsNotFound(err))

	rent := fixed(t, e, recurring.Expense, uid, acc.ID, "Rent", "40", 1)
	tx, err = e.ApplySingleFixedExpense(ctx, uid, rent.ID, 3, 2024)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, models.TypeExpense, tx.Type)
	assert.True(t, testutil.D("60").Equal(testutil.Balance(t, db, acc.ID)))
}

func TestPeriodicTransfersPerMonth(t *testing.T) {
	e, db := newEngine(t, recurring.ByName)
	ctx := context.Background()
	uid := testutil.User(t, db, "ana")
	from := testutil.Account(t, db, uid, "Checking", "500")
	to := testutil.Account(t, db, uid, "Savings", "0")

	p, err := e.Definitions().CreatePeriodic(ctx, uid, recurring.PeriodicInput{
		FromAccountID: from.ID, ToAccountID: to.ID, Amount: testutil.D("100"), Description: "save", DayOfMonth: 31,
	})
	require.NoError(t, err)

	got, err := e.ApplyPeriodicTransfersForMonth(ctx, uid, 2, 2024, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC), got[0].Date.UTC())
	require.NotNil(t, got[0].PeriodicTransferID)
	assert.Equal(t, p.ID, *got[0].PeriodicTransferID)

	again, err := e.ApplyPeriodicTransfersForMonth(ctx, uid, 2, 2024, nil)
	require.NoError(t, err)
	assert.Empty(t, again)

	single, err := e.ApplySinglePeriodicTransfer(ctx, uid, p.ID, 3, 2024)
	require.NoError(t, err)
	require.NotNil(t, single)

	single, err = e.ApplySinglePeriodicTransfer(ctx, uid, p.ID, 3, 2024)
	require.NoError(t, err)
	assert.Nil(t, single)

	assert.True(t, testutil.D("300").Equal(testutil.Balance(t, db, from.ID)))
	assert.True(t, testutil.D("200").Equal(testutil.Balance(t, db, to.ID)))
}

func TestDefinitionValidation(t *testing.T) {
	e, db := newEngine(t, recurring.ByName)
	ctx := context.Background()
	uid := testutil.User(t, db, "ana")
	acc := testutil.Account(t, db, uid, "Main", "0")
	defs := e.Definitions()

	_, err := defs.CreateFixed(ctx, recurring.Income, uid, recurring.FixedInput{Name: " ", Amount: testutil.D("1"), AccountID: acc.ID})
	assert.True(t, apperr.IsValidation(err))
	_, err = defs.CreateFixed(ctx, recurring.Income, uid, recurring.FixedInput{Name: "x", Amount: testutil.D("-1"), AccountID: acc.ID})
	assert.True(t, apperr.IsValidation(err))
	_, err = defs.CreateFixed(ctx, recurring.Income, uid, recurring.FixedInput{Name: "x", Amount: testutil.D("1"), AccountID: 404})
	assert.True(t, apperr.IsValidation(err))
	_, err = defs.CreatePeriodic(ctx, uid, recurring.PeriodicInput{FromAccountID: acc.ID, ToAccountID: acc.ID, Amount: testutil.D("1")})
	assert.True(t, apperr.IsValidation(err))

	def, err := defs.CreateFixed(ctx, recurring.Expense, uid, recurring.FixedInput{Name: "Phone", Amount: testutil.D("20"), AccountID: acc.ID, DayOfMonth: 45})
	require.NoError(t, err)
	assert.Equal(t, 31, def.DayOfMonth)

	// kinds live in separate tables
	incomes, err := defs.ListFixed(ctx, recurring.Income, uid)
	require.NoError(t, err)
	assert.Empty(t, incomes)

	upd, err := defs.UpdateFixed(ctx, recurring.Expense, uid, def.ID, recurring.FixedInput{Name: "Mobile", Amount: testutil.D("25"), AccountID: acc.ID, DayOfMonth: 2})
	require.NoError(t, err)
	assert.Equal(t, "Mobile", upd.Name)

	require.NoError(t, defs.DeleteFixed(ctx, recurring.Expense, uid, def.ID))
	assert.True(t, apperr.IsNotFound(defs.DeleteFixed(ctx, recurring.Expense, uid, def.ID)))
}

func TestFixedCategoryMustBelongToUser(t *testing.T) {
	e, db := newEngine(t, recurring.ByName)
	ctx := context.Background()
	uid := testutil.User(t, db, "ana")
	other := testutil.User(t, db, "bob")
	acc := testutil.Account(t, db, uid, "Main", "0")
	theirs := models.Category{UserID: other, Name: "Bob stuff"}
	require.NoError(t, db.Create(&theirs).Error)
	defs := e.Definitions()

	_, err := defs.CreateFixed(ctx, recurring.Expense, uid, recurring.FixedInput{
		Name: "Gym", Amount: testutil.D("30"), AccountID: acc.ID, DayOfMonth: 1, CategoryID: &theirs.ID,
	})
	assert.True(t, apperr.IsValidation(err), "got %v", err)

	def := fixed(t, e, recurring.Expense, uid, acc.ID, "Gym", "30", 1)
	_, err = defs.UpdateFixed(ctx, recurring.Expense, uid, def.ID, recurring.FixedInput{
		Name: "Gym", Amount: testutil.D("30"), AccountID: acc.ID, DayOfMonth: 1, CategoryID: &theirs.ID,
	})
	assert.True(t, apperr.IsValidation(err), "got %v", err)

	got, err := defs.GetFixed(ctx, recurring.Expense, uid, def.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID)
}
