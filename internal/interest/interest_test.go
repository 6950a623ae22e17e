package interest_test

import (
	"context"
	"testing"
	"time"

	"github.com/Jezerjjv/saving-back/internal/clock"
	"github.com/Jezerjjv/saving-back/internal/interest"
	"github.com/Jezerjjv/saving-back/internal/ledger"
	"github.com/Jezerjjv/saving-back/internal/models"
	"github.com/Jezerjjv/saving-back/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var now = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

type fixture struct {
	db      *gorm.DB
	store   *ledger.Store
	engine  *interest.Engine
	ptypeID uint
}

func setup(t *testing.T, at time.Time) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	store := ledger.NewStore(db, clock.NewFixed(at))
	var pt models.ProductType
	require.NoError(t, db.Where("slug = ?", models.ProductTypeInterest).First(&pt).Error)
	return &fixture{db: db, store: store, engine: interest.NewEngine(store), ptypeID: pt.ID}
}

func (f *fixture) product(t *testing.T, uid, accountID uint, typeID *uint, rate string) {
	t.Helper()
	var r *decimal.Decimal
	if rate != "" {
		d := testutil.D(rate)
		r = &d
	}
	_, err := f.store.CreateProduct(context.Background(), uid, accountID, ledger.ProductInput{
		Name: "Remunerated", ProductTypeID: typeID, InterestRate: r,
	})
	require.NoError(t, err)
}

func TestDailyMultiplier(t *testing.T) {
	m := interest.DailyMultiplier(testutil.D("3.65"))
	gained := testutil.D("1000").Mul(m).Sub(testutil.D("1000"))
	assert.Equal(t, "0.10", gained.StringFixed(2))

	assert.True(t, interest.DailyMultiplier(decimal.Zero).Equal(decimal.NewFromInt(1)))
}

func TestApplyDailyInterestOncePerDay(t *testing.T) {
	f := setup(t, now)
	ctx := context.Background()
	uid := testutil.User(t, f.db, "ana")
	acc := testutil.Account(t, f.db, uid, "Savings", "1000")
	f.product(t, uid, acc.ID, &f.ptypeID, "3.65")

	res, err := f.engine.ApplyDailyInterest(ctx, uid)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, interest.ReasonOK, res.Reason)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, "0.10", res.TotalInterest.StringFixed(2))

	bal := testutil.Balance(t, f.db, acc.ID)
	assert.True(t, bal.GreaterThan(testutil.D("1000.09")) && bal.LessThan(testutil.D("1000.11")), "balance %s", bal)

	st, err := f.store.GetSettings(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", st.LastInterestRunDate)

	hist, err := f.engine.History(ctx, uid, nil, nil)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "2024-03-15", hist[0].Date)
	assert.Equal(t, acc.ID, hist[0].AccountID)
	assert.True(t, testutil.D("0.10").Equal(hist[0].Amount), "history amount %s", hist[0].Amount)

	again, err := f.engine.ApplyDailyInterest(ctx, uid)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	assert.Equal(t, interest.ReasonAlreadyToday, again.Reason)
	assert.True(t, bal.Equal(testutil.Balance(t, f.db, acc.ID)))
}

func TestApplyDailyInterestNextDayCompounds(t *testing.T) {
	f := setup(t, now)
	ctx := context.Background()
	uid := testutil.User(t, f.db, "ana")
	acc := testutil.Account(t, f.db, uid, "Savings", "1000")
	f.product(t, uid, acc.ID, &f.ptypeID, "3.65")

	_, err := f.engine.ApplyDailyInterest(ctx, uid)
	require.NoError(t, err)
	first := testutil.Balance(t, f.db, acc.ID)

	next := interest.NewEngine(ledger.NewStore(f.db, clock.NewFixed(now.AddDate(0, 0, 1))))
	res, err := next.ApplyDailyInterest(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.True(t, testutil.Balance(t, f.db, acc.ID).GreaterThan(first))

	march := 3
	hist, err := next.History(ctx, uid, nil, &march)
	require.NoError(t, err)
	assert.Len(t, hist, 2)
	assert.Equal(t, "2024-03-16", hist[0].Date)
}

func TestApplyDailyInterestNoAccounts(t *testing.T) {
	f := setup(t, now)
	ctx := context.Background()
	uid := testutil.User(t, f.db, "ana")
	acc := testutil.Account(t, f.db, uid, "Checking", "1000")

	var deposit models.ProductType
	require.NoError(t, f.db.Where("slug = ?", "deposit").First(&deposit).Error)
	f.product(t, uid, acc.ID, &deposit.ID, "5")
	f.product(t, uid, acc.ID, &f.ptypeID, "0")
	f.product(t, uid, acc.ID, nil, "")

	res, err := f.engine.ApplyDailyInterest(ctx, uid)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Zero(t, res.Applied)
	assert.Equal(t, interest.ReasonNoAccounts, res.Reason)
	assert.True(t, testutil.D("1000").Equal(testutil.Balance(t, f.db, acc.ID)))

	st, err := f.store.GetSettings(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, st.LastInterestRunDate)
}

func TestSubCentInterestSkipsHistory(t *testing.T) {
	f := setup(t, now)
	ctx := context.Background()
	uid := testutil.User(t, f.db, "ana")
	small := testutil.Account(t, f.db, uid, "Piggy", "10")
	f.product(t, uid, small.ID, &f.ptypeID, "1")

	res, err := f.engine.ApplyDailyInterest(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.True(t, testutil.Balance(t, f.db, small.ID).GreaterThan(testutil.D("10")))

	hist, err := f.engine.History(ctx, uid, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestEligibleUsesFirstProduct(t *testing.T) {
	f := setup(t, now)
	ctx := context.Background()
	uid := testutil.User(t, f.db, "ana")
	acc := testutil.Account(t, f.db, uid, "Savings", "100")
	f.product(t, uid, acc.ID, &f.ptypeID, "2")
	f.product(t, uid, acc.ID, &f.ptypeID, "9")

	other := testutil.User(t, f.db, "bob")
	bobAcc := testutil.Account(t, f.db, other, "Bob", "100")
	f.product(t, other, bobAcc.ID, &f.ptypeID, "4")

	got, err := f.engine.Eligible(ctx, uid)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, acc.ID, got[0].AccountID)
	assert.True(t, testutil.D("2").Equal(got[0].Rate))
}
