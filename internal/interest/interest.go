// Package interest accrues one day of compound interest on every account
// holding an interest-bearing product, at most once per user per UTC day.
package interest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Jezerjjv/saving-back/internal/apperr"
	"github.com/Jezerjjv/saving-back/internal/clock"
	"github.com/Jezerjjv/saving-back/internal/ledger"
	"github.com/Jezerjjv/saving-back/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	ReasonOK           = "ok"
	ReasonAlreadyToday = "already_today"
	ReasonNoAccounts   = "no_accounts"
)

// balanceScale matches the decimal(20,8) balance column.
const balanceScale = 8

var minHistory = decimal.New(1, -2)

type Result struct {
	Applied       int             `json:"applied"`
	TotalInterest decimal.Decimal `json:"totalInterest"`
	Skipped       bool            `json:"skipped"`
	Reason        string          `json:"reason"`
}

// Eligible is one account that accrues interest and the product driving it.
type Eligible struct {
	AccountID   uint            `json:"accountId"`
	AccountName string          `json:"accountName"`
	Balance     decimal.Decimal `json:"balance"`
	ProductID   uint            `json:"productId"`
	Rate        decimal.Decimal `json:"rate"`
}

type Engine struct {
	store *ledger.Store
	clock clock.Clock
}

func NewEngine(store *ledger.Store) *Engine {
	return &Engine{store: store, clock: store.Clock()}
}

// DailyMultiplier returns (1 + annualRate/100)^(1/365).
func DailyMultiplier(annualRate decimal.Decimal) decimal.Decimal {
	r, _ := annualRate.Float64()
	return decimal.NewFromFloat(math.Pow(1+r/100, 1.0/365))
}

// eligible lists the user's accounts with an interest product of positive
// rate. When an account has several, the lowest product id wins.
func eligible(tx *gorm.DB, userID uint) ([]Eligible, error) {
	var rows []Eligible
	err := tx.Table("account_products AS ap").
		Select("a.id AS account_id, a.name AS account_name, a.balance AS balance, ap.id AS product_id, ap.interest_rate AS rate").
		Joins("JOIN accounts a ON a.id = ap.account_id").
		Joins("JOIN product_types pt ON pt.id = ap.product_type_id").
		Where("a.user_id = ? AND pt.slug = ? AND ap.interest_rate IS NOT NULL AND ap.interest_rate > 0", userID, models.ProductTypeInterest).
		Order("a.id, ap.id").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Infra("load interest accounts", err)
	}
	out := make([]Eligible, 0, len(rows))
	seen := map[uint]bool{}
	for _, r := range rows {
		if seen[r.AccountID] {
			continue
		}
		seen[r.AccountID] = true
		out = append(out, r)
	}
	return out, nil
}

func (e *Engine) Eligible(ctx context.Context, userID uint) ([]Eligible, error) {
	return eligible(e.store.DB().WithContext(ctx), userID)
}

// ApplyDailyInterest compounds one day of interest on every eligible account.
// Balances, history rows and the per-day gate are written in one transaction
// under the user's interest scope, so a second call the same day is a no-op.
func (e *Engine) ApplyDailyInterest(ctx context.Context, userID uint) (Result, error) {
	today := clock.Today(e.clock)
	res := Result{TotalInterest: decimal.Zero}

	err := e.store.WithScope(ctx, fmt.Sprintf("interest:%d", userID), func(tx *gorm.DB) error {
		st, err := ledger.GetSettingsTx(tx, userID)
		if err != nil {
			return err
		}
		if st.LastInterestRunDate == today {
			res.Skipped, res.Reason = true, ReasonAlreadyToday
			return nil
		}

		accs, err := eligible(tx, userID)
		if err != nil {
			return err
		}
		if len(accs) == 0 {
			res.Reason = ReasonNoAccounts
			return nil
		}

		ids := make([]uint, len(accs))
		for i, a := range accs {
			ids[i] = a.AccountID
		}
		locked, err := ledger.LockAccountsTx(tx, userID, ids...)
		if err != nil {
			return err
		}

		total := decimal.Zero
		for _, a := range accs {
			acc := locked[a.AccountID]
			next := acc.Balance.Mul(DailyMultiplier(a.Rate)).Round(balanceScale)
			gained, err := ledger.SetBalanceTx(tx, acc, next)
			if err != nil {
				return err
			}
			total = total.Add(gained)
			res.Applied++

			if cents := gained.Round(2); cents.GreaterThanOrEqual(minHistory) {
				h := models.InterestHistory{UserID: userID, Date: today, AccountID: acc.ID, Amount: cents}
				if err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}, {Name: "account_id"}},
					DoUpdates: clause.AssignmentColumns([]string{"amount"}),
				}).Create(&h).Error; err != nil {
					return apperr.Infra("record interest", err)
				}
			}
		}
		res.TotalInterest = total.Round(2)
		res.Reason = ReasonOK

		if res.Applied > 0 {
			return ledger.PutSettingTx(tx, userID, ledger.KeyLastInterestRunDate, today)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// History lists recorded accruals, newest first. year and month narrow the
// result when set; month without year uses the current year.
func (e *Engine) History(ctx context.Context, userID uint, year, month *int) ([]models.InterestHistory, error) {
	q := e.store.DB().WithContext(ctx).Where("user_id = ?", userID)

	switch {
	case month != nil:
		if *month < 1 || *month > 12 {
			return nil, apperr.Invalid("month", "must be 1-12")
		}
		y := e.clock.Now().UTC().Year()
		if year != nil {
			y = *year
		}
		start := time.Date(y, time.Month(*month), 1, 0, 0, 0, 0, time.UTC)
		q = q.Where("date >= ? AND date < ?", start.Format(clock.DateLayout), start.AddDate(0, 1, 0).Format(clock.DateLayout))
	case year != nil:
		q = q.Where("date >= ? AND date < ?", fmt.Sprintf("%04d-01-01", *year), fmt.Sprintf("%04d-01-01", *year+1))
	}

	out := []models.InterestHistory{}
	if err := q.Order("date DESC, account_id").Find(&out).Error; err != nil {
		return nil, apperr.Infra("list interest history", err)
	}
	return out, nil
}
