package holdings

import (
	"context"
	"fmt"
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
	ReasonClosed        = "closed"
	ReasonAlreadyClosed = "already_closed"
	ReasonNoHoldings    = "no_holdings"
)

type CloseResult struct {
	Date    string             `json:"date"`
	Skipped bool               `json:"skipped"`
	Reason  string             `json:"reason"`
	Close   *models.DailyClose `json:"close,omitempty"`
}

// CloseDate is the local calendar day that ended at the last local midnight.
func (s *Service) CloseDate() string {
	now := s.clock.Now().In(s.loc)
	y, m, d := now.Date()
	return time.Date(y, m, d-1, 0, 0, 0, 0, s.loc).Format(clock.DateLayout)
}

func (s *Service) closeExists(db *gorm.DB, class string, userID uint, date string) (bool, error) {
	var n int64
	if err := db.Model(&models.DailyClose{}).
		Where("user_id = ? AND asset_class = ? AND date = ?", userID, class, date).
		Count(&n).Error; err != nil {
		return false, apperr.Infra("check daily close", err)
	}
	return n > 0, nil
}

// invested converts the amount paid for h into EUR and USD.
func invested(h *models.Holding, rate decimal.Decimal) (eur, usd decimal.Decimal) {
	if h.Currency == models.CurrencyEUR {
		return h.AmountInvested, h.AmountInvested.Div(rate)
	}
	return h.AmountInvested.Mul(rate), h.AmountInvested
}

// RunDailyClose records yesterday's valuation of the user's holdings of
// class. The close row, gain/loss against the previous close and one
// cumulative gain/loss row per holding are written in one transaction. A day
// already closed is left untouched.
func (s *Service) RunDailyClose(ctx context.Context, class string, userID uint) (CloseResult, error) {
	if err := checkClass(class); err != nil {
		return CloseResult{}, err
	}
	date := s.CloseDate()
	res := CloseResult{Date: date}
	db := s.db.WithContext(ctx)

	exists, err := s.closeExists(db, class, userID, date)
	if err != nil {
		return CloseResult{}, err
	}
	if exists {
		res.Skipped, res.Reason = true, ReasonAlreadyClosed
		return res, nil
	}
	hs, err := s.List(ctx, class, userID)
	if err != nil {
		return CloseResult{}, err
	}
	if len(hs) == 0 {
		res.Skipped, res.Reason = true, ReasonNoHoldings
		return res, nil
	}

	syms := make([]string, len(hs))
	for i := range hs {
		syms[i] = hs[i].Symbol
	}
	// quotes are fetched before the write transaction is opened
	prices, err := s.Prices(ctx, class, userID, syms)
	if err != nil {
		return CloseResult{}, err
	}

	err = s.store.WithScope(ctx, fmt.Sprintf("close:%s:%d:%s", class, userID, date), func(tx *gorm.DB) error {
		exists, err := s.closeExists(tx, class, userID, date)
		if err != nil {
			return err
		}
		if exists {
			res.Skipped, res.Reason = true, ReasonAlreadyClosed
			return nil
		}
		st, err := ledger.GetSettingsTx(tx, userID)
		if err != nil {
			return err
		}
		rate := st.ExchangeRateUsdToEur

		totalEUR, totalUSD := decimal.Zero, decimal.Zero
		daily := make([]models.HoldingDaily, 0, len(hs))
		for i := range hs {
			h := &hs[i]
			curEUR, curUSD := decimal.Zero, decimal.Zero
			if p, ok := prices[h.Symbol]; ok {
				units := h.Units()
				curEUR = units.Mul(p.PriceEUR)
				curUSD = units.Mul(p.PriceUSD)
			}
			totalEUR = totalEUR.Add(curEUR)
			totalUSD = totalUSD.Add(curUSD)
			invEUR, invUSD := invested(h, rate)
			daily = append(daily, models.HoldingDaily{
				HoldingID:   h.ID,
				Date:        date,
				GainLossEUR: curEUR.Sub(invEUR).Round(8),
				GainLossUSD: curUSD.Sub(invUSD).Round(8),
			})
		}

		var prev models.DailyClose
		prevEUR, prevUSD := decimal.Zero, decimal.Zero
		r := tx.Where("user_id = ? AND asset_class = ? AND date < ?", userID, class, date).
			Order("date DESC").Limit(1).Find(&prev)
		if r.Error != nil {
			return apperr.Infra("load previous close", r.Error)
		}
		if r.RowsAffected > 0 {
			prevEUR, prevUSD = prev.TotalValueEUR, prev.TotalValueUSD
		}

		dc := models.DailyClose{
			UserID:        userID,
			AssetClass:    class,
			Date:          date,
			TotalValueEUR: totalEUR.Round(8),
			TotalValueUSD: totalUSD.Round(8),
			GainLossEUR:   totalEUR.Sub(prevEUR).Round(8),
			GainLossUSD:   totalUSD.Sub(prevUSD).Round(8),
		}
		if err := tx.Create(&dc).Error; err != nil {
			return apperr.Infra("save daily close", err)
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "holding_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"gain_loss_eur", "gain_loss_usd"}),
		}).Create(&daily).Error; err != nil {
			return apperr.Infra("save holding history", err)
		}
		res.Reason = ReasonClosed
		res.Close = &dc
		return nil
	})
	if err != nil {
		return CloseResult{}, err
	}
	return res, nil
}

// dateRange turns optional year/month filters into a half-open day-key range.
func dateRange(year, month *int) (from, to string, ok bool, err error) {
	if year == nil {
		if month != nil {
			return "", "", false, apperr.Invalid("year", "is required with month")
		}
		return "", "", false, nil
	}
	if month == nil {
		return fmt.Sprintf("%04d-01-01", *year), fmt.Sprintf("%04d-01-01", *year+1), true, nil
	}
	if *month < 1 || *month > 12 {
		return "", "", false, apperr.Invalid("month", "must be 1-12")
	}
	start := time.Date(*year, time.Month(*month), 1, 0, 0, 0, 0, time.UTC)
	return start.Format(clock.DateLayout), start.AddDate(0, 1, 0).Format(clock.DateLayout), true, nil
}

// CloseHistory lists the user's closes of class, newest first.
func (s *Service) CloseHistory(ctx context.Context, class string, userID uint, year, month *int) ([]models.DailyClose, error) {
	if err := checkClass(class); err != nil {
		return nil, err
	}
	from, to, ok, err := dateRange(year, month)
	if err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Where("user_id = ? AND asset_class = ?", userID, class)
	if ok {
		q = q.Where("date >= ? AND date < ?", from, to)
	}
	out := []models.DailyClose{}
	if err := q.Order("date DESC").Find(&out).Error; err != nil {
		return nil, apperr.Infra("list daily closes", err)
	}
	return out, nil
}

// HoldingDay is one close of a holding with its change over the previous close.
type HoldingDay struct {
	Date        string          `json:"date"`
	GainLossEUR decimal.Decimal `json:"gainLossEur"`
	GainLossUSD decimal.Decimal `json:"gainLossUsd"`
	DailyEUR    decimal.Decimal `json:"dailyEur"`
	DailyUSD    decimal.Decimal `json:"dailyUsd"`
}

// HoldingHistory lists a holding's closes newest first. The daily change of
// the oldest row in range is its own cumulative value.
func (s *Service) HoldingHistory(ctx context.Context, class string, userID, holdingID uint, year, month *int) ([]HoldingDay, error) {
	if err := checkClass(class); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	if _, err := loadHolding(db, class, userID, holdingID); err != nil {
		return nil, err
	}
	from, to, ok, err := dateRange(year, month)
	if err != nil {
		return nil, err
	}
	q := db.Where("holding_id = ?", holdingID)
	if ok {
		q = q.Where("date >= ? AND date < ?", from, to)
	}
	var rows []models.HoldingDaily
	if err := q.Order("date ASC").Find(&rows).Error; err != nil {
		return nil, apperr.Infra("list holding history", err)
	}

	out := make([]HoldingDay, len(rows))
	for i, r := range rows {
		d := HoldingDay{Date: r.Date, GainLossEUR: r.GainLossEUR, GainLossUSD: r.GainLossUSD, DailyEUR: r.GainLossEUR, DailyUSD: r.GainLossUSD}
		if i > 0 {
			d.DailyEUR = r.GainLossEUR.Sub(rows[i-1].GainLossEUR)
			d.DailyUSD = r.GainLossUSD.Sub(rows[i-1].GainLossUSD)
		}
		out[len(rows)-1-i] = d
	}
	return out, nil
}
