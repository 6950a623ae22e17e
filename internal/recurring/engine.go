package recurring

import (
	"context"
	"fmt"
	"time"

	"github.com/Jezerjjv/saving-back/internal/apperr"
	"github.com/Jezerjjv/saving-back/internal/clock"
	"github.com/Jezerjjv/saving-back/internal/ledger"
	"github.com/Jezerjjv/saving-back/internal/models"

	"gorm.io/gorm"
)

// DuplicateKey decides what identifies an already materialized fixed entry
// within a month.
type DuplicateKey string

const (
	// ByName matches on the definition name. Two definitions sharing a
	// name in one month suppress each other.
	ByName DuplicateKey = "name"
	// ByID matches on the origin definition id recorded on the transaction.
	ByID DuplicateKey = "id"
)

// Engine materializes recurring definitions into ledger rows.
type Engine struct {
	store *ledger.Store
	defs  *Definitions
	clock clock.Clock
	key   DuplicateKey
}

func NewEngine(store *ledger.Store, key DuplicateKey) *Engine {
	if key != ByID {
		key = ByName
	}
	return &Engine{
		store: store,
		defs:  NewDefinitions(store.DB()),
		clock: store.Clock(),
		key:   key,
	}
}

// Definitions exposes the CRUD store sharing the engine's database.
func (e *Engine) Definitions() *Definitions { return e.defs }

// DateFor returns noon UTC on min(day, last day of month).
func DateFor(year int, month time.Month, day int) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	d := ClampDay(day)
	if d > last {
		d = last
	}
	return time.Date(year, month, d, 12, 0, 0, 0, time.UTC)
}

// period resolves a (month, year) request; zeros mean the current UTC month.
func (e *Engine) period(month, year int) (time.Month, int, error) {
	now := e.clock.Now().UTC()
	if month == 0 {
		month = int(now.Month())
	}
	if year == 0 {
		year = now.Year()
	}
	if month < 1 || month > 12 {
		return 0, 0, apperr.Invalid("month", "must be 1-12")
	}
	if year < 1970 || year > 9999 {
		return 0, 0, apperr.Invalid("year", "out of range")
	}
	return time.Month(month), year, nil
}

func scopeKey(kind string, userID uint, year int, month time.Month) string {
	return fmt.Sprintf("%s:%d:%04d-%02d", kind, userID, year, int(month))
}

// ---------- fixed incomes / expenses ----------

func (e *Engine) dupKey(def *models.FixedEntry) string {
	if e.key == ByID {
		return fmt.Sprintf("#%d", def.ID)
	}
	return def.Name
}

// appliedFixed collects the duplicate-guard set for (user, kind) in range.
func (e *Engine) appliedFixed(tx *gorm.DB, kind Kind, userID uint, start, end time.Time) (map[string]bool, error) {
	q := tx.Model(&models.Transaction{}).
		Where("user_id = ? AND type = ? AND date >= ? AND date < ?", userID, kind.TxType(), start, end)
	subCol, idCol := "income_type", "fixed_income_id"
	if kind == Expense {
		subCol, idCol = "expense_type", "fixed_expense_id"
	}
	q = q.Where(subCol+" = ?", models.SubTypeFixed)

	guard := map[string]bool{}
	if e.key == ByID {
		var ids []uint
		if err := q.Where(idCol+" IS NOT NULL").Pluck(idCol, &ids).Error; err != nil {
			return nil, apperr.Infra("load applied "+kind.String(), err)
		}
		for _, id := range ids {
			guard[fmt.Sprintf("#%d", id)] = true
		}
		return guard, nil
	}
	var names []string
	if err := q.Pluck("name", &names).Error; err != nil {
		return nil, apperr.Infra("load applied "+kind.String(), err)
	}
	for _, n := range names {
		guard[n] = true
	}
	return guard, nil
}

func (e *Engine) materializeFixed(tx *gorm.DB, kind Kind, userID uint, def *models.FixedEntry, year int, month time.Month) (*models.Transaction, error) {
	date := DateFor(year, month, def.DayOfMonth)
	in := ledger.TransactionInput{
		Name:       def.Name,
		CategoryID: def.CategoryID,
		Amount:     def.Amount,
		AccountID:  def.AccountID,
		Type:       kind.TxType(),
		SubType:    models.SubTypeFixed,
		Date:       &date,
	}
	id := def.ID
	if kind == Expense {
		in.FixedExpenseID = &id
	} else {
		in.FixedIncomeID = &id
	}
	return e.store.CreateTransactionTx(tx, userID, in)
}

// ApplyFixedForMonth materializes every definition of kind not yet applied in
// the month. With dayFilter set, only definitions on that (clamped) day are
// considered. The result is never nil.
func (e *Engine) ApplyFixedForMonth(ctx context.Context, kind Kind, userID uint, month, year int, dayFilter *int) ([]models.Transaction, error) {
	m, y, err := e.period(month, year)
	if err != nil {
		return nil, err
	}
	start, end := ledger.MonthRange(y, m)

	created := []models.Transaction{}
	err = e.store.WithScope(ctx, scopeKey(kind.String(), userID, y, m), func(tx *gorm.DB) error {
		var defs []models.FixedEntry
		if err := tx.Table(kind.table()).Where("user_id = ?", userID).Order("id").Find(&defs).Error; err != nil {
			return apperr.Infra("load "+kind.String(), err)
		}
		if dayFilter != nil {
			day := ClampDay(*dayFilter)
			kept := defs[:0]
			for _, d := range defs {
				if ClampDay(d.DayOfMonth) == day {
					kept = append(kept, d)
				}
			}
			defs = kept
		}
		if len(defs) == 0 {
			return nil
		}

		guard, err := e.appliedFixed(tx, kind, userID, start, end)
		if err != nil {
			return err
		}
		for i := range defs {
			def := &defs[i]
			k := e.dupKey(def)
			if guard[k] {
				continue
			}
			t, err := e.materializeFixed(tx, kind, userID, def, y, m)
			if err != nil {
				return err
			}
			guard[k] = true
			created = append(created, *t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ApplySingleFixed materializes one definition for the month. It returns
// nil, nil when the entry is already applied in that month.
func (e *Engine) ApplySingleFixed(ctx context.Context, kind Kind, userID, definitionID uint, month, year int) (*models.Transaction, error) {
	m, y, err := e.period(month, year)
	if err != nil {
		return nil, err
	}
	start, end := ledger.MonthRange(y, m)

	var created *models.Transaction
	err = e.store.WithScope(ctx, scopeKey(kind.String(), userID, y, m), func(tx *gorm.DB) error {
		def, err := loadFixed(tx, kind, userID, definitionID)
		if err != nil {
			return err
		}
		guard, err := e.appliedFixed(tx, kind, userID, start, end)
		if err != nil {
			return err
		}
		if guard[e.dupKey(def)] {
			return nil
		}
		created, err = e.materializeFixed(tx, kind, userID, def, y, m)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (e *Engine) ApplyFixedIncomesForMonth(ctx context.Context, userID uint, month, year int, dayFilter *int) ([]models.Transaction, error) {
	return e.ApplyFixedForMonth(ctx, Income, userID, month, year, dayFilter)
}

func (e *Engine) ApplyFixedExpensesForMonth(ctx context.Context, userID uint, month, year int, dayFilter *int) ([]models.Transaction, error) {
	return e.ApplyFixedForMonth(ctx, Expense, userID, month, year, dayFilter)
}

func (e *Engine) ApplySingleFixedIncome(ctx context.Context, userID, id uint, month, year int) (*models.Transaction, error) {
	return e.ApplySingleFixed(ctx, Income, userID, id, month, year)
}

func (e *Engine) ApplySingleFixedExpense(ctx context.Context, userID, id uint, month, year int) (*models.Transaction, error) {
	return e.ApplySingleFixed(ctx, Expense, userID, id, month, year)
}

// ---------- periodic transfers ----------

func appliedPeriodic(tx *gorm.DB, userID uint, start, end time.Time) (map[uint]bool, error) {
	var ids []uint
	if err := tx.Model(&models.Transfer{}).
		Where("user_id = ? AND periodic_transfer_id IS NOT NULL AND date >= ? AND date < ?", userID, start, end).
		Pluck("periodic_transfer_id", &ids).Error; err != nil {
		return nil, apperr.Infra("load applied periodic transfers", err)
	}
	guard := make(map[uint]bool, len(ids))
	for _, id := range ids {
		guard[id] = true
	}
	return guard, nil
}

// materializePeriodic creates the transfer already carrying its historical date.
func (e *Engine) materializePeriodic(tx *gorm.DB, userID uint, p *models.PeriodicTransfer, year int, month time.Month) (*models.Transfer, error) {
	date := DateFor(year, month, p.DayOfMonth)
	id := p.ID
	return e.store.CreateTransferTx(tx, userID, ledger.TransferInput{
		FromAccountID:      p.FromAccountID,
		ToAccountID:        p.ToAccountID,
		Amount:             p.Amount,
		Description:        p.Description,
		Date:               &date,
		PeriodicTransferID: &id,
	})
}

const periodicScope = "periodic"

// ApplyPeriodicTransfersForMonth mirrors ApplyFixedForMonth, keyed by the
// periodic transfer id.
func (e *Engine) ApplyPeriodicTransfersForMonth(ctx context.Context, userID uint, month, year int, dayFilter *int) ([]models.Transfer, error) {
	m, y, err := e.period(month, year)
	if err != nil {
		return nil, err
	}
	start, end := ledger.MonthRange(y, m)

	created := []models.Transfer{}
	err = e.store.WithScope(ctx, scopeKey(periodicScope, userID, y, m), func(tx *gorm.DB) error {
		var defs []models.PeriodicTransfer
		if err := tx.Where("user_id = ?", userID).Order("id").Find(&defs).Error; err != nil {
			return apperr.Infra("load periodic transfers", err)
		}
		if dayFilter != nil {
			day := ClampDay(*dayFilter)
			kept := defs[:0]
			for _, d := range defs {
				if ClampDay(d.DayOfMonth) == day {
					kept = append(kept, d)
				}
			}
			defs = kept
		}
		if len(defs) == 0 {
			return nil
		}

		guard, err := appliedPeriodic(tx, userID, start, end)
		if err != nil {
			return err
		}
		for i := range defs {
			p := &defs[i]
			if guard[p.ID] {
				continue
			}
			tr, err := e.materializePeriodic(tx, userID, p, y, m)
			if err != nil {
				return err
			}
			guard[p.ID] = true
			created = append(created, *tr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ApplySinglePeriodicTransfer returns nil, nil when already applied that month.
func (e *Engine) ApplySinglePeriodicTransfer(ctx context.Context, userID, id uint, month, year int) (*models.Transfer, error) {
	m, y, err := e.period(month, year)
	if err != nil {
		return nil, err
	}
	start, end := ledger.MonthRange(y, m)

	var created *models.Transfer
	err = e.store.WithScope(ctx, scopeKey(periodicScope, userID, y, m), func(tx *gorm.DB) error {
		p, err := loadPeriodic(tx, userID, id)
		if err != nil {
			return err
		}
		guard, err := appliedPeriodic(tx, userID, start, end)
		if err != nil {
			return err
		}
		if guard[p.ID] {
			return nil
		}
		created, err = e.materializePeriodic(tx, userID, p, y, m)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
