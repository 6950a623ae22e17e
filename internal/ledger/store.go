// Package ledger owns accounts, transactions, transfers and per-user
// settings. Every write that moves money runs in one database transaction
// that locks the touched account rows, writes the ledger row and adjusts the
// balances together.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Jezerjjv/saving-back/internal/apperr"
	"github.com/Jezerjjv/saving-back/internal/clock"
	"github.com/Jezerjjv/saving-back/internal/database"
	"github.com/Jezerjjv/saving-back/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db    *gorm.DB
	clock clock.Clock
	locks *keyedMutex
}

func NewStore(db *gorm.DB, c clock.Clock) *Store {
	if c == nil {
		c = clock.NewReal()
	}
	return &Store{db: db, clock: c, locks: newKeyedMutex()}
}

// DB returns the underlying handle for read-only collaborators.
func (s *Store) DB() *gorm.DB { return s.db }

// Clock returns the store's time source.
func (s *Store) Clock() clock.Clock { return s.clock }

// WithTx runs fn inside one database transaction bound to ctx.
func (s *Store) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// WithScope serializes fn against every other caller holding the same scope
// key, then runs it in a transaction. On postgres a transaction-scoped
// advisory lock extends the exclusion to other processes.
func (s *Store) WithScope(ctx context.Context, key string, fn func(tx *gorm.DB) error) error {
	unlock, err := s.locks.Lock(ctx, key)
	if err != nil {
		return apperr.Infra("scope lock "+key, err)
	}
	defer unlock()

	return s.WithTx(ctx, func(tx *gorm.DB) error {
		if database.IsPostgres(tx) {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", advisoryKey(key)).Error; err != nil {
				return apperr.Infra("advisory lock "+key, err)
			}
		}
		return fn(tx)
	})
}

// lockAccounts loads the user's accounts with the given ids under a row lock,
// in ascending id order. A missing or foreign account is a validation error.
func lockAccounts(tx *gorm.DB, userID uint, ids ...uint) (map[uint]*models.Account, error) {
	uniq := make([]uint, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	var accs []models.Account
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND id IN ?", userID, uniq).
		Order("id").
		Find(&accs).Error; err != nil {
		return nil, apperr.Infra("lock accounts", err)
	}

	out := make(map[uint]*models.Account, len(accs))
	for i := range accs {
		out[accs[i].ID] = &accs[i]
	}
	for _, id := range uniq {
		if _, ok := out[id]; !ok {
			return nil, apperr.Invalid("accountId", fmt.Sprintf("account %d not found", id))
		}
	}
	return out, nil
}

// applyDelta adds delta to a locked account and persists the new balance.
func applyDelta(tx *gorm.DB, acc *models.Account, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	acc.Balance = acc.Balance.Add(delta)
	if err := tx.Model(&models.Account{}).
		Where("id = ?", acc.ID).
		Update("balance", acc.Balance).Error; err != nil {
		return apperr.Infra("update balance", err)
	}
	return nil
}

// LockAccountsTx is lockAccounts for engines running their own transaction.
func LockAccountsTx(tx *gorm.DB, userID uint, ids ...uint) (map[uint]*models.Account, error) {
	return lockAccounts(tx, userID, ids...)
}

// SetBalanceTx overwrites the balance of a locked account and returns the
// applied difference.
func SetBalanceTx(tx *gorm.DB, acc *models.Account, balance decimal.Decimal) (decimal.Decimal, error) {
	delta := balance.Sub(acc.Balance)
	return delta, applyDelta(tx, acc, delta)
}

// Noon returns 12:00 UTC on t's UTC calendar day.
func Noon(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 12, 0, 0, 0, time.UTC)
}

// MonthRange returns the half-open UTC range [first of month, first of next month).
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

func requirePositive(field string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return apperr.Invalid(field, "must be positive")
	}
	return nil
}
