package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/Jezerjjv/saving-back/internal/apperr"
	"github.com/Jezerjjv/saving-back/internal/models"

	"gorm.io/gorm"
)

const snapshotVersion = 1

// Snapshot is everything one user owns in the ledger. Row ids are the ids at
// snapshot time; Restore assigns fresh ones and rewrites every reference.
type Snapshot struct {
	Version         int                       `json:"version"`
	UserID          uint                      `json:"userId"`
	Created         time.Time                 `json:"created"`
	Categories      []models.Category         `json:"categories"`
	Accounts        []models.Account          `json:"accounts"`
	Products        []models.AccountProduct   `json:"products"`
	Transactions    []models.Transaction      `json:"transactions"`
	Transfers       []models.Transfer         `json:"transfers"`
	FixedIncomes    []models.FixedIncome      `json:"fixedIncomes"`
	FixedExpenses   []models.FixedExpense     `json:"fixedExpenses"`
	Periodic        []models.PeriodicTransfer `json:"periodicTransfers"`
	QuickTemplates  []models.QuickTemplate    `json:"quickTemplates"`
	InterestHistory []models.InterestHistory  `json:"interestHistory"`
	Settings        []models.AppSetting       `json:"settings"`
	Holdings        []models.Holding          `json:"holdings"`
	HoldingDaily    []models.HoldingDaily     `json:"holdingDaily"`
	DailyCloses     []models.DailyClose       `json:"dailyCloses"`
}

// RestoreStats counts what a restore wrote.
type RestoreStats struct {
	Accounts     int `json:"accounts"`
	Transactions int `json:"transactions"`
	Transfers    int `json:"transfers"`
	Recurring    int `json:"recurring"`
	Holdings     int `json:"holdings"`
}

func accountIDs(db *gorm.DB, userID uint) *gorm.DB {
	return db.Model(&models.Account{}).Select("id").Where("user_id = ?", userID)
}

func holdingIDs(db *gorm.DB, userID uint) *gorm.DB {
	return db.Model(&models.Holding{}).Select("id").Where("user_id = ?", userID)
}

// Take reads a consistent snapshot of the user's rows.
func (s *Service) Take(ctx context.Context, userID uint) (*Snapshot, error) {
	snap := &Snapshot{Version: snapshotVersion, UserID: userID, Created: s.store.Clock().Now().UTC()}
	err := s.store.WithTx(ctx, func(tx *gorm.DB) error {
		byUser := func(dst interface{}, order string) error {
			return tx.Where("user_id = ?", userID).Order(order).Find(dst).Error
		}
		steps := []struct {
			what string
			run  func() error
		}{
			{"categories", func() error { return byUser(&snap.Categories, "id") }},
			{"accounts", func() error { return byUser(&snap.Accounts, "id") }},
			{"products", func() error {
				return tx.Where("account_id IN (?)", accountIDs(tx, userID)).Order("id").Find(&snap.Products).Error
			}},
			{"transactions", func() error { return byUser(&snap.Transactions, "id") }},
			{"transfers", func() error { return byUser(&snap.Transfers, "id") }},
			{"fixed incomes", func() error { return byUser(&snap.FixedIncomes, "id") }},
			{"fixed expenses", func() error { return byUser(&snap.FixedExpenses, "id") }},
			{"periodic transfers", func() error { return byUser(&snap.Periodic, "id") }},
			{"quick templates", func() error { return byUser(&snap.QuickTemplates, "id") }},
			{"interest history", func() error { return byUser(&snap.InterestHistory, "date, account_id") }},
			{"settings", func() error { return byUser(&snap.Settings, "key") }},
			{"holdings", func() error { return byUser(&snap.Holdings, "id") }},
			{"holding history", func() error {
				return tx.Where("holding_id IN (?)", holdingIDs(tx, userID)).Order("holding_id, date").Find(&snap.HoldingDaily).Error
			}},
			{"daily closes", func() error { return byUser(&snap.DailyCloses, "asset_class, date") }},
		}
		for _, st := range steps {
			if err := st.run(); err != nil {
				return apperr.Infra("snapshot "+st.what, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// idMap rewrites snapshot ids to the ids assigned on restore.
type idMap struct {
	what string
	m    map[uint]uint
}

func newIDMap(what string) *idMap { return &idMap{what: what, m: map[uint]uint{}} }

func (im *idMap) get(old uint) (uint, error) {
	id, ok := im.m[old]
	if !ok {
		return 0, apperr.Invalid(im.what, fmt.Sprintf("snapshot references unknown id %d", old))
	}
	return id, nil
}

// opt rewrites an optional reference; a dangling one becomes nil.
func (im *idMap) opt(old *uint) *uint {
	if old == nil {
		return nil
	}
	id, ok := im.m[*old]
	if !ok {
		return nil
	}
	return &id
}

// wipe removes every row the user owns, children first.
func wipe(tx *gorm.DB, userID uint) error {
	if err := tx.Where("holding_id IN (?)", holdingIDs(tx, userID)).Delete(&models.HoldingDaily{}).Error; err != nil {
		return apperr.Infra("clear holding history", err)
	}
	if err := tx.Where("account_id IN (?)", accountIDs(tx, userID)).Delete(&models.AccountProduct{}).Error; err != nil {
		return apperr.Infra("clear products", err)
	}
	for _, m := range []interface{}{
		&models.DailyClose{}, &models.Holding{}, &models.InterestHistory{},
		&models.Transfer{}, &models.Transaction{}, &models.PeriodicTransfer{},
		&models.FixedIncome{}, &models.FixedExpense{}, &models.QuickTemplate{}, &models.Account{},
		&models.Category{}, &models.AppSetting{},
	} {
		if err := tx.Where("user_id = ?", userID).Delete(m).Error; err != nil {
			return apperr.Infra(fmt.Sprintf("clear %T", m), err)
		}
	}
	return nil
}

// Restore replaces the user's ledger with snap in one transaction. Balances
// are restored as recorded, which keeps them equal to the sum of the
// restored rows.
func (s *Service) Restore(ctx context.Context, userID uint, snap *Snapshot) (*RestoreStats, error) {
	if snap == nil || snap.Version != snapshotVersion {
		return nil, apperr.Invalid("backup", "unsupported snapshot version")
	}
	if snap.UserID != 0 && snap.UserID != userID {
		return nil, apperr.Invalid("backup", "belongs to another user")
	}

	stats := &RestoreStats{}
	err := s.store.WithScope(ctx, fmt.Sprintf("restore:%d", userID), func(tx *gorm.DB) error {
		if err := wipe(tx, userID); err != nil {
			return err
		}

		cats := newIDMap("categoryId")
		for _, c := range snap.Categories {
			old := c.ID
			c.ID, c.UserID = 0, userID
			if err := tx.Create(&c).Error; err != nil {
				return apperr.Infra("restore category", err)
			}
			cats.m[old] = c.ID
		}

		accs := newIDMap("accountId")
		for _, a := range snap.Accounts {
			old := a.ID
			a.ID, a.UserID, a.Products = 0, userID, nil
			if err := tx.Create(&a).Error; err != nil {
				return apperr.Infra("restore account", err)
			}
			accs.m[old] = a.ID
		}
		stats.Accounts = len(snap.Accounts)

		var types []uint
		if err := tx.Model(&models.ProductType{}).Pluck("id", &types).Error; err != nil {
			return apperr.Infra("load product types", err)
		}
		known := make(map[uint]bool, len(types))
		for _, id := range types {
			known[id] = true
		}
		for _, p := range snap.Products {
			var err error
			p.ID, p.ProductType = 0, nil
			if p.AccountID, err = accs.get(p.AccountID); err != nil {
				return err
			}
			if p.ProductTypeID != nil && !known[*p.ProductTypeID] {
				p.ProductTypeID = nil
			}
			if err := tx.Create(&p).Error; err != nil {
				return apperr.Infra("restore product", err)
			}
		}

		incomes := newIDMap("fixedIncomeId")
		for _, f := range snap.FixedIncomes {
			old := f.ID
			if err := restoreFixed(&f.FixedEntry, userID, accs, cats); err != nil {
				return err
			}
			if err := tx.Create(&f).Error; err != nil {
				return apperr.Infra("restore fixed income", err)
			}
			incomes.m[old] = f.ID
		}
		expenses := newIDMap("fixedExpenseId")
		for _, f := range snap.FixedExpenses {
			old := f.ID
			if err := restoreFixed(&f.FixedEntry, userID, accs, cats); err != nil {
				return err
			}
			if err := tx.Create(&f).Error; err != nil {
				return apperr.Infra("restore fixed expense", err)
			}
			expenses.m[old] = f.ID
		}
		periodic := newIDMap("periodicTransferId")
		for _, p := range snap.Periodic {
			var err error
			old := p.ID
			p.ID, p.UserID = 0, userID
			if p.FromAccountID, err = accs.get(p.FromAccountID); err != nil {
				return err
			}
			if p.ToAccountID, err = accs.get(p.ToAccountID); err != nil {
				return err
			}
			if err := tx.Create(&p).Error; err != nil {
				return apperr.Infra("restore periodic transfer", err)
			}
			periodic.m[old] = p.ID
		}
		stats.Recurring = len(snap.FixedIncomes) + len(snap.FixedExpenses) + len(snap.Periodic)

		for _, q := range snap.QuickTemplates {
			var err error
			q.ID, q.UserID = 0, userID
			if q.AccountID, err = accs.get(q.AccountID); err != nil {
				return err
			}
			q.CategoryID = cats.opt(q.CategoryID)
			if err := tx.Create(&q).Error; err != nil {
				return apperr.Infra("restore quick template", err)
			}
		}

		for _, t := range snap.Transactions {
			var err error
			t.ID, t.UserID = 0, userID
			if t.AccountID, err = accs.get(t.AccountID); err != nil {
				return err
			}
			t.CategoryID = cats.opt(t.CategoryID)
			t.FixedIncomeID = incomes.opt(t.FixedIncomeID)
			t.FixedExpenseID = expenses.opt(t.FixedExpenseID)
			if err := tx.Create(&t).Error; err != nil {
				return apperr.Infra("restore transaction", err)
			}
		}
		stats.Transactions = len(snap.Transactions)

		for _, t := range snap.Transfers {
			var err error
			t.ID, t.UserID = 0, userID
			if t.FromAccountID, err = accs.get(t.FromAccountID); err != nil {
				return err
			}
			if t.ToAccountID, err = accs.get(t.ToAccountID); err != nil {
				return err
			}
			t.PeriodicTransferID = periodic.opt(t.PeriodicTransferID)
			if err := tx.Create(&t).Error; err != nil {
				return apperr.Infra("restore transfer", err)
			}
		}
		stats.Transfers = len(snap.Transfers)

		for _, h := range snap.InterestHistory {
			var err error
			h.ID, h.UserID = 0, userID
			if h.AccountID, err = accs.get(h.AccountID); err != nil {
				return err
			}
			if err := tx.Create(&h).Error; err != nil {
				return apperr.Infra("restore interest history", err)
			}
		}

		for _, st := range snap.Settings {
			st.ID, st.UserID = 0, userID
			if err := tx.Create(&st).Error; err != nil {
				return apperr.Infra("restore setting", err)
			}
		}

		hold := newIDMap("holdingId")
		for _, h := range snap.Holdings {
			old := h.ID
			h.ID, h.UserID = 0, userID
			if err := tx.Create(&h).Error; err != nil {
				return apperr.Infra("restore holding", err)
			}
			hold.m[old] = h.ID
		}
		stats.Holdings = len(snap.Holdings)
		for _, d := range snap.HoldingDaily {
			var err error
			d.ID = 0
			if d.HoldingID, err = hold.get(d.HoldingID); err != nil {
				return err
			}
			if err := tx.Create(&d).Error; err != nil {
				return apperr.Infra("restore holding history", err)
			}
		}
		for _, dc := range snap.DailyCloses {
			dc.ID, dc.UserID = 0, userID
			if err := tx.Create(&dc).Error; err != nil {
				return apperr.Infra("restore daily close", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func restoreFixed(f *models.FixedEntry, userID uint, accs, cats *idMap) error {
	var err error
	f.ID, f.UserID = 0, userID
	if f.AccountID, err = accs.get(f.AccountID); err != nil {
		return err
	}
	f.CategoryID = cats.opt(f.CategoryID)
	return nil
}
