package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Jezerjjv/saving-back/internal/apperr"
	"github.com/Jezerjjv/saving-back/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AccountInput struct {
	Name        string
	Balance     decimal.Decimal // opening balance
	AccountType string
	Currency    string
}

// AccountPatch updates descriptive fields only; the balance moves through
// transactions and transfers.
type AccountPatch struct {
	Name        *string
	AccountType *string
	Currency    *string
}

func normalizeAccountType(t string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "", models.AccountBank:
		return models.AccountBank, nil
	case models.AccountCash:
		return models.AccountCash, nil
	}
	return "", apperr.Invalid("accountType", "must be bank or cash")
}

func normalizeAccountCurrency(c string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(c)) {
	case "", models.CurrencyEUR:
		return models.CurrencyEUR, nil
	case models.CurrencyUSD:
		return models.CurrencyUSD, nil
	}
	return "", apperr.Invalid("currency", "must be EUR or USD")
}

func (s *Store) CreateAccount(ctx context.Context, userID uint, in AccountInput) (*models.Account, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	typ, err := normalizeAccountType(in.AccountType)
	if err != nil {
		return nil, err
	}
	cur, err := normalizeAccountCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	acc := models.Account{
		UserID:      userID,
		Name:        name,
		Balance:     in.Balance,
		AccountType: typ,
		Currency:    cur,
	}
	if err := s.db.WithContext(ctx).Create(&acc).Error; err != nil {
		return nil, apperr.Infra("create account", err)
	}
	return &acc, nil
}

func (s *Store) GetAccount(ctx context.Context, userID, id uint) (*models.Account, error) {
	var acc models.Account
	err := s.db.WithContext(ctx).
		Preload("Products.ProductType").
		Where("id = ? AND user_id = ?", id, userID).
		First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("account %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.Infra("get account", err)
	}
	return &acc, nil
}

func (s *Store) ListAccounts(ctx context.Context, userID uint) ([]models.Account, error) {
	accs := []models.Account{}
	if err := s.db.WithContext(ctx).
		Preload("Products.ProductType").
		Where("user_id = ?", userID).
		Order("id").
		Find(&accs).Error; err != nil {
		return nil, apperr.Infra("list accounts", err)
	}
	return accs, nil
}

func (s *Store) UpdateAccount(ctx context.Context, userID, id uint, p AccountPatch) (*models.Account, error) {
	updates := map[string]interface{}{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, apperr.Invalid("name", "is required")
		}
		updates["name"] = name
	}
	if p.AccountType != nil {
		typ, err := normalizeAccountType(*p.AccountType)
		if err != nil {
			return nil, err
		}
		updates["account_type"] = typ
	}
	if p.Currency != nil {
		cur, err := normalizeAccountCurrency(*p.Currency)
		if err != nil {
			return nil, err
		}
		updates["currency"] = cur
	}

	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&models.Account{}).
			Where("id = ? AND user_id = ?", id, userID).
			Updates(updates)
		if res.Error != nil {
			return nil, apperr.Infra("update account", res.Error)
		}
	}
	return s.GetAccount(ctx, userID, id)
}

// DeleteAccount removes an account that no ledger row or definition
// references. Accounts with history are rejected.
func (s *Store) DeleteAccount(ctx context.Context, userID, id uint) error {
	return s.WithTx(ctx, func(tx *gorm.DB) error {
		var acc models.Account
		err := tx.Where("id = ? AND user_id = ?", id, userID).First(&acc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("account %d: %w", id, apperr.ErrNotFound)
		}
		if err != nil {
			return apperr.Infra("load account", err)
		}

		refs := []struct {
			model interface{}
			where string
		}{
			{&models.Transaction{}, "account_id = ?"},
			{&models.Transfer{}, "from_account_id = ? OR to_account_id = ?"},
			{&models.FixedIncome{}, "account_id = ?"},
			{&models.FixedExpense{}, "account_id = ?"},
			{&models.PeriodicTransfer{}, "from_account_id = ? OR to_account_id = ?"},
			{&models.QuickTemplate{}, "account_id = ?"},
		}
		for _, r := range refs {
			args := []interface{}{id}
			if strings.Contains(r.where, " OR ") {
				args = append(args, id)
			}
			var n int64
			if err := tx.Model(r.model).Where(r.where, args...).Count(&n).Error; err != nil {
				return apperr.Infra("count account refs", err)
			}
			if n > 0 {
				return apperr.Invalid("id", "account is referenced by ledger rows or definitions")
			}
		}

		if err := tx.Where("account_id = ?", id).Delete(&models.AccountProduct{}).Error; err != nil {
			return apperr.Infra("delete products", err)
		}
		if err := tx.Delete(&acc).Error; err != nil {
			return apperr.Infra("delete account", err)
		}
		return nil
	})
}

// ListUserIDs returns every active user, ascending.
func (s *Store) ListUserIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("deleted_at IS NULL").
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return nil, apperr.Infra("list users", err)
	}
	return ids, nil
}

// ---------- account products ----------

type ProductInput struct {
	Name          string
	ProductTypeID *uint
	Balance       decimal.Decimal
	InterestRate  *decimal.Decimal // annual %, nil when not applicable
}

func (s *Store) ownedAccount(tx *gorm.DB, userID, accountID uint) error {
	var n int64
	if err := tx.Model(&models.Account{}).
		Where("id = ? AND user_id = ?", accountID, userID).
		Count(&n).Error; err != nil {
		return apperr.Infra("check account", err)
	}
	if n == 0 {
		return fmt.Errorf("account %d: %w", accountID, apperr.ErrNotFound)
	}
	return nil
}

func validateProduct(in ProductInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Invalid("name", "is required")
	}
	if in.InterestRate != nil && in.InterestRate.IsNegative() {
		return apperr.Invalid("interestRate", "must not be negative")
	}
	return nil
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func (s *Store) ListProducts(ctx context.Context, userID, accountID uint) ([]models.AccountProduct, error) {
	db := s.db.WithContext(ctx)
	if err := s.ownedAccount(db, userID, accountID); err != nil {
		return nil, err
	}
	out := []models.AccountProduct{}
	if err := db.Preload("ProductType").
		Where("account_id = ?", accountID).
		Order("id").
		Find(&out).Error; err != nil {
		return nil, apperr.Infra("list products", err)
	}
	return out, nil
}

func (s *Store) CreateProduct(ctx context.Context, userID, accountID uint, in ProductInput) (*models.AccountProduct, error) {
	if err := validateProduct(in); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	if err := s.ownedAccount(db, userID, accountID); err != nil {
		return nil, err
	}
	p := models.AccountProduct{
		AccountID:     accountID,
		Name:          strings.TrimSpace(in.Name),
		ProductTypeID: in.ProductTypeID,
		Balance:       in.Balance,
		InterestRate:  toNullDecimal(in.InterestRate),
	}
	if err := db.Create(&p).Error; err != nil {
		return nil, apperr.Infra("create product", err)
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, userID, accountID, productID uint, in ProductInput) (*models.AccountProduct, error) {
	if err := validateProduct(in); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	if err := s.ownedAccount(db, userID, accountID); err != nil {
		return nil, err
	}
	var p models.AccountProduct
	err := db.Where("id = ? AND account_id = ?", productID, accountID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %d: %w", productID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.Infra("load product", err)
	}
	p.Name = strings.TrimSpace(in.Name)
	p.ProductTypeID = in.ProductTypeID
	p.Balance = in.Balance
	p.InterestRate = toNullDecimal(in.InterestRate)
	if err := db.Omit("ProductType").Save(&p).Error; err != nil {
		return nil, apperr.Infra("update product", err)
	}
	return &p, nil
}

func (s *Store) DeleteProduct(ctx context.Context, userID, accountID, productID uint) error {
	db := s.db.WithContext(ctx)
	if err := s.ownedAccount(db, userID, accountID); err != nil {
		return err
	}
	res := db.Where("id = ? AND account_id = ?", productID, accountID).Delete(&models.AccountProduct{})
	if res.Error != nil {
		return apperr.Infra("delete product", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %d: %w", productID, apperr.ErrNotFound)
	}
	return nil
}
