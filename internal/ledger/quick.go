package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Jezerjjv/saving-back/internal/apperr"
	"github.com/Jezerjjv/saving-back/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const defaultTemplateIcon = "📁"

type QuickTemplateInput struct {
	Type        string
	Name        string
	Icon        string
	CategoryID  *uint
	Amount      decimal.Decimal
	AccountID   uint
	ShowInQuick bool
}

// QuickTemplatePatch leaves nil fields unchanged. The type of a template is
// fixed at creation.
type QuickTemplatePatch struct {
	Name          *string
	Icon          *string
	CategoryID    *uint
	ClearCategory bool
	Amount        *decimal.Decimal
	AccountID     *uint
	ShowInQuick   *bool
}

type QuickTemplateFilter struct {
	Type        string
	ShowInQuick *bool
}

func templateIcon(icon string) string {
	icon = strings.TrimSpace(icon)
	if icon == "" {
		return defaultTemplateIcon
	}
	if utf8.RuneCountInString(icon) > 50 {
		icon = string([]rune(icon)[:50])
	}
	return icon
}

func checkTemplateAccount(tx *gorm.DB, userID, accountID uint) error {
	var n int64
	if err := tx.Model(&models.Account{}).
		Where("id = ? AND user_id = ?", accountID, userID).
		Count(&n).Error; err != nil {
		return apperr.Infra("check account", err)
	}
	if n == 0 {
		return apperr.Invalid("accountId", fmt.Sprintf("account %d not found", accountID))
	}
	return nil
}

func (s *Store) ListQuickTemplates(ctx context.Context, userID uint, f QuickTemplateFilter) ([]models.QuickTemplate, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.ShowInQuick != nil {
		q = q.Where("show_in_quick = ?", *f.ShowInQuick)
	}
	out := []models.QuickTemplate{}
	if err := q.Order("name, id").Find(&out).Error; err != nil {
		return nil, apperr.Infra("list quick templates", err)
	}
	return out, nil
}

func loadQuickTemplate(tx *gorm.DB, userID, id uint) (*models.QuickTemplate, error) {
	var t models.QuickTemplate
	err := tx.Where("id = ? AND user_id = ?", id, userID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("quick template %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.Infra("load quick template", err)
	}
	return &t, nil
}

func (s *Store) GetQuickTemplate(ctx context.Context, userID, id uint) (*models.QuickTemplate, error) {
	return loadQuickTemplate(s.db.WithContext(ctx), userID, id)
}

func (s *Store) CreateQuickTemplate(ctx context.Context, userID uint, in QuickTemplateInput) (*models.QuickTemplate, error) {
	if err := validType(in.Type); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	if err := requirePositive("amount", in.Amount); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	if err := checkTemplateAccount(db, userID, in.AccountID); err != nil {
		return nil, err
	}
	if err := CheckCategoryTx(db, userID, in.CategoryID); err != nil {
		return nil, err
	}
	t := models.QuickTemplate{
		UserID:      userID,
		Type:        in.Type,
		Name:        name,
		Icon:        templateIcon(in.Icon),
		CategoryID:  in.CategoryID,
		Amount:      in.Amount,
		AccountID:   in.AccountID,
		ShowInQuick: in.ShowInQuick,
	}
	if err := db.Create(&t).Error; err != nil {
		return nil, apperr.Infra("create quick template", err)
	}
	return &t, nil
}

func (s *Store) UpdateQuickTemplate(ctx context.Context, userID, id uint, p QuickTemplatePatch) (*models.QuickTemplate, error) {
	db := s.db.WithContext(ctx)
	t, err := loadQuickTemplate(db, userID, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		t.Name = strings.TrimSpace(*p.Name)
		if t.Name == "" {
			return nil, apperr.Invalid("name", "is required")
		}
	}
	if p.Icon != nil {
		t.Icon = templateIcon(*p.Icon)
	}
	switch {
	case p.ClearCategory:
		t.CategoryID = nil
	case p.CategoryID != nil:
		if err := CheckCategoryTx(db, userID, p.CategoryID); err != nil {
			return nil, err
		}
		t.CategoryID = p.CategoryID
	}
	if p.Amount != nil {
		if err := requirePositive("amount", *p.Amount); err != nil {
			return nil, err
		}
		t.Amount = *p.Amount
	}
	if p.AccountID != nil {
		if err := checkTemplateAccount(db, userID, *p.AccountID); err != nil {
			return nil, err
		}
		t.AccountID = *p.AccountID
	}
	if p.ShowInQuick != nil {
		t.ShowInQuick = *p.ShowInQuick
	}
	if err := db.Model(&models.QuickTemplate{}).Where("id = ? AND user_id = ?", t.ID, userID).Updates(map[string]interface{}{
		"name":          t.Name,
		"icon":          t.Icon,
		"category_id":   t.CategoryID,
		"amount":        t.Amount,
		"account_id":    t.AccountID,
		"show_in_quick": t.ShowInQuick,
	}).Error; err != nil {
		return nil, apperr.Infra("update quick template", err)
	}
	return t, nil
}

func (s *Store) DeleteQuickTemplate(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.QuickTemplate{})
	if res.Error != nil {
		return apperr.Infra("delete quick template", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("quick template %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}
