package ledger

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Jezerjjv/saving-back/internal/apperr"
	"github.com/Jezerjjv/saving-back/internal/models"

	"gorm.io/gorm"
)

// ---------- categories ----------

func (s *Store) ListCategories(ctx context.Context, userID uint) ([]models.Category, error) {
	out := []models.Category{}
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("name").Find(&out).Error; err != nil {
		return nil, apperr.Infra("list categories", err)
	}
	return out, nil
}

func (s *Store) CreateCategory(ctx context.Context, userID uint, name, icon string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	c := models.Category{UserID: userID, Name: name, Icon: strings.TrimSpace(icon)}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, apperr.Infra("create category", err)
	}
	return &c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, userID, id uint, name, icon *string) (*models.Category, error) {
	updates := map[string]interface{}{}
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return nil, apperr.Invalid("name", "is required")
		}
		updates["name"] = n
	}
	if icon != nil {
		updates["icon"] = strings.TrimSpace(*icon)
	}
	db := s.db.WithContext(ctx)
	if len(updates) > 0 {
		if err := db.Model(&models.Category{}).Where("id = ? AND user_id = ?", id, userID).Updates(updates).Error; err != nil {
			return nil, apperr.Infra("update category", err)
		}
	}
	var c models.Category
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&c).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("category %d: %w", id, apperr.ErrNotFound)
		}
		return nil, apperr.Infra("load category", err)
	}
	return &c, nil
}

// CheckCategoryTx rejects a category the user does not own. A nil id passes.
func CheckCategoryTx(tx *gorm.DB, userID uint, id *uint) error {
	if id == nil {
		return nil
	}
	var n int64
	if err := tx.Model(&models.Category{}).Where("id = ? AND user_id = ?", *id, userID).Count(&n).Error; err != nil {
		return apperr.Infra("check category", err)
	}
	if n == 0 {
		return apperr.Invalid("categoryId", fmt.Sprintf("category %d not found", *id))
	}
	return nil
}

// DeleteCategory detaches the category from transactions, definitions and
// quick templates before removing it.
func (s *Store) DeleteCategory(ctx context.Context, userID, id uint) error {
	return s.WithTx(ctx, func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Category{})
		if res.Error != nil {
			return apperr.Infra("delete category", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("category %d: %w", id, apperr.ErrNotFound)
		}
		for _, m := range []interface{}{&models.Transaction{}, &models.FixedIncome{}, &models.FixedExpense{}, &models.QuickTemplate{}} {
			if err := tx.Model(m).
				Where("user_id = ? AND category_id = ?", userID, id).
				Update("category_id", nil).Error; err != nil {
				return apperr.Infra("detach category", err)
			}
		}
		return nil
	})
}

// ---------- product types ----------

func (s *Store) ListProductTypes(ctx context.Context) ([]models.ProductType, error) {
	out := []models.ProductType{}
	if err := s.db.WithContext(ctx).Order("id").Find(&out).Error; err != nil {
		return nil, apperr.Infra("list product types", err)
	}
	return out, nil
}

var slugStrip = regexp.MustCompile(`[^a-z0-9_]`)

// Slugify lower-cases name, joins words with '_' and drops anything else.
func Slugify(name string) string {
	s := strings.Join(strings.Fields(strings.ToLower(name)), "_")
	s = slugStrip.ReplaceAllString(s, "")
	if len(s) > 45 {
		s = s[:45]
	}
	if s == "" {
		return "other"
	}
	return s
}

// CreateProductType derives a unique slug from name, suffixing _1, _2...
// on collision.
func (s *Store) CreateProductType(ctx context.Context, name, icon string) (*models.ProductType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	if strings.TrimSpace(icon) == "" {
		icon = "📦"
	}
	var out *models.ProductType
	err := s.WithTx(ctx, func(tx *gorm.DB) error {
		base := Slugify(name)
		var used []string
		if err := tx.Model(&models.ProductType{}).
			Where("slug = ? OR slug LIKE ?", base, base+"_%").
			Pluck("slug", &used).Error; err != nil {
			return apperr.Infra("load slugs", err)
		}
		taken := make(map[string]bool, len(used))
		for _, u := range used {
			taken[u] = true
		}
		slug := base
		for i := 1; taken[slug]; i++ {
			slug = fmt.Sprintf("%s_%d", base, i)
		}
		pt := models.ProductType{Name: name, Slug: slug, Icon: strings.TrimSpace(icon)}
		if err := tx.Create(&pt).Error; err != nil {
			return apperr.Infra("create product type", err)
		}
		out = &pt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetProductType(ctx context.Context, id uint) (*models.ProductType, error) {
	var pt models.ProductType
	err := s.db.WithContext(ctx).First(&pt, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product type %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.Infra("load product type", err)
	}
	return &pt, nil
}

// UpdateProductType renames or re-icons a type. The slug never changes, so
// products keep their meaning.
func (s *Store) UpdateProductType(ctx context.Context, id uint, name, icon *string) (*models.ProductType, error) {
	updates := map[string]interface{}{}
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return nil, apperr.Invalid("name", "is required")
		}
		updates["name"] = n
	}
	if icon != nil {
		i := strings.TrimSpace(*icon)
		if i == "" {
			i = "📦"
		}
		updates["icon"] = i
	}
	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&models.ProductType{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, apperr.Infra("update product type", res.Error)
		}
	}
	return s.GetProductType(ctx, id)
}

// DeleteProductType removes a type and detaches the products using it. The
// interest type cannot be removed.
func (s *Store) DeleteProductType(ctx context.Context, id uint) error {
	return s.WithTx(ctx, func(tx *gorm.DB) error {
		var pt models.ProductType
		err := tx.First(&pt, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("product type %d: %w", id, apperr.ErrNotFound)
		}
		if err != nil {
			return apperr.Infra("load product type", err)
		}
		if pt.Slug == models.ProductTypeInterest {
			return apperr.Invalid("id", "the interest product type is built in")
		}
		if err := tx.Model(&models.AccountProduct{}).
			Where("product_type_id = ?", id).
			Update("product_type_id", nil).Error; err != nil {
			return apperr.Infra("detach product type", err)
		}
		if err := tx.Delete(&pt).Error; err != nil {
			return apperr.Infra("delete product type", err)
		}
		return nil
	})
}
