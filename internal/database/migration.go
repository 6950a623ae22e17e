package database

import (
	"fmt"

	"github.com/Jezerjjv/saving-back/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AutoMigrate runs database schema migrations for all models and seeds the
// built-in product types.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.ProductType{},
		&models.AccountProduct{},
		&models.Category{},
		&models.Transaction{},
		&models.Transfer{},
		&models.FixedIncome{},
		&models.FixedExpense{},
		&models.PeriodicTransfer{},
		&models.QuickTemplate{},
		&models.AppSetting{},
		&models.InterestHistory{},
		&models.Holding{},
		&models.PriceCache{},
		&models.DailyClose{},
		&models.HoldingDaily{},
		&models.AuditLog{},
		&models.Backup{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := seedProductTypes(db); err != nil {
		return fmt.Errorf("seed product types: %w", err)
	}
	return nil
}

var builtinProductTypes = []models.ProductType{
	{Name: "Interest", Slug: models.ProductTypeInterest, Icon: "💰"},
	{Name: "Deposit", Slug: "deposit", Icon: "🏦"},
	{Name: "Fund", Slug: "fund", Icon: "📈"},
}

func seedProductTypes(db *gorm.DB) error {
	for i := range builtinProductTypes {
		pt := builtinProductTypes[i]
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoNothing: true,
		}).Create(&pt).Error; err != nil {
			return err
		}
	}
	return nil
}
