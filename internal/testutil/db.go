// Package testutil provides an in-memory store for package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/Jezerjjv/saving-back/internal/database"
	"github.com/Jezerjjv/saving-back/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// NewDB opens a private in-memory sqlite database with all migrations applied.
// A single connection is used so that every goroutine shares the same memory
// database and write transactions are serialized.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", seq.Add(1))
	db, err := gorm.Open(sqlite.Open(database.SQLiteDSN(name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// User inserts a user and returns its id.
func User(t *testing.T, db *gorm.DB, username string) uint {
	t.Helper()
	u := models.User{Username: username, PasswordHash: "x"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

// Account inserts an account with the given opening balance.
func Account(t *testing.T, db *gorm.DB, userID uint, name, balance string) *models.Account {
	t.Helper()
	a := models.Account{
		UserID:      userID,
		Name:        name,
		Balance:     decimal.RequireFromString(balance),
		AccountType: models.AccountBank,
		Currency:    models.CurrencyEUR,
	}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	return &a
}

// Balance reloads an account balance.
func Balance(t *testing.T, db *gorm.DB, accountID uint) decimal.Decimal {
	t.Helper()
	var a models.Account
	if err := db.First(&a, accountID).Error; err != nil {
		t.Fatalf("load account %d: %v", accountID, err)
	}
	return a.Balance
}

// D parses a decimal literal.
func D(s string) decimal.Decimal { return decimal.RequireFromString(s) }
