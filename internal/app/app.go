// Package app wires the store, the engines and the scheduler from the
// configuration. The server and ledgerctl share it.
package app

import (
	"fmt"

	"github.com/Jezerjjv/saving-back/internal/backup"
	"github.com/Jezerjjv/saving-back/internal/clock"
	"github.com/Jezerjjv/saving-back/internal/config"
	"github.com/Jezerjjv/saving-back/internal/database"
	"github.com/Jezerjjv/saving-back/internal/holdings"
	"github.com/Jezerjjv/saving-back/internal/interest"
	"github.com/Jezerjjv/saving-back/internal/ledger"
	"github.com/Jezerjjv/saving-back/internal/recurring"
	"github.com/Jezerjjv/saving-back/internal/router"
	"github.com/Jezerjjv/saving-back/internal/scheduler"

	"gorm.io/gorm"
)

type App struct {
	Config    *config.Config
	DB        *gorm.DB
	Store     *ledger.Store
	Recurring *recurring.Engine
	Interest  *interest.Engine
	Holdings  *holdings.Service
	Backups   *backup.Service
	Scheduler *scheduler.Scheduler
}

// New opens and migrates the configured database, then builds the app.
func New(cfg *config.Config) (*App, error) {
	db, err := database.Init(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return Build(cfg, db, clock.NewReal()), nil
}

// Build assembles the components over an open database.
func Build(cfg *config.Config, db *gorm.DB, clk clock.Clock) *App {
	loc := cfg.Scheduler.Location()
	store := ledger.NewStore(db, clk)
	a := &App{
		Config:    cfg,
		DB:        db,
		Store:     store,
		Recurring: recurring.NewEngine(store, recurring.DuplicateKey(cfg.Recurring.DuplicateKey)),
		Interest:  interest.NewEngine(store),
		Holdings: holdings.NewService(store,
			holdings.NewCoinGecko(cfg.Prices.CoinGeckoBase, cfg.Prices.Timeout),
			holdings.NewYahoo(cfg.Prices.YahooBase, cfg.Prices.Timeout),
			holdings.WithLocation(loc),
			holdings.WithMinInterval(cfg.Prices.MinInterval),
		),
		Backups: backup.NewService(store, cfg.Security.EncryptionKey, cfg.Backup.Dir),
	}
	a.Scheduler = scheduler.New(store, a.Recurring, a.Interest, a.Holdings, scheduler.Options{
		Interval:    cfg.Scheduler.Interval,
		Concurrency: cfg.Scheduler.Concurrency,
		CloseWindow: cfg.Scheduler.CloseWindow,
		Location:    loc,
		Clock:       clk,
	})
	return a
}

func (a *App) Services() router.Services {
	return router.Services{
		Store:     a.Store,
		Recurring: a.Recurring,
		Interest:  a.Interest,
		Holdings:  a.Holdings,
		Backups:   a.Backups,
	}
}
