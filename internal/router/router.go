package router

import (
	"github.com/Jezerjjv/saving-back/internal/backup"
	"github.com/Jezerjjv/saving-back/internal/config"
	"github.com/Jezerjjv/saving-back/internal/handler"
	"github.com/Jezerjjv/saving-back/internal/holdings"
	"github.com/Jezerjjv/saving-back/internal/interest"
	"github.com/Jezerjjv/saving-back/internal/ledger"
	"github.com/Jezerjjv/saving-back/internal/middleware"
	"github.com/Jezerjjv/saving-back/internal/models"
	"github.com/Jezerjjv/saving-back/internal/recurring"

	"github.com/gin-gonic/gin"
)

// Services are the domain components the API exposes.
type Services struct {
	Store     *ledger.Store
	Recurring *recurring.Engine
	Interest  *interest.Engine
	Holdings  *holdings.Service
	Backups   *backup.Service
}

// SetupRouter configures the gin engine and every API route.
func SetupRouter(cfg *config.Config, svc Services) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	db := svc.Store.DB()
	timeout := handler.Timeout(cfg.Server.RequestTimeout)

	api := r.Group("/api")
	api.GET("/health", handler.Health(db))

	authHandler := handler.NewAuthHandler(db, cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.ExpireHours, cfg.Security.BcryptCost)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(
		middleware.AuthMiddleware(cfg.JWT.Secret, cfg.JWT.Issuer, db),
		middleware.AuditMiddleware(db, cfg.Security.EncryptionKey),
	)

	protected.GET("/me", handler.GetMe)
	protected.POST("/profile", handler.UpdateProfile(db))
	protected.POST("/profile/password", handler.ChangePassword(db, cfg.Security.BcryptCost))
	protected.POST("/profile/delete", handler.DeleteAccount(db))

	lh := handler.NewLedgerHandler(svc.Store, timeout, cfg.App.PageSize)
	accounts := protected.Group("/accounts")
	accounts.GET("", lh.ListAccounts)
	accounts.POST("", lh.CreateAccount)
	accounts.GET("/:id", lh.GetAccount)
	accounts.PUT("/:id", lh.UpdateAccount)
	accounts.DELETE("/:id", lh.DeleteAccount)
	accounts.GET("/:id/products", lh.ListProducts)
	accounts.POST("/:id/products", lh.CreateProduct)
	accounts.PUT("/:id/products/:productId", lh.UpdateProduct)
	accounts.DELETE("/:id/products/:productId", lh.DeleteProduct)

	protected.GET("/product-types", lh.ListProductTypes)
	protected.POST("/product-types", lh.CreateProductType)
	protected.GET("/product-types/:id", lh.GetProductType)
	protected.PUT("/product-types/:id", lh.UpdateProductType)
	protected.DELETE("/product-types/:id", lh.DeleteProductType)

	protected.GET("/categories", lh.ListCategories)
	protected.POST("/categories", lh.CreateCategory)
	protected.PUT("/categories/:id", lh.UpdateCategory)
	protected.DELETE("/categories/:id", lh.DeleteCategory)

	txs := protected.Group("/transactions")
	txs.GET("", lh.ListTransactions)
	txs.POST("", lh.CreateTransaction)
	txs.GET("/export.csv", lh.ExportCSV)
	txs.GET("/export.xlsx", lh.ExportXLSX)
	txs.GET("/grouped", lh.GroupedTransactions)
	txs.GET("/monthly-summary", lh.YearStats)
	txs.GET("/daily-indicators", lh.DailyIndicators)
	txs.GET("/expenses-by-category", lh.TotalsByCategory(models.TypeExpense))
	txs.GET("/incomes-by-category", lh.TotalsByCategory(models.TypeIncome))
	txs.GET("/:id", lh.GetTransaction)
	txs.PUT("/:id", lh.UpdateTransaction)
	txs.DELETE("/:id", lh.DeleteTransaction)
	protected.GET("/stats/monthly", lh.MonthlyStats)

	quick := protected.Group("/quick-templates")
	quick.GET("", lh.ListQuickTemplates)
	quick.POST("", lh.CreateQuickTemplate)
	quick.GET("/:id", lh.GetQuickTemplate)
	quick.PUT("/:id", lh.UpdateQuickTemplate)
	quick.DELETE("/:id", lh.DeleteQuickTemplate)

	protected.GET("/transfers", lh.ListTransfers)
	protected.POST("/transfers", lh.CreateTransfer)
	protected.GET("/transfers/:id", lh.GetTransfer)
	protected.DELETE("/transfers/:id", lh.DeleteTransfer)

	protected.GET("/settings", lh.GetSettings)
	protected.PUT("/settings", lh.UpdateSettings)

	rh := handler.NewRecurringHandler(svc.Recurring, timeout)
	for path, kind := range map[string]recurring.Kind{
		"/fixed-incomes":  recurring.Income,
		"/fixed-expenses": recurring.Expense,
	} {
		g := protected.Group(path)
		g.GET("", rh.ListFixed(kind))
		g.POST("", rh.CreateFixed(kind))
		g.POST("/apply-month", rh.ApplyFixedMonth(kind))
		g.GET("/:id", rh.GetFixed(kind))
		g.PUT("/:id", rh.UpdateFixed(kind))
		g.DELETE("/:id", rh.DeleteFixed(kind))
		g.POST("/:id/apply", rh.ApplyFixedOne(kind))
	}
	periodic := protected.Group("/periodic-transfers")
	periodic.GET("", rh.ListPeriodic)
	periodic.POST("", rh.CreatePeriodic)
	periodic.POST("/apply-month", rh.ApplyPeriodicMonth)
	periodic.GET("/:id", rh.GetPeriodic)
	periodic.PUT("/:id", rh.UpdatePeriodic)
	periodic.DELETE("/:id", rh.DeletePeriodic)
	periodic.POST("/:id/apply", rh.ApplyPeriodicOne)

	ih := handler.NewInterestHandler(svc.Interest, timeout)
	protected.POST("/interest/apply", ih.Apply)
	protected.GET("/interest/eligible", ih.Eligible)
	protected.GET("/interest-history", ih.History)

	for path, class := range map[string]string{
		"/crypto": models.AssetCrypto,
		"/stocks": models.AssetStock,
	} {
		hh := handler.NewHoldingsHandler(svc.Holdings, class, timeout)
		g := protected.Group(path)
		g.GET("/holdings", hh.List)
		g.GET("/holdings/eligible", hh.Eligible)
		g.POST("/holdings", hh.Create)
		g.GET("/holdings/:id", hh.Get)
		g.PUT("/holdings/:id", hh.Update)
		g.DELETE("/holdings/:id", hh.Delete)
		g.GET("/holdings/:id/daily-history", hh.HoldingHistory)
		g.GET("/prices", hh.Prices)
		g.GET("/daily-close", hh.CloseHistory)
		g.POST("/daily-close", hh.RunClose)
	}

	bh := handler.NewBackupHandler(svc.Backups, timeout)
	protected.POST("/backups", bh.CreateBackup)
	protected.GET("/backups", bh.ListBackups)
	protected.GET("/backups/:id/download", bh.DownloadBackup)
	protected.POST("/backups/:id/restore", bh.RestoreBackup)
	protected.DELETE("/backups/:id", bh.DeleteBackup)

	logHandler := handler.NewLogHandler(db, cfg.Security.EncryptionKey)
	protected.GET("/logs", logHandler.ListLogs)

	return r
}
