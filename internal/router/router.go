package router

import (
	"time"

	"github.com/ethan0sc4r/gestione-vinicola/internal/config"
	"github.com/ethan0sc4r/gestione-vinicola/internal/handler"
	"github.com/ethan0sc4r/gestione-vinicola/internal/middleware"
	"github.com/ethan0sc4r/gestione-vinicola/internal/repository"
	"github.com/ethan0sc4r/gestione-vinicola/internal/service"
	"github.com/ethan0sc4r/gestione-vinicola/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are built in the composition root because the scanner and the cron
// share the ledger with the HTTP layer. Scanner is nil when the reader is off.
type Deps struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Ledger  *service.Ledger
	Audit   *worker.AuditChannel
	Scanner handler.ScanSource
	Limiter *middleware.RateLimiter
}

// New wires handlers and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	limiter := d.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(1000, time.Minute)
	}

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(limiter.Middleware())

	// ── Handlers ─────────────────────────────────────────────────────────────
	ledgerH := handler.NewLedgerHandler(d.Ledger)
	accountsH := handler.NewAccountsHandler(d.Ledger)
	registerH := handler.NewRegisterHandler(d.Ledger)
	integrityH := handler.NewIntegrityHandler(d.Ledger, repository.NewIntegrityIncidentRepository(d.DB))
	scannerH := handler.NewScannerHandler(d.Scanner, d.Ledger, cfg.SerialPort)
	productsH := handler.NewProductsHandler(repository.NewProductRepository(d.DB), d.Redis)
	audit := d.Audit
	if audit == nil {
		audit = worker.NewAuditChannel(d.Redis, nil, "")
	}
	alertsH := handler.NewAlertsHandler(d.Redis, audit)

	// ── Routes ───────────────────────────────────────────────────────────────

	r.GET("/health", handler.Health(d.DB, d.Redis, d.Scanner))

	anyOperator := middleware.RequireRole(middleware.RoleOperator, middleware.RoleAdmin)
	adminOnly := middleware.RequireRole(middleware.RoleAdmin)

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		v1.GET("/products", anyOperator, productsH.List)

		accounts := v1.Group("/accounts")
		{
			accounts.GET("/lookup/:code", anyOperator, ledgerH.Lookup)
			accounts.POST("/:id/credit", anyOperator, ledgerH.Credit)
			accounts.POST("/:id/debit", anyOperator, ledgerH.Debit)
			accounts.GET("/:id/transactions", anyOperator, ledgerH.History)
			accounts.GET("/:id/stats", anyOperator, ledgerH.Stats)

			accounts.POST("/:id/adjust", adminOnly, ledgerH.Adjust)
			accounts.GET("/:id/reconcile", adminOnly, ledgerH.Reconcile)
			accounts.POST("", adminOnly, accountsH.Create)
			accounts.PUT("/:id/limit", adminOnly, accountsH.SetLimit)
			accounts.DELETE("/:id", adminOnly, accountsH.Delete)
		}

		v1.POST("/sales", anyOperator, ledgerH.CashSale)
		v1.POST("/transactions/:id/cancel", adminOnly, ledgerH.Cancel)
		v1.GET("/stats", adminOnly, ledgerH.SystemStats)
		v1.GET("/reports/daily", adminOnly, ledgerH.DailyReport)

		register := v1.Group("/register")
		{
			register.GET("", anyOperator, registerH.Get)
			register.POST("/withdraw", adminOnly, registerH.Withdraw)
		}

		settings := v1.Group("/settings", adminOnly)
		{
			settings.GET("/credit-limit", accountsH.GetGlobalLimit)
			settings.PUT("/credit-limit", accountsH.SetGlobalLimit)
		}

		integrity := v1.Group("/integrity", adminOnly)
		{
			integrity.POST("/verify", integrityH.Verify)
			integrity.POST("/reset", integrityH.Reset)
			integrity.GET("/incidents", integrityH.Incidents)
			integrity.GET("/audit", alertsH.Feed)
			integrity.GET("/alerts/dead", alertsH.DeadLetters)
			integrity.POST("/alerts/replay", alertsH.Replay)
		}

		sc := v1.Group("/scanner", anyOperator)
		{
			sc.GET("/latest", scannerH.Latest)
			sc.GET("/status", scannerH.Status)
		}
	}

	return r
}
