package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/soko-pay/soko_ledger/internal/backfill"
	"github.com/soko-pay/soko_ledger/internal/config"
	"github.com/soko-pay/soko_ledger/internal/escrow"
	"github.com/soko-pay/soko_ledger/internal/ledger"
	"github.com/soko-pay/soko_ledger/internal/middleware"
	"github.com/soko-pay/soko_ledger/internal/notification"
	"github.com/soko-pay/soko_ledger/internal/reconciliation"
	"github.com/soko-pay/soko_ledger/internal/settlement"
	"github.com/soko-pay/soko_ledger/internal/withdrawal"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	Source backfill.OrderSource
}

// Services exposes the long-lived services the caller needs beyond HTTP
// wiring, such as the reconciliation timer target and the startup backfill.
type Services struct {
	Reconciler *reconciliation.Service
	Backfill   *backfill.Sync
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*Services, error) {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !isDev(d.Cfg.Env) {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Storage backends
	var (
		ledgerBackend  ledger.Ledger
		escrowStore    escrow.Store
		withdrawalRepo withdrawal.Repository
		reconcileRepo  reconciliation.Repository
	)
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
		escrowStore = escrow.NewPostgresStore(d.DB)
		withdrawalRepo = withdrawal.NewPostgresRepository(d.DB)
		reconcileRepo = reconciliation.NewPostgresRepository(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
		escrowStore = escrow.NewMemoryStore()
		withdrawalRepo = withdrawal.NewMemoryRepository()
		reconcileRepo = reconciliation.NewMemoryRepository()
	}

	// Services and handlers
	notifier := notification.NewLoggerNotifier(d.Logger)
	engine := settlement.NewEngine(ledgerBackend, escrowStore, notifier, d.Logger)
	withdrawalSvc := withdrawal.NewService(withdrawalRepo, engine, notifier, d.Logger)
	reconcileSvc := reconciliation.NewService(ledgerBackend, reconcileRepo, d.Logger)

	source := d.Source
	if source == nil {
		source = backfill.StaticSource{}
	}
	backfillSync := backfill.NewSync(source, engine, d.Logger)

	settlementHandler := settlement.NewHandler(engine)
	withdrawalHandler := withdrawal.NewHandler(withdrawalSvc)
	reconcileHandler := reconciliation.NewHandler(reconcileSvc)
	backfillHandler := backfill.NewHandler(backfillSync)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	var idem fiber.Handler
	if d.Cache != nil {
		idem = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	admin := middleware.AdminAuth(d.Cfg.AdminTokenHash)

	RegisterAccountRoutes(api, settlementHandler, idem)
	RegisterWithdrawalRoutes(api, withdrawalHandler, admin, idem)
	RegisterReconciliationRoutes(api, reconcileHandler, admin)
	RegisterBackfillRoutes(api, backfillHandler, admin, middleware.TriggerRateLimit(d.Cache, "backfill", 3))

	return &Services{Reconciler: reconcileSvc, Backfill: backfillSync}, nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
