// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"lotkeeper/internal/domain/batch"
	"lotkeeper/internal/domain/events"
	"lotkeeper/internal/domain/fefo"
	"lotkeeper/internal/domain/inventory"
	"lotkeeper/internal/domain/ledger"
	"lotkeeper/internal/domain/location"
	"lotkeeper/internal/domain/movement"
	"lotkeeper/internal/infrastructure/http/v1/handlers"
	"lotkeeper/internal/infrastructure/http/v1/middleware"
	"lotkeeper/internal/infrastructure/storage/postgres"
	"lotkeeper/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool is the database connection pool (health checks read its stats).
	Pool *postgres.Pool

	// TxManager runs every mutating operation in a transaction.
	TxManager *postgres.TxManager

	// Logger for request logging.
	Logger *logger.Logger

	// TokenValidator for JWT validation.
	TokenValidator middleware.TokenValidator

	// Publisher writes inventory change events. Defaults to the
	// transactional outbox when nil.
	Publisher events.Publisher
}

// Services bundles the wired domain layer so the worker and seed commands can
// reuse the exact object graph the HTTP API runs on.
type Services struct {
	Batches   *batch.Service
	Ledgers   *ledger.Service
	Inventory *inventory.Service
	Locations *location.Service
	Fefo      *fefo.Service
	Movements movement.Repository
}

// BuildServices wires repositories and domain services over one TxManager.
func BuildServices(txManager *postgres.TxManager, publisher events.Publisher) Services {
	if publisher == nil {
		publisher = postgres.NewOutboxPublisher(txManager)
	}

	movementRepo := postgres.NewMovementRepo(txManager)
	ledgerRepo := postgres.NewLedgerRepo(txManager)
	locationRepo := postgres.NewLocationRepo(txManager)
	batchRepo := postgres.NewBatchRepo(txManager)
	inventoryRepo := postgres.NewInventoryRepo(txManager)

	locationService := location.NewService(locationRepo, ledgerRepo, txManager)
	inventoryService := inventory.NewService(inventoryRepo, ledgerRepo, txManager)
	ledgerService := ledger.NewService(
		ledgerRepo, movementRepo, locationService, inventoryService, publisher, txManager,
	)
	codes := postgres.NewSequenceNumerator(txManager)
	batchService := batch.NewService(batchRepo, ledgerService, codes, txManager)
	fefoService := fefo.NewService(batchRepo)

	return Services{
		Batches:   batchService,
		Ledgers:   ledgerService,
		Inventory: inventoryService,
		Locations: locationService,
		Fefo:      fefoService,
		Movements: movementRepo,
	}
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	services := BuildServices(cfg.TxManager, cfg.Publisher)

	// API v1, JWT protected
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.TokenValidator))

	registerBatchRoutes(v1, services)
	registerInventoryRoutes(v1, services)
	registerLocationRoutes(v1, services)
	registerMovementRoutes(v1, services)

	return router
}

// registerBatchRoutes registers batch lifecycle, stock operation and FEFO
// selection endpoints.
func registerBatchRoutes(rg *gin.RouterGroup, s Services) {
	baseHandler := handlers.NewBaseHandler()

	batchHandler := handlers.NewBatchHandler(baseHandler, s.Batches, s.Fefo)
	batchHandler.RegisterRoutes(rg.Group("/batches"))

	stockHandler := handlers.NewStockHandler(baseHandler, s.Ledgers)
	stockHandler.RegisterRoutes(rg.Group("/batches/:id/stock"))

	// Storefront read: which batch does a sale of this product draw from.
	rg.GET("/products/:productId/sale-batch", batchHandler.SaleBatch)
}

// registerInventoryRoutes registers aggregate inventory endpoints.
func registerInventoryRoutes(rg *gin.RouterGroup, s Services) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewInventoryHandler(baseHandler, s.Inventory, s.Ledgers)
	handler.RegisterRoutes(rg.Group("/inventory"))
}

// registerLocationRoutes registers storage location endpoints.
func registerLocationRoutes(rg *gin.RouterGroup, s Services) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewLocationHandler(baseHandler, s.Locations)
	handler.RegisterRoutes(rg.Group("/locations"))
}

// registerMovementRoutes registers audit log and refund endpoints.
func registerMovementRoutes(rg *gin.RouterGroup, s Services) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewMovementHandler(baseHandler, s.Movements, s.Ledgers)
	handler.RegisterRoutes(rg.Group("/movements"))
}
