package container

import (
	"context"
	"fmt"
	"time"

	"library-lending/internal/config"
	infraCache "library-lending/internal/infrastructure/cache"
	"library-lending/internal/infrastructure/database"
	"library-lending/internal/infrastructure/queue"
	"library-lending/internal/shared/middleware"
	"library-lending/pkg/cache"

	catalogRepo "library-lending/internal/domains/catalog/repository"
	inventoryHandler "library-lending/internal/domains/inventory/handler"
	inventoryRepo "library-lending/internal/domains/inventory/repository"
	inventoryService "library-lending/internal/domains/inventory/service"
	lendingHandler "library-lending/internal/domains/lending/handler"
	lendingJob "library-lending/internal/domains/lending/job"
	lendingRepo "library-lending/internal/domains/lending/repository"
	lendingService "library-lending/internal/domains/lending/service"
	memberRepo "library-lending/internal/domains/member/repository"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container owns every long-lived dependency. Nothing here is a package-level singleton:
// cmd/api and cmd/worker each build one and Cleanup releases it.
type Container struct {
	// Infrastructure
	Config      *config.Config
	DB          *database.PostgresDB
	Redis       *infraCache.RedisClient
	Cache       cache.Cache
	AsynqClient *asynq.Client
	Queue       queue.Enqueuer

	// Repositories
	CatalogRepo   catalogRepo.RepositoryInterface
	MemberRepo    memberRepo.RepositoryInterface
	InventoryRepo inventoryRepo.RepositoryInterface
	LoanRepo      lendingRepo.RepositoryInterface

	// Services
	InventoryService *inventoryService.Controller
	LeakReporter     *lendingJob.QueueLeakReporter
	LendingService   *lendingService.Engine

	// HTTP
	InventoryHandler *inventoryHandler.Handler
	LoanHandler      *lendingHandler.LoanHandler
	RateLimiter      *middleware.IPRateLimiter

	stopMonitor context.CancelFunc
}

// ========================================
// CONSTRUCTOR: BUILD CONTAINER
// ========================================

// NewContainer builds the dependency graph in order:
// config -> database -> redis/cache -> queue client -> repositories -> services -> handlers.
func NewContainer() (*Container, error) {
	log.Info().Msg("initializing container")
	c := &Container{}

	// STEP 1: CONFIGURATION
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	log.Info().Str("env", cfg.App.Environment).Msg("config loaded")

	// STEP 2: DATABASE
	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}

	db := database.NewPostgresDB(dbConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.HealthCheck(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database health check failed: %w", err)
	}
	c.DB = db

	monitorCtx, stop := context.WithCancel(context.Background())
	c.stopMonitor = stop
	go db.MonitorPoolHealth(monitorCtx, time.Minute)

	// STEP 3: CACHE
	// Redis only backs the availability snapshot, so an outage degrades to a process-local cache.
	c.Redis = infraCache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	if err := c.Redis.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, using in-memory snapshot cache")
		c.Cache = cache.NewMemoryCache()
	} else {
		c.Cache = infraCache.NewRedisCache(c.Redis.Client)
	}

	// STEP 4: TASK QUEUE CLIENT
	c.AsynqClient = queue.NewClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	c.Queue = c.AsynqClient

	// STEP 5-7
	c.initRepositories()
	c.initServices()
	c.initHandlers()

	log.Info().Msg("container initialized")
	return c, nil
}

// ========================================
// PRIVATE INITIALIZATION METHODS
// ========================================

func (c *Container) initRepositories() {
	pool := c.DB.Pool

	c.CatalogRepo = catalogRepo.NewRepository(pool)
	c.MemberRepo = memberRepo.NewRepository(pool)
	c.InventoryRepo = inventoryRepo.NewRepository(pool)
	c.LoanRepo = lendingRepo.NewRepository(pool)
}

func (c *Container) initServices() {
	lending := c.Config.Lending

	c.InventoryService = inventoryService.NewController(
		c.InventoryRepo,
		c.Cache,
		c.Queue,
		lending.StockSnapshotTTL,
		nil,
	)

	c.LeakReporter = lendingJob.NewLeakReporter(c.Queue, lending.ReconcileMaxRetry, nil)

	c.LendingService = lendingService.NewEngine(
		c.LoanRepo,
		c.InventoryService,
		c.MemberRepo,
		c.CatalogRepo,
		c.LeakReporter,
		nil,
	)
}

func (c *Container) initHandlers() {
	c.InventoryHandler = inventoryHandler.NewHandler(c.InventoryService)
	c.LoanHandler = lendingHandler.NewLoanHandler(c.LendingService, c.Config.Lending, nil)

	rl := c.Config.RateLimit
	c.RateLimiter = middleware.NewIPRateLimiter(middleware.RateLimitConfig{
		PerMinute:    rl.PerMinute,
		Burst:        rl.Burst,
		MaxClients:   rl.MaxClients,
		ClientExpiry: rl.ClientExpiry,
	})
}

// ========================================
// CLEANUP
// ========================================

func (c *Container) Cleanup() {
	log.Info().Msg("cleaning up container resources")

	if c.stopMonitor != nil {
		c.stopMonitor()
	}

	if c.AsynqClient != nil {
		if err := c.AsynqClient.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close asynq client")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis")
		}
	}

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close database")
		}
	}

	log.Info().Msg("container cleanup completed")
}
