package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/casino-ledger/internal/config"
	"github.com/fairyhunter13/casino-ledger/internal/handler"
	"github.com/fairyhunter13/casino-ledger/internal/lock"
	"github.com/fairyhunter13/casino-ledger/internal/middleware"
	"github.com/fairyhunter13/casino-ledger/internal/ratelimit"
	"github.com/fairyhunter13/casino-ledger/internal/repository"
	"github.com/fairyhunter13/casino-ledger/internal/service"
	appvalidator "github.com/fairyhunter13/casino-ledger/internal/validator"
	"github.com/fairyhunter13/casino-ledger/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize zerolog based on configuration
	initLogger(cfg)

	// Create context for startup
	ctx := context.Background()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), cfg.DB.MaxRetries)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if cfg.DB.Migrate {
		if err := database.Migrate(pool); err != nil {
			log.Fatal().Err(err).Msg("failed to run database migrations")
		}
	}

	// Account locks: Redis when several instances share the database,
	// otherwise in-process.
	var (
		locker      service.Locker = lock.NewKeyedMutex()
		rdb         *redis.Client
		betLimiter  *ratelimit.Limiter
		cachePinger handler.Pinger
	)
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect to redis")
		}
		locker = lock.NewRedisLocker(rdb, cfg.Redis.LockTTL)
		betLimiter = ratelimit.New(rdb, "bets", cfg.RateLimit.Bets, cfg.RateLimit.Window)
		cachePinger = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis connected, using distributed account locks")
	}

	if cfg.Auth.UsesDevSecret() {
		log.Warn().Msg("AUTH_JWT_SECRET not set, using development secret")
	}

	// Initialize ledger components (layered architecture)
	accountRepo := repository.NewAccountRepository(pool)
	transactionRepo := repository.NewTransactionRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)

	ledgerService := service.NewLedgerService(pool, accountRepo, transactionRepo, couponRepo, locker, service.Options{
		StartingBalance: cfg.Ledger.StartingBalance,
		StorageTimeout:  cfg.Ledger.StorageTimeout,
		MaxRetries:      cfg.Ledger.MaxRetries,
	})
	couponService := service.NewCouponService(couponRepo)

	if cfg.Ledger.SeedCoupons {
		seedCtx, cancel := context.WithTimeout(ctx, cfg.Ledger.StorageTimeout)
		err := couponService.SeedDefaults(seedCtx)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to seed default coupons")
		}
	}

	// Initialize validator
	validate := appvalidator.New()

	accountHandler := handler.NewAccountHandler(ledgerService, validate)
	gameHandler := handler.NewGameHandler(ledgerService, validate)
	transactionHandler := handler.NewTransactionHandler(ledgerService)
	couponHandler := handler.NewCouponHandler(couponService, ledgerService, validate)
	healthHandler := handler.NewHealthHandler(pool, cachePinger)

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Casino Ledger",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit (explicit, prevents large payloads)
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/health", healthHandler.Check)

	auth := middleware.NewAuth(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	authn := auth.Authenticate()
	betGuards := []fiber.Handler{authn}
	if betLimiter != nil {
		betGuards = append(betGuards, middleware.RateLimit(betLimiter))
	}

	api := app.Group("/api")

	// Public routes
	api.Post("/accounts", accountHandler.Register)
	api.Get("/stats/global", accountHandler.GlobalStats)
	api.Get("/coupons", couponHandler.List)

	// Account routes
	api.Get("/me", authn, accountHandler.Me)
	api.Get("/me/balance", authn, accountHandler.Balance)
	api.Post("/me/reset", authn, accountHandler.Reset)
	api.Post("/games/outcome", append(betGuards, gameHandler.ApplyOutcome)...)
	api.Post("/coupons/redeem", authn, couponHandler.Redeem)
	api.Get("/transactions", authn, transactionHandler.History)
	api.Get("/transactions/stats", authn, transactionHandler.Stats)

	// Admin routes
	admin := api.Group("/admin", authn, middleware.RequireAdmin())
	admin.Post("/accounts/:id/deposit", accountHandler.Deposit)
	admin.Post("/coupons", couponHandler.Create)
	admin.Post("/coupons/:code/deactivate", couponHandler.Deactivate)

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis client")
		}
	}

	// Close database pool AFTER server shutdown (even if shutdown timed out)
	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("database connections closed")
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
