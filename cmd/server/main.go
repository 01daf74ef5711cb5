package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"user_accounts/internal/config"
	"user_accounts/internal/handler"
	"user_accounts/internal/jobs"
	"user_accounts/internal/logging"
	"user_accounts/internal/middleware"
	"user_accounts/internal/repository"
	"user_accounts/internal/service"
	"user_accounts/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info", false)
		bootLogger.Fatal().Err(err).Msg("Failed to load config")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database Connection ---
	dbPool, err := config.ConnectDB(ctx, cfg.DB, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// --- Migrations ---
	if err := config.Migrate(ctx, dbPool, logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate database")
	}

	// --- Event Queue ---
	var (
		rdb      *redis.Client
		worker   *jobs.Worker
		notifier service.RegistrationNotifier = jobs.LogNotifier{Logger: logger}
	)
	if cfg.QueueRedisURL != "" {
		rdb, err = config.ConnectRedis(ctx, cfg.QueueRedisURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer rdb.Close()

		notifier = jobs.NewNotifier(rdb, logger)
		worker = jobs.NewWorker(rdb, cfg.WorkerConcurrency, logger)
		if err := worker.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start worker")
		}
	} else {
		logger.Info().Msg("QUEUE_REDIS_URL not set, registered events are only logged")
	}

	// --- Initialize Utilities ---
	hasher := utils.NewPasswordHasher(cfg.BcryptCost)
	if err := handler.RegisterValidators(cfg.Password.Policy()); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register validators")
	}

	// --- Initialize Repositories ---
	userRepo := repository.NewUserRepository(dbPool)
	tokenRepo := repository.NewTokenRepository(dbPool)

	// --- Initialize Services ---
	tokenService := service.NewTokenService(tokenRepo, userRepo, cfg.StoreTimeout, logger)
	authService := service.NewAuthService(userRepo, tokenService, hasher, notifier, cfg.StoreTimeout, logger)

	// --- Initialize Handlers ---
	authHandler := handler.NewAuthHandler(authService)

	// --- Setup Gin Router ---
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// --- Initialize Middlewares ---
	tokenAuthMW := middleware.TokenAuthMiddleware(tokenService, logger)
	usersScopeMW := middleware.UsersScopeMiddleware()

	// --- Register Routes ---
	apiGroup := router.Group("/api/v1") // Base path for API
	authHandler.RegisterAuthRoutes(apiGroup, tokenAuthMW, usersScopeMW)
	router.GET("/health", healthHandler(dbPool, rdb, cfg.StoreTimeout))

	// --- Start Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.ServerPort).Str("mode", cfg.GinMode).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if worker != nil {
		worker.Shutdown()
	}

	logger.Info().Msg("Server exiting")
}

func healthHandler(dbPool *pgxpool.Pool, rdb *redis.Client, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		status := gin.H{"status": "ok", "db": "healthy"}
		code := http.StatusOK
		if err := dbPool.Ping(ctx); err != nil {
			zerolog.Ctx(c.Request.Context()).Warn().Err(err).Msg("database health check failed")
			status["status"], status["db"] = "error", "unhealthy"
			code = http.StatusServiceUnavailable
		}
		if rdb != nil {
			status["queue"] = "healthy"
			if err := rdb.Ping(ctx).Err(); err != nil {
				zerolog.Ctx(c.Request.Context()).Warn().Err(err).Msg("redis health check failed")
				status["status"], status["queue"] = "error", "unhealthy"
				code = http.StatusServiceUnavailable
			}
		}
		c.JSON(code, status)
	}
}
