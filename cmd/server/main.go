package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/turnout-tracker/internal/api"
	"github.com/hugh/turnout-tracker/internal/auth"
	"github.com/hugh/turnout-tracker/internal/database"
	"github.com/hugh/turnout-tracker/internal/tasks"
	"github.com/hugh/turnout-tracker/pkg/config"
	"github.com/hugh/turnout-tracker/pkg/crypto"
	"github.com/hugh/turnout-tracker/pkg/queue"
	"github.com/hugh/turnout-tracker/pkg/storage"
	"github.com/hugh/turnout-tracker/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting turnout tracker server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	if cfg.JWT.Secret == "change-me-in-production" && !cfg.Server.IsDevelopment() {
		logger.Error("JWT_SECRET must be set outside development")
		os.Exit(1)
	}

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	// Redis is optional: without it logout cannot revoke tokens and
	// imports only run synchronously.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, token revocation and background imports disabled", "error", err)
		redisClient.Close()
		redisClient = nil
	}
	cancelPing()

	var (
		revocations auth.RevocationStore = auth.NoopRevocationStore{}
		asynqClient *asynq.Client
		inspector   *asynq.Inspector
		enqueuer    tasks.Enqueuer
		taskLookup  tasks.TaskInspector
	)
	if redisClient != nil {
		revocations = auth.NewRedisRevocationStore(redisClient)
		asynqClient = queue.NewClient(&cfg.Redis)
		inspector = queue.NewInspector(&cfg.Redis)
		enqueuer, taskLookup = asynqClient, inspector
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService, revocations, logger)

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}
	if cfg.Encryption.Key == "" {
		logger.Warn("ENCRYPTION_KEY not set, using generated key - contact overrides will be unreadable after restart")
	}

	store, err := storage.New(context.Background(), &cfg.Storage)
	if err != nil {
		logger.Error("failed to initialise storage", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}
	var localUploads string
	if local, ok := store.(*storage.LocalStore); ok {
		localUploads = local.Root()
	}

	requestTimeout := cfg.Server.RequestTimeout()
	importTimeout := 10 * time.Minute

	router := api.NewRouter(api.RouterConfig{
		DB:              db,
		Redis:           redisClient,
		Logger:          logger,
		JWTService:      jwtService,
		AuthService:     authService,
		Encryptor:       encryptor,
		Store:           store,
		Enqueuer:        enqueuer,
		Inspector:       taskLookup,
		StagingDir:      cfg.Import.StagingDir,
		LocalUploadsDir: localUploads,
		PublicURL:       cfg.Server.PublicURL,
		DefaultAppName:  cfg.Branding.DefaultAppName,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		RateLimitReqs:   cfg.RateLimit.Requests,
		RateLimitSecs:   cfg.RateLimit.WindowSeconds,
		LoginRateLimit:  cfg.RateLimit.LoginRequests,
		RequestTimeout:  requestTimeout,
		ImportTimeout:   importTimeout,
		MaxUploadBytes:  cfg.Import.MaxUploadBytes(),
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      importTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	router.Close()

	if asynqClient != nil {
		asynqClient.Close()
	}
	if inspector != nil {
		inspector.Close()
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		closer.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}
	if err := database.Close(db); err != nil {
		logger.Warn("closing database", "error", err)
	}

	logger.Info("server stopped")
}
