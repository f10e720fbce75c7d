package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/feedbackhq/feedback/internal/config"
	"github.com/feedbackhq/feedback/internal/database"
	"github.com/feedbackhq/feedback/internal/handlers"
	"github.com/feedbackhq/feedback/internal/jobs"
	"github.com/feedbackhq/feedback/internal/llm"
	"github.com/feedbackhq/feedback/internal/lock"
	"github.com/feedbackhq/feedback/internal/logger"
	"github.com/feedbackhq/feedback/internal/middleware"
	"github.com/feedbackhq/feedback/internal/notify"
	"github.com/feedbackhq/feedback/internal/services"
	slackutil "github.com/feedbackhq/feedback/internal/slack"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		logger.L().Error("Server exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists (ignore error if file doesn't exist)
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	defer logger.Sync()
	if envErr != nil {
		log.Debug("No .env file loaded", zap.Error(envErr))
	}

	log.Info("Starting feedback merge service", zap.String("version", handlers.Version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	if err := database.Connect(cfg.DatabaseURL, database.ParseLogLevel(cfg.DBLogLevel)); err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Warn("Failed to close database", zap.Error(err))
		}
	}()
	db := database.GetDB()

	if err := database.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	if _, err := database.SeedMergeSettings(db, cfg.MergeSweepIntervalMinutes); err != nil {
		return fmt.Errorf("failed to seed merge settings: %w", err)
	}
	if err := database.InitializeDefaults(db, database.LLMSeed{
		Provider: database.LLMProvider(cfg.LLMProvider),
		APIKey:   cfg.LLMAPIKey,
		Model:    cfg.LLMModel,
		BaseURL:  cfg.LLMBaseURL,
	}); err != nil {
		return fmt.Errorf("failed to initialize database defaults: %w", err)
	}
	if !database.IsPostgres(db) {
		log.Warn("Candidate search needs PostgreSQL with pgvector; merge checks will fail on this database",
			zap.String("dialect", db.Dialector.Name()))
	}

	// LLM client, rebuilt whenever the active llm_settings row changes
	llmSource := llm.NewSettingsSource(db, llm.ClientConfig{
		RequestsPerSecond: cfg.LLMRequestsPerSecond,
		MaxConcurrent:     cfg.LLMMaxConcurrent,
		Retry:             llm.DefaultRetryConfig(),
	})

	// Notifications: websocket inbox always, Slack when configured
	stream := handlers.NewSuggestionStream(cfg.AllowedOrigins...)
	notifiers := notify.Multi{stream}
	if cfg.SlackEnabled() {
		notifiers = append(notifiers, slackutil.NewNotifier(cfg.SlackBotToken, cfg.SlackChannel))
		log.Info("Slack notifications enabled", zap.String("channel", cfg.SlackChannel))
	} else {
		log.Info("Slack notifications disabled")
	}

	// Services
	suggestions := services.NewMergeSuggestionService(db, services.NewGormPostMerger(db), notifiers)
	checker := services.NewMergeCheckService(db,
		services.NewMergeSearchService(db, database.NewPostgresCandidateStore(db)),
		services.NewMergeAssessor(llmSource),
		suggestions)

	// Optional cluster-wide sweep lock
	var locker lock.Locker
	if cfg.RedisURL != "" {
		redisLocker, err := lock.NewRedisLockerFromURL(ctx, cfg.RedisURL, "feedback:")
		if err != nil {
			return err
		}
		defer redisLocker.Close()
		locker = redisLocker
		log.Info("Merge sweep lock backed by Redis")
	}

	sweep := jobs.NewMergeSweepJob(checker, suggestions, llmSource, locker)
	stopSweep := make(chan struct{})
	if cfg.MergeSweepEnabled {
		go sweep.Start(stopSweep)
		log.Info("Merge sweep scheduler started")
	} else {
		log.Info("Merge sweep scheduler disabled; sweeps run only on demand")
	}

	// HTTP
	jwtAuth := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:   cfg.AuthEnabled,
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		SkipPaths: handlers.PublicPaths,
	})
	if !cfg.AuthEnabled {
		log.Warn("JWT authentication is DISABLED; every request acts as the anonymous admin")
	}
	apiKeys := middleware.NewAuthMiddleware(&middleware.AuthConfig{
		APIKeys:   cfg.APIKeys,
		SkipPaths: handlers.PublicPaths,
	})
	log.Info("Service API keys loaded", zap.Int("count", apiKeys.KeyCount()))

	router := handlers.NewRouter(handlers.RouterConfig{
		API:            handlers.NewAPIHandler(db, suggestions, checker, sweep, stream),
		HTTP:           handlers.NewHTTPHandler(db),
		JWT:            jwtAuth,
		APIKeys:        apiKeys,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", zap.Int("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal, cleaning up...")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	close(stopSweep)
	stream.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down HTTP server", zap.Error(err))
	}

	log.Info("Shutdown complete")
	return nil
}
