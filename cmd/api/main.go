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

	"github.com/honesta/lostfound-api/internal/auth"
	"github.com/honesta/lostfound-api/internal/cloudsync"
	"github.com/honesta/lostfound-api/internal/config"
	"github.com/honesta/lostfound-api/internal/database"
	"github.com/honesta/lostfound-api/internal/http/handler"
	"github.com/honesta/lostfound-api/internal/http/middleware"
	"github.com/honesta/lostfound-api/internal/http/router"
	"github.com/honesta/lostfound-api/internal/imaging"
	"github.com/honesta/lostfound-api/internal/jobs"
	"github.com/honesta/lostfound-api/internal/logger"
	"github.com/honesta/lostfound-api/internal/repository"
	"github.com/honesta/lostfound-api/internal/service"
	"github.com/honesta/lostfound-api/internal/storage"
	"github.com/honesta/lostfound-api/internal/verifier"
	"go.uber.org/zap"
)

// @title Honesta Lost & Found API
// @version 1.0
// @description Campus lost-and-found: report found items, prove ownership, chat with the finder

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	// In development secrets come from the environment, elsewhere from Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	// Question generation and answer matching
	var generator verifier.QuestionGenerator
	var matcher verifier.AnswerMatcher = verifier.NewFuzzyMatcher()
	if cfg.AI.Enabled {
		gemini, err := verifier.NewGemini(ctx, &cfg.AI, log)
		if err != nil {
			log.Warn("Gemini unavailable, using fallback challenge and fuzzy matching", zap.Error(err))
		} else {
			generator = gemini
			matcher = gemini
			log.Info("Gemini verifier enabled", zap.String("model", cfg.AI.Model))
		}
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	itemRepo := repository.NewItemRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	claimRepo := repository.NewClaimAttemptRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Services
	tokens := auth.NewTokenManager(&cfg.Auth)
	notificationService := service.NewNotificationService(notificationRepo, log)
	userService := service.NewUserService(userRepo, auth.NewCampusPolicy(&cfg.Auth), tokens, log)
	itemService := service.NewItemService(
		itemRepo,
		claimRepo,
		userRepo,
		fileStorage,
		verifier.NewFallbackGenerator(generator, log),
		notificationService,
		imaging.Options{
			PublicMaxDim:   cfg.Images.PublicMaxDim,
			OriginalMaxDim: cfg.Images.OriginalMaxDim,
			JPEGQuality:    cfg.Images.JPEGQuality,
		},
		log,
	)
	claimService := service.NewClaimService(
		itemRepo,
		claimRepo,
		verifier.NewRejectingMatcher(matcher, log),
		notificationService,
		&cfg.Claims,
		log,
	)
	messageService := service.NewMessageService(itemRepo, claimRepo, messageRepo, notificationService, log)

	// Middleware
	authMiddleware := auth.NewMiddleware(tokens, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Handlers
	rt := router.NewRouter(
		cfg,
		log,
		authMiddleware,
		rateLimiter,
		handler.NewHealthHandler(db, log),
		handler.NewAuthHandler(userService, log),
		handler.NewItemHandler(itemService, cfg.Images.MaxUploadBytes(), log),
		handler.NewClaimHandler(claimService, log),
		handler.NewMessageHandler(messageService, log),
		handler.NewNotificationHandler(notificationService, log),
	)

	// Background jobs
	scheduler := jobs.NewScheduler(log)

	if err := jobs.RegisterClaimCleanupJob(
		scheduler,
		claimService,
		log,
		cfg.Claims.CleanupCron,
		time.Minute,
	); err != nil {
		log.Error("Failed to register claim cleanup job", zap.Error(err))
	}

	if cfg.Mirror.Enabled {
		if err := setupMirror(ctx, cfg, log, scheduler, userRepo, itemRepo, messageRepo, fileStorage); err != nil {
			log.Warn("Legacy mirror disabled", zap.Error(err))
		}
	} else {
		log.Info("Legacy mirror not configured, skipping")
	}

	scheduler.Start()
	log.Info("Scheduler started", zap.Strings("jobs", scheduler.JobNames()))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		stopped := scheduler.Stop()
		<-stopped.Done()
		log.Info("Scheduler stopped")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Warn("Error closing database connection", zap.Error(err))
			}
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}

// setupMirror optionally imports the legacy document and schedules periodic exports
func setupMirror(
	ctx context.Context,
	cfg *config.Config,
	log *zap.Logger,
	scheduler *jobs.Scheduler,
	userRepo *repository.UserRepository,
	itemRepo *repository.ItemRepository,
	messageRepo *repository.MessageRepository,
	fileStorage storage.Storage,
) error {
	client, err := cloudsync.NewClient(&cfg.Mirror, log)
	if err != nil {
		return err
	}
	mirror := cloudsync.NewMirror(client, userRepo, itemRepo, messageRepo, fileStorage, log)

	if cfg.Mirror.ImportOnStartup {
		importCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		stats, err := mirror.Import(importCtx)
		cancel()
		if err != nil {
			log.Warn("Legacy import failed", zap.Error(err))
		} else {
			log.Info("Legacy import finished",
				zap.Int("users_imported", stats.UsersImported),
				zap.Int("items_imported", stats.ItemsImported),
				zap.Int("messages_imported", stats.MessagesImported),
			)
		}
	}

	return jobs.RegisterMirrorExportJob(scheduler, mirror, log, cfg.Mirror.ExportCron, cfg.Mirror.TimeoutDuration()*2)
}
