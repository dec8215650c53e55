package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"answersheet/internal/auth"
	"answersheet/internal/config"
	"answersheet/internal/logger"
	"answersheet/internal/repository/sqlstore"
	"answersheet/internal/route"
	"answersheet/internal/service"
	"answersheet/internal/service/ai"
	"answersheet/internal/service/lock"
	"answersheet/internal/service/websocket"
	"answersheet/internal/storage"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlstore.DB
	netModel   *ai.NetModel
	redisLock  *lock.RedisLocker
	hubService *websocket.HubService
	manager    *service.Manager
	issuer     *auth.Issuer
}

// NewApp loads the configuration and builds every service. Failing to load
// the classifier model is not fatal: the box endpoints keep working and
// classification requests are rejected.
func NewApp(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.LogDirectory, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, logger: log}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.config

	if cfg.DBDriver == "sqlite3" {
		if err := os.MkdirAll(filepath.Dir(sqlitePath(cfg.DBDSN)), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sqlstore.New(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	a.db = db

	files, err := storage.NewFileStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", cfg.StorageBackend, err)
	}

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.RedisAddress != "" {
		rl, err := lock.NewRedisLocker(ctx, cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB, cfg.LockTTL, a.logger)
		if err != nil {
			return err
		}
		a.redisLock = rl
		locker = rl
	}

	var classifier ai.Model
	nm, err := ai.NewNetModel(cfg.ModelPath, cfg.ModelConfigPath, cfg.ClassifierWorkers, a.logger)
	if err != nil {
		a.logger.Error("Classifier unavailable, answer detection is disabled: %v", err)
	} else {
		a.netModel = nm
		classifier = nm
	}

	if cfg.AuthEnabled() {
		a.issuer = auth.NewIssuer(cfg.JWTSecret, cfg.AdminPasswordHash, cfg.TokenTTL)
	}

	a.hubService = websocket.NewHubService(a.logger)
	a.manager = service.NewManager(
		sqlstore.NewAnnotationRepository(db),
		files,
		classifier,
		locker,
		a.hubService,
		service.Options{
			Classify: ai.ClassifyOptions{
				Mode:      ai.Mode(cfg.ClassifierMode),
				InputSize: cfg.ClassifierInputSize,
				Threshold: cfg.PredictionThreshold,
			},
			Dedup: ai.DedupStrategy(cfg.BoxDedup),
		},
		a.logger,
	)
	return nil
}

// Run serves HTTP until SIGINT or SIGTERM and then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.hubService.Run(ctx)

	server := &http.Server{
		Addr:         a.config.ServerAddress(),
		Handler:      route.SetupRoutes(a.manager, a.hubService, a.issuer, a.config, a.logger),
		ReadTimeout:  a.config.RequestTimeout,
		WriteTimeout: a.config.RequestTimeout,
	}

	a.logger.WithFields(logger.Fields{
		"address": a.config.ServerAddress(),
		"db":      a.db.Driver(),
		"storage": a.config.StorageBackend,
		"mode":    a.config.ClassifierMode,
		"auth":    a.config.AuthEnabled(),
	}).Info("Starting answer sheet server")

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.logger.Info("Server exited")
	return nil
}

// Close releases the database, the loaded networks, the Redis client and the log files.
func (a *App) Close() {
	if a.netModel != nil {
		a.netModel.Close()
	}
	if a.redisLock != nil {
		a.redisLock.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	a.logger.Close()
}

// sqlitePath strips the query options from a sqlite DSN.
func sqlitePath(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(dsn, "?"); i >= 0 {
		return dsn[:i]
	}
	return dsn
}
