// Package main is the entry point of the application
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tecu23/chess-rooms/internal/auth"
	"github.com/tecu23/chess-rooms/internal/notices"
	"github.com/tecu23/chess-rooms/pkg/chess"
	"github.com/tecu23/chess-rooms/pkg/config"
	"github.com/tecu23/chess-rooms/pkg/events"
	"github.com/tecu23/chess-rooms/pkg/manager"
	"github.com/tecu23/chess-rooms/pkg/metrics"
	"github.com/tecu23/chess-rooms/pkg/ratelimit"
	"github.com/tecu23/chess-rooms/pkg/repository"
	"github.com/tecu23/chess-rooms/pkg/server"
)

// App encapsulates global dependencies
type application struct {
	Auth      *auth.APIKeyAuth
	Logger    *zap.Logger
	Config    *config.Config
	Publisher *events.Publisher
	Manager   *manager.Manager
	Hub       *server.Hub
	Server    *http.Server
	Registry  *prometheus.Registry
	Limiter   *ratelimit.Limiter

	closeStore func() error
	StartTime  time.Time
}

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	port := flag.String("port", "8080", "server port")
	flag.Parse()

	cfg := config.Default()
	cfg.Debug = *debug
	cfg.Port = *port

	// Initialize logger
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	if err := config.LoadDotEnv(); err != nil {
		logger.Fatal("loading env error", zap.Error(err))
	}
	if err := cfg.ApplyEnv(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	catalog, err := notices.New(cfg.NoticesFile)
	if err != nil {
		logger.Fatal("loading notices error", zap.Error(err))
	}

	// Initialize event publisher
	publisher := events.NewPublisher()
	if cfg.Debug {
		traceEvents(publisher, logger)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.New(registry).Subscribe(publisher)

	// Initialize repository
	repo, closeStore, err := openRepository(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("initialize repository error", zap.Error(err))
	}

	var verifier manager.TokenVerifier
	if cfg.JWTSecret != "" {
		verifier = auth.NewJWT(cfg.JWTSecret)
	}

	// Initialize room manager
	rm, err := manager.NewManager(manager.Options{
		RoomTTL:         cfg.RoomTTL,
		SweepInterval:   cfg.SweepInterval,
		TickInterval:    cfg.TickInterval,
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
		DefaultTimeControl: chess.TimeControl{
			WhiteTime:      cfg.DefaultWhiteTime,
			BlackTime:      cfg.DefaultBlackTime,
			WhiteIncrement: cfg.DefaultIncrement,
			BlackIncrement: cfg.DefaultIncrement,
		},
		Notices: catalog,
	}, repo, verifier, publisher, logger)
	if err != nil {
		logger.Fatal("initialize manager error", zap.Error(err))
	}
	rm.Start()

	hub := server.NewHub(rm, logger)

	app := &application{
		Auth:       auth.NewAPIKeyAuth(cfg.APIKeys),
		Logger:     logger,
		Config:     cfg,
		Publisher:  publisher,
		Manager:    rm,
		Hub:        hub,
		Registry:   registry,
		Limiter:    ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow),
		closeStore: closeStore,
		StartTime:  time.Now(),
	}

	go app.Hub.Run()

	err = app.serve()
	if err != nil {
		logger.Fatal("error serving", zap.Error(err))
	}
}

// openRepository builds the match store selected by the configuration.
func openRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.MatchRepository, func() error, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch cfg.StoreBackend {
	case config.StorePostgres:
		repo, err := repository.OpenPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	case config.StoreRedis:
		repo, err := repository.OpenRedis(ctx, cfg.RedisURL, cfg.MatchTTL, logger)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	case config.StoreMemory:
		return repository.NewInMemoryRepository(logger), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// traceEvents logs every published event at debug level.
func traceEvents(p *events.Publisher, logger *zap.Logger) {
	p.SubscribeAll(func(e events.Event) {
		logger.Debug("event",
			zap.String("type", string(e.Type)),
			zap.String("room_id", e.RoomID),
		)
	})
}

func initLogger(debug bool) *zap.Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	return logger
}

// Shutdown cleans up resources
func (app *application) Shutdown() {
	if app.Hub != nil {
		app.Hub.Shutdown()
	}

	if app.Manager != nil {
		app.Manager.Stop()
	}

	if app.closeStore != nil {
		if err := app.closeStore(); err != nil {
			app.Logger.Error("closing store", zap.Error(err))
		}
	}

	app.Logger.Info("All components shut down successfully")
}
