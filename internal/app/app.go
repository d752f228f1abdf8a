// Package app assembles the daemon: configuration, storage, the
// ingestion pipeline, the search cache, and the local HTTP/WebSocket
// surface, with lifecycle management in one place.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"indistocks/internal/config"
	"indistocks/internal/downloader"
	"indistocks/internal/exporter"
	"indistocks/internal/infrastructure"
	"indistocks/internal/ingestion"
	"indistocks/internal/search"
	"indistocks/internal/storage"
	"indistocks/internal/symbols"
	transport "indistocks/internal/transport/http"
	"indistocks/internal/validator"
	ws "indistocks/internal/websocket"
)

// Application is the assembled daemon.
type Application struct {
	Config      *config.Config
	Paths       *config.Paths
	Logger      *slog.Logger
	Store       *storage.Store
	Cache       *search.Cache
	Coordinator *ingestion.Coordinator
	Directory   *symbols.Manager
	Hub         *ws.Hub
	Server      *http.Server
}

// New loads configuration and wires every component. configFile may be
// empty; environment variables alone are enough to run.
func New(configFile string) (*Application, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	paths, err := config.NewPaths(cfg.Paths)
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging, paths.LogsDir)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	logger.Info("starting",
		slog.String("data_dir", paths.DataDir),
		slog.String("db_file", paths.DBFile),
		slog.Int("port", cfg.Server.Port))

	db, err := storage.Open(paths.DBFile)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	store := storage.NewStore(db, cfg.Ingest.RecentlyViewedCap)

	cache := search.NewCache(store)
	if err := cache.Rebuild(context.Background()); err != nil {
		return nil, fmt.Errorf("build search cache: %w", err)
	}
	logger.Info("search cache ready", slog.Int("symbols", cache.Len()))

	holidays, err := cfg.Download.HolidayDates()
	if err != nil {
		return nil, fmt.Errorf("parse holidays: %w", err)
	}
	calendar := downloader.NewCalendar(holidays)
	client := downloader.NewClient(cfg.Source, cfg.Download, paths, logger)

	registry := prometheus.NewRegistry()
	metrics := infrastructure.NewMetrics(registry)

	coordinator := ingestion.New(store, client, calendar,
		validator.New(cfg.Ingest.EpochDate()),
		ingestion.Config{
			AutoRegisterSymbols: cfg.Ingest.AutoRegisterSymbols,
			MaxTxRetries:        cfg.Ingest.MaxTxRetries,
		},
		metrics, logger)

	hub := ws.NewHub(logger)
	directory := symbols.NewManager(
		cfg.Source.SymbolListURL, cfg.Source.UserAgent, cfg.Source.RequestTimeout,
		store, cache, logger)
	exp := exporter.New(paths, logger)

	router := transport.NewRouter(transport.Deps{
		Market:    transport.NewMarketHandler(store, cache, directory, exp, hub, logger),
		Ingest:    transport.NewIngestHandler(coordinator, store, logger),
		Hub:       hub,
		Registry:  registry,
		Logger:    logger,
		RateRPS:   cfg.Server.RateLimitRPS,
		RateBurst: cfg.Server.RateLimitBurst,
	})

	server := &http.Server{
		// Localhost only. The daemon serves the desktop UI on the same
		// machine, never the network.
		Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Application{
		Config:      cfg,
		Paths:       paths,
		Logger:      logger,
		Store:       store,
		Cache:       cache,
		Coordinator: coordinator,
		Directory:   directory,
		Hub:         hub,
		Server:      server,
	}, nil
}

// Run serves until the context is cancelled or SIGINT/SIGTERM arrives,
// then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Hub.Run(ctx)
		return nil
	})

	// Forward ingestion progress to connected UI clients.
	g.Go(func() error {
		events := a.Coordinator.Events()
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-events:
				a.Hub.BroadcastProgress(ev)
			}
		}
	})

	g.Go(func() error {
		a.Logger.Info("listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.Logger.Info("shutting down")
		a.Coordinator.Cancel()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
