package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"realestate-lt/config"
	"realestate-lt/geo"
	"realestate-lt/metrics"
	"realestate-lt/scheduler"
	"realestate-lt/scraper"
	"realestate-lt/scraper/aruodas"
	"realestate-lt/services"
	"realestate-lt/storage"
	"realestate-lt/utils"
)

func main() {
	cfg := config.Load()
	logger := utils.NewLogger(utils.LogConfig{
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		SeqURL:      cfg.SeqURL,
		SeqToken:    cfg.SeqToken,
	})

	logger.Info("=== Real-estate ingestion service starting ===")
	logger.Info("Config: cities %v | types %v | batch %d | stale after %s | schedule %q",
		cfg.Cities, cfg.PropertyTypes, cfg.BatchSize, cfg.StaleAfter, cfg.Schedule)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open %s store: %v", cfg.Store, err)
		logger.Error("Make sure Docker is running: docker compose up -d")
		os.Exit(1)
	}
	defer store.Close()

	m := metrics.New()

	geocoder, err := buildGeocoder(ctx, cfg, logger)
	if err != nil {
		logger.Error("Geocoder setup failed: %v", err)
		os.Exit(1)
	}

	pipeline := services.NewPipeline(services.PipelineDeps{
		Acquirer: scraper.NewChain(logger, m, buildStrategies(cfg, logger)...),
		Snapshot: storage.NewSnapshotFile(cfg.SnapshotPath),
		Reconciler: services.NewReconciler(store, geocoder, services.NewCleaner(logger), m, logger,
			services.ReconcilerConfig{
				BatchSize:     cfg.BatchSize,
				BatchDelay:    cfg.BatchDelay,
				Concurrency:   cfg.BatchConcurrency,
				GroupInterval: cfg.BatchInterval,
			}),
		Sweeper:  services.NewSweeper(store, cfg.StaleAfter, m, logger),
		Store:    store,
		Insights: services.NewInsightService(logger, nil),
		Metrics:  m,
		Logger:   logger,
	})

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = serveMetrics(cfg.MetricsAddr, m, logger)
	}

	sched, err := scheduler.New(cfg.Schedule, cfg.ScheduleTimezone, func(ctx context.Context) error {
		_, err := pipeline.Run(ctx)
		return err
	}, logger)
	if err != nil {
		logger.Error("Invalid schedule: %v", err)
		os.Exit(1)
	}
	sched.Start()

	var startup sync.WaitGroup
	if cfg.RunOnStart {
		startup.Add(1)
		go func() {
			defer startup.Done()
			if _, err := pipeline.Run(ctx); err != nil {
				logger.Error("Start-up run failed: %v", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	sched.Stop()
	startup.Wait()
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown: %v", err)
		}
	}
	logger.Info("=== Real-estate ingestion service stopped ===")
}

func openStore(ctx context.Context, cfg *config.Config, logger *utils.Logger) (storage.ListingStore, error) {
	switch cfg.Store {
	case "memory":
		logger.Warn("Using in-memory store, listings are lost on exit")
		return storage.NewMemoryStore(), nil
	case "postgres":
		return storage.NewPostgresStore(ctx, cfg.DSN(), logger)
	default:
		return nil, errors.New("unknown STORE " + cfg.Store)
	}
}

func buildGeocoder(ctx context.Context, cfg *config.Config, logger *utils.Logger) (geo.Geocoder, error) {
	g, err := geo.New(cfg.GeocoderProvider, geo.Options{
		BaseURL:    cfg.GeocoderURL,
		APIKey:     cfg.GeocoderAPIKey,
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.GeocoderTimeout,
		RPS:        cfg.GeocoderRPS,
		MaxRetries: cfg.GeocoderMaxRetries,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	if cfg.RedisAddr == "" {
		return g, nil
	}

	client, err := geo.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("Geocode cache disabled: %v", err)
		return g, nil
	}
	logger.Info("Geocode cache enabled at %s (ttl %s)", cfg.RedisAddr, cfg.GeocodeCacheTTL)
	return geo.NewCachedGeocoder(g, geo.NewRedisCache(client, cfg.GeocodeCacheTTL), logger), nil
}

func buildStrategies(cfg *config.Config, logger *utils.Logger) []scraper.Strategy {
	portal := aruodas.Config{
		BaseURL:       cfg.BaseURL,
		Cities:        cfg.Cities,
		PropertyTypes: cfg.PropertyTypes,
		PageLimit:     cfg.PageLimit,
		PageDelay:     cfg.PageDelay,
		PairDelay:     cfg.PairDelay,
		UserAgent:     cfg.UserAgent,
	}

	strategies := []scraper.Strategy{
		scraper.NewSubprocessStrategy(scraper.SubprocessConfig{
			Command:       cfg.ScraperCommand,
			Script:        cfg.ScraperScript,
			Timeout:       cfg.ScraperTimeout,
			Cities:        cfg.Cities,
			PropertyTypes: cfg.PropertyTypes,
		}, logger),
		aruodas.NewHTTPStrategy(portal, logger),
	}
	if cfg.BrowserFallback {
		strategies = append(strategies, aruodas.NewBrowserStrategy(portal, cfg.ChromeBin, logger))
	}
	return strategies
}

func serveMetrics(addr string, m *metrics.Metrics, logger *utils.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed: %v", err)
		}
	}()
	return srv
}
