package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/district-analytics-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/district-analytics-service/internal/adapter/kafka"
	"github.com/couchcryptid/district-analytics-service/internal/adapter/nominatim"
	"github.com/couchcryptid/district-analytics-service/internal/adapter/rediscache"
	"github.com/couchcryptid/district-analytics-service/internal/analytics"
	"github.com/couchcryptid/district-analytics-service/internal/config"
	"github.com/couchcryptid/district-analytics-service/internal/domain"
	"github.com/couchcryptid/district-analytics-service/internal/geo"
	"github.com/couchcryptid/district-analytics-service/internal/observability"
	"github.com/couchcryptid/district-analytics-service/internal/pipeline"
	"github.com/couchcryptid/district-analytics-service/internal/registry"
	"github.com/couchcryptid/district-analytics-service/internal/store"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Error("service failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := registry.Load(registry.Options{
		CatalogFile:    cfg.DistrictsFile,
		BoundariesFile: cfg.BoundariesFile,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("load districts: %w", err)
	}

	scoring, err := config.LoadScoring(cfg.ScoringConfigFile)
	if err != nil {
		return err
	}
	scorer, err := domain.NewScorer(scoring)
	if err != nil {
		return err
	}

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	metricsStore := store.New(backend, reg)
	var closers []namedCloser
	closers = append(closers, namedCloser{"metrics store", metricsStore})

	service := analytics.NewService(metricsStore, reg, scorer, logger)
	readiness := httpadapter.Readiness{metricsStore}

	var shared analytics.SharedCache
	if cfg.RedisAddr != "" {
		rc, err := rediscache.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			closeAll(logger, closers)
			return err
		}
		shared = rc
		readiness = append(readiness, rc)
		closers = append(closers, namedCloser{"redis", rc})
		logger.Info("shared overview cache enabled", "addr", cfg.RedisAddr)
	}
	overview := analytics.NewCachedOverview(service, shared, cfg.OverviewCacheTTL, logger, metrics)

	linear := geo.NewLinearResolver(reg)
	metrics.BoundariesLoaded.Set(float64(linear.Len()))
	var resolver geo.Resolver = linear
	if cfg.ReverseGeocoderEnabled {
		client := nominatim.NewClient(cfg.ReverseGeocoderURL, cfg.ReverseGeocoderUserAgent, cfg.ReverseGeocoderTimeout, metrics, logger)
		resolver = geo.NewFallbackResolver(linear, client, reg, logger)
		logger.Info("reverse geocoding fallback enabled", "url", cfg.ReverseGeocoderURL)
	} else if linear.Len() == 0 {
		logger.Warn("no district boundaries loaded and reverse geocoding disabled, location detection will never match")
	}
	locator, err := geo.NewCachedResolver(resolver, cfg.GeoCacheSize, cfg.GeoCacheTTL, clockwork.NewRealClock(), metrics)
	if err != nil {
		closeAll(logger, closers)
		return err
	}

	var p *pipeline.Pipeline
	if cfg.IngestEnabled {
		reader := kafkaadapter.NewReader(cfg, logger)
		deadLetter := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaDLQTopic, logger)
		// closeAll runs in reverse, so the reader closes before the writer.
		closers = append(closers, namedCloser{"kafka dead letter writer", deadLetter}, namedCloser{"kafka reader", reader})
		p = pipeline.New(reader, metricsStore, deadLetter, overview, logger, metrics, cfg.BatchSize)
		readiness = append(readiness, p)
		logger.Info("kafka ingestion enabled",
			"brokers", cfg.KafkaBrokers,
			"topic", cfg.KafkaSourceTopic,
			"dead_letter_topic", cfg.KafkaDLQTopic,
			"group_id", cfg.KafkaGroupID,
		)
	} else {
		logger.Info("kafka ingestion disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Districts:   reg,
		Analytics:   service,
		Overview:    overview,
		Locator:     locator,
		Ready:       readiness,
		Metrics:     metrics,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start ingestion pipeline.
	pipelineDone := make(chan struct{})
	if p != nil {
		go func() {
			defer close(pipelineDone)
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	} else {
		close(pipelineDone)
	}

	logger.Info("service started",
		"districts", reg.Len(),
		"boundaries", linear.Len(),
		"store", cfg.StoreBackend,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	// The pipeline must finish its in-flight batch before the reader closes.
	select {
	case <-pipelineDone:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}
	closeAll(logger, closers)

	logger.Info("shutdown complete")
	return nil
}

func openBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		return store.OpenSQL(ctx, store.DialectPostgres, cfg.DatabaseURL)
	case config.BackendSQLite:
		return store.OpenSQL(ctx, store.DialectSQLite, cfg.DatabaseURL)
	case config.BackendMongo:
		return store.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDB)
	default:
		return store.NewMemoryBackend(), nil
	}
}

type namedCloser struct {
	name string
	io.Closer
}

func closeAll(logger *slog.Logger, closers []namedCloser) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Error("close error", "component", closers[i].name, "error", err)
		}
	}
}
