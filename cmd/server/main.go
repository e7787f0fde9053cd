package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/materialquote/backend/config"
	httpDelivery "github.com/materialquote/backend/internal/delivery/http"
	"github.com/materialquote/backend/internal/domain"
	"github.com/materialquote/backend/internal/infrastructure/cache"
	"github.com/materialquote/backend/internal/infrastructure/metrics"
	"github.com/materialquote/backend/internal/infrastructure/openai"
	"github.com/materialquote/backend/internal/infrastructure/sheet"
	"github.com/materialquote/backend/internal/infrastructure/store"
	"github.com/materialquote/backend/internal/logger"
	"github.com/materialquote/backend/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := config.LoadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		ServiceName: "materialquote-backend",
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
	})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped")
}

func run(cfg *config.Config, log zerolog.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
	}()

	log.Info().
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("cache", cfg.Cache.Type).
		Dur("cache_ttl", cfg.Cache.TTL).
		Float64("match_threshold", cfg.Matching.MinConfidenceThreshold).
		Msg("starting MaterialQuote backend v1.0.0")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)

	quoteCache, cacheCloser, err := newCache(ctx, cfg)
	if err != nil {
		return err
	}
	closers = append(closers, cacheCloser)

	var catalogStore domain.CatalogStore
	if cfg.Catalog.StorePath != "" {
		sqliteStore, err := store.NewSQLiteStore(cfg.Catalog.StorePath)
		if err != nil {
			return fmt.Errorf("open catalog store: %w", err)
		}
		closers = append(closers, sqliteStore)
		catalogStore = sqliteStore
		log.Info().Str("path", cfg.Catalog.StorePath).Msg("catalog persistence enabled")
	} else {
		log.Warn().Msg("catalog store path not set; uploads are kept in memory only")
	}

	catalogs := usecase.NewCatalogService(sheet.NewParser(), catalogStore, recorder, log,
		usecase.CatalogServiceConfig{CurrencySymbol: cfg.Catalog.CurrencySymbol})
	if err := catalogs.Restore(ctx); err != nil {
		log.Error().Err(err).Msg("could not restore catalog; starting empty")
	}

	resolver := usecase.NewRequestResolver(usecase.ResolverConfig{
		MinConfidenceThreshold: cfg.Matching.MinConfidenceThreshold,
		Workers:                cfg.Matching.Workers,
	}, log)

	quotes := usecase.NewQuoteService(catalogs, resolver, quoteCache, recorder, log,
		usecase.QuoteServiceConfig{CacheTTL: cfg.Cache.TTL})

	var (
		transcriber domain.Transcriber
		extractor   domain.TextExtractor
	)
	if cfg.MediaEnabled() {
		client := openai.NewClient(openai.Config{
			APIKey:            cfg.OpenAI.APIKey,
			BaseURL:           cfg.OpenAI.BaseURL,
			TranscribeModel:   cfg.OpenAI.TranscribeModel,
			VisionModel:       cfg.OpenAI.VisionModel,
			RequestsPerMinute: cfg.OpenAI.RequestsPerMinute,
			MediaUsername:     cfg.Media.Username,
			MediaPassword:     cfg.Media.Password,
			RetryMax:          3,
		}, log)
		transcriber, extractor = client, client
		log.Info().Str("base_url", cfg.OpenAI.BaseURL).Msg("voice and image requests enabled")
	} else {
		log.Warn().Msg("openai api key not set; voice notes and images will get an apology reply")
	}

	inbound := usecase.NewInboundService(quotes, transcriber, extractor, recorder, log)

	handler := httpDelivery.NewHandler(catalogs, quotes, inbound, cfg.Server.MaxUploadBytes, log)
	router := httpDelivery.SetupRouter(cfg, handler, httpDelivery.RouterOptions{
		Logger:   log,
		Observer: recorder,
		Gatherer: registry,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newCache builds the quote cache selected by configuration
func newCache(ctx context.Context, cfg *config.Config) (domain.CacheRepository, io.Closer, error) {
	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis cache: %w", err)
		}
		return redisCache, redisCache, nil
	default:
		memoryCache := cache.NewMemoryCache(cache.MemoryOptions{MaxEntries: cfg.Cache.MaxEntries})
		return memoryCache, memoryCache, nil
	}
}
