package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pevans/newswire"
	"github.com/pevans/newswire/classify"
	"github.com/pevans/newswire/config"
	"github.com/pevans/newswire/fetcher"
	"github.com/pevans/newswire/logging"
	"github.com/pevans/newswire/metrics"
)

// shutdownTimeout bounds how long in-flight requests may run after a
// termination signal.
const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (NEWSWIRE_CONFIG)")
	addr := flag.String("addr", "", "Listen address, overrides server.addr and PORT")
	once := flag.Bool("once", false, "Build the payload once, print it as JSON and exit")

	flag.Parse()

	logging.Init()
	logger := logging.Logger

	if *configPath != "" {
		os.Setenv("NEWSWIRE_CONFIG", *configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", "err", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	pipeline, m, err := buildPipeline(cfg)
	if err != nil {
		logger.Fatal("Failed to build pipeline", "err", err)
	}

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		payload, err := pipeline.Rebuild(ctx)
		if err != nil {
			logger.Fatal("Rebuild failed", "err", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(payload); err != nil {
			logger.Fatal("Failed to write payload", "err", err)
		}
		return
	}

	api := newswire.NewAPIServer(pipeline, newswire.APIOptions{
		CacheTTL:             cfg.Cache.TTL,
		StaleWhileRevalidate: cfg.Cache.StaleWhileRevalidate,
		Metrics:              m,
		Logger:               logger,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting news server", "addr", cfg.Server.Addr, "sources", len(cfg.Sources), "ttl", cfg.Cache.TTL)
		errChan <- server.ListenAndServe()
	}()

	// Wait for signal or error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown timeout exceeded, forcing exit", "err", err)
			return
		}
		logger.Info("Server stopped")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", "err", err)
		}
	}
}

// buildPipeline wires the configured stages together.
func buildPipeline(cfg *config.Config) (*newswire.Pipeline, *metrics.Metrics, error) {
	mode, err := classify.ParseMode(cfg.Classify.Mode)
	if err != nil {
		return nil, nil, err
	}

	m := &metrics.Metrics{}
	f := fetcher.New(fetcher.Config{
		Timeout:       cfg.Fetch.Timeout,
		MaxRedirects:  cfg.Fetch.MaxRedirects,
		UserAgent:     cfg.Fetch.UserAgent,
		Accept:        cfg.Fetch.Accept,
		RatePerSecond: cfg.Fetch.RatePerSecond,
		MaxBodyBytes:  cfg.Fetch.MaxBodyBytes,
	}, nil)

	gatherer := newswire.NewGatherer(f, newswire.GathererConfig{
		FetchTimeout:   cfg.Fetch.Timeout,
		DescriptionMax: cfg.Feed.DescriptionMax,
		Concurrency:    cfg.Fetch.Concurrency,
	}, logging.Logger, m)

	sources := make([]newswire.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		sources = append(sources, newswire.Source{
			Name:   s.Name,
			Label:  s.Label,
			URL:    s.URL,
			Color:  s.Color,
			Scrape: s.Scrape,
		})
	}

	pipeline := newswire.NewPipeline(newswire.PipelineConfig{
		Sources:  sources,
		Gatherer: gatherer,
		Policy:   classify.Policy{Mode: mode},
		Ranking: newswire.RankOptions{
			MaxArticles:    cfg.Ranking.MaxArticles,
			FingerprintLen: cfg.Ranking.FingerprintLen,
		},
		Cache:   newswire.NewPayloadCache(cfg.Cache.TTL, cfg.Cache.Coalesce, nil),
		Metrics: m,
		Logger:  logging.Logger,
	})
	return pipeline, m, nil
}
