// API server entry point: assembles the extraction pipeline, the ranker, and
// their optional collaborators from configuration and serves the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/shortalex12333/Cloud-PMS-sub001/internal/config"
	cacheredis "github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/cache/redis"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/llm"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/messaging/kafka"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/monitoring/logging"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/monitoring/prometheus"
	httpserver "github.com/shortalex12333/Cloud-PMS-sub001/internal/interfaces/http"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/interfaces/http/handlers"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/query"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/rank"
)

// version is injected via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (empty: env + defaults)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	logger.Info("starting apiserver",
		logging.String("version", version),
		logging.String("config_version", cfg.Query.Version()),
		logging.Int("port", cfg.Server.Port),
	)

	registry := promclient.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := prometheus.NewMetrics(registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional collaborators. Each one failing at startup is fatal when
	// enabled; disabled ones are simply absent.
	var gap query.GapExtractor
	if cfg.ProbabilisticEnabled {
		extractor, err := llm.NewExtractor(cfg.LLM, nil, logger.Named("llm"))
		if err != nil {
			return err
		}
		gap = extractor
	}

	var cache query.ResultCache
	if cfg.CacheEnabled {
		redisCache, err := cacheredis.NewResultCache(ctx, cfg.Redis, logger.Named("cache"))
		if err != nil {
			return err
		}
		defer redisCache.Close()
		cache = redisCache
	}

	var publisher handlers.EventPublisher
	if cfg.EventsEnabled {
		kafkaPublisher, err := kafka.NewPublisher(cfg.Kafka, logger.Named("events"))
		if err != nil {
			return err
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	pipeline, err := query.NewPipeline(cfg.Query, gap, cache, logger.Named("pipeline"), metrics)
	if err != nil {
		return err
	}
	ranker, err := rank.NewRanker(cfg.Rank, logger.Named("rank"), metrics)
	if err != nil {
		return err
	}

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Pipeline:  pipeline,
		Ranker:    ranker,
		Publisher: publisher,
		Logger:    logger.Named("http"),
		Metrics:   metrics,
		Registry:  registry,
		Mode:      cfg.Server.Mode,
		Version:   version,
	})
	server := httpserver.NewServer(cfg.Server, router, logger.Named("http"))

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return server.Stop(context.Background())
}
