// m2m-harvester orders and transfers imagery from an M2M catalog to
// object storage in a single run. Configuration comes from a YAML file
// plus M2M_* and S3_* environment overrides.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geoharvest/m2m-harvester/internal/config"
	"github.com/geoharvest/m2m-harvester/internal/runner"
	"github.com/geoharvest/m2m-harvester/internal/storage"
	"github.com/geoharvest/m2m-harvester/pkg/logging"
	"github.com/geoharvest/m2m-harvester/pkg/m2m"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "m2m-harvester: %v\n", err)
		return 2
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("Serving Prometheus metrics")
	}

	client, err := m2m.New(m2m.Config{
		ServiceURL: cfg.ServiceURL,
		UserAgent:  "m2m-harvester/1.0",
		RateLimit:  cfg.RateLimit,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create catalog client")
		return 2
	}

	store, err := storage.NewMinioStore(ctx, storage.Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		Prefix:    cfg.Storage.Prefix,
		Region:    cfg.Storage.Region,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to connect to object storage")
		return 2
	}

	if err := os.MkdirAll(cfg.StagingDir, 0o755); err != nil {
		logger.Error().Err(err).Str("dir", cfg.StagingDir).Msg("Failed to create staging directory")
		return 2
	}

	r := runner.New(cfg, client, store, nil)
	summary, err := r.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Harvest run failed")
		return 1
	}
	if summary.Failed > 0 || summary.Shortfall > 0 {
		logger.Warn().
			Int64("failed", summary.Failed).
			Int64("shortfall", summary.Shortfall).
			Msg("Harvest run finished with losses")
		return 1
	}
	return 0
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	// Errors here must not take down the harvest itself.
	_ = http.ListenAndServe(addr, mux)
}
