// Command etl runs the reanalysis climate pipeline and serves its results.
//
// Usage:
//
//	etl extract   [-variables v1,v2]
//	etl aggregate [-variables v1,v2] [-timerange 2016-2020]
//	etl package   [-timerange 2020] [-keys k1,k2|@file] [-merge] [-groups wind,rain]
//	etl check     [-timerange 2020]
//	etl run       [-variables v1,v2]
//	etl serve
//
// Settings come from the environment; see internal/config.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/adapter/columnar"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/reanalysis-climate-etl/internal/adapter/kafka"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/adapter/memstore"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/adapter/redisstore"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/adapter/s3"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/aggregate"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/config"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/observability"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/packager"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/pipeline"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/query"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// gateway is a storage backend objects are published to and read from.
type gateway interface {
	packager.Gateway
	sharedobs.ReadinessChecker
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: etl <extract|aggregate|package|check|run|serve> [flags]")
		os.Exit(2)
	}
	command := os.Args[1]

	opts, err := parseFlags(command, os.Args[2:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := opts.apply(cfg); err != nil {
		slog.Error("invalid flags", "error", err)
		os.Exit(2)
	}

	logger := observability.NewLogger(cfg).With("command", command)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw, closeGateway, err := openGateway(ctx, cfg)
	if err != nil {
		logger.Error("failed to open storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	defer closeGateway()

	if command == "serve" {
		if err := serve(ctx, cfg, gw, logger, metrics); err != nil {
			logger.Error("serve failed", "error", err)
			os.Exit(1)
		}
		return
	}

	ok, err := runBatch(ctx, command, opts, cfg, gw, logger, metrics)
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}

func openGateway(ctx context.Context, cfg *config.Config) (gateway, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		gw := redisstore.New(cfg.RedisAddr)
		return gw, func() { _ = gw.Close() }, nil
	case config.BackendMemory:
		return memstore.New(), func() {}, nil
	default:
		gw, err := s3.New(s3.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := gw.EnsureBucket(ctx); err != nil {
			return nil, nil, err
		}
		return gw, func() {}, nil
	}
}

// serve answers queries until the context is cancelled.
func serve(ctx context.Context, cfg *config.Config, gw gateway, logger *slog.Logger, metrics *observability.Metrics) error {
	cache := query.NewCachedStore(gw, cfg.QueryCacheSize, metrics)
	resolver := query.NewResolver(cache, query.Config{
		Version:    cfg.StoreVersion,
		TimeRanges: cfg.TimeRangeLabels(),
		MaxCells:   cfg.QueryMaxCells,
		Workers:    cfg.UploadWorkers,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, resolver, resolver, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// runBatch runs one pipeline command and reports whether it left no failures.
// Health and metrics endpoints are served while it runs.
func runBatch(ctx context.Context, command string, opts *options, cfg *config.Config, gw gateway, logger *slog.Logger, metrics *observability.Metrics) (bool, error) {
	tables, err := columnar.New(cfg.DataDir)
	if err != nil {
		return false, err
	}

	var publisher pipeline.ReportPublisher
	if cfg.ReportsEnabled() {
		w := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publisher = w
	}

	pkg := packager.New(gw, tables, packager.Config{
		Version: cfg.StoreVersion,
		Bounds:  cfg.Bounds,
		Workers: cfg.UploadWorkers,
	}, logger, metrics)

	p := pipeline.New(netcdf.NewSource(cfg.DataDir), tables, pkg, publisher, pipeline.Config{
		Version:    cfg.StoreVersion,
		Years:      cfg.Years,
		TimeRanges: cfg.TimeRanges,
		Months:     cfg.Months,
		Variables:  cfg.Variables,
		Bounds:     cfg.Bounds,
		Workers:    cfg.Workers,
		Aggregate: aggregate.Options{
			RainScheme:         cfg.RainScheme,
			PrecipAccumulation: cfg.PrecipAccumulation,
		},
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, nil, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}()

	var reports []domain.RunReport
	switch command {
	case "extract":
		reports, err = single(p.Extract(ctx))
	case "aggregate":
		reports, err = single(p.Aggregate(ctx))
	case "package":
		reports, err = single(p.Package(ctx, opts.packageOptions()))
	case "check":
		reports, err = single(p.Check(ctx))
	case "run":
		reports, err = p.Run(ctx)
	default:
		return false, fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		return false, err
	}
	return allOK(reports), nil
}

func single(r domain.RunReport, err error) ([]domain.RunReport, error) {
	return []domain.RunReport{r}, err
}

func allOK(reports []domain.RunReport) bool {
	for _, r := range reports {
		if !r.OK() {
			return false
		}
	}
	return true
}
