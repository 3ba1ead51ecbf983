// Command warehoused runs the trace and log warehouse: the gRPC
// Instrument ingest service, the Jaeger-compatible HTTP query API, and
// the background scheduler that drains the hot store into cold
// partitions.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/warehoused/warehoused/internal/aggregator"
	"github.com/warehoused/warehoused/internal/config"
	"github.com/warehoused/warehoused/internal/httpserver"
	"github.com/warehoused/warehoused/internal/ingest"
	"github.com/warehoused/warehoused/internal/objectstore"
	"github.com/warehoused/warehoused/internal/partition"
	"github.com/warehoused/warehoused/internal/query"
	"github.com/warehoused/warehoused/internal/rpcserver"
	"github.com/warehoused/warehoused/internal/scheduler"
	"github.com/warehoused/warehoused/internal/store"
	"github.com/warehoused/warehoused/internal/telemetry"
	"github.com/warehoused/warehoused/internal/trace"
	"github.com/warehoused/warehoused/pkg/hotreload"
	"github.com/warehoused/warehoused/pkg/workerpool"
)

func main() {
	configFile := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	bootLogger := logrus.New()
	bootLogger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(*configFile, bootLogger)
	if err != nil {
		bootLogger.WithError(err).Fatal("invalid configuration")
	}

	logger := telemetry.NewLogger(cfg.App)

	if err := run(*configFile, cfg, logger); err != nil {
		logger.WithError(err).Fatal("warehoused exited with error")
	}
}

func run(configFile string, cfg *config.Config, logger *logrus.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	backing, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open storage backend: %w", err)
	}

	schema := store.NewSchemaRegistry(backing, logger)
	if err := schema.Load(ctx); err != nil {
		return fmt.Errorf("load log schema: %w", err)
	}

	hot := store.NewHotStore(schema, backing, logger)
	hot.Load(ctx)
	agg := aggregator.New()

	var memoryMode atomic.Bool
	memoryMode.Store(cfg.MemoryMode)

	router := ingest.New(agg, hot, logger, telemetry.IngestDroppedTotal.WithLabelValues("mailbox_full"))

	pool := workerpool.New(4)
	coldQuery := partition.NewQuery(backing, pool)
	writer := partition.NewWriter(backing, cfg.Compression, logger)

	engine := query.New(hot, coldQuery, &memoryMode, logger)
	engine.SetColdWindow(cfg.Query.ColdWindow)
	assembler := trace.New(engine, schema.Get)

	tracer, err := telemetry.NewTracer(cfg.App.Name, cfg.Tracing, logger)
	if err != nil {
		return fmt.Errorf("init self-tracing: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("tracer shutdown failed")
		}
	}()

	sched := scheduler.New(agg, router, hot, schema, writer, &memoryMode, cfg.Scheduler.AggregatorTick, cfg.Scheduler.FlushTick, logger)

	reloader := hotreload.NewConfigReloader(configFile, cfg, engine, logger)
	defer reloader.Stop()
	reloader.Start(ctx)

	grpcServer := grpc.NewServer()
	rpcserver.New(router, logger).Register(grpcServer)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.WebPort),
		Handler: httpserver.New(hot, schema, engine, assembler, &memoryMode, logger).Router(),
	}

	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	errCh := make(chan error, 3)

	go func() {
		logger.WithField("port", cfg.GRPCPort).Info("gRPC Instrument service listening")
		errCh <- grpcServer.Serve(grpcLis)
	}()
	go func() {
		logger.WithField("port", cfg.WebPort).Info("HTTP query API listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		router.Run(ctx)
	}()
	go func() {
		sched.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("server failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	grpcServer.GracefulStop()
	_ = httpSrv.Shutdown(shutdownCtx)

	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (objectstore.Store, error) {
	if cfg.Storage.S3 != nil {
		return objectstore.NewS3Store(ctx, objectstore.S3Config{
			Endpoint: cfg.Storage.S3.Endpoint,
			Bucket:   cfg.Storage.S3.Bucket,
			Region:   cfg.Storage.S3.Region,
			Key:      cfg.Storage.S3.Key,
			Secret:   cfg.Storage.S3.Secret,
			Secure:   cfg.Storage.S3.Secure,
		}, logger)
	}
	return objectstore.NewLocalStore(cfg.Storage.Local.Dir, logger)
}
