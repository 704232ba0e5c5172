package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/textract-csv/config"
	"github.com/feichai0017/textract-csv/internal/metrics"
	"github.com/feichai0017/textract-csv/internal/preflight"
	"github.com/feichai0017/textract-csv/internal/service/pipeline"
	"github.com/feichai0017/textract-csv/internal/textract"
	"github.com/feichai0017/textract-csv/pkg/logger"
	"github.com/feichai0017/textract-csv/pkg/queue"
	"github.com/feichai0017/textract-csv/pkg/storage"
	"github.com/feichai0017/textract-csv/pkg/worker"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		panic(err)
	}

	log, err := logger.NewFromConfig(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Worker exited with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Worker stopped")
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	m := metrics.New(nil)

	store, err := storage.NewStorage(ctx, storage.StorageType(cfg.Storage), cfg, log)
	if err != nil {
		return err
	}

	analyzer, err := textract.NewClient(ctx, cfg.AWS, cfg.Pipeline, log)
	if err != nil {
		return err
	}

	rdb := queue.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	opts := []pipeline.Option{}
	if cfg.Pipeline.Preflight {
		opts = append(opts, pipeline.WithPreflight(preflight.NewChecker(preflight.DefaultMaxSize, log)))
	}
	svc := pipeline.NewService(cfg.Pipeline, store, analyzer, queue.NewJobStore(rdb, queue.DefaultJobTTL), m, log, opts...)

	w := worker.NewPipelineWorker(&worker.Config{
		Redis:       queue.RedisOpt(cfg.Redis),
		Concurrency: cfg.Worker.Concurrency,
		Queues:      queue.Queues,
	}, svc, log)

	obs := metrics.NewObservabilityServer(cfg.Server.MetricsAddr, m, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Start(gctx) })
	g.Go(obs.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return obs.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
