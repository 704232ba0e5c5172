package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/textract-csv/api/handlers"
	"github.com/feichai0017/textract-csv/api/routes"
	"github.com/feichai0017/textract-csv/config"
	"github.com/feichai0017/textract-csv/internal/metrics"
	"github.com/feichai0017/textract-csv/internal/service/pipeline"
	"github.com/feichai0017/textract-csv/internal/textract"
	"github.com/feichai0017/textract-csv/pkg/events"
	"github.com/feichai0017/textract-csv/pkg/logger"
	"github.com/feichai0017/textract-csv/pkg/queue"
	"github.com/feichai0017/textract-csv/pkg/storage"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		panic(err)
	}

	// init logger
	log, err := logger.NewFromConfig(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Server exited with error", logger.Error(err))
		os.Exit(1)
	}
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
	jobs := queue.NewJobStore(rdb, queue.DefaultJobTTL)

	q := queue.NewAsynqQueue(cfg)
	defer q.Close()

	svc := pipeline.NewService(cfg.Pipeline, store, analyzer, jobs, m, log)
	topics := []string{cfg.Pipeline.NotificationTopicARN}
	if cfg.Pipeline.UploadTopicARN != "" {
		topics = append(topics, cfg.Pipeline.UploadTopicARN)
	}
	confirmer := events.NewConfirmer(topics, nil)

	h := handlers.NewHandlers(svc, q, confirmer, m, log)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h, m, log)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	obs := metrics.NewObservabilityServer(cfg.Server.MetricsAddr, m, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server starting", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(obs.Start)

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), obs.Shutdown(shutdownCtx))
	})

	return g.Wait()
}
