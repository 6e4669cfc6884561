// Command auditd runs the domain-audit service: the HTTP API for
// submitting and reading audits plus the worker pool that claims and
// processes pending jobs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/ailens/domain-audit/internal/accessgate"
	"github.com/ailens/domain-audit/internal/api"
	"github.com/ailens/domain-audit/internal/audit"
	"github.com/ailens/domain-audit/internal/clock/system"
	"github.com/ailens/domain-audit/internal/config"
	"github.com/ailens/domain-audit/internal/crawler"
	"github.com/ailens/domain-audit/internal/dispatcher"
	"github.com/ailens/domain-audit/internal/generator"
	"github.com/ailens/domain-audit/internal/hash/sha256"
	"github.com/ailens/domain-audit/internal/id/uuid"
	"github.com/ailens/domain-audit/internal/llm"
	"github.com/ailens/domain-audit/internal/logging"
	"github.com/ailens/domain-audit/internal/publisher/memory"
	"github.com/ailens/domain-audit/internal/publisher/pubsub"
	"github.com/ailens/domain-audit/internal/storage/gcs"
	memstorage "github.com/ailens/domain-audit/internal/storage/memory"
	"github.com/ailens/domain-audit/internal/storage/postgres"
	"github.com/ailens/domain-audit/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, cfg, logger); err != nil {
		logger.Fatal("service exited", zap.Error(err))
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg config.Config, logger *zap.Logger) error {
	clk := system.New()
	ids := uuid.New()
	hasher := sha256.New()

	jobStore, err := newJobStore(ctx, cfg, clk)
	if err != nil {
		return err
	}

	blobStore, err := newBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	pub, err := newPublisher(ctx, cfg)
	if err != nil {
		return err
	}

	guard := crawler.NewGuard()
	fetcher := crawler.NewCollyFetcher(guard, cfg.Crawler.UserAgent, cfg.Crawler.RequestTimeout(), cfg.Crawler.MaxPageBytes)
	crawl := crawler.New(fetcher, hasher, clk, cfg.Crawler.Concurrency, cfg.Crawler.CrawlBudget(),
		cfg.Crawler.RespectRobots, logger.Named("crawler"))

	text, err := llm.New(cfg.Generator)
	if err != nil {
		return fmt.Errorf("init generator client: %w", err)
	}
	gen := generator.New(cfg.Generator, text, ids, clk, logger.Named("generator"))

	workerCfg := worker.Config{
		PollInterval:       cfg.Worker.PollInterval(),
		Topic:              cfg.PubSub.TopicName,
		BlobPrefix:         cfg.Storage.Prefix,
		BlobContentType:    cfg.Storage.ContentType,
		MaxPagesTarget:     cfg.Crawler.MaxPagesTarget,
		MaxPagesComparison: cfg.Crawler.MaxPagesComparison,
	}
	workers := make([]*worker.Worker, 0, cfg.Worker.Count)
	for i := 0; i < cfg.Worker.Count; i++ {
		w := worker.New(jobStore, blobStore, pub, crawl, gen, workerCfg,
			logger.Named("worker").With(zap.Int("index", i)))
		workers = append(workers, w)
	}
	disp := dispatcher.New(workers)

	entitlements := memstorage.NewEntitlements()
	gate := accessgate.New(entitlements, logger.Named("accessgate"))
	server := api.NewServer(jobStore, gate, ids, cfg, logger.Named("api"))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go disp.Run(ctx)
	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	return nil
}

func newJobStore(ctx context.Context, cfg config.Config, clk audit.Clock) (audit.JobStore, error) {
	switch cfg.DB.Provider {
	case "postgres":
		store, err := postgres.NewJobStore(ctx, postgres.JobStoreConfig{DSN: cfg.DB.DSN}, clk)
		if err != nil {
			return nil, fmt.Errorf("init postgres job store: %w", err)
		}
		return store, nil
	case "", "memory":
		return memstorage.NewJobStore(clk), nil
	default:
		return nil, fmt.Errorf("unknown db.provider %q", cfg.DB.Provider)
	}
}

func newBlobStore(ctx context.Context, cfg config.Config) (audit.BlobStore, error) {
	switch cfg.Storage.Provider {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		return gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
	case "", "memory":
		return memstorage.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage.provider %q", cfg.Storage.Provider)
	}
}

func newPublisher(ctx context.Context, cfg config.Config) (audit.Publisher, error) {
	switch cfg.PubSub.Provider {
	case "pubsub":
		client, err := gcpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub client: %w", err)
		}
		return pubsub.New(client), nil
	case "", "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown pubsub.provider %q", cfg.PubSub.Provider)
	}
}
