// Package worker implements the audit pipeline execution loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ailens/domain-audit/internal/audit"
)

// Config controls Worker behavior.
type Config struct {
	PollInterval       time.Duration
	Topic              string
	BlobPrefix         string
	BlobContentType    string
	MaxPagesTarget     int
	MaxPagesComparison int
}

// Crawler walks one domain and returns its pages.
type Crawler interface {
	Crawl(ctx context.Context, jobID, domain string, isTarget bool, maxPages int) ([]audit.Page, error)
}

// ArtifactGenerator produces a validated artifact from crawled pages.
type ArtifactGenerator interface {
	Generate(ctx context.Context, job audit.Job, pages []audit.Page) (audit.Artifact, error)
}

// CompletionEvent is published when a job finishes successfully.
type CompletionEvent struct {
	JobID  string `json:"job_id"`
	Domain string `json:"domain"`
	RunID  string `json:"run_id"`
}

// Worker claims pending jobs and runs them through the crawl, analyze,
// and assemble stages.
type Worker struct {
	jobs      audit.JobStore
	blobs     audit.BlobStore
	publisher audit.Publisher
	crawler   Crawler
	generator ArtifactGenerator
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	jobs audit.JobStore,
	blobs audit.BlobStore,
	publisher audit.Publisher,
	crawler Crawler,
	generator ArtifactGenerator,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BlobPrefix == "" {
		cfg.BlobPrefix = "pages"
	}
	if cfg.BlobContentType == "" {
		cfg.BlobContentType = "text/html; charset=utf-8"
	}
	return &Worker{
		jobs:      jobs,
		blobs:     blobs,
		publisher: publisher,
		crawler:   crawler,
		generator: generator,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, claiming and processing jobs until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		w.drain(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// drain claims jobs until the queue is empty or the context finishes.
func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		job, err := w.jobs.ClaimNextPending(ctx)
		if errors.Is(err, audit.ErrNoPendingJobs) {
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Error("claim failed", zap.Error(err))
			}
			return
		}
		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job audit.Job) {
	start := time.Now()
	log := w.logger.With(zap.String("job_id", job.ID), zap.String("domain", job.TargetDomain))
	log.Info("job claimed")

	stage := audit.StageCrawling
	defer func() {
		if r := recover(); r != nil {
			log.Error("job pipeline panicked", zap.Any("panic", r), zap.String("stage", string(stage)))
			w.fail(ctx, log, job.ID, stage, "internal error")
		}
	}()

	pages, err := w.runCrawl(ctx, log, job)
	if err != nil {
		w.fail(ctx, log, job.ID, audit.StageCrawling, sanitizeError(err))
		return
	}

	stage = audit.StageAnalyzing
	if err := w.jobs.UpdateStage(ctx, job.ID, audit.StageAnalyzing, audit.JobStatusAnalyzing, 60); err != nil {
		log.Error("stage update failed", zap.Error(err))
		return
	}
	artifact, err := w.generator.Generate(ctx, job, pages)
	if err != nil {
		w.fail(ctx, log, job.ID, audit.StageAnalyzing, sanitizeError(err))
		return
	}

	stage = audit.StageAssembling
	if err := w.jobs.UpdateStage(ctx, job.ID, audit.StageAssembling, audit.JobStatusAssembling, 90); err != nil {
		log.Error("stage update failed", zap.Error(err))
		return
	}
	if err := w.jobs.SaveArtifact(ctx, artifact); err != nil {
		w.fail(ctx, log, job.ID, audit.StageAssembling, "the report could not be stored")
		return
	}
	if err := w.jobs.MarkCompleted(ctx, job.ID, len(pages)); err != nil {
		log.Error("completion update failed", zap.Error(err))
		return
	}

	jobsProcessed.WithLabelValues("completed").Inc()
	jobDuration.Observe(time.Since(start).Seconds())
	log.Info("job completed",
		zap.Int("pages", len(pages)),
		zap.String("run_id", artifact.RunID),
		zap.Duration("elapsed", time.Since(start)))

	if w.publisher != nil && w.cfg.Topic != "" {
		event := CompletionEvent{JobID: job.ID, Domain: job.TargetDomain, RunID: artifact.RunID}
		if _, err := w.publisher.Publish(ctx, w.cfg.Topic, event); err != nil {
			log.Warn("completion event publish failed", zap.Error(err))
		}
	}
}

// runCrawl crawls the target and comparison domains, persisting each page
// as it lands. A comparison domain that yields nothing degrades to an
// empty contribution; only the target domain is load-bearing.
func (w *Worker) runCrawl(ctx context.Context, log *zap.Logger, job audit.Job) ([]audit.Page, error) {
	pages, err := w.crawler.Crawl(ctx, job.ID, job.TargetDomain, true, w.cfg.MaxPagesTarget)
	if err != nil {
		return nil, err
	}
	if err := w.persistPages(ctx, pages); err != nil {
		return nil, err
	}
	if err := w.jobs.UpdateStage(ctx, job.ID, audit.StageCrawling, audit.JobStatusCrawling, 40); err != nil {
		log.Error("stage update failed", zap.Error(err))
	}

	for _, domain := range job.ComparisonDomains {
		compPages, err := w.crawler.Crawl(ctx, job.ID, domain, false, w.cfg.MaxPagesComparison)
		if err != nil {
			log.Warn("comparison crawl failed", zap.String("comparison_domain", domain), zap.Error(err))
			continue
		}
		if err := w.persistPages(ctx, compPages); err != nil {
			return nil, err
		}
		pages = append(pages, compPages...)
	}
	return pages, nil
}

// persistPages snapshots raw HTML to the blob store and records the page
// rows. The HTML never reaches the job store.
func (w *Worker) persistPages(ctx context.Context, pages []audit.Page) error {
	for i := range pages {
		page := &pages[i]
		if page.HTML != "" {
			path := fmt.Sprintf("%s/%s/%s.html", w.cfg.BlobPrefix, page.JobID, page.URLHash)
			uri, err := w.blobs.PutObject(ctx, path, w.cfg.BlobContentType, []byte(page.HTML))
			if err != nil {
				return fmt.Errorf("store page snapshot: %w", err)
			}
			page.BlobURI = uri
			page.HTML = ""
		}
		if err := w.jobs.RecordPage(ctx, *page); err != nil {
			return fmt.Errorf("record page: %w", err)
		}
	}
	return nil
}

func (w *Worker) fail(ctx context.Context, log *zap.Logger, jobID string, stage audit.Stage, errText string) {
	jobsProcessed.WithLabelValues("failed").Inc()
	log.Warn("job failed", zap.String("stage", string(stage)), zap.String("error_text", errText))
	if err := w.jobs.MarkFailed(ctx, jobID, stage, errText); err != nil {
		log.Error("failure update failed", zap.Error(err))
	}
}

// sanitizeError maps pipeline errors to the short operator-facing text
// stored on the job. Raw model output and validation transcripts never
// leave the logs.
func sanitizeError(err error) string {
	var (
		exhausted *audit.CrawlExhaustedError
		callErr   *audit.GenerationCallError
		schemaErr *audit.SchemaValidationError
	)
	switch {
	case errors.As(err, &exhausted):
		return exhausted.Error()
	case errors.As(err, &callErr):
		return "the analysis service was unavailable"
	case errors.As(err, &schemaErr):
		return "the analysis did not produce a valid report"
	case errors.Is(err, context.DeadlineExceeded):
		return "the job ran out of time"
	case errors.Is(err, context.Canceled):
		return "the job was interrupted"
	default:
		return "unexpected error"
	}
}
