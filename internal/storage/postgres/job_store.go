// Package postgres provides Postgres-backed persistence implementations.
//
// Expected schema:
//
//	CREATE TABLE audit_jobs (
//	    id                 TEXT PRIMARY KEY,
//	    target_domain      TEXT NOT NULL,
//	    comparison_domains JSONB NOT NULL DEFAULT '[]',
//	    locale             TEXT NOT NULL DEFAULT '',
//	    context            TEXT NOT NULL DEFAULT '',
//	    status             TEXT NOT NULL,
//	    stage              TEXT NOT NULL DEFAULT '',
//	    progress           INT NOT NULL DEFAULT 0,
//	    error_text         TEXT NOT NULL DEFAULT '',
//	    pages_crawled      INT NOT NULL DEFAULT 0,
//	    created_at         TIMESTAMPTZ NOT NULL,
//	    updated_at         TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX audit_jobs_pending ON audit_jobs (created_at) WHERE status = 'pending';
//
//	CREATE TABLE audit_pages (
//	    job_id           TEXT NOT NULL REFERENCES audit_jobs(id),
//	    url              TEXT NOT NULL,
//	    normalized_url   TEXT NOT NULL,
//	    url_hash         TEXT NOT NULL,
//	    domain           TEXT NOT NULL,
//	    is_target        BOOLEAN NOT NULL,
//	    text             TEXT NOT NULL DEFAULT '',
//	    title            TEXT NOT NULL DEFAULT '',
//	    meta_description TEXT NOT NULL DEFAULT '',
//	    evidence         JSONB NOT NULL DEFAULT '{}',
//	    word_count       INT NOT NULL DEFAULT 0,
//	    priority         INT NOT NULL DEFAULT 3,
//	    status_code      INT NOT NULL DEFAULT 0,
//	    blob_uri         TEXT NOT NULL DEFAULT '',
//	    fetched_at       TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (job_id, url_hash)
//	);
//
//	CREATE TABLE audit_artifacts (
//	    job_id         TEXT NOT NULL REFERENCES audit_jobs(id),
//	    run_id         TEXT NOT NULL,
//	    schema_version INT NOT NULL,
//	    model          TEXT NOT NULL,
//	    sampled_urls   JSONB NOT NULL DEFAULT '[]',
//	    payload        JSONB NOT NULL,
//	    created_at     TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (job_id, run_id)
//	);
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ailens/domain-audit/internal/audit"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// JobStore implements audit.JobStore on Postgres. Every transition is a
// single status-guarded UPDATE, so concurrent workers coordinate purely
// through row state; the claim uses FOR UPDATE SKIP LOCKED.
type JobStore struct {
	pool  querier
	clock audit.Clock
}

// JobStoreConfig controls the connection pool.
type JobStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// NewJobStore creates a Postgres-backed JobStore from a DSN.
func NewJobStore(ctx context.Context, cfg JobStoreConfig, clock audit.Clock) (*JobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &JobStore{pool: pool, clock: clock}, nil
}

// NewJobStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewJobStoreWithPool(pool querier, clock audit.Clock) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobStore{pool: pool, clock: clock}, nil
}

// Close closes the underlying connection pool.
func (s *JobStore) Close() {
	s.pool.Close()
}

const jobColumns = `id, target_domain, comparison_domains, locale, context,
	status, stage, progress, error_text, pages_crawled, created_at, updated_at`

func (s *JobStore) CreateJob(ctx context.Context, job audit.Job) error {
	domains, err := json.Marshal(job.ComparisonDomains)
	if err != nil {
		return fmt.Errorf("marshal comparison domains: %w", err)
	}
	now := s.clock.Now()
	query := `
		INSERT INTO audit_jobs (id, target_domain, comparison_domains, locale, context,
			status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.pool.Exec(ctx, query,
		job.ID, job.TargetDomain, domains, job.Locale, job.Context,
		audit.JobStatusPending, now, now)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *JobStore) GetJob(ctx context.Context, jobID string) (audit.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM audit_jobs WHERE id = $1`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return audit.Job{}, audit.ErrJobNotFound
	}
	if err != nil {
		return audit.Job{}, fmt.Errorf("select job: %w", err)
	}
	return job, nil
}

func (s *JobStore) ClaimNextPending(ctx context.Context) (audit.Job, error) {
	query := `
		UPDATE audit_jobs
		SET status = $1, stage = $2, progress = 0, error_text = '', updated_at = $3
		WHERE id = (
			SELECT id FROM audit_jobs
			WHERE status = $4
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns
	row := s.pool.QueryRow(ctx, query,
		audit.JobStatusCrawling, audit.StageCrawling, s.clock.Now(), audit.JobStatusPending)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return audit.Job{}, audit.ErrNoPendingJobs
	}
	if err != nil {
		return audit.Job{}, fmt.Errorf("claim pending job: %w", err)
	}
	return job, nil
}

func (s *JobStore) UpdateStage(ctx context.Context, jobID string, stage audit.Stage, status audit.JobStatus, progress int) error {
	query := `
		UPDATE audit_jobs
		SET stage = $1, status = $2, progress = $3, updated_at = $4
		WHERE id = $5 AND status NOT IN ($6, $7)
	`
	tag, err := s.pool.Exec(ctx, query,
		stage, status, progress, s.clock.Now(), jobID,
		audit.JobStatusCompleted, audit.JobStatusFailed)
	if err != nil {
		return fmt.Errorf("update job stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return audit.ErrJobNotFound
	}
	return nil
}

func (s *JobStore) MarkCompleted(ctx context.Context, jobID string, pagesCrawled int) error {
	query := `
		UPDATE audit_jobs
		SET status = $1, progress = 100, error_text = '', pages_crawled = $2, updated_at = $3
		WHERE id = $4 AND status NOT IN ($1, $5)
	`
	tag, err := s.pool.Exec(ctx, query,
		audit.JobStatusCompleted, pagesCrawled, s.clock.Now(), jobID, audit.JobStatusFailed)
	if err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return audit.ErrJobNotFound
	}
	return nil
}

func (s *JobStore) MarkFailed(ctx context.Context, jobID string, stage audit.Stage, errText string) error {
	query := `
		UPDATE audit_jobs
		SET status = $1, stage = $2, error_text = $3, updated_at = $4
		WHERE id = $5 AND status NOT IN ($6, $1)
	`
	tag, err := s.pool.Exec(ctx, query,
		audit.JobStatusFailed, stage, fmt.Sprintf("[%s] %s", stage, errText),
		s.clock.Now(), jobID, audit.JobStatusCompleted)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return audit.ErrJobNotFound
	}
	return nil
}

func (s *JobStore) ResetForRetry(ctx context.Context, jobID string) error {
	query := `
		UPDATE audit_jobs
		SET status = $1, stage = '', progress = 0, error_text = '', pages_crawled = 0, updated_at = $2
		WHERE id = $3 AND status IN ($4, $5)
	`
	tag, err := s.pool.Exec(ctx, query,
		audit.JobStatusPending, s.clock.Now(), jobID,
		audit.JobStatusFailed, audit.JobStatusCompleted)
	if err != nil {
		return fmt.Errorf("reset job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// pending or running jobs are a no-op; only unknown IDs fail
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM audit_jobs WHERE id = $1)`, jobID).Scan(&exists); err != nil {
			return fmt.Errorf("check job existence: %w", err)
		}
		if !exists {
			return audit.ErrJobNotFound
		}
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM audit_pages WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("clear job pages: %w", err)
	}
	return nil
}

func (s *JobStore) RecordPage(ctx context.Context, page audit.Page) error {
	evidence, err := json.Marshal(page.Evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}
	query := `
		INSERT INTO audit_pages (job_id, url, normalized_url, url_hash, domain, is_target,
			text, title, meta_description, evidence, word_count, priority, status_code, blob_uri, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (job_id, url_hash) DO NOTHING
	`
	_, err = s.pool.Exec(ctx, query,
		page.JobID, page.URL, page.NormalizedURL, page.URLHash, page.Domain, page.IsTarget,
		page.Text, page.Title, page.MetaDescription, evidence, page.WordCount, int(page.Priority),
		page.StatusCode, page.BlobURI, page.FetchedAt)
	if err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	return nil
}

func (s *JobStore) ListPages(ctx context.Context, jobID string) ([]audit.Page, error) {
	query := `
		SELECT job_id, url, normalized_url, url_hash, domain, is_target,
			text, title, meta_description, evidence, word_count, priority, status_code, blob_uri, fetched_at
		FROM audit_pages
		WHERE job_id = $1
		ORDER BY priority, fetched_at
	`
	rows, err := s.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("select pages: %w", err)
	}
	defer rows.Close()

	var pages []audit.Page
	for rows.Next() {
		var (
			p        audit.Page
			evidence []byte
			priority int
		)
		if err := rows.Scan(&p.JobID, &p.URL, &p.NormalizedURL, &p.URLHash, &p.Domain, &p.IsTarget,
			&p.Text, &p.Title, &p.MetaDescription, &evidence, &p.WordCount, &priority,
			&p.StatusCode, &p.BlobURI, &p.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		if len(evidence) > 0 {
			if err := json.Unmarshal(evidence, &p.Evidence); err != nil {
				return nil, fmt.Errorf("unmarshal evidence: %w", err)
			}
		}
		p.Priority = audit.PriorityTier(priority)
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return pages, nil
}

func (s *JobStore) SaveArtifact(ctx context.Context, artifact audit.Artifact) error {
	payload, err := json.Marshal(artifact.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	sampled, err := json.Marshal(artifact.SampledURLs)
	if err != nil {
		return fmt.Errorf("marshal sampled urls: %w", err)
	}
	query := `
		INSERT INTO audit_artifacts (job_id, run_id, schema_version, model, sampled_urls, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.pool.Exec(ctx, query,
		artifact.JobID, artifact.RunID, artifact.SchemaVersion, artifact.Model,
		sampled, payload, artifact.Created)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

func (s *JobStore) LatestArtifact(ctx context.Context, jobID string) (audit.Artifact, error) {
	query := `
		SELECT job_id, run_id, schema_version, model, sampled_urls, payload, created_at
		FROM audit_artifacts
		WHERE job_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var (
		a       audit.Artifact
		sampled []byte
		payload []byte
	)
	err := s.pool.QueryRow(ctx, query, jobID).Scan(
		&a.JobID, &a.RunID, &a.SchemaVersion, &a.Model, &sampled, &payload, &a.Created)
	if errors.Is(err, pgx.ErrNoRows) {
		return audit.Artifact{}, audit.ErrArtifactNotFound
	}
	if err != nil {
		return audit.Artifact{}, fmt.Errorf("select artifact: %w", err)
	}
	if err := json.Unmarshal(sampled, &a.SampledURLs); err != nil {
		return audit.Artifact{}, fmt.Errorf("decode sampled urls: %w", err)
	}
	if err := json.Unmarshal(payload, &a.Payload); err != nil {
		return audit.Artifact{}, fmt.Errorf("decode payload: %w", err)
	}
	return a, nil
}

func scanJob(row pgx.Row) (audit.Job, error) {
	var (
		job     audit.Job
		domains []byte
	)
	if err := row.Scan(&job.ID, &job.TargetDomain, &domains, &job.Locale, &job.Context,
		&job.Status, &job.Stage, &job.Progress, &job.ErrorText, &job.PagesCrawled,
		&job.Created, &job.Updated); err != nil {
		return audit.Job{}, err
	}
	if len(domains) > 0 {
		if err := json.Unmarshal(domains, &job.ComparisonDomains); err != nil {
			return audit.Job{}, fmt.Errorf("decode comparison domains: %w", err)
		}
	}
	return job, nil
}
