package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ailens/domain-audit/internal/audit"
)

type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func newTestStore() *JobStore {
	return NewJobStore(&tickingClock{t: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)})
}

func TestClaimNextPendingOrdersByAge(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	require.NoError(t, s.CreateJob(ctx, audit.Job{ID: "job-a", TargetDomain: "a.com"}))
	require.NoError(t, s.CreateJob(ctx, audit.Job{ID: "job-b", TargetDomain: "b.com"}))

	first, err := s.ClaimNextPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job-a", first.ID)
	assert.Equal(t, audit.JobStatusCrawling, first.Status)
	assert.Equal(t, audit.StageCrawling, first.Stage)

	second, err := s.ClaimNextPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job-b", second.ID)

	_, err = s.ClaimNextPending(ctx)
	assert.ErrorIs(t, err, audit.ErrNoPendingJobs)
}

func TestClaimNextPendingRace(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	require.NoError(t, s.CreateJob(ctx, audit.Job{ID: "job-1", TargetDomain: "a.com"}))

	const workers = 32
	var wg sync.WaitGroup
	wins := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if job, err := s.ClaimNextPending(ctx); err == nil {
				wins <- job.ID
			}
		}()
	}
	wg.Wait()
	close(wins)

	var claimed []string
	for id := range wins {
		claimed = append(claimed, id)
	}
	assert.Len(t, claimed, 1, "exactly one worker may win the claim")
}

func TestLifecycleTransitions(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	require.NoError(t, s.CreateJob(ctx, audit.Job{ID: "job-1", TargetDomain: "a.com"}))
	_, err := s.ClaimNextPending(ctx)
	require.NoError(t, err)

	require.NoError(t, s.UpdateStage(ctx, "job-1", audit.StageAnalyzing, audit.JobStatusAnalyzing, 60))
	job, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, audit.JobStatusAnalyzing, job.Status)
	assert.Equal(t, 60, job.Progress)

	require.NoError(t, s.MarkCompleted(ctx, "job-1", 42))
	job, err = s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, audit.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, 42, job.PagesCrawled)
}

func TestMarkFailedTagsStage(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	require.NoError(t, s.CreateJob(ctx, audit.Job{ID: "job-1", TargetDomain: "a.com"}))
	_, err := s.ClaimNextPending(ctx)
	require.NoError(t, err)

	require.NoError(t, s.MarkFailed(ctx, "job-1", audit.StageAnalyzing, "the analysis could not be completed"))
	job, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, audit.JobStatusFailed, job.Status)
	assert.Equal(t, "[analyzing] the analysis could not be completed", job.ErrorText)
}

func TestResetForRetry(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	require.NoError(t, s.CreateJob(ctx, audit.Job{ID: "job-1", TargetDomain: "a.com"}))

	// pending: no-op
	require.NoError(t, s.ResetForRetry(ctx, "job-1"))
	job, _ := s.GetJob(ctx, "job-1")
	assert.Equal(t, audit.JobStatusPending, job.Status)

	claimed, err := s.ClaimNextPending(ctx)
	require.NoError(t, err)

	// running: no-op, the worker keeps ownership
	require.NoError(t, s.ResetForRetry(ctx, "job-1"))
	job, _ = s.GetJob(ctx, "job-1")
	assert.Equal(t, audit.JobStatusCrawling, job.Status)

	require.NoError(t, s.RecordPage(ctx, audit.Page{JobID: claimed.ID, NormalizedURL: "https://a.com/"}))
	require.NoError(t, s.MarkFailed(ctx, "job-1", audit.StageCrawling, "boom"))

	require.NoError(t, s.ResetForRetry(ctx, "job-1"))
	job, _ = s.GetJob(ctx, "job-1")
	assert.Equal(t, audit.JobStatusPending, job.Status)
	assert.Empty(t, job.ErrorText)
	assert.Zero(t, job.Progress)

	pages, err := s.ListPages(ctx, "job-1")
	require.NoError(t, err)
	assert.Empty(t, pages, "retry starts from a clean page set")

	// a second reset while pending stays a no-op
	require.NoError(t, s.ResetForRetry(ctx, "job-1"))
}

func TestArtifactRuns(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	require.NoError(t, s.CreateJob(ctx, audit.Job{ID: "job-1", TargetDomain: "a.com"}))

	_, err := s.LatestArtifact(ctx, "job-1")
	assert.ErrorIs(t, err, audit.ErrArtifactNotFound)

	require.NoError(t, s.SaveArtifact(ctx, audit.Artifact{JobID: "job-1", RunID: "run-1"}))
	require.NoError(t, s.SaveArtifact(ctx, audit.Artifact{JobID: "job-1", RunID: "run-2"}))

	latest, err := s.LatestArtifact(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "run-2", latest.RunID)
}

func TestUnknownJobIDs(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, err := s.GetJob(ctx, "nope")
	assert.ErrorIs(t, err, audit.ErrJobNotFound)
	assert.ErrorIs(t, s.UpdateStage(ctx, "nope", audit.StageCrawling, audit.JobStatusCrawling, 0), audit.ErrJobNotFound)
	assert.ErrorIs(t, s.MarkCompleted(ctx, "nope", 0), audit.ErrJobNotFound)
	assert.ErrorIs(t, s.MarkFailed(ctx, "nope", audit.StageCrawling, "x"), audit.ErrJobNotFound)
	assert.ErrorIs(t, s.ResetForRetry(ctx, "nope"), audit.ErrJobNotFound)
	assert.ErrorIs(t, s.RecordPage(ctx, audit.Page{JobID: "nope"}), audit.ErrJobNotFound)
}
