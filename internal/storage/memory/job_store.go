// Package memory provides in-process store implementations for local
// development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ailens/domain-audit/internal/audit"
)

// JobStore keeps jobs, pages, and artifacts in mutex-guarded maps. The
// claim is a compare-and-swap under the store lock, so concurrent workers
// see the same win-exactly-once semantics as the SQL store.
type JobStore struct {
	mu        sync.Mutex
	jobs      map[string]audit.Job
	pages     map[string][]audit.Page
	artifacts map[string][]audit.Artifact
	clock     audit.Clock
}

// NewJobStore returns an empty JobStore.
func NewJobStore(clock audit.Clock) *JobStore {
	return &JobStore{
		jobs:      make(map[string]audit.Job),
		pages:     make(map[string][]audit.Page),
		artifacts: make(map[string][]audit.Artifact),
		clock:     clock,
	}
}

func (s *JobStore) CreateJob(_ context.Context, job audit.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	now := s.clock.Now()
	job.Status = audit.JobStatusPending
	job.Created = now
	job.Updated = now
	s.jobs[job.ID] = job
	return nil
}

func (s *JobStore) GetJob(_ context.Context, jobID string) (audit.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return audit.Job{}, audit.ErrJobNotFound
	}
	return job, nil
}

func (s *JobStore) ClaimNextPending(_ context.Context) (audit.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		oldest audit.Job
		found  bool
	)
	for _, job := range s.jobs {
		if job.Status != audit.JobStatusPending {
			continue
		}
		if !found || job.Created.Before(oldest.Created) ||
			(job.Created.Equal(oldest.Created) && job.ID < oldest.ID) {
			oldest = job
			found = true
		}
	}
	if !found {
		return audit.Job{}, audit.ErrNoPendingJobs
	}

	oldest.Status = audit.JobStatusCrawling
	oldest.Stage = audit.StageCrawling
	oldest.Progress = 0
	oldest.ErrorText = ""
	oldest.Updated = s.clock.Now()
	s.jobs[oldest.ID] = oldest
	return oldest, nil
}

func (s *JobStore) UpdateStage(_ context.Context, jobID string, stage audit.Stage, status audit.JobStatus, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return audit.ErrJobNotFound
	}
	job.Stage = stage
	job.Status = status
	job.Progress = progress
	job.Updated = s.clock.Now()
	s.jobs[jobID] = job
	return nil
}

func (s *JobStore) MarkCompleted(_ context.Context, jobID string, pagesCrawled int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return audit.ErrJobNotFound
	}
	job.Status = audit.JobStatusCompleted
	job.Progress = 100
	job.ErrorText = ""
	job.PagesCrawled = pagesCrawled
	job.Updated = s.clock.Now()
	s.jobs[jobID] = job
	return nil
}

func (s *JobStore) MarkFailed(_ context.Context, jobID string, stage audit.Stage, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return audit.ErrJobNotFound
	}
	job.Status = audit.JobStatusFailed
	job.Stage = stage
	job.ErrorText = fmt.Sprintf("[%s] %s", stage, errText)
	job.Updated = s.clock.Now()
	s.jobs[jobID] = job
	return nil
}

func (s *JobStore) ResetForRetry(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return audit.ErrJobNotFound
	}
	if job.Status == audit.JobStatusPending || job.Status.Running() {
		return nil
	}
	job.Status = audit.JobStatusPending
	job.Stage = ""
	job.Progress = 0
	job.ErrorText = ""
	job.PagesCrawled = 0
	job.Updated = s.clock.Now()
	s.jobs[jobID] = job
	// the rerun records a fresh page set
	delete(s.pages, jobID)
	return nil
}

func (s *JobStore) RecordPage(_ context.Context, page audit.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[page.JobID]; !ok {
		return audit.ErrJobNotFound
	}
	s.pages[page.JobID] = append(s.pages[page.JobID], page)
	return nil
}

func (s *JobStore) ListPages(_ context.Context, jobID string) ([]audit.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pages := s.pages[jobID]
	out := make([]audit.Page, len(pages))
	copy(out, pages)
	return out, nil
}

func (s *JobStore) SaveArtifact(_ context.Context, artifact audit.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[artifact.JobID]; !ok {
		return audit.ErrJobNotFound
	}
	s.artifacts[artifact.JobID] = append(s.artifacts[artifact.JobID], artifact)
	return nil
}

func (s *JobStore) LatestArtifact(_ context.Context, jobID string) (audit.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs := s.artifacts[jobID]
	if len(runs) == 0 {
		return audit.Artifact{}, audit.ErrArtifactNotFound
	}
	return runs[len(runs)-1], nil
}
