package audit

import (
	"context"
	"time"
)

// JobStore persists jobs, pages, and artifacts. All mutations are single
// atomic read-modify-write operations; ClaimNextPending is the only
// cross-worker coordination primitive in the system.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)

	// ClaimNextPending atomically transfers the oldest pending job to the
	// crawling state and returns it. It returns ErrNoPendingJobs when the
	// queue is empty. Under concurrent callers at most one claim succeeds
	// per job.
	ClaimNextPending(ctx context.Context) (Job, error)

	// UpdateStage records the stage and progress of a running job.
	UpdateStage(ctx context.Context, jobID string, stage Stage, status JobStatus, progress int) error

	// MarkCompleted finalizes a successful run.
	MarkCompleted(ctx context.Context, jobID string, pagesCrawled int) error

	// MarkFailed finalizes a failed run with a stage-tagged, sanitized
	// message. Internal validation transcripts never reach this string.
	MarkFailed(ctx context.Context, jobID string, stage Stage, errText string) error

	// ResetForRetry moves a failed or completed job back to pending.
	// Calling it on a job that is already pending or running is a no-op.
	ResetForRetry(ctx context.Context, jobID string) error

	RecordPage(ctx context.Context, page Page) error
	ListPages(ctx context.Context, jobID string) ([]Page, error)

	// SaveArtifact inserts a new artifact run. Existing runs are never
	// mutated.
	SaveArtifact(ctx context.Context, artifact Artifact) error

	// LatestArtifact returns the most recent run for a job.
	LatestArtifact(ctx context.Context, jobID string) (Artifact, error)
}

// BlobStore writes raw page snapshots and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// TextGenerator is the external text-generation call. Implementations carry
// their own per-call timeout; the output is opaque bytes until it passes
// schema validation.
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

// Grant is a caller's entitlement for a specific job's artifacts.
type Grant struct {
	CallerID string
	JobID    string
}

// Entitlements answers grant questions for a caller. Resolution itself is
// an external concern; this core only consumes the booleans.
type Entitlements interface {
	// HasBlanketGrant reports a subscription-style grant covering every
	// artifact.
	HasBlanketGrant(ctx context.Context, callerID string) (bool, error)
	// HasGrant reports a grant for one specific job's artifacts.
	HasGrant(ctx context.Context, callerID, jobID string) (bool, error)
}

// DocumentRenderer renders a full, unredacted artifact into a document.
// It is only ever handed artifacts on behalf of entitled callers and has no
// access to caller identity or entitlement state.
type DocumentRenderer interface {
	Render(ctx context.Context, artifact Artifact) ([]byte, error)
}

// Hasher computes digests for URL deduplication and blob naming.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job and run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
