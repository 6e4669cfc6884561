package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ailens/domain-audit/internal/audit"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *JobStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewJobStoreWithPool(mock, fixedClock{t: testNow})
	require.NoError(t, err)
	return mock, store
}

func jobRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "target_domain", "comparison_domains", "locale", "context",
		"status", "stage", "progress", "error_text", "pages_crawled",
		"created_at", "updated_at",
	})
}

func TestCreateJobInsertsRow(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("INSERT INTO audit_jobs").
		WithArgs("job-1", "acme.com", []byte(`["rival.com"]`), "en", "widgets",
			audit.JobStatusPending, testNow, testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.CreateJob(context.Background(), audit.Job{
		ID:                "job-1",
		TargetDomain:      "acme.com",
		ComparisonDomains: []string{"rival.com"},
		Locale:            "en",
		Context:           "widgets",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimNextPendingReturnsJob(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("UPDATE audit_jobs").
		WithArgs(audit.JobStatusCrawling, audit.StageCrawling, testNow, audit.JobStatusPending).
		WillReturnRows(jobRows().AddRow(
			"job-1", "acme.com", []byte(`[]`), "en", "",
			audit.JobStatusCrawling, audit.StageCrawling, 0, "", 0,
			testNow, testNow))

	job, err := store.ClaimNextPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, audit.JobStatusCrawling, job.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimNextPendingEmptyQueue(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("UPDATE audit_jobs").
		WithArgs(audit.JobStatusCrawling, audit.StageCrawling, testNow, audit.JobStatusPending).
		WillReturnRows(jobRows())

	_, err := store.ClaimNextPending(context.Background())
	assert.ErrorIs(t, err, audit.ErrNoPendingJobs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailedStoresTaggedError(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("UPDATE audit_jobs").
		WithArgs(audit.JobStatusFailed, audit.StageAnalyzing, "[analyzing] generation failed",
			testNow, "job-1", audit.JobStatusCompleted).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.MarkFailed(context.Background(), "job-1", audit.StageAnalyzing, "generation failed")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStageUnknownJob(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("UPDATE audit_jobs").
		WithArgs(audit.StageAnalyzing, audit.JobStatusAnalyzing, 60, testNow, "nope",
			audit.JobStatusCompleted, audit.JobStatusFailed).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateStage(context.Background(), "nope", audit.StageAnalyzing, audit.JobStatusAnalyzing, 60)
	assert.ErrorIs(t, err, audit.ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetForRetryResets(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("UPDATE audit_jobs").
		WithArgs(audit.JobStatusPending, testNow, "job-1",
			audit.JobStatusFailed, audit.JobStatusCompleted).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM audit_pages").
		WithArgs("job-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	require.NoError(t, store.ResetForRetry(context.Background(), "job-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetForRetryNoOpWhileRunning(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("UPDATE audit_jobs").
		WithArgs(audit.JobStatusPending, testNow, "job-1",
			audit.JobStatusFailed, audit.JobStatusCompleted).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	require.NoError(t, store.ResetForRetry(context.Background(), "job-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetForRetryUnknownJob(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("UPDATE audit_jobs").
		WithArgs(audit.JobStatusPending, testNow, "nope",
			audit.JobStatusFailed, audit.JobStatusCompleted).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	err := store.ResetForRetry(context.Background(), "nope")
	assert.ErrorIs(t, err, audit.ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAndLatestArtifact(t *testing.T) {
	mock, store := newMockStore(t)

	artifact := audit.Artifact{
		JobID:         "job-1",
		RunID:         "run-1",
		SchemaVersion: audit.SchemaVersion,
		Model:         "test-model",
		SampledURLs:   []string{"https://acme.com/"},
		Created:       testNow,
	}
	artifact.Payload.Visibility.Headline = "hi"

	mock.ExpectExec("INSERT INTO audit_artifacts").
		WithArgs(artifact.JobID, artifact.RunID, artifact.SchemaVersion, artifact.Model,
			pgxmock.AnyArg(), pgxmock.AnyArg(), testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.SaveArtifact(context.Background(), artifact))

	mock.ExpectQuery("SELECT job_id, run_id").
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"job_id", "run_id", "schema_version", "model", "sampled_urls", "payload", "created_at",
		}).AddRow("job-1", "run-1", audit.SchemaVersion, "test-model",
			[]byte(`["https://acme.com/"]`), []byte(`{"visibility":{"headline":"hi"}}`), testNow))

	got, err := store.LatestArtifact(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, []string{"https://acme.com/"}, got.SampledURLs)
	assert.Equal(t, "hi", got.Payload.Visibility.Headline)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestArtifactNotFound(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT job_id, run_id").
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"job_id", "run_id", "schema_version", "model", "sampled_urls", "payload", "created_at",
		}))

	_, err := store.LatestArtifact(context.Background(), "job-1")
	assert.ErrorIs(t, err, audit.ErrArtifactNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
