package audit

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoPendingJobs is returned by ClaimNextPending when nothing is queued.
var ErrNoPendingJobs = errors.New("no pending jobs")

// ErrJobNotFound is returned by job store lookups for unknown IDs.
var ErrJobNotFound = errors.New("job not found")

// ErrArtifactNotFound is returned when a job has no stored artifact run.
var ErrArtifactNotFound = errors.New("artifact not found")

// ErrEntitlementUnknown marks an entitlement lookup failure. Readers treat
// it as non-fatal and fall back to the most restrictive tier.
var ErrEntitlementUnknown = errors.New("entitlement state unknown")

// CrawlExhaustedError is fatal: the target domain yielded zero usable
// pages. Individual page failures are absorbed inside the crawler.
type CrawlExhaustedError struct {
	Domain string
	Reason string
}

func (e *CrawlExhaustedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("crawl of %s produced no usable pages", e.Domain)
	}
	return fmt.Sprintf("crawl of %s produced no usable pages: %s", e.Domain, e.Reason)
}

// GenerationCallError wraps a failure of the external generation call
// itself (unreachable, HTTP error, timeout), as opposed to an invalid
// response body.
type GenerationCallError struct {
	Attempt int
	Err     error
}

func (e *GenerationCallError) Error() string {
	return fmt.Sprintf("generation call failed (attempt %d): %v", e.Attempt, e.Err)
}

func (e *GenerationCallError) Unwrap() error { return e.Err }

// SchemaValidationError reports an artifact payload that is still invalid
// after the final repair attempt. Fields lists the failing field paths; the
// list drives repair prompts and stays internal — callers see only a
// sanitized stage error.
type SchemaValidationError struct {
	Attempts int
	Fields   []string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("artifact failed schema validation after %d attempts: %s",
		e.Attempts, strings.Join(e.Fields, ", "))
}
