// Package generator turns a job's crawled pages into a schema-validated
// audit artifact. It owns sampling, prompting, the bounded repair loop,
// and the final reconciliation of aggregate fields.
package generator

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/ailens/domain-audit/internal/audit"
	"github.com/ailens/domain-audit/internal/config"
)

// Generator produces one artifact run per call.
type Generator struct {
	cfg    config.GeneratorConfig
	text   audit.TextGenerator
	ids    audit.IDGenerator
	clock  audit.Clock
	logger *zap.Logger
}

// New returns a Generator.
func New(cfg config.GeneratorConfig, text audit.TextGenerator, ids audit.IDGenerator, clock audit.Clock, logger *zap.Logger) *Generator {
	return &Generator{cfg: cfg, text: text, ids: ids, clock: clock, logger: logger}
}

// Generate samples pages, calls the text generator, and validates the
// response. Invalid output triggers repair attempts that name the failed
// fields and echo the previous response; after cfg.MaxAttempts the run
// fails with a SchemaValidationError. A transport-level call failure
// aborts immediately with a GenerationCallError.
func (g *Generator) Generate(ctx context.Context, job audit.Job, pages []audit.Page) (audit.Artifact, error) {
	sample := Sample(pages, g.cfg.SamplePagesTarget, g.cfg.SamplePagesPerComp)
	if len(sample) == 0 {
		return audit.Artifact{}, fmt.Errorf("no pages to analyze for job %s", job.ID)
	}
	targetPages := 0
	urls := make([]string, len(sample))
	for i, p := range sample {
		urls[i] = p.NormalizedURL
		if p.IsTarget {
			targetPages++
		}
	}

	log := g.logger.With(zap.String("job_id", job.ID), zap.String("model", g.text.Model()))
	prompt := BuildPrompt(job, sample)

	var failedFields []string
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout())
		raw, err := g.text.Generate(callCtx, systemPrompt, prompt)
		cancel()
		if err != nil {
			return audit.Artifact{}, &audit.GenerationCallError{Attempt: attempt, Err: err}
		}

		payload, problems := parsePayload(raw)
		if len(problems) == 0 {
			Reconcile(payload, targetPages)
			runID, err := g.ids.NewID()
			if err != nil {
				return audit.Artifact{}, fmt.Errorf("generate run id: %w", err)
			}
			log.Info("artifact generated", zap.Int("attempt", attempt), zap.Int("sampled_pages", len(sample)))
			return audit.Artifact{
				JobID:         job.ID,
				RunID:         runID,
				SchemaVersion: audit.SchemaVersion,
				Model:         g.text.Model(),
				SampledURLs:   urls,
				Payload:       *payload,
				Created:       g.clock.Now(),
			}, nil
		}

		failedFields = problems
		log.Warn("artifact failed validation",
			zap.Int("attempt", attempt),
			zap.Int("problems", len(problems)))
		prompt = BuildRepairPrompt(raw, problems)
	}

	return audit.Artifact{}, &audit.SchemaValidationError{Attempts: g.cfg.MaxAttempts, Fields: failedFields}
}

// parsePayload decodes one model response. It returns either a payload or
// the list of problems to feed the repair prompt.
func parsePayload(raw string) (*audit.Payload, []string) {
	cleaned := stripCodeFences(raw)
	var p audit.Payload
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return nil, []string{fmt.Sprintf("response is not valid JSON: %v", err)}
	}
	if problems := Validate(&p); len(problems) > 0 {
		return nil, problems
	}
	return &p, nil
}
