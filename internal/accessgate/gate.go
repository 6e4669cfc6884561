// Package accessgate redacts artifact views by caller tier. Redaction is
// an allow-list copy: a view only ever contains sections explicitly
// granted to the tier, so new payload sections stay hidden until someone
// grants them.
package accessgate

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/ailens/domain-audit/internal/audit"
)

// Tier is a caller's access level, most restrictive first.
type Tier int

const (
	TierAnonymous Tier = iota
	TierRegistered
	TierEntitled
)

// AccessState is the wire name of a tier.
func (t Tier) AccessState() string {
	switch t {
	case TierEntitled:
		return "unlocked"
	case TierRegistered:
		return "locked"
	default:
		return "preview"
	}
}

// View is a redacted, per-request rendering of an artifact. It is never
// cached; every read recomputes it from the stored payload.
type View struct {
	AccessState      string                     `json:"access_state"`
	RedactedSections []string                   `json:"redacted_section_ids"`
	Sections         map[string]json.RawMessage `json:"view"`
}

// Gate resolves caller tiers and builds redacted views.
type Gate struct {
	entitlements audit.Entitlements
	logger       *zap.Logger
}

// New returns a Gate.
func New(entitlements audit.Entitlements, logger *zap.Logger) *Gate {
	return &Gate{entitlements: entitlements, logger: logger}
}

// Resolve maps a caller to a tier: blanket grant, then per-job grant,
// then registered for any identified caller, else anonymous. A failed
// entitlement lookup never fails the read; the caller falls back to the
// most restrictive tier its identity allows.
func (g *Gate) Resolve(ctx context.Context, caller audit.Caller, jobID string) Tier {
	if !caller.Identified {
		return TierAnonymous
	}
	blanket, err := g.entitlements.HasBlanketGrant(ctx, caller.ID)
	if err != nil {
		g.warnUnknown(caller, jobID, err)
		return TierRegistered
	}
	if blanket {
		return TierEntitled
	}
	granted, err := g.entitlements.HasGrant(ctx, caller.ID, jobID)
	if err != nil {
		g.warnUnknown(caller, jobID, err)
		return TierRegistered
	}
	if granted {
		return TierEntitled
	}
	return TierRegistered
}

func (g *Gate) warnUnknown(caller audit.Caller, jobID string, err error) {
	g.logger.Warn("entitlement lookup failed, degrading tier",
		zap.String("job_id", jobID),
		zap.String("caller_id", caller.ID),
		zap.Error(fmt.Errorf("%w: %v", audit.ErrEntitlementUnknown, err)))
}

// BuildView produces the tier's view of an artifact. The input artifact
// is read through its JSON form and never mutated; restricted sections
// are absent from the result, not null.
func (g *Gate) BuildView(artifact audit.Artifact, tier Tier) (View, error) {
	raw, err := json.Marshal(artifact.Payload)
	if err != nil {
		return View{}, fmt.Errorf("marshal payload: %w", err)
	}
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(raw, &sections); err != nil {
		return View{}, fmt.Errorf("decode payload sections: %w", err)
	}

	view := View{
		AccessState:      tier.AccessState(),
		RedactedSections: []string{},
		Sections:         make(map[string]json.RawMessage),
	}
	for _, key := range knownSections {
		if allowed(tier, key) {
			if v, ok := sections[key]; ok {
				view.Sections[key] = v
			}
			continue
		}
		view.RedactedSections = append(view.RedactedSections, key)
	}

	if tier == TierAnonymous {
		teaser, err := json.Marshal(struct {
			Summary    string `json:"summary"`
			Confidence string `json:"confidence"`
		}{
			Summary:    artifact.Payload.Interpretation.Summary,
			Confidence: artifact.Payload.Interpretation.Confidence,
		})
		if err != nil {
			return View{}, fmt.Errorf("marshal teaser: %w", err)
		}
		view.Sections[audit.SectionInterpretation] = teaser
	}
	return view, nil
}
