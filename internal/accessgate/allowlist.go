package accessgate

import "github.com/ailens/domain-audit/internal/audit"

// knownSections is the closed set of payload sections the gate will ever
// emit, in display order. A section the gate does not know about is never
// copied into a view, whatever tier asks.
var knownSections = []string{
	audit.SectionVisibility,
	audit.SectionInterpretation,
	audit.SectionReadiness,
	audit.SectionCoverage,
	audit.SectionReasons,
	audit.SectionRequirements,
	audit.SectionImpact,
}

// paidSections are withheld from everyone below the entitled tier.
var paidSections = map[string]bool{
	audit.SectionRequirements: true,
	audit.SectionImpact:       true,
}

// allowed reports whether a tier may see a section in full. Anonymous
// callers additionally get an interpretation teaser, handled in View.
func allowed(tier Tier, section string) bool {
	switch tier {
	case TierEntitled:
		return true
	case TierRegistered:
		return !paidSections[section]
	case TierAnonymous:
		return section == audit.SectionVisibility
	default:
		return false
	}
}
