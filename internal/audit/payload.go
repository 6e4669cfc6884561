package audit

// Payload is the structured body of an artifact. Every field carries
// validation tags; an instance only ever reaches the store after passing
// generator.Validate, so downstream readers may treat all sections as
// present and in-range.
type Payload struct {
	Visibility     Visibility      `json:"visibility" validate:"required"`
	Interpretation Interpretation  `json:"interpretation" validate:"required"`
	Readiness      []ReadinessItem `json:"readiness" validate:"required,min=12,max=18,dive"`
	Coverage       CoverageScore   `json:"coverage"`
	Reasons        []Reason        `json:"reasons" validate:"required,min=3,max=8,dive"`
	Requirements   []Requirement   `json:"requirements" validate:"required,min=5,max=15,dive"`
	Impact         Impact          `json:"impact" validate:"required"`
}

// Visibility estimates how prominently AI assistants surface the domain.
type Visibility struct {
	ChatGPT    AssistantScore `json:"chatgpt" validate:"required"`
	Gemini     AssistantScore `json:"gemini" validate:"required"`
	Perplexity AssistantScore `json:"perplexity" validate:"required"`
	Headline   string         `json:"headline" validate:"required"`
}

// AssistantScore is a per-assistant visibility estimate.
type AssistantScore struct {
	Percent int    `json:"percent" validate:"min=0,max=100"`
	Label   string `json:"label" validate:"required,oneof=poor limited strong"`
}

// Interpretation summarizes what an assistant can objectively understand
// about the business from the crawled pages.
type Interpretation struct {
	Summary         string           `json:"summary" validate:"required"`
	Confidence      string           `json:"confidence" validate:"required,oneof=shallow partial strong"`
	BasedOnPages    int              `json:"based_on_pages" validate:"min=0"`
	DetectedSignals []string         `json:"detected_signals" validate:"max=8"`
	MissingElements []MissingElement `json:"missing_elements" validate:"dive"`
}

// MissingElement names a decision-relevant piece of information the site
// does not provide.
type MissingElement struct {
	Key      string `json:"key" validate:"required"`
	Label    string `json:"label" validate:"required"`
	Impact   string `json:"impact" validate:"required"`
	Severity string `json:"severity" validate:"required,oneof=critical supporting"`
}

// ReadinessItem is one line of the decision-readiness audit.
type ReadinessItem struct {
	Element      string `json:"element" validate:"required"`
	Status       string `json:"status" validate:"required,oneof=present weak missing"`
	Requires     string `json:"requires" validate:"required"`
	Found        string `json:"found" validate:"required"`
	Impact       string `json:"impact" validate:"required"`
	EvidenceRefs []int  `json:"evidence_refs"`
}

// Readiness statuses.
const (
	StatusPresent = "present"
	StatusWeak    = "weak"
	StatusMissing = "missing"
)

// CoverageScore is the summary breakdown of the readiness list. It is
// always recomputed from Readiness before persistence; a generator-supplied
// value is never trusted.
type CoverageScore struct {
	Present int `json:"present" validate:"min=0"`
	Weak    int `json:"weak" validate:"min=0"`
	Missing int `json:"missing" validate:"min=0"`
	Total   int `json:"total" validate:"min=0"`
}

// Reason explains one way competitors win assistant recommendations.
type Reason struct {
	HowAssistantsDecide string `json:"how_assistants_decide" validate:"required"`
	FoundOnSite         string `json:"found_on_site" validate:"required"`
	ConsequenceToday    string `json:"consequence_today" validate:"required"`
	WhatToBuild         string `json:"what_to_build" validate:"required"`
	EvidenceRefs        []int  `json:"evidence_refs" validate:"min=1"`
}

// Requirement is a concrete build item that would change assistant behavior.
type Requirement struct {
	Name     string `json:"name" validate:"required"`
	Category string `json:"category" validate:"required,oneof=clarity comparability trust entity risk"`
	Why      string `json:"why" validate:"required"`
	Outcome  string `json:"outcome" validate:"required"`
}

// Impact is the closing business-impact section.
type Impact struct {
	CostOfInaction    string `json:"cost_of_inaction" validate:"required"`
	CompoundingEffect string `json:"compounding_effect" validate:"required"`
	RecommendedOption string `json:"recommended_option" validate:"required"`
	ClosingLine       string `json:"closing_line" validate:"required"`
}

// SectionIDs returned by Payload sections, in display order. The access
// gate allow-lists against these names; a section absent from a tier's
// allow-list is omitted from the view entirely.
const (
	SectionVisibility     = "visibility"
	SectionInterpretation = "interpretation"
	SectionReadiness      = "readiness"
	SectionCoverage       = "coverage"
	SectionReasons        = "reasons"
	SectionRequirements   = "requirements"
	SectionImpact         = "impact"
)
