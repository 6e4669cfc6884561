// Package audit defines the core types and interfaces of the domain audit
// pipeline: jobs, crawled pages, validated artifacts, and the contracts the
// crawler, generator, stores, and access gate implement.
package audit

import "time"

// JobStatus represents the lifecycle state of an audit job.
type JobStatus string

// Job status values persisted in the job store. The legal sequence is
// pending → crawling → analyzing → assembling → completed; failed is
// reachable from any non-terminal state and nothing else.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusCrawling   JobStatus = "crawling"
	JobStatusAnalyzing  JobStatus = "analyzing"
	JobStatusAssembling JobStatus = "assembling"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether a status admits no further transitions
// (other than an explicit retry reset).
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Running reports whether a worker currently owns the job.
func (s JobStatus) Running() bool {
	switch s {
	case JobStatusCrawling, JobStatusAnalyzing, JobStatusAssembling:
		return true
	default:
		return false
	}
}

// Stage names tag progress updates and error messages with the pipeline
// step that produced them.
type Stage string

// Pipeline stages, in execution order.
const (
	StageCrawling   Stage = "crawling"
	StageAnalyzing  Stage = "analyzing"
	StageAssembling Stage = "assembling"
)

// Job is the persisted record of one audit request.
type Job struct {
	ID                string    `json:"id"`
	TargetDomain      string    `json:"target_domain"`
	ComparisonDomains []string  `json:"comparison_domains,omitempty"`
	Locale            string    `json:"locale"`
	Context           string    `json:"context,omitempty"`
	Status            JobStatus `json:"status"`
	Stage             Stage     `json:"stage,omitempty"`
	Progress          int       `json:"progress"`
	ErrorText         string    `json:"error_text,omitempty"`
	PagesCrawled      int       `json:"pages_crawled"`
	Created           time.Time `json:"created_at"`
	Updated           time.Time `json:"updated_at"`
}

// PriorityTier classifies a URL by how informative its page is expected
// to be. Lower tiers are crawled and sampled first.
type PriorityTier int

// Priority tiers, best first.
const (
	TierHomepage PriorityTier = 0 // the domain root
	TierHigh     PriorityTier = 1 // about, pricing, services, case studies
	TierMedium   PriorityTier = 2 // faq, contact, blog, features
	TierLow      PriorityTier = 3 // everything else
)

func (t PriorityTier) String() string {
	switch t {
	case TierHomepage:
		return "homepage"
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return "unknown"
	}
}

// PageSignals are the commercial signals detected deterministically in a
// page's visible text.
type PageSignals struct {
	PricingDetected bool     `json:"pricing_detected"`
	PricingSnippets []string `json:"pricing_snippets,omitempty"`
	ContactDetected bool     `json:"contact_detected"`
	ContactSnippets []string `json:"contact_snippets,omitempty"`
	Emails          []string `json:"emails,omitempty"`
	Phones          []string `json:"phones,omitempty"`
}

// PageEvidence is the catalog of facts lifted from a page's markup while
// the HTML is still in memory. The generator feeds it to the model as
// ground truth so claims cite extracted facts, not guesses.
type PageEvidence struct {
	Language        string      `json:"language,omitempty"`
	H1              string      `json:"h1,omitempty"`
	Headings        []string    `json:"headings,omitempty"`
	CTAs            []string    `json:"ctas,omitempty"`
	StructuredTypes []string    `json:"structured_data_types,omitempty"`
	Signals         PageSignals `json:"signals"`
}

// Page is persisted for each fetched page during the crawling stage and is
// read-only afterward.
type Page struct {
	JobID           string       `json:"job_id"`
	URL             string       `json:"url"`
	NormalizedURL   string       `json:"normalized_url"`
	URLHash         string       `json:"url_hash"`
	Domain          string       `json:"domain"`
	IsTarget        bool         `json:"is_target"`
	HTML            string       `json:"-"`
	Text            string       `json:"text,omitempty"`
	Title           string       `json:"title,omitempty"`
	MetaDescription string       `json:"meta_description,omitempty"`
	Evidence        PageEvidence `json:"evidence"`
	WordCount       int          `json:"word_count"`
	Priority        PriorityTier `json:"priority"`
	StatusCode      int          `json:"status_code"`
	BlobURI         string       `json:"blob_uri,omitempty"`
	FetchedAt       time.Time    `json:"fetched_at"`
}

// SchemaVersion identifies the artifact payload shape produced by the
// current generator. Bump when Payload gains or loses sections.
const SchemaVersion = 2

// Artifact is the validated output of one successful pipeline run.
// A row is immutable once written; a retry of the job writes a new row
// with a fresh RunID.
type Artifact struct {
	JobID         string    `json:"job_id"`
	RunID         string    `json:"run_id"`
	SchemaVersion int       `json:"schema_version"`
	Model         string    `json:"model"`
	SampledURLs   []string  `json:"sampled_urls"`
	Payload       Payload   `json:"payload"`
	Created       time.Time `json:"created_at"`
}

// Caller is the opaque identity attached to a read request. The auth
// collaborator validates tokens upstream; this core only distinguishes
// "identified" from "anonymous" and passes the ID to the entitlement store.
type Caller struct {
	ID         string
	Identified bool
}
