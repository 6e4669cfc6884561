package generator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ailens/domain-audit/internal/audit"
)

const maxExcerptChars = 2500

const systemPrompt = `You are an AI-visibility auditor. You analyze how AI
assistants (ChatGPT, Gemini, Perplexity) perceive and recommend a business
based solely on its public website content.

Respond with a single JSON object and nothing else: no markdown fences, no
commentary. The object must have exactly these top-level keys: "visibility",
"interpretation", "readiness", "coverage", "reasons", "requirements",
"impact".

Schema:
- visibility: {"chatgpt"|"gemini"|"perplexity": {"percent": 0-100, "label":
  "poor"|"limited"|"strong"}, "headline": string}
- interpretation: {"summary": string, "confidence":
  "shallow"|"partial"|"strong", "based_on_pages": int, "detected_signals":
  [string, at most 8], "missing_elements": [{"key", "label", "impact",
  "severity": "critical"|"supporting"}]}
- readiness: 12 to 18 items, each {"element", "status":
  "present"|"weak"|"missing", "requires", "found", "impact",
  "evidence_refs": [int page numbers]}
- coverage: {"present", "weak", "missing", "total": ints}
- reasons: 3 to 8 items, each {"how_assistants_decide", "found_on_site",
  "consequence_today", "what_to_build", "evidence_refs": [int, at least 1]}
- requirements: 5 to 15 items, each {"name", "category":
  "clarity"|"comparability"|"trust"|"entity"|"risk", "why", "outcome"}
- impact: {"cost_of_inaction", "compounding_effect", "recommended_option",
  "closing_line"}

Each page carries extracted facts (language, headings, CTAs, structured
data types, pricing and contact signals) alongside its content excerpt.
Those facts were detected deterministically from the page markup; treat
them as ground truth and prefer citing them over inferring from the
excerpt. Ground every claim in the numbered pages; evidence_refs cite
their numbers. Be specific and quote the site where possible.`

// BuildPrompt assembles the first-attempt user prompt from the job and
// the sampled pages. Pages are numbered so the model can cite them in
// evidence_refs.
func BuildPrompt(job audit.Job, sample []audit.Page) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target domain: %s\n", job.TargetDomain)
	if len(job.ComparisonDomains) > 0 {
		fmt.Fprintf(&b, "Comparison domains: %s\n", strings.Join(job.ComparisonDomains, ", "))
	}
	if job.Locale != "" {
		fmt.Fprintf(&b, "Locale: %s\n", job.Locale)
	}
	if job.Context != "" {
		fmt.Fprintf(&b, "Business context provided by the requester: %s\n", job.Context)
	}

	b.WriteString("\nCrawled pages:\n")
	for i, p := range sample {
		fmt.Fprintf(&b, "\n[%d] %s", i+1, p.NormalizedURL)
		if !p.IsTarget {
			fmt.Fprintf(&b, " (comparison: %s)", p.Domain)
		}
		b.WriteString("\n")
		if p.Title != "" {
			fmt.Fprintf(&b, "Title: %s\n", p.Title)
		}
		if p.MetaDescription != "" {
			fmt.Fprintf(&b, "Meta: %s\n", p.MetaDescription)
		}
		writeEvidence(&b, p.Evidence)
		fmt.Fprintf(&b, "Content: %s\n", truncate(p.Text, maxExcerptChars))
	}

	b.WriteString("\nProduce the audit JSON now.")
	return b.String()
}

// writeEvidence renders a page's extracted facts as labeled lines,
// omitting anything the extractor did not find.
func writeEvidence(b *strings.Builder, ev audit.PageEvidence) {
	if ev.Language != "" {
		fmt.Fprintf(b, "Language: %s\n", ev.Language)
	}
	if ev.H1 != "" {
		fmt.Fprintf(b, "H1: %s\n", ev.H1)
	}
	if len(ev.Headings) > 0 {
		fmt.Fprintf(b, "Headings: %s\n", strings.Join(ev.Headings, " | "))
	}
	if len(ev.CTAs) > 0 {
		fmt.Fprintf(b, "CTAs: %s\n", strings.Join(ev.CTAs, ", "))
	}
	if len(ev.StructuredTypes) > 0 {
		fmt.Fprintf(b, "Structured data: %s\n", strings.Join(ev.StructuredTypes, ", "))
	}
	if ev.Signals.PricingDetected {
		fmt.Fprintf(b, "Pricing signals: %s\n", quoteJoin(ev.Signals.PricingSnippets))
	}
	if ev.Signals.ContactDetected {
		fmt.Fprintf(b, "Contact signals: %s\n", quoteJoin(ev.Signals.ContactSnippets))
	}
	if len(ev.Signals.Emails) > 0 {
		fmt.Fprintf(b, "Emails: %s\n", strings.Join(ev.Signals.Emails, ", "))
	}
	if len(ev.Signals.Phones) > 0 {
		fmt.Fprintf(b, "Phones: %s\n", strings.Join(ev.Signals.Phones, ", "))
	}
}

func quoteJoin(snippets []string) string {
	quoted := make([]string, len(snippets))
	for i, s := range snippets {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, "; ")
}

// BuildRepairPrompt asks for a corrected document, naming every failed
// field and echoing the previous output so the model fixes rather than
// regenerates.
func BuildRepairPrompt(previousOutput string, failedFields []string) string {
	var b strings.Builder
	b.WriteString("Your previous response did not match the required schema.\n")
	b.WriteString("Problems:\n")
	for _, f := range failedFields {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	b.WriteString("\nPrevious response:\n")
	b.WriteString(previousOutput)
	b.WriteString("\n\nReturn the complete corrected JSON object. Fix only the listed problems; keep everything else identical. No markdown fences, no commentary.")
	return b.String()
}

// stripCodeFences tolerates models that wrap the JSON in markdown fences
// despite instructions, and trims any prose around the outermost object.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
