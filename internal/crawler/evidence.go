package crawler

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/ailens/domain-audit/internal/audit"
)

const (
	maxHeadings        = 20
	maxCTAs            = 10
	maxStructuredTypes = 20
	maxJSONLDScripts   = 30
	maxSnippets        = 2
	maxContactMatches  = 3
	snippetWindow      = 140
	maxSnippetBytes    = 260
)

// ctaWords flag link and button texts that ask the visitor to act.
var ctaWords = []string{
	"contact", "book", "schedule", "request", "get a quote", "quote",
	"demo", "call", "buy", "pricing", "plans", "start", "sign up",
	"signup", "trial",
}

var pricingNeedles = []string{
	"pricing", "price", "plans", "packages", "starting at",
	"$", "€", "£", "usd", "eur",
}

var contactNeedles = []string{"contact", "call", "email", "phone", "address"}

var (
	emailPattern = regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
)

// markupEvidence collects the evidence that needs the full document tree:
// language, headings, CTA texts, and JSON-LD types. Call it before the
// chrome elements are stripped, since JSON-LD lives in script tags.
func markupEvidence(doc *goquery.Document) audit.PageEvidence {
	ev := audit.PageEvidence{
		Language: strings.TrimSpace(doc.Find("html").AttrOr("lang", "")),
		H1:       strings.TrimSpace(doc.Find("h1").First().Text()),
	}

	seen := make(map[string]struct{})
	doc.Find("h2, h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		h := strings.TrimSpace(s.Text())
		key := strings.ToLower(h)
		if h == "" {
			return true
		}
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}
		ev.Headings = append(ev.Headings, h)
		return len(ev.Headings) < maxHeadings
	})

	ev.CTAs = ctaTexts(doc)
	ev.StructuredTypes = jsonLDTypes(doc)
	return ev
}

// ctaTexts returns the distinct call-to-action texts found on links and
// buttons.
func ctaTexts(doc *goquery.Document) []string {
	var ctas []string
	seen := make(map[string]struct{})
	doc.Find("a, button").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if len(text) < 2 || len(text) > 64 {
			return true
		}
		lower := strings.ToLower(text)
		match := false
		for _, w := range ctaWords {
			if strings.Contains(lower, w) {
				match = true
				break
			}
		}
		if !match {
			return true
		}
		if _, dup := seen[lower]; dup {
			return true
		}
		seen[lower] = struct{}{}
		ctas = append(ctas, text)
		return len(ctas) < maxCTAs
	})
	return ctas
}

// jsonLDTypes decodes embedded JSON-LD blocks and returns the distinct
// @type values. Arrays and @graph containers are walked one level deep.
func jsonLDTypes(doc *goquery.Document) []string {
	var types []string
	seen := make(map[string]struct{})
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" || len(types) >= maxStructuredTypes {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		types = append(types, t)
	}
	var walk func(v any)
	walk = func(v any) {
		switch node := v.(type) {
		case []any:
			for _, item := range node {
				walk(item)
			}
		case map[string]any:
			switch t := node["@type"].(type) {
			case string:
				add(t)
			case []any:
				for _, item := range t {
					if s, ok := item.(string); ok {
						add(s)
					}
				}
			}
			if graph, ok := node["@graph"]; ok {
				walk(graph)
			}
		}
	}

	scripts := 0
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		scripts++
		var v any
		if err := json.Unmarshal([]byte(s.Text()), &v); err != nil {
			return scripts < maxJSONLDScripts
		}
		walk(v)
		return scripts < maxJSONLDScripts && len(types) < maxStructuredTypes
	})
	return types
}

// detectSignals scans the visible text for pricing and contact evidence.
func detectSignals(text string) audit.PageSignals {
	lower := strings.ToLower(text)
	sig := audit.PageSignals{
		PricingSnippets: snippetsFor(text, lower, pricingNeedles),
		ContactSnippets: snippetsFor(text, lower, contactNeedles),
		Emails:          dedupeMatches(emailPattern.FindAllString(text, -1), maxContactMatches),
		Phones:          dedupeMatches(phonePattern.FindAllString(text, -1), maxContactMatches),
	}
	sig.PricingDetected = len(sig.PricingSnippets) > 0
	sig.ContactDetected = len(sig.ContactSnippets) > 0
	return sig
}

// snippetsFor cuts a window of text around the first occurrence of each
// needle. Slices land on rune boundaries.
func snippetsFor(text, lower string, needles []string) []string {
	var snips []string
	seen := make(map[string]struct{})
	for _, needle := range needles {
		if len(snips) >= maxSnippets {
			break
		}
		i := strings.Index(lower, needle)
		if i < 0 || i >= len(text) {
			continue
		}
		start := i - snippetWindow
		if start < 0 {
			start = 0
		}
		end := i + len(needle) + snippetWindow
		if end > len(text) {
			end = len(text)
		}
		for start > 0 && !utf8.RuneStart(text[start]) {
			start--
		}
		for end < len(text) && !utf8.RuneStart(text[end]) {
			end++
		}
		snip := strings.TrimSpace(text[start:end])
		if len(snip) > maxSnippetBytes {
			cut := maxSnippetBytes
			for cut > 0 && !utf8.RuneStart(snip[cut]) {
				cut--
			}
			snip = snip[:cut]
		}
		if _, dup := seen[snip]; dup || snip == "" {
			continue
		}
		seen[snip] = struct{}{}
		snips = append(snips, snip)
	}
	return snips
}

func dedupeMatches(matches []string, limit int) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range matches {
		m = strings.TrimSpace(m)
		key := strings.ToLower(m)
		if _, dup := seen[key]; dup || m == "" {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
		if len(out) >= limit {
			break
		}
	}
	return out
}
