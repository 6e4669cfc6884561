package crawler

import (
	"net/url"
	"strings"

	"github.com/ailens/domain-audit/internal/audit"
)

var highValueSegments = []string{
	"about", "pricing", "price", "services", "products", "solutions",
	"case-stud", "portfolio", "customers", "testimonial", "reviews",
}

var mediumValueSegments = []string{
	"faq", "contact", "blog", "features", "resources", "how-it-works",
	"use-case", "industries", "team",
}

// Classify maps a normalized URL to a crawl priority tier based on its
// path. The homepage always wins; commercial pages (pricing, services,
// case studies) beat informational ones (blog, FAQ), and everything else
// trails.
func Classify(normalizedURL string) audit.PriorityTier {
	u, err := url.Parse(normalizedURL)
	if err != nil {
		return audit.TierLow
	}
	path := strings.ToLower(u.Path)
	if path == "" || path == "/" {
		return audit.TierHomepage
	}
	for _, seg := range highValueSegments {
		if strings.Contains(path, seg) {
			return audit.TierHigh
		}
	}
	for _, seg := range mediumValueSegments {
		if strings.Contains(path, seg) {
			return audit.TierMedium
		}
	}
	return audit.TierLow
}
