package generator

import (
	"sort"

	"github.com/ailens/domain-audit/internal/audit"
)

// Sample selects the pages that feed the generation prompt: up to targetN
// pages from the target domain and up to perCompN from each comparison
// domain. Selection is deterministic — priority tier first, then word
// count descending, then normalized URL — so reruns over the same crawl
// produce the same prompt.
func Sample(pages []audit.Page, targetN, perCompN int) []audit.Page {
	byDomain := make(map[string][]audit.Page)
	var target []audit.Page
	for _, p := range pages {
		if p.IsTarget {
			target = append(target, p)
			continue
		}
		byDomain[p.Domain] = append(byDomain[p.Domain], p)
	}

	sample := take(target, targetN)

	domains := make([]string, 0, len(byDomain))
	for d := range byDomain {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	for _, d := range domains {
		sample = append(sample, take(byDomain[d], perCompN)...)
	}
	return sample
}

func take(pages []audit.Page, n int) []audit.Page {
	sorted := make([]audit.Page, len(pages))
	copy(sorted, pages)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.WordCount != b.WordCount {
			return a.WordCount > b.WordCount
		}
		return a.NormalizedURL < b.NormalizedURL
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}
