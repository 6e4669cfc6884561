package crawler

import "github.com/ailens/domain-audit/internal/audit"

// frontier is a tiered FIFO of URLs waiting to be fetched. Pop always
// drains the most valuable non-empty tier, so homepage and commercial
// pages get crawled before the page budget runs out.
type frontier struct {
	tiers [4][]string
}

func newFrontier() *frontier {
	return &frontier{}
}

func (f *frontier) Push(normalizedURL string, tier audit.PriorityTier) {
	i := int(tier)
	if i < 0 || i >= len(f.tiers) {
		i = len(f.tiers) - 1
	}
	f.tiers[i] = append(f.tiers[i], normalizedURL)
}

func (f *frontier) Pop() (string, audit.PriorityTier, bool) {
	for i := range f.tiers {
		if len(f.tiers[i]) == 0 {
			continue
		}
		u := f.tiers[i][0]
		f.tiers[i] = f.tiers[i][1:]
		return u, audit.PriorityTier(i), true
	}
	return "", 0, false
}

func (f *frontier) Len() int {
	n := 0
	for i := range f.tiers {
		n += len(f.tiers[i])
	}
	return n
}
