package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ailens/domain-audit/internal/audit"
)

func pageFor(domain, url string, target bool, tier audit.PriorityTier, words int) audit.Page {
	return audit.Page{
		NormalizedURL: url,
		Domain:        domain,
		IsTarget:      target,
		Priority:      tier,
		WordCount:     words,
	}
}

func TestSampleOrdersByTierThenLength(t *testing.T) {
	pages := []audit.Page{
		pageFor("acme.com", "https://acme.com/blog", true, audit.TierMedium, 900),
		pageFor("acme.com", "https://acme.com/", true, audit.TierHomepage, 300),
		pageFor("acme.com", "https://acme.com/pricing", true, audit.TierHigh, 200),
		pageFor("acme.com", "https://acme.com/about", true, audit.TierHigh, 500),
	}

	sample := Sample(pages, 3, 3)
	require.Len(t, sample, 3)
	assert.Equal(t, "https://acme.com/", sample[0].NormalizedURL)
	assert.Equal(t, "https://acme.com/about", sample[1].NormalizedURL)
	assert.Equal(t, "https://acme.com/pricing", sample[2].NormalizedURL)
}

func TestSampleIsDeterministic(t *testing.T) {
	a := []audit.Page{
		pageFor("acme.com", "https://acme.com/b", true, audit.TierLow, 100),
		pageFor("acme.com", "https://acme.com/a", true, audit.TierLow, 100),
		pageFor("acme.com", "https://acme.com/c", true, audit.TierLow, 100),
	}
	b := []audit.Page{a[2], a[0], a[1]}

	sa := Sample(a, 2, 2)
	sb := Sample(b, 2, 2)
	assert.Equal(t, sa, sb)
	assert.Equal(t, "https://acme.com/a", sa[0].NormalizedURL)
}

func TestSampleCapsPerComparisonDomain(t *testing.T) {
	pages := []audit.Page{
		pageFor("acme.com", "https://acme.com/", true, audit.TierHomepage, 100),
		pageFor("rival.com", "https://rival.com/", false, audit.TierHomepage, 100),
		pageFor("rival.com", "https://rival.com/pricing", false, audit.TierHigh, 100),
		pageFor("rival.com", "https://rival.com/blog", false, audit.TierMedium, 100),
		pageFor("zeta.com", "https://zeta.com/", false, audit.TierHomepage, 100),
	}

	sample := Sample(pages, 10, 2)
	require.Len(t, sample, 4)
	// target first, then comparison domains alphabetically
	assert.True(t, sample[0].IsTarget)
	assert.Equal(t, "rival.com", sample[1].Domain)
	assert.Equal(t, "rival.com", sample[2].Domain)
	assert.Equal(t, "zeta.com", sample[3].Domain)
}
