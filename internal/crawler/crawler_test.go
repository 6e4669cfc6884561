package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ailens/domain-audit/internal/audit"
	"github.com/ailens/domain-audit/internal/hash/sha256"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// stubFetcher serves canned HTML keyed by normalized URL and records
// every URL it was asked for.
type stubFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	robots  string
	sitemap string
	fetched []string
}

func (f *stubFetcher) Fetch(_ context.Context, rawURL string) (*FetchResult, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, rawURL)
	f.mu.Unlock()

	if strings.HasSuffix(rawURL, "/robots.txt") {
		if f.robots == "" {
			return nil, errors.New("robots.txt not found")
		}
		return &FetchResult{URL: rawURL, FinalURL: rawURL, StatusCode: 200, Body: []byte(f.robots)}, nil
	}
	if strings.HasSuffix(rawURL, "/sitemap.xml") {
		if f.sitemap == "" {
			return nil, errors.New("sitemap not found")
		}
		return &FetchResult{URL: rawURL, FinalURL: rawURL, StatusCode: 200, Body: []byte(f.sitemap)}, nil
	}
	html, ok := f.pages[rawURL]
	if !ok {
		return nil, fmt.Errorf("fetch %s: connection refused", rawURL)
	}
	return &FetchResult{
		URL:         rawURL,
		FinalURL:    rawURL,
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(html),
	}, nil
}

func testCrawler(f Fetcher, concurrency int) *Crawler {
	return New(f, sha256.New(), fixedClock{t: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		concurrency, 30*time.Second, true, zap.NewNop())
}

func page(title, body string, links ...string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>" + title + "</title>")
	b.WriteString(`<meta name="description" content="desc of ` + title + `">`)
	b.WriteString("</head><body><p>" + body + "</p>")
	for _, l := range links {
		b.WriteString(`<a href="` + l + `">link</a>`)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func TestCrawlPrefersHighValuePages(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://example.com/": page("Home", "welcome to acme",
			"/blog", "/pricing", "/about", "https://other.com/external", "#frag", "mailto:x@example.com"),
		"https://example.com/pricing": page("Pricing", "plans start at ten dollars"),
		"https://example.com/about":   page("About", "we are acme"),
		"https://example.com/blog":    page("Blog", "posts"),
	}}

	pages, err := testCrawler(f, 2).Crawl(context.Background(), "job-1", "Example.com", true, 3)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	got := make([]string, len(pages))
	for i, p := range pages {
		got[i] = p.NormalizedURL
	}
	// the two tier-1 pages beat the blog to the page budget
	assert.ElementsMatch(t, []string{
		"https://example.com/",
		"https://example.com/pricing",
		"https://example.com/about",
	}, got)

	home := pages[0]
	assert.Equal(t, "job-1", home.JobID)
	assert.Equal(t, "example.com", home.Domain)
	assert.True(t, home.IsTarget)
	assert.Equal(t, audit.TierHomepage, home.Priority)
	assert.Equal(t, "Home", home.Title)
	assert.Equal(t, "desc of Home", home.MetaDescription)
	assert.NotEmpty(t, home.URLHash)
	assert.Equal(t, 200, home.StatusCode)
	assert.Positive(t, home.WordCount)
}

func TestCrawlDedupesDiscoveredURLs(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://example.com/": page("Home", "hi",
			"/pricing", "/pricing/", "http://example.com/pricing", "/pricing#plans"),
		"https://example.com/pricing": page("Pricing", "plans"),
	}}

	pages, err := testCrawler(f, 4).Crawl(context.Background(), "job-1", "example.com", true, 10)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	var pricingFetches int
	for _, u := range f.fetched {
		if u == "https://example.com/pricing" {
			pricingFetches++
		}
	}
	assert.Equal(t, 1, pricingFetches)
}

func TestCrawlSkipsBinaryAssetLinks(t *testing.T) {
	f := &stubFetcher{
		pages: map[string]string{
			"https://example.com/": page("Home", "hi",
				"/about", "/brochure.pdf", "/logo.png", "/archive.zip"),
			"https://example.com/about": page("About", "team"),
		},
		sitemap: `<?xml version="1.0"?><urlset><url><loc>https://example.com/catalog.pdf</loc></url></urlset>`,
	}

	pages, err := testCrawler(f, 2).Crawl(context.Background(), "job-1", "example.com", true, 10)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	for _, u := range f.fetched {
		assert.NotContains(t, u, ".pdf")
		assert.NotContains(t, u, ".png")
		assert.NotContains(t, u, ".zip")
	}
}

func TestCrawlStopsAtPageBudget(t *testing.T) {
	pages := map[string]string{}
	links := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		links = append(links, fmt.Sprintf("/p%d", i))
		pages[fmt.Sprintf("https://example.com/p%d", i)] = page(fmt.Sprintf("P%d", i), "content")
	}
	pages["https://example.com/"] = page("Home", "hi", links...)
	f := &stubFetcher{pages: pages}

	got, err := testCrawler(f, 3).Crawl(context.Background(), "job-1", "example.com", true, 5)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestCrawlTargetExhausted(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{}}

	_, err := testCrawler(f, 2).Crawl(context.Background(), "job-1", "example.com", true, 10)
	var exhausted *audit.CrawlExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "example.com", exhausted.Domain)
}

func TestCrawlComparisonDegradesToEmpty(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{}}

	pages, err := testCrawler(f, 2).Crawl(context.Background(), "job-1", "example.com", false, 10)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestCrawlHonorsRobotsBlanketDisallow(t *testing.T) {
	f := &stubFetcher{
		robots: "User-agent: *\nDisallow: /\n",
		pages: map[string]string{
			"https://example.com/": page("Home", "hi"),
		},
	}

	_, err := testCrawler(f, 2).Crawl(context.Background(), "job-1", "example.com", true, 10)
	var exhausted *audit.CrawlExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Contains(t, exhausted.Reason, "robots")

	pages, err := testCrawler(f, 2).Crawl(context.Background(), "job-1", "example.com", false, 10)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestCrawlRobotsDisabled(t *testing.T) {
	f := &stubFetcher{
		robots: "User-agent: *\nDisallow: /\n",
		pages: map[string]string{
			"https://example.com/": page("Home", "hi"),
		},
	}

	c := New(f, sha256.New(), fixedClock{t: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		2, 30*time.Second, false, zap.NewNop())
	pages, err := c.Crawl(context.Background(), "job-1", "example.com", true, 10)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestCrawlPartialRobotsDoesNotBlock(t *testing.T) {
	f := &stubFetcher{
		robots: "User-agent: *\nDisallow: /admin\n",
		pages: map[string]string{
			"https://example.com/": page("Home", "hi"),
		},
	}

	pages, err := testCrawler(f, 2).Crawl(context.Background(), "job-1", "example.com", true, 10)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestCrawlSeedsFromSitemap(t *testing.T) {
	f := &stubFetcher{
		sitemap: `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/services</loc></url>
  <url><loc>https://example.com/hidden-gem</loc></url>
  <url><loc>https://other.com/not-ours</loc></url>
</urlset>`,
		pages: map[string]string{
			"https://example.com/":           page("Home", "hi"),
			"https://example.com/services":   page("Services", "what we do"),
			"https://example.com/hidden-gem": page("Gem", "unlinked page"),
		},
	}

	pages, err := testCrawler(f, 2).Crawl(context.Background(), "job-1", "example.com", true, 10)
	require.NoError(t, err)

	urls := make([]string, len(pages))
	for i, p := range pages {
		urls[i] = p.NormalizedURL
	}
	assert.Contains(t, urls, "https://example.com/hidden-gem")
	assert.NotContains(t, urls, "https://other.com/not-ours")
}

func TestCrawlCancelledContext(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://example.com/": page("Home", "hi", "/pricing"),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testCrawler(f, 2).Crawl(ctx, "job-1", "example.com", true, 10)
	require.Error(t, err)
}
