// Package crawler discovers and downloads a bounded, prioritized set of
// pages from a single domain. It never leaves the domain, never follows
// a link to a private address, and stops at a fixed page budget and wall
// clock deadline.
package crawler

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ailens/domain-audit/internal/audit"
)

// Crawler walks one domain per call, breadth-first by priority tier.
type Crawler struct {
	fetcher       Fetcher
	hasher        audit.Hasher
	clock         audit.Clock
	concurrency   int
	budget        time.Duration
	respectRobots bool
	logger        *zap.Logger
}

// New returns a Crawler. Concurrency bounds the in-flight fetches per
// crawl; budget bounds its wall time.
func New(fetcher Fetcher, hasher audit.Hasher, clock audit.Clock, concurrency int, budget time.Duration, respectRobots bool, logger *zap.Logger) *Crawler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Crawler{
		fetcher:       fetcher,
		hasher:        hasher,
		clock:         clock,
		concurrency:   concurrency,
		budget:        budget,
		respectRobots: respectRobots,
		logger:        logger,
	}
}

type fetchOutcome struct {
	normalized string
	tier       audit.PriorityTier
	result     *FetchResult
	err        error
}

// Crawl fetches up to maxPages pages from the domain, homepage first,
// then by tier. For the target domain an empty result is an error; for
// comparison domains it degrades to an empty page set.
func (c *Crawler) Crawl(ctx context.Context, jobID, rawDomain string, isTarget bool, maxPages int) ([]audit.Page, error) {
	start := time.Now()
	defer func() { crawlDuration.Observe(time.Since(start).Seconds()) }()

	domain := NormalizeDomain(rawDomain)
	if domain == "" {
		return nil, &audit.CrawlExhaustedError{Domain: rawDomain, Reason: "domain is empty after normalization"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	log := c.logger.With(zap.String("job_id", jobID), zap.String("domain", domain))

	if c.respectRobots && c.blanketDisallowed(ctx, domain) {
		log.Info("robots.txt disallows all crawling")
		if isTarget {
			return nil, &audit.CrawlExhaustedError{Domain: domain, Reason: "robots.txt disallows crawling"}
		}
		return nil, nil
	}

	fr := newFrontier()
	seen := make(map[string]struct{})
	c.enqueue(fr, seen, "https://"+domain+"/", domain)
	for _, loc := range c.sitemapURLs(ctx, domain) {
		c.enqueue(fr, seen, loc, domain)
	}

	var pages []audit.Page
	for len(pages) < maxPages && fr.Len() > 0 && ctx.Err() == nil {
		batch := c.popBatch(fr, maxPages-len(pages))
		for _, out := range c.fetchBatch(ctx, batch) {
			if out.err != nil {
				if errors.Is(out.err, ErrURLBlocked) {
					urlsBlocked.Inc()
				} else {
					fetchErrors.Inc()
				}
				log.Debug("fetch failed", zap.String("url", out.normalized), zap.Error(out.err))
				continue
			}
			page, links, ok := c.buildPage(jobID, domain, isTarget, seen, out)
			if !ok {
				continue
			}
			pages = append(pages, page)
			pagesFetched.WithLabelValues(page.Priority.String()).Inc()
			if len(pages) >= maxPages {
				break
			}
			for _, link := range links {
				c.enqueue(fr, seen, link, domain)
			}
		}
	}

	if isTarget && len(pages) == 0 {
		return nil, &audit.CrawlExhaustedError{Domain: domain, Reason: "no pages could be fetched"}
	}
	log.Info("crawl finished",
		zap.Int("pages", len(pages)),
		zap.Duration("elapsed", time.Since(start)))
	return pages, nil
}

type batchItem struct {
	normalized string
	tier       audit.PriorityTier
}

func (c *Crawler) popBatch(fr *frontier, remaining int) []batchItem {
	n := c.concurrency
	if remaining < n {
		n = remaining
	}
	var batch []batchItem
	for len(batch) < n {
		u, tier, ok := fr.Pop()
		if !ok {
			break
		}
		batch = append(batch, batchItem{normalized: u, tier: tier})
	}
	return batch
}

func (c *Crawler) fetchBatch(ctx context.Context, batch []batchItem) []fetchOutcome {
	outcomes := make([]fetchOutcome, len(batch))
	var wg sync.WaitGroup
	for i, item := range batch {
		wg.Add(1)
		go func(i int, item batchItem) {
			defer wg.Done()
			res, err := c.fetcher.Fetch(ctx, item.normalized)
			outcomes[i] = fetchOutcome{normalized: item.normalized, tier: item.tier, result: res, err: err}
		}(i, item)
	}
	wg.Wait()
	return outcomes
}

// enqueue normalizes, scopes, and dedupes a discovered URL before it
// enters the frontier. Binary assets are dropped here as well so
// sitemap entries get the same treatment as extracted links.
func (c *Crawler) enqueue(fr *frontier, seen map[string]struct{}, rawURL, domain string) {
	normalized, err := Normalize(rawURL)
	if err != nil || !SameSite(normalized, domain) {
		return
	}
	if u, err := url.Parse(normalized); err != nil || binaryAssetPath(u.Path) {
		return
	}
	hash, err := c.hasher.Hash([]byte(normalized))
	if err != nil {
		return
	}
	if _, dup := seen[hash]; dup {
		urlsDeduped.Inc()
		return
	}
	seen[hash] = struct{}{}
	fr.Push(normalized, Classify(normalized))
}

// buildPage turns a fetch outcome into a Page record, re-deduping on the
// final post-redirect URL. Non-2xx and non-HTML responses are dropped.
func (c *Crawler) buildPage(jobID, domain string, isTarget bool, seen map[string]struct{}, out fetchOutcome) (audit.Page, []string, bool) {
	res := out.result
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		fetchErrors.Inc()
		return audit.Page{}, nil, false
	}
	if ct := res.ContentType; ct != "" && !strings.Contains(ct, "html") {
		return audit.Page{}, nil, false
	}

	normalized, err := Normalize(res.FinalURL)
	if err != nil {
		return audit.Page{}, nil, false
	}
	hash, err := c.hasher.Hash([]byte(normalized))
	if err != nil {
		return audit.Page{}, nil, false
	}
	if normalized != out.normalized {
		if _, dup := seen[hash]; dup {
			urlsDeduped.Inc()
			return audit.Page{}, nil, false
		}
		seen[hash] = struct{}{}
	}

	ext, err := ExtractPage(res.Body, res.FinalURL)
	if err != nil {
		return audit.Page{}, nil, false
	}

	page := audit.Page{
		JobID:           jobID,
		URL:             res.FinalURL,
		NormalizedURL:   normalized,
		URLHash:         hash,
		Domain:          domain,
		IsTarget:        isTarget,
		HTML:            string(res.Body),
		Text:            ext.Text,
		Title:           ext.Title,
		MetaDescription: ext.MetaDescription,
		Evidence:        ext.Evidence,
		WordCount:       len(strings.Fields(ext.Text)),
		Priority:        Classify(normalized),
		StatusCode:      res.StatusCode,
		FetchedAt:       c.clock.Now(),
	}
	return page, ext.Links, true
}
