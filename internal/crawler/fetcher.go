package crawler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

const maxRedirects = 5

// FetchResult is one completed page download.
type FetchResult struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetcher downloads a single URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*FetchResult, error)
}

// CollyFetcher fetches pages through colly with a byte-capped body, a
// guarded transport, and per-hop redirect validation.
type CollyFetcher struct {
	guard        *Guard
	transport    *http.Transport
	userAgent    string
	timeout      time.Duration
	maxBodyBytes int
}

// NewCollyFetcher wires the SSRF guard into colly's HTTP stack.
func NewCollyFetcher(guard *Guard, userAgent string, timeout time.Duration, maxBodyBytes int) *CollyFetcher {
	return &CollyFetcher{
		guard:        guard,
		transport:    guard.Transport(timeout),
		userAgent:    userAgent,
		timeout:      timeout,
		maxBodyBytes: maxBodyBytes,
	}
}

// Fetch validates the URL, downloads it, and honors ctx cancellation.
// Colly truncates bodies at the configured cap, so a body that reaches
// the cap means the page was larger than allowed and the fetch fails.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if err := f.guard.CheckURL(ctx, rawURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrURLBlocked, err)
	}

	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.MaxBodySize(f.maxBodyBytes),
	)
	c.SetRequestTimeout(f.timeout)
	c.WithTransport(f.transport)
	c.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return f.guard.CheckURL(req.Context(), req.URL.String())
	})

	var (
		result   *FetchResult
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		result = &FetchResult{
			URL:         rawURL,
			FinalURL:    r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        r.Body,
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil && r.StatusCode != 0 {
			result = &FetchResult{
				URL:        rawURL,
				FinalURL:   r.Request.URL.String(),
				StatusCode: r.StatusCode,
			}
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.Visit(rawURL); err != nil && fetchErr == nil {
			fetchErr = err
		}
		c.Wait()
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
	}

	if fetchErr != nil {
		if result != nil {
			return result, fmt.Errorf("fetch %s: status %d: %w", rawURL, result.StatusCode, fetchErr)
		}
		return nil, fmt.Errorf("fetch %s: %w", rawURL, fetchErr)
	}
	if result == nil {
		return nil, fmt.Errorf("fetch %s: no response", rawURL)
	}
	if f.maxBodyBytes > 0 && len(result.Body) >= f.maxBodyBytes {
		return nil, fmt.Errorf("fetch %s: body reached the %d byte cap", rawURL, f.maxBodyBytes)
	}
	return result, nil
}
