package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testGuard allows the loopback address the test server listens on and
// blocks only the given addresses, keeping the dial-time and
// redirect-time checks active.
func testGuard(blocked ...string) *Guard {
	deny := make(map[netip.Addr]struct{}, len(blocked))
	for _, ip := range blocked {
		deny[netip.MustParseAddr(ip)] = struct{}{}
	}
	return &Guard{
		blocked: func(addr netip.Addr) bool {
			_, ok := deny[addr.Unmap()]
			return ok
		},
	}
}

func TestCollyFetcherStopsRedirectToBlockedAddress(t *testing.T) {
	var hits struct {
		mu    sync.Mutex
		paths []string
	}
	mux := http.NewServeMux()
	record := func(path, body string) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			hits.mu.Lock()
			hits.paths = append(hits.paths, r.URL.Path)
			hits.mu.Unlock()
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, body)
		})
	}
	record("/", `<html><head><title>Home</title></head><body><p>welcome</p></body></html>`)
	record("/about", `<html><head><title>About</title></head><body><p>about us</p></body></html>`)
	record("/pricing", `<html><head><title>Pricing</title></head><body><p>plans</p></body></html>`)
	mux.HandleFunc("/internal", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://10.9.9.9/admin", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewCollyFetcher(testGuard("10.9.9.9"), "audit-bot/1.0", 5*time.Second, 1<<20)
	ctx := context.Background()

	var fetched int
	for _, path := range []string{"/", "/about", "/pricing"} {
		res, err := f.Fetch(ctx, srv.URL+path)
		require.NoError(t, err, "fetch %s", path)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.True(t, strings.Contains(string(res.Body), "<title>"))
		fetched++
	}
	assert.Equal(t, 3, fetched)

	_, err := f.Fetch(ctx, srv.URL+"/internal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not publicly routable")
	for _, path := range []string{"/", "/about", "/pricing"} {
		assert.Contains(t, hits.paths, path)
	}
	assert.NotContains(t, hits.paths, "/admin")
}

func TestCollyFetcherRejectsBodyAtSizeCap(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/big", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body>", strings.Repeat("a", 4096), "</body></html>")
	})
	mux.HandleFunc("/small", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body>fits</body></html>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewCollyFetcher(testGuard(), "audit-bot/1.0", 5*time.Second, 1024)

	_, err := f.Fetch(context.Background(), srv.URL+"/big")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "byte cap")

	res, err := f.Fetch(context.Background(), srv.URL+"/small")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestCollyFetcherLimitsRedirectChain(t *testing.T) {
	mux := http.NewServeMux()
	for i := 0; i < maxRedirects+2; i++ {
		from, to := fmt.Sprintf("/hop%d", i), fmt.Sprintf("/hop%d", i+1)
		mux.HandleFunc(from, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, to, http.StatusFound)
		})
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewCollyFetcher(testGuard(), "audit-bot/1.0", 5*time.Second, 1<<20)
	_, err := f.Fetch(context.Background(), srv.URL+"/hop0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirects")
}
