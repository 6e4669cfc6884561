package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// ErrURLBlocked marks URLs rejected by the address guard.
var ErrURLBlocked = errors.New("url blocked")

// Guard blocks requests that would reach loopback, private, or link-local
// addresses. It is enforced twice: once against the parsed URL before a
// fetch is scheduled, and again inside the transport's dial control, so
// every redirect hop and every DNS answer is re-validated at connect time.
type Guard struct {
	lookup  func(ctx context.Context, host string) ([]netip.Addr, error)
	blocked func(addr netip.Addr) bool
}

// NewGuard builds a Guard using the system resolver and the default
// address policy.
func NewGuard() *Guard {
	resolver := &net.Resolver{}
	return &Guard{
		lookup: func(ctx context.Context, host string) ([]netip.Addr, error) {
			return resolver.LookupNetIP(ctx, "ip", host)
		},
	}
}

func (g *Guard) isBlocked(addr netip.Addr) bool {
	if g.blocked != nil {
		return g.blocked(addr)
	}
	return blockedAddr(addr)
}

// CheckURL rejects non-http(s) schemes and hosts whose every resolved
// address is not publicly routable. A single blocked address fails the
// whole host: we never connect to a name that can resolve somewhere
// private.
func (g *Guard) CheckURL(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not allowed", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("url %q has no host", rawURL)
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("host %q is blocked", host)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if g.isBlocked(addr) {
			return fmt.Errorf("address %s is not publicly routable", addr)
		}
		return nil
	}

	addrs, err := g.lookup(ctx, host)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("resolve %s: no addresses", host)
	}
	for _, addr := range addrs {
		if g.isBlocked(addr) {
			return fmt.Errorf("host %s resolves to blocked address %s", host, addr)
		}
	}
	return nil
}

// Transport returns an http.Transport whose dialer re-validates the
// concrete address of every outbound connection. This is the second line
// of defense and the one that holds across redirects and DNS rebinding.
func (g *Guard) Transport(requestTimeout time.Duration) *http.Transport {
	dialer := &net.Dialer{
		Timeout: requestTimeout,
		Control: func(_, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return fmt.Errorf("split dial address: %w", err)
			}
			addr, err := netip.ParseAddr(host)
			if err != nil {
				return fmt.Errorf("parse dial address: %w", err)
			}
			if g.isBlocked(addr) {
				return fmt.Errorf("dial to %s blocked", addr)
			}
			return nil
		},
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: requestTimeout,
		ForceAttemptHTTP2:     true,
	}
}

func blockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return !addr.IsValid() ||
		addr.IsUnspecified() ||
		addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsMulticast()
}
