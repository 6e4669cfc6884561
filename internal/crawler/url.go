package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// Normalize canonicalizes a page URL for deduplication: https scheme,
// lowercase host without default ports, no fragment, and no trailing
// slash except on the bare root.
func Normalize(rawURL string) (string, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return "", fmt.Errorf("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("scheme %q is not crawlable", u.Scheme)
	}
	u.Scheme = "https"
	host := strings.ToLower(u.Host)
	host = strings.TrimSuffix(host, ":80")
	host = strings.TrimSuffix(host, ":443")
	u.Host = host
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	} else if u.Path != "/" {
		u.Path = strings.TrimRight(u.Path, "/")
		if u.Path == "" {
			u.Path = "/"
		}
	}
	return u.String(), nil
}

// NormalizeDomain strips scheme, path and trailing slashes from a
// user-supplied domain so "https://Example.com/" and "example.com"
// compare equal.
func NormalizeDomain(domain string) string {
	d := strings.TrimSpace(strings.ToLower(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return strings.TrimSuffix(d, ".")
}

// SameSite reports whether the URL's host is the domain itself or one of
// its subdomains.
func SameSite(normalizedURL, domain string) bool {
	u, err := url.Parse(normalizedURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	domain = strings.TrimPrefix(NormalizeDomain(domain), "www.")
	return host == domain || strings.HasSuffix(host, "."+domain)
}
