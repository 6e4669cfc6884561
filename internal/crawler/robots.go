package crawler

import (
	"bufio"
	"context"
	"strings"
)

// blanketDisallowed reports whether the site's robots.txt forbids all
// crawling for every agent ("User-agent: *" with "Disallow: /"). A
// missing or unreadable robots.txt allows the crawl; only an explicit
// blanket ban stops it.
func (c *Crawler) blanketDisallowed(ctx context.Context, domain string) bool {
	res, err := c.fetcher.Fetch(ctx, "https://"+domain+"/robots.txt")
	if err != nil || res.StatusCode != 200 {
		return false
	}

	inWildcard := false
	scanner := bufio.NewScanner(strings.NewReader(string(res.Body)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		field = strings.ToLower(strings.TrimSpace(field))
		value = strings.TrimSpace(value)
		switch field {
		case "user-agent":
			inWildcard = value == "*"
		case "disallow":
			if inWildcard && value == "/" {
				return true
			}
		}
	}
	return false
}
