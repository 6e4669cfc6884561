package crawler

import (
	"bytes"
	"context"
	"encoding/xml"
	"strings"
)

const maxSitemapURLs = 200

// sitemapURLs fetches /sitemap.xml and returns the <loc> entries it
// lists, capped so a huge sitemap cannot flood the frontier. A missing
// or malformed sitemap yields nothing; link discovery still runs.
func (c *Crawler) sitemapURLs(ctx context.Context, domain string) []string {
	res, err := c.fetcher.Fetch(ctx, "https://"+domain+"/sitemap.xml")
	if err != nil || res.StatusCode != 200 {
		return nil
	}

	var urls []string
	dec := xml.NewDecoder(bytes.NewReader(res.Body))
	for len(urls) < maxSitemapURLs {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "loc" {
			continue
		}
		var loc string
		if err := dec.DecodeElement(&loc, &start); err != nil {
			break
		}
		if loc = strings.TrimSpace(loc); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls
}
