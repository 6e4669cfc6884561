package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ailens/domain-audit/internal/audit"
)

// binaryExtensions lists path suffixes that never carry crawlable HTML:
// documents, media, archives, and installers.
var binaryExtensions = map[string]struct{}{
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {},
	".ppt": {}, ".pptx": {}, ".csv": {},
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {},
	".webp": {}, ".ico": {}, ".mp3": {}, ".mp4": {}, ".avi": {},
	".mov": {}, ".webm": {},
	".zip": {}, ".gz": {}, ".tar": {}, ".rar": {}, ".7z": {},
	".exe": {}, ".dmg": {}, ".apk": {},
	".css": {}, ".js": {}, ".woff": {}, ".woff2": {},
}

// binaryAssetPath reports whether a URL path points at a known binary
// asset rather than a page.
func binaryAssetPath(p string) bool {
	_, ok := binaryExtensions[strings.ToLower(path.Ext(p))]
	return ok
}

// Extraction is the distilled content of a fetched HTML page.
type Extraction struct {
	Title           string
	MetaDescription string
	Text            string
	Links           []string
	Evidence        audit.PageEvidence
}

// ExtractPage parses an HTML document, lifts the evidence catalog from
// its markup, strips chrome elements, and returns its visible text
// together with every outbound link resolved against the final URL.
func ExtractPage(body []byte, finalURL string) (Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Extraction{}, fmt.Errorf("parse html: %w", err)
	}

	base, err := url.Parse(finalURL)
	if err != nil {
		return Extraction{}, fmt.Errorf("parse base url: %w", err)
	}

	ext := Extraction{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		ext.MetaDescription = strings.TrimSpace(desc)
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if binaryAssetPath(resolved.Path) {
			return
		}
		ext.Links = append(ext.Links, resolved.String())
	})

	ext.Evidence = markupEvidence(doc)

	doc.Find("script, style, noscript, svg, iframe, nav, header, footer").Remove()
	ext.Text = collapseWhitespace(doc.Find("body").Text())
	ext.Evidence.Signals = detectSignals(ext.Text)
	return ext, nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
