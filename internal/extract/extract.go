// Package extract pulls candidate links out of fetched HTML pages. The
// output feeds the admission filter; no scope decisions happen here.
package extract

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Links extracts absolute candidate URLs from an HTML document, in document
// order with duplicates removed. Relative references resolve against the
// page URL, honoring a <base href> when present.
func Links(pageURL string, body []byte) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	node, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	doc := goquery.NewDocumentFromNode(node)

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := url.Parse(href); err == nil {
			base = base.ResolveReference(b)
		}
	}

	seen := make(map[string]struct{})
	var links []string

	collect := func(ref string) {
		ref = strings.TrimSpace(ref)
		if ref == "" || skipRef(ref) {
			return
		}

		u, err := url.Parse(ref)
		if err != nil {
			return
		}
		abs := base.ResolveReference(u).String()

		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	}

	doc.Find("a[href], area[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			collect(href)
		}
	})

	doc.Find("frame[src], iframe[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			collect(src)
		}
	})

	return links, nil
}

// skipRef filters references that can never become crawlable URLs.
func skipRef(ref string) bool {
	if strings.HasPrefix(ref, "#") {
		return true
	}

	lower := strings.ToLower(ref)
	for _, p := range []string{"javascript:", "mailto:", "tel:", "data:", "about:"} {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
