// Package htmlutil extracts platform profile links from raw HTML.
package htmlutil

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/scoutbase/scout/platform"
)

// hrefPattern catches href-like attributes in markup that a DOM parser may
// not surface, such as attributes in truncated or badly nested fragments.
var hrefPattern = regexp.MustCompile(`(?i)(?:href|data-href|data-url)\s*=\s*["']([^"']+)["']`)

// SocialLinks scans one page's HTML for links matching any known platform
// pattern. The first URL found for a platform wins; later matches for the
// same platform are ignored. RawLinks holds every distinct link that
// matched a known pattern, in document order.
//
// The scan is tolerant of malformed HTML: a DOM pass collects href-bearing
// elements, and a regex pass over the raw markup catches anything the
// parser dropped. No network access, no errors.
func SocialLinks(htmlContent string) platform.WebsiteLinks {
	links := platform.NewWebsiteLinks()
	seen := make(map[string]bool)

	record := func(rawURL string) {
		url := cleanURL(rawURL)
		if url == "" {
			return
		}
		p, ok := platform.Match(url)
		if !ok {
			return
		}
		if !seen[url] {
			seen[url] = true
			links.RawLinks = append(links.RawLinks, url)
		}
		links.Add(p, url)
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent)); err == nil {
		doc.Find("[href]").Each(func(_ int, sel *goquery.Selection) {
			if href, ok := sel.Attr("href"); ok {
				record(href)
			}
		})
	}

	// Regex pass over the raw markup. On well-formed pages this repeats
	// what the DOM pass saw; first-found-wins makes the repeat harmless.
	for _, m := range hrefPattern.FindAllStringSubmatch(htmlContent, -1) {
		record(m[1])
	}

	return links
}

// cleanURL trims whitespace and trailing artifacts a loose match can pick
// up, such as quotes and closing brackets.
func cleanURL(s string) string {
	s = strings.TrimSpace(s)
	for s != "" {
		last := s[len(s)-1]
		if last != '"' && last != '\'' && last != '>' && last != ')' && last != ']' && last != '\\' {
			break
		}
		s = s[:len(s)-1]
	}
	return strings.TrimSpace(s)
}
