// Package scraper produces a best-effort aggregate of platform links found
// on a competitor's website.
package scraper

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scoutbase/scout/auth"
	"github.com/scoutbase/scout/htmlutil"
	"github.com/scoutbase/scout/httpcache"
	"github.com/scoutbase/scout/platform"
)

// candidatePaths are checked in order of priority. Social links typically
// live in headers and footers, so the root page usually suffices; the rest
// cover sites that tuck them into contact or legal pages.
var candidatePaths = []string{"", "/about", "/about-us", "/contact", "/contact-us", "/impressum", "/legal"}

// anchorPlatforms are the platforms whose resolution ends the page walk
// early. An optimization, not a correctness requirement.
var anchorPlatforms = []platform.Platform{platform.Instagram, platform.Facebook, platform.LinkedIn}

// Fetcher fetches fully rendered HTML for a URL, the way a browser would
// see it, including header and footer regions.
type Fetcher interface {
	FetchHTML(ctx context.Context, pageURL string) (string, error)
}

// Scraper walks a website's candidate pages and extracts platform links.
type Scraper struct {
	fetcher Fetcher
	client  *http.Client
	cache   httpcache.Cacher
	cookies auth.Source
	logger  *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithFetcher sets the rendered-HTML provider. Without one, every page is
// fetched with a plain HTTP GET.
func WithFetcher(f Fetcher) Option {
	return func(s *Scraper) { s.fetcher = f }
}

// WithHTTPClient sets the client used for plain GET fallback fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Scraper) { s.client = client }
}

// WithHTTPCache sets the cache for fallback fetches.
func WithHTTPCache(cache httpcache.Cacher) Option {
	return func(s *Scraper) { s.cache = cache }
}

// WithCookieSource sets an optional cookie source for sites that gate
// anonymous requests.
func WithCookieSource(src auth.Source) Option {
	return func(s *Scraper) { s.cookies = src }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scraper) { s.logger = logger }
}

// New creates a Scraper.
func New(opts ...Option) *Scraper {
	s := &Scraper{
		client: &http.Client{Timeout: 15 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SocialLinks walks the website's candidate pages and merges each page's
// platform links first-found-wins. Single-page failures are logged and
// skipped; the walk stops early once all anchor platforms are resolved.
// Never returns an error: absence of data is the failure signal.
func (s *Scraper) SocialLinks(ctx context.Context, websiteURL string) platform.WebsiteLinks {
	base := NormalizeURL(websiteURL)
	found := platform.NewWebsiteLinks()

	for _, path := range candidatePaths {
		pageURL := base + path

		html, err := s.fetchPage(ctx, pageURL)
		if err != nil {
			s.logger.WarnContext(ctx, "page fetch failed, skipping", "url", pageURL, "error", err)
			continue
		}
		if html == "" {
			continue
		}

		pageLinks := htmlutil.SocialLinks(html)
		found.Merge(pageLinks)
		s.logger.InfoContext(ctx, "scraped page", "url", pageURL, "platforms", len(found.Links))

		if s.anchorsResolved(found) {
			break
		}
	}

	return found
}

func (s *Scraper) anchorsResolved(links platform.WebsiteLinks) bool {
	for _, p := range anchorPlatforms {
		if _, ok := links.Links[p]; !ok {
			return false
		}
	}
	return true
}

// fetchPage fetches one page, preferring the rendered-HTML provider and
// falling back to a plain GET when the provider is absent or errors.
func (s *Scraper) fetchPage(ctx context.Context, pageURL string) (string, error) {
	if s.fetcher != nil {
		html, err := s.fetcher.FetchHTML(ctx, pageURL)
		if err == nil {
			return html, nil
		}
		s.logger.WarnContext(ctx, "rendered fetch failed, falling back to plain GET", "url", pageURL, "error", err)
	}
	return s.fetchPlain(ctx, pageURL)
}

func (s *Scraper) fetchPlain(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", httpcache.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := s.client
	if s.cookies != nil {
		if jarClient, ok := s.clientWithCookies(ctx, req.URL.Hostname()); ok {
			client = jarClient
		}
	}

	body, err := httpcache.FetchURL(ctx, s.cache, client, req, s.logger)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// clientWithCookies clones the base client with a jar holding whatever
// cookies the source has for the host.
func (s *Scraper) clientWithCookies(ctx context.Context, host string) (*http.Client, bool) {
	cookies, err := s.cookies.Cookies(ctx, host)
	if err != nil || len(cookies) == 0 {
		return nil, false
	}
	jar, err := auth.NewCookieJar(host, cookies)
	if err != nil {
		return nil, false
	}
	clone := *s.client
	clone.Jar = jar
	return &clone, true
}

// NormalizeURL ensures the URL has a scheme and no trailing slash.
func NormalizeURL(rawURL string) string {
	normalized := strings.TrimSpace(rawURL)
	if !strings.HasPrefix(normalized, "http://") && !strings.HasPrefix(normalized, "https://") {
		normalized = "https://" + normalized
	}
	return strings.TrimSuffix(normalized, "/")
}

// Domain extracts the hostname from a URL, without any www prefix.
func Domain(rawURL string) string {
	u, err := url.Parse(NormalizeURL(rawURL))
	if err != nil || u.Hostname() == "" {
		s := strings.TrimPrefix(strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://"), "www.")
		if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
			s = s[:idx]
		}
		return s
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
