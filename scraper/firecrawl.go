package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/scoutbase/scout/httpcache"
)

// DefaultFirecrawlURL is the production Firecrawl endpoint.
const DefaultFirecrawlURL = "https://api.firecrawl.dev/v1/scrape"

// Firecrawl fetches rendered HTML through the Firecrawl scrape API.
// It asks for the full page rather than main content only, because the
// links we want live in headers and footers.
type Firecrawl struct {
	apiKey  string
	baseURL string
	client  *http.Client
	cache   httpcache.Cacher
	logger  *slog.Logger
	timeout time.Duration
}

// FirecrawlOption configures a Firecrawl client.
type FirecrawlOption func(*Firecrawl)

// WithFirecrawlBaseURL overrides the API endpoint. Used in tests.
func WithFirecrawlBaseURL(baseURL string) FirecrawlOption {
	return func(f *Firecrawl) { f.baseURL = baseURL }
}

// WithFirecrawlHTTPClient sets the HTTP client.
func WithFirecrawlHTTPClient(client *http.Client) FirecrawlOption {
	return func(f *Firecrawl) { f.client = client }
}

// WithFirecrawlCache caches rendered HTML keyed by page URL.
func WithFirecrawlCache(cache httpcache.Cacher) FirecrawlOption {
	return func(f *Firecrawl) { f.cache = cache }
}

// WithFirecrawlLogger sets a custom logger.
func WithFirecrawlLogger(logger *slog.Logger) FirecrawlOption {
	return func(f *Firecrawl) { f.logger = logger }
}

// NewFirecrawl creates a Firecrawl client.
func NewFirecrawl(apiKey string, opts ...FirecrawlOption) *Firecrawl {
	f := &Firecrawl{
		apiKey:  apiKey,
		baseURL: DefaultFirecrawlURL,
		client:  &http.Client{Timeout: 45 * time.Second},
		logger:  slog.Default(),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type firecrawlRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	Timeout         int      `json:"timeout"`
}

type firecrawlResponse struct {
	Data struct {
		HTML string `json:"html"`
	} `json:"data"`
}

// FetchHTML fetches the rendered HTML for a page.
func (f *Firecrawl) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	if f.cache != nil {
		body, err := f.cache.GetSet(ctx, httpcache.URLToKey("firecrawl|"+pageURL), func(ctx context.Context) ([]byte, error) {
			html, err := f.scrape(ctx, pageURL)
			if err != nil {
				return nil, err
			}
			return []byte(html), nil
		}, f.cache.TTL())
		if err != nil {
			return "", err
		}
		return string(body), nil
	}
	return f.scrape(ctx, pageURL)
}

func (f *Firecrawl) scrape(ctx context.Context, pageURL string) (string, error) {
	payload, err := json.Marshal(firecrawlRequest{
		URL:             pageURL,
		Formats:         []string{"html"},
		OnlyMainContent: false,
		Timeout:         int(f.timeout.Milliseconds()),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck // intentional

	if resp.StatusCode != http.StatusOK {
		return "", &httpcache.HTTPError{StatusCode: resp.StatusCode, URL: pageURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}

	var parsed firecrawlResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode firecrawl response: %w", err)
	}

	f.logger.DebugContext(ctx, "fetched rendered page", "url", pageURL, "bytes", len(parsed.Data.HTML))
	return parsed.Data.HTML, nil
}
