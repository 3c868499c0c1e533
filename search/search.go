// Package search locates candidate profile URLs for platforms that were
// not linked from the competitor's website, using external search-capable
// chat providers.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/scoutbase/scout/platform"
)

// notFoundToken is the literal a provider must return when no official
// profile exists.
const notFoundToken = "NOT_FOUND"

const (
	defaultBatchSize  = 3
	defaultBatchDelay = 500 * time.Millisecond
)

// ProviderKind selects the preferred search backend.
type ProviderKind string

// Available backends.
const (
	ProviderPerplexity   ProviderKind = "perplexity"
	ProviderDeepResearch ProviderKind = "deep_research"
)

// Strategy is one way of resolving a profile URL. Strategies are tried in
// order; a later strategy runs only when the earlier one errors.
type Strategy struct {
	Name     string
	Provider Provider
	// WebSearch marks strategies backed by live web search. Hits from
	// these are "likely"; knowledge-only hits are "uncertain" since they
	// cannot be checked against current web state.
	WebSearch bool
}

// Credentials holds the per-provider API keys. Empty keys disable the
// provider.
type Credentials struct {
	PerplexityKey string
	OpenRouterKey string
}

// Configured reports whether any search provider can be built.
func (c Credentials) Configured() bool {
	return c.PerplexityKey != "" || c.OpenRouterKey != ""
}

// Strategies builds the ordered fallback chain for the given credentials
// and preference. Perplexity resolves through its own web-search model;
// the deep-research path tries a web-search model first and falls back to
// a knowledge-only model.
func Strategies(creds Credentials, preferred ProviderKind, opts ...ProviderOption) []Strategy {
	po := providerOptions{}
	for _, opt := range opts {
		opt(&po)
	}

	var chain []Strategy
	usePerplexity := preferred == ProviderPerplexity && creds.PerplexityKey != ""
	if !usePerplexity && creds.OpenRouterKey == "" && creds.PerplexityKey != "" {
		usePerplexity = true
	}

	if usePerplexity {
		chain = append(chain, Strategy{
			Name:      "perplexity",
			Provider:  NewPerplexity(creds.PerplexityKey, po.perplexity...),
			WebSearch: true,
		})
		return chain
	}

	if creds.OpenRouterKey != "" {
		chain = append(chain,
			Strategy{
				Name:      "sonar",
				Provider:  NewOpenRouter(creds.OpenRouterKey, openRouterSonar, po.openRouter...),
				WebSearch: true,
			},
			Strategy{
				Name:      "gemini-knowledge",
				Provider:  NewOpenRouter(creds.OpenRouterKey, openRouterKnowing, po.openRouter...),
				WebSearch: false,
			},
		)
	}
	return chain
}

type providerOptions struct {
	perplexity []PerplexityOption
	openRouter []OpenRouterOption
}

// ProviderOption passes construction options through Strategies.
type ProviderOption func(*providerOptions)

// WithPerplexityOptions forwards options to the Perplexity provider.
func WithPerplexityOptions(opts ...PerplexityOption) ProviderOption {
	return func(po *providerOptions) { po.perplexity = append(po.perplexity, opts...) }
}

// WithOpenRouterOptions forwards options to OpenRouter providers.
func WithOpenRouterOptions(opts ...OpenRouterOption) ProviderOption {
	return func(po *providerOptions) { po.openRouter = append(po.openRouter, opts...) }
}

// Searcher resolves candidate profile URLs platform by platform.
type Searcher struct {
	strategies []Strategy
	logger     *slog.Logger
	batchSize  int
	batchDelay time.Duration
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) { s.logger = logger }
}

// WithBatchSize overrides the concurrent batch size.
func WithBatchSize(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithBatchDelay overrides the inter-batch delay.
func WithBatchDelay(d time.Duration) Option {
	return func(s *Searcher) { s.batchDelay = d }
}

// New creates a Searcher over an ordered strategy chain.
func New(strategies []Strategy, opts ...Option) *Searcher {
	s := &Searcher{
		strategies: strategies,
		logger:     slog.Default(),
		batchSize:  defaultBatchSize,
		batchDelay: defaultBatchDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search resolves one platform's profile. Provider errors walk down the
// strategy chain; when every strategy errors, the result degrades to
// not_found rather than failing.
func (s *Searcher) Search(ctx context.Context, competitorName string, p platform.Platform) *platform.Profile {
	profile := &platform.Profile{
		Platform:   p,
		Confidence: platform.NotFound,
		Source:     platform.SourceDeepResearch,
	}

	cfg, ok := platform.ConfigFor(p)
	if !ok {
		return profile
	}

	for _, strat := range s.strategies {
		if ctx.Err() != nil {
			return profile
		}

		system, user := buildPrompt(cfg, competitorName)
		if !strat.WebSearch {
			// Knowledge-only models cannot search; asking them to
			// just makes them hallucinate a search.
			system, user = buildKnowledgePrompt(cfg, competitorName)
		}

		content, err := strat.Provider.Complete(ctx, system, user)
		if err != nil {
			s.logger.WarnContext(ctx, "search strategy failed", "strategy", strat.Name, "platform", p, "error", err)
			continue
		}

		url, found := ParseCandidate(content, cfg)
		if !found {
			s.logger.InfoContext(ctx, "no profile found", "strategy", strat.Name, "platform", p)
			return profile
		}

		profile.URL = url
		if handle, ok := cfg.ExtractHandle(url); ok {
			profile.Handle = handle
		}
		if strat.WebSearch {
			profile.Confidence = platform.Likely
		} else {
			profile.Confidence = platform.Uncertain
		}
		s.logger.InfoContext(ctx, "found profile via search", "strategy", strat.Name, "platform", p, "url", url)
		return profile
	}

	return profile
}

// SearchAll resolves the missing platforms in fixed-size concurrent
// batches with a short delay between batches, to stay under provider rate
// limits. Requests within a batch run independently; one platform's
// failure never blocks the others. Each batch writes into its own result
// slice and is merged only after the batch completes.
func (s *Searcher) SearchAll(ctx context.Context, competitorName string, missing []platform.Platform) map[platform.Platform]*platform.Profile {
	results := make(map[platform.Platform]*platform.Profile, len(missing))

	for start := 0; start < len(missing); start += s.batchSize {
		end := min(start+s.batchSize, len(missing))
		batch := missing[start:end]

		batchResults := make([]*platform.Profile, len(batch))
		var wg sync.WaitGroup
		for i, p := range batch {
			wg.Add(1)
			go func(i int, p platform.Platform) {
				defer wg.Done()
				batchResults[i] = s.Search(ctx, competitorName, p)
			}(i, p)
		}
		wg.Wait()

		for _, r := range batchResults {
			results[r.Platform] = r
		}

		if end < len(missing) && s.batchDelay > 0 {
			select {
			case <-ctx.Done():
				// Remaining platforms stay absent; the orchestrator's
				// placeholders cover them as not_found.
				return results
			case <-time.After(s.batchDelay):
			}
		}
	}

	return results
}

func buildPrompt(cfg *platform.Config, competitorName string) (system, user string) {
	system = "You are a research assistant that finds official social media profiles. " +
		"Search the web to find accurate, current URLs. Respond only with the URL or NOT_FOUND."

	user = fmt.Sprintf(`Find the official %[1]s profile for the company %[2]q.

Search query: %[3]s

Instructions:
1. Search the web for the official %[1]s profile
2. Verify it's the official account (not a fan page or impersonator)
3. Return ONLY the URL if found, or "NOT_FOUND" if no official profile exists

Response format (respond ONLY with one of these):
- The full URL (e.g., https://instagram.com/revolut)
- NOT_FOUND

Do not include any other text or explanation.`, cfg.DisplayName, competitorName, cfg.SearchQuery(competitorName))

	return system, user
}

// buildKnowledgePrompt phrases the question for a model without web
// search, asking it to recall rather than look up.
func buildKnowledgePrompt(cfg *platform.Config, competitorName string) (system, user string) {
	user = fmt.Sprintf(`What is the official %s profile URL for the company %q?

If you know the official URL, respond with just the URL.
If you don't know or it doesn't exist, respond with: NOT_FOUND

Respond with ONLY the URL or NOT_FOUND, nothing else.`, cfg.DisplayName, competitorName)

	return "", user
}

var urlInText = regexp.MustCompile(`https?://[^\s"'<>)]+`)

// trailingPunct strips punctuation a model may attach after a URL.
var trailingPunct = regexp.MustCompile(`[.,;:!?)]+$`)

// ParseCandidate parses a provider's completion under the strict response
// contract: a bare URL or the NOT_FOUND token. Negative language counts
// as not found, and a URL that does not match the platform's patterns is
// rejected as an invalid candidate.
func ParseCandidate(content string, cfg *platform.Config) (string, bool) {
	trimmed := strings.TrimSpace(content)
	lower := strings.ToLower(trimmed)

	if trimmed == notFoundToken || strings.Contains(lower, "not found") || strings.Contains(lower, "no official") {
		return "", false
	}

	match := urlInText.FindString(trimmed)
	if match == "" {
		return "", false
	}
	url := trailingPunct.ReplaceAllString(match, "")

	if !cfg.MatchURL(url) {
		return "", false
	}
	return url, true
}
