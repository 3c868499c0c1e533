// Package metadata extracts competitor business metadata (description,
// industry, target audience) from their website via search-capable chat
// providers.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/scoutbase/scout/platform"
	"github.com/scoutbase/scout/search"
)

// ErrNoProvider is returned when no search provider is configured.
var ErrNoProvider = errors.New("no metadata provider configured")

// Extractor runs metadata extraction over an ordered provider chain.
type Extractor struct {
	strategies []search.Strategy
	logger     *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

// New creates an Extractor over the same strategy chain the profile
// searcher uses.
func New(strategies []search.Strategy, opts ...Option) *Extractor {
	e := &Extractor{
		strategies: strategies,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract analyzes the competitor's website and returns structured
// metadata. Provider errors walk down the chain; parse failures count as
// provider errors since the JSON contract was not met.
func (e *Extractor) Extract(ctx context.Context, competitorName, websiteURL string) (*platform.Metadata, error) {
	if len(e.strategies) == 0 {
		return nil, ErrNoProvider
	}

	prompt := buildPrompt(competitorName, websiteURL)

	var lastErr error
	for _, strat := range e.strategies {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		content, err := strat.Provider.Complete(ctx, "", prompt)
		if err != nil {
			e.logger.WarnContext(ctx, "metadata strategy failed", "strategy", strat.Name, "error", err)
			lastErr = err
			continue
		}

		meta, err := parseMetadata(content)
		if err != nil {
			e.logger.WarnContext(ctx, "metadata parse failed", "strategy", strat.Name, "error", err)
			lastErr = err
			continue
		}

		e.logger.InfoContext(ctx, "extracted metadata", "strategy", strat.Name, "industry", meta.Industry)
		return meta, nil
	}

	return nil, fmt.Errorf("metadata extraction failed: %w", lastErr)
}

func buildPrompt(competitorName, websiteURL string) string {
	return fmt.Sprintf(`Analyze the company %q (website: %s)

Your task: Extract key business information by visiting their website.

REQUIRED OUTPUT (JSON format):
{
  "description": "Brief 1-2 sentence description of what the company does",
  "industry": "Primary industry/category (e.g., 'Fintech', 'E-commerce', 'SaaS', 'Healthcare')",
  "targetAudience": "Primary target customer segment (e.g., 'SMBs', 'Consumers', 'Enterprise', 'Developers')",
  "confidence": "high/medium/low - your confidence in this information"
}

CRITICAL INSTRUCTIONS:
1. Visit %s to get accurate information
2. Description should be concise and factual (no marketing fluff)
3. Industry should be a clear category, not too broad or too specific
4. Target audience should be the PRIMARY customer segment
5. Set confidence to:
   - "high" if information is clearly stated on the website
   - "medium" if you had to infer from context
   - "low" if website has limited information

Return ONLY valid JSON, nothing else.`, competitorName, websiteURL, websiteURL)
}

// jsonBlock finds the outermost JSON object in a completion that may wrap
// it in prose or code fences.
var jsonBlock = regexp.MustCompile(`(?s)\{.*\}`)

func parseMetadata(content string) (*platform.Metadata, error) {
	raw := jsonBlock.FindString(content)
	if raw == "" {
		return nil, errors.New("no JSON found in response")
	}

	var meta platform.Metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	if meta.Description == "" || meta.Industry == "" || meta.TargetAudience == "" {
		return nil, errors.New("missing required metadata fields")
	}
	if strings.TrimSpace(meta.Confidence) == "" {
		meta.Confidence = "medium"
	}
	return &meta, nil
}
