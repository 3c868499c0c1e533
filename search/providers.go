package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/scoutbase/scout/httpcache"
)

// Provider endpoints.
const (
	DefaultPerplexityURL = "https://api.perplexity.ai/chat/completions"
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1/chat/completions"
)

// Models used per provider.
const (
	perplexityModel   = "llama-3.1-sonar-small-128k-online"
	openRouterSonar   = "perplexity/sonar"
	openRouterKnowing = "google/gemini-2.0-flash-001"
)

// Provider is a chat-completion backend: given a system and user prompt it
// returns the raw completion text.
type Provider interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (r *chatResponse) content() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// postChat performs one chat-completion request and extracts the text.
func postChat(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck // intentional

	if resp.StatusCode != http.StatusOK {
		return "", &httpcache.HTTPError{StatusCode: resp.StatusCode, URL: endpoint}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	return parsed.content(), nil
}

// Perplexity calls the Perplexity chat API with its web-search-enabled
// online model.
type Perplexity struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// PerplexityOption configures a Perplexity provider.
type PerplexityOption func(*Perplexity)

// WithPerplexityBaseURL overrides the API endpoint. Used in tests.
func WithPerplexityBaseURL(baseURL string) PerplexityOption {
	return func(p *Perplexity) { p.baseURL = baseURL }
}

// WithPerplexityHTTPClient sets the HTTP client.
func WithPerplexityHTTPClient(client *http.Client) PerplexityOption {
	return func(p *Perplexity) { p.client = client }
}

// NewPerplexity creates a Perplexity provider.
func NewPerplexity(apiKey string, opts ...PerplexityOption) *Perplexity {
	p := &Perplexity{
		apiKey:  apiKey,
		baseURL: DefaultPerplexityURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Complete sends a chat completion request.
func (p *Perplexity) Complete(ctx context.Context, system, user string) (string, error) {
	payload := map[string]any{
		"model":       perplexityModel,
		"messages":    buildMessages(system, user),
		"max_tokens":  200,
		"temperature": 0.1,
		// Recent results only; stale profile URLs are worse than none.
		"search_recency_filter": "month",
		"return_citations":      false,
	}
	return postChat(ctx, p.client, p.baseURL, map[string]string{
		"Authorization": "Bearer " + p.apiKey,
	}, payload)
}

// OpenRouter calls a named model through the OpenRouter chat API.
type OpenRouter struct {
	apiKey  string
	model   string
	baseURL string
	referer string
	client  *http.Client
}

// OpenRouterOption configures an OpenRouter provider.
type OpenRouterOption func(*OpenRouter)

// WithOpenRouterBaseURL overrides the API endpoint. Used in tests.
func WithOpenRouterBaseURL(baseURL string) OpenRouterOption {
	return func(o *OpenRouter) { o.baseURL = baseURL }
}

// WithOpenRouterHTTPClient sets the HTTP client.
func WithOpenRouterHTTPClient(client *http.Client) OpenRouterOption {
	return func(o *OpenRouter) { o.client = client }
}

// WithOpenRouterReferer sets the HTTP-Referer header OpenRouter uses for
// app attribution.
func WithOpenRouterReferer(referer string) OpenRouterOption {
	return func(o *OpenRouter) { o.referer = referer }
}

// NewOpenRouter creates an OpenRouter provider for the given model.
func NewOpenRouter(apiKey, model string, opts ...OpenRouterOption) *OpenRouter {
	o := &OpenRouter{
		apiKey:  apiKey,
		model:   model,
		baseURL: DefaultOpenRouterURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Complete sends a chat completion request.
func (o *OpenRouter) Complete(ctx context.Context, system, user string) (string, error) {
	payload := map[string]any{
		"model":       o.model,
		"messages":    buildMessages(system, user),
		"max_tokens":  200,
		"temperature": 0.1,
	}
	headers := map[string]string{
		"Authorization": "Bearer " + o.apiKey,
		"X-Title":       "Scout Profile Discovery",
	}
	if o.referer != "" {
		headers["HTTP-Referer"] = o.referer
	}
	return postChat(ctx, o.client, o.baseURL, headers, payload)
}

func buildMessages(system, user string) []chatMessage {
	var msgs []chatMessage
	if system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: system})
	}
	return append(msgs, chatMessage{Role: "user", Content: user})
}
