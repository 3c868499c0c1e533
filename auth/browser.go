package auth

import (
	"context"
	"log/slog"
	"strings"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all" // Import all browser cookie stores
)

// BrowserSource reads cookies for a site from the local browser stores.
type BrowserSource struct {
	logger *slog.Logger
}

// NewBrowserSource creates a new browser cookie source.
func NewBrowserSource(logger *slog.Logger) *BrowserSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserSource{logger: logger}
}

// Cookies returns cookies for the given host from browser stores.
func (s *BrowserSource) Cookies(ctx context.Context, host string) (map[string]string, error) {
	domain := strings.TrimPrefix(strings.ToLower(host), "www.")
	if domain == "" {
		return nil, nil //nolint:nilnil // no host, no cookies
	}

	kookies, err := kooky.ReadCookies(ctx, kooky.Valid, kooky.DomainHasSuffix(domain))
	if err != nil {
		s.logger.Debug("failed to read browser cookies", "host", host, "error", err)
		return nil, nil //nolint:nilnil // failed browser read is not a fatal error
	}

	if len(kookies) == 0 {
		return nil, nil //nolint:nilnil // no browser cookies is not an error
	}

	cookies := make(map[string]string, len(kookies))
	for _, c := range kookies {
		cookies[c.Name] = c.Value
	}
	s.logger.Debug("found browser cookies", "host", host, "count", len(cookies))
	return cookies, nil
}
