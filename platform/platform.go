// Package platform defines the catalog of platforms the discovery pipeline
// knows about, along with the per-platform matching, query, and handle
// extraction logic.
package platform

import (
	"fmt"
	"regexp"
	"time"
)

// Platform identifies a supported external platform.
type Platform string

// All supported platforms.
const (
	Instagram  Platform = "instagram"
	Facebook   Platform = "facebook"
	LinkedIn   Platform = "linkedin"
	YouTube    Platform = "youtube"
	TikTok     Platform = "tiktok"
	Twitter    Platform = "twitter"
	Trustpilot Platform = "trustpilot"
	G2         Platform = "g2"
	Capterra   Platform = "capterra"
	PlayStore  Platform = "playstore"
	AppStore   Platform = "appstore"
)

// Confidence describes how certain the pipeline is that a discovered
// profile belongs to the competitor. The levels are ordered: NotFound <
// Uncertain < Likely < Verified.
type Confidence string

// Confidence levels, weakest first.
const (
	NotFound  Confidence = "not_found"
	Uncertain Confidence = "uncertain"
	Likely    Confidence = "likely"
	Verified  Confidence = "verified"
)

// Rank returns the ordering of a confidence level, with NotFound lowest.
// Unknown values rank below NotFound.
func (c Confidence) Rank() int {
	switch c {
	case NotFound:
		return 0
	case Uncertain:
		return 1
	case Likely:
		return 2
	case Verified:
		return 3
	default:
		return -1
	}
}

// Source records how a profile was discovered.
type Source string

// Discovery sources.
const (
	SourceWebsiteLink  Source = "website_link"
	SourceGoogleSearch Source = "google_search"
	SourceDeepResearch Source = "deep_research"
	SourceManual       Source = "manual"
)

// Validation holds the per-check outcome of identity validation.
type Validation struct {
	NameMatch    bool `json:"nameMatch"`
	BioMatch     bool `json:"bioMatch"`
	WebsiteMatch bool `json:"websiteMatch"`
}

// Profile is a single platform's discovery outcome for one competitor.
// URL and Handle are empty when nothing was found.
type Profile struct {
	Platform   Platform   `json:"platform"`
	URL        string     `json:"url,omitempty"`
	Handle     string     `json:"handle,omitempty"`
	Confidence Confidence `json:"confidence"`
	Source     Source     `json:"source"`
	Validation Validation `json:"validationDetails"`
}

// WebsiteLinks aggregates the platform links found on a website. Links maps
// each platform to the first URL found for it; RawLinks keeps every link
// that matched a known platform pattern, in discovery order.
type WebsiteLinks struct {
	Links    map[Platform]string `json:"links"`
	RawLinks []string            `json:"rawLinks,omitempty"`
}

// NewWebsiteLinks returns an empty, ready-to-use aggregate.
func NewWebsiteLinks() WebsiteLinks {
	return WebsiteLinks{Links: make(map[Platform]string)}
}

// Add records a URL for a platform. The first URL recorded for a platform
// wins; later calls for the same platform are ignored. Reports whether the
// URL was recorded.
func (w *WebsiteLinks) Add(p Platform, url string) bool {
	if w.Links == nil {
		w.Links = make(map[Platform]string)
	}
	if _, ok := w.Links[p]; ok {
		return false
	}
	w.Links[p] = url
	return true
}

// Merge folds other into w with first-found-wins semantics, preserving
// w's existing entries. Raw links are appended without deduplication; the
// extractor already dedupes within a page.
func (w *WebsiteLinks) Merge(other WebsiteLinks) {
	for p, url := range other.Links {
		w.Add(p, url)
	}
	w.RawLinks = append(w.RawLinks, other.RawLinks...)
}

// Metadata describes the competitor's business at a glance, extracted from
// their website. Confidence is the provider's self-reported certainty:
// high, medium, or low.
type Metadata struct {
	Description    string `json:"description"`
	Industry       string `json:"industry"`
	TargetAudience string `json:"targetAudience"`
	Confidence     string `json:"confidence"`
}

// Results is the final immutable snapshot of one discovery run.
type Results struct {
	CompetitorName string                `json:"competitorName"`
	WebsiteURL     string                `json:"websiteUrl"`
	Profiles       map[Platform]*Profile `json:"profiles"`
	Metadata       *Metadata             `json:"metadata,omitempty"`
	DiscoveredAt   time.Time             `json:"discoveryDate"`
	TotalFound     int                   `json:"totalFound"`
	VerifiedCount  int                   `json:"verifiedCount"`
	LikelyCount    int                   `json:"likelyCount"`
	NotFoundCount  int                   `json:"notFoundCount"`
}

// Config is a platform's immutable descriptor: how to recognize its profile
// URLs, how to search for it, and how handles are pulled out of URLs.
type Config struct {
	Platform    Platform
	DisplayName string
	URLPatterns []*regexp.Regexp
	// InputKey is the key under which a resolved profile is reported in
	// campaign variables. Keys containing "url" report the URL; the rest
	// report the handle.
	InputKey string

	queryFormat string
}

// SearchQuery builds the platform's search query for a competitor name.
func (c *Config) SearchQuery(competitorName string) string {
	return fmt.Sprintf(c.queryFormat, competitorName)
}

// MatchURL reports whether the URL matches any of the platform's patterns.
func (c *Config) MatchURL(url string) bool {
	for _, re := range c.URLPatterns {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

// ExtractHandle pulls the handle out of a profile URL using the platform's
// patterns. Reports false when no pattern matches.
func (c *Config) ExtractHandle(url string) (string, bool) {
	for _, re := range c.URLPatterns {
		if m := re.FindStringSubmatch(url); len(m) > 1 && m[1] != "" {
			return m[1], true
		}
	}
	return "", false
}

// configs lists every supported platform. Order here is the canonical
// iteration order for discovery runs and reports.
var configs = []*Config{
	{
		Platform:    Instagram,
		DisplayName: "Instagram",
		URLPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)instagram\.com/([^/?\s#"']+)`),
		},
		queryFormat: "%s instagram official",
		InputKey:    "instagram_username",
	},
	{
		Platform:    Facebook,
		DisplayName: "Facebook",
		URLPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)facebook\.com/([^/?\s#"']+)`),
			regexp.MustCompile(`(?i)\bfb\.com/([^/?\s#"']+)`),
		},
		queryFormat: "%s facebook page official",
		InputKey:    "facebook_url",
	},
	{
		Platform:    LinkedIn,
		DisplayName: "LinkedIn",
		URLPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)linkedin\.com/company/([^/?\s#"']+)`),
		},
		queryFormat: `site:linkedin.com/company "%s"`,
		InputKey:    "linkedin_url",
	},
	{
		Platform:    YouTube,
		DisplayName: "YouTube",
		URLPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)youtube\.com/@([^/?\s#"']+)`),
			regexp.MustCompile(`(?i)youtube\.com/c/([^/?\s#"']+)`),
			regexp.MustCompile(`(?i)youtube\.com/channel/([^/?\s#"']+)`),
			regexp.MustCompile(`(?i)youtube\.com/user/([^/?\s#"']+)`),
		},
		queryFormat: "%s youtube channel official",
		InputKey:    "youtube_url",
	},
	{
		Platform:    TikTok,
		DisplayName: "TikTok",
		URLPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)tiktok\.com/@([^/?\s#"']+)`),
		},
		queryFormat: "%s tiktok official",
		InputKey:    "tiktok_username",
	},
	{
		Platform:    Twitter,
		DisplayName: "Twitter/X",
		URLPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:twitter|x)\.com/([^/?\s#"']+)`),
		},
		queryFormat: "%s twitter official",
		InputKey:    "twitter_username",
	},
	{
		Platform:    Trustpilot,
		DisplayName: "Trustpilot",
		URLPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)trustpilot\.com/review/([^/?\s#"']+)`),
		},
		queryFormat: `site:trustpilot.com/review "%s"`,
		InputKey:    "trustpilot_url",
	},
	{
		Platform:    G2,
		DisplayName: "G2",
		URLPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)g2\.com/products/([^/?\s#"']+)`),
		},
		queryFormat: `site:g2.com/products "%s"`,
		InputKey:    "g2_url",
	},
	{
		Platform:    Capterra,
		DisplayName: "Capterra",
		URLPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)capterra\.com/p/(\d+)`),
			regexp.MustCompile(`(?i)capterra\.com/software/(\d+)`),
		},
		queryFormat: `site:capterra.com "%s" reviews`,
		InputKey:    "capterra_url",
	},
	{
		Platform:    PlayStore,
		DisplayName: "Google Play",
		URLPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)play\.google\.com/store/apps/details\?id=([^&\s#"']+)`),
		},
		queryFormat: `site:play.google.com "%s" app`,
		InputKey:    "play_store_app_id",
	},
	{
		Platform:    AppStore,
		DisplayName: "App Store",
		URLPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)apps\.apple\.com/[^/]+/app/[^/]+/id(\d+)`),
		},
		queryFormat: `site:apps.apple.com "%s" app`,
		InputKey:    "app_store_app_id",
	},
}

var configIndex = func() map[Platform]*Config {
	idx := make(map[Platform]*Config, len(configs))
	for _, c := range configs {
		idx[c.Platform] = c
	}
	return idx
}()

// ConfigFor returns the config for a platform. The second return is false
// for unknown platforms, which indicates a caller bug rather than a
// runtime condition.
func ConfigFor(p Platform) (*Config, bool) {
	c, ok := configIndex[p]
	return c, ok
}

// All returns every supported platform in canonical order.
func All() []Platform {
	out := make([]Platform, len(configs))
	for i, c := range configs {
		out[i] = c.Platform
	}
	return out
}

// Match returns the first platform whose patterns match the URL.
func Match(url string) (Platform, bool) {
	for _, c := range configs {
		if c.MatchURL(url) {
			return c.Platform, true
		}
	}
	return "", false
}
