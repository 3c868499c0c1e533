// Package validate decides whether a discovered profile plausibly belongs
// to a competitor, using handle/name comparison and website-domain
// cross-referencing.
package validate

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/scoutbase/scout/platform"
)

// reviewPlatforms are the platforms whose profile URLs commonly embed the
// company's own domain, making a domain cross-reference meaningful.
var reviewPlatforms = map[platform.Platform]bool{
	platform.Trustpilot: true,
	platform.G2:         true,
	platform.Capterra:   true,
}

// similarityThreshold is the minimum Levenshtein similarity for a partial
// match between short strings.
const similarityThreshold = 0.70

// maxSimilarityLen bounds the string length for the edit-distance check;
// longer strings dilute the signal.
const maxSimilarityLen = 15

// Result is the outcome of validating one profile.
type Result struct {
	Valid      bool
	Confidence platform.Confidence
	Details    platform.Validation
	Reason     string
}

// Profile validates a discovered profile against the competitor's name and
// website.
func Profile(p *platform.Profile, competitorName, competitorWebsite string) Result {
	if p.URL == "" {
		return Result{
			Confidence: platform.NotFound,
			Reason:     "no URL to validate",
		}
	}

	cfg, ok := platform.ConfigFor(p.Platform)
	if !ok {
		return Result{
			Confidence: platform.Uncertain,
			Reason:     "unknown platform",
		}
	}

	handle, ok := cfg.ExtractHandle(p.URL)
	if !ok {
		return Result{
			Confidence: platform.Uncertain,
			Reason:     "could not extract handle",
		}
	}

	nameMatch := NameMatch(handle, competitorName)
	websiteMatch := websiteInURL(p.Platform, p.URL, competitorWebsite)

	details := platform.Validation{NameMatch: nameMatch, WebsiteMatch: websiteMatch}

	switch {
	case nameMatch && websiteMatch:
		return Result{Valid: true, Confidence: platform.Verified, Details: details}
	case nameMatch || websiteMatch:
		return Result{Valid: true, Confidence: platform.Likely, Details: details}
	case partialMatch(handle, competitorName):
		return Result{Valid: true, Confidence: platform.Uncertain, Details: details}
	default:
		return Result{Valid: false, Confidence: platform.Uncertain, Details: details}
	}
}

// Profiles validates every profile in place, then re-applies the website
// link upgrade so website-sourced entries never regress below verified.
func Profiles(profiles map[platform.Platform]*platform.Profile, competitorName, competitorWebsite string) {
	for _, p := range profiles {
		res := Profile(p, competitorName, competitorWebsite)
		p.Confidence = res.Confidence
		p.Validation = res.Details
		UpgradeWebsiteLink(p)
	}
}

// UpgradeWebsiteLink force-upgrades a profile found directly on the
// competitor's website to verified and marks the website match. Website
// provenance is treated as ground truth. The upgrade is one-directional
// and idempotent; profiles from other sources are untouched.
func UpgradeWebsiteLink(p *platform.Profile) {
	if p.Source != platform.SourceWebsiteLink || p.URL == "" {
		return
	}
	p.Confidence = platform.Verified
	p.Validation.WebsiteMatch = true
}

// NameMatch reports whether a handle matches the competitor name after
// normalization: exact equality, handle contains name, or name contains
// handle for handles of at least 3 characters.
func NameMatch(handle, competitorName string) bool {
	h := normalize(handle)
	n := normalize(competitorName)
	if h == "" || n == "" {
		return false
	}
	if h == n {
		return true
	}
	if strings.Contains(h, n) {
		return true
	}
	if len(h) >= 3 && strings.Contains(n, h) {
		return true
	}
	return false
}

// partialMatch looks for weaker evidence: a shared significant token, or
// high edit-distance similarity between short strings.
func partialMatch(handle, competitorName string) bool {
	for _, hw := range tokens(handle) {
		for _, nw := range tokens(competitorName) {
			if hw == nw || strings.Contains(hw, nw) || strings.Contains(nw, hw) {
				return true
			}
		}
	}

	h := normalize(handle)
	n := normalize(competitorName)
	if len(h) <= maxSimilarityLen && len(n) <= maxSimilarityLen {
		return Similarity(h, n) >= similarityThreshold
	}
	return false
}

// websiteInURL reports whether the competitor's domain appears in the
// profile URL. Only meaningful for review-style platforms, where listing
// URLs are routinely keyed by the company's domain.
func websiteInURL(p platform.Platform, profileURL, competitorWebsite string) bool {
	if !reviewPlatforms[p] {
		return false
	}
	domain := Domain(competitorWebsite)
	if domain == "" {
		return false
	}
	return strings.Contains(strings.ToLower(profileURL), strings.ToLower(domain))
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// normalize lowercases and strips everything non-alphanumeric.
func normalize(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "")
}

// tokens splits on non-alphanumeric boundaries and keeps significant
// (3+ character) lowercase tokens.
func tokens(s string) []string {
	var out []string
	for _, t := range nonAlnum.Split(strings.ToLower(s), -1) {
		if len(t) >= 3 {
			out = append(out, t)
		}
	}
	return out
}

// Domain extracts the hostname from a URL, without any www prefix.
func Domain(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://"), "www.")
		if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
			s = s[:idx]
		}
		return s
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// Levenshtein returns the classic edit distance between two strings,
// counting insertions, deletions, and substitutions.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// Similarity maps edit distance to [0,1]: 1 - distance/max(len).
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 && lb == 0 {
		return 1
	}
	longest := max(la, lb)
	return 1 - float64(Levenshtein(a, b))/float64(longest)
}
