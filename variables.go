package scout

import (
	"strings"
	"time"

	"github.com/scoutbase/scout/platform"
)

// CampaignVariables flattens discovery results into the string map consumed
// by campaign templates. Each found profile is keyed by its platform's input
// key; URL-shaped keys get the profile URL and the rest get the handle,
// falling back to the URL when no handle was extracted.
func CampaignVariables(r *platform.Results) map[string]string {
	vars := map[string]string{
		"competitor_name":     r.CompetitorName,
		"competitor_website":  r.WebsiteURL,
		"discovery_completed": "true",
		"discovery_date":      r.DiscoveredAt.Format(time.RFC3339),
	}

	if m := r.Metadata; m != nil {
		vars["competitor_description"] = m.Description
		vars["competitor_industry"] = m.Industry
		vars["competitor_audience"] = m.TargetAudience
	}

	var verified []string
	for _, p := range platform.All() {
		profile, ok := r.Profiles[p]
		if !ok || profile.URL == "" || profile.Confidence == platform.NotFound {
			continue
		}
		cfg, ok := platform.ConfigFor(p)
		if !ok {
			continue
		}

		value := profile.URL
		if !strings.Contains(cfg.InputKey, "url") {
			if profile.Handle != "" {
				value = profile.Handle
			}
		}
		vars[cfg.InputKey] = value

		if profile.Confidence == platform.Verified {
			verified = append(verified, string(p))
		}
	}

	if len(verified) > 0 {
		vars["profiles_verified"] = strings.Join(verified, ",")
	}
	return vars
}
