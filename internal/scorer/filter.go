package scorer

import (
	"strings"

	"github.com/sells-group/referral-cli/internal/model"
)

// Filters narrow the candidate set before scoring.
type Filters struct {
	// Specialties keeps providers with any listed specialty. Empty means
	// no filtering.
	Specialties []string `json:"specialties,omitempty"`
	// MinReferrals keeps providers with at least this many outbound
	// referrals.
	MinReferrals int `json:"min_referrals,omitempty"`
	// MaxRadiusMiles drops providers farther than this, and providers
	// without coordinates. Zero disables the filter.
	MaxRadiusMiles float64 `json:"max_radius_miles,omitempty"`
}

func specialtySet(requested []string) map[string]bool {
	set := make(map[string]bool, len(requested))
	for _, s := range requested {
		if k := specialtyKey(s); k != "" {
			set[k] = true
		}
	}
	return set
}

func specialtyKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// MatchesSpecialty reports whether any comma-separated specialty of
// provider is in requested. An empty request matches everything.
func MatchesSpecialty(provider string, requested []string) bool {
	set := specialtySet(requested)
	if len(set) == 0 {
		return true
	}
	return matchSet(provider, set)
}

func matchSet(provider string, set map[string]bool) bool {
	for _, s := range strings.Split(provider, ",") {
		if set[specialtyKey(s)] {
			return true
		}
	}
	return false
}

func filterSpecialty(ps []model.Provider, requested []string) []model.Provider {
	set := specialtySet(requested)
	if len(set) == 0 {
		return ps
	}
	var out []model.Provider
	for i := range ps {
		if matchSet(ps[i].Specialty, set) {
			out = append(out, ps[i])
		}
	}
	return out
}

// FilterMinReferrals keeps providers whose outbound count is at least threshold.
func FilterMinReferrals(ps []model.Provider, threshold int) []model.Provider {
	if threshold <= 0 {
		return ps
	}
	var out []model.Provider
	for i := range ps {
		if ps[i].ReferralCount >= threshold {
			out = append(out, ps[i])
		}
	}
	return out
}
