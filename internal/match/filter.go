// Package match implements hard filtering, cosine ranking and the search
// orchestration over the vector backends.
package match

import (
	"strings"

	"labmatch/internal/models"
)

// Matches applies every present filter; filters combine with AND and an
// absent filter passes everything.
func Matches(o *models.Opportunity, f models.SearchFilters) bool {
	if len(f.States) > 0 {
		// remote postings are reachable from any state
		if !o.IsRemote && !containsFold(f.States, o.LocationState) {
			return false
		}
	}
	if f.IsRemote != nil && o.IsRemote != *f.IsRemote {
		return false
	}
	if f.DegreeLevel != "" {
		// a posting with no listed levels is open to all
		if len(o.DegreeLevels) > 0 && !containsFold(o.DegreeLevels, f.DegreeLevel) {
			return false
		}
	}
	if f.PaidType != "" && !strings.EqualFold(o.PaidType, f.PaidType) {
		return false
	}
	// Hours filters check range overlap; an open bound on the posting side
	// always satisfies the corresponding filter.
	if f.MinHours != nil && o.MaxHours != nil && *o.MaxHours < *f.MinHours {
		return false
	}
	if f.MaxHours != nil && o.MinHours != nil && *o.MinHours > *f.MaxHours {
		return false
	}
	return true
}

// Normalize canonicalizes filter values so the in-process evaluator and the
// SQL-pushed filters agree: state codes uppercase, degree level and paid type
// lowercase. Stored postings are canonicalized the same way on write.
func Normalize(f models.SearchFilters) models.SearchFilters {
	if len(f.States) > 0 {
		states := make([]string, len(f.States))
		for i, s := range f.States {
			states[i] = strings.ToUpper(strings.TrimSpace(s))
		}
		f.States = states
	}
	f.DegreeLevel = strings.ToLower(strings.TrimSpace(f.DegreeLevel))
	f.PaidType = strings.ToLower(strings.TrimSpace(f.PaidType))
	return f
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
