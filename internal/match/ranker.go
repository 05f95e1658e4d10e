package match

import (
	"math"
	"sort"

	"labmatch/internal/errs"
	"labmatch/internal/models"
)

// DefaultLimit and MaxLimit bound how many ranked results a search returns.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Cosine returns the cosine of the angle between a and b. Zero-norm inputs
// score 0 rather than NaN.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errs.DimensionMismatch(len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// Similarity remaps cosine from [-1,1] into [0,1]. A zero-norm vector on
// either side scores 0, not the 0.5 the remap would produce.
func Similarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errs.DimensionMismatch(len(a), len(b))
	}
	if norm(a) == 0 || norm(b) == 0 {
		return 0, nil
	}
	c, err := Cosine(a, b)
	if err != nil {
		return 0, err
	}
	return clamp01((c + 1) / 2), nil
}

func norm(v []float32) float64 {
	var n float64
	for _, x := range v {
		n += float64(x) * float64(x)
	}
	return math.Sqrt(n)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Candidate pairs an opportunity with its stored vector for ranking.
type Candidate struct {
	Opportunity *models.Opportunity
	Vector      []float32
}

// Rank scores every candidate against the query vector and returns them in
// descending similarity. The sort is stable so equal scores keep their
// arrival order.
func Rank(query []float32, cands []Candidate) ([]models.SearchResult, error) {
	out := make([]models.SearchResult, 0, len(cands))
	for _, c := range cands {
		score, err := Similarity(query, c.Vector)
		if err != nil {
			return nil, err
		}
		out = append(out, models.SearchResult{Opportunity: c.Opportunity, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// Truncate cuts the ranked list to limit. limit 0 yields an empty list;
// callers report counts separately.
func Truncate(results []models.SearchResult, limit int) []models.SearchResult {
	if limit <= 0 {
		return []models.SearchResult{}
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if len(results) > limit {
		return results[:limit]
	}
	return results
}
