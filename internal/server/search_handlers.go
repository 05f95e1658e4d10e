package server

import (
	"net/http"
	"strings"

	"labmatch/internal/errs"
	"labmatch/internal/models"
)

const (
	minQueryLen = 10
	maxQueryLen = 2000
)

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	if _, ok := a.authUser(w, r); !ok {
		return
	}
	var req struct {
		Query   string               `json:"query"`
		Filters models.SearchFilters `json:"filters"`
		Limit   *int                 `json:"limit"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	query := strings.TrimSpace(req.Query)
	if len(query) < minQueryLen || len(query) > maxQueryLen {
		writeErr(w, errs.InvalidInputf("query must be between %d and %d characters", minQueryLen, maxQueryLen))
		return
	}
	limit := 20
	if req.Limit != nil {
		limit = *req.Limit
	}
	if limit < 0 || limit > 100 {
		writeErr(w, errs.InvalidInputf("limit must be between 0 and 100"))
		return
	}

	resp, err := a.search.Search(r.Context(), query, req.Filters, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	metrics.mu.Lock()
	metrics.searches++
	if resp.Backend == "fallback" {
		metrics.searchFallbacks++
	}
	metrics.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"query":       query,
		"results":     resp.Results,
		"count":       len(resp.Results),
		"totalActive": resp.TotalActive,
		"filters":     req.Filters,
		"backend":     resp.Backend,
	})
}

// handleSearchStatus reports whether semantic search can serve: credentials,
// vector coverage and which backend is live.
func (a *API) handleSearchStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	oppVectors, err := a.store.CountEmbeddings(models.OwnerOpportunity)
	if err != nil {
		writeErr(w, err)
		return
	}
	userVectors, err := a.store.CountEmbeddings(models.OwnerUser)
	if err != nil {
		writeErr(w, err)
		return
	}
	totalActive, err := a.store.CountActiveOpportunities()
	if err != nil {
		writeErr(w, err)
		return
	}
	backend := "fallback"
	if a.native {
		backend = "pgvector"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ready":              a.cfg.OpenAIAPIKey != "" && oppVectors > 0,
		"apiKeyConfigured":   a.cfg.OpenAIAPIKey != "",
		"backend":            backend,
		"opportunityVectors": oppVectors,
		"userVectors":        userVectors,
		"totalActive":        totalActive,
		"embeddingModel":     a.cfg.EmbeddingModel,
		"embeddingDim":       a.cfg.EmbeddingDim,
	})
}
