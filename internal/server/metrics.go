package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"labmatch/internal/models"
	"labmatch/internal/version"
)

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	totalActive, _ := a.store.CountActiveOpportunities()
	userVecs, _ := a.store.CountEmbeddings(models.OwnerUser)
	oppVecs, _ := a.store.CountEmbeddings(models.OwnerOpportunity)

	// JSON when explicitly requested, Prometheus text otherwise
	format := strings.ToLower(r.URL.Query().Get("format"))
	accept := r.Header.Get("Accept")
	if format == "json" || strings.Contains(accept, "application/json") {
		metrics.mu.Lock()
		out := map[string]any{
			"activeOpportunities": totalActive,
			"userVectors":         userVecs,
			"opportunityVectors":  oppVecs,
			"searches":            metrics.searches,
			"searchFallbacks":     metrics.searchFallbacks,
			"embeddingsGenerated": metrics.embedsGenerated,
			"outreachDrafts":      metrics.outreachDrafts,
		}
		metrics.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	io.WriteString(w, "# HELP labmatch_active_opportunities Active opportunity postings.\n")
	io.WriteString(w, "# TYPE labmatch_active_opportunities gauge\n")
	io.WriteString(w, fmt.Sprintf("labmatch_active_opportunities %d\n", totalActive))

	io.WriteString(w, "# HELP labmatch_vectors Stored embedding vectors by owner kind.\n")
	io.WriteString(w, "# TYPE labmatch_vectors gauge\n")
	io.WriteString(w, fmt.Sprintf("labmatch_vectors{kind=\"user\"} %d\n", userVecs))
	io.WriteString(w, fmt.Sprintf("labmatch_vectors{kind=\"opportunity\"} %d\n", oppVecs))

	metrics.mu.Lock()
	for key, v := range metrics.reqTotal {
		parts := strings.Split(key, "|")
		if len(parts) == 3 {
			io.WriteString(w, "# TYPE labmatch_http_requests_total counter\n")
			io.WriteString(w, fmt.Sprintf("labmatch_http_requests_total{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", parts[0], parts[1], parts[2], v))
		}
	}
	for key, sum := range metrics.durSum {
		cnt := metrics.durCount[key]
		parts := strings.Split(key, "|")
		if len(parts) == 2 {
			io.WriteString(w, "# TYPE labmatch_http_request_duration_seconds summary\n")
			io.WriteString(w, fmt.Sprintf("labmatch_http_request_duration_seconds_sum{method=\"%s\",path=\"%s\"} %f\n", parts[0], parts[1], sum))
			io.WriteString(w, fmt.Sprintf("labmatch_http_request_duration_seconds_count{method=\"%s\",path=\"%s\"} %d\n", parts[0], parts[1], cnt))
		}
	}
	io.WriteString(w, "# TYPE labmatch_searches_total counter\n")
	io.WriteString(w, fmt.Sprintf("labmatch_searches_total %d\n", metrics.searches))
	io.WriteString(w, "# TYPE labmatch_search_fallbacks_total counter\n")
	io.WriteString(w, fmt.Sprintf("labmatch_search_fallbacks_total %d\n", metrics.searchFallbacks))
	io.WriteString(w, "# TYPE labmatch_embeddings_generated_total counter\n")
	io.WriteString(w, fmt.Sprintf("labmatch_embeddings_generated_total %d\n", metrics.embedsGenerated))
	io.WriteString(w, "# TYPE labmatch_outreach_drafts_total counter\n")
	io.WriteString(w, fmt.Sprintf("labmatch_outreach_drafts_total %d\n", metrics.outreachDrafts))
	metrics.mu.Unlock()

	io.WriteString(w, "# HELP labmatch_build_info Build information.\n")
	io.WriteString(w, "# TYPE labmatch_build_info gauge\n")
	io.WriteString(w, fmt.Sprintf("labmatch_build_info{version=\"%s\"} 1\n", version.Version))
}
