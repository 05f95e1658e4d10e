package server

import (
	"net/http"
	"strings"
)

func (a *API) handleEmbedUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	if _, ok := a.authUser(w, r); !ok {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/embeddings/users/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not_found", "unknown path")
		return
	}
	e, err := a.embeds.GenerateUser(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	metrics.mu.Lock()
	metrics.embedsGenerated++
	metrics.mu.Unlock()
	writeJSON(w, http.StatusOK, e)
}

func (a *API) handleEmbedOpportunity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	if _, ok := a.authUser(w, r); !ok {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/embeddings/opportunities/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not_found", "unknown path")
		return
	}
	e, err := a.embeds.GenerateOpportunity(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	metrics.mu.Lock()
	metrics.embedsGenerated++
	metrics.mu.Unlock()
	writeJSON(w, http.StatusOK, e)
}

func (a *API) handleSweepUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	if _, ok := a.authUser(w, r); !ok {
		return
	}
	res, err := a.embeds.SweepUsers(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	metrics.mu.Lock()
	metrics.embedsGenerated += res.Success
	metrics.mu.Unlock()
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleSweepOpportunities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	if _, ok := a.authUser(w, r); !ok {
		return
	}
	res, err := a.embeds.SweepOpportunities(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	metrics.mu.Lock()
	metrics.embedsGenerated += res.Success
	metrics.mu.Unlock()
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleEmbeddingStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	st, err := a.embeds.Stats()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
