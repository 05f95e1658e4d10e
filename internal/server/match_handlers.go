package server

import (
	"net/http"
	"strings"

	"labmatch/internal/errs"
	"labmatch/internal/models"
)

func (a *API) handleMatches(w http.ResponseWriter, r *http.Request) {
	uid, ok := a.authUser(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req struct {
			OpportunityID string  `json:"opportunityID"`
			Score         float64 `json:"matchScore"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		if req.Score < 0 || req.Score > 1 {
			writeErr(w, errs.InvalidInputf("matchScore must be in [0,1]"))
			return
		}
		// verify the posting exists before saving
		if _, err := a.store.GetOpportunity(req.OpportunityID); err != nil {
			writeErr(w, err)
			return
		}
		m, err := a.store.SaveMatch(uid, req.OpportunityID, req.Score)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	case http.MethodGet:
		list, err := a.store.ListMatches(uid, r.URL.Query().Get("status"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if list == nil {
			list = []*models.Match{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"matches": list, "count": len(list)})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	}
}

func (a *API) handleMatchByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	uid, ok := a.authUser(w, r)
	if !ok {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/matches/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not_found", "unknown path")
		return
	}
	var req struct {
		Status string `json:"userStatus"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := a.store.UpdateMatchStatus(id, uid, req.Status); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
