package server

import (
	"net/http"
	"strings"

	"labmatch/internal/errs"
)

func (a *API) handleScrapeRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	if _, ok := a.authUser(w, r); !ok {
		return
	}
	var req struct {
		StartURL string `json:"startURL"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	startURL := strings.TrimSpace(req.StartURL)
	if startURL == "" {
		startURL = a.cfg.ScrapeStartURL
	}
	if startURL == "" {
		writeErr(w, errs.InvalidInputf("no start URL given and none configured"))
		return
	}
	res, err := a.scraper.Run(r.Context(), startURL)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"opportunitiesAdded": res.Created,
		"result":             res,
	})
}
