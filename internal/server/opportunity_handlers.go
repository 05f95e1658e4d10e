package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"labmatch/internal/errs"
	"labmatch/internal/models"
	"labmatch/internal/store"
	"labmatch/internal/vectorstore"
)

type opportunityBody struct {
	SourceURL          string     `json:"sourceURL"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	LabName            string     `json:"labName"`
	PIName             string     `json:"piName"`
	Institution        string     `json:"institution"`
	ResearchTopics     []string   `json:"researchTopics"`
	Methods            []string   `json:"methods"`
	Datasets           []string   `json:"datasets"`
	Deadline           *time.Time `json:"deadline"`
	FundingStatus      string     `json:"fundingStatus"`
	ExperienceRequired string     `json:"experienceRequired"`
	ContactEmail       string     `json:"contactEmail"`
	ApplicationLink    string     `json:"applicationLink"`
	LocationCity       string     `json:"locationCity"`
	LocationState      string     `json:"locationState"`
	IsRemote           bool       `json:"isRemote"`
	DegreeLevels       []string   `json:"degreeLevels"`
	MinHours           *int       `json:"minHours"`
	MaxHours           *int       `json:"maxHours"`
	PaidType           string     `json:"paidType"`
}

func (a *API) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listOpportunities(w, r)
	case http.MethodPost:
		a.createOpportunity(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	}
}

func (a *API) listOpportunities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opt := store.ListOptions{
		Institution:   q.Get("institution"),
		FundingStatus: q.Get("fundingStatus"),
		Search:        q.Get("q"),
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opt.Offset = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opt.Limit = n
		}
	}
	switch q.Get("active") {
	case "", "true":
		active := true
		opt.IsActive = &active
	case "false":
		active := false
		opt.IsActive = &active
	case "all":
	default:
		writeErr(w, errs.InvalidInputf("active must be true, false or all"))
		return
	}
	opps, err := a.store.ListOpportunities(opt)
	if err != nil {
		writeErr(w, err)
		return
	}
	if opps == nil {
		opps = []*models.Opportunity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"opportunities": opps, "count": len(opps)})
}

func (a *API) createOpportunity(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.authUser(w, r); !ok {
		return
	}
	var req opportunityBody
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if strings.TrimSpace(req.SourceURL) == "" || strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Description) == "" {
		writeErr(w, errs.InvalidInputf("sourceURL, title and description are required"))
		return
	}
	o, err := a.store.CreateOpportunity(&models.Opportunity{
		SourceURL:          strings.TrimSpace(req.SourceURL),
		Title:              strings.TrimSpace(req.Title),
		Description:        req.Description,
		LabName:            req.LabName,
		PIName:             req.PIName,
		Institution:        req.Institution,
		ResearchTopics:     req.ResearchTopics,
		Methods:            req.Methods,
		Datasets:           req.Datasets,
		Deadline:           req.Deadline,
		FundingStatus:      req.FundingStatus,
		ExperienceRequired: req.ExperienceRequired,
		ContactEmail:       req.ContactEmail,
		ApplicationLink:    req.ApplicationLink,
		LocationCity:       req.LocationCity,
		LocationState:      strings.ToUpper(strings.TrimSpace(req.LocationState)),
		IsRemote:           req.IsRemote,
		DegreeLevels:       req.DegreeLevels,
		MinHours:           req.MinHours,
		MaxHours:           req.MaxHours,
		PaidType:           req.PaidType,
		IsActive:           true,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (a *API) handleOpportunityByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/opportunities/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not_found", "unknown path")
		return
	}
	switch r.Method {
	case http.MethodGet:
		o, err := a.store.GetOpportunity(id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, o)
	case http.MethodPut:
		a.updateOpportunity(w, r, id)
	case http.MethodDelete:
		if _, ok := a.authUser(w, r); !ok {
			return
		}
		if err := a.store.DeactivateOpportunity(id); err != nil {
			writeErr(w, err)
			return
		}
		// the posting is gone from the searchable corpus either way
		if err := a.vectors.Delete(r.Context(), id); err != nil {
			a.logger.Debug("vector delete skipped", "opportunity", id, "error", err.Error())
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	}
}

func (a *API) updateOpportunity(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := a.authUser(w, r); !ok {
		return
	}
	var req struct {
		Title              *string    `json:"title"`
		Description        *string    `json:"description"`
		LabName            *string    `json:"labName"`
		PIName             *string    `json:"piName"`
		Institution        *string    `json:"institution"`
		ResearchTopics     *[]string  `json:"researchTopics"`
		Methods            *[]string  `json:"methods"`
		Datasets           *[]string  `json:"datasets"`
		Deadline           *time.Time `json:"deadline"`
		FundingStatus      *string    `json:"fundingStatus"`
		ExperienceRequired *string    `json:"experienceRequired"`
		ContactEmail       *string    `json:"contactEmail"`
		ApplicationLink    *string    `json:"applicationLink"`
		IsActive           *bool      `json:"isActive"`
		LocationCity       *string    `json:"locationCity"`
		LocationState      *string    `json:"locationState"`
		IsRemote           *bool      `json:"isRemote"`
		DegreeLevels       *[]string  `json:"degreeLevels"`
		MinHours           *int       `json:"minHours"`
		MaxHours           *int       `json:"maxHours"`
		PaidType           *string    `json:"paidType"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	o, change, err := a.store.UpdateOpportunity(id, store.OpportunityPatch{
		Title:              req.Title,
		Description:        req.Description,
		LabName:            req.LabName,
		PIName:             req.PIName,
		Institution:        req.Institution,
		ResearchTopics:     req.ResearchTopics,
		Methods:            req.Methods,
		Datasets:           req.Datasets,
		Deadline:           req.Deadline,
		FundingStatus:      req.FundingStatus,
		ExperienceRequired: req.ExperienceRequired,
		ContactEmail:       req.ContactEmail,
		ApplicationLink:    req.ApplicationLink,
		IsActive:           req.IsActive,
		LocationCity:       req.LocationCity,
		LocationState:      req.LocationState,
		IsRemote:           req.IsRemote,
		DegreeLevels:       req.DegreeLevels,
		MinHours:           req.MinHours,
		MaxHours:           req.MaxHours,
		PaidType:           req.PaidType,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	switch {
	case change.Content:
		// the stored vector is gone; the mirror row follows until a sweep
		// re-embeds the posting
		if err := a.vectors.Delete(r.Context(), id); err != nil {
			a.logger.Debug("vector delete skipped", "opportunity", id, "error", err.Error())
		}
	case change.Filter:
		a.syncVector(r.Context(), o)
	}
	writeJSON(w, http.StatusOK, o)
}

// syncVector brings the native mirror in line with the posting's current
// filter columns. Deactivated postings leave the mirror entirely.
func (a *API) syncVector(ctx context.Context, o *models.Opportunity) {
	if !o.IsActive {
		if err := a.vectors.Delete(ctx, o.ID); err != nil {
			a.logger.Debug("vector delete skipped", "opportunity", o.ID, "error", err.Error())
		}
		return
	}
	e, err := a.store.GetEmbedding(models.OwnerOpportunity, o.ID)
	if err != nil {
		// nothing stored yet; the next sweep will mirror it
		return
	}
	if err := a.vectors.Upsert(ctx, []vectorstore.Item{vectorstore.ItemFrom(o, e.Vector)}); err != nil {
		a.logger.Debug("vector resync skipped", "opportunity", o.ID, "error", err.Error())
	}
}
