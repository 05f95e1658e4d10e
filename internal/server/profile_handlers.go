package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"labmatch/internal/errs"
	"labmatch/internal/resume"
	"labmatch/internal/store"
)

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := a.authUser(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		u, err := a.store.GetUser(uid)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	case http.MethodPut:
		var req struct {
			Name                *string   `json:"name"`
			University          *string   `json:"university"`
			Major               *string   `json:"major"`
			GraduationYear      *int      `json:"graduationYear"`
			GPA                 *string   `json:"gpa"`
			Skills              *[]string `json:"skills"`
			ResearchInterests   *string   `json:"researchInterests"`
			DegreeLevel         *string   `json:"degreeLevel"`
			LocationPreferences *[]string `json:"locationPreferences"`
			Availability        *string   `json:"availability"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		if req.DegreeLevel != nil {
			switch *req.DegreeLevel {
			case "undergraduate", "masters", "phd":
			default:
				writeErr(w, errs.InvalidInputf("degree level must be undergraduate, masters or phd"))
				return
			}
		}
		u, interestsChanged, err := a.store.UpdateProfile(uid, store.ProfilePatch{
			Name:                req.Name,
			University:          req.University,
			Major:               req.Major,
			GraduationYear:      req.GraduationYear,
			GPA:                 req.GPA,
			Skills:              req.Skills,
			ResearchInterests:   req.ResearchInterests,
			DegreeLevel:         req.DegreeLevel,
			LocationPreferences: req.LocationPreferences,
			Availability:        req.Availability,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		if interestsChanged {
			a.logger.Info("research interests changed, profile vector dropped", "user", uid)
		}
		writeJSON(w, http.StatusOK, u)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	}
}

const maxResumeBytes = 10 << 20

func (a *API) handleResumeUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	uid, ok := a.authUser(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxResumeBytes)
	if err := r.ParseMultipartForm(maxResumeBytes); err != nil {
		writeErr(w, errs.InvalidInputf("multipart body required (max 10 MB)"))
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeErr(w, errs.InvalidInputf("file field required"))
		return
	}
	defer file.Close()
	if !strings.EqualFold(filepath.Ext(hdr.Filename), ".pdf") {
		writeErr(w, errs.InvalidInputf("only PDF resumes are accepted"))
		return
	}

	if err := os.MkdirAll(a.cfg.UploadDir, 0o755); err != nil {
		writeErr(w, err)
		return
	}
	dest := filepath.Join(a.cfg.UploadDir, fmt.Sprintf("resume_%s_%d.pdf", uid, time.Now().Unix()))
	out, err := os.Create(dest)
	if err != nil {
		writeErr(w, err)
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		writeErr(w, err)
		return
	}
	out.Close()

	text, err := resume.ExtractPDFText(dest)
	if err != nil {
		// keep the file, report the parse failure
		if serr := a.store.SetResume(uid, dest, ""); serr != nil {
			writeErr(w, serr)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"resumeFilePath": dest,
			"parsingStatus":  "failed",
			"detail":         err.Error(),
		})
		return
	}
	if err := a.store.SetResume(uid, dest, text); err != nil {
		writeErr(w, err)
		return
	}

	parsed := resume.Parse(text)
	patch := store.ProfilePatch{}
	if len(parsed.Skills) > 0 {
		patch.Skills = &parsed.Skills
	}
	if parsed.University != "" {
		patch.University = &parsed.University
	}
	if parsed.Major != "" {
		patch.Major = &parsed.Major
	}
	if parsed.GraduationYear != 0 {
		patch.GraduationYear = &parsed.GraduationYear
	}
	if patch != (store.ProfilePatch{}) {
		if _, _, err := a.store.UpdateProfile(uid, patch); err != nil {
			writeErr(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"resumeFilePath": dest,
		"parsingStatus":  "ok",
		"parsed":         parsed,
	})
}
