package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"labmatch/internal/errs"
	"labmatch/internal/llm"
	"labmatch/internal/models"
)

const outreachSystemPrompt = `You write short, specific cold emails from a student to a
principal investigator about joining their research. Ground every claim in the
provided profile. Aim for 150-220 words, no flattery padding. Start the reply
with a line "Subject: ..." followed by a blank line and the body.`

func outreachUserPrompt(u *models.User, o *models.Opportunity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Student: %s", u.Name)
	if u.University != "" {
		fmt.Fprintf(&b, ", %s", u.University)
	}
	if u.Major != "" {
		fmt.Fprintf(&b, ", majoring in %s", u.Major)
	}
	if u.GraduationYear != 0 {
		fmt.Fprintf(&b, ", graduating %d", u.GraduationYear)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Research interests: %s\n", u.ResearchInterests)
	if len(u.Skills) > 0 {
		fmt.Fprintf(&b, "Skills: %s\n", strings.Join(u.Skills, ", "))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Opportunity: %s\n", o.Title)
	if o.PIName != "" {
		fmt.Fprintf(&b, "PI: %s\n", o.PIName)
	}
	if o.LabName != "" {
		fmt.Fprintf(&b, "Lab: %s\n", o.LabName)
	}
	if o.Institution != "" {
		fmt.Fprintf(&b, "Institution: %s\n", o.Institution)
	}
	fmt.Fprintf(&b, "Description: %s\n", o.Description)
	if len(o.ResearchTopics) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(o.ResearchTopics, ", "))
	}
	return b.String()
}

// splitSubject separates a leading "Subject:" line from the body.
func splitSubject(email string) (subject, body string) {
	email = strings.TrimSpace(email)
	lines := strings.SplitN(email, "\n", 2)
	if strings.HasPrefix(strings.ToLower(lines[0]), "subject:") {
		subject = strings.TrimSpace(lines[0][len("subject:"):])
		if len(lines) == 2 {
			body = strings.TrimSpace(lines[1])
		}
		return subject, body
	}
	return "", email
}

func (a *API) handleOutreachGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	uid, ok := a.authUser(w, r)
	if !ok {
		return
	}
	var req struct {
		OpportunityID string `json:"opportunityID"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	u, err := a.store.GetUser(uid)
	if err != nil {
		writeErr(w, err)
		return
	}
	if strings.TrimSpace(u.ResearchInterests) == "" {
		writeErr(w, errs.InvalidInputf("add research interests to your profile before generating outreach"))
		return
	}
	o, err := a.store.GetOpportunity(req.OpportunityID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !o.IsActive {
		writeErr(w, errs.InvalidInputf("opportunity is no longer active"))
		return
	}

	draft, err := a.chat.Chat(r.Context(), a.cfg.ChatModel, []llm.Message{
		{Role: llm.RoleSystem, Content: outreachSystemPrompt},
		{Role: llm.RoleUser, Content: outreachUserPrompt(u, o)},
	}, 0.7)
	if err != nil {
		writeErr(w, err)
		return
	}
	subject, body := splitSubject(draft)

	rec := &models.Outreach{
		UserID:         uid,
		OpportunityID:  o.ID,
		GeneratedEmail: strings.TrimSpace(draft),
	}
	if err := a.store.AddOutreach(rec); err != nil {
		writeErr(w, err)
		return
	}
	metrics.mu.Lock()
	metrics.outreachDrafts++
	metrics.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{
		"outreach": rec,
		"subject":  subject,
		"body":     body,
	})
}

func (a *API) handleOutreachList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	uid, ok := a.authUser(w, r)
	if !ok {
		return
	}
	list, err := a.store.ListOutreachByUser(uid)
	if err != nil {
		writeErr(w, err)
		return
	}
	if list == nil {
		list = []*models.Outreach{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"outreach": list, "count": len(list)})
}

func (a *API) handleOutreachByID(w http.ResponseWriter, r *http.Request) {
	uid, ok := a.authUser(w, r)
	if !ok {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/outreach/")
	switch {
	case r.Method == http.MethodPut && rest != "" && !strings.Contains(rest, "/"):
		var req struct {
			UserEditedEmail string `json:"userEditedEmail"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		if strings.TrimSpace(req.UserEditedEmail) == "" {
			writeErr(w, errs.InvalidInputf("userEditedEmail required"))
			return
		}
		if err := a.store.MarkOutreachEdited(rest, uid, req.UserEditedEmail); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	case r.Method == http.MethodPost && strings.HasSuffix(rest, "/sent"):
		id := strings.TrimSuffix(rest, "/sent")
		if err := a.store.MarkOutreachSent(id, uid, time.Now().UTC()); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown path")
	}
}
