package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"labmatch/internal/config"
	"labmatch/internal/llm"
	"labmatch/internal/store"
	"labmatch/internal/vectorstore"
)

// fakeLLM answers chats with a canned draft and embeds text onto a 3-dim
// space keyed by topic words.
type fakeLLM struct {
	chatReply string
}

func (f *fakeLLM) Chat(ctx context.Context, model string, messages []llm.Message, temperature float32) (string, error) {
	return f.chatReply, nil
}

func (f *fakeLLM) Embeddings(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		low := strings.ToLower(in)
		switch {
		case strings.Contains(low, "vision"):
			out[i] = []float32{1, 0, 0}
		case strings.Contains(low, "poetry"):
			out[i] = []float32{0, 1, 0}
		default:
			out[i] = []float32{0.5, 0.5, 0}
		}
	}
	return out, nil
}

func newTestAPI(t *testing.T) *API {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Skip("sqlite open:", err)
	}
	t.Cleanup(func() { st.Close() })
	cfg := config.Config{
		ChatModel:      "fake-chat",
		EmbeddingModel: "fake-embed",
		EmbeddingDim:   3,
		JWTSecret:      "test-secret",
		UploadDir:      t.TempDir(),
		OpenAIAPIKey:   "test-key",
	}
	f := &fakeLLM{chatReply: "Subject: Interest in your lab\n\nDear Professor, I would like to join."}
	return NewAPI(cfg, st, f, f, vectorstore.Unavailable{}, false)
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v\n%s", err, rec.Body.String())
	}
}

// signupUser registers a user and returns the access token.
func signupUser(t *testing.T, mux http.Handler, email string) string {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": email, "password": "longenough", "name": "Test User",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Tokens struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		} `json:"tokens"`
	}
	decodeBody(t, rec, &resp)
	return resp.Tokens.AccessToken
}

func TestHealthz(t *testing.T) {
	mux := newTestAPI(t).mux()
	rec := doJSON(t, mux, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
}

func TestSignupSigninMe(t *testing.T) {
	mux := newTestAPI(t).mux()
	signupUser(t, mux, "a@uni.edu")

	// duplicate email conflicts
	rec := doJSON(t, mux, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": "a@uni.edu", "password": "longenough", "name": "Again",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup: %d", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodPost, "/auth/signin", "", map[string]string{
		"email": "a@uni.edu", "password": "longenough",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("signin: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Tokens struct {
			AccessToken string `json:"accessToken"`
		} `json:"tokens"`
	}
	decodeBody(t, rec, &resp)

	rec = doJSON(t, mux, http.MethodGet, "/auth/me", resp.Tokens.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: %d", rec.Code)
	}
	var me struct {
		Email string `json:"email"`
	}
	decodeBody(t, rec, &me)
	if me.Email != "a@uni.edu" {
		t.Fatalf("me email: %q", me.Email)
	}

	rec = doJSON(t, mux, http.MethodPost, "/auth/signin", "", map[string]string{
		"email": "a@uni.edu", "password": "wrongwrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: %d", rec.Code)
	}
}

func TestSignupValidation(t *testing.T) {
	mux := newTestAPI(t).mux()
	cases := []map[string]string{
		{"email": "nope", "password": "longenough", "name": "X"},
		{"email": "a@b.c", "password": "short", "name": "X"},
		{"email": "a@b.c", "password": "longenough", "name": " "},
	}
	for i, c := range cases {
		if rec := doJSON(t, mux, http.MethodPost, "/auth/signup", "", c); rec.Code != http.StatusBadRequest {
			t.Fatalf("case %d: %d", i, rec.Code)
		}
	}
}

func TestRefreshRotationAndLogout(t *testing.T) {
	mux := newTestAPI(t).mux()
	rec := doJSON(t, mux, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": "r@uni.edu", "password": "longenough", "name": "R",
	})
	var resp struct {
		Tokens struct {
			RefreshToken string `json:"refreshToken"`
		} `json:"tokens"`
	}
	decodeBody(t, rec, &resp)

	rec = doJSON(t, mux, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": resp.Tokens.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", rec.Code, rec.Body.String())
	}
	// old refresh token is spent
	rec = doJSON(t, mux, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": resp.Tokens.RefreshToken})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh: %d", rec.Code)
	}

	var next struct {
		Tokens struct {
			RefreshToken string `json:"refreshToken"`
		} `json:"tokens"`
	}
	// re-login to get a fresh pair for logout
	rec = doJSON(t, mux, http.MethodPost, "/auth/signin", "", map[string]string{
		"email": "r@uni.edu", "password": "longenough",
	})
	decodeBody(t, rec, &next)
	rec = doJSON(t, mux, http.MethodPost, "/auth/logout", "", map[string]string{"refreshToken": next.Tokens.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: %d", rec.Code)
	}
	rec = doJSON(t, mux, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": next.Tokens.RefreshToken})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: %d", rec.Code)
	}
}

func TestProfileUpdateAndValidation(t *testing.T) {
	mux := newTestAPI(t).mux()
	token := signupUser(t, mux, "p@uni.edu")

	rec := doJSON(t, mux, http.MethodPut, "/profile", token, map[string]any{
		"researchInterests": "computer vision",
		"degreeLevel":       "masters",
		"skills":            []string{"python"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("profile put: %d %s", rec.Code, rec.Body.String())
	}
	var u struct {
		ResearchInterests string   `json:"researchInterests"`
		DegreeLevel       string   `json:"degreeLevel"`
		Skills            []string `json:"skills"`
	}
	decodeBody(t, rec, &u)
	if u.ResearchInterests != "computer vision" || u.DegreeLevel != "masters" || len(u.Skills) != 1 {
		t.Fatalf("profile: %+v", u)
	}

	rec = doJSON(t, mux, http.MethodPut, "/profile", token, map[string]any{"degreeLevel": "postdoc"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad degree level: %d", rec.Code)
	}
	rec = doJSON(t, mux, http.MethodGet, "/profile", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated profile: %d", rec.Code)
	}
}

func TestOpportunityCRUDRoutes(t *testing.T) {
	mux := newTestAPI(t).mux()
	token := signupUser(t, mux, "o@uni.edu")

	rec := doJSON(t, mux, http.MethodPost, "/opportunities", token, map[string]any{
		"sourceURL":   "https://lab.example.edu/p/1",
		"title":       "Vision Lab RA",
		"description": "Work on segmentation",
		"locationState": "ca",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID            string `json:"opportunityID"`
		LocationState string `json:"locationState"`
	}
	decodeBody(t, rec, &created)
	if created.LocationState != "CA" {
		t.Fatalf("state not normalized: %q", created.LocationState)
	}

	// duplicate source URL
	rec = doJSON(t, mux, http.MethodPost, "/opportunities", token, map[string]any{
		"sourceURL": "https://lab.example.edu/p/1", "title": "X", "description": "Y",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: %d", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodGet, "/opportunities/"+created.ID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodPut, "/opportunities/"+created.ID, token, map[string]any{
		"title": "Updated Vision Lab RA",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, mux, http.MethodGet, "/opportunities?q=vision", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var list struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &list)
	if list.Count != 1 {
		t.Fatalf("list count: %d", list.Count)
	}

	rec = doJSON(t, mux, http.MethodDelete, "/opportunities/"+created.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	rec = doJSON(t, mux, http.MethodGet, "/opportunities", "", nil)
	decodeBody(t, rec, &list)
	if list.Count != 0 {
		t.Fatalf("deactivated posting still listed: %d", list.Count)
	}
	rec = doJSON(t, mux, http.MethodGet, "/opportunities/missing", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing get: %d", rec.Code)
	}
}
