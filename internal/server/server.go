// Package server exposes the HTTP API: auth, profiles, opportunities,
// semantic search, embedding maintenance, outreach drafting and scraping.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"labmatch/internal/auth"
	"labmatch/internal/config"
	"labmatch/internal/embeddings"
	"labmatch/internal/llm"
	"labmatch/internal/llm/openai"
	mylog "labmatch/internal/log"
	"labmatch/internal/match"
	"labmatch/internal/models"
	"labmatch/internal/scraper"
	"labmatch/internal/store"
	"labmatch/internal/vectorstore"
)

// Store is the persistence surface the handlers depend on. *store.SQLiteStore
// satisfies it.
type Store interface {
	CreateUser(email, passwordHash, name string) (*models.User, error)
	GetUser(id string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	UpdateProfile(id string, p store.ProfilePatch) (*models.User, bool, error)
	SetResume(id, filePath, text string) error

	AddRefreshToken(*models.RefreshToken) error
	GetRefreshToken(token string) (*models.RefreshToken, error)
	RevokeRefreshToken(token string) error

	CreateOpportunity(*models.Opportunity) (*models.Opportunity, error)
	GetOpportunity(id string) (*models.Opportunity, error)
	GetOpportunityBySourceURL(url string) (*models.Opportunity, error)
	UpdateOpportunity(id string, p store.OpportunityPatch) (*models.Opportunity, store.OpportunityChange, error)
	DeactivateOpportunity(id string) error
	ListOpportunities(opt store.ListOptions) ([]*models.Opportunity, error)
	CountActiveOpportunities() (int, error)

	UpsertEmbedding(*models.Embedding) error
	GetEmbedding(kind, ownerID string) (*models.Embedding, error)
	DeleteEmbedding(kind, ownerID string) error
	CountEmbeddings(kind string) (int, error)
	SweepUserCandidates() ([]*models.User, error)
	SweepOpportunityCandidates() ([]*models.Opportunity, error)
	ActiveOpportunityVectors() ([]store.OpportunityVector, error)

	AddOutreach(*models.Outreach) error
	GetOutreach(id string) (*models.Outreach, error)
	ListOutreachByUser(userID string) ([]*models.Outreach, error)
	MarkOutreachEdited(id, userID, edited string) error
	MarkOutreachSent(id, userID string, at time.Time) error

	SaveMatch(userID, opportunityID string, score float64) (*models.Match, error)
	ListMatches(userID, status string) ([]*models.Match, error)
	UpdateMatchStatus(id, userID, status string) error
}

type API struct {
	cfg     config.Config
	store   Store
	tokens  *auth.Tokens
	chat    llm.ChatProvider
	search  *match.Service
	embeds  *embeddings.Service
	scraper *scraper.Scraper
	vectors vectorstore.Store
	native  bool
	logger  *mylog.Logger
}

func NewAPI(cfg config.Config, st Store, chat llm.ChatProvider, emb llm.Embedder, vs vectorstore.Store, native bool) *API {
	lg := mylog.New()
	secret := cfg.JWTSecret
	if secret == "" {
		secret = "labmatch-dev-secret"
		lg.Warn("jwt secret not configured, using development default")
	}
	a := &API{
		cfg:     cfg,
		store:   st,
		tokens:  auth.NewTokens(secret, st),
		chat:    chat,
		vectors: vs,
		native:  native,
		logger:  lg,
	}
	a.search = match.NewService(st, vs, emb, cfg.EmbeddingModel, cfg.EmbeddingDim, lg)
	a.embeds = embeddings.NewService(st, emb, vs, cfg.EmbeddingModel, cfg.EmbeddingDim, lg)
	a.scraper = scraper.New(chat, st, cfg.ChatModel, lg)
	return a
}

func (a *API) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/auth/signup", a.handleSignup)
	mux.HandleFunc("/auth/signin", a.handleSignin)
	mux.HandleFunc("/auth/refresh", a.handleRefresh)
	mux.HandleFunc("/auth/logout", a.handleLogout)
	mux.HandleFunc("/auth/me", a.handleMe)
	mux.HandleFunc("/profile", a.handleProfile)
	mux.HandleFunc("/profile/resume", a.handleResumeUpload)
	mux.HandleFunc("/opportunities", a.handleOpportunities)
	mux.HandleFunc("/opportunities/search", a.handleSearch)
	mux.HandleFunc("/opportunities/search/status", a.handleSearchStatus)
	mux.HandleFunc("/opportunities/", a.handleOpportunityByID)
	mux.HandleFunc("/embeddings/users/sweep", a.handleSweepUsers)
	mux.HandleFunc("/embeddings/opportunities/sweep", a.handleSweepOpportunities)
	mux.HandleFunc("/embeddings/users/", a.handleEmbedUser)
	mux.HandleFunc("/embeddings/opportunities/", a.handleEmbedOpportunity)
	mux.HandleFunc("/embeddings/stats", a.handleEmbeddingStats)
	mux.HandleFunc("/outreach", a.handleOutreachList)
	mux.HandleFunc("/outreach/generate", a.handleOutreachGenerate)
	mux.HandleFunc("/outreach/", a.handleOutreachByID)
	mux.HandleFunc("/matches", a.handleMatches)
	mux.HandleFunc("/matches/", a.handleMatchByID)
	mux.HandleFunc("/scrape/run", a.handleScrapeRun)
	mux.HandleFunc("/metrics", a.handleMetrics)
	return mux
}

// Handler returns the full middleware-wrapped handler.
func (a *API) Handler() http.Handler {
	return logMiddleware(rateLimitMiddleware(a.mux()))
}

// Run wires the whole service from configuration and serves until SIGINT or
// SIGTERM.
func Run(addr string) error {
	_ = config.LoadAndApply()
	cfg := config.FromEnv()
	lg := mylog.New()

	path := cfg.SQLitePath
	if path == "" {
		path = "labmatch.db"
	}
	st, err := store.NewSQLite(path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	minGap := time.Duration(0)
	if v := os.Getenv("LABMATCH_LLM_MIN_INTERVAL_MS"); v != "" {
		if d, err := time.ParseDuration(v + "ms"); err == nil && d > 0 {
			minGap = d
		}
	}
	client := openai.New(cfg, minGap)

	vs, native := vectorstore.New(context.Background(), cfg, lg)
	api := NewAPI(cfg, st, client, client, vs, native)

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		lg.Info("listening", "addr", addr, "vector_native", native)
		serveErr <- srv.ListenAndServe()
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigc:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		return fmt.Errorf("shutdown by signal: %v", sig)
	case err := <-serveErr:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
