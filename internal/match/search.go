package match

import (
	"context"
	"errors"
	"strings"

	"labmatch/internal/errs"
	"labmatch/internal/llm"
	"labmatch/internal/log"
	"labmatch/internal/models"
	"labmatch/internal/store"
	"labmatch/internal/vectorstore"
)

// Catalog is the slice of the relational store the orchestrator reads.
type Catalog interface {
	GetOpportunity(id string) (*models.Opportunity, error)
	ActiveOpportunityVectors() ([]store.OpportunityVector, error)
	CountActiveOpportunities() (int, error)
}

// Service runs semantic search: embed the query, try the native vector
// backend, and fall back to in-process ranking when it is unavailable.
type Service struct {
	catalog  Catalog
	vectors  vectorstore.Store
	embedder llm.Embedder
	model    string
	dim      int
	logger   *log.Logger
}

func NewService(catalog Catalog, vectors vectorstore.Store, embedder llm.Embedder, model string, dim int, logger *log.Logger) *Service {
	return &Service{catalog: catalog, vectors: vectors, embedder: embedder, model: model, dim: dim, logger: logger}
}

// Response carries ranked results plus the context a client needs to render
// them: how many postings were searchable and which path served the query.
type Response struct {
	Results     []models.SearchResult `json:"results"`
	TotalActive int                   `json:"totalActive"`
	Backend     string                `json:"backend"` // pgvector | fallback
}

// Search embeds the query and returns up to limit ranked matches among
// active opportunities passing the filters. limit 0 returns no results but
// still reports the active count.
func (s *Service) Search(ctx context.Context, query string, f models.SearchFilters, limit int) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.InvalidInputf("search query required")
	}
	if limit < 0 {
		return nil, errs.InvalidInputf("limit must be non-negative")
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	f = Normalize(f)

	total, err := s.catalog.CountActiveOpportunities()
	if err != nil {
		return nil, err
	}
	if limit == 0 {
		return &Response{Results: []models.SearchResult{}, TotalActive: total}, nil
	}

	vecs, err := s.embedder.Embeddings(ctx, s.model, []string{query})
	if err != nil {
		return nil, err
	}
	qvec := vecs[0]
	if s.dim > 0 && len(qvec) != s.dim {
		return nil, errs.DimensionMismatch(s.dim, len(qvec))
	}

	resp, err := s.searchNative(ctx, qvec, f, limit, total)
	if err == nil {
		return resp, nil
	}
	if !errors.Is(err, errs.ErrBackendUnavailable) {
		return nil, err
	}
	s.logger.Warn("native vector search unavailable, ranking in process", "error", err.Error())
	return s.searchFallback(qvec, f, limit, total)
}

func (s *Service) searchNative(ctx context.Context, qvec []float32, f models.SearchFilters, limit, total int) (*Response, error) {
	hits, err := s.vectors.Search(ctx, qvec, f, limit)
	if err != nil {
		return nil, err
	}
	results := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		o, err := s.catalog.GetOpportunity(h.OpportunityID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				// vector row outlived its posting; skip it
				continue
			}
			return nil, err
		}
		if !o.IsActive {
			// mirror row for a posting deactivated since the last sync
			continue
		}
		results = append(results, models.SearchResult{Opportunity: o, Score: clamp01(h.Similarity)})
	}
	return &Response{Results: results, TotalActive: total, Backend: "pgvector"}, nil
}

func (s *Service) searchFallback(qvec []float32, f models.SearchFilters, limit, total int) (*Response, error) {
	vecs, err := s.catalog.ActiveOpportunityVectors()
	if err != nil {
		return nil, err
	}
	if skipped := total - len(vecs); skipped > 0 {
		s.logger.Info("postings without stored vectors skipped", "count", skipped)
	}
	cands := make([]Candidate, 0, len(vecs))
	for _, v := range vecs {
		if !Matches(v.Opportunity, f) {
			continue
		}
		cands = append(cands, Candidate{Opportunity: v.Opportunity, Vector: v.Vector})
	}
	ranked, err := Rank(qvec, cands)
	if err != nil {
		return nil, err
	}
	return &Response{Results: Truncate(ranked, limit), TotalActive: total, Backend: "fallback"}, nil
}
