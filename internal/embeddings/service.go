// Package embeddings turns profile and posting text into stored vectors and
// keeps the vector corpus complete via batch sweeps.
package embeddings

import (
	"context"
	"errors"
	"strings"

	"labmatch/internal/errs"
	"labmatch/internal/llm"
	"labmatch/internal/log"
	"labmatch/internal/models"
	"labmatch/internal/vectorstore"
)

// Repository is the slice of the relational store the service needs.
type Repository interface {
	GetUser(id string) (*models.User, error)
	GetOpportunity(id string) (*models.Opportunity, error)
	UpsertEmbedding(*models.Embedding) error
	GetEmbedding(kind, ownerID string) (*models.Embedding, error)
	SweepUserCandidates() ([]*models.User, error)
	SweepOpportunityCandidates() ([]*models.Opportunity, error)
	CountEmbeddings(kind string) (int, error)
}

type Service struct {
	repo     Repository
	embedder llm.Embedder
	vectors  vectorstore.Store
	model    string
	dim      int
	logger   *log.Logger
}

func NewService(repo Repository, embedder llm.Embedder, vectors vectorstore.Store, model string, dim int, logger *log.Logger) *Service {
	return &Service{repo: repo, embedder: embedder, vectors: vectors, model: model, dim: dim, logger: logger}
}

// UserText is the exact text embedded for a profile.
func UserText(u *models.User) string {
	return strings.TrimSpace(u.ResearchInterests)
}

// OpportunityText joins title, description and topics into one passage.
func OpportunityText(o *models.Opportunity) string {
	parts := []string{strings.TrimSpace(o.Title), strings.TrimSpace(o.Description)}
	if len(o.ResearchTopics) > 0 {
		parts = append(parts, "Research topics: "+strings.Join(o.ResearchTopics, ", "))
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ". ")
}

func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errs.InvalidInputf("nothing to embed")
	}
	vecs, err := s.embedder.Embeddings(ctx, s.model, []string{text})
	if err != nil {
		return nil, err
	}
	vec := vecs[0]
	if s.dim > 0 && len(vec) != s.dim {
		return nil, errs.DimensionMismatch(s.dim, len(vec))
	}
	return vec, nil
}

// GenerateUser embeds the user's research interests and stores the vector.
func (s *Service) GenerateUser(ctx context.Context, userID string) (*models.Embedding, error) {
	u, err := s.repo.GetUser(userID)
	if err != nil {
		return nil, err
	}
	text := UserText(u)
	vec, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e := &models.Embedding{
		OwnerKind:  models.OwnerUser,
		OwnerID:    u.ID,
		Model:      s.model,
		SourceText: text,
		Dim:        len(vec),
		Vector:     vec,
	}
	if err := s.repo.UpsertEmbedding(e); err != nil {
		return nil, err
	}
	return e, nil
}

// GenerateOpportunity embeds the posting text, stores the vector and mirrors
// it to the native vector backend when one is serving.
func (s *Service) GenerateOpportunity(ctx context.Context, opportunityID string) (*models.Embedding, error) {
	o, err := s.repo.GetOpportunity(opportunityID)
	if err != nil {
		return nil, err
	}
	text := OpportunityText(o)
	vec, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e := &models.Embedding{
		OwnerKind:  models.OwnerOpportunity,
		OwnerID:    o.ID,
		Model:      s.model,
		SourceText: text,
		Dim:        len(vec),
		Vector:     vec,
	}
	if err := s.repo.UpsertEmbedding(e); err != nil {
		return nil, err
	}
	if err := s.vectors.Upsert(ctx, []vectorstore.Item{vectorstore.ItemFrom(o, vec)}); err != nil {
		if !errors.Is(err, errs.ErrBackendUnavailable) {
			return nil, err
		}
	}
	return e, nil
}

// SweepResult counts the outcome of one maintenance pass.
type SweepResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// SweepUsers walks every user and embeds the ones lacking a vector. Users
// already holding a vector count as skipped, as do users with no text to
// embed; generation errors are logged and counted, never fatal.
func (s *Service) SweepUsers(ctx context.Context) (SweepResult, error) {
	users, err := s.repo.SweepUserCandidates()
	if err != nil {
		return SweepResult{}, err
	}
	var res SweepResult
	for _, u := range users {
		if _, err := s.repo.GetEmbedding(models.OwnerUser, u.ID); err == nil {
			res.Skipped++
			continue
		}
		if UserText(u) == "" {
			res.Skipped++
			continue
		}
		if _, err := s.GenerateUser(ctx, u.ID); err != nil {
			res.Failed++
			s.logger.Warn("user embedding failed", "user", u.ID, "error", err.Error())
			continue
		}
		res.Success++
	}
	return res, nil
}

// SweepOpportunities walks every active posting and embeds the ones lacking
// a vector, counting already-embedded postings as skipped.
func (s *Service) SweepOpportunities(ctx context.Context) (SweepResult, error) {
	opps, err := s.repo.SweepOpportunityCandidates()
	if err != nil {
		return SweepResult{}, err
	}
	var res SweepResult
	for _, o := range opps {
		if _, err := s.repo.GetEmbedding(models.OwnerOpportunity, o.ID); err == nil {
			res.Skipped++
			continue
		}
		if OpportunityText(o) == "" {
			res.Skipped++
			continue
		}
		if _, err := s.GenerateOpportunity(ctx, o.ID); err != nil {
			res.Failed++
			s.logger.Warn("opportunity embedding failed", "opportunity", o.ID, "error", err.Error())
			continue
		}
		res.Success++
	}
	return res, nil
}

// Stats reports vector coverage per owner kind.
type Stats struct {
	Users         int    `json:"users"`
	Opportunities int    `json:"opportunities"`
	Model         string `json:"model"`
	Dim           int    `json:"dim"`
}

func (s *Service) Stats() (Stats, error) {
	users, err := s.repo.CountEmbeddings(models.OwnerUser)
	if err != nil {
		return Stats{}, err
	}
	opps, err := s.repo.CountEmbeddings(models.OwnerOpportunity)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Users: users, Opportunities: opps, Model: s.model, Dim: s.dim}, nil
}
