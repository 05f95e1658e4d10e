// Package vectorstore holds opportunity vectors for nearest-neighbor search.
// The native backend is PostgreSQL with pgvector; when it is not reachable
// the Unavailable variant makes every call fail with ErrBackendUnavailable
// so callers switch to their in-process path.
package vectorstore

import (
	"context"
	"fmt"

	"labmatch/internal/errs"
	"labmatch/internal/models"
)

// Item is one opportunity vector plus the columns filters run against.
type Item struct {
	OpportunityID string
	Vector        []float32
	IsActive      bool
	LocationState string
	IsRemote      bool
	DegreeLevels  []string
	MinHours      *int
	MaxHours      *int
	PaidType      string
}

// ItemFrom pairs an opportunity with its vector for upserting.
func ItemFrom(o *models.Opportunity, vec []float32) Item {
	return Item{
		OpportunityID: o.ID,
		Vector:        vec,
		IsActive:      o.IsActive,
		LocationState: o.LocationState,
		IsRemote:      o.IsRemote,
		DegreeLevels:  o.DegreeLevels,
		MinHours:      o.MinHours,
		MaxHours:      o.MaxHours,
		PaidType:      o.PaidType,
	}
}

// Result is a single nearest neighbor: higher similarity is better, always
// in [0,1].
type Result struct {
	OpportunityID string
	Similarity    float64
}

// Store defines the vector operations the search path needs.
type Store interface {
	Upsert(ctx context.Context, items []Item) error
	Delete(ctx context.Context, opportunityID string) error
	Search(ctx context.Context, query []float32, f models.SearchFilters, k int) ([]Result, error)
}

// Unavailable is the degraded variant chosen when the startup probe fails.
type Unavailable struct{}

func unavailable() error {
	return fmt.Errorf("%w: vector backend not reachable", errs.ErrBackendUnavailable)
}

func (Unavailable) Upsert(ctx context.Context, items []Item) error { return unavailable() }

func (Unavailable) Delete(ctx context.Context, opportunityID string) error { return unavailable() }

func (Unavailable) Search(ctx context.Context, query []float32, f models.SearchFilters, k int) ([]Result, error) {
	return nil, unavailable()
}
