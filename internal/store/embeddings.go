package store

import (
	"database/sql"
	"encoding/json"
	"errors"

	"labmatch/internal/errs"
	"labmatch/internal/models"
)

// UpsertEmbedding replaces the stored vector for (owner_kind, owner_id).
func (s *SQLiteStore) UpsertEmbedding(e *models.Embedding) error {
	if len(e.Vector) == 0 {
		return errs.InvalidInputf("empty vector")
	}
	if e.Dim == 0 {
		e.Dim = len(e.Vector)
	}
	if e.Dim != len(e.Vector) {
		return errs.DimensionMismatch(e.Dim, len(e.Vector))
	}
	vec, _ := json.Marshal(e.Vector)
	if e.EmbeddedAt.IsZero() {
		e.EmbeddedAt = now()
	}
	_, err := s.db.Exec(`INSERT INTO embeddings(owner_kind,owner_id,model,source_text,dim,vector,embedded_at)
        VALUES(?,?,?,?,?,?,?)
        ON CONFLICT(owner_kind,owner_id) DO UPDATE SET
            model=excluded.model, source_text=excluded.source_text, dim=excluded.dim,
            vector=excluded.vector, embedded_at=excluded.embedded_at`,
		e.OwnerKind, e.OwnerID, e.Model, e.SourceText, e.Dim, string(vec), fmtTime(e.EmbeddedAt))
	return err
}

func (s *SQLiteStore) GetEmbedding(kind, ownerID string) (*models.Embedding, error) {
	var e models.Embedding
	var vec, embedded string
	err := s.db.QueryRow(`SELECT owner_kind,owner_id,model,source_text,dim,vector,embedded_at
        FROM embeddings WHERE owner_kind=? AND owner_id=?`, kind, ownerID).
		Scan(&e.OwnerKind, &e.OwnerID, &e.Model, &e.SourceText, &e.Dim, &vec, &embedded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("embedding not found")
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(vec), &e.Vector); err != nil {
		return nil, err
	}
	e.EmbeddedAt = parseTime(embedded)
	return &e, nil
}

func (s *SQLiteStore) DeleteEmbedding(kind, ownerID string) error {
	_, err := s.db.Exec(`DELETE FROM embeddings WHERE owner_kind=? AND owner_id=?`, kind, ownerID)
	return err
}

func (s *SQLiteStore) CountEmbeddings(kind string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM embeddings WHERE owner_kind=?`, kind).Scan(&n)
	return n, err
}

// SweepUserCandidates returns every user, oldest first. The sweep decides
// per user whether a vector already exists or there is text worth embedding.
func (s *SQLiteStore) SweepUserCandidates() ([]*models.User, error) {
	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.User
	for rows.Next() {
		u, err := s.scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SweepOpportunityCandidates returns every active opportunity, oldest first.
func (s *SQLiteStore) SweepOpportunityCandidates() ([]*models.Opportunity, error) {
	rows, err := s.db.Query(`SELECT ` + oppCols + ` FROM opportunities
        WHERE is_active=1 ORDER BY scraped_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Opportunity
	for rows.Next() {
		o, err := s.scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// OpportunityVector pairs an active opportunity with its stored vector for
// the in-process ranking path.
type OpportunityVector struct {
	Opportunity *models.Opportunity
	Vector      []float32
}

// ActiveOpportunityVectors loads every active opportunity that has a vector
// in one pass, ordered by id for deterministic downstream ranking.
func (s *SQLiteStore) ActiveOpportunityVectors() ([]OpportunityVector, error) {
	rows, err := s.db.Query(`SELECT ` + oppCols + `, e.vector FROM opportunities o
        JOIN embeddings e ON e.owner_kind='opportunity' AND e.owner_id=o.id
        WHERE o.is_active=1
        ORDER BY o.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OpportunityVector
	for rows.Next() {
		var raw string
		o, err := s.scanOpportunity(rows, &raw)
		if err != nil {
			return nil, err
		}
		var v []float32
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		out = append(out, OpportunityVector{Opportunity: o, Vector: v})
	}
	return out, rows.Err()
}
