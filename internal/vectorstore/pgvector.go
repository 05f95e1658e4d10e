package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"labmatch/internal/errs"
	"labmatch/internal/models"
)

// PGVector runs nearest-neighbor search natively in PostgreSQL using the
// pgvector <=> cosine distance operator. Filter columns are denormalized
// next to the vector so the whole search is one indexed query.
type PGVector struct {
	db  *sql.DB
	dim int
}

// NewPGVector opens the DSN, verifies connectivity and ensures the schema.
// Callers treat an error here as "no native backend" and degrade.
func NewPGVector(ctx context.Context, dsn string, dim int) (*PGVector, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: no pgvector DSN configured", errs.ErrBackendUnavailable)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrBackendUnavailable, err)
	}
	p := &PGVector{db: db, dim: dim}
	if err := p.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", errs.ErrBackendUnavailable, err)
	}
	return p, nil
}

func (p *PGVector) ensureSchema(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return err
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS opportunity_vectors (
            opportunity_id TEXT PRIMARY KEY,
            embedding vector(%d) NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            location_state TEXT,
            is_remote BOOLEAN NOT NULL DEFAULT FALSE,
            degree_levels TEXT[],
            min_hours INT,
            max_hours INT,
            paid_type TEXT
        )`, p.dim),
	}
	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (p *PGVector) Close() error { return p.db.Close() }

func (p *PGVector) Upsert(ctx context.Context, items []Item) error {
	for _, it := range items {
		if len(it.Vector) != p.dim {
			return errs.DimensionMismatch(p.dim, len(it.Vector))
		}
		_, err := p.db.ExecContext(ctx, `INSERT INTO opportunity_vectors
            (opportunity_id, embedding, is_active, location_state, is_remote, degree_levels, min_hours, max_hours, paid_type)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
            ON CONFLICT (opportunity_id) DO UPDATE SET
                embedding=EXCLUDED.embedding, is_active=EXCLUDED.is_active,
                location_state=EXCLUDED.location_state, is_remote=EXCLUDED.is_remote,
                degree_levels=EXCLUDED.degree_levels, min_hours=EXCLUDED.min_hours,
                max_hours=EXCLUDED.max_hours, paid_type=EXCLUDED.paid_type`,
			it.OpportunityID, pgvector.NewVector(it.Vector), it.IsActive,
			nullable(it.LocationState), it.IsRemote, pq.Array(it.DegreeLevels),
			nullableInt(it.MinHours), nullableInt(it.MaxHours), nullable(it.PaidType))
		if err != nil {
			return fmt.Errorf("%w: upsert: %v", errs.ErrBackendUnavailable, err)
		}
	}
	return nil
}

func (p *PGVector) Delete(ctx context.Context, opportunityID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM opportunity_vectors WHERE opportunity_id=$1`, opportunityID)
	if err != nil {
		return fmt.Errorf("%w: delete: %v", errs.ErrBackendUnavailable, err)
	}
	return nil
}

// filterSQL renders the WHERE tail for the given filters, appending bind
// args after the query vector which is always $1.
func filterSQL(f models.SearchFilters, args []any) (string, []any) {
	var conds []string
	next := func() int { return len(args) + 1 }
	if len(f.States) > 0 {
		// remote postings satisfy a state filter regardless of location
		conds = append(conds, fmt.Sprintf("(location_state = ANY($%d) OR is_remote)", next()))
		args = append(args, pq.Array(f.States))
	}
	if f.IsRemote != nil {
		conds = append(conds, fmt.Sprintf("is_remote = $%d", next()))
		args = append(args, *f.IsRemote)
	}
	if f.DegreeLevel != "" {
		// postings with no level restriction accept every level
		conds = append(conds, fmt.Sprintf("(degree_levels IS NULL OR cardinality(degree_levels) = 0 OR $%d = ANY(degree_levels))", next()))
		args = append(args, f.DegreeLevel)
	}
	if f.PaidType != "" {
		conds = append(conds, fmt.Sprintf("paid_type = $%d", next()))
		args = append(args, f.PaidType)
	}
	if f.MinHours != nil {
		// posting range must reach the requested minimum; open max passes
		conds = append(conds, fmt.Sprintf("(max_hours IS NULL OR max_hours >= $%d)", next()))
		args = append(args, *f.MinHours)
	}
	if f.MaxHours != nil {
		conds = append(conds, fmt.Sprintf("(min_hours IS NULL OR min_hours <= $%d)", next()))
		args = append(args, *f.MaxHours)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " AND " + strings.Join(conds, " AND "), args
}

func (p *PGVector) Search(ctx context.Context, query []float32, f models.SearchFilters, k int) ([]Result, error) {
	if len(query) != p.dim {
		return nil, errs.DimensionMismatch(p.dim, len(query))
	}
	if k <= 0 {
		return nil, nil
	}
	args := []any{pgvector.NewVector(query)}
	where, args := filterSQL(f, args)
	args = append(args, k)
	q := fmt.Sprintf(`SELECT opportunity_id, embedding <=> $1 AS distance
        FROM opportunity_vectors
        WHERE is_active%s
        ORDER BY embedding <=> $1, opportunity_id
        LIMIT $%d`, where, len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", errs.ErrBackendUnavailable, err)
	}
	defer rows.Close()
	var out []Result
	for rows.Next() {
		var id string
		var dist float64
		if err := rows.Scan(&id, &dist); err != nil {
			return nil, err
		}
		// cosine distance is in [0,2]; map to similarity in [0,1]
		out = append(out, Result{OpportunityID: id, Similarity: 1 - dist/2})
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}
