package store

import (
	"labmatch/internal/errs"
	"labmatch/internal/models"
)

// SaveMatch upserts a user's saved match. Re-saving refreshes the score and
// leaves the status alone.
func (s *SQLiteStore) SaveMatch(userID, opportunityID string, score float64) (*models.Match, error) {
	m := &models.Match{
		ID:            newID(),
		UserID:        userID,
		OpportunityID: opportunityID,
		Score:         score,
		Status:        "pending",
		CreatedAt:     now(),
		UpdatedAt:     now(),
	}
	_, err := s.db.Exec(`INSERT INTO matches(id,user_id,opportunity_id,score,status,created_at,updated_at)
        VALUES(?,?,?,?,?,?,?)
        ON CONFLICT(user_id,opportunity_id) DO UPDATE SET score=excluded.score, updated_at=excluded.updated_at`,
		m.ID, m.UserID, m.OpportunityID, m.Score, m.Status, fmtTime(m.CreatedAt), fmtTime(m.UpdatedAt))
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRow(`SELECT id,user_id,opportunity_id,score,status,created_at,updated_at
        FROM matches WHERE user_id=? AND opportunity_id=?`, userID, opportunityID)
	var created, updated string
	if err := row.Scan(&m.ID, &m.UserID, &m.OpportunityID, &m.Score, &m.Status, &created, &updated); err != nil {
		return nil, err
	}
	m.CreatedAt = parseTime(created)
	m.UpdatedAt = parseTime(updated)
	return m, nil
}

func (s *SQLiteStore) ListMatches(userID, status string) ([]*models.Match, error) {
	q := `SELECT id,user_id,opportunity_id,score,status,created_at,updated_at FROM matches WHERE user_id=?`
	args := []any{userID}
	if status != "" {
		q += ` AND status=?`
		args = append(args, status)
	}
	q += ` ORDER BY score DESC, created_at DESC`
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Match
	for rows.Next() {
		var m models.Match
		var created, updated string
		if err := rows.Scan(&m.ID, &m.UserID, &m.OpportunityID, &m.Score, &m.Status, &created, &updated); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(created)
		m.UpdatedAt = parseTime(updated)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateMatchStatus(id, userID, status string) error {
	switch status {
	case "pending", "saved", "dismissed", "contacted":
	default:
		return errs.InvalidInputf("unknown match status %q", status)
	}
	res, err := s.db.Exec(`UPDATE matches SET status=?, updated_at=? WHERE id=? AND user_id=?`,
		status, fmtTime(now()), id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("match not found")
	}
	return nil
}
