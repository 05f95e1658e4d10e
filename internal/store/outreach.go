package store

import (
	"database/sql"
	"errors"
	"time"

	"labmatch/internal/errs"
	"labmatch/internal/models"
)

func (s *SQLiteStore) AddOutreach(o *models.Outreach) error {
	if o.ID == "" {
		o.ID = newID()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now()
	}
	var edited, sent any
	if o.UserEditedEmail != "" {
		edited = o.UserEditedEmail
	}
	if o.SentAt != nil {
		sent = fmtTime(*o.SentAt)
	}
	_, err := s.db.Exec(`INSERT INTO outreach(id,user_id,opportunity_id,generated_email,user_edited_email,sent_at,created_at)
        VALUES(?,?,?,?,?,?,?)`,
		o.ID, o.UserID, o.OpportunityID, o.GeneratedEmail, edited, sent, fmtTime(o.CreatedAt))
	return err
}

func (s *SQLiteStore) scanOutreach(row interface{ Scan(...any) error }) (*models.Outreach, error) {
	var o models.Outreach
	var edited, sent sql.NullString
	var created string
	err := row.Scan(&o.ID, &o.UserID, &o.OpportunityID, &o.GeneratedEmail, &edited, &sent, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("outreach not found")
	}
	if err != nil {
		return nil, err
	}
	o.UserEditedEmail = edited.String
	if sent.Valid && sent.String != "" {
		t := parseTime(sent.String)
		o.SentAt = &t
	}
	o.CreatedAt = parseTime(created)
	return &o, nil
}

func (s *SQLiteStore) GetOutreach(id string) (*models.Outreach, error) {
	return s.scanOutreach(s.db.QueryRow(
		`SELECT id,user_id,opportunity_id,generated_email,user_edited_email,sent_at,created_at FROM outreach WHERE id=?`, id))
}

func (s *SQLiteStore) ListOutreachByUser(userID string) ([]*models.Outreach, error) {
	rows, err := s.db.Query(
		`SELECT id,user_id,opportunity_id,generated_email,user_edited_email,sent_at,created_at
         FROM outreach WHERE user_id=? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Outreach
	for rows.Next() {
		o, err := s.scanOutreach(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// MarkOutreachEdited stores the user's revision of a draft.
func (s *SQLiteStore) MarkOutreachEdited(id, userID, edited string) error {
	res, err := s.db.Exec(`UPDATE outreach SET user_edited_email=? WHERE id=? AND user_id=?`, edited, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("outreach not found")
	}
	return nil
}

// MarkOutreachSent stamps the send time once.
func (s *SQLiteStore) MarkOutreachSent(id, userID string, at time.Time) error {
	res, err := s.db.Exec(`UPDATE outreach SET sent_at=? WHERE id=? AND user_id=?`, fmtTime(at), id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("outreach not found")
	}
	return nil
}
