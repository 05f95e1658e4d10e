package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"labmatch/internal/errs"
	"labmatch/internal/models"
	sqlm "labmatch/internal/storage/sqlite"
)

// SQLiteStore is the relational store backing every entity. One handle per
// process; modernc sqlite is limited to a single writer connection.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := mkdirAll(dir); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := (sqlm.Manager{}).UpToLatest(context.Background(), db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// DB exposes the underlying handle for the fallback vector scan.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// WithTx commits on nil error and rolls back otherwise. The callback must
// not hold the tx beyond return.
func (s *SQLiteStore) WithTx(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func newID() string { return uuid.NewString() }

func now() time.Time { return time.Now().UTC() }

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// list columns are stored as JSON arrays; empty slices collapse to NULL.
func marshalList(v []string) any {
	if len(v) == 0 {
		return nil
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func unmarshalList(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(s.String), &out)
	return out
}

func isUniqueErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Users

func (s *SQLiteStore) CreateUser(email, passwordHash, name string) (*models.User, error) {
	u := &models.User{
		ID:           newID(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		DegreeLevel:  "undergraduate",
		CreatedAt:    now(),
		UpdatedAt:    now(),
	}
	_, err := s.db.Exec(`INSERT INTO users(id,email,password_hash,name,research_interests,degree_level,created_at,updated_at)
        VALUES(?,?,?,?,?,?,?,?)`,
		u.ID, u.Email, u.PasswordHash, u.Name, "", u.DegreeLevel, fmtTime(u.CreatedAt), fmtTime(u.UpdatedAt))
	if isUniqueErr(err) {
		return nil, fmt.Errorf("%w: email already registered", errs.ErrAlreadyExists)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

const userCols = `id,email,password_hash,name,university,major,graduation_year,gpa,resume_file_path,resume_text,skills,research_interests,degree_level,location_preferences,availability,created_at,updated_at`

func (s *SQLiteStore) scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	var university, major, gpa, resumePath, resumeText, skills, locPrefs, availability sql.NullString
	var gradYear sql.NullInt64
	var created, updated string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &university, &major, &gradYear, &gpa,
		&resumePath, &resumeText, &skills, &u.ResearchInterests, &u.DegreeLevel, &locPrefs, &availability,
		&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("user not found")
	}
	if err != nil {
		return nil, err
	}
	u.University = university.String
	u.Major = major.String
	u.GraduationYear = int(gradYear.Int64)
	u.GPA = gpa.String
	u.ResumeFilePath = resumePath.String
	u.ResumeText = resumeText.String
	u.Skills = unmarshalList(skills)
	u.LocationPreferences = unmarshalList(locPrefs)
	u.Availability = availability.String
	u.CreatedAt = parseTime(created)
	u.UpdatedAt = parseTime(updated)
	return &u, nil
}

func (s *SQLiteStore) GetUser(id string) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id=?`, id))
}

func (s *SQLiteStore) GetUserByEmail(email string) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email=?`, email))
}

// ProfilePatch carries PATCH-style profile updates: nil pointer means leave
// the column alone.
type ProfilePatch struct {
	Name                *string
	University          *string
	Major               *string
	GraduationYear      *int
	GPA                 *string
	Skills              *[]string
	ResearchInterests   *string
	DegreeLevel         *string
	LocationPreferences *[]string
	Availability        *string
}

// UpdateProfile applies the patch and reports whether research_interests
// changed, so the caller can drop the stale profile vector.
func (s *SQLiteStore) UpdateProfile(id string, p ProfilePatch) (*models.User, bool, error) {
	u, err := s.GetUser(id)
	if err != nil {
		return nil, false, err
	}
	interestsChanged := false
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.University != nil {
		u.University = *p.University
	}
	if p.Major != nil {
		u.Major = *p.Major
	}
	if p.GraduationYear != nil {
		u.GraduationYear = *p.GraduationYear
	}
	if p.GPA != nil {
		u.GPA = *p.GPA
	}
	if p.Skills != nil {
		u.Skills = *p.Skills
	}
	if p.ResearchInterests != nil && *p.ResearchInterests != u.ResearchInterests {
		u.ResearchInterests = *p.ResearchInterests
		interestsChanged = true
	}
	if p.DegreeLevel != nil {
		u.DegreeLevel = *p.DegreeLevel
	}
	if p.LocationPreferences != nil {
		u.LocationPreferences = *p.LocationPreferences
	}
	if p.Availability != nil {
		u.Availability = *p.Availability
	}
	u.UpdatedAt = now()
	_, err = s.db.Exec(`UPDATE users SET name=?,university=?,major=?,graduation_year=?,gpa=?,skills=?,
        research_interests=?,degree_level=?,location_preferences=?,availability=?,updated_at=? WHERE id=?`,
		u.Name, nullStr(u.University), nullStr(u.Major), nullInt(u.GraduationYear), nullStr(u.GPA),
		marshalList(u.Skills), u.ResearchInterests, u.DegreeLevel, marshalList(u.LocationPreferences),
		nullStr(u.Availability), fmtTime(u.UpdatedAt), id)
	if err != nil {
		return nil, false, err
	}
	if interestsChanged {
		_ = s.DeleteEmbedding(models.OwnerUser, id)
	}
	return u, interestsChanged, nil
}

// SetResume records the uploaded file and extracted text.
func (s *SQLiteStore) SetResume(id, filePath, text string) error {
	res, err := s.db.Exec(`UPDATE users SET resume_file_path=?, resume_text=?, updated_at=? WHERE id=?`,
		filePath, text, fmtTime(now()), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("user not found")
	}
	return nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

// Refresh tokens

func (s *SQLiteStore) AddRefreshToken(t *models.RefreshToken) error {
	_, err := s.db.Exec(`INSERT INTO refresh_tokens(token,user_id,revoked,created_at,expires_at) VALUES(?,?,?,?,?)`,
		t.Token, t.UserID, boolInt(t.Revoked), fmtTime(t.CreatedAt), fmtTime(t.ExpiresAt))
	return err
}

func (s *SQLiteStore) GetRefreshToken(token string) (*models.RefreshToken, error) {
	var t models.RefreshToken
	var revoked int
	var created, expires string
	err := s.db.QueryRow(`SELECT token,user_id,revoked,created_at,expires_at FROM refresh_tokens WHERE token=?`, token).
		Scan(&t.Token, &t.UserID, &revoked, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("refresh token not found")
	}
	if err != nil {
		return nil, err
	}
	t.Revoked = revoked != 0
	t.CreatedAt = parseTime(created)
	t.ExpiresAt = parseTime(expires)
	return &t, nil
}

func (s *SQLiteStore) RevokeRefreshToken(token string) error {
	res, err := s.db.Exec(`UPDATE refresh_tokens SET revoked=1 WHERE token=?`, token)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("refresh token not found")
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Opportunities

const oppCols = `id,source_url,title,description,lab_name,pi_name,institution,research_topics,methods,datasets,deadline,funding_status,experience_required,contact_email,application_link,is_active,location_city,location_state,is_remote,degree_levels,min_hours,max_hours,paid_type,scraped_at,last_updated`

func (s *SQLiteStore) scanOpportunity(row interface{ Scan(...any) error }, extra ...any) (*models.Opportunity, error) {
	var o models.Opportunity
	var lab, pi, inst, topics, methods, datasets, deadline, funding, exp, email, link sql.NullString
	var city, state, degrees, paid sql.NullString
	var minH, maxH sql.NullInt64
	var active, remote int
	var scraped, updated string
	dest := []any{&o.ID, &o.SourceURL, &o.Title, &o.Description, &lab, &pi, &inst, &topics, &methods,
		&datasets, &deadline, &funding, &exp, &email, &link, &active, &city, &state, &remote, &degrees,
		&minH, &maxH, &paid, &scraped, &updated}
	dest = append(dest, extra...)
	err := row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("opportunity not found")
	}
	if err != nil {
		return nil, err
	}
	o.LabName = lab.String
	o.PIName = pi.String
	o.Institution = inst.String
	o.ResearchTopics = unmarshalList(topics)
	o.Methods = unmarshalList(methods)
	o.Datasets = unmarshalList(datasets)
	if deadline.Valid && deadline.String != "" {
		t := parseTime(deadline.String)
		o.Deadline = &t
	}
	o.FundingStatus = funding.String
	o.ExperienceRequired = exp.String
	o.ContactEmail = email.String
	o.ApplicationLink = link.String
	o.IsActive = active != 0
	o.LocationCity = city.String
	o.LocationState = state.String
	o.IsRemote = remote != 0
	o.DegreeLevels = unmarshalList(degrees)
	if minH.Valid {
		v := int(minH.Int64)
		o.MinHours = &v
	}
	if maxH.Valid {
		v := int(maxH.Int64)
		o.MaxHours = &v
	}
	o.PaidType = paid.String
	o.ScrapedAt = parseTime(scraped)
	o.LastUpdated = parseTime(updated)
	return &o, nil
}

func (s *SQLiteStore) insertArgs(o *models.Opportunity) []any {
	var deadline any
	if o.Deadline != nil {
		deadline = fmtTime(*o.Deadline)
	}
	var minH, maxH any
	if o.MinHours != nil {
		minH = *o.MinHours
	}
	if o.MaxHours != nil {
		maxH = *o.MaxHours
	}
	return []any{
		o.ID, o.SourceURL, o.Title, o.Description, nullStr(o.LabName), nullStr(o.PIName), nullStr(o.Institution),
		marshalList(o.ResearchTopics), marshalList(o.Methods), marshalList(o.Datasets), deadline,
		nullStr(o.FundingStatus), nullStr(o.ExperienceRequired), nullStr(o.ContactEmail), nullStr(o.ApplicationLink),
		boolInt(o.IsActive), nullStr(o.LocationCity), nullStr(o.LocationState), boolInt(o.IsRemote),
		marshalList(o.DegreeLevels), minH, maxH, nullStr(o.PaidType), fmtTime(o.ScrapedAt), fmtTime(o.LastUpdated),
	}
}

// normalizeOpportunity canonicalizes the filterable columns so in-process
// filtering and SQL-pushed filtering compare like with like.
func normalizeOpportunity(o *models.Opportunity) {
	o.LocationState = strings.ToUpper(strings.TrimSpace(o.LocationState))
	o.PaidType = strings.ToLower(strings.TrimSpace(o.PaidType))
	for i, d := range o.DegreeLevels {
		o.DegreeLevels[i] = strings.ToLower(strings.TrimSpace(d))
	}
}

func (s *SQLiteStore) CreateOpportunity(o *models.Opportunity) (*models.Opportunity, error) {
	if o.ID == "" {
		o.ID = newID()
	}
	normalizeOpportunity(o)
	if o.ScrapedAt.IsZero() {
		o.ScrapedAt = now()
	}
	o.LastUpdated = now()
	_, err := s.db.Exec(`INSERT INTO opportunities(`+oppCols+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.insertArgs(o)...)
	if isUniqueErr(err) {
		return nil, fmt.Errorf("%w: opportunity with this source URL already exists", errs.ErrAlreadyExists)
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *SQLiteStore) GetOpportunity(id string) (*models.Opportunity, error) {
	return s.scanOpportunity(s.db.QueryRow(`SELECT `+oppCols+` FROM opportunities WHERE id=?`, id))
}

func (s *SQLiteStore) GetOpportunityBySourceURL(url string) (*models.Opportunity, error) {
	return s.scanOpportunity(s.db.QueryRow(`SELECT `+oppCols+` FROM opportunities WHERE source_url=?`, url))
}

// OpportunityPatch mirrors ProfilePatch for opportunity updates.
type OpportunityPatch struct {
	Title              *string
	Description        *string
	LabName            *string
	PIName             *string
	Institution        *string
	ResearchTopics     *[]string
	Methods            *[]string
	Datasets           *[]string
	Deadline           *time.Time
	FundingStatus      *string
	ExperienceRequired *string
	ContactEmail       *string
	ApplicationLink    *string
	IsActive           *bool
	LocationCity       *string
	LocationState      *string
	IsRemote           *bool
	DegreeLevels       *[]string
	MinHours           *int
	MaxHours           *int
	PaidType           *string
}

// OpportunityChange reports which aspects of a posting an update touched.
// Content covers the embedded text (title, description, topics); Filter
// covers the columns the search backends filter on, including is_active.
type OpportunityChange struct {
	Content bool
	Filter  bool
}

// UpdateOpportunity applies the patch and reports what changed. Callers drop
// the stored vector on content changes and resync the native vector mirror
// on filter changes.
func (s *SQLiteStore) UpdateOpportunity(id string, p OpportunityPatch) (*models.Opportunity, OpportunityChange, error) {
	var change OpportunityChange
	o, err := s.GetOpportunity(id)
	if err != nil {
		return nil, change, err
	}
	if p.Title != nil && *p.Title != o.Title {
		o.Title = *p.Title
		change.Content = true
	}
	if p.Description != nil && *p.Description != o.Description {
		o.Description = *p.Description
		change.Content = true
	}
	if p.ResearchTopics != nil {
		if !equalList(*p.ResearchTopics, o.ResearchTopics) {
			change.Content = true
		}
		o.ResearchTopics = *p.ResearchTopics
	}
	if p.LabName != nil {
		o.LabName = *p.LabName
	}
	if p.PIName != nil {
		o.PIName = *p.PIName
	}
	if p.Institution != nil {
		o.Institution = *p.Institution
	}
	if p.Methods != nil {
		o.Methods = *p.Methods
	}
	if p.Datasets != nil {
		o.Datasets = *p.Datasets
	}
	if p.Deadline != nil {
		o.Deadline = p.Deadline
	}
	if p.FundingStatus != nil {
		o.FundingStatus = *p.FundingStatus
	}
	if p.ExperienceRequired != nil {
		o.ExperienceRequired = *p.ExperienceRequired
	}
	if p.ContactEmail != nil {
		o.ContactEmail = *p.ContactEmail
	}
	if p.ApplicationLink != nil {
		o.ApplicationLink = *p.ApplicationLink
	}
	if p.IsActive != nil {
		if o.IsActive != *p.IsActive {
			change.Filter = true
		}
		o.IsActive = *p.IsActive
	}
	if p.LocationCity != nil {
		o.LocationCity = *p.LocationCity
	}
	if p.LocationState != nil {
		if o.LocationState != strings.ToUpper(strings.TrimSpace(*p.LocationState)) {
			change.Filter = true
		}
		o.LocationState = *p.LocationState
	}
	if p.IsRemote != nil {
		if o.IsRemote != *p.IsRemote {
			change.Filter = true
		}
		o.IsRemote = *p.IsRemote
	}
	if p.DegreeLevels != nil {
		if !equalList(*p.DegreeLevels, o.DegreeLevels) {
			change.Filter = true
		}
		o.DegreeLevels = *p.DegreeLevels
	}
	if p.MinHours != nil {
		if o.MinHours == nil || *o.MinHours != *p.MinHours {
			change.Filter = true
		}
		o.MinHours = p.MinHours
	}
	if p.MaxHours != nil {
		if o.MaxHours == nil || *o.MaxHours != *p.MaxHours {
			change.Filter = true
		}
		o.MaxHours = p.MaxHours
	}
	if p.PaidType != nil {
		if o.PaidType != strings.ToLower(strings.TrimSpace(*p.PaidType)) {
			change.Filter = true
		}
		o.PaidType = *p.PaidType
	}
	normalizeOpportunity(o)
	o.LastUpdated = now()
	args := s.insertArgs(o)
	// reuse insert column order, shifting id to the WHERE clause
	_, err = s.db.Exec(`UPDATE opportunities SET source_url=?,title=?,description=?,lab_name=?,pi_name=?,institution=?,
        research_topics=?,methods=?,datasets=?,deadline=?,funding_status=?,experience_required=?,contact_email=?,
        application_link=?,is_active=?,location_city=?,location_state=?,is_remote=?,degree_levels=?,min_hours=?,
        max_hours=?,paid_type=?,scraped_at=?,last_updated=? WHERE id=?`,
		append(args[1:], id)...)
	if err != nil {
		return nil, change, err
	}
	if change.Content {
		_ = s.DeleteEmbedding(models.OwnerOpportunity, id)
	}
	return o, change, nil
}

// DeactivateOpportunity soft-deletes.
func (s *SQLiteStore) DeactivateOpportunity(id string) error {
	res, err := s.db.Exec(`UPDATE opportunities SET is_active=0, last_updated=? WHERE id=?`, fmtTime(now()), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("opportunity not found")
	}
	return nil
}

// ListOptions narrows and pages the opportunity listing.
type ListOptions struct {
	Offset        int
	Limit         int
	IsActive      *bool
	Institution   string
	FundingStatus string
	Search        string
}

func (s *SQLiteStore) ListOpportunities(opt ListOptions) ([]*models.Opportunity, error) {
	where := []string{"1=1"}
	args := []any{}
	if opt.IsActive != nil {
		where = append(where, "is_active=?")
		args = append(args, boolInt(*opt.IsActive))
	}
	if opt.Institution != "" {
		where = append(where, "institution LIKE ?")
		args = append(args, "%"+opt.Institution+"%")
	}
	if opt.FundingStatus != "" {
		where = append(where, "funding_status=?")
		args = append(args, opt.FundingStatus)
	}
	if opt.Search != "" {
		where = append(where, "(title LIKE ? OR description LIKE ? OR lab_name LIKE ? OR pi_name LIKE ?)")
		pat := "%" + opt.Search + "%"
		args = append(args, pat, pat, pat, pat)
	}
	limit := opt.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit, opt.Offset)
	rows, err := s.db.Query(`SELECT `+oppCols+` FROM opportunities WHERE `+strings.Join(where, " AND ")+
		` ORDER BY last_updated DESC LIMIT ? OFFSET ?`, args...)
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

func (s *SQLiteStore) CountActiveOpportunities() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM opportunities WHERE is_active=1`).Scan(&n)
	return n, err
}

func equalList(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mkdirAll(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
