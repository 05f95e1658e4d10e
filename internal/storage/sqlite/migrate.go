package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrator applies the core schema. Caller provides an opened *sql.DB.
type Migrator struct{}

func (m Migrator) Up(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            email TEXT NOT NULL,
            password_hash TEXT NOT NULL,
            name TEXT NOT NULL,
            university TEXT,
            major TEXT,
            graduation_year INTEGER,
            gpa TEXT,
            resume_file_path TEXT,
            resume_text TEXT,
            skills TEXT,
            research_interests TEXT NOT NULL DEFAULT '',
            degree_level TEXT NOT NULL DEFAULT 'undergraduate',
            location_preferences TEXT,
            availability TEXT,
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email);`,
		`CREATE TABLE IF NOT EXISTS opportunities (
            id TEXT PRIMARY KEY,
            source_url TEXT NOT NULL,
            title TEXT NOT NULL,
            description TEXT NOT NULL,
            lab_name TEXT,
            pi_name TEXT,
            institution TEXT,
            research_topics TEXT,
            methods TEXT,
            datasets TEXT,
            deadline TEXT,
            funding_status TEXT,
            experience_required TEXT,
            contact_email TEXT,
            application_link TEXT,
            is_active INTEGER NOT NULL DEFAULT 1,
            location_city TEXT,
            location_state TEXT,
            is_remote INTEGER NOT NULL DEFAULT 0,
            degree_levels TEXT,
            min_hours INTEGER,
            max_hours INTEGER,
            paid_type TEXT,
            scraped_at TEXT NOT NULL,
            last_updated TEXT NOT NULL
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_opportunities_source_url ON opportunities(source_url);`,
		`CREATE INDEX IF NOT EXISTS idx_opportunities_active ON opportunities(is_active);`,
		`CREATE INDEX IF NOT EXISTS idx_opportunities_state ON opportunities(location_state);`,
		// embeddings: one vector per (owner_kind, owner_id), replaced in place
		`CREATE TABLE IF NOT EXISTS embeddings (
            owner_kind TEXT NOT NULL,
            owner_id TEXT NOT NULL,
            model TEXT NOT NULL,
            source_text TEXT NOT NULL,
            dim INTEGER NOT NULL,
            vector TEXT NOT NULL,
            embedded_at TEXT NOT NULL,
            PRIMARY KEY(owner_kind, owner_id)
        );`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
            token TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            revoked INTEGER NOT NULL DEFAULT 0,
            created_at TEXT NOT NULL,
            expires_at TEXT NOT NULL,
            FOREIGN KEY(user_id) REFERENCES users(id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens(user_id);`,
		`CREATE TABLE IF NOT EXISTS outreach (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            opportunity_id TEXT NOT NULL,
            generated_email TEXT NOT NULL,
            user_edited_email TEXT,
            sent_at TEXT,
            created_at TEXT NOT NULL,
            FOREIGN KEY(user_id) REFERENCES users(id),
            FOREIGN KEY(opportunity_id) REFERENCES opportunities(id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_outreach_user ON outreach(user_id);`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}
