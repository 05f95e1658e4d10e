package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestMigrationsVersioningAndTables(t *testing.T) {
	dir := t.TempDir()
	dbpath := filepath.Join(dir, "mig.db")
	db, err := sql.Open("sqlite", dbpath)
	if err != nil {
		t.Skip("sqlite open:", err)
	}
	defer db.Close()

	m := Manager{}
	if err := m.UpToLatest(context.Background(), db); err != nil {
		t.Fatalf("UpToLatest error: %v", err)
	}
	var v int
	if err := db.QueryRow(`SELECT version FROM schema_migrations`).Scan(&v); err != nil {
		t.Fatalf("version scan: %v", err)
	}
	if v != latestVersion {
		t.Fatalf("unexpected version: %d", v)
	}

	mustHave := []string{"users", "opportunities", "embeddings", "refresh_tokens", "outreach", "matches"}
	for _, name := range mustHave {
		var cnt int
		if err := db.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&cnt); err != nil || cnt == 0 {
			t.Fatalf("expected table %s to exist", name)
		}
	}

	// down one then back up
	if err := m.DownOne(context.Background(), db); err != nil {
		t.Fatalf("DownOne error: %v", err)
	}
	if err := m.UpToLatest(context.Background(), db); err != nil {
		t.Fatalf("UpToLatest after down error: %v", err)
	}
}

func TestEmbeddingsUniquePerOwner(t *testing.T) {
	dir := t.TempDir()
	db, err := sql.Open("sqlite", filepath.Join(dir, "uniq.db"))
	if err != nil {
		t.Skip("sqlite open:", err)
	}
	defer db.Close()
	if err := (Manager{}).UpToLatest(context.Background(), db); err != nil {
		t.Fatalf("UpToLatest error: %v", err)
	}
	ins := `INSERT INTO embeddings(owner_kind,owner_id,model,source_text,dim,vector,embedded_at) VALUES('user','u1','m','t',3,'[1,2,3]','2026-01-01T00:00:00Z')`
	if _, err := db.Exec(ins); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := db.Exec(ins); err == nil {
		t.Fatalf("expected uniqueness violation on second insert")
	}
}
