// Package store records each run's regions and references in SQLite so
// later runs can check old references for drift.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/phobologic/livedoc/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationTable = "schema_migrations"

// ErrNoRuns is returned when the ledger holds no recorded run.
var ErrNoRuns = errors.New("no recorded runs")

// Run summarizes one recorded run.
type Run struct {
	ID          int64
	CreatedAt   time.Time
	RegionCount int
	RefCount    int
}

// Store is the SQLite-backed reference ledger.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the ledger at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	dsn := "file:" + cleanPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(db, migrationFS, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun records the regions and references of one run and returns its id.
func (s *Store) SaveRun(ctx context.Context, regions []model.Region, refs []model.Reference) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (created_at, region_count, ref_count) VALUES (?, ?, ?)`,
		s.now().UTC().UnixMilli(), len(regions), len(refs))
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	regionStmt, err := tx.PrepareContext(ctx, `
INSERT OR IGNORE INTO regions (run_id, repo_id, name, source_path, language, start_line, end_line)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare regions: %w", err)
	}
	defer regionStmt.Close()
	for _, r := range regions {
		if _, err := regionStmt.ExecContext(ctx, runID, r.RepoID, r.Name, r.SourcePath, r.Language, r.StartLine, r.EndLine); err != nil {
			return 0, fmt.Errorf("insert region %s: %w", r.Key(), err)
		}
	}

	refStmt, err := tx.PrepareContext(ctx, `
INSERT INTO refs (run_id, seq, document_path, written_spec, form, resolved, key_repo, key_name, key_path, failure_reason)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare refs: %w", err)
	}
	defer refStmt.Close()
	for i, ref := range refs {
		var key model.Key
		if ref.ResolvedKey != nil {
			key = *ref.ResolvedKey
		}
		_, err := refStmt.ExecContext(ctx, runID, i, ref.DocumentPath, ref.WrittenSpec, string(ref.Form),
			boolToInt(ref.ResolvedKey != nil), key.RepoID, key.Name, key.Path, string(ref.FailureReason))
		if err != nil {
			return 0, fmt.Errorf("insert ref %q: %w", ref.WrittenSpec, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

// LatestRun returns the most recent run, or ErrNoRuns.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	var (
		run     Run
		created int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, created_at, region_count, ref_count
FROM runs
ORDER BY id DESC
LIMIT 1`).Scan(&run.ID, &created, &run.RegionCount, &run.RefCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	if err != nil {
		return Run{}, fmt.Errorf("latest run: %w", err)
	}
	run.CreatedAt = time.UnixMilli(created).UTC()
	return run, nil
}

// References returns the references recorded for one run.
func (s *Store) References(ctx context.Context, runID int64) ([]model.Reference, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT document_path, written_spec, form, resolved, key_repo, key_name, key_path, failure_reason
FROM refs
WHERE run_id = ?
ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	defer rows.Close()

	var refs []model.Reference
	for rows.Next() {
		var (
			ref      model.Reference
			form     string
			resolved int
			key      model.Key
			reason   string
		)
		if err := rows.Scan(&ref.DocumentPath, &ref.WrittenSpec, &form, &resolved,
			&key.RepoID, &key.Name, &key.Path, &reason); err != nil {
			return nil, fmt.Errorf("scan ref: %w", err)
		}
		ref.Form = model.Form(form)
		ref.FailureReason = model.FailureReason(reason)
		if resolved != 0 {
			k := key
			ref.ResolvedKey = &k
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refs: %w", err)
	}
	return refs, nil
}

// Regions returns the regions recorded for one run in registry order.
func (s *Store) Regions(ctx context.Context, runID int64) ([]model.Region, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT repo_id, name, source_path, language, start_line, end_line
FROM regions
WHERE run_id = ?
ORDER BY repo_id, source_path, start_line, name`, runID)
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	defer rows.Close()

	var regions []model.Region
	for rows.Next() {
		var r model.Region
		if err := rows.Scan(&r.RepoID, &r.Name, &r.SourcePath, &r.Language, &r.StartLine, &r.EndLine); err != nil {
			return nil, fmt.Errorf("scan region: %w", err)
		}
		regions = append(regions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate regions: %w", err)
	}
	return regions, nil
}

// Prune deletes all but the newest keep runs and returns how many were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		return 0, fmt.Errorf("keep must be at least 1")
	}
	res, err := s.db.ExecContext(ctx, `
DELETE FROM runs
WHERE id NOT IN (SELECT id FROM runs ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// applyMigrations executes each embedded .sql file under root at most once.
func applyMigrations(db *sql.DB, fsys fs.FS, root string) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.Exec(fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`, migrationTable)); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, name := range files {
		var count int
		if err := db.QueryRow(
			fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE name = ?", migrationTable), name,
		).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		content, err := fs.ReadFile(fsys, root+"/"+name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		up := upSection(string(content))
		if strings.TrimSpace(up) == "" {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.Exec(up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
		if _, err := tx.Exec(
			fmt.Sprintf("INSERT INTO %s (name, applied_at) VALUES (?, ?)", migrationTable),
			name, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}

// upSection returns the SQL between "-- +migrate Up" and "-- +migrate Down".
func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	i := strings.Index(content, up)
	if i == -1 {
		return content
	}
	content = content[i+len(up):]
	if j := strings.Index(content, down); j != -1 {
		content = content[:j]
	}
	return content
}
