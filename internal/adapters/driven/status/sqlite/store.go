// Package sqlite provides a SQLite-backed batch status store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite
// implementation that requires no CGO, enabling easy
// cross-compilation. The schema is managed through versioned
// migrations embedded from the migrations/ directory.
//
// By default, the database is stored at ~/.transbatch/data/status.db.
// All operations are thread-safe through SQLite's WAL-mode locking.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/mcslab/transbatch-cli/internal/adapters/driven/status/sqlite/migrations"
	"github.com/mcslab/transbatch-cli/internal/core/domain"
	"github.com/mcslab/transbatch-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.BatchStatusStore = (*Store)(nil)

// Store is a SQLite-backed BatchStatusStore.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a SQLite status store at the specified data
// directory. If dataDir is empty, defaults to ~/.transbatch/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".transbatch", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "status.db")

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// Save stores or updates the record, keyed by batch file name.
func (s *Store) Save(ctx context.Context, rec *domain.BatchRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batch_records (file, field, job_id, status, request_count,
			submitted_at, updated_at, downloaded, results_file, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file) DO UPDATE SET
			field = excluded.field,
			job_id = excluded.job_id,
			status = excluded.status,
			request_count = excluded.request_count,
			submitted_at = excluded.submitted_at,
			updated_at = excluded.updated_at,
			downloaded = excluded.downloaded,
			results_file = excluded.results_file,
			last_error = excluded.last_error
	`, rec.File, rec.Field, rec.JobID, string(rec.Status), rec.RequestCount,
		nullTime(rec.SubmittedAt), nullTime(rec.UpdatedAt),
		boolToInt(rec.Downloaded), rec.ResultsFile, rec.LastError)

	if err != nil {
		return fmt.Errorf("saving batch record: %w", err)
	}
	return nil
}

// Get retrieves the record for a batch file. Returns nil and no error
// if the file has never been submitted.
func (s *Store) Get(ctx context.Context, file string) (*domain.BatchRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT file, field, job_id, status, request_count,
			submitted_at, updated_at, downloaded, results_file, last_error
		FROM batch_records WHERE file = ?
	`, file)

	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning batch record: %w", err)
	}
	return rec, nil
}

// List returns all records, ordered by batch file name.
func (s *Store) List(ctx context.Context) ([]domain.BatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file, field, job_id, status, request_count,
			submitted_at, updated_at, downloaded, results_file, last_error
		FROM batch_records ORDER BY file
	`)
	if err != nil {
		return nil, fmt.Errorf("listing batch records: %w", err)
	}
	defer rows.Close()

	var records []domain.BatchRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning batch record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating batch records: %w", err)
	}
	return records, nil
}

// Delete removes the record for a batch file.
func (s *Store) Delete(ctx context.Context, file string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM batch_records WHERE file = ?", file); err != nil {
		return fmt.Errorf("deleting batch record: %w", err)
	}
	return nil
}

// scanRecord reads one batch_records row through the given Scan.
func scanRecord(scan func(dest ...any) error) (*domain.BatchRecord, error) {
	var (
		rec         domain.BatchRecord
		status      string
		submittedAt sql.NullTime
		updatedAt   sql.NullTime
		downloaded  int
	)
	if err := scan(&rec.File, &rec.Field, &rec.JobID, &status, &rec.RequestCount,
		&submittedAt, &updatedAt, &downloaded, &rec.ResultsFile, &rec.LastError); err != nil {
		return nil, err
	}

	rec.Status = domain.BatchStatus(status)
	if submittedAt.Valid {
		rec.SubmittedAt = submittedAt.Time
	}
	if updatedAt.Valid {
		rec.UpdatedAt = updatedAt.Time
	}
	rec.Downloaded = downloaded != 0
	return &rec, nil
}

// nullTime converts a zero time to NULL.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

// boolToInt converts a bool to its SQLite integer form.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
