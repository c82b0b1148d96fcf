package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// manifestSchema is applied on every open. The version row lets a
// future migration know what it is looking at.
const manifestSchema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS builds (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	dataset_path TEXT NOT NULL,
	corpus_path TEXT NOT NULL,
	documents INTEGER NOT NULL,
	sentences INTEGER NOT NULL,
	separators INTEGER NOT NULL,
	bytes INTEGER NOT NULL,
	checksum TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	tool_version TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sentence_length_stats (
	build_id INTEGER NOT NULL REFERENCES builds(id) ON DELETE CASCADE,
	bucket_lo INTEGER NOT NULL,
	bucket_hi INTEGER NOT NULL,
	count INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stats_build ON sentence_length_stats(build_id);

INSERT OR IGNORE INTO schema_version (version) VALUES (1);
`

// Manifest records build runs in a SQLite database next to the corpus.
// It is derived data: a corrupted manifest is cleared and recreated,
// never repaired.
type Manifest struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	closed bool
}

// OpenManifest opens or creates the manifest database at path. An
// empty path opens an in-memory database, which tests use.
func OpenManifest(path string) (*Manifest, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create manifest directory: %w", err)
		}
		if err := validateSQLiteIntegrity(path, "builds"); err != nil {
			slog.Warn("manifest corrupted, recreating", "path", path, "error", err)
			removeSQLiteFiles(path)
		}
	}

	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}

	// Serialize access through one connection. The manifest sees a
	// handful of writes per build; concurrency buys nothing here.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(manifestSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create manifest schema: %w", err)
	}

	return &Manifest{db: db, path: path}, nil
}

// applyPragmas configures the connection. DSN parameters are not
// reliably honored by the driver, so each pragma is issued explicitly.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	return nil
}

// validateSQLiteIntegrity checks that an existing database passes
// SQLite's integrity check and still has the required table. A missing
// file is fine; it will be created.
func validateSQLiteIntegrity(path, requiredTable string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	var name string
	err = db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
		requiredTable,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%s table missing", requiredTable)
	}
	if err != nil {
		return fmt.Errorf("check %s table: %w", requiredTable, err)
	}
	return nil
}

// removeSQLiteFiles deletes a database plus its WAL sidecars.
func removeSQLiteFiles(path string) {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		os.Remove(p)
	}
}

// Path reports where the manifest lives on disk.
func (m *Manifest) Path() string {
	return m.path
}

// RecordBuild inserts a build record with its sentence-length
// histogram and returns the new build ID.
func (m *Manifest) RecordBuild(ctx context.Context, rec *BuildRecord, hist []LengthBucket) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, fmt.Errorf("manifest is closed")
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO builds (
			started_at, finished_at, dataset_path, corpus_path,
			documents, sentences, separators, bytes, checksum,
			duration_ms, tool_version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
		rec.DatasetPath,
		rec.CorpusPath,
		rec.Documents,
		rec.Sentences,
		rec.Separators,
		rec.Bytes,
		rec.Checksum,
		rec.Duration.Milliseconds(),
		rec.ToolVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("insert build: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read build id: %w", err)
	}

	for _, b := range hist {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sentence_length_stats (build_id, bucket_lo, bucket_hi, count)
			VALUES (?, ?, ?, ?)`,
			id, b.Lo, b.Hi, b.Count,
		)
		if err != nil {
			return 0, fmt.Errorf("insert histogram bucket: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit build record: %w", err)
	}

	rec.ID = id
	return id, nil
}

const buildColumns = `
	id, started_at, finished_at, dataset_path, corpus_path,
	documents, sentences, separators, bytes, checksum,
	duration_ms, tool_version`

// LatestBuild returns the most recent build, or nil when the manifest
// is empty.
func (m *Manifest) LatestBuild(ctx context.Context) (*BuildRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("manifest is closed")
	}

	row := m.db.QueryRowContext(ctx,
		"SELECT"+buildColumns+" FROM builds ORDER BY id DESC LIMIT 1")
	rec, err := scanBuild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest build: %w", err)
	}
	return rec, nil
}

// RecentBuilds returns up to limit builds, newest first.
func (m *Manifest) RecentBuilds(ctx context.Context, limit int) ([]*BuildRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("manifest is closed")
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := m.db.QueryContext(ctx,
		"SELECT"+buildColumns+" FROM builds ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query recent builds: %w", err)
	}
	defer rows.Close()

	var builds []*BuildRecord
	for rows.Next() {
		rec, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan build row: %w", err)
		}
		builds = append(builds, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate builds: %w", err)
	}
	return builds, nil
}

// Histogram returns the sentence-length buckets recorded for a build,
// in ascending bucket order.
func (m *Manifest) Histogram(ctx context.Context, buildID int64) ([]LengthBucket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("manifest is closed")
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT bucket_lo, bucket_hi, count
		FROM sentence_length_stats
		WHERE build_id = ?
		ORDER BY bucket_lo`, buildID)
	if err != nil {
		return nil, fmt.Errorf("query histogram: %w", err)
	}
	defer rows.Close()

	var buckets []LengthBucket
	for rows.Next() {
		var b LengthBucket
		if err := rows.Scan(&b.Lo, &b.Hi, &b.Count); err != nil {
			return nil, fmt.Errorf("scan histogram row: %w", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate histogram: %w", err)
	}
	return buckets, nil
}

// Close flushes the WAL and closes the database. Idempotent.
func (m *Manifest) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	if m.path != "" {
		if _, err := m.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			slog.Debug("manifest checkpoint failed", "error", err)
		}
	}
	return m.db.Close()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(s scanner) (*BuildRecord, error) {
	var (
		rec        BuildRecord
		started    string
		finished   string
		durationMS int64
	)
	err := s.Scan(
		&rec.ID, &started, &finished, &rec.DatasetPath, &rec.CorpusPath,
		&rec.Documents, &rec.Sentences, &rec.Separators, &rec.Bytes,
		&rec.Checksum, &durationMS, &rec.ToolVersion,
	)
	if err != nil {
		return nil, err
	}

	if rec.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if rec.FinishedAt, err = parseTime(finished); err != nil {
		return nil, err
	}
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return &rec, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse manifest timestamp %q: %w", s, err)
	}
	return t, nil
}
