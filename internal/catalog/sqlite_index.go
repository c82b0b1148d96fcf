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

	_ "modernc.org/sqlite"
)

// indexSchema holds the FTS5 table. The content column carries
// pre-tokenized terms, so the original sentence is kept in display for
// results to show.
const indexSchema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE VIRTUAL TABLE IF NOT EXISTS fts_sentences USING fts5(
	ordinal UNINDEXED,
	line UNINDEXED,
	display UNINDEXED,
	content,
	tokenize = 'unicode61'
);

INSERT OR IGNORE INTO schema_version (version) VALUES (1);
`

// SQLiteSentenceIndex is a sentence index backed by SQLite FTS5 with
// BM25 ranking. It is the default backend: a single file, no server,
// and cheap incremental updates.
type SQLiteSentenceIndex struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	stop   map[string]bool
	closed bool
}

var _ SentenceIndex = (*SQLiteSentenceIndex)(nil)

// NewSQLiteSentenceIndex opens or creates an FTS5 index at path. An
// empty path builds an in-memory index, which tests use. A corrupted
// index file is removed and recreated; the corpus can always repopulate
// it.
func NewSQLiteSentenceIndex(path string) (*SQLiteSentenceIndex, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
		if err := validateSQLiteIntegrity(path, "fts_sentences"); err != nil {
			slog.Warn("sentence index corrupted, recreating", "path", path, "error", err)
			removeSQLiteFiles(path)
		}
	}

	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sentence index: %w", err)
	}

	// One connection only. Writes are serialized anyway, and a second
	// connection to :memory: would see a different database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index schema: %w", err)
	}

	return &SQLiteSentenceIndex{
		db:   db,
		path: path,
		stop: StopTermSet(DefaultStopTerms),
	}, nil
}

// Add indexes a batch of sentences in one transaction, replacing any
// previous entry for the same line.
func (idx *SQLiteSentenceIndex) Add(ctx context.Context, sentences []Sentence) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("sentence index is closed")
	}
	if len(sentences) == 0 {
		return nil
	}

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// FTS5 has no upsert, so delete before insert.
	del, err := tx.PrepareContext(ctx, "DELETE FROM fts_sentences WHERE line = ?")
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer del.Close()

	ins, err := tx.PrepareContext(ctx, `
		INSERT INTO fts_sentences (ordinal, line, display, content)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()

	for _, s := range sentences {
		if _, err := del.ExecContext(ctx, s.Line); err != nil {
			return fmt.Errorf("delete sentence at line %d: %w", s.Line, err)
		}
		terms := FilterStopTerms(TokenizeSentence(s.Text), idx.stop)
		_, err := ins.ExecContext(ctx, s.Ordinal, s.Line, s.Text, strings.Join(terms, " "))
		if err != nil {
			return fmt.Errorf("index sentence at line %d: %w", s.Line, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index batch: %w", err)
	}
	return nil
}

// Search runs a BM25-ranked query. The query is tokenized the same way
// sentences were at index time; a query that reduces to no terms
// returns no hits.
func (idx *SQLiteSentenceIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, fmt.Errorf("sentence index is closed")
	}
	if strings.TrimSpace(query) == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	terms := FilterStopTerms(TokenizeSentence(query), idx.stop)
	if len(terms) == 0 {
		return []Hit{}, nil
	}

	rows, err := idx.db.QueryContext(ctx, `
		SELECT ordinal, line, display, bm25(fts_sentences) AS score
		FROM fts_sentences
		WHERE content MATCH ?
		ORDER BY score
		LIMIT ?`,
		strings.Join(terms, " "), limit)
	if err != nil {
		// A query FTS5 cannot parse is a user mistake, not an index
		// failure. Tokenization strips the operators, but keep the
		// guard in case that ever changes.
		msg := err.Error()
		if strings.Contains(msg, "fts5") || strings.Contains(msg, "syntax") {
			return []Hit{}, nil
		}
		return nil, fmt.Errorf("search sentences: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h     Hit
			score float64
		)
		if err := rows.Scan(&h.Ordinal, &h.Line, &h.Text, &score); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		// bm25() reports better matches as more negative; flip it so
		// callers see higher-is-better.
		h.Score = -score
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search hits: %w", err)
	}
	return hits, nil
}

// Count reports how many sentences are indexed.
func (idx *SQLiteSentenceIndex) Count() (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return 0, fmt.Errorf("sentence index is closed")
	}

	var n int
	if err := idx.db.QueryRow("SELECT COUNT(*) FROM fts_sentences").Scan(&n); err != nil {
		return 0, fmt.Errorf("count sentences: %w", err)
	}
	return n, nil
}

// Clear removes every indexed sentence.
func (idx *SQLiteSentenceIndex) Clear(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("sentence index is closed")
	}

	if _, err := idx.db.ExecContext(ctx, "DELETE FROM fts_sentences"); err != nil {
		return fmt.Errorf("clear sentence index: %w", err)
	}
	return nil
}

// Close flushes the WAL and closes the database. Idempotent.
func (idx *SQLiteSentenceIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil
	}
	idx.closed = true

	if idx.path != "" {
		if _, err := idx.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			slog.Debug("index checkpoint failed", "error", err)
		}
	}
	return idx.db.Close()
}
