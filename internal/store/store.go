// Package store persists documents, chunks, and ingestion errors in a
// SQLite metadata database. The pure Go modernc.org/sqlite driver is
// used, so no CGO is required.
package store

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

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/gmickel/docdex/internal/chunk"
	dexerrors "github.com/gmickel/docdex/internal/errors"
	"github.com/gmickel/docdex/internal/position"
	"github.com/gmickel/docdex/internal/status"
)

// Store is the SQLite-backed metadata store.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	name        TEXT PRIMARY KEY,
	path        TEXT NOT NULL DEFAULT '',
	updated_at  TIMESTAMP
);

CREATE TABLE IF NOT EXISTS documents (
	collection  TEXT NOT NULL,
	path        TEXT NOT NULL,
	updated_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (collection, path)
);

CREATE TABLE IF NOT EXISTS chunks (
	id           TEXT PRIMARY KEY,
	collection   TEXT NOT NULL,
	doc_path     TEXT NOT NULL,
	seq          INTEGER NOT NULL,
	content      TEXT NOT NULL,
	start_offset INTEGER NOT NULL,
	end_offset   INTEGER NOT NULL,
	start_line   INTEGER NOT NULL,
	start_col    INTEGER NOT NULL,
	end_line     INTEGER NOT NULL,
	end_col      INTEGER NOT NULL,
	header_path  TEXT NOT NULL DEFAULT '',
	embedded     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks (collection, doc_path);
CREATE INDEX IF NOT EXISTS idx_chunks_embedded ON chunks (embedded);

CREATE TABLE IF NOT EXISTS ingest_errors (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	stage       TEXT NOT NULL,
	doc_path    TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL,
	occurred_at TIMESTAMP NOT NULL
);
`

// ChunkRecord is a stored chunk with its embedding state.
type ChunkRecord struct {
	ID          string
	Collection  string
	DocPath     string
	Seq         int
	Content     string
	StartOffset int
	EndOffset   int
	Citation    position.Span
	HeaderPath  string
	Embedded    bool
}

// IngestError is one recorded ingestion failure.
type IngestError struct {
	Stage      string
	DocPath    string
	Message    string
	OccurredAt time.Time
}

// New opens (or creates) the metadata store at path.
// An empty path creates an in-memory store for testing.
func New(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, dexerrors.StoreError(
				fmt.Sprintf("failed to create data directory for %s", path), err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, dexerrors.StoreError("failed to open database", err)
	}

	// Single writer prevents lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, dexerrors.StoreError("failed to set pragma", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, dexerrors.StoreError("failed to create schema", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return dexerrors.StoreError("store is closed", nil)
	}
	return nil
}

// UpsertCollection registers a collection, updating its source path.
func (s *Store) UpsertCollection(ctx context.Context, name, path string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (name, path, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET path = excluded.path`,
		name, path, time.Now().UTC())
	if err != nil {
		return dexerrors.StoreError(fmt.Sprintf("failed to upsert collection %s", name), err)
	}
	return nil
}

// SaveChunks replaces the stored chunks for one document. A chunk whose
// ID and content match an already embedded row keeps its embedded flag,
// so re-indexing an unchanged document does not regrow the embedding
// backlog. New or changed chunks start unembedded; MarkEmbedded flips
// them after vectors are indexed.
func (s *Store) SaveChunks(ctx context.Context, doc *chunk.Document, chunks []*chunk.Chunk) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dexerrors.StoreError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	embeddedContent, err := embeddedChunkContent(ctx, tx, doc)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (collection, path, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(collection, path) DO UPDATE SET updated_at = excluded.updated_at`,
		doc.Collection, doc.Path, now); err != nil {
		return dexerrors.StoreError("failed to upsert document", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks WHERE collection = ? AND doc_path = ?`,
		doc.Collection, doc.Path); err != nil {
		return dexerrors.StoreError("failed to clear stale chunks", err)
	}

	for _, ch := range chunks {
		embedded := 0
		// Chunk IDs hash collection, path and start offset, so an ID
		// collision with different content means the text changed and
		// the stored vector is stale.
		if prev, ok := embeddedContent[ch.ID]; ok && prev == ch.Content {
			embedded = 1
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (id, collection, doc_path, seq, content,
				start_offset, end_offset, start_line, start_col, end_line, end_col,
				header_path, embedded)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ch.ID, ch.Collection, ch.DocPath, ch.Seq, ch.Content,
			ch.StartOffset, ch.EndOffset,
			ch.Citation.Start.Line, ch.Citation.Start.Col,
			ch.Citation.End.Line, ch.Citation.End.Col,
			ch.HeaderPath, embedded); err != nil {
			return dexerrors.StoreError(fmt.Sprintf("failed to insert chunk %s", ch.ID), err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE collections SET updated_at = ? WHERE name = ?`,
		now, doc.Collection); err != nil {
		return dexerrors.StoreError("failed to touch collection", err)
	}

	if err := tx.Commit(); err != nil {
		return dexerrors.StoreError("failed to commit chunks", err)
	}

	slog.Debug("chunks_saved",
		slog.String("collection", doc.Collection),
		slog.String("doc_path", doc.Path),
		slog.Int("count", len(chunks)))
	return nil
}

// embeddedChunkContent maps the document's embedded chunk IDs to their
// stored content.
func embeddedChunkContent(ctx context.Context, tx *sql.Tx, doc *chunk.Document) (map[string]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, content FROM chunks WHERE collection = ? AND doc_path = ? AND embedded = 1`,
		doc.Collection, doc.Path)
	if err != nil {
		return nil, dexerrors.StoreError("failed to query embedded chunks", err)
	}
	defer rows.Close()

	content := make(map[string]string)
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, dexerrors.StoreError("failed to scan embedded chunk", err)
		}
		content[id] = text
	}
	if err := rows.Err(); err != nil {
		return nil, dexerrors.StoreError("failed to iterate embedded chunks", err)
	}
	return content, nil
}

// MarkEmbedded flips the embedded flag for the given chunk IDs.
func (s *Store) MarkEmbedded(ctx context.Context, ids []string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET embedded = 1 WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return dexerrors.StoreError("failed to mark chunks embedded", err)
	}
	return nil
}

// PendingChunks returns up to limit chunks that still need embedding.
// A non-positive limit returns all pending chunks.
func (s *Store) PendingChunks(ctx context.Context, limit int) ([]ChunkRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := selectChunks + ` WHERE embedded = 0 ORDER BY collection, doc_path, seq`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, query+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, dexerrors.StoreError("failed to query pending chunks", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

const selectChunks = `
	SELECT id, collection, doc_path, seq, content,
		start_offset, end_offset, start_line, start_col, end_line, end_col,
		header_path, embedded
	FROM chunks`

// GetChunks fetches chunk records by ID, preserving the input order.
// Unknown IDs are skipped.
func (s *Store) GetChunks(ctx context.Context, ids []string) ([]ChunkRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		selectChunks+` WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, dexerrors.StoreError("failed to query chunks", err)
	}
	defer rows.Close()

	records, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]ChunkRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	ordered := make([]ChunkRecord, 0, len(records))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			ordered = append(ordered, r)
		}
	}
	return ordered, nil
}

// AllChunks returns every stored chunk, ordered by document and sequence.
func (s *Store) AllChunks(ctx context.Context) ([]ChunkRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		selectChunks+` ORDER BY collection, doc_path, seq`)
	if err != nil {
		return nil, dexerrors.StoreError("failed to query chunks", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]ChunkRecord, error) {
	var records []ChunkRecord
	for rows.Next() {
		var r ChunkRecord
		var embedded int
		if err := rows.Scan(&r.ID, &r.Collection, &r.DocPath, &r.Seq, &r.Content,
			&r.StartOffset, &r.EndOffset,
			&r.Citation.Start.Line, &r.Citation.Start.Col,
			&r.Citation.End.Line, &r.Citation.End.Col,
			&r.HeaderPath, &embedded); err != nil {
			return nil, dexerrors.StoreError("failed to scan chunk row", err)
		}
		r.Embedded = embedded != 0
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dexerrors.StoreError("failed to iterate chunk rows", err)
	}
	return records, nil
}

// ListCollections derives per-collection counters for status aggregation.
func (s *Store) ListCollections(ctx context.Context) ([]status.Collection, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, c.path,
			(SELECT COUNT(*) FROM documents d WHERE d.collection = c.name),
			(SELECT COUNT(*) FROM chunks ch WHERE ch.collection = c.name),
			(SELECT COUNT(*) FROM chunks ch WHERE ch.collection = c.name AND ch.embedded = 1),
			c.updated_at
		FROM collections c
		ORDER BY c.name`)
	if err != nil {
		return nil, dexerrors.StoreError("failed to query collections", err)
	}
	defer rows.Close()

	var collections []status.Collection
	for rows.Next() {
		var col status.Collection
		var updatedAt sql.NullTime
		if err := rows.Scan(&col.Name, &col.Path, &col.ActiveDocuments,
			&col.TotalChunks, &col.EmbeddedChunks, &updatedAt); err != nil {
			return nil, dexerrors.StoreError("failed to scan collection row", err)
		}
		if updatedAt.Valid {
			t := updatedAt.Time
			col.UpdatedAt = &t
		}
		collections = append(collections, col)
	}
	if err := rows.Err(); err != nil {
		return nil, dexerrors.StoreError("failed to iterate collection rows", err)
	}
	return collections, nil
}

// RecordError logs one ingestion failure for status reporting.
func (s *Store) RecordError(ctx context.Context, stage, docPath, message string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_errors (stage, doc_path, message, occurred_at)
		VALUES (?, ?, ?, ?)`,
		stage, docPath, message, time.Now().UTC())
	if err != nil {
		return dexerrors.StoreError("failed to record ingest error", err)
	}
	return nil
}

// RecentErrorCount counts ingestion errors recorded at or after since.
func (s *Store) RecentErrorCount(ctx context.Context, since time.Time) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ingest_errors WHERE occurred_at >= ?`,
		since.UTC()).Scan(&count)
	if err != nil {
		return 0, dexerrors.StoreError("failed to count recent errors", err)
	}
	return count, nil
}

// RecentErrors returns ingestion errors recorded at or after since,
// newest first.
func (s *Store) RecentErrors(ctx context.Context, since time.Time) ([]IngestError, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT stage, doc_path, message, occurred_at
		FROM ingest_errors
		WHERE occurred_at >= ?
		ORDER BY occurred_at DESC`, since.UTC())
	if err != nil {
		return nil, dexerrors.StoreError("failed to query recent errors", err)
	}
	defer rows.Close()

	var errs []IngestError
	for rows.Next() {
		var e IngestError
		if err := rows.Scan(&e.Stage, &e.DocPath, &e.Message, &e.OccurredAt); err != nil {
			return nil, dexerrors.StoreError("failed to scan error row", err)
		}
		errs = append(errs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dexerrors.StoreError("failed to iterate error rows", err)
	}
	return errs, nil
}
