package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure-Go driver, no CGO
)

// metaDB persists the non-vector columns of ChunkRecord and serves the
// tokenized_text FTS5 column for non-whitespace-segmented languages.
// It is the single source of truth for count_rows / count_distinct_docs /
// has_doc / list_all_docs, and owns the doc_id -> fingerprint mapping the
// Document Processor consults for change detection.
type metaDB struct {
	db *sql.DB
}

func openMetaDB(path string) (*metaDB, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create metadata directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open metadata database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	m := &metaDB{db: db}
	if err := m.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init metadata schema: %w", err)
	}
	return m, nil
}

func (m *metaDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id       TEXT PRIMARY KEY,
		doc_id         TEXT NOT NULL,
		ordinal        INTEGER NOT NULL,
		text           TEXT NOT NULL,
		tokenized_text TEXT NOT NULL DEFAULT '',
		language       TEXT NOT NULL,
		model_name     TEXT NOT NULL,
		dimensions     INTEGER NOT NULL,
		metadata       TEXT NOT NULL DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);

	-- tokenized_text column: pre-segmented, whitespace-joined surface
	-- tokens for non-whitespace-segmented languages. unicode61 applies no
	-- stemming; case folding is a no-op for scripts without case (Hangul).
	CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts_tok USING fts5(
		chunk_id UNINDEXED,
		tokenized_text,
		tokenize='unicode61'
	);

	CREATE TABLE IF NOT EXISTS doc_fingerprints (
		doc_id      TEXT PRIMARY KEY,
		size        INTEGER NOT NULL,
		mod_time    INTEGER NOT NULL,
		content_hash TEXT NOT NULL,
		model_name  TEXT NOT NULL,
		dimensions  INTEGER NOT NULL
	);
	`
	_, err := m.db.Exec(schema)
	return err
}

// upsert writes the metadata-table rows and the tokenized_text FTS5 rows
// for a batch of records. Vector storage and the text-column FTS index
// are handled by the store's other components in the same insert call.
func (m *metaDB) upsert(ctx context.Context, records []ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin metadata tx: %w", err)
	}
	defer tx.Rollback()

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks
			(chunk_id, doc_id, ordinal, text, tokenized_text, language, model_name, dimensions, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk upsert: %w", err)
	}
	defer chunkStmt.Close()

	deleteTokStmt, err := tx.PrepareContext(ctx, `DELETE FROM chunks_fts_tok WHERE chunk_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare tokenized fts delete: %w", err)
	}
	defer deleteTokStmt.Close()

	insertTokStmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks_fts_tok(chunk_id, tokenized_text) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare tokenized fts insert: %w", err)
	}
	defer insertTokStmt.Close()

	for _, r := range records {
		meta, err := r.Metadata.encode()
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", r.ChunkID, err)
		}
		if _, err := chunkStmt.ExecContext(ctx, r.ChunkID, r.DocID, r.Ordinal, r.Text,
			r.TokenizedText, r.Language, r.ModelName, len(r.Vector), meta); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", r.ChunkID, err)
		}

		if _, err := deleteTokStmt.ExecContext(ctx, r.ChunkID); err != nil {
			return fmt.Errorf("clear tokenized fts for %s: %w", r.ChunkID, err)
		}
		if r.TokenizedText != "" {
			if _, err := insertTokStmt.ExecContext(ctx, r.ChunkID, r.TokenizedText); err != nil {
				return fmt.Errorf("index tokenized fts for %s: %w", r.ChunkID, err)
			}
		}
	}

	return tx.Commit()
}

func (m *metaDB) deleteByDoc(ctx context.Context, docID string) ([]string, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT chunk_id FROM chunks WHERE doc_id = ?`, docID)
	if err != nil {
		return nil, fmt.Errorf("select chunk ids for %s: %w", docID, err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM chunks WHERE chunk_id IN (%s)`, placeholders), args...); err != nil {
		return nil, fmt.Errorf("delete chunks for %s: %w", docID, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM chunks_fts_tok WHERE chunk_id IN (%s)`, placeholders), args...); err != nil {
		return nil, fmt.Errorf("delete tokenized fts for %s: %w", docID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM doc_fingerprints WHERE doc_id = ?`, docID); err != nil {
		return nil, fmt.Errorf("delete fingerprint for %s: %w", docID, err)
	}

	return ids, tx.Commit()
}

func (m *metaDB) deleteAll(ctx context.Context) error {
	for _, stmt := range []string{
		`DELETE FROM chunks`,
		`DELETE FROM chunks_fts_tok`,
		`DELETE FROM doc_fingerprints`,
	} {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate: %w", err)
		}
	}
	return nil
}

func (m *metaDB) countRows(ctx context.Context) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

func (m *metaDB) countDistinctDocs(ctx context.Context) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT doc_id) FROM chunks`).Scan(&n)
	return n, err
}

func (m *metaDB) hasDoc(ctx context.Context, docID string) (bool, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE doc_id = ? LIMIT 1`, docID).Scan(&n)
	return n > 0, err
}

// listAllDocs returns the most recent metadata JSON per doc_id, by highest ordinal row present.
func (m *metaDB) listAllDocs(ctx context.Context) (map[string]ChunkMetadata, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT doc_id, metadata FROM chunks
		WHERE ordinal = (SELECT MAX(ordinal) FROM chunks c2 WHERE c2.doc_id = chunks.doc_id)`)
	if err != nil {
		return nil, fmt.Errorf("list all docs: %w", err)
	}
	defer rows.Close()

	out := make(map[string]ChunkMetadata)
	for rows.Next() {
		var docID, metaJSON string
		if err := rows.Scan(&docID, &metaJSON); err != nil {
			return nil, err
		}
		meta, err := decodeMetadata(metaJSON)
		if err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", docID, err)
		}
		out[docID] = meta
	}
	return out, rows.Err()
}

// getChunks fetches full records for the given chunk IDs, vector excluded
// (the vector component is the source of truth for that column).
func (m *metaDB) getChunks(ctx context.Context, ids []string) (map[string]ChunkRecord, error) {
	if len(ids) == 0 {
		return map[string]ChunkRecord{}, nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT chunk_id, doc_id, ordinal, text, tokenized_text, language, model_name, metadata
		FROM chunks WHERE chunk_id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()

	out := make(map[string]ChunkRecord, len(ids))
	for rows.Next() {
		var r ChunkRecord
		var metaJSON string
		if err := rows.Scan(&r.ChunkID, &r.DocID, &r.Ordinal, &r.Text, &r.TokenizedText,
			&r.Language, &r.ModelName, &metaJSON); err != nil {
			return nil, err
		}
		meta, err := decodeMetadata(metaJSON)
		if err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", r.ChunkID, err)
		}
		r.Metadata = meta
		out[r.ChunkID] = r
	}
	return out, rows.Err()
}

// searchTokenized runs the FTS5 MATCH query against chunks_fts_tok.
func (m *metaDB) searchTokenized(ctx context.Context, query string, topK int) ([]FulltextResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT chunk_id, bm25(chunks_fts_tok) AS score
		FROM chunks_fts_tok
		WHERE tokenized_text MATCH ?
		ORDER BY score
		LIMIT ?`, query, topK)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}
		return nil, fmt.Errorf("tokenized fts search: %w", err)
	}
	defer rows.Close()

	var out []FulltextResult
	for rows.Next() {
		var chunkID string
		var score float64
		if err := rows.Scan(&chunkID, &score); err != nil {
			return nil, err
		}
		// FTS5 bm25() is negative; flip so higher is better, like the text column.
		out = append(out, FulltextResult{Record: ChunkRecord{ChunkID: chunkID}, Score: -score})
	}
	return out, rows.Err()
}

// Fingerprint is the size/mtime/content-hash triple the Document Processor
// persists per doc_id to decide whether a file needs reprocessing.
type Fingerprint struct {
	Size       int64
	ModTimeUnix int64
	ContentHash string
}

func (m *metaDB) getFingerprint(ctx context.Context, docID string) (Fingerprint, bool, error) {
	var fp Fingerprint
	err := m.db.QueryRowContext(ctx,
		`SELECT size, mod_time, content_hash FROM doc_fingerprints WHERE doc_id = ?`, docID).
		Scan(&fp.Size, &fp.ModTimeUnix, &fp.ContentHash)
	if err == sql.ErrNoRows {
		return Fingerprint{}, false, nil
	}
	if err != nil {
		return Fingerprint{}, false, err
	}
	return fp, true, nil
}

func (m *metaDB) setFingerprint(ctx context.Context, docID string, fp Fingerprint, modelName string, dims int) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO doc_fingerprints (doc_id, size, mod_time, content_hash, model_name, dimensions)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			size = excluded.size, mod_time = excluded.mod_time,
			content_hash = excluded.content_hash, model_name = excluded.model_name,
			dimensions = excluded.dimensions`,
		docID, fp.Size, fp.ModTimeUnix, fp.ContentHash, modelName, dims)
	return err
}

func (m *metaDB) storedDimensions(ctx context.Context) (int, bool, error) {
	var dims int
	err := m.db.QueryRowContext(ctx, `SELECT dimensions FROM chunks LIMIT 1`).Scan(&dims)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return dims, true, nil
}

func (m *metaDB) close() error {
	return m.db.Close()
}
