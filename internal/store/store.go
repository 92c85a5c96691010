package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	corerrors "github.com/ragforge/corerag/internal/errors"
)

// Store is the columnar vector store façade: one directory on disk holding
// an HNSW vector index, a Bleve full-text index over the "text" column, and
// a SQLite database holding chunk metadata plus the "tokenized_text" FTS5
// column. The teacher keeps these as three separately-owned stores; here
// they are unified behind one handle because the core models a single
// table with two search modes over it, not three collaborating stores.
type Store struct {
	mu   sync.RWMutex
	dir  string
	cfg  Config
	lock *dirLock

	vectors *vectorIndex
	text    *textIndex
	meta    *metaDB

	closed bool
}

const (
	vectorIndexFile = "vectors.hnsw"
	textIndexDir    = "text_fts"
	metaDBFile      = "meta.db"
)

// Open opens (creating if absent) the store rooted at dir for the given
// dimension. A second process attempting to Open the same directory while
// this handle is live fails with InitializationError.
func Open(ctx context.Context, dir string, cfg Config) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, corerrors.Initialization(corerrors.CodeStoreUnreadable,
			fmt.Sprintf("create store directory %s", dir), err)
	}

	lock := newDirLock(dir)
	ok, err := lock.tryLock()
	if err != nil {
		return nil, corerrors.Initialization(corerrors.CodeStoreUnreadable, "acquire store lock", err)
	}
	if !ok {
		return nil, corerrors.Initialization(corerrors.CodeStoreUnreadable,
			fmt.Sprintf("store directory %s is already open by another process", dir), nil)
	}

	meta, err := openMetaDB(filepath.Join(dir, metaDBFile))
	if err != nil {
		lock.unlock()
		return nil, corerrors.Initialization(corerrors.CodeStoreUnreadable, "open metadata database", err)
	}

	if dims, present, derr := meta.storedDimensions(ctx); derr == nil && present && dims != cfg.Dimensions {
		meta.close()
		lock.unlock()
		return nil, corerrors.Initialization(corerrors.CodeDimensionMismatch,
			fmt.Sprintf("store was built with dimension %d, requested %d", dims, cfg.Dimensions), nil)
	}

	text, err := openTextIndex(filepath.Join(dir, textIndexDir))
	if err != nil {
		meta.close()
		lock.unlock()
		return nil, corerrors.Initialization(corerrors.CodeStoreUnreadable, "open text fts index", err)
	}

	vectors := newVectorIndex(cfg)
	if loadErr := vectors.load(filepath.Join(dir, vectorIndexFile)); loadErr != nil {
		if _, isMismatch := loadErr.(ErrDimensionMismatch); isMismatch {
			text.close()
			meta.close()
			lock.unlock()
			return nil, corerrors.Initialization(corerrors.CodeDimensionMismatch, loadErr.Error(), loadErr)
		}
		text.close()
		meta.close()
		lock.unlock()
		return nil, corerrors.Initialization(corerrors.CodeStoreUnreadable, "load vector index", loadErr)
	}

	return &Store{
		dir:     dir,
		cfg:     cfg,
		lock:    lock,
		vectors: vectors,
		text:    text,
		meta:    meta,
	}, nil
}

// Insert appends records in a single batch. After a successful append,
// index optimization is best-effort: failures are logged, not propagated.
func (s *Store) Insert(ctx context.Context, records []ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return corerrors.VectorStore(corerrors.CodeStoreWriteFailed, "store is closed", nil)
	}
	if len(records) == 0 {
		return nil
	}

	for _, r := range records {
		if len(r.Vector) != s.cfg.Dimensions {
			return corerrors.VectorStore(corerrors.CodeDimensionMismatch,
				fmt.Sprintf("record %s has vector length %d, store dimension %d", r.ChunkID, len(r.Vector), s.cfg.Dimensions), nil)
		}
	}

	ids := make([]string, len(records))
	vectors := make([][]float32, len(records))
	textDocs := make(map[string]string, len(records))
	for i, r := range records {
		ids[i] = r.ChunkID
		vectors[i] = r.Vector
		textDocs[r.ChunkID] = r.Text
	}

	if err := s.vectors.upsert(ids, vectors); err != nil {
		return corerrors.VectorStore(corerrors.CodeStoreWriteFailed, "insert vectors", err)
	}
	if err := s.text.indexBatch(ctx, textDocs); err != nil {
		return corerrors.VectorStore(corerrors.CodeStoreWriteFailed, "insert text fts", err)
	}
	if err := s.meta.upsert(ctx, records); err != nil {
		return corerrors.VectorStore(corerrors.CodeStoreWriteFailed, "insert metadata", err)
	}

	s.optimizeBestEffort()
	return nil
}

// DeleteByDoc removes every row whose doc_id equals docID.
func (s *Store) DeleteByDoc(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return corerrors.VectorStore(corerrors.CodeStoreWriteFailed, "store is closed", nil)
	}

	ids, err := s.meta.deleteByDoc(ctx, docID)
	if err != nil {
		return corerrors.VectorStore(corerrors.CodeStoreWriteFailed, "delete metadata for doc", err)
	}
	if len(ids) == 0 {
		return nil
	}

	s.vectors.delete(ids)
	if err := s.text.delete(ids); err != nil {
		return corerrors.VectorStore(corerrors.CodeStoreWriteFailed, "delete text fts for doc", err)
	}

	s.optimizeBestEffort()
	return nil
}

// DeleteAll truncates the table.
func (s *Store) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return corerrors.VectorStore(corerrors.CodeStoreWriteFailed, "store is closed", nil)
	}

	if err := s.meta.deleteAll(ctx); err != nil {
		return corerrors.VectorStore(corerrors.CodeStoreWriteFailed, "truncate metadata", err)
	}
	s.vectors.deleteAll()
	if err := s.text.deleteAll(); err != nil {
		return corerrors.VectorStore(corerrors.CodeStoreWriteFailed, "truncate text fts", err)
	}
	return nil
}

// SemanticSearch returns up to topK rows ordered by descending cosine similarity.
// Read operations never fail on an empty or unopened table; they return an
// empty slice instead.
func (s *Store) SemanticSearch(ctx context.Context, queryVector []float32, topK int) ([]SemanticResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || topK <= 0 {
		return nil, nil
	}
	if len(queryVector) != s.cfg.Dimensions {
		return nil, corerrors.VectorStore(corerrors.CodeDimensionMismatch,
			fmt.Sprintf("query vector length %d != store dimension %d", len(queryVector), s.cfg.Dimensions), nil)
	}

	hits := s.vectors.search(queryVector, topK)
	if len(hits) == 0 {
		return nil, nil
	}

	records, err := s.meta.getChunks(ctx, idsOf(hits))
	if err != nil {
		return nil, corerrors.VectorStore(corerrors.CodeStoreWriteFailed, "enrich semantic search hits", err)
	}

	out := make([]SemanticResult, 0, len(hits))
	for _, h := range hits {
		rec, ok := records[h.ID]
		if !ok {
			continue
		}
		out = append(out, SemanticResult{Record: rec, Score: h.Score})
	}
	return out, nil
}

// Column names accepted by FulltextSearch.
const (
	ColumnText          = "text"
	ColumnTokenizedText = "tokenized_text"
)

// FulltextSearch runs the FTS engine over the named column. The Vector
// Store does not re-sort results beyond what the underlying engine returns.
func (s *Store) FulltextSearch(ctx context.Context, column, query string, topK int) ([]FulltextResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || topK <= 0 {
		return nil, nil
	}

	var hits []FulltextResult
	var err error
	switch column {
	case ColumnText:
		hits, err = s.text.search(ctx, query, topK)
	case ColumnTokenizedText:
		hits, err = s.meta.searchTokenized(ctx, query, topK)
	default:
		return nil, corerrors.Validation(corerrors.CodeUnknownOption, fmt.Sprintf("unknown fts column %q", column), nil)
	}
	if err != nil {
		return nil, corerrors.VectorStore(corerrors.CodeStoreWriteFailed, "fulltext search", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.Record.ChunkID
	}
	records, err := s.meta.getChunks(ctx, ids)
	if err != nil {
		return nil, corerrors.VectorStore(corerrors.CodeStoreWriteFailed, "enrich fulltext search hits", err)
	}

	out := make([]FulltextResult, 0, len(hits))
	for _, h := range hits {
		if rec, ok := records[h.Record.ChunkID]; ok {
			out = append(out, FulltextResult{Record: rec, Score: h.Score})
		}
	}
	return out, nil
}

// CountRows returns the total number of ChunkRecords.
func (s *Store) CountRows(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, nil
	}
	return s.meta.countRows(ctx)
}

// CountDistinctDocs returns the number of distinct doc_ids present.
func (s *Store) CountDistinctDocs(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, nil
	}
	return s.meta.countDistinctDocs(ctx)
}

// HasDoc reports whether any record exists with the given doc_id.
func (s *Store) HasDoc(ctx context.Context, docID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, nil
	}
	return s.meta.hasDoc(ctx, docID)
}

// ListAllDocs returns the most recent metadata per doc_id.
func (s *Store) ListAllDocs(ctx context.Context) (map[string]ChunkMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return map[string]ChunkMetadata{}, nil
	}
	return s.meta.listAllDocs(ctx)
}

// GetFingerprint returns the last-recorded fingerprint for docID, if any.
func (s *Store) GetFingerprint(ctx context.Context, docID string) (Fingerprint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Fingerprint{}, false, nil
	}
	return s.meta.getFingerprint(ctx, docID)
}

// SetFingerprint records the fingerprint a doc_id was last processed at.
func (s *Store) SetFingerprint(ctx context.Context, docID string, fp Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return corerrors.VectorStore(corerrors.CodeStoreWriteFailed, "store is closed", nil)
	}
	return s.meta.setFingerprint(ctx, docID, fp, s.cfg.ModelName, s.cfg.Dimensions)
}

// Close releases the directory lock and underlying handles.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if err := s.vectors.save(filepath.Join(s.dir, vectorIndexFile)); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.text.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.meta.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.lock.unlock(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// optimizeBestEffort persists the vector index after a write. Failure is
// logged here, never propagated — per spec
// §4.1, optimization failure must not fail the write it followed.
func (s *Store) optimizeBestEffort() {
	if err := s.vectors.save(filepath.Join(s.dir, vectorIndexFile)); err != nil {
		slog.Warn("vector index optimization failed", slog.String("error", err.Error()))
	}
}

func idsOf(hits []struct {
	ID    string
	Score float32
}) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids
}
