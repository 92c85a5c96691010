// Package store implements the columnar vector store: a single on-disk
// table of ChunkRecords supporting vector-nearest-neighbor search and
// full-text search over named text columns.
package store

import (
	"encoding/json"
	"fmt"
)

// ChunkRecord is the single stored entity.
type ChunkRecord struct {
	ChunkID       string          // deterministic function of (DocID, Ordinal)
	DocID         string          // derived from the absolute source path
	Ordinal       int             // position within the document, 0-indexed
	Text          string          // original chunk content
	TokenizedText string          // non-empty only for non-whitespace-segmented languages
	Language      string          // detector tag, e.g. "en", "ko"
	Vector        []float32       // L2-normalized, length == model dimension
	ModelName     string          // embedding model identity at insert time
	Metadata      ChunkMetadata   // opaque from the caller's point of view
}

// ChunkMetadata is the schemaful content of ChunkRecord.Metadata: file
// identity, change-detection fingerprint, and display fields. It is kept
// as a single JSON-serialized blob in the underlying table on purpose —
// callers must not query into its fields.
type ChunkMetadata struct {
	FileName    string `json:"file_name"`
	FilePath    string `json:"file_path"`
	FileSize    int64  `json:"file_size"`
	FileModTime int64  `json:"file_mod_time_unix"`
	FileHash    string `json:"file_hash"`
	ChunkCount  int    `json:"chunk_count"`
	Total       int    `json:"total"`
}

// MarshalJSON-backed encode/decode helpers for the TEXT column.
func (m ChunkMetadata) encode() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeMetadata(s string) (ChunkMetadata, error) {
	var m ChunkMetadata
	if s == "" {
		return m, nil
	}
	err := json.Unmarshal([]byte(s), &m)
	return m, err
}

// DeriveChunkID is the single definition of chunk_id = f(doc_id, ordinal).
func DeriveChunkID(docID string, ordinal int) string {
	return fmt.Sprintf("%s#%d", docID, ordinal)
}

// SemanticResult pairs a record with its cosine-similarity score.
type SemanticResult struct {
	Record ChunkRecord
	Score  float32 // cosine similarity in [-1, 1]
}

// FulltextResult pairs a record with the FTS engine's relevance score.
type FulltextResult struct {
	Record ChunkRecord
	Score  float64
}

// Config configures a store Open call.
type Config struct {
	Dimensions int
	Metric     string // "cos" is the only supported metric; see Design Notes.
	M          int    // HNSW max connections per layer
	EfSearch   int    // HNSW query-time search width
	ModelName  string // embedding model identity, recorded with fingerprints
}

// DefaultConfig returns sensible HNSW parameters for the given dimension.
func DefaultConfig(dimensions int) Config {
	return Config{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}

// ErrDimensionMismatch is returned by Open when a persisted store's
// dimension disagrees with the requested one.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: store has %d, requested %d", e.Got, e.Expected)
}
