// Package process owns the file -> chunk-records pipeline: change
// detection, chunking, embedding, language analysis, upsert, deletion.
package process

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ragforge/corerag/internal/chunk"
)

// Config parameterizes a Processor.
type Config struct {
	ChunkParams        chunk.Params
	ReadTimeout        time.Duration
	EmbedConcurrency   int // bounded concurrent embedding calls per batch, typ. 4
	EmbedBatchSize     int
	MaxQueuedRequests  int // backpressure bound on pending process() calls, typ. 50
}

// DefaultConfig returns the concurrency defaults named in §5.
func DefaultConfig() Config {
	return Config{
		ChunkParams:       chunk.DefaultParams(chunk.ContentTypeProse),
		ReadTimeout:       60 * time.Second,
		EmbedConcurrency:  4,
		EmbedBatchSize:    32,
		MaxQueuedRequests: 50,
	}
}

// DocID derives the stable, doc_id, opaque identifier for an absolute path.
// It is a pure function of path so reprocessing the same file always
// resolves to the same doc_id across runs.
func DocID(absPath string) string {
	h := sha256.Sum256([]byte(absPath))
	return hex.EncodeToString(h[:])
}

// contentTypeFor maps a file extension to the chunker's content-type
// hierarchy, per the five separator tables named in the chunker contract.
func contentTypeFor(ext string) chunk.ContentType {
	switch ext {
	case ".md":
		return chunk.ContentTypeMarkdown
	case ".json", ".html", ".xml":
		return chunk.ContentTypeStructured
	case ".csv":
		return chunk.ContentTypeTabular
	case ".pdf", ".doc", ".docx":
		return chunk.ContentTypeLongDoc
	default:
		return chunk.ContentTypeProse
	}
}
