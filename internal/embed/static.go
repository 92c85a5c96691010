package embed

import (
	"context"
	"crypto/sha256"
	"strings"
	"sync"

	corerrors "github.com/ragforge/corerag/internal/errors"
)

// StaticDimensions is the embedding dimension of StaticEmbedder.
const StaticDimensions = 256

// StaticEmbedder is a deterministic, dependency-free fallback: each text's
// vector is seeded from its content hash, so the same text always produces
// the same unit-norm vector and distinct texts produce distinct directions.
// It has no semantic quality, but gives tests and offline runs a working
// embedding space without a network call.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
	dims   int
	model  string
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder returns a static embedder of the given dimension
// (StaticDimensions if dims <= 0).
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	return &StaticEmbedder{dims: dims, model: "static-hash-v1"}
}

func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, corerrors.Embedding(corerrors.CodeEmbeddingUnavailable, "embedder is closed", nil)
	}
	if strings.TrimSpace(text) == "" {
		return make([]float32, e.dims), nil
	}
	return normalizeVector(seededVector(text, e.dims)), nil
}

func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *StaticEmbedder) Dimensions() int              { return e.dims }
func (e *StaticEmbedder) ModelName() string            { return e.model }
func (e *StaticEmbedder) Available(ctx context.Context) bool { return true }

func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

// seededVector expands a content hash into a dims-length vector by
// repeatedly re-hashing the running digest, byte by byte, mapped into
// [-1, 1]. Same text, same dims, always produces the same vector.
func seededVector(text string, dims int) []float32 {
	out := make([]float32, dims)
	digest := sha256.Sum256([]byte(text))
	block := digest[:]
	for i := 0; i < dims; i++ {
		if i > 0 && i%len(block) == 0 {
			next := sha256.Sum256(block)
			block = next[:]
		}
		b := block[i%len(block)]
		out[i] = float32(int(b)-128) / 128.0
	}
	return out
}
