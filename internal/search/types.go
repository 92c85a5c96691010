// Package search translates a user query plus options into a ranked list
// of results, via semantic, keyword, or hybrid (RRF-fused) strategies.
package search

import "github.com/ragforge/corerag/internal/store"

// Type selects which retrieval strategy Engine.Search runs.
type Type string

const (
	TypeSemantic Type = "semantic"
	TypeKeyword  Type = "keyword"
	TypeHybrid   Type = "hybrid"
)

// Options configures one Search call.
type Options struct {
	TopK int
	Type Type
}

// Result is one ranked hit, carrying whichever score its strategy produced
// (cosine similarity, FTS relevance, or RRF fused score).
type Result struct {
	Record store.ChunkRecord
	Score  float64
}

// RRFConstant is the smoothing constant k in the hybrid fusion formula.
const RRFConstant = 60

// DefaultTopK is used when Options.TopK is unset.
const DefaultTopK = 10
