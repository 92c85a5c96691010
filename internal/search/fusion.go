package search

import (
	"sort"

	"github.com/ragforge/corerag/internal/store"
)

type fused struct {
	record   store.ChunkRecord
	score    float64
	rawScore float64
	inBoth   bool
}

// RRFFusion merges two ranked result lists by Reciprocal Rank Fusion:
// score(d) = Σ 1/(k + rank) over the lists d appears in, rank 1-indexed.
// Candidates are keyed by (doc_id, ordinal) per the ChunkRecord identity
// invariant. Ties break: RRF score desc, then present-in-both, then raw
// score desc, then chunk_id asc, for a fully deterministic order.
func RRFFusion(semantic, keyword []Result, k int) []Result {
	scores := make(map[string]*fused)
	order := make([]string, 0, len(semantic)+len(keyword))

	add := func(results []Result) {
		for rank, r := range results {
			key := store.DeriveChunkID(r.Record.DocID, r.Record.Ordinal)
			rrf := 1.0 / float64(k+rank+1)
			if existing, ok := scores[key]; ok {
				existing.score += rrf
				existing.inBoth = true
				if r.Score > existing.rawScore {
					existing.rawScore = r.Score
				}
				continue
			}
			scores[key] = &fused{record: r.Record, score: rrf, rawScore: r.Score}
			order = append(order, key)
		}
	}
	add(semantic)
	add(keyword)

	out := make([]Result, 0, len(order))
	for _, key := range order {
		f := scores[key]
		out = append(out, Result{Record: f.record, Score: f.score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		fi, fj := scores[store.DeriveChunkID(out[i].Record.DocID, out[i].Record.Ordinal)],
			scores[store.DeriveChunkID(out[j].Record.DocID, out[j].Record.Ordinal)]
		if fi.score != fj.score {
			return fi.score > fj.score
		}
		if fi.inBoth != fj.inBoth {
			return fi.inBoth
		}
		if fi.rawScore != fj.rawScore {
			return fi.rawScore > fj.rawScore
		}
		return out[i].Record.ChunkID < out[j].Record.ChunkID
	})
	return out
}
