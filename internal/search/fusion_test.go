package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragforge/corerag/internal/store"
)

func record(docID string, ordinal int) store.ChunkRecord {
	return store.ChunkRecord{
		ChunkID: store.DeriveChunkID(docID, ordinal),
		DocID:   docID,
		Ordinal: ordinal,
	}
}

func TestRRFFusion_CandidateInBothListsRanksHigherThanOneList(t *testing.T) {
	// Given: chunk A ranks in both lists, chunk B only in semantic
	semantic := []Result{
		{Record: record("docA", 0), Score: 0.9},
		{Record: record("docB", 0), Score: 0.5},
	}
	keyword := []Result{
		{Record: record("docA", 0), Score: 5.0},
	}

	// When: fused
	out := RRFFusion(semantic, keyword, RRFConstant)

	// Then: docA (present in both) ranks first
	require.Len(t, out, 2)
	assert.Equal(t, "docA", out[0].Record.DocID)
	assert.Equal(t, "docB", out[1].Record.DocID)
}

func TestRRFFusion_ScoreIsSumOfReciprocalRanks(t *testing.T) {
	semantic := []Result{{Record: record("doc1", 0), Score: 1.0}}
	keyword := []Result{{Record: record("doc1", 0), Score: 1.0}}

	out := RRFFusion(semantic, keyword, 60)

	require.Len(t, out, 1)
	expected := 1.0/61.0 + 1.0/61.0
	assert.InDelta(t, expected, out[0].Score, 1e-9)
}

func TestRRFFusion_EqualRRFAndRawScoresTieBreakOnChunkID(t *testing.T) {
	// Given: two candidates that only ever appear in one list each, at the
	// same rank (so RRF score ties), with equal raw scores
	semantic := []Result{
		{Record: record("docA", 0), Score: 0.3},
	}
	keyword := []Result{
		{Record: record("docB", 0), Score: 0.3},
	}

	out := RRFFusion(semantic, keyword, 60)
	require.Len(t, out, 2)
	// Both appear at rank 0 in their respective single list, so RRF scores
	// tie and neither is in-both; next tiebreak is raw score (equal here),
	// then chunk_id ascending.
	assert.True(t, out[0].Record.ChunkID <= out[1].Record.ChunkID)
}

func TestRRFFusion_EmptyListsReturnEmpty(t *testing.T) {
	out := RRFFusion(nil, nil, RRFConstant)
	assert.Empty(t, out)
}

func TestRRFFusion_OneListEmptyPassesOtherThrough(t *testing.T) {
	semantic := []Result{
		{Record: record("doc1", 0), Score: 0.8},
		{Record: record("doc2", 0), Score: 0.2},
	}

	out := RRFFusion(semantic, nil, RRFConstant)

	require.Len(t, out, 2)
	assert.Equal(t, "doc1", out[0].Record.DocID)
	assert.Equal(t, "doc2", out[1].Record.DocID)
}

func TestRRFFusion_HigherRankContributesMoreScore(t *testing.T) {
	// Given: doc1 at rank 0 (best) and doc2 at rank 1 in the same list
	semantic := []Result{
		{Record: record("doc1", 0), Score: 0.9},
		{Record: record("doc2", 0), Score: 0.8},
	}

	out := RRFFusion(semantic, nil, RRFConstant)

	require.Len(t, out, 2)
	assert.Greater(t, out[0].Score, out[1].Score)
	assert.Equal(t, "doc1", out[0].Record.DocID)
}
