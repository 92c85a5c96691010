package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps a StaticEmbedder and counts every call that reaches
// it (Embed and EmbedBatch), so tests can assert the cache actually avoids
// redundant work.
type countingEmbedder struct {
	*StaticEmbedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{StaticEmbedder: NewStaticEmbedder(StaticDimensions)}
}

func TestCachedEmbedder_HitAvoidsInnerCall(t *testing.T) {
	inner := newCountingEmbedder()
	c := NewCachedEmbedder(inner, 10)

	first, err := c.Embed(context.Background(), "repeated query")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	second, err := c.Embed(context.Background(), "repeated query")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls, "second call should hit the cache, not call inner again")
	assert.Equal(t, first, second)
}

func TestCachedEmbedder_BatchOnlyCallsInnerForMisses(t *testing.T) {
	inner := newCountingEmbedder()
	c := NewCachedEmbedder(inner, 10)

	_, err := c.Embed(context.Background(), "already cached")
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)

	results, err := c.EmbedBatch(context.Background(), []string{"already cached", "new text"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, inner.calls, "only the miss should trigger a second inner call")
}

func TestCachedEmbedder_PassesThroughDimensionsAndModelName(t *testing.T) {
	inner := newCountingEmbedder()
	c := NewCachedEmbedder(inner, 10)

	assert.Equal(t, inner.Dimensions(), c.Dimensions())
	assert.Equal(t, inner.ModelName(), c.ModelName())
}

func TestCachedEmbedder_EmptyBatchReturnsNil(t *testing.T) {
	c := NewCachedEmbedder(newCountingEmbedder(), 10)
	results, err := c.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}
