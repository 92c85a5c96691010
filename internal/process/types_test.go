package process

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ragforge/corerag/internal/chunk"
)

func TestDocID_SamePathSameID(t *testing.T) {
	a := DocID("/docs/report.md")
	b := DocID("/docs/report.md")
	assert.Equal(t, a, b)
}

func TestDocID_DifferentPathsDifferentIDs(t *testing.T) {
	a := DocID("/docs/report.md")
	b := DocID("/docs/other.md")
	assert.NotEqual(t, a, b)
}

func TestDocID_IsHexSHA256(t *testing.T) {
	id := DocID("/docs/report.md")
	assert.Len(t, id, 64)
	for _, r := range id {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'))
	}
}

func TestContentTypeFor_Markdown(t *testing.T) {
	assert.Equal(t, chunk.ContentTypeMarkdown, contentTypeFor(".md"))
}

func TestContentTypeFor_Structured(t *testing.T) {
	assert.Equal(t, chunk.ContentTypeStructured, contentTypeFor(".json"))
	assert.Equal(t, chunk.ContentTypeStructured, contentTypeFor(".html"))
	assert.Equal(t, chunk.ContentTypeStructured, contentTypeFor(".xml"))
}

func TestContentTypeFor_Tabular(t *testing.T) {
	assert.Equal(t, chunk.ContentTypeTabular, contentTypeFor(".csv"))
}

func TestContentTypeFor_LongDoc(t *testing.T) {
	assert.Equal(t, chunk.ContentTypeLongDoc, contentTypeFor(".pdf"))
	assert.Equal(t, chunk.ContentTypeLongDoc, contentTypeFor(".doc"))
	assert.Equal(t, chunk.ContentTypeLongDoc, contentTypeFor(".docx"))
}

func TestContentTypeFor_UnknownExtensionDefaultsProse(t *testing.T) {
	assert.Equal(t, chunk.ContentTypeProse, contentTypeFor(".txt"))
	assert.Equal(t, chunk.ContentTypeProse, contentTypeFor(""))
}

func TestDefaultConfig_HasPositiveConcurrencyAndQueueBounds(t *testing.T) {
	cfg := DefaultConfig()
	assert.Greater(t, cfg.EmbedConcurrency, 0)
	assert.Greater(t, cfg.EmbedBatchSize, 0)
	assert.Greater(t, cfg.MaxQueuedRequests, 0)
}
