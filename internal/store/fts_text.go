package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// textIndex is the FTS component serving the "text" column: stem,
// lowercase, stopword-strip, English analyzer, as spec §4.1 requires.
type textIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

type textDoc struct {
	Text string `json:"text"`
}

func textIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = en.AnalyzerName
	docMapping := bleve.NewDocumentMapping()
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = en.AnalyzerName
	docMapping.AddFieldMappingsAt("text", textField)
	im.DefaultMapping = docMapping
	return im
}

func openTextIndex(path string) (*textIndex, error) {
	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(textIndexMapping())
	} else {
		idx, err = bleve.Open(path)
		if err != nil {
			idx, err = bleve.New(path, textIndexMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open text fts index: %w", err)
	}
	return &textIndex{index: idx}, nil
}

func (t *textIndex) indexBatch(ctx context.Context, docs map[string]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	batch := t.index.NewBatch()
	for id, text := range docs {
		if err := batch.Index(id, textDoc{Text: text}); err != nil {
			return fmt.Errorf("batch text document %s: %w", id, err)
		}
	}
	return t.index.Batch(batch)
}

func (t *textIndex) delete(ids []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		if err := t.index.Delete(id); err != nil {
			return fmt.Errorf("delete %s from text fts: %w", id, err)
		}
	}
	return nil
}

func (t *textIndex) deleteAll() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids, err := t.allIDsLocked()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := t.index.Delete(id); err != nil {
			return err
		}
	}
	return nil
}

func (t *textIndex) allIDsLocked() ([]string, error) {
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(^uint(0) >> 1) // all docs
	res, err := t.index.Search(req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

func (t *textIndex) search(ctx context.Context, query string, topK int) ([]FulltextResult, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	q := bleve.NewMatchQuery(query)
	q.SetField("text")
	req := bleve.NewSearchRequest(q)
	req.Size = topK

	res, err := t.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("text fts search: %w", err)
	}

	out := make([]FulltextResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, FulltextResult{Record: ChunkRecord{ChunkID: hit.ID}, Score: hit.Score})
	}
	return out, nil
}

func (t *textIndex) close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index.Close()
}
