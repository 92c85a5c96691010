package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// vectorIndex is the HNSW-backed nearest-neighbor component of the store.
// It mirrors the teacher's lazy-deletion strategy: deleting a node from the
// graph directly can corrupt coder/hnsw's internal layer structure, so
// deletes only drop the ID mapping and leave the underlying node orphaned.
type vectorIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	cfg    Config
	idMap  map[string]uint64
	keyMap map[uint64]string
	next   uint64
}

type vectorIndexMeta struct {
	IDMap  map[string]uint64
	Next   uint64
	Config Config
}

func newVectorIndex(cfg Config) *vectorIndex {
	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &vectorIndex{
		graph:  graph,
		cfg:    cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

func normalizeInPlace(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

// upsert replaces any existing vector for id and adds the new one.
func (vi *vectorIndex) upsert(ids []string, vectors [][]float32) error {
	vi.mu.Lock()
	defer vi.mu.Unlock()

	for i, id := range ids {
		if existing, ok := vi.idMap[id]; ok {
			delete(vi.keyMap, existing)
			delete(vi.idMap, id)
		}
		key := vi.next
		vi.next++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])

		vi.graph.Add(hnsw.MakeNode(key, vec))
		vi.idMap[id] = key
		vi.keyMap[key] = id
	}
	return nil
}

func (vi *vectorIndex) delete(ids []string) {
	vi.mu.Lock()
	defer vi.mu.Unlock()
	for _, id := range ids {
		if key, ok := vi.idMap[id]; ok {
			delete(vi.keyMap, key)
			delete(vi.idMap, id)
		}
	}
}

func (vi *vectorIndex) deleteAll() {
	vi.mu.Lock()
	defer vi.mu.Unlock()
	vi.graph = hnsw.NewGraph[uint64]()
	switch vi.cfg.Metric {
	case "l2":
		vi.graph.Distance = hnsw.EuclideanDistance
	default:
		vi.graph.Distance = hnsw.CosineDistance
	}
	vi.graph.M = vi.cfg.M
	vi.graph.EfSearch = vi.cfg.EfSearch
	vi.graph.Ml = 0.25
	vi.idMap = make(map[string]uint64)
	vi.keyMap = make(map[uint64]string)
}

// search returns up to k nearest neighbors as (id, cosine similarity).
func (vi *vectorIndex) search(query []float32, k int) []struct {
	ID    string
	Score float32
} {
	vi.mu.RLock()
	defer vi.mu.RUnlock()

	if vi.graph.Len() == 0 {
		return nil
	}

	nodes := vi.graph.Search(query, k)
	out := make([]struct {
		ID    string
		Score float32
	}, 0, len(nodes))
	for _, node := range nodes {
		id, ok := vi.keyMap[node.Key]
		if !ok {
			continue
		}
		distance := vi.graph.Distance(query, node.Value)
		// coder/hnsw's CosineDistance is 1 - cosine_similarity.
		score := float32(1) - distance
		out = append(out, struct {
			ID    string
			Score float32
		}{ID: id, Score: score})
	}
	return out
}

func (vi *vectorIndex) count() int {
	vi.mu.RLock()
	defer vi.mu.RUnlock()
	return len(vi.idMap)
}

func (vi *vectorIndex) allDocIDs() []string {
	vi.mu.RLock()
	defer vi.mu.RUnlock()
	ids := make([]string, 0, len(vi.idMap))
	for id := range vi.idMap {
		ids = append(ids, id)
	}
	return ids
}

// save persists the graph and ID mappings with a temp-file-then-rename swap.
func (vi *vectorIndex) save(path string) error {
	vi.mu.RLock()
	defer vi.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create vector index directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create vector index file: %w", err)
	}
	if err := vi.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("export hnsw graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close vector index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename vector index file: %w", err)
	}

	return vi.saveMeta(path + ".meta")
}

func (vi *vectorIndex) saveMeta(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create vector index meta: %w", err)
	}
	meta := vectorIndexMeta{IDMap: vi.idMap, Next: vi.next, Config: vi.cfg}
	if err := gob.NewEncoder(f).Encode(meta); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode vector index meta: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close vector index meta: %w", err)
	}
	return os.Rename(tmp, path)
}

// load restores a previously saved graph, if present. A missing file is
// not an error: Open creates the schema idempotently either way.
func (vi *vectorIndex) load(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := path + ".meta"
	if _, err := os.Stat(metaPath); err == nil {
		mf, err := os.Open(metaPath)
		if err != nil {
			return fmt.Errorf("open vector index meta: %w", err)
		}
		var meta vectorIndexMeta
		decErr := gob.NewDecoder(mf).Decode(&meta)
		mf.Close()
		if decErr != nil {
			return fmt.Errorf("decode vector index meta: %w", decErr)
		}
		if meta.Config.Dimensions != 0 && meta.Config.Dimensions != vi.cfg.Dimensions {
			return ErrDimensionMismatch{Expected: vi.cfg.Dimensions, Got: meta.Config.Dimensions}
		}
		vi.idMap = meta.IDMap
		vi.next = meta.Next
		vi.keyMap = make(map[uint64]string, len(meta.IDMap))
		for id, key := range meta.IDMap {
			vi.keyMap[key] = id
		}
	} else {
		slog.Warn("vector index file found without metadata sidecar", slog.String("path", path))
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open vector index file: %w", err)
	}
	defer f.Close()

	// coder/hnsw's Import requires io.ByteReader.
	if err := vi.graph.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("import hnsw graph: %w", err)
	}
	return nil
}
