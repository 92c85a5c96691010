// Package rag is the single entry point used by the tool-call front-end:
// lifecycle owner for the embedding client, vector store, document
// processor, and search engine, exposing add/remove/search/info/shutdown.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ragforge/corerag/internal/config"
	"github.com/ragforge/corerag/internal/embed"
	corerrors "github.com/ragforge/corerag/internal/errors"
	"github.com/ragforge/corerag/internal/process"
	"github.com/ragforge/corerag/internal/search"
	"github.com/ragforge/corerag/internal/store"
	"github.com/ragforge/corerag/internal/watcher"
)

// State is a node in the facade's lifecycle state machine.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateShuttingDown  State = "shutting_down"
	StateTerminated    State = "terminated"
)

// Info reports composite health and basic counts, returned by Facade.Info.
type Info struct {
	State             State
	VectorStoreOK     bool
	EmbeddingClientOK bool
	DocumentCount     int
	ChunkCount        int
}

// Facade is the sole public entry point onto the core. It rejects every
// document and search operation before Initialize reaches StateReady, and
// after ShuttingDown/Terminated; State and Info answer in every state.
type Facade struct {
	cfg    *config.Config
	logger *slog.Logger

	mu    sync.RWMutex
	state State

	group singleflight.Group

	embedder  embed.Embedder
	vecStore  *store.Store
	processor *process.Processor
	engine    *search.Engine
}

// New returns a Facade in StateUninitialized; call Initialize before use.
func New(cfg *config.Config, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{cfg: cfg, logger: logger, state: StateUninitialized}
}

// State reports the facade's current lifecycle state.
func (f *Facade) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Initialize builds the embedding client, vector store, document
// processor, and search engine, in that dependency order. A second call
// while initialization is already in flight awaits the same outcome
// instead of starting a new one, via golang.org/x/sync/singleflight.
func (f *Facade) Initialize(ctx context.Context) error {
	f.mu.Lock()
	switch f.state {
	case StateReady:
		f.mu.Unlock()
		return nil
	case StateShuttingDown, StateTerminated:
		f.mu.Unlock()
		return corerrors.Initialization(corerrors.CodeAlreadyTerminated, "facade is shutting down or terminated", nil)
	}
	f.state = StateInitializing
	f.mu.Unlock()

	_, err, _ := f.group.Do("initialize", func() (any, error) {
		return nil, f.initialize(ctx)
	})

	f.mu.Lock()
	if err != nil {
		f.state = StateUninitialized
	} else {
		f.state = StateReady
	}
	f.mu.Unlock()
	return err
}

func (f *Facade) initialize(ctx context.Context) error {
	embedder, err := embed.New(ctx, embed.ProviderHTTP, embed.HTTPConfig{
		Host:      f.cfg.EmbeddingEndpoint,
		Model:     f.cfg.EmbeddingModel,
		BatchSize: f.cfg.EmbeddingBatchSize,
	}, embed.DefaultCacheSize)
	if err != nil {
		return corerrors.Initialization(corerrors.CodeEmbeddingUnavailable, "initialize embedding client", err)
	}

	storeCfg := store.DefaultConfig(embedder.Dimensions())
	storeCfg.ModelName = embedder.ModelName()
	vecStore, err := store.Open(ctx, f.cfg.VectorStoreURI, storeCfg)
	if err != nil {
		embedder.Close()
		return err
	}

	procCfg := process.DefaultConfig()
	procCfg.EmbedConcurrency = f.cfg.EmbeddingConcurrency
	procCfg.EmbedBatchSize = f.cfg.EmbeddingBatchSize
	procCfg.MaxQueuedRequests = f.cfg.WatcherMaxQueue
	if f.cfg.ChunkSize > 0 {
		procCfg.ChunkParams.TargetSize = f.cfg.ChunkSize
		procCfg.ChunkParams.Overlap = f.cfg.ChunkOverlap
		procCfg.ChunkParams.MinSize = f.cfg.MinChunkSize
	}
	proc := process.New(vecStore, embedder, procCfg, f.logger)

	engine := search.New(vecStore, embedder, f.cfg.SemanticScoreThreshold, f.logger)

	f.mu.Lock()
	f.embedder = embedder
	f.vecStore = vecStore
	f.processor = proc
	f.engine = engine
	f.mu.Unlock()
	return nil
}

// requireReady is the single reject-before-ready/after-terminal guard
// every public operation consults.
func (f *Facade) requireReady() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.state != StateReady {
		return corerrors.Initialization(corerrors.CodeAlreadyTerminated,
			fmt.Sprintf("facade is in state %q, not ready", f.state), nil)
	}
	return nil
}

// AddDocuments processes each path, returning the first error encountered;
// earlier successful paths remain committed (no batch transaction).
func (f *Facade) AddDocuments(ctx context.Context, paths []string) error {
	if err := f.requireReady(); err != nil {
		return err
	}
	f.mu.RLock()
	proc := f.processor
	f.mu.RUnlock()

	for _, p := range paths {
		if err := proc.Process(ctx, p, false); err != nil {
			return err
		}
	}
	return nil
}

// RemoveDocument removes path's chunk records.
func (f *Facade) RemoveDocument(ctx context.Context, path string) error {
	if err := f.requireReady(); err != nil {
		return err
	}
	f.mu.RLock()
	proc := f.processor
	f.mu.RUnlock()
	return proc.Remove(ctx, path)
}

// Sync walks root and reconciles the store with the filesystem.
func (f *Facade) Sync(ctx context.Context, root string) error {
	if err := f.requireReady(); err != nil {
		return err
	}
	f.mu.RLock()
	proc := f.processor
	f.mu.RUnlock()
	return proc.Sync(ctx, root)
}

// ListDocuments returns the most recent metadata per doc_id.
func (f *Facade) ListDocuments(ctx context.Context) (map[string]store.ChunkMetadata, error) {
	if err := f.requireReady(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	vecStore := f.vecStore
	f.mu.RUnlock()
	return vecStore.ListAllDocs(ctx)
}

// ClearAll truncates the store.
func (f *Facade) ClearAll(ctx context.Context) error {
	if err := f.requireReady(); err != nil {
		return err
	}
	f.mu.RLock()
	vecStore := f.vecStore
	f.mu.RUnlock()
	return vecStore.DeleteAll(ctx)
}

// Search executes query under opts.
func (f *Facade) Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	if err := f.requireReady(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	engine := f.engine
	f.mu.RUnlock()
	return engine.Search(ctx, query, opts)
}

// Info reports composite health: vector store reachable AND embedding
// client reachable.
func (f *Facade) Info(ctx context.Context) (Info, error) {
	f.mu.RLock()
	state := f.state
	vecStore := f.vecStore
	embedder := f.embedder
	f.mu.RUnlock()

	info := Info{State: state}
	if state != StateReady {
		return info, nil
	}

	info.EmbeddingClientOK = embedder.Available(ctx)
	docCount, err := vecStore.CountDistinctDocs(ctx)
	if err == nil {
		info.DocumentCount = docCount
		info.VectorStoreOK = true
	}
	chunkCount, err := vecStore.CountRows(ctx)
	if err == nil {
		info.ChunkCount = chunkCount
	}
	return info, nil
}

// Watch starts an fsnotify-primary, polling-fallback watcher over
// cfg.DocumentsDir and drives every resulting event through the document
// processor until ctx is canceled. It blocks; callers run it in its own
// goroutine alongside Serve.
func (f *Facade) Watch(ctx context.Context) error {
	if err := f.requireReady(); err != nil {
		return err
	}
	f.mu.RLock()
	proc := f.processor
	cfg := f.cfg
	logger := f.logger
	f.mu.RUnlock()

	opts := watcher.DefaultOptions()
	if cfg.WatcherDebounceMS > 0 {
		opts.DebounceWindow = time.Duration(cfg.WatcherDebounceMS) * time.Millisecond
	}

	w := watcher.NewHybridWatcher(opts, selfIgnoreDir(cfg.DocumentsDir, cfg.DataDir))
	pump := process.NewPump(proc, logger)
	return pump.Run(ctx, w, cfg.DocumentsDir)
}

// selfIgnoreDir returns dataDir relative to documentsDir when dataDir is
// nested under it, so the watcher never reacts to the store's own files;
// "" when they are unrelated (dataDir outside documentsDir).
func selfIgnoreDir(documentsDir, dataDir string) string {
	rel, err := filepath.Rel(documentsDir, dataDir)
	if err != nil || rel == "." || len(rel) >= 2 && rel[:2] == ".." {
		return ""
	}
	return rel
}

// Shutdown transitions to Terminated, releasing the store and embedding
// client. All terminal states reject further operations.
func (f *Facade) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	if f.state == StateTerminated {
		f.mu.Unlock()
		return nil
	}
	f.state = StateShuttingDown
	vecStore := f.vecStore
	embedder := f.embedder
	f.mu.Unlock()

	var firstErr error
	if vecStore != nil {
		if err := vecStore.Close(); err != nil {
			firstErr = err
		}
	}
	if embedder != nil {
		if err := embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	f.mu.Lock()
	f.state = StateTerminated
	f.mu.Unlock()
	return firstErr
}
