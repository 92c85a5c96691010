package process

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ragforge/corerag/internal/chunk"
	corerrors "github.com/ragforge/corerag/internal/errors"
	"github.com/ragforge/corerag/internal/fileread"
	"github.com/ragforge/corerag/internal/lang"
	"github.com/ragforge/corerag/internal/store"
)

// Embedder is the subset of embed.Embedder the processor depends on.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
	Dimensions() int
}

// Processor owns the file -> chunk-records pipeline. A second call to
// Process on a path already in flight returns immediately without error,
// mirroring the teacher's processing-set pattern in internal/index.
type Processor struct {
	store    *store.Store
	embedder Embedder
	cfg      Config
	logger   *slog.Logger

	processing sync.Map // path -> struct{}
}

// New builds a Processor over an opened store and embedder. A nil logger
// defaults to slog.Default().
func New(s *store.Store, embedder Embedder, cfg Config, logger *slog.Logger) *Processor {
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = DefaultConfig().EmbedConcurrency
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = DefaultConfig().EmbedBatchSize
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultConfig().ReadTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{store: s, embedder: embedder, cfg: cfg, logger: logger}
}

// Process reads, chunks, embeds, and upserts path's chunk records. When
// force is false and the file's fingerprint matches the last-recorded one,
// Process is a no-op. A second concurrent call on the same path returns
// immediately without error.
func (p *Processor) Process(ctx context.Context, path string, force bool) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return corerrors.FileProcessing(corerrors.CodeFileUnreadable, "resolve absolute path", err)
	}

	if _, loaded := p.processing.LoadOrStore(absPath, struct{}{}); loaded {
		return nil
	}
	defer p.processing.Delete(absPath)

	if !fileread.IsSupported(absPath) {
		return corerrors.FileProcessing(corerrors.CodeUnsupportedType, "unsupported file type "+filepath.Ext(absPath), nil)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return corerrors.FileProcessing(corerrors.CodeFileUnreadable, "stat "+absPath, err)
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return corerrors.FileProcessing(corerrors.CodeFileUnreadable, "read "+absPath, err)
	}
	fp := store.Fingerprint{Size: info.Size(), ModTimeUnix: info.ModTime().Unix(), ContentHash: hashContent(raw)}

	docID := DocID(absPath)
	if !force {
		if prev, ok, ferr := p.store.GetFingerprint(ctx, docID); ferr == nil && ok && prev == fp {
			return nil
		}
	}

	outcome := fileread.Read(ctx, absPath, p.cfg.ReadTimeout)
	if outcome.Err != nil {
		return outcome.Err
	}

	var text strings.Builder
	for i, src := range outcome.Sources {
		if i > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(src.Text)
	}

	params := p.cfg.ChunkParams
	params.ContentType = contentTypeFor(strings.ToLower(filepath.Ext(absPath)))
	chunks := chunk.Split(text.String(), params)
	if len(chunks) == 0 {
		return p.store.DeleteByDoc(ctx, docID)
	}

	records, err := p.embedAndAssemble(ctx, docID, absPath, info, chunks, fp.ContentHash)
	if err != nil {
		return err
	}

	if err := p.store.DeleteByDoc(ctx, docID); err != nil {
		return err
	}
	if err := p.store.Insert(ctx, records); err != nil {
		return err
	}
	return p.store.SetFingerprint(ctx, docID, fp)
}

// embedAndAssemble detects language, embeds, and assembles ChunkRecords
// for one document's chunks. Embedding calls within the batch run
// concurrently up to cfg.EmbedConcurrency.
func (p *Processor) embedAndAssemble(ctx context.Context, docID, absPath string, info fs.FileInfo, chunks []chunk.Chunk, contentHash string) ([]store.ChunkRecord, error) {
	records := make([]store.ChunkRecord, len(chunks))
	languages := make([]lang.Tag, len(chunks))
	for i, c := range chunks {
		tag, _ := lang.Detect(c.Text)
		languages[i] = tag
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, p.cfg.EmbedConcurrency)

	for start := 0; start < len(chunks); start += p.cfg.EmbedBatchSize {
		end := start + p.cfg.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		start, end := start, end
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			texts := make([]string, end-start)
			for i := start; i < end; i++ {
				texts[i-start] = chunks[i].Text
			}
			vectors, err := p.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return corerrors.Embedding(corerrors.CodeEmbeddingUnavailable, "embed batch", err)
			}

			meta := store.ChunkMetadata{
				FileName:    filepath.Base(absPath),
				FilePath:    absPath,
				FileSize:    info.Size(),
				FileModTime: info.ModTime().Unix(),
				FileHash:    contentHash,
				ChunkCount:  len(chunks),
				Total:       len(chunks),
			}

			for i := start; i < end; i++ {
				c := chunks[i]
				tag := languages[i]
				tokenized := ""
				if lang.NonWhitespaceSegmented(tag) {
					tokenized = lang.TokenizedSurfaceForm(tag, c.Text)
				}
				records[i] = store.ChunkRecord{
					ChunkID:       store.DeriveChunkID(docID, c.Ordinal),
					DocID:         docID,
					Ordinal:       c.Ordinal,
					Text:          c.Text,
					TokenizedText: tokenized,
					Language:      string(tag),
					Vector:        vectors[i-start],
					ModelName:     p.embedder.ModelName(),
					Metadata:      meta,
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// Remove derives path's doc_id and deletes its chunk records.
func (p *Processor) Remove(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return corerrors.FileProcessing(corerrors.CodeFileUnreadable, "resolve absolute path", err)
	}
	return p.store.DeleteByDoc(ctx, DocID(absPath))
}

// Sync walks root, processing every supported file (force=false, so the
// fingerprint check decides whether work actually happens), then removes
// every doc_id whose source path no longer resolves to a readable file.
// It tolerates files appearing and disappearing mid-walk.
func (p *Processor) Sync(ctx context.Context, root string) error {
	seen := make(map[string]struct{})

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // tolerate a vanished entry mid-walk
		}
		if d.IsDir() || !fileread.IsSupported(path) {
			return nil
		}
		absPath, aerr := filepath.Abs(path)
		if aerr != nil {
			return nil
		}
		seen[DocID(absPath)] = struct{}{}

		if perr := p.Process(ctx, path, false); perr != nil {
			if _, unreadable := os.Stat(path); unreadable != nil {
				return nil // file disappeared after the walk listed it
			}
			// A single file's FileProcessingError is logged and recorded,
			// never allowed to abort the walk: WalkDir stops entirely on a
			// non-nil callback return, which would also skip the stale-doc
			// cleanup below.
			p.logger.Warn("sync: failed to process file",
				slog.String("path", path), slog.String("error", perr.Error()))
			return nil
		}
		return nil
	})
	if walkErr != nil {
		return corerrors.FileProcessing(corerrors.CodeFileUnreadable, "walk "+root, walkErr)
	}

	docs, err := p.store.ListAllDocs(ctx)
	if err != nil {
		return err
	}
	for docID, meta := range docs {
		if _, ok := seen[docID]; ok {
			continue
		}
		if _, statErr := os.Stat(meta.FilePath); statErr == nil {
			continue // still present but outside root on this walk
		}
		if err := p.store.DeleteByDoc(ctx, docID); err != nil {
			return err
		}
	}
	return nil
}

func hashContent(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
