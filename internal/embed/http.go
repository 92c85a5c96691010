package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	corerrors "github.com/ragforge/corerag/internal/errors"
)

// HTTPConfig configures an Ollama-compatible embedding HTTP endpoint.
type HTTPConfig struct {
	Host       string
	Model      string
	Dimensions int // 0 = auto-detect from a test embedding
	BatchSize  int
	CallTimeout  time.Duration // per-request timeout, ~15s per spec
	BatchTimeout time.Duration // whole-batch timeout, ~30s per spec
	MaxRetries   int
}

// DefaultHTTPConfig returns the embedding client defaults named in the
// concurrency/resource model: 15s per call, 30s per batch, 3 retries.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Host:         "http://localhost:11434",
		Model:        "nomic-embed-text",
		BatchSize:    32,
		CallTimeout:  15 * time.Second,
		BatchTimeout: 30 * time.Second,
		MaxRetries:   3,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// HTTPEmbedder calls an Ollama-compatible /api/embed endpoint.
type HTTPEmbedder struct {
	client *http.Client
	cfg    HTTPConfig

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*HTTPEmbedder)(nil)

// NewHTTPEmbedder dials host and, if cfg.Dimensions is unset, detects the
// model's dimension from a single probe embedding.
func NewHTTPEmbedder(ctx context.Context, cfg HTTPConfig) (*HTTPEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHTTPConfig().Host
	}
	if cfg.Model == "" {
		cfg.Model = DefaultHTTPConfig().Model
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultHTTPConfig().BatchSize
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultHTTPConfig().CallTimeout
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultHTTPConfig().BatchTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultHTTPConfig().MaxRetries
	}

	e := &HTTPEmbedder{
		client: &http.Client{
			Transport: &http.Transport{MaxIdleConnsPerHost: 8, IdleConnTimeout: 10 * time.Second},
		},
		cfg:  cfg,
		dims: cfg.Dimensions,
	}

	if e.dims == 0 {
		probeCtx, cancel := context.WithTimeout(ctx, cfg.BatchTimeout)
		defer cancel()
		vecs, err := e.embedRaw(probeCtx, []string{"dimension probe"})
		if err != nil {
			return nil, corerrors.Initialization(corerrors.CodeEmbeddingUnavailable,
				"probe embedding request to "+cfg.Host+" failed", err)
		}
		if len(vecs) == 0 || len(vecs[0]) == 0 {
			return nil, corerrors.Initialization(corerrors.CodeEmbeddingBadDims, "probe embedding returned no dimensions", nil)
		}
		e.dims = len(vecs[0])
	}

	return e, nil
}

func (e *HTTPEmbedder) Dimensions() int  { return e.dims }
func (e *HTTPEmbedder) ModelName() string { return e.cfg.Model }

func (e *HTTPEmbedder) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.Host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (e *HTTPEmbedder) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.client.CloseIdleConnections()
	return nil
}

// Embed embeds a single query string.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, e.dims), nil
	}
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in cfg.BatchSize-sized sub-requests, each under
// its own call timeout, the whole operation under the batch timeout.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, corerrors.Embedding(corerrors.CodeEmbeddingUnavailable, "embedder is closed", nil)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.BatchTimeout)
	defer cancel()

	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.cfg.BatchSize {
		end := i + e.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embedWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *HTTPEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, corerrors.Timeout(corerrors.CodeEmbeddingTimeout, "embedding batch timed out", ctx.Err())
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		vecs, err := e.embedRaw(callCtx, texts)
		cancel()
		if err == nil {
			for i, v := range vecs {
				vecs[i] = normalizeVector(v)
			}
			return vecs, nil
		}
		lastErr = err
	}
	return nil, corerrors.Embedding(corerrors.CodeEmbeddingUnavailable, "embedding request failed after retries", lastErr)
}

func (e *HTTPEmbedder) embedRaw(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding endpoint returned %d: %s", resp.StatusCode, string(b))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	return result.Embeddings, nil
}
