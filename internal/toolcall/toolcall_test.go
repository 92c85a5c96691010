package toolcall

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragforge/corerag/internal/config"
	"github.com/ragforge/corerag/internal/rag"
)

func fakeEmbeddingServer(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		embeddings := make([][]float32, len(req.Input))
		for i := range req.Input {
			vec := make([]float32, dims)
			vec[0] = 1.0
			embeddings[i] = vec
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	})
	return httptest.NewServer(mux)
}

func newTestServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	srv := fakeEmbeddingServer(t, 8)
	t.Cleanup(srv.Close)

	dataDir := t.TempDir()
	cfg := config.Default()
	cfg.DocumentsDir = t.TempDir()
	cfg.DataDir = dataDir
	cfg.VectorStoreURI = filepath.Join(dataDir, "store")
	cfg.EmbeddingEndpoint = srv.URL
	cfg.EmbeddingModel = "fake-model"
	cfg.ServerName = "corerag-test"

	facade := rag.New(cfg, nil)
	require.NoError(t, facade.Initialize(context.Background()))
	t.Cleanup(func() { _ = facade.Shutdown(context.Background()) })

	return New(facade, cfg, nil), cfg
}

func TestHandleUploadFile_WritesAndIndexesTheFile(t *testing.T) {
	s, cfg := newTestServer(t)

	_, res, err := s.handleUploadFile(context.Background(), nil, UploadFileInput{
		Content:  []byte("hello from upload"),
		FileName: "note.txt",
	})
	require.NoError(t, err)
	assert.True(t, res.OK)

	data, readErr := os.ReadFile(filepath.Join(cfg.DocumentsDir, "note.txt"))
	require.NoError(t, readErr)
	assert.Equal(t, "hello from upload", string(data))
}

func TestHandleUploadFile_RejectsEmptyFileName(t *testing.T) {
	s, _ := newTestServer(t)

	_, _, err := s.handleUploadFile(context.Background(), nil, UploadFileInput{Content: []byte("x")})
	assert.Error(t, err)
}

func TestHandleListFiles_ReturnsUploadedFile(t *testing.T) {
	s, _ := newTestServer(t)

	_, _, err := s.handleUploadFile(context.Background(), nil, UploadFileInput{
		Content:  []byte("content for listing"),
		FileName: "listed.md",
	})
	require.NoError(t, err)

	_, out, err := s.handleListFiles(context.Background(), nil, ListFilesInput{})
	require.NoError(t, err)
	require.Len(t, out.Files, 1)
	assert.Equal(t, "listed.md", out.Files[0].Name)
	assert.Equal(t, ".md", out.Files[0].Type)
}

func TestHandleListFiles_FiltersByFileType(t *testing.T) {
	s, _ := newTestServer(t)

	_, _, err := s.handleUploadFile(context.Background(), nil, UploadFileInput{Content: []byte("a"), FileName: "a.txt"})
	require.NoError(t, err)
	_, _, err = s.handleUploadFile(context.Background(), nil, UploadFileInput{Content: []byte("b"), FileName: "b.md"})
	require.NoError(t, err)

	_, out, err := s.handleListFiles(context.Background(), nil, ListFilesInput{FileType: ".md"})
	require.NoError(t, err)
	require.Len(t, out.Files, 1)
	assert.Equal(t, "b.md", out.Files[0].Name)
}

func TestHandleListFiles_RespectsLimitAndOffset(t *testing.T) {
	s, _ := newTestServer(t)

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		_, _, err := s.handleUploadFile(context.Background(), nil, UploadFileInput{Content: []byte(name), FileName: name})
		require.NoError(t, err)
	}

	_, out, err := s.handleListFiles(context.Background(), nil, ListFilesInput{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, out.Files, 1)
}

func TestHandleSearchDocuments_FindsUploadedContent(t *testing.T) {
	s, _ := newTestServer(t)

	_, _, err := s.handleUploadFile(context.Background(), nil, UploadFileInput{
		Content:  []byte("the quick brown fox jumps"),
		FileName: "fox.txt",
	})
	require.NoError(t, err)

	_, out, err := s.handleSearchDocuments(context.Background(), nil, SearchDocumentsInput{Query: "fox"})
	require.NoError(t, err)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, "fox.txt", out.Results[0].FileName)
}

func TestHandleSearchDocuments_FiltersByFileTypes(t *testing.T) {
	s, _ := newTestServer(t)

	_, _, err := s.handleUploadFile(context.Background(), nil, UploadFileInput{
		Content:  []byte("quick fox content"),
		FileName: "fox.md",
	})
	require.NoError(t, err)

	_, out, err := s.handleSearchDocuments(context.Background(), nil, SearchDocumentsInput{
		Query:     "fox",
		FileTypes: []string{".txt"},
	})
	require.NoError(t, err)
	assert.Empty(t, out.Results)
}

func TestHandleGetServerStatus_ReportsReady(t *testing.T) {
	s, _ := newTestServer(t)

	_, out, err := s.handleGetServerStatus(context.Background(), nil, GetServerStatusInput{})
	require.NoError(t, err)
	assert.Equal(t, "ready", out.Status)
	assert.GreaterOrEqual(t, out.UptimeSeconds, int64(0))
}

func TestHandleForceReindex_SyncsDocumentsDir(t *testing.T) {
	s, cfg := newTestServer(t)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.DocumentsDir, "pre-existing.txt"), []byte("pre-existing content"), 0o644))

	_, res, err := s.handleForceReindex(context.Background(), nil, ForceReindexInput{})
	require.NoError(t, err)
	assert.True(t, res.OK)

	_, out, err := s.handleListFiles(context.Background(), nil, ListFilesInput{})
	require.NoError(t, err)
	require.Len(t, out.Files, 1)
	assert.Equal(t, "pre-existing.txt", out.Files[0].Name)
}

func TestHandleForceReindex_ClearCacheTruncatesFirst(t *testing.T) {
	s, cfg := newTestServer(t)

	_, _, err := s.handleUploadFile(context.Background(), nil, UploadFileInput{Content: []byte("a"), FileName: "a.txt"})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(cfg.DocumentsDir, "a.txt")))

	_, res, err := s.handleForceReindex(context.Background(), nil, ForceReindexInput{ClearCache: true})
	require.NoError(t, err)
	assert.True(t, res.OK)

	_, out, err := s.handleListFiles(context.Background(), nil, ListFilesInput{})
	require.NoError(t, err)
	assert.Empty(t, out.Files)
}
