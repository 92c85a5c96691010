package cmd

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newFakeEmbeddingServer serves the Ollama-compatible /api/embed and
// /api/tags endpoints the embedding client dials, returning a deterministic
// fixed-width vector per input so tests don't need a live model.
func newFakeEmbeddingServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		embeddings := make([][]float32, len(req.Input))
		for i, text := range req.Input {
			embeddings[i] = deterministicVector(text, 8)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// deterministicVector hashes text into a fixed-width float32 vector so the
// same text always embeds to the same point, enough for exercising search
// without running a real model.
func deterministicVector(text string, dims int) []float32 {
	sum := sha256.Sum256([]byte(text))
	out := make([]float32, dims)
	for i := range out {
		out[i] = float32(binary.LittleEndian.Uint32(sum[(i*4)%len(sum):])%1000) / 1000
	}
	return out
}

// writeTestConfig writes a corerag YAML config rooted at docsDir/dataDir
// and pointing embedding_endpoint at the fake server, returning its path.
func writeTestConfig(t *testing.T, docsDir, dataDir, embeddingEndpoint string) string {
	t.Helper()

	content := "" +
		"documents_dir: " + docsDir + "\n" +
		"data_dir: " + dataDir + "\n" +
		"embedding_endpoint: " + embeddingEndpoint + "\n" +
		"log_level: error\n" +
		"log_file: " + filepath.Join(dataDir, "corerag.log") + "\n"

	path := filepath.Join(t.TempDir(), "corerag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// resetConfigPath restores the configPath package var after a test mutates
// it via a command's --config flag or direct assignment.
func resetConfigPath(t *testing.T) {
	t.Helper()
	old := configPath
	t.Cleanup(func() { configPath = old })
}

// captureStdout runs fn with os.Stdout redirected to a pipe and returns
// whatever it wrote. Several commands print straight to os.Stdout (so
// piped MCP stdio stays uncontaminated by cobra's own writer), which
// bypasses cmd.SetOut.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	r, w, err := os.Pipe()
	require.NoError(t, err)

	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	require.NoError(t, w.Close())
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	return buf.String()
}
