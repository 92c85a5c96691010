package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSync_IndexesDocumentsDir(t *testing.T) {
	resetConfigPath(t)

	srv := newFakeEmbeddingServer(t)
	docsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "note.txt"), []byte("hello world, this is a test document"), 0o644))
	configPath = writeTestConfig(t, docsDir, t.TempDir(), srv.URL)

	output := captureStdout(t, func() {
		err := runSync(context.Background())
		require.NoError(t, err)
	})

	assert.Contains(t, output, "sync complete")
}

func TestRunSync_EmptyDocumentsDirSucceeds(t *testing.T) {
	resetConfigPath(t)

	srv := newFakeEmbeddingServer(t)
	configPath = writeTestConfig(t, t.TempDir(), t.TempDir(), srv.URL)

	err := runSync(context.Background())
	require.NoError(t, err)
}
