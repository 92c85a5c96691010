package process

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragforge/corerag/internal/embed"
	"github.com/ragforge/corerag/internal/store"
)

const testDimensions = 8

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := store.DefaultConfig(testDimensions)
	cfg.ModelName = "static-hash-v1"
	s, err := store.Open(context.Background(), t.TempDir(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestProcessor(t *testing.T) (*Processor, *store.Store) {
	t.Helper()
	s := openTestStore(t)
	embedder := embed.NewStaticEmbedder(testDimensions)
	t.Cleanup(func() { _ = embedder.Close() })
	return New(s, embedder, DefaultConfig(), nil), s
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestProcess_InsertsChunksForNewFile(t *testing.T) {
	p, s := newTestProcessor(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "hello world, this is a short test document about foxes")

	require.NoError(t, p.Process(context.Background(), path, false))

	docID := DocID(mustAbs(t, path))
	ok, err := s.HasDoc(context.Background(), docID)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := s.CountRows(context.Background())
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestProcess_SetsFileHashFromContent(t *testing.T) {
	p, s := newTestProcessor(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "some content whose sha256 we will check below")

	require.NoError(t, p.Process(context.Background(), path, false))

	docID := DocID(mustAbs(t, path))
	docs, err := s.ListAllDocs(context.Background())
	require.NoError(t, err)
	meta, ok := docs[docID]
	require.True(t, ok)

	assert.NotEmpty(t, meta.FileHash)
	assert.Len(t, meta.FileHash, 64) // hex-encoded sha256
	assert.Equal(t, hashContent([]byte("some content whose sha256 we will check below")), meta.FileHash)
}

func TestProcess_IdempotentReprocessOfUnchangedFile(t *testing.T) {
	p, s := newTestProcessor(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "idempotent content that does not change between calls")

	require.NoError(t, p.Process(context.Background(), path, false))
	before, err := s.CountRows(context.Background())
	require.NoError(t, err)

	// Same fingerprint: the second call must be a no-op (fingerprint-gated).
	require.NoError(t, p.Process(context.Background(), path, false))
	after, err := s.CountRows(context.Background())
	require.NoError(t, err)

	assert.Equal(t, before, after)
}

func TestProcess_ForceReprocessesEvenWhenUnchanged(t *testing.T) {
	p, _ := newTestProcessor(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "content reprocessed under force regardless of fingerprint")

	require.NoError(t, p.Process(context.Background(), path, false))
	require.NoError(t, p.Process(context.Background(), path, true))
}

func TestProcess_ReprocessAfterEditReplacesChunks(t *testing.T) {
	p, s := newTestProcessor(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "first version of the document content")

	require.NoError(t, p.Process(context.Background(), path, false))
	docID := DocID(mustAbs(t, path))
	docs, err := s.ListAllDocs(context.Background())
	require.NoError(t, err)
	firstHash := docs[docID].FileHash

	writeFile(t, dir, "a.txt", "second, substantially different version of the document content, much longer than before")
	require.NoError(t, p.Process(context.Background(), path, false))

	docs, err = s.ListAllDocs(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, firstHash, docs[docID].FileHash)
}

func TestProcess_UnsupportedExtensionErrors(t *testing.T) {
	p, _ := newTestProcessor(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.bin", "irrelevant")

	err := p.Process(context.Background(), path, false)
	assert.Error(t, err)
}

func TestProcess_ConcurrentCallsOnSamePathLeaveDocIndexed(t *testing.T) {
	p, s := newTestProcessor(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "concurrent content processed by many goroutines at once, long enough to chunk")

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = p.Process(context.Background(), path, true)
		}()
	}
	wg.Wait()

	docID := DocID(mustAbs(t, path))
	docs, err := s.ListAllDocs(context.Background())
	require.NoError(t, err)
	_, ok := docs[docID]
	assert.True(t, ok)
}

func TestRemove_DeletesDocRecords(t *testing.T) {
	p, s := newTestProcessor(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "content to be removed after processing it once")

	require.NoError(t, p.Process(context.Background(), path, false))
	docID := DocID(mustAbs(t, path))
	ok, err := s.HasDoc(context.Background(), docID)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, p.Remove(context.Background(), path))

	ok, err = s.HasDoc(context.Background(), docID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSync_IndexesAllSupportedFilesInTree(t *testing.T) {
	p, s := newTestProcessor(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha document content about dogs and cats")
	writeFile(t, dir, "b.txt", "bravo document content about birds and fish")
	writeFile(t, dir, "ignored.bin", "not a supported type")

	require.NoError(t, p.Sync(context.Background(), dir))

	n, err := s.CountDistinctDocs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSync_RemovesStaleDocsNoLongerOnDisk(t *testing.T) {
	p, s := newTestProcessor(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "soon to be deleted document content")

	require.NoError(t, p.Sync(context.Background(), dir))
	n, err := s.CountDistinctDocs(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, os.Remove(path))
	require.NoError(t, p.Sync(context.Background(), dir))

	n, err = s.CountDistinctDocs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSync_MultisetMatchesFilesystemAfterAddAndRemove(t *testing.T) {
	p, s := newTestProcessor(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "kept document content that survives the whole test")
	removed := writeFile(t, dir, "b.txt", "removed document content that will be deleted")

	require.NoError(t, p.Sync(context.Background(), dir))
	require.NoError(t, os.Remove(removed))
	writeFile(t, dir, "c.txt", "newly added document content that appears later")

	require.NoError(t, p.Sync(context.Background(), dir))

	docs, err := s.ListAllDocs(context.Background())
	require.NoError(t, err)

	var names []string
	for _, meta := range docs {
		names = append(names, meta.FileName)
	}
	assert.ElementsMatch(t, []string{"a.txt", "c.txt"}, names)
}

// TestSync_OneUnreadableFileDoesNotAbortTheWalk is the regression test for
// the WalkDir-abort bug: filepath.WalkDir aborts entirely on any non-nil
// callback return, which would previously skip every file ordered after
// the failing one (alphabetically, "a_bad" sorts before the others) and
// skip the stale-doc cleanup pass too.
func TestSync_OneUnreadableFileDoesNotAbortTheWalk(t *testing.T) {
	p, s := newTestProcessor(t)
	dir := t.TempDir()

	// Invalid UTF-8 passes IsSupported and os.Stat, but fails inside
	// fileread.Read with a parse error, so Process returns a genuine
	// FileProcessingError rather than the vanished-file case.
	badPath := filepath.Join(dir, "a_bad.txt")
	require.NoError(t, os.WriteFile(badPath, []byte{0xff, 0xfe, 0x00}, 0o644))
	writeFile(t, dir, "z_good.txt", "this file sorts after the bad one and must still be processed")

	err := p.Sync(context.Background(), dir)
	require.NoError(t, err, "Sync itself must not fail just because one file failed to process")

	docID := DocID(mustAbs(t, filepath.Join(dir, "z_good.txt")))
	ok, herr := s.HasDoc(context.Background(), docID)
	require.NoError(t, herr)
	assert.True(t, ok, "the file after the unreadable one in the walk order must still be indexed")
}

// TestSync_ToleratesFileRemovedBeforeWalk removes the only file before Sync
// runs, so the walk never lists it; it checks that Sync still completes.
// The branch for a file that vanishes after the walk listed it is not
// exercised here.
func TestSync_ToleratesFileRemovedBeforeWalk(t *testing.T) {
	p, _ := newTestProcessor(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "will vanish before processing completes in spirit")
	require.NoError(t, os.Remove(path))

	err := p.Sync(context.Background(), dir)
	require.NoError(t, err)
}

func mustAbs(t *testing.T, path string) string {
	t.Helper()
	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	return abs
}

// failingEmbedder always errors, used to exercise embedAndAssemble's error
// path without needing a real embedding endpoint.
type failingEmbedder struct{}

func (failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("embedding unavailable")
}
func (failingEmbedder) ModelName() string { return "failing" }
func (failingEmbedder) Dimensions() int   { return testDimensions }

func TestProcess_EmbeddingFailurePropagatesAndLeavesNoRecords(t *testing.T) {
	s := openTestStore(t)
	p := New(s, failingEmbedder{}, DefaultConfig(), nil)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "content whose embedding call will fail")

	err := p.Process(context.Background(), path, false)
	assert.Error(t, err)

	n, cerr := s.CountRows(context.Background())
	require.NoError(t, cerr)
	assert.Zero(t, n)
}
