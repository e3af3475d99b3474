package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"docmind/internal/index"
	"docmind/internal/providers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChunks() []index.Chunk {
	return []index.Chunk{
		{Text: "The borrower shall repay the loan.", Page: 1},
		{Text: "Collateral means any pledged asset.", Page: 2},
	}
}

func newTestStore(t *testing.T) (*Store, providers.EmbeddingProvider) {
	t.Helper()
	embedder := providers.NewMockProvider(8)
	return NewStore(t.TempDir(), embedder, index.SearchOptions{}), embedder
}

func TestFingerprintDependsOnBytesOnly(t *testing.T) {
	a := Fingerprint([]byte("same document bytes"))
	b := Fingerprint([]byte("same document bytes"))
	c := Fingerprint([]byte("different bytes"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	// A file fingerprint matches the in-memory fingerprint of the same
	// bytes, so re-uploads and cross-owner copies share one cache entry.
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("same document bytes"), 0o644))
	fromFile, err := FingerprintFile(path)
	require.NoError(t, err)
	assert.Equal(t, a, fromFile)
}

func TestGetBuildsOnceAndLoadsAfter(t *testing.T) {
	store, embedder := newTestStore(t)
	var builds int32
	build := func(ctx context.Context) (*index.Index, error) {
		atomic.AddInt32(&builds, 1)
		return index.Build(ctx, testChunks(), embedder, 8, index.SearchOptions{})
	}

	fp := Fingerprint([]byte("doc"))
	first, err := store.Get(context.Background(), fp, build)
	require.NoError(t, err)
	second, err := store.Get(context.Background(), fp, build)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&builds), "second get must load, not rebuild")
	assert.Equal(t, first.Chunks, second.Chunks)
}

func TestGetSingleFlightUnderConcurrency(t *testing.T) {
	store, embedder := newTestStore(t)
	var builds int32
	build := func(ctx context.Context) (*index.Index, error) {
		atomic.AddInt32(&builds, 1)
		time.Sleep(50 * time.Millisecond)
		return index.Build(ctx, testChunks(), embedder, 8, index.SearchOptions{})
	}

	fp := Fingerprint([]byte("concurrent doc"))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Get(context.Background(), fp, build)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&builds), "concurrent requesters must join one build")
}

func TestGetRebuildsCorruptEntry(t *testing.T) {
	store, embedder := newTestStore(t)
	fp := Fingerprint([]byte("doc"))

	dir := filepath.Join(store.root, fp)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.json"), []byte("{broken"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "complete"), []byte("ok\n"), 0o644))

	var builds int32
	build := func(ctx context.Context) (*index.Index, error) {
		atomic.AddInt32(&builds, 1)
		return index.Build(ctx, testChunks(), embedder, 8, index.SearchOptions{})
	}
	ix, err := store.Get(context.Background(), fp, build)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&builds), "corruption is a forced miss")
	assert.Len(t, ix.Chunks, 2)

	// The rebuilt entry replaces the corrupt one.
	_, err = store.Get(context.Background(), fp, build)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
}

func TestGetDoesNotPersistFailedBuilds(t *testing.T) {
	store, embedder := newTestStore(t)
	fp := Fingerprint([]byte("doc"))

	_, err := store.Get(context.Background(), fp, func(ctx context.Context) (*index.Index, error) {
		return nil, os.ErrDeadlineExceeded
	})
	require.Error(t, err)

	// A later successful build must still run and publish.
	var builds int32
	ix, err := store.Get(context.Background(), fp, func(ctx context.Context) (*index.Index, error) {
		atomic.AddInt32(&builds, 1)
		return index.Build(ctx, testChunks(), embedder, 8, index.SearchOptions{})
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
	assert.Len(t, ix.Chunks, 2)
}
