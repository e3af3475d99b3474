package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"docmind/internal/index"
	"docmind/internal/providers"
	"docmind/internal/util"

	"golang.org/x/sync/singleflight"
)

// Store maps a document's content fingerprint to a persisted retrieval
// index. The expensive chunk+embed build runs at most once per
// fingerprint: concurrent requesters for the same new document join the
// in-flight build instead of racing a duplicate. Entries are never
// evicted.
type Store struct {
	root     string
	embedder providers.EmbeddingProvider
	opts     index.SearchOptions
	group    singleflight.Group
}

func NewStore(root string, embedder providers.EmbeddingProvider, opts index.SearchOptions) *Store {
	return &Store{root: root, embedder: embedder, opts: opts}
}

// Fingerprint is the cache key: a digest of raw content bytes only,
// never of path, owner, or mtime. Byte-identical uploads from different
// owners share one entry.
func Fingerprint(b []byte) string {
	return util.SHA256Hex(b)
}

func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for fingerprint: %w", err)
	}
	defer f.Close()
	sum, err := util.SHA256HexFromReader(f)
	if err != nil {
		return "", fmt.Errorf("fingerprint file: %w", err)
	}
	return sum, nil
}

// Get returns the index for a fingerprint, loading a complete persisted
// entry when one exists and invoking build otherwise. A corrupt entry
// (marker present, payload unreadable) is treated as a forced miss and
// rebuilt rather than failing the request.
func (s *Store) Get(ctx context.Context, fingerprint string, build func(ctx context.Context) (*index.Index, error)) (*index.Index, error) {
	v, err, _ := s.group.Do(fingerprint, func() (any, error) {
		dir := filepath.Join(s.root, fingerprint)

		ix, err := index.Load(dir, s.embedder, s.opts)
		if err == nil {
			return ix, nil
		}
		if errors.Is(err, util.ErrIndexCorrupt) {
			log.Printf("index cache: corrupt entry fingerprint=%s, rebuilding: %v", fingerprint, err)
		} else if !errors.Is(err, index.ErrMissing) {
			return nil, err
		}

		ix, err = build(ctx)
		if err != nil {
			return nil, err
		}
		if err := ix.Save(dir); err != nil {
			return nil, err
		}
		return ix, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*index.Index), nil
}
