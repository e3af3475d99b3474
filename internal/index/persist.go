package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"docmind/internal/providers"
	"docmind/internal/util"
)

// ErrMissing reports that no complete persisted index exists at the
// given location (no payload, or payload without its marker).
var ErrMissing = errors.New("no persisted index")

const (
	payloadFile = "index.json"
	markerFile  = "complete"
)

// Save persists the index under dir. The payload lands atomically
// (temp + rename) and the completeness marker is written last, so a
// crash mid-persist can never be mistaken for a valid entry.
func (ix *Index) Save(dir string) error {
	if err := util.WriteJSONAtomic(filepath.Join(dir, payloadFile), ix); err != nil {
		return fmt.Errorf("persist index payload: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, markerFile), []byte("ok\n"), 0o644); err != nil {
		return fmt.Errorf("write completeness marker: %w", err)
	}
	return nil
}

// Load restores a persisted index. Absence of the marker is a plain
// miss; a marker with an unreadable payload is corruption, which the
// cache treats as a forced miss.
func Load(dir string, embedder providers.EmbeddingProvider, opts SearchOptions) (*Index, error) {
	if _, err := os.Stat(filepath.Join(dir, markerFile)); err != nil {
		return nil, ErrMissing
	}
	b, err := os.ReadFile(filepath.Join(dir, payloadFile))
	if err != nil {
		return nil, fmt.Errorf("%w: read payload: %v", util.ErrIndexCorrupt, err)
	}
	var ix Index
	if err := json.Unmarshal(b, &ix); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", util.ErrIndexCorrupt, err)
	}
	if len(ix.Chunks) == 0 || len(ix.Chunks) != len(ix.Vectors) {
		return nil, fmt.Errorf("%w: payload shape mismatch", util.ErrIndexCorrupt)
	}
	ix.embedder = embedder
	ix.opts = opts.withDefaults()
	return &ix, nil
}
