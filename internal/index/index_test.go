package index

import (
	"context"
	"fmt"
	"testing"

	"docmind/internal/extract"
	"docmind/internal/providers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	vecs map[string][]float32
}

func (s stubEmbedder) Embed(ctx context.Context, req providers.EmbedRequest) ([][]float32, providers.ProviderInfo, error) {
	_ = ctx
	out := make([][]float32, 0, len(req.Inputs))
	for _, in := range req.Inputs {
		v, ok := s.vecs[in]
		if !ok {
			return nil, providers.ProviderInfo{}, fmt.Errorf("no stub vector for %q", in)
		}
		out = append(out, append([]float32(nil), v...))
	}
	return out, providers.ProviderInfo{Name: "stub"}, nil
}

func TestChunkPagesKeepsPageAttribution(t *testing.T) {
	pages := []extract.Page{
		{Number: 1, Text: "abcdefghijklmnopqrstuvwxyz"},
		{Number: 3, Text: "short"},
	}
	chunks := ChunkPages(pages, 10, 2)
	require.GreaterOrEqual(t, len(chunks), 4)
	for _, c := range chunks[:len(chunks)-1] {
		assert.Equal(t, 1, c.Page)
	}
	last := chunks[len(chunks)-1]
	assert.Equal(t, 3, last.Page)
	assert.Equal(t, "short", last.Text)
}

func TestSearchPrefersDiverseResults(t *testing.T) {
	embedder := stubEmbedder{vecs: map[string][]float32{
		"dup one":  {1, 0},
		"dup two":  {1, 0},
		"sideways": {0, 1},
		"query":    {1, 0},
	}}
	chunks := []Chunk{
		{Text: "dup one", Page: 1},
		{Text: "dup two", Page: 1},
		{Text: "sideways", Page: 2},
	}
	ix, err := Build(context.Background(), chunks, embedder, 2, SearchOptions{Lambda: 0.4, FetchK: 10})
	require.NoError(t, err)

	got, err := ix.Search(context.Background(), "query", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Pure top-k would return both duplicates; MMR swaps the redundant
	// one for the orthogonal passage.
	pages := []int{got[0].Page, got[1].Page}
	assert.Contains(t, pages, 1)
	assert.Contains(t, pages, 2)
}

func TestSearchAppliesScoreThreshold(t *testing.T) {
	embedder := stubEmbedder{vecs: map[string][]float32{
		"relevant one": {1, 0},
		"relevant two": {0.9, 0.1},
		"unrelated":    {0, 1},
		"query":        {1, 0},
	}}
	chunks := []Chunk{
		{Text: "relevant one", Page: 1},
		{Text: "relevant two", Page: 2},
		{Text: "unrelated", Page: 3},
	}
	ix, err := Build(context.Background(), chunks, embedder, 2, SearchOptions{ScoreThreshold: 0.5, FetchK: 10})
	require.NoError(t, err)

	got, err := ix.Search(context.Background(), "query", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, p := range got {
		assert.NotEqual(t, 3, p.Page)
	}
}

func TestSearchEmptyWhenNothingClearsThreshold(t *testing.T) {
	embedder := stubEmbedder{vecs: map[string][]float32{
		"unrelated": {0, 1},
		"query":     {1, 0},
	}}
	ix, err := Build(context.Background(), []Chunk{{Text: "unrelated", Page: 1}}, embedder, 2, SearchOptions{ScoreThreshold: 0.5})
	require.NoError(t, err)

	got, err := ix.Search(context.Background(), "query", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBuildRejectsEmptyChunks(t *testing.T) {
	_, err := Build(context.Background(), nil, providers.NewMockProvider(8), 8, SearchOptions{})
	assert.Error(t, err)
}
