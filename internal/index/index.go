package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"docmind/internal/providers"
)

// Passage is a retrieved chunk with its relevance score.
type Passage struct {
	Text  string  `json:"text"`
	Page  int     `json:"page"`
	Score float64 `json:"score"`
}

// Retriever is the capability the cache and the answer pipeline depend
// on, so alternate index backends can be swapped in without touching
// either.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]Passage, error)
}

// SearchOptions tune diversity-aware retrieval. FetchK candidates are
// scored first, then maximal-marginal-relevance selection with Lambda
// balances relevance against redundancy down to k results.
type SearchOptions struct {
	FetchK         int
	Lambda         float64
	ScoreThreshold float64
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.FetchK <= 0 {
		o.FetchK = 30
	}
	if o.Lambda <= 0 || o.Lambda > 1 {
		o.Lambda = 0.75
	}
	return o
}

// Index holds the embedded representation of one document's chunks.
// Immutable once built; rebuilt only on cache miss.
type Index struct {
	EmbedderName string      `json:"embedder"`
	Dim          int         `json:"dim"`
	Chunks       []Chunk     `json:"chunks"`
	Vectors      [][]float32 `json:"vectors"`

	embedder providers.EmbeddingProvider
	opts     SearchOptions
}

type scored struct {
	idx   int
	score float64
}

// Build embeds every chunk and returns a searchable index.
func Build(ctx context.Context, chunks []Chunk, embedder providers.EmbeddingProvider, dim int, opts SearchOptions) (*Index, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to index")
	}
	inputs := make([]string, len(chunks))
	for i, c := range chunks {
		inputs[i] = c.Text
	}
	vectors, info, err := embedder.Embed(ctx, providers.EmbedRequest{Inputs: inputs, Dimension: dim})
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	for i := range vectors {
		vectors[i] = l2Normalize(vectors[i])
	}
	return &Index{
		EmbedderName: info.Name,
		Dim:          dim,
		Chunks:       chunks,
		Vectors:      vectors,
		embedder:     embedder,
		opts:         opts.withDefaults(),
	}, nil
}

// Search embeds the query, keeps candidates at or above the relevance
// threshold, and selects k diverse passages via MMR.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Passage, error) {
	if k <= 0 {
		k = 6
	}
	vectors, _, err := ix.embedder.Embed(ctx, providers.EmbedRequest{Inputs: []string{query}, Dimension: ix.Dim})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}
	qv := l2Normalize(vectors[0])

	cands := make([]scored, 0, len(ix.Vectors))
	for i, v := range ix.Vectors {
		s := dot(qv, v)
		if s < ix.opts.ScoreThreshold {
			continue
		}
		cands = append(cands, scored{idx: i, score: s})
	}
	sort.Slice(cands, func(a, b int) bool { return cands[a].score > cands[b].score })
	if len(cands) > ix.opts.FetchK {
		cands = cands[:ix.opts.FetchK]
	}
	if len(cands) == 0 {
		return []Passage{}, nil
	}

	out := make([]Passage, 0, k)
	for _, c := range ix.mmrSelect(cands, k) {
		out = append(out, Passage{Text: ix.Chunks[c.idx].Text, Page: ix.Chunks[c.idx].Page, Score: c.score})
	}
	return out, nil
}

// mmrSelect greedily picks the candidate maximizing
// lambda*relevance - (1-lambda)*max-similarity-to-selected.
func (ix *Index) mmrSelect(cands []scored, k int) []scored {
	lambda := ix.opts.Lambda
	picked := make([]scored, 0, k)
	remaining := append([]scored(nil), cands...)
	for len(picked) < k && len(remaining) > 0 {
		bestAt := 0
		bestVal := math.Inf(-1)
		for i, c := range remaining {
			redundancy := 0.0
			for _, p := range picked {
				if sim := dot(ix.Vectors[c.idx], ix.Vectors[p.idx]); sim > redundancy {
					redundancy = sim
				}
			}
			val := lambda*c.score - (1-lambda)*redundancy
			if val > bestVal {
				bestVal = val
				bestAt = i
			}
		}
		picked = append(picked, remaining[bestAt])
		remaining = append(remaining[:bestAt], remaining[bestAt+1:]...)
	}
	return picked
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func l2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
