package rag

import (
	"context"
	"errors"
	"testing"
	"time"

	"docmind/internal/extract"
	"docmind/internal/index"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRetriever struct {
	passages []index.Passage
}

func (f fixedRetriever) Search(ctx context.Context, query string, k int) ([]index.Passage, error) {
	_ = ctx
	_ = query
	if len(f.passages) > k {
		return f.passages[:k], nil
	}
	return f.passages, nil
}

type recordedEntry struct {
	username, document, question, answer string
}

type memoryHistory struct {
	entries []recordedEntry
}

func (m *memoryHistory) Append(ctx context.Context, username, document, question, answer string) error {
	_ = ctx
	m.entries = append(m.entries, recordedEntry{username, document, question, answer})
	return nil
}

func newTestPipeline(llm *scriptedLLM, history *memoryHistory, opts Options) *Pipeline {
	gen := NewGenerator(llm, time.Second, 0, 600)
	return NewPipeline(gen, history, opts)
}

func TestPipelineAnswersFromRetrievedContext(t *testing.T) {
	history := &memoryHistory{}
	p := newTestPipeline(&scriptedLLM{responses: []string{"The loan term is 30 years."}}, history, Options{})
	retriever := fixedRetriever{passages: []index.Passage{
		{Text: "The loan term is 30 years.", Page: 3, Score: 0.9},
		{Text: "Payments are monthly.", Page: 1, Score: 0.8},
	}}

	res, err := p.Answer(context.Background(), "bob", "bob/contract.pdf", "What is the loan term?", retriever, nil)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "The loan term is 30 years.", res.Answer)
	assert.Equal(t, []int{1, 3}, res.Pages)
	assert.Equal(t, IntentFactual, res.Intent)

	require.Len(t, history.entries, 1)
	assert.Equal(t, recordedEntry{"bob", "bob/contract.pdf", "What is the loan term?", "The loan term is 30 years."}, history.entries[0])
}

func TestPipelineDefinitionFallbackSearchesFullDocument(t *testing.T) {
	history := &memoryHistory{}
	p := newTestPipeline(&scriptedLLM{responses: []string{Sentinel}}, history, Options{})

	// The defining line lives on page 4 of the full document but is not
	// among the retrieved passages.
	retriever := fixedRetriever{passages: []index.Passage{
		{Text: "The borrower pledges assets.", Page: 1, Score: 0.6},
	}}
	pages := []extract.Page{
		{Number: 1, Text: "The borrower pledges assets."},
		{Number: 4, Text: "Collateral means any asset pledged to secure the obligations."},
	}

	res, err := p.Answer(context.Background(), "bob", "bob/contract.pdf", "What is defined as collateral?", retriever, pages)
	require.NoError(t, err)
	assert.Equal(t, IntentDefinition, res.Intent)
	assert.True(t, res.Found)
	assert.Equal(t, "Collateral means any asset pledged to secure the obligations.", res.Answer)
	assert.Equal(t, []int{4}, res.Pages)
}

func TestPipelineClassificationFallback(t *testing.T) {
	history := &memoryHistory{}
	opts := Options{
		ClassMarker: "open-end mortgage",
		ClassAnswer: "This document is classified as an Open-End Mortgage under applicable law.",
	}
	p := newTestPipeline(&scriptedLLM{responses: []string{Sentinel}}, history, opts)
	retriever := fixedRetriever{passages: []index.Passage{
		{Text: "General recitals.", Page: 1, Score: 0.7},
		{Text: "This Open-End Mortgage secures future advances.", Page: 2, Score: 0.6},
	}}

	res, err := p.Answer(context.Background(), "bob", "bob/contract.pdf", "What type of mortgage is this?", retriever, nil)
	require.NoError(t, err)
	assert.Equal(t, IntentClassification, res.Intent)
	assert.True(t, res.Found)
	assert.Equal(t, opts.ClassAnswer, res.Answer)
	assert.Equal(t, []int{2}, res.Pages, "citation must come from the marker passage")
}

func TestPipelineFallbackExclusivity(t *testing.T) {
	// A non-sentinel answer never triggers fallbacks, even when the
	// intent matches and a fallback source exists.
	history := &memoryHistory{}
	opts := Options{ClassMarker: "open-end mortgage", ClassAnswer: "canned"}
	p := newTestPipeline(&scriptedLLM{responses: []string{"It is a fixed-rate mortgage."}}, history, opts)
	retriever := fixedRetriever{passages: []index.Passage{
		{Text: "This Open-End Mortgage secures future advances.", Page: 2, Score: 0.6},
	}}

	res, err := p.Answer(context.Background(), "bob", "bob/contract.pdf", "What type of mortgage is this?", retriever, nil)
	require.NoError(t, err)
	assert.Equal(t, "It is a fixed-rate mortgage.", res.Answer)
}

func TestPipelineWrongIntentSkipsFallback(t *testing.T) {
	history := &memoryHistory{}
	opts := Options{ClassMarker: "open-end mortgage", ClassAnswer: "canned"}
	p := newTestPipeline(&scriptedLLM{responses: []string{Sentinel}}, history, opts)
	retriever := fixedRetriever{passages: []index.Passage{
		{Text: "This Open-End Mortgage secures future advances.", Page: 2, Score: 0.6},
	}}

	// Factual intent: neither fallback may run even though the marker
	// is present in context.
	res, err := p.Answer(context.Background(), "bob", "bob/contract.pdf", "When is the first payment due?", retriever, nil)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, Sentinel, res.Answer)
	assert.Empty(t, res.Pages, "no citations for a not-found answer")
}

func TestPipelineProviderFailureNeverFallsBack(t *testing.T) {
	history := &memoryHistory{}
	p := newTestPipeline(&scriptedLLM{errs: []error{errors.New("bad request")}}, history, Options{})
	retriever := fixedRetriever{passages: []index.Passage{
		{Text: "Collateral means assets.", Page: 1, Score: 0.9},
	}}

	_, err := p.Answer(context.Background(), "bob", "bob/contract.pdf", "What is defined as collateral?", retriever,
		[]extract.Page{{Number: 1, Text: "Collateral means assets."}})
	require.Error(t, err)
	assert.Empty(t, history.entries, "failed generations are not recorded")
}

func TestPipelineEmptyRetrievalStillGenerates(t *testing.T) {
	history := &memoryHistory{}
	llm := &scriptedLLM{responses: []string{Sentinel}}
	p := newTestPipeline(llm, history, Options{})

	res, err := p.Answer(context.Background(), "bob", "bob/contract.pdf", "Anything?", fixedRetriever{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, llm.calls, "empty context still reaches the provider")
	assert.False(t, res.Found)
	require.Len(t, history.entries, 1, "not-found answers are still recorded")
}

func TestCollectPages(t *testing.T) {
	pages := CollectPages([]index.Passage{
		{Text: "a", Page: 3},
		{Text: "b", Page: 1},
		{Text: "c", Page: 3},
		{Text: "d", Page: 0},
	})
	assert.Equal(t, []int{1, 3}, pages)
}
