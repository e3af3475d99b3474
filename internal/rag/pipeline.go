package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"docmind/internal/extract"
	"docmind/internal/index"
)

// HistoryAppender records one answered question. Satisfied by
// storage.HistoryRepo.
type HistoryAppender interface {
	Append(ctx context.Context, username, document, question, answer string) error
}

// Options carry the tunables the pipeline needs beyond its
// collaborators.
type Options struct {
	RetrieveK       int
	ClassMarker     string
	ClassAnswer     string
	DefinitionVerbs []string
}

func (o Options) withDefaults() Options {
	if o.RetrieveK <= 0 {
		o.RetrieveK = 6
	}
	if len(o.DefinitionVerbs) == 0 {
		o.DefinitionVerbs = DefaultDefinitionVerbs
	}
	return o
}

// Result is the user-facing outcome of one question.
type Result struct {
	Answer string `json:"answer"`
	Pages  []int  `json:"pages"`
	Intent Intent `json:"intent"`
	Found  bool   `json:"found"`
}

// Pipeline runs the staged answer flow: retrieve, generate, apply the
// intent-matched deterministic fallback when generation found nothing,
// extract citations, record history.
type Pipeline struct {
	gen     *Generator
	history HistoryAppender
	opts    Options
}

func NewPipeline(gen *Generator, history HistoryAppender, opts Options) *Pipeline {
	return &Pipeline{gen: gen, history: history, opts: opts.withDefaults()}
}

// Answer resolves one question against one document. The retriever
// comes from the index cache; pages is the full extracted document,
// which the definition fallback searches beyond the retrieval window.
func (p *Pipeline) Answer(ctx context.Context, username, document, question string, retriever index.Retriever, pages []extract.Page) (Result, error) {
	intent := ClassifyIntent(question)

	passages, err := retriever.Search(ctx, question, p.opts.RetrieveK)
	if err != nil {
		return Result{}, fmt.Errorf("retrieve passages: %w", err)
	}

	// An empty retrieval set still generates: the provider answers the
	// sentinel from empty context rather than this stage guessing.
	gen, err := p.gen.Generate(ctx, question, passages)
	if err != nil {
		return Result{}, err
	}

	answer := gen.Text
	found := gen.Found
	citeFrom := passages

	// Both fallbacks are deterministic substitutions keyed on the
	// sentinel, never error recovery.
	if !found && intent == IntentClassification && p.opts.ClassMarker != "" {
		if passage, ok := findMarker(passages, p.opts.ClassMarker); ok {
			answer = p.opts.ClassAnswer
			found = true
			citeFrom = []index.Passage{passage}
		}
	}
	if !found && intent == IntentDefinition {
		term := DefinitionTerm(question)
		if def, ok := FindDefinition(pages, term, p.opts.DefinitionVerbs); ok {
			answer = def.Text
			found = true
			citeFrom = []index.Passage{{Text: def.Text, Page: def.Page}}
		}
	}

	// Never show citations for a not-found answer.
	var citations []int
	if found {
		citations = CollectPages(citeFrom)
	}

	if err := p.history.Append(ctx, username, document, question, answer); err != nil {
		return Result{}, fmt.Errorf("record history: %w", err)
	}
	return Result{Answer: answer, Pages: citations, Intent: intent, Found: found}, nil
}

func findMarker(passages []index.Passage, marker string) (index.Passage, bool) {
	marker = strings.ToLower(marker)
	for _, p := range passages {
		if strings.Contains(strings.ToLower(p.Text), marker) {
			return p, true
		}
	}
	return index.Passage{}, false
}

// CollectPages gathers the distinct page numbers backing an answer,
// ascending, skipping chunks without page metadata.
func CollectPages(passages []index.Passage) []int {
	seen := make(map[int]struct{}, len(passages))
	out := make([]int, 0, len(passages))
	for _, p := range passages {
		if p.Page <= 0 {
			continue
		}
		if _, ok := seen[p.Page]; ok {
			continue
		}
		seen[p.Page] = struct{}{}
		out = append(out, p.Page)
	}
	sort.Ints(out)
	return out
}
