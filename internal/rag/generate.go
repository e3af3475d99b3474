package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docmind/internal/index"
	"docmind/internal/providers"
	"docmind/internal/util"
)

// Sentinel is the exact string the provider is instructed to return
// when the context cannot answer the question, rendered verbatim to
// users. Control flow never compares against this literal directly;
// see IsNotFound.
const Sentinel = providers.NotFoundSentinel

const answerPrompt = `Answer the user's question using ONLY the provided context.
Cite facts implicitly from the context.
If multiple sections apply, combine them coherently.
Prefer concise, structured answers.

Rules:
- For summaries or explanations, synthesize clearly from the context.
- For definitions, facts, or classifications, answer precisely as stated or clearly implied in the context.
- Do NOT add outside knowledge or assumptions.
- If the information is not present in the context, reply exactly:
  "` + Sentinel + `"

Question:
%s

Answer:`

// Generation is the structured outcome of the provider call. Found is
// derived once at this boundary so the rest of the pipeline branches on
// a flag instead of re-matching a literal string.
type Generation struct {
	Text  string
	Found bool
}

// IsNotFound matches the sentinel while tolerating the apostrophe and
// whitespace drift that breaks exact literal comparison. The source
// text uses a typographic apostrophe; providers occasionally echo it
// back as a plain one.
func IsNotFound(answer string) bool {
	return canonical(answer) == canonical(Sentinel)
}

func canonical(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "’", "'")
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(s)
}

// Generator wraps the LLM provider with the context-only prompt, a
// per-attempt timeout and a bounded retry count. Provider failure is
// surfaced as an error, never folded into the not-found sentinel.
type Generator struct {
	llm       providers.LLMProvider
	timeout   time.Duration
	retries   int
	maxTokens int
}

func NewGenerator(llm providers.LLMProvider, timeout time.Duration, retries, maxTokens int) *Generator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &Generator{llm: llm, timeout: timeout, retries: retries, maxTokens: maxTokens}
}

func (g *Generator) Generate(ctx context.Context, question string, passages []index.Passage) (Generation, error) {
	texts := make([]string, 0, len(passages))
	for _, p := range passages {
		texts = append(texts, p.Text)
	}
	req := providers.GenerateRequest{
		Prompt:    fmt.Sprintf(answerPrompt, question),
		Context:   texts,
		MaxTokens: g.maxTokens,
	}

	var lastErr error
	timedOut := false
	for attempt := 0; attempt <= g.retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		resp, _, err := g.llm.Generate(attemptCtx, req)
		cancel()
		if err == nil {
			text := strings.TrimSpace(resp.Text)
			return Generation{Text: text, Found: !IsNotFound(text)}, nil
		}
		lastErr = err
		if errors.Is(err, context.DeadlineExceeded) {
			timedOut = true
			continue
		}
		switch providers.ClassifyError(err) {
		case providers.ErrorRate, providers.ErrorTransient:
			continue
		default:
			// Permanent failures gain nothing from retrying.
			return Generation{}, fmt.Errorf("%w: %v", util.ErrGenerationExhausted, err)
		}
	}
	if timedOut {
		return Generation{}, fmt.Errorf("%w: %v", util.ErrGenerationTimeout, lastErr)
	}
	return Generation{}, fmt.Errorf("%w: %v", util.ErrGenerationExhausted, lastErr)
}
