package rag

import (
	"regexp"
	"strings"

	"docmind/internal/extract"
)

// DefaultDefinitionVerbs are the phrases that introduce a contractual
// definition ("Collateral means ...", "Collateral shall mean ...").
var DefaultDefinitionVerbs = []string{"means", "shall mean", "is defined as"}

// Definition is one extracted defining line and its source page.
type Definition struct {
	Text string
	Page int
}

// FindDefinition scans the full document line by line for
// "<term> <verb> <rest>" with a whole-word match on the term,
// case-insensitive. Definitions are often phrased far from where the
// term is used, which is why this looks beyond the retrieval window.
func FindDefinition(pages []extract.Page, term string, verbs []string) (Definition, bool) {
	term = strings.TrimSpace(term)
	if term == "" {
		return Definition{}, false
	}
	if len(verbs) == 0 {
		verbs = DefaultDefinitionVerbs
	}
	quoted := make([]string, len(verbs))
	for i, v := range verbs {
		quoted[i] = regexp.QuoteMeta(v)
	}
	pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b\s+(` + strings.Join(quoted, "|") + `)\s+(.+)`)
	if err != nil {
		return Definition{}, false
	}
	for _, page := range pages {
		for _, line := range strings.Split(page.Text, "\n") {
			if pattern.MatchString(line) {
				return Definition{Text: strings.TrimSpace(line), Page: page.Number}, true
			}
		}
	}
	return Definition{}, false
}

// DefinitionTerm pulls the queried term out of the question: its final
// word, stripped of any trailing question mark.
func DefinitionTerm(question string) string {
	fields := strings.Fields(question)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimRight(fields[len(fields)-1], "?")
}
