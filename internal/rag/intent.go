package rag

import "strings"

// Intent is the coarse category of a question; it selects which
// fallback may run when generation comes back empty-handed.
type Intent string

const (
	IntentDefinition     Intent = "definition"
	IntentClassification Intent = "classification"
	IntentSummary        Intent = "summary"
	IntentFactual        Intent = "factual"
)

var (
	definitionPhrases     = []string{"who is defined", "what is defined", "definition of"}
	classificationPhrases = []string{"what type of", "classified as"}
	summaryPhrases        = []string{
		"what is this document about",
		"summary",
		"summarize",
		"overview",
		"purpose of this document",
		"what does this document describe",
	}
)

// ClassifyIntent tests ordered keyword rules, first match wins. The
// narrow definition and classification buckets deliberately outrank the
// broad summary bucket.
func ClassifyIntent(question string) Intent {
	q := strings.ToLower(question)
	if containsAny(q, definitionPhrases) {
		return IntentDefinition
	}
	if containsAny(q, classificationPhrases) {
		return IntentClassification
	}
	if containsAny(q, summaryPhrases) {
		return IntentSummary
	}
	return IntentFactual
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
