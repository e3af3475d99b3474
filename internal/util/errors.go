package util

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized access")
	ErrNotFound     = errors.New("document not found")

	ErrNoExtractableText = errors.New("no extractable text found in PDF")

	ErrGenerationTimeout   = errors.New("answer generation timed out")
	ErrGenerationExhausted = errors.New("answer generation failed after retries")

	ErrIndexCorrupt = errors.New("persisted index is corrupt")
)
