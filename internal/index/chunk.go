package index

import (
	"docmind/internal/extract"
	"docmind/internal/util"
)

// Chunk is one retrievable window of document text. Page is the 1-based
// page the window was cut from; it backs citations.
type Chunk struct {
	Text string `json:"text"`
	Page int    `json:"page"`
}

// ChunkPages windows each page separately so every chunk keeps an
// unambiguous page attribution.
func ChunkPages(pages []extract.Page, size, overlap int) []Chunk {
	out := make([]Chunk, 0, len(pages))
	for _, p := range pages {
		for _, part := range util.ChunkText(p.Text, size, overlap) {
			out = append(out, Chunk{Text: part, Page: p.Number})
		}
	}
	return out
}
