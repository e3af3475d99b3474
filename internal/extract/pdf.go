package extract

import (
	"fmt"

	"docmind/internal/util"

	"github.com/ledongthuc/pdf"
)

// Page is one page of extracted text. Numbers are 1-based so they can
// be shown to users as citations directly.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Pages extracts per-page plain text from a PDF. A document with no
// non-empty pages is an ingestion failure and must be rejected before
// any chunking or index work happens.
func Pages(path string) ([]Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			continue
		}
		text = util.SanitizeText(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	if len(pages) == 0 {
		return nil, util.ErrNoExtractableText
	}
	return pages, nil
}
