package ingest

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// LoadPDF extracts a page-oriented document from a PDF file. The reader
// yields positioned text fragments; consecutive fragments sharing a line
// and font size are merged into one run so the segmenter sees whole
// headings and sentences rather than glyph clusters.
func LoadPDF(path string) (PageDocument, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return PageDocument{}, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	doc := PageDocument{
		ID:    DocumentID(path),
		Title: DocumentTitle(path),
	}

	for pageNo := 1; pageNo <= r.NumPage(); pageNo++ {
		page := r.Page(pageNo)
		if page.V.IsNull() {
			doc.Pages = append(doc.Pages, Page{})
			continue
		}

		doc.Pages = append(doc.Pages, Page{Runs: mergeFragments(page.Content().Text)})
	}

	return doc, nil
}

func mergeFragments(texts []pdf.Text) []Run {
	var runs []Run

	var sb strings.Builder
	var curSize, curY float64

	flush := func() {
		if sb.Len() == 0 {
			return
		}
		runs = append(runs, Run{Text: sb.String(), FontSize: curSize})
		sb.Reset()
	}

	for _, t := range texts {
		if sb.Len() > 0 && (t.FontSize != curSize || t.Y != curY) {
			flush()
		}
		if sb.Len() == 0 {
			curSize = t.FontSize
			curY = t.Y
		}
		sb.WriteString(t.S)
	}
	flush()

	return runs
}
