package ingest

import (
	"fmt"
	"html"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	forbiddenChars = regexp.MustCompile(`[\\/:"*?<>|]+`)
	spaceRuns      = regexp.MustCompile(`\s+`)
)

// HTMLPath derives the public contract page filename from a source
// filename: forbidden characters, dots and commas removed, whitespace
// collapsed to underscores.
func HTMLPath(filename string) string {
	return DocumentID(filename) + ".html"
}

// DocumentID is the sanitized base name of the source file; it identifies
// the document across re-ingestions.
func DocumentID(filename string) string {
	name := filepath.Base(filename)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = forbiddenChars.ReplaceAllString(base, "")
	base = strings.NewReplacer(".", "", ",", "").Replace(base)
	base = spaceRuns.ReplaceAllString(base, "_")
	return strings.Trim(base, "_")
}

// DocumentTitle keeps the readable base name for the page title.
func DocumentTitle(filename string) string {
	name := filepath.Base(filename)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = forbiddenChars.ReplaceAllString(base, "")
	return strings.Trim(base, "_")
}

// RenderHTML writes the anchor-tagged contract page for a segmented
// document. Only the anchor structure matters here: every block becomes an
// element whose id is the citation target of chunks bound to it.
func RenderHTML(title string, blocks []Block) string {
	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>")
	sb.WriteString(html.EscapeString(title))
	sb.WriteString("</title></head><body><div class=\"text-container\">\n")

	for _, block := range blocks {
		tag := block.Kind.String()
		fmt.Fprintf(&sb, "<%s id=\"%s\">%s</%s>\n", tag, block.Anchor, html.EscapeString(block.Text), tag)
	}

	sb.WriteString("</div></body></html>\n")
	return sb.String()
}

// ParseHTML reads a previously rendered contract page back into its block
// sequence, preserving the original anchors. It is the inverse of
// RenderHTML and backs re-indexing straight from the published corpus.
func ParseHTML(r io.Reader) (string, []Block, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse contract page: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	var blocks []Block
	doc.Find("h1[id], h2[id], p[id]").Each(func(_ int, s *goquery.Selection) {
		anchor, _ := s.Attr("id")

		var kind BlockKind
		switch goquery.NodeName(s) {
		case "h1":
			kind = BlockH1
		case "h2":
			kind = BlockH2
		default:
			kind = BlockP
		}

		blocks = append(blocks, Block{
			Kind:   kind,
			Text:   s.Text(),
			Anchor: anchor,
		})
	})

	return title, blocks, nil
}
