package ingest

import (
	"fmt"
	"strings"
)

// BlockKind classifies a structural unit of a treaty document.
type BlockKind int

const (
	BlockH1 BlockKind = iota
	BlockH2
	BlockP
)

func (k BlockKind) String() string {
	switch k {
	case BlockH1:
		return "h1"
	case BlockH2:
		return "h2"
	default:
		return "p"
	}
}

// anchorPrefix returns the per-kind anchor id prefix. Each kind counts
// independently across the whole document, so each needs its own prefix to
// keep anchors unique.
func (k BlockKind) anchorPrefix() string {
	switch k {
	case BlockH1:
		return "h"
	case BlockH2:
		return "s"
	default:
		return "p"
	}
}

// Block is one anchor-addressable unit of a document. Anchors are stable
// for a given document version and never reused within it.
type Block struct {
	Kind   BlockKind
	Text   string
	Anchor string
}

// Run is one extracted text fragment with its rendered font size.
type Run struct {
	Text     string
	FontSize float64
}

type Page struct {
	Runs []Run
}

// PageDocument is the raw, page-oriented input to the segmenter.
type PageDocument struct {
	ID    string
	Title string
	Pages []Page
}

// SegmentConfig carries the font-size bands separating headings from body
// text. The thresholds are a heuristic stand-in for semantic structure; they
// only need to be consistent, not typographically exact.
type SegmentConfig struct {
	H1MinSize float64
	H2MinSize float64
}

func DefaultSegmentConfig() SegmentConfig {
	return SegmentConfig{H1MinSize: 16, H2MinSize: 12}
}

// Segment converts a page-oriented document into an ordered block sequence.
// Every page contributes one synthetic H2 block up front so each page has at
// least one addressable anchor; the remaining runs are classified by font
// size. Whitespace-only runs are skipped entirely. Output depends only on
// document order, so repeated runs over identical input are byte-identical.
func Segment(doc PageDocument, cfg SegmentConfig) []Block {
	counters := map[BlockKind]int{}

	nextAnchor := func(kind BlockKind) string {
		counters[kind]++
		return fmt.Sprintf("%s%d", kind.anchorPrefix(), counters[kind])
	}

	var blocks []Block
	for _, page := range doc.Pages {
		blocks = append(blocks, Block{
			Kind:   BlockH2,
			Text:   "",
			Anchor: nextAnchor(BlockH2),
		})

		for _, run := range page.Runs {
			text := strings.TrimSpace(run.Text)
			if text == "" {
				continue
			}

			var kind BlockKind
			switch {
			case run.FontSize >= cfg.H1MinSize:
				kind = BlockH1
			case run.FontSize >= cfg.H2MinSize:
				kind = BlockH2
			default:
				kind = BlockP
			}

			blocks = append(blocks, Block{
				Kind:   kind,
				Text:   text,
				Anchor: nextAnchor(kind),
			})
		}
	}

	return blocks
}
