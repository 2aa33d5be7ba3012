package ingest

import "strings"

// Separator joins block texts in the concatenated full text. The separator
// character itself belongs to no span.
const Separator = "\n"

// TextSpan records which block owns the half-open range [Start, End) of a
// document's full text.
type TextSpan struct {
	Start  int
	End    int
	Anchor string
}

// BuildPositionMap concatenates all block texts, each followed by a single
// separator, and returns the full text together with one span per block.
// Spans are contiguous in start order and cover the full text except for
// the separator after each block; empty blocks yield zero-length spans.
func BuildPositionMap(blocks []Block) (string, []TextSpan) {
	var sb strings.Builder
	spans := make([]TextSpan, 0, len(blocks))

	offset := 0
	for _, block := range blocks {
		start := offset
		end := start + len(block.Text)
		spans = append(spans, TextSpan{Start: start, End: end, Anchor: block.Anchor})

		sb.WriteString(block.Text)
		sb.WriteString(Separator)
		offset = end + len(Separator)
	}

	return sb.String(), spans
}

// anchorAt resolves an offset to the anchor of the first span containing
// it. Separator positions resolve to no span.
func anchorAt(spans []TextSpan, offset int) (string, bool) {
	for _, span := range spans {
		if span.Start <= offset && offset < span.End {
			return span.Anchor, true
		}
	}
	return "", false
}
