package ingest

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/abkommen-gpt/backend/pkg/logger"
)

// BoundChunk is a chunk resolved to its source locator: the deep link into
// the rendered contract page that contains the chunk's start offset.
type BoundChunk struct {
	Chunk
	Anchor  string
	Locator string
}

// Locator builds the public deep link for an anchor of a contract page.
func Locator(baseURL, htmlPath, anchor string) string {
	return fmt.Sprintf("%s/contracts/%s#%s", baseURL, htmlPath, anchor)
}

// BindChunks resolves every chunk's start offset through the span list.
// A chunk that no span contains cannot be cited and must never reach the
// index: it is dropped with a data-integrity warning, and ingestion
// continues. The number of dropped chunks is returned.
func BindChunks(docID string, chunks []Chunk, spans []TextSpan, baseURL, htmlPath string) ([]BoundChunk, int) {
	bound := make([]BoundChunk, 0, len(chunks))
	dropped := 0

	for _, chunk := range chunks {
		anchor, ok := anchorAt(spans, chunk.Start)
		if !ok {
			dropped++
			logger.Warn("Chunk start resolves to no block span, dropping from index",
				zap.String("doc_id", docID),
				zap.Int("start", chunk.Start),
			)
			continue
		}

		bound = append(bound, BoundChunk{
			Chunk:   chunk,
			Anchor:  anchor,
			Locator: Locator(baseURL, htmlPath, anchor),
		})
	}

	return bound, dropped
}
