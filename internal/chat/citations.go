package chat

import (
	"regexp"
	"strconv"

	"github.com/abkommen-gpt/backend/internal/vector/milvus"
)

// SourceNotFound is shown when the model cites an index that no retrieved
// chunk corresponds to.
const SourceNotFound = "Quelle nicht gefunden"

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// Source is one renumbered citation: ID is the dense display number, URL
// the locator of the cited chunk.
type Source struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

// RenumberCitations rewrites the raw [n] markers of a generated answer into
// a dense 1..k numbering by order of first appearance and returns the
// matching source list. Repeated markers keep their assigned number; a
// marker pointing outside the retrieved set keeps its slot but maps to
// SourceNotFound.
func RenumberCitations(answer string, chunks []milvus.SearchResult) (string, []Source) {
	assigned := make(map[int]int)
	var sources []Source

	rewritten := citationPattern.ReplaceAllStringFunc(answer, func(marker string) string {
		raw, err := strconv.Atoi(marker[1 : len(marker)-1])
		if err != nil {
			return marker
		}

		display, ok := assigned[raw]
		if !ok {
			display = len(assigned) + 1
			assigned[raw] = display

			url := SourceNotFound
			if raw >= 1 && raw <= len(chunks) {
				url = chunks[raw-1].Source
			}
			sources = append(sources, Source{ID: display, URL: url})
		}

		return "[" + strconv.Itoa(display) + "]"
	})

	return rewritten, sources
}
