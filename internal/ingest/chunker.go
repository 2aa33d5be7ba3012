package ingest

// Chunk is one retrieval unit cut from a document's full text. Text is
// always the exact substring fullText[Start : Start+len(Text)].
type Chunk struct {
	Text  string
	Start int
}

type segment struct {
	start int
	end   int
}

// ChunkText splits fullText into overlapping windows of at most size
// characters, cutting on the separator. Offsets are tracked while the
// windows are built, so no position has to be recovered by searching the
// text afterwards. A single segment longer than size becomes a chunk of its
// own. Consecutive windows share up to overlap trailing characters, always
// starting on a segment boundary so every chunk start falls inside a block
// span.
func ChunkText(fullText string, size, overlap int) []Chunk {
	segs := splitSegments(fullText)
	if len(segs) == 0 {
		return nil
	}

	var chunks []Chunk
	i := 0
	for {
		j := i
		for j+1 < len(segs) && segs[j+1].end-segs[i].start <= size {
			j++
		}

		chunks = append(chunks, Chunk{
			Text:  fullText[segs[i].start:segs[j].end],
			Start: segs[i].start,
		})

		if j == len(segs)-1 {
			break
		}

		// Walk back from the next segment while the tail still fits the
		// overlap budget, but always advance past the current start.
		k := j + 1
		for k > i+1 && segs[j].end-segs[k-1].start <= overlap {
			k--
		}
		i = k
	}

	return chunks
}

// splitSegments returns the offsets of every non-empty run between
// separators. Empty runs are dropped so chunk starts never land on a
// zero-length block or a separator position.
func splitSegments(fullText string) []segment {
	var segs []segment

	start := 0
	for i := 0; i <= len(fullText); i++ {
		if i == len(fullText) || fullText[i] == Separator[0] {
			if i > start {
				segs = append(segs, segment{start: start, end: i})
			}
			start = i + 1
		}
	}

	return segs
}
