package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abkommen-gpt/backend/internal/ingest"
)

func TestSegment_ClassifiesByFontSize(t *testing.T) {
	doc := ingest.PageDocument{
		ID: "doc",
		Pages: []ingest.Page{
			{Runs: []ingest.Run{
				{Text: "Rahmenabkommen", FontSize: 18},
				{Text: "Artikel 1", FontSize: 13},
				{Text: "Die Vertragsparteien vereinbaren.", FontSize: 10},
			}},
		},
	}

	blocks := ingest.Segment(doc, ingest.DefaultSegmentConfig())

	require.Len(t, blocks, 4)

	// Synthetic page H2 comes first.
	assert.Equal(t, ingest.BlockH2, blocks[0].Kind)
	assert.Equal(t, "", blocks[0].Text)
	assert.Equal(t, "s1", blocks[0].Anchor)

	assert.Equal(t, ingest.BlockH1, blocks[1].Kind)
	assert.Equal(t, "h1", blocks[1].Anchor)

	assert.Equal(t, ingest.BlockH2, blocks[2].Kind)
	assert.Equal(t, "s2", blocks[2].Anchor)

	assert.Equal(t, ingest.BlockP, blocks[3].Kind)
	assert.Equal(t, "p1", blocks[3].Anchor)
}

func TestSegment_ThresholdBoundaries(t *testing.T) {
	cfg := ingest.SegmentConfig{H1MinSize: 16, H2MinSize: 12}
	doc := ingest.PageDocument{
		Pages: []ingest.Page{
			{Runs: []ingest.Run{
				{Text: "exactly h1", FontSize: 16},
				{Text: "exactly h2", FontSize: 12},
				{Text: "just under", FontSize: 11.9},
			}},
		},
	}

	blocks := ingest.Segment(doc, cfg)

	require.Len(t, blocks, 4)
	assert.Equal(t, ingest.BlockH1, blocks[1].Kind)
	assert.Equal(t, ingest.BlockH2, blocks[2].Kind)
	assert.Equal(t, ingest.BlockP, blocks[3].Kind)
}

func TestSegment_SkipsWhitespaceOnlyRuns(t *testing.T) {
	doc := ingest.PageDocument{
		Pages: []ingest.Page{
			{Runs: []ingest.Run{
				{Text: "   \n\t ", FontSize: 10},
				{Text: "  Inhalt  ", FontSize: 10},
			}},
		},
	}

	blocks := ingest.Segment(doc, ingest.DefaultSegmentConfig())

	require.Len(t, blocks, 2)
	assert.Equal(t, "Inhalt", blocks[1].Text)
}

func TestSegment_CountersSpanPages(t *testing.T) {
	doc := ingest.PageDocument{
		Pages: []ingest.Page{
			{Runs: []ingest.Run{{Text: "erste Seite", FontSize: 10}}},
			{Runs: []ingest.Run{{Text: "zweite Seite", FontSize: 10}}},
			{},
		},
	}

	blocks := ingest.Segment(doc, ingest.DefaultSegmentConfig())

	require.Len(t, blocks, 5)
	// Counters run document-wide, not per page.
	assert.Equal(t, "s1", blocks[0].Anchor)
	assert.Equal(t, "p1", blocks[1].Anchor)
	assert.Equal(t, "s2", blocks[2].Anchor)
	assert.Equal(t, "p2", blocks[3].Anchor)
	assert.Equal(t, "s3", blocks[4].Anchor)

	seen := map[string]bool{}
	for _, b := range blocks {
		assert.False(t, seen[b.Anchor], "anchor %s reused", b.Anchor)
		seen[b.Anchor] = true
	}
}

func TestSegment_Deterministic(t *testing.T) {
	doc := ingest.PageDocument{
		Pages: []ingest.Page{
			{Runs: []ingest.Run{
				{Text: "Titel", FontSize: 18},
				{Text: "Absatz", FontSize: 10},
			}},
		},
	}

	first := ingest.Segment(doc, ingest.DefaultSegmentConfig())
	second := ingest.Segment(doc, ingest.DefaultSegmentConfig())

	assert.Equal(t, first, second)
}
