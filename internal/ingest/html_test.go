package ingest_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abkommen-gpt/backend/internal/ingest"
)

func TestDocumentID_SanitizesFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Abkommen Strom.pdf", "Abkommen_Strom"},
		{"Protokoll: Teil I?.pdf", "Protokoll_Teil_I"},
		{"EU, Schweiz  2024.pdf", "EU_Schweiz_2024"},
		{"_fragment_.pdf", "fragment"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ingest.DocumentID(tt.in), "input %q", tt.in)
	}
}

func TestHTMLPath(t *testing.T) {
	assert.Equal(t, "Abkommen_Strom.html", ingest.HTMLPath("Abkommen Strom.pdf"))
}

func TestRenderParseRoundTrip(t *testing.T) {
	blocks := []ingest.Block{
		{Kind: ingest.BlockH2, Text: "", Anchor: "s1"},
		{Kind: ingest.BlockH1, Text: "Rahmenabkommen", Anchor: "h1"},
		{Kind: ingest.BlockP, Text: "Artikel 1 < 2 & mehr", Anchor: "p1"},
	}

	page := ingest.RenderHTML("Abkommen Strom", blocks)

	title, parsed, err := ingest.ParseHTML(strings.NewReader(page))
	require.NoError(t, err)

	assert.Equal(t, "Abkommen Strom", title)
	assert.Equal(t, blocks, parsed)
}

func TestRenderHTML_AnchorsAreElementIDs(t *testing.T) {
	blocks := []ingest.Block{
		{Kind: ingest.BlockP, Text: "Inhalt", Anchor: "p7"},
	}

	page := ingest.RenderHTML("t", blocks)

	assert.Contains(t, page, `<p id="p7">Inhalt</p>`)
}

func TestParseHTML_IgnoresUnanchoredElements(t *testing.T) {
	page := `<html><head><title>t</title></head><body>
		<p>kein Anker</p>
		<p id="p1">mit Anker</p>
	</body></html>`

	_, blocks, err := ingest.ParseHTML(strings.NewReader(page))
	require.NoError(t, err)

	require.Len(t, blocks, 1)
	assert.Equal(t, "p1", blocks[0].Anchor)
}
