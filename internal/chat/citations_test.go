package chat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abkommen-gpt/backend/internal/chat"
	"github.com/abkommen-gpt/backend/internal/vector/milvus"
)

func TestRenumberCitations_FirstAppearanceOrder(t *testing.T) {
	chunks := []milvus.SearchResult{
		{Source: "https://example.org/x"},
		{Source: "https://example.org/y"},
	}

	answer, sources := chat.RenumberCitations("A [2] B [2] C [1]", chunks)

	assert.Equal(t, "A [1] B [1] C [2]", answer)
	require.Len(t, sources, 2)
	assert.Equal(t, chat.Source{ID: 1, URL: "https://example.org/y"}, sources[0])
	assert.Equal(t, chat.Source{ID: 2, URL: "https://example.org/x"}, sources[1])
}

func TestRenumberCitations_NoMarkers(t *testing.T) {
	chunks := []milvus.SearchResult{{Source: "https://example.org/x"}}

	answer, sources := chat.RenumberCitations("Keine Angabe dazu in den Verträgen.", chunks)

	assert.Equal(t, "Keine Angabe dazu in den Verträgen.", answer)
	assert.Empty(t, sources)
}

func TestRenumberCitations_OutOfRangeMarker(t *testing.T) {
	chunks := []milvus.SearchResult{
		{Source: "https://example.org/x"},
		{Source: "https://example.org/y"},
	}

	answer, sources := chat.RenumberCitations("Siehe [5].", chunks)

	assert.Equal(t, "Siehe [1].", answer)
	require.Len(t, sources, 1)
	assert.Equal(t, chat.SourceNotFound, sources[0].URL)
}

func TestRenumberCitations_RepeatedMarkersKeepNumber(t *testing.T) {
	chunks := []milvus.SearchResult{
		{Source: "https://example.org/a"},
		{Source: "https://example.org/b"},
		{Source: "https://example.org/c"},
	}

	answer, sources := chat.RenumberCitations("[3] und [1] und [3] und [2]", chunks)

	assert.Equal(t, "[1] und [2] und [1] und [3]", answer)
	require.Len(t, sources, 3)
	assert.Equal(t, "https://example.org/c", sources[0].URL)
	assert.Equal(t, "https://example.org/a", sources[1].URL)
	assert.Equal(t, "https://example.org/b", sources[2].URL)
}

func TestRenumberCitations_NonNumericBracketsUntouched(t *testing.T) {
	answer, sources := chat.RenumberCitations("Artikel [Anhang A] bleibt [1].", []milvus.SearchResult{
		{Source: "https://example.org/a"},
	})

	assert.Equal(t, "Artikel [Anhang A] bleibt [1].", answer)
	require.Len(t, sources, 1)
}
