package chat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abkommen-gpt/backend/internal/chat"
	"github.com/abkommen-gpt/backend/internal/vector/milvus"
)

func TestWithSourceFallback_PatchesEmptySources(t *testing.T) {
	inner := chat.RetrieverFunc(func(ctx context.Context, embedding []float32, topK int) ([]milvus.SearchResult, error) {
		return []milvus.SearchResult{
			{ChunkID: "a", Source: "https://example.org/a"},
			{ChunkID: "b", Source: ""},
		}, nil
	})

	results, err := chat.WithSourceFallback(inner).Retrieve(context.Background(), []float32{0.1}, 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "https://example.org/a", results[0].Source)
	assert.Equal(t, chat.NoSourceAvailable, results[1].Source)
}

func TestWithSourceFallback_PropagatesError(t *testing.T) {
	wantErr := errors.New("search failed")
	inner := chat.RetrieverFunc(func(ctx context.Context, embedding []float32, topK int) ([]milvus.SearchResult, error) {
		return nil, wantErr
	})

	_, err := chat.WithSourceFallback(inner).Retrieve(context.Background(), nil, 10)
	assert.ErrorIs(t, err, wantErr)
}
