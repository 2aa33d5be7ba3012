package chat

import (
	"context"

	"github.com/abkommen-gpt/backend/internal/vector/milvus"
)

// NoSourceAvailable replaces an empty locator so the prompt and the
// citation list never show a blank source.
const NoSourceAvailable = "Keine Quelle verfügbar"

// Retriever returns the top-k chunks for a query embedding.
type Retriever interface {
	Retrieve(ctx context.Context, embedding []float32, topK int) ([]milvus.SearchResult, error)
}

// RetrieverFunc adapts a function to the Retriever interface.
type RetrieverFunc func(ctx context.Context, embedding []float32, topK int) ([]milvus.SearchResult, error)

func (f RetrieverFunc) Retrieve(ctx context.Context, embedding []float32, topK int) ([]milvus.SearchResult, error) {
	return f(ctx, embedding, topK)
}

// WithSourceFallback decorates a retriever so chunks with missing locators
// come back carrying the explicit placeholder instead of an empty string.
func WithSourceFallback(next Retriever) Retriever {
	return RetrieverFunc(func(ctx context.Context, embedding []float32, topK int) ([]milvus.SearchResult, error) {
		results, err := next.Retrieve(ctx, embedding, topK)
		if err != nil {
			return nil, err
		}

		for i := range results {
			if results[i].Source == "" {
				results[i].Source = NoSourceAvailable
			}
		}
		return results, nil
	})
}
