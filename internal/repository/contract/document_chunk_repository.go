package contract

import (
	"context"

	"nexus-ai-be/internal/entity"
)

// ScoredDocumentChunk wraps a DocumentChunk with its similarity score
type ScoredDocumentChunk struct {
	Chunk      *entity.DocumentChunk
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

type DocumentChunkRepository interface {
	Count(ctx context.Context) (int64, error)
	// SearchSimilarWithScore returns the nearest chunks by cosine similarity, filtered by threshold
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*ScoredDocumentChunk, error)
}
