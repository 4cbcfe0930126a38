package service

import (
	"context"

	"nexus-ai-be/internal/repository/contract"
	"nexus-ai-be/pkg/rag"
)

// documentStore serves retrieval queries from the pgvector chunk table.
type documentStore struct {
	repo      contract.DocumentChunkRepository
	threshold float64
}

var _ rag.Store = &documentStore{}

// NewDocumentStore adapts the chunk repository to the retrieval engine.
// Hits below threshold cosine similarity are dropped.
func NewDocumentStore(repo contract.DocumentChunkRepository, threshold float64) rag.Store {
	return &documentStore{repo: repo, threshold: threshold}
}

func (s *documentStore) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

func (s *documentStore) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]rag.Hit, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, rag.ErrRetrievalStoreEmpty
	}

	scored, err := s.repo.SearchSimilarWithScore(ctx, vector, k, s.threshold)
	if err != nil {
		return nil, err
	}

	hits := make([]rag.Hit, 0, len(scored))
	for i, sc := range scored {
		if sc.Chunk == nil {
			continue
		}
		hits = append(hits, rag.Hit{
			DocumentID: sc.Chunk.DocumentId,
			Content:    sc.Chunk.Content,
			Rank:       i + 1,
			Score:      sc.Similarity,
		})
	}
	return hits, nil
}
