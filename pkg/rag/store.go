package rag

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Hit is one retrieved chunk. Rank starts at 1.
type Hit struct {
	DocumentID string
	Content    string
	Rank       int
	Score      float64
}

// Store answers nearest-neighbour queries over the document index. Stores
// return ErrRetrievalStoreEmpty when they hold nothing at all.
type Store interface {
	SimilaritySearch(ctx context.Context, vector []float32, k int) ([]Hit, error)
	Count(ctx context.Context) (int64, error)
}

type memoryChunk struct {
	documentID string
	content    string
	vector     []float32
}

// MemoryStore is a cosine-similarity store held in process. It backs tests
// and deployments without Postgres.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []memoryChunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Add(documentID, content string, vector []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, memoryChunk{
		documentID: documentID,
		content:    content,
		vector:     append([]float32(nil), vector...),
	})
}

func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.chunks)), nil
}

func (s *MemoryStore) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.chunks) == 0 {
		return nil, ErrRetrievalStoreEmpty
	}

	hits := make([]Hit, 0, len(s.chunks))
	for _, c := range s.chunks {
		hits = append(hits, Hit{
			DocumentID: c.documentID,
			Content:    c.content,
			Score:      cosine(vector, c.vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits, nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
