package rag

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"nexus-ai-be/internal/pkg/logger"
	"nexus-ai-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}

type recordingBackend struct {
	calls atomic.Int32
	reply string
	last  []llm.Message
}

func (r *recordingBackend) Name() string { return "text" }

func (r *recordingBackend) Stream(ctx context.Context, history []llm.Message, _ ...llm.Option) <-chan llm.Chunk {
	r.calls.Add(1)
	r.last = history
	return llm.Static(ctx, r.reply)
}

type failingStore struct{}

func (failingStore) SimilaritySearch(context.Context, []float32, int) ([]Hit, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) Count(context.Context) (int64, error) { return 0, nil }

func TestEngineEmptyStoreSkipsTextBackend(t *testing.T) {
	text := &recordingBackend{reply: "should not be used"}
	engine := NewEngine(fakeEmbedder{vec: []float32{1, 0}}, NewMemoryStore(), text, 3, logger.NewNop())

	stream, err := engine.Answer(context.Background(), "what is the refund policy", nil)
	require.NoError(t, err)

	got, err := llm.Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, NoDocumentsMessage, got)
	assert.Equal(t, int32(0), text.calls.Load())
}

func TestEngineAnswersWithProvenance(t *testing.T) {
	store := NewMemoryStore()
	store.Add("refunds.pdf", "Refunds are issued within 14 days.", []float32{1, 0})
	store.Add("shipping.pdf", "Shipping takes 3 days.", []float32{0, 1})

	text := &recordingBackend{reply: "Within 14 days [1]."}
	engine := NewEngine(fakeEmbedder{vec: []float32{1, 0.1}}, store, text, 1, logger.NewNop())

	history := []llm.Message{llm.SystemMessage("old preamble"), llm.UserMessage("hi"), llm.AssistantMessage("hello")}
	stream, err := engine.Answer(context.Background(), "refund window?", history)
	require.NoError(t, err)

	got, err := llm.Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, "Within 14 days [1].\n\nSources: refunds.pdf", got)

	require.Len(t, text.last, 4)
	assert.Equal(t, llm.RoleSystem, text.last[0].Role)
	assert.Equal(t, synthesisPreamble, text.last[0].Content)
	prompt := text.last[3].Content
	assert.Contains(t, prompt, "[1] Refunds are issued within 14 days.")
	assert.NotContains(t, prompt, "Shipping")
	assert.True(t, strings.HasSuffix(prompt, "Question: refund window?"))
}

func TestEngineQueryFailures(t *testing.T) {
	text := &recordingBackend{}

	_, err := NewEngine(fakeEmbedder{err: llm.NewBackendError("retrieval", llm.ErrBackendTimeout, nil)}, NewMemoryStore(), text, 3, logger.NewNop()).
		Answer(context.Background(), "q", nil)
	assert.ErrorIs(t, err, ErrRetrievalQueryFailed)
	assert.ErrorIs(t, err, llm.ErrBackendTimeout)

	_, err = NewEngine(fakeEmbedder{vec: []float32{1}}, failingStore{}, text, 3, logger.NewNop()).
		Answer(context.Background(), "q", nil)
	assert.ErrorIs(t, err, ErrRetrievalQueryFailed)
	assert.Equal(t, int32(0), text.calls.Load())
}

func TestProvenanceNote(t *testing.T) {
	assert.Equal(t, "\n\nSources: a, b", ProvenanceNote([]Hit{{DocumentID: "a"}, {DocumentID: "b"}, {DocumentID: "a"}}))
	assert.Equal(t, "\n\n(Based on 2 retrieved passages.)", ProvenanceNote([]Hit{{}, {}}))
}

func TestMemoryStoreRanksByCosine(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.SimilaritySearch(ctx, []float32{1, 0}, 2)
	assert.ErrorIs(t, err, ErrRetrievalStoreEmpty)

	store.Add("far", "far", []float32{0, 1})
	store.Add("near", "near", []float32{1, 0})
	store.Add("mid", "mid", []float32{1, 1})

	hits, err := store.SimilaritySearch(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].DocumentID)
	assert.Equal(t, 1, hits[0].Rank)
	assert.Equal(t, "mid", hits[1].DocumentID)
	assert.Equal(t, 2, hits[1].Rank)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
