package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nexus-ai-be/internal/metrics"
	"nexus-ai-be/internal/pkg/logger"
	"nexus-ai-be/pkg/embedding"
	"nexus-ai-be/pkg/llm"
)

const module = "RetrievalEngine"

// NoDocumentsMessage answers retrieval queries against an empty index.
const NoDocumentsMessage = "I could not find any documents in the knowledge base to answer that yet. " +
	"Upload the relevant documents, or ask again with /bypass to get a general answer."

const synthesisPreamble = `You are a company knowledge assistant.
Answer the question using ONLY the numbered context passages below.
If the passages do not contain the answer, say so plainly instead of guessing.
Keep the answer concise and refer to passages by their number when useful.`

// Engine answers a query from the document index.
type Engine struct {
	embedder embedding.Provider
	store    Store
	text     llm.Backend
	topK     int
	logger   logger.ILogger
}

func NewEngine(embedder embedding.Provider, store Store, text llm.Backend, topK int, log logger.ILogger) *Engine {
	if topK <= 0 {
		topK = 4
	}
	return &Engine{
		embedder: embedder,
		store:    store,
		text:     text,
		topK:     topK,
		logger:   log,
	}
}

// Answer embeds the query and searches the store. Query failures are returned
// as ErrRetrievalQueryFailed so the caller can demote the request. An empty
// index yields NoDocumentsMessage without touching the text backend.
func (e *Engine) Answer(ctx context.Context, query string, history []llm.Message, opts ...llm.Option) (<-chan llm.Chunk, error) {
	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		metrics.RetrievalQueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: embed query: %w", ErrRetrievalQueryFailed, err)
	}

	hits, err := e.store.SimilaritySearch(ctx, vector, e.topK)
	if errors.Is(err, ErrRetrievalStoreEmpty) || (err == nil && len(hits) == 0) {
		metrics.RetrievalQueriesTotal.WithLabelValues("empty").Inc()
		e.logger.Info(module, "No documents matched", map[string]interface{}{"query_length": len(query)})
		return llm.Static(ctx, NoDocumentsMessage), nil
	}
	if err != nil {
		metrics.RetrievalQueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrRetrievalQueryFailed, err)
	}

	metrics.RetrievalQueriesTotal.WithLabelValues("hits").Inc()
	e.logger.Debug(module, "Retrieved passages", map[string]interface{}{
		"hits":      len(hits),
		"top_score": hits[0].Score,
	})

	messages := SynthesisMessages(query, history, hits)
	return e.withProvenance(ctx, e.text.Stream(ctx, messages, opts...), hits), nil
}

// SynthesisMessages builds the prompt that grounds the answer in hits.
func SynthesisMessages(query string, history []llm.Message, hits []Hit) []llm.Message {
	var sb strings.Builder
	sb.WriteString("Context passages:\n")
	for _, h := range hits {
		fmt.Fprintf(&sb, "[%d] %s\n", h.Rank, strings.TrimSpace(h.Content))
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(query)

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.SystemMessage(synthesisPreamble))
	for _, m := range history {
		if m.Role != llm.RoleSystem {
			messages = append(messages, m)
		}
	}
	return append(messages, llm.UserMessage(sb.String()))
}

// ProvenanceNote names the documents an answer drew on, or counts the
// passages when they carry no ids.
func ProvenanceNote(hits []Hit) string {
	seen := make(map[string]bool, len(hits))
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.DocumentID == "" || seen[h.DocumentID] {
			continue
		}
		seen[h.DocumentID] = true
		ids = append(ids, h.DocumentID)
	}
	if len(ids) == 0 {
		return fmt.Sprintf("\n\n(Based on %d retrieved passages.)", len(hits))
	}
	return "\n\nSources: " + strings.Join(ids, ", ")
}

func (e *Engine) withProvenance(ctx context.Context, in <-chan llm.Chunk, hits []Hit) <-chan llm.Chunk {
	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		for chunk := range in {
			if !llm.Send(ctx, out, chunk) {
				return
			}
			if chunk.Err != nil {
				return
			}
		}
		llm.Send(ctx, out, llm.Chunk{Text: ProvenanceNote(hits)})
	}()
	return out
}
