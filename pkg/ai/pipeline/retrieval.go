package pipeline

import (
	"context"

	"nexus-ai-be/pkg/llm"
	"nexus-ai-be/pkg/rag"
)

// RetrievalPipeline pairs the retrieval gate with the engine that answers
// from the document index.
type RetrievalPipeline struct {
	gate       *rag.Gate
	engine     *rag.Engine
	historyCap int
}

func NewRetrievalPipeline(gate *rag.Gate, engine *rag.Engine, historyCap int) *RetrievalPipeline {
	if historyCap < 0 {
		historyCap = 0
	}
	return &RetrievalPipeline{gate: gate, engine: engine, historyCap: historyCap}
}

func (p *RetrievalPipeline) ShouldRetrieve(query string) bool {
	return p.gate.ShouldRetrieve(query)
}

func (p *RetrievalPipeline) Answer(ctx context.Context, query string, hist []llm.Message, opts ...llm.Option) (<-chan llm.Chunk, error) {
	if len(hist) > p.historyCap {
		hist = hist[len(hist)-p.historyCap:]
	}
	return p.engine.Answer(ctx, query, hist, opts...)
}
