// Package pipeline holds the per-branch executors the router dispatches to.
package pipeline

import (
	"context"

	"nexus-ai-be/internal/pkg/logger"
	"nexus-ai-be/pkg/llm"
	"nexus-ai-be/pkg/rag/history"
)

// ChatPipeline streams a conversational answer from any backend (the text
// model or an adapter) over the bounded conversation window.
type ChatPipeline struct {
	historyCap int
	logger     logger.ILogger
}

func NewChatPipeline(historyCap int, log logger.ILogger) *ChatPipeline {
	return &ChatPipeline{historyCap: historyCap, logger: log}
}

func (p *ChatPipeline) Execute(
	ctx context.Context,
	backend llm.Backend,
	system string,
	hist []llm.Message,
	current llm.Message,
	opts ...llm.Option,
) <-chan llm.Chunk {
	messages := history.BuildWindow(system, hist, current, p.historyCap)

	p.logger.Debug("ChatPipeline", "Executing chat", map[string]interface{}{
		"backend":  backend.Name(),
		"messages": len(messages),
	})

	return backend.Stream(ctx, messages, opts...)
}
