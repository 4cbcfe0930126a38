package pipeline

import (
	"context"
	"fmt"
	"strings"

	"nexus-ai-be/internal/pkg/logger"
	"nexus-ai-be/pkg/llm"
	"nexus-ai-be/pkg/rag/history"
)

// VisionPipeline answers image requests. With elaborate set, the caption is
// handed to the text model as a system fact and the text model answers;
// otherwise the caption is the answer.
type VisionPipeline struct {
	vision     llm.Backend
	text       llm.Backend
	elaborate  bool
	historyCap int
	logger     logger.ILogger
}

func NewVisionPipeline(vision, text llm.Backend, elaborate bool, historyCap int, log logger.ILogger) *VisionPipeline {
	return &VisionPipeline{
		vision:     vision,
		text:       text,
		elaborate:  elaborate,
		historyCap: historyCap,
		logger:     log,
	}
}

func (p *VisionPipeline) Execute(
	ctx context.Context,
	system string,
	hist []llm.Message,
	current llm.Message,
	opts ...llm.Option,
) <-chan llm.Chunk {
	captions := p.vision.Stream(ctx, []llm.Message{current})
	if !p.elaborate || p.text == nil {
		return captions
	}

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)

		caption, err := llm.Collect(captions)
		if err != nil {
			llm.Send(ctx, out, llm.Chunk{Err: err})
			return
		}
		if ctx.Err() != nil {
			return
		}

		p.logger.Debug("VisionPipeline", "Elaborating caption with text model", map[string]interface{}{
			"caption_length": len(caption),
		})

		name := "the uploaded image"
		if current.Attachment != nil && current.Attachment.Name != "" {
			name = current.Attachment.Name
		}
		fact := fmt.Sprintf("%s\n\nImage analysis of %s: %s\nUse this analysis to answer the user's request about the image.",
			system, name, strings.TrimSpace(caption))

		question := current
		question.Attachment = nil
		if strings.TrimSpace(question.Content) == "" || strings.HasPrefix(question.Content, "Uploaded image:") {
			question.Content = "Describe the uploaded image."
		}

		for chunk := range p.text.Stream(ctx, history.BuildWindow(fact, hist, question, p.historyCap), opts...) {
			if !llm.Send(ctx, out, chunk) {
				return
			}
		}
	}()
	return out
}
