package router

import (
	"context"
	"fmt"

	"nexus-ai-be/internal/metrics"
	"nexus-ai-be/internal/pkg/logger"
	"nexus-ai-be/pkg/llm"
)

const fallbackModule = "FallbackController"

// ErrorPrefix starts the single line a client sees when a request fails.
const ErrorPrefix = "[ERROR] "

// Attempt is one way of answering a request.
type Attempt struct {
	Branch    Branch
	Subsystem string
	Run       func(ctx context.Context) (<-chan llm.Chunk, error)
}

// Plan is the chosen attempt and, optionally, the one to demote to.
type Plan struct {
	Primary   Attempt
	Secondary *Attempt
	// FileName names the uploaded file in user-facing guidance.
	FileName string
	// OnFinish runs once the output stream is complete.
	OnFinish func(err error)
}

// FallbackController wraps a branch. A failure before any text is produced
// demotes once to the secondary attempt; any other failure becomes one
// terminal "[ERROR] ..." fragment.
type FallbackController struct {
	logger logger.ILogger
}

func NewFallbackController(log logger.ILogger) *FallbackController {
	return &FallbackController{logger: log}
}

func (c *FallbackController) Execute(ctx context.Context, plan Plan) <-chan llm.Chunk {
	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		err := c.execute(ctx, plan, out)
		if plan.OnFinish != nil {
			plan.OnFinish(err)
		}
	}()
	return out
}

func (c *FallbackController) execute(ctx context.Context, plan Plan, out chan<- llm.Chunk) error {
	attempt := plan.Primary
	produced, err := c.try(ctx, attempt, out)
	if err == nil || ctx.Err() != nil {
		return ctx.Err()
	}

	subsystem := subsystemOf(attempt, err)
	if !produced && plan.Secondary != nil && subsystem != plan.Secondary.Subsystem {
		c.logger.Warn(fallbackModule, "Branch failed, demoting", map[string]interface{}{
			"from":  attempt.Branch,
			"to":    plan.Secondary.Branch,
			"class": llm.Class(err),
			"error": err.Error(),
		})
		metrics.FallbackTotal.WithLabelValues(string(attempt.Branch), string(plan.Secondary.Branch)).Inc()

		attempt = *plan.Secondary
		produced, err = c.try(ctx, attempt, out)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}
		subsystem = subsystemOf(attempt, err)
	}

	class := llm.Class(err)
	line := ErrorPrefix + fmt.Sprintf("%s backend %s: %s", subsystem, class, guidance(subsystem, plan.FileName))
	if produced {
		line = "\n" + line
	}

	metrics.TerminalErrorsTotal.WithLabelValues(subsystem, class).Inc()
	c.logger.Error(fallbackModule, "Request failed", map[string]interface{}{
		"branch":    attempt.Branch,
		"subsystem": subsystem,
		"class":     class,
		"error":     err,
	})

	llm.Send(ctx, out, llm.Chunk{Text: line, Err: err})
	return err
}

// try forwards an attempt's fragments and reports whether any text reached
// the client before it ended.
func (c *FallbackController) try(ctx context.Context, a Attempt, out chan<- llm.Chunk) (bool, error) {
	stream, err := a.Run(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		for range stream {
		}
	}()

	produced := false
	for chunk := range stream {
		if chunk.Err != nil {
			return produced, chunk.Err
		}
		if chunk.Text == "" {
			continue
		}
		if !llm.Send(ctx, out, chunk) {
			return produced, nil
		}
		produced = true
	}
	return produced, nil
}

func subsystemOf(a Attempt, err error) string {
	if s, ok := llm.Subsystem(err); ok {
		return s
	}
	return a.Subsystem
}
