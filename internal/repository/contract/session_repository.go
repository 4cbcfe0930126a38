package contract

import (
	"context"

	"nexus-ai-be/pkg/llm"
)

// SessionRepository keeps the bounded transcript of each chat session.
// Sessions are created on first append; oldest turns are evicted first.
type SessionRepository interface {
	Append(ctx context.Context, sessionID string, turns ...llm.Message) error
	History(ctx context.Context, sessionID string) ([]llm.Message, error)
}
