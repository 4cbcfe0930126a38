package embedding

import "context"

// Provider turns text into a vector for similarity search.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
