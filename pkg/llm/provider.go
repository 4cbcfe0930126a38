package llm

import (
	"context"
	"strings"
)

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithTopP(p float64) Option {
	return func(o *Options) {
		o.TopP = p
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// Apply folds opts over the given defaults.
func Apply(defaults Options, opts ...Option) Options {
	o := defaults
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Chunk is one fragment of a streamed generation. A chunk with a non-nil Err
// is always the last item of its stream.
type Chunk struct {
	Text string
	Err  error
}

// Backend defines the contract for any generation backend (text model, vision
// model, adapter-backed model).
type Backend interface {
	// Name is the subsystem label used in logs and user-facing errors.
	Name() string

	// Stream sends the history to the backend and returns a lazily produced,
	// finite sequence of fragments. The channel is closed when generation ends,
	// fails (after a terminal error chunk) or ctx is cancelled. No fragment is
	// sent after cancellation has been observed.
	Stream(ctx context.Context, history []Message, opts ...Option) <-chan Chunk
}

// Collect drains a stream and returns the concatenated text, or the terminal
// error if the stream failed.
func Collect(stream <-chan Chunk) (string, error) {
	var sb strings.Builder
	for chunk := range stream {
		if chunk.Err != nil {
			for range stream {
			}
			return sb.String(), chunk.Err
		}
		sb.WriteString(chunk.Text)
	}
	return sb.String(), nil
}

// Send delivers a chunk unless ctx is done first. It reports whether the chunk
// was delivered.
func Send(ctx context.Context, out chan<- Chunk, chunk Chunk) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// Static returns a stream that yields the given text as a single fragment.
func Static(ctx context.Context, text string) <-chan Chunk {
	out := make(chan Chunk, 1)
	if ctx.Err() == nil {
		out <- Chunk{Text: text}
	}
	close(out)
	return out
}

// Failed returns a stream holding only a terminal error.
func Failed(err error) <-chan Chunk {
	out := make(chan Chunk, 1)
	out <- Chunk{Err: err}
	close(out)
	return out
}
