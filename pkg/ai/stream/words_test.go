package stream

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"nexus-ai-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func source(parts ...string) <-chan llm.Chunk {
	out := make(chan llm.Chunk, len(parts))
	for _, p := range parts {
		out <- llm.Chunk{Text: p}
	}
	close(out)
	return out
}

func collect(t *testing.T, in <-chan llm.Chunk) ([]string, error) {
	t.Helper()
	var (
		fragments []string
		err       error
	)
	for c := range in {
		if c.Err != nil {
			err = c.Err
			continue
		}
		fragments = append(fragments, c.Text)
	}
	return fragments, err
}

func TestWordsRoundTrip(t *testing.T) {
	inputs := [][]string{
		{"Hello world"},
		{"Hel", "lo wo", "rld, how", " are you?"},
		{"  leading space", " and\ttabs\n", "newlines\n\n"},
		{"one"},
		{"trailing   "},
		{"a", "", "b c"},
		{"ünï", "cödé wörds"},
	}

	for _, pacing := range []time.Duration{0, time.Millisecond, 3 * time.Millisecond} {
		for _, parts := range inputs {
			fragments, err := collect(t, Words(context.Background(), source(parts...), pacing))
			require.NoError(t, err)

			assert.Equal(t, strings.Join(parts, ""), strings.Join(fragments, ""))
			for i, f := range fragments {
				assert.NotEmpty(t, f)
				trimmed := strings.TrimLeft(f, " \t\n")
				if i > 0 {
					// only the first fragment may start with whitespace
					assert.Equal(t, f, trimmed)
				}
				assert.NotContains(t, strings.TrimSpace(trimmed), " ")
			}
		}
	}
}

func TestWordsFragments(t *testing.T) {
	fragments, err := collect(t, Words(context.Background(), source("The quick", " brown fox"), 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"The ", "quick ", "brown ", "fox"}, fragments)
}

func TestWordsFlushesBeforeError(t *testing.T) {
	boom := errors.New("boom")
	in := make(chan llm.Chunk, 2)
	in <- llm.Chunk{Text: "partial answ"}
	in <- llm.Chunk{Err: boom}
	close(in)

	var got []llm.Chunk
	for c := range Words(context.Background(), in, 0) {
		got = append(got, c)
	}

	require.Len(t, got, 3)
	assert.Equal(t, "partial ", got[0].Text)
	assert.Equal(t, "answ", got[1].Text)
	assert.ErrorIs(t, got[2].Err, boom)
}

func TestWordsStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan llm.Chunk)
	out := Words(ctx, in, time.Hour)

	go func() { in <- llm.Chunk{Text: "first second third "} }()

	first := <-out
	assert.Equal(t, "first ", first.Text)
	cancel()

	select {
	case _, open := <-out:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("aggregator kept running after cancellation")
	}
}

func TestWordsKeepsErrorLineWhole(t *testing.T) {
	in := make(chan llm.Chunk, 1)
	in <- llm.Chunk{Text: "[ERROR] vision backend unavailable: try again", Err: errors.New("down")}
	close(in)

	var got []llm.Chunk
	for c := range Words(context.Background(), in, 0) {
		got = append(got, c)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "[ERROR] vision backend unavailable: try again", got[0].Text)
	assert.Error(t, got[0].Err)
}
