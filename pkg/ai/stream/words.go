// Package stream re-chunks backend output into word fragments for clients.
package stream

import (
	"context"
	"strings"
	"time"
	"unicode"

	"nexus-ai-be/internal/metrics"
	"nexus-ai-be/pkg/llm"
)

// Words turns an arbitrary chunk stream into word fragments. Each fragment is
// a word followed by its trailing whitespace; the last partial word is
// flushed when the input ends. pacing is slept between fragments. A
// terminal error chunk is forwarded unsplit after the buffered text. Content
// and order are never changed.
func Words(ctx context.Context, in <-chan llm.Chunk, pacing time.Duration) <-chan llm.Chunk {
	out := make(chan llm.Chunk)

	go func() {
		defer close(out)
		defer drain(in)

		var (
			buf   strings.Builder
			first = true
		)

		emit := func(fragment string) bool {
			if !first && pacing > 0 {
				t := time.NewTimer(pacing)
				select {
				case <-t.C:
				case <-ctx.Done():
					t.Stop()
					return false
				}
			}
			first = false
			if !llm.Send(ctx, out, llm.Chunk{Text: fragment}) {
				return false
			}
			metrics.StreamFragmentsTotal.Inc()
			return true
		}

		for {
			var (
				chunk llm.Chunk
				ok    bool
			)
			select {
			case chunk, ok = <-in:
			case <-ctx.Done():
				return
			}
			if !ok {
				break
			}

			// A terminal chunk travels whole, its text included
			if chunk.Err != nil {
				if buf.Len() > 0 && !emit(buf.String()) {
					return
				}
				llm.Send(ctx, out, chunk)
				return
			}

			if chunk.Text != "" {
				buf.WriteString(chunk.Text)
				pending := buf.String()
				fragments, rest := split(pending)
				buf.Reset()
				buf.WriteString(rest)
				for _, f := range fragments {
					if !emit(f) {
						return
					}
				}
			}
		}

		if buf.Len() > 0 {
			emit(buf.String())
		}
	}()

	return out
}

// split cuts s into complete fragments (word plus trailing whitespace) and
// the remainder that may still grow. A fragment is complete once the next
// word has started.
func split(s string) (fragments []string, rest string) {
	start := 0
	prevSpace, hasWord := false, false
	for i, r := range s {
		space := unicode.IsSpace(r)
		if !space && prevSpace && hasWord {
			fragments = append(fragments, s[start:i])
			start = i
		}
		if !space {
			hasWord = true
		}
		prevSpace = space
	}
	return fragments, s[start:]
}

// drain releases a producer that is blocked on send after we stop reading.
func drain(in <-chan llm.Chunk) {
	go func() {
		for range in {
		}
	}()
}
