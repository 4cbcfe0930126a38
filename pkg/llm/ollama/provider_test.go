package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nexus-ai-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ndjson(frames ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, f := range frames {
			fmt.Fprintln(w, f)
		}
	}
}

func TestOllamaProvider_Stream(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantText  string
		wantClass error
	}{
		{
			name: "fragments until done",
			handler: ndjson(
				`{"message":{"role":"assistant","content":"Hello"},"done":false}`,
				`{"message":{"role":"assistant","content":" world"},"done":false}`,
				`{"message":{"role":"assistant","content":""},"done":true}`,
			),
			wantText: "Hello world",
		},
		{
			name:      "stream without done frame",
			handler:   ndjson(`{"message":{"role":"assistant","content":"partial"},"done":false}`),
			wantText:  "partial",
			wantClass: llm.ErrBackendMalformedResponse,
		},
		{
			name:      "error frame",
			handler:   ndjson(`{"error":"model not found"}`),
			wantClass: llm.ErrBackendMalformedResponse,
		},
		{
			name: "service unavailable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantClass: llm.ErrBackendUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p := NewOllamaProvider(srv.URL, "llama3", 5*time.Second)
			text, err := llm.Collect(p.Stream(context.Background(), []llm.Message{llm.UserMessage("hi")}))

			assert.Equal(t, tt.wantText, text)
			if tt.wantClass == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantClass)
			}
		})
	}
}

func TestOllamaProvider_RequestPayload(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprintln(w, `{"message":{"content":"ok"},"done":true}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", 5*time.Second)
	history := []llm.Message{llm.SystemMessage("be brief"), llm.UserMessage("hi")}
	_, err := llm.Collect(p.Stream(context.Background(), history, llm.WithModel("qwen2.5"), llm.WithMaxTokens(64)))
	require.NoError(t, err)

	assert.Equal(t, "qwen2.5", got.Model)
	assert.True(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, 64, got.Options.NumPredict)
}

func TestOllamaProvider_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		fmt.Fprint(w, `{"models":[{"name":"llama3:latest"},{"name":"nomic-embed-text:latest"}]}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", time.Second)
	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3:latest", "nomic-embed-text:latest"}, models)
	assert.NoError(t, p.Ping(context.Background()))
}

func TestOllamaProvider_Unreachable(t *testing.T) {
	p := NewOllamaProvider("http://127.0.0.1:1", "llama3", time.Second)
	_, err := llm.Collect(p.Stream(context.Background(), []llm.Message{llm.UserMessage("hi")}))
	assert.ErrorIs(t, err, llm.ErrBackendUnavailable)
	assert.Error(t, p.Ping(context.Background()))
}

func TestOllamaProvider_SlowStreamOutlivesHeaderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
		flusher.Flush()
		for _, word := range []string{"slow ", "but ", "complete"} {
			time.Sleep(120 * time.Millisecond)
			fmt.Fprintf(w, `{"message":{"content":%q},"done":false}`+"\n", word)
			flusher.Flush()
		}
		fmt.Fprintln(w, `{"message":{"content":""},"done":true}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", 200*time.Millisecond)
	text, err := llm.Collect(p.Stream(context.Background(), []llm.Message{llm.UserMessage("hi")}))

	require.NoError(t, err)
	assert.Equal(t, "slow but complete", text)
}

func TestOllamaProvider_HeaderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", 100*time.Millisecond)
	_, err := llm.Collect(p.Stream(context.Background(), []llm.Message{llm.UserMessage("hi")}))
	assert.ErrorIs(t, err, llm.ErrBackendTimeout)
}
