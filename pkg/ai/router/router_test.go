package router

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"nexus-ai-be/internal/pkg/logger"
	"nexus-ai-be/pkg/adapter"
	"nexus-ai-be/pkg/ai/pipeline"
	"nexus-ai-be/pkg/llm"
	"nexus-ai-be/pkg/rag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	name      string
	reply     string
	err       error
	failAfter bool

	mu    sync.Mutex
	calls int
	last  []llm.Message
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Stream(ctx context.Context, history []llm.Message, _ ...llm.Option) <-chan llm.Chunk {
	f.mu.Lock()
	f.calls++
	f.last = history
	f.mu.Unlock()

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		if f.reply != "" && (f.err == nil || f.failAfter) {
			if !llm.Send(ctx, out, llm.Chunk{Text: f.reply}) {
				return
			}
		}
		if f.err != nil {
			llm.Send(ctx, out, llm.Chunk{Err: f.err})
		}
	}()
	return out
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBackend) lastMessages() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type staticEmbedder struct{}

func (staticEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type backendLoader struct {
	backend llm.Backend
}

func (l backendLoader) Load(context.Context, adapter.Descriptor, string) (llm.Backend, error) {
	return l.backend, nil
}

func (l backendLoader) Unload(context.Context, adapter.Descriptor) error { return nil }

func newAdapterManager(t *testing.T, backend llm.Backend, names ...string) *adapter.Manager {
	t.Helper()
	root := t.TempDir()
	for _, name := range names {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, adapter.ConfigFile), []byte(`{}`), 0o644))
	}
	return adapter.NewManager(root, backendLoader{backend: backend}, logger.NewNop())
}

type result struct {
	branch    Branch
	fragments []string
	err       error
}

func (r result) text() string {
	return strings.Join(r.fragments, "")
}

func route(t *testing.T, r *Router, req Request) result {
	t.Helper()
	branch, stream := r.Route(context.Background(), req)
	res := result{branch: branch}
	for chunk := range stream {
		if chunk.Err != nil {
			require.NoError(t, res.err, "more than one terminal chunk")
			res.err = chunk.Err
		}
		res.fragments = append(res.fragments, chunk.Text)
	}
	return res
}

func cfg() Config {
	return Config{HistoryCap: 10, BaseModel: "llama3"}
}

func TestRoutePlainText(t *testing.T) {
	text := &fakeBackend{name: "text", reply: "Hi there! How can I help?"}
	r := NewRouter(text, nil, nil, nil, cfg(), logger.NewNop())

	res := route(t, r, Request{SessionID: "s1", Message: "hello", Type: TypeText})

	assert.Equal(t, BranchText, res.branch)
	require.NoError(t, res.err)
	assert.Equal(t, "Hi there! How can I help?", res.text())
	assert.Equal(t, []string{"Hi ", "there! ", "How ", "can ", "I ", "help?"}, res.fragments)
	assert.Equal(t, 1, text.callCount())
}

func TestRouteMissingAdapterFallsBackToText(t *testing.T) {
	text := &fakeBackend{name: "text", reply: "Here is a draft."}
	manager := newAdapterManager(t, &fakeBackend{name: "adapter"})
	r := NewRouter(text, nil, manager, nil, cfg(), logger.NewNop())

	res := route(t, r, Request{Message: "draft a follow-up", Type: TypeAdapter, AdapterID: "sales-v2"})

	assert.Equal(t, BranchText, res.branch)
	require.NoError(t, res.err)
	assert.Equal(t, "Here is a draft.", res.text())
}

func TestRouteReadyAdapter(t *testing.T) {
	text := &fakeBackend{name: "text", reply: "generic"}
	tuned := &fakeBackend{name: "adapter", reply: "tuned answer"}
	manager := newAdapterManager(t, tuned, "support-v1")
	r := NewRouter(text, nil, manager, nil, cfg(), logger.NewNop())

	res := route(t, r, Request{Message: "/adapter:lora_support-v1 reset my password", Type: TypeText})

	assert.Equal(t, BranchAdapter, res.branch)
	require.NoError(t, res.err)
	assert.Equal(t, "tuned answer", res.text())
	assert.Equal(t, 0, text.callCount())

	msgs := tuned.lastMessages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, "reset my password", msgs[len(msgs)-1].Content)
}

func TestRouteAdapterFailureDemotesToText(t *testing.T) {
	text := &fakeBackend{name: "text", reply: "fallback answer"}
	tuned := &fakeBackend{name: "adapter", err: llm.NewBackendError("adapter", llm.ErrBackendUnavailable, nil)}
	manager := newAdapterManager(t, tuned, "support-v1")
	r := NewRouter(text, nil, manager, nil, cfg(), logger.NewNop())

	res := route(t, r, Request{Message: "hi", AdapterID: "support-v1"})

	assert.Equal(t, BranchAdapter, res.branch)
	require.NoError(t, res.err)
	assert.Equal(t, "fallback answer", res.text())
	assert.Equal(t, 1, tuned.callCount())
	assert.Equal(t, 1, text.callCount())
}

func TestRouteEmptyStoreAnswersWithoutTextBackend(t *testing.T) {
	text := &fakeBackend{name: "text", reply: "should not run"}
	engine := rag.NewEngine(staticEmbedder{}, rag.NewMemoryStore(), text, 3, logger.NewNop())
	retriever := pipeline.NewRetrievalPipeline(rag.NewGate(nil, 0), engine, 10)
	r := NewRouter(text, nil, nil, retriever, cfg(), logger.NewNop())

	res := route(t, r, Request{Message: "What is the refund policy?", Type: TypeText})

	assert.Equal(t, BranchRetrieval, res.branch)
	require.NoError(t, res.err)
	assert.Equal(t, rag.NoDocumentsMessage, res.text())
	assert.Equal(t, 0, text.callCount())
}

func TestRouteBypassSkipsRetrieval(t *testing.T) {
	text := &fakeBackend{name: "text", reply: "general answer"}
	engine := rag.NewEngine(staticEmbedder{}, rag.NewMemoryStore(), text, 3, logger.NewNop())
	retriever := pipeline.NewRetrievalPipeline(rag.NewGate(nil, 0), engine, 10)
	r := NewRouter(text, nil, nil, retriever, cfg(), logger.NewNop())

	res := route(t, r, Request{Message: "/bypass What is the refund policy?"})

	assert.Equal(t, BranchText, res.branch)
	assert.Equal(t, "general answer", res.text())
	msgs := text.lastMessages()
	assert.Equal(t, "What is the refund policy?", msgs[len(msgs)-1].Content)
}

func TestRouteBareDirectiveGetsHelp(t *testing.T) {
	text := &fakeBackend{name: "text", reply: "unused"}
	r := NewRouter(text, nil, nil, nil, cfg(), logger.NewNop())

	res := route(t, r, Request{Message: "/bypass"})

	assert.Contains(t, res.text(), "/bypass")
	assert.Equal(t, 0, text.callCount())
}

func TestRouteImageWithVisionDown(t *testing.T) {
	text := &fakeBackend{name: "text", reply: "unused"}
	vision := &fakeBackend{name: "vision", err: llm.NewBackendError("vision", llm.ErrBackendUnavailable, nil)}
	r := NewRouter(text, vision, nil, nil, cfg(), logger.NewNop())

	res := route(t, r, Request{
		Message:    "Uploaded image: cat.png",
		Type:       TypeImage,
		Attachment: &llm.Attachment{URL: "http://files/cat.png", Kind: "image", Name: "cat.png"},
	})

	assert.Equal(t, BranchImage, res.branch)
	require.Len(t, res.fragments, 1)
	assert.ErrorIs(t, res.err, llm.ErrBackendUnavailable)
	assert.True(t, strings.HasPrefix(res.fragments[0], "[ERROR] vision backend unavailable: "))
	assert.Contains(t, res.fragments[0], "cat.png")
	assert.Equal(t, 0, text.callCount())
}

func TestRouteImageElaborated(t *testing.T) {
	text := &fakeBackend{name: "text", reply: "A tabby cat is sleeping."}
	vision := &fakeBackend{name: "vision", reply: "a cat on a sofa"}
	c := cfg()
	c.VisionElaborate = true
	r := NewRouter(text, vision, nil, nil, c, logger.NewNop())

	res := route(t, r, Request{
		Message:    "what animal is this",
		Type:       TypeImage,
		Attachment: &llm.Attachment{URL: "http://files/cat.png", Kind: "image", Name: "cat.png"},
	})

	assert.Equal(t, BranchImage, res.branch)
	require.NoError(t, res.err)
	assert.Equal(t, "A tabby cat is sleeping.", res.text())

	msgs := text.lastMessages()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "a cat on a sofa")
	assert.Equal(t, "what animal is this", msgs[len(msgs)-1].Content)
	assert.Nil(t, msgs[len(msgs)-1].Attachment)
}

func TestRouteDocument(t *testing.T) {
	text := &fakeBackend{name: "text", reply: "The contract ends in May."}
	r := NewRouter(text, nil, nil, nil, cfg(), logger.NewNop())

	res := route(t, r, Request{
		Message:       "When does it end?",
		Type:          TypeDocument,
		Attachment:    &llm.Attachment{URL: "http://files/c.pdf", Kind: "document", Name: "contract.pdf"},
		ExtractedText: "This agreement terminates on 31 May.",
	})

	assert.Equal(t, BranchDocument, res.branch)
	require.NoError(t, res.err)

	msgs := text.lastMessages()
	prompt := msgs[len(msgs)-1].Content
	assert.Contains(t, prompt, "Document Name: contract.pdf")
	assert.Contains(t, prompt, "User Question: When does it end?")
	assert.Contains(t, prompt, "This agreement terminates on 31 May.")
}

func TestRouteTextFailureSurfacesOnce(t *testing.T) {
	text := &fakeBackend{name: "text", err: llm.NewBackendError("text", llm.ErrBackendTimeout, nil)}
	r := NewRouter(text, nil, nil, nil, cfg(), logger.NewNop())

	res := route(t, r, Request{Message: "hello"})

	require.Len(t, res.fragments, 1)
	assert.True(t, strings.HasPrefix(res.fragments[0], "[ERROR] text backend timeout: "))
	assert.Equal(t, 1, text.callCount())
}

func TestRouteMidStreamFailure(t *testing.T) {
	text := &fakeBackend{name: "text", reply: "partial answer", err: llm.NewBackendError("text", llm.ErrBackendMalformedResponse, nil), failAfter: true}
	r := NewRouter(text, nil, nil, nil, cfg(), logger.NewNop())

	res := route(t, r, Request{Message: "hello"})

	require.Error(t, res.err)
	last := res.fragments[len(res.fragments)-1]
	assert.True(t, strings.HasPrefix(last, "\n[ERROR] text backend invalid-response: "))
	assert.Equal(t, "partial answer", strings.Join(res.fragments[:len(res.fragments)-1], ""))
}
