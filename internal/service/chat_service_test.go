package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nexus-ai-be/internal/dto"
	"nexus-ai-be/internal/pkg/logger"
	"nexus-ai-be/internal/repository/memory"
	"nexus-ai-be/pkg/ai/router"
	"nexus-ai-be/pkg/llm"
	"nexus-ai-be/pkg/vision/blip"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRouter struct {
	chunks []llm.Chunk
	last   router.Request
}

func (f *fakeRouter) Route(_ context.Context, req router.Request) (router.Branch, <-chan llm.Chunk) {
	f.last = req
	out := make(chan llm.Chunk, len(f.chunks))
	for _, c := range f.chunks {
		out <- c
	}
	close(out)
	return router.BranchText, out
}

func drain(t *testing.T, ch <-chan llm.Chunk) (string, error) {
	t.Helper()
	done := make(chan struct{})
	var (
		text string
		err  error
	)
	go func() {
		text, err = llm.Collect(ch)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not finish")
	}
	return text, err
}

func TestChatServiceStoresCompletedTurn(t *testing.T) {
	r := &fakeRouter{chunks: []llm.Chunk{{Text: "Hi "}, {Text: "there"}}}
	sessions := memory.NewSessionRepository(20, time.Minute)
	svc := NewChatService(r, sessions, logger.NewNop())

	_, ch, err := svc.Stream(context.Background(), &dto.ChatRequest{SessionId: "s1", Message: "hello"})
	require.NoError(t, err)
	text, err := drain(t, ch)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", text)

	require.Eventually(t, func() bool {
		h, _ := sessions.History(context.Background(), "s1")
		return len(h) == 2
	}, time.Second, 5*time.Millisecond)

	h, _ := sessions.History(context.Background(), "s1")
	assert.Equal(t, llm.UserMessage("hello"), h[0])
	assert.Equal(t, llm.AssistantMessage("Hi there"), h[1])

	// the stored transcript feeds the next turn
	_, ch, err = svc.Stream(context.Background(), &dto.ChatRequest{SessionId: "s1", Message: "again"})
	require.NoError(t, err)
	_, _ = drain(t, ch)
	assert.Len(t, r.last.History, 2)
}

func TestChatServiceSkipsFailedTurn(t *testing.T) {
	failure := llm.NewBackendError("text", llm.ErrBackendUnavailable, nil)
	r := &fakeRouter{chunks: []llm.Chunk{{Text: "[ERROR] text backend unavailable: try later", Err: failure}}}
	sessions := memory.NewSessionRepository(20, time.Minute)
	svc := NewChatService(r, sessions, logger.NewNop())

	_, ch, err := svc.Stream(context.Background(), &dto.ChatRequest{SessionId: "s1", Message: "hello"})
	require.NoError(t, err)
	_, err = drain(t, ch)
	assert.True(t, errors.Is(err, llm.ErrBackendUnavailable))

	time.Sleep(20 * time.Millisecond)
	h, _ := sessions.History(context.Background(), "s1")
	assert.Empty(t, h)
}

func TestChatServiceMapsRequest(t *testing.T) {
	r := &fakeRouter{chunks: []llm.Chunk{{Text: "ok"}}}
	svc := NewChatService(r, memory.NewSessionRepository(20, time.Minute), logger.NewNop())

	_, ch, err := svc.Stream(context.Background(), &dto.ChatRequest{
		SessionId:          "s2",
		Message:            "what is this?",
		FileUrl:            "http://files/cat.png",
		FileName:           "cat.png",
		FileType:           "image/png",
		ContextInstruction: "  Answer in French.  ",
		AdapterId:          "lora_sales-v2",
		ConversationContext: []dto.TurnDTO{
			{Role: "user", Content: "hi"},
			{Role: "model", Content: "hello"},
		},
	})
	require.NoError(t, err)
	_, _ = drain(t, ch)

	req := r.last
	assert.Equal(t, router.TypeImage, req.Type)
	require.NotNil(t, req.Attachment)
	assert.Equal(t, "image", req.Attachment.Kind)
	assert.Equal(t, "cat.png", req.Attachment.Name)
	assert.Equal(t, "Answer in French.", req.ContextInstruction)
	assert.Equal(t, "lora_sales-v2", req.AdapterID)
	require.Len(t, req.History, 2)
	assert.Equal(t, llm.RoleAssistant, req.History[1].Role)
}

func TestChatServiceRejectsEmptyRequest(t *testing.T) {
	svc := NewChatService(&fakeRouter{}, memory.NewSessionRepository(20, time.Minute), logger.NewNop())

	_, _, err := svc.Stream(context.Background(), &dto.ChatRequest{SessionId: "s", Message: "   "})
	var fiberErr *fiber.Error
	require.ErrorAs(t, err, &fiberErr)
	assert.Equal(t, fiber.StatusBadRequest, fiberErr.Code)
}

func TestRecognizeIntent(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"How do I train a LoRA?", "training"},
		{"Which model is loaded", "training"},
		{"check the status please", "health"},
		{"Hey!", "greeting"},
		{"hello, is training done?", "training"},
		{"this thing", "general"},
		{"", "general"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, RecognizeIntent(tt.message))
		})
	}
}

type staticBackend struct{ reply string }

func (b staticBackend) Name() string { return "text" }

func (b staticBackend) Stream(ctx context.Context, _ []llm.Message, _ ...llm.Option) <-chan llm.Chunk {
	return llm.Static(ctx, b.reply)
}

func TestChatServiceImageRequestReachesVision(t *testing.T) {
	var calls atomic.Int32
	urls := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body struct {
			ImageURL string `json:"image_url"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		urls <- body.ImageURL
		fmt.Fprint(w, `{"result":"a cat sleeping on a sofa"}`)
	}))
	defer srv.Close()

	backendRouter := router.NewRouter(
		staticBackend{reply: "text answer"},
		blip.NewProvider(srv.URL, time.Second),
		nil, nil,
		router.Config{HistoryCap: 10},
		logger.NewNop(),
	)
	svc := NewChatService(backendRouter, memory.NewSessionRepository(20, time.Minute), logger.NewNop())

	branch, ch, err := svc.Stream(context.Background(), &dto.ChatRequest{
		SessionId: "img",
		Type:      "image",
		FileUrl:   "http://files/cat.png",
		FileName:  "cat.png",
		Message:   "what is in this picture",
	})
	require.NoError(t, err)
	text, err := drain(t, ch)

	require.NoError(t, err)
	assert.Equal(t, router.BranchImage, branch)
	assert.Equal(t, "a cat sleeping on a sofa", text)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "http://files/cat.png", <-urls)
}

func TestAttachmentKind(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		fileName string
		fileType string
		reqType  router.RequestType
		want     string
	}{
		{name: "image request without mime", url: "http://files/x", reqType: router.TypeImage, want: "image"},
		{name: "image mime", url: "http://files/x", fileType: "image/jpeg", reqType: router.TypeText, want: "image"},
		{name: "image extension", url: "http://files/x", fileName: "photo.JPG", reqType: router.TypeText, want: "image"},
		{name: "pdf mime", url: "http://files/a.png", fileType: "application/pdf", reqType: router.TypeDocument, want: "document"},
		{name: "unknown file", url: "http://files/report", fileName: "report.docx", reqType: router.TypeText, want: "document"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			att := attachmentOf(tt.url, tt.fileName, tt.fileType, tt.reqType)
			require.NotNil(t, att)
			assert.Equal(t, tt.want, att.Kind)
		})
	}

	assert.Nil(t, attachmentOf("", "a.png", "image/png", router.TypeImage))
}

func TestRequestTypeInferredFromExtension(t *testing.T) {
	req := &dto.ChatRequest{SessionId: "s", FileUrl: "http://files/cat.webp", FileName: "cat.webp"}
	assert.Equal(t, router.TypeImage, requestType(req))
}

type capturingBackend struct {
	mu   sync.Mutex
	last []llm.Message
}

func (b *capturingBackend) Name() string { return "text" }

func (b *capturingBackend) Stream(ctx context.Context, history []llm.Message, _ ...llm.Option) <-chan llm.Chunk {
	b.mu.Lock()
	b.last = history
	b.mu.Unlock()
	return llm.Static(ctx, "ok")
}

func TestChatServiceTrimsStoredHistoryToWindow(t *testing.T) {
	sessions := memory.NewSessionRepository(20, time.Minute)
	for i := 0; i < 10; i++ {
		require.NoError(t, sessions.Append(context.Background(), "long",
			llm.UserMessage(fmt.Sprintf("q%d", i)), llm.AssistantMessage(fmt.Sprintf("a%d", i))))
	}

	text := &capturingBackend{}
	backendRouter := router.NewRouter(text, nil, nil, nil, router.Config{HistoryCap: 10}, logger.NewNop())
	svc := NewChatService(backendRouter, sessions, logger.NewNop())

	_, ch, err := svc.Stream(context.Background(), &dto.ChatRequest{SessionId: "long", Message: "next"})
	require.NoError(t, err)
	_, err = drain(t, ch)
	require.NoError(t, err)

	text.mu.Lock()
	defer text.mu.Unlock()
	// system preamble + 10 most recent turns + current message
	require.Len(t, text.last, 12)
	assert.Equal(t, llm.RoleSystem, text.last[0].Role)
	assert.Equal(t, "q5", text.last[1].Content)
	assert.Equal(t, "a9", text.last[10].Content)
	assert.Equal(t, "next", text.last[11].Content)
}
