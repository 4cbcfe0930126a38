package service

import (
	"context"
	"path"
	"strings"

	"nexus-ai-be/internal/dto"
	"nexus-ai-be/internal/pkg/logger"
	"nexus-ai-be/internal/repository/contract"
	"nexus-ai-be/pkg/ai/router"
	"nexus-ai-be/pkg/llm"

	"github.com/gofiber/fiber/v2"
)

const chatModule = "ChatService"

// Router is the part of the backend router the chat service drives.
type Router interface {
	Route(ctx context.Context, req router.Request) (router.Branch, <-chan llm.Chunk)
}

type IChatService interface {
	// Stream routes one chat turn. The returned channel ends with the reply or
	// with one terminal error fragment.
	Stream(ctx context.Context, req *dto.ChatRequest) (router.Branch, <-chan llm.Chunk, error)
	Intent(message string) string
}

type chatService struct {
	router   Router
	sessions contract.SessionRepository
	logger   logger.ILogger
}

func NewChatService(r Router, sessions contract.SessionRepository, log logger.ILogger) IChatService {
	return &chatService{
		router:   r,
		sessions: sessions,
		logger:   log,
	}
}

func (s *chatService) Stream(ctx context.Context, req *dto.ChatRequest) (router.Branch, <-chan llm.Chunk, error) {
	if strings.TrimSpace(req.Message) == "" && req.FileUrl == "" && strings.TrimSpace(req.ExtractedText) == "" {
		return "", nil, fiber.NewError(fiber.StatusBadRequest, "message is required")
	}

	history, err := s.history(ctx, req)
	if err != nil {
		return "", nil, err
	}

	reqType := requestType(req)
	routed := router.Request{
		SessionID:          req.SessionId,
		Message:            req.Message,
		Type:               reqType,
		Attachment:         attachmentOf(req.FileUrl, req.FileName, req.FileType, reqType),
		ExtractedText:      req.ExtractedText,
		DocumentType:       req.DocumentType,
		ContextInstruction: strings.TrimSpace(req.ContextInstruction),
		AdapterID:          req.AdapterId,
		History:            history,
	}

	branch, chunks := s.router.Route(ctx, routed)

	user := llm.UserMessage(req.Message)
	user.Attachment = routed.Attachment
	return branch, s.record(ctx, req.SessionId, user, chunks), nil
}

// history prefers the transcript the client sent; otherwise the stored one.
func (s *chatService) history(ctx context.Context, req *dto.ChatRequest) ([]llm.Message, error) {
	if len(req.ConversationContext) > 0 {
		history := make([]llm.Message, 0, len(req.ConversationContext))
		for _, turn := range req.ConversationContext {
			history = append(history, llm.Message{
				Role:       llm.ParseRole(turn.Role),
				Content:    turn.Content,
				Attachment: attachmentOf(turn.FileUrl, turn.FileName, turn.FileType, router.TypeText),
			})
		}
		return history, nil
	}

	history, err := s.sessions.History(ctx, req.SessionId)
	if err != nil {
		s.logger.Warn(chatModule, "Session history unavailable, continuing without it", map[string]interface{}{
			"session_id": req.SessionId,
			"error":      err.Error(),
		})
		return nil, nil
	}
	return history, nil
}

// record forwards chunks and, once the reply completed cleanly, appends the
// turn pair to the session. Failed or cancelled replies are not stored.
func (s *chatService) record(ctx context.Context, sessionID string, user llm.Message, in <-chan llm.Chunk) <-chan llm.Chunk {
	out := make(chan llm.Chunk)

	go func() {
		defer close(out)

		var reply strings.Builder
		failed := false
		for chunk := range in {
			if chunk.Err != nil {
				failed = true
			} else {
				reply.WriteString(chunk.Text)
			}
			if !llm.Send(ctx, out, chunk) {
				for range in {
				}
				return
			}
		}

		if failed || ctx.Err() != nil {
			return
		}

		err := s.sessions.Append(context.WithoutCancel(ctx), sessionID, user, llm.AssistantMessage(reply.String()))
		if err != nil {
			s.logger.Error(chatModule, "Failed to store turn", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
	}()

	return out
}

func (s *chatService) Intent(message string) string {
	return RecognizeIntent(message)
}

var intentKeywords = []struct {
	intent string
	words  []string
}{
	{"training", []string{"train", "training", "model", "lora"}},
	{"health", []string{"health", "status", "check"}},
	{"greeting", []string{"hello", "hi", "hey"}},
}

// RecognizeIntent classifies a message by keyword: training, health,
// greeting or general. Earlier intents win.
func RecognizeIntent(message string) string {
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	present := make(map[string]bool, len(words))
	for _, w := range words {
		present[w] = true
	}

	for _, candidate := range intentKeywords {
		for _, w := range candidate.words {
			if present[w] {
				return candidate.intent
			}
		}
	}
	return "general"
}

func requestType(req *dto.ChatRequest) router.RequestType {
	if req.Type != "" {
		return router.ParseType(req.Type)
	}
	if req.FileUrl != "" && looksLikeImage(req.FileUrl, req.FileName, req.FileType) {
		return router.TypeImage
	}
	if strings.TrimSpace(req.ExtractedText) != "" {
		return router.TypeDocument
	}
	return router.TypeText
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".bmp": true,
}

// looksLikeImage decides by MIME type when one is given, else by extension.
func looksLikeImage(url, name, fileType string) bool {
	if fileType != "" {
		return strings.HasPrefix(strings.ToLower(fileType), "image")
	}
	return imageExtensions[strings.ToLower(path.Ext(name))] || imageExtensions[strings.ToLower(path.Ext(url))]
}

// attachmentOf builds the attachment for a file reference. An image request
// always carries an image attachment.
func attachmentOf(url, name, fileType string, reqType router.RequestType) *llm.Attachment {
	if url == "" {
		return nil
	}
	kind := "document"
	if reqType == router.TypeImage || looksLikeImage(url, name, fileType) {
		kind = "image"
	}
	return &llm.Attachment{URL: url, Kind: kind, Name: name}
}
