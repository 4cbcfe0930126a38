package controller

import (
	"bufio"
	"context"
	"encoding/json"

	"nexus-ai-be/internal/dto"
	"nexus-ai-be/internal/pkg/logger"
	"nexus-ai-be/internal/pkg/serverutils"
	"nexus-ai-be/internal/service"
	"nexus-ai-be/pkg/llm"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Chat(ctx *fiber.Ctx) error
	Intent(ctx *fiber.Ctx) error
	ChatSocket(conn *websocket.Conn)
}

type chatController struct {
	chatService service.IChatService
	logger      logger.ILogger
}

func NewChatController(chatService service.IChatService, log logger.ILogger) IChatController {
	return &chatController{
		chatService: chatService,
		logger:      log,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("", c.Chat)
	h.Post("/intent", c.Intent)
	h.Use("/ws", func(ctx *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(ctx) {
			return ctx.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	h.Get("/ws", websocket.New(c.ChatSocket))
}

// Chat streams the reply as chunked plain text. Failures after the stream
// started arrive as one line starting with "[ERROR] ".
func (c *chatController) Chat(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	// The writer below runs after this handler returns, so the stream gets
	// its own context; a failed flush means the client went away.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx.UserContext()))
	branch, chunks, err := c.chatService.Stream(streamCtx, &req)
	if err != nil {
		cancel()
		return err
	}

	ctx.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set("X-Accel-Buffering", "no")
	ctx.Set("X-Route-Branch", string(branch))

	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		for chunk := range chunks {
			if chunk.Text == "" {
				continue
			}
			if err := writeChunk(w, chunk.Text); err != nil {
				c.logger.Info("ChatController", "Client disconnected mid-stream", map[string]interface{}{
					"session_id": req.SessionId,
				})
				cancel()
				drainChunks(chunks)
				return
			}
		}
	})
	return nil
}

func (c *chatController) Intent(ctx *fiber.Ctx) error {
	var req dto.IntentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Intent recognized", dto.IntentResponse{
		Intent: c.chatService.Intent(req.Message),
	}))
}

// ChatSocket serves one request at a time per connection. Every reply ends
// with a "done" frame.
func (c *chatController) ChatSocket(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req dto.ChatRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			if c.writeFrame(conn, dto.ChatFrame{Type: "error", Content: "Invalid request body"}) != nil {
				return
			}
			continue
		}
		if err := serverutils.ValidateRequest(req); err != nil {
			_, message := serverutils.StatusFor(err)
			if c.writeFrame(conn, dto.ChatFrame{Type: "error", Content: message}) != nil {
				return
			}
			continue
		}

		if !c.streamFrames(conn, &req) {
			return
		}
	}
}

// streamFrames reports whether the connection is still usable.
func (c *chatController) streamFrames(conn *websocket.Conn, req *dto.ChatRequest) bool {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	branch, chunks, err := c.chatService.Stream(ctx, req)
	if err != nil {
		_, message := serverutils.StatusFor(err)
		return c.writeFrame(conn, dto.ChatFrame{Type: "error", Content: message}) == nil
	}

	for chunk := range chunks {
		frame := dto.ChatFrame{Type: "chunk", Content: chunk.Text}
		if chunk.Err != nil {
			frame.Type = "error"
		}
		if err := c.writeFrame(conn, frame); err != nil {
			cancel()
			drainChunks(chunks)
			return false
		}
	}

	return c.writeFrame(conn, dto.ChatFrame{Type: "done", Branch: string(branch)}) == nil
}

func (c *chatController) writeFrame(conn *websocket.Conn, frame dto.ChatFrame) error {
	return conn.WriteJSON(frame)
}

func writeChunk(w *bufio.Writer, text string) error {
	if _, err := w.WriteString(text); err != nil {
		return err
	}
	return w.Flush()
}

func drainChunks(ch <-chan llm.Chunk) {
	for range ch {
	}
}
