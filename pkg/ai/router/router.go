package router

import (
	"context"
	"strings"
	"time"

	"nexus-ai-be/internal/metrics"
	"nexus-ai-be/internal/pkg/logger"
	"nexus-ai-be/pkg/adapter"
	"nexus-ai-be/pkg/ai/pipeline"
	"nexus-ai-be/pkg/ai/stream"
	"nexus-ai-be/pkg/llm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const module = "BackendRouter"

// AdapterSource hands out ready adapter handles, loading on demand.
type AdapterSource interface {
	Load(ctx context.Context, adapterID, baseModel string) (*adapter.Handle, error)
}

// Retriever decides whether a query needs the document index and answers
// from it.
type Retriever interface {
	ShouldRetrieve(query string) bool
	Answer(ctx context.Context, query string, history []llm.Message, opts ...llm.Option) (<-chan llm.Chunk, error)
}

type Config struct {
	HistoryCap      int
	BaseModel       string
	VisionElaborate bool
	Pacing          time.Duration
}

// Request is one inbound chat turn with the history that precedes it.
type Request struct {
	SessionID          string
	Message            string
	Type               RequestType
	Attachment         *llm.Attachment
	ExtractedText      string
	DocumentType       string
	ContextInstruction string
	AdapterID          string
	History            []llm.Message
}

// Router selects one backend path per request and streams its answer.
type Router struct {
	text      llm.Backend
	adapters  AdapterSource
	retriever Retriever

	chat     *pipeline.ChatPipeline
	document *pipeline.DocumentPipeline
	vision   *pipeline.VisionPipeline
	fallback *FallbackController

	cfg    Config
	logger logger.ILogger
	tracer trace.Tracer
}

// NewRouter wires the router. vision, adapters and retriever may be nil; the
// matching branches are then never taken (or fail with a clear error line).
func NewRouter(
	text llm.Backend,
	vision llm.Backend,
	adapters AdapterSource,
	retriever Retriever,
	cfg Config,
	log logger.ILogger,
) *Router {
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = 10
	}
	if vision == nil {
		vision = unavailableBackend{name: "vision"}
	}
	return &Router{
		text:      text,
		adapters:  adapters,
		retriever: retriever,
		chat:      pipeline.NewChatPipeline(cfg.HistoryCap, log),
		document:  pipeline.NewDocumentPipeline(cfg.HistoryCap),
		vision:    pipeline.NewVisionPipeline(vision, text, cfg.VisionElaborate, cfg.HistoryCap, log),
		fallback:  NewFallbackController(log),
		cfg:       cfg,
		logger:    log,
		tracer:    otel.Tracer("nexus-ai-be/router"),
	}
}

// Route answers req. The returned stream carries word fragments and, on
// failure, one terminal fragment starting with ErrorPrefix.
func (r *Router) Route(ctx context.Context, req Request) (Branch, <-chan llm.Chunk) {
	parsed := Parse(req.Message)
	query := parsed.CleanPrompt

	adapterID := strings.TrimSpace(req.AdapterID)
	if adapterID == "" {
		adapterID = parsed.AdapterID
	}

	if parsed.IsEmpty() && (parsed.Bypass || parsed.AdapterID != "") && req.Attachment == nil && req.ExtractedText == "" {
		return BranchText, stream.Words(ctx, llm.Static(ctx, helpMessage(parsed)), r.cfg.Pacing)
	}

	ctx, span := r.tracer.Start(ctx, "router.Route", trace.WithAttributes(
		attribute.String("request.type", string(req.Type)),
		attribute.String("session.id", req.SessionID),
	))

	handle := r.acquireAdapter(ctx, adapterID)
	if ctx.Err() != nil {
		span.End()
		return BranchText, llm.Failed(ctx.Err())
	}

	retrievalWanted := !parsed.Bypass && r.retriever != nil && r.retriever.ShouldRetrieve(query)

	branch := Select(Inputs{
		HasAdapterID:     adapterID != "",
		AdapterReady:     handle != nil,
		Type:             req.Type,
		HasExtractedText: strings.TrimSpace(req.ExtractedText) != "",
		RetrievalWanted:  retrievalWanted,
	})

	metrics.RouteBranchTotal.WithLabelValues(string(branch)).Inc()
	if adapterID != "" && handle == nil {
		metrics.FallbackTotal.WithLabelValues(string(BranchAdapter), string(branch)).Inc()
	}
	span.SetAttributes(attribute.String("route.branch", string(branch)))

	r.logger.Info(module, "Request routed", map[string]interface{}{
		"session_id": req.SessionID,
		"type":       req.Type,
		"branch":     branch,
		"adapter_id": adapterID,
		"bypass":     parsed.Bypass,
	})

	plan := r.plan(branch, req, query, handle)
	plan.OnFinish = func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, llm.Class(err))
		}
		span.End()
	}

	return branch, stream.Words(ctx, r.fallback.Execute(ctx, plan), r.cfg.Pacing)
}

// acquireAdapter loads the requested adapter. Unknown or failing adapters
// are logged and the request continues without one.
func (r *Router) acquireAdapter(ctx context.Context, adapterID string) *adapter.Handle {
	if adapterID == "" || r.adapters == nil {
		return nil
	}
	handle, err := r.adapters.Load(ctx, adapterID, r.cfg.BaseModel)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn(module, "Adapter unavailable, continuing without it", map[string]interface{}{
				"adapter_id": adapterID,
				"error":      err.Error(),
			})
		}
		return nil
	}
	return handle
}

func (r *Router) plan(branch Branch, req Request, query string, handle *adapter.Handle) Plan {
	system := SystemPrompt(req.Type)
	opts := GenerationOptions(req.Type)

	content := query
	if req.ContextInstruction != "" {
		content = req.ContextInstruction + "\n\nUser question: " + query
	}
	current := llm.Message{Role: llm.RoleUser, Content: content, Attachment: req.Attachment}

	fileName := ""
	if req.Attachment != nil {
		fileName = req.Attachment.Name
	}

	text := Attempt{
		Branch:    BranchText,
		Subsystem: "text",
		Run: func(ctx context.Context) (<-chan llm.Chunk, error) {
			plain := current
			plain.Attachment = nil
			return r.chat.Execute(ctx, r.text, system, req.History, plain, opts...), nil
		},
	}

	plan := Plan{Primary: text, FileName: fileName}

	switch branch {
	case BranchAdapter:
		plan.Primary = Attempt{
			Branch:    BranchAdapter,
			Subsystem: "adapter",
			Run: func(ctx context.Context) (<-chan llm.Chunk, error) {
				plain := current
				plain.Attachment = nil
				return r.chat.Execute(ctx, handle, system, req.History, plain, opts...), nil
			},
		}
		plan.Secondary = &text

	case BranchDocument:
		doc := pipeline.Document{Name: fileName, Type: req.DocumentType, Text: req.ExtractedText}
		plan.Primary = Attempt{
			Branch:    BranchDocument,
			Subsystem: "text",
			Run: func(ctx context.Context) (<-chan llm.Chunk, error) {
				return r.document.Execute(ctx, r.text, system, req.History, doc, query, opts...), nil
			},
		}

	case BranchRetrieval:
		plan.Primary = Attempt{
			Branch:    BranchRetrieval,
			Subsystem: "retrieval",
			Run: func(ctx context.Context) (<-chan llm.Chunk, error) {
				return r.retriever.Answer(ctx, query, req.History, opts...)
			},
		}
		plan.Secondary = &text

	case BranchImage:
		plan.Primary = Attempt{
			Branch:    BranchImage,
			Subsystem: "vision",
			Run: func(ctx context.Context) (<-chan llm.Chunk, error) {
				return r.vision.Execute(ctx, system, req.History, current, opts...), nil
			},
		}
	}

	return plan
}

// unavailableBackend stands in for a backend that is not configured.
type unavailableBackend struct {
	name string
}

func (b unavailableBackend) Name() string { return b.name }

func (b unavailableBackend) Stream(context.Context, []llm.Message, ...llm.Option) <-chan llm.Chunk {
	return llm.Failed(llm.NewBackendError(b.name, llm.ErrBackendUnavailable, nil))
}
