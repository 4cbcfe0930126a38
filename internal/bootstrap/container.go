package bootstrap

import (
	"context"
	"time"

	"nexus-ai-be/internal/config"
	"nexus-ai-be/internal/controller"
	"nexus-ai-be/internal/pkg/logger"
	"nexus-ai-be/internal/repository/contract"
	"nexus-ai-be/internal/repository/implementation"
	"nexus-ai-be/internal/repository/memory"
	"nexus-ai-be/internal/service"
	"nexus-ai-be/internal/websocket"
	"nexus-ai-be/pkg/adapter"
	"nexus-ai-be/pkg/ai/pipeline"
	"nexus-ai-be/pkg/ai/router"
	"nexus-ai-be/pkg/embedding"
	"nexus-ai-be/pkg/events"
	"nexus-ai-be/pkg/llm/factory"
	pktNats "nexus-ai-be/pkg/nats"
	"nexus-ai-be/pkg/rag"
	"nexus-ai-be/pkg/vision/blip"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	adapterEventsTopic = "adapter_events"
	similarityFloor    = 0.3
)

type Container struct {
	// Controllers
	ChatController   controller.IChatController
	ModelController  controller.IModelController
	AdminController  controller.IAdminController
	HealthController controller.IHealthController

	// Background Services (started by Start)
	ConsumerService service.IConsumerService
	WebSocketHub    *websocket.Hub

	closers []func()
}

// NewContainer wires the gateway. db may be nil, in which case retrieval is
// disabled and every request is answered by the model backends.
func NewContainer(db *gorm.DB, cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	c := &Container{}

	// 1. Event Bus
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	publishers := []events.Publisher{events.NewWatermillPublisher(adapterEventsTopic, pubSub)}
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			sysLogger.Warn("Container", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
		} else {
			publishers = append(publishers, natsPub)
			c.closers = append(c.closers, natsPub.Close)
		}
	}
	bus := events.NewBus(publishers...)

	// 2. Redis (optional: shared sessions and cross-instance admin events)
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			sysLogger.Warn("Container", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			sysLogger.Warn("Container", "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
		}
		cancel()
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	// 3. Backends
	text, err := factory.NewTextBackend(cfg.AI.LLMProvider, cfg.AI.LLMModel, cfg.AI.LLMBaseURL, cfg.AI.LLMAPIKey, cfg.AI.RequestTimeout)
	if err != nil {
		return nil, err
	}
	sysLogger.Info("Container", "Text backend ready", map[string]interface{}{
		"provider": cfg.AI.LLMProvider,
		"model":    cfg.AI.LLMModel,
	})

	vision := blip.NewProvider(cfg.AI.VisionBaseURL, cfg.AI.RequestTimeout)

	adapters := adapter.NewManager(
		cfg.Adapter.Root,
		adapter.NewRemoteLoader(cfg.Adapter.ServerURL, cfg.Adapter.APIKey, cfg.AI.RequestTimeout),
		sysLogger,
		adapter.WithEvents(bus),
		adapter.WithLoadTimeout(cfg.Adapter.LoadTimeout),
		adapter.WithDefaultBaseModel(cfg.AI.LLMModel),
	)

	// 4. Retrieval
	var retriever router.Retriever
	if db != nil && cfg.RAG.Enabled {
		embedder := embedding.NewOllamaProvider(cfg.AI.OllamaBaseURL, cfg.AI.EmbeddingModel, cfg.AI.RequestTimeout)
		store := service.NewDocumentStore(implementation.NewDocumentChunkRepository(db), similarityFloor)
		engine := rag.NewEngine(embedder, store, text, cfg.RAG.TopK, sysLogger)
		gate := rag.NewGate(cfg.RAG.Keywords, cfg.RAG.MinQuestionWords)
		retriever = pipeline.NewRetrievalPipeline(gate, engine, cfg.Session.WindowCap)
	} else {
		sysLogger.Info("Container", "Retrieval disabled", map[string]interface{}{
			"database": db != nil,
			"enabled":  cfg.RAG.Enabled,
		})
	}

	backendRouter := router.NewRouter(text, vision, adapters, retriever, router.Config{
		HistoryCap:      cfg.Session.WindowCap,
		BaseModel:       cfg.AI.LLMModel,
		VisionElaborate: cfg.AI.VisionElaborate,
		Pacing:          cfg.Stream.Pacing,
	}, sysLogger)

	// 5. Sessions
	var sessions contract.SessionRepository
	if cfg.Session.Store == "redis" && rdb != nil {
		sessions = implementation.NewRedisSessionRepository(rdb, cfg.Session.HistoryCap, cfg.Session.TTL)
	} else {
		if cfg.Session.Store == "redis" {
			sysLogger.Warn("Container", "SESSION_STORE=redis without REDIS_URL, using memory store", nil)
		}
		sessions = memory.NewSessionRepository(cfg.Session.HistoryCap, cfg.Session.TTL)
	}

	// 6. Admin events
	eventLogger := logger.NewIsolatedLogger(cfg.App.EventLogFilePath)
	c.WebSocketHub = websocket.NewHub(rdb, sysLogger)
	c.ConsumerService = service.NewConsumerService(pubSub, adapterEventsTopic, c.WebSocketHub, eventLogger)

	// 7. Services
	var textPinger service.Pinger
	if p, ok := text.(service.Pinger); ok {
		textPinger = p
	}
	chatService := service.NewChatService(backendRouter, sessions, sysLogger)
	modelService := service.NewModelService(adapters, cfg.AI.LLMModel, textPinger, vision, sysLogger)
	logService := service.NewLogService(sysLogger)

	// 8. Controllers
	c.ChatController = controller.NewChatController(chatService, sysLogger)
	c.ModelController = controller.NewModelController(modelService, c.WebSocketHub, cfg.App.JwtSecret, sysLogger)
	c.AdminController = controller.NewAdminController(logService, cfg.App.JwtSecret)
	c.HealthController = controller.NewHealthController(modelService)

	return c, nil
}

// Start runs the background workers until ctx is done.
func (c *Container) Start(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx)
	return c.ConsumerService.Consume(ctx)
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
