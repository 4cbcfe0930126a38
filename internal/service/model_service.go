package service

import (
	"context"
	"errors"
	"time"

	"nexus-ai-be/internal/dto"
	"nexus-ai-be/internal/pkg/logger"
	"nexus-ai-be/pkg/adapter"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
)

const modelModule = "ModelService"

// AdapterRegistry is the adapter lifecycle surface the admin API exposes.
type AdapterRegistry interface {
	ListAvailable(ctx context.Context) ([]adapter.Descriptor, error)
	Load(ctx context.Context, adapterID, baseModel string) (*adapter.Handle, error)
	LoadPath(ctx context.Context, path, baseModel string) (*adapter.Handle, error)
	Unload(ctx context.Context, adapterID string) error
	Loaded() []*adapter.Handle
	Status(adapterID string) adapter.State
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type IModelService interface {
	ListLoaded(ctx context.Context) []dto.LoadedModelResponse
	ListAvailable(ctx context.Context) ([]dto.AvailableAdapterResponse, error)
	Load(ctx context.Context, req *dto.LoadAdapterRequest) (*dto.LoadedModelResponse, error)
	Unload(ctx context.Context, modelID string) error
	Status(ctx context.Context, modelID string) dto.ModelStatusResponse
	Health(ctx context.Context) dto.HealthResponse
}

type modelService struct {
	adapters  AdapterRegistry
	baseModel string
	text      Pinger
	vision    Pinger
	startedAt time.Time
	logger    logger.ILogger
}

// NewModelService builds the admin model service. text and vision may be nil
// when the backend cannot be probed.
func NewModelService(adapters AdapterRegistry, baseModel string, text, vision Pinger, log logger.ILogger) IModelService {
	return &modelService{
		adapters:  adapters,
		baseModel: baseModel,
		text:      text,
		vision:    vision,
		startedAt: time.Now(),
		logger:    log,
	}
}

func (s *modelService) baseID() string {
	return "base_" + s.baseModel
}

// ListLoaded returns the base model first, then loaded adapters oldest first.
func (s *modelService) ListLoaded(_ context.Context) []dto.LoadedModelResponse {
	startedAt := s.startedAt
	models := []dto.LoadedModelResponse{{
		Id:         s.baseID(),
		Name:       s.baseModel,
		Type:       "base",
		Status:     "loaded",
		LoadedAt:   &startedAt,
		Unloadable: false,
	}}
	for _, h := range s.adapters.Loaded() {
		models = append(models, handleResponse(h))
	}
	return models
}

func (s *modelService) ListAvailable(ctx context.Context) ([]dto.AvailableAdapterResponse, error) {
	descriptors, err := s.adapters.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]dto.AvailableAdapterResponse, 0, len(descriptors))
	for _, d := range descriptors {
		res = append(res, dto.AvailableAdapterResponse{
			Id:        d.ID(),
			Name:      d.Name,
			Path:      d.Path,
			BaseModel: d.BaseModel,
			SizeBytes: d.SizeBytes,
			CreatedAt: d.CreatedAt,
			TrainLoss: d.TrainLoss,
			Loaded:    s.adapters.Status(d.Name) == adapter.StateReady,
		})
	}
	return res, nil
}

func (s *modelService) Load(ctx context.Context, req *dto.LoadAdapterRequest) (*dto.LoadedModelResponse, error) {
	var (
		handle *adapter.Handle
		err    error
	)
	switch {
	case req.AdapterPath != "":
		handle, err = s.adapters.LoadPath(ctx, req.AdapterPath, req.BaseModel)
	case req.AdapterId != "":
		handle, err = s.adapters.Load(ctx, req.AdapterId, req.BaseModel)
	default:
		return nil, fiber.NewError(fiber.StatusBadRequest, "adapter_path or adapter_id is required")
	}
	if err != nil {
		s.logger.Warn(modelModule, "Adapter load rejected", map[string]interface{}{
			"adapter_id":   req.AdapterId,
			"adapter_path": req.AdapterPath,
			"error":        err.Error(),
		})
		return nil, err
	}

	res := handleResponse(handle)
	return &res, nil
}

func (s *modelService) Unload(ctx context.Context, modelID string) error {
	if modelID == s.baseID() || modelID == s.baseModel {
		return fiber.NewError(fiber.StatusBadRequest, "the base model cannot be unloaded")
	}
	if err := s.adapters.Unload(ctx, modelID); err != nil {
		if errors.Is(err, adapter.ErrAdapterNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Model "+modelID+" not found")
		}
		return err
	}
	return nil
}

func (s *modelService) Status(_ context.Context, modelID string) dto.ModelStatusResponse {
	if modelID == s.baseID() {
		startedAt := s.startedAt
		return dto.ModelStatusResponse{Id: modelID, Status: "loaded", Type: "base", LoadedAt: &startedAt}
	}

	switch s.adapters.Status(modelID) {
	case adapter.StateReady:
		for _, h := range s.adapters.Loaded() {
			if h.Descriptor.Name == adapter.NormalizeID(modelID) {
				loadedAt := h.LoadedAt
				return dto.ModelStatusResponse{
					Id:             h.ID(),
					Status:         "loaded",
					Type:           "lora",
					MemoryEstimate: h.MemoryEstimate,
					LoadedAt:       &loadedAt,
				}
			}
		}
		// unloaded between the two reads
		return dto.ModelStatusResponse{Id: modelID, Status: "not_found"}
	case adapter.StateLoading:
		return dto.ModelStatusResponse{Id: modelID, Status: "loading", Type: "lora"}
	case adapter.StateUnloading:
		return dto.ModelStatusResponse{Id: modelID, Status: "unloading", Type: "lora"}
	default:
		return dto.ModelStatusResponse{Id: modelID, Status: "not_found"}
	}
}

// Health probes the text and vision backends concurrently. The gateway is
// degraded, not down, when a backend is unreachable.
func (s *modelService) Health(ctx context.Context) dto.HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	probes := map[string]Pinger{"text": s.text, "vision": s.vision}
	results := make(map[string]string, len(probes))
	statuses := make([]string, len(probes))
	names := make([]string, 0, len(probes))

	g, gctx := errgroup.WithContext(ctx)
	i := 0
	for name, p := range probes {
		names = append(names, name)
		idx, p := i, p
		i++
		if p == nil {
			statuses[idx] = "unknown"
			continue
		}
		g.Go(func() error {
			if err := p.Ping(gctx); err != nil {
				statuses[idx] = "unavailable"
				return nil
			}
			statuses[idx] = "ok"
			return nil
		})
	}
	_ = g.Wait()

	status := "healthy"
	for idx, name := range names {
		results[name] = statuses[idx]
		if statuses[idx] == "unavailable" {
			status = "degraded"
		}
	}

	return dto.HealthResponse{
		Status:         status,
		Timestamp:      time.Now(),
		Services:       results,
		LoadedAdapters: len(s.adapters.Loaded()),
	}
}

func handleResponse(h *adapter.Handle) dto.LoadedModelResponse {
	loadedAt := h.LoadedAt
	return dto.LoadedModelResponse{
		Id:             h.ID(),
		Name:           h.Descriptor.Name,
		Type:           "lora",
		BaseModel:      h.BaseModel,
		Status:         "loaded",
		MemoryEstimate: h.MemoryEstimate,
		LoadedAt:       &loadedAt,
		Unloadable:     true,
	}
}
