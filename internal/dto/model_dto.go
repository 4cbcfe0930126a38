package dto

import "time"

type LoadAdapterRequest struct {
	AdapterId   string `json:"adapter_id"`
	AdapterPath string `json:"adapter_path"`
	BaseModel   string `json:"base_model"`
}

type UnloadModelRequest struct {
	ModelId string `json:"model_id" validate:"required"`
}

type LoadedModelResponse struct {
	Id             string     `json:"id"`
	Name           string     `json:"name"`
	Type           string     `json:"type"` // "base" | "lora"
	BaseModel      string     `json:"base_model,omitempty"`
	Status         string     `json:"status"`
	MemoryEstimate int64      `json:"memory_usage"`
	LoadedAt       *time.Time `json:"loaded_at,omitempty"`
	Unloadable     bool       `json:"unloadable"`
}

type AvailableAdapterResponse struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	BaseModel string    `json:"base_model,omitempty"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	TrainLoss *float64  `json:"train_loss,omitempty"`
	Loaded    bool      `json:"loaded"`
}

type ModelStatusResponse struct {
	Id             string     `json:"id"`
	Status         string     `json:"status"` // "loaded" | "loading" | "unloading" | "not_found"
	Type           string     `json:"type,omitempty"`
	MemoryEstimate int64      `json:"memory_usage,omitempty"`
	LoadedAt       *time.Time `json:"loaded_at,omitempty"`
}

type HealthResponse struct {
	Status         string            `json:"status"` // "healthy" | "degraded"
	Timestamp      time.Time         `json:"timestamp"`
	Services       map[string]string `json:"services"`
	LoadedAdapters int               `json:"loaded_adapters"`
}
