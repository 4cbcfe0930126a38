package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nexus-ai-be/pkg/llm"
	"nexus-ai-be/pkg/llm/openai"
)

// RemoteLoader attaches adapters on an inference server that supports
// dynamic LoRA loading (vLLM style /v1/load_lora_adapter). Generation then
// goes through the server's OpenAI compatible endpoint with the adapter name
// as the model.
type RemoteLoader struct {
	BaseURL       string
	APIKey        string
	StreamTimeout time.Duration
	Client        *http.Client
}

var _ Loader = &RemoteLoader{}

func NewRemoteLoader(baseURL, apiKey string, streamTimeout time.Duration) *RemoteLoader {
	return &RemoteLoader{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		APIKey:        apiKey,
		StreamTimeout: streamTimeout,
		Client:        &http.Client{},
	}
}

type loadRequest struct {
	LoraName string `json:"lora_name"`
	LoraPath string `json:"lora_path,omitempty"`
}

func (l *RemoteLoader) Load(ctx context.Context, desc Descriptor, baseModel string) (llm.Backend, error) {
	if err := l.post(ctx, "/v1/load_lora_adapter", loadRequest{LoraName: desc.Name, LoraPath: desc.Path}); err != nil {
		return nil, err
	}
	return openai.NewProvider("adapter", l.APIKey, l.BaseURL+"/v1", desc.Name, l.StreamTimeout), nil
}

func (l *RemoteLoader) Unload(ctx context.Context, desc Descriptor) error {
	return l.post(ctx, "/v1/unload_lora_adapter", loadRequest{LoraName: desc.Name})
}

func (l *RemoteLoader) post(ctx context.Context, path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if l.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.APIKey)
	}

	resp, err := l.Client.Do(req)
	if err != nil {
		return llm.TransportError("adapter", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return llm.NewBackendError("adapter", llm.ErrBackendUnavailable, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}
	return nil
}
