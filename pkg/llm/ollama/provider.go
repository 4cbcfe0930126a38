package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"nexus-ai-be/pkg/llm"
)

const backendName = "text"

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

// Ensure OllamaProvider implements Backend
var _ llm.Backend = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName string, timeout time.Duration) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		Client:    llm.NewStreamingClient(timeout),
	}
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature   float64 `json:"temperature,omitempty"`
	TopP          float64 `json:"top_p,omitempty"`
	NumPredict    int     `json:"num_predict,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// --- Interface Implementation ---

func (o *OllamaProvider) Name() string {
	return backendName
}

func (o *OllamaProvider) Stream(ctx context.Context, history []llm.Message, opts ...llm.Option) <-chan llm.Chunk {
	out := make(chan llm.Chunk)
	options := llm.Apply(llm.Options{Temperature: 0.7, TopP: 0.9}, opts...)

	go func() {
		defer close(out)
		if err := o.stream(ctx, history, options, out); err != nil {
			llm.Send(ctx, out, llm.Chunk{Err: err})
		}
	}()

	return out
}

func (o *OllamaProvider) stream(ctx context.Context, history []llm.Message, options llm.Options, out chan<- llm.Chunk) error {
	// 1. Map generic messages to Ollama messages
	ollamaMessages := make([]ollamaMessage, len(history))
	for i, msg := range history {
		ollamaMessages[i] = ollamaMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	// 2. Prepare Payload
	model := o.ModelName
	if options.Model != "" {
		model = options.Model
	}

	reqPayload := ollamaChatRequest{
		Model:    model,
		Messages: ollamaMessages,
		Stream:   true,
		Options: &ollamaOptions{
			Temperature:   options.Temperature,
			TopP:          options.TopP,
			NumPredict:    options.MaxTokens,
			RepeatPenalty: 1.1,
		},
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	// 3. Send Request
	url := o.BaseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return llm.TransportError(backendName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError(resp.StatusCode, bodyBytes)
	}

	// 4. Read NDJSON frames; a frame is only forwarded once fully decoded
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var frame ollamaChatResponse
		if err := json.Unmarshal(line, &frame); err != nil {
			return llm.NewBackendError(backendName, llm.ErrBackendMalformedResponse, fmt.Errorf("decode frame: %w", err))
		}
		if frame.Error != "" {
			return llm.NewBackendError(backendName, llm.ErrBackendMalformedResponse, fmt.Errorf("ollama error: %s", frame.Error))
		}
		if frame.Message.Content != "" {
			if !llm.Send(ctx, out, llm.Chunk{Text: frame.Message.Content}) {
				return nil
			}
		}
		if frame.Done {
			return nil
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return llm.TransportError(backendName, err)
	}
	return llm.NewBackendError(backendName, llm.ErrBackendMalformedResponse, fmt.Errorf("stream ended before done frame"))
}

// Ping checks that the Ollama server answers.
func (o *OllamaProvider) Ping(ctx context.Context) error {
	_, err := o.ListModels(ctx)
	return err
}

// ListModels returns the model tags installed on the Ollama server.
func (o *OllamaProvider) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", o.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, llm.TransportError(backendName, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.TransportError(backendName, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, bodyBytes)
	}

	var tags ollamaTagsResponse
	if err := json.Unmarshal(bodyBytes, &tags); err != nil {
		return nil, llm.NewBackendError(backendName, llm.ErrBackendMalformedResponse, err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func statusError(status int, body []byte) error {
	class := llm.ErrBackendMalformedResponse
	if status == http.StatusServiceUnavailable || status == http.StatusBadGateway {
		class = llm.ErrBackendUnavailable
	}
	return llm.NewBackendError(backendName, class, fmt.Errorf("ollama error: status %d, body: %s", status, string(body)))
}
