package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nexus-ai-be/pkg/llm"
)

// Provider talks to any OpenAI compatible chat completions endpoint
// (vLLM, TGI, the Hugging Face router). Adapter-backed models are served this
// way with the adapter name as the model.
type Provider struct {
	name    string
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

var _ llm.Backend = &Provider{}

// Request Payload Structure (OpenAI Compatible)
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewProvider(name, apiKey, baseURL, model string, timeout time.Duration) *Provider {
	if baseURL == "" {
		baseURL = "https://router.huggingface.co/v1" // Default Router URL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Provider{
		name:    name,
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  llm.NewStreamingClient(timeout),
	}
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) Model() string {
	return p.model
}

func (p *Provider) Stream(ctx context.Context, history []llm.Message, options ...llm.Option) <-chan llm.Chunk {
	out := make(chan llm.Chunk)
	opts := llm.Apply(llm.Options{
		Model:       p.model,
		MaxTokens:   500, // Default sane limit
		Temperature: 0.7,
		TopP:        0.9,
	}, options...)

	go func() {
		defer close(out)
		if err := p.stream(ctx, history, opts, out); err != nil {
			llm.Send(ctx, out, llm.Chunk{Err: err})
		}
	}()

	return out
}

func (p *Provider) stream(ctx context.Context, history []llm.Message, opts llm.Options, out chan<- llm.Chunk) error {
	messages := make([]chatMessage, len(history))
	for i, m := range history {
		messages[i] = chatMessage{Role: string(m.Role), Content: m.Content}
	}

	reqBody := chatRequest{
		Model:       opts.Model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		Stream:      true,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if p.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return llm.TransportError(p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		class := llm.ErrBackendMalformedResponse
		if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusBadGateway {
			class = llm.ErrBackendUnavailable
		}
		return llm.NewBackendError(p.name, class, fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(bodyBytes)))
	}

	// Server-sent events: "data: {json}" lines terminated by "data: [DONE]"
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			return nil
		}

		var frame streamResponse
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			return llm.NewBackendError(p.name, llm.ErrBackendMalformedResponse, fmt.Errorf("failed to decode event: %w", err))
		}
		if frame.Error != nil {
			return llm.NewBackendError(p.name, llm.ErrBackendMalformedResponse, fmt.Errorf("api returned error: %s", frame.Error.Message))
		}
		for _, choice := range frame.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if !llm.Send(ctx, out, llm.Chunk{Text: choice.Delta.Content}) {
				return nil
			}
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return llm.TransportError(p.name, err)
	}
	return llm.NewBackendError(p.name, llm.ErrBackendMalformedResponse, fmt.Errorf("event stream ended without [DONE]"))
}
