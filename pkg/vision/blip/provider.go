// Package blip is a client for the BLIP image-captioning server.
package blip

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
)

const backendName = "vision"

// Provider sends an image reference (and optional question) to the BLIP
// server's /analyze endpoint. The caption arrives in one piece, so the stream
// carries either one text chunk or one terminal error.
type Provider struct {
	BaseURL string
	Client  *http.Client
}

var _ llm.Backend = &Provider{}

func NewProvider(baseURL string, timeout time.Duration) *Provider {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:5001"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Provider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	ImageURL string `json:"image_url"`
	Question string `json:"question,omitempty"`
}

type analyzeResponse struct {
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

func (p *Provider) Name() string {
	return backendName
}

func (p *Provider) Stream(ctx context.Context, history []llm.Message, _ ...llm.Option) <-chan llm.Chunk {
	out := make(chan llm.Chunk, 1)

	go func() {
		defer close(out)
		caption, err := p.analyze(ctx, history)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			llm.Send(ctx, out, llm.Chunk{Err: err})
			return
		}
		llm.Send(ctx, out, llm.Chunk{Text: caption})
	}()

	return out
}

func (p *Provider) analyze(ctx context.Context, history []llm.Message) (string, error) {
	imageURL, question := lastImage(history)
	if imageURL == "" {
		return "", llm.NewBackendError(backendName, llm.ErrBackendMalformedResponse, fmt.Errorf("no image attached to the conversation"))
	}

	payload, err := json.Marshal(analyzeRequest{ImageURL: imageURL, Question: question})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.BaseURL+"/analyze", bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", llm.TransportError(backendName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llm.TransportError(backendName, err)
	}

	if resp.StatusCode != http.StatusOK {
		class := llm.ErrBackendMalformedResponse
		if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusBadGateway {
			class = llm.ErrBackendUnavailable
		}
		return "", llm.NewBackendError(backendName, class, fmt.Errorf("blip error: HTTP %d - %s", resp.StatusCode, string(body)))
	}

	var result analyzeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", llm.NewBackendError(backendName, llm.ErrBackendMalformedResponse, fmt.Errorf("decode response: %w", err))
	}
	if result.Error != "" {
		return "", llm.NewBackendError(backendName, llm.ErrBackendMalformedResponse, fmt.Errorf("blip error: %s", result.Error))
	}
	if strings.TrimSpace(result.Result) == "" {
		return "", llm.NewBackendError(backendName, llm.ErrBackendMalformedResponse, fmt.Errorf("empty caption"))
	}
	return result.Result, nil
}

// Ping calls the BLIP health endpoint.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", p.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return llm.TransportError(backendName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return llm.NewBackendError(backendName, llm.ErrBackendUnavailable, fmt.Errorf("health status %d", resp.StatusCode))
	}
	return nil
}

// lastImage finds the most recent image attachment and the question that
// came with it. Upload placeholders are not forwarded as questions.
func lastImage(history []llm.Message) (url, question string) {
	for i := len(history) - 1; i >= 0; i-- {
		att := history[i].Attachment
		if att == nil || att.URL == "" || (att.Kind != "" && att.Kind != "image") {
			continue
		}
		question = strings.TrimSpace(history[i].Content)
		if strings.HasPrefix(question, "Uploaded image:") {
			question = ""
		}
		return att.URL, question
	}
	return "", ""
}
