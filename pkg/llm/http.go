package llm

import (
	"net/http"
	"time"
)

// NewStreamingClient returns an HTTP client for streamed generations. The
// timeout bounds the wait for response headers only; once the backend starts
// answering, the body is read until it ends or the request context is done.
func NewStreamingClient(headerTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: transport}
}
