// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package relay forwards chat requests to OpenAI-style and Ollama-style
// provider APIs. It exposes three transport-agnostic operations: a
// single-shot forwarder, a re-framing SSE streamer, and a model lister.
// Callers decide how results travel onward (terminal, HTTP, events).
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

const (
	// DefaultChatTimeout bounds a whole chat call, including every
	// incremental read of a streaming response.
	DefaultChatTimeout = 300 * time.Second

	// DefaultListTimeout bounds a model-listing call.
	DefaultListTimeout = 30 * time.Second
)

// Config holds configuration options for the relay client.
type Config struct {
	// ChatTimeout for forwarding and streaming calls (default: 300s)
	ChatTimeout time.Duration

	// ListTimeout for model-listing calls (default: 30s)
	ListTimeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		ChatTimeout: DefaultChatTimeout,
		ListTimeout: DefaultListTimeout,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client relays chat traffic to a caller-chosen upstream endpoint.
// Unlike a provider SDK it holds no base URL; every call names its
// endpoint, so one Client serves any number of providers concurrently.
//
// The Client is safe for concurrent use.
type Client struct {
	config *Config
}

// NewClient creates a relay client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a relay client with custom configuration.
func NewClientWithConfig(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.ChatTimeout == 0 {
		config.ChatTimeout = DefaultChatTimeout
	}
	if config.ListTimeout == 0 {
		config.ListTimeout = DefaultListTimeout
	}

	return &Client{config: config}
}

// =============================================================================
// FORWARDING
// =============================================================================

// Forward sends one non-streaming chat request and returns the extracted
// assistant text. The bearer key is attached only when non-empty. A non-2xx
// status fails with an upstream error carrying the status and body text.
func (c *Client) Forward(ctx context.Context, endpoint, apiKey string, chatReq ChatRequest) (string, error) {
	payload, err := json.Marshal(chatReq)
	if err != nil {
		return "", transportError("failed to marshal request", err)
	}

	req, err := newProxyRequest(ctx, http.MethodPost, endpoint, apiKey, bytes.NewReader(payload))
	if err != nil {
		return "", transportError("failed to create request", err)
	}

	resp, err := newHTTPClient(c.config.ChatTimeout).Do(req)
	if err != nil {
		return "", transportError("request failed", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return "", readUpstreamError(resp)
	}

	var parsed ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", decodeError(err)
	}

	return parsed.ExtractContent(), nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// newHTTPClient returns a fresh client scoped to a single call, matching
// the per-call timeout contract. Connections are still pooled through the
// shared default transport.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// newProxyRequest builds an upstream request with the relay's standard
// headers. The Authorization header is present iff apiKey is non-empty.
func newProxyRequest(ctx context.Context, method, endpoint, apiKey string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	return req, nil
}

// isSuccess reports whether status is in the 2xx range.
func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// readUpstreamError turns a non-2xx response into an upstream error.
// The body text is best-effort; a placeholder stands in when the read fails.
func readUpstreamError(resp *http.Response) error {
	text := errBodyPlaceholder
	if body, err := io.ReadAll(resp.Body); err == nil {
		text = string(body)
	}
	return upstreamError(resp.StatusCode, text)
}
