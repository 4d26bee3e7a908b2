// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jeranaias/rigrelay/internal/relay"
	"github.com/jeranaias/rigrelay/internal/stats"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultPort is the default port for the relay server.
	DefaultPort = 8080

	// MaxRequestBodySize is the maximum size for a request body (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// Version is the relay server version.
	Version = "0.3.0"
)

// ============================================================================
// REQUEST & RESPONSE TYPES
// ============================================================================

// ProxyChatRequest is the body for POST /chat and POST /chat/stream. The
// caller supplies the upstream endpoint and key with every request.
type ProxyChatRequest struct {
	APIEndpoint string            `json:"api_endpoint"`
	APIKey      string            `json:"api_key"`
	Request     relay.ChatRequest `json:"request"`
}

// ProxyModelsRequest is the body for POST /models.
type ProxyModelsRequest struct {
	APIEndpoint string `json:"api_endpoint"`
	APIKey      string `json:"api_key"`
}

// ChatResponse is the success body for POST /chat.
type ChatResponse struct {
	Content string `json:"content"`
}

// ModelsResponse is the success body for POST /models.
type ModelsResponse struct {
	Models []string `json:"models"`
}

// ErrorResponse is the body for any failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body for GET /healthz.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	UptimeSecs int64  `json:"uptime_secs"`
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the relay HTTP server.
type Server struct {
	relay   *relay.Client
	store   *stats.Store
	limiter *RateLimiter
	router  *http.ServeMux
	started time.Time
}

// New creates a relay server around the given upstream client.
func New(client *relay.Client) *Server {
	s := &Server{
		relay:   client,
		router:  http.NewServeMux(),
		started: time.Now(),
	}
	s.setupRoutes()
	return s
}

// WithStats attaches a usage log. Without one, recording is disabled and
// GET /stats returns 503.
func (s *Server) WithStats(store *stats.Store) *Server {
	s.store = store
	return s
}

// WithRateLimit attaches a request rate limit. A perSecond of zero or less
// removes any limit. Takes effect the next time Handler is called.
func (s *Server) WithRateLimit(perSecond float64, burst int) *Server {
	if perSecond > 0 {
		s.limiter = NewRateLimiter(perSecond, burst)
	} else {
		s.limiter = nil
	}
	return s
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST /chat", s.handleChat)
	s.router.HandleFunc("POST /chat/stream", s.handleChatStream)
	s.router.HandleFunc("POST /models", s.handleModels)
	s.router.HandleFunc("GET /healthz", s.handleHealth)
	s.router.HandleFunc("GET /stats", s.handleStats)
}

// Handler returns the router wrapped in the full middleware chain.
// Preflight OPTIONS requests are answered by the CORS middleware before
// the method-scoped routes would reject them.
func (s *Server) Handler() http.Handler {
	middleware := Chain(
		RecoveryMiddleware,
		LoggingMiddleware,
		CORSMiddleware(DefaultCORSConfig()),
		RateLimitMiddleware(s.limiter),
	)
	return middleware(s.router)
}

// ============================================================================
// HANDLERS
// ============================================================================

// handleChat handles POST /chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	content, err := s.relay.Forward(r.Context(), req.APIEndpoint, req.APIKey, req.Request)
	s.record(stats.RequestStat{
		Kind:     stats.KindChat,
		Model:    req.Request.Model,
		Status:   statusOf(err),
		Duration: time.Since(start),
		Bytes:    len(content),
	})

	if err != nil {
		log.Printf("CHAT_ERROR | model=%s error=%v", req.Request.Model, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Content: content})
}

// handleChatStream handles POST /chat/stream.
//
// On success the response is a text/event-stream whose body is exactly the
// re-framed upstream SSE bytes, written and flushed chunk by chunk with no
// extra buffering. A failure before the upstream call starts comes back as
// a JSON error with status 500. A failure mid-stream aborts the connection
// so the client sees a truncated body instead of a clean end.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	chunks, err := s.relay.OpenStream(r.Context(), req.APIEndpoint, req.APIKey, req.Request)
	if err != nil {
		s.record(stats.RequestStat{
			Kind:     stats.KindStream,
			Model:    req.Request.Model,
			Status:   stats.StatusError,
			Duration: time.Since(start),
		})
		log.Printf("STREAM_ERROR | model=%s error=%v", req.Request.Model, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported by connection")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var (
		chunkCount int
		byteCount  int
		streamErr  error
	)
	defer func() {
		s.record(stats.RequestStat{
			Kind:     stats.KindStream,
			Model:    req.Request.Model,
			Status:   statusOf(streamErr),
			Duration: time.Since(start),
			Chunks:   chunkCount,
			Bytes:    byteCount,
		})
	}()

	for chunk := range chunks {
		if chunk.Err != nil {
			streamErr = chunk.Err
			log.Printf("STREAM_ABORTED | model=%s error=%v", req.Request.Model, chunk.Err)
			// Headers are already out; aborting the handler is the only
			// way left to signal the failure to the client.
			panic(http.ErrAbortHandler)
		}

		if _, err := fmt.Fprint(w, chunk.Text); err != nil {
			// Client went away; the relay stops producing once the
			// request context is cancelled.
			streamErr = err
			return
		}
		flusher.Flush()

		chunkCount++
		byteCount += len(chunk.Text)
	}
}

// handleModels handles POST /models.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req ProxyModelsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Invalid request body: %v", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start := time.Now()
	models, err := s.relay.ListModels(r.Context(), req.APIEndpoint, req.APIKey)
	s.record(stats.RequestStat{
		Kind:     stats.KindModels,
		Status:   statusOf(err),
		Duration: time.Since(start),
	})

	if err != nil {
		log.Printf("MODELS_ERROR | error=%v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ModelsResponse{Models: models})
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Version:    Version,
		UptimeSecs: int64(time.Since(s.started).Seconds()),
	})
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "usage statistics not enabled")
		return
	}

	summary, err := s.store.Summary()
	if err != nil {
		log.Printf("STATS_ERROR | error=%v", err)
		writeError(w, http.StatusInternalServerError, "failed to read usage statistics")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// ============================================================================
// HELPERS
// ============================================================================

// decodeChatRequest parses the shared body shape of /chat and /chat/stream.
// On failure it writes a 400 and reports false.
func decodeChatRequest(w http.ResponseWriter, r *http.Request) (ProxyChatRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req ProxyChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Invalid request body: %v", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return ProxyChatRequest{}, false
	}
	return req, true
}

// record writes one entry to the usage log when a store is attached.
func (s *Server) record(stat stats.RequestStat) {
	if s.store == nil {
		return
	}
	if err := s.store.Record(stat); err != nil {
		log.Printf("STATS_RECORD_ERROR | error=%v", err)
	}
}

// statusOf maps an operation result to a usage-log status.
func statusOf(err error) string {
	if err != nil {
		return stats.StatusError
	}
	return stats.StatusOK
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
