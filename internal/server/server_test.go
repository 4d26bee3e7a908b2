// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/rigrelay/internal/relay"
	"github.com/jeranaias/rigrelay/internal/stats"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func testServer() *Server {
	return New(relay.NewClient())
}

// postJSON runs a JSON POST through the full middleware chain.
func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, body io.Reader) string {
	t.Helper()

	var resp ErrorResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Error
}

func chatBody(endpoint string) ProxyChatRequest {
	return ProxyChatRequest{
		APIEndpoint: endpoint,
		APIKey:      "sk-test",
		Request: relay.ChatRequest{
			Model:    "llama3",
			Messages: []relay.ChatMessage{relay.NewUserMessage("hi")},
		},
	}
}

func openTestStore(t *testing.T) *stats.Store {
	t.Helper()

	store, err := stats.Open(filepath.Join(t.TempDir(), "stats.db"))
	if err != nil {
		t.Fatalf("open stats store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// =============================================================================
// CHAT HANDLER TESTS
// =============================================================================

func TestHandleChat_ForwardsAndWrapsContent(t *testing.T) {
	auth := make(chan string, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"content":"Hello there"}}]}`)
	}))
	defer upstream.Close()

	w := postJSON(t, testServer().Handler(), "/chat", chatBody(upstream.URL))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp ChatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Content != "Hello there" {
		t.Errorf("content = %q, want 'Hello there'", resp.Content)
	}

	if got := <-auth; got != "Bearer sk-test" {
		t.Errorf("upstream Authorization = %q, want 'Bearer sk-test'", got)
	}
}

func TestHandleChat_UpstreamFailureIs500(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "bad gateway")
	}))
	defer upstream.Close()

	w := postJSON(t, testServer().Handler(), "/chat", chatBody(upstream.URL))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	if got := decodeError(t, w.Body); got != "API error: 502 - bad gateway" {
		t.Errorf("error = %q, want the upstream status and body", got)
	}
}

func TestHandleChat_InvalidBodyIs400(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	testServer().Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := decodeError(t, w.Body); got != "invalid request body" {
		t.Errorf("error = %q, want 'invalid request body'", got)
	}
}

func TestHandleChat_RecordsUsage(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":{"content":"ok"}}`)
	}))
	defer upstream.Close()

	store := openTestStore(t)
	srv := New(relay.NewClient()).WithStats(store)

	if w := postJSON(t, srv.Handler(), "/chat", chatBody(upstream.URL)); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	summary, err := store.Summary()
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.TotalRequests != 1 {
		t.Errorf("total requests = %d, want 1", summary.TotalRequests)
	}
	if summary.ByKind[stats.KindChat] != 1 {
		t.Errorf("chat requests = %d, want 1", summary.ByKind[stats.KindChat])
	}
	if summary.Errors != 0 {
		t.Errorf("errors = %d, want 0", summary.Errors)
	}
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	handler := testServer().Handler()

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/chat"},
		{http.MethodGet, "/chat/stream"},
		{http.MethodGet, "/models"},
		{http.MethodPost, "/healthz"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s = %d, want %d", tc.method, tc.path, w.Code, http.StatusMethodNotAllowed)
		}
	}
}

// =============================================================================
// STREAM HANDLER TESTS
// =============================================================================

func TestHandleChatStream_PassesFramesThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, part := range []string{"data: alpha\n", "data: beta\n", "[DONE]\n"} {
			io.WriteString(w, part)
			flusher.Flush()
		}
	}))
	defer upstream.Close()

	ts := httptest.NewServer(testServer().Handler())
	defer ts.Close()

	body, err := json.Marshal(chatBody(upstream.URL))
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	resp, err := http.Post(ts.URL+"/chat/stream", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /chat/stream: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want 'text/event-stream'", ct)
	}

	got, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read stream body: %v", err)
	}

	want := "data: alpha\n\ndata: beta\n\ndata: [DONE]\n\n"
	if string(got) != want {
		t.Errorf("stream body = %q, want %q", got, want)
	}
}

func TestHandleChatStream_SetupFailureIsJSON500(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, "no such model")
	}))
	defer upstream.Close()

	w := postJSON(t, testServer().Handler(), "/chat/stream", chatBody(upstream.URL))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want 'application/json' before streaming starts", ct)
	}
	if got := decodeError(t, w.Body); got != "API error: 404 - no such model" {
		t.Errorf("error = %q, want the upstream status and body", got)
	}
}

func TestHandleChatStream_MidStreamFailureTruncates(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		io.WriteString(w, "data: alpha\n")
		flusher.Flush()
		panic(http.ErrAbortHandler)
	}))
	defer upstream.Close()

	store := openTestStore(t)
	ts := httptest.NewServer(New(relay.NewClient()).WithStats(store).Handler())
	defer ts.Close()

	body, err := json.Marshal(chatBody(upstream.URL))
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	resp, err := http.Post(ts.URL+"/chat/stream", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /chat/stream: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d; streaming had already begun", resp.StatusCode, http.StatusOK)
	}

	got, err := io.ReadAll(resp.Body)
	if err == nil {
		t.Fatal("read stream body: expected a truncation error, got a clean end")
	}
	if string(got) != "data: alpha\n\n" {
		t.Errorf("frames before failure = %q, want \"data: alpha\\n\\n\"", got)
	}

	summary, serr := store.Summary()
	if serr != nil {
		t.Fatalf("Summary() error = %v", serr)
	}
	if summary.Errors != 1 {
		t.Errorf("recorded errors = %d, want 1", summary.Errors)
	}
}

// =============================================================================
// MODELS HANDLER TESTS
// =============================================================================

func TestHandleModels_ReturnsNamesInOrder(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("upstream path = %q, want '/api/tags'", r.URL.Path)
		}
		io.WriteString(w, `{"models":[{"name":"llama3"},{"name":"qwen2.5-coder:14b"}]}`)
	}))
	defer upstream.Close()

	// Any path on the endpoint is dropped when deriving the listing URL.
	body := ProxyModelsRequest{APIEndpoint: upstream.URL + "/v1/chat/completions"}
	w := postJSON(t, testServer().Handler(), "/models", body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp ModelsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	want := []string{"llama3", "qwen2.5-coder:14b"}
	if len(resp.Models) != len(want) {
		t.Fatalf("models = %v, want %v", resp.Models, want)
	}
	for i := range want {
		if resp.Models[i] != want[i] {
			t.Errorf("models[%d] = %q, want %q", i, resp.Models[i], want[i])
		}
	}
}

func TestHandleModels_HostlessEndpointIs500(t *testing.T) {
	body := ProxyModelsRequest{APIEndpoint: "/just/a/path"}
	w := postJSON(t, testServer().Handler(), "/models", body)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if got := decodeError(t, w.Body); got != "missing host" {
		t.Errorf("error = %q, want 'missing host'", got)
	}
}

// =============================================================================
// HEALTH & STATS HANDLER TESTS
// =============================================================================

func TestHandleHealth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	testServer().Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want 'ok'", resp.Status)
	}
	if resp.Version != Version {
		t.Errorf("version = %q, want %q", resp.Version, Version)
	}
}

func TestHandleStats_UnavailableWithoutStore(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	testServer().Handler().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if got := decodeError(t, w.Body); got != "usage statistics not enabled" {
		t.Errorf("error = %q, want 'usage statistics not enabled'", got)
	}
}

func TestHandleStats_ReportsSummary(t *testing.T) {
	store := openTestStore(t)
	for i := 0; i < 3; i++ {
		err := store.Record(stats.RequestStat{
			Kind:     stats.KindChat,
			Model:    "llama3",
			Duration: time.Duration(i) * 100 * time.Millisecond,
			Bytes:    10 * i,
		})
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	srv := New(relay.NewClient()).WithStats(store)
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var summary stats.Summary
	if err := json.NewDecoder(w.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalRequests != 3 {
		t.Errorf("total requests = %d, want 3", summary.TotalRequests)
	}
	if summary.ByKind[stats.KindChat] != 3 {
		t.Errorf("chat requests = %d, want 3", summary.ByKind[stats.KindChat])
	}
}

// =============================================================================
// BUILDER TESTS
// =============================================================================

func TestServer_WithMethods(t *testing.T) {
	s := testServer()

	if s2 := s.WithStats(nil); s2 != s {
		t.Error("WithStats should return the same server")
	}
	if s3 := s.WithRateLimit(0, 0); s3 != s {
		t.Error("WithRateLimit should return the same server")
	}
	if s.limiter != nil {
		t.Error("a zero rate must leave limiting disabled")
	}

	s.WithRateLimit(10, 5)
	if s.limiter == nil {
		t.Error("a positive rate must enable limiting")
	}
}

func TestWriteError_Shape(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusInternalServerError, "something broke")

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want 'application/json'", ct)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != "something broke" {
		t.Errorf("error = %q, want 'something broke'", resp.Error)
	}
}
