// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// STREAMING: SSE pass-through with line-level re-framing

// =============================================================================
// STREAM TYPES
// =============================================================================

// streamChunkBuffer is the channel depth between the body reader and the
// consumer. Emission order is preserved regardless of depth.
const streamChunkBuffer = 100

// doneSentinel is the upstream end-of-stream marker.
const doneSentinel = "[DONE]"

// StreamChunk is one item of a relayed stream: a block of re-framed SSE
// bytes, or a terminal error that ends the sequence.
type StreamChunk struct {
	Text string
	Err  error
}

// HasError reports whether the chunk is a terminal error item.
func (c *StreamChunk) HasError() bool {
	return c.Err != nil
}

// =============================================================================
// STREAM OPENING
// =============================================================================

// OpenStream sends a streaming chat request and returns a finite,
// non-restartable sequence of re-framed SSE chunks. Setup failures
// (marshal, connect, non-2xx status) fail the call before any chunk is
// produced. After that, errors arrive as a terminal chunk and the channel
// closes; a clean upstream close without a [DONE] sentinel is a normal end.
//
// The whole call, incremental reads included, is bounded by the chat
// timeout. Cancelling ctx stops the body reader after its current read.
func (c *Client) OpenStream(ctx context.Context, endpoint, apiKey string, chatReq ChatRequest) (<-chan StreamChunk, error) {
	payload, err := json.Marshal(chatReq)
	if err != nil {
		return nil, transportError("failed to marshal request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.ChatTimeout)

	req, err := newProxyRequest(ctx, http.MethodPost, endpoint, apiKey, bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, transportError("failed to create request", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// No client-level timeout here: the deadline context governs the
	// full read phase, and a Client.Timeout would double-bound it.
	streamClient := &http.Client{}
	resp, err := streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, transportError("request failed", err)
	}

	if !isSuccess(resp.StatusCode) {
		upErr := readUpstreamError(resp)
		resp.Body.Close()
		cancel()
		return nil, upErr
	}

	chunks := make(chan StreamChunk, streamChunkBuffer)

	go func() {
		defer close(chunks)
		defer cancel()
		defer resp.Body.Close()
		reframeBody(ctx, resp.Body, chunks)
	}()

	return chunks, nil
}

// =============================================================================
// RE-FRAMING
// =============================================================================

// reframeBody reads the upstream body line by line and emits normalized
// SSE frames. Lines may arrive split across reads; the buffered reader
// reassembles them before classification.
func reframeBody(ctx context.Context, body io.Reader, chunks chan<- StreamChunk) {
	send := func(chunk StreamChunk) bool {
		select {
		case chunks <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	reader := bufio.NewReader(body)
	for {
		select {
		case <-ctx.Done():
			send(StreamChunk{Err: transportError("request failed", ctx.Err())})
			return
		default:
		}

		line, err := reader.ReadString('\n')

		// A final unterminated line still gets re-framed before EOF ends
		// the sequence.
		if len(line) > 0 {
			if done := reframeLine(line, send); done {
				return
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			send(StreamChunk{Err: transportError("request failed", err)})
			return
		}
	}
}

// reframeLine classifies one upstream line and emits its frames:
//
//   - blank line           -> "\n"
//   - ":"-prefixed comment -> dropped
//   - "[DONE]" sentinel    -> "data: [DONE]\n" then "\n", sequence ends
//   - anything else        -> the line + "\n", then "\n"
//
// Classification looks at the whitespace-trimmed line, but data lines are
// forwarded untrimmed so upstream payload bytes survive intact.
func reframeLine(line string, send func(StreamChunk) bool) (done bool) {
	line = strings.TrimRight(line, "\r\n")
	trimmed := strings.TrimSpace(line)

	switch {
	case trimmed == "":
		send(StreamChunk{Text: "\n"})

	case strings.HasPrefix(trimmed, ":"):
		// SSE comment, not forwarded

	case trimmed == doneSentinel:
		if send(StreamChunk{Text: "data: " + doneSentinel + "\n"}) {
			send(StreamChunk{Text: "\n"})
		}
		return true

	default:
		if send(StreamChunk{Text: line + "\n"}) {
			send(StreamChunk{Text: "\n"})
		}
	}

	return false
}
