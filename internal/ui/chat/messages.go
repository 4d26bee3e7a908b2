// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// messages.go - Bubble Tea message types for the chat interface.
//
// Messages fall into four categories:
//   - Streaming: relay events and stream completion
//   - Requests: non-streaming completion results
//   - Models: model list delivery for /models
//   - Ticks: render throttling during streaming
package chat

import "time"

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// StreamEventMsg carries one relay stream event into the Update loop.
// The event name identifies both the stream and whether the payload is
// a chunk frame or an error message; Update resolves it against the
// active stream id.
type StreamEventMsg struct {
	Event   string
	Payload string
}

// StreamFinishedMsg signals that the blocking stream call returned.
// The reply text itself arrives incrementally through StreamEventMsg;
// Err is only set when the stream failed to open at all.
type StreamFinishedMsg struct {
	ID  string
	Err error
}

// =============================================================================
// REQUEST MESSAGES
// =============================================================================

// AskFinishedMsg delivers a whole (non-streaming) completion.
type AskFinishedMsg struct {
	Reply     string
	Err       error
	Cancelled bool
}

// =============================================================================
// MODEL LIST MESSAGES
// =============================================================================

// ModelsLoadedMsg delivers the endpoint's model list for /models.
type ModelsLoadedMsg struct {
	Models []string
	Err    error
}

// =============================================================================
// TICK MESSAGES
// =============================================================================

// StreamTickMsg drives the throttled transcript refresh while tokens
// are arriving.
type StreamTickMsg struct {
	Time time.Time
}
