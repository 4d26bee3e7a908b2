// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ChatMessage is one turn of a conversation. Content is kept as raw JSON
// because upstream providers accept either a plain string or an array of
// multimodal parts; the relay never inspects it.
type ChatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Images  []string        `json:"images,omitempty"`
}

// ChatRequest is the provider-bound chat payload, forwarded verbatim.
type ChatRequest struct {
	Model    string          `json:"model"`
	Messages []ChatMessage   `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  json.RawMessage `json:"options,omitempty"`
}

// TextContent wraps plain text as a message content value.
func TextContent(text string) json.RawMessage {
	b, _ := json.Marshal(text)
	return b
}

// NewUserMessage creates a user message with plain text content.
func NewUserMessage(text string) ChatMessage {
	return ChatMessage{Role: "user", Content: TextContent(text)}
}

// NewSystemMessage creates a system message with plain text content.
func NewSystemMessage(text string) ChatMessage {
	return ChatMessage{Role: "system", Content: TextContent(text)}
}

// NewAssistantMessage creates an assistant message with plain text content.
func NewAssistantMessage(text string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: TextContent(text)}
}

// MessageText decodes a message's content as plain text. Multimodal
// content (an array of parts) reports ok=false; callers that only
// display text skip or summarize those.
func MessageText(msg ChatMessage) (text string, ok bool) {
	if err := json.Unmarshal(msg.Content, &text); err != nil {
		return "", false
	}
	return text, true
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ChatResponse covers both response shapes seen in the wild: the
// OpenAI-style choices array and the Ollama-style top-level message.
type ChatResponse struct {
	Choices []Choice `json:"choices,omitempty"`
	Message *Message `json:"message,omitempty"`
}

// Choice is one completion alternative in an OpenAI-style response.
type Choice struct {
	Delta   *Delta   `json:"delta,omitempty"`
	Message *Message `json:"message,omitempty"`
}

// Delta carries incremental content in streaming payloads.
type Delta struct {
	Content *string `json:"content,omitempty"`
}

// Message carries the assistant text of a completed response.
type Message struct {
	Content *string `json:"content,omitempty"`
}

// responseShape identifies which upstream structure a response decoded as.
type responseShape int

const (
	shapeUnrecognized responseShape = iota
	shapeOpenAI
	shapeSingleMessage
)

// shape probes the decoded structure. A present-but-empty choices array
// still counts as OpenAI-style; the single-message fallback applies only
// when choices is absent entirely.
func (r *ChatResponse) shape() responseShape {
	switch {
	case r.Choices != nil:
		return shapeOpenAI
	case r.Message != nil:
		return shapeSingleMessage
	default:
		return shapeUnrecognized
	}
}

// ExtractContent returns the assistant text from either recognized shape.
// Missing fields yield an empty string, never an error.
func (r *ChatResponse) ExtractContent() string {
	switch r.shape() {
	case shapeOpenAI:
		if len(r.Choices) == 0 {
			return ""
		}
		first := r.Choices[0]
		if first.Message == nil || first.Message.Content == nil {
			return ""
		}
		return *first.Message.Content
	case shapeSingleMessage:
		if r.Message.Content == nil {
			return ""
		}
		return *r.Message.Content
	default:
		return ""
	}
}

// ExtractDelta returns the incremental text of a streaming chunk. It
// prefers the OpenAI-style delta, falls back to a full message inside the
// first choice, then to an Ollama-style top-level message.
func (r *ChatResponse) ExtractDelta() string {
	if len(r.Choices) > 0 {
		first := r.Choices[0]
		if first.Delta != nil && first.Delta.Content != nil {
			return *first.Delta.Content
		}
		if first.Message != nil && first.Message.Content != nil {
			return *first.Message.Content
		}
		return ""
	}
	if r.Message != nil && r.Message.Content != nil {
		return *r.Message.Content
	}
	return ""
}

// FrameText extracts the assistant text carried by one relayed stream
// frame. The relay forwards frames verbatim, so consumers that want to
// render text rather than raw SSE use this to pull the delta out of
// "data: {...}" payloads. Separator frames, the [DONE] sentinel, and
// payloads that do not decode as a chat chunk yield ok=false.
func FrameText(frame string) (text string, ok bool) {
	payload, found := strings.CutPrefix(strings.TrimRight(frame, "\r\n"), "data: ")
	if !found || payload == doneSentinel {
		return "", false
	}

	var resp ChatResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return "", false
	}
	return resp.ExtractDelta(), true
}

// =============================================================================
// MODEL LISTING TYPES
// =============================================================================

// ModelInfo describes one model reported by the tags endpoint.
type ModelInfo struct {
	Name       string `json:"name"`
	ModifiedAt string `json:"modified_at,omitempty"`
	Size       int64  `json:"size,omitempty"`
}

// TagsResponse is the body of an Ollama-style /api/tags listing.
type TagsResponse struct {
	Models []ModelInfo `json:"models"`
}
