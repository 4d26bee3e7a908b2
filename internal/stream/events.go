// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

// Event name prefixes. A front-end subscribes to the chunk and error
// events of the id it was handed when the stream began.
const (
	chunkEventPrefix = "stream-"
	errorEventPrefix = "stream-error-"
)

// ChunkEvent returns the event name carrying text chunks for a stream.
func ChunkEvent(id string) string {
	return chunkEventPrefix + id
}

// ErrorEvent returns the event name carrying the terminal error, if any,
// for a stream.
func ErrorEvent(id string) string {
	return errorEventPrefix + id
}

// Emitter delivers id-tagged stream events to whatever front-end is
// attached: a terminal renderer, a TUI program, or a test recorder.
// Emit must not block for long; delivery failures are the emitter's
// problem and are not reported back to the stream.
type Emitter interface {
	Emit(event string, payload string)
}

// EmitterFunc adapts a plain function to the Emitter interface.
type EmitterFunc func(event, payload string)

// Emit calls f.
func (f EmitterFunc) Emit(event, payload string) {
	f(event, payload)
}
