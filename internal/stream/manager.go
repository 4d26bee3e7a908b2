// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/rigrelay/internal/relay"
)

// =============================================================================
// ACCOUNTING
// =============================================================================

// StreamStat summarizes one finished stream for usage accounting.
type StreamStat struct {
	Model    string
	Chunks   int
	Bytes    int
	Duration time.Duration
	Err      error
}

// Recorder receives per-stream accounting after a stream ends, however it
// ended. Implementations must tolerate concurrent calls.
type Recorder interface {
	RecordStream(stat StreamStat)
}

// RecorderFunc adapts a plain function to the Recorder interface.
type RecorderFunc func(stat StreamStat)

// RecordStream calls f.
func (f RecorderFunc) RecordStream(stat StreamStat) {
	f(stat)
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager drives streaming chat consumption. Each call opens a relay
// stream under a registered id, emits every chunk as an id-tagged event,
// and guarantees the registry entry is gone when the call returns.
//
// The Manager is safe for concurrent use; any number of streams may be in
// flight at once.
type Manager struct {
	client   *relay.Client
	registry *Registry
	emitter  Emitter
	recorder Recorder
}

// NewManager creates a stream manager around a relay client, a registry,
// and the emitter that receives stream events.
func NewManager(client *relay.Client, registry *Registry, emitter Emitter) *Manager {
	return &Manager{
		client:   client,
		registry: registry,
		emitter:  emitter,
	}
}

// WithRecorder attaches a usage recorder. Streams run fine without one.
func (m *Manager) WithRecorder(rec Recorder) *Manager {
	m.recorder = rec
	return m
}

// Registry exposes the manager's registry for status displays.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// =============================================================================
// CONSUMPTION
// =============================================================================

// Stream opens a streaming chat request and consumes it to completion,
// emitting chunk events along the way. The stream id (caller-supplied, or
// generated when empty) is the only return value on success; transcript
// accumulation and event emission are side effects.
//
// The call returns an error only when the stream never starts: a
// duplicate active id, or a setup failure from the relay. Once chunks
// flow, a mid-stream error is emitted as the stream's error event and the
// call still returns the id. Either way the registry entry is removed
// exactly once before returning.
func (m *Manager) Stream(ctx context.Context, endpoint, apiKey string, req relay.ChatRequest, id string) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := m.registry.Register(id, cancel); err != nil {
		return "", err
	}
	defer m.registry.Remove(id)

	chunks, err := m.client.OpenStream(streamCtx, endpoint, apiKey, req)
	if err != nil {
		return "", err
	}

	var transcript strings.Builder
	var chunkCount int
	var streamErr error
	start := time.Now()

	for chunk := range chunks {
		// Cancellation is polled once per item, before processing, so it
		// takes effect no later than the next inbound chunk.
		if streamCtx.Err() != nil {
			break
		}

		if chunk.Err != nil {
			streamErr = chunk.Err
			m.emitter.Emit(ErrorEvent(id), chunk.Err.Error())
			break
		}

		transcript.WriteString(chunk.Text)
		chunkCount++
		m.emitter.Emit(ChunkEvent(id), chunk.Text)
	}

	if m.recorder != nil {
		m.recorder.RecordStream(StreamStat{
			Model:    req.Model,
			Chunks:   chunkCount,
			Bytes:    transcript.Len(),
			Duration: time.Since(start),
			Err:      streamErr,
		})
	}

	return id, nil
}

// Cancel requests cooperative cancellation of the stream with the given
// id. It reports whether a matching active stream was found; losing the
// race against natural completion is normal and returns false.
func (m *Manager) Cancel(id string) bool {
	return m.registry.Cancel(id)
}

// Active returns the ids of streams currently in flight.
func (m *Manager) Active() []string {
	return m.registry.Active()
}
