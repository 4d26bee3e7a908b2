// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream coordinates cancellable relayed chat streams: a registry
// of in-flight stream ids and a manager that consumes relay sequences,
// fanning chunks out as id-tagged events.
package stream

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrActiveStream indicates an attempt to register a stream id that is
// still in flight. Finished ids may be reused freely.
var ErrActiveStream = errors.New("stream id already active")

// =============================================================================
// REGISTRY
// =============================================================================

// Registry maps active stream ids to their cancellation handles. It is an
// owned, injected dependency, never package-global state. The lock guards
// only map mutation; it is never held across I/O.
type Registry struct {
	mu      sync.Mutex
	handles map[string]context.CancelFunc
}

// NewRegistry constructs an empty stream registry.
func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[string]context.CancelFunc),
	}
}

// Register stores a fresh cancellation handle under id. Registering an id
// that is still active fails with ErrActiveStream; the stale handle is
// never silently displaced.
func (r *Registry) Register(id string, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handles[id]; exists {
		return ErrActiveStream
	}

	r.handles[id] = cancel
	return nil
}

// Cancel invokes and removes the handle for id, reporting whether a
// matching active stream was found. A miss is a valid outcome, not an
// error: the stream may have finished naturally a moment earlier.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancel, ok := r.handles[id]
	if !ok {
		return false
	}

	cancel()
	delete(r.handles, id)
	return true
}

// Remove drops the handle for id without invoking it. Removing an absent
// id is a no-op, so cleanup paths can run unconditionally.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, id)
}

// Active returns the ids of all in-flight streams, sorted for stable
// presentation.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len reports the number of in-flight streams.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
