// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"
)

// ============================================================================
// BIND ERROR
// ============================================================================

// BindError reports a failure to bind the relay server to its port.
type BindError struct {
	Port  int
	Cause error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind HTTP server to port %d: %v", e.Port, e.Cause)
}

func (e *BindError) Unwrap() error {
	return e.Cause
}

// ============================================================================
// SUPERVISOR
// ============================================================================

// shutdownTimeout bounds graceful shutdown of a running instance.
const shutdownTimeout = 5 * time.Second

// Supervisor manages at most one bound relay server instance.
//
// Enable stops any previously bound instance before binding anew, so the
// state moves absent -> bound -> absent and never holds two listeners at
// once. The mutex guards only the handle swap itself; bind and shutdown
// run outside it.
type Supervisor struct {
	srv *Server

	mu      sync.Mutex
	current *instance
}

// instance is one bound http.Server plus its listen port.
type instance struct {
	server *http.Server
	port   int
}

// stop shuts the instance down gracefully, draining in-flight requests up
// to shutdownTimeout.
func (in *instance) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := in.server.Shutdown(ctx); err != nil {
		log.Printf("SERVER_SHUTDOWN_ERROR | port=%d error=%v", in.port, err)
	}
}

// NewSupervisor creates a supervisor around the given relay server.
func NewSupervisor(srv *Server) *Supervisor {
	return &Supervisor{srv: srv}
}

// Enable binds the relay to 127.0.0.1:port and serves it on a background
// goroutine, stopping any previously bound instance first. A port of zero
// or less selects DefaultPort. Binding failure returns a BindError and
// leaves nothing running.
func (s *Supervisor) Enable(port int) error {
	if port <= 0 {
		port = DefaultPort
	}

	if old := s.swap(nil); old != nil {
		old.stop()
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return &BindError{Port: port, Cause: err}
	}

	in := &instance{
		server: &http.Server{
			Handler:     s.srv.Handler(),
			ReadTimeout: 30 * time.Second,
			// Streaming responses outlive any fixed write deadline; the
			// relay's per-call upstream timeout bounds them instead.
			WriteTimeout: 0,
			IdleTimeout:  120 * time.Second,
		},
		port: port,
	}

	go func() {
		if err := in.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("SERVER_ERROR | port=%d error=%v", in.port, err)
		}
	}()

	if old := s.swap(in); old != nil {
		// Lost a race with a concurrent Enable; the newest instance wins
		// and the displaced one is stopped.
		old.stop()
	}

	log.Printf("SERVER_START | addr=%s", addr)
	return nil
}

// Disable gracefully stops the bound instance, if any. It reports whether
// an instance was running.
func (s *Supervisor) Disable() bool {
	old := s.swap(nil)
	if old == nil {
		return false
	}

	old.stop()
	log.Printf("SERVER_STOP | port=%d", old.port)
	return true
}

// Port returns the bound port and whether an instance is currently bound.
func (s *Supervisor) Port() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return 0, false
	}
	return s.current.port, true
}

// Running reports whether an instance is currently bound.
func (s *Supervisor) Running() bool {
	_, ok := s.Port()
	return ok
}

// swap stores next as the current instance and returns the previous one.
func (s *Supervisor) swap(next *instance) *instance {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current
	s.current = next
	return prev
}
