// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server implements the local HTTP relay.
//
// The relay accepts requests from local callers (typically a web-rendered
// UI running under a different origin) and forwards them to whatever
// upstream endpoint each request names. It binds to loopback only and
// stores no endpoints or keys itself.
//
// # Endpoints
//
//   - POST /chat        - forward a chat request, return the full reply
//   - POST /chat/stream - forward a chat request, stream SSE frames back
//   - POST /models      - list models available at an upstream endpoint
//   - GET  /healthz     - health check
//   - GET  /stats       - usage statistics
//
// # Key Types
//
//   - Server: router and handlers around a relay.Client
//   - Supervisor: binds and stops server instances, at most one at a time
//   - RateLimiter: optional token-bucket admission control
//
// # Usage
//
//	srv := server.New(relay.NewClient()).WithStats(store)
//	sup := server.NewSupervisor(srv)
//	if err := sup.Enable(8080); err != nil {
//		log.Fatal(err)
//	}
//	defer sup.Disable()
package server
