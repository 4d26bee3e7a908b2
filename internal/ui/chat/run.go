// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigrelay/internal/config"
	"github.com/jeranaias/rigrelay/internal/relay"
	"github.com/jeranaias/rigrelay/internal/stats"
	"github.com/jeranaias/rigrelay/internal/stream"
)

// =============================================================================
// EVENT BRIDGE
// =============================================================================

// programSender forwards stream events into the Bubble Tea program. The
// manager's emitter is wired before the program exists, so sends before
// attach are dropped; nothing streams until the user submits a message,
// well after attach.
type programSender struct {
	mu sync.Mutex
	p  *tea.Program
}

func (s *programSender) attach(p *tea.Program) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

func (s *programSender) send(msg tea.Msg) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// =============================================================================
// ENTRY POINT
// =============================================================================

// Run starts the full-screen chat TUI and blocks until the user quits.
func Run(cfg *config.Config, model string) error {
	client := relay.NewClient()
	sender := &programSender{}

	manager := stream.NewManager(client, stream.NewRegistry(), stream.EmitterFunc(func(event, payload string) {
		sender.send(StreamEventMsg{Event: event, Payload: payload})
	}))

	store := openStore(cfg)
	if store != nil {
		defer store.Close()
		manager = manager.WithRecorder(stream.RecorderFunc(func(stat stream.StreamStat) {
			recordStream(store, stat)
		}))
	}

	m := New(cfg, model, client, manager, store)

	p := tea.NewProgram(m, tea.WithAltScreen())
	sender.attach(p)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat ui failed: %w", err)
	}
	return nil
}

// openStore opens the usage store, or returns nil when recording is
// disabled or unavailable. Usage logging never blocks a chat.
func openStore(cfg *config.Config) *stats.Store {
	if !cfg.Stats.Enabled {
		return nil
	}

	path, err := cfg.StatsPath()
	if err != nil {
		return nil
	}

	store, err := stats.Open(path)
	if err != nil {
		return nil
	}
	return store
}

// recordStream logs one finished stream to the usage store.
func recordStream(store *stats.Store, stat stream.StreamStat) {
	status := stats.StatusOK
	if stat.Err != nil {
		status = stats.StatusError
	}

	_ = store.Record(stats.RequestStat{
		Time:     time.Now(),
		Kind:     stats.KindStream,
		Model:    stat.Model,
		Status:   status,
		Duration: stat.Duration,
		Chunks:   stat.Chunks,
		Bytes:    stat.Bytes,
	})
}
