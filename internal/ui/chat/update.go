// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/rigrelay/internal/relay"
	"github.com/jeranaias/rigrelay/internal/stream"
	"github.com/jeranaias/rigrelay/internal/ui/components"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles all incoming messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StreamEventMsg:
		return m.handleStreamEvent(msg)

	case StreamTickMsg:
		return m.handleStreamTick()

	case StreamFinishedMsg:
		return m.handleStreamFinished(msg)

	case AskFinishedMsg:
		return m.handleAskFinished(msg)

	case ModelsLoadedMsg:
		return m.handleModelsLoaded(msg)

	case spinner.TickMsg:
		if !m.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateInput(msg)
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)
	m.header.SetWidth(msg.Width)
	m.statusBar.SetWidth(msg.Width)
	m.input.Width = msg.Width - 6

	chromeHeight := m.chromeHeight()
	vpHeight := msg.Height - chromeHeight
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}

	// Wrap width changed, so the markdown renderer must be rebuilt.
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(contentWidth(msg.Width)),
	)
	if err == nil {
		m.renderer = renderer
	}

	m.refreshViewport()
	return m, nil
}

// contentWidth is the wrap width for message bodies inside the viewport.
func contentWidth(total int) int {
	w := total - 8
	if w < 20 {
		w = 20
	}
	return w
}

// =============================================================================
// KEYS
// =============================================================================

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancelActive()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.Busy() {
			m.cancelActive()
			return m, nil
		}
		m.input.Reset()
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		m.history = nil
		m.transcript = nil
		m.appendNotice("Conversation cleared")
		m.refreshViewport()
		return m, nil

	case key.Matches(msg, m.keys.ToggleStream):
		m.streaming = !m.streaming
		m.statusBar.SetStreamMode(m.streaming)
		if m.streaming {
			m.appendNotice("Streaming on")
		} else {
			m.appendNotice("Streaming off")
		}
		m.refreshViewport()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Home):
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.End):
		m.viewport.GotoBottom()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.handleSubmit()
	}

	return m.updateInput(msg)
}

func (m *Model) handleSubmit() (tea.Model, tea.Cmd) {
	if m.Busy() {
		return m, nil
	}

	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.Reset()

	if strings.HasPrefix(text, "/") {
		return m.handleSlashCommand(text)
	}

	return m, m.submit(text)
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (m *Model) handleSlashCommand(text string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "/help":
		m.appendNotice(helpText())

	case "/clear":
		m.history = nil
		m.transcript = nil
		m.appendNotice("Conversation cleared")

	case "/model":
		if len(args) == 0 {
			m.appendNotice("Current model: " + m.modelName)
			break
		}
		m.modelName = args[0]
		m.header.SetModel(m.modelName)
		m.statusBar.SetModel(m.modelName)
		m.appendNotice("Switched to model: " + m.modelName)

	case "/models":
		m.appendNotice("Fetching models...")
		m.refreshViewport()
		return m, m.loadModelsCmd()

	case "/stream":
		if len(args) > 0 {
			switch strings.ToLower(args[0]) {
			case "on":
				m.streaming = true
			case "off":
				m.streaming = false
			default:
				m.appendError("Usage: /stream [on|off]")
				m.refreshViewport()
				return m, nil
			}
		} else {
			m.streaming = !m.streaming
		}
		m.statusBar.SetStreamMode(m.streaming)
		if m.streaming {
			m.appendNotice("Streaming on")
		} else {
			m.appendNotice("Streaming off")
		}

	case "/quit", "/exit":
		m.cancelActive()
		return m, tea.Quit

	default:
		m.appendError("Unknown command: " + cmd + " (try /help)")
	}

	m.refreshViewport()
	return m, nil
}

func helpText() string {
	return strings.Join([]string{
		"Commands:",
		"  /help           Show this help",
		"  /clear          Clear the conversation",
		"  /model [name]   Show or switch the model",
		"  /models         List models on the endpoint",
		"  /stream [on|off] Toggle streaming delivery",
		"  /quit           Exit",
	}, "\n")
}

// =============================================================================
// STREAM EVENTS
// =============================================================================

// handleStreamEvent receives one raw relay event from the manager's
// emitter. Events for anything but the active stream are dropped; that
// covers late chunks from a cancelled stream.
func (m *Model) handleStreamEvent(msg StreamEventMsg) (tea.Model, tea.Cmd) {
	if m.activeID == "" {
		return m, nil
	}

	switch msg.Event {
	case stream.ChunkEvent(m.activeID):
		text, ok := relay.FrameText(msg.Payload)
		if !ok || text == "" {
			return m, nil
		}
		m.buffer.Write(text)
		if m.state == StateWaiting {
			m.state = StateStreaming
			m.statusBar.SetStatus(components.StatusStreaming)
		}

	case stream.ErrorEvent(m.activeID):
		m.streamErr = msg.Payload
	}

	return m, nil
}

// handleStreamTick drains the token buffer into the partial reply at
// the frame rate instead of re-rendering per token.
func (m *Model) handleStreamTick() (tea.Model, tea.Cmd) {
	if !m.Busy() {
		return m, nil
	}

	if chunk, ok := m.buffer.Flush(); ok {
		m.current.WriteString(chunk)
		m.refreshViewport()
	}

	return m, streamTickCmd()
}

func (m *Model) handleStreamFinished(msg StreamFinishedMsg) (tea.Model, tea.Cmd) {
	if msg.ID != m.activeID {
		return m, nil
	}

	if tail, ok := m.buffer.ForceFlush(); ok {
		m.current.WriteString(tail)
	}
	reply := m.current.String()
	m.current.Reset()

	m.finishExchange(reply, msg.Err)
	return m, nil
}

func (m *Model) handleAskFinished(msg AskFinishedMsg) (tea.Model, tea.Cmd) {
	if msg.Cancelled {
		m.cancelled = true
	}
	m.finishExchange(msg.Reply, msg.Err)
	return m, nil
}

// finishExchange closes out the active request regardless of delivery
// mode: commit or discard the reply, surface errors, reset state.
func (m *Model) finishExchange(reply string, err error) {
	m.activeID = ""
	m.state = StateReady
	m.statusBar.SetStatus(components.StatusReady)
	m.requests++
	m.totalBytes += int64(len(reply))
	m.statusBar.SetCounters(m.requests, m.totalBytes)

	switch {
	case m.cancelled:
		// The upstream error here is just the context cancellation.
		m.popLastUserMessage()
		m.appendNotice("[Cancelled]")

	case err != nil:
		m.popLastUserMessage()
		m.appendError(err.Error())

	case m.streamErr != "":
		m.popLastUserMessage()
		m.appendError(m.streamErr)

	case reply == "":
		m.popLastUserMessage()
		m.appendNotice("Empty reply from endpoint")

	default:
		m.history = append(m.history, relay.NewAssistantMessage(reply))
		m.transcript = append(m.transcript, transcriptEntry{kind: entryAssistant, text: reply})
	}

	m.cancelled = false
	m.streamErr = ""
	m.refreshViewport()
	m.viewport.GotoBottom()
}

// popLastUserMessage removes the pending user turn so a failed exchange
// does not poison the next request's history.
func (m *Model) popLastUserMessage() {
	if n := len(m.history); n > 0 && m.history[n-1].Role == "user" {
		m.history = m.history[:n-1]
	}
}

func (m *Model) handleModelsLoaded(msg ModelsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.appendError("Failed to list models: " + msg.Err.Error())
		m.refreshViewport()
		return m, nil
	}

	if len(msg.Models) == 0 {
		m.appendNotice("No models reported by the endpoint")
		m.refreshViewport()
		return m, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Available models (%d):\n", len(msg.Models))
	for _, name := range msg.Models {
		marker := "  "
		if name == m.modelName {
			marker = "* "
		}
		b.WriteString(marker + name + "\n")
	}
	m.appendNotice(strings.TrimRight(b.String(), "\n"))
	m.refreshViewport()
	return m, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Model) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) appendNotice(text string) {
	m.transcript = append(m.transcript, transcriptEntry{kind: entryNotice, text: text})
}

func (m *Model) appendError(text string) {
	m.transcript = append(m.transcript, transcriptEntry{kind: entryError, text: text})
}
