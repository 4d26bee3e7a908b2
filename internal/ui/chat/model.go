// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// model.go - Bubble Tea model for the chat TUI.
//
// The model keeps two parallel records of the conversation: the
// transcript (what the viewport renders, including notices and errors)
// and the history (the relay messages sent upstream on every turn).
package chat

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"

	"github.com/jeranaias/rigrelay/internal/config"
	"github.com/jeranaias/rigrelay/internal/relay"
	"github.com/jeranaias/rigrelay/internal/stats"
	"github.com/jeranaias/rigrelay/internal/stream"
	"github.com/jeranaias/rigrelay/internal/ui/components"
	"github.com/jeranaias/rigrelay/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// State represents the current state of the chat view.
type State int

const (
	StateReady     State = iota // Ready for input
	StateWaiting                // Request sent, no content yet
	StateStreaming              // Receiving streaming response
)

// =============================================================================
// TRANSCRIPT
// =============================================================================

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryNotice
	entryError
)

// transcriptEntry is one rendered block in the conversation viewport.
type transcriptEntry struct {
	kind entryKind
	text string
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat TUI.
type Model struct {
	cfg   *config.Config
	theme *styles.Theme
	keys  KeyMap

	client  *relay.Client
	manager *stream.Manager
	store   *stats.Store

	header    *components.Header
	statusBar *components.StatusBar

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	transcript []transcriptEntry
	history    []relay.ChatMessage

	modelName string
	streaming bool

	state     State
	activeID  string
	cancelled bool
	buffer    *StreamingBuffer
	current   strings.Builder // partial assistant reply
	streamErr string
	started   time.Time

	requests   int
	totalBytes int64

	renderer *glamour.TermRenderer
	width    int
	height   int
	ready    bool
}

// New creates the chat TUI model. The manager must have been built with
// an emitter that forwards stream events into the program as
// StreamEventMsg values.
func New(cfg *config.Config, modelName string, client *relay.Client, manager *stream.Manager, store *stats.Store) *Model {
	theme := styles.NewTheme()

	input := textinput.New()
	input.Placeholder = "Message (or /help)"
	input.Prompt = "> "
	input.PromptStyle = theme.InputPrompt
	input.PlaceholderStyle = theme.InputPlaceholder
	input.CharLimit = 0
	input.Focus()

	sp := spinner.New(
		spinner.WithSpinner(styles.DotsSpinner.Bubbles()),
		spinner.WithStyle(theme.Spinner),
	)

	if modelName == "" {
		modelName = cfg.API.Model
	}

	m := &Model{
		cfg:       cfg,
		theme:     theme,
		keys:      DefaultKeyMap(),
		client:    client,
		manager:   manager,
		store:     store,
		header:    components.NewHeader(theme),
		statusBar: components.NewStatusBar(theme),
		input:     input,
		spinner:   sp,
		modelName: modelName,
		streaming: cfg.Chat.Stream,
		buffer:    NewStreamingBuffer(),
	}

	m.header.SetBrand("rigrelay")
	m.header.SetModel(modelName)
	m.header.SetEndpoint(endpointHost(cfg.API.Endpoint))
	m.statusBar.SetModel(modelName)
	m.statusBar.SetStreamMode(m.streaming)
	m.statusBar.SetHint(renderShortcuts(m.keys))

	return m
}

// Init starts the cursor blink.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Busy reports whether a response is in flight.
func (m *Model) Busy() bool {
	return m.state != StateReady
}

// endpointHost reduces a chat endpoint URL to its host for display.
func endpointHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Host
}

// renderShortcuts formats the short help line for the status bar.
func renderShortcuts(keys KeyMap) string {
	var parts []string
	for _, b := range keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, "  ")
}

// =============================================================================
// REQUEST COMMANDS
// =============================================================================

// submit sends the typed message upstream and returns the commands that
// drive the exchange.
func (m *Model) submit(text string) tea.Cmd {
	m.history = append(m.history, relay.NewUserMessage(text))
	m.transcript = append(m.transcript, transcriptEntry{kind: entryUser, text: text})

	req := relay.ChatRequest{
		Model:    m.modelName,
		Messages: m.history,
		Stream:   m.streaming,
	}

	m.state = StateWaiting
	m.cancelled = false
	m.streamErr = ""
	m.current.Reset()
	m.buffer.Reset()
	m.started = time.Now()
	m.statusBar.SetStatus(components.StatusWaiting)
	m.refreshViewport()

	var run tea.Cmd
	if m.streaming {
		run = m.streamCmd(req)
	} else {
		run = m.askCmd(req)
	}

	return tea.Batch(run, m.spinner.Tick, streamTickCmd())
}

// streamCmd runs the blocking stream call. Tokens arrive separately as
// StreamEventMsg through the manager's emitter; the returned message
// only marks completion.
func (m *Model) streamCmd(req relay.ChatRequest) tea.Cmd {
	id := uuid.New().String()
	m.activeID = id

	manager := m.manager
	endpoint := m.cfg.API.Endpoint
	apiKey := m.cfg.API.Key

	return func() tea.Msg {
		_, err := manager.Stream(context.Background(), endpoint, apiKey, req, id)
		return StreamFinishedMsg{ID: id, Err: err}
	}
}

// askCmd runs one whole (non-streaming) exchange. The cancel func is
// registered with the stream registry under a fresh id so Esc works the
// same way for whole replies as for streams.
func (m *Model) askCmd(req relay.ChatRequest) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())

	id := uuid.New().String()
	if err := m.manager.Registry().Register(id, cancel); err != nil {
		cancel()
		return func() tea.Msg { return AskFinishedMsg{Err: err} }
	}
	m.activeID = id

	client := m.client
	registry := m.manager.Registry()
	store := m.store
	endpoint := m.cfg.API.Endpoint
	apiKey := m.cfg.API.Key
	modelName := req.Model
	start := time.Now()

	return func() tea.Msg {
		defer registry.Remove(id)
		defer cancel()

		reply, err := client.Forward(ctx, endpoint, apiKey, req)
		recordAsk(store, modelName, time.Since(start), len(reply), err)

		if ctx.Err() != nil {
			return AskFinishedMsg{Cancelled: true}
		}
		return AskFinishedMsg{Reply: reply, Err: err}
	}
}

// loadModelsCmd fetches the endpoint's model list for /models.
func (m *Model) loadModelsCmd() tea.Cmd {
	client := m.client
	endpoint := m.cfg.API.Endpoint
	apiKey := m.cfg.API.Key

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		models, err := client.ListModels(ctx, endpoint, apiKey)
		return ModelsLoadedMsg{Models: models, Err: err}
	}
}

// recordAsk logs one whole-reply exchange to the usage store.
func recordAsk(store *stats.Store, model string, elapsed time.Duration, bytes int, err error) {
	if store == nil {
		return
	}

	status := stats.StatusOK
	if err != nil {
		status = stats.StatusError
	}

	_ = store.Record(stats.RequestStat{
		Time:     time.Now(),
		Kind:     stats.KindChat,
		Model:    model,
		Status:   status,
		Duration: elapsed,
		Bytes:    bytes,
	})
}

// cancelActive cancels the in-flight response, if any.
func (m *Model) cancelActive() {
	if m.activeID == "" {
		return
	}
	m.cancelled = true
	m.manager.Cancel(m.activeID)
}
