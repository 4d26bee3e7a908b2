// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command handler for the rigrelay CLI.
//
// Handles "rigrelay chat", a REPL against the configured endpoint.
// Replies stream through the same stream.Manager the server uses, so
// cancellation and usage recording behave identically in both front-ends.
//
// Examples:
//   rigrelay chat                          Interactive chat (default model)
//   rigrelay chat --model qwen2.5-coder:14b
//   rigrelay chat --no-stream              Whole replies instead of streaming
//   rigrelay chat --tui                    Full-screen TUI
//
// Interactive commands (during chat):
//   /model [name]       Show or switch model
//   /stream [on|off]    Show or toggle streaming delivery
//   /cancel             Cancel the in-flight response
//   /clear              Clear conversation history
//   /status             Show session statistics
//   /history            Show conversation history
//   /help               Show available commands
//   /quit               Exit chat
//   Ctrl+C              Cancel current response
//   Ctrl+D              Exit chat
package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/peterh/liner"

	"github.com/jeranaias/rigrelay/internal/config"
	"github.com/jeranaias/rigrelay/internal/relay"
	"github.com/jeranaias/rigrelay/internal/stats"
	"github.com/jeranaias/rigrelay/internal/stream"
	uichat "github.com/jeranaias/rigrelay/internal/ui/chat"
	"github.com/jeranaias/rigrelay/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI wraps liner to provide line editing with persistent history.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI persisting history at historyFile.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	cli := &ChatCLI{
		line:        line,
		historyFile: historyFile,
	}
	cli.LoadHistory()

	return cli
}

// LoadHistory loads input history from the history file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads one line with history navigation and editing.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}

	return input, nil
}

// SaveHistory persists input history. The write is atomic so a crash
// mid-save cannot truncate the existing history file.
func (c *ChatCLI) SaveHistory() {
	var buf bytes.Buffer
	if _, err := c.line.WriteHistory(&buf); err != nil {
		return
	}
	_ = util.AtomicWriteFile(c.historyFile, buf.Bytes(), 0600)
}

// Close saves history and releases the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// ChatSession holds the state of one interactive chat.
type ChatSession struct {
	Messages []relay.ChatMessage

	Config    *config.Config
	Model     string
	Streaming bool
	Quiet     bool

	Client  *relay.Client
	Manager *stream.Manager
	Store   *stats.Store // nil when usage recording is off

	StartTime  time.Time
	Requests   int
	TotalBytes int

	InputCLI *ChatCLI

	// reply and streamErr are written by the emitter, which runs on the
	// same goroutine as Manager.Stream; only activeID crosses goroutines
	// (the signal handler reads it).
	reply     strings.Builder
	streamErr string

	mu       sync.Mutex
	activeID string
}

// NewChatSession builds a session from config and flags.
func NewChatSession(args Args) *ChatSession {
	cfg := config.Global()

	model := args.Model
	if model == "" {
		model = cfg.API.Model
	}

	streaming := cfg.Chat.Stream
	if args.NoStream {
		streaming = false
	}

	historyFile, err := cfg.HistoryPath()
	if err != nil {
		historyFile = "" // liner falls back to in-memory history
	}

	session := &ChatSession{
		Messages:  make([]relay.ChatMessage, 0),
		Config:    cfg,
		Model:     model,
		Streaming: streaming,
		Quiet:     args.Quiet,
		Client:    relay.NewClient(),
		Store:     openStats(cfg),
		StartTime: time.Now(),
		InputCLI:  NewChatCLI(historyFile),
	}

	manager := stream.NewManager(session.Client, stream.NewRegistry(), stream.EmitterFunc(session.emit))
	if session.Store != nil {
		manager = manager.WithRecorder(stream.RecorderFunc(session.recordStream))
	}
	session.Manager = manager

	return session
}

// Close releases the session's terminal and store handles.
func (s *ChatSession) Close() {
	s.InputCLI.Close()
	if s.Store != nil {
		s.Store.Close()
	}
}

// setActive publishes the id of the in-flight stream for the signal
// handler; clearActive retires it.
func (s *ChatSession) setActive(id string) {
	s.mu.Lock()
	s.activeID = id
	s.mu.Unlock()
}

func (s *ChatSession) clearActive() {
	s.setActive("")
}

// ActiveID returns the id of the in-flight stream, or "".
func (s *ChatSession) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// liveEcho reports whether chunks should be printed as they arrive.
// With markdown rendering on, the reply is collected and rendered once
// complete instead; re-rendering partial markdown flickers badly.
func (s *ChatSession) liveEcho() bool {
	return !(s.Config.UI.Markdown && IsStdoutTTY() && ColorsEnabled())
}

// emit receives the stream events for the active id and turns frames
// back into text. Non-text frames (separators, the end sentinel) are
// dropped; the relay's wire format is an implementation detail here.
func (s *ChatSession) emit(event, payload string) {
	id := s.ActiveID()

	switch event {
	case stream.ErrorEvent(id):
		s.streamErr = payload

	case stream.ChunkEvent(id):
		text, ok := relay.FrameText(payload)
		if !ok || text == "" {
			return
		}
		s.reply.WriteString(text)
		if s.liveEcho() {
			fmt.Print(text)
		}
	}
}

// recordStream logs one finished stream to the usage store.
func (s *ChatSession) recordStream(stat stream.StreamStat) {
	status := stats.StatusOK
	if stat.Err != nil {
		status = stats.StatusError
	}

	_ = s.Store.Record(stats.RequestStat{
		Time:     time.Now(),
		Kind:     stats.KindStream,
		Model:    stat.Model,
		Status:   status,
		Duration: stat.Duration,
		Chunks:   stat.Chunks,
		Bytes:    stat.Bytes,
	})
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChatCommand handles the "chat" command.
func HandleChatCommand(args Args) error {
	if args.TUI {
		return uichat.Run(config.Global(), args.Model)
	}

	session := NewChatSession(args)
	defer session.Close()

	if !session.Quiet {
		printWelcome(session)
	}

	// Ctrl+C during a response cancels that response. At the prompt,
	// liner owns the terminal and reports Ctrl+C as ErrPromptAborted
	// instead, so the handler only ever fires mid-stream.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		for range sigChan {
			if id := session.ActiveID(); id != "" {
				session.Manager.Cancel(id)
				fmt.Fprintln(os.Stderr, "\n"+WarningStyle.Render("[Cancelled]"))
			}
		}
	}()

	for {
		input, err := session.InputCLI.ReadInput(PromptStyle.Render("rigrelay> "))
		if err != nil {
			// Ctrl+C at the prompt (ErrPromptAborted) or Ctrl+D both end
			// the session.
			fmt.Println()
			printExitSummary(session)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldContinue, err := handleSlashCommand(input, session)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !shouldContinue {
				printExitSummary(session)
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			printExitSummary(session)
			return nil
		}

		if err := processMessage(session, input); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
	}
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// processMessage sends one user message and renders the reply.
func processMessage(session *ChatSession, input string) error {
	session.Messages = append(session.Messages, relay.NewUserMessage(input))

	req := relay.ChatRequest{
		Model:    session.Model,
		Messages: session.Messages,
		Stream:   session.Streaming,
	}

	fmt.Println()
	start := time.Now()

	var reply string
	var err error
	if session.Streaming {
		reply, err = session.streamReply(req)
	} else {
		reply, err = session.wholeReply(req)
	}

	if err != nil {
		// Drop the user message so a retry does not double it
		session.Messages = session.Messages[:len(session.Messages)-1]
		return err
	}

	if reply == "" {
		// Cancelled before any content, or an empty upstream reply;
		// nothing to keep in history either way.
		session.Messages = session.Messages[:len(session.Messages)-1]
		fmt.Println()
		return nil
	}

	if !session.liveEcho() || !session.Streaming {
		displayResponse(reply)
	}
	if !strings.HasSuffix(reply, "\n") {
		fmt.Println()
	}
	fmt.Println()

	session.Messages = append(session.Messages, relay.NewAssistantMessage(reply))
	session.Requests++
	session.TotalBytes += len(reply)

	if !session.Quiet {
		fmt.Fprintf(os.Stderr, "%s\n", DimStyle.Render(fmt.Sprintf("%s | %s | %s",
			session.Model,
			util.FormatBytes(int64(len(reply))),
			time.Since(start).Round(time.Millisecond))))
	}

	return nil
}

// streamReply runs one streaming exchange and returns the accumulated
// reply text. A mid-stream failure keeps the partial reply and is
// reported after it.
func (s *ChatSession) streamReply(req relay.ChatRequest) (string, error) {
	id := uuid.New().String()
	s.reply.Reset()
	s.streamErr = ""

	s.setActive(id)
	defer s.clearActive()

	if _, err := s.Manager.Stream(context.Background(), s.Config.API.Endpoint, s.Config.API.Key, req, id); err != nil {
		return "", err
	}

	if s.streamErr != "" {
		fmt.Fprintf(os.Stderr, "\n%s %s\n", ErrorStyle.Render("[Stream error]"), s.streamErr)
	}

	return s.reply.String(), nil
}

// wholeReply runs one non-streaming exchange.
func (s *ChatSession) wholeReply(req relay.ChatRequest) (string, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Registered under a fresh id so Ctrl+C and /cancel work the same
	// way for whole replies as for streams.
	id := uuid.New().String()
	if err := s.Manager.Registry().Register(id, cancel); err != nil {
		return "", err
	}
	defer s.Manager.Registry().Remove(id)

	s.setActive(id)
	defer s.clearActive()

	content, err := s.Client.Forward(ctx, s.Config.API.Endpoint, s.Config.API.Key, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", nil // cancelled; not an error worth reporting twice
		}
		return "", err
	}
	return content, nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands. Returns shouldContinue
// false when the session should end.
func handleSlashCommand(cmd string, session *ChatSession) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		printChatHelp()
		return true, nil

	case "/clear", "/c":
		session.Messages = session.Messages[:0]
		fmt.Println(CommandStyle.Render("[Conversation cleared]"))
		return true, nil

	case "/model", "/m":
		return handleModelCommand(session, args)

	case "/stream":
		return handleStreamCommand(session, args)

	case "/cancel":
		if id := session.ActiveID(); id != "" && session.Manager.Cancel(id) {
			fmt.Println(WarningStyle.Render("[Cancelled]"))
		} else {
			fmt.Println(InfoStyle.Render("[No active response]"))
		}
		return true, nil

	case "/status", "/s":
		printStatus(session)
		return true, nil

	case "/history":
		printHistory(session)
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// handleModelCommand shows or switches the session model.
func handleModelCommand(session *ChatSession, args []string) (bool, error) {
	if len(args) == 0 {
		fmt.Printf("%s Current model: %s\n",
			InfoStyle.Render("[Model]"),
			CommandStyle.Render(session.Model))
		return true, nil
	}

	newModel := args[0]

	// Best effort check against the endpoint's model list; a model the
	// endpoint does not advertise may still work, so only warn.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if names, err := session.Client.ListModels(ctx, session.Config.API.Endpoint, session.Config.API.Key); err == nil {
		known := false
		for _, name := range names {
			if name == newModel {
				known = true
				break
			}
		}
		if !known {
			fmt.Fprintf(os.Stderr, "%s Model %q not advertised by the endpoint, using it anyway\n",
				WarningStyle.Render("[Warning]"), newModel)
		}
	}

	session.Model = newModel
	fmt.Printf("%s Switched to model: %s\n", SuccessStyle.Render("[OK]"), newModel)

	return true, nil
}

// handleStreamCommand shows or toggles streaming delivery.
func handleStreamCommand(session *ChatSession, args []string) (bool, error) {
	if len(args) == 0 {
		state := "off"
		if session.Streaming {
			state = "on"
		}
		fmt.Printf("%s Streaming is %s\n", InfoStyle.Render("[Stream]"), CommandStyle.Render(state))
		return true, nil
	}

	on, err := ParseBoolString(args[0])
	if err != nil {
		return true, fmt.Errorf("usage: /stream [on|off]")
	}

	session.Streaming = on
	if on {
		fmt.Println(SuccessStyle.Render("[OK]") + " Streaming enabled")
	} else {
		fmt.Println(SuccessStyle.Render("[OK]") + " Streaming disabled")
	}
	return true, nil
}

// =============================================================================
// DISPLAY
// =============================================================================

// printWelcome prints the session banner.
func printWelcome(session *ChatSession) {
	fmt.Println()
	fmt.Println(TitleStyle.Render("rigrelay interactive chat"))
	fmt.Println(RenderSeparator(30))
	fmt.Printf("%s %s\n",
		InfoStyle.Render("Model:"),
		CommandStyle.Render(session.Model))
	fmt.Printf("%s %s\n",
		InfoStyle.Render("Endpoint:"),
		ValueStyle.Render(session.Config.API.Endpoint))

	delivery := "whole replies"
	if session.Streaming {
		delivery = "streaming"
	}
	fmt.Printf("%s %s\n", InfoStyle.Render("Delivery:"), delivery)

	if session.Store == nil {
		fmt.Printf("%s %s\n", InfoStyle.Render("Usage log:"), DimStyle.Render("off"))
	}

	fmt.Println()
	fmt.Println(InfoStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Println()
}

// printChatHelp prints the in-session command list.
func printChatHelp() {
	fmt.Println()
	fmt.Println(TitleStyle.Render("Available Commands"))
	fmt.Println(RenderSeparator(20))
	fmt.Println()

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/model [name]", "Show or switch model"},
		{"/stream [on|off]", "Show or toggle streaming delivery"},
		{"/cancel", "Cancel the in-flight response"},
		{"/clear", "Clear conversation history"},
		{"/status", "Show session statistics"},
		{"/history", "Show conversation history"},
		{"/help", "Show this help"},
		{"/quit", "Exit chat"},
	}

	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			CommandStyle.Render(util.PadWidth(c.cmd, 18)),
			InfoStyle.Render(c.desc))
	}

	fmt.Println()
	fmt.Println(InfoStyle.Render("Tip: Ctrl+C cancels the current response, Ctrl+D exits"))
	fmt.Println()
}

// printStatus prints session statistics.
func printStatus(session *ChatSession) {
	elapsed := time.Since(session.StartTime).Round(time.Second)

	fmt.Println()
	fmt.Println(TitleStyle.Render("Session Status"))
	fmt.Println(RenderSeparator(20))
	fmt.Println()

	fmt.Printf("  %s %s\n", InfoStyle.Render("Model:"), CommandStyle.Render(session.Model))
	fmt.Printf("  %s %s\n", InfoStyle.Render("Endpoint:"), session.Config.API.Endpoint)
	fmt.Printf("  %s %s\n", InfoStyle.Render("Duration:"), elapsed.String())
	fmt.Printf("  %s %d messages\n", InfoStyle.Render("History:"), len(session.Messages))
	fmt.Printf("  %s %s\n", InfoStyle.Render("Requests:"), util.FormatCount(int64(session.Requests)))
	fmt.Printf("  %s %s\n", InfoStyle.Render("Received:"), util.FormatBytes(int64(session.TotalBytes)))

	fmt.Println()
}

// printHistory prints the conversation so far, one line per message.
func printHistory(session *ChatSession) {
	if len(session.Messages) == 0 {
		fmt.Println(InfoStyle.Render("[No messages yet]"))
		return
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render("Conversation History"))
	fmt.Println(RenderSeparator(25))
	fmt.Println()

	for i, msg := range session.Messages {
		role := msg.Role
		switch role {
		case "user":
			role = PromptStyle.Render("You")
		case "assistant":
			role = CommandStyle.Render("AI")
		}

		var text string
		if t, ok := relay.MessageText(msg); ok {
			text = t
		} else {
			text = string(msg.Content)
		}
		text = strings.ReplaceAll(text, "\n", " ")
		text = util.TruncateWidth(text, 80)

		fmt.Printf("  %d. %s: %s\n", i+1, role, text)
	}

	fmt.Println()
}

// printExitSummary prints the session summary on exit.
func printExitSummary(session *ChatSession) {
	if session.Requests == 0 {
		fmt.Println(InfoStyle.Render("Goodbye!"))
		return
	}

	elapsed := time.Since(session.StartTime).Round(time.Second)

	fmt.Println()
	fmt.Println(TitleStyle.Render("Session Summary"))
	fmt.Println(RenderSeparator(15))

	fmt.Printf("  %s %s\n", InfoStyle.Render("Requests:"), util.FormatCount(int64(session.Requests)))
	fmt.Printf("  %s %s\n", InfoStyle.Render("Received:"), util.FormatBytes(int64(session.TotalBytes)))
	fmt.Printf("  %s %s\n", InfoStyle.Render("Duration:"), elapsed.String())

	fmt.Println()
	fmt.Println(InfoStyle.Render("Goodbye!"))
}
