// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single question command handler for the rigrelay CLI.
//
// Handles "rigrelay ask" which forwards one question to the configured
// endpoint and prints the reply.
//
// Examples:
//   rigrelay ask "What is a goroutine?"
//   rigrelay ask "Review this:" --file main.go
//   rigrelay ask --model qwen2.5-coder:14b "Explain defer"
//   rigrelay ask --json "List HTTP status codes"
//
// Flags:
//   -f, --file FILE     Include file content with the question
//   -m, --model NAME    Use specific model (overrides config)
//   --json              Output response as JSON
//   -q, --quiet         Suppress the trailing stats line
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/rigrelay/internal/config"
	"github.com/jeranaias/rigrelay/internal/relay"
	"github.com/jeranaias/rigrelay/internal/stats"
)

// MaxFileSize is the largest file --file will inline into a prompt (50KB).
const MaxFileSize = 50 * 1024

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdownRenderer is the shared glamour renderer for assistant replies.
var markdownRenderer *glamour.TermRenderer

func init() {
	var err error
	markdownRenderer, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		// Plain text fallback; rendering is cosmetic
		markdownRenderer = nil
	}
}

// renderMarkdown renders markdown content for terminal display. The
// original content comes back whenever rendering is unavailable or fails.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}

	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayResponse prints a reply, markdown-rendered only on a TTY so
// piped output stays byte-clean.
func displayResponse(response string) {
	if IsStdoutTTY() && ColorsEnabled() {
		fmt.Print(renderMarkdown(response))
	} else {
		fmt.Print(response)
	}
}

// =============================================================================
// FILE CONTEXT
// =============================================================================

// readFileForContext reads a file and formats it for inclusion in a
// prompt. Files larger than MaxFileSize are rejected rather than
// truncated; a silently clipped file is worse than an error.
func readFileForContext(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", fmt.Errorf("cannot access file: %w", err)
	}

	if info.Size() > MaxFileSize {
		return "", fmt.Errorf("file too large: %d bytes (max %d bytes)", info.Size(), MaxFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("\n--- File: %s ---\n", path))
	builder.Write(content)
	builder.WriteString("\n--- End of file ---\n")

	return builder.String(), nil
}

// =============================================================================
// ASK HANDLER
// =============================================================================

// askResponse is the --json output shape for a one-shot question.
type askResponse struct {
	Model      string `json:"model"`
	Content    string `json:"content"`
	DurationMS int64  `json:"duration_ms"`
}

// HandleAskCommand handles the "ask" command.
func HandleAskCommand(args Args) error {
	if strings.TrimSpace(args.Query) == "" {
		return ErrMissingArgument("question", `rigrelay ask "What is a goroutine?"`)
	}

	cfg := config.Global()

	model := args.Model
	if model == "" {
		model = cfg.API.Model
	}

	prompt := args.Query
	if args.File != "" {
		fileContent, err := readFileForContext(args.File)
		if err != nil {
			return err
		}
		prompt += "\n" + fileContent
	}

	req := relay.ChatRequest{
		Model:    model,
		Messages: []relay.ChatMessage{relay.NewUserMessage(prompt)},
		Stream:   false,
	}

	// Ctrl+C aborts the in-flight request instead of killing the process
	// mid-write.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := relay.NewClient()
	start := time.Now()
	content, err := client.Forward(ctx, cfg.API.Endpoint, cfg.API.Key, req)
	duration := time.Since(start)

	recordAskUsage(cfg, model, duration, content, err)

	if err != nil {
		return err
	}

	if args.JSON {
		out := askResponse{
			Model:      model,
			Content:    content,
			DurationMS: duration.Milliseconds(),
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}

	displayResponse(content)
	if !strings.HasSuffix(content, "\n") {
		fmt.Println()
	}

	if !args.Quiet {
		fmt.Fprintf(os.Stderr, "%s\n",
			DimStyle.Render(fmt.Sprintf("%s | %s", model, duration.Round(time.Millisecond))))
	}

	return nil
}

// recordAskUsage logs the request to the usage store when recording is
// enabled. Best effort: a broken stats database never fails an answer
// the user already has.
func recordAskUsage(cfg *config.Config, model string, duration time.Duration, content string, reqErr error) {
	store := openStats(cfg)
	if store == nil {
		return
	}
	defer store.Close()

	status := stats.StatusOK
	if reqErr != nil {
		status = stats.StatusError
	}

	_ = store.Record(stats.RequestStat{
		Time:     time.Now(),
		Kind:     stats.KindChat,
		Model:    model,
		Status:   status,
		Duration: duration,
		Bytes:    len(content),
	})
}
