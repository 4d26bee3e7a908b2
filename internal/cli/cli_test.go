// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Tests for CLI parsing and error-to-exit-code mapping: the pieces every
// command path goes through before any network traffic happens.
package cli

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/jeranaias/rigrelay/internal/relay"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"summary"},
			wantSub: "summary",
		},
		{
			name:    "subcommand with flag",
			args:    []string{"recent", "--limit", "25"},
			wantSub: "recent",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("limit") != "25" {
					t.Errorf("Flag(limit) = %q, want %q", p.Flag("limit"), "25")
				}
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"recent", "--limit=25"},
			wantSub: "recent",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("limit") != "25" {
					t.Errorf("Flag(limit) = %q, want %q", p.Flag("limit"), "25")
				}
			},
		},
		{
			name:    "boolean flag",
			args:    []string{"reset", "--confirm"},
			wantSub: "reset",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("confirm") {
					t.Error("BoolFlag(confirm) should be true")
				}
			},
		},
		{
			name:    "explicit boolean value",
			args:    []string{"reset", "--confirm=false"},
			wantSub: "reset",
			validate: func(t *testing.T, p *ArgParser) {
				if p.BoolFlag("confirm") {
					t.Error("BoolFlag(confirm) should be false")
				}
				if !p.HasFlag("confirm") {
					t.Error("HasFlag(confirm) should be true for explicit false")
				}
			},
		},
		{
			name:    "set with key and value positionals",
			args:    []string{"set", "api.model", "llama3.1:8b"},
			wantSub: "set",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Positional(1) != "api.model" {
					t.Errorf("Positional(1) = %q, want %q", p.Positional(1), "api.model")
				}
				if p.Positional(2) != "llama3.1:8b" {
					t.Errorf("Positional(2) = %q, want %q", p.Positional(2), "llama3.1:8b")
				}
			},
		},
		{
			name:    "multiple positional args",
			args:    []string{"set", "api.endpoint", "http://x", "extra"},
			wantSub: "set",
			validate: func(t *testing.T, p *ArgParser) {
				if p.PositionalCount() != 4 {
					t.Errorf("PositionalCount() = %d, want 4", p.PositionalCount())
				}
				joined := strings.Join(p.PositionalFrom(1), " ")
				if joined != "api.endpoint http://x extra" {
					t.Errorf("PositionalFrom(1) joined = %q", joined)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewArgParser(tt.args)
			if parser.Subcommand() != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", parser.Subcommand(), tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, parser)
			}
		})
	}
}

func TestArgParser_FlagIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		flagName   string
		defaultVal int
		want       int
	}{
		{
			name:       "flag present",
			args:       []string{"recent", "--limit", "25"},
			flagName:   "limit",
			defaultVal: 10,
			want:       25,
		},
		{
			name:       "flag missing uses default",
			args:       []string{"recent"},
			flagName:   "limit",
			defaultVal: 10,
			want:       10,
		},
		{
			name:       "invalid int uses default",
			args:       []string{"recent", "--limit", "lots"},
			flagName:   "limit",
			defaultVal: 10,
			want:       10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewArgParser(tt.args)
			got := parser.FlagIntOrDefault(tt.flagName, tt.defaultVal)
			if got != tt.want {
				t.Errorf("FlagIntOrDefault(%q, %d) = %d, want %d", tt.flagName, tt.defaultVal, got, tt.want)
			}
		})
	}
}

func TestArgParser_HasFlag(t *testing.T) {
	parser := NewArgParser([]string{"recent", "--confirm", "--limit", "25"})

	if !parser.HasFlag("confirm") {
		t.Error("HasFlag(confirm) should be true")
	}
	if !parser.HasFlag("limit") {
		t.Error("HasFlag(limit) should be true")
	}
	if parser.HasFlag("nonexistent") {
		t.Error("HasFlag(nonexistent) should be false")
	}
}

func TestArgParser_EmptyArgs(t *testing.T) {
	parser := NewArgParser([]string{})
	if parser.Subcommand() != "" {
		t.Errorf("Subcommand() = %q, want empty", parser.Subcommand())
	}
	if parser.PositionalCount() != 0 {
		t.Errorf("PositionalCount() = %d, want 0", parser.PositionalCount())
	}
}

func TestArgParser_OnlyFlags(t *testing.T) {
	parser := NewArgParser([]string{"--confirm", "--json"})
	if parser.Subcommand() != "" {
		t.Errorf("Subcommand() = %q, want empty", parser.Subcommand())
	}
	if !parser.BoolFlag("confirm") {
		t.Error("BoolFlag(confirm) should be true")
	}
	if !parser.BoolFlag("json") {
		t.Error("BoolFlag(json) should be true")
	}
}

// =============================================================================
// PARSE BOOL STRING TESTS
// =============================================================================

func TestParseBoolString(t *testing.T) {
	trueValues := []string{"true", "TRUE", "True", "yes", "YES", "y", "Y", "1", "on", "ON"}
	falseValues := []string{"false", "FALSE", "False", "no", "NO", "n", "N", "0", "off", "OFF"}

	for _, v := range trueValues {
		t.Run("true_"+v, func(t *testing.T) {
			got, err := ParseBoolString(v)
			if err != nil {
				t.Errorf("ParseBoolString(%q) error = %v", v, err)
			}
			if !got {
				t.Errorf("ParseBoolString(%q) = false, want true", v)
			}
		})
	}

	for _, v := range falseValues {
		t.Run("false_"+v, func(t *testing.T) {
			got, err := ParseBoolString(v)
			if err != nil {
				t.Errorf("ParseBoolString(%q) error = %v", v, err)
			}
			if got {
				t.Errorf("ParseBoolString(%q) = true, want false", v)
			}
		})
	}

	t.Run("invalid", func(t *testing.T) {
		if _, err := ParseBoolString("maybe"); err == nil {
			t.Error("ParseBoolString(maybe) should error")
		}
	})
}

// =============================================================================
// INTEGRATION-STYLE TESTS (testing Parse() with os.Args simulation)
// =============================================================================

// TestParse_Integration exercises Parse() end to end by temporarily
// replacing os.Args.
func TestParse_Integration(t *testing.T) {
	originalArgs := os.Args
	defer func() { os.Args = originalArgs }()

	tests := []struct {
		name        string
		args        []string
		wantCommand Command
		validate    func(*testing.T, Args)
	}{
		{
			name:        "no args defaults to chat",
			args:        []string{"rigrelay"},
			wantCommand: CmdChat,
		},
		{
			name:        "chat command",
			args:        []string{"rigrelay", "chat"},
			wantCommand: CmdChat,
		},
		{
			name:        "chat with tui flag",
			args:        []string{"rigrelay", "chat", "--tui"},
			wantCommand: CmdChat,
			validate: func(t *testing.T, a Args) {
				if !a.TUI {
					t.Error("TUI should be true")
				}
			},
		},
		{
			name:        "chat without streaming",
			args:        []string{"rigrelay", "chat", "--no-stream"},
			wantCommand: CmdChat,
			validate: func(t *testing.T, a Args) {
				if !a.NoStream {
					t.Error("NoStream should be true")
				}
			},
		},
		{
			name:        "chat with model",
			args:        []string{"rigrelay", "chat", "--model", "llama3.1:8b"},
			wantCommand: CmdChat,
			validate: func(t *testing.T, a Args) {
				if a.Model != "llama3.1:8b" {
					t.Errorf("Model = %q, want %q", a.Model, "llama3.1:8b")
				}
			},
		},
		{
			name:        "ask command",
			args:        []string{"rigrelay", "ask", "What is a goroutine?"},
			wantCommand: CmdAsk,
			validate: func(t *testing.T, a Args) {
				if a.Query != "What is a goroutine?" {
					t.Errorf("Query = %q, want %q", a.Query, "What is a goroutine?")
				}
			},
		},
		{
			name:        "ask joins words",
			args:        []string{"rigrelay", "ask", "What", "is", "Go"},
			wantCommand: CmdAsk,
			validate: func(t *testing.T, a Args) {
				if a.Query != "What is Go" {
					t.Errorf("Query = %q, want %q", a.Query, "What is Go")
				}
			},
		},
		{
			name:        "ask with file context",
			args:        []string{"rigrelay", "ask", "--file", "main.go", "Explain this"},
			wantCommand: CmdAsk,
			validate: func(t *testing.T, a Args) {
				if a.File != "main.go" {
					t.Errorf("File = %q, want %q", a.File, "main.go")
				}
				if a.Query != "Explain this" {
					t.Errorf("Query = %q, want %q", a.Query, "Explain this")
				}
			},
		},
		{
			name:        "ask with quiet flag",
			args:        []string{"rigrelay", "ask", "-q", "Question"},
			wantCommand: CmdAsk,
			validate: func(t *testing.T, a Args) {
				if !a.Quiet {
					t.Error("Quiet should be true")
				}
			},
		},
		{
			name:        "unknown command becomes a question",
			args:        []string{"rigrelay", "What", "is", "a", "channel"},
			wantCommand: CmdAsk,
			validate: func(t *testing.T, a Args) {
				if a.Query != "What is a channel" {
					t.Errorf("Query = %q, want %q", a.Query, "What is a channel")
				}
			},
		},
		{
			name:        "models command",
			args:        []string{"rigrelay", "models"},
			wantCommand: CmdModels,
		},
		{
			name:        "serve with port",
			args:        []string{"rigrelay", "serve", "--port", "9090"},
			wantCommand: CmdServe,
			validate: func(t *testing.T, a Args) {
				if a.Port != 9090 {
					t.Errorf("Port = %d, want 9090", a.Port)
				}
			},
		},
		{
			name:        "serve with port equals form",
			args:        []string{"rigrelay", "serve", "--port=9090"},
			wantCommand: CmdServe,
			validate: func(t *testing.T, a Args) {
				if a.Port != 9090 {
					t.Errorf("Port = %d, want 9090", a.Port)
				}
			},
		},
		{
			name:        "server alias",
			args:        []string{"rigrelay", "server"},
			wantCommand: CmdServe,
		},
		{
			name:        "stats with subcommand",
			args:        []string{"rigrelay", "stats", "recent", "--limit", "5"},
			wantCommand: CmdStats,
			validate: func(t *testing.T, a Args) {
				if a.Subcommand != "recent" {
					t.Errorf("Subcommand = %q, want %q", a.Subcommand, "recent")
				}
				if len(a.Raw) != 3 {
					t.Errorf("len(Raw) = %d, want 3", len(a.Raw))
				}
			},
		},
		{
			name:        "config with subcommand",
			args:        []string{"rigrelay", "config", "show"},
			wantCommand: CmdConfig,
			validate: func(t *testing.T, a Args) {
				if a.Subcommand != "show" {
					t.Errorf("Subcommand = %q, want %q", a.Subcommand, "show")
				}
			},
		},
		{
			name:        "version command",
			args:        []string{"rigrelay", "version"},
			wantCommand: CmdVersion,
		},
		{
			name:        "version flag",
			args:        []string{"rigrelay", "--version"},
			wantCommand: CmdVersion,
		},
		{
			name:        "help command",
			args:        []string{"rigrelay", "help"},
			wantCommand: CmdHelp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			cmd, args := Parse()

			if cmd != tt.wantCommand {
				t.Errorf("Command = %v, want %v", cmd, tt.wantCommand)
			}

			if tt.validate != nil {
				tt.validate(t, args)
			}
		})
	}
}

// =============================================================================
// EXIT CODE TESTS (errors.go)
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "nil error",
			err:  nil,
			want: ExitSuccess,
		},
		{
			name: "usage error",
			err:  NewUsageError("missing argument", "rigrelay ask <question>"),
			want: ExitUsageError,
		},
		{
			name: "relay transport error",
			err:  &relay.Error{Type: relay.ErrTypeTransport, Message: "request failed"},
			want: ExitNetworkError,
		},
		{
			name: "relay upstream error",
			err:  &relay.Error{Type: relay.ErrTypeUpstream, Message: "API error: 500 - boom", Status: 500},
			want: ExitUpstreamError,
		},
		{
			name: "relay endpoint error",
			err:  &relay.Error{Type: relay.ErrTypeEndpoint, Message: "missing host"},
			want: ExitConfigError,
		},
		{
			name: "connection message fallback",
			err:  errors.New("dial tcp 127.0.0.1:11434: connection refused"),
			want: ExitNetworkError,
		},
		{
			name: "generic error",
			err:  errors.New("something else entirely"),
			want: ExitGeneralError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestUsageError_Error(t *testing.T) {
	withHint := NewUsageError("missing required argument: question", `rigrelay ask "What is Go?"`)
	if !strings.Contains(withHint.Error(), "Usage:") {
		t.Errorf("UsageError with hint should include usage line, got %q", withHint.Error())
	}

	bare := NewUsageError("bad flag", "")
	if strings.Contains(bare.Error(), "Usage:") {
		t.Errorf("UsageError without hint should not include usage line, got %q", bare.Error())
	}
}

// =============================================================================
// DISPLAY HELPERS
// =============================================================================

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"empty", "", "(not set)"},
		{"short", "sk-12", "********"},
		{"long", "sk-or-v1-0123456789abcdef", "sk-o...cdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskAPIKey(tt.key); got != tt.want {
				t.Errorf("maskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

// =============================================================================
// BENCHMARKS
// =============================================================================

func BenchmarkArgParser_Complex(b *testing.B) {
	args := []string{"recent", "--limit", "25", "--confirm", "extra", "positional"}
	for i := 0; i < b.N; i++ {
		NewArgParser(args)
	}
}
