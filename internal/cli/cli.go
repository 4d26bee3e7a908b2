// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for rigrelay.
package cli

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.3.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdChat Command = iota
	CmdAsk
	CmdModels
	CmdServe
	CmdStats
	CmdConfig
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	Model   string
	JSON    bool // Output in JSON format

	// Command-specific
	Query      string
	File       string
	Subcommand string
	Port       int  // serve: port override (0 = from config)
	TUI        bool // chat: launch the full-screen TUI
	NoStream   bool // chat/ask: disable streaming delivery

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `rigrelay - LLM chat relay for the terminal

Rigrelay forwards chat requests to an OpenAI- or Ollama-compatible
endpoint, re-frames streaming responses, and keeps a local usage log.

Usage:
  rigrelay chat              Interactive chat (REPL)
  rigrelay chat --tui        Full-screen chat TUI
  rigrelay ask "question"    Ask a single question
  rigrelay models            List models from the configured endpoint
  rigrelay serve             Run the HTTP relay server in the foreground
  rigrelay stats [recent]    Show usage statistics
  rigrelay config [show|get|set|path]  Configuration
  rigrelay version           Show version information
  rigrelay help              Show this help

Chat Commands (during chat):
  /model [name]              Show or switch model
  /stream [on|off]           Show or toggle streaming delivery
  /cancel                    Cancel the in-flight response
  /clear                     Clear conversation history
  /status                    Show session statistics
  /help                      Show available commands
  /quit                      Exit chat
  Ctrl+C                     Cancel current response
  Ctrl+D                     Exit chat

Config Commands:
  rigrelay config show               Show current configuration
  rigrelay config get KEY            Read one value (dot notation)
  rigrelay config set KEY VALUE      Write one value and save
  rigrelay config path               Print the config file path

  Keys: api.endpoint, api.key, api.model, server.port,
        server.rate_limit, server.rate_burst, chat.stream,
        chat.history_file, ui.theme, ui.markdown, stats.enabled,
        stats.path

Stats Commands:
  rigrelay stats                     Aggregate usage summary
  rigrelay stats recent              Most recent requests
    --limit N                        Rows to show (default: 10)
  rigrelay stats reset --confirm     Delete all recorded usage

Serve Flags:
  --port N                   Bind port (overrides config)

Global Flags:
  -q, --quiet     Minimal output
  -v, --verbose   Debug output
  --model NAME    Override configured model
  --json          Output in JSON format

Examples:
  rigrelay ask "What is a goroutine?"
  rigrelay ask "Review this:" --file main.go
  rigrelay chat --model qwen2.5-coder:14b
  rigrelay models --json
  rigrelay serve --port 8080
  rigrelay stats recent --limit 25
  rigrelay config set api.endpoint http://127.0.0.1:11434/v1/chat/completions

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("rigrelay version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments and returns the command and args.
func Parse() (Command, Args) {
	args := os.Args[1:]

	remaining, parsedArgs := parseGlobalFlags(args)

	// No command defaults to interactive chat
	if len(remaining) == 0 {
		return CmdChat, parsedArgs
	}

	rawCmd := remaining[0]
	cmd := strings.ToLower(rawCmd)
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "chat":
		parseChatArgs(&parsedArgs, remaining)
		return CmdChat, parsedArgs

	case "ask":
		parseAskArgs(&parsedArgs, remaining)
		return CmdAsk, parsedArgs

	case "models", "model-list":
		return CmdModels, parsedArgs

	case "serve", "server":
		parseServeArgs(&parsedArgs, remaining)
		return CmdServe, parsedArgs

	case "stats", "usage":
		// Argument parsing is done in stats_cmd.go HandleStatsCommand
		if len(remaining) > 0 {
			parsedArgs.Subcommand = strings.ToLower(remaining[0])
		}
		return CmdStats, parsedArgs

	case "config":
		// Argument parsing is done in config_cmd.go HandleConfigCommand
		if len(remaining) > 0 {
			parsedArgs.Subcommand = strings.ToLower(remaining[0])
		}
		return CmdConfig, parsedArgs

	case "version", "-v", "--version":
		return CmdVersion, parsedArgs

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs

	default:
		// Unknown command: treat the whole line as a one-shot question,
		// so `rigrelay what is a monad` just works.
		parsedArgs.Raw = append([]string{rawCmd}, remaining...)
		parseAskArgs(&parsedArgs, parsedArgs.Raw)
		return CmdAsk, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	i := 0
	for i < len(args) {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--model", "-m":
			if i+1 < len(args) {
				i++
				parsedArgs.Model = args[i]
			}
		default:
			if strings.HasPrefix(arg, "--model=") {
				parsedArgs.Model = strings.TrimPrefix(arg, "--model=")
			} else {
				remaining = append(remaining, arg)
			}
		}
		i++
	}

	return remaining, parsedArgs
}

// parseChatArgs parses chat command specific arguments.
func parseChatArgs(args *Args, remaining []string) {
	for i := 0; i < len(remaining); i++ {
		arg := remaining[i]

		switch arg {
		case "--tui":
			args.TUI = true
		case "--no-stream":
			args.NoStream = true
		case "-m", "--model":
			if i+1 < len(remaining) {
				i++
				args.Model = remaining[i]
			}
		default:
			if strings.HasPrefix(arg, "--model=") {
				args.Model = strings.TrimPrefix(arg, "--model=")
			}
		}
	}
}

// parseAskArgs parses ask command specific arguments.
func parseAskArgs(args *Args, remaining []string) {
	var query []string

	i := 0
	for i < len(remaining) {
		arg := remaining[i]

		switch arg {
		case "-f", "--file":
			if i+1 < len(remaining) {
				i++
				args.File = remaining[i]
			}
		case "-m", "--model":
			if i+1 < len(remaining) {
				i++
				args.Model = remaining[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--file="):
				args.File = strings.TrimPrefix(arg, "--file=")
			case strings.HasPrefix(arg, "--model="):
				args.Model = strings.TrimPrefix(arg, "--model=")
			case !strings.HasPrefix(arg, "-"):
				query = append(query, arg)
			}
		}
		i++
	}

	args.Query = strings.Join(query, " ")
}

// parseServeArgs parses serve command specific arguments.
func parseServeArgs(args *Args, remaining []string) {
	for i := 0; i < len(remaining); i++ {
		arg := remaining[i]

		switch arg {
		case "-p", "--port":
			if i+1 < len(remaining) {
				i++
				if n, err := strconv.Atoi(remaining[i]); err == nil && n > 0 {
					args.Port = n
				}
			}
		default:
			if strings.HasPrefix(arg, "--port=") {
				if n, err := strconv.Atoi(strings.TrimPrefix(arg, "--port=")); err == nil && n > 0 {
					args.Port = n
				}
			}
		}
	}
}

// =============================================================================
// COMMAND DISPATCH
// =============================================================================

// Run executes the parsed command and returns its process exit code.
func Run(cmd Command, args Args) int {
	var err error

	switch cmd {
	case CmdChat:
		err = HandleChatCommand(args)
	case CmdAsk:
		err = HandleAskCommand(args)
	case CmdModels:
		err = HandleModelsCommand(args)
	case CmdServe:
		err = HandleServeCommand(args)
	case CmdStats:
		err = HandleStatsCommand(args)
	case CmdConfig:
		err = HandleConfigCommand(args)
	case CmdVersion:
		HandleVersion(args)
	case CmdHelp:
		PrintUsage()
	default:
		PrintUsage()
		return ExitUsageError
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// HandleVersion handles the "version" command.
func HandleVersion(args Args) {
	if args.JSON {
		fmt.Printf("{\"version\":%q,\"git_commit\":%q,\"build_date\":%q,\"go_version\":%q}\n",
			Version, GitCommit, BuildDate, runtime.Version())
		return
	}
	PrintVersion()
}
