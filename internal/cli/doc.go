// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line interface parsing and execution for
// rigrelay.
//
// This package implements all CLI commands for the rigrelay relay,
// covering interactive chat, one-shot queries, the local HTTP server,
// and configuration and usage management.
//
// # Key Types
//
//   - Command: Enumeration of all available CLI commands
//   - Args: Parsed command-line arguments with global and command-specific flags
//   - ArgParser: Subcommand and flag parsing for commands with nested verbs
//
// # Usage
//
// Parse and execute commands:
//
//	cmd, args := cli.Parse()
//	os.Exit(cli.Run(cmd, args))
//
// # Commands Overview
//
//   - chat: Interactive chat session (terminal REPL or --tui)
//   - ask: Single question, whole reply printed
//   - models: List models advertised by the endpoint
//   - serve: Run the relay as a local HTTP server
//   - stats: Inspect the local usage log
//   - config: View and modify configuration
//
// Machine-readable commands support a --json flag.
package cli
