// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Exit codes and error classification for rigrelay commands.
//
// Every command handler returns an error instead of exiting; Run maps the
// error to a process exit code here so scripts can tell a bad invocation
// from a dead upstream.
package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/rigrelay/internal/relay"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates a configuration file or settings error
	ExitConfigError = 3
	// ExitNetworkError indicates the upstream endpoint was unreachable
	ExitNetworkError = 4
	// ExitUpstreamError indicates the upstream answered with a failure status
	ExitUpstreamError = 5
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError represents an invalid invocation: a missing argument, an
// unknown subcommand, or a value that does not parse.
type UsageError struct {
	Message string
	Hint    string // example of a valid invocation, optional
}

func (e *UsageError) Error() string {
	if e.Hint != "" {
		return e.Message + "\nUsage: " + e.Hint
	}
	return e.Message
}

// NewUsageError creates a usage error with an example invocation.
func NewUsageError(message, hint string) error {
	return &UsageError{Message: message, Hint: hint}
}

// ErrMissingArgument creates a usage error for a missing required argument.
func ErrMissingArgument(argName, hint string) error {
	return NewUsageError(fmt.Sprintf("missing required argument: %s", argName), hint)
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode determines the appropriate exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsageError
	}

	// Relay errors carry their own classification
	switch {
	case relay.IsTransport(err):
		return ExitNetworkError
	case relay.IsUpstream(err):
		return ExitUpstreamError
	case relay.IsInvalidEndpoint(err):
		return ExitConfigError
	}

	// Fall back to message content for errors from other layers
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "config"):
		return ExitConfigError
	case strings.Contains(msg, "connection"),
		strings.Contains(msg, "dial"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline exceeded"):
		return ExitNetworkError
	}

	return ExitGeneralError
}
