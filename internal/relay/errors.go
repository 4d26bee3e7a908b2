// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// Error represents a failure while relaying a request upstream.
type Error struct {
	Type    ErrorType
	Message string
	Status  int // HTTP status for ErrTypeUpstream, zero otherwise
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes relay errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeTransport
	ErrTypeUpstream
	ErrTypeDecode
	ErrTypeEndpoint
)

// errBodyPlaceholder stands in for an upstream error body that could not
// be read. The status code is still reported.
const errBodyPlaceholder = "failed to read error response"

// =============================================================================
// CONSTRUCTORS
// =============================================================================

func transportError(msg string, cause error) *Error {
	return &Error{Type: ErrTypeTransport, Message: msg, Cause: cause}
}

func upstreamError(status int, body string) *Error {
	return &Error{
		Type:    ErrTypeUpstream,
		Message: fmt.Sprintf("API error: %d - %s", status, body),
		Status:  status,
	}
}

func decodeError(cause error) *Error {
	return &Error{Type: ErrTypeDecode, Message: "failed to parse response", Cause: cause}
}

func endpointError(msg string, cause error) *Error {
	return &Error{Type: ErrTypeEndpoint, Message: msg, Cause: cause}
}

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

// IsTransport reports whether err is a send/connect/timeout failure.
func IsTransport(err error) bool {
	var relayErr *Error
	if errors.As(err, &relayErr) {
		return relayErr.Type == ErrTypeTransport
	}
	return false
}

// IsUpstream reports whether err is a non-2xx upstream response.
func IsUpstream(err error) bool {
	var relayErr *Error
	if errors.As(err, &relayErr) {
		return relayErr.Type == ErrTypeUpstream
	}
	return false
}

// IsDecode reports whether err is a malformed upstream response body.
func IsDecode(err error) bool {
	var relayErr *Error
	if errors.As(err, &relayErr) {
		return relayErr.Type == ErrTypeDecode
	}
	return false
}

// IsInvalidEndpoint reports whether err came from an unparseable or
// hostless endpoint URL.
func IsInvalidEndpoint(err error) bool {
	var relayErr *Error
	if errors.As(err, &relayErr) {
		return relayErr.Type == ErrTypeEndpoint
	}
	return false
}

// UpstreamStatus extracts the HTTP status from an upstream error.
// Returns 0, false for any other error.
func UpstreamStatus(err error) (int, bool) {
	var relayErr *Error
	if errors.As(err, &relayErr) && relayErr.Type == ErrTypeUpstream {
		return relayErr.Status, true
	}
	return 0, false
}
