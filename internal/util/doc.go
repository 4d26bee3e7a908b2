// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides helper functions shared across rigrelay.
//
// This package contains display-oriented string helpers, human-readable
// value formatting, and crash-safe file writing.
//
// # Key Functions
//
// String Utilities:
//   - TruncateWidth: display-width truncation with ellipsis (CJK aware)
//   - PadWidth: display-width padding for column alignment
//   - TruncateRunes: UTF-8 safe truncation by character count
//
// Formatting:
//   - FormatBytes: byte counts as human-readable sizes
//   - FormatCount: integers with thousands separators
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	// Truncate long strings safely for display
//	display := util.TruncateWidth(longText, 50)
//
//	// Format a byte count for a stats table
//	s := util.FormatBytes(1536)
//
//	// Write files atomically to prevent data loss
//	err := util.AtomicWriteFile(path, data, 0644)
package util
