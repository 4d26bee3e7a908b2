// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the reusable visual components for the
// rigrelay TUI: the header bar, the bottom status bar, and syntax
// highlighted code blocks for replies.
//
// Components hold their own display state behind setters and render on
// demand with View(). They know nothing about Bubble Tea messages; the
// chat model owns the update loop and pushes state changes in.
package components
