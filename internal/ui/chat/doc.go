// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the full-screen chat view for the rigrelay TUI.

The package implements a terminal chat interface on the Bubble Tea
framework, talking to the configured endpoint through the same relay
client and stream manager the CLI and server front-ends use.

# Key Components

Model (model.go) is the central Bubble Tea model: conversation history,
the transcript rendered in the viewport, input state, and the in-flight
request bookkeeping.

Update (update.go) handles keyboard input, slash commands, stream
events, and window resizing.

View (view.go) renders header, scrollable transcript, input row, and
status bar. Completed replies pass through glamour's markdown renderer;
partial replies render raw to avoid re-render flicker.

StreamingBuffer (streaming.go) batches incoming tokens so the viewport
redraws at a capped frame rate instead of once per token.

Run (run.go) wires client, stream manager, and usage store together and
starts the program:

	if err := chat.Run(config.Global(), "qwen2.5-coder:14b"); err != nil {
		log.Fatal(err)
	}

# Streaming Delivery

Stream events are forwarded into the program by the manager's emitter.
The update loop matches events against the active stream id; events for
anything else (late chunks from a cancelled stream) are dropped. Esc
cancels the in-flight response in both streaming and whole-reply modes
through the shared stream registry.
*/
package chat
