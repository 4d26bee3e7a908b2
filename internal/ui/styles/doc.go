// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the rigrelay TUI
and the shared CLI output.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection.

# Color System (colors.go)

Primary accents:

  - Purple - Assistant messages and spinner
  - Cyan - Brand color, prompts, commands
  - Emerald - Success states and model names
  - Amber - Warnings and cancelled requests
  - Rose - Errors and failed requests

Message colors:

	UserBubbleBg      - Background for user messages
	UserBubbleFg      - Text color for user messages
	AssistantBubbleFg - Text color for assistant messages

Text hierarchy:

	TextPrimary   - Main content text
	TextSecondary - Supporting text
	TextMuted     - De-emphasized text
	TextInverse   - Text on colored backgrounds

# Theme System (theme.go)

The Theme struct provides runtime color adaptation:

	theme := styles.NewTheme()
	if theme.IsDark {
		// Dark terminal detected
	}

# Animation System (animations.go)

Pre-defined spinner styles, convertible to Bubble Tea spinners:

	sp := spinner.New(spinner.WithSpinner(styles.DotsSpinner.Bubbles()))

RenderProgressBar draws ASCII percentage bars for the stats breakdown.

# Usage Example

	import "github.com/jeranaias/rigrelay/internal/ui/styles"

	headerStyle := lipgloss.NewStyle().
		Background(styles.SurfaceDim).
		Foreground(styles.TextPrimary)
*/
package styles
