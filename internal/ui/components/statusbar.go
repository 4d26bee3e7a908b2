// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigrelay/internal/ui/styles"
	"github.com/jeranaias/rigrelay/internal/util"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// Status represents the current chat state shown in the bar.
type Status int

const (
	StatusReady Status = iota
	StatusWaiting
	StatusStreaming
	StatusError
)

// String returns the display string for the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusWaiting:
		return "Waiting..."
	case StatusStreaming:
		return "Streaming..."
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Icon returns a shape indicator for the status, so state reads without
// relying on color alone.
func (s Status) Icon() string {
	switch s {
	case StatusReady:
		return styles.StatusIndicators.Success
	case StatusWaiting:
		return styles.StatusIndicators.Pending
	case StatusStreaming:
		return styles.StatusIndicators.Active
	case StatusError:
		return styles.StatusIndicators.Error
	default:
		return "?"
	}
}

// StatusBar is the bottom bar: state, model, delivery mode, session
// counters, and keyboard hints.
type StatusBar struct {
	Status     Status
	ModelName  string
	StreamMode bool
	Requests   int
	Bytes      int64
	Hint       string
	Width      int
	theme      *styles.Theme
}

// NewStatusBar creates a StatusBar with default values.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		Status:     StatusReady,
		StreamMode: true,
		Width:      80,
		theme:      theme,
	}
}

// SetWidth updates the status bar width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// SetStatus updates the current status.
func (s *StatusBar) SetStatus(status Status) {
	s.Status = status
}

// SetModel updates the displayed model name.
func (s *StatusBar) SetModel(model string) {
	s.ModelName = model
}

// SetStreamMode updates the delivery mode indicator.
func (s *StatusBar) SetStreamMode(streaming bool) {
	s.StreamMode = streaming
}

// SetCounters updates the session counters.
func (s *StatusBar) SetCounters(requests int, bytes int64) {
	s.Requests = requests
	s.Bytes = bytes
}

// SetHint sets the keyboard hint text shown on wide terminals.
func (s *StatusBar) SetHint(hint string) {
	s.Hint = hint
}

// View renders the status bar. The layout adapts to width.
func (s *StatusBar) View() string {
	if s.Width < 60 {
		return s.viewNarrow()
	}
	if s.Width < 100 {
		return s.viewMedium()
	}
	return s.viewWide()
}

// viewNarrow renders a compact bar: icon, truncated model, stream flag.
func (s *StatusBar) viewNarrow() string {
	parts := []string{
		s.statusStyle().Render(s.Status.Icon()),
	}

	if s.ModelName != "" {
		parts = append(parts, s.theme.ModelBadge.Render(util.TruncateRunes(s.ModelName, 20)))
	}

	parts = append(parts, s.streamBadge())

	return s.theme.StatusBar.
		Width(s.Width).
		Render(strings.Join(parts, " "))
}

// viewMedium adds the status text and request counter.
func (s *StatusBar) viewMedium() string {
	separator := lipgloss.NewStyle().Foreground(styles.Overlay).Render(" | ")

	parts := []string{
		s.statusStyle().Render(s.Status.Icon() + " " + s.Status.String()),
	}

	if s.ModelName != "" {
		parts = append(parts, s.theme.ModelBadge.Render(util.TruncateRunes(s.ModelName, 24)))
	}

	parts = append(parts, s.streamBadge())
	parts = append(parts, s.theme.ShortcutDesc.Render(fmt.Sprintf("%d req", s.Requests)))

	return s.theme.StatusBar.
		Width(s.Width).
		Render(strings.Join(parts, separator))
}

// viewWide spreads status on the left, counters in the middle, and the
// keyboard hints on the right.
func (s *StatusBar) viewWide() string {
	separator := lipgloss.NewStyle().Foreground(styles.Overlay).Render(" | ")

	leftParts := []string{
		s.statusStyle().Render(s.Status.Icon() + " " + s.Status.String()),
	}
	if s.ModelName != "" {
		leftParts = append(leftParts, s.theme.ModelBadge.Render(s.ModelName))
	}
	leftParts = append(leftParts, s.streamBadge())
	left := strings.Join(leftParts, separator)

	center := s.theme.ShortcutDesc.Render(
		fmt.Sprintf("%d req, %s", s.Requests, util.FormatBytes(s.Bytes)),
	)

	right := s.renderHint()

	leftWidth := lipgloss.Width(left)
	centerWidth := lipgloss.Width(center)
	rightWidth := lipgloss.Width(right)

	spacing := s.Width - leftWidth - centerWidth - rightWidth - 4
	if spacing < 4 {
		spacing = 4
	}

	leftSpace := strings.Repeat(" ", spacing/2)
	rightSpace := strings.Repeat(" ", spacing-spacing/2)

	return s.theme.StatusBar.
		Width(s.Width).
		Render(left + leftSpace + center + rightSpace + right)
}

// streamBadge renders the delivery mode flag.
func (s *StatusBar) streamBadge() string {
	if s.StreamMode {
		return s.theme.StreamOn.Render("stream")
	}
	return s.theme.StreamOff.Render("whole")
}

// renderHint styles the key bindings hint. Keys and descriptions arrive
// as "key desc" pairs separated by double spaces.
func (s *StatusBar) renderHint() string {
	if s.Hint == "" {
		return ""
	}

	var out []string
	for _, pair := range strings.Split(s.Hint, "  ") {
		key, desc, found := strings.Cut(pair, " ")
		if !found {
			out = append(out, s.theme.ShortcutDesc.Render(pair))
			continue
		}
		out = append(out, s.theme.ShortcutKey.Render(key)+" "+s.theme.ShortcutDesc.Render(desc))
	}
	return strings.Join(out, " ")
}

// statusStyle returns the color for the current status.
func (s *StatusBar) statusStyle() lipgloss.Style {
	switch s.Status {
	case StatusReady:
		return s.theme.SuccessStyle
	case StatusWaiting, StatusStreaming:
		return lipgloss.NewStyle().Foreground(styles.Purple).Bold(true)
	case StatusError:
		return s.theme.ErrorStyle
	default:
		return s.theme.StreamOff
	}
}
