// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigrelay/internal/ui/components"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// View renders the complete chat screen.
// Layout: header + messages (viewport) + [thinking line] + input + status.
// The stack must fill m.height exactly so the status bar stays pinned.
func (m *Model) View() string {
	if !m.ready || m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := m.header.View()
	input := m.renderInput()
	status := m.statusBar.View()

	// The thinking row is always reserved so the layout does not jump
	// when a request starts or finishes.
	thinking := ""
	if m.Busy() {
		thinking = m.renderThinking()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		m.viewport.View(),
		thinking,
		input,
		status,
	)
}

// chromeHeight is the number of rows everything except the viewport
// occupies. Used by handleResize to size the viewport.
func (m *Model) chromeHeight() int {
	return lipgloss.Height(m.header.View()) +
		1 + // thinking row
		lipgloss.Height(m.renderInput()) +
		lipgloss.Height(m.statusBar.View())
}

// =============================================================================
// VIEWPORT CONTENT
// =============================================================================

// refreshViewport rebuilds the viewport content from the transcript,
// plus the in-flight partial reply when streaming. Follow output while
// a response is arriving; leave the scroll position alone otherwise.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	follow := m.state == StateStreaming || m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderTranscript() string {
	if len(m.transcript) == 0 && m.current.Len() == 0 {
		return m.renderEmptyState()
	}

	var sb strings.Builder
	for _, entry := range m.transcript {
		sb.WriteString(m.renderEntry(entry))
		sb.WriteString("\n")
	}

	if m.state == StateStreaming {
		sb.WriteString(m.renderPartial())
		sb.WriteString("\n")
	}

	return sb.String()
}

func (m *Model) renderEntry(entry transcriptEntry) string {
	switch entry.kind {
	case entryUser:
		return m.renderUserEntry(entry.text)
	case entryAssistant:
		return m.renderAssistantEntry(entry.text)
	case entryError:
		return m.renderErrorEntry(entry.text)
	default:
		return m.theme.SystemNotice.Render(entry.text)
	}
}

// renderUserEntry renders the user's turn as a right-aligned bubble.
func (m *Model) renderUserEntry(text string) string {
	maxWidth := m.width - 8
	if maxWidth < 10 {
		maxWidth = 10
	}

	bubble := m.theme.UserBubble.MaxWidth(maxWidth)
	rendered := bubble.Render(text)

	marginLeft := m.width - lipgloss.Width(rendered) - 4
	if marginLeft < 0 {
		marginLeft = 0
	}

	return lipgloss.NewStyle().
		MarginLeft(marginLeft).
		MarginTop(1).
		Render(rendered)
}

// renderAssistantEntry renders a completed reply.
func (m *Model) renderAssistantEntry(text string) string {
	label := m.theme.AssistantLabel.Render(m.modelName)
	body := m.theme.AssistantBubble.Render(m.renderReplyBody(text))
	return lipgloss.JoinVertical(lipgloss.Left, label, body)
}

// renderReplyBody formats a completed reply. With markdown on, the
// whole reply goes through glamour; otherwise fenced code blocks get
// syntax highlighting and prose wraps plain.
func (m *Model) renderReplyBody(text string) string {
	if m.cfg.UI.Markdown && m.renderer != nil {
		return m.markdown(text)
	}
	if strings.Contains(text, "```") {
		return components.ParseCodeBlocks(text, contentWidth(m.width))
	}
	return wrapText(text, contentWidth(m.width))
}

// renderPartial renders the still-arriving reply. No markdown pass:
// glamour on incomplete input flickers fences and half-closed emphasis,
// so the raw text is shown until the stream finishes.
func (m *Model) renderPartial() string {
	text := m.current.String()
	if text == "" {
		return ""
	}
	label := m.theme.AssistantLabel.Render(m.modelName)
	body := m.theme.AssistantBubble.Render(wrapText(text, contentWidth(m.width)))
	return lipgloss.JoinVertical(lipgloss.Left, label, body)
}

func (m *Model) renderErrorEntry(text string) string {
	title := m.theme.ErrorTitle.Render("Error")
	body := m.theme.ErrorMessage.Render(text)
	return m.theme.ErrorBox.Render(title + "\n" + body)
}

// markdown renders text through glamour, falling back to the raw text
// if the renderer is unavailable or rejects the input.
func (m *Model) markdown(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// wrapText hard-wraps text at width, preserving existing newlines.
func wrapText(text string, width int) string {
	if width < 1 {
		return text
	}

	var sb strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(wrapLine(line, width))
	}
	return sb.String()
}

func wrapLine(line string, width int) string {
	if lipgloss.Width(line) <= width {
		return line
	}

	var sb strings.Builder
	var current string
	for _, word := range strings.Fields(line) {
		switch {
		case current == "":
			current = word
		case lipgloss.Width(current)+1+lipgloss.Width(word) <= width:
			current += " " + word
		default:
			sb.WriteString(current)
			sb.WriteString("\n")
			current = word
		}
	}
	sb.WriteString(current)
	return sb.String()
}

// =============================================================================
// EMPTY STATE
// =============================================================================

// renderEmptyState renders the welcome screen before the first message.
func (m *Model) renderEmptyState() string {
	width := m.width - 8
	if width < 40 {
		width = 40
	}
	if width > 80 {
		width = 80
	}

	center := lipgloss.NewStyle().Align(lipgloss.Center).Width(width)

	var sb strings.Builder
	sb.WriteString(center.Render(m.theme.HeaderBrand.Render("rigrelay chat")))
	sb.WriteString("\n\n")
	sb.WriteString(center.Render(m.theme.ThinkingText.Render("Model: " + m.modelName)))
	sb.WriteString("\n\n")
	sb.WriteString(center.Render(m.theme.SystemNotice.Render("Type a message and press Enter. /help lists commands.")))

	return lipgloss.Place(
		m.viewport.Width, m.viewport.Height,
		lipgloss.Center, lipgloss.Center,
		sb.String(),
	)
}

// =============================================================================
// CHROME
// =============================================================================

// renderThinking renders the waiting indicator between viewport and input.
func (m *Model) renderThinking() string {
	verb := "Waiting for"
	if m.state == StateStreaming {
		verb = "Streaming from"
	}

	elapsed := time.Since(m.started).Round(time.Second)
	return "  " + m.spinner.View() + " " +
		m.theme.ThinkingText.Render(fmt.Sprintf("%s %s", verb, m.modelName)) + " " +
		m.theme.ThinkingTime.Render(fmt.Sprintf("(%s, Esc to cancel)", elapsed))
}

// renderInput renders the input row with its top border and char count.
func (m *Model) renderInput() string {
	count := ""
	if n := len([]rune(m.input.Value())); n > 0 {
		count = m.theme.CharCount.Render(fmt.Sprintf(" %d chars", n))
	}

	return m.theme.InputContainer.
		Width(m.width).
		Render(m.input.View() + count)
}
