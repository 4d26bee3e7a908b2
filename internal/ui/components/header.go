// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigrelay/internal/ui/styles"
)

// =============================================================================
// HEADER COMPONENT
// =============================================================================

// Header is the title bar: brand, current model, and the endpoint host.
type Header struct {
	Brand     string
	ModelName string
	Endpoint  string
	Width     int
	theme     *styles.Theme
}

// NewHeader creates a Header with default values.
func NewHeader(theme *styles.Theme) *Header {
	return &Header{
		Brand: "rigrelay",
		Width: 80,
		theme: theme,
	}
}

// SetWidth updates the header width.
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// SetBrand updates the brand title.
func (h *Header) SetBrand(brand string) {
	h.Brand = brand
}

// SetModel updates the displayed model name.
func (h *Header) SetModel(model string) {
	h.ModelName = model
}

// SetEndpoint updates the displayed endpoint host.
func (h *Header) SetEndpoint(endpoint string) {
	h.Endpoint = endpoint
}

// View renders the header as a single bar. Narrow terminals drop the
// endpoint host first, then the model name.
func (h *Header) View() string {
	accent := lipgloss.NewStyle().Foreground(styles.Purple)
	brand := accent.Render("< ") +
		h.theme.HeaderBrand.Render(h.Brand) +
		accent.Render(" >")

	separator := lipgloss.NewStyle().Foreground(styles.Overlay).Render(" | ")

	parts := []string{brand}
	if h.ModelName != "" && h.Width >= 50 {
		parts = append(parts, h.theme.HeaderHint.Render(h.ModelName))
	}
	if h.Endpoint != "" && h.Width >= 80 {
		parts = append(parts, h.theme.HeaderHint.Render(h.Endpoint))
	}

	return h.theme.Header.
		Width(h.Width).
		Render(strings.Join(parts, separator))
}
