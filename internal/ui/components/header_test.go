// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"

	"github.com/jeranaias/rigrelay/internal/ui/styles"
)

// =============================================================================
// HEADER TESTS
// =============================================================================

func TestNewHeader(t *testing.T) {
	theme := styles.NewTheme()
	h := NewHeader(theme)

	if h == nil {
		t.Fatal("NewHeader() returned nil")
	}
	if h.Brand != "rigrelay" {
		t.Errorf("NewHeader() Brand = %q, want %q", h.Brand, "rigrelay")
	}
	if h.ModelName != "" {
		t.Errorf("NewHeader() ModelName = %q, want empty string", h.ModelName)
	}
	if h.Width != 80 {
		t.Errorf("NewHeader() Width = %d, want 80", h.Width)
	}
}

func TestHeaderSetters(t *testing.T) {
	theme := styles.NewTheme()
	h := NewHeader(theme)

	h.SetWidth(120)
	if h.Width != 120 {
		t.Errorf("SetWidth(120) Width = %d", h.Width)
	}

	h.SetBrand("custom")
	if h.Brand != "custom" {
		t.Errorf("SetBrand Brand = %q", h.Brand)
	}

	h.SetModel("qwen2.5-coder:14b")
	if h.ModelName != "qwen2.5-coder:14b" {
		t.Errorf("SetModel ModelName = %q", h.ModelName)
	}

	h.SetEndpoint("127.0.0.1:11434")
	if h.Endpoint != "127.0.0.1:11434" {
		t.Errorf("SetEndpoint Endpoint = %q", h.Endpoint)
	}
}

func TestHeaderView(t *testing.T) {
	theme := styles.NewTheme()
	h := NewHeader(theme)
	h.SetModel("test-model")
	h.SetEndpoint("localhost:11434")
	h.SetWidth(100)

	view := h.View()
	if view == "" {
		t.Fatal("View() should return non-empty string")
	}
	if !strings.Contains(view, "rigrelay") {
		t.Error("View() should contain the brand")
	}
	if !strings.Contains(view, "test-model") {
		t.Error("View() should contain the model name")
	}
	if !strings.Contains(view, "localhost:11434") {
		t.Error("View() should contain the endpoint host")
	}
}

func TestHeaderViewNarrowDropsDetails(t *testing.T) {
	theme := styles.NewTheme()
	h := NewHeader(theme)
	h.SetModel("test-model")
	h.SetEndpoint("localhost:11434")
	h.SetWidth(40)

	view := h.View()
	if !strings.Contains(view, "rigrelay") {
		t.Error("Narrow view should always keep the brand")
	}
	if strings.Contains(view, "test-model") {
		t.Error("Narrow view should drop the model name")
	}
	if strings.Contains(view, "localhost:11434") {
		t.Error("Narrow view should drop the endpoint host")
	}
}

func TestHeaderViewMediumKeepsModel(t *testing.T) {
	theme := styles.NewTheme()
	h := NewHeader(theme)
	h.SetModel("test-model")
	h.SetEndpoint("localhost:11434")
	h.SetWidth(60)

	view := h.View()
	if !strings.Contains(view, "test-model") {
		t.Error("Medium view should keep the model name")
	}
	if strings.Contains(view, "localhost:11434") {
		t.Error("Medium view should drop the endpoint host")
	}
}
