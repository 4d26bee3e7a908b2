// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestConfig_Default tests that Default() returns a valid config with defaults.
func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Version == "" {
		t.Error("Default config should have a version")
	}

	if cfg.API.Endpoint == "" {
		t.Error("Default config should have an API endpoint")
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default server port 8080, got %d", cfg.Server.Port)
	}

	if !cfg.Chat.Stream {
		t.Error("Default config should stream chat replies")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate, got %v", err)
	}
}

// TestConfig_Validate tests configuration validation.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "valid default config",
			config:  Default(),
			wantErr: false,
		},
		{
			name: "invalid theme",
			config: func() *Config {
				c := Default()
				c.UI.Theme = "invalid"
				return c
			}(),
			wantErr: true,
		},
		{
			name: "port zero",
			config: func() *Config {
				c := Default()
				c.Server.Port = 0
				return c
			}(),
			wantErr: true,
		},
		{
			name: "port too large",
			config: func() *Config {
				c := Default()
				c.Server.Port = 70000
				return c
			}(),
			wantErr: true,
		},
		{
			name: "negative rate limit",
			config: func() *Config {
				c := Default()
				c.Server.RateLimit = -1
				return c
			}(),
			wantErr: true,
		},
		{
			name: "port at minimum (1)",
			config: func() *Config {
				c := Default()
				c.Server.Port = 1
				return c
			}(),
			wantErr: false,
		},
		{
			name: "port at maximum (65535)",
			config: func() *Config {
				c := Default()
				c.Server.Port = 65535
				return c
			}(),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestConfig_SaveLoadRoundTrip tests that a saved config loads back with
// the same values and restrictive permissions.
func TestConfig_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.API.Endpoint = "http://localhost:1234/v1/chat/completions"
	cfg.API.Key = "sk-test"
	cfg.API.Model = "llama3"
	cfg.Server.Port = 9090
	cfg.Chat.Stream = false
	cfg.UI.Theme = "light"

	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file permissions = %o, want 0600", perm)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if loaded.API.Endpoint != cfg.API.Endpoint {
		t.Errorf("endpoint = %q, want %q", loaded.API.Endpoint, cfg.API.Endpoint)
	}
	if loaded.API.Key != "sk-test" {
		t.Errorf("key = %q, want 'sk-test'", loaded.API.Key)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", loaded.Server.Port)
	}
	if loaded.Chat.Stream {
		t.Error("stream = true, want false")
	}
	if loaded.UI.Theme != "light" {
		t.Errorf("theme = %q, want 'light'", loaded.UI.Theme)
	}
}

// TestConfig_PartialFileKeepsDefaults tests that keys absent from the file
// keep their default values.
func TestConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	payload := "[api]\nmodel = \"mistral\"\n"
	if err := os.WriteFile(path, []byte(payload), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if loaded.API.Model != "mistral" {
		t.Errorf("model = %q, want 'mistral'", loaded.API.Model)
	}
	if loaded.Server.Port != 8080 {
		t.Errorf("port = %d, want default 8080", loaded.Server.Port)
	}
	if !loaded.UI.Markdown {
		t.Error("markdown = false, want default true")
	}
}

// TestConfig_EnvOverrides tests RIGRELAY_* environment overrides.
func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("RIGRELAY_ENDPOINT", "http://10.0.0.5:8000/v1/chat/completions")
	t.Setenv("RIGRELAY_API_KEY", "sk-env")
	t.Setenv("RIGRELAY_MODEL", "phi3")
	t.Setenv("RIGRELAY_PORT", "9191")
	t.Setenv("RIGRELAY_STREAM", "false")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.API.Endpoint != "http://10.0.0.5:8000/v1/chat/completions" {
		t.Errorf("endpoint = %q, want env value", cfg.API.Endpoint)
	}
	if cfg.API.Key != "sk-env" {
		t.Errorf("key = %q, want 'sk-env'", cfg.API.Key)
	}
	if cfg.API.Model != "phi3" {
		t.Errorf("model = %q, want 'phi3'", cfg.API.Model)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("port = %d, want 9191", cfg.Server.Port)
	}
	if cfg.Chat.Stream {
		t.Error("stream = true, want false from RIGRELAY_STREAM")
	}
}

// TestConfig_EnvOverrideInvalidPortIgnored tests that an unparseable port
// override leaves the configured port in place.
func TestConfig_EnvOverrideInvalidPortIgnored(t *testing.T) {
	t.Setenv("RIGRELAY_PORT", "not-a-number")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Server.Port)
	}
}

// TestConfig_GetSet tests Get and Set methods with dot notation.
func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	val, err := cfg.Get("ui.theme")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if val != "dark" {
		t.Errorf("Get('ui.theme') = %v, want 'dark'", val)
	}

	if err := cfg.Set("api.model", "llama3"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	val, _ = cfg.Get("api.model")
	if val != "llama3" {
		t.Errorf("Get('api.model') after Set = %v, want 'llama3'", val)
	}

	// String values convert to the field's kind.
	if err := cfg.Set("server.port", "9999"); err != nil {
		t.Fatalf("Set('server.port') error = %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if err := cfg.Set("chat.stream", "false"); err != nil {
		t.Fatalf("Set('chat.stream') error = %v", err)
	}
	if cfg.Chat.Stream {
		t.Error("stream = true, want false after Set")
	}

	if _, err := cfg.Get("invalid.key"); err == nil {
		t.Error("Get() with invalid key should return error")
	}
	if err := cfg.Set("server.port", "abc"); err == nil {
		t.Error("Set() with bad integer should return error")
	}
}

// TestConfig_GetAllKeysResolve tests that every advertised key resolves.
func TestConfig_GetAllKeysResolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("Get(%q) error = %v", key, err)
		}
	}
}

// TestConfig_StringRedactsKey tests that String never exposes the API key.
func TestConfig_StringRedactsKey(t *testing.T) {
	cfg := Default()
	cfg.API.Key = "sk-very-secret"

	out := cfg.String()
	if strings.Contains(out, "sk-very-secret") {
		t.Error("String() leaked the API key")
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Error("String() should mark the key as redacted")
	}

	// The original config is untouched.
	if cfg.API.Key != "sk-very-secret" {
		t.Error("String() modified the original config")
	}
}

// TestConfig_Clone tests that Clone creates an independent copy.
func TestConfig_Clone(t *testing.T) {
	original := Default()
	original.Version = "original"

	clone := original.Clone()
	clone.Version = "cloned"

	if original.Version != "original" {
		t.Error("Clone should create an independent copy")
	}
	if clone.Version != "cloned" {
		t.Error("Clone version should be modified")
	}
}

// TestConfig_ConcurrentAccess tests that Global(), SetGlobal(), and ReloadGlobal()
// can be safely called concurrently without race conditions.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	ResetGlobalForTesting()

	var wg sync.WaitGroup

	// 50 writers using SetGlobal, 50 readers using Global
	for i := 0; i < 50; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			c := Default()
			c.Version = "test"
			SetGlobal(c)
		}()

		go func() {
			defer wg.Done()
			cfg := Global()
			if cfg == nil {
				t.Error("Global() returned nil")
			}
		}()
	}

	wg.Wait()
}

// TestConfig_GlobalInitialization tests that Global() properly initializes
// the config on first access.
func TestConfig_GlobalInitialization(t *testing.T) {
	ResetGlobalForTesting()

	cfg := Global()
	if cfg == nil {
		t.Fatal("Global() returned nil")
	}

	if cfg.Version == "" {
		t.Error("Config version should not be empty")
	}
	if cfg.Server.Port == 0 {
		t.Error("Server port should not be zero")
	}
}

// TestConfig_SetGlobalOverwrites tests that SetGlobal properly overwrites
// the existing global config.
func TestConfig_SetGlobalOverwrites(t *testing.T) {
	ResetGlobalForTesting()

	_ = Global()

	customCfg := Default()
	customCfg.Version = "custom-version"
	customCfg.API.Model = "custom-model"
	SetGlobal(customCfg)

	result := Global()
	if result.Version != "custom-version" {
		t.Errorf("Expected version 'custom-version', got '%s'", result.Version)
	}
	if result.API.Model != "custom-model" {
		t.Errorf("Expected model 'custom-model', got '%s'", result.API.Model)
	}
}

// TestWatcher_ReloadsOnWrite tests that the watcher picks up a config file
// rewrite and delivers the fresh config.
func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.API.Model = "before"
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML() error = %v", err)
	}

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(c *Config) {
		reloaded <- c
	}, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if err := w.Watch(); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	cfg.API.Model = "after"
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML() rewrite error = %v", err)
	}

	select {
	case got := <-reloaded:
		if got.API.Model != "after" {
			t.Errorf("reloaded model = %q, want 'after'", got.API.Model)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
