// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Config command implementation for rigrelay.
//
// Command: config [subcommand]
// Short:   View and modify configuration
// Aliases: (none)
//
// Subcommands:
//   show (default)      Display current configuration
//   get <key>           Print a single configuration value
//   set <key> <value>   Set a configuration value
//   reset               Reset to default configuration (requires --confirm)
//   path                Show configuration file path
//
// Examples:
//   rigrelay config                              Show current config
//   rigrelay config show --json                  Config in JSON format
//   rigrelay config get api.model                Print one value
//   rigrelay config set api.model llama3.1:8b
//   rigrelay config set api.endpoint http://localhost:11434/v1/chat/completions
//   rigrelay config set api.key sk-xxx
//   rigrelay config set server.port 9090
//   rigrelay config set chat.stream false
//   rigrelay config set stats.enabled true
//   rigrelay config reset --confirm              Reset to defaults
//   rigrelay config path                         Show config file location
//
// Configuration Keys (dot notation):
//   api.endpoint        Chat completions URL forwarded to
//   api.key             Bearer token sent upstream (stored locally only)
//   api.model           Default model name
//   server.port         Local HTTP server port
//   server.rate_limit   Requests per second per client (0 = unlimited)
//   server.rate_burst   Burst allowance for the rate limiter
//   chat.stream         Stream replies by default (true/false)
//   chat.history_file   Input history file override
//   ui.theme            Color theme name
//   ui.markdown         Render replies as markdown (true/false)
//   ui.compact_mode     Dense TUI layout (true/false)
//   stats.enabled       Record usage statistics (true/false)
//   stats.path          Usage database override
//
// Flags:
//   --confirm           Confirm destructive operations
//   --json              Output in JSON format

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/rigrelay/internal/config"
	"github.com/jeranaias/rigrelay/internal/util"
)

// =============================================================================
// CONFIG COMMAND HANDLER
// =============================================================================

// HandleConfigCommand handles the "config" command.
// Subcommands:
//   - config or config show: Display current configuration
//   - config get <key>: Print one value
//   - config set <key> <value>: Set and save a value
//   - config reset --confirm: Reset to defaults
//   - config path: Show the config file location
func HandleConfigCommand(args Args) error {
	parser := NewArgParser(args.Raw)

	switch parser.Subcommand() {
	case "", "show":
		return handleConfigShow(args)

	case "get":
		key := parser.Positional(1)
		if key == "" {
			return ErrMissingArgument("key", "rigrelay config get api.model")
		}
		return handleConfigGet(args, key)

	case "set":
		if parser.PositionalCount() < 2 {
			return ErrMissingArgument("key", "rigrelay config set api.model llama3.1:8b")
		}
		if parser.PositionalCount() < 3 {
			return ErrMissingArgument("value", fmt.Sprintf("rigrelay config set %s <value>", parser.Positional(1)))
		}
		return handleConfigSet(parser.Positional(1), parser.Positional(2))

	case "reset":
		return handleConfigReset(args, parser)

	case "path":
		return handleConfigPath(args)

	default:
		return NewUsageError(
			fmt.Sprintf("unknown config subcommand: %s", parser.Subcommand()),
			"rigrelay config [show|get|set|reset|path]")
	}
}

// maskAPIKey hides most of an API key for display.
func maskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "********"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// configFileLocation returns the config file path, "" when the home
// directory cannot be resolved.
func configFileLocation() string {
	path, err := config.ConfigPath()
	if err != nil {
		return ""
	}
	return path
}

// =============================================================================
// CONFIG SHOW
// =============================================================================

// handleConfigShow displays the current configuration.
func handleConfigShow(args Args) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s (using defaults)\n", err)
		cfg = config.Default()
	}

	if args.JSON {
		return outputJSON(map[string]interface{}{
			"api": map[string]interface{}{
				"endpoint": cfg.API.Endpoint,
				"key_set":  cfg.API.Key != "",
				"model":    cfg.API.Model,
			},
			"server": map[string]interface{}{
				"port":       cfg.Server.Port,
				"rate_limit": cfg.Server.RateLimit,
				"rate_burst": cfg.Server.RateBurst,
			},
			"chat": map[string]interface{}{
				"stream":       cfg.Chat.Stream,
				"history_file": cfg.Chat.HistoryFile,
			},
			"ui": map[string]interface{}{
				"theme":        cfg.UI.Theme,
				"markdown":     cfg.UI.Markdown,
				"compact_mode": cfg.UI.CompactMode,
			},
			"stats": map[string]interface{}{
				"enabled": cfg.Stats.Enabled,
				"path":    cfg.Stats.Path,
			},
			"path": configFileLocation(),
		})
	}

	printKV := func(key string, value string) {
		fmt.Printf("  %s %s\n",
			LabelStyle.Render(util.PadWidth(key+":", 14)),
			ValueStyle.Render(value))
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render("rigrelay Configuration"))
	fmt.Println(RenderSeparator(41))
	fmt.Println()

	fmt.Println(InfoStyle.Render("[api]"))
	printKV("endpoint", cfg.API.Endpoint)
	fmt.Printf("  %s %s\n",
		LabelStyle.Render(util.PadWidth("key:", 14)),
		DimStyle.Render(maskAPIKey(cfg.API.Key)))
	printKV("model", cfg.API.Model)
	fmt.Println()

	fmt.Println(InfoStyle.Render("[server]"))
	printKV("port", fmt.Sprintf("%d", cfg.Server.Port))
	printKV("rate_limit", fmt.Sprintf("%g", cfg.Server.RateLimit))
	printKV("rate_burst", fmt.Sprintf("%d", cfg.Server.RateBurst))
	fmt.Println()

	fmt.Println(InfoStyle.Render("[chat]"))
	printKV("stream", fmt.Sprintf("%t", cfg.Chat.Stream))
	historyFile := cfg.Chat.HistoryFile
	if historyFile == "" {
		historyFile = "(default)"
	}
	printKV("history_file", historyFile)
	fmt.Println()

	fmt.Println(InfoStyle.Render("[ui]"))
	printKV("theme", cfg.UI.Theme)
	printKV("markdown", fmt.Sprintf("%t", cfg.UI.Markdown))
	printKV("compact_mode", fmt.Sprintf("%t", cfg.UI.CompactMode))
	fmt.Println()

	fmt.Println(InfoStyle.Render("[stats]"))
	printKV("enabled", fmt.Sprintf("%t", cfg.Stats.Enabled))
	statsPath := cfg.Stats.Path
	if statsPath == "" {
		statsPath = "(default)"
	}
	printKV("path", statsPath)
	fmt.Println()

	fmt.Println(RenderSeparator(41))
	fmt.Printf("Config file: %s\n", DimStyle.Render(configFileLocation()))
	fmt.Println()

	return nil
}

// =============================================================================
// CONFIG GET
// =============================================================================

// handleConfigGet prints a single configuration value.
func handleConfigGet(args Args, key string) error {
	cfg := config.Global()

	key = strings.ToLower(key)
	value, err := cfg.Get(key)
	if err != nil {
		return fmt.Errorf("unknown config key: %s\n\nValid keys:\n  %s",
			key, strings.Join(config.GetAllKeys(), "\n  "))
	}

	display := fmt.Sprintf("%v", value)
	if key == "api.key" {
		display = maskAPIKey(cfg.API.Key)
	}

	if args.JSON {
		return outputJSON(map[string]interface{}{
			"key":   key,
			"value": display,
		})
	}

	fmt.Println(display)
	return nil
}

// =============================================================================
// CONFIG SET
// =============================================================================

// handleConfigSet sets a configuration value and saves the file. The
// change lands on a copy first so a validation failure cannot leave the
// in-process config half-updated.
func handleConfigSet(key, value string) error {
	cfg := config.Global().Clone()

	key = strings.ToLower(key)

	// Probing the current value both rejects unknown keys early and
	// tells us when the target field is a boolean, which gets the
	// strict spelling check instead of Set's permissive coercion.
	current, err := cfg.Get(key)
	if err != nil {
		return fmt.Errorf("unknown config key: %s\n\nValid keys:\n  %s",
			key, strings.Join(config.GetAllKeys(), "\n  "))
	}

	if _, isBool := current.(bool); isBool {
		parsed, err := ParseBoolString(value)
		if err != nil {
			return fmt.Errorf("%w for %s (use true or false)", err, key)
		}
		if err := cfg.Set(key, parsed); err != nil {
			return err
		}
	} else {
		if err := cfg.Set(key, value); err != nil {
			return err
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration value: %w", err)
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	config.SetGlobal(cfg)

	display := value
	if key == "api.key" {
		display = maskAPIKey(value)
	}

	fmt.Printf("%s %s = %s\n", SuccessStyle.Render("[OK]"), key, display)
	return nil
}

// =============================================================================
// CONFIG RESET
// =============================================================================

// handleConfigReset restores the default configuration.
func handleConfigReset(args Args, parser *ArgParser) error {
	if !parser.HasFlag("confirm") {
		fmt.Println()
		fmt.Println(WarningStyle.Render("WARNING: Configuration Reset"))
		fmt.Println(RenderSeparator(40))
		fmt.Println()
		fmt.Printf("  Path: %s\n", configFileLocation())
		fmt.Println()
		fmt.Println("This replaces your configuration with the defaults,")
		fmt.Println("including the API endpoint and key.")
		fmt.Println()
		fmt.Println("To proceed, run:")
		fmt.Println("  rigrelay config reset --confirm")
		fmt.Println()
		return nil
	}

	cfg := config.Default()
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	config.SetGlobal(cfg)

	if args.JSON {
		return outputJSON(map[string]interface{}{
			"reset": true,
			"path":  configFileLocation(),
		})
	}

	fmt.Printf("%s Configuration reset to defaults\n", SuccessStyle.Render("[OK]"))
	return nil
}

// =============================================================================
// CONFIG PATH
// =============================================================================

// handleConfigPath shows the config file location.
func handleConfigPath(args Args) error {
	path := configFileLocation()

	_, err := os.Stat(path)
	exists := err == nil

	if args.JSON {
		return outputJSON(map[string]interface{}{
			"path":   path,
			"exists": exists,
		})
	}

	fmt.Println(path)
	if !exists {
		fmt.Println(DimStyle.Render("(not created yet; written on first config set)"))
	}
	return nil
}
