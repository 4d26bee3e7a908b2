// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// stats_cmd.go - Usage statistics CLI commands for rigrelay.
//
// Command: stats [subcommand]
// Short:   Inspect the local usage log
// Aliases: usage
//
// Subcommands:
//   summary (default)   Show aggregate usage statistics
//   recent              Show the most recent requests
//   reset               Delete all recorded usage (requires --confirm)
//
// Examples:
//   rigrelay stats                     Show usage summary
//   rigrelay stats summary --json      Summary in JSON format
//   rigrelay stats recent              Last 10 requests
//   rigrelay stats recent --limit 25   Last 25 requests
//   rigrelay stats reset --confirm     Clear the usage log
//
// Flags:
//   --limit N           Number of requests to show (default: 10)
//   --confirm           Confirm destructive operations
//   --json              Output in JSON format
//
// The log lives in a SQLite database (stats.path, default
// ~/.rigrelay/stats.db) and records one row per relayed request:
// chat completions, streams, and model listings, from both the CLI
// and the local HTTP server.

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jeranaias/rigrelay/internal/config"
	"github.com/jeranaias/rigrelay/internal/stats"
	"github.com/jeranaias/rigrelay/internal/ui/styles"
	"github.com/jeranaias/rigrelay/internal/util"
)

// =============================================================================
// STORE ACCESS
// =============================================================================

// openStats opens the usage store named by cfg, or returns nil when
// recording is disabled or the store cannot be opened. Callers treat a
// nil store as recording being off; usage logging never blocks a chat.
func openStats(cfg *config.Config) *stats.Store {
	if !cfg.Stats.Enabled {
		return nil
	}

	path, err := cfg.StatsPath()
	if err != nil {
		return nil
	}

	store, err := stats.Open(path)
	if err != nil {
		return nil
	}
	return store
}

// openStatsForReading opens the store for the stats command itself. It
// ignores stats.enabled so previously recorded data stays inspectable
// after recording is switched off, but refuses to create a database
// that does not exist yet.
func openStatsForReading(cfg *config.Config) (*stats.Store, string, error) {
	path, err := cfg.StatsPath()
	if err != nil {
		return nil, "", fmt.Errorf("cannot resolve stats path: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, path, nil
	}

	store, err := stats.Open(path)
	if err != nil {
		return nil, path, err
	}
	return store, path, nil
}

// outputJSON writes v to stdout as indented JSON.
func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// =============================================================================
// STATS COMMAND HANDLER
// =============================================================================

// HandleStatsCommand handles the "stats" command with its subcommands.
// Subcommands:
//   - stats or stats summary: Aggregate usage statistics
//   - stats recent [--limit N]: Most recent requests, newest first
//   - stats reset --confirm: Delete all recorded usage
func HandleStatsCommand(args Args) error {
	parser := NewArgParser(args.Raw)

	switch parser.Subcommand() {
	case "", "summary":
		return handleStatsSummary(args, parser)
	case "recent":
		return handleStatsRecent(args, parser)
	case "reset", "clear":
		return handleStatsReset(args, parser)
	default:
		return NewUsageError(
			fmt.Sprintf("unknown stats subcommand: %s", parser.Subcommand()),
			"rigrelay stats [summary|recent|reset]")
	}
}

// printNoStatsData reports an empty or missing usage log.
func printNoStatsData(args Args, path string) error {
	if args.JSON {
		return outputJSON(map[string]interface{}{
			"message": "no usage data recorded yet",
			"path":    path,
		})
	}

	fmt.Println()
	fmt.Println(WarningStyle.Render("No usage data recorded yet."))
	if cfg := config.Global(); !cfg.Stats.Enabled {
		fmt.Println("Usage recording is disabled. Enable with:")
		fmt.Println("  rigrelay config set stats.enabled true")
	}
	fmt.Println()
	return nil
}

// =============================================================================
// STATS SUMMARY
// =============================================================================

// handleStatsSummary shows aggregate usage statistics.
func handleStatsSummary(args Args, _ *ArgParser) error {
	cfg := config.Global()

	store, path, err := openStatsForReading(cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return printNoStatsData(args, path)
	}
	defer store.Close()

	sum, err := store.Summary()
	if err != nil {
		return err
	}

	if sum.TotalRequests == 0 {
		return printNoStatsData(args, path)
	}

	if args.JSON {
		return outputJSON(sum)
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render("Usage Statistics"))
	fmt.Println(RenderSeparator(40))
	fmt.Println()

	fmt.Printf("  %s %s\n",
		LabelStyle.Render(util.PadWidth("Requests:", 12)),
		ValueStyle.Render(util.FormatCount(int64(sum.TotalRequests))))

	errStyle := ValueStyle
	if sum.Errors > 0 {
		errStyle = ErrorStyle
	}
	fmt.Printf("  %s %s\n",
		LabelStyle.Render(util.PadWidth("Errors:", 12)),
		errStyle.Render(util.FormatCount(int64(sum.Errors))))

	fmt.Printf("  %s %s\n",
		LabelStyle.Render(util.PadWidth("Chunks:", 12)),
		ValueStyle.Render(util.FormatCount(sum.TotalChunks)))
	fmt.Printf("  %s %s\n",
		LabelStyle.Render(util.PadWidth("Received:", 12)),
		ValueStyle.Render(util.FormatBytes(sum.TotalBytes)))
	fmt.Printf("  %s %s\n",
		LabelStyle.Render(util.PadWidth("Avg time:", 12)),
		ValueStyle.Render(util.FormatDurationMS(sum.AvgDurationMS)))

	if len(sum.ByKind) > 0 {
		fmt.Println()
		fmt.Println(LabelStyle.Render("  By kind:"))

		kinds := make([]string, 0, len(sum.ByKind))
		for kind := range sum.ByKind {
			kinds = append(kinds, string(kind))
		}
		sort.Strings(kinds)

		for _, kind := range kinds {
			count := sum.ByKind[stats.RequestKind(kind)]
			pct := float64(count) / float64(sum.TotalRequests) * 100
			fmt.Printf("    %s %s %s  %s\n",
				CommandStyle.Render(util.PadWidth(kind, 8)),
				DimStyle.Render(styles.RenderProgressBar(12, pct)),
				ValueStyle.Render(util.FormatCount(int64(count))),
				DimStyle.Render(fmt.Sprintf("(%.1f%%)", pct)))
		}
	}

	fmt.Println()
	fmt.Printf("  %s %s\n", LabelStyle.Render("Log:"), DimStyle.Render(path))
	fmt.Println()

	return nil
}

// =============================================================================
// STATS RECENT
// =============================================================================

// recentEntry is the JSON shape of one recent request.
type recentEntry struct {
	Time       time.Time `json:"time"`
	Kind       string    `json:"kind"`
	Model      string    `json:"model,omitempty"`
	Status     string    `json:"status"`
	DurationMS int64     `json:"duration_ms"`
	Chunks     int       `json:"chunks"`
	Bytes      int       `json:"bytes"`
}

// handleStatsRecent shows the most recent requests.
func handleStatsRecent(args Args, parser *ArgParser) error {
	limit := parser.FlagIntOrDefault("limit", 10)

	cfg := config.Global()

	store, path, err := openStatsForReading(cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return printNoStatsData(args, path)
	}
	defer store.Close()

	rows, err := store.Recent(limit)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		return printNoStatsData(args, path)
	}

	if args.JSON {
		entries := make([]recentEntry, 0, len(rows))
		for _, row := range rows {
			entries = append(entries, recentEntry{
				Time:       row.Time,
				Kind:       string(row.Kind),
				Model:      row.Model,
				Status:     row.Status,
				DurationMS: row.Duration.Milliseconds(),
				Chunks:     row.Chunks,
				Bytes:      row.Bytes,
			})
		}
		return outputJSON(map[string]interface{}{
			"count":    len(entries),
			"requests": entries,
		})
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render("Recent Requests"))
	fmt.Println(RenderSeparator(70))
	fmt.Println()

	fmt.Printf("  %s %s %s %s %s %s\n",
		LabelStyle.Render(util.PadWidth("WHEN", 14)),
		LabelStyle.Render(util.PadWidth("KIND", 8)),
		LabelStyle.Render(util.PadWidth("MODEL", 22)),
		LabelStyle.Render(util.PadWidth("STATUS", 7)),
		LabelStyle.Render(util.PadWidth("TIME", 9)),
		LabelStyle.Render("BYTES"))

	for _, row := range rows {
		statusStyle := SuccessStyle
		if row.Status != stats.StatusOK {
			statusStyle = ErrorStyle
		}

		model := row.Model
		if model == "" {
			model = "-"
		}

		fmt.Printf("  %s %s %s %s %s %s\n",
			DimStyle.Render(util.PadWidth(util.FormatRelativeTime(row.Time), 14)),
			ValueStyle.Render(util.PadWidth(string(row.Kind), 8)),
			ValueStyle.Render(util.PadWidth(util.TruncateWidth(model, 22), 22)),
			statusStyle.Render(util.PadWidth(row.Status, 7)),
			ValueStyle.Render(util.PadWidth(util.FormatDurationMS(float64(row.Duration.Milliseconds())), 9)),
			ValueStyle.Render(util.FormatBytes(int64(row.Bytes))))
	}

	fmt.Println()
	fmt.Printf("  %s %s\n", LabelStyle.Render("Log:"), DimStyle.Render(path))
	fmt.Println()

	return nil
}

// =============================================================================
// STATS RESET
// =============================================================================

// handleStatsReset deletes all recorded usage after confirmation.
func handleStatsReset(args Args, parser *ArgParser) error {
	cfg := config.Global()

	store, path, err := openStatsForReading(cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return printNoStatsData(args, path)
	}
	defer store.Close()

	sum, err := store.Summary()
	if err != nil {
		return err
	}

	if !parser.HasFlag("confirm") {
		fmt.Println()
		fmt.Println(WarningStyle.Render("WARNING: Usage Log Deletion"))
		fmt.Println(RenderSeparator(40))
		fmt.Println()
		fmt.Printf("  Path:     %s\n", path)
		fmt.Printf("  Requests: %s\n", util.FormatCount(int64(sum.TotalRequests)))
		fmt.Println()
		fmt.Println(ErrorStyle.Render("This action cannot be undone."))
		fmt.Println()
		fmt.Println("To proceed, run:")
		fmt.Println("  rigrelay stats reset --confirm")
		fmt.Println()
		return nil
	}

	if err := store.Reset(); err != nil {
		return err
	}

	if args.JSON {
		return outputJSON(map[string]interface{}{
			"reset":   true,
			"cleared": sum.TotalRequests,
		})
	}

	fmt.Println()
	fmt.Printf("%s Cleared %s recorded requests\n",
		SuccessStyle.Render("[OK]"),
		util.FormatCount(int64(sum.TotalRequests)))
	fmt.Println()

	return nil
}
