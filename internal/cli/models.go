// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - Model listing command for the rigrelay CLI.
//
// Command: models
// Short:   List models advertised by the configured endpoint
// Aliases: model-list
//
// Examples:
//   rigrelay models               List available models
//   rigrelay models --json        Model names in JSON format
//
// The list comes from the endpoint's tags route, derived from the
// configured chat endpoint's origin. The configured default model is
// marked in the listing.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeranaias/rigrelay/internal/config"
	"github.com/jeranaias/rigrelay/internal/relay"
	"github.com/jeranaias/rigrelay/internal/stats"
)

// HandleModelsCommand handles the "models" command.
func HandleModelsCommand(args Args) error {
	cfg := config.Global()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := relay.NewClient()
	start := time.Now()
	names, err := client.ListModels(ctx, cfg.API.Endpoint, cfg.API.Key)
	recordModelsUsage(cfg, time.Since(start), err)
	if err != nil {
		return err
	}

	if args.JSON {
		return outputJSON(map[string]interface{}{
			"endpoint": cfg.API.Endpoint,
			"count":    len(names),
			"models":   names,
		})
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render("Available Models"))
	fmt.Println(RenderSeparator(30))
	fmt.Println()

	if len(names) == 0 {
		fmt.Println(DimStyle.Render("  (endpoint advertises no models)"))
		fmt.Println()
		return nil
	}

	for _, name := range names {
		marker := " "
		style := ValueStyle
		if name == cfg.API.Model {
			marker = "*"
			style = CommandStyle
		}
		fmt.Printf("  %s %s\n", SuccessStyle.Render(marker), style.Render(name))
	}

	fmt.Println()
	fmt.Printf("%s\n", DimStyle.Render(fmt.Sprintf("%d models from %s (* = default)", len(names), cfg.API.Endpoint)))
	fmt.Println()

	return nil
}

// recordModelsUsage logs one model listing to the usage store, when
// recording is on. Failures to record never surface to the user.
func recordModelsUsage(cfg *config.Config, duration time.Duration, reqErr error) {
	store := openStats(cfg)
	if store == nil {
		return
	}
	defer store.Close()

	status := stats.StatusOK
	if reqErr != nil {
		status = stats.StatusError
	}

	_ = store.Record(stats.RequestStat{
		Time:     time.Now(),
		Kind:     stats.KindModels,
		Status:   status,
		Duration: duration,
	})
}
