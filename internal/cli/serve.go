// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - Local HTTP relay server command for the rigrelay CLI.
//
// Command: serve
// Short:   Run the relay as a local HTTP server
// Aliases: server
//
// Examples:
//   rigrelay serve                Serve on the configured port (default 8080)
//   rigrelay serve --port 9090    Serve on a specific port
//   rigrelay serve -q             Serve without the startup banner
//
// Routes (bound to 127.0.0.1 only):
//   POST /chat           Forward one chat completion
//   POST /chat/stream    Forward a streaming chat completion (SSE)
//   POST /models         List models from an endpoint
//   GET  /healthz        Liveness and version
//   GET  /stats          Usage summary (503 when recording is off)
//
// The config file is watched while serving: edits to server.rate_limit,
// server.rate_burst, or server.port apply without a restart (a port
// change rebinds the listener). Changes to stats.* need a restart.
package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/rigrelay/internal/config"
	"github.com/jeranaias/rigrelay/internal/relay"
	"github.com/jeranaias/rigrelay/internal/server"
)

// HandleServeCommand handles the "serve" command. It blocks until the
// process receives SIGINT or SIGTERM.
func HandleServeCommand(args Args) error {
	cfg := config.Global()

	// --port pins the port for the life of the process; without it the
	// config file stays in charge, including across reloads.
	pinnedPort := args.Port

	port := pinnedPort
	if port <= 0 {
		port = cfg.Server.Port
	}

	store := openStats(cfg)
	if store != nil {
		defer store.Close()
	}

	srv := server.New(relay.NewClient())
	if store != nil {
		srv = srv.WithStats(store)
	}
	srv = srv.WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst)

	sup := server.NewSupervisor(srv)
	if err := sup.Enable(port); err != nil {
		var bindErr *server.BindError
		if errors.As(err, &bindErr) {
			return fmt.Errorf("%w\nIs another rigrelay running? Try a different port: rigrelay serve --port %d",
				err, bindErr.Port+1)
		}
		return err
	}
	defer sup.Disable()

	if !args.Quiet {
		printServeBanner(cfg, port, store != nil)
	}

	watcher := startConfigWatch(cfg, srv, sup, pinnedPort, args.Quiet)
	if watcher != nil {
		defer watcher.Close()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	<-sigChan

	if !args.Quiet {
		fmt.Println()
		fmt.Println(InfoStyle.Render("Shutting down..."))
	}

	return nil
}

// startConfigWatch watches the config file and applies server-relevant
// changes to the running relay. Returns nil when watching could not be
// set up; serving continues without reloads in that case.
func startConfigWatch(cfg *config.Config, srv *server.Server, sup *server.Supervisor, pinnedPort int, quiet bool) *config.Watcher {
	path, err := config.ConfigPath()
	if err != nil {
		return nil
	}

	lastServer := cfg.Server

	onReload := func(next *config.Config) {
		config.SetGlobal(next)

		if next.Server == lastServer {
			return
		}
		lastServer = next.Server

		srv.WithRateLimit(next.Server.RateLimit, next.Server.RateBurst)

		port := pinnedPort
		if port <= 0 {
			port = next.Server.Port
		}

		// Rebind so the new handler chain (and possibly port) takes
		// effect. Enable stops the old listener first, so a bind failure
		// here leaves nothing serving; fall back to the previous port.
		oldPort, wasRunning := sup.Port()
		if err := sup.Enable(port); err != nil {
			fmt.Fprintf(os.Stderr, "%s config reload: %v\n", ErrorStyle.Render("[Error]"), err)
			if wasRunning && oldPort != port {
				if err := sup.Enable(oldPort); err != nil {
					fmt.Fprintf(os.Stderr, "%s failed to restore port %d: %v\n", ErrorStyle.Render("[Error]"), oldPort, err)
				}
			}
			return
		}

		if !quiet {
			fmt.Fprintf(os.Stderr, "%s config reloaded, serving on 127.0.0.1:%d\n",
				SuccessStyle.Render("[OK]"), port)
		}
	}

	onError := func(err error) {
		fmt.Fprintf(os.Stderr, "%s config watch: %v\n", WarningStyle.Render("[Warning]"), err)
	}

	watcher, err := config.NewWatcher(path, onReload, onError)
	if err != nil {
		return nil
	}
	if err := watcher.Watch(); err != nil {
		watcher.Close()
		return nil
	}
	return watcher
}

// printServeBanner prints the startup banner.
func printServeBanner(cfg *config.Config, port int, recording bool) {
	fmt.Println()
	fmt.Println(TitleStyle.Render("rigrelay server"))
	fmt.Println(RenderSeparator(30))
	fmt.Printf("%s http://127.0.0.1:%d\n", InfoStyle.Render("Listening:"), port)

	if cfg.Server.RateLimit > 0 {
		fmt.Printf("%s %g req/s (burst %d)\n", InfoStyle.Render("Rate limit:"), cfg.Server.RateLimit, cfg.Server.RateBurst)
	} else {
		fmt.Printf("%s %s\n", InfoStyle.Render("Rate limit:"), DimStyle.Render("off"))
	}

	usage := "off"
	if recording {
		usage = "on"
	}
	fmt.Printf("%s %s\n", InfoStyle.Render("Usage log:"), usage)

	fmt.Println()
	fmt.Println(DimStyle.Render("Routes: POST /chat, POST /chat/stream, POST /models, GET /healthz, GET /stats"))
	fmt.Println(DimStyle.Render("Press Ctrl+C to stop"))
	fmt.Println()
}
