// Command clausewitzd watches a Stellaris save directory, parses and
// extracts each new save into a domain Snapshot, and serves the
// resulting campaign history over HTTP. Grounded on the teacher's
// cmd/lci/main.go: a urfave/cli app with a shared config-loading
// helper, a signal-driven graceful shutdown for the long-running
// command, and a one-shot command for scripting/debugging.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/clausewitz/internal/cache"
	"github.com/standardbeagle/clausewitz/internal/config"
	"github.com/standardbeagle/clausewitz/internal/custodian"
	"github.com/standardbeagle/clausewitz/internal/debug"
	"github.com/standardbeagle/clausewitz/internal/extractor"
	"github.com/standardbeagle/clausewitz/internal/ingest"
	"github.com/standardbeagle/clausewitz/internal/server"
	"github.com/standardbeagle/clausewitz/internal/version"
	"github.com/standardbeagle/clausewitz/internal/watch"
)

// loadConfigWithOverrides loads configuration and applies CLI flag
// overrides, mirroring the teacher's loadConfigWithOverrides.
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	cfg, err := config.LoadWithRoot(c.String("config"), root)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	if root != "" {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
		}
		cfg.Watch.Root = absRoot
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func main() {
	app := &cli.App{
		Name:                   "clausewitzd",
		Usage:                  "Watch a Stellaris save directory and extract campaign snapshots",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   ".clausewitz.kdl",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Save directory to watch (overrides config)",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Include files matching glob patterns (e.g., --include '**/*.sav')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "watch",
				Usage:  "Watch the save directory and serve ingested campaigns over HTTP",
				Action: watchCommand,
			},
			{
				Name:      "parse",
				Usage:     "Parse and extract a single save file, printing its Snapshot as JSON",
				ArgsUsage: "<path>",
				Action:    parseCommand,
			},
			{
				Name:   "version",
				Usage:  "Print version information",
				Action: func(c *cli.Context) error { fmt.Println(version.FullInfo()); return nil },
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func watchCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return debug.Fatal("%v\n", err)
	}

	cust := custodian.New(cfg)
	defer cust.Close()

	var parseCache *cache.Cache
	if cfg.Cache.Enabled {
		parseCache = cache.New(cfg.Cache.MaxEntries)
		defer parseCache.Stop()
	}

	pipeline := ingest.New(cfg, parseCache, cust.Ingest)

	watcher, err := watch.New(cfg)
	if err != nil {
		return debug.Fatal("failed to create watcher: %v\n", err)
	}
	if err := watcher.Start(); err != nil {
		return debug.Fatal("failed to start watcher: %v\n", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipelineDone := make(chan error, 1)
	go func() { pipelineDone <- pipeline.Run(ctx, watcher.Events()) }()

	var httpServer *server.Server
	if cfg.Server.Enabled {
		httpServer = server.New(cfg, cust)
		if err := httpServer.Start(); err != nil {
			return debug.Fatal("failed to start HTTP server: %v\n", err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	debug.LogWatch("clausewitzd watching %s\n", cfg.Watch.Root)
	<-sigChan
	debug.LogWatch("shutting down\n")

	cancel()
	_ = watcher.Stop()
	<-pipelineDone

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return debug.Fatal("server shutdown: %v\n", err)
		}
	}
	return nil
}

func parseCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("usage: clausewitzd parse <path>")
	}

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return debug.Fatal("%v\n", err)
	}

	var snap extractor.Snapshot
	sink := func(s extractor.Snapshot, _ string) { snap = s }
	pipeline := ingest.New(cfg, nil, sink)

	if _, err := pipeline.ProcessFile(context.Background(), path); err != nil {
		return debug.Fatal("%v\n", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
