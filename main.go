// loomchat - A streaming terminal client for a local AI chat backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/loomchat/internal/backend"
	"github.com/jeranaias/loomchat/internal/cli"
	"github.com/jeranaias/loomchat/internal/config"
	"github.com/jeranaias/loomchat/internal/metrics"
	"github.com/jeranaias/loomchat/internal/storage"
	"github.com/jeranaias/loomchat/internal/ui/chat"
	"github.com/jeranaias/loomchat/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdVersion:
		cli.PrintVersion()
	case cli.CmdHelp:
		cli.Usage()
	case cli.CmdAsk:
		os.Exit(cli.HandleAsk(args))
	case cli.CmdStatus:
		os.Exit(cli.HandleStatus(args))
	case cli.CmdConfig:
		os.Exit(cli.HandleConfig(args))
	default:
		os.Exit(runTUI(args))
	}
}

// runTUI wires the full chat stack and runs the Bubble Tea program.
func runTUI(args cli.Args) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}
	if args.Model != "" {
		cfg.Generation.Model = args.Model
	}

	// Background failures (persistence, scheduler jobs) go to a log file;
	// stderr belongs to the alternate screen while the TUI runs.
	if dir, derr := config.Dir(); derr == nil && config.EnsureDir() == nil {
		if f, ferr := os.OpenFile(filepath.Join(dir, "loomchat.log"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600); ferr == nil {
			log.SetOutput(f)
			defer f.Close()
		}
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving database path: %v\n", err)
		return 1
	}
	store, err := storage.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening chat store: %v\n", err)
		return 1
	}
	defer store.Close()

	client := backend.NewClientWithConfig(&backend.ClientConfig{
		BaseURL: cfg.BackendURL(),
		Timeout: time.Duration(cfg.Backend.RequestTimeoutSecs) * time.Second,
	})

	theme := styles.NewTheme(cfg.UI.Theme)
	recorder := metrics.NewRecorder()

	m := chat.New(chat.Options{
		Backend: client,
		Store:   store,
		Metrics: recorder,
		Theme:   theme,
		Params: backend.GenParams{
			Model:       cfg.Generation.Model,
			Temperature: cfg.Generation.Temperature,
			MaxTokens:   cfg.Generation.MaxTokens,
		},
		Grace:    cfg.Backend.CancelGraceSecs,
		ShowMeta: cfg.UI.ShowMetrics,
		Markdown: cfg.UI.Markdown,
	})
	defer m.Controller().Dispose()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	// Hot-reload display settings when the config file changes on disk.
	// Generation and backend settings stay fixed for the program's life.
	if path, perr := config.Path(); perr == nil {
		w, werr := config.NewWatcher(path, config.DefaultWatchDebounce,
			func(next *config.Config) {
				p.Send(chat.SettingsMsg{
					ShowMeta: next.UI.ShowMetrics,
					Markdown: next.UI.Markdown,
				})
			},
			nil)
		if werr == nil && w.Watch() == nil {
			defer w.Close()
		}
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
