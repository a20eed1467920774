// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for loomchat.
//
// Command: config [show|path|init]
// Short:   Inspect and bootstrap configuration
package cli

import (
	"fmt"
	"os"

	"github.com/jeranaias/loomchat/internal/config"
)

// HandleConfig implements the config subcommands. Returns a process exit
// code.
func HandleConfig(args Args) int {
	switch args.Subcommand {
	case "", "show":
		return configShow()
	case "path":
		return configPath()
	case "init":
		return configInit()
	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args.Subcommand)
		fmt.Fprintln(os.Stderr, "Usage: loomchat config [show|path|init]")
		return 1
	}
}

func configShow() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println("Backend:")
	fmt.Printf("  url:             %s\n", cfg.BackendURL())
	fmt.Printf("  request_timeout: %ds\n", cfg.Backend.RequestTimeoutSecs)
	fmt.Printf("  cancel_grace:    %ds\n", cfg.Backend.CancelGraceSecs)
	fmt.Println("Generation:")
	fmt.Printf("  model:           %s\n", cfg.Generation.Model)
	fmt.Printf("  temperature:     %.2f\n", cfg.Generation.Temperature)
	fmt.Printf("  max_tokens:      %d\n", cfg.Generation.MaxTokens)
	fmt.Println("UI:")
	fmt.Printf("  theme:           %s\n", cfg.UI.Theme)
	fmt.Printf("  show_metrics:    %t\n", cfg.UI.ShowMetrics)
	fmt.Printf("  markdown:        %t\n", cfg.UI.Markdown)
	return 0
}

func configPath() int {
	path, err := config.Path()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(path)
	return 0
}

// configInit writes the default config to disk if none exists yet.
func configInit() int {
	path, err := config.Path()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists at %s\n", path)
		return 0
	}
	if err := config.Save(config.Default()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Wrote default config to %s\n", path)
	return 0
}
