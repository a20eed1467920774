// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Status command implementation for loomchat.
//
// Command: status
// Short:   Display backend and configuration status
// Aliases: s, info
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/loomchat/internal/backend"
	"github.com/jeranaias/loomchat/internal/config"
	"github.com/jeranaias/loomchat/internal/storage"
)

var (
	statusTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				MarginBottom(1)

	statusSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("213"))

	statusOKStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	statusErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// HandleStatus prints backend reachability and the effective
// configuration. Returns a process exit code.
func HandleStatus(args Args) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		return 1
	}

	fmt.Println(statusTitleStyle.Render("loomchat status"))

	fmt.Println(statusSectionStyle.Render("Backend"))
	client := backend.NewClientWithConfig(&backend.ClientConfig{
		BaseURL: cfg.BackendURL(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.CheckRunning(ctx); err != nil {
		fmt.Printf("  URL:     %s\n", cfg.BackendURL())
		fmt.Printf("  State:   %s\n", statusErrStyle.Render("not running"))
		if args.Verbose {
			fmt.Printf("  Detail:  %v\n", err)
		}
	} else {
		fmt.Printf("  URL:     %s\n", cfg.BackendURL())
		fmt.Printf("  State:   %s\n", statusOKStyle.Render("running"))
	}
	fmt.Printf("  Model:   %s\n", cfg.Generation.Model)

	fmt.Println(statusSectionStyle.Render("Storage"))
	dbPath, err := cfg.DatabasePath()
	if err != nil {
		fmt.Printf("  DB:      %s\n", statusErrStyle.Render(err.Error()))
		return 1
	}
	fmt.Printf("  DB:      %s\n", dbPath)
	store, err := storage.Open(dbPath)
	if err != nil {
		fmt.Printf("  State:   %s\n", statusErrStyle.Render(err.Error()))
		return 1
	}
	defer store.Close()
	chats, err := store.ListChats(ctx)
	if err != nil {
		fmt.Printf("  State:   %s\n", statusErrStyle.Render(err.Error()))
		return 1
	}
	fmt.Printf("  Chats:   %d\n", len(chats))
	return 0
}
