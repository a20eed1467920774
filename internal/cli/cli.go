// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for loomchat.
package cli

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdStatus
	CmdConfig
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	Model   string
	Plain   bool // disable markdown rendering on stdout

	// Command-specific
	Query      string
	Subcommand string

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `loomchat - streaming AI chat for the terminal

Loomchat is a terminal client for a local AI chat backend.

It provides:
  - A full-screen streaming chat TUI (default)
  - One-shot questions streamed to stdout
  - Persistent chat history in SQLite
  - Per-run generation metrics

Usage:
  loomchat                   Start TUI (default)
  loomchat ask "question"    Ask a single question
  loomchat status, s         Show backend status
  loomchat config [show|path] Configuration
  loomchat version, -v       Show version
  loomchat help, -h          Show this help

Flags:
  -m, --model NAME    Use a specific model (overrides config)
  --plain             Plain text output (no markdown rendering)
  -q, --quiet         Minimal output
  --verbose           Verbose output

Examples:
  loomchat ask "What is the capital of France?"
  loomchat ask --plain "Explain this error" > notes.txt
  loomchat config show
`

// Usage prints the usage text to stdout.
func Usage() {
	fmt.Print(usageText)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("loomchat %s\n", Version)
	fmt.Printf("  commit:  %s\n", GitCommit)
	fmt.Printf("  built:   %s\n", BuildDate)
	fmt.Printf("  runtime: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Parse parses os.Args into a command and its arguments.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses the given argument list. Flags may appear anywhere;
// the first non-flag token selects the command.
func ParseArgs(argv []string) (Command, Args) {
	var args Args
	var words []string

	for i := 0; i < len(argv); i++ {
		a := argv[i]
		switch {
		case a == "-h" || a == "--help":
			return CmdHelp, args
		case a == "-v" || a == "--version":
			return CmdVersion, args
		case a == "-q" || a == "--quiet":
			args.Quiet = true
		case a == "--verbose":
			args.Verbose = true
		case a == "--plain":
			args.Plain = true
		case a == "-m" || a == "--model":
			if i+1 < len(argv) {
				i++
				args.Model = argv[i]
			}
		case strings.HasPrefix(a, "--model="):
			args.Model = strings.TrimPrefix(a, "--model=")
		default:
			words = append(words, a)
		}
	}

	if len(words) == 0 {
		return CmdTUI, args
	}

	cmd := words[0]
	rest := words[1:]
	args.Raw = rest

	switch cmd {
	case "ask":
		args.Query = strings.Join(rest, " ")
		return CmdAsk, args
	case "status", "s", "info":
		return CmdStatus, args
	case "config":
		if len(rest) > 0 {
			args.Subcommand = rest[0]
		}
		return CmdConfig, args
	case "version":
		return CmdVersion, args
	case "help":
		return CmdHelp, args
	default:
		// Bare words are treated as an implicit ask for convenience.
		args.Query = strings.Join(words, " ")
		return CmdAsk, args
	}
}
