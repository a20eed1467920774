// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import "testing"

func TestParseArgsCommands(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want Command
	}{
		{"empty defaults to tui", nil, CmdTUI},
		{"ask", []string{"ask", "hello"}, CmdAsk},
		{"status", []string{"status"}, CmdStatus},
		{"status alias s", []string{"s"}, CmdStatus},
		{"status alias info", []string{"info"}, CmdStatus},
		{"config", []string{"config"}, CmdConfig},
		{"version word", []string{"version"}, CmdVersion},
		{"version flag", []string{"-v"}, CmdVersion},
		{"help word", []string{"help"}, CmdHelp},
		{"help flag", []string{"--help"}, CmdHelp},
		{"bare words become ask", []string{"what", "is", "go"}, CmdAsk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := ParseArgs(tt.argv)
			if got != tt.want {
				t.Errorf("ParseArgs(%v) = %v, want %v", tt.argv, got, tt.want)
			}
		})
	}
}

func TestParseArgsQueryJoining(t *testing.T) {
	_, args := ParseArgs([]string{"ask", "what", "is", "go"})
	if args.Query != "what is go" {
		t.Errorf("Query = %q, want %q", args.Query, "what is go")
	}

	_, args = ParseArgs([]string{"explain", "this"})
	if args.Query != "explain this" {
		t.Errorf("implicit ask Query = %q, want %q", args.Query, "explain this")
	}
}

func TestParseArgsFlags(t *testing.T) {
	cmd, args := ParseArgs([]string{"--plain", "ask", "-m", "llama3:8b", "-q", "hi"})
	if cmd != CmdAsk {
		t.Fatalf("cmd = %v, want CmdAsk", cmd)
	}
	if !args.Plain {
		t.Error("Plain not set")
	}
	if !args.Quiet {
		t.Error("Quiet not set")
	}
	if args.Model != "llama3:8b" {
		t.Errorf("Model = %q, want %q", args.Model, "llama3:8b")
	}
	if args.Query != "hi" {
		t.Errorf("Query = %q, want %q", args.Query, "hi")
	}
}

func TestParseArgsModelEquals(t *testing.T) {
	_, args := ParseArgs([]string{"--model=qwen2.5:14b", "ask", "hi"})
	if args.Model != "qwen2.5:14b" {
		t.Errorf("Model = %q, want %q", args.Model, "qwen2.5:14b")
	}
}

func TestParseArgsConfigSubcommand(t *testing.T) {
	_, args := ParseArgs([]string{"config", "path"})
	if args.Subcommand != "path" {
		t.Errorf("Subcommand = %q, want %q", args.Subcommand, "path")
	}
}

func TestParseArgsTrailingModelFlagWithoutValue(t *testing.T) {
	cmd, args := ParseArgs([]string{"ask", "hi", "-m"})
	if cmd != CmdAsk {
		t.Fatalf("cmd = %v, want CmdAsk", cmd)
	}
	if args.Model != "" {
		t.Errorf("Model = %q, want empty", args.Model)
	}
}
