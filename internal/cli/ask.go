// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single query command handler for loomchat.
//
// Handles the "loomchat ask" command which sends one question to the
// backend and streams the response to stdout.
//
// Command: ask [question]
// Short:   Ask a single question
//
// Examples:
//   loomchat ask "What is the capital of France?"
//   loomchat ask --plain "Explain this error"
//   loomchat ask -m qwen2.5:32b "Summarize RFC 9110"
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"

	"github.com/jeranaias/loomchat/internal/backend"
	"github.com/jeranaias/loomchat/internal/config"
	"github.com/jeranaias/loomchat/internal/metrics"
	"github.com/jeranaias/loomchat/internal/stream"
)

// askWrapWidth is the word-wrap width for rendered markdown output.
const askWrapWidth = 100

// HandleAsk runs a one-shot question against the backend and streams the
// answer to stdout. Returns a process exit code.
func HandleAsk(args Args) int {
	if args.Query == "" {
		fmt.Fprintln(os.Stderr, "Error: ask requires a question")
		fmt.Fprintln(os.Stderr, `Usage: loomchat ask "your question"`)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if args.Model != "" {
		cfg.Generation.Model = args.Model
	}

	client := backend.NewClientWithConfig(&backend.ClientConfig{
		BaseURL: cfg.BackendURL(),
		Timeout: time.Duration(cfg.Backend.RequestTimeoutSecs) * time.Second,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	sessionID := uuid.NewString()
	body, err := client.GenerateStream(ctx, backend.GenerateRequest{
		SessionID: sessionID,
		Prompt:    args.Query,
		Params: backend.GenParams{
			Model:       cfg.Generation.Model,
			Temperature: cfg.Generation.Temperature,
			MaxTokens:   cfg.Generation.MaxTokens,
		},
	})
	if err != nil {
		if backend.IsNotRunning(err) {
			fmt.Fprintln(os.Stderr, "Error: backend is not running")
			fmt.Fprintf(os.Stderr, "Expected it at %s (run `loomchat status`)\n", cfg.BackendURL())
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	defer body.Close()

	recorder := metrics.NewRecorder()
	plain := args.Plain || !cfg.UI.Markdown

	loop := stream.NewReaderLoop(stream.LoopConfig{
		Grace:       time.Duration(cfg.Backend.CancelGraceSecs) * time.Second,
		WasCanceled: func() bool { return ctx.Err() != nil },
		Emit: func(ev stream.Event) {
			switch ev.Kind {
			case stream.EventDelta:
				if plain {
					fmt.Print(ev.Delta)
				}
			case stream.EventMetrics:
				recorder.Record(sessionID, ev.Flat, ev.Meta)
			}
		},
	})

	// On interrupt, tell the backend to stop; the reader loop keeps
	// draining so a final metadata block is not lost.
	drained := make(chan struct{})
	go func() {
		select {
		case <-drained:
			return
		case <-ctx.Done():
		}
		loop.NotifyCanceled()
		cancelCtx, cancelStop := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelStop()
		_ = client.Cancel(cancelCtx, sessionID)
	}()

	result, err := loop.Run(body)
	close(drained)
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "\nError: stream failed: %v\n", err)
		if result.FinalText == "" {
			return 1
		}
	}

	if plain {
		fmt.Println()
	} else {
		printMarkdown(result.FinalText)
	}

	if !args.Quiet {
		if line := recorder.FormatLast(sessionID); line != "" {
			fmt.Fprintf(os.Stderr, "\n%s\n", line)
		}
	}
	return 0
}

// printMarkdown renders the full response through glamour, falling back
// to the raw text when the renderer cannot be built.
func printMarkdown(text string) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(askWrapWidth),
	)
	if err != nil {
		fmt.Println(text)
		return
	}
	out, err := r.Render(text)
	if err != nil {
		fmt.Println(text)
		return
	}
	fmt.Print(out)
}
