// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file implements the render gate that keeps streaming smooth and
// flicker-free. The controller rewrites shared state on every delta, which
// can be hundreds of times per second; the gate caps how often the
// viewport is actually re-rendered.
package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// RENDER GATE
// =============================================================================

// RenderGate decides when the transcript should be re-rendered during
// streaming. A redraw happens when state has changed since the last render
// AND at least the minimum frame interval has passed.
//
// Thread-safety: state versions arrive from controller goroutines while
// ShouldRender is called from the main Bubble Tea loop.
type RenderGate struct {
	mu         sync.Mutex
	lastRender time.Time
	lastSeen   uint64

	minInterval time.Duration
}

// NewRenderGate creates a render gate capped at maxFPS frames per second.
func NewRenderGate(maxFPS int) *RenderGate {
	if maxFPS <= 0 || maxFPS > 60 {
		maxFPS = 30
	}
	return &RenderGate{
		minInterval: time.Second / time.Duration(maxFPS),
	}
}

// ShouldRender reports whether a redraw is due for the given state
// version, and records the render when it is.
func (g *RenderGate) ShouldRender(version uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if version == g.lastSeen {
		return false
	}
	if time.Since(g.lastRender) < g.minInterval {
		return false
	}

	g.lastSeen = version
	g.lastRender = time.Now()
	return true
}

// Force marks the next ShouldRender call as due regardless of timing.
// Used when a stream finishes so the final text never waits a frame.
func (g *RenderGate) Force() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastSeen = 0
	g.lastRender = time.Time{}
}

// =============================================================================
// STREAM TICK
// =============================================================================

// StreamTickMsg drives the streaming render loop.
type StreamTickMsg struct {
	Time time.Time
}

// SettingsMsg applies hot-reloaded display settings. Sent from outside
// the program when the config file changes on disk.
type SettingsMsg struct {
	ShowMeta bool
	Markdown bool
}

// streamTickCmd schedules the next streaming tick at ~30fps.
func streamTickCmd() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
