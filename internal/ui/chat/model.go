// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/jeranaias/loomchat/internal/backend"
	"github.com/jeranaias/loomchat/internal/metrics"
	"github.com/jeranaias/loomchat/internal/model"
	"github.com/jeranaias/loomchat/internal/storage"
	"github.com/jeranaias/loomchat/internal/stream"
	"github.com/jeranaias/loomchat/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// State represents the current state of the chat view.
type State int

const (
	StateReady     State = iota // Ready for input
	StateQueued                 // Send accepted, waiting for its turn
	StateStreaming              // Receiving streamed response
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Options configures the chat view.
type Options struct {
	Backend  stream.Generator
	Store    *storage.ChatStore
	Metrics  *metrics.Recorder
	Theme    *styles.Theme
	Params   backend.GenParams
	Grace    int // cancel grace period in seconds, 0 = default
	ShowMeta bool
	Markdown bool
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	theme *styles.Theme

	// Dimensions
	width  int
	height int

	// Shared message state fed by controller hooks
	state *SessionState

	// Current session. One chat per program run; the session id is
	// created lazily on first send.
	sessionMu sync.Mutex
	sessionID string

	// Streaming core
	controller *stream.Controller
	store      *storage.ChatStore
	metrics    *metrics.Recorder

	// Render pacing
	gate *RenderGate

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model

	keyMap KeyMap

	// Render options
	showMeta bool
	markdown bool

	// lastErr is the most recent background failure worth surfacing
	lastErr string

	ready bool
}

// New creates a new chat model wired to its own stream controller.
func New(opts Options) *Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 4096
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		theme:    opts.Theme,
		state:    NewSessionState(),
		store:    opts.Store,
		metrics:  opts.Metrics,
		gate:     NewRenderGate(30),
		input:    ti,
		spin:     sp,
		keyMap:   DefaultKeyMap(),
		showMeta: opts.ShowMeta,
		markdown: opts.Markdown,
	}
	m.spin.Style = opts.Theme.Spinner

	grace := stream.DefaultCancelGrace
	if opts.Grace > 0 {
		grace = time.Duration(opts.Grace) * time.Second
	}

	m.controller = stream.NewController(stream.Config{
		Backend: opts.Backend,
		Store:   storeAdapter{opts.Store},
		Metrics: opts.Metrics,
		Hooks: stream.Hooks{
			ApplyMessages: m.state.Apply,
			SetLoading:    m.state.SetLoading,
			SetQueued:     m.state.SetQueued,
		},
		VisibleSession: m.currentSession,
		EnsureSession:  m.ensureSession,
		Params:         opts.Params,
		Grace:          grace,
	})
	return m
}

// Controller exposes the underlying stream controller (one-shot mode and
// teardown).
func (m *Model) Controller() *stream.Controller {
	return m.controller
}

// currentSession returns the active session id, empty before first send.
func (m *Model) currentSession() string {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()
	return m.sessionID
}

// ensureSession creates the backing chat on first use.
func (m *Model) ensureSession(ctx context.Context) (string, error) {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	if m.sessionID != "" {
		return m.sessionID, nil
	}

	sid := uuid.NewString()
	if m.store != nil {
		if err := m.store.CreateChat(ctx, sid, ""); err != nil {
			return "", err
		}
	}
	m.sessionID = sid
	return sid, nil
}

// viewState derives the coarse UI state for the status bar.
func (m *Model) viewState() State {
	sid := m.currentSession()
	if sid == "" {
		return StateReady
	}
	switch {
	case m.state.IsLoading(sid):
		return StateStreaming
	case m.state.IsQueued(sid):
		return StateQueued
	default:
		return StateReady
	}
}

// Init starts the spinner and the streaming tick.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, streamTickCmd(), textinput.Blink)
}

// storeAdapter narrows *storage.ChatStore to the controller's Store
// interface.
type storeAdapter struct {
	s *storage.ChatStore
}

func (a storeAdapter) AppendMessage(ctx context.Context, chatID string, role model.Role, content string, attachments []model.Attachment) (int64, error) {
	if a.s == nil {
		return 0, nil
	}
	return a.s.AppendMessage(ctx, chatID, role, content, attachments)
}

func (a storeAdapter) UpdateChatLast(ctx context.Context, chatID, lastMessage, title string) error {
	if a.s == nil {
		return nil
	}
	return a.s.UpdateChatLast(ctx, chatID, lastMessage, title)
}
