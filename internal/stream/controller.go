// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the client-side generation lifecycle.
package stream

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/loomchat/internal/backend"
	"github.com/jeranaias/loomchat/internal/model"
	"github.com/jeranaias/loomchat/internal/util"
	"github.com/jeranaias/loomchat/internal/wire"
)

// cancelRequestTimeout bounds the best-effort backend cancel call.
const cancelRequestTimeout = 5 * time.Second

// lastMessagePreviewLen is the rune budget for the chat-list preview.
const lastMessagePreviewLen = 120

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Generator is the streaming backend surface the controller consumes.
type Generator interface {
	// GenerateStream opens the streaming generation call. The returned
	// body must honor ctx cancellation.
	GenerateStream(ctx context.Context, req backend.GenerateRequest) (io.ReadCloser, error)

	// Cancel requests a best-effort server-side cancellation.
	Cancel(ctx context.Context, sessionID string) error
}

// Store is the external message-persistence surface.
type Store interface {
	AppendMessage(ctx context.Context, chatID string, role model.Role, content string, attachments []model.Attachment) (int64, error)
	UpdateChatLast(ctx context.Context, chatID, lastMessage, title string) error
}

// MetricsSink receives flattened run metrics as they arrive.
type MetricsSink interface {
	Record(sessionID string, flat *model.GenMetrics, meta *model.RunMeta)
}

// =============================================================================
// UI HOOKS
// =============================================================================

// Hooks wires the controller's output back into UI and session state.
// Every field is optional; nil hooks become no-ops.
type Hooks struct {
	// ApplyMessages replaces a session's message list through an updater
	// function over the previous state (read-modify-write, never direct
	// mutation of shared state)
	ApplyMessages func(sid string, update func([]model.ChatMessage) []model.ChatMessage)

	// SetLoading flips the session's streaming flag
	SetLoading func(sid string, loading bool)

	// SetQueued flips the session's queued flag
	SetQueued func(sid string, queued bool)

	// ClearInput clears the input field after a send is accepted
	ClearInput func()

	// SessionRefreshed announces that persisted session state changed
	SessionRefreshed func(sid string)

	// PostTurn runs after an assistant turn is persisted (auto-retitling
	// and similar)
	PostTurn func(sid, finalText string)
}

func (h *Hooks) fillDefaults() {
	if h.ApplyMessages == nil {
		h.ApplyMessages = func(string, func([]model.ChatMessage) []model.ChatMessage) {}
	}
	if h.SetLoading == nil {
		h.SetLoading = func(string, bool) {}
	}
	if h.SetQueued == nil {
		h.SetQueued = func(string, bool) {}
	}
	if h.ClearInput == nil {
		h.ClearInput = func() {}
	}
	if h.SessionRefreshed == nil {
		h.SessionRefreshed = func(string) {}
	}
	if h.PostTurn == nil {
		h.PostTurn = func(string, string) {}
	}
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Config configures a Controller.
type Config struct {
	Backend Generator
	Store   Store
	Metrics MetricsSink
	Hooks   Hooks

	// VisibleSession returns the session currently shown in the UI
	VisibleSession func() string

	// EnsureSession returns the backing session id for a send, creating
	// one if needed
	EnsureSession func(ctx context.Context) (string, error)

	// Params are the generation parameters forwarded on every request
	Params backend.GenParams

	// Grace is the cancellation grace period (default: DefaultCancelGrace)
	Grace time.Duration

	// CancelReason is the stop reason recorded for synthesized fallbacks
	// (default: "user_cancelled")
	CancelReason string
}

// Controller is the public-facing unit of the streaming core. One
// controller owns one scheduler and one canceller; Dispose tears all of it
// down.
type Controller struct {
	backend Generator
	store   Store
	metrics MetricsSink
	hooks   Hooks

	sched *Scheduler
	canc  *Canceller

	ensureSession func(ctx context.Context) (string, error)
	params        backend.GenParams
	grace         time.Duration
	cancelReason  string

	// refreshLimiter throttles mid-stream chat-preview writes
	refreshLimiter *rate.Limiter

	disposed atomic.Bool
	logf     func(format string, args ...any)
}

// NewController creates a controller with its own scheduler and canceller.
func NewController(cfg Config) *Controller {
	cfg.Hooks.fillDefaults()

	grace := cfg.Grace
	if grace <= 0 {
		grace = DefaultCancelGrace
	}
	reason := cfg.CancelReason
	if reason == "" {
		reason = "user_cancelled"
	}
	ensure := cfg.EnsureSession
	if ensure == nil {
		ensure = func(context.Context) (string, error) {
			return "", fmt.Errorf("no session provider configured")
		}
	}

	c := &Controller{
		backend:        cfg.Backend,
		store:          cfg.Store,
		metrics:        cfg.Metrics,
		hooks:          cfg.Hooks,
		ensureSession:  ensure,
		params:         cfg.Params,
		grace:          grace,
		cancelReason:   reason,
		refreshLimiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
		logf:           log.Printf,
	}
	c.sched = NewScheduler(c.runJob)
	c.canc = NewCanceller(c.sched, cfg.VisibleSession, func(sid string) {
		c.hooks.SetQueued(sid, false)
	})
	return c
}

// =============================================================================
// PUBLIC SURFACE
// =============================================================================

// Send accepts a user turn. A send must carry content: empty/whitespace
// text with no attachments is a no-op. Exactly one job is enqueued per
// call.
func (c *Controller) Send(text string, attachments []model.Attachment) error {
	if c.disposed.Load() {
		return fmt.Errorf("controller disposed")
	}
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return nil
	}

	sid, err := c.ensureSession(context.Background())
	if err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}

	userMsg := model.NewUserMessage(text, attachments)
	assistant := model.NewAssistantPlaceholder()

	c.hooks.ApplyMessages(sid, func(msgs []model.ChatMessage) []model.ChatMessage {
		next := make([]model.ChatMessage, 0, len(msgs)+2)
		next = append(next, msgs...)
		return append(next, userMsg, assistant)
	})
	c.hooks.ClearInput()

	go c.persistUserMessage(sid, userMsg)

	c.hooks.SetQueued(sid, true)
	c.sched.Enqueue(QueueItem{
		SessionID:          sid,
		Prompt:             text,
		AssistantMessageID: assistant.ID,
		Attachments:        attachments,
	})
	return nil
}

// Stop cancels the currently visible session's generation.
func (c *Controller) Stop() {
	c.canc.StopVisible()
}

// CancelBySession cancels a specific session, visible or not.
func (c *Controller) CancelBySession(sid string) {
	c.canc.CancelSession(sid)
}

// Dispose aborts any outstanding work unconditionally. Safe to call with
// nothing in flight, and safe to call more than once.
func (c *Controller) Dispose() {
	c.disposed.Store(true)
	c.canc.DisposeAll()
}

// IsSessionActive reports whether a session has running or queued work.
func (c *Controller) IsSessionActive(sid string) bool {
	return c.sched.IsActive(sid)
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// persistUserMessage appends the user turn and patches the optimistic
// message's server id in place. Failures are swallowed: the optimistic
// message remains the source of truth for the live conversation.
func (c *Controller) persistUserMessage(sid string, msg model.ChatMessage) {
	id, err := c.store.AppendMessage(context.Background(), sid, msg.Role, msg.Text, msg.Attachments)
	if err != nil {
		c.logf("stream: persist user message for session %s: %v", sid, err)
		return
	}

	c.hooks.ApplyMessages(sid, func(msgs []model.ChatMessage) []model.ChatMessage {
		for i := range msgs {
			if msgs[i].ID == msg.ID {
				msgs[i].ServerID = id
				break
			}
		}
		return msgs
	})
	c.hooks.SessionRefreshed(sid)
}

// =============================================================================
// JOB RUNNER
// =============================================================================

// runJob performs one generation turn: open the stream, drive the reader
// loop, fold events into UI state, persist the final assistant text.
func (c *Controller) runJob(item QueueItem) error {
	sid := item.SessionID
	c.hooks.SetQueued(sid, false)
	c.hooks.SetLoading(sid, true)
	defer c.hooks.SetLoading(sid, false)

	ctx, abort := context.WithCancel(context.Background())
	defer abort()

	var canceled atomic.Bool
	loop := NewReaderLoop(LoopConfig{
		Grace:       c.grace,
		WasCanceled: canceled.Load,
		Emit: func(ev Event) {
			c.handleEvent(sid, item.AssistantMessageID, ev)
		},
	})

	c.canc.register(sid, abort, func() {
		canceled.Store(true)
		loop.NotifyCanceled()
		go func() {
			cctx, cancel := context.WithTimeout(context.Background(), cancelRequestTimeout)
			defer cancel()
			// Fire and forget; the backend acknowledges via the stream.
			_ = c.backend.Cancel(cctx, sid)
		}()
	})
	defer c.canc.unregister(sid)

	body, err := c.backend.GenerateStream(ctx, backend.GenerateRequest{
		SessionID:   sid,
		Prompt:      item.Prompt,
		Attachments: item.Attachments,
		Params:      c.params,
	})
	if err != nil {
		c.finalizeMessage(sid, item.AssistantMessageID, "")
		return fmt.Errorf("open generation stream: %w", err)
	}
	defer body.Close()

	res, runErr := loop.Run(body)

	meta := res.LastMeta
	if meta == nil && canceled.Load() {
		meta = model.SynthesizeCancelMeta(c.cancelReason)
	}

	c.finalizeMessage(sid, item.AssistantMessageID, res.FinalText)
	c.persistAssistantTurn(sid, item.AssistantMessageID, res.FinalText, meta)

	if runErr != nil {
		return fmt.Errorf("stream read for session %s: %w", sid, runErr)
	}
	return nil
}

// persistAssistantTurn writes the final assistant text (with metadata
// re-embedded in the wire format) and refreshes the chat preview.
// Persistence failures are swallowed; UI state is not rolled back.
func (c *Controller) persistAssistantTurn(sid, messageID, finalText string, meta *model.RunMeta) {
	content := wire.EmbedRunMeta(finalText, meta)

	id, err := c.store.AppendMessage(context.Background(), sid, model.RoleAssistant, content, nil)
	if err != nil {
		c.logf("stream: persist assistant message for session %s: %v", sid, err)
	} else {
		c.hooks.ApplyMessages(sid, func(msgs []model.ChatMessage) []model.ChatMessage {
			for i := range msgs {
				if msgs[i].ID == messageID {
					msgs[i].ServerID = id
					break
				}
			}
			return msgs
		})
	}

	preview := util.TruncateRunes(util.FirstLine(finalText), lastMessagePreviewLen)
	if err := c.store.UpdateChatLast(context.Background(), sid, preview, ""); err != nil {
		c.logf("stream: update chat preview for session %s: %v", sid, err)
	}

	c.hooks.SessionRefreshed(sid)
	c.hooks.PostTurn(sid, finalText)
}

// =============================================================================
// EVENT HANDLING
// =============================================================================

// handleEvent folds one reader event into message state and the metrics
// sink.
func (c *Controller) handleEvent(sid, messageID string, ev Event) {
	switch ev.Kind {
	case EventDelta:
		c.hooks.ApplyMessages(sid, func(msgs []model.ChatMessage) []model.ChatMessage {
			for i := range msgs {
				if msgs[i].ID == messageID && !msgs[i].Finalized {
					msgs[i].Text = ev.Clean
					break
				}
			}
			return msgs
		})
		if c.refreshLimiter.Allow() {
			preview := util.TruncateRunes(util.FirstLine(ev.Clean), lastMessagePreviewLen)
			go func() {
				if err := c.store.UpdateChatLast(context.Background(), sid, preview, ""); err != nil {
					c.logf("stream: mid-stream preview for session %s: %v", sid, err)
				}
			}()
		}

	case EventMetrics:
		c.hooks.ApplyMessages(sid, func(msgs []model.ChatMessage) []model.ChatMessage {
			for i := range msgs {
				if msgs[i].ID == messageID {
					msgs[i].Meta = &model.MessageMeta{RunJSON: ev.Meta, Flat: ev.Flat}
					break
				}
			}
			return msgs
		})
		if c.metrics != nil {
			c.metrics.Record(sid, ev.Flat, ev.Meta)
		}

	case EventCancelTimeout:
		meta := model.SynthesizeCancelMeta(c.cancelReason)
		flat := model.Flatten(meta)
		c.hooks.ApplyMessages(sid, func(msgs []model.ChatMessage) []model.ChatMessage {
			for i := range msgs {
				if msgs[i].ID == messageID && !msgs[i].Finalized {
					msgs[i].Text = ev.Clean
					msgs[i].Meta = &model.MessageMeta{RunJSON: meta, Flat: flat}
					msgs[i].Finalized = true
					break
				}
			}
			return msgs
		})
		if c.metrics != nil {
			c.metrics.Record(sid, flat, meta)
		}

	case EventDone:
		c.finalizeMessage(sid, messageID, ev.Clean)
	}
}

// finalizeMessage marks the assistant message terminal, resyncing its text
// to the final clean snapshot first: a decode pass that rewrites earlier
// text produces no corrective delta, so the snapshot is authoritative at
// end of stream. Finalized is terminal: a message is never reopened
// afterwards.
func (c *Controller) finalizeMessage(sid, messageID, finalText string) {
	c.hooks.ApplyMessages(sid, func(msgs []model.ChatMessage) []model.ChatMessage {
		for i := range msgs {
			if msgs[i].ID == messageID {
				if !msgs[i].Finalized {
					msgs[i].Text = finalText
				}
				msgs[i].Finalized = true
				break
			}
		}
		return msgs
	})
}
