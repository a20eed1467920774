// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the client-side generation lifecycle.
package stream

import (
	"context"
	"sync"
)

// =============================================================================
// IN-FLIGHT OPERATION
// =============================================================================

// inflight is the cancellable surface of one running generation job.
type inflight struct {
	sessionID string

	// abort hard-kills the underlying HTTP request. Used only by Dispose;
	// regular cancellation lets the stream drain.
	abort context.CancelFunc

	// soft requests cooperative cancellation: it flips the job's canceled
	// flag, arms the reader's grace timer, and fires the best-effort
	// backend cancel call.
	soft func()
}

// =============================================================================
// CANCELLER
// =============================================================================

// Canceller maps a stop action to the correct in-flight operation. It
// distinguishes a running job (abort + cooperative reader cancel) from a
// merely queued one (dropping it from the queue is enough), and supports
// cancelling a background session without disturbing the visible one.
type Canceller struct {
	mu  sync.Mutex
	ops map[string]*inflight

	sched   *Scheduler
	visible func() string

	// onStopped flips loading/queued UI flags for the session
	onStopped func(sid string)
}

// NewCanceller creates a canceller bound to a scheduler and a provider of
// the currently visible session id.
func NewCanceller(sched *Scheduler, visible func() string, onStopped func(sid string)) *Canceller {
	if visible == nil {
		visible = func() string { return "" }
	}
	if onStopped == nil {
		onStopped = func(string) {}
	}
	return &Canceller{
		ops:       make(map[string]*inflight),
		sched:     sched,
		visible:   visible,
		onStopped: onStopped,
	}
}

// register records a running job's cancellable surface.
func (c *Canceller) register(sid string, abort context.CancelFunc, soft func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops[sid] = &inflight{sessionID: sid, abort: abort, soft: soft}
}

// unregister removes a finished job. Safe when nothing is registered.
func (c *Canceller) unregister(sid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ops, sid)
}

// StopVisible cancels whatever session is currently shown in the UI.
func (c *Canceller) StopVisible() {
	c.CancelSession(c.visible())
}

// CancelSession cancels a specific session by id: queued jobs are dropped,
// and a running job (if any) is asked to wind down cooperatively. Other
// sessions' in-flight streams are untouched.
func (c *Canceller) CancelSession(sid string) {
	if sid == "" {
		return
	}

	c.sched.DropQueued(sid)

	c.mu.Lock()
	op := c.ops[sid]
	c.mu.Unlock()

	if op != nil && op.soft != nil {
		op.soft()
	}

	c.onStopped(sid)
}

// DisposeAll aborts every outstanding operation unconditionally. Used on
// teardown; never panics, even with nothing in flight.
func (c *Canceller) DisposeAll() {
	c.mu.Lock()
	ops := make([]*inflight, 0, len(c.ops))
	for _, op := range c.ops {
		ops = append(ops, op)
	}
	c.ops = make(map[string]*inflight)
	c.mu.Unlock()

	for _, op := range ops {
		if op.abort != nil {
			op.abort()
		}
	}
}
