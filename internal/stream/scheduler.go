// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the client-side generation lifecycle.
package stream

import (
	"log"
	"sync"

	"github.com/jeranaias/loomchat/internal/model"
)

// =============================================================================
// QUEUE ITEM
// =============================================================================

// QueueItem is one queued generation request for a session. Created once
// per send, consumed exactly once by the Scheduler, never mutated after
// enqueue.
type QueueItem struct {
	SessionID          string
	Prompt             string
	AssistantMessageID string
	Attachments        []model.Attachment
}

// JobRunner executes one generation job. A returned error is swallowed at
// the scheduler boundary (logged only); the runner is responsible for its
// own error handling toward the UI.
type JobRunner func(item QueueItem) error

// =============================================================================
// PER-SESSION SCHEDULER
// =============================================================================

// Scheduler is a FIFO job queue keyed by session id. It guarantees at most
// one in-flight generation per session and serializes same-session sends;
// independent sessions run fully concurrently with no global cap.
//
// The scheduler is an owned instance, not module state: its lifecycle is
// tied to the Controller that constructed it.
type Scheduler struct {
	mu     sync.Mutex
	slots  map[string]*sessionSlot
	runner JobRunner
	logf   func(format string, args ...any)
}

// sessionSlot tracks one session's queue. Lazily created on first enqueue
// and deleted when the queue drains and nothing is running, keeping
// steady-state memory bounded by active sessions only.
type sessionSlot struct {
	running bool
	queue   []QueueItem
}

// NewScheduler creates a scheduler that executes jobs with runner.
func NewScheduler(runner JobRunner) *Scheduler {
	return &Scheduler{
		slots:  make(map[string]*sessionSlot),
		runner: runner,
		logf:   log.Printf,
	}
}

// Enqueue appends a job to its session's queue and triggers a pump for
// that session only.
func (s *Scheduler) Enqueue(item QueueItem) {
	s.mu.Lock()
	slot, ok := s.slots[item.SessionID]
	if !ok {
		slot = &sessionSlot{}
		s.slots[item.SessionID] = slot
	}
	slot.queue = append(slot.queue, item)
	s.mu.Unlock()

	s.pump(item.SessionID)
}

// IsActive reports whether the session has a running job or queued work.
func (s *Scheduler) IsActive(sid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[sid]
	return ok && (slot.running || len(slot.queue) > 0)
}

// DropQueued clears queued-but-not-yet-started jobs for the session. A
// currently running job is never interrupted by this call; cancelling an
// in-flight job is the Canceller's responsibility.
func (s *Scheduler) DropQueued(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[sid]
	if !ok {
		return
	}
	slot.queue = nil
	if !slot.running {
		delete(s.slots, sid)
	}
}

// pump starts the next job for a session if none is running. Redundant
// triggers are harmless no-ops.
func (s *Scheduler) pump(sid string) {
	s.mu.Lock()
	slot, ok := s.slots[sid]
	if !ok || slot.running {
		s.mu.Unlock()
		return
	}
	if len(slot.queue) == 0 {
		delete(s.slots, sid)
		s.mu.Unlock()
		return
	}

	item := slot.queue[0]
	slot.queue = slot.queue[1:]
	slot.running = true
	s.mu.Unlock()

	go s.execute(item)
}

// execute runs one job and advances the session's queue when it resolves.
func (s *Scheduler) execute(item QueueItem) {
	if err := s.runner(item); err != nil {
		s.logf("stream: job for session %s failed: %v", item.SessionID, err)
	}

	s.mu.Lock()
	slot, ok := s.slots[item.SessionID]
	if ok {
		slot.running = false
		if len(slot.queue) == 0 {
			delete(s.slots, item.SessionID)
		}
	}
	s.mu.Unlock()

	if ok {
		s.pump(item.SessionID)
	}
}
