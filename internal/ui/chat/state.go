// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	"github.com/jeranaias/loomchat/internal/model"
)

// =============================================================================
// SESSION STATE
// =============================================================================

// SessionState is the message state shared between the controller's
// background goroutines and the Bubble Tea loop. All mutation goes through
// Apply's read-modify-write updater; readers get copies.
type SessionState struct {
	mu       sync.RWMutex
	messages map[string][]model.ChatMessage
	loading  map[string]bool
	queued   map[string]bool
	version  uint64
}

// NewSessionState creates an empty session state.
func NewSessionState() *SessionState {
	return &SessionState{
		messages: make(map[string][]model.ChatMessage),
		loading:  make(map[string]bool),
		queued:   make(map[string]bool),
	}
}

// Apply replaces a session's message list through an updater over the
// previous list. This is the controller's ApplyMessages hook.
func (s *SessionState) Apply(sid string, update func([]model.ChatMessage) []model.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[sid] = update(s.messages[sid])
	s.version++
}

// SetMessages replaces a session's message list wholesale (history load).
func (s *SessionState) SetMessages(sid string, msgs []model.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[sid] = msgs
	s.version++
}

// Messages returns a copy of a session's message list.
func (s *SessionState) Messages(sid string) []model.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ChatMessage, len(s.messages[sid]))
	copy(out, s.messages[sid])
	return out
}

// SetLoading flips the session's streaming flag.
func (s *SessionState) SetLoading(sid string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading[sid] = loading
	s.version++
}

// SetQueued flips the session's queued flag.
func (s *SessionState) SetQueued(sid string, queued bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued[sid] = queued
	s.version++
}

// IsLoading reports whether a generation is streaming for the session.
func (s *SessionState) IsLoading(sid string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading[sid]
}

// IsQueued reports whether a send is waiting to start for the session.
func (s *SessionState) IsQueued(sid string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queued[sid]
}

// Version returns a counter bumped on every mutation. The render loop
// compares versions to skip redraws when nothing changed.
func (s *SessionState) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
