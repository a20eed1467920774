// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// Attachment describes a file attached to a user message.
// Attachments are immutable once the message is sent.
type Attachment struct {
	// Name is the display name of the attachment
	Name string `json:"name"`

	// Source records where the attachment came from (e.g., a local path)
	Source string `json:"source,omitempty"`
}

// =============================================================================
// MESSAGE META
// =============================================================================

// MessageMeta holds the last-known run metadata for an assistant message.
// Both fields are nullable and overwritten whole, never merged field by
// field, except by the explicit cancellation fallback synthesis.
type MessageMeta struct {
	// RunJSON is the parsed metadata envelope from the stream
	RunJSON *RunMeta `json:"run_json,omitempty"`

	// Flat is the flattened metrics view derived from RunJSON
	Flat *GenMetrics `json:"flat,omitempty"`
}

// =============================================================================
// CHAT MESSAGE
// =============================================================================

// ChatMessage represents a single message in a chat session.
//
// A message is inserted optimistically at send time with a client-generated
// ID. The server-assigned ID is patched in place once persistence resolves;
// the message object identity never changes.
type ChatMessage struct {
	// ID is the client-generated identifier, assigned at optimistic-insert
	// time and stable thereafter
	ID string `json:"id"`

	// ServerID is the persisted-message identifier. Zero until the
	// persistence call resolves, then patched in place.
	ServerID int64 `json:"server_id,omitempty"`

	// Role is the sender of the message
	Role Role `json:"role"`

	// Text is the accumulated visible text. For an in-flight assistant
	// message it grows monotonically via deltas until finalized.
	Text string `json:"text"`

	// Attachments is the ordered list of attachments, immutable once sent
	Attachments []Attachment `json:"attachments,omitempty"`

	// Meta holds the last-known parsed run metadata
	Meta *MessageMeta `json:"meta,omitempty"`

	// Finalized marks the terminal state of an assistant message.
	// A finalized message is never reopened for further deltas.
	Finalized bool `json:"-"`

	// Timestamp is when the message was created locally
	Timestamp time.Time `json:"timestamp"`
}

// NewUserMessage creates an optimistic user message with a fresh client ID.
func NewUserMessage(text string, attachments []Attachment) ChatMessage {
	return ChatMessage{
		ID:          uuid.NewString(),
		Role:        RoleUser,
		Text:        text,
		Attachments: attachments,
		Timestamp:   time.Now(),
	}
}

// NewAssistantPlaceholder creates an empty assistant message ready to
// receive streamed deltas.
func NewAssistantPlaceholder() ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Timestamp: time.Now(),
	}
}

// IsEmpty reports whether the message carries no content at all.
func (m ChatMessage) IsEmpty() bool {
	return strings.TrimSpace(m.Text) == "" && len(m.Attachments) == 0
}

// IsStreaming reports whether an assistant message is still receiving
// deltas.
func (m ChatMessage) IsStreaming() bool {
	return m.Role == RoleAssistant && !m.Finalized
}
