// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
//
// This package defines the core domain types used throughout the application
// for representing chat messages, attachments, and generation statistics.
//
// # Key Types
//
//   - ChatMessage: A single message with a client-generated ID, an optional
//     server-assigned ID, accumulated text, and run metadata
//   - Attachment: An immutable file attachment descriptor
//   - RunMeta: The structured generation-statistics envelope embedded
//     in-band at the end of a streamed response
//   - GenMetrics: A flattened view of RunMeta for cheap display
//   - Role: Message role enumeration (user, assistant)
//
// # Usage
//
// Create an optimistic message pair for a send:
//
//	user := model.NewUserMessage("Hello", nil)
//	asst := model.NewAssistantPlaceholder()
package model
