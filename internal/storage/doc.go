// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides chat and message persistence for loomchat.
//
// Chats and messages are stored in a local SQLite database (pure-Go
// driver). Persistence exists for durability and history; the live
// conversation's source of truth is the in-memory session state, so
// callers treat write failures as non-fatal.
package storage
