// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// The view owns a stream.Controller; controller hooks write into a shared
// session state from background goroutines, and the Bubble Tea loop picks
// the changes up through a capped-rate render gate so streaming stays
// smooth without redrawing on every token.
package chat
