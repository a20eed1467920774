// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for the loomchat client.
//
// It covers crash-safe file writes, Unicode-aware string truncation, and
// fmt-free number formatting used in hot rendering paths.
package util
