// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics records per-session generation metrics for display.
//
// The recorder keeps a bounded history of flattened run metrics per
// session plus running totals, and formats the most recent run for the
// status bar.
package metrics
