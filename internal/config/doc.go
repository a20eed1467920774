// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for loomchat.
//
// Configuration lives in ~/.loomchat/config.toml with sensible defaults,
// LOOMCHAT_* environment variable overrides, and validation with clamping.
// A file watcher supports hot reload of the config while the client runs.
package config
