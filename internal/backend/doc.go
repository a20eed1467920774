// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the locally-spawned
// inference backend.
//
// The backend is an external collaborator: this package only knows it as a
// local HTTP endpoint that accepts a streaming generate request and a
// best-effort cancel request. Process supervision, port discovery, and
// provisioning live outside this program.
//
// # Endpoints
//
//   - POST <base>/ai/generate/stream: streaming generation body; honors
//     request-context cancellation
//   - POST <base>/ai/cancel/{sessionId}: fire-and-forget cancellation
//   - GET  <base>/: health probe
package backend
