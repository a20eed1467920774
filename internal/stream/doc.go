// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the client-side generation lifecycle for chat
// sessions: turning a single send into a live-updating message, arbitrating
// concurrent sends per session, and cancelling in-flight generations with a
// bounded grace period.
//
// # Components
//
//   - ReaderLoop: drives a streamed response body to completion, decoding
//     chunks into a closed set of events (delta, metrics, cancel-timeout,
//     done)
//   - Scheduler: a FIFO job queue keyed by session id; at most one
//     in-flight generation per session, independent sessions run
//     concurrently
//   - Canceller: maps a stop action to the correct in-flight operation
//   - Controller: the public-facing unit accepting Send / Stop /
//     CancelBySession / Dispose
//
// # Concurrency model
//
// Mutual exclusion per session is achieved structurally by the Scheduler's
// one-job-at-a-time invariant; there are no locks around message state
// beyond the owner's read-modify-write updater. Cancellation is cooperative
// and bounded: the reader keeps draining until the backend closes the
// stream or a grace timer fires, after which a fallback result is
// synthesized exactly once.
package stream
