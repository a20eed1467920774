// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wire decodes the streamed generation wire format.
//
// The backend streams a chunked text body that is nominally
// text/event-stream shaped but tolerated as raw text. Interleaved with the
// visible response text the stream may carry:
//
//   - SSE framing noise: comment lines (":"), "event:", "id:" and "retry:"
//     field lines, and "data:"-wrapped content lines
//   - A stop sentinel line acknowledging server-side cancellation
//   - A delimited run-metadata block ([[RUNJSON]] ... [[/RUNJSON]])
//     containing one JSON object of generation statistics
//
// Decode is idempotent over the growing raw buffer, not chunk-local: a
// metadata block or protocol line may straddle chunk boundaries, so every
// pass re-derives the clean text from the entire buffer received so far and
// reports only the newly revealed suffix as the delta.
package wire
