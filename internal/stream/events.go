// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the client-side generation lifecycle.
package stream

import (
	"github.com/jeranaias/loomchat/internal/model"
)

// =============================================================================
// READER EVENTS
// =============================================================================

// EventKind enumerates the closed set of events a ReaderLoop emits.
type EventKind int

const (
	// EventDelta carries newly revealed visible text
	EventDelta EventKind = iota

	// EventMetrics carries a parsed run-metadata envelope
	EventMetrics

	// EventCancelTimeout fires when a cancellation's grace period elapsed
	// (or the stream drained) without real metadata arriving
	EventCancelTimeout

	// EventDone marks natural completion of the stream
	EventDone
)

// String returns a short name for the event kind.
func (k EventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventMetrics:
		return "metrics"
	case EventCancelTimeout:
		return "cancel-timeout"
	case EventDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event is one message from the ReaderLoop to its consumer. Fields are
// populated per kind; Clean always carries the accumulated clean text at
// the time the event was produced.
type Event struct {
	Kind EventKind

	// Delta is the newly revealed text (EventDelta)
	Delta string

	// Clean is the accumulated clean text so far
	Clean string

	// Meta and Flat carry parsed metadata (EventMetrics)
	Meta *model.RunMeta
	Flat *model.GenMetrics
}
