// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the client-side generation lifecycle.
package stream

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/loomchat/internal/model"
	"github.com/jeranaias/loomchat/internal/wire"
)

// DefaultCancelGrace is the bounded wait after a cancellation request
// during which the loop still accepts a legitimate final metadata block
// before synthesizing one.
const DefaultCancelGrace = 3 * time.Second

// readBufSize is the per-read buffer for the streamed body.
const readBufSize = 4096

// =============================================================================
// READER LOOP
// =============================================================================

// LoopResult is what Run returns once the stream has been drained.
type LoopResult struct {
	// FinalText is the accumulated clean text regardless of outcome
	FinalText string

	// GotMetrics reports whether real run metadata arrived
	GotMetrics bool

	// LastMeta is the last metadata envelope seen, nil when none arrived
	LastMeta *model.RunMeta
}

// ReaderLoop drives a streamed response body to completion, decoding each
// chunk against the accumulated buffer and emitting events for newly
// revealed text and metadata.
//
// Cancellation is not an immediate abort: the loop keeps draining so an
// in-flight final metadata block is not lost. The first cancellation
// notice arms a single grace timer; if it fires before metadata arrives, a
// cancel-timeout event synthesizes the fallback. The fallback is strictly
// idempotent: it fires at most once, and never after real metrics.
type ReaderLoop struct {
	mu sync.Mutex

	grace time.Duration
	emit  func(Event)

	// wasCanceled is polled once per read; NotifyCanceled is the push path
	// for cancellations that land while a read is blocked
	wasCanceled func() bool

	// Accumulation state
	prevClean string

	// Metadata state
	gotMetrics bool
	lastMeta   *model.RunMeta
	metaSeen   string

	// Fallback state
	armed        bool
	fallbackDone bool
	timer        *time.Timer
}

// LoopConfig configures a ReaderLoop.
type LoopConfig struct {
	// Grace is the cancellation grace period (default: DefaultCancelGrace)
	Grace time.Duration

	// WasCanceled reports whether a cancellation has been requested.
	// Polled after every read. Optional.
	WasCanceled func() bool

	// Emit receives the loop's events. Required.
	Emit func(Event)
}

// NewReaderLoop creates a reader loop with the given configuration.
func NewReaderLoop(cfg LoopConfig) *ReaderLoop {
	grace := cfg.Grace
	if grace <= 0 {
		grace = DefaultCancelGrace
	}
	wasCanceled := cfg.WasCanceled
	if wasCanceled == nil {
		wasCanceled = func() bool { return false }
	}
	return &ReaderLoop{
		grace:       grace,
		emit:        cfg.Emit,
		wasCanceled: wasCanceled,
	}
}

// NotifyCanceled arms the grace timer. Safe to call from any goroutine and
// at any time; reentrant calls never re-arm the timer.
func (l *ReaderLoop) NotifyCanceled() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.armLocked()
}

// armLocked starts the grace timer exactly once. Caller holds l.mu.
func (l *ReaderLoop) armLocked() {
	if l.armed {
		return
	}
	l.armed = true
	l.timer = time.AfterFunc(l.grace, l.fireFallback)
}

// fireFallback synthesizes the cancellation fallback. Idempotent: a second
// invocation, or any invocation after real metrics arrived, is a no-op.
func (l *ReaderLoop) fireFallback() {
	l.mu.Lock()
	if l.fallbackDone || l.gotMetrics {
		l.mu.Unlock()
		return
	}
	l.fallbackDone = true
	clean := l.prevClean
	l.mu.Unlock()

	l.emit(Event{Kind: EventCancelTimeout, Clean: clean})
}

// Run drives the reader until it reports end of stream. It returns the
// accumulated final clean text regardless of outcome; a read error returns
// the partial result alongside the error.
func (l *ReaderLoop) Run(r io.Reader) (LoopResult, error) {
	var raw strings.Builder
	buf := make([]byte, readBufSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			raw.Write(buf[:n])
			l.apply(wire.Decode(l.snapshotClean(), raw.String()))
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			l.stopTimer()
			return l.result(), err
		}

		if l.wasCanceled() {
			l.mu.Lock()
			l.armLocked()
			l.mu.Unlock()
		}
	}

	// Final pass without holdback so trailing text is revealed.
	l.apply(wire.Flush(l.snapshotClean(), raw.String()))

	// A cancellation must always produce either real metrics or a
	// synthesized fallback, never neither.
	if l.wasCanceled() {
		l.fireFallback()
	}
	l.stopTimer()

	res := l.result()
	l.emit(Event{Kind: EventDone, Clean: res.FinalText})
	return res, nil
}

// apply folds one decode pass into the loop state, emitting delta and
// metrics events as needed.
func (l *ReaderLoop) apply(d wire.Decoded) {
	l.mu.Lock()
	l.prevClean = d.Clean
	clean := d.Clean

	var metricsEvent *Event
	if d.Meta.Meta != nil {
		// Re-decoding the grown buffer re-extracts the same block; only a
		// new or changed payload is worth announcing.
		encoded, err := json.Marshal(d.Meta.Meta)
		if err == nil && string(encoded) != l.metaSeen {
			l.metaSeen = string(encoded)
			l.gotMetrics = true
			l.lastMeta = d.Meta.Meta
			metricsEvent = &Event{
				Kind:  EventMetrics,
				Clean: clean,
				Meta:  d.Meta.Meta,
				Flat:  d.Meta.Flat,
			}
		}
	}
	l.mu.Unlock()

	if d.Delta != "" {
		l.emit(Event{Kind: EventDelta, Delta: d.Delta, Clean: clean})
	}
	if metricsEvent != nil {
		l.emit(*metricsEvent)
	}
}

// snapshotClean returns the clean text seen so far.
func (l *ReaderLoop) snapshotClean() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.prevClean
}

// stopTimer clears a pending grace timer.
func (l *ReaderLoop) stopTimer() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

// result assembles the loop result under the lock.
func (l *ReaderLoop) result() LoopResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LoopResult{
		FinalText:  l.prevClean,
		GotMetrics: l.gotMetrics,
		LastMeta:   l.lastMeta,
	}
}
