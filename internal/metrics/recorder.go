// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/loomchat/internal/model"
	"github.com/jeranaias/loomchat/internal/util"
)

// =============================================================================
// RECORDER
// =============================================================================

// maxHistoryPerSession bounds the per-session run history ring.
const maxHistoryPerSession = 50

// Run is one recorded generation.
type Run struct {
	At   time.Time
	Flat model.GenMetrics
}

// Totals aggregates a session's recorded runs.
type Totals struct {
	Runs         int
	OutputTokens int
	PromptTokens int
	// AvgTokensPerSecond averages over runs that reported a rate.
	AvgTokensPerSecond float64
}

// Recorder keeps bounded per-session generation metrics.
// Safe for concurrent use.
type Recorder struct {
	mu       sync.RWMutex
	sessions map[string]*sessionRuns
}

type sessionRuns struct {
	history []Run // ring, newest last
	totals  Totals
	rateSum float64
	rated   int
}

// NewRecorder creates an empty metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{sessions: make(map[string]*sessionRuns)}
}

// Record stores one run's flattened metrics for a session. A nil flat
// record is ignored; the raw envelope is accepted for interface
// compatibility but only the flat view is kept.
func (r *Recorder) Record(sessionID string, flat *model.GenMetrics, meta *model.RunMeta) {
	if flat == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.sessions[sessionID]
	if s == nil {
		s = &sessionRuns{}
		r.sessions[sessionID] = s
	}

	s.history = append(s.history, Run{At: time.Now(), Flat: *flat})
	if len(s.history) > maxHistoryPerSession {
		s.history = s.history[len(s.history)-maxHistoryPerSession:]
	}

	s.totals.Runs++
	s.totals.OutputTokens += flat.OutputTokens
	s.totals.PromptTokens += flat.PromptTokens
	if flat.TokensPerSecond > 0 {
		s.rateSum += flat.TokensPerSecond
		s.rated++
		s.totals.AvgTokensPerSecond = s.rateSum / float64(s.rated)
	}
}

// Last returns the most recent run for a session, or nil when none
// has been recorded.
func (r *Recorder) Last(sessionID string) *model.GenMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.sessions[sessionID]
	if s == nil || len(s.history) == 0 {
		return nil
	}
	flat := s.history[len(s.history)-1].Flat
	return &flat
}

// History returns a copy of a session's recorded runs, oldest first.
func (r *Recorder) History(sessionID string) []Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.sessions[sessionID]
	if s == nil {
		return nil
	}
	out := make([]Run, len(s.history))
	copy(out, s.history)
	return out
}

// SessionTotals returns aggregate counters for a session.
func (r *Recorder) SessionTotals(sessionID string) Totals {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s := r.sessions[sessionID]; s != nil {
		return s.totals
	}
	return Totals{}
}

// Forget drops all recorded metrics for a session.
func (r *Recorder) Forget(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// =============================================================================
// FORMATTING
// =============================================================================

// Format renders a flat metrics record as a short status-bar string,
// e.g. "42.5 tok/s · 320 tok · TTFT 118ms". Empty when m is nil.
func Format(m *model.GenMetrics) string {
	if m == nil {
		return ""
	}

	var parts []string
	if m.TokensPerSecond > 0 {
		parts = append(parts, util.FloatToString(m.TokensPerSecond)+" tok/s")
	}
	if m.OutputTokens > 0 {
		parts = append(parts, util.IntToString(m.OutputTokens)+" tok")
	}
	if m.TTFTMs > 0 {
		parts = append(parts, "TTFT "+util.Int64ToString(m.TTFTMs)+"ms")
	}
	if m.StopReason != "" && m.StopReason != "eosFound" {
		parts = append(parts, m.StopReason)
	}
	return strings.Join(parts, " · ")
}

// FormatLast renders the most recent run for a session.
func (r *Recorder) FormatLast(sessionID string) string {
	return Format(r.Last(sessionID))
}
