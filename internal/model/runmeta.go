// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
package model

import (
	"encoding/json"
)

// =============================================================================
// RUN METADATA ENVELOPE
// =============================================================================

// RunMeta is the generation-statistics envelope the backend embeds in-band
// at the end of a streamed response.
//
// Only the stats core is strongly typed; everything else (retrieval,
// web-search, and context-packing telemetry) is an open-ended bag that is
// passed through unmodified so a newer backend can add sections without
// breaking older clients.
type RunMeta struct {
	// Stats is the recognized metrics substructure
	Stats *RunStats

	// Extra holds all top-level fields other than stats, verbatim
	Extra map[string]json.RawMessage
}

// RunStats is the typed core of the metadata envelope. Field names follow
// the wire format emitted by the backend.
type RunStats struct {
	StopReason           string  `json:"stopReason,omitempty"`
	TokensPerSecond      float64 `json:"tokensPerSecond,omitempty"`
	PredictedTokensCount int     `json:"predictedTokensCount,omitempty"`
	PromptTokensCount    int     `json:"promptTokensCount,omitempty"`
	TimeToFirstTokenSec  float64 `json:"timeToFirstTokenSec,omitempty"`
}

// UnmarshalJSON decodes the envelope, typing only the stats section and
// keeping every other top-level field as raw JSON.
func (r *RunMeta) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if raw, ok := fields["stats"]; ok {
		var stats RunStats
		if err := json.Unmarshal(raw, &stats); err != nil {
			return err
		}
		r.Stats = &stats
		delete(fields, "stats")
	}

	if len(fields) > 0 {
		r.Extra = fields
	}
	return nil
}

// MarshalJSON re-assembles the envelope, merging the typed stats core back
// with the opaque extension fields.
func (r RunMeta) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(r.Extra)+1)
	for k, v := range r.Extra {
		fields[k] = v
	}
	if r.Stats != nil {
		raw, err := json.Marshal(r.Stats)
		if err != nil {
			return nil, err
		}
		fields["stats"] = raw
	}
	return json.Marshal(fields)
}

// =============================================================================
// FLATTENED METRICS
// =============================================================================

// GenMetrics is the flattened metrics record derived from RunMeta for cheap
// display in the status bar and per-session metric sinks.
type GenMetrics struct {
	StopReason      string  `json:"stop_reason"`
	TokensPerSecond float64 `json:"tokens_per_second"`
	OutputTokens    int     `json:"output_tokens"`
	PromptTokens    int     `json:"prompt_tokens"`
	TTFTMs          int64   `json:"ttft_ms"`
}

// Flatten derives a GenMetrics record from a metadata envelope.
// Returns nil when the envelope has no recognized stats substructure.
// Time-to-first-token is normalized to milliseconds and clamped to >= 0.
func Flatten(meta *RunMeta) *GenMetrics {
	if meta == nil || meta.Stats == nil {
		return nil
	}

	ttft := int64(meta.Stats.TimeToFirstTokenSec * 1000)
	if ttft < 0 {
		ttft = 0
	}

	return &GenMetrics{
		StopReason:      meta.Stats.StopReason,
		TokensPerSecond: meta.Stats.TokensPerSecond,
		OutputTokens:    meta.Stats.PredictedTokensCount,
		PromptTokens:    meta.Stats.PromptTokensCount,
		TTFTMs:          ttft,
	}
}

// SynthesizeCancelMeta fabricates a minimal metadata envelope for a
// cancellation that produced no server metadata, so downstream UI never
// shows an indefinitely streaming bubble.
func SynthesizeCancelMeta(reason string) *RunMeta {
	return &RunMeta{Stats: &RunStats{StopReason: reason}}
}
