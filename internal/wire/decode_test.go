// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wire decodes the streamed generation wire format.
package wire

import (
	"strings"
	"testing"
)

// =============================================================================
// DELTA TESTS
// =============================================================================

// Concatenating all deltas from a chunk sequence must equal the final clean
// text, with no chunk skipped or reordered.
func TestDeltaMonotonicity(t *testing.T) {
	chunks := []string{"Hel", "lo", " wor", "ld\nsecond", " line"}

	var raw strings.Builder
	var prev string
	var joined strings.Builder

	for _, c := range chunks {
		raw.WriteString(c)
		d := Decode(prev, raw.String())
		joined.WriteString(d.Delta)
		prev = d.Clean
	}

	final := Flush(prev, raw.String())
	joined.WriteString(final.Delta)

	if joined.String() != final.Clean {
		t.Errorf("concatenated deltas = %q, final clean = %q", joined.String(), final.Clean)
	}

	if final.Clean != "Hello world\nsecond line" {
		t.Errorf("final clean = %q", final.Clean)
	}
}

// Replaying the same buffer with the clean text passed back must yield an
// empty delta.
func TestDeltaIdempotentReplay(t *testing.T) {
	raw := "some streamed text"

	first := Decode("", raw)
	second := Decode(first.Clean, raw)

	if second.Delta != "" {
		t.Errorf("replay delta = %q, want empty", second.Delta)
	}

	if second.Clean != first.Clean {
		t.Errorf("replay clean = %q, want %q", second.Clean, first.Clean)
	}
}

// A metadata block that straddles chunk boundaries must never leak marker
// fragments into any delta.
func TestDeltaHoldsBackStraddlingBlock(t *testing.T) {
	full := "Hi there\n[[RUNJSON]]\n{\"stats\":{\"stopReason\":\"eos\"}}\n[[/RUNJSON]]\n"

	var prev string
	var joined strings.Builder
	for i := 1; i <= len(full); i++ {
		d := Decode(prev, full[:i])
		joined.WriteString(d.Delta)
		prev = d.Clean
	}

	final := Flush(prev, full)
	joined.WriteString(final.Delta)

	if joined.String() != final.Clean {
		t.Errorf("deltas %q != final clean %q", joined.String(), final.Clean)
	}

	if strings.Contains(joined.String(), "[[") {
		t.Errorf("marker fragment leaked into deltas: %q", joined.String())
	}

	if final.Clean != "Hi there" {
		t.Errorf("final clean = %q, want 'Hi there'", final.Clean)
	}

	if final.Meta.Meta == nil || final.Meta.Meta.Stats.StopReason != "eos" {
		t.Errorf("metadata not extracted: %+v", final.Meta.Meta)
	}
}

// =============================================================================
// SENTINEL TESTS
// =============================================================================

func TestStopSentinelStripped(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"own line with trailing newline", "partial answer\n🛑 stopped\n", "partial answer"},
		{"no trailing newline", "partial answer\n🛑 stopped", "partial answer"},
		{"extra blank lines", "partial answer\n\n🛑 stopped\n\n", "partial answer"},
		{"sentinel only", "🛑 stopped\n", ""},
		{"not at end is kept", "🛑 stopped\nmore text", "🛑 stopped\nmore text"},
		{"mid-line is kept", "he just 🛑 stopped", "he just 🛑 stopped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Flush("", tt.raw)
			if d.Clean != tt.want {
				t.Errorf("Clean = %q, want %q", d.Clean, tt.want)
			}
		})
	}
}

// The flush pass must agree with what streaming deltas promised: a
// blockless stream ending in a newline yields no trailing blank and no
// spurious final delta.
func TestFlushTrimsTrailingNewline(t *testing.T) {
	first := Decode("", "one\n")
	if first.Clean != "one" {
		t.Errorf("streamed Clean = %q, want 'one'", first.Clean)
	}

	final := Flush(first.Clean, "one\n")
	if final.Clean != "one" {
		t.Errorf("flushed Clean = %q, want 'one'", final.Clean)
	}
	if final.Delta != "" {
		t.Errorf("flushed Delta = %q, want empty", final.Delta)
	}

	if d := Flush("", "a\n\n"); d.Clean != "a" {
		t.Errorf("Clean = %q, want 'a'", d.Clean)
	}
}

// An SSE field line split across a chunk boundary must never leak its
// first bytes into a delta: once emitted, a delta cannot be taken back.
func TestDeltaHoldsBackPartialFieldLine(t *testing.T) {
	chunks := []string{"Hello\nev", "ent: token\ndata: hi"}

	var raw strings.Builder
	var prev string
	var joined strings.Builder
	for _, c := range chunks {
		raw.WriteString(c)
		d := Decode(prev, raw.String())
		if !strings.HasPrefix(d.Clean, prev) {
			t.Errorf("clean text shrank: %q then %q", prev, d.Clean)
		}
		joined.WriteString(d.Delta)
		prev = d.Clean
	}

	final := Flush(prev, raw.String())
	joined.WriteString(final.Delta)

	if final.Clean != "Hello\nhi" {
		t.Errorf("final clean = %q, want %q", final.Clean, "Hello\nhi")
	}
	if joined.String() != final.Clean {
		t.Errorf("concatenated deltas = %q, final clean = %q", joined.String(), final.Clean)
	}
}

// =============================================================================
// TRANSPORT NOISE TESTS
// =============================================================================

func TestTransportNoiseStripped(t *testing.T) {
	raw := ": keepalive\n" +
		"event: token\n" +
		"id: 42\n" +
		"retry: 1000\n" +
		"data: Hello\n" +
		"data:world\n" +
		"plain tail"

	d := Flush("", raw)

	if d.Clean != "Hello\nworld\nplain tail" {
		t.Errorf("Clean = %q", d.Clean)
	}
}

func TestRawTextPassesThrough(t *testing.T) {
	raw := "no framing here\njust text"

	d := Flush("", raw)
	if d.Clean != raw {
		t.Errorf("Clean = %q, want input unchanged", d.Clean)
	}
}

// =============================================================================
// PROCESSING ORDER TESTS
// =============================================================================

// Sentinel stripping runs before framing and metadata extraction: a stream
// that was cancelled server-side still yields its final metadata block.
func TestSentinelThenMetadata(t *testing.T) {
	raw := "partial\n[[RUNJSON]]\n{\"stats\":{\"stopReason\":\"user_cancelled\"}}\n[[/RUNJSON]]\n🛑 stopped\n"

	d := Flush("", raw)

	if d.Clean != "partial" {
		t.Errorf("Clean = %q, want 'partial'", d.Clean)
	}

	if d.Meta.Meta == nil || d.Meta.Meta.Stats.StopReason != "user_cancelled" {
		t.Errorf("metadata lost: %+v", d.Meta.Meta)
	}
}
