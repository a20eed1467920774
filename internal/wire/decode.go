// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wire decodes the streamed generation wire format.
package wire

import (
	"strings"
)

// =============================================================================
// STOP SENTINEL
// =============================================================================

// StopSentinel is the line the backend emits to acknowledge a server-side
// cancellation. It is stripped from the visible text.
const StopSentinel = "🛑 stopped"

// =============================================================================
// DECODE RESULT
// =============================================================================

// Decoded is the result of one decode pass over the accumulated raw buffer.
type Decoded struct {
	// Clean is the user-visible text derived from the whole raw buffer
	Clean string

	// Delta is the suffix of Clean beyond the previous clean text. Callers
	// must pass the exact Clean they received back as the next call's
	// prevClean, or deltas will be wrong.
	Delta string

	// Meta is the parsed run metadata, when a complete block was present
	Meta Extracted
}

// =============================================================================
// DECODING
// =============================================================================

// Decode converts the entire raw text received so far into clean visible
// text plus the newly revealed delta.
//
// Processing order is fixed: strip a trailing stop sentinel line, strip
// transport framing noise, then extract the run-metadata block. The
// function is pure: no network or timer side effects.
//
// Decode holds back a trailing fragment that could be the start of a
// metadata block, a sentinel, an SSE field line, or boundary newlines, so
// that clean text never shrinks between passes. Flush performs the same
// decode without holdback and must be used for the final pass at end of
// stream.
func Decode(prevClean, rawSoFar string) Decoded {
	return decode(prevClean, rawSoFar, false)
}

// Flush decodes the raw buffer without holding back a trailing fragment.
// Call once the stream has completed and no further bytes can arrive.
func Flush(prevClean, rawSoFar string) Decoded {
	return decode(prevClean, rawSoFar, true)
}

func decode(prevClean, rawSoFar string, flush bool) Decoded {
	text := stripStopSentinel(rawSoFar)
	text = stripTransportNoise(text)

	ex := ExtractRunMeta(text)
	clean := ex.Clean
	if !flush {
		clean = holdbackTail(clean)
	}
	// Boundary newlines are never shown, streamed or flushed; a delta once
	// emitted without them cannot grow them back.
	clean = strings.TrimRight(clean, "\n")

	out := Decoded{Clean: clean, Meta: ex}
	if len(clean) > len(prevClean) && strings.HasPrefix(clean, prevClean) {
		out.Delta = clean[len(prevClean):]
	}
	return out
}

// =============================================================================
// SENTINEL STRIPPING
// =============================================================================

// stripStopSentinel removes a stop sentinel line anchored at the end of the
// buffer, along with its surrounding newlines, leaving no residual blank
// line at the very end.
func stripStopSentinel(raw string) string {
	trimmed := strings.TrimRight(raw, "\n")
	if !strings.HasSuffix(trimmed, StopSentinel) {
		return raw
	}

	head := strings.TrimSuffix(trimmed, StopSentinel)
	// The sentinel must sit on its own line.
	if head != "" && !strings.HasSuffix(head, "\n") {
		return raw
	}
	return strings.TrimRight(head, "\n")
}

// =============================================================================
// TRANSPORT NOISE
// =============================================================================

// stripTransportNoise removes SSE framing from the buffer: comment lines,
// event/id/retry field lines, and the "data:" prefix on content lines.
// Anything else passes through untouched, so a raw text stream works too.
func stripTransportNoise(text string) string {
	if !strings.ContainsAny(text, ":") {
		return text
	}

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, ":"):
			// SSE comment line
		case strings.HasPrefix(line, "event:"),
			strings.HasPrefix(line, "id:"),
			strings.HasPrefix(line, "retry:"):
			// SSE field lines carry no visible content
		case strings.HasPrefix(line, "data:"):
			payload := strings.TrimPrefix(line, "data:")
			payload = strings.TrimPrefix(payload, " ")
			kept = append(kept, payload)
		default:
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// =============================================================================
// HOLDBACK
// =============================================================================

// guardTokens are strings whose partial arrival at the end of the buffer
// must not leak into deltas: once completed they would be stripped, and a
// delta can never be taken back.
var guardTokens = []string{StartMarker, StopSentinel}

// sseFieldTokens are the line prefixes stripTransportNoise removes or
// unwraps once the line is complete. A trailing line that is still a
// partial prefix of one must be held back for the same reason.
var sseFieldTokens = []string{"event:", "id:", "retry:", "data:"}

// holdbackTail trims a trailing fragment that may still turn into a guard
// token or an SSE field line, plus the boundary newlines that would be
// eaten with it.
func holdbackTail(clean string) string {
	c := clean
	for _, g := range guardTokens {
		max := len(g) - 1
		if max > len(c) {
			max = len(c)
		}
		for n := max; n > 0; n-- {
			if strings.HasSuffix(c, g[:n]) {
				c = c[:len(c)-n]
				break
			}
		}
	}

	tail := c
	if i := strings.LastIndexByte(c, '\n'); i >= 0 {
		tail = c[i+1:]
	}
	if tail != "" {
		for _, tok := range sseFieldTokens {
			if len(tail) < len(tok) && strings.HasPrefix(tok, tail) {
				c = c[:len(c)-len(tail)]
				break
			}
		}
	}
	return c
}
