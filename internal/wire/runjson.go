// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wire decodes the streamed generation wire format.
package wire

import (
	"encoding/json"
	"strings"

	"github.com/jeranaias/loomchat/internal/model"
)

// =============================================================================
// RUN METADATA MARKERS
// =============================================================================

const (
	// StartMarker opens a run-metadata block. Exact token, on its own line.
	StartMarker = "[[RUNJSON]]"

	// EndMarker closes a run-metadata block. Exact token, on its own line.
	EndMarker = "[[/RUNJSON]]"
)

// =============================================================================
// EXTRACTION
// =============================================================================

// Extracted is the result of pulling run metadata out of a text buffer.
type Extracted struct {
	// Clean is the input with every metadata block (delimiters and
	// surrounding blank lines included) removed
	Clean string

	// Meta is the parsed envelope of the last block, nil when no block was
	// found or the last block's payload failed to parse
	Meta *model.RunMeta

	// Flat is the flattened metrics view, nil unless Meta carries a
	// recognized stats substructure
	Flat *model.GenMetrics
}

// ExtractRunMeta finds delimited metadata blocks embedded in text.
//
// A stream may emit an interim block and then a final, more complete one;
// only the last occurrence is honored. Every block is excised from Clean
// regardless of whether its payload parses, so corrupt metadata never leaks
// into visible chat text. An unterminated block (start marker with no end
// marker yet) is also excluded from Clean: its remainder may still be in
// flight.
func ExtractRunMeta(text string) Extracted {
	var (
		segments    []string
		lastPayload string
		found       bool
	)

	rest := text
	for {
		s := strings.Index(rest, StartMarker)
		if s < 0 {
			segments = append(segments, rest)
			break
		}

		bodyStart := s + len(StartMarker)
		e := strings.Index(rest[bodyStart:], EndMarker)
		if e < 0 {
			// Block straddles a chunk boundary; hold it back entirely.
			segments = append(segments, rest[:s])
			break
		}

		segments = append(segments, rest[:s])
		lastPayload = rest[bodyStart : bodyStart+e]
		found = true
		rest = rest[bodyStart+e+len(EndMarker):]
	}

	out := Extracted{Clean: joinSegments(segments)}
	if !found {
		return out
	}

	var meta model.RunMeta
	if err := json.Unmarshal([]byte(strings.TrimSpace(lastPayload)), &meta); err != nil {
		// Corrupt payload: block is stripped, metadata simply omitted.
		return out
	}

	out.Meta = &meta
	out.Flat = model.Flatten(&meta)
	return out
}

// joinSegments concatenates the text around excised blocks, eating the
// newline glue so no stray blank line is left at the block boundary.
func joinSegments(segments []string) string {
	var parts []string
	for i, seg := range segments {
		if i > 0 {
			seg = strings.TrimLeft(seg, "\n")
		}
		if i < len(segments)-1 {
			seg = strings.TrimRight(seg, "\n")
		}
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, "\n")
}

// =============================================================================
// PERSISTED FORM
// =============================================================================

// EmbedRunMeta renders the persisted text format for an assistant turn:
// the final text followed by the metadata block in the documented wire
// format. When meta is nil the text is returned unchanged.
func EmbedRunMeta(text string, meta *model.RunMeta) string {
	if meta == nil {
		return text
	}

	raw, err := json.Marshal(meta)
	if err != nil {
		return text
	}

	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n")
	b.WriteString(StartMarker)
	b.WriteString("\n")
	b.Write(raw)
	b.WriteString("\n")
	b.WriteString(EndMarker)
	b.WriteString("\n")
	return b.String()
}
