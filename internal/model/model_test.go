// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
package model

import (
	"encoding/json"
	"testing"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("Hello", nil)

	if msg.Role != RoleUser {
		t.Errorf("Role = %q, want 'user'", msg.Role)
	}

	if msg.Text != "Hello" {
		t.Errorf("Text = %q, want 'Hello'", msg.Text)
	}

	if msg.ID == "" {
		t.Error("ID should be generated")
	}

	if msg.ServerID != 0 {
		t.Errorf("ServerID = %d, want 0 before persistence", msg.ServerID)
	}
}

func TestNewAssistantPlaceholder(t *testing.T) {
	msg := NewAssistantPlaceholder()

	if msg.Role != RoleAssistant {
		t.Errorf("Role = %q, want 'assistant'", msg.Role)
	}

	if msg.Text != "" {
		t.Errorf("Text = %q, want empty", msg.Text)
	}

	if !msg.IsStreaming() {
		t.Error("placeholder should report streaming until finalized")
	}
}

func TestMessageIDsAreUnique(t *testing.T) {
	a := NewUserMessage("a", nil)
	b := NewUserMessage("b", nil)

	if a.ID == b.ID {
		t.Errorf("IDs should be unique, both were %q", a.ID)
	}
}

func TestIsEmpty(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		attachments []Attachment
		want        bool
	}{
		{"empty", "", nil, true},
		{"whitespace only", "   \n\t", nil, true},
		{"has text", "hi", nil, false},
		{"attachment only", "", []Attachment{{Name: "a.txt"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NewUserMessage(tt.text, tt.attachments)
			if got := msg.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// RUN METADATA TESTS
// =============================================================================

func TestRunMetaUnmarshalTypedCore(t *testing.T) {
	raw := `{"stats":{"stopReason":"eos","tokensPerSecond":12.5,"predictedTokensCount":2}}`

	var meta RunMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if meta.Stats == nil {
		t.Fatal("Stats should be populated")
	}

	if meta.Stats.StopReason != "eos" {
		t.Errorf("StopReason = %q, want 'eos'", meta.Stats.StopReason)
	}

	if meta.Stats.TokensPerSecond != 12.5 {
		t.Errorf("TokensPerSecond = %v, want 12.5", meta.Stats.TokensPerSecond)
	}
}

func TestRunMetaExtraPassthrough(t *testing.T) {
	raw := `{"stats":{"stopReason":"eos"},"retrieval":{"hits":3},"webSearch":{"queries":["go"]}}`

	var meta RunMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if len(meta.Extra) != 2 {
		t.Fatalf("Extra has %d fields, want 2", len(meta.Extra))
	}

	out, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var roundTrip map[string]json.RawMessage
	if err := json.Unmarshal(out, &roundTrip); err != nil {
		t.Fatalf("round-trip Unmarshal failed: %v", err)
	}

	for _, key := range []string{"stats", "retrieval", "webSearch"} {
		if _, ok := roundTrip[key]; !ok {
			t.Errorf("round-trip output missing %q", key)
		}
	}
}

func TestFlatten(t *testing.T) {
	meta := &RunMeta{Stats: &RunStats{
		StopReason:           "eos",
		TokensPerSecond:      42.0,
		PredictedTokensCount: 128,
		PromptTokensCount:    64,
		TimeToFirstTokenSec:  0.25,
	}}

	flat := Flatten(meta)
	if flat == nil {
		t.Fatal("Flatten returned nil for populated stats")
	}

	if flat.StopReason != "eos" {
		t.Errorf("StopReason = %q, want 'eos'", flat.StopReason)
	}

	if flat.OutputTokens != 128 {
		t.Errorf("OutputTokens = %d, want 128", flat.OutputTokens)
	}

	if flat.TTFTMs != 250 {
		t.Errorf("TTFTMs = %d, want 250", flat.TTFTMs)
	}
}

func TestFlattenClampsNegativeTTFT(t *testing.T) {
	meta := &RunMeta{Stats: &RunStats{TimeToFirstTokenSec: -1.5}}

	flat := Flatten(meta)
	if flat == nil {
		t.Fatal("Flatten returned nil")
	}

	if flat.TTFTMs != 0 {
		t.Errorf("TTFTMs = %d, want 0 (clamped)", flat.TTFTMs)
	}
}

func TestFlattenNilCases(t *testing.T) {
	if Flatten(nil) != nil {
		t.Error("Flatten(nil) should be nil")
	}

	if Flatten(&RunMeta{}) != nil {
		t.Error("Flatten without stats should be nil")
	}
}

func TestSynthesizeCancelMeta(t *testing.T) {
	meta := SynthesizeCancelMeta("user_cancelled")

	if meta.Stats == nil || meta.Stats.StopReason != "user_cancelled" {
		t.Errorf("synthesized stop reason = %+v, want 'user_cancelled'", meta.Stats)
	}

	flat := Flatten(meta)
	if flat == nil || flat.StopReason != "user_cancelled" {
		t.Errorf("flattened synthesized metrics = %+v", flat)
	}
}
