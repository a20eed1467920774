// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// chunkReader yields one scripted chunk per Read call, then EOF.
type chunkReader struct {
	chunks []string
	pos    int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.chunks) {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[r.pos])
	r.pos++
	return n, nil
}

// blockingReader yields chunks from a channel and EOFs when it closes.
type blockingReader struct {
	ch chan string
}

func (r *blockingReader) Read(p []byte) (int, error) {
	s, ok := <-r.ch
	if !ok {
		return 0, io.EOF
	}
	return copy(p, s), nil
}

// eventCollector is a thread-safe event sink.
type eventCollector struct {
	mu     sync.Mutex
	events []Event
}

func (c *eventCollector) emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *eventCollector) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *eventCollector) count(kind EventKind) int {
	n := 0
	for _, ev := range c.snapshot() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (c *eventCollector) waitFor(t *testing.T, kind EventKind, timeout time.Duration) Event {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, ev := range c.snapshot() {
			if ev.Kind == kind {
				return ev
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %v event within %v", kind, timeout)
	return Event{}
}

func TestReaderLoopNaturalCompletion(t *testing.T) {
	col := &eventCollector{}
	loop := NewReaderLoop(LoopConfig{Emit: col.emit})

	r := &chunkReader{chunks: []string{
		"Hello, ",
		"world!\n",
		"[[RUNJSON]]\n{\"stats\":{\"stopReason\":\"eosFound\",\"tokensPerSecond\":12.5}}\n[[/RUNJSON]]\n",
	}}

	res, err := loop.Run(r)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.FinalText != "Hello, world!" {
		t.Errorf("FinalText = %q", res.FinalText)
	}
	if !res.GotMetrics {
		t.Error("GotMetrics = false, want true")
	}
	if res.LastMeta == nil || res.LastMeta.Stats == nil || res.LastMeta.Stats.StopReason != "eosFound" {
		t.Errorf("LastMeta = %+v", res.LastMeta)
	}

	events := col.snapshot()
	if len(events) == 0 || events[len(events)-1].Kind != EventDone {
		t.Fatal("last event must be done")
	}
	if events[len(events)-1].Clean != "Hello, world!" {
		t.Errorf("done event Clean = %q", events[len(events)-1].Clean)
	}

	// Deltas replay the full stream text exactly once.
	var assembled strings.Builder
	prev := ""
	for _, ev := range events {
		if ev.Kind != EventDelta {
			continue
		}
		assembled.WriteString(ev.Delta)
		if !strings.HasPrefix(ev.Clean, prev) {
			t.Errorf("clean text shrank: %q then %q", prev, ev.Clean)
		}
		prev = ev.Clean
	}
	if assembled.String() != "Hello, world!" {
		t.Errorf("assembled deltas = %q", assembled.String())
	}
}

func TestReaderLoopMetricsEmittedOnce(t *testing.T) {
	col := &eventCollector{}
	loop := NewReaderLoop(LoopConfig{Emit: col.emit})

	// The metadata block arrives mid-stream; every later decode pass
	// re-extracts it from the grown buffer.
	r := &chunkReader{chunks: []string{
		"part one\n",
		"[[RUNJSON]]\n{\"stats\":{\"tokensPerSecond\":3}}\n[[/RUNJSON]]\n",
		"part two\n",
		"part three\n",
	}}

	res, err := loop.Run(r)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := col.count(EventMetrics); got != 1 {
		t.Errorf("metrics events = %d, want 1", got)
	}
	if res.FinalText != "part one\npart two\npart three" {
		t.Errorf("FinalText = %q", res.FinalText)
	}
}

func TestReaderLoopSecondMetadataBlockWins(t *testing.T) {
	col := &eventCollector{}
	loop := NewReaderLoop(LoopConfig{Emit: col.emit})

	r := &chunkReader{chunks: []string{
		"text\n",
		"[[RUNJSON]]\n{\"stats\":{\"predictedTokensCount\":5}}\n[[/RUNJSON]]\n",
		"[[RUNJSON]]\n{\"stats\":{\"predictedTokensCount\":11}}\n[[/RUNJSON]]\n",
	}}

	res, err := loop.Run(r)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := col.count(EventMetrics); got != 2 {
		t.Errorf("metrics events = %d, want 2 (payload changed)", got)
	}
	if res.LastMeta.Stats.PredictedTokensCount != 11 {
		t.Errorf("final PredictedTokensCount = %d, want 11", res.LastMeta.Stats.PredictedTokensCount)
	}
}

func TestReaderLoopFieldLineSplitAcrossChunks(t *testing.T) {
	col := &eventCollector{}
	loop := NewReaderLoop(LoopConfig{Emit: col.emit})

	// An SSE field line arrives split across two reads; its first bytes
	// must never surface in a delta or in the done snapshot.
	r := &chunkReader{chunks: []string{
		"Hello\nev",
		"ent: token\ndata: hi",
	}}

	res, err := loop.Run(r)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.FinalText != "Hello\nhi" {
		t.Errorf("FinalText = %q, want %q", res.FinalText, "Hello\nhi")
	}

	events := col.snapshot()
	var assembled strings.Builder
	for _, ev := range events {
		if ev.Kind == EventDelta {
			assembled.WriteString(ev.Delta)
		}
	}
	if assembled.String() != res.FinalText {
		t.Errorf("assembled deltas = %q, FinalText = %q", assembled.String(), res.FinalText)
	}

	done := events[len(events)-1]
	if done.Kind != EventDone || done.Clean != "Hello\nhi" {
		t.Errorf("done event = %+v, want done with Clean %q", done, "Hello\nhi")
	}
}

func TestReaderLoopCancelGraceTimeout(t *testing.T) {
	col := &eventCollector{}
	loop := NewReaderLoop(LoopConfig{
		Grace: 30 * time.Millisecond,
		Emit:  col.emit,
	})

	body := &blockingReader{ch: make(chan string, 4)}
	body.ch <- "partial answer"

	done := make(chan LoopResult, 1)
	go func() {
		res, _ := loop.Run(body)
		done <- res
	}()

	col.waitFor(t, EventDelta, time.Second)

	// Cancellation lands while the read is blocked; the push path must
	// arm the timer without waiting for another chunk.
	loop.NotifyCanceled()

	ev := col.waitFor(t, EventCancelTimeout, time.Second)
	if ev.Clean != "partial answer" {
		t.Errorf("cancel-timeout Clean = %q", ev.Clean)
	}

	// The stream ends later with no metadata; the fallback must not fire
	// again.
	close(body.ch)
	res := <-done

	if res.GotMetrics {
		t.Error("GotMetrics = true for a metadata-less cancel")
	}
	if res.FinalText != "partial answer" {
		t.Errorf("FinalText = %q", res.FinalText)
	}
	if got := col.count(EventCancelTimeout); got != 1 {
		t.Errorf("cancel-timeout events = %d, want exactly 1", got)
	}
}

func TestReaderLoopCancelWithLateMetadata(t *testing.T) {
	col := &eventCollector{}
	loop := NewReaderLoop(LoopConfig{
		Grace: 500 * time.Millisecond,
		Emit:  col.emit,
	})

	body := &blockingReader{ch: make(chan string, 4)}
	body.ch <- "stopping"

	done := make(chan LoopResult, 1)
	go func() {
		res, _ := loop.Run(body)
		done <- res
	}()

	col.waitFor(t, EventDelta, time.Second)
	loop.NotifyCanceled()

	// The server honors the cancel and still delivers real metadata
	// inside the grace window.
	body.ch <- "\n[[RUNJSON]]\n{\"stats\":{\"stopReason\":\"userStopped\"}}\n[[/RUNJSON]]\n"
	col.waitFor(t, EventMetrics, time.Second)
	close(body.ch)

	res := <-done
	if !res.GotMetrics {
		t.Fatal("real metadata not recorded")
	}
	if res.LastMeta.Stats.StopReason != "userStopped" {
		t.Errorf("StopReason = %q", res.LastMeta.Stats.StopReason)
	}
	if got := col.count(EventCancelTimeout); got != 0 {
		t.Errorf("cancel-timeout events = %d, want 0 when metadata arrived", got)
	}
}

func TestReaderLoopCanceledBeforeAnyOutput(t *testing.T) {
	col := &eventCollector{}
	canceled := true
	loop := NewReaderLoop(LoopConfig{
		Grace:       time.Hour, // timer must not be what fires the fallback
		WasCanceled: func() bool { return canceled },
		Emit:        col.emit,
	})

	res, err := loop.Run(&chunkReader{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// EOF with a standing cancellation synthesizes the fallback directly.
	if got := col.count(EventCancelTimeout); got != 1 {
		t.Errorf("cancel-timeout events = %d, want 1", got)
	}
	if res.FinalText != "" {
		t.Errorf("FinalText = %q, want empty", res.FinalText)
	}
}

func TestReaderLoopReadErrorReturnsPartial(t *testing.T) {
	col := &eventCollector{}
	loop := NewReaderLoop(LoopConfig{Emit: col.emit})

	r := io.MultiReader(
		strings.NewReader("some text"),
		&failingReader{},
	)
	res, err := loop.Run(r)
	if err == nil {
		t.Fatal("Run() error = nil, want read error")
	}
	if res.FinalText != "some text" {
		t.Errorf("FinalText = %q", res.FinalText)
	}
	if got := col.count(EventDone); got != 0 {
		t.Errorf("done events = %d, want 0 on read error", got)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}
