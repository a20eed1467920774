// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSchedulerSerializesSameSession(t *testing.T) {
	var mu sync.Mutex
	inFlight := map[string]int{}
	maxInFlight := map[string]int{}
	var order []string

	var wg sync.WaitGroup
	runner := func(item QueueItem) error {
		defer wg.Done()
		mu.Lock()
		inFlight[item.SessionID]++
		if inFlight[item.SessionID] > maxInFlight[item.SessionID] {
			maxInFlight[item.SessionID] = inFlight[item.SessionID]
		}
		order = append(order, item.Prompt)
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight[item.SessionID]--
		mu.Unlock()
		return nil
	}

	s := NewScheduler(runner)
	wg.Add(3)
	s.Enqueue(QueueItem{SessionID: "s1", Prompt: "first"})
	s.Enqueue(QueueItem{SessionID: "s1", Prompt: "second"})
	s.Enqueue(QueueItem{SessionID: "s1", Prompt: "third"})
	wg.Wait()

	if maxInFlight["s1"] != 1 {
		t.Errorf("max in-flight for one session = %d, want 1", maxInFlight["s1"])
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"first", "second", "third"}
	for i, p := range want {
		if order[i] != p {
			t.Fatalf("execution order = %v, want %v", order, want)
		}
	}
}

func TestSchedulerSessionsRunConcurrently(t *testing.T) {
	// Each job waits for the other session's job to start. If sessions
	// were serialized against each other this would time out.
	started := make(chan string, 2)
	release := make(chan struct{})

	var wg sync.WaitGroup
	runner := func(item QueueItem) error {
		defer wg.Done()
		started <- item.SessionID
		<-release
		return nil
	}

	s := NewScheduler(runner)
	wg.Add(2)
	s.Enqueue(QueueItem{SessionID: "a"})
	s.Enqueue(QueueItem{SessionID: "b"})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case sid := <-started:
			seen[sid] = true
		case <-time.After(2 * time.Second):
			t.Fatal("sessions did not run concurrently")
		}
	}
	close(release)
	wg.Wait()

	if !seen["a"] || !seen["b"] {
		t.Errorf("started sessions = %v", seen)
	}
}

func TestSchedulerIsActive(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	s := NewScheduler(func(item QueueItem) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	})

	if s.IsActive("s1") {
		t.Error("IsActive() true before any enqueue")
	}

	s.Enqueue(QueueItem{SessionID: "s1"})
	<-started
	if !s.IsActive("s1") {
		t.Error("IsActive() false while job running")
	}
	if s.IsActive("other") {
		t.Error("IsActive() true for unrelated session")
	}

	close(release)
	waitInactive(t, s, "s1")
}

func TestSchedulerDropQueued(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	var mu sync.Mutex
	var ran []string

	s := NewScheduler(func(item QueueItem) error {
		mu.Lock()
		ran = append(ran, item.Prompt)
		mu.Unlock()
		if item.Prompt == "running" {
			close(started)
			<-release
		}
		return nil
	})

	s.Enqueue(QueueItem{SessionID: "s1", Prompt: "running"})
	<-started
	s.Enqueue(QueueItem{SessionID: "s1", Prompt: "queued-1"})
	s.Enqueue(QueueItem{SessionID: "s1", Prompt: "queued-2"})

	// Dropping must clear pending work without touching the running job.
	s.DropQueued("s1")
	if !s.IsActive("s1") {
		t.Error("running job dropped by DropQueued")
	}

	close(release)
	waitInactive(t, s, "s1")

	mu.Lock()
	defer mu.Unlock()
	if len(ran) != 1 || ran[0] != "running" {
		t.Errorf("executed jobs = %v, want only the running one", ran)
	}
}

func TestSchedulerSlotRemovedOnDrain(t *testing.T) {
	s := NewScheduler(func(QueueItem) error { return nil })

	s.Enqueue(QueueItem{SessionID: "s1"})
	waitInactive(t, s, "s1")

	s.mu.Lock()
	_, exists := s.slots["s1"]
	s.mu.Unlock()
	if exists {
		t.Error("drained session slot not deleted")
	}
}

func TestSchedulerRunnerErrorDoesNotStall(t *testing.T) {
	var mu sync.Mutex
	var ran []string

	var wg sync.WaitGroup
	s := NewScheduler(func(item QueueItem) error {
		defer wg.Done()
		mu.Lock()
		ran = append(ran, item.Prompt)
		mu.Unlock()
		if item.Prompt == "boom" {
			return errors.New("job failed")
		}
		return nil
	})
	s.logf = func(string, ...any) {} // keep test output clean

	wg.Add(2)
	s.Enqueue(QueueItem{SessionID: "s1", Prompt: "boom"})
	s.Enqueue(QueueItem{SessionID: "s1", Prompt: "after"})
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(ran) != 2 || ran[1] != "after" {
		t.Errorf("executed jobs = %v, want the queue to advance past the failure", ran)
	}
}

func waitInactive(t *testing.T, s *Scheduler, sid string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !s.IsActive(sid) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s still active", sid)
}
