package core

/*
adscheck — ads.txt / app-ads.txt validation tool in Go
Copyright (C) 2026  adscheck authors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"adscheck/internal/adstxt"
)

// collector is a concurrency-safe sink for scheduler tests.
type collector struct {
	mu   sync.Mutex
	rows []adstxt.Outcome
}

func (c *collector) sink(rows []adstxt.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, rows...)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rows)
}

func okRow(target string) []adstxt.Outcome {
	return []adstxt.Outcome{{URL: target, File: adstxt.FileAds, Result: adstxt.ResultValid}}
}

func TestSchedulerProcessesAllTasks(t *testing.T) {
	t.Parallel()

	var c collector
	s := NewScheduler(context.Background(), 4, c.sink)
	defer s.Shutdown()

	const n = 50
	for i := 0; i < n; i++ {
		target := fmt.Sprintf("site-%d.example", i)
		if err := s.Submit(context.Background(), target, func(task *Task) []adstxt.Outcome {
			return okRow(task.Target)
		}); err != nil {
			t.Fatalf("Submit(%s): %v", target, err)
		}
	}
	s.Wait()

	if got := c.len(); got != n {
		t.Errorf("got %d rows, want %d", got, n)
	}
}

func TestSchedulerPanicIsolation(t *testing.T) {
	t.Parallel()

	var c collector
	s := NewScheduler(context.Background(), 2, c.sink)
	defer s.Shutdown()

	// Interleave panicking tasks with healthy ones; the batch must not
	// lose a single row either way.
	for i := 0; i < 20; i++ {
		target := fmt.Sprintf("site-%d.example", i)
		bad := i%3 == 0
		err := s.Submit(context.Background(), target, func(task *Task) []adstxt.Outcome {
			if bad {
				panic(fmt.Sprintf("nil map write for %s", task.Target))
			}
			return okRow(task.Target)
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	s.Wait()

	if got := c.len(); got != 20 {
		t.Fatalf("got %d rows, want 20", got)
	}

	systemErrors := 0
	for _, row := range c.rows {
		if row.Result == adstxt.ResultSystemError {
			systemErrors++
			if row.Reference != "-" || row.File != "-" {
				t.Errorf("fault row placeholders wrong: %+v", row)
			}
			if !strings.Contains(row.Details, "Unexpected fault") {
				t.Errorf("fault row details = %q", row.Details)
			}
		}
	}
	if systemErrors != 7 { // indices 0,3,6,9,12,15,18
		t.Errorf("got %d fault rows, want 7", systemErrors)
	}
}

func TestSchedulerConcurrencyBound(t *testing.T) {
	t.Parallel()

	const workers = 3
	var c collector
	s := NewScheduler(context.Background(), workers, c.sink)
	defer s.Shutdown()

	var inFlight, peak atomic.Int64
	for i := 0; i < 40; i++ {
		target := fmt.Sprintf("site-%d.example", i)
		err := s.Submit(context.Background(), target, func(task *Task) []adstxt.Outcome {
			cur := inFlight.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			defer inFlight.Add(-1)
			return okRow(task.Target)
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	s.Wait()

	if got := peak.Load(); got > workers {
		t.Errorf("observed %d concurrent tasks, pool size is %d", got, workers)
	}
}

func TestSchedulerShardingIsStable(t *testing.T) {
	t.Parallel()

	s := NewScheduler(context.Background(), 8, func([]adstxt.Outcome) {})
	defer s.Shutdown()

	for _, target := range []string{"example.com", "example.org", "x.test"} {
		first := s.shardFor(target)
		for i := 0; i < 10; i++ {
			if s.shardFor(target) != first {
				t.Fatalf("shard for %q not stable", target)
			}
		}
	}
}

func TestTrySubmitBackpressure(t *testing.T) {
	t.Parallel()

	var c collector
	s := NewScheduler(context.Background(), 1, c.sink)
	defer s.Shutdown()

	release := make(chan struct{})
	blocking := func(task *Task) []adstxt.Outcome {
		<-release
		return okRow(task.Target)
	}

	// One task occupies the worker, ShardQueueSize more fill its queue;
	// the next must bounce with ErrQueueFull.
	submitted := 0
	var err error
	for i := 0; i <= ShardQueueSize+1; i++ {
		err = s.TrySubmit(context.Background(), fmt.Sprintf("site-%d.example", i), blocking)
		if err != nil {
			break
		}
		submitted++
	}
	if err == nil {
		t.Fatal("queue never filled")
	}
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	if !IsRetryable(err) {
		t.Error("queue-full error should be retryable")
	}

	close(release)
	s.Wait()
	if got := c.len(); got != submitted {
		t.Errorf("got %d rows, want %d", got, submitted)
	}
}

func TestSchedulerWaitReturnsAfterCancel(t *testing.T) {
	t.Parallel()

	var c collector
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(ctx, 1, c.sink)
	defer s.Shutdown()

	release := make(chan struct{})
	if err := s.Submit(ctx, "blocked.example", func(task *Task) []adstxt.Outcome {
		<-release
		return okRow(task.Target)
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Fill the lone worker's queue behind the blocked task, then cancel
	// the batch. The queued tasks must still be accounted for or Wait
	// would block forever.
	const queued = 10
	for i := 0; i < queued; i++ {
		err := s.Submit(ctx, fmt.Sprintf("site-%d.example", i), func(task *Task) []adstxt.Outcome {
			return okRow(task.Target)
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	cancel()
	close(release)

	waited := make(chan struct{})
	go func() {
		s.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after cancellation")
	}

	if got := c.len(); got != queued+1 {
		t.Fatalf("got %d rows, want %d", got, queued+1)
	}
	aborted := 0
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, row := range c.rows {
		if row.Result != adstxt.ResultSystemError {
			continue
		}
		aborted++
		if row.File != "-" || row.Reference != "-" {
			t.Errorf("abort row placeholders wrong: %+v", row)
		}
		if !strings.Contains(row.Details, "Unexpected fault") {
			t.Errorf("abort row details = %q", row.Details)
		}
	}
	if aborted != queued {
		t.Errorf("got %d abort rows, want %d", aborted, queued)
	}
}

func TestShutdownDrainsQueuedTasks(t *testing.T) {
	t.Parallel()

	var c collector
	s := NewScheduler(context.Background(), 1, c.sink)

	release := make(chan struct{})
	if err := s.Submit(context.Background(), "blocked.example", func(task *Task) []adstxt.Outcome {
		<-release
		return okRow(task.Target)
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	const queued = 5
	for i := 0; i < queued; i++ {
		err := s.Submit(context.Background(), fmt.Sprintf("site-%d.example", i), func(task *Task) []adstxt.Outcome {
			return okRow(task.Target)
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	// Shutdown races the worker for the remaining queue entries; either
	// way every task must produce exactly one sink call.
	s.Shutdown()
	close(release)

	waited := make(chan struct{})
	go func() {
		s.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after Shutdown")
	}

	if got := c.len(); got != queued+1 {
		t.Errorf("got %d rows, want %d", got, queued+1)
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	t.Parallel()

	s := NewScheduler(context.Background(), 1, func([]adstxt.Outcome) {})
	s.Shutdown()

	err := s.Submit(context.Background(), "example.com", func(task *Task) []adstxt.Outcome {
		return nil
	})
	if !errors.Is(err, ErrSchedulerShutdown) {
		t.Errorf("err = %v, want ErrSchedulerShutdown", err)
	}
	if IsRetryable(err) {
		t.Error("shutdown error must not be retryable")
	}
}
