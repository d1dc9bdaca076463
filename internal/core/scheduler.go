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
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/zeebo/xxh3"
	"golang.org/x/time/rate"

	"adscheck/internal/adstxt"
	"adscheck/internal/metrics"
)

// Task is one unit of work: check every reference against one target.
// Tasks are pooled via sync.Pool to reduce allocations on large batches.
type Task struct {
	// Target is the operator-supplied target. It doubles as the shard
	// key, so repeated targets land on the same worker and reuse its
	// keep-alive connections.
	Target string
	// Ctx bounds the task's network work.
	Ctx context.Context
	// Run produces the report rows for Target. It must not panic for
	// expected failures; a panic is treated as a task fault and becomes
	// a single System Error row.
	Run func(t *Task) []adstxt.Outcome
}

// Scheduler manages a pool of worker goroutines and dispatches Tasks to
// them by hashing the target. Every task is fault-isolated: a panicking
// task produces one System Error row and the batch continues.
type Scheduler struct {
	numWorkers int
	workers    []*worker
	ctx        context.Context
	cancel     context.CancelFunc
	// done is the workers' stop signal, closed only by Shutdown. Workers
	// deliberately do not watch task contexts for exit: a canceled batch
	// must still drain its queues so every submitted task is accounted
	// for and Wait returns.
	done       chan struct{}
	shutdown   atomic.Bool
	taskPool   sync.Pool
	activeWork sync.WaitGroup

	// sink receives each task's rows. It is called concurrently from
	// worker goroutines and must be safe for that.
	sink func([]adstxt.Outcome)
}

// worker encapsulates a single worker goroutine and its state.
type worker struct {
	id        int
	label     string // preformatted id for metric labels
	queue     chan *Task
	scheduler *Scheduler
	limiter   *rate.Limiter
}

// NewScheduler creates and starts a pool of numWorkers workers feeding
// sink. numWorkers is clamped to [1, MaxWorkers].
func NewScheduler(parentCtx context.Context, numWorkers int, sink func([]adstxt.Outcome)) *Scheduler {
	if numWorkers <= 0 {
		numWorkers = DefaultWorkers
	}
	if numWorkers > MaxWorkers {
		numWorkers = MaxWorkers
	}

	sctx, cancel := context.WithCancel(parentCtx)

	s := &Scheduler{
		numWorkers: numWorkers,
		workers:    make([]*worker, numWorkers),
		ctx:        sctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		taskPool: sync.Pool{
			New: func() interface{} {
				return &Task{}
			},
		},
		sink: sink,
	}

	for i := 0; i < numWorkers; i++ {
		w := &worker{
			id:        i,
			label:     strconv.Itoa(i),
			queue:     make(chan *Task, ShardQueueSize),
			scheduler: s,
			limiter:   rate.NewLimiter(rate.Limit(WorkerRateLimit), ShardQueueSize),
		}
		s.workers[i] = w
		go w.run()
	}

	log.Printf("Scheduler initialized with %d workers.", numWorkers)
	return s
}

// run is the main processing loop for a single worker goroutine. Every
// task pulled off the queue releases activeWork exactly once, whether it
// runs, faults, or is aborted, so Wait cannot strand on queued tasks.
func (w *worker) run() {
	m := metrics.GetMetrics()
	for {
		select {
		case <-w.scheduler.done:
			w.drain()
			return
		case task := <-w.queue:
			if task == nil {
				continue
			}

			// A canceled batch skips straight to the abort row instead
			// of burning a network attempt per queued task.
			if task.Ctx != nil && task.Ctx.Err() != nil {
				w.abort(task, task.Ctx.Err())
				continue
			}

			// Pace task starts; a canceled context just lets the task
			// fall through to its own ctx checks.
			_ = w.limiter.Wait(task.Ctx)

			if metrics.IsMetricsEnabled() {
				m.WorkerBusy.WithLabelValues(w.label).Set(1)
				m.UpdateQueueMetrics(w.label, len(w.queue), cap(w.queue))
			}

			w.execute(task, m)

			if metrics.IsMetricsEnabled() {
				m.WorkerBusy.WithLabelValues(w.label).Set(0)
				m.WorkerProcessed.WithLabelValues(w.label).Inc()
			}

			task.Run = nil
			task.Target = ""
			task.Ctx = nil
			w.scheduler.taskPool.Put(task)
		}
	}
}

// execute runs one task under panic isolation. Whatever happens, exactly
// one sink call is made and activeWork is released.
func (w *worker) execute(task *Task, m *metrics.Metrics) {
	defer w.scheduler.activeWork.Done()

	target := task.Target
	var rows []adstxt.Outcome
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Panic recovered in worker %d processing target %s: %v", w.id, target, r)
				if metrics.IsMetricsEnabled() {
					m.WorkerPanics.WithLabelValues(w.label).Inc()
					m.TargetsTotal.WithLabelValues("system_error").Inc()
				}
				rows = []adstxt.Outcome{SystemErrorOutcome(target, r)}
			}
		}()
		rows = task.Run(task)
	}()

	w.scheduler.sink(rows)
}

// drain empties the worker's queue after Shutdown, aborting every task
// still waiting so the batch's accounting closes out.
func (w *worker) drain() {
	for {
		select {
		case task := <-w.queue:
			if task != nil {
				w.abort(task, ErrSchedulerShutdown)
			}
		default:
			return
		}
	}
}

// abort reports a task that will not run as a single System Error row
// and returns it to the pool.
func (w *worker) abort(task *Task, cause error) {
	w.scheduler.sink([]adstxt.Outcome{SystemErrorOutcome(task.Target, cause)})
	if metrics.IsMetricsEnabled() {
		metrics.GetMetrics().TargetsTotal.WithLabelValues("aborted").Inc()
	}
	w.scheduler.release(task)
}

// SystemErrorOutcome builds the single row reported for a task that
// failed with an unexpected fault.
func SystemErrorOutcome(target string, fault interface{}) adstxt.Outcome {
	return adstxt.Outcome{
		URL:       target,
		File:      "-",
		Result:    adstxt.ResultSystemError,
		Details:   fmt.Sprintf("Unexpected fault: %v", fault),
		Reference: "-",
	}
}

// Submit routes a task to its shard's worker, blocking while that
// worker's queue is full. Blocking submission is the batch's
// backpressure: at most workers*ShardQueueSize tasks are in flight.
func (s *Scheduler) Submit(ctx context.Context, target string, run func(t *Task) []adstxt.Outcome) error {
	if s.shutdown.Load() {
		return ErrSchedulerShutdown
	}

	w := s.shardFor(target)
	task := s.newTask(ctx, target, run)
	s.activeWork.Add(1)

	select {
	case w.queue <- task:
		return nil
	case <-ctx.Done():
		s.release(task)
		return ctx.Err()
	case <-s.ctx.Done():
		s.release(task)
		return ErrSchedulerShutdown
	}
}

// TrySubmit is the non-blocking variant of Submit. A full shard queue
// yields ErrQueueFull, which is retryable once the queue drains.
func (s *Scheduler) TrySubmit(ctx context.Context, target string, run func(t *Task) []adstxt.Outcome) error {
	if s.shutdown.Load() {
		return ErrSchedulerShutdown
	}

	w := s.shardFor(target)
	task := s.newTask(ctx, target, run)
	s.activeWork.Add(1)

	select {
	case w.queue <- task:
		return nil
	default:
		s.release(task)
		if metrics.IsMetricsEnabled() {
			metrics.GetMetrics().QueueBackpressureHit.WithLabelValues(w.label).Inc()
		}
		return fmt.Errorf("worker %d for target %s: %w", w.id, target, ErrQueueFull)
	}
}

func (s *Scheduler) shardFor(target string) *worker {
	return s.workers[int(xxh3.HashString(target)%uint64(s.numWorkers))]
}

func (s *Scheduler) newTask(ctx context.Context, target string, run func(t *Task) []adstxt.Outcome) *Task {
	task := s.taskPool.Get().(*Task)
	task.Target = target
	task.Ctx = ctx
	task.Run = run
	return task
}

func (s *Scheduler) release(task *Task) {
	s.activeWork.Done()
	task.Run = nil
	task.Target = ""
	task.Ctx = nil
	s.taskPool.Put(task)
}

// Wait blocks until all submitted tasks have been processed.
func (s *Scheduler) Wait() {
	s.activeWork.Wait()
}

// Shutdown signals all workers to stop. Tasks still queued are aborted
// with a System Error row rather than run; use Wait first for a
// graceful drain.
func (s *Scheduler) Shutdown() {
	if s.shutdown.CompareAndSwap(false, true) {
		s.cancel()
		close(s.done)
	}
}
