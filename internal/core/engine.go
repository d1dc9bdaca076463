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
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"

	"adscheck/internal/adstxt"
	"adscheck/internal/client"
	"adscheck/internal/fetch"
	"adscheck/internal/metrics"
)

// Config holds the engine tunables.
type Config struct {
	// Workers is the worker pool size; 0 means DefaultWorkers.
	Workers int
	// Policy decides how type mismatches are classified.
	Policy adstxt.MatchPolicy
	// Files lists the authorization files checked per target; empty
	// means both ads.txt and app-ads.txt.
	Files []string
	// HTTP configures the fetch clients.
	HTTP client.Config
	// DNSPreflight enables the resolver existence check before fetches.
	DNSPreflight bool
	// Jitter bounds the randomized pre-fetch pause; negative disables.
	Jitter time.Duration
}

// Engine runs validation batches. Construct once with NewEngine, then
// Run any number of batches; Engine is safe for concurrent Runs.
type Engine struct {
	cfg     Config
	fetcher *fetch.Fetcher
	files   []string
}

// RunResult is everything a single batch produced.
type RunResult struct {
	// RunID identifies the batch in logs and report filenames.
	// ULIDs sort by creation time, so report directories list runs
	// chronologically.
	RunID string
	// Outcomes holds one row per (target, file, reference) plus one row
	// per target-level fault. Collection order is not significant.
	Outcomes []adstxt.Outcome
	// SkippedReferences are reference lines rejected by the parser,
	// verbatim, reported back to the operator rather than dropped.
	SkippedReferences []string
	// Started and Elapsed time the batch.
	Started time.Time
	Elapsed time.Duration
}

// NewEngine builds an Engine from cfg.
func NewEngine(cfg Config) *Engine {
	files := cfg.Files
	if len(files) == 0 {
		files = []string{adstxt.FileAds, adstxt.FileAppAds}
	}

	opts := []fetch.Option{}
	if cfg.Jitter != 0 {
		j := cfg.Jitter
		if j < 0 {
			j = 0
		}
		opts = append(opts, fetch.WithJitter(j))
	}
	if cfg.DNSPreflight {
		if r, err := fetch.NewResolver(); err != nil {
			log.Printf("engine: DNS preflight disabled: %v", err)
		} else {
			opts = append(opts, fetch.WithResolver(r))
		}
	}

	return &Engine{
		cfg:     cfg,
		fetcher: fetch.New(cfg.HTTP, opts...),
		files:   files,
	}
}

// Run checks every reference line against every target and returns the
// collected outcomes. Individual target failures never abort the batch;
// Run only fails when no usable reference lines exist or ctx is done
// before submission completes.
func (e *Engine) Run(ctx context.Context, targets []string, referenceLines []string) (*RunResult, error) {
	started := time.Now()
	res := &RunResult{
		RunID:   newRunID(started),
		Started: started,
	}

	refs, skipped := adstxt.ParseReferences(referenceLines)
	res.SkippedReferences = skipped
	if len(refs) == 0 {
		return nil, NewError("no usable reference lines", false)
	}
	for _, line := range skipped {
		log.Printf("run %s: skipping malformed reference line: %q", res.RunID, line)
	}

	m := metrics.GetMetrics()
	if metrics.IsMetricsEnabled() {
		m.RunsTotal.Inc()
	}

	var mu sync.Mutex
	sink := func(rows []adstxt.Outcome) {
		if len(rows) == 0 {
			return
		}
		mu.Lock()
		res.Outcomes = append(res.Outcomes, rows...)
		mu.Unlock()
		if metrics.IsMetricsEnabled() {
			for _, row := range rows {
				m.OutcomesTotal.WithLabelValues(string(row.Result)).Inc()
			}
		}
	}

	sched := NewScheduler(ctx, e.cfg.Workers, sink)
	defer sched.Shutdown()

	log.Printf("run %s: checking %d targets against %d references", res.RunID, len(targets), len(refs))

	for _, target := range targets {
		target := target
		err := sched.Submit(ctx, target, func(t *Task) []adstxt.Outcome {
			return e.checkTarget(t.Ctx, t.Target, refs)
		})
		if err != nil {
			// Submission fails only on cancellation or shutdown; the
			// unsubmitted target still gets its row.
			sink([]adstxt.Outcome{SystemErrorOutcome(target, err)})
			if ctx.Err() != nil {
				break
			}
		}
	}

	sched.Wait()

	res.Elapsed = time.Since(started)
	if metrics.IsMetricsEnabled() {
		m.RunDuration.Observe(res.Elapsed.Seconds())
	}
	log.Printf("run %s: %d outcomes in %s", res.RunID, len(res.Outcomes), res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// checkTarget produces all rows for one target: per checked file, either
// one row per reference from matching, or one Error row per reference
// when the fetch failed.
func (e *Engine) checkTarget(ctx context.Context, target string, refs []adstxt.ReferenceTuple) []adstxt.Outcome {
	taskStart := time.Now()
	m := metrics.GetMetrics()

	host := fetch.NormalizeHost(target)
	if host == "" {
		rows := make([]adstxt.Outcome, 0, len(refs))
		for _, ref := range refs {
			rows = append(rows, adstxt.Outcome{
				URL:       target,
				File:      "-",
				Result:    adstxt.ResultError,
				Details:   "Invalid target URL",
				Reference: ref.Original,
			})
		}
		return rows
	}

	var rows []adstxt.Outcome
	failed := false
	for _, file := range e.files {
		stop := metrics.MeasureDuration(m.FetchDuration, prometheus.Labels{"file": file})
		result, err := e.fetcher.Fetch(ctx, host, file)
		stop()

		status := fetch.StatusOK
		if err != nil {
			status = err.Error()
		} else if result.SSLWarning {
			status = result.Status()
		}
		if metrics.IsMetricsEnabled() {
			m.FetchTotal.WithLabelValues(file, status).Inc()
			if result != nil && result.SSLWarning {
				m.SSLDowngradesTotal.Inc()
			}
		}

		if err != nil {
			failed = true
			for _, ref := range refs {
				rows = append(rows, adstxt.Outcome{
					URL:       target,
					File:      file,
					Result:    adstxt.ResultError,
					Details:   err.Error(),
					Reference: ref.Original,
				})
			}
			continue
		}

		records := adstxt.ParseFile(result.Body)
		matched := adstxt.MatchAll(records, refs, target, file, e.cfg.Policy)
		if result.SSLWarning {
			for i := range matched {
				matched[i].Details += " (SSL warning)"
			}
		}
		rows = append(rows, matched...)
	}

	if metrics.IsMetricsEnabled() {
		m.TaskDuration.Observe(time.Since(taskStart).Seconds())
		if failed {
			m.TargetsTotal.WithLabelValues("error").Inc()
		} else {
			m.TargetsTotal.WithLabelValues("ok").Inc()
		}
	}
	return rows
}

// newRunID builds a ULID stamped with the batch start time.
func newRunID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}
