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

// Pool tuning shared across the scheduler and the engine.
const (
	// DefaultWorkers is the pool size when the caller does not choose
	// one. Tasks are I/O bound (two HTTP fetches each), so the default
	// is independent of CPU count.
	DefaultWorkers = 10

	// MaxWorkers is the absolute upper limit on pool size, a safeguard
	// against misconfiguration. Each worker holds at most a handful of
	// connections, but thousands of workers hammering publisher sites
	// helps nobody.
	MaxWorkers = 256

	// ShardQueueSize is the per-worker queue capacity. Submission blocks
	// once a worker's queue is full, which is the backpressure that
	// keeps a batch from ballooning in memory.
	ShardQueueSize = 64

	// WorkerRateLimit caps task starts per worker per second. Combined
	// with the fetcher's own jitter it keeps the pool from bursting a
	// whole queue of requests at the same host group at once.
	WorkerRateLimit = 8
)
