/*
Package core runs validation batches: it fans targets out to a sharded
worker pool, gives every task fault isolation, and gathers the resulting
report rows.
*/
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

import "errors"

// customError is an error type that includes a retryable flag, letting
// submitters distinguish transient backpressure from terminal failures.
type customError struct {
	message   string
	retryable bool
}

// NewError creates a new customError with the given message and
// retryable status.
func NewError(msg string, retryable bool) error {
	return &customError{
		message:   msg,
		retryable: retryable,
	}
}

// Error implements the standard error interface.
func (e *customError) Error() string {
	return e.message
}

// IsRetryable returns true if the error is designated as retryable.
func (e *customError) IsRetryable() bool {
	return e.retryable
}

// IsRetryable reports whether err is, or wraps, a retryable
// *customError. A nil or foreign error is treated as non-retryable.
func IsRetryable(err error) bool {
	var e *customError
	if errors.As(err, &e) {
		return e.IsRetryable()
	}
	return false
}

var (
	// ErrQueueFull indicates a worker queue at capacity; the submission
	// can be retried after the queue drains.
	ErrQueueFull = NewError("queue full", true)
	// ErrSchedulerShutdown indicates the pool no longer accepts work.
	ErrSchedulerShutdown = NewError("scheduler shutdown", false)
)
