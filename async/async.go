// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

// Package async adapts chips and requests to reactor driven applications.
//
// The package is independent of any particular reactor.  A reactor provides
// a [Readiness] for each registered file descriptor, and the adapters use it
// to wait until an event is available before reading, so a read never blocks
// the calling goroutine indefinitely.  Waits are cancelled through their
// context.
//
// The epoll and poller subpackages provide reactors.
package async

import (
	"context"
)

// Readiness tracks the readable state of a file descriptor registered with a
// reactor.
type Readiness interface {
	// WaitReadable blocks until the fd is considered readable, or the context
	// is done.
	WaitReadable(ctx context.Context) error

	// ClearReady marks the fd as drained, so the next WaitReadable blocks
	// until the reactor observes new data.
	ClearReady()

	// Close removes the fd from the reactor.  It does not close the fd.
	Close() error
}

// Reactor registers file descriptors for readiness notification.
type Reactor interface {
	Register(fd uintptr) (Readiness, error)
}

// readWhenReady waits for the fd to be readable, performs a single read, and
// clears the readiness once the fd is drained.
func readWhenReady[T any](ctx context.Context, rd Readiness, has func() (bool, error), read func() (T, error)) (T, error) {
	var zero T
	for {
		if err := rd.WaitReadable(ctx); err != nil {
			return zero, err
		}
		ok, err := has()
		if err != nil {
			return zero, err
		}
		if !ok {
			// spurious wakeup
			rd.ClearReady()
			continue
		}
		v, err := read()
		if more, herr := has(); herr == nil && !more {
			rd.ClearReady()
		}
		return v, err
	}
}
