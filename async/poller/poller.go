// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

// Package poller provides a minimal reactor for the async package that polls
// each fd independently.
//
// It needs no background goroutine, so suits applications that only wait on
// a handful of fds.
package poller

import (
	"context"
	"os"
	"sync"
	"time"

	gpiolib "github.com/warthog618/go-gpiolib"
	"github.com/warthog618/go-gpiolib/async"
	"golang.org/x/sys/unix"
)

// pollSlice bounds each poll so cancellation of the context is observed.
const pollSlice = 50 * time.Millisecond

// Reactor registers fds for polling.
type Reactor struct{}

// Register returns a Readiness that polls the fd.
func (Reactor) Register(fd uintptr) (async.Readiness, error) {
	return New(fd), nil
}

// Poller waits for a single fd to become readable.
type Poller struct {
	fd int

	mu     sync.Mutex
	closed bool
}

// New creates a Poller for the fd.
func New(fd uintptr) *Poller {
	return &Poller{fd: int(fd)}
}

// WaitReadable blocks until the fd is readable, the context is done, or the
// Poller is closed.
func (p *Poller) WaitReadable(ctx context.Context) error {
	pfd := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}
	for {
		if p.isClosed() {
			return gpiolib.ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := unix.Poll(pfd, int(pollSlice.Milliseconds()))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return os.NewSyscallError("poll", err)
		}
		if n > 0 {
			if pfd[0].Revents&unix.POLLNVAL != 0 {
				return gpiolib.ErrClosed
			}
			return nil
		}
	}
}

// ClearReady is a no-op as readiness is always polled.
func (p *Poller) ClearReady() {}

// Close causes subsequent waits to fail.  The fd is not closed.
func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return gpiolib.ErrClosed
	}
	p.closed = true
	return nil
}

func (p *Poller) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
