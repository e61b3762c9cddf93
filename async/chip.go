// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

package async

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	gpiolib "github.com/warthog618/go-gpiolib"
)

// AsyncChip reads info change events from a chip without blocking on the
// chip fd.
type AsyncChip struct {
	chip *gpiolib.Chip
	rd   Readiness

	mu   sync.Mutex
	done bool
}

// NewAsyncChip registers the chip with the reactor.
//
// The AsyncChip takes ownership of the chip.  Closing the AsyncChip closes
// the chip, unless the chip is first detached with Release.
func NewAsyncChip(c *gpiolib.Chip, r Reactor) (*AsyncChip, error) {
	rd, err := r.Register(c.Fd())
	if err != nil {
		return nil, err
	}
	return &AsyncChip{chip: c, rd: rd}, nil
}

// Chip returns the underlying chip, which remains owned by the AsyncChip.
func (ac *AsyncChip) Chip() *gpiolib.Chip {
	return ac.chip
}

// Close removes the chip from the reactor and closes the chip.
func (ac *AsyncChip) Close() error {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if ac.done {
		return gpiolib.ErrClosed
	}
	ac.done = true
	err := ac.unregister()
	if cerr := ac.chip.Close(); err == nil {
		err = cerr
	}
	return err
}

// Release removes the chip from the reactor and returns it, open, to the
// caller, who then owns it.
func (ac *AsyncChip) Release() (*gpiolib.Chip, error) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if ac.done {
		return nil, gpiolib.ErrClosed
	}
	ac.done = true
	return ac.chip, ac.unregister()
}

// unregister removes the chip from the reactor, which may already have
// been closed.
func (ac *AsyncChip) unregister() error {
	if err := ac.rd.Close(); !errors.Is(err, gpiolib.ErrClosed) {
		return err
	}
	return nil
}

// ReadLineInfoChangeEvent waits for and reads a single info change event.
func (ac *AsyncChip) ReadLineInfoChangeEvent(ctx context.Context) (gpiolib.InfoChangeEvent, error) {
	return readWhenReady(ctx, ac.rd,
		ac.chip.HasLineInfoChangeEvent,
		ac.chip.ReadLineInfoChangeEvent)
}

// InfoChangeEvents returns a stream of the info change events from the chip.
//
// The stream ends when the context is done or a read fails.
func (ac *AsyncChip) InfoChangeEvents(ctx context.Context) *InfoChangeStream {
	ch := make(chan gpiolib.InfoChangeEvent)
	s := &InfoChangeStream{C: ch}
	go func() {
		defer close(ch)
		for {
			evt, err := ac.ReadLineInfoChangeEvent(ctx)
			if err != nil {
				s.err = err
				return
			}
			select {
			case ch <- evt:
			case <-ctx.Done():
				s.err = ctx.Err()
				return
			}
		}
	}()
	return s
}

// InfoChangeStream is a stream of info change events.
type InfoChangeStream struct {
	// C delivers the events, and is closed when the stream ends.
	C <-chan gpiolib.InfoChangeEvent

	err error
}

// Err returns the reason the stream ended.
//
// Only valid after C is closed.
func (s *InfoChangeStream) Err() error {
	return s.err
}
