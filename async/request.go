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

// AsyncRequest reads edge events from a request without blocking on the
// request fd.
type AsyncRequest struct {
	req *gpiolib.Request
	rd  Readiness

	mu   sync.Mutex
	done bool
}

// NewAsyncRequest registers the request with the reactor.
//
// The AsyncRequest takes ownership of the request.  Closing the
// AsyncRequest releases the lines, unless the request is first detached
// with Release.
func NewAsyncRequest(r *gpiolib.Request, reactor Reactor) (*AsyncRequest, error) {
	rd, err := reactor.Register(r.Fd())
	if err != nil {
		return nil, err
	}
	return &AsyncRequest{req: r, rd: rd}, nil
}

// Request returns the underlying request, which remains owned by the
// AsyncRequest.
func (ar *AsyncRequest) Request() *gpiolib.Request {
	return ar.req
}

// Close removes the request from the reactor and closes the request,
// releasing the lines.
func (ar *AsyncRequest) Close() error {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	if ar.done {
		return gpiolib.ErrClosed
	}
	ar.done = true
	err := ar.unregister()
	if cerr := ar.req.Close(); err == nil {
		err = cerr
	}
	return err
}

// Release removes the request from the reactor and returns it, open, to the
// caller, who then owns it.
func (ar *AsyncRequest) Release() (*gpiolib.Request, error) {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	if ar.done {
		return nil, gpiolib.ErrClosed
	}
	ar.done = true
	return ar.req, ar.unregister()
}

// unregister removes the request from the reactor, which may already have
// been closed.
func (ar *AsyncRequest) unregister() error {
	if err := ar.rd.Close(); !errors.Is(err, gpiolib.ErrClosed) {
		return err
	}
	return nil
}

// ReadEdgeEvent waits for and reads a single edge event.
func (ar *AsyncRequest) ReadEdgeEvent(ctx context.Context) (gpiolib.EdgeEvent, error) {
	return readWhenReady(ctx, ar.rd, ar.req.HasEdgeEvent, ar.req.ReadEdgeEvent)
}

// ReadEdgeEventsIntoSlice waits for edge events and reads as many as fit in
// buf, returning the number of bytes read.
func (ar *AsyncRequest) ReadEdgeEventsIntoSlice(ctx context.Context, buf []byte) (int, error) {
	return readWhenReady(ctx, ar.rd, ar.req.HasEdgeEvent, func() (int, error) {
		return ar.req.ReadEdgeEventsIntoSlice(buf)
	})
}

// EdgeEvents returns a stream of the edge events from the request, buffering
// up to capacity events in user space.
//
// A capacity less than 1 uses the user event buffer size of the request.
// The stream ends when the context is done or a read fails.
func (ar *AsyncRequest) EdgeEvents(ctx context.Context, capacity int) *EdgeEventStream {
	var eb *gpiolib.EdgeEventBuffer
	if capacity < 1 {
		eb = ar.req.EdgeEvents()
	} else {
		eb = ar.req.NewEdgeEventBuffer(capacity)
	}
	ch := make(chan gpiolib.EdgeEvent)
	s := &EdgeEventStream{C: ch}
	go func() {
		defer close(ch)
		for {
			evt, err := ar.nextEvent(ctx, eb)
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

// nextEvent returns any buffered event, else waits for the fd to refill the
// buffer.
func (ar *AsyncRequest) nextEvent(ctx context.Context, eb *gpiolib.EdgeEventBuffer) (gpiolib.EdgeEvent, error) {
	if !eb.IsEmpty() {
		return eb.ReadEvent()
	}
	return readWhenReady(ctx, ar.rd, ar.req.HasEdgeEvent, eb.ReadEvent)
}

// EdgeEventStream is a stream of edge events.
type EdgeEventStream struct {
	// C delivers the events, and is closed when the stream ends.
	C <-chan gpiolib.EdgeEvent

	err error
}

// Err returns the reason the stream ended.
//
// Only valid after C is closed.
func (s *EdgeEventStream) Err() error {
	return s.err
}
