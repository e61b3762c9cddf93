// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

package gpiolib

import (
	"fmt"
	"time"
)

// EdgeEventBuffer reads edge events from a request in bulk and returns them
// one at a time, reducing the number of reads required when events arrive
// in bursts.
//
// An EdgeEventBuffer is not safe for concurrent use.
type EdgeEventBuffer struct {
	req       *Request
	eventSize int

	// filled and read are byte offsets into buf.
	filled int
	read   int
	buf    []byte
}

func newEdgeEventBuffer(req *Request, eventSize, capacity int) *EdgeEventBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &EdgeEventBuffer{
		req:       req,
		eventSize: eventSize,
		buf:       make([]byte, capacity*eventSize),
	}
}

// Capacity returns the number of events the buffer can hold.
func (eb *EdgeEventBuffer) Capacity() int {
	return len(eb.buf) / eb.eventSize
}

// Len returns the number of events held in the buffer.
func (eb *EdgeEventBuffer) Len() int {
	return (eb.filled - eb.read) / eb.eventSize
}

// IsEmpty returns true if the buffer holds no events.
func (eb *EdgeEventBuffer) IsEmpty() bool {
	return eb.read >= eb.filled
}

// HasEvent returns true if an event is available from either the buffer or
// the request without blocking.
func (eb *EdgeEventBuffer) HasEvent() (bool, error) {
	if eb.read < eb.filled {
		return true, nil
	}
	return eb.req.HasEdgeEvent()
}

// ReadEvent returns the next event, reading from the request if the buffer
// is empty.
//
// Blocks until an event is available.  Panics if the kernel returns no data
// or a partial event.
func (eb *EdgeEventBuffer) ReadEvent() (EdgeEvent, error) {
	if eb.read < eb.filled {
		end := eb.read + eb.eventSize
		evt := eb.buf[eb.read:end]
		eb.read = end
		return eb.req.EdgeEventFromSlice(evt)
	}
	eb.read = 0
	eb.filled = 0
	n, err := eb.req.ReadEdgeEventsIntoSlice(eb.buf)
	if err != nil {
		return EdgeEvent{}, err
	}
	if n == 0 || n%eb.eventSize != 0 {
		panic(fmt.Sprintf("read %d bytes of %d byte edge events", n, eb.eventSize))
	}
	eb.filled = n
	eb.read = eb.eventSize
	return eb.req.EdgeEventFromSlice(eb.buf[:eb.eventSize])
}

// WaitEvent waits up to the timeout for an event and returns it.
//
// Buffered events are returned immediately.  Returns ErrTimeout if no event
// arrives within the timeout.
func (eb *EdgeEventBuffer) WaitEvent(timeout time.Duration) (EdgeEvent, error) {
	if eb.read >= eb.filled {
		ok, err := eb.req.WaitEdgeEvent(timeout)
		if err != nil {
			return EdgeEvent{}, err
		}
		if !ok {
			return EdgeEvent{}, ErrTimeout
		}
	}
	return eb.ReadEvent()
}

// Next returns the next event, blocking until one is available.
//
// The sequence of events never ends, so Next only returns an error if the
// read fails.
func (eb *EdgeEventBuffer) Next() (EdgeEvent, error) {
	return eb.ReadEvent()
}
