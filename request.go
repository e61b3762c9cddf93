// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

package gpiolib

import (
	"sync"
	"time"

	"github.com/warthog618/go-gpiolib/logging"
	"github.com/warthog618/go-gpiolib/uapi"
	v1 "github.com/warthog618/go-gpiolib/uapi/v1"
	v2 "github.com/warthog618/go-gpiolib/uapi/v2"
	"golang.org/x/sys/unix"
)

// Request provides access to a set of requested lines.
//
// The lines are held until the request is closed.
//
// Once closed, every method that accesses the lines returns ErrClosed.
// Coordinating concurrent use of a Request, such as reading edge events
// from several goroutines, is the responsibility of the caller.
type Request struct {
	fd                  int
	chipPath            string
	offsets             []Offset
	abiv                AbiVersion
	userEventBufferSize int

	// mu covers fd, cfg and closed.
	mu     sync.RWMutex
	cfg    Config
	closed bool
}

// Close releases the requested lines.
func (r *Request) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.closed = true
	fd := r.fd
	r.fd = -1
	logging.Debugf("released lines %v on %s", r.offsets, r.chipPath)
	return unix.Close(fd)
}

// Fd returns the file descriptor of the request, e.g. for registering with
// a reactor.
//
// Returns ^uintptr(0) once the request is closed.
func (r *Request) Fd() uintptr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uintptr(r.fd)
}

// liveFd returns the fd of the request, or ErrClosed if the request has been
// closed, so a closed request never touches an fd number the process has
// since reused.
func (r *Request) liveFd() (uintptr, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return 0, ErrClosed
	}
	return uintptr(r.fd), nil
}

// ChipPath returns the path of the chip the lines were requested from.
func (r *Request) ChipPath() string {
	return r.chipPath
}

// AbiVersion returns the uAPI ABI version used by the request.
func (r *Request) AbiVersion() AbiVersion {
	return r.abiv
}

// Offsets returns the offsets of the requested lines, in ascending order.
func (r *Request) Offsets() []Offset {
	return append([]Offset(nil), r.offsets...)
}

// Config returns a snapshot of the current config of the request.
func (r *Request) Config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.Clone()
}

// LineConfig returns the current config of the line, and false if the line
// is not in the request.
func (r *Request) LineConfig(offset Offset) (LineConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.LineConfig(offset)
}

func (r *Request) index(offset Offset) (int, error) {
	for i, o := range r.offsets {
		if o == offset {
			return i, nil
		}
	}
	return 0, invalidArgumentf("offset %d is not a requested line", offset)
}

// Value returns the value of the line.
func (r *Request) Value(offset Offset) (Value, error) {
	idx, err := r.index(offset)
	if err != nil {
		return Inactive, err
	}
	return r.value(idx)
}

// LoneValue returns the value of the line in a single line request.
func (r *Request) LoneValue() (Value, error) {
	if len(r.offsets) != 1 {
		return Inactive, invalidArgument("request contains multiple lines")
	}
	return r.value(0)
}

func (r *Request) value(idx int) (Value, error) {
	fd, err := r.liveFd()
	if err != nil {
		return Inactive, err
	}
	if r.abiv == AbiV1 {
		var lv v1.LineValues
		if err := v1.GetLineValues(fd, &lv); err != nil {
			return Inactive, newUapiError(UapiGetLineValues, err)
		}
		return Value(lv.Get(idx)), nil
	}
	lv := v2.LineValues{Mask: v2.LineBitmap(0).Set(idx, true)}
	if err := v2.GetLineValues(fd, &lv); err != nil {
		return Inactive, newUapiError(UapiGetLineValues, err)
	}
	if lv.Bits.Get(idx) {
		return Active, nil
	}
	return Inactive, nil
}

// Values reads the values of the lines in values.
//
// If values is empty it is populated with the values of all the requested
// lines.  Lines in values that are not requested are left unchanged.
func (r *Request) Values(values *Values) error {
	fd, err := r.liveFd()
	if err != nil {
		return err
	}
	if r.abiv == AbiV1 {
		var lv v1.LineValues
		if err := v1.GetLineValues(fd, &lv); err != nil {
			return newUapiError(UapiGetLineValues, err)
		}
		values.updateFromV1(r.offsets, &lv)
		return nil
	}
	lv := values.toV2(r.offsets)
	if lv.Mask == 0 {
		return nil
	}
	if err := v2.GetLineValues(fd, &lv); err != nil {
		return newUapiError(UapiGetLineValues, err)
	}
	values.updateFromV2(r.offsets, &lv)
	return nil
}

// SetValue sets the value of an output line.
//
// ABI v1 only supports setting the value of single line requests with this
// method.
func (r *Request) SetValue(offset Offset, value Value) error {
	idx, err := r.index(offset)
	if err != nil {
		return err
	}
	return r.setValue(idx, value)
}

// SetLoneValue sets the value of the output line in a single line request.
func (r *Request) SetLoneValue(value Value) error {
	if len(r.offsets) != 1 {
		return invalidArgument("request contains multiple lines")
	}
	return r.setValue(0, value)
}

func (r *Request) setValue(idx int, value Value) error {
	fd, err := r.liveFd()
	if err != nil {
		return err
	}
	if r.abiv == AbiV1 {
		if len(r.offsets) > 1 {
			return AbiLimitationError{AbiV1, "requires all requested lines"}
		}
		var lv v1.LineValues
		lv.Set(idx, uint8(value))
		if err := v1.SetLineValues(fd, &lv); err != nil {
			return newUapiError(UapiSetLineValues, err)
		}
		return nil
	}
	var lv v2.LineValues
	lv.Mask = lv.Mask.Set(idx, true)
	lv.Bits = lv.Bits.Set(idx, value == Active)
	if err := v2.SetLineValues(fd, &lv); err != nil {
		return newUapiError(UapiSetLineValues, err)
	}
	return nil
}

// SetValues sets the values of the output lines in values.
//
// ABI v1 requires values to contain all the requested lines.  ABI v2
// requires values to contain at least one requested line.  Lines in values
// that are not requested are ignored.
func (r *Request) SetValues(values *Values) error {
	fd, err := r.liveFd()
	if err != nil {
		return err
	}
	if r.abiv == AbiV1 {
		if !values.ContainsKeys(r.offsets) {
			return AbiLimitationError{AbiV1, "requires all requested lines"}
		}
		lv := values.toV1(r.offsets)
		if err := v1.SetLineValues(fd, &lv); err != nil {
			return newUapiError(UapiSetLineValues, err)
		}
		return nil
	}
	var lv v2.LineValues
	if !values.IsEmpty() {
		lv = values.toV2(r.offsets)
	}
	if lv.Mask == 0 {
		return invalidArgument("no requested lines in set values")
	}
	if err := v2.SetLineValues(fd, &lv); err != nil {
		return newUapiError(UapiSetLineValues, err)
	}
	return nil
}

// Reconfigure updates the config of the requested lines.
//
// The new config is overlaid on the existing config, so lines not in cfg
// retain their current config, and lines in cfg that are not requested are
// ignored.  If cfg contains no lines its base config is applied to all the
// requested lines.  Every line supplied by cfg must have its direction set.
//
// The config of the request is only updated if the kernel accepts the new
// config.
func (r *Request) Reconfigure(cfg *Config) error {
	top := *cfg
	if cfg.NumLines() == 0 {
		top = Config{base: cfg.base}
		top.WithLines(r.offsets...)
	}
	for _, o := range r.offsets {
		if lc, ok := top.lcfg[o]; ok && lc.Direction == DirectionUnset {
			return invalidArgumentf("reconfigure requires a direction for line %d", o)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	fd := uintptr(r.fd)
	newCfg := r.cfg.overlay(&top)
	switch r.abiv {
	case AbiV1:
		old, err := r.cfg.unique()
		if err != nil {
			return err
		}
		if old.EdgeDetection != EdgeDetectionUnset {
			return AbiLimitationError{AbiV1, "cannot reconfigure lines with edge detection"}
		}
		lc, err := newCfg.unique()
		if err != nil {
			return err
		}
		if lc.EdgeDetection != EdgeDetectionUnset {
			return AbiLimitationError{AbiV1, "cannot reconfigure edge detection"}
		}
		hc, err := newCfg.toV1()
		if err != nil {
			return err
		}
		if err = v1.SetLineConfig(fd, &hc); err != nil {
			return newUapiError(UapiSetLineConfig, err)
		}
	default:
		lc, err := newCfg.toV2()
		if err != nil {
			return err
		}
		if err = v2.SetLineConfig(fd, &lc); err != nil {
			return newUapiError(UapiSetLineConfig, err)
		}
	}
	r.cfg = newCfg
	logging.Debugf("reconfigured lines %v on %s", r.offsets, r.chipPath)
	return nil
}

// HasEdgeEvent returns true if an edge event is available to read without
// blocking.
func (r *Request) HasEdgeEvent() (bool, error) {
	fd, err := r.liveFd()
	if err != nil {
		return false, err
	}
	ok, err := uapi.HasEvent(fd)
	if err != nil {
		return false, newUapiError(UapiHasEvent, err)
	}
	return ok, nil
}

// WaitEdgeEvent waits up to the timeout for an edge event to become
// available, returning true if one is available.
func (r *Request) WaitEdgeEvent(timeout time.Duration) (bool, error) {
	fd, err := r.liveFd()
	if err != nil {
		return false, err
	}
	ok, err := uapi.WaitEvent(fd, timeout)
	if err != nil {
		return false, newUapiError(UapiWaitEvent, err)
	}
	return ok, nil
}

// ReadEdgeEvent reads a single edge event, blocking until one is available.
func (r *Request) ReadEdgeEvent() (EdgeEvent, error) {
	var ee EdgeEvent
	err := withScratch(r.EdgeEventSize(), func(buf []byte) error {
		n, err := r.ReadEdgeEventsIntoSlice(buf)
		if err != nil {
			return err
		}
		ee, err = r.EdgeEventFromSlice(buf[:n])
		return err
	})
	return ee, err
}

// ReadEdgeEventsIntoSlice performs a single read of edge events into buf,
// returning the number of bytes read.
//
// Blocks until at least one event is available.  The buffer should be a
// multiple of EdgeEventSize, and the events decoded with
// EdgeEventFromSlice.
func (r *Request) ReadEdgeEventsIntoSlice(buf []byte) (int, error) {
	fd, err := r.liveFd()
	if err != nil {
		return 0, err
	}
	n, err := uapi.ReadEvent(fd, buf)
	if err != nil {
		return 0, newUapiError(UapiReadEvent, err)
	}
	return n, nil
}

// EdgeEventFromSlice decodes the edge event at the start of buf.
func (r *Request) EdgeEventFromSlice(buf []byte) (EdgeEvent, error) {
	if r.abiv == AbiV1 {
		le, err := v1.LineEdgeEventFromBuf(buf)
		if err != nil {
			return EdgeEvent{}, newUapiError(UapiLineEdgeEventFromBuf, err)
		}
		return newEdgeEventFromV1(&le, r.offsets[0]), nil
	}
	le, err := v2.LineEdgeEventFromBuf(buf)
	if err != nil {
		return EdgeEvent{}, newUapiError(UapiLineEdgeEventFromBuf, err)
	}
	return newEdgeEventFromV2(&le), nil
}

// EdgeEventSize returns the size of an edge event as read from the request.
func (r *Request) EdgeEventSize() int {
	if r.abiv == AbiV1 {
		return v1.LineEdgeEventSize
	}
	return v2.LineEdgeEventSize
}

// EdgeEvents returns a buffer for reading edge events from the request,
// sized by the user event buffer size of the request.
func (r *Request) EdgeEvents() *EdgeEventBuffer {
	return r.NewEdgeEventBuffer(r.userEventBufferSize)
}

// NewEdgeEventBuffer returns a buffer for reading edge events from the
// request that holds up to capacity events.
//
// A capacity less than 1 is treated as 1.
func (r *Request) NewEdgeEventBuffer(capacity int) *EdgeEventBuffer {
	return newEdgeEventBuffer(r, r.EdgeEventSize(), capacity)
}
