// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

// Package v1 provides the version 1 GPIO character device uAPI.
//
// Version 1 has been deprecated by the kernel in favour of v2, but is still
// supported for compatibility with older kernels.
package v1

import (
	"fmt"
	"unsafe"

	"github.com/warthog618/go-gpiolib/uapi"
)

// LineInfoFlag are the flags reported for a line in LineInfo.
type LineInfoFlag uint32

const (
	// LineInfoFlagUsed indicates that the line is already in use.
	LineInfoFlagUsed LineInfoFlag = 1 << iota

	// LineInfoFlagIsOut indicates that the line is an output.
	LineInfoFlagIsOut

	// LineInfoFlagActiveLow indicates that the line is active low.
	LineInfoFlagActiveLow

	// LineInfoFlagOpenDrain indicates that the line is open drain.
	LineInfoFlagOpenDrain

	// LineInfoFlagOpenSource indicates that the line is open source.
	LineInfoFlagOpenSource

	// LineInfoFlagBiasPullUp indicates that the line has pull-up enabled.
	LineInfoFlagBiasPullUp

	// LineInfoFlagBiasPullDown indicates that the line has pull-down enabled.
	LineInfoFlagBiasPullDown

	// LineInfoFlagBiasDisabled indicates that the line has bias disabled.
	LineInfoFlagBiasDisabled
)

// IsUsed returns true if the line is in use.
func (f LineInfoFlag) IsUsed() bool {
	return f&LineInfoFlagUsed != 0
}

// IsOut returns true if the line is an output.
func (f LineInfoFlag) IsOut() bool {
	return f&LineInfoFlagIsOut != 0
}

// IsActiveLow returns true if the line is active low.
func (f LineInfoFlag) IsActiveLow() bool {
	return f&LineInfoFlagActiveLow != 0
}

// IsOpenDrain returns true if the line is open drain.
func (f LineInfoFlag) IsOpenDrain() bool {
	return f&LineInfoFlagOpenDrain != 0
}

// IsOpenSource returns true if the line is open source.
func (f LineInfoFlag) IsOpenSource() bool {
	return f&LineInfoFlagOpenSource != 0
}

// IsBiasPullUp returns true if the line has pull-up enabled.
func (f LineInfoFlag) IsBiasPullUp() bool {
	return f&LineInfoFlagBiasPullUp != 0
}

// IsBiasPullDown returns true if the line has pull-down enabled.
func (f LineInfoFlag) IsBiasPullDown() bool {
	return f&LineInfoFlagBiasPullDown != 0
}

// IsBiasDisabled returns true if the line has bias disabled.
func (f LineInfoFlag) IsBiasDisabled() bool {
	return f&LineInfoFlagBiasDisabled != 0
}

// HandleRequestFlag are the flags applied to the lines in a HandleRequest or
// HandleConfig.
type HandleRequestFlag uint32

const (
	// HandleRequestInput requests the line as an input.
	HandleRequestInput HandleRequestFlag = 1 << iota

	// HandleRequestOutput requests the line as an output.
	HandleRequestOutput

	// HandleRequestActiveLow requests the line be made active low.
	HandleRequestActiveLow

	// HandleRequestOpenDrain requests the line be made open drain.
	HandleRequestOpenDrain

	// HandleRequestOpenSource requests the line be made open source.
	HandleRequestOpenSource

	// HandleRequestBiasPullUp requests the line have pull-up enabled.
	HandleRequestBiasPullUp

	// HandleRequestBiasPullDown requests the line have pull-down enabled.
	HandleRequestBiasPullDown

	// HandleRequestBiasDisabled requests the line have bias disabled.
	HandleRequestBiasDisabled
)

// EventRequestFlag selects the edges reported by an EventRequest.
type EventRequestFlag uint32

const (
	// EventRequestRisingEdge requests rising edge events.
	EventRequestRisingEdge EventRequestFlag = 1 << iota

	// EventRequestFallingEdge requests falling edge events.
	EventRequestFallingEdge

	// EventRequestBothEdges requests both rising and falling edge events.
	EventRequestBothEdges = EventRequestRisingEdge | EventRequestFallingEdge
)

// LineInfo contains the details of a single line of a GPIO chip.
type LineInfo struct {
	// The offset of the line within the chip.
	Offset uapi.Offset

	// The line flags applied to this line.
	Flags LineInfoFlag

	// The system name for this line.
	Name uapi.Name

	// If requested, a string added by the requester to identify the
	// owner of the request.
	Consumer uapi.Name
}

// LineInfoChangeEvent contains the details of a change to the info of a
// watched line.
type LineInfoChangeEvent struct {
	// The updated info.
	Info LineInfo

	// The time the change occurred, in nanoseconds.
	TimestampNs uint64

	// The type of change.
	Kind uapi.LineInfoChangeKind

	_ [5]uint32
}

// HandleRequest is a request for control of a set of lines, without edge
// detection.
type HandleRequest struct {
	// The lines to be requested.
	Offsets uapi.Offsets

	// The flags to be applied to all the lines.
	Flags HandleRequestFlag

	// The initial values of output lines, indexed by position in Offsets.
	Values LineValues

	// The string identifying the requester.
	Consumer uapi.Name

	// The number of lines being requested.
	NumLines uint32

	// The fd for the requested lines, set by the kernel on success.
	Fd int32
}

// HandleConfig is a request to change the config of an existing handle.
type HandleConfig struct {
	// The flags to be applied to all the lines.
	Flags HandleRequestFlag

	// The values of output lines.
	Values LineValues

	_ [4]uint32
}

// EventRequest is a request for control of a single line with edge detection.
type EventRequest struct {
	// The line to be requested.
	Offset uapi.Offset

	// The flags to be applied to the line.
	HandleFlags HandleRequestFlag

	// The edges to be reported.
	EventFlags EventRequestFlag

	// The string identifying the requester.
	Consumer uapi.Name

	// The fd for the requested line, set by the kernel on success.
	Fd int32
}

// LineValues contains the values of the lines in a handle, indexed by
// position in the request.
type LineValues [uapi.LinesMax]uint8

// Get returns the value of the line at the given index in the request.
func (lv *LineValues) Get(idx int) uint8 {
	return lv[idx]
}

// Set sets the value of the line at the given index in the request.
func (lv *LineValues) Set(idx int, v uint8) {
	lv[idx] = v
}

// LineEdgeEventKind identifies the edge that triggered an event.
type LineEdgeEventKind uint32

const (
	_ LineEdgeEventKind = iota

	// LineEdgeEventRising indicates a rising edge.
	LineEdgeEventRising

	// LineEdgeEventFalling indicates a falling edge.
	LineEdgeEventFalling
)

// Validate checks the kind is one known to this library.
func (k LineEdgeEventKind) Validate() error {
	switch k {
	case LineEdgeEventRising, LineEdgeEventFalling:
		return nil
	}
	return &uapi.ValidationError{Field: "kind", Msg: fmt.Sprintf("invalid value: %d", k)}
}

// GetLineInfo returns the LineInfo for one line from the GPIO character device.
//
// The fd is an open GPIO character device.
func GetLineInfo(fd uintptr, offset uapi.Offset) (LineInfo, error) {
	li := LineInfo{Offset: offset}
	if err := uapi.Ioctl(fd, getLineInfoIoctl, unsafe.Pointer(&li)); err != nil {
		return LineInfo{}, err
	}
	return li, nil
}

// WatchLineInfo sets a watch on the info of a line, returning the current
// info.
//
// The fd is an open GPIO character device.
func WatchLineInfo(fd uintptr, offset uapi.Offset) (LineInfo, error) {
	li := LineInfo{Offset: offset}
	if err := uapi.Ioctl(fd, watchLineInfoIoctl, unsafe.Pointer(&li)); err != nil {
		return LineInfo{}, err
	}
	return li, nil
}

// GetLineHandle requests a set of lines from the GPIO character device.
//
// Returns the fd of the handle.
func GetLineHandle(fd uintptr, hr *HandleRequest) (int, error) {
	if err := uapi.Ioctl(fd, getLineHandleIoctl, unsafe.Pointer(hr)); err != nil {
		return -1, err
	}
	return int(hr.Fd), nil
}

// GetLineEvent requests a line from the GPIO character device with edge
// detection enabled.
//
// Returns the fd of the request.
func GetLineEvent(fd uintptr, er *EventRequest) (int, error) {
	if err := uapi.Ioctl(fd, getLineEventIoctl, unsafe.Pointer(er)); err != nil {
		return -1, err
	}
	return int(er.Fd), nil
}

// GetLineValues reads the values of all the lines in a handle or event
// request.
func GetLineValues(fd uintptr, lv *LineValues) error {
	return uapi.Ioctl(fd, getLineValuesIoctl, unsafe.Pointer(&lv[0]))
}

// SetLineValues sets the values of all the lines in a handle request.
func SetLineValues(fd uintptr, lv *LineValues) error {
	return uapi.Ioctl(fd, setLineValuesIoctl, unsafe.Pointer(&lv[0]))
}

// SetLineConfig changes the config of all the lines in a handle request.
func SetLineConfig(fd uintptr, hc *HandleConfig) error {
	return uapi.Ioctl(fd, setLineConfigIoctl, unsafe.Pointer(hc))
}

// LineInfoChangeEventFromBuf decodes an info change event from the start of
// the buffer.
func LineInfoChangeEventFromBuf(buf []byte) (LineInfoChangeEvent, error) {
	var ice LineInfoChangeEvent
	if err := uapi.Decode(buf, "LineInfoChangeEvent", &ice); err != nil {
		return LineInfoChangeEvent{}, err
	}
	if err := ice.Kind.Validate(); err != nil {
		return LineInfoChangeEvent{}, err
	}
	return ice, nil
}

// LineEdgeEventFromBuf decodes an edge event from the start of the buffer.
func LineEdgeEventFromBuf(buf []byte) (LineEdgeEvent, error) {
	var le LineEdgeEvent
	if err := uapi.Decode(buf, "LineEdgeEvent", &le); err != nil {
		return LineEdgeEvent{}, err
	}
	if err := le.Kind.Validate(); err != nil {
		return LineEdgeEvent{}, err
	}
	return le, nil
}

var (
	// LineEdgeEventSize is the size of a LineEdgeEvent as read from the kernel.
	LineEdgeEventSize = int(unsafe.Sizeof(LineEdgeEvent{}))

	// LineInfoChangeEventSize is the size of a LineInfoChangeEvent as read
	// from the kernel.
	LineInfoChangeEventSize = int(unsafe.Sizeof(LineInfoChangeEvent{}))
)

var (
	getLineInfoIoctl   uintptr
	getLineHandleIoctl uintptr
	getLineEventIoctl  uintptr
	getLineValuesIoctl uintptr
	setLineValuesIoctl uintptr
	setLineConfigIoctl uintptr
	watchLineInfoIoctl uintptr
)

func init() {
	// ioctls require struct sizes which are only available at runtime.
	var li LineInfo
	getLineInfoIoctl = uapi.IOWR(0x02, unsafe.Sizeof(li))
	var hr HandleRequest
	getLineHandleIoctl = uapi.IOWR(0x03, unsafe.Sizeof(hr))
	var er EventRequest
	getLineEventIoctl = uapi.IOWR(0x04, unsafe.Sizeof(er))
	var lv LineValues
	getLineValuesIoctl = uapi.IOWR(0x08, unsafe.Sizeof(lv))
	setLineValuesIoctl = uapi.IOWR(0x09, unsafe.Sizeof(lv))
	var hc HandleConfig
	setLineConfigIoctl = uapi.IOWR(0x0A, unsafe.Sizeof(hc))
	watchLineInfoIoctl = uapi.IOWR(0x0B, unsafe.Sizeof(li))
}
