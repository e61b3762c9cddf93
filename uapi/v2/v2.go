// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

// Package v2 provides the version 2 GPIO character device uAPI.
package v2

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/warthog618/go-gpiolib/uapi"
)

// NumAttrsMax is the maximum number of attributes in a LineConfig or LineInfo.
const NumAttrsMax = 10

// LineFlag are the flags applied to, or reported for, a line.
type LineFlag uint64

const (
	// LineFlagUsed indicates that the line is already in use.
	LineFlagUsed LineFlag = 1 << iota

	// LineFlagActiveLow indicates that the line is active low.
	LineFlagActiveLow

	// LineFlagInput indicates that the line is an input.
	LineFlagInput

	// LineFlagOutput indicates that the line is an output.
	LineFlagOutput

	// LineFlagEdgeRising indicates that the line reports rising edges.
	LineFlagEdgeRising

	// LineFlagEdgeFalling indicates that the line reports falling edges.
	LineFlagEdgeFalling

	// LineFlagOpenDrain indicates that the line is an open drain output.
	LineFlagOpenDrain

	// LineFlagOpenSource indicates that the line is an open source output.
	LineFlagOpenSource

	// LineFlagBiasPullUp indicates that the line has pull-up enabled.
	LineFlagBiasPullUp

	// LineFlagBiasPullDown indicates that the line has pull-down enabled.
	LineFlagBiasPullDown

	// LineFlagBiasDisabled indicates that the line has bias disabled.
	LineFlagBiasDisabled

	// LineFlagEventClockRealtime indicates that edge event timestamps use
	// CLOCK_REALTIME.
	LineFlagEventClockRealtime

	// LineFlagEventClockHTE indicates that edge event timestamps come from the
	// hardware timestamp engine.
	LineFlagEventClockHTE
)

// IsUsed returns true if the line is in use.
func (f LineFlag) IsUsed() bool {
	return f&LineFlagUsed != 0
}

// IsActiveLow returns true if the line is active low.
func (f LineFlag) IsActiveLow() bool {
	return f&LineFlagActiveLow != 0
}

// IsInput returns true if the line is an input.
func (f LineFlag) IsInput() bool {
	return f&LineFlagInput != 0
}

// IsOutput returns true if the line is an output.
func (f LineFlag) IsOutput() bool {
	return f&LineFlagOutput != 0
}

// IsRisingEdge returns true if the line reports rising edges.
func (f LineFlag) IsRisingEdge() bool {
	return f&LineFlagEdgeRising != 0
}

// IsFallingEdge returns true if the line reports falling edges.
func (f LineFlag) IsFallingEdge() bool {
	return f&LineFlagEdgeFalling != 0
}

// IsOpenDrain returns true if the line is open drain.
func (f LineFlag) IsOpenDrain() bool {
	return f&LineFlagOpenDrain != 0
}

// IsOpenSource returns true if the line is open source.
func (f LineFlag) IsOpenSource() bool {
	return f&LineFlagOpenSource != 0
}

// IsBiasPullUp returns true if the line has pull-up enabled.
func (f LineFlag) IsBiasPullUp() bool {
	return f&LineFlagBiasPullUp != 0
}

// IsBiasPullDown returns true if the line has pull-down enabled.
func (f LineFlag) IsBiasPullDown() bool {
	return f&LineFlagBiasPullDown != 0
}

// IsBiasDisabled returns true if the line has bias disabled.
func (f LineFlag) IsBiasDisabled() bool {
	return f&LineFlagBiasDisabled != 0
}

// IsEventClockRealtime returns true if edge timestamps use CLOCK_REALTIME.
func (f LineFlag) IsEventClockRealtime() bool {
	return f&LineFlagEventClockRealtime != 0
}

// IsEventClockHTE returns true if edge timestamps come from the HTE.
func (f LineFlag) IsEventClockHTE() bool {
	return f&LineFlagEventClockHTE != 0
}

// LineBitmap is a bitmap of lines, indexed by position in a request.
type LineBitmap uint64

// Get returns the state of the bit at idx.
func (b LineBitmap) Get(idx int) bool {
	return b&(1<<uint(idx)) != 0
}

// Set returns the bitmap with the bit at idx set to v.
func (b LineBitmap) Set(idx int, v bool) LineBitmap {
	if v {
		return b | 1<<uint(idx)
	}
	return b &^ (1 << uint(idx))
}

// LineAttributeID identifies the type of a LineAttribute.
type LineAttributeID uint32

const (
	_ LineAttributeID = iota

	// LineAttributeIDFlags indicates the attribute contains LineFlags.
	LineAttributeIDFlags

	// LineAttributeIDOutputValues indicates the attribute contains output
	// values.
	LineAttributeIDOutputValues

	// LineAttributeIDDebounce indicates the attribute contains a debounce
	// period.
	LineAttributeIDDebounce
)

// LineAttribute is a configurable attribute of a line.
//
// The Value is a union whose interpretation depends on the ID.
type LineAttribute struct {
	ID LineAttributeID

	_ uint32

	Value uint64
}

// NewFlagsAttribute returns an attribute containing the flags.
func NewFlagsAttribute(f LineFlag) LineAttribute {
	return LineAttribute{ID: LineAttributeIDFlags, Value: uint64(f)}
}

// NewOutputValuesAttribute returns an attribute containing output values.
func NewOutputValuesAttribute(bits LineBitmap) LineAttribute {
	return LineAttribute{ID: LineAttributeIDOutputValues, Value: uint64(bits)}
}

// NewDebounceAttribute returns an attribute containing a debounce period.
func NewDebounceAttribute(periodUs uint32) LineAttribute {
	var buf [8]byte
	binary.NativeEndian.PutUint32(buf[:4], periodUs)
	return LineAttribute{ID: LineAttributeIDDebounce, Value: binary.NativeEndian.Uint64(buf[:])}
}

// Flags returns the attribute value as LineFlags.
func (a LineAttribute) Flags() LineFlag {
	return LineFlag(a.Value)
}

// OutputValues returns the attribute value as output values.
func (a LineAttribute) OutputValues() LineBitmap {
	return LineBitmap(a.Value)
}

// DebouncePeriodUs returns the attribute value as a debounce period in
// microseconds.
//
// The period occupies the first 32 bits of the union.
func (a LineAttribute) DebouncePeriodUs() uint32 {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], a.Value)
	return binary.NativeEndian.Uint32(buf[:4])
}

// LineConfigAttribute associates an attribute with a subset of the lines in a
// request.
type LineConfigAttribute struct {
	// The attribute.
	Attr LineAttribute

	// The lines the attribute applies to, indexed by position in the request.
	Mask LineBitmap
}

// LineConfig is the configuration for the lines in a request.
type LineConfig struct {
	// The flags applied to lines not covered by a flags attribute.
	Flags LineFlag

	// The number of valid Attrs.
	NumAttrs uint32

	_ [5]uint32

	// Attributes overriding the Flags for subsets of lines.
	Attrs [NumAttrsMax]LineConfigAttribute
}

// AddAttribute appends the attribute to the config, applied to the lines in
// the mask.
//
// Returns false if the config already contains NumAttrsMax attributes.
func (lc *LineConfig) AddAttribute(attr LineAttribute, mask LineBitmap) bool {
	if lc.NumAttrs >= NumAttrsMax {
		return false
	}
	lc.Attrs[lc.NumAttrs] = LineConfigAttribute{Attr: attr, Mask: mask}
	lc.NumAttrs++
	return true
}

// LineRequest is a request for control of a set of lines.
type LineRequest struct {
	// The lines to be requested.
	Offsets uapi.Offsets

	// The string identifying the requester.
	Consumer uapi.Name

	// The configuration of the lines.
	Config LineConfig

	// The number of lines being requested.
	NumLines uint32

	// A suggested minimum size for the kernel edge event buffer.
	// Zero selects the kernel default.
	EventBufferSize uint32

	_ [5]uint32

	// The fd for the requested lines, set by the kernel on success.
	Fd int32
}

// LineValues contains the values of a subset of the lines in a request.
type LineValues struct {
	// The values of the lines, indexed by position in the request.
	Bits LineBitmap

	// The lines of interest, indexed by position in the request.
	Mask LineBitmap
}

// LineInfo contains the details of a single line of a GPIO chip.
type LineInfo struct {
	// The system name for this line.
	Name uapi.Name

	// If requested, a string added by the requester to identify the
	// owner of the request.
	Consumer uapi.Name

	// The offset of the line within the chip.
	Offset uapi.Offset

	// The number of valid Attrs.
	NumAttrs uint32

	// The line flags applied to this line.
	Flags LineFlag

	// Additional attributes of the line.
	Attrs [NumAttrsMax]LineAttribute

	_ [4]uint32
}

// Validate checks the info does not claim more attributes than it can hold.
func (li *LineInfo) Validate() error {
	if li.NumAttrs > NumAttrsMax {
		return &uapi.ValidationError{
			Field: "num_attrs",
			Msg:   fmt.Sprintf("%d exceeds maximum of %d", li.NumAttrs, NumAttrsMax),
		}
	}
	return nil
}

// DebouncePeriodUs returns the debounce period applied to the line, in
// microseconds, or zero if the line is not debounced.
func (li *LineInfo) DebouncePeriodUs() uint32 {
	n := li.NumAttrs
	if n > NumAttrsMax {
		n = NumAttrsMax
	}
	for _, a := range li.Attrs[:n] {
		if a.ID == LineAttributeIDDebounce {
			return a.DebouncePeriodUs()
		}
	}
	return 0
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

// LineEdgeEvent contains the details of an edge detected on a requested line.
type LineEdgeEvent struct {
	// The time the event was detected, in nanoseconds.
	TimestampNs uint64

	// The edge that triggered the event.
	Kind LineEdgeEventKind

	// The line that triggered the event.
	Offset uapi.Offset

	// The sequence number of the event across all lines in the request.
	Seqno uint32

	// The sequence number of the event on this line.
	LineSeqno uint32

	_ [6]uint32
}

// GetLineInfo returns the LineInfo for one line from the GPIO character device.
//
// The fd is an open GPIO character device.
func GetLineInfo(fd uintptr, offset uapi.Offset) (LineInfo, error) {
	li := LineInfo{Offset: offset}
	if err := uapi.Ioctl(fd, getLineInfoIoctl, unsafe.Pointer(&li)); err != nil {
		return LineInfo{}, err
	}
	if err := li.Validate(); err != nil {
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
	if err := li.Validate(); err != nil {
		return LineInfo{}, err
	}
	return li, nil
}

// GetLine requests a set of lines from the GPIO character device.
//
// Returns the fd of the request.
func GetLine(fd uintptr, lr *LineRequest) (int, error) {
	if err := uapi.Ioctl(fd, getLineIoctl, unsafe.Pointer(lr)); err != nil {
		return -1, err
	}
	return int(lr.Fd), nil
}

// GetLineValues reads the values of the lines selected by lv.Mask.
//
// Bits outside the mask are cleared on return.
func GetLineValues(fd uintptr, lv *LineValues) error {
	if err := uapi.Ioctl(fd, getLineValuesIoctl, unsafe.Pointer(lv)); err != nil {
		return err
	}
	lv.Bits &= lv.Mask
	return nil
}

// SetLineValues sets the values of the lines selected by lv.Mask.
func SetLineValues(fd uintptr, lv *LineValues) error {
	return uapi.Ioctl(fd, setLineValuesIoctl, unsafe.Pointer(lv))
}

// SetLineConfig changes the config of the lines in a request.
func SetLineConfig(fd uintptr, lc *LineConfig) error {
	return uapi.Ioctl(fd, setLineConfigIoctl, unsafe.Pointer(lc))
}

// LineInfoChangeEventFromBuf decodes an info change event from the start of
// the buffer.
func LineInfoChangeEventFromBuf(buf []byte) (LineInfoChangeEvent, error) {
	var ice LineInfoChangeEvent
	if err := uapi.Decode(buf, "LineInfoChangeEvent", &ice); err != nil {
		return LineInfoChangeEvent{}, err
	}
	if err := ice.Info.Validate(); err != nil {
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
	watchLineInfoIoctl uintptr
	getLineIoctl       uintptr
	setLineConfigIoctl uintptr
	getLineValuesIoctl uintptr
	setLineValuesIoctl uintptr
)

func init() {
	// ioctls require struct sizes which are only available at runtime.
	var li LineInfo
	getLineInfoIoctl = uapi.IOWR(0x05, unsafe.Sizeof(li))
	watchLineInfoIoctl = uapi.IOWR(0x06, unsafe.Sizeof(li))
	var lr LineRequest
	getLineIoctl = uapi.IOWR(0x07, unsafe.Sizeof(lr))
	var lc LineConfig
	setLineConfigIoctl = uapi.IOWR(0x0D, unsafe.Sizeof(lc))
	var lv LineValues
	getLineValuesIoctl = uapi.IOWR(0x0E, unsafe.Sizeof(lv))
	setLineValuesIoctl = uapi.IOWR(0x0F, unsafe.Sizeof(lv))
}
