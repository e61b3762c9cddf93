// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

package gpiolib

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiolib/uapi"
	v1 "github.com/warthog618/go-gpiolib/uapi/v1"
	v2 "github.com/warthog618/go-gpiolib/uapi/v2"
)

// Offset identifies a line within a chip.
type Offset = uapi.Offset

// Direction indicates the direction of a line.
type Direction int

const (
	// DirectionUnset leaves the direction of the line unchanged.
	DirectionUnset Direction = iota

	// DirectionInput indicates the line is an input.
	DirectionInput

	// DirectionOutput indicates the line is an output.
	DirectionOutput
)

func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return "input"
	case DirectionOutput:
		return "output"
	}
	return "unset"
}

// Bias indicates the bias applied to a line.
type Bias int

const (
	// BiasUnset leaves the bias of the line unchanged.
	BiasUnset Bias = iota

	// BiasPullUp enables the line pull-up.
	BiasPullUp

	// BiasPullDown enables the line pull-down.
	BiasPullDown

	// BiasDisabled disables both the pull-up and pull-down.
	BiasDisabled
)

func (b Bias) String() string {
	switch b {
	case BiasPullUp:
		return "pull-up"
	case BiasPullDown:
		return "pull-down"
	case BiasDisabled:
		return "disabled"
	}
	return "unset"
}

// Drive indicates how an output line is driven.
type Drive int

const (
	// DriveUnset leaves the drive of the line unchanged.
	DriveUnset Drive = iota

	// DrivePushPull drives the line both high and low.
	DrivePushPull

	// DriveOpenDrain drives the line low and floats it when high.
	DriveOpenDrain

	// DriveOpenSource drives the line high and floats it when low.
	DriveOpenSource
)

func (d Drive) String() string {
	switch d {
	case DrivePushPull:
		return "push-pull"
	case DriveOpenDrain:
		return "open-drain"
	case DriveOpenSource:
		return "open-source"
	}
	return "unset"
}

// EdgeDetection indicates which edges of an input line generate events.
type EdgeDetection int

const (
	// EdgeDetectionUnset indicates no edge detection.
	EdgeDetectionUnset EdgeDetection = iota

	// EdgeDetectionRising detects rising edges.
	EdgeDetectionRising

	// EdgeDetectionFalling detects falling edges.
	EdgeDetectionFalling

	// EdgeDetectionBoth detects both rising and falling edges.
	EdgeDetectionBoth
)

func (e EdgeDetection) String() string {
	switch e {
	case EdgeDetectionRising:
		return "rising"
	case EdgeDetectionFalling:
		return "falling"
	case EdgeDetectionBoth:
		return "both"
	}
	return "unset"
}

// EventClock identifies the clock used to timestamp edge events.
type EventClock int

const (
	// EventClockUnset selects the kernel default, which is monotonic.
	EventClockUnset EventClock = iota

	// EventClockMonotonic uses CLOCK_MONOTONIC.
	EventClockMonotonic

	// EventClockRealtime uses CLOCK_REALTIME.
	EventClockRealtime

	// EventClockHTE uses the hardware timestamp engine.
	EventClockHTE
)

func (c EventClock) String() string {
	switch c {
	case EventClockMonotonic:
		return "monotonic"
	case EventClockRealtime:
		return "realtime"
	case EventClockHTE:
		return "hte"
	}
	return "unset"
}

// LineConfig is the configuration of a single line.
//
// Fields that contradict the Direction are ignored when the config is
// lowered to the uAPI, so Drive only applies to outputs, and EdgeDetection,
// EventClock and DebouncePeriod only apply to inputs.
type LineConfig struct {
	Direction Direction

	ActiveLow bool

	Bias Bias

	// Only applies to outputs.
	Drive Drive

	// Only applies to inputs.
	EdgeDetection EdgeDetection

	// Only applies to inputs with edge detection.
	EventClock EventClock

	// Only applies to inputs.  Zero means no debounce.
	DebouncePeriod time.Duration

	// The initial value of an output.
	Value Value
}

// equivalent returns true if the configs only differ in value.
func (lc *LineConfig) equivalent(r *LineConfig) bool {
	return lc.Direction == r.Direction &&
		lc.ActiveLow == r.ActiveLow &&
		lc.Bias == r.Bias &&
		lc.Drive == r.Drive &&
		lc.EdgeDetection == r.EdgeDetection &&
		lc.EventClock == r.EventClock &&
		lc.DebouncePeriod == r.DebouncePeriod
}

func (lc *LineConfig) toV1HandleFlags() v1.HandleRequestFlag {
	var flags v1.HandleRequestFlag
	switch lc.Direction {
	case DirectionInput:
		flags |= v1.HandleRequestInput
	case DirectionOutput:
		flags |= v1.HandleRequestOutput
		switch lc.Drive {
		case DriveOpenDrain:
			flags |= v1.HandleRequestOpenDrain
		case DriveOpenSource:
			flags |= v1.HandleRequestOpenSource
		}
	}
	if lc.ActiveLow {
		flags |= v1.HandleRequestActiveLow
	}
	switch lc.Bias {
	case BiasPullUp:
		flags |= v1.HandleRequestBiasPullUp
	case BiasPullDown:
		flags |= v1.HandleRequestBiasPullDown
	case BiasDisabled:
		flags |= v1.HandleRequestBiasDisabled
	}
	return flags
}

func (lc *LineConfig) toV1EventFlags() v1.EventRequestFlag {
	switch lc.EdgeDetection {
	case EdgeDetectionRising:
		return v1.EventRequestRisingEdge
	case EdgeDetectionFalling:
		return v1.EventRequestFallingEdge
	case EdgeDetectionBoth:
		return v1.EventRequestBothEdges
	}
	return 0
}

func (lc *LineConfig) toV2Flags() v2.LineFlag {
	var flags v2.LineFlag
	if lc.ActiveLow {
		flags |= v2.LineFlagActiveLow
	}
	switch lc.Bias {
	case BiasPullUp:
		flags |= v2.LineFlagBiasPullUp
	case BiasPullDown:
		flags |= v2.LineFlagBiasPullDown
	case BiasDisabled:
		flags |= v2.LineFlagBiasDisabled
	}
	switch lc.Direction {
	case DirectionOutput:
		flags |= v2.LineFlagOutput
		switch lc.Drive {
		case DriveOpenDrain:
			flags |= v2.LineFlagOpenDrain
		case DriveOpenSource:
			flags |= v2.LineFlagOpenSource
		}
	case DirectionInput:
		flags |= v2.LineFlagInput
		switch lc.EdgeDetection {
		case EdgeDetectionRising:
			flags |= v2.LineFlagEdgeRising
		case EdgeDetectionFalling:
			flags |= v2.LineFlagEdgeFalling
		case EdgeDetectionBoth:
			flags |= v2.LineFlagEdgeRising | v2.LineFlagEdgeFalling
		}
		if lc.EdgeDetection != EdgeDetectionUnset {
			switch lc.EventClock {
			case EventClockRealtime:
				flags |= v2.LineFlagEventClockRealtime
			case EventClockHTE:
				flags |= v2.LineFlagEventClockHTE
			}
		}
	}
	return flags
}

// debouncePeriodUs returns the debounce period rounded up to the next
// microsecond.
func (lc *LineConfig) debouncePeriodUs() uint32 {
	return uint32((lc.DebouncePeriod + time.Microsecond - 1) / time.Microsecond)
}

// Info is the publicly available information for a line, as reported by the
// kernel.
type Info struct {
	// The offset of the line within the chip.
	Offset Offset

	// The system name for the line.
	Name string

	// The string identifying the holder of the line, if it is in use.
	Consumer string

	// True if the line is in use by the kernel or user space.
	Used bool

	ActiveLow bool

	// Always DirectionInput or DirectionOutput.
	Direction Direction

	Bias Bias

	// Only set for outputs.
	Drive Drive

	// Only set for inputs.  Always unset for ABI v1.
	EdgeDetection EdgeDetection

	// Only set for lines with edge detection.  Always unset for ABI v1.
	EventClock EventClock

	// Zero if the line is not debounced.  Always zero for ABI v1.
	DebouncePeriod time.Duration
}

func (i Info) String() string {
	s := fmt.Sprintf("%d %q %s", i.Offset, i.Name, i.Direction)
	if i.Used {
		s += fmt.Sprintf(" used by %q", i.Consumer)
	}
	return s
}

func newInfoFromV1(li *v1.LineInfo) Info {
	info := Info{
		Offset:    li.Offset,
		Name:      li.Name.String(),
		Consumer:  li.Consumer.String(),
		Used:      li.Flags.IsUsed(),
		ActiveLow: li.Flags.IsActiveLow(),
		Direction: DirectionInput,
	}
	if li.Flags.IsOut() {
		info.Direction = DirectionOutput
		switch {
		case li.Flags.IsOpenDrain():
			info.Drive = DriveOpenDrain
		case li.Flags.IsOpenSource():
			info.Drive = DriveOpenSource
		default:
			info.Drive = DrivePushPull
		}
	}
	switch {
	case li.Flags.IsBiasPullUp():
		info.Bias = BiasPullUp
	case li.Flags.IsBiasPullDown():
		info.Bias = BiasPullDown
	case li.Flags.IsBiasDisabled():
		info.Bias = BiasDisabled
	}
	return info
}

func newInfoFromV2(li *v2.LineInfo) (Info, error) {
	if err := li.Validate(); err != nil {
		return Info{}, err
	}
	info := Info{
		Offset:         li.Offset,
		Name:           li.Name.String(),
		Consumer:       li.Consumer.String(),
		Used:           li.Flags.IsUsed(),
		ActiveLow:      li.Flags.IsActiveLow(),
		Direction:      DirectionInput,
		DebouncePeriod: time.Duration(li.DebouncePeriodUs()) * time.Microsecond,
	}
	if li.Flags.IsOutput() {
		info.Direction = DirectionOutput
		switch {
		case li.Flags.IsOpenDrain():
			info.Drive = DriveOpenDrain
		case li.Flags.IsOpenSource():
			info.Drive = DriveOpenSource
		default:
			info.Drive = DrivePushPull
		}
	}
	switch {
	case li.Flags.IsBiasPullUp():
		info.Bias = BiasPullUp
	case li.Flags.IsBiasPullDown():
		info.Bias = BiasPullDown
	case li.Flags.IsBiasDisabled():
		info.Bias = BiasDisabled
	}
	switch {
	case li.Flags.IsRisingEdge() && li.Flags.IsFallingEdge():
		info.EdgeDetection = EdgeDetectionBoth
	case li.Flags.IsRisingEdge():
		info.EdgeDetection = EdgeDetectionRising
	case li.Flags.IsFallingEdge():
		info.EdgeDetection = EdgeDetectionFalling
	}
	if info.EdgeDetection != EdgeDetectionUnset {
		switch {
		case li.Flags.IsEventClockRealtime():
			info.EventClock = EventClockRealtime
		case li.Flags.IsEventClockHTE():
			info.EventClock = EventClockHTE
		default:
			info.EventClock = EventClockMonotonic
		}
	}
	return info, nil
}

// EdgeKind identifies the edge that triggered an EdgeEvent.
type EdgeKind int

const (
	// EdgeKindRising indicates an inactive to active transition.
	EdgeKindRising EdgeKind = iota + 1

	// EdgeKindFalling indicates an active to inactive transition.
	EdgeKindFalling
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeKindRising:
		return "rising"
	case EdgeKindFalling:
		return "falling"
	}
	return fmt.Sprintf("EdgeKind(%d)", int(k))
}

// EdgeEvent is an edge detected on a requested line.
type EdgeEvent struct {
	// The time the event was detected, in nanoseconds, using the clock
	// selected by the line's EventClock.
	TimestampNs uint64

	Kind EdgeKind

	// The line that triggered the event.
	Offset Offset

	// The sequence number of the event across all lines in the request.
	// Always zero for ABI v1.
	Seqno uint32

	// The sequence number of the event on this line.
	// Always zero for ABI v1.
	LineSeqno uint32
}

func newEdgeEventFromV1(le *v1.LineEdgeEvent, offset Offset) EdgeEvent {
	ee := EdgeEvent{
		TimestampNs: le.TimestampNs,
		Kind:        EdgeKindRising,
		Offset:      offset,
	}
	if le.Kind == v1.LineEdgeEventFalling {
		ee.Kind = EdgeKindFalling
	}
	return ee
}

func newEdgeEventFromV2(le *v2.LineEdgeEvent) EdgeEvent {
	ee := EdgeEvent{
		TimestampNs: le.TimestampNs,
		Kind:        EdgeKindRising,
		Offset:      le.Offset,
		Seqno:       le.Seqno,
		LineSeqno:   le.LineSeqno,
	}
	if le.Kind == v2.LineEdgeEventFalling {
		ee.Kind = EdgeKindFalling
	}
	return ee
}

// InfoChangeKind identifies the type of change in an InfoChangeEvent.
type InfoChangeKind int

const (
	// InfoChangeRequested indicates the line has been requested.
	InfoChangeRequested InfoChangeKind = iota + 1

	// InfoChangeReleased indicates the line has been released.
	InfoChangeReleased

	// InfoChangeReconfigured indicates the line has been reconfigured.
	InfoChangeReconfigured
)

func (k InfoChangeKind) String() string {
	switch k {
	case InfoChangeRequested:
		return "requested"
	case InfoChangeReleased:
		return "released"
	case InfoChangeReconfigured:
		return "reconfigured"
	}
	return fmt.Sprintf("InfoChangeKind(%d)", int(k))
}

// InfoChangeEvent is a change to the info of a watched line.
type InfoChangeEvent struct {
	// The updated info.
	Info Info

	// The time the change occurred, in nanoseconds, using CLOCK_MONOTONIC.
	TimestampNs uint64

	Kind InfoChangeKind
}

func newInfoChangeEventFromV1(ice *v1.LineInfoChangeEvent) InfoChangeEvent {
	return InfoChangeEvent{
		Info:        newInfoFromV1(&ice.Info),
		TimestampNs: ice.TimestampNs,
		Kind:        InfoChangeKind(ice.Kind),
	}
}

func newInfoChangeEventFromV2(ice *v2.LineInfoChangeEvent) (InfoChangeEvent, error) {
	info, err := newInfoFromV2(&ice.Info)
	if err != nil {
		return InfoChangeEvent{}, err
	}
	return InfoChangeEvent{
		Info:        info,
		TimestampNs: ice.TimestampNs,
		Kind:        InfoChangeKind(ice.Kind),
	}, nil
}
