// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

package gpiolib

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiolib/uapi"
)

var (
	// ErrClosed indicates the chip or request has already been closed.
	ErrClosed = errors.New("already closed")

	// ErrInvalidArgument indicates a caller supplied argument was rejected
	// before being passed to the kernel.
	//
	// Returned errors wrap ErrInvalidArgument with a description of the
	// problem.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoAbiSupport indicates the kernel supports neither uAPI ABI version.
	ErrNoAbiSupport = errors.New("uAPI ABI is not supported by the kernel")

	// ErrNoGpioChips indicates no GPIO chips are available on the platform.
	ErrNoGpioChips = errors.New("no GPIO chips are available")

	// ErrTimeout indicates a timed wait expired without an event becoming
	// available.
	ErrTimeout = errors.New("timeout")

	// ErrUnexpectedResponse indicates the kernel returned a value outside
	// the contract known to this library.
	//
	// This typically indicates a kernel newer than the library.
	ErrUnexpectedResponse = errors.New("unexpected response from kernel")
)

// UapiCall identifies the uAPI call that returned an error.
type UapiCall int

const (
	// UapiGetChipInfo is the get chip info ioctl.
	UapiGetChipInfo UapiCall = iota

	// UapiGetLine is the v2 line request ioctl.
	UapiGetLine

	// UapiGetLineEvent is the v1 event request ioctl.
	UapiGetLineEvent

	// UapiGetLineHandle is the v1 handle request ioctl.
	UapiGetLineHandle

	// UapiGetLineInfo is the get line info ioctl.
	UapiGetLineInfo

	// UapiGetLineValues is the get line values ioctl.
	UapiGetLineValues

	// UapiHasEvent is the zero timeout poll for an event.
	UapiHasEvent

	// UapiLineEdgeEventFromBuf is the decoding of an edge event.
	UapiLineEdgeEventFromBuf

	// UapiLineInfoChangeEventFromBuf is the decoding of an info change event.
	UapiLineInfoChangeEventFromBuf

	// UapiReadEvent is the read of events from the kernel.
	UapiReadEvent

	// UapiSetLineConfig is the set line config ioctl.
	UapiSetLineConfig

	// UapiSetLineValues is the set line values ioctl.
	UapiSetLineValues

	// UapiUnwatchLineInfo is the unwatch line info ioctl.
	UapiUnwatchLineInfo

	// UapiWaitEvent is the poll waiting for an event.
	UapiWaitEvent

	// UapiWatchLineInfo is the watch line info ioctl.
	UapiWatchLineInfo
)

var uapiCallNames = map[UapiCall]string{
	UapiGetChipInfo:                "get_chip_info",
	UapiGetLine:                    "get_line",
	UapiGetLineEvent:               "get_line_event",
	UapiGetLineHandle:              "get_line_handle",
	UapiGetLineInfo:                "get_line_info",
	UapiGetLineValues:              "get_line_values",
	UapiHasEvent:                   "has_event",
	UapiLineEdgeEventFromBuf:       "LineEdgeEvent.FromBuf",
	UapiLineInfoChangeEventFromBuf: "LineInfoChangeEvent.FromBuf",
	UapiReadEvent:                  "read_event",
	UapiSetLineConfig:              "set_line_config",
	UapiSetLineValues:              "set_line_values",
	UapiUnwatchLineInfo:            "unwatch_line_info",
	UapiWaitEvent:                  "wait_event",
	UapiWatchLineInfo:              "watch_line_info",
}

func (c UapiCall) String() string {
	if n, ok := uapiCallNames[c]; ok {
		return n
	}
	return fmt.Sprintf("UapiCall(%d)", int(c))
}

// UapiError indicates a uAPI call failed.
//
// Err is the unix.Errno returned by the kernel, or a decoding error wrapping
// ErrUnexpectedResponse.
type UapiError struct {
	Call UapiCall
	Err  error
}

func (e UapiError) Error() string {
	return fmt.Sprintf("uAPI %s returned: %s", e.Call, e.Err)
}

// Unwrap returns the underlying error.
func (e UapiError) Unwrap() error {
	return e.Err
}

func newUapiError(call UapiCall, err error) error {
	var ve *uapi.ValidationError
	if errors.As(err, &ve) {
		err = errors.Wrap(ErrUnexpectedResponse, ve.Error())
	}
	return UapiError{Call: call, Err: err}
}

// AbiSupportKind identifies which party lacks support for an ABI version.
type AbiSupportKind int

const (
	// AbiSupportKernel indicates the kernel does not support the ABI version.
	AbiSupportKernel AbiSupportKind = iota

	// AbiSupportBuild indicates the library does not support the ABI version.
	AbiSupportBuild
)

func (k AbiSupportKind) String() string {
	if k == AbiSupportBuild {
		return "build"
	}
	return "kernel"
}

// AbiSupportError indicates the ABI version is not supported.
type AbiSupportError struct {
	Version AbiVersion
	Kind    AbiSupportKind
}

func (e AbiSupportError) Error() string {
	return fmt.Sprintf("%s is not supported by the %s", e.Version, e.Kind)
}

// AbiLimitationError indicates a request that cannot be expressed in the
// selected ABI version.
type AbiLimitationError struct {
	Version AbiVersion
	Msg     string
}

func (e AbiLimitationError) Error() string {
	return fmt.Sprintf("%s %s", e.Version, e.Msg)
}

// GpioChipErrorKind identifies why a path is not a GPIO chip.
type GpioChipErrorKind int

const (
	// NotCharacterDevice indicates the path is not a character device.
	NotCharacterDevice GpioChipErrorKind = iota

	// NotGpioDevice indicates the path is a character device, but not a
	// GPIO device.
	NotGpioDevice
)

func (k GpioChipErrorKind) String() string {
	if k == NotGpioDevice {
		return "is not a GPIO character device"
	}
	return "is not a character device"
}

// GpioChipError indicates the path does not identify a GPIO chip.
type GpioChipError struct {
	Path string
	Kind GpioChipErrorKind
}

func (e GpioChipError) Error() string {
	return fmt.Sprintf("%q %s", e.Path, e.Kind)
}

func invalidArgument(msg string) error {
	return errors.Wrap(ErrInvalidArgument, msg)
}

func invalidArgumentf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}
