// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

// Package uapi contains the parts of the Linux GPIO character device uAPI
// that are common to both ABI versions.
//
// The version specific definitions are in the v1 and v2 subpackages.
// This package and its subpackages are the only places in the module that
// depend on the memory layout of kernel structures.
package uapi

import (
	"bytes"
	"fmt"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	// NameLenMax is the size of the name, label and consumer fields in the
	// kernel structures.
	NameLenMax = 32

	// LinesMax is the maximum number of lines in a single request.
	LinesMax = 64

	// IoctlMagic is the ioctl type for all GPIO ioctls.
	IoctlMagic = 0xB4
)

var (
	// ErrNameTooLong indicates a string does not fit in a Name.
	ErrNameTooLong = errors.New("name too long")

	// ErrTooManyLines indicates more than LinesMax offsets were provided.
	ErrTooManyLines = errors.New("too many lines")
)

// Offset identifies a line on a chip.
type Offset = uint32

// Name is a fixed size, possibly NUL terminated, kernel string.
type Name [NameLenMax]byte

// NewName converts a string into a Name.
//
// Strings longer than NameLenMax are rejected rather than truncated.
func NewName(s string) (Name, error) {
	var n Name
	if len(s) > NameLenMax {
		return n, errors.Wrapf(ErrNameTooLong, "%q exceeds %d bytes", s, NameLenMax)
	}
	copy(n[:], s)
	return n, nil
}

// String returns the name up to the first NUL, or the whole array if the
// kernel filled it.
func (n Name) String() string {
	return BytesToString(n[:])
}

// IsEmpty returns true if the name contains no characters.
func (n Name) IsEmpty() bool {
	return n[0] == 0
}

// BytesToString converts a kernel string, stored in a byte array, into a
// string.
func BytesToString(a []byte) string {
	i := bytes.IndexByte(a, 0)
	if i == -1 {
		return string(a)
	}
	return string(a[:i])
}

// Offsets is the fixed size array of offsets in a line request.
type Offsets [LinesMax]Offset

// NewOffsets copies the offsets into an Offsets array.
func NewOffsets(oo []Offset) (Offsets, error) {
	var n Offsets
	if len(oo) > LinesMax {
		return n, errors.Wrapf(ErrTooManyLines, "%d exceeds %d", len(oo), LinesMax)
	}
	copy(n[:], oo)
	return n, nil
}

// ChipInfo contains the details of a GPIO chip.
type ChipInfo struct {
	// The system name of the device.
	Name Name

	// An identifying label added by the device driver.
	Label Name

	// The number of lines supported by this chip.
	NumLines uint32
}

// GetChipInfo returns the ChipInfo for the GPIO character device.
//
// The fd is an open GPIO character device.
func GetChipInfo(fd uintptr) (ChipInfo, error) {
	var ci ChipInfo
	err := Ioctl(fd, getChipInfoIoctl, unsafe.Pointer(&ci))
	return ci, err
}

// UnwatchLineInfo clears a watch on the info of a line.
//
// Common to both ABI versions.
func UnwatchLineInfo(fd uintptr, offset Offset) error {
	return Ioctl(fd, unwatchLineInfoIoctl, unsafe.Pointer(&offset))
}

// LineInfoChangeKind indicates the type of change to the info of a line.
type LineInfoChangeKind uint32

const (
	_ LineInfoChangeKind = iota

	// LineInfoChangeRequested indicates the line has been requested.
	LineInfoChangeRequested

	// LineInfoChangeReleased indicates the line has been released.
	LineInfoChangeReleased

	// LineInfoChangeReconfigured indicates the line configuration has changed.
	LineInfoChangeReconfigured
)

// Validate checks the kind is one known to this library.
func (k LineInfoChangeKind) Validate() error {
	switch k {
	case LineInfoChangeRequested, LineInfoChangeReleased, LineInfoChangeReconfigured:
		return nil
	}
	return &ValidationError{Field: "kind", Msg: fmt.Sprintf("invalid value: %d", k)}
}

// HasEvent returns true if an event is available to be read from the fd.
//
// Never blocks.
func HasEvent(fd uintptr) (bool, error) {
	return WaitEvent(fd, 0)
}

// WaitEvent waits up to the timeout for the fd to become readable.
//
// Returns true if the fd is readable, false if the timeout expired.
// A zero timeout checks the state of the fd without blocking.
func WaitEvent(fd uintptr, timeout time.Duration) (bool, error) {
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	deadline := time.Now().Add(timeout)
	for {
		ts := unix.NsecToTimespec(int64(timeout))
		n, err := unix.Ppoll(pfd, &ts, nil)
		if err == unix.EINTR {
			if timeout = time.Until(deadline); timeout < 0 {
				timeout = 0
			}
			continue
		}
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}
}

// ReadEvent performs a single read from the fd into the buffer.
//
// Returns the number of bytes read.
// Blocks until at least one event is available, so should only be called
// when the fd is known to be readable if blocking is not desired.
func ReadEvent(fd uintptr, buf []byte) (int, error) {
	for {
		n, err := unix.Read(int(fd), buf)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

// UnderReadError indicates a buffer or read was too short to contain a whole
// kernel record.
type UnderReadError struct {
	// The record being decoded.
	Obj string

	// The number of bytes required.
	Expected int

	// The number of bytes available.
	Found int
}

func (e *UnderReadError) Error() string {
	return fmt.Sprintf("reading %s returned %d bytes, expected %d", e.Obj, e.Found, e.Expected)
}

// ValidationError indicates the kernel returned a value outside the contract
// known to this library.
type ValidationError struct {
	// The field containing the invalid value.
	Field string

	// A description of the problem.
	Msg string
}

func (e *ValidationError) Error() string {
	return "kernel returned invalid " + e.Field + ": " + e.Msg
}

var (
	getChipInfoIoctl     uintptr
	unwatchLineInfoIoctl uintptr
)

func init() {
	var ci ChipInfo
	getChipInfoIoctl = IOR(0x01, unsafe.Sizeof(ci))
	var offset Offset
	unwatchLineInfoIoctl = IOWR(0x0C, unsafe.Sizeof(offset))
}
