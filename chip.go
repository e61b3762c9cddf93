// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

package gpiolib

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiolib/logging"
	"github.com/warthog618/go-gpiolib/uapi"
	v1 "github.com/warthog618/go-gpiolib/uapi/v1"
	v2 "github.com/warthog618/go-gpiolib/uapi/v2"
	"golang.org/x/sys/unix"
)

// ChipInfo is the publicly available information for a chip.
type ChipInfo struct {
	// The system name for the chip, e.g. "gpiochip0".
	Name string

	// A functional name for the chip, e.g. a part number.
	Label string

	// The number of lines on the chip.
	NumLines uint32
}

// Chip is an open GPIO character device.
//
// A Chip is not safe for concurrent use.
type Chip struct {
	path string
	f    *os.File
	abiv AbiVersion

	closed bool
}

// NewChip opens the GPIO character device at the path.
//
// The path is canonicalised and checked to be a GPIO character device.
func NewChip(path string, options ...ChipOption) (*Chip, error) {
	var co chipOptions
	for _, option := range options {
		option.applyChipOption(&co)
	}
	p, err := IsChip(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(p, unix.O_CLOEXEC|os.O_RDONLY, 0)
	if err != nil {
		// only happens if the device was removed or locked since IsChip.
		return nil, err
	}
	logging.Debugf("opened chip %s", p)
	return &Chip{path: p, f: f, abiv: co.abiv}, nil
}

// NewChipByName opens the named GPIO character device, e.g. "gpiochip0".
func NewChipByName(name string, options ...ChipOption) (*Chip, error) {
	return NewChip(filepath.Join("/dev", name), options...)
}

// IsChip checks that the path is a GPIO character device, returning the
// canonical path if so.
func IsChip(path string) (string, error) {
	p, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	if p, err = filepath.Abs(p); err != nil {
		return "", err
	}
	var st unix.Stat_t
	if err = unix.Lstat(p, &st); err != nil {
		return "", &os.PathError{Op: "lstat", Path: p, Err: err}
	}
	if st.Mode&unix.S_IFMT != unix.S_IFCHR {
		return "", GpioChipError{Path: p, Kind: NotCharacterDevice}
	}
	sysfsDev := filepath.Join("/sys/bus/gpio/devices", filepath.Base(p), "dev")
	b, err := os.ReadFile(sysfsDev)
	if err == nil {
		rdev := uint64(st.Rdev)
		if strings.TrimSpace(string(b)) == fmt.Sprintf("%d:%d", unix.Major(rdev), unix.Minor(rdev)) {
			return p, nil
		}
	}
	return "", GpioChipError{Path: p, Kind: NotGpioDevice}
}

// Chips returns the paths of the GPIO chips available on the platform.
//
// The paths are canonical, sorted in natural order and free of duplicates.
func Chips() ([]string, error) {
	ee, err := os.ReadDir("/dev")
	if err != nil {
		return nil, err
	}
	var cc []string
	for _, e := range ee {
		if p, err := IsChip(filepath.Join("/dev", e.Name())); err == nil {
			cc = append(cc, p)
		}
	}
	sort.Slice(cc, func(i, j int) bool { return naturalLess(cc[i], cc[j]) })
	out := cc[:0]
	for i, p := range cc {
		if i == 0 || p != cc[i-1] {
			out = append(out, p)
		}
	}
	return out, nil
}

// naturalLess compares strings treating embedded runs of digits as numbers,
// so gpiochip2 sorts before gpiochip10.
func naturalLess(a, b string) bool {
	for len(a) > 0 && len(b) > 0 {
		if isDigit(a[0]) && isDigit(b[0]) {
			na, ra := splitDigits(a)
			nb, rb := splitDigits(b)
			na = strings.TrimLeft(na, "0")
			nb = strings.TrimLeft(nb, "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			a, b = ra, rb
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func splitDigits(s string) (string, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

// Close releases the chip.
//
// Any line info watches are cancelled.  Requests made through the chip are
// independent of it and remain valid.
func (c *Chip) Close() error {
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	logging.Debugf("closed chip %s", c.path)
	return c.f.Close()
}

// Fd returns the file descriptor of the chip, e.g. for registering with a
// reactor.
func (c *Chip) Fd() uintptr {
	return c.f.Fd()
}

// Path returns the canonical path of the chip.
func (c *Chip) Path() string {
	return c.path
}

// Name returns the name of the chip, e.g. "gpiochip0".
func (c *Chip) Name() string {
	return filepath.Base(c.path)
}

// Info returns the info for the chip.
//
// The info is read from the kernel on each call.
func (c *Chip) Info() (ChipInfo, error) {
	ci, err := uapi.GetChipInfo(c.Fd())
	if err != nil {
		return ChipInfo{}, newUapiError(UapiGetChipInfo, err)
	}
	return ChipInfo{
		Name:     ci.Name.String(),
		Label:    ci.Label.String(),
		NumLines: ci.NumLines,
	}, nil
}

// DetectAbiVersion returns the uAPI ABI version supported by the kernel,
// preferring v2.
func (c *Chip) DetectAbiVersion() (AbiVersion, error) {
	for _, abiv := range []AbiVersion{AbiV2, AbiV1} {
		if c.SupportsAbiVersion(abiv) == nil {
			logging.Debugf("chip %s supports %s", c.path, abiv)
			return abiv, nil
		}
	}
	return 0, ErrNoAbiSupport
}

// SupportsAbiVersion returns nil if the ABI version is supported by both the
// library and the kernel, else an AbiSupportError.
func (c *Chip) SupportsAbiVersion(abiv AbiVersion) error {
	var err error
	switch abiv {
	case AbiV1:
		_, err = v1.GetLineInfo(c.Fd(), 0)
	case AbiV2:
		_, err = v2.GetLineInfo(c.Fd(), 0)
	default:
		return AbiSupportError{Version: abiv, Kind: AbiSupportBuild}
	}
	if err != nil {
		return AbiSupportError{Version: abiv, Kind: AbiSupportKernel}
	}
	return nil
}

// AbiVersion returns the uAPI ABI version used by the chip, detecting it on
// first use if it was not pinned.
func (c *Chip) AbiVersion() (AbiVersion, error) {
	if c.abiv == 0 {
		abiv, err := c.DetectAbiVersion()
		if err != nil {
			return 0, err
		}
		c.abiv = abiv
	}
	return c.abiv, nil
}

// LineInfo returns the info for the line.
func (c *Chip) LineInfo(offset Offset) (Info, error) {
	return c.lineInfo(offset, UapiGetLineInfo)
}

func (c *Chip) lineInfo(offset Offset, call UapiCall) (Info, error) {
	abiv, err := c.AbiVersion()
	if err != nil {
		return Info{}, err
	}
	get1, get2 := v1.GetLineInfo, v2.GetLineInfo
	if call == UapiWatchLineInfo {
		get1, get2 = v1.WatchLineInfo, v2.WatchLineInfo
	}
	if abiv == AbiV1 {
		li, err := get1(c.Fd(), offset)
		if err != nil {
			return Info{}, newUapiError(call, err)
		}
		return newInfoFromV1(&li), nil
	}
	li, err := get2(c.Fd(), offset)
	if err != nil {
		return Info{}, newUapiError(call, err)
	}
	info, err := newInfoFromV2(&li)
	if err != nil {
		return Info{}, newUapiError(call, err)
	}
	return info, nil
}

// LineInfos returns the info for all the lines of the chip, in offset order.
func (c *Chip) LineInfos() ([]Info, error) {
	ci, err := c.Info()
	if err != nil {
		return nil, err
	}
	ii := make([]Info, 0, ci.NumLines)
	for o := Offset(0); o < ci.NumLines; o++ {
		info, err := c.LineInfo(o)
		if err != nil {
			return nil, err
		}
		ii = append(ii, info)
	}
	return ii, nil
}

// FindLineInfo returns the info for the first line with the given name, and
// false if the chip has no such line.
func (c *Chip) FindLineInfo(name string) (Info, bool) {
	ci, err := c.Info()
	if err != nil {
		return Info{}, false
	}
	for o := Offset(0); o < ci.NumLines; o++ {
		if info, err := c.LineInfo(o); err == nil && info.Name == name {
			return info, true
		}
	}
	return Info{}, false
}

// WatchLineInfo starts watching the line for info changes, and returns the
// current info.
//
// Watching a line that is already watched is not an error.
func (c *Chip) WatchLineInfo(offset Offset) (Info, error) {
	info, err := c.lineInfo(offset, UapiWatchLineInfo)
	if errors.Is(err, unix.EBUSY) {
		return c.LineInfo(offset)
	}
	return info, err
}

// UnwatchLineInfo stops watching the line for info changes.
//
// Unwatching a line that is not watched is not an error.
func (c *Chip) UnwatchLineInfo(offset Offset) error {
	err := uapi.UnwatchLineInfo(c.Fd(), offset)
	if err == nil || err == unix.EBUSY {
		return nil
	}
	return newUapiError(UapiUnwatchLineInfo, err)
}

// HasLineInfoChangeEvent returns true if an info change event is available
// to read without blocking.
func (c *Chip) HasLineInfoChangeEvent() (bool, error) {
	ok, err := uapi.HasEvent(c.Fd())
	if err != nil {
		return false, newUapiError(UapiHasEvent, err)
	}
	return ok, nil
}

// WaitLineInfoChangeEvent waits up to the timeout for an info change event
// to become available, returning true if one is available.
func (c *Chip) WaitLineInfoChangeEvent(timeout time.Duration) (bool, error) {
	ok, err := uapi.WaitEvent(c.Fd(), timeout)
	if err != nil {
		return false, newUapiError(UapiWaitEvent, err)
	}
	return ok, nil
}

// ReadLineInfoChangeEvent reads a single info change event, blocking until
// one is available.
//
// Panics if the kernel returns a partial event.
func (c *Chip) ReadLineInfoChangeEvent() (InfoChangeEvent, error) {
	if _, err := c.AbiVersion(); err != nil {
		return InfoChangeEvent{}, err
	}
	var ice InfoChangeEvent
	size := c.LineInfoChangeEventSize()
	err := withScratch(size, func(buf []byte) error {
		n, err := uapi.ReadEvent(c.Fd(), buf)
		if err != nil {
			return newUapiError(UapiReadEvent, err)
		}
		if n != size {
			panic(fmt.Sprintf("read %d bytes for a %d byte info change event", n, size))
		}
		ice, err = c.LineInfoChangeEventFromBuf(buf)
		return err
	})
	return ice, err
}

// LineInfoChangeEventSize returns the size of an info change event read
// from the chip.
//
// If the ABI version has not been determined then v2 is assumed.
func (c *Chip) LineInfoChangeEventSize() int {
	if c.abiv == AbiV1 {
		return v1.LineInfoChangeEventSize
	}
	return v2.LineInfoChangeEventSize
}

// LineInfoChangeEventFromBuf decodes an info change event read from the
// chip.
func (c *Chip) LineInfoChangeEventFromBuf(buf []byte) (InfoChangeEvent, error) {
	abiv, err := c.AbiVersion()
	if err != nil {
		return InfoChangeEvent{}, err
	}
	if abiv == AbiV1 {
		ice, err := v1.LineInfoChangeEventFromBuf(buf)
		if err != nil {
			return InfoChangeEvent{}, newUapiError(UapiLineInfoChangeEventFromBuf, err)
		}
		return newInfoChangeEventFromV1(&ice), nil
	}
	ice, err := v2.LineInfoChangeEventFromBuf(buf)
	if err != nil {
		return InfoChangeEvent{}, newUapiError(UapiLineInfoChangeEventFromBuf, err)
	}
	e, err := newInfoChangeEventFromV2(&ice)
	if err != nil {
		return InfoChangeEvent{}, newUapiError(UapiLineInfoChangeEventFromBuf, err)
	}
	return e, nil
}

// InfoChangeEvents returns an iterator over the info change events of the
// chip.
func (c *Chip) InfoChangeEvents() *InfoChangeIterator {
	return &InfoChangeIterator{chip: c}
}

// InfoChangeIterator reads info change events from a chip, one event per
// call.
//
// The sequence never ends, as the chip has no end of stream.
type InfoChangeIterator struct {
	chip *Chip
	buf  []byte
}

// Next blocks until the next info change event is available and returns it.
//
// Panics if the kernel returns a partial event.
func (it *InfoChangeIterator) Next() (InfoChangeEvent, error) {
	if _, err := it.chip.AbiVersion(); err != nil {
		return InfoChangeEvent{}, err
	}
	size := it.chip.LineInfoChangeEventSize()
	if len(it.buf) != size {
		it.buf = make([]byte, size)
	}
	n, err := uapi.ReadEvent(it.chip.Fd(), it.buf)
	if err != nil {
		return InfoChangeEvent{}, newUapiError(UapiReadEvent, err)
	}
	if n != size {
		panic(fmt.Sprintf("read %d bytes for a %d byte info change event", n, size))
	}
	return it.chip.LineInfoChangeEventFromBuf(it.buf)
}

// RequestLines requests the lines in the config from the chip.
//
// The config need not specify the chip, but if it does it must be this chip.
func (c *Chip) RequestLines(cfg *Config, options ...BuilderOption) (*Request, error) {
	if cfg.chip != "" && cfg.chip != c.path {
		p, err := IsChip(cfg.chip)
		if err != nil || p != c.path {
			return nil, invalidArgument("multiple chips requested")
		}
	}
	b := NewBuilder(options...)
	b.WithConfig(cfg)
	b.cfg.chip = c.path
	return b.requestOn(c)
}
