// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

package gpiolib

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/warthog618/go-gpiolib/logging"
	"github.com/warthog618/go-gpiolib/uapi"
	v1 "github.com/warthog618/go-gpiolib/uapi/v1"
	v2 "github.com/warthog618/go-gpiolib/uapi/v2"
)

// Builder builds a request for a set of lines on a chip.
//
// Most mutators pass through to the contained Config.  Errors detected while
// building, such as requesting lines from multiple chips, are deferred until
// Request is called.
type Builder struct {
	cfg                   Config
	consumer              string
	kernelEventBufferSize uint32
	userEventBufferSize   int
	abiv                  AbiVersion
	err                   error
}

// NewBuilder creates a Builder with an empty config.
func NewBuilder(options ...BuilderOption) *Builder {
	b := &Builder{}
	for _, option := range options {
		option.applyBuilderOption(b)
	}
	return b
}

// Request requests the lines from the chip.
func (b *Builder) Request() (*Request, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.cfg.chip == "" {
		return nil, invalidArgument("no chip specified")
	}
	c, err := NewChip(b.cfg.chip, WithAbiVersion(b.abiv))
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return b.requestOn(c)
}

// WithOptions applies the options to the builder.
func (b *Builder) WithOptions(options ...BuilderOption) *Builder {
	for _, option := range options {
		option.applyBuilderOption(b)
	}
	return b
}

// WithConfig replaces the config of the request.
func (b *Builder) WithConfig(cfg *Config) *Builder {
	chip := b.cfg.chip
	b.cfg = cfg.Clone()
	if b.cfg.chip == "" {
		b.cfg.chip = chip
	} else if chip != "" && chip != b.cfg.chip {
		b.err = invalidArgument("multiple chips requested")
	}
	return b
}

// Config returns a snapshot of the config of the request.
func (b *Builder) Config() Config {
	return b.cfg.Clone()
}

// OnChip sets the chip from which the lines are requested.
//
// The builder locks to the first chip provided.  Providing a different chip
// later results in an error when Request is called.
func (b *Builder) OnChip(path string) *Builder {
	if b.cfg.chip == "" {
		b.cfg.OnChip(path)
	} else if b.cfg.chip != path {
		b.err = invalidArgument("multiple chips requested")
	}
	return b
}

// AsInput sets the selected lines to inputs.
func (b *Builder) AsInput() *Builder {
	b.cfg.AsInput()
	return b
}

// AsOutput sets the selected lines to outputs with the given value.
func (b *Builder) AsOutput(v Value) *Builder {
	b.cfg.AsOutput(v)
	return b
}

// AsIs leaves the direction of the selected lines unchanged.
func (b *Builder) AsIs() *Builder {
	b.cfg.AsIs()
	return b
}

// AsActiveLow sets the selected lines to active low.
func (b *Builder) AsActiveLow() *Builder {
	b.cfg.AsActiveLow()
	return b
}

// AsActiveHigh sets the selected lines to active high.
func (b *Builder) AsActiveHigh() *Builder {
	b.cfg.AsActiveHigh()
	return b
}

// WithBias sets the bias of the selected lines.
func (b *Builder) WithBias(bias Bias) *Builder {
	b.cfg.WithBias(bias)
	return b
}

// WithDebouncePeriod sets the debounce period of the selected lines.
func (b *Builder) WithDebouncePeriod(period time.Duration) *Builder {
	b.cfg.WithDebouncePeriod(period)
	return b
}

// WithDirection sets the direction of the selected lines.
func (b *Builder) WithDirection(d Direction) *Builder {
	b.cfg.WithDirection(d)
	return b
}

// WithDrive sets the drive of the selected lines.
func (b *Builder) WithDrive(d Drive) *Builder {
	b.cfg.WithDrive(d)
	return b
}

// WithEdgeDetection sets the edge detection of the selected lines.
func (b *Builder) WithEdgeDetection(e EdgeDetection) *Builder {
	b.cfg.WithEdgeDetection(e)
	return b
}

// WithEventClock sets the event clock of the selected lines.
func (b *Builder) WithEventClock(ec EventClock) *Builder {
	b.cfg.WithEventClock(ec)
	return b
}

// WithValue sets the value of the selected lines.
func (b *Builder) WithValue(v Value) *Builder {
	b.cfg.WithValue(v)
	return b
}

// FromLineConfig replaces the config of the selected lines.
func (b *Builder) FromLineConfig(lc LineConfig) *Builder {
	b.cfg.FromLineConfig(lc)
	return b
}

// WithLine adds the line to the request and selects it.
func (b *Builder) WithLine(offset Offset) *Builder {
	b.cfg.WithLine(offset)
	return b
}

// WithLines adds the lines to the request and selects them.
func (b *Builder) WithLines(offsets ...Offset) *Builder {
	b.cfg.WithLines(offsets...)
	return b
}

// WithoutLine removes the line from the request.
func (b *Builder) WithoutLine(offset Offset) *Builder {
	b.cfg.WithoutLine(offset)
	return b
}

// WithoutLines removes the lines from the request.
func (b *Builder) WithoutLines(offsets ...Offset) *Builder {
	b.cfg.WithoutLines(offsets...)
	return b
}

// WithOutputLines adds the lines in values to the request as outputs.
func (b *Builder) WithOutputLines(values *Values) *Builder {
	b.cfg.WithOutputLines(values)
	return b
}

func defaultConsumer() string {
	return fmt.Sprintf("gpiolib-p%d", os.Getpid())
}

// requestOn performs the request on an open chip.
func (b *Builder) requestOn(c *Chip) (*Request, error) {
	if b.err != nil {
		return nil, b.err
	}
	cfg := b.cfg.Clone()
	if len(cfg.offsets) == 0 {
		return nil, invalidArgument("no lines specified")
	}
	if len(cfg.offsets) > uapi.LinesMax {
		return nil, invalidArgumentf("requested %d lines is greater than the maximum of %d",
			len(cfg.offsets), uapi.LinesMax)
	}
	sort.Slice(cfg.offsets, func(i, j int) bool { return cfg.offsets[i] < cfg.offsets[j] })
	consumer := b.consumer
	if consumer == "" {
		consumer = defaultConsumer()
	}
	name, err := uapi.NewName(consumer)
	if err != nil {
		return nil, invalidArgument(err.Error())
	}
	abiv := b.abiv
	if abiv == 0 {
		if abiv, err = c.AbiVersion(); err != nil {
			return nil, err
		}
	}
	var fd int
	switch abiv {
	case AbiV1:
		fd, err = b.requestV1(c, &cfg, name)
	case AbiV2:
		fd, err = b.requestV2(c, &cfg, name)
	default:
		err = AbiSupportError{Version: abiv, Kind: AbiSupportBuild}
	}
	if err != nil {
		return nil, err
	}
	logging.Debugf("requested lines %v from %s using %s", cfg.offsets, c.path, abiv)
	ubs := b.userEventBufferSize
	if ubs < 1 {
		ubs = 1
	}
	cfg.chip = c.path
	cfg.selected = nil
	return &Request{
		fd:                  fd,
		chipPath:            c.path,
		offsets:             append([]Offset(nil), cfg.offsets...),
		abiv:                abiv,
		userEventBufferSize: ubs,
		cfg:                 cfg,
	}, nil
}

func (b *Builder) requestV1(c *Chip, cfg *Config, consumer uapi.Name) (int, error) {
	if b.kernelEventBufferSize != 0 {
		return 0, AbiLimitationError{AbiV1, "does not support setting event buffer size"}
	}
	lc, err := cfg.unique()
	if err != nil {
		return 0, err
	}
	if lc.DebouncePeriod != 0 {
		return 0, AbiLimitationError{AbiV1, "does not support debounce"}
	}
	if lc.EventClock != EventClockUnset {
		return 0, AbiLimitationError{AbiV1, "does not support selecting the event clock source"}
	}
	if lc.EdgeDetection != EdgeDetectionUnset {
		if len(cfg.offsets) != 1 {
			return 0, AbiLimitationError{AbiV1, "only supports edge detection on single line requests"}
		}
		er := v1.EventRequest{
			Offset:      cfg.offsets[0],
			HandleFlags: lc.toV1HandleFlags(),
			EventFlags:  lc.toV1EventFlags(),
			Consumer:    consumer,
		}
		fd, err := v1.GetLineEvent(c.Fd(), &er)
		if err != nil {
			return 0, newUapiError(UapiGetLineEvent, err)
		}
		return fd, nil
	}
	offsets, err := uapi.NewOffsets(cfg.offsets)
	if err != nil {
		return 0, invalidArgument(err.Error())
	}
	hr := v1.HandleRequest{
		Offsets:  offsets,
		Flags:    lc.toV1HandleFlags(),
		Values:   cfg.toV1Values(),
		Consumer: consumer,
		NumLines: uint32(len(cfg.offsets)),
	}
	fd, err := v1.GetLineHandle(c.Fd(), &hr)
	if err != nil {
		return 0, newUapiError(UapiGetLineHandle, err)
	}
	return fd, nil
}

func (b *Builder) requestV2(c *Chip, cfg *Config, consumer uapi.Name) (int, error) {
	lcfg, err := cfg.toV2()
	if err != nil {
		return 0, err
	}
	offsets, err := uapi.NewOffsets(cfg.offsets)
	if err != nil {
		return 0, invalidArgument(err.Error())
	}
	lr := v2.LineRequest{
		Offsets:         offsets,
		Consumer:        consumer,
		Config:          lcfg,
		NumLines:        uint32(len(cfg.offsets)),
		EventBufferSize: b.kernelEventBufferSize,
	}
	fd, err := v2.GetLine(c.Fd(), &lr)
	if err != nil {
		return 0, newUapiError(UapiGetLine, err)
	}
	return fd, nil
}
