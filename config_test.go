// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

package gpiolib

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	v1 "github.com/warthog618/go-gpiolib/uapi/v1"
	v2 "github.com/warthog618/go-gpiolib/uapi/v2"
)

func TestConfigBase(t *testing.T) {
	var cfg Config
	cfg.AsOutput(Active).WithDrive(DriveOpenDrain)
	lc := cfg.base
	assert.Equal(t, DirectionOutput, lc.Direction)
	assert.Equal(t, DriveOpenDrain, lc.Drive)
	assert.Equal(t, Active, lc.Value)
	assert.Equal(t, 0, cfg.NumLines())

	// lines added after the base is set inherit it
	cfg.WithLines(3, 1)
	lc, ok := cfg.LineConfig(1)
	require.True(t, ok)
	assert.Equal(t, DirectionOutput, lc.Direction)
	assert.Equal(t, []Offset{3, 1}, cfg.Lines())

	// selected lines are changed, not the base
	cfg.AsInput()
	lc, _ = cfg.LineConfig(3)
	assert.Equal(t, DirectionInput, lc.Direction)
	assert.Equal(t, DriveUnset, lc.Drive)
	assert.Equal(t, DirectionOutput, cfg.base.Direction)

	_, ok = cfg.LineConfig(2)
	assert.False(t, ok)
}

func TestConfigDirectionSideEffects(t *testing.T) {
	var cfg Config
	cfg.WithLine(1).WithEdgeDetection(EdgeDetectionBoth).WithDebouncePeriod(time.Millisecond)
	lc, _ := cfg.LineConfig(1)
	assert.Equal(t, DirectionInput, lc.Direction)
	assert.Equal(t, EdgeDetectionBoth, lc.EdgeDetection)
	assert.Equal(t, time.Millisecond, lc.DebouncePeriod)

	cfg.WithDrive(DrivePushPull)
	lc, _ = cfg.LineConfig(1)
	assert.Equal(t, DirectionOutput, lc.Direction)
	assert.Equal(t, EdgeDetectionUnset, lc.EdgeDetection)
	assert.Zero(t, lc.DebouncePeriod)

	cfg.WithDirection(DirectionInput)
	lc, _ = cfg.LineConfig(1)
	assert.Equal(t, DriveUnset, lc.Drive)

	cfg.AsIs()
	lc, _ = cfg.LineConfig(1)
	assert.Equal(t, DirectionUnset, lc.Direction)
}

func TestConfigWithOutputLines(t *testing.T) {
	var cfg Config
	cfg.WithLine(4).AsInput()
	values := NewValues(LineValue{2, Active}, LineValue{4, Inactive})
	cfg.WithOutputLines(&values)
	for _, lv := range values.LineValues() {
		lc, ok := cfg.LineConfig(lv.Offset)
		require.True(t, ok)
		assert.Equal(t, DirectionOutput, lc.Direction)
		assert.Equal(t, lv.Value, lc.Value)
	}
	assert.Equal(t, 2, cfg.NumLines())
}

func TestConfigWithoutLines(t *testing.T) {
	var cfg Config
	cfg.WithLines(1, 2, 3).WithoutLine(2)
	assert.Equal(t, []Offset{1, 3}, cfg.Lines())
	cfg.WithoutLines(1, 3, 5)
	assert.Empty(t, cfg.Lines())
	assert.Equal(t, 0, cfg.NumLines())
}

func TestConfigClone(t *testing.T) {
	var cfg Config
	cfg.OnChip("/dev/gpiochip0").WithLines(1, 2).AsInput()
	cc := cfg.Clone()
	cc.WithLine(1).AsOutput(Active)
	lc, _ := cfg.LineConfig(1)
	assert.Equal(t, DirectionInput, lc.Direction)
	assert.Equal(t, "/dev/gpiochip0", cc.Chip())
}

func TestConfigOverlay(t *testing.T) {
	var base Config
	base.WithLines(1, 2, 3).AsInput()
	var top Config
	top.WithLines(2, 7).AsOutput(Active)

	cfg := base.overlay(&top)
	assert.Equal(t, []Offset{1, 2, 3}, cfg.Lines())
	lc, _ := cfg.LineConfig(1)
	assert.Equal(t, DirectionInput, lc.Direction)
	lc, _ = cfg.LineConfig(2)
	assert.Equal(t, DirectionOutput, lc.Direction)
	_, ok := cfg.LineConfig(7)
	assert.False(t, ok)
}

func TestConfigToV1(t *testing.T) {
	var cfg Config
	_, err := cfg.toV1()
	assert.ErrorIs(t, err, ErrInvalidArgument)

	cfg.WithLines(3, 5).AsOutput(Active).AsActiveLow().WithBias(BiasPullUp).WithDrive(DriveOpenSource)
	cfg.WithLine(5).WithValue(Inactive)
	hc, err := cfg.toV1()
	require.Nil(t, err)
	assert.Equal(t,
		v1.HandleRequestOutput|v1.HandleRequestActiveLow|
			v1.HandleRequestBiasPullUp|v1.HandleRequestOpenSource,
		hc.Flags)
	assert.Equal(t, uint8(1), hc.Values.Get(0))
	assert.Equal(t, uint8(0), hc.Values.Get(1))

	cfg.WithLine(3).WithBias(BiasPullDown)
	_, err = cfg.toV1()
	var ale AbiLimitationError
	require.ErrorAs(t, err, &ale)
	assert.Equal(t, AbiV1, ale.Version)
}

func TestConfigToV2(t *testing.T) {
	var cfg Config
	_, err := cfg.toV2()
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// uniform config needs no attributes
	cfg.WithLines(1, 2, 3).AsInput().WithBias(BiasPullUp)
	lcfg, err := cfg.toV2()
	require.Nil(t, err)
	assert.Equal(t, v2.LineFlagInput|v2.LineFlagBiasPullUp, lcfg.Flags)
	assert.Zero(t, lcfg.NumAttrs)

	// the most common flags become the base
	cfg.WithLine(3).AsOutput(Active)
	lcfg, err = cfg.toV2()
	require.Nil(t, err)
	assert.Equal(t, v2.LineFlagInput|v2.LineFlagBiasPullUp, lcfg.Flags)
	require.Equal(t, uint32(2), lcfg.NumAttrs)
	assert.Equal(t, v2.NewFlagsAttribute(v2.LineFlagOutput|v2.LineFlagBiasPullUp), lcfg.Attrs[0].Attr)
	assert.Equal(t, v2.LineBitmap(0x4), lcfg.Attrs[0].Mask)
	assert.Equal(t, v2.NewOutputValuesAttribute(0x4), lcfg.Attrs[1].Attr)
	assert.Equal(t, v2.LineBitmap(0x4), lcfg.Attrs[1].Mask)

	// debounce only applies to inputs, rounded up to microseconds
	cfg.WithLines(1, 2).WithDebouncePeriod(1500 * time.Nanosecond)
	lcfg, err = cfg.toV2()
	require.Nil(t, err)
	require.Equal(t, uint32(3), lcfg.NumAttrs)
	assert.Equal(t, v2.NewDebounceAttribute(2), lcfg.Attrs[2].Attr)
	assert.Equal(t, v2.LineBitmap(0x3), lcfg.Attrs[2].Mask)
}

func TestConfigToV2EventClock(t *testing.T) {
	var cfg Config
	cfg.WithLine(1).AsInput().WithEventClock(EventClockRealtime)
	lcfg, err := cfg.toV2()
	require.Nil(t, err)
	// clock ignored without edge detection
	assert.Equal(t, v2.LineFlagInput, lcfg.Flags)

	cfg.WithEdgeDetection(EdgeDetectionRising)
	lcfg, err = cfg.toV2()
	require.Nil(t, err)
	assert.Equal(t, v2.LineFlagInput|v2.LineFlagEdgeRising|v2.LineFlagEventClockRealtime, lcfg.Flags)
}

func TestConfigToV2TooManyAttrs(t *testing.T) {
	var cfg Config
	for o := Offset(0); o < 11; o++ {
		cfg.WithLine(o).AsInput().WithDebouncePeriod(time.Duration(o+1) * time.Microsecond)
	}
	_, err := cfg.toV2()
	var ale AbiLimitationError
	require.ErrorAs(t, err, &ale)
	assert.Equal(t, AbiV2, ale.Version)
	assert.Equal(t, "uAPI ABI v2 supports 10 attrs, configuration requires 11", err.Error())
}

func TestLineConfigFlags(t *testing.T) {
	lc := LineConfig{
		Direction:     DirectionInput,
		EdgeDetection: EdgeDetectionBoth,
		Bias:          BiasDisabled,
		Drive:         DriveOpenDrain,
	}
	// drive ignored for inputs
	assert.Equal(t, v1.HandleRequestInput|v1.HandleRequestBiasDisabled, lc.toV1HandleFlags())
	assert.Equal(t, v1.EventRequestBothEdges, lc.toV1EventFlags())
	assert.Equal(t,
		v2.LineFlagInput|v2.LineFlagBiasDisabled|v2.LineFlagEdgeRising|v2.LineFlagEdgeFalling,
		lc.toV2Flags())

	lc = LineConfig{Direction: DirectionOutput, Drive: DriveOpenDrain, EdgeDetection: EdgeDetectionRising}
	assert.Equal(t, v2.LineFlagOutput|v2.LineFlagOpenDrain, lc.toV2Flags())
	var zero LineConfig
	assert.Zero(t, zero.toV2Flags())
}
