// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

package gpiolib_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpiocdev"
	gpiolib "github.com/warthog618/go-gpiolib"
	"github.com/warthog618/go-gpiolib/gpiosim"
)

const eventWaitTimeout = 100 * time.Millisecond

var abiVersions = []gpiolib.AbiVersion{gpiolib.AbiV1, gpiolib.AbiV2}

func newSim(t *testing.T) *gpiosim.Sim {
	t.Helper()
	s, err := gpiosim.NewSim(
		gpiosim.WithBank(gpiosim.NewBank("gpiolib_test", 8,
			gpiosim.WithNamedLine(3, "LED0"),
			gpiosim.WithNamedLine(5, "BUTTON1"),
			gpiosim.WithHoggedLine(2, "piggy", gpiosim.HogDirectionOutputHigh),
		)),
	)
	require.Nil(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewChip(t *testing.T) {
	s := newSim(t)
	sc := &s.Chips[0]

	c, err := gpiolib.NewChip(sc.DevPath())
	require.Nil(t, err)
	assert.Equal(t, sc.DevPath(), c.Path())
	assert.Equal(t, sc.ChipName(), c.Name())

	ci, err := c.Info()
	require.Nil(t, err)
	assert.Equal(t, sc.ChipName(), ci.Name)
	assert.Equal(t, "gpiolib_test", ci.Label)
	assert.Equal(t, uint32(8), ci.NumLines)

	assert.Nil(t, c.Close())
	assert.ErrorIs(t, c.Close(), gpiolib.ErrClosed)

	c, err = gpiolib.NewChipByName(sc.ChipName())
	require.Nil(t, err)
	assert.Equal(t, sc.DevPath(), c.Path())
	c.Close()
}

func TestNewChipSymlink(t *testing.T) {
	s := newSim(t)
	sc := &s.Chips[0]

	link := filepath.Join(t.TempDir(), "gpiolib_link")
	require.Nil(t, os.Symlink(sc.DevPath(), link))
	p, err := gpiolib.IsChip(link)
	require.Nil(t, err)
	assert.Equal(t, sc.DevPath(), p)

	c, err := gpiolib.NewChip(link)
	require.Nil(t, err)
	assert.Equal(t, sc.DevPath(), c.Path())
	c.Close()
}

func TestIsChip(t *testing.T) {
	_, err := gpiolib.IsChip("/dev/nonexistent_gpiochip")
	assert.ErrorIs(t, err, os.ErrNotExist)

	var gce gpiolib.GpioChipError
	_, err = gpiolib.IsChip(t.TempDir())
	require.ErrorAs(t, err, &gce)
	assert.Equal(t, gpiolib.NotCharacterDevice, gce.Kind)

	_, err = gpiolib.IsChip("/dev/null")
	require.ErrorAs(t, err, &gce)
	assert.Equal(t, gpiolib.NotGpioDevice, gce.Kind)
	assert.Equal(t, "/dev/null", gce.Path)

	_, err = gpiolib.NewChip("/dev/null")
	assert.ErrorAs(t, err, &gce)
}

func TestChips(t *testing.T) {
	s := newSim(t)

	cc, err := gpiolib.Chips()
	require.Nil(t, err)
	assert.Contains(t, cc, s.Chips[0].DevPath())
	for i := 1; i < len(cc); i++ {
		assert.NotEqual(t, cc[i-1], cc[i])
	}
}

func TestDetectAbiVersion(t *testing.T) {
	s := newSim(t)

	c, err := gpiolib.NewChip(s.Chips[0].DevPath())
	require.Nil(t, err)
	defer c.Close()

	abiv, err := c.DetectAbiVersion()
	require.Nil(t, err)
	assert.Equal(t, gpiolib.AbiV2, abiv)
	abiv, err = c.AbiVersion()
	require.Nil(t, err)
	assert.Equal(t, gpiolib.AbiV2, abiv)

	assert.Nil(t, c.SupportsAbiVersion(gpiolib.AbiV2))
	var ase gpiolib.AbiSupportError
	require.ErrorAs(t, c.SupportsAbiVersion(gpiolib.AbiVersion(3)), &ase)
	assert.Equal(t, gpiolib.AbiSupportBuild, ase.Kind)

	abiv, err = gpiolib.DetectAbiVersion()
	require.Nil(t, err)
	assert.Equal(t, gpiolib.AbiV2, abiv)
}

func TestLineInfo(t *testing.T) {
	s := newSim(t)

	for _, abiv := range abiVersions {
		t.Run(abiv.String(), func(t *testing.T) {
			c, err := gpiolib.NewChip(s.Chips[0].DevPath(), gpiolib.WithAbiVersion(abiv))
			require.Nil(t, err)
			defer c.Close()

			info, err := c.LineInfo(3)
			require.Nil(t, err)
			assert.Equal(t, gpiolib.Offset(3), info.Offset)
			assert.Equal(t, "LED0", info.Name)
			assert.False(t, info.Used)
			assert.Equal(t, gpiolib.DirectionInput, info.Direction)

			info, err = c.LineInfo(2)
			require.Nil(t, err)
			assert.True(t, info.Used)
			assert.Equal(t, "piggy", info.Consumer)
			assert.Equal(t, gpiolib.DirectionOutput, info.Direction)
			assert.Equal(t, gpiolib.DrivePushPull, info.Drive)

			_, err = c.LineInfo(8)
			var ue gpiolib.UapiError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, gpiolib.UapiGetLineInfo, ue.Call)

			ii, err := c.LineInfos()
			require.Nil(t, err)
			require.Len(t, ii, 8)
			for i, info := range ii {
				assert.Equal(t, gpiolib.Offset(i), info.Offset)
			}

			info, ok := c.FindLineInfo("BUTTON1")
			assert.True(t, ok)
			assert.Equal(t, gpiolib.Offset(5), info.Offset)
			_, ok = c.FindLineInfo("nonexistent")
			assert.False(t, ok)
		})
	}
}

func TestLineInfoRequested(t *testing.T) {
	s := newSim(t)

	for _, abiv := range abiVersions {
		t.Run(abiv.String(), func(t *testing.T) {
			c, err := gpiolib.NewChip(s.Chips[0].DevPath(), gpiolib.WithAbiVersion(abiv))
			require.Nil(t, err)
			defer c.Close()

			var cfg gpiolib.Config
			cfg.WithLine(4).AsOutput(gpiolib.Active).
				AsActiveLow().
				WithDrive(gpiolib.DriveOpenDrain).
				WithBias(gpiolib.BiasPullUp)
			req, err := c.RequestLines(&cfg, gpiolib.WithConsumer("gpiolib_test"))
			require.Nil(t, err)
			defer req.Close()

			info, err := c.LineInfo(4)
			require.Nil(t, err)
			assert.True(t, info.Used)
			assert.Equal(t, "gpiolib_test", info.Consumer)
			assert.True(t, info.ActiveLow)
			assert.Equal(t, gpiolib.DirectionOutput, info.Direction)
			assert.Equal(t, gpiolib.DriveOpenDrain, info.Drive)
			assert.Equal(t, gpiolib.BiasPullUp, info.Bias)
		})
	}
}

func TestWatchLineInfo(t *testing.T) {
	s := newSim(t)

	for _, abiv := range abiVersions {
		t.Run(abiv.String(), func(t *testing.T) {
			c, err := gpiolib.NewChip(s.Chips[0].DevPath(), gpiolib.WithAbiVersion(abiv))
			require.Nil(t, err)
			defer c.Close()

			offset := gpiolib.Offset(3)
			info, err := c.WatchLineInfo(offset)
			require.Nil(t, err)
			assert.False(t, info.Used)

			// already watched
			_, err = c.WatchLineInfo(offset)
			assert.Nil(t, err)

			ok, err := c.HasLineInfoChangeEvent()
			require.Nil(t, err)
			assert.False(t, ok)

			req, err := gpiolib.NewBuilder(gpiolib.WithAbiVersion(abiv)).
				OnChip(c.Path()).
				WithLine(offset).
				AsInput().
				Request()
			require.Nil(t, err)

			ok, err = c.WaitLineInfoChangeEvent(eventWaitTimeout)
			require.Nil(t, err)
			require.True(t, ok)
			evt, err := c.ReadLineInfoChangeEvent()
			require.Nil(t, err)
			assert.Equal(t, gpiolib.InfoChangeRequested, evt.Kind)
			assert.Equal(t, offset, evt.Info.Offset)
			assert.True(t, evt.Info.Used)
			assert.NotZero(t, evt.TimestampNs)

			var cfg gpiolib.Config
			cfg.AsOutput(gpiolib.Active)
			require.Nil(t, req.Reconfigure(&cfg))

			it := c.InfoChangeEvents()
			evt, err = it.Next()
			require.Nil(t, err)
			assert.Equal(t, gpiolib.InfoChangeReconfigured, evt.Kind)
			assert.Equal(t, gpiolib.DirectionOutput, evt.Info.Direction)

			require.Nil(t, req.Close())
			evt, err = it.Next()
			require.Nil(t, err)
			assert.Equal(t, gpiolib.InfoChangeReleased, evt.Kind)
			assert.False(t, evt.Info.Used)

			require.Nil(t, c.UnwatchLineInfo(offset))
			// not watched
			assert.Nil(t, c.UnwatchLineInfo(offset))

			req, err = gpiolib.NewBuilder(gpiolib.WithAbiVersion(abiv)).
				OnChip(c.Path()).
				WithLine(offset).
				AsInput().
				Request()
			require.Nil(t, err)
			req.Close()
			ok, err = c.WaitLineInfoChangeEvent(eventWaitTimeout)
			require.Nil(t, err)
			assert.False(t, ok)
		})
	}
}

func TestRequestLinesWrongChip(t *testing.T) {
	s := newSim(t)

	c, err := gpiolib.NewChip(s.Chips[0].DevPath())
	require.Nil(t, err)
	defer c.Close()

	var cfg gpiolib.Config
	cfg.OnChip("/dev/null").WithLine(1)
	_, err = c.RequestLines(&cfg)
	assert.ErrorIs(t, err, gpiolib.ErrInvalidArgument)
}

func TestChipCrossCheck(t *testing.T) {
	s := newSim(t)
	sc := &s.Chips[0]

	gc, err := gpiocdev.NewChip(sc.ChipName())
	require.Nil(t, err)
	defer gc.Close()

	c, err := gpiolib.NewChip(sc.DevPath())
	require.Nil(t, err)
	defer c.Close()

	ci, err := c.Info()
	require.Nil(t, err)
	assert.Equal(t, gc.Name, ci.Name)
	assert.Equal(t, gc.Label, ci.Label)
	assert.Equal(t, gc.Lines(), int(ci.NumLines))

	for o := 0; o < gc.Lines(); o++ {
		xinfo, err := gc.LineInfo(o)
		require.Nil(t, err)
		info, err := c.LineInfo(gpiolib.Offset(o))
		require.Nil(t, err)
		assert.Equal(t, xinfo.Name, info.Name)
		assert.Equal(t, xinfo.Consumer, info.Consumer)
		assert.Equal(t, xinfo.Used, info.Used)
		assert.Equal(t, xinfo.Config.Direction == gpiocdev.LineDirectionOutput,
			info.Direction == gpiolib.DirectionOutput)
	}
}
