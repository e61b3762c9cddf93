// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

package gpiolib

import (
	"fmt"
	"time"

	v1 "github.com/warthog618/go-gpiolib/uapi/v1"
	v2 "github.com/warthog618/go-gpiolib/uapi/v2"
)

// Config is the configuration for the lines in a request.
//
// It contains a base LineConfig, and a LineConfig for each line.  The
// mutators apply to the selected lines, as selected by the most recent
// WithLine, WithLines or WithOutputLines, or to the base config if no lines
// have been selected yet.  Selecting a line for the first time adds it to
// the config with a copy of the base config.
//
// The zero value is an empty config ready to use.
type Config struct {
	chip     string
	base     LineConfig
	lcfg     map[Offset]LineConfig
	offsets  []Offset
	selected []Offset
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() Config {
	cc := Config{
		chip:     c.chip,
		base:     c.base,
		offsets:  append([]Offset(nil), c.offsets...),
		selected: append([]Offset(nil), c.selected...),
	}
	if c.lcfg != nil {
		cc.lcfg = make(map[Offset]LineConfig, len(c.lcfg))
		for o, lc := range c.lcfg {
			cc.lcfg[o] = lc
		}
	}
	return cc
}

// OnChip sets the path of the chip the lines belong to.
func (c *Config) OnChip(path string) *Config {
	c.chip = path
	return c
}

// Chip returns the path of the chip the lines belong to.
func (c *Config) Chip() string {
	return c.chip
}

// AsInput sets the selected lines to inputs.
func (c *Config) AsInput() *Config {
	return c.apply(func(lc *LineConfig) {
		lc.Direction = DirectionInput
		lc.Drive = DriveUnset
		lc.Value = Inactive
	})
}

// AsOutput sets the selected lines to outputs with the given value.
func (c *Config) AsOutput(v Value) *Config {
	return c.apply(func(lc *LineConfig) {
		lc.Direction = DirectionOutput
		lc.Value = v
		lc.EdgeDetection = EdgeDetectionUnset
		lc.DebouncePeriod = 0
	})
}

// AsIs leaves the direction of the selected lines as set by the kernel, and
// clears any direction specific settings.
func (c *Config) AsIs() *Config {
	return c.apply(func(lc *LineConfig) {
		lc.Direction = DirectionUnset
		lc.Drive = DriveUnset
		lc.Value = Inactive
		lc.EdgeDetection = EdgeDetectionUnset
		lc.DebouncePeriod = 0
	})
}

// AsActiveLow sets the selected lines to active low.
func (c *Config) AsActiveLow() *Config {
	return c.apply(func(lc *LineConfig) {
		lc.ActiveLow = true
	})
}

// AsActiveHigh sets the selected lines to active high.
func (c *Config) AsActiveHigh() *Config {
	return c.apply(func(lc *LineConfig) {
		lc.ActiveLow = false
	})
}

// WithBias sets the bias of the selected lines.
func (c *Config) WithBias(b Bias) *Config {
	return c.apply(func(lc *LineConfig) {
		lc.Bias = b
	})
}

// WithDebouncePeriod sets the debounce period of the selected lines, and
// sets them as inputs.
//
// A zero period disables debouncing.
func (c *Config) WithDebouncePeriod(period time.Duration) *Config {
	return c.apply(func(lc *LineConfig) {
		lc.DebouncePeriod = period
		lc.Direction = DirectionInput
		lc.Drive = DriveUnset
		lc.Value = Inactive
	})
}

// WithDirection sets the direction of the selected lines, clearing any
// settings that contradict the direction.
func (c *Config) WithDirection(d Direction) *Config {
	return c.apply(func(lc *LineConfig) {
		lc.Direction = d
		switch d {
		case DirectionOutput:
			lc.EdgeDetection = EdgeDetectionUnset
			lc.DebouncePeriod = 0
		case DirectionInput:
			lc.Drive = DriveUnset
			lc.Value = Inactive
		}
	})
}

// WithDrive sets the drive of the selected lines, and sets them as outputs.
func (c *Config) WithDrive(d Drive) *Config {
	return c.apply(func(lc *LineConfig) {
		lc.Drive = d
		lc.Direction = DirectionOutput
		lc.EdgeDetection = EdgeDetectionUnset
		lc.DebouncePeriod = 0
	})
}

// WithEdgeDetection sets the edge detection of the selected lines, and sets
// them as inputs.
func (c *Config) WithEdgeDetection(e EdgeDetection) *Config {
	return c.apply(func(lc *LineConfig) {
		lc.EdgeDetection = e
		lc.Direction = DirectionInput
		lc.Drive = DriveUnset
		lc.Value = Inactive
	})
}

// WithEventClock sets the clock used to timestamp edge events on the
// selected lines.
func (c *Config) WithEventClock(ec EventClock) *Config {
	return c.apply(func(lc *LineConfig) {
		lc.EventClock = ec
	})
}

// WithValue sets the value of the selected lines.
//
// Only relevant for outputs.
func (c *Config) WithValue(v Value) *Config {
	return c.apply(func(lc *LineConfig) {
		lc.Value = v
	})
}

// FromLineConfig replaces the config of the selected lines.
func (c *Config) FromLineConfig(cfg LineConfig) *Config {
	return c.apply(func(lc *LineConfig) {
		*lc = cfg
	})
}

// WithLine selects the line, adding it to the config if necessary.
func (c *Config) WithLine(offset Offset) *Config {
	c.selected = c.selected[:0]
	c.selectLine(offset)
	return c
}

// WithLines selects the lines, adding them to the config if necessary.
func (c *Config) WithLines(offsets ...Offset) *Config {
	c.selected = c.selected[:0]
	for _, o := range offsets {
		c.selectLine(o)
	}
	return c
}

// WithoutLine removes the line from the config.
func (c *Config) WithoutLine(offset Offset) *Config {
	c.removeLine(offset)
	return c
}

// WithoutLines removes the lines from the config.
func (c *Config) WithoutLines(offsets ...Offset) *Config {
	for _, o := range offsets {
		c.removeLine(o)
	}
	return c
}

// WithOutputLines selects the lines in values and sets them as outputs with
// the corresponding value.
func (c *Config) WithOutputLines(values *Values) *Config {
	c.selected = c.selected[:0]
	for _, lv := range values.lvs {
		c.selectLine(lv.Offset)
		lc := c.lcfg[lv.Offset]
		lc.Direction = DirectionOutput
		lc.Value = lv.Value
		lc.EdgeDetection = EdgeDetectionUnset
		lc.DebouncePeriod = 0
		c.lcfg[lv.Offset] = lc
	}
	return c
}

// LineConfig returns the config for the line, and false if the line is not
// in the config.
func (c *Config) LineConfig(offset Offset) (LineConfig, bool) {
	lc, ok := c.lcfg[offset]
	return lc, ok
}

// Lines returns the offsets of the lines in the config.
func (c *Config) Lines() []Offset {
	return append([]Offset(nil), c.offsets...)
}

// NumLines returns the number of lines in the config.
func (c *Config) NumLines() int {
	return len(c.lcfg)
}

func (c *Config) apply(fn func(lc *LineConfig)) *Config {
	if len(c.selected) == 0 {
		fn(&c.base)
		return c
	}
	for _, o := range c.selected {
		lc := c.lcfg[o]
		fn(&lc)
		c.lcfg[o] = lc
	}
	return c
}

func (c *Config) selectLine(offset Offset) {
	if c.lcfg == nil {
		c.lcfg = make(map[Offset]LineConfig)
	}
	if _, ok := c.lcfg[offset]; !ok {
		c.lcfg[offset] = c.base
		c.offsets = append(c.offsets, offset)
	}
	for _, o := range c.selected {
		if o == offset {
			return
		}
	}
	c.selected = append(c.selected, offset)
}

func (c *Config) removeLine(offset Offset) {
	delete(c.lcfg, offset)
	c.selected = removeOffset(c.selected, offset)
	c.offsets = removeOffset(c.offsets, offset)
}

func removeOffset(oo []Offset, offset Offset) []Offset {
	for i, o := range oo {
		if o == offset {
			return append(oo[:i], oo[i+1:]...)
		}
	}
	return oo
}

// overlay returns a config for the lines in c, taking the line config from
// top where top contains the line.
func (c *Config) overlay(top *Config) Config {
	cfg := Config{
		chip:    c.chip,
		base:    c.base,
		offsets: append([]Offset(nil), c.offsets...),
		lcfg:    make(map[Offset]LineConfig, len(c.offsets)),
	}
	for _, o := range c.offsets {
		if lc, ok := top.lcfg[o]; ok {
			cfg.lcfg[o] = lc
		} else {
			cfg.lcfg[o] = c.lcfg[o]
		}
	}
	return cfg
}

// unique returns the config shared by all lines.
//
// ABI v1 applies the same flags to all lines in a request.
func (c *Config) unique() (*LineConfig, error) {
	if len(c.offsets) == 0 {
		return nil, invalidArgument("no lines specified")
	}
	lc := c.lcfg[c.offsets[0]]
	for _, o := range c.offsets[1:] {
		olc := c.lcfg[o]
		if !lc.equivalent(&olc) {
			return nil, AbiLimitationError{AbiV1, "requires all lines to share the same configuration"}
		}
	}
	return &lc, nil
}

func (c *Config) toV1() (v1.HandleConfig, error) {
	lc, err := c.unique()
	if err != nil {
		return v1.HandleConfig{}, err
	}
	return v1.HandleConfig{
		Flags:  lc.toV1HandleFlags(),
		Values: c.toV1Values(),
	}, nil
}

func (c *Config) toV1Values() v1.LineValues {
	var lv v1.LineValues
	for idx, o := range c.offsets {
		lv.Set(idx, uint8(c.lcfg[o].Value))
	}
	return lv
}

type flagSet struct {
	flags v2.LineFlag
	mask  v2.LineBitmap
	count int
}

type debounceSet struct {
	periodUs uint32
	mask     v2.LineBitmap
}

func (c *Config) toV2() (v2.LineConfig, error) {
	var flagSets []flagSet
	var debounced []debounceSet
	var values v2.LineValues
	for idx, o := range c.offsets {
		lc := c.lcfg[o]
		bit := v2.LineBitmap(0).Set(idx, true)
		flags := lc.toV2Flags()
		found := false
		for i := range flagSets {
			if flagSets[i].flags == flags {
				flagSets[i].mask |= bit
				flagSets[i].count++
				found = true
				break
			}
		}
		if !found {
			flagSets = append(flagSets, flagSet{flags, bit, 1})
		}
		if lc.DebouncePeriod != 0 && lc.Direction == DirectionInput {
			dp := lc.debouncePeriodUs()
			found = false
			for i := range debounced {
				if debounced[i].periodUs == dp {
					debounced[i].mask |= bit
					found = true
					break
				}
			}
			if !found {
				debounced = append(debounced, debounceSet{dp, bit})
			}
		}
		if lc.Direction == DirectionOutput {
			values.Mask |= bit
			values.Bits = values.Bits.Set(idx, lc.Value == Active)
		}
	}
	if len(flagSets) == 0 {
		return v2.LineConfig{}, invalidArgument("no lines specified")
	}
	numAttrs := len(flagSets) - 1 + len(debounced)
	if values.Bits != 0 {
		numAttrs++
	}
	if numAttrs > v2.NumAttrsMax {
		return v2.LineConfig{}, AbiLimitationError{
			AbiV2,
			fmt.Sprintf("supports %d attrs, configuration requires %d", v2.NumAttrsMax, numAttrs),
		}
	}
	base := 0
	for i, fs := range flagSets {
		if fs.count > flagSets[base].count {
			base = i
		}
	}
	lcfg := v2.LineConfig{Flags: flagSets[base].flags}
	for i, fs := range flagSets {
		if i != base {
			lcfg.AddAttribute(v2.NewFlagsAttribute(fs.flags), fs.mask)
		}
	}
	if values.Bits != 0 {
		lcfg.AddAttribute(v2.NewOutputValuesAttribute(values.Bits), values.Mask)
	}
	for _, db := range debounced {
		lcfg.AddAttribute(v2.NewDebounceAttribute(db.periodUs), db.mask)
	}
	return lcfg, nil
}
