// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiosim

import (
	"fmt"
	"path"

	"github.com/pkg/errors"
)

// Level is the physical level of a simulated line.
type Level int

const (
	// LevelInactive is a low line.
	LevelInactive Level = iota

	// LevelActive is a high line.
	LevelActive
)

// Not returns the opposite level.
func (l Level) Not() Level {
	if l == LevelInactive {
		return LevelActive
	}
	return LevelInactive
}

func (l Level) String() string {
	if l == LevelActive {
		return "active"
	}
	return "inactive"
}

// Chip is a live simulated gpiochip.
//
// Lines are identified by offset, in the range 0..Config().NumLines-1.
type Chip struct {
	// The path to the chip in /dev, e.g. "/dev/gpiochip0".
	devPath string

	// The name of the gpiochip in /dev and sysfs, e.g. "gpiochip0".
	chipName string

	// The path to the chip in /sys/devices/platform.
	sysfsPath string

	cfg Bank
}

// ChipName returns the name of the gpiochip, e.g. "gpiochip0".
func (c *Chip) ChipName() string {
	return c.chipName
}

// Config returns the bank the chip was built from.
func (c *Chip) Config() Bank {
	return c.cfg
}

// DevPath returns the path of the gpiochip device, e.g. "/dev/gpiochip0".
//
// This is the path to open to access the chip via the uAPI.
func (c *Chip) DevPath() string {
	return c.devPath
}

// Level returns the level of the line.
//
// For an output line this is the level userspace is driving it to.  For an
// input it follows the pull.
func (c *Chip) Level(offset Offset) (Level, error) {
	v, err := c.attr(offset, "value")
	if err != nil {
		return LevelInactive, err
	}
	switch v {
	case "0":
		return LevelInactive, nil
	case "1":
		return LevelActive, nil
	}
	return LevelInactive, errors.Errorf("unexpected level value: %s", v)
}

// Pull returns the current pull of the line.
func (c *Chip) Pull(offset Offset) (Level, error) {
	v, err := c.attr(offset, "pull")
	if err != nil {
		return LevelInactive, err
	}
	switch v {
	case "pull-down":
		return LevelInactive, nil
	case "pull-up":
		return LevelActive, nil
	}
	return LevelInactive, errors.Errorf("unexpected pull value: %s", v)
}

// Pulldown pulls the line down.
func (c *Chip) Pulldown(offset Offset) error {
	return c.SetPull(offset, LevelInactive)
}

// Pullup pulls the line up.
func (c *Chip) Pullup(offset Offset) error {
	return c.SetPull(offset, LevelActive)
}

// SetPull sets the pull of the line.
//
// For input lines with edge detection this generates an edge event if the
// level changes.
func (c *Chip) SetPull(offset Offset, level Level) error {
	pull := "pull-down"
	if level == LevelActive {
		pull = "pull-up"
	}
	return c.setAttr(offset, "pull", pull)
}

// Toggle flips the pull of the line.
func (c *Chip) Toggle(offset Offset) error {
	p, err := c.Pull(offset)
	if err != nil {
		return err
	}
	return c.SetPull(offset, p.Not())
}

func (c *Chip) linePath(offset Offset) string {
	return path.Join(c.sysfsPath, fmt.Sprintf("sim_gpio%d", offset))
}

func (c *Chip) attr(offset Offset, name string) (string, error) {
	if offset >= c.cfg.NumLines {
		return "", errors.Errorf("offset %d out of range", offset)
	}
	return readAttr(c.linePath(offset), name)
}

func (c *Chip) setAttr(offset Offset, name, value string) error {
	if offset >= c.cfg.NumLines {
		return errors.Errorf("offset %d out of range", offset)
	}
	return writeAttr(c.linePath(offset), name, value)
}
