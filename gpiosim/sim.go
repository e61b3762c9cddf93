// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiosim

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiolib/logging"
)

// Sim is a live simulator provided by gpio-sim.
//
// Each simulated chip is available through Chips, in the same order the banks
// were added to NewSim.
type Sim struct {
	// The name of the simulator in configfs and sysfs space.
	//
	// Only useful for debugging.
	Name string

	// The live chips.
	Chips []Chip

	// Path to the sim in configfs.
	configfsPath string

	// The banks, retained so Close can remove them after the chips are gone.
	banks []Bank
}

// NewSim constructs a live Sim from the options.
//
// The available options are [WithName] and [WithBank].  At least one bank
// must be provided.  If no name is provided then a unique name is
// generated.
func NewSim(options ...SimOption) (*Sim, error) {
	b := builder{}
	for _, o := range options {
		o.applySimOption(&b)
	}
	return b.live()
}

// Close takes the sim down, removing its gpio-sim configuration and the
// corresponding gpiochips.
//
// Lines requested from the chips are orphaned, not released.  Closing an
// already closed Sim does nothing.
func (s *Sim) Close() error {
	if s.configfsPath == "" {
		return nil
	}
	err := s.cleanupConfigfs()
	logging.Debugf("closed sim %s", s.Name)
	s.configfsPath = ""
	s.Chips = nil
	return err
}

func (s *Sim) bankPath(idx int) string {
	return path.Join(s.configfsPath, fmt.Sprintf("bank%d", idx))
}

// cleanupConfigfs removes all the gpio-sim configuration for the sim.
func (s *Sim) cleanupConfigfs() error {
	// not strictly necessary, but ensures the chips are gone before
	// tearing down the banks.
	err := writeAttr(s.configfsPath, "live", "0")
	for i, k := range s.banks {
		bp := s.bankPath(i)
		if _, err := os.Stat(bp); err != nil {
			continue
		}
		for o := range k.Hogs {
			lp := path.Join(bp, fmt.Sprintf("line%d", o))
			os.Remove(path.Join(lp, "hog"))
			os.Remove(lp)
		}
		for o := range k.Names {
			os.Remove(path.Join(bp, fmt.Sprintf("line%d", o)))
		}
		os.Remove(bp)
	}
	if rerr := os.Remove(s.configfsPath); err == nil {
		err = rerr
	}
	return err
}

// setupConfigfs writes the gpio-sim configuration for each bank.
func (s *Sim) setupConfigfs() error {
	for i, k := range s.banks {
		bp := s.bankPath(i)
		if err := os.MkdirAll(bp, 0755); err != nil {
			return err
		}
		if err := writeAttr(bp, "label", k.Label); err != nil {
			return err
		}
		if err := writeAttr(bp, "num_lines", fmt.Sprintf("%d", k.NumLines)); err != nil {
			return err
		}
		for o, n := range k.Names {
			lp := path.Join(bp, fmt.Sprintf("line%d", o))
			if err := os.Mkdir(lp, 0755); err != nil {
				return err
			}
			if err := writeAttr(lp, "name", n); err != nil {
				return err
			}
		}
		for o, h := range k.Hogs {
			hp := path.Join(bp, fmt.Sprintf("line%d", o), "hog")
			if err := os.MkdirAll(hp, 0755); err != nil {
				return err
			}
			if err := writeAttr(hp, "name", h.Consumer); err != nil {
				return err
			}
			if err := writeAttr(hp, "direction", h.Direction.String()); err != nil {
				return err
			}
		}
	}
	return nil
}

// builder collects the options for a sim.
type builder struct {
	// optional, generated if empty.
	name string

	banks []Bank
}

// live creates the gpio-sim configuration for the sim and takes it live.
func (b *builder) live() (*Sim, error) {
	if len(b.banks) == 0 {
		return nil, errors.New("no banks defined")
	}
	if len(b.name) == 0 {
		b.name = uniqueName()
	}
	configfsPath, err := findConfigfsPath()
	if err != nil {
		return nil, err
	}
	configfsPath = path.Join(configfsPath, b.name)
	if _, err := os.Stat(configfsPath); err == nil {
		return nil, errors.Errorf("sim with name '%s' already exists", b.name)
	}
	s := &Sim{Name: b.name, configfsPath: configfsPath, banks: b.banks}
	if err = s.setupConfigfs(); err == nil {
		err = writeAttr(s.configfsPath, "live", "1")
	}
	if err == nil {
		err = s.findChips()
	}
	if err != nil {
		s.Close()
		return nil, errors.Wrapf(err, "sim %s", b.name)
	}
	logging.Debugf("sim %s is live with %d chips", s.Name, len(s.Chips))
	return s, nil
}

// findChips locates the devices created for the banks of a live sim.
func (s *Sim) findChips() error {
	devName, err := readAttr(s.configfsPath, "dev_name")
	if err != nil {
		return err
	}
	for i, k := range s.banks {
		chipName, err := readAttr(s.bankPath(i), "chip_name")
		if err != nil {
			return err
		}
		devPath := path.Join("/dev", chipName)
		stat, err := os.Lstat(devPath)
		if err != nil {
			return err
		}
		if stat.Mode()&fs.ModeSymlink != 0 {
			return errors.Errorf("a symlink (%s) is masking GPIO device %s", devPath, chipName)
		}
		s.Chips = append(s.Chips, Chip{
			devPath:   devPath,
			chipName:  chipName,
			sysfsPath: path.Join("/sys/devices/platform", devName, chipName),
			cfg:       k,
		})
	}
	return nil
}

var simCounter uint32

// uniqueName returns a name for the sim built from the app name, PID and a
// counter.
//
// It can only clash with a sim explicitly given the same name.
func uniqueName() string {
	return fmt.Sprintf("%s-p%d-%d", appName(), os.Getpid(), atomic.AddUint32(&simCounter, 1))
}

// appName returns the name of the running executable, or "gpiosim" if that
// can't be determined.
func appName() string {
	str, err := os.Executable()
	if err != nil {
		return "gpiosim"
	}
	return path.Base(str)
}
