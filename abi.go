// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

package gpiolib

import (
	"fmt"
)

// AbiVersion identifies a version of the GPIO character device uAPI ABI.
//
// The zero value indicates the version has not been determined.
type AbiVersion int

const (
	// AbiV1 is the original uAPI, deprecated since Linux 5.10.
	AbiV1 AbiVersion = 1

	// AbiV2 is the current uAPI, available since Linux 5.10.
	AbiV2 AbiVersion = 2
)

func (v AbiVersion) String() string {
	return fmt.Sprintf("uAPI ABI v%d", int(v))
}

// DetectAbiVersion returns the uAPI ABI version supported by the platform,
// preferring v2.
//
// The version is probed on the first GPIO chip that can be opened.
func DetectAbiVersion() (AbiVersion, error) {
	var abiv AbiVersion
	err := withFirstChip(func(c *Chip) (err error) {
		abiv, err = c.DetectAbiVersion()
		return
	})
	return abiv, err
}

// SupportsAbiVersion returns nil if the platform supports the uAPI ABI
// version, else an error indicating why not.
func SupportsAbiVersion(abiv AbiVersion) error {
	return withFirstChip(func(c *Chip) error {
		return c.SupportsAbiVersion(abiv)
	})
}

func withFirstChip(fn func(c *Chip) error) error {
	paths, err := Chips()
	if err != nil {
		return err
	}
	for _, p := range paths {
		c, err := NewChip(p)
		if err != nil {
			continue
		}
		defer c.Close()
		return fn(c)
	}
	return ErrNoGpioChips
}
