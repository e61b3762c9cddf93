// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiosim

import (
	"github.com/warthog618/go-gpiolib/uapi"
)

// Offset identifies a line on a simulated chip.
type Offset = uapi.Offset

// Bank contains the information required to configure a chip in a gpio-sim.
type Bank struct {
	// The number of lines simulated by the chip.
	NumLines uint32

	// The label of the chip, as reported in the uAPI ChipInfo.
	Label string

	// Lines assigned an identifying name.
	//
	// Line names do not need to be unique.
	Names map[Offset]string

	// Lines that appear to be already in use by some other consumer.
	Hogs map[Offset]Hog
}

// NewBank constructs a Bank with the label, numLines and options provided.
//
// The label is informational.  In a testing context it can identify the
// role of the chip in the test.
//
// The available options are [WithNamedLine] and [WithHoggedLine].
func NewBank(label string, numLines uint32, options ...BankOption) *Bank {
	b := &Bank{Label: label, NumLines: numLines}
	for _, o := range options {
		o.applyBankOption(b)
	}
	return b
}

// Hog contains the details of a line hog, i.e. some other user of a line.
type Hog struct {
	// The name of the consumer that appears to be using the line.
	Consumer string

	// The direction of the hogged line, and if an output then its level.
	Direction HogDirection
}

// HogDirection indicates the direction of a hogged line.
type HogDirection int

const (
	// HogDirectionInput hogs the line as an input.
	HogDirectionInput HogDirection = iota

	// HogDirectionOutputLow hogs the line as an output driven low.
	HogDirectionOutputLow

	// HogDirectionOutputHigh hogs the line as an output driven high.
	HogDirectionOutputHigh
)

// String returns the direction as written to the gpio-sim hog.
func (d HogDirection) String() string {
	switch d {
	case HogDirectionOutputLow:
		return "output-low"
	case HogDirectionOutputHigh:
		return "output-high"
	default:
		return "input"
	}
}
