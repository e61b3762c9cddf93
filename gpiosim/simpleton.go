// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiosim

// Simpleton is a Sim with a single chip of anonymous lines.
//
// The methods of the chip are available directly on the Simpleton.
type Simpleton struct {
	*Sim
	*Chip
}

// NewSimpleton creates a live Simpleton with numLines lines.
func NewSimpleton(numLines uint32) (*Simpleton, error) {
	s, err := NewSim(WithBank(NewBank("simpleton", numLines)))
	if err != nil {
		return nil, err
	}
	return &Simpleton{Sim: s, Chip: &s.Chips[0]}, nil
}
