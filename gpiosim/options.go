// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiosim

// SimOption defines the interface required to provide an option to NewSim.
type SimOption interface {
	applySimOption(*builder)
}

// BankOption defines the interface required to provide an option to NewBank.
type BankOption interface {
	applyBankOption(*Bank)
}

// BankSimOption adds a bank to a Sim.
type BankSimOption Bank

// WithBank returns an option that adds the bank to the Sim.
//
// Each bank becomes a chip when the Sim goes live.
func WithBank(b *Bank) BankSimOption {
	return BankSimOption(*b)
}

func (o BankSimOption) applySimOption(b *builder) {
	b.banks = append(b.banks, Bank(o))
}

// NameOption defines the name of a Sim.
type NameOption string

// WithName returns an option that defines the name of a Sim.
//
// The name must uniquely identify the Sim on the system.
func WithName(name string) NameOption {
	return NameOption(name)
}

func (o NameOption) applySimOption(b *builder) {
	b.name = string(o)
}

// NamedLine is an option that names a line.
type NamedLine struct {
	Offset Offset
	Name   string
}

// WithNamedLine returns an option that names a simulated line.
func WithNamedLine(offset Offset, name string) NamedLine {
	return NamedLine{offset, name}
}

func (o NamedLine) applyBankOption(b *Bank) {
	if b.Names == nil {
		b.Names = make(map[Offset]string)
	}
	b.Names[o.Offset] = o.Name
}

// HoggedLine is an option that hogs a line.
type HoggedLine struct {
	Offset Offset
	Hog
}

// WithHoggedLine returns an option that hogs a simulated line, making it
// appear in use by another consumer.
func WithHoggedLine(offset Offset, consumer string, direction HogDirection) HoggedLine {
	return HoggedLine{offset, Hog{consumer, direction}}
}

func (o HoggedLine) applyBankOption(b *Bank) {
	if b.Hogs == nil {
		b.Hogs = make(map[Offset]Hog)
	}
	b.Hogs[o.Offset] = o.Hog
}
