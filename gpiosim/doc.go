// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

/*
Package gpiosim creates and controls GPIO simulators for testing the gpiolib
packages against real GPIO character devices.

The simulators are provided by the Linux [gpio-sim] kernel module and require a
kernel 5.19 or later built with CONFIG_GPIO_SIM.

A [Sim] contains one or more [Chip]s, each built from a [Bank] passed to
[NewSim].  Once live, a chip drives the uAPI from the kernel side.  The level
of an input line follows the pull applied with [Chip.SetPull], and the level
of an output line, as driven by userspace, is returned by [Chip.Level].

Tests that only need anonymous lines on a single chip can use a [Simpleton].

Closing the Sim removes the gpio-sim configuration and the corresponding
gpiochips.  Configuring a simulator requires configfs and sysfs access, so
typically requires root.

# Example Usage

	s, err := gpiosim.NewSimpleton(12)
	defer s.Close()
	s.SetPull(5, gpiosim.LevelActive)
	level, err := s.Level(3)

A simulator with two chips, with named and hogged lines:

	s, err := gpiosim.NewSim(
		gpiosim.WithBank(gpiosim.NewBank("left", 8,
			gpiosim.WithNamedLine(3, "LED0"),
			gpiosim.WithHoggedLine(2, "piggy", gpiosim.HogDirectionOutputLow),
		)),
		gpiosim.WithBank(gpiosim.NewBank("right", 42,
			gpiosim.WithNamedLine(4, "BUTTON1"),
		)),
	)
	c := &s.Chips[1]
	c.Pullup(4)

[gpio-sim]: https://docs.kernel.org/admin-guide/gpio/gpio-sim.html
*/
package gpiosim
