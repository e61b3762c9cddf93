// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

/*
Package gpiolib is a client for the Linux GPIO character device uAPI.

Both versions of the uAPI ABI are supported.  The version is detected from the
kernel on first use, preferring v2, or can be pinned with [WithAbiVersion].

A [Chip] provides access to the info of the lines on a GPIO chip, and to info
change events for watched lines.  Lines are requested from a chip with a
[Builder], or [Chip.RequestLines], returning a [Request] that holds the lines
until it is closed.

# Example Usage

Read an input line:

	req, err := gpiolib.NewBuilder().
		OnChip("/dev/gpiochip0").
		WithLine(3).
		AsInput().
		Request()
	defer req.Close()
	v, err := req.Value(3)

Drive an output line, using ABI v1:

	req, err := gpiolib.NewBuilder(
		gpiolib.WithAbiVersion(gpiolib.AbiV1),
		gpiolib.WithConsumer("blinker"),
	).
		OnChip("/dev/gpiochip0").
		WithLine(5).
		AsOutput(gpiolib.Active).
		Request()
	err = req.SetValue(5, gpiolib.Inactive)

Watch for edges:

	req, err := gpiolib.NewBuilder().
		OnChip("/dev/gpiochip0").
		WithLines(4, 7).
		WithEdgeDetection(gpiolib.EdgeDetectionBoth).
		Request()
	events := req.EdgeEvents()
	for {
		evt, err := events.Next()
		...
	}

The async subpackage adapts chips and requests to reactor driven
applications.

Logging is disabled unless enabled through the environment, as described in
the logging subpackage.
*/
package gpiolib
