// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

package v1

// LineEdgeEvent contains the details of an edge detected on the line of an
// event request.
type LineEdgeEvent struct {
	// The time the event was detected, in nanoseconds.
	TimestampNs uint64

	// The edge that triggered the event.
	Kind LineEdgeEventKind

	// No pad required for i386.
}
