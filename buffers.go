// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

package gpiolib

import (
	"github.com/valyala/bytebufferpool"
)

// scratchPool provides the buffers for single event reads.
var scratchPool bytebufferpool.Pool

// withScratch calls fn with a pooled buffer of the given size.
func withScratch(size int, fn func(buf []byte) error) error {
	bb := scratchPool.Get()
	defer scratchPool.Put(bb)
	if cap(bb.B) < size {
		bb.B = make([]byte, size)
	}
	return fn(bb.B[:size])
}
