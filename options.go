// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

package gpiolib

// ChipOption defines the interface required to provide an option to NewChip.
type ChipOption interface {
	applyChipOption(*chipOptions)
}

type chipOptions struct {
	abiv AbiVersion
}

// BuilderOption defines the interface required to provide an option to
// NewBuilder and Chip.RequestLines.
type BuilderOption interface {
	applyBuilderOption(*Builder)
}

// AbiVersionOption pins the ABI version used by a chip or request.
type AbiVersionOption AbiVersion

// WithAbiVersion pins the uAPI ABI version used, rather than detecting it.
//
// The version is not checked against the kernel, so an unsupported version
// will fail on first use.
func WithAbiVersion(abiv AbiVersion) AbiVersionOption {
	return AbiVersionOption(abiv)
}

func (o AbiVersionOption) applyChipOption(co *chipOptions) {
	co.abiv = AbiVersion(o)
}

func (o AbiVersionOption) applyBuilderOption(b *Builder) {
	b.abiv = AbiVersion(o)
}

// ConsumerOption sets the consumer label of a request.
type ConsumerOption string

// WithConsumer sets the consumer label reported for the requested lines.
//
// The label is limited to 32 bytes.  If unset the label defaults to
// "gpiolib-p<pid>".
func WithConsumer(consumer string) ConsumerOption {
	return ConsumerOption(consumer)
}

func (o ConsumerOption) applyBuilderOption(b *Builder) {
	b.consumer = string(o)
}

// KernelEventBufferSizeOption suggests the size of the kernel edge event
// buffer.
type KernelEventBufferSizeOption uint32

// WithKernelEventBufferSize suggests the minimum number of edge events the
// kernel buffers for the request.
//
// Zero selects the kernel default.  Not supported by ABI v1.
func WithKernelEventBufferSize(size uint32) KernelEventBufferSizeOption {
	return KernelEventBufferSizeOption(size)
}

func (o KernelEventBufferSizeOption) applyBuilderOption(b *Builder) {
	b.kernelEventBufferSize = uint32(o)
}

// UserEventBufferSizeOption sets the capacity of the EdgeEventBuffer
// returned by Request.EdgeEvents.
type UserEventBufferSizeOption int

// WithUserEventBufferSize sets the number of edge events buffered in user
// space by Request.EdgeEvents.
//
// Values less than 1 are treated as 1.
func WithUserEventBufferSize(size int) UserEventBufferSizeOption {
	return UserEventBufferSizeOption(size)
}

func (o UserEventBufferSizeOption) applyBuilderOption(b *Builder) {
	b.userEventBufferSize = int(o)
}
