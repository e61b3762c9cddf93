// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

package uapi

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"golang.org/x/sys/unix"
)

// From the linux asm-generic/ioctl.h header.
const (
	iocWrite = 1
	iocRead  = 2

	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<iocDirShift |
		IoctlMagic<<iocTypeShift |
		nr<<iocNRShift |
		size<<iocSizeShift
}

// IOR returns the code for a GPIO ioctl that reads a struct of the given size
// from the kernel.
func IOR(nr, size uintptr) uintptr {
	return ioc(iocRead, nr, size)
}

// IOWR returns the code for a GPIO ioctl that passes a struct of the given
// size to and from the kernel.
func IOWR(nr, size uintptr) uintptr {
	return ioc(iocRead|iocWrite, nr, size)
}

// Ioctl performs the ioctl on the fd, returning the errno as the error if it
// fails.
func Ioctl(fd, code uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, code, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// Decode unpacks a kernel record from the start of the buffer into v.
//
// The obj names the record in any UnderReadError.
func Decode(buf []byte, obj string, v interface{}) error {
	size := binary.Size(v)
	if len(buf) < size {
		return &UnderReadError{Obj: obj, Expected: size, Found: len(buf)}
	}
	return binary.Read(bytes.NewReader(buf[:size]), binary.NativeEndian, v)
}
