// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

package uapi_test

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpiolib/gpiosim"
	"github.com/warthog618/go-gpiolib/uapi"
	"golang.org/x/sys/unix"
)

func TestSizes(t *testing.T) {
	assert.Equal(t, uintptr(32), unsafe.Sizeof(uapi.Name{}))
	assert.Equal(t, uintptr(256), unsafe.Sizeof(uapi.Offsets{}))
	assert.Equal(t, uintptr(68), unsafe.Sizeof(uapi.ChipInfo{}))
}

func TestIoctlCodes(t *testing.T) {
	assert.Equal(t, uintptr(0x8044B401), uapi.IOR(0x01, 68))
	assert.Equal(t, uintptr(0xC004B40C), uapi.IOWR(0x0C, 4))
	assert.Equal(t, uintptr(0xC250B407), uapi.IOWR(0x07, 592))
}

func TestNewName(t *testing.T) {
	patterns := []struct {
		name string
		in   string
		err  error
	}{
		{"empty", "", nil},
		{"short", "banana", nil},
		{"full", "0123456789abcdef0123456789abcdef", nil},
		{"overlong", "0123456789abcdef0123456789abcdefg", uapi.ErrNameTooLong},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			n, err := uapi.NewName(p.in)
			if p.err != nil {
				assert.True(t, errors.Is(err, p.err))
				return
			}
			require.Nil(t, err)
			assert.Equal(t, p.in, n.String())
			assert.Equal(t, len(p.in) == 0, n.IsEmpty())
		}
		t.Run(p.name, tf)
	}
}

func TestBytesToString(t *testing.T) {
	var n uapi.Name
	copy(n[:], "abc\x00def")
	assert.Equal(t, "abc", n.String())
	copy(n[:], bytes.Repeat([]byte{'x'}, len(n)))
	assert.Equal(t, string(bytes.Repeat([]byte{'x'}, len(n))), n.String())
	assert.Equal(t, "", uapi.BytesToString(nil))
}

func TestNewOffsets(t *testing.T) {
	oo, err := uapi.NewOffsets([]uapi.Offset{3, 1, 4})
	require.Nil(t, err)
	assert.Equal(t, uapi.Offset(3), oo[0])
	assert.Equal(t, uapi.Offset(1), oo[1])
	assert.Equal(t, uapi.Offset(4), oo[2])
	assert.Zero(t, oo[3])

	_, err = uapi.NewOffsets(make([]uapi.Offset, uapi.LinesMax+1))
	assert.True(t, errors.Is(err, uapi.ErrTooManyLines))
}

func TestLineInfoChangeKindValidate(t *testing.T) {
	for _, k := range []uapi.LineInfoChangeKind{
		uapi.LineInfoChangeRequested,
		uapi.LineInfoChangeReleased,
		uapi.LineInfoChangeReconfigured,
	} {
		assert.Nil(t, k.Validate())
	}
	for _, k := range []uapi.LineInfoChangeKind{0, 4, 42} {
		err := k.Validate()
		var ve *uapi.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "kind", ve.Field)
	}
}

func TestDecode(t *testing.T) {
	type record struct {
		A uint64
		B uint32
		_ uint32
	}
	buf := make([]byte, 16)
	binary.NativeEndian.PutUint64(buf, 0x1234)
	binary.NativeEndian.PutUint32(buf[8:], 42)
	var r record
	err := uapi.Decode(buf, "record", &r)
	require.Nil(t, err)
	assert.Equal(t, uint64(0x1234), r.A)
	assert.Equal(t, uint32(42), r.B)

	err = uapi.Decode(buf[:12], "record", &r)
	var ure *uapi.UnderReadError
	require.True(t, errors.As(err, &ure))
	assert.Equal(t, "record", ure.Obj)
	assert.Equal(t, 16, ure.Expected)
	assert.Equal(t, 12, ure.Found)
}

func TestWaitEvent(t *testing.T) {
	var p [2]int
	err := unix.Pipe2(p[:], unix.O_CLOEXEC)
	require.Nil(t, err)
	defer unix.Close(p[0])
	defer unix.Close(p[1])
	rfd := uintptr(p[0])

	ok, err := uapi.HasEvent(rfd)
	assert.Nil(t, err)
	assert.False(t, ok)

	start := time.Now()
	ok, err = uapi.WaitEvent(rfd, 20*time.Millisecond)
	assert.Nil(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	_, err = unix.Write(p[1], []byte{1, 2, 3})
	require.Nil(t, err)
	ok, err = uapi.HasEvent(rfd)
	assert.Nil(t, err)
	assert.True(t, ok)
	ok, err = uapi.WaitEvent(rfd, time.Second)
	assert.Nil(t, err)
	assert.True(t, ok)

	buf := make([]byte, 8)
	n, err := uapi.ReadEvent(rfd, buf)
	assert.Nil(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{1, 2, 3}, buf[:n])

	ok, err = uapi.HasEvent(rfd)
	assert.Nil(t, err)
	assert.False(t, ok)
}

func TestGetChipInfo(t *testing.T) {
	s, err := gpiosim.NewSim(
		gpiosim.WithBank(gpiosim.NewBank("uapi_test", 12)),
	)
	require.Nil(t, err)
	defer s.Close()

	c := &s.Chips[0]
	f, err := unix.Open(c.DevPath(), unix.O_RDONLY|unix.O_CLOEXEC, 0)
	require.Nil(t, err)
	defer unix.Close(f)

	ci, err := uapi.GetChipInfo(uintptr(f))
	require.Nil(t, err)
	assert.Equal(t, c.ChipName(), ci.Name.String())
	assert.Equal(t, "uapi_test", ci.Label.String())
	assert.Equal(t, uint32(12), ci.NumLines)

	// the raw ioctl reports unwatching an unwatched line as busy
	err = uapi.UnwatchLineInfo(uintptr(f), 3)
	assert.Equal(t, unix.EBUSY, err)

	// offset out of range
	err = uapi.UnwatchLineInfo(uintptr(f), 12)
	assert.Equal(t, unix.EINVAL, err)

	// bad fd
	_, err = uapi.GetChipInfo(uintptr(0xffff))
	assert.Equal(t, unix.EBADF, err)
}
