// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

package v1_test

import (
	"bytes"
	"encoding/binary"
	"runtime"
	"testing"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpiolib/gpiosim"
	"github.com/warthog618/go-gpiolib/uapi"
	v1 "github.com/warthog618/go-gpiolib/uapi/v1"
	"golang.org/x/sys/unix"
)

const eventWaitTimeout = 100 * time.Millisecond

func TestSizes(t *testing.T) {
	assert.Equal(t, uintptr(72), unsafe.Sizeof(v1.LineInfo{}))
	assert.Equal(t, uintptr(104), unsafe.Sizeof(v1.LineInfoChangeEvent{}))
	assert.Equal(t, uintptr(364), unsafe.Sizeof(v1.HandleRequest{}))
	assert.Equal(t, uintptr(84), unsafe.Sizeof(v1.HandleConfig{}))
	assert.Equal(t, uintptr(48), unsafe.Sizeof(v1.EventRequest{}))
	assert.Equal(t, uintptr(64), unsafe.Sizeof(v1.LineValues{}))
	xees := uintptr(16)
	if runtime.GOARCH == "386" {
		xees = 12
	}
	assert.Equal(t, xees, unsafe.Sizeof(v1.LineEdgeEvent{}))
	assert.Equal(t, int(xees), v1.LineEdgeEventSize)
	assert.Equal(t, 104, v1.LineInfoChangeEventSize)
	// binary decoding must agree with the in-memory layout
	assert.Equal(t, int(xees), binary.Size(v1.LineEdgeEvent{}))
	assert.Equal(t, 104, binary.Size(v1.LineInfoChangeEvent{}))
}

func TestLineInfoFlags(t *testing.T) {
	assert.Equal(t, v1.LineInfoFlag(1), v1.LineInfoFlagUsed)
	assert.Equal(t, v1.LineInfoFlag(2), v1.LineInfoFlagIsOut)
	assert.Equal(t, v1.LineInfoFlag(128), v1.LineInfoFlagBiasDisabled)
	f := v1.LineInfoFlagUsed | v1.LineInfoFlagActiveLow | v1.LineInfoFlagBiasPullUp
	assert.True(t, f.IsUsed())
	assert.False(t, f.IsOut())
	assert.True(t, f.IsActiveLow())
	assert.False(t, f.IsOpenDrain())
	assert.False(t, f.IsOpenSource())
	assert.True(t, f.IsBiasPullUp())
	assert.False(t, f.IsBiasPullDown())
	assert.False(t, f.IsBiasDisabled())
}

func TestRequestFlags(t *testing.T) {
	assert.Equal(t, v1.HandleRequestFlag(1), v1.HandleRequestInput)
	assert.Equal(t, v1.HandleRequestFlag(2), v1.HandleRequestOutput)
	assert.Equal(t, v1.HandleRequestFlag(64), v1.HandleRequestBiasPullDown)
	assert.Equal(t, v1.EventRequestFlag(3), v1.EventRequestBothEdges)
}

func encodeEdgeEvent(t *testing.T, ts uint64, kind uint32) []byte {
	t.Helper()
	buf := bytes.Buffer{}
	err := binary.Write(&buf, binary.NativeEndian, v1.LineEdgeEvent{
		TimestampNs: ts,
		Kind:        v1.LineEdgeEventKind(kind),
	})
	require.Nil(t, err)
	return buf.Bytes()
}

func TestLineEdgeEventFromBuf(t *testing.T) {
	buf := encodeEdgeEvent(t, 1234, 1)
	le, err := v1.LineEdgeEventFromBuf(buf)
	require.Nil(t, err)
	assert.Equal(t, uint64(1234), le.TimestampNs)
	assert.Equal(t, v1.LineEdgeEventRising, le.Kind)

	buf = encodeEdgeEvent(t, 5678, 2)
	le, err = v1.LineEdgeEventFromBuf(buf)
	require.Nil(t, err)
	assert.Equal(t, v1.LineEdgeEventFalling, le.Kind)

	buf = encodeEdgeEvent(t, 5678, 3)
	_, err = v1.LineEdgeEventFromBuf(buf)
	var ve *uapi.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = v1.LineEdgeEventFromBuf(buf[:8])
	var ure *uapi.UnderReadError
	assert.True(t, errors.As(err, &ure))
}

func TestLineInfoChangeEventFromBuf(t *testing.T) {
	ice := v1.LineInfoChangeEvent{
		Info: v1.LineInfo{
			Offset: 3,
			Flags:  v1.LineInfoFlagUsed | v1.LineInfoFlagIsOut,
		},
		TimestampNs: 42,
		Kind:        uapi.LineInfoChangeReleased,
	}
	copy(ice.Info.Name[:], "LED0")
	copy(ice.Info.Consumer[:], "blinky")
	buf := bytes.Buffer{}
	require.Nil(t, binary.Write(&buf, binary.NativeEndian, ice))
	assert.Equal(t, v1.LineInfoChangeEventSize, buf.Len())

	dice, err := v1.LineInfoChangeEventFromBuf(buf.Bytes())
	require.Nil(t, err)
	assert.Equal(t, ice, dice)
	assert.Equal(t, "LED0", dice.Info.Name.String())
	assert.Equal(t, "blinky", dice.Info.Consumer.String())

	ice.Kind = 7
	buf.Reset()
	require.Nil(t, binary.Write(&buf, binary.NativeEndian, ice))
	_, err = v1.LineInfoChangeEventFromBuf(buf.Bytes())
	var ve *uapi.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestLineValues(t *testing.T) {
	var lv v1.LineValues
	lv.Set(3, 1)
	assert.Equal(t, uint8(1), lv.Get(3))
	assert.Equal(t, uint8(0), lv.Get(2))
}

func openChip(t *testing.T, path string) uintptr {
	t.Helper()
	f, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	require.Nil(t, err)
	t.Cleanup(func() { unix.Close(f) })
	return uintptr(f)
}

func TestGetLineInfo(t *testing.T) {
	s, err := gpiosim.NewSim(
		gpiosim.WithBank(gpiosim.NewBank("v1_test", 8,
			gpiosim.WithNamedLine(3, "LED0"),
			gpiosim.WithHoggedLine(2, "piggy", gpiosim.HogDirectionOutputLow),
		)),
	)
	require.Nil(t, err)
	defer s.Close()
	fd := openChip(t, s.Chips[0].DevPath())

	li, err := v1.GetLineInfo(fd, 3)
	require.Nil(t, err)
	assert.Equal(t, uapi.Offset(3), li.Offset)
	assert.Equal(t, "LED0", li.Name.String())
	assert.True(t, li.Consumer.IsEmpty())
	assert.False(t, li.Flags.IsUsed())

	li, err = v1.GetLineInfo(fd, 2)
	require.Nil(t, err)
	assert.Equal(t, "piggy", li.Consumer.String())
	assert.True(t, li.Flags.IsUsed())
	assert.True(t, li.Flags.IsOut())

	_, err = v1.GetLineInfo(fd, 8)
	assert.Equal(t, unix.EINVAL, err)
}

func TestGetLineHandle(t *testing.T) {
	s, err := gpiosim.NewSimpleton(4)
	require.Nil(t, err)
	defer s.Close()
	fd := openChip(t, s.DevPath())

	hr := v1.HandleRequest{
		Flags:    v1.HandleRequestOutput,
		NumLines: 2,
	}
	hr.Offsets[0] = 1
	hr.Offsets[1] = 3
	hr.Values[1] = 1
	copy(hr.Consumer[:], "v1_test")
	lfd, err := v1.GetLineHandle(fd, &hr)
	require.Nil(t, err)
	defer unix.Close(lfd)

	checkLevel(t, s, 1, gpiosim.LevelInactive)
	checkLevel(t, s, 3, gpiosim.LevelActive)

	li, err := v1.GetLineInfo(fd, 3)
	require.Nil(t, err)
	assert.Equal(t, "v1_test", li.Consumer.String())

	// busy
	_, err = v1.GetLineHandle(fd, &hr)
	assert.Equal(t, unix.EBUSY, err)

	lv := v1.LineValues{1, 0}
	err = v1.SetLineValues(uintptr(lfd), &lv)
	require.Nil(t, err)
	checkLevel(t, s, 1, gpiosim.LevelActive)
	checkLevel(t, s, 3, gpiosim.LevelInactive)

	var rv v1.LineValues
	err = v1.GetLineValues(uintptr(lfd), &rv)
	require.Nil(t, err)
	assert.Equal(t, lv, rv)

	hc := v1.HandleConfig{Flags: v1.HandleRequestInput | v1.HandleRequestBiasPullUp}
	err = v1.SetLineConfig(uintptr(lfd), &hc)
	require.Nil(t, err)
	li, err = v1.GetLineInfo(fd, 1)
	require.Nil(t, err)
	assert.False(t, li.Flags.IsOut())
	assert.True(t, li.Flags.IsBiasPullUp())
}

func TestGetLineEvent(t *testing.T) {
	s, err := gpiosim.NewSimpleton(4)
	require.Nil(t, err)
	defer s.Close()
	fd := openChip(t, s.DevPath())

	er := v1.EventRequest{
		Offset:      2,
		HandleFlags: v1.HandleRequestInput,
		EventFlags:  v1.EventRequestBothEdges,
	}
	lfd, err := v1.GetLineEvent(fd, &er)
	require.Nil(t, err)
	defer unix.Close(lfd)

	ok, err := uapi.HasEvent(uintptr(lfd))
	require.Nil(t, err)
	assert.False(t, ok)

	require.Nil(t, s.Pullup(2))
	ok, err = uapi.WaitEvent(uintptr(lfd), eventWaitTimeout)
	require.Nil(t, err)
	require.True(t, ok)

	buf := make([]byte, v1.LineEdgeEventSize*2)
	n, err := uapi.ReadEvent(uintptr(lfd), buf)
	require.Nil(t, err)
	require.Equal(t, v1.LineEdgeEventSize, n)
	le, err := v1.LineEdgeEventFromBuf(buf[:n])
	require.Nil(t, err)
	assert.Equal(t, v1.LineEdgeEventRising, le.Kind)
	assert.NotZero(t, le.TimestampNs)

	var rv v1.LineValues
	err = v1.GetLineValues(uintptr(lfd), &rv)
	require.Nil(t, err)
	assert.Equal(t, uint8(1), rv[0])
}

func checkLevel(t *testing.T, s *gpiosim.Simpleton, offset gpiosim.Offset, xv gpiosim.Level) {
	t.Helper()
	v, err := s.Level(offset)
	assert.Nil(t, err)
	assert.Equal(t, xv, v)
}
