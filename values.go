// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

package gpiolib

import (
	"sort"

	v1 "github.com/warthog618/go-gpiolib/uapi/v1"
	v2 "github.com/warthog618/go-gpiolib/uapi/v2"
)

// Value is the logical value of a line.
type Value int

const (
	// Inactive is the logical low state of a line.
	Inactive Value = iota

	// Active is the logical high state of a line.
	Active
)

// Not returns the opposite value.
func (v Value) Not() Value {
	if v == Active {
		return Inactive
	}
	return Active
}

func (v Value) String() string {
	if v == Active {
		return "active"
	}
	return "inactive"
}

// LineValue is the value of a single line.
type LineValue struct {
	Offset Offset
	Value  Value
}

// Values is a sparse collection of line values, keyed and ordered by offset.
//
// A line missing from the collection has an unspecified value, not an
// inactive one.
//
// The zero value is an empty collection ready to use.
type Values struct {
	lvs []LineValue
}

// NewValues creates a collection containing the line values.
//
// Later values for the same offset replace earlier ones.
func NewValues(lvs ...LineValue) Values {
	var vv Values
	for _, lv := range lvs {
		vv.Set(lv.Offset, lv.Value)
	}
	return vv
}

// ValuesFromOffsets creates a collection with all the lines set inactive.
//
// Typically used as a template for Request.Values.
func ValuesFromOffsets(offsets []Offset) Values {
	var vv Values
	for _, o := range offsets {
		vv.Set(o, Inactive)
	}
	return vv
}

func (vv *Values) find(offset Offset) (int, bool) {
	idx := sort.Search(len(vv.lvs), func(i int) bool { return vv.lvs[i].Offset >= offset })
	return idx, idx < len(vv.lvs) && vv.lvs[idx].Offset == offset
}

// Get returns the value of the line, and false if it is not in the
// collection.
func (vv *Values) Get(offset Offset) (Value, bool) {
	if idx, ok := vv.find(offset); ok {
		return vv.lvs[idx].Value, true
	}
	return Inactive, false
}

// Set sets the value of the line.
func (vv *Values) Set(offset Offset, value Value) *Values {
	if n := len(vv.lvs); n == 0 || vv.lvs[n-1].Offset < offset {
		vv.lvs = append(vv.lvs, LineValue{offset, value})
		return vv
	}
	idx, ok := vv.find(offset)
	if ok {
		vv.lvs[idx].Value = value
		return vv
	}
	vv.lvs = append(vv.lvs, LineValue{})
	copy(vv.lvs[idx+1:], vv.lvs[idx:])
	vv.lvs[idx] = LineValue{offset, value}
	return vv
}

// Unset removes the line from the collection.
func (vv *Values) Unset(offset Offset) {
	if idx, ok := vv.find(offset); ok {
		vv.lvs = append(vv.lvs[:idx], vv.lvs[idx+1:]...)
	}
}

// Toggle flips the value of the line.
//
// A line not in the collection is added as active.
func (vv *Values) Toggle(offset Offset) {
	if idx, ok := vv.find(offset); ok {
		vv.lvs[idx].Value = vv.lvs[idx].Value.Not()
		return
	}
	vv.Set(offset, Active)
}

// Not flips the value of every line in the collection.
func (vv *Values) Not() *Values {
	for i := range vv.lvs {
		vv.lvs[i].Value = vv.lvs[i].Value.Not()
	}
	return vv
}

// Overlay sets the lines in top to their values in top.
func (vv *Values) Overlay(top *Values) *Values {
	for _, lv := range top.lvs {
		vv.Set(lv.Offset, lv.Value)
	}
	return vv
}

// Len returns the number of lines in the collection.
func (vv *Values) Len() int {
	return len(vv.lvs)
}

// IsEmpty returns true if the collection contains no lines.
func (vv *Values) IsEmpty() bool {
	return len(vv.lvs) == 0
}

// Offsets returns the offsets of the lines in the collection, in order.
func (vv *Values) Offsets() []Offset {
	oo := make([]Offset, len(vv.lvs))
	for i, lv := range vv.lvs {
		oo[i] = lv.Offset
	}
	return oo
}

// LineValues returns a copy of the line values, in offset order.
func (vv *Values) LineValues() []LineValue {
	return append([]LineValue(nil), vv.lvs...)
}

// ContainsKeys returns true if the collection contains all the offsets.
func (vv *Values) ContainsKeys(offsets []Offset) bool {
	for _, o := range offsets {
		if _, ok := vv.find(o); !ok {
			return false
		}
	}
	return true
}

// toV1 returns the values as a v1 array indexed by position in offsets.
//
// Requested lines not in the collection default to inactive.
func (vv *Values) toV1(offsets []Offset) v1.LineValues {
	var lv v1.LineValues
	for idx, o := range offsets {
		if v, ok := vv.Get(o); ok {
			lv.Set(idx, uint8(v))
		}
	}
	return lv
}

// toV2 returns the values as a v2 bitmap indexed by position in offsets.
//
// An empty collection selects all the requested lines.
func (vv *Values) toV2(offsets []Offset) v2.LineValues {
	var lv v2.LineValues
	if vv.IsEmpty() {
		if len(offsets) < 64 {
			lv.Mask = v2.LineBitmap(1)<<uint(len(offsets)) - 1
		} else {
			lv.Mask = ^v2.LineBitmap(0)
		}
		return lv
	}
	for idx, o := range offsets {
		if v, ok := vv.Get(o); ok {
			lv.Mask = lv.Mask.Set(idx, true)
			lv.Bits = lv.Bits.Set(idx, v == Active)
		}
	}
	return lv
}

// updateFromV1 updates the values from the v1 array.
//
// An empty collection is populated with all the requested lines.
func (vv *Values) updateFromV1(offsets []Offset, src *v1.LineValues) {
	if vv.IsEmpty() {
		vv.lvs = make([]LineValue, 0, len(offsets))
		for idx, o := range offsets {
			vv.Set(o, Value(src.Get(idx)))
		}
		return
	}
	for idx, o := range offsets {
		if i, ok := vv.find(o); ok {
			vv.lvs[i].Value = Value(src.Get(idx))
		}
	}
}

// updateFromV2 updates the values from the v2 bitmap.
//
// Only lines selected by the mask are updated, and an empty collection is
// populated with all the selected lines.
func (vv *Values) updateFromV2(offsets []Offset, src *v2.LineValues) {
	bits := src.Bits & src.Mask
	populate := vv.IsEmpty()
	for idx, o := range offsets {
		if !src.Mask.Get(idx) {
			continue
		}
		v := Inactive
		if bits.Get(idx) {
			v = Active
		}
		if populate {
			vv.Set(o, v)
			continue
		}
		if i, ok := vv.find(o); ok {
			vv.lvs[i].Value = v
		}
	}
}
