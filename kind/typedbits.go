// Copyright (c) 2024 The hwkit Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.
package kind

import (
	"fmt"
	"strings"

	"hwkit/bits"
)

// BitX is a three-valued bit: 0, 1, or X (unknown). Three-valued-logic
// folding rules live in one place (ntl.FoldGate) per spec §9; BitX itself
// is just the carrier value.
type BitX int

const (
	Bit0 BitX = iota
	Bit1
	BitUnknown
)

func (b BitX) String() string {
	switch b {
	case Bit0:
		return "0"
	case Bit1:
		return "1"
	default:
		return "X"
	}
}

// TypedBits pairs a concrete bit vector with the Kind that explains its
// shape. It is the literal/constant/simulator-state representation named
// in spec §3.
type TypedBits struct {
	BitVec []BitX
	Kind   Kind
}

// HasUnknown reports whether any bit is X.
func (t TypedBits) HasUnknown() bool {
	for _, b := range t.BitVec {
		if b == BitUnknown {
			return true
		}
	}
	return false
}

func (t TypedBits) String() string {
	var sb strings.Builder
	for i := len(t.BitVec) - 1; i >= 0; i-- {
		sb.WriteString(t.BitVec[i].String())
	}
	return fmt.Sprintf("%s :: %s", sb.String(), t.Kind)
}

// FromValue packs a concrete bits.Value (no X) into a TypedBits of the
// matching Bits/Signed kind.
func FromValue(v bits.Value) TypedBits {
	k := Kind(BitsKind{Width: v.Width()})
	if v.Signed() {
		k = SignedKind{Width: v.Width()}
	}
	out := make([]BitX, v.Width())
	u := v.Uint64()
	for i := 0; i < v.Width(); i++ {
		if (u>>uint(i))&1 == 1 {
			out[i] = Bit1
		} else {
			out[i] = Bit0
		}
	}
	return TypedBits{BitVec: out, Kind: k}
}

// ToValue unpacks a TypedBits of Bits/Signed kind back into a bits.Value.
// It errors if any bit is X — the oracle only operates on concrete values.
func ToValue(t TypedBits) (bits.Value, error) {
	var width int
	var signed bool
	switch k := t.Kind.(type) {
	case BitsKind:
		width, signed = k.Width, false
	case SignedKind:
		width, signed = k.Width, true
	default:
		return bits.Value{}, fmt.Errorf("kind: ToValue: not a Bits/Signed kind: %s", t.Kind)
	}
	var u uint64
	for i := 0; i < width && i < 64; i++ {
		if t.BitVec[i] == BitUnknown {
			return bits.Value{}, fmt.Errorf("kind: ToValue: bit %d is unknown", i)
		}
		if t.BitVec[i] == Bit1 {
			u |= 1 << uint(i)
		}
	}
	if signed {
		return bits.NewSigned(width, bits.New(width, u).Int64()), nil
	}
	return bits.New(width, u), nil
}

// Pack flattens a TypedBits to its raw bit vector (low index = low bit),
// re-deriving any structural padding (e.g. enum payload X-padding) that the
// Kind implies but a hand-built BitVec might omit.
func Pack(t TypedBits) []BitX {
	width := BitWidth(t.Kind)
	if len(t.BitVec) == width {
		return append([]BitX(nil), t.BitVec...)
	}
	out := make([]BitX, width)
	copy(out, t.BitVec)
	for i := len(t.BitVec); i < width; i++ {
		out[i] = BitUnknown
	}
	return out
}

// Unpack validates that bits has exactly BitWidth(k) entries and returns the
// paired TypedBits; this is the inverse of Pack and round-trips for any
// Kind/value pair containing no X bits (testable property in spec §8).
func Unpack(raw []BitX, k Kind) (TypedBits, error) {
	w := BitWidth(k)
	if len(raw) != w {
		return TypedBits{}, fmt.Errorf("kind: Unpack: got %d bits, want %d for %s", len(raw), w, k)
	}
	cp := append([]BitX(nil), raw...)
	return TypedBits{BitVec: cp, Kind: k}, nil
}

// Slice extracts the BitVec covering r from a packed TypedBits, without
// re-deriving its Kind (callers pass the Kind they already resolved via
// BitRange).
func Slice(t TypedBits, r Range) []BitX {
	packed := Pack(t)
	return append([]BitX(nil), packed[r.Low:r.High]...)
}

// MakeEnum builds the packed TypedBits for one variant of an enum: the
// discriminant bits placed per Layout.Align, the payload bits for the
// chosen variant, and X padding for the unused tail of the payload field.
func MakeEnum(e EnumKind, variant string, payload TypedBits) (TypedBits, error) {
	v, _, err := variantFor(e, variant)
	if err != nil {
		return TypedBits{}, err
	}
	payloadWidth := maxPayloadWidth(e)
	total := e.Layout.Width + payloadWidth
	out := make([]BitX, total)
	for i := range out {
		out[i] = BitUnknown
	}

	discBits := encodeDiscriminant(v.Discriminant, e.Layout)
	payloadBits := Pack(payload)
	for i := len(payloadBits); i < payloadWidth; i++ {
		payloadBits = append(payloadBits, BitUnknown)
	}

	if e.Layout.Align == LSB {
		copy(out[0:e.Layout.Width], discBits)
		copy(out[e.Layout.Width:], payloadBits)
	} else {
		copy(out[0:payloadWidth], payloadBits)
		copy(out[payloadWidth:], discBits)
	}
	return TypedBits{BitVec: out, Kind: e}, nil
}

func encodeDiscriminant(val int64, layout DiscriminantLayout) []BitX {
	out := make([]BitX, layout.Width)
	u := uint64(val)
	for i := 0; i < layout.Width; i++ {
		if (u>>uint(i))&1 == 1 {
			out[i] = Bit1
		} else {
			out[i] = Bit0
		}
	}
	return out
}

// EnumDiscriminant reads the discriminant value encoded in a packed enum
// TypedBits, interpreting it per the enum's signedness.
func EnumDiscriminant(t TypedBits) (int64, error) {
	e, ok := t.Kind.(EnumKind)
	if !ok {
		return 0, fmt.Errorf("kind: EnumDiscriminant: not an enum kind: %s", t.Kind)
	}
	r := DiscriminantRange(e)
	bitsSlice := Slice(t, r)
	var u uint64
	for i, b := range bitsSlice {
		if b == BitUnknown {
			return 0, fmt.Errorf("kind: EnumDiscriminant: unknown discriminant bit %d", i)
		}
		if b == Bit1 {
			u |= 1 << uint(i)
		}
	}
	if !e.Layout.Signed {
		return int64(u), nil
	}
	// bits.Value.Int64 interprets the pattern as two's-complement of its
	// own width regardless of the value's signedness flag.
	return bits.New(e.Layout.Width, u).Int64(), nil
}
