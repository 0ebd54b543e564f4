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
	"testing"

	"hwkit/bits"
)

func TestBitWidthStruct(t *testing.T) {
	s := Struct("Pair", Field{"a", Bits(8)}, Field{"b", Bits(16)})
	if w := BitWidth(s); w != 24 {
		t.Fatalf("BitWidth(Pair) = %d, want 24", w)
	}
}

func TestBitWidthArray(t *testing.T) {
	a := Array(Bits(4), 5)
	if w := BitWidth(a); w != 20 {
		t.Fatalf("BitWidth(array) = %d, want 20", w)
	}
}

func TestBitRangeStructFieldOrder(t *testing.T) {
	s := Struct("Pair", Field{"a", Bits(8)}, Field{"b", Bits(16)})
	r, k, err := BitRange(s, Path{FieldSeg{"a"}})
	if err != nil {
		t.Fatal(err)
	}
	if r != (Range{Low: 0, High: 8}) {
		t.Fatalf("field a range = %v, want [0,8)", r)
	}
	if k != (BitsKind{Width: 8}) {
		t.Fatalf("field a kind = %v", k)
	}

	r, _, err = BitRange(s, Path{FieldSeg{"b"}})
	if err != nil {
		t.Fatal(err)
	}
	if r != (Range{Low: 8, High: 24}) {
		t.Fatalf("field b range = %v, want [8,24)", r)
	}
}

func TestBitRangeReportsResidualWidthExactly(t *testing.T) {
	// Layout totality: bit_range must return a range whose length equals
	// BitWidth of the residual kind, for every reachable path.
	shapes := []struct {
		k Kind
		p Path
	}{
		{Struct("S", Field{"x", Bits(3)}, Field{"y", Signed(5)}), Path{FieldSeg{"y"}}},
		{Array(Bits(4), 3), Path{IndexSeg{1}}},
		{Tuple(Bits(2), Bits(6)), Path{IndexSeg{0}}},
		{OptionOf(Bits(8)), Path{VariantSeg{"Some"}}},
	}
	for _, s := range shapes {
		r, resKind, err := BitRange(s.k, s.p)
		if err != nil {
			t.Fatalf("BitRange(%v, %v): %v", s.k, s.p, err)
		}
		if r.Len() != BitWidth(resKind) {
			t.Fatalf("BitRange(%v,%v) len=%d != BitWidth(%v)=%d", s.k, s.p, r.Len(), resKind, BitWidth(resKind))
		}
	}
}

func TestRoundTripTypedBitsNoUnknown(t *testing.T) {
	s := Struct("Pair", Field{"a", Bits(8)}, Field{"b", Signed(8)})
	av := FromValue(bits.New(8, 0x2A))
	bv := FromValue(bits.NewSigned(8, -5))

	combined := make([]BitX, 0, 16)
	combined = append(combined, Pack(av)...)
	combined = append(combined, Pack(bv)...)

	tb, err := Unpack(combined, s)
	if err != nil {
		t.Fatal(err)
	}
	packed := Pack(tb)
	for i, b := range combined {
		if packed[i] != b {
			t.Fatalf("round-trip mismatch at bit %d: got %v want %v", i, packed[i], b)
		}
	}
}

func TestEnumDiscriminantLayoutScenario(t *testing.T) {
	// enum {A = -2, B = -1, C = 0, D = 2}, LSB-aligned signed width-3
	// discriminant, no payload. A -> 110, D -> 010.
	layout := DiscriminantLayout{Width: 3, Align: LSB, Signed: true}
	e := Enum("Sign4", layout,
		Variant{Name: "A", Payload: Empty, Discriminant: -2},
		Variant{Name: "B", Payload: Empty, Discriminant: -1},
		Variant{Name: "C", Payload: Empty, Discriminant: 0},
		Variant{Name: "D", Payload: Empty, Discriminant: 2},
	).(EnumKind)

	a, err := MakeEnum(e, "A", TypedBits{Kind: Empty})
	if err != nil {
		t.Fatal(err)
	}
	if got := bitString(Pack(a)); got != "110" {
		t.Fatalf("A discriminant pattern = %s, want 110", got)
	}

	d, err := MakeEnum(e, "D", TypedBits{Kind: Empty})
	if err != nil {
		t.Fatal(err)
	}
	if got := bitString(Pack(d)); got != "010" {
		t.Fatalf("D discriminant pattern = %s, want 010", got)
	}

	disc, err := EnumDiscriminant(d)
	if err != nil {
		t.Fatal(err)
	}
	if disc != 2 {
		t.Fatalf("decoded discriminant = %d, want 2", disc)
	}
}

func bitString(bv []BitX) string {
	out := make([]byte, len(bv))
	for i, b := range bv {
		// render high bit first to match the spec's "110"/"010" notation
		out[len(bv)-1-i] = []byte(b.String())[0]
	}
	return string(out)
}
