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

import "fmt"

// BitWidth computes the total bit width of k as a pure function of its
// structure (spec invariant: "every non-Empty Kind has a total bit width
// computable by a pure function of its structure").
func BitWidth(k Kind) int {
	switch k := k.(type) {
	case EmptyKind:
		return 0
	case BitsKind:
		return k.Width
	case SignedKind:
		return k.Width
	case ArrayKind:
		return BitWidth(k.Base) * k.Len
	case TupleKind:
		total := 0
		for _, e := range k.Elements {
			total += BitWidth(e)
		}
		return total
	case StructKind:
		total := 0
		for _, f := range k.Fields {
			total += BitWidth(f.Kind)
		}
		return total
	case EnumKind:
		return k.Layout.Width + maxPayloadWidth(k)
	case SignalKind:
		return BitWidth(k.Inner)
	default:
		panic(fmt.Sprintf("kind: BitWidth: unhandled kind %T", k))
	}
}

func maxPayloadWidth(e EnumKind) int {
	max := 0
	for _, v := range e.Variants {
		if w := BitWidth(v.Payload); w > max {
			max = w
		}
	}
	return max
}

// DiscriminantFor returns the concrete discriminant value declared for the
// named variant of e, or an error if no such variant exists.
func DiscriminantFor(e EnumKind, variant string) (int64, error) {
	for _, v := range e.Variants {
		if v.Name == variant {
			return v.Discriminant, nil
		}
	}
	return 0, fmt.Errorf("kind: enum %s has no variant %q", e.Name, variant)
}

func variantFor(e EnumKind, name string) (Variant, int, error) {
	for i, v := range e.Variants {
		if v.Name == name {
			return v, i, nil
		}
	}
	return Variant{}, -1, fmt.Errorf("kind: enum %s has no variant %q", e.Name, name)
}

// -----------------------------------------------------------------------------
// Path: a symbolic accessor sequence over a Kind.

// PathSegment is one step of a Path: a struct/tuple field by name or index,
// an array element by static or dynamic index, an enum payload access
// guarded by a variant name, or unwrapping a Signal to its inner value.
type PathSegment interface {
	isPathSegment()
}

type FieldSeg struct{ Name string }
type IndexSeg struct{ Static int }        // static array index
type DynIndexSeg struct{ SlotWidth int }  // dynamic array index (width of the index slot, resolved by caller)
type VariantSeg struct{ Variant string }  // enum payload, guarded by variant
type SignalValueSeg struct{}              // unwrap Signal<T, c> -> T

func (FieldSeg) isPathSegment()       {}
func (IndexSeg) isPathSegment()       {}
func (DynIndexSeg) isPathSegment()    {}
func (VariantSeg) isPathSegment()     {}
func (SignalValueSeg) isPathSegment() {}

// Path is an ordered sequence of PathSegments, applied left to right.
type Path []PathSegment

// Range is a half-open bit range [Low, High) within a parent bit string,
// with Low being the least-significant bit included.
type Range struct {
	Low, High int
}

func (r Range) Len() int { return r.High - r.Low }

// BitRange projects a Path to a byte-exact bit slice and the residual Kind
// found at that slice (spec: "bit_range(kind, path) -> (Range<usize>, Kind)").
// It returns an error rather than panicking because malformed paths
// (unknown field, out-of-range index, wrong variant) are a user-visible
// synthesis/type error, not an ICE.
func BitRange(k Kind, p Path) (Range, Kind, error) {
	r := Range{Low: 0, High: BitWidth(k)}
	cur := k
	for _, seg := range p {
		nr, nk, err := stepPath(cur, r, seg)
		if err != nil {
			return Range{}, nil, err
		}
		r, cur = nr, nk
	}
	return r, cur, nil
}

func stepPath(k Kind, r Range, seg PathSegment) (Range, Kind, error) {
	switch seg := seg.(type) {
	case SignalValueSeg:
		sig, ok := k.(SignalKind)
		if !ok {
			return Range{}, nil, fmt.Errorf("kind: SignalValueSeg on non-Signal kind %s", k)
		}
		return r, sig.Inner, nil
	case FieldSeg:
		switch k := k.(type) {
		case StructKind:
			low := r.Low
			for _, f := range k.Fields {
				w := BitWidth(f.Kind)
				if f.Name == seg.Name {
					return Range{Low: low, High: low + w}, f.Kind, nil
				}
				low += w
			}
			return Range{}, nil, fmt.Errorf("kind: struct %s has no field %q", k.Name, seg.Name)
		default:
			return Range{}, nil, fmt.Errorf("kind: FieldSeg on non-struct kind %s", k)
		}
	case IndexSeg:
		switch k := k.(type) {
		case ArrayKind:
			if seg.Static < 0 || seg.Static >= k.Len {
				return Range{}, nil, fmt.Errorf("kind: array index %d out of range [0,%d)", seg.Static, k.Len)
			}
			ew := BitWidth(k.Base)
			low := r.Low + seg.Static*ew
			return Range{Low: low, High: low + ew}, k.Base, nil
		case TupleKind:
			if seg.Static < 0 || seg.Static >= len(k.Elements) {
				return Range{}, nil, fmt.Errorf("kind: tuple index %d out of range", seg.Static)
			}
			low := r.Low
			for i := 0; i < seg.Static; i++ {
				low += BitWidth(k.Elements[i])
			}
			ew := BitWidth(k.Elements[seg.Static])
			return Range{Low: low, High: low + ew}, k.Elements[seg.Static], nil
		default:
			return Range{}, nil, fmt.Errorf("kind: IndexSeg on non-indexable kind %s", k)
		}
	case DynIndexSeg:
		arr, ok := k.(ArrayKind)
		if !ok {
			return Range{}, nil, fmt.Errorf("kind: DynIndexSeg on non-array kind %s", k)
		}
		// A dynamic index has no static bit range; callers resolving this
		// segment (rtl lowering) must emit a variable-shift/mux instead of
		// a plain Index op. We still report the residual Kind and element
		// width so that caller can size the mux.
		return Range{Low: 0, High: BitWidth(arr.Base)}, arr.Base, nil
	case VariantSeg:
		en, ok := k.(EnumKind)
		if !ok {
			return Range{}, nil, fmt.Errorf("kind: VariantSeg on non-enum kind %s", k)
		}
		v, _, err := variantFor(en, seg.Variant)
		if err != nil {
			return Range{}, nil, err
		}
		payloadLow := r.Low
		if en.Layout.Align == LSB {
			payloadLow += en.Layout.Width
		}
		w := BitWidth(v.Payload)
		return Range{Low: payloadLow, High: payloadLow + w}, v.Payload, nil
	default:
		return Range{}, nil, fmt.Errorf("kind: unknown path segment %T", seg)
	}
}

// DiscriminantRange returns the bit range occupied by an enum's discriminant
// within its own layout (not relative to any containing structure).
func DiscriminantRange(e EnumKind) Range {
	total := BitWidth(e)
	if e.Layout.Align == LSB {
		return Range{Low: 0, High: e.Layout.Width}
	}
	return Range{Low: total - e.Layout.Width, High: total}
}
