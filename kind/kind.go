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

// Package kind implements the algebraic value-shape descriptors (component
// K of the design) and the typed bit-accurate runtime value (component T)
// built on top of them. Every other package in hwkit imports kind as its
// notion of "what shape does this wire/register/literal have".
package kind

import (
	"fmt"
	"strings"
)

// Kind is the closed variant set of value shapes. Unlike falcon's flat
// ast.TypeKind enum, Kind is recursive (tuples of structs of enums of
// arrays...), so it is modeled as a sealed interface with one
// implementation per variant rather than an int + side table; passes
// dispatch with a type switch exactly the way rtif ops do.
type Kind interface {
	isKind()
	String() string
}

// Empty is the zero-size unit kind.
type EmptyKind struct{}

func (EmptyKind) isKind()        {}
func (EmptyKind) String() string { return "()" }

// Empty is the canonical Empty kind value.
var Empty Kind = EmptyKind{}

// BitsKind is an unsigned bit vector, 1 <= Width <= 128.
type BitsKind struct{ Width int }

func (BitsKind) isKind() {}
func (b BitsKind) String() string {
	return fmt.Sprintf("b%d", b.Width)
}

// Bits constructs a BitsKind, panicking if the width is out of range —
// callers that can't guarantee this statically should validate via
// ValidWidth first (e.g. the parser does, to turn it into a diag.Error).
func Bits(width int) Kind {
	if width < 1 || width > 128 {
		panic(fmt.Sprintf("kind: Bits(%d) out of range [1,128]", width))
	}
	return BitsKind{Width: width}
}

// SignedKind is a two's-complement bit vector, 1 <= Width <= 128.
type SignedKind struct{ Width int }

func (SignedKind) isKind() {}
func (s SignedKind) String() string {
	return fmt.Sprintf("s%d", s.Width)
}

func Signed(width int) Kind {
	if width < 1 || width > 128 {
		panic(fmt.Sprintf("kind: Signed(%d) out of range [1,128]", width))
	}
	return SignedKind{Width: width}
}

// ValidWidth reports whether w is a legal fixed-arithmetic width.
func ValidWidth(w int) bool { return w >= 1 && w <= 128 }

// ArrayKind is Len identical copies of Base, laid out low-index-first.
type ArrayKind struct {
	Base Kind
	Len  int
}

func (ArrayKind) isKind() {}
func (a ArrayKind) String() string {
	return fmt.Sprintf("[%s; %d]", a.Base, a.Len)
}

func Array(base Kind, length int) Kind { return ArrayKind{Base: base, Len: length} }

// TupleKind is an ordered list of element Kinds, laid out index 0 lowest.
type TupleKind struct{ Elements []Kind }

func (TupleKind) isKind() {}
func (t TupleKind) String() string {
	parts := make([]string, len(t.Elements))
	for i, e := range t.Elements {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func Tuple(elements ...Kind) Kind { return TupleKind{Elements: elements} }

// Field is one named member of a StructKind, in declaration order.
type Field struct {
	Name string
	Kind Kind
}

// StructKind lays fields out in declaration order, field 0 occupying the
// lowest bits (spec §4.K layout rules).
type StructKind struct {
	Name   string
	Fields []Field
}

func (StructKind) isKind() {}
func (s StructKind) String() string {
	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Name, f.Kind)
	}
	return fmt.Sprintf("%s { %s }", s.Name, strings.Join(parts, ", "))
}

func Struct(name string, fields ...Field) Kind {
	return StructKind{Name: name, Fields: fields}
}

// Alignment decides which side of an enum's bit layout the discriminant
// occupies.
type Alignment int

const (
	LSB Alignment = iota
	MSB
)

func (a Alignment) String() string {
	if a == LSB {
		return "lsb"
	}
	return "msb"
}

// DiscriminantLayout pins the width, side, and signedness of an enum's tag.
type DiscriminantLayout struct {
	Width     int
	Align     Alignment
	Signed    bool
}

// Variant is one arm of an EnumKind: a name, an optional payload Kind (use
// Empty for a payload-less variant), and the concrete discriminant value.
type Variant struct {
	Name        string
	Payload     Kind
	Discriminant int64
}

// EnumKind is [discriminant bits] || [payload bits], payload width the max
// over all variants, short payloads padded with X.
type EnumKind struct {
	Name     string
	Variants []Variant
	Layout   DiscriminantLayout
}

func (EnumKind) isKind() {}
func (e EnumKind) String() string {
	parts := make([]string, len(e.Variants))
	for i, v := range e.Variants {
		parts[i] = fmt.Sprintf("%s = %d", v.Name, v.Discriminant)
	}
	return fmt.Sprintf("%s { %s }", e.Name, strings.Join(parts, ", "))
}

func Enum(name string, layout DiscriminantLayout, variants ...Variant) Kind {
	return EnumKind{Name: name, Variants: variants, Layout: layout}
}

// OptionOf and ResultOf are the two enum presets the kernel surface leans
// on pervasively (grounded in original_source's Option<T>/Result<T,E>);
// RTIF's Wrap opcode constructs values of exactly these shapes.
func OptionOf(payload Kind) Kind {
	return Enum("Option", DiscriminantLayout{Width: 1, Align: LSB, Signed: false},
		Variant{Name: "None", Payload: Empty, Discriminant: 0},
		Variant{Name: "Some", Payload: payload, Discriminant: 1},
	)
}

func ResultOf(ok, err Kind) Kind {
	return Enum("Result", DiscriminantLayout{Width: 1, Align: LSB, Signed: false},
		Variant{Name: "Err", Payload: err, Discriminant: 0},
		Variant{Name: "Ok", Payload: ok, Discriminant: 1},
	)
}

// Color is a nominal clock-domain tag; two signals are in the same domain
// iff their Color values compare equal.
type Color string

// NoColor denotes a value with no clock-domain association (a plain
// combinatorial value, not wrapped in Signal).
const NoColor Color = ""

// SignalKind carries an Inner kind plus the clock domain it's asserted to
// change synchronously with. The layout is identical to Inner; Color is a
// type-level annotation only and contributes zero bits.
type SignalKind struct {
	Inner Kind
	Color Color
}

func (SignalKind) isKind() {}
func (s SignalKind) String() string {
	return fmt.Sprintf("Signal<%s, %s>", s.Inner, s.Color)
}

func Signal(inner Kind, color Color) Kind { return SignalKind{Inner: inner, Color: color} }

// ClockReset is the 2-bit (clock edge, active-high reset) pair threaded to
// every synchronous element.
type ClockReset struct {
	Clock Kind // always BitsKind{1}
	Reset Kind // always BitsKind{1}
}

// NewClockReset returns the canonical ClockReset kind pairing.
func NewClockReset() ClockReset {
	return ClockReset{Clock: Bits(1), Reset: Bits(1)}
}
