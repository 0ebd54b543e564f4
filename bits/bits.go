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

// Package bits is the fixed-width bit-vector arithmetic oracle the rest of
// hwkit treats as an external collaborator (see spec §6). It is the only
// place wrap/extend semantics for signed and unsigned hardware integers are
// defined; constant folding, the RTIF/NTL interpreters, and literal emission
// all route through it instead of growing their own copies.
//
// Values are backed by math/big; the precomputed width masks cover widths
// 0..MaxWidth (128), and the compiler never asks this package to perform a
// single arithmetic op wider than 128 bits — wider operations are
// bit-sliced by rtl before reaching ntl.
package bits

import (
	"fmt"
	"math/big"
)

// MaxWidth is the widest single arithmetic operation the compiler will ever
// fold through this oracle. Wider values (arrays, structs) are legal Kinds
// but are never added, subtracted, multiplied, shifted, or compared as one
// operand; rtl splits them into MaxWidth-or-narrower pieces first.
const MaxWidth = 128

// Value is a fixed-width two's-complement-or-unsigned bit vector. It is the
// runtime representation backing kind.TypedBits and every literal that
// reaches rtif/rtl/ntl.
type Value struct {
	bits   *big.Int
	width  int
	signed bool
}

var mask = func() [MaxWidth + 1]*big.Int {
	var m [MaxWidth + 1]*big.Int
	one := big.NewInt(1)
	for w := 0; w <= MaxWidth; w++ {
		t := new(big.Int).Lsh(one, uint(w))
		m[w] = t.Sub(t, one)
	}
	return m
}()

// New builds an unsigned Value of the given width from a uint64, truncating
// silently (callers that care about overflow use FromBigInt + check).
func New(width int, v uint64) Value {
	b := new(big.Int).SetUint64(v)
	b.And(b, mask[width])
	return Value{bits: b, width: width, signed: false}
}

// NewSigned builds a signed Value of the given width from an int64, wrapping
// it into two's-complement representation mod 2^width.
func NewSigned(width int, v int64) Value {
	b := big.NewInt(v)
	if b.Sign() < 0 {
		twoN := new(big.Int).Lsh(big.NewInt(1), uint(width))
		b.Add(b, twoN)
	}
	b.And(b, mask[width])
	return Value{bits: b, width: width, signed: true}
}

// FromBigInt wraps an already-reduced magnitude. Used by the NTL/RTIF
// interpreters when reconstructing a Value from simulated bit state.
func FromBigInt(width int, signed bool, mag *big.Int) Value {
	b := new(big.Int).And(mag, mask[width])
	return Value{bits: b, width: width, signed: signed}
}

func (v Value) Width() int   { return v.width }
func (v Value) Signed() bool { return v.signed }

// Uint64 returns the unsigned bit pattern truncated to 64 bits; valid for
// widths <= 64, used by literal emission and fast-path simulation.
func (v Value) Uint64() uint64 { return v.bits.Uint64() }

// Int64 interprets the bit pattern as signed regardless of v.signed, used
// when a caller has already decided the interpretation (e.g. AsSigned).
func (v Value) Int64() int64 {
	if v.width == 0 {
		return 0
	}
	signBit := new(big.Int).Rsh(v.bits, uint(v.width-1))
	if signBit.Bit(0) == 0 {
		return v.bits.Int64()
	}
	twoN := new(big.Int).Lsh(big.NewInt(1), uint(v.width))
	neg := new(big.Int).Sub(v.bits, twoN)
	return neg.Int64()
}

func (v Value) String() string {
	if v.signed {
		return fmt.Sprintf("s%d'h%x", v.width, v.Int64())
	}
	return fmt.Sprintf("u%d'h%x", v.width, v.bits)
}

func (v Value) clone() *big.Int { return new(big.Int).Set(v.bits) }

func wrap(width int, signed bool, b *big.Int) Value {
	r := new(big.Int).And(b, mask[width])
	return Value{bits: r, width: width, signed: signed}
}

// Add performs wrapping addition; both operands must share width.
func Add(a, b Value) Value {
	requireSameWidth(a, b)
	return wrap(a.width, a.signed, new(big.Int).Add(a.clone(), b.bits))
}

// Sub performs wrapping subtraction.
func Sub(a, b Value) Value {
	requireSameWidth(a, b)
	return wrap(a.width, a.signed, new(big.Int).Sub(a.clone(), b.bits))
}

// Mul performs wrapping multiplication, result truncated to operand width.
func Mul(a, b Value) Value {
	requireSameWidth(a, b)
	return wrap(a.width, a.signed, new(big.Int).Mul(a.clone(), b.bits))
}

// XAdd is the extended ("widening") add: result width = max(a,b)+1, per
// spec §6's widening contract for XAdd/XSub.
func XAdd(a, b Value) Value {
	w := maxInt(a.width, b.width) + 1
	av, bv := signedMagnitude(a), signedMagnitude(b)
	sum := new(big.Int).Add(av, bv)
	return NewSigned(w, sum.Int64())
}

// XSub is the extended subtract: result width = max(a,b)+1, signed.
func XSub(a, b Value) Value {
	w := maxInt(a.width, b.width) + 1
	av, bv := signedMagnitude(a), signedMagnitude(b)
	diff := new(big.Int).Sub(av, bv)
	return NewSigned(w, diff.Int64())
}

// XMul is the extended multiply: result width = a.width + b.width, signed.
func XMul(a, b Value) Value {
	w := a.width + b.width
	av, bv := signedMagnitude(a), signedMagnitude(b)
	prod := new(big.Int).Mul(av, bv)
	return NewSigned(w, prod.Int64())
}

func signedMagnitude(v Value) *big.Int {
	if v.signed {
		return big.NewInt(v.Int64())
	}
	return v.clone()
}

// And, Or, Xor, Not are bitwise; Not is width-preserving one's complement
// masked back into range.
func And(a, b Value) Value { requireSameWidth(a, b); return wrap(a.width, a.signed, new(big.Int).And(a.clone(), b.bits)) }
func Or(a, b Value) Value  { requireSameWidth(a, b); return wrap(a.width, a.signed, new(big.Int).Or(a.clone(), b.bits)) }
func Xor(a, b Value) Value { requireSameWidth(a, b); return wrap(a.width, a.signed, new(big.Int).Xor(a.clone(), b.bits)) }
func Not(a Value) Value    { return wrap(a.width, a.signed, new(big.Int).Xor(a.clone(), mask[a.width])) }

// Shl is a logical left shift; bits shifted past the width are dropped.
func Shl(a Value, n uint) Value {
	return wrap(a.width, a.signed, new(big.Int).Lsh(a.clone(), n))
}

// Shr is a logical (unsigned) right shift.
func Shr(a Value, n uint) Value {
	return wrap(a.width, a.signed, new(big.Int).Rsh(a.clone(), n))
}

// Sar is an arithmetic right shift: the vacated high bits are filled with
// the sign bit, matching scenario 2 of spec §8 (signed right shift preserves
// sign).
func Sar(a Value, n uint) Value {
	signed := a.Int64()
	shifted := signed >> n
	return NewSigned(a.width, shifted)
}

// Cmp implements the six comparison operators; X-handling at the kind/rtif
// layer substitutes unknown results before this is ever called with
// concrete operands.
type CmpOp int

const (
	CmpEQ CmpOp = iota
	CmpNE
	CmpLT
	CmpLE
	CmpGT
	CmpGE
)

func Cmp(op CmpOp, a, b Value) bool {
	requireSameWidth(a, b)
	var av, bv *big.Int
	if a.signed {
		av, bv = big.NewInt(a.Int64()), big.NewInt(b.Int64())
	} else {
		av, bv = a.bits, b.bits
	}
	c := av.Cmp(bv)
	switch op {
	case CmpEQ:
		return c == 0
	case CmpNE:
		return c != 0
	case CmpLT:
		return c < 0
	case CmpLE:
		return c <= 0
	case CmpGT:
		return c > 0
	case CmpGE:
		return c >= 0
	}
	panic("bits: unknown comparison operator")
}

// AsUnsigned reinterprets the same bit pattern as unsigned, width unchanged.
func AsUnsigned(a Value) Value { return Value{bits: a.clone(), width: a.width, signed: false} }

// AsSigned reinterprets the same bit pattern as signed, width unchanged.
func AsSigned(a Value) Value { return Value{bits: a.clone(), width: a.width, signed: true} }

// Resize truncates or extends to a new width: truncation drops high bits,
// extension zero-extends unsigned values and sign-extends signed ones.
func Resize(a Value, width int) Value {
	if width <= a.width {
		return wrap(width, a.signed, a.clone())
	}
	if !a.signed {
		return wrap(width, false, a.clone())
	}
	return NewSigned(width, a.Int64())
}

func requireSameWidth(a, b Value) {
	if a.width != b.width {
		panic(fmt.Sprintf("bits: operand width mismatch %d vs %d", a.width, b.width))
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
