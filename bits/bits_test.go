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
package bits

import "testing"

func TestAddWrapsAt8Bits(t *testing.T) {
	a := New(8, 200)
	b := New(8, 100)
	got := Add(a, b)
	if got.Uint64() != 44 {
		t.Fatalf("200+100 mod 256 = %d, want 44", got.Uint64())
	}
}

func TestAdderScenario(t *testing.T) {
	a := New(8, 3)
	b := New(8, 17)
	if got := Add(a, b).Uint64(); got != 20 {
		t.Fatalf("3+17 = %d, want 20", got)
	}
}

func TestSignedRightShiftPreservesSign(t *testing.T) {
	v := NewSigned(12, -42)
	got := Sar(v, 2)
	if got.Int64() != -11 {
		t.Fatalf("-42 >>> 2 = %d, want -11", got.Int64())
	}
}

func TestExtendedSubtractWidens(t *testing.T) {
	a := New(8, 0)
	b := New(8, 255)
	got := XSub(a, b)
	if got.Width() != 9 {
		t.Fatalf("XSub width = %d, want 9", got.Width())
	}
	if got.Int64() != -255 {
		t.Fatalf("0 `XSub` 255 = %d, want -255", got.Int64())
	}
}

func TestResizeSignExtends(t *testing.T) {
	v := NewSigned(4, -1) // 0b1111
	got := Resize(v, 8)
	if got.Int64() != -1 {
		t.Fatalf("sign-extend of -1 = %d, want -1", got.Int64())
	}
}

func TestResizeZeroExtends(t *testing.T) {
	v := New(4, 0xF)
	got := Resize(v, 8)
	if got.Uint64() != 0xF {
		t.Fatalf("zero-extend of 0xF = %x, want 0xF", got.Uint64())
	}
}

func TestResizeTruncates(t *testing.T) {
	v := New(8, 0xFF)
	got := Resize(v, 4)
	if got.Uint64() != 0xF {
		t.Fatalf("truncate 0xFF to 4 bits = %x, want 0xF", got.Uint64())
	}
}

func TestCmp(t *testing.T) {
	a := New(8, 3)
	b := New(8, 5)
	if !Cmp(CmpLT, a, b) {
		t.Fatal("3 < 5 should hold")
	}
	if Cmp(CmpEQ, a, b) {
		t.Fatal("3 == 5 should not hold")
	}
}

func TestXMulWidthIsSum(t *testing.T) {
	a := New(4, 3)
	b := New(4, 3)
	got := XMul(a, b)
	if got.Width() != 8 {
		t.Fatalf("XMul width = %d, want 8", got.Width())
	}
	if got.Uint64() != 9 {
		t.Fatalf("3*3 = %d, want 9", got.Uint64())
	}
}
