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
package circuit

import (
	"testing"

	"hwkit/ast"
	"hwkit/bits"
	"hwkit/kind"
	"hwkit/rtl"
)

// incrementer builds a 4-bit "b = a + 1" Leaf, wrapping around mod 16.
func incrementer(t *testing.T, name string) *Leaf {
	t.Helper()
	mod := rtl.NewModule(name)
	a := mod.Regs.New(4, false)
	mod.Params = []rtl.Reg{a}
	one := mod.Regs.InternConst(bits.New(4, 1))
	sum := mod.Regs.New(4, false)
	mod.Insts = append(mod.Insts, rtl.Inst{Code: rtl.CodeBinary, LHS: sum, Args: []rtl.Reg{a, one}, BinOp: ast.OpAdd})
	mod.Result = sum

	n, err := rtl.LowerToNTL(mod, nil)
	if err != nil {
		t.Fatalf("LowerToNTL: %v", err)
	}
	b4 := kind.Bits(4)
	return NewLeaf(name, mod, n, b4, b4, nil, nil)
}

func bitsOf(u uint64, width int) []kind.BitX {
	out := make([]kind.BitX, width)
	for i := range out {
		if (u>>uint(i))&1 == 1 {
			out[i] = kind.Bit1
		} else {
			out[i] = kind.Bit0
		}
	}
	return out
}

func uintOf(bs []kind.BitX) uint64 {
	var u uint64
	for i, b := range bs {
		if b == kind.Bit1 {
			u |= 1 << uint(i)
		}
	}
	return u
}

func TestLeafIncrementerWrapsAroundAtNibbleWidth(t *testing.T) {
	c := incrementer(t, "inc")
	state := c.Init()
	out := c.Sim(ClockReset{Clock: kind.Bit1}, bitsOf(15, 4), &state)
	if got := uintOf(out); got != 0 {
		t.Fatalf("inc(15) = %d, want 0 (wraps at nibble width)", got)
	}
}

// TestChainOfTwoIncrementersAddsTwo checks Chain feeds the first child's
// output directly into the second's input.
func TestChainOfTwoIncrementersAddsTwo(t *testing.T) {
	chain := Chain("double_inc", incrementer(t, "inc_a"), incrementer(t, "inc_b"))
	state := chain.Init()
	out := chain.Sim(ClockReset{Clock: kind.Bit1}, bitsOf(5, 4), &state)
	if got := uintOf(out); got != 7 {
		t.Fatalf("chain(5) = %d, want 7", got)
	}
}

// TestStructOfKeepsChildrenIndependent checks StructOf evaluates every
// child against its own slice of the parent input and concatenates
// outputs without cross-talk.
func TestStructOfKeepsChildrenIndependent(t *testing.T) {
	s := StructOf("pair", []string{"x", "y"}, map[string]Circuit{
		"x": incrementer(t, "inc_x"),
		"y": incrementer(t, "inc_y"),
	})
	state := s.Init()
	in := append(append([]kind.BitX{}, bitsOf(3, 4)...), bitsOf(9, 4)...)
	out := s.Sim(ClockReset{Clock: kind.Bit1}, in, &state)
	if len(out) != 8 {
		t.Fatalf("len(out) = %d, want 8", len(out))
	}
	gotX := uintOf(out[:4])
	gotY := uintOf(out[4:])
	if gotX != 4 {
		t.Fatalf("x child = %d, want 4", gotX)
	}
	if gotY != 10 {
		t.Fatalf("y child = %d, want 10", gotY)
	}
}

// TestAdapterIdentityMapMatchesUnadaptedCircuit checks an identity bit map
// delegates straight through to the inner Circuit.
func TestAdapterIdentityMapMatchesUnadaptedCircuit(t *testing.T) {
	inner := incrementer(t, "inc_inner")
	a := Adapter("id_inc", inner, []int{0, 1, 2, 3}, []int{0, 1, 2, 3})
	state := a.Init()
	out := a.Sim(ClockReset{Clock: kind.Bit1}, bitsOf(5, 4), &state)
	if got := uintOf(out); got != 6 {
		t.Fatalf("adapter(5) = %d, want 6", got)
	}
}

// TestAdapterOutputMapSelectsSingleBit checks a narrowing outputMap reads
// back just the requested inner output bit.
func TestAdapterOutputMapSelectsSingleBit(t *testing.T) {
	inner := incrementer(t, "inc_inner2")
	// inc(5) = 6 = 0b0110, bit 1 is 1.
	a := Adapter("low_bit", inner, []int{0, 1, 2, 3}, []int{1})
	state := a.Init()
	out := a.Sim(ClockReset{Clock: kind.Bit1}, bitsOf(5, 4), &state)
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0] != kind.Bit1 {
		t.Fatalf("out[0] = %v, want Bit1", out[0])
	}
}

// TestArrayOfBuildsHomogeneousChildren checks ArrayOf evaluates each of
// its n children independently against its own slice of the input.
func TestArrayOfBuildsHomogeneousChildren(t *testing.T) {
	arr := ArrayOf("bank", 3, func(i int) Circuit { return incrementer(t, "inc_bank") })
	state := arr.Init()
	in := append(append(append([]kind.BitX{}, bitsOf(1, 4)...), bitsOf(2, 4)...), bitsOf(3, 4)...)
	out := arr.Sim(ClockReset{Clock: kind.Bit1}, in, &state)
	want := []uint64{2, 3, 4}
	for i, w := range want {
		if got := uintOf(out[i*4 : i*4+4]); got != w {
			t.Fatalf("bank[%d] = %d, want %d", i, got, w)
		}
	}
}

// TestDescriptorNestsChildrenByName checks the composite Descriptor tree
// mirrors the composition's own child naming.
func TestDescriptorNestsChildrenByName(t *testing.T) {
	s := StructOf("pair", []string{"x", "y"}, map[string]Circuit{
		"x": incrementer(t, "inc_x"),
		"y": incrementer(t, "inc_y"),
	})
	d := s.Descriptor("top")
	if d.Name != "top" {
		t.Fatalf("d.Name = %q, want top", d.Name)
	}
	if _, ok := d.Children["x"]; !ok {
		t.Fatalf("Descriptor missing child %q", "x")
	}
	if d.Children["x"].RTL == nil {
		t.Fatalf("leaf child Descriptor carries no RTL")
	}
}

// TestHDLWiresInstanceForEachChild checks HDL emits one InstanceStmt per
// child and sizes the parent's i/o ports to the sum of the children's.
func TestHDLWiresInstanceForEachChild(t *testing.T) {
	s := StructOf("pair", []string{"x", "y"}, map[string]Circuit{
		"x": incrementer(t, "inc_x"),
		"y": incrementer(t, "inc_y"),
	})
	m := s.HDL("pair")
	if len(m.Instances) != 2 {
		t.Fatalf("len(Instances) = %d, want 2", len(m.Instances))
	}
	if portWidth(m, "i") != 8 {
		t.Fatalf("i width = %d, want 8", portWidth(m, "i"))
	}
	if portWidth(m, "o") != 8 {
		t.Fatalf("o width = %d, want 8", portWidth(m, "o"))
	}
}
