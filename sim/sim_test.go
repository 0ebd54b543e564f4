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
package sim

import (
	"testing"

	"hwkit/ast"
	"hwkit/bits"
	"hwkit/kind"
	"hwkit/ntl"
	"hwkit/rtl"
)

func bitOf(v bool) kind.BitX {
	if v {
		return kind.Bit1
	}
	return kind.Bit0
}

// TestFlipFlopCycleDelayMatchesScenarioFour builds a 1-bit D flip-flop
// netlist directly and checks the one-cycle delay described in spec.md §8
// scenario 4: driven by [false, true, true, false], the output sequence is
// [init, false, true, true].
func TestFlipFlopCycleDelayMatchesScenarioFour(t *testing.T) {
	d := ntl.NewInput("d")
	clk := ntl.NewInput("clk")
	rst := ntl.NewInput("rst")
	q := ntl.NewGate(ntl.GateFlop, clk, rst, d)
	n := &ntl.Netlist{
		Name:    "dff",
		Inputs:  [][]*ntl.Wire{{d}},
		Outputs: []*ntl.Wire{q},
		Clock:   clk,
		Reset:   rst,
		Flops:   []*ntl.Wire{q},
	}
	c := NewCycle(n)
	drive := []bool{false, true, true, false}
	want := []bool{false, false, true, true}
	for i, in := range drive {
		out, err := c.Step([][]kind.BitX{{bitOf(in)}})
		if err != nil {
			t.Fatalf("Step(%d): %v", i, err)
		}
		if len(out) != 1 {
			t.Fatalf("Step(%d): got %d output bits, want 1", i, len(out))
		}
		got := out[0] == kind.Bit1
		if got != want[i] {
			t.Fatalf("Step(%d): output = %v, want %v", i, got, want[i])
		}
	}
}

// TestDidNotConvergePanicsOnCombinationalBackEdge builds a self-referential
// NOT gate (x = !x) and checks the simulator panics with a did-not-converge
// diagnostic instead of looping forever, per spec.md §8 scenario 6.
func TestDidNotConvergePanicsOnCombinationalBackEdge(t *testing.T) {
	w := &ntl.Wire{}
	w.Origin = ntl.Gate{Op: ntl.GateNot, Ins: []*ntl.Wire{w}}
	n := &ntl.Netlist{
		Name:    "backEdge",
		Outputs: []*ntl.Wire{w},
		Clock:   ntl.NewConst(kind.Bit0),
		Reset:   ntl.NewConst(kind.Bit0),
	}
	c := NewCycle(n)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected a panic from a combinational back-edge, got none")
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("panic value is %T, want error", r)
		}
		if got := err.Error(); !contains(got, "did not converge") {
			t.Fatalf("panic message %q does not mention did-not-converge", got)
		}
	}()
	_, _ = c.Step(nil)
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// TestEvalRTLMatchesCycleOnBitBlownDownNetlist exercises the NTL-equals-RTL
// testable property: the word-level rtl interpreter (EvalRTL) and the
// bit-level netlist interpreter (Cycle, folding each gate via ntl.FoldGate)
// agree on the 8-bit adder wraparound scenario (200 + 100 mod 256 = 44).
func TestEvalRTLMatchesCycleOnBitBlownDownNetlist(t *testing.T) {
	mod := rtl.NewModule("adder")
	a := mod.Regs.New(8, false)
	b := mod.Regs.New(8, false)
	mod.Params = []rtl.Reg{a, b}
	sum := mod.Regs.New(8, false)
	mod.Insts = append(mod.Insts, rtl.Inst{Code: rtl.CodeBinary, LHS: sum, Args: []rtl.Reg{a, b}, BinOp: ast.OpAdd})
	mod.Result = sum

	av := bits.New(8, 200)
	bv := bits.New(8, 100)
	wantVal, err := EvalRTL(mod, []bits.Value{av, bv})
	if err != nil {
		t.Fatalf("EvalRTL: %v", err)
	}
	if wantVal.Uint64() != 44 {
		t.Fatalf("EvalRTL adder(200,100) = %d, want 44", wantVal.Uint64())
	}

	n, err := rtl.LowerToNTL(mod, nil)
	if err != nil {
		t.Fatalf("LowerToNTL: %v", err)
	}
	c := NewCycle(n)
	inBits := [][]kind.BitX{valueBits(av), valueBits(bv)}
	out, err := c.Step(inBits)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	var got uint64
	for i, bit := range out {
		if bit == kind.BitUnknown {
			t.Fatalf("output bit %d is X", i)
		}
		if bit == kind.Bit1 {
			got |= 1 << uint(i)
		}
	}
	if got != wantVal.Uint64() {
		t.Fatalf("Cycle.Step adder(200,100) = %d, want %d (EvalRTL oracle)", got, wantVal.Uint64())
	}
}

func valueBits(v bits.Value) []kind.BitX {
	out := make([]kind.BitX, v.Width())
	u := v.Uint64()
	for i := range out {
		out[i] = bitOf((u>>uint(i))&1 == 1)
	}
	return out
}

// TestStreamWithResetPrependsBeats checks the with_reset combinator
// prepends n reset beats ahead of the source stream, per spec.md §4.S.
func TestStreamWithResetPrependsBeats(t *testing.T) {
	s := FromSlice([]int{5, 6, 7})
	withReset := WithReset(s, 2, 0)
	got := Collect(withReset)
	want := []int{0, 0, 5, 6, 7}
	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Value != w {
			t.Fatalf("got[%d].Value = %d, want %d", i, got[i].Value, w)
		}
	}
}

// TestStreamSampleAtPosEdgeFiltersBeats checks that only beats satisfying
// the predicate survive.
func TestStreamSampleAtPosEdgeFiltersBeats(t *testing.T) {
	s := FromSlice([]bool{false, true, false, true})
	sampled := SampleAtPosEdge(s, func(b bool) bool { return b })
	got := Collect(sampled)
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	for _, s := range got {
		if !s.Value {
			t.Fatalf("sampled a false beat, predicate should have excluded it")
		}
	}
}

// TestTracePageRecordsSamplesDuringStep checks a Cycle records one Sample
// per output bit while a page is entered, and records nothing once the
// page is left.
func TestTracePageRecordsSamplesDuringStep(t *testing.T) {
	d := ntl.NewInput("d")
	clk := ntl.NewInput("clk")
	rst := ntl.NewInput("rst")
	q := ntl.NewGate(ntl.GateFlop, clk, rst, d)
	n := &ntl.Netlist{
		Name:    "dff",
		Inputs:  [][]*ntl.Wire{{d}},
		Outputs: []*ntl.Wire{q},
		Clock:   clk,
		Reset:   rst,
		Flops:   []*ntl.Wire{q},
	}
	c := NewCycle(n)
	page := NewTracePage()
	EnterTracePage(page)
	if _, err := c.Step([][]kind.BitX{{kind.Bit1}}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	LeaveTracePage()
	if len(page.Samples()) != 1 {
		t.Fatalf("len(Samples()) = %d, want 1", len(page.Samples()))
	}

	if _, err := c.Step([][]kind.BitX{{kind.Bit1}}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if len(page.Samples()) != 1 {
		t.Fatalf("page recorded a sample after LeaveTracePage, len = %d", len(page.Samples()))
	}
}
