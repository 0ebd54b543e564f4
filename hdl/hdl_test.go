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
package hdl

import (
	"strings"
	"testing"

	"hwkit/ast"
	"hwkit/bits"
	"hwkit/kind"
	"hwkit/ntl"
	"hwkit/rtl"
)

func buildAdderModule() *rtl.Module {
	mod := rtl.NewModule("adder")
	a := mod.Regs.New(8, false)
	b := mod.Regs.New(8, false)
	mod.Params = []rtl.Reg{a, b}
	sum := mod.Regs.New(8, false)
	mod.Insts = append(mod.Insts, rtl.Inst{Code: rtl.CodeBinary, LHS: sum, Args: []rtl.Reg{a, b}, BinOp: ast.OpAdd})
	mod.Result = sum
	return mod
}

func TestFromRTLProducesThreePortContract(t *testing.T) {
	mod := buildAdderModule()
	h := FromRTL(mod)
	if len(h.Ports) != 3 {
		t.Fatalf("len(Ports) = %d, want 3", len(h.Ports))
	}
	names := map[string]bool{}
	for _, p := range h.Ports {
		names[p.Name] = true
	}
	for _, want := range []string{"clock_reset", "i", "o"} {
		if !names[want] {
			t.Fatalf("missing port %q", want)
		}
	}
	if len(h.Stmts) == 0 {
		t.Fatalf("expected at least one statement for the adder's Binary inst")
	}
}

func TestFromNTLFoldsConstantNetlistToConcat(t *testing.T) {
	a := ntl.NewConst(kind.Bit1)
	b := ntl.NewConst(kind.Bit0)
	n := &ntl.Netlist{Name: "constOut", Outputs: []*ntl.Wire{a, b}}
	h := FromNTL(n)
	if len(h.Stmts) != 1 {
		t.Fatalf("len(Stmts) = %d, want 1", len(h.Stmts))
	}
	assign, ok := h.Stmts[0].(AssignStmt)
	if !ok {
		t.Fatalf("Stmts[0] is %T, want AssignStmt", h.Stmts[0])
	}
	if assign.Target != "o" {
		t.Fatalf("Target = %q, want %q", assign.Target, "o")
	}
	if _, ok := assign.Value.(ConcatExpr); !ok {
		t.Fatalf("Value is %T, want ConcatExpr", assign.Value)
	}
}

func TestScopedNameJoinsPathWithUnderscore(t *testing.T) {
	if got := ScopedName(nil); got != "top" {
		t.Fatalf("ScopedName(nil) = %q, want %q", got, "top")
	}
	if got := ScopedName([]string{"a", "b"}); got != "a_b" {
		t.Fatalf("ScopedName = %q, want %q", got, "a_b")
	}
}

func TestInstanceNameTwoWayUsesLetters(t *testing.T) {
	if got := InstanceName(0, 2); got != "a" {
		t.Fatalf("InstanceName(0,2) = %q, want %q", got, "a")
	}
	if got := InstanceName(1, 2); got != "b" {
		t.Fatalf("InstanceName(1,2) = %q, want %q", got, "b")
	}
	if got := InstanceName(3, 5); got != "c3" {
		t.Fatalf("InstanceName(3,5) = %q, want %q", got, "c3")
	}
}

func TestModuleMarshalJSONRendersBodyText(t *testing.T) {
	m := &Module{
		Name:  "m",
		Ports: []Port{{Name: "o", Width: 1, Dir: DirOut}},
		Stmts: []Stmt{AssignStmt{Target: "o", Value: LiteralExpr{Width: 1, Bits: "1"}}},
	}
	data, err := m.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if !strings.Contains(string(data), "assign o = 1'b1;") {
		t.Fatalf("MarshalJSON body missing rendered assign, got %s", data)
	}
}

func TestFromRTLConstOperandsKeepModuleName(t *testing.T) {
	mod := rtl.NewModule("refDiscTest")
	a := mod.Regs.InternConst(bits.New(8, 5))
	b := mod.Regs.InternConst(bits.New(8, 6))
	sum := mod.Regs.New(8, false)
	mod.Insts = append(mod.Insts, rtl.Inst{Code: rtl.CodeBinary, LHS: sum, Args: []rtl.Reg{a, b}, BinOp: ast.OpAdd})
	mod.Result = sum
	h := FromRTL(mod)
	if h.Name != "refDiscTest" {
		t.Fatalf("Name = %q", h.Name)
	}
}
