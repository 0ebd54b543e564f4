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
	"fmt"

	"hwkit/ast"
	"hwkit/rtl"
)

// FromRTL emits the word-level view of a Module: one signal per Reg at
// its own bit width, binary/unary ops rendered as Verilog operators
// instead of gate trees. This is the form a human reads while debugging
// synthesis (a 32-bit adder stays one "+", not 32 full-adder assigns),
// traded against FromNTL's bit-exact output.
func FromRTL(m *rtl.Module) *Module {
	inWidth := 0
	for _, p := range m.Params {
		inWidth += m.Regs.Width(p)
	}
	out := &Module{
		Name: m.Name,
		Ports: []Port{
			{Name: "clock_reset", Width: 2, Dir: DirIn},
			{Name: "i", Width: inWidth, Dir: DirIn},
			{Name: "o", Width: regWidth(m, m.Result), Dir: DirOut},
		},
	}
	e := &rtlEmitter{m: m, out: out, name: make(map[rtl.Reg]string)}
	bit := 0
	for _, p := range m.Params {
		w := m.Regs.Width(p)
		e.name[p] = fmt.Sprintf("i[%d:%d]", bit+w-1, bit)
		bit += w
	}
	for _, inst := range m.Insts {
		e.emit(inst)
	}
	if m.Result != rtl.NoReg {
		out.Stmts = append(out.Stmts, AssignStmt{Target: "o", Value: IdentExpr{Name: e.ref(m.Result)}})
	}
	return out
}

func regWidth(m *rtl.Module, r rtl.Reg) int {
	if r == rtl.NoReg {
		return 0
	}
	return m.Regs.Width(r)
}

type rtlEmitter struct {
	m    *rtl.Module
	out  *Module
	name map[rtl.Reg]string
	next int
}

func (e *rtlEmitter) ref(r rtl.Reg) string {
	if n, ok := e.name[r]; ok {
		return n
	}
	if v, ok := e.m.Regs.ConstValue(r); ok {
		return fmt.Sprintf("%d'd%d", v.Width(), v.Uint64())
	}
	panic(fmt.Sprintf("hdl: FromRTL: reg %v referenced before its defining Inst was emitted", r))
}

func (e *rtlEmitter) declare(r rtl.Reg, isReg bool) string {
	name := fmt.Sprintf("w%d", e.next)
	e.next++
	e.name[r] = name
	e.out.Decls = append(e.out.Decls, Decl{Name: name, Width: e.m.Regs.Width(r), IsReg: isReg})
	return name
}

func (e *rtlEmitter) emit(inst rtl.Inst) {
	switch inst.Code {
	case rtl.CodeRetime:
		name := e.declare(inst.LHS, true)
		e.out.Stmts = append(e.out.Stmts, AlwaysFF{
			Clock: "clock_reset[0]", Reset: "clock_reset[1]",
			ResetAssigns: []NonBlockAssign{{Target: name, Value: LiteralExpr{Width: e.m.Regs.Width(inst.LHS), Bits: "0"}}},
			Body:         []NonBlockAssign{{Target: name, Value: IdentExpr{Name: e.ref(inst.Args[0])}}},
		})
		return
	case rtl.CodeCall:
		instName := fmt.Sprintf("u%d", e.next)
		name := e.declare(inst.LHS, false)
		parts := make([]Expr, len(inst.Args))
		for i, a := range inst.Args {
			parts[len(inst.Args)-1-i] = IdentExpr{Name: e.ref(a)}
		}
		conns := []PortConn{
			{Port: "clock_reset", Net: IdentExpr{Name: "clock_reset"}},
			{Port: "i", Net: ConcatExpr{Parts: parts}},
			{Port: "o", Net: IdentExpr{Name: name}},
		}
		e.out.Stmts = append(e.out.Stmts, InstanceStmt{ModuleName: inst.Callee, InstName: instName, Conns: conns})
		return
	}
	name := e.declare(inst.LHS, false)
	e.out.Stmts = append(e.out.Stmts, AssignStmt{Target: name, Value: e.exprFor(inst)})
}

func (e *rtlEmitter) exprFor(inst rtl.Inst) Expr {
	switch inst.Code {
	case rtl.CodeBinary:
		return BinaryExpr{Op: binOpSymbol(inst.BinOp), L: IdentExpr{Name: e.ref(inst.Args[0])}, R: IdentExpr{Name: e.ref(inst.Args[1])}}
	case rtl.CodeUnary:
		return UnaryExpr{Op: unOpSymbol(inst.UnOp), X: IdentExpr{Name: e.ref(inst.Args[0])}}
	case rtl.CodeConcat:
		parts := make([]Expr, len(inst.Args))
		for i, a := range inst.Args {
			parts[len(inst.Args)-1-i] = IdentExpr{Name: e.ref(a)}
		}
		return ConcatExpr{Parts: parts}
	case rtl.CodeIndexBits:
		return SliceExpr{Base: IdentExpr{Name: e.ref(inst.Args[0])}, High: inst.Range.High - 1, Low: inst.Range.Low}
	case rtl.CodeSplice:
		base := IdentExpr{Name: e.ref(inst.Args[0])}
		repl := IdentExpr{Name: e.ref(inst.Args[1])}
		top := e.m.Regs.Width(inst.Args[0]) - 1
		parts := make([]Expr, 0, 3)
		if top >= inst.Range.High {
			parts = append(parts, SliceExpr{Base: base, High: top, Low: inst.Range.High})
		}
		parts = append(parts, repl)
		if inst.Range.Low > 0 {
			parts = append(parts, SliceExpr{Base: base, High: inst.Range.Low - 1, Low: 0})
		}
		return ConcatExpr{Parts: parts}
	case rtl.CodeCase:
		var expr Expr
		for _, arm := range inst.Table {
			if arm.Default {
				expr = IdentExpr{Name: e.ref(arm.Result)}
			}
		}
		if expr == nil {
			expr = LiteralExpr{Width: 1, Bits: "x"}
		}
		for _, arm := range inst.Table {
			if arm.Default {
				continue
			}
			cond := BinaryExpr{Op: "==", L: IdentExpr{Name: e.refDisc(inst)}, R: IdentExpr{Name: e.ref(arm.Key)}}
			expr = TernaryExpr{Cond: cond, T: IdentExpr{Name: e.ref(arm.Result)}, F: expr}
		}
		return expr
	case rtl.CodeCast:
		return IdentExpr{Name: e.ref(inst.Args[0])}
	default:
		return IdentExpr{Name: "/* unhandled */"}
	}
}

func (e *rtlEmitter) refDisc(inst rtl.Inst) string { return e.ref(inst.Args[0]) }

func binOpSymbol(op ast.BinOp) string {
	switch op {
	case ast.OpAdd:
		return "+"
	case ast.OpSub:
		return "-"
	case ast.OpMul:
		return "*"
	case ast.OpAnd, ast.OpLogAnd:
		return "&"
	case ast.OpOr, ast.OpLogOr:
		return "|"
	case ast.OpXor:
		return "^"
	case ast.OpShl:
		return "<<"
	case ast.OpShr:
		return ">>"
	case ast.OpEq:
		return "=="
	case ast.OpNe:
		return "!="
	case ast.OpLt:
		return "<"
	case ast.OpLe:
		return "<="
	case ast.OpGt:
		return ">"
	case ast.OpGe:
		return ">="
	default:
		return "?"
	}
}

func unOpSymbol(op ast.UnOp) string {
	switch op {
	case ast.OpNeg:
		return "-"
	case ast.OpNot, ast.OpLogNot:
		return "~"
	default:
		return "?"
	}
}
