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

	"hwkit/kind"
	"hwkit/ntl"
)

// FromNTL emits the bit-exact, gate-level view of a Netlist: one
// continuous assign per combinational Wire and one AlwaysFF register per
// Flop, matching the HDL surface contract's "clock_reset"/"i"/"o" ports
// (spec.md §6). This is the form hdl/printer's output can be diffed
// bit-for-bit against a hand-written reference netlist.
func FromNTL(n *ntl.Netlist) *Module {
	inWidth := 0
	for _, bus := range n.Inputs {
		inWidth += len(bus)
	}
	m := &Module{
		Name: n.Name,
		Ports: []Port{
			{Name: "clock_reset", Width: 2, Dir: DirIn},
			{Name: "i", Width: inWidth, Dir: DirIn},
			{Name: "o", Width: len(n.Outputs), Dir: DirOut},
		},
	}

	e := &ntlEmitter{n: n, m: m, name: make(map[*ntl.Wire]string)}
	bit := 0
	for _, bus := range n.Inputs {
		for _, w := range bus {
			e.name[w] = fmt.Sprintf("i[%d]", bit)
			bit++
		}
	}
	e.name[n.Clock] = "clock_reset[0]"
	e.name[n.Reset] = "clock_reset[1]"

	walkAll(n, func(w *ntl.Wire) { e.emit(w) })

	parts := make([]Expr, len(n.Outputs))
	for i, w := range n.Outputs {
		parts[len(n.Outputs)-1-i] = IdentExpr{Name: e.ref(w)}
	}
	m.Stmts = append(m.Stmts, AssignStmt{Target: "o", Value: ConcatExpr{Parts: parts}})
	return m
}

// walkAll visits every reachable Wire, children before parents, exactly
// once — the same post-order contract ntl's own reachability walk uses,
// duplicated here (rather than imported) since emission order additionally
// needs the root set to include every Flop's D input even when dead-wire
// elimination hasn't run yet.
func walkAll(n *ntl.Netlist, fn func(*ntl.Wire)) {
	seen := make(map[*ntl.Wire]bool)
	var visit func(w *ntl.Wire)
	visit = func(w *ntl.Wire) {
		if w == nil || seen[w] {
			return
		}
		seen[w] = true
		if g, ok := w.Origin.(ntl.Gate); ok {
			for _, in := range g.Ins {
				visit(in)
			}
		}
		fn(w)
	}
	for _, w := range n.Outputs {
		visit(w)
	}
	for _, w := range n.Flops {
		visit(w)
	}
}

type ntlEmitter struct {
	n    *ntl.Netlist
	m    *Module
	name map[*ntl.Wire]string
	next int
}

func (e *ntlEmitter) ref(w *ntl.Wire) string {
	if n, ok := e.name[w]; ok {
		return n
	}
	switch o := w.Origin.(type) {
	case ntl.Const:
		return fmt.Sprintf("1'b%s", bitLetter(o.Value))
	default:
		// Every Gate/Flop wire is named by emit before it is ever
		// referenced, since walkAll visits children first; reaching here
		// means a wire was referenced without being walked, an ICE-class
		// bug in the walk, not a user-facing synthesis error.
		panic(fmt.Sprintf("hdl: FromNTL: wire referenced before emission (origin %T)", w.Origin))
	}
}

func bitLetter(b kind.BitX) string {
	switch b {
	case kind.Bit0:
		return "0"
	case kind.Bit1:
		return "1"
	default:
		return "x"
	}
}

func (e *ntlEmitter) emit(w *ntl.Wire) {
	switch o := w.Origin.(type) {
	case ntl.Input, ntl.Const:
		// Already named (Input) or rendered inline on reference (Const);
		// neither needs a declaration or a statement of its own.
		return
	case ntl.Gate:
		name := fmt.Sprintf("w%d", e.next)
		e.next++
		e.name[w] = name
		if o.Op == ntl.GateFlop {
			e.m.Decls = append(e.m.Decls, Decl{Name: name, Width: 1, IsReg: true})
			e.m.Stmts = append(e.m.Stmts, AlwaysFF{
				Clock: e.ref(o.Ins[0]),
				Reset: e.ref(o.Ins[1]),
				ResetAssigns: []NonBlockAssign{{Target: name, Value: LiteralExpr{Width: 1, Bits: "0"}}},
				Body:         []NonBlockAssign{{Target: name, Value: IdentExpr{Name: e.ref(o.Ins[2])}}},
			})
			return
		}
		e.m.Decls = append(e.m.Decls, Decl{Name: name, Width: 1})
		e.m.Stmts = append(e.m.Stmts, AssignStmt{Target: name, Value: gateExpr(o, e)})
	}
}

func gateExpr(g ntl.Gate, e *ntlEmitter) Expr {
	ins := make([]Expr, len(g.Ins))
	for i, w := range g.Ins {
		ins[i] = IdentExpr{Name: e.ref(w)}
	}
	switch g.Op {
	case ntl.GateNot:
		return UnaryExpr{Op: "~", X: ins[0]}
	case ntl.GateAnd:
		return BinaryExpr{Op: "&", L: ins[0], R: ins[1]}
	case ntl.GateOr:
		return BinaryExpr{Op: "|", L: ins[0], R: ins[1]}
	case ntl.GateXor:
		return BinaryExpr{Op: "^", L: ins[0], R: ins[1]}
	case ntl.GateMux:
		return TernaryExpr{Cond: ins[0], F: ins[1], T: ins[2]}
	default:
		return IdentExpr{Name: "/* unhandled gate */"}
	}
}
