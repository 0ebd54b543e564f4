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

// Package printer renders an *hdl.Module to Verilog-2001 text. It is kept
// separate from package hdl itself so a caller that only needs the
// structured AST (to compute a HDL-parity property, or to feed a different
// backend) never pulls in text-formatting concerns.
package printer

import (
	"fmt"

	"hwkit/hdl"
)

// Printer accumulates Verilog source the way falcon's codegen.Assembler
// accumulates assembly: a plain string buffer grown by fmt.Sprintf, no
// AST revisits once a line is emitted.
type Printer struct {
	buf    string
	indent int
}

// Print renders a single Module and everything reachable through its
// Instances, each as its own `module ... endmodule` block, parents first.
func Print(m *hdl.Module) string {
	p := &Printer{}
	p.module(m)
	return p.buf
}

func (p *Printer) line(format string, args ...interface{}) {
	for i := 0; i < p.indent; i++ {
		p.buf += "  "
	}
	p.buf += fmt.Sprintf(format, args...)
	p.buf += "\n"
}

func (p *Printer) module(m *hdl.Module) {
	ports := make([]string, 0, len(m.Ports))
	for _, port := range m.Ports {
		ports = append(ports, port.Name)
	}
	p.line("module %s(%s);", m.Name, joinComma(ports))
	p.indent++
	for _, port := range m.Ports {
		p.line("%s %s;", portDecl(port), port.Name)
	}
	for _, d := range m.Decls {
		kind := "wire"
		if d.IsReg {
			kind = "reg"
		}
		p.line("%s%s %s;", kind, widthSuffix(d.Width), d.Name)
	}
	for _, s := range m.Stmts {
		p.stmt(s)
	}
	p.indent--
	p.line("endmodule")
	p.buf += "\n"
	for _, child := range m.Instances {
		p.module(child)
	}
}

func portDecl(port hdl.Port) string {
	return fmt.Sprintf("%s%s", port.Dir, widthSuffix(port.Width))
}

func widthSuffix(width int) string {
	if width <= 1 {
		return ""
	}
	return fmt.Sprintf(" [%d:0]", width-1)
}

func (p *Printer) stmt(s hdl.Stmt) {
	switch st := s.(type) {
	case hdl.AssignStmt:
		p.line("assign %s = %s;", st.Target, p.expr(st.Value))
	case hdl.NonBlockAssign:
		p.line("%s <= %s;", st.Target, p.expr(st.Value))
	case hdl.AlwaysFF:
		p.line("always @(posedge %s) begin", st.Clock)
		p.indent++
		p.line("if (%s) begin", st.Reset)
		p.indent++
		for _, a := range st.ResetAssigns {
			p.line("%s <= %s;", a.Target, p.expr(a.Value))
		}
		p.indent--
		p.line("end else begin")
		p.indent++
		for _, a := range st.Body {
			p.line("%s <= %s;", a.Target, p.expr(a.Value))
		}
		p.indent--
		p.line("end")
		p.indent--
		p.line("end")
	case hdl.InstanceStmt:
		conns := make([]string, len(st.Conns))
		for i, c := range st.Conns {
			conns[i] = fmt.Sprintf(".%s(%s)", c.Port, p.expr(c.Net))
		}
		p.line("%s %s(%s);", st.ModuleName, st.InstName, joinComma(conns))
	}
}

func (p *Printer) expr(e hdl.Expr) string {
	switch ex := e.(type) {
	case hdl.IdentExpr:
		return ex.Name
	case hdl.LiteralExpr:
		return fmt.Sprintf("%d'b%s", ex.Width, ex.Bits)
	case hdl.UnaryExpr:
		return fmt.Sprintf("%s%s", ex.Op, p.expr(ex.X))
	case hdl.BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", p.expr(ex.L), ex.Op, p.expr(ex.R))
	case hdl.TernaryExpr:
		return fmt.Sprintf("(%s ? %s : %s)", p.expr(ex.Cond), p.expr(ex.T), p.expr(ex.F))
	case hdl.ConcatExpr:
		parts := make([]string, len(ex.Parts))
		for i, part := range ex.Parts {
			parts[i] = p.expr(part)
		}
		return "{" + joinComma(parts) + "}"
	case hdl.SliceExpr:
		if ex.High == ex.Low {
			return fmt.Sprintf("%s[%d]", p.expr(ex.Base), ex.High)
		}
		return fmt.Sprintf("%s[%d:%d]", p.expr(ex.Base), ex.High, ex.Low)
	default:
		return fmt.Sprintf("/* unprintable expr %T */", e)
	}
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
