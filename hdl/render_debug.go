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
	"strings"
)

// renderStmts is a terse one-line-per-statement dump used only by
// Module.MarshalJSON's debug body field. hdl/printer is the real
// Verilog-2001 emitter; this stays deliberately minimal so the two never
// drift into duplicate pretty-printing logic.
func renderStmts(stmts []Stmt) string {
	var sb strings.Builder
	for _, s := range stmts {
		sb.WriteString(renderStmt(s))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func renderStmt(s Stmt) string {
	switch st := s.(type) {
	case AssignStmt:
		return fmt.Sprintf("assign %s = %s;", st.Target, renderExpr(st.Value))
	case NonBlockAssign:
		return fmt.Sprintf("%s <= %s;", st.Target, renderExpr(st.Value))
	case AlwaysFF:
		return fmt.Sprintf("always @(posedge %s) [%d assigns]", st.Clock, len(st.Body))
	case InstanceStmt:
		return fmt.Sprintf("%s %s(...)", st.ModuleName, st.InstName)
	default:
		return fmt.Sprintf("<unknown stmt %T>", s)
	}
}

func renderExpr(e Expr) string {
	switch ex := e.(type) {
	case IdentExpr:
		return ex.Name
	case LiteralExpr:
		return fmt.Sprintf("%d'b%s", ex.Width, ex.Bits)
	case UnaryExpr:
		return fmt.Sprintf("%s%s", ex.Op, renderExpr(ex.X))
	case BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", renderExpr(ex.L), ex.Op, renderExpr(ex.R))
	case TernaryExpr:
		return fmt.Sprintf("(%s ? %s : %s)", renderExpr(ex.Cond), renderExpr(ex.T), renderExpr(ex.F))
	case ConcatExpr:
		parts := make([]string, len(ex.Parts))
		for i, p := range ex.Parts {
			parts[i] = renderExpr(p)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case SliceExpr:
		return fmt.Sprintf("%s[%d:%d]", renderExpr(ex.Base), ex.High, ex.Low)
	default:
		return fmt.Sprintf("<unknown expr %T>", e)
	}
}
