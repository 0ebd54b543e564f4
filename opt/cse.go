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

// Package opt is the fixed optimizer pipeline over one rtif.Func: a
// structural-hash common-subexpression pass (this file) plus the ordering
// (constant-fold -> case-lowering -> DCE -> CSE -> DCE) spec.md §4.O
// fixes exactly, built on the existing rtif.ConstProp/LowerCase/DCE passes
// and this package's own CSE.
package opt

import (
	"fmt"
	"strings"

	"hwkit/rtif"
)

// CSE rewrites every op that structurally duplicates an earlier op in the
// same Func into an Assign aliasing the earlier op's result, hashing on
// (opcode, operand slots) the way spec.md §4.O specifies — literal
// interning (rtif.SymbolTable.InternLiteral) already makes equal constants
// collapse to one slot, so two structurally-identical ops over the same
// operand slots are guaranteed to hash equal here. Exec and Retime are
// side-effecting (rtif.Code.SideEffecting) and are never merged even if two
// calls look identical, since an arbitrary host call or a clock-domain
// crossing may not be idempotent.
func CSE(f *rtif.Func) (changed bool) {
	seen := make(map[string]rtif.Slot)
	for i, op := range f.Ops {
		if op.Code.SideEffecting() {
			continue
		}
		key := opKey(op)
		if prior, ok := seen[key]; ok && prior != op.LHS {
			f.Ops[i] = rtif.Op{Code: rtif.CodeAssign, LHS: op.LHS, Args: []rtif.Slot{prior}}
			changed = true
			continue
		}
		seen[key] = op.LHS
	}
	return changed
}

func opKey(op rtif.Op) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d|%d|%d|%v|", op.Code, op.BinOp, op.UnOp, op.Widen)
	for _, a := range op.Args {
		fmt.Fprintf(&sb, "%d,", a)
	}
	sb.WriteByte('|')
	for _, p := range op.Path {
		fmt.Fprintf(&sb, "%s,", p)
	}
	sb.WriteByte('|')
	for _, arm := range op.Table {
		fmt.Fprintf(&sb, "%d:%d:%v;", arm.Key, arm.Result, arm.Default)
	}
	sb.WriteByte('|')
	sb.WriteString(op.FuncId)
	return sb.String()
}
