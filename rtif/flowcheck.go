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
package rtif

import (
	"fmt"

	"hwkit/ast"
	"hwkit/diag"
)

// FlowCheck verifies the four structural invariants of a Func's op list
// that no pass downstream may violate:
//
//  1. every register slot is written by exactly one op (write-once)
//  2. an op never reads a register before some earlier op writes it
//     (read dominates no-write — trivial here since Ops is already
//     program order, but a pass that shuffles ops could break it)
//  3. a literal slot is never an op's LHS (it is never "written", only
//     interned)
//  4. Assign and Select's two arms, and every Case arm's Result, must
//     share the LHS register's Kind
//
// A violation is always an ICE: these are invariants hwkit's own passes
// must preserve, not something a kernel author's source can trigger.
func FlowCheck(f *Func) error {
	written := make(map[Slot]bool, f.Symbols.NumSlots())
	for _, p := range f.Params {
		written[p] = true
	}
	for i := range f.Symbols.slots {
		if f.Symbols.slots[i].literal {
			written[Slot(i)] = true
		}
	}

	for idx, op := range f.Ops {
		for _, arg := range op.Args {
			if arg == NoSlot {
				continue
			}
			if !written[arg] {
				return flowICE("op %d (%s) reads slot %s before it is written", idx, op.Code, arg)
			}
		}
		for _, arm := range op.Table {
			if arm.Key != NoSlot && !written[arm.Key] {
				return flowICE("op %d (%s) case key %s read before written", idx, op.Code, arm.Key)
			}
			if !written[arm.Result] {
				return flowICE("op %d (%s) case result %s read before written", idx, op.Code, arm.Result)
			}
		}

		if op.LHS == NoSlot {
			continue
		}
		if f.Symbols.IsLiteral(op.LHS) {
			return flowICE("op %d (%s) writes to literal slot %s", idx, op.Code, op.LHS)
		}
		if written[op.LHS] {
			return flowICE("op %d (%s) double-writes slot %s", idx, op.Code, op.LHS)
		}
		written[op.LHS] = true

		if err := checkKindAgreement(f, op); err != nil {
			return err
		}
	}
	return nil
}

func flowICE(format string, args ...interface{}) error {
	cause := fmt.Errorf(format, args...)
	return diag.ICE(cause, ast.Span{}, format, args...)
}

func checkKindAgreement(f *Func, op Op) error {
	lhsKind := f.Symbols.Kind(op.LHS)
	switch op.Code {
	case CodeSelect:
		thenKind := f.Symbols.Kind(op.Args[1])
		elseKind := f.Symbols.Kind(op.Args[2])
		if thenKind.String() != lhsKind.String() || elseKind.String() != lhsKind.String() {
			return flowICE("select %s: arm kinds %s/%s disagree with result kind %s",
				op.LHS, thenKind, elseKind, lhsKind)
		}
	case CodeCase:
		for _, arm := range op.Table {
			armKind := f.Symbols.Kind(arm.Result)
			if armKind.String() != lhsKind.String() {
				return flowICE("case %s: arm result kind %s disagrees with result kind %s",
					op.LHS, armKind, lhsKind)
			}
		}
	case CodeAssign:
		rhsKind := f.Symbols.Kind(op.Args[0])
		if rhsKind.String() != lhsKind.String() {
			return flowICE("assign %s: rhs kind %s disagrees with lhs kind %s", op.LHS, rhsKind, lhsKind)
		}
	}
	return nil
}
