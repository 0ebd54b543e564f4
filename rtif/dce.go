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

// DCE removes any op whose result slot is never read — directly by the
// Func's Result, transitively by a live op's operands, or (for ops whose
// Code.SideEffecting() is true) is always kept regardless of use, since
// an Exec or Retime may matter for its side effect alone. A two-pass
// rewrite (mark live walking backward, then rebuild the op list keeping
// only live/side-effecting ops) replaces the op list rather than mutating
// it in place, per spec §9's guidance for passes that shrink the stream.
func DCE(f *Func) (removed int) {
	live := make(map[Slot]bool)
	if f.Result != NoSlot {
		live[f.Result] = true
	}

	keep := make([]bool, len(f.Ops))
	for i := len(f.Ops) - 1; i >= 0; i-- {
		op := f.Ops[i]
		if live[op.LHS] || op.Code.SideEffecting() {
			keep[i] = true
			live[op.LHS] = true
			for _, a := range op.Args {
				live[a] = true
			}
			for _, arm := range op.Table {
				if arm.Key != NoSlot {
					live[arm.Key] = true
				}
				live[arm.Result] = true
			}
		}
	}

	newOps := make([]Op, 0, len(f.Ops))
	for i, op := range f.Ops {
		if keep[i] {
			newOps = append(newOps, op)
		} else {
			removed++
		}
	}
	f.Ops = newOps
	return removed
}
