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

// LowerCase collapses any Case whose discriminant slot is a literal into
// a plain Assign of the matching arm's result, picking the Default arm
// when no Key matches; a Case with no matching Key and no Default arm,
// or with a non-literal Key, is left as it is. This only fires once ConstProp has had a
// chance to fold the discriminant-producing Index op, so the two passes
// are normally run to a fixed point together.
func LowerCase(f *Func) (changed bool) {
	for i, op := range f.Ops {
		if op.Code != CodeCase {
			continue
		}
		discVal, ok := f.Symbols.Literal(op.Args[0])
		if !ok {
			continue
		}

		var chosen Slot = NoSlot
		var fallback Slot = NoSlot
		for _, arm := range op.Table {
			if arm.Default {
				fallback = arm.Result
				continue
			}
			keyVal, ok := f.Symbols.Literal(arm.Key)
			if !ok {
				chosen = NoSlot
				fallback = NoSlot
				break
			}
			if keyVal.String() == discVal.String() {
				chosen = arm.Result
				break
			}
		}
		if chosen == NoSlot {
			chosen = fallback
		}
		if chosen == NoSlot {
			continue
		}

		f.Ops[i] = Op{Code: CodeAssign, LHS: op.LHS, Args: []Slot{chosen}}
		changed = true
	}
	return changed
}
