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
	"strconv"
	"strings"
)

// ScopedName derives an emitted identifier purely from a circuit-tree
// path — never from allocation order, so re-running synthesis on an
// unchanged circuit always emits byte-identical names (spec.md §8.7's
// HDL-parity property depends on this: two syntheses of the same circuit
// tree must agree on every name, and allocation-order naming is exactly
// the kind of incidental nondeterminism that would break it under
// map-iteration-order-sensitive Go code).
func ScopedName(path []string) string {
	if len(path) == 0 {
		return "top"
	}
	return strings.Join(path, "_")
}

// InstanceName picks the spec.md §6 instance-naming convention: the
// single child of a two-way composition is "a"/"b", and the Nth child of
// an array composition is "c" followed by its index.
func InstanceName(index, total int) string {
	if total <= 2 {
		return string(rune('a' + index))
	}
	return "c" + strconv.Itoa(index)
}
