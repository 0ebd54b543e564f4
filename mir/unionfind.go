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

// Package mir resolves AST type annotations to kind.Kind, unifying the
// width of bare (unannotated) integer literals against the context they
// appear in, and type-checks every expression ahead of rtif's SSA
// construction (rtif.Build is what unrolls static for-loops and lowers
// if/match to Select/Case).
package mir

import (
	"fmt"

	"hwkit/kind"
)

// VarId names a unification variable: one per width-polymorphic slot in a
// kernel (in practice, one per bare integer literal — every other node's
// Kind comes directly from explicit syntax). Falcon's type.go has no
// analogue since its scalar types never need unification; this
// generalizes falcon's check-as-you-go type checking into a proper
// union-find so a literal's width can be decided by any of several
// contexts it is used in, in any order the walk happens to visit them.
type VarId int

type varRecord struct {
	parent VarId
	rank   int
	kind   kind.Kind // nil until resolved
}

// UnionFind tracks width/kind unification variables across one kernel's
// inference pass. Three "domains" spec.md calls out (type/width/color
// variables) collapse to one here because in hwkit's surface language
// every variable's base Kind shape is already explicit syntax — only a
// literal's exact width is ever left to unification, so a single
// kind.Kind-valued union-find node covers type, width, and (via
// kind.Signal's embedded color) clock-domain unification uniformly.
type UnionFind struct {
	vars []varRecord
}

func NewUnionFind() *UnionFind { return &UnionFind{} }

// New allocates a fresh, unresolved variable.
func (u *UnionFind) New() VarId {
	id := VarId(len(u.vars))
	u.vars = append(u.vars, varRecord{parent: id, rank: 0})
	return id
}

func (u *UnionFind) find(id VarId) VarId {
	if u.vars[id].parent != id {
		u.vars[id].parent = u.find(u.vars[id].parent)
	}
	return u.vars[id].parent
}

// Resolve reports the concrete Kind a variable has settled on, if any.
func (u *UnionFind) Resolve(id VarId) (kind.Kind, bool) {
	r := u.find(id)
	k := u.vars[r].kind
	return k, k != nil
}

// kindsEqual compares two Kinds structurally via their canonical String()
// rendering — sufficient here since kind.Kind has no cyclic variants and
// every concrete Kind's String() is injective over its fields.
func kindsEqual(a, b kind.Kind) bool { return a.String() == b.String() }

// SetKind unifies id with a concrete Kind, erroring if id already resolved
// to an incompatible Kind.
func (u *UnionFind) SetKind(id VarId, k kind.Kind) error {
	r := u.find(id)
	existing := u.vars[r].kind
	if existing == nil {
		u.vars[r].kind = k
		return nil
	}
	if !kindsEqual(existing, k) {
		return fmt.Errorf("width/kind mismatch: %s vs %s", existing, k)
	}
	return nil
}

// Union merges two variables' equivalence classes, unifying their
// resolved kinds (if any) in the process.
func (u *UnionFind) Union(a, b VarId) error {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return nil
	}
	ka, kb := u.vars[ra].kind, u.vars[rb].kind
	if u.vars[ra].rank < u.vars[rb].rank {
		ra, rb = rb, ra
		ka, kb = kb, ka
	}
	u.vars[rb].parent = ra
	if u.vars[ra].rank == u.vars[rb].rank {
		u.vars[ra].rank++
	}
	switch {
	case ka != nil && kb != nil:
		if !kindsEqual(ka, kb) {
			return fmt.Errorf("width/kind mismatch across unified literals: %s vs %s", ka, kb)
		}
	case ka == nil && kb != nil:
		u.vars[ra].kind = kb
	}
	return nil
}
