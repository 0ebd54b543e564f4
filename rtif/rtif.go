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

// Package rtif is the typed SSA intermediate representation: the post-
// inference, block-free form produced by lowering a mir.TypedKernel.
// Program order replaces control flow — if/match compile straight to
// Select/Case over values already computed, so there is no join point
// that isn't already a tree node and nothing resembling a phi node is
// needed (see DESIGN.md's mir entry for why this diverges from a
// classical block+phi SSA shape).
package rtif

import (
	"fmt"

	"hwkit/ast"
	"hwkit/bits"
	"hwkit/kind"
)

// Slot names an SSA value: either a write-once register or an interned
// literal. NoSlot marks "no operand" (e.g. Comment's unused LHS).
type Slot int32

const NoSlot Slot = -1

// Code is RTIF's closed OpCode set (spec.md §4.R).
type Code int

const (
	CodeNoop Code = iota
	CodeBinary
	CodeUnary
	CodeSelect
	CodeIndex
	CodeAssign
	CodeSplice
	CodeRepeat
	CodeStruct
	CodeEnum
	CodeTuple
	CodeArray
	CodeCase
	CodeExec
	CodeAsBits
	CodeAsSigned
	CodeResize
	CodeRetime
	CodeWrap
	CodeComment
)

func (c Code) String() string {
	names := [...]string{
		"Noop", "Binary", "Unary", "Select", "Index", "Assign", "Splice",
		"Repeat", "Struct", "Enum", "Tuple", "Array", "Case", "Exec",
		"AsBits", "AsSigned", "Resize", "Retime", "Wrap", "Comment",
	}
	if int(c) < len(names) {
		return names[c]
	}
	return "<unknown-code>"
}

// SideEffecting reports whether reordering or CSE-merging two instances of
// this op would be unsound — spec.md §4.O excludes Exec (arbitrary host
// call) and Retime (crosses a clock domain) from both.
func (c Code) SideEffecting() bool { return c == CodeExec || c == CodeRetime }

// PathStep is one step of an aggregate access path used by Index/Splice:
// either a named struct field, a fixed tuple/array index, or the
// synthetic enum discriminant slot.
type PathStep struct {
	Field         string // non-empty for a struct field step
	Index         int    // valid when Field == "" and !Discriminant
	Discriminant  bool   // true to select an enum's discriminant bits
}

func (p PathStep) String() string {
	switch {
	case p.Discriminant:
		return ".$disc"
	case p.Field != "":
		return "." + p.Field
	default:
		return fmt.Sprintf("[%d]", p.Index)
	}
}

// CaseArm is one row of a Case's dispatch table: Default arms match
// whatever the Key-keyed rows didn't.
type CaseArm struct {
	Key     Slot
	Default bool
	Result  Slot
}

// Op is one RTIF instruction. Which fields are meaningful depends on
// Code; this mirrors the teacher's single uniform Value struct
// (falcon's ssa.Value{Id,Op,Args,Sym,...}) rather than one Go type per
// opcode, since every pass here dispatches by Code the same way falcon's
// optimizer dispatches by Op.
type Op struct {
	Code Code
	LHS  Slot
	Args []Slot

	BinOp ast.BinOp
	UnOp  ast.UnOp
	// Widen marks the widening variant of a Binary add/sub/mul (the
	// .xadd()/.xsub()/.xmul() intrinsics), which must lower through
	// bits.XAdd/XSub/XMul instead of the wrapping bits.Add/Sub/Mul.
	Widen bool
	// Path is the aggregate access path for Index/Splice. Repeat also
	// reuses it as a single {Index: n} step carrying its length, since a
	// repeated-value count is otherwise identical in shape to a fixed
	// array index.
	Path  []PathStep
	Table []CaseArm

	FuncId string
	Color  kind.Color
	Text   string // Comment text
}

func (o Op) String() string {
	switch o.Code {
	case CodeBinary:
		return fmt.Sprintf("%s = %s(%v, %v)", o.LHS, o.BinOp, o.Args[0], o.Args[1])
	case CodeUnary:
		return fmt.Sprintf("%s = %s(%v)", o.LHS, o.UnOp, o.Args[0])
	case CodeComment:
		return "// " + o.Text
	default:
		return fmt.Sprintf("%s = %s%v", o.LHS, o.Code, o.Args)
	}
}

func (s Slot) String() string {
	if s == NoSlot {
		return "_"
	}
	return fmt.Sprintf("%%%d", int(s))
}

// slotInfo is the symbol table's per-slot record: every slot has a Kind;
// literal slots additionally carry the folded bits.Value they denote and
// can never appear as an Op's LHS (invariant 4).
type slotInfo struct {
	kind    kind.Kind
	literal bool
	value   bits.Value
}

// SymbolTable tracks every slot's Kind in one func, and interns literal
// constants so that equal constants collapse onto one slot automatically
// (spec.md §4.O: "literal interning makes equal constants collapse to
// one slot").
type SymbolTable struct {
	slots    []slotInfo
	interned map[string]Slot
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{interned: make(map[string]Slot)}
}

// NewRegister allocates a fresh write-once register slot of Kind k.
func (st *SymbolTable) NewRegister(k kind.Kind) Slot {
	id := Slot(len(st.slots))
	st.slots = append(st.slots, slotInfo{kind: k})
	return id
}

// InternLiteral returns the (possibly shared) slot for v, allocating one
// on first use.
func (st *SymbolTable) InternLiteral(v bits.Value) Slot {
	key := v.String()
	if s, ok := st.interned[key]; ok {
		return s
	}
	id := Slot(len(st.slots))
	st.slots = append(st.slots, slotInfo{kind: valueKind(v), literal: true, value: v})
	st.interned[key] = id
	return id
}

func valueKind(v bits.Value) kind.Kind {
	if v.Width() == 0 {
		return kind.Empty
	}
	if v.Signed() {
		return kind.Signed(v.Width())
	}
	return kind.Bits(v.Width())
}

func (st *SymbolTable) Kind(s Slot) kind.Kind { return st.slots[s].kind }
func (st *SymbolTable) IsLiteral(s Slot) bool { return st.slots[s].literal }

// Literal reports the folded value a literal slot denotes.
func (st *SymbolTable) Literal(s Slot) (bits.Value, bool) {
	info := st.slots[s]
	return info.value, info.literal
}

func (st *SymbolTable) NumSlots() int { return len(st.slots) }

// Func is one lowered kernel: its parameter slots, its result slot, the
// flat program-order op list, and the symbol table both reference.
type Func struct {
	Name    string
	Params  []Slot
	Result  Slot
	Ops     []Op
	Symbols *SymbolTable
}

func NewFunc(name string) *Func {
	return &Func{Name: name, Symbols: NewSymbolTable(), Result: NoSlot}
}

func (f *Func) emit(op Op) Slot {
	f.Ops = append(f.Ops, op)
	return op.LHS
}
