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

// Package rtl is the word-level register-transfer IR: rtif's aggregate
// values (structs, tuples, arrays, enums) flattened to fixed-width bit
// registers, with struct/tuple/array construction reduced to Concat and
// field/element/enum-discriminant access reduced to a static bit Range.
// This is the IR a human reads when debugging synthesis output (hdl.FromRTL
// renders it close to 1:1) before ntl blows every register down to gates.
package rtl

import (
	"fmt"

	"hwkit/ast"
	"hwkit/bits"
)

// Reg names one fixed-width value: either a write-once register or an
// interned constant, mirroring rtif.Slot's role one level down.
type Reg int32

const NoReg Reg = -1

func (r Reg) String() string {
	if r == NoReg {
		return "_"
	}
	return fmt.Sprintf("r%d", int(r))
}

// Code is RTL's closed opcode set (spec.md §4.N).
type Code int

const (
	CodeBinary Code = iota
	CodeUnary
	CodeConcat
	CodeIndexBits // static bit-range extraction
	CodeSplice    // replace a sub-range of a base register with a value
	CodeCase
	CodeCast   // resize and/or signedness change
	CodeRetime // register boundary (one clock edge of delay)
	CodeCall   // instantiate another already-lowered Module
)

func (c Code) String() string {
	names := [...]string{
		"Binary", "Unary", "Concat", "IndexBits", "Splice", "Case", "Cast",
		"Retime", "Call",
	}
	if int(c) < len(names) {
		return names[c]
	}
	return "<unknown-code>"
}

// Range is a half-open bit range within a base register, low bit first,
// matching kind.Range's convention so the two stay interchangeable.
type Range struct{ Low, High int }

func (r Range) Len() int { return r.High - r.Low }

// CaseArm is one row of a Case dispatch table.
type CaseArm struct {
	Key     Reg
	Default bool
	Result  Reg
}

// Inst is one RTL instruction, uniform across opcodes the same way
// rtif.Op is, dispatched by Code.
type Inst struct {
	Code   Code
	LHS    Reg
	Args   []Reg
	BinOp  ast.BinOp
	UnOp   ast.UnOp
	Widen  bool
	Range  Range
	Table  []CaseArm
	Callee string // CodeCall target Module name
}

func (i Inst) String() string {
	switch i.Code {
	case CodeBinary:
		return fmt.Sprintf("%s = %s(%v, %v)", i.LHS, i.BinOp, i.Args[0], i.Args[1])
	case CodeUnary:
		return fmt.Sprintf("%s = %s(%v)", i.LHS, i.UnOp, i.Args[0])
	default:
		return fmt.Sprintf("%s = %s%v", i.LHS, i.Code, i.Args)
	}
}

// regInfo is the per-register record: width, signedness, and — for a
// constant register — the folded value it denotes.
type regInfo struct {
	width    int
	signed   bool
	isConst  bool
	constVal bits.Value
}

// RegFile tracks width/signedness for every Reg in one Module and interns
// constants the same way rtif.SymbolTable interns literals.
type RegFile struct {
	regs     []regInfo
	interned map[string]Reg
}

func NewRegFile() *RegFile {
	return &RegFile{interned: make(map[string]Reg)}
}

func (rf *RegFile) New(width int, signed bool) Reg {
	id := Reg(len(rf.regs))
	rf.regs = append(rf.regs, regInfo{width: width, signed: signed})
	return id
}

func (rf *RegFile) InternConst(v bits.Value) Reg {
	key := v.String()
	if r, ok := rf.interned[key]; ok {
		return r
	}
	id := Reg(len(rf.regs))
	rf.regs = append(rf.regs, regInfo{width: v.Width(), signed: v.Signed(), isConst: true, constVal: v})
	rf.interned[key] = id
	return id
}

func (rf *RegFile) Width(r Reg) int     { return rf.regs[r].width }
func (rf *RegFile) Signed(r Reg) bool   { return rf.regs[r].signed }
func (rf *RegFile) IsConst(r Reg) bool  { return rf.regs[r].isConst }
func (rf *RegFile) NumRegs() int        { return len(rf.regs) }
func (rf *RegFile) ConstValue(r Reg) (bits.Value, bool) {
	info := rf.regs[r]
	return info.constVal, info.isConst
}

// Module is one lowered kernel: its parameter registers, result register,
// flat program-order instruction list, and the register file both
// reference. One hwkit source file full of kernels lowers to one Module
// per kernel; circuit.StructOf and friends compose the Circuits built
// from them by delegation and HDL instances, without merging netlists.
type Module struct {
	Name    string
	Params  []Reg
	Result  Reg
	Insts   []Inst
	Regs    *RegFile
}

func NewModule(name string) *Module {
	return &Module{Name: name, Regs: NewRegFile(), Result: NoReg}
}

func (m *Module) emit(i Inst) Reg {
	m.Insts = append(m.Insts, i)
	return i.LHS
}
