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
package rtl

import (
	"fmt"

	"hwkit/bits"
	"hwkit/kind"
	"hwkit/rtif"
)

// Library resolves a CodeExec's callee name to its already-lowered Module,
// the way a linker resolves a call symbol. compile.CompileSource lowers
// kernels in source order and adds each to the Library afterwards, so a
// callee must be declared before its caller for the call to resolve.
type Library map[string]*Module

// Build flattens f's aggregate-valued SSA into a word-level Module: every
// rtif.Slot becomes one flat Reg whose width is kind.BitWidth of the
// slot's rtif Kind, and Index/Splice paths collapse to static bit Ranges
// via kind.BitRange instead of staying symbolic field/element accesses.
func Build(f *rtif.Func, lib Library) (*Module, error) {
	m := NewModule(f.Name)
	b := &rtlBuilder{f: f, m: m, lib: lib, slotReg: make(map[rtif.Slot]Reg)}
	for _, p := range f.Params {
		r := b.regFor(p)
		m.Params = append(m.Params, r)
	}
	for _, op := range f.Ops {
		if err := b.buildOp(op); err != nil {
			return nil, err
		}
	}
	if f.Result != rtif.NoSlot {
		res, err := b.lowerSlot(f.Result)
		if err != nil {
			return nil, err
		}
		m.Result = res
	}
	return m, nil
}

type rtlBuilder struct {
	f       *rtif.Func
	m       *Module
	lib     Library
	slotReg map[rtif.Slot]Reg
}

// regFor allocates (once) the flat Reg standing in for an rtif.Slot that
// has no defining Op in this Func yet (a parameter, or a not-yet-seen
// literal).
func (b *rtlBuilder) regFor(s rtif.Slot) Reg {
	if r, ok := b.slotReg[s]; ok {
		return r
	}
	k := b.f.Symbols.Kind(s)
	width := kind.BitWidth(k)
	signed := isSigned(k)
	var r Reg
	if v, ok := b.f.Symbols.Literal(s); ok {
		r = b.m.Regs.InternConst(v)
	} else {
		r = b.m.Regs.New(width, signed)
	}
	b.slotReg[s] = r
	return r
}

// lowerSlot resolves a Slot already assigned a Reg (every Op's LHS is
// visited before it's referenced, since rtif ops are in program order and
// every arg is a previously-defined slot or a literal/param).
func (b *rtlBuilder) lowerSlot(s rtif.Slot) (Reg, error) {
	if r, ok := b.slotReg[s]; ok {
		return r, nil
	}
	return b.regFor(s), nil
}

func isSigned(k kind.Kind) bool {
	switch k.(type) {
	case kind.SignedKind:
		return true
	default:
		return false
	}
}

func (b *rtlBuilder) args(op rtif.Op) ([]Reg, error) {
	out := make([]Reg, len(op.Args))
	for i, s := range op.Args {
		r, err := b.lowerSlot(s)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (b *rtlBuilder) buildOp(op rtif.Op) error {
	lhsKind := b.f.Symbols.Kind(op.LHS)
	lhsWidth := kind.BitWidth(lhsKind)
	lhsSigned := isSigned(lhsKind)
	newLHS := func() Reg { return b.m.Regs.New(lhsWidth, lhsSigned) }

	switch op.Code {
	case rtif.CodeBinary:
		args, err := b.args(op)
		if err != nil {
			return err
		}
		r := newLHS()
		b.m.emit(Inst{Code: CodeBinary, LHS: r, Args: args, BinOp: op.BinOp, Widen: op.Widen})
		b.slotReg[op.LHS] = r
		return nil

	case rtif.CodeUnary:
		args, err := b.args(op)
		if err != nil {
			return err
		}
		r := newLHS()
		b.m.emit(Inst{Code: CodeUnary, LHS: r, Args: args, UnOp: op.UnOp})
		b.slotReg[op.LHS] = r
		return nil

	case rtif.CodeSelect:
		// cond ? then : else lowers to a two-arm Case keyed on the 1-bit
		// condition: key=1 picks the then-arm, everything else (only 0 is
		// reachable, but Default also absorbs X at simulation time) picks
		// the else-arm.
		args, err := b.args(op)
		if err != nil {
			return err
		}
		cond, thenReg, elseReg := args[0], args[1], args[2]
		one := b.m.Regs.InternConst(bits.New(1, 1))
		r := newLHS()
		b.m.emit(Inst{Code: CodeCase, LHS: r, Args: []Reg{cond}, Table: []CaseArm{
			{Key: one, Result: thenReg},
			{Default: true, Result: elseReg},
		}})
		b.slotReg[op.LHS] = r
		return nil

	case rtif.CodeIndex:
		return b.buildIndex(op, newLHS)

	case rtif.CodeAssign:
		// A rebind: the RHS Reg already exists, just alias the LHS slot to
		// it so later references see the same Reg (no new Inst needed).
		args, err := b.args(op)
		if err != nil {
			return err
		}
		b.slotReg[op.LHS] = args[0]
		return nil

	case rtif.CodeSplice:
		args, err := b.args(op)
		if err != nil {
			return err
		}
		if len(op.Path) != 1 {
			return fmt.Errorf("rtl: Splice expects exactly one path step, got %d", len(op.Path))
		}
		rng, err := pathToRange(b.f.Symbols.Kind(op.Args[0]), op.Path[0])
		if err != nil {
			return err
		}
		r := newLHS()
		b.m.emit(Inst{Code: CodeSplice, LHS: r, Args: args, Range: Range(rng)})
		b.slotReg[op.LHS] = r
		return nil

	case rtif.CodeRepeat:
		args, err := b.args(op)
		if err != nil {
			return err
		}
		if len(op.Path) != 1 {
			return fmt.Errorf("rtl: Repeat expects a single {Index: count} path step")
		}
		count := op.Path[0].Index
		rep := make([]Reg, count)
		for i := range rep {
			rep[i] = args[0]
		}
		r := newLHS()
		b.m.emit(Inst{Code: CodeConcat, LHS: r, Args: rep})
		b.slotReg[op.LHS] = r
		return nil

	case rtif.CodeStruct, rtif.CodeTuple, rtif.CodeArray:
		args, err := b.args(op)
		if err != nil {
			return err
		}
		r := newLHS()
		b.m.emit(Inst{Code: CodeConcat, LHS: r, Args: args})
		b.slotReg[op.LHS] = r
		return nil

	case rtif.CodeCase:
		discReg, err := b.lowerSlot(op.Args[0])
		if err != nil {
			return err
		}
		table := make([]CaseArm, len(op.Table))
		for i, arm := range op.Table {
			resReg, err := b.lowerSlot(arm.Result)
			if err != nil {
				return err
			}
			var keyReg Reg
			if !arm.Default {
				keyReg, err = b.lowerSlot(arm.Key)
				if err != nil {
					return err
				}
			}
			table[i] = CaseArm{Key: keyReg, Default: arm.Default, Result: resReg}
		}
		r := newLHS()
		b.m.emit(Inst{Code: CodeCase, LHS: r, Args: []Reg{discReg}, Table: table})
		b.slotReg[op.LHS] = r
		return nil

	case rtif.CodeExec:
		args, err := b.args(op)
		if err != nil {
			return err
		}
		if b.lib != nil {
			if _, ok := b.lib[op.FuncId]; !ok {
				return fmt.Errorf("rtl: call to unknown kernel %q (lower callees before callers)", op.FuncId)
			}
		}
		r := newLHS()
		b.m.emit(Inst{Code: CodeCall, LHS: r, Args: args, Callee: op.FuncId})
		b.slotReg[op.LHS] = r
		return nil

	case rtif.CodeAsBits:
		args, err := b.args(op)
		if err != nil {
			return err
		}
		r := newLHS()
		b.m.emit(Inst{Code: CodeCast, LHS: r, Args: args})
		b.slotReg[op.LHS] = r
		return nil

	case rtif.CodeAsSigned:
		args, err := b.args(op)
		if err != nil {
			return err
		}
		r := newLHS()
		b.m.emit(Inst{Code: CodeCast, LHS: r, Args: args})
		b.slotReg[op.LHS] = r
		return nil

	case rtif.CodeResize:
		args, err := b.args(op)
		if err != nil {
			return err
		}
		r := newLHS()
		b.m.emit(Inst{Code: CodeCast, LHS: r, Args: args})
		b.slotReg[op.LHS] = r
		return nil

	case rtif.CodeRetime:
		args, err := b.args(op)
		if err != nil {
			return err
		}
		r := newLHS()
		b.m.emit(Inst{Code: CodeRetime, LHS: r, Args: args})
		b.slotReg[op.LHS] = r
		return nil

	case rtif.CodeComment:
		return nil

	default:
		return fmt.Errorf("rtl: Build: unsupported rtif opcode %s (not yet produced by rtif.Build, no RTL lowering written)", op.Code)
	}
}

// buildIndex handles rtif's three distinct uses of CodeIndex: a plain
// struct/tuple/array element access, an enum discriminant read, and the
// synthetic "$payload" field the match-arm binder uses to unwrap an
// enum's payload bits regardless of which variant is live.
func (b *rtlBuilder) buildIndex(op rtif.Op, newLHS func() Reg) error {
	baseReg, err := b.lowerSlot(op.Args[0])
	if err != nil {
		return err
	}
	if len(op.Path) != 1 {
		return fmt.Errorf("rtl: Index expects exactly one path step, got %d", len(op.Path))
	}
	step := op.Path[0]
	baseKind := b.f.Symbols.Kind(op.Args[0])

	var rng kind.Range
	switch {
	case step.Discriminant:
		ek, ok := baseKind.(kind.EnumKind)
		if !ok {
			return fmt.Errorf("rtl: discriminant access on non-enum kind %s", baseKind)
		}
		rng = kind.DiscriminantRange(ek)
	case step.Field == "$payload":
		ek, ok := baseKind.(kind.EnumKind)
		if !ok {
			return fmt.Errorf("rtl: payload access on non-enum kind %s", baseKind)
		}
		total := kind.BitWidth(ek)
		disc := kind.DiscriminantRange(ek)
		if disc.Low == 0 {
			rng = kind.Range{Low: disc.High, High: total}
		} else {
			rng = kind.Range{Low: 0, High: disc.Low}
		}
	default:
		rng, _, err = kind.BitRange(baseKind, kind.Path{toKindSeg(step)})
		if err != nil {
			return err
		}
	}
	r := newLHS()
	b.m.emit(Inst{Code: CodeIndexBits, LHS: r, Args: []Reg{baseReg}, Range: Range(rng)})
	b.slotReg[op.LHS] = r
	return nil
}

func toKindSeg(step rtif.PathStep) kind.PathSegment {
	if step.Field != "" {
		return kind.FieldSeg{Name: step.Field}
	}
	return kind.IndexSeg{Static: step.Index}
}

func pathToRange(baseKind kind.Kind, step rtif.PathStep) (kind.Range, error) {
	rng, _, err := kind.BitRange(baseKind, kind.Path{toKindSeg(step)})
	return rng, err
}
