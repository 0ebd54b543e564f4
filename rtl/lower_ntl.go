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

	"hwkit/ast"
	"hwkit/kind"
	"hwkit/ntl"
)

// LowerToNTL expands a word-level Module into a bit-level Netlist: every
// Reg becomes one []*ntl.Wire (bit 0 first), and every Inst becomes a
// handful of primitive Gates — ripple-carry add/sub, shift-and-add
// multiply, a constant shift as plain rewiring, a variable shift as a
// log-depth mux tree, and a Case/Select as a priority mux chain (spec.md
// §4.N).
func LowerToNTL(m *Module, lib map[string]*ntl.Netlist) (*ntl.Netlist, error) {
	n := ntl.NewNetlist(m.Name)
	n.Clock = ntl.NewInput("clock")
	n.Reset = ntl.NewInput("reset")

	lo := &lowerer{m: m, n: n, lib: lib, wires: make(map[Reg][]*ntl.Wire)}
	for _, p := range m.Params {
		width := m.Regs.Width(p)
		bus := make([]*ntl.Wire, width)
		for i := range bus {
			bus[i] = ntl.NewInput(fmt.Sprintf("%s[%d]", p, i))
		}
		lo.wires[p] = bus
		n.Inputs = append(n.Inputs, bus)
	}
	for _, inst := range m.Insts {
		if err := lo.lowerInst(inst); err != nil {
			return nil, err
		}
	}
	if m.Result != NoReg {
		bus, err := lo.busFor(m.Result)
		if err != nil {
			return nil, err
		}
		n.Outputs = bus
	}
	return n, nil
}

type lowerer struct {
	m     *Module
	n     *ntl.Netlist
	lib   map[string]*ntl.Netlist
	wires map[Reg][]*ntl.Wire
}

// busFor returns the bit vector for r, materializing a constant's wires on
// first use.
func (lo *lowerer) busFor(r Reg) ([]*ntl.Wire, error) {
	if bus, ok := lo.wires[r]; ok {
		return bus, nil
	}
	v, ok := lo.m.Regs.ConstValue(r)
	if !ok {
		return nil, fmt.Errorf("rtl: LowerToNTL: reg %v has no wires and is not a constant", r)
	}
	width := lo.m.Regs.Width(r)
	bus := make([]*ntl.Wire, width)
	u := v.Uint64()
	for i := range bus {
		bit := kind.Bit0
		if i < 64 && (u>>uint(i))&1 == 1 {
			bit = kind.Bit1
		}
		bus[i] = ntl.NewConst(bit)
	}
	lo.wires[r] = bus
	return bus, nil
}

func (lo *lowerer) argBus(args []Reg, i int) ([]*ntl.Wire, error) { return lo.busFor(args[i]) }

func (lo *lowerer) lowerInst(inst Inst) error {
	width := lo.m.Regs.Width(inst.LHS)
	switch inst.Code {
	case CodeBinary:
		return lo.lowerBinary(inst, width)
	case CodeUnary:
		return lo.lowerUnary(inst, width)
	case CodeConcat:
		var bus []*ntl.Wire
		for _, a := range inst.Args {
			b, err := lo.busFor(a)
			if err != nil {
				return err
			}
			bus = append(bus, b...)
		}
		lo.wires[inst.LHS] = bus
		return nil
	case CodeIndexBits:
		base, err := lo.busFor(inst.Args[0])
		if err != nil {
			return err
		}
		lo.wires[inst.LHS] = append([]*ntl.Wire{}, base[inst.Range.Low:inst.Range.High]...)
		return nil
	case CodeSplice:
		base, err := lo.busFor(inst.Args[0])
		if err != nil {
			return err
		}
		repl, err := lo.busFor(inst.Args[1])
		if err != nil {
			return err
		}
		out := append([]*ntl.Wire{}, base...)
		copy(out[inst.Range.Low:inst.Range.High], repl)
		lo.wires[inst.LHS] = out
		return nil
	case CodeCase:
		return lo.lowerCase(inst, width)
	case CodeCast:
		src, err := lo.busFor(inst.Args[0])
		if err != nil {
			return err
		}
		signed := lo.m.Regs.Signed(inst.Args[0])
		lo.wires[inst.LHS] = extend(src, width, signed)
		return nil
	case CodeRetime:
		d, err := lo.busFor(inst.Args[0])
		if err != nil {
			return err
		}
		bus := make([]*ntl.Wire, width)
		for i := range bus {
			var din *ntl.Wire
			if i < len(d) {
				din = d[i]
			} else {
				din = ntl.NewConst(kind.Bit0)
			}
			w := ntl.NewGate(ntl.GateFlop, lo.n.Clock, lo.n.Reset, din)
			bus[i] = w
			lo.n.Flops = append(lo.n.Flops, w)
		}
		lo.wires[inst.LHS] = bus
		return nil
	case CodeCall:
		return lo.lowerCall(inst)
	default:
		return fmt.Errorf("rtl: LowerToNTL: unhandled opcode %s", inst.Code)
	}
}

// lowerCall inlines an already-lowered callee netlist: its Inputs are
// wired directly to this call's argument buses and its Outputs become the
// call's result bus. Hierarchical instances for the HDL surface are
// circuit.StructOf's job (it wires child Circuits as HDL instances and
// merges no netlists); this inlining path exists so a plain multi-kernel
// source file lowers end to end without requiring circuit composition.
func (lo *lowerer) lowerCall(inst Inst) error {
	callee, ok := lo.lib[inst.Callee]
	if !ok {
		return fmt.Errorf("rtl: LowerToNTL: call to unknown netlist %q", inst.Callee)
	}
	if len(callee.Inputs) != len(inst.Args) {
		return fmt.Errorf("rtl: LowerToNTL: call to %q passes %d args, callee wants %d", inst.Callee, len(inst.Args), len(callee.Inputs))
	}
	subst := make(map[*ntl.Wire]*ntl.Wire)
	for i, param := range callee.Inputs {
		argBus, err := lo.busFor(inst.Args[i])
		if err != nil {
			return err
		}
		for b, w := range param {
			if b < len(argBus) {
				subst[w] = argBus[b]
			}
		}
	}
	out := make([]*ntl.Wire, len(callee.Outputs))
	for i, w := range callee.Outputs {
		out[i] = cloneWire(w, subst, lo.n)
	}
	lo.wires[inst.LHS] = out
	return nil
}

// cloneWire copies a callee Wire into the caller's netlist, substituting
// any Input wire per subst and recursively cloning Gates; each distinct
// source Wire clones to exactly one destination Wire (memoized in subst)
// so fan-out inside the callee is preserved instead of duplicated.
func cloneWire(w *ntl.Wire, subst map[*ntl.Wire]*ntl.Wire, n *ntl.Netlist) *ntl.Wire {
	if c, ok := subst[w]; ok {
		return c
	}
	switch o := w.Origin.(type) {
	case ntl.Const:
		c := ntl.NewConst(o.Value)
		subst[w] = c
		return c
	case ntl.Gate:
		ins := make([]*ntl.Wire, len(o.Ins))
		c := &ntl.Wire{Name: w.Name}
		subst[w] = c
		for i, in := range o.Ins {
			ins[i] = cloneWire(in, subst, n)
		}
		c.Origin = ntl.Gate{Op: o.Op, Ins: ins}
		if o.Op == ntl.GateFlop {
			n.Flops = append(n.Flops, c)
		}
		return c
	default:
		// An Input with no substitution provided (a callee parameter bit
		// past the caller's argument width) floats as a fresh primary
		// input of the composite netlist.
		c := ntl.NewInput(w.Name)
		subst[w] = c
		return c
	}
}

func extend(bus []*ntl.Wire, width int, signed bool) []*ntl.Wire {
	if len(bus) == width {
		return bus
	}
	if len(bus) > width {
		return append([]*ntl.Wire{}, bus[:width]...)
	}
	out := append([]*ntl.Wire{}, bus...)
	fill := ntl.NewConst(kind.Bit0)
	if signed && len(bus) > 0 {
		fill = bus[len(bus)-1]
	}
	for len(out) < width {
		out = append(out, fill)
	}
	return out
}

func bitEq(a, b *ntl.Wire) *ntl.Wire {
	return ntl.NewGate(ntl.GateNot, ntl.NewGate(ntl.GateXor, a, b))
}

func busEq(a, b []*ntl.Wire) *ntl.Wire {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var acc *ntl.Wire
	for i := 0; i < n; i++ {
		eq := bitEq(a[i], b[i])
		if acc == nil {
			acc = eq
		} else {
			acc = ntl.NewGate(ntl.GateAnd, acc, eq)
		}
	}
	if acc == nil {
		return ntl.NewConst(kind.Bit1)
	}
	return acc
}

// rippleAdd computes a+b+cin as a (width+1)-wide ripple-carry chain
// (spec.md §4.N names ripple-carry explicitly for add/sub), returning the
// sum bus and the final carry-out.
func rippleAdd(a, b []*ntl.Wire, cin *ntl.Wire) ([]*ntl.Wire, *ntl.Wire) {
	width := len(a)
	sum := make([]*ntl.Wire, width)
	carry := cin
	for i := 0; i < width; i++ {
		axb := ntl.NewGate(ntl.GateXor, a[i], b[i])
		sum[i] = ntl.NewGate(ntl.GateXor, axb, carry)
		aAndB := ntl.NewGate(ntl.GateAnd, a[i], b[i])
		carryAndAxb := ntl.NewGate(ntl.GateAnd, carry, axb)
		carry = ntl.NewGate(ntl.GateOr, aAndB, carryAndAxb)
	}
	return sum, carry
}

func invertBus(a []*ntl.Wire) []*ntl.Wire {
	out := make([]*ntl.Wire, len(a))
	for i, w := range a {
		out[i] = ntl.NewGate(ntl.GateNot, w)
	}
	return out
}

// constShift rewires a by n bit positions — a shift by a compile-time
// constant needs no gates at all, just relabeling which wire feeds which
// output position (spec.md §4.N: "constant-shift as rewiring").
func constShift(a []*ntl.Wire, n int, left bool, arithmetic bool) []*ntl.Wire {
	width := len(a)
	out := make([]*ntl.Wire, width)
	fill := ntl.NewConst(kind.Bit0)
	if arithmetic && width > 0 {
		fill = a[width-1]
	}
	for i := 0; i < width; i++ {
		var src int
		if left {
			src = i - n
		} else {
			src = i + n
		}
		if src < 0 || src >= width {
			out[i] = fill
		} else {
			out[i] = a[src]
		}
	}
	return out
}

// variableShift builds a log-depth barrel shifter: one mux stage per bit
// of amt, each stage conditionally shifting by 2^stage (spec.md §4.N:
// "variable-shift as a mux tree").
func variableShift(a []*ntl.Wire, amt []*ntl.Wire, left bool, arithmetic bool) []*ntl.Wire {
	cur := a
	for stage := 0; stage < len(amt); stage++ {
		shifted := constShift(cur, 1<<uint(stage), left, arithmetic)
		next := make([]*ntl.Wire, len(cur))
		for i := range next {
			next[i] = ntl.NewGate(ntl.GateMux, amt[stage], cur[i], shifted[i])
		}
		cur = next
	}
	return cur
}

func (lo *lowerer) lowerBinary(inst Inst, width int) error {
	a, err := lo.argBus(inst.Args, 0)
	if err != nil {
		return err
	}
	b, err := lo.argBus(inst.Args, 1)
	if err != nil {
		return err
	}
	signedA := lo.m.Regs.Signed(inst.Args[0])

	switch inst.BinOp {
	case ast.OpAdd:
		ea, eb := extend(a, width, signedA), extend(b, width, signedA)
		sum, _ := rippleAdd(ea, eb, ntl.NewConst(kind.Bit0))
		lo.wires[inst.LHS] = sum
		return nil
	case ast.OpSub:
		ea, eb := extend(a, width, signedA), extend(b, width, signedA)
		sum, _ := rippleAdd(ea, invertBus(eb), ntl.NewConst(kind.Bit1))
		lo.wires[inst.LHS] = sum
		return nil
	case ast.OpMul:
		ea, eb := extend(a, width, signedA), extend(b, width, signedA)
		acc := make([]*ntl.Wire, width)
		for i := range acc {
			acc[i] = ntl.NewConst(kind.Bit0)
		}
		for i := 0; i < len(eb); i++ {
			partial := make([]*ntl.Wire, width)
			shifted := constShift(ea, i, true, false)
			for j := range partial {
				partial[j] = ntl.NewGate(ntl.GateAnd, shifted[j], eb[i])
			}
			acc, _ = rippleAdd(acc, partial, ntl.NewConst(kind.Bit0))
		}
		lo.wires[inst.LHS] = acc
		return nil
	case ast.OpAnd, ast.OpOr, ast.OpXor, ast.OpLogAnd, ast.OpLogOr:
		ea, eb := extend(a, width, signedA), extend(b, width, signedA)
		out := make([]*ntl.Wire, width)
		op := map[ast.BinOp]ntl.GateOp{
			ast.OpAnd: ntl.GateAnd, ast.OpLogAnd: ntl.GateAnd,
			ast.OpOr: ntl.GateOr, ast.OpLogOr: ntl.GateOr,
			ast.OpXor: ntl.GateXor,
		}[inst.BinOp]
		for i := range out {
			out[i] = ntl.NewGate(op, ea[i], eb[i])
		}
		lo.wires[inst.LHS] = out
		return nil
	case ast.OpShl, ast.OpShr:
		left := inst.BinOp == ast.OpShl
		arithmetic := !left && signedA
		var shifted []*ntl.Wire
		if allConst(b) {
			shifted = constShift(a, constAmount(b), left, arithmetic)
		} else {
			shifted = variableShift(a, b, left, arithmetic)
		}
		lo.wires[inst.LHS] = extend(shifted, width, arithmetic)
		return nil
	case ast.OpEq:
		lo.wires[inst.LHS] = []*ntl.Wire{busEq(a, b)}
		return nil
	case ast.OpNe:
		lo.wires[inst.LHS] = []*ntl.Wire{ntl.NewGate(ntl.GateNot, busEq(a, b))}
		return nil
	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		return lo.lowerCompare(inst, a, b, signedA)
	default:
		return fmt.Errorf("rtl: LowerToNTL: unhandled BinOp %s", inst.BinOp)
	}
}

// lowerCompare reduces every ordering comparison to a subtract-and-inspect
// the same way an ALU's flag register would: a-b's sign/carry bit decides
// less-than, then Le/Gt/Ge compose from Lt and Eq.
func (lo *lowerer) lowerCompare(inst Inst, a, b []*ntl.Wire, signed bool) error {
	width := len(a)
	if len(b) > width {
		width = len(b)
	}
	ea, eb := extend(a, width, signed), extend(b, width, signed)
	diff, carryOut := rippleAdd(ea, invertBus(eb), ntl.NewConst(kind.Bit1))
	var lt *ntl.Wire
	if signed {
		// Sign of (a-b) is correct unless the subtraction itself
		// overflowed the signed range; XOR the result sign with the
		// overflow flag (operands' sign mismatch crossed with carry)
		// the way a two's-complement ALU's N^V flag combination works.
		signBit := diff[width-1]
		overflow := ntl.NewGate(ntl.GateAnd,
			ntl.NewGate(ntl.GateXor, ea[width-1], eb[width-1]),
			ntl.NewGate(ntl.GateXor, ea[width-1], signBit),
		)
		lt = ntl.NewGate(ntl.GateXor, signBit, overflow)
	} else {
		lt = ntl.NewGate(ntl.GateNot, carryOut)
	}
	eq := busEq(ea, eb)
	switch inst.BinOp {
	case ast.OpLt:
		lo.wires[inst.LHS] = []*ntl.Wire{lt}
	case ast.OpGe:
		lo.wires[inst.LHS] = []*ntl.Wire{ntl.NewGate(ntl.GateNot, lt)}
	case ast.OpLe:
		lo.wires[inst.LHS] = []*ntl.Wire{ntl.NewGate(ntl.GateOr, lt, eq)}
	case ast.OpGt:
		gt := ntl.NewGate(ntl.GateNot, ntl.NewGate(ntl.GateOr, lt, eq))
		lo.wires[inst.LHS] = []*ntl.Wire{gt}
	}
	return nil
}

func allConst(bus []*ntl.Wire) bool {
	for _, w := range bus {
		if _, ok := w.Origin.(ntl.Const); !ok {
			return false
		}
	}
	return true
}

func constAmount(bus []*ntl.Wire) int {
	n := 0
	for i, w := range bus {
		if w.Origin.(ntl.Const).Value == kind.Bit1 {
			n |= 1 << uint(i)
		}
	}
	return n
}

func (lo *lowerer) lowerUnary(inst Inst, width int) error {
	a, err := lo.argBus(inst.Args, 0)
	if err != nil {
		return err
	}
	switch inst.UnOp {
	case ast.OpNeg:
		ea := extend(a, width, true)
		zeros := make([]*ntl.Wire, width)
		for i := range zeros {
			zeros[i] = ntl.NewConst(kind.Bit0)
		}
		sum, _ := rippleAdd(invertBus(ea), zeros, ntl.NewConst(kind.Bit1))
		lo.wires[inst.LHS] = sum
		return nil
	case ast.OpNot, ast.OpLogNot:
		lo.wires[inst.LHS] = invertBus(extend(a, width, false))
		return nil
	default:
		return fmt.Errorf("rtl: LowerToNTL: unhandled UnOp %s", inst.UnOp)
	}
}

// lowerCase builds a priority mux tree over the Case table: Default (if
// present) seeds the chain, then each keyed arm overrides it where the
// discriminant bus equals that arm's constant key (spec.md §4.N: "Case ->
// priority-mux-tree").
func (lo *lowerer) lowerCase(inst Inst, width int) error {
	disc, err := lo.busFor(inst.Args[0])
	if err != nil {
		return err
	}
	var acc []*ntl.Wire
	var keyed []CaseArm
	for _, arm := range inst.Table {
		if arm.Default {
			bus, err := lo.busFor(arm.Result)
			if err != nil {
				return err
			}
			acc = extend(bus, width, false)
		} else {
			keyed = append(keyed, arm)
		}
	}
	if acc == nil {
		acc = make([]*ntl.Wire, width)
		for i := range acc {
			acc[i] = ntl.NewConst(kind.BitUnknown)
		}
	}
	for _, arm := range keyed {
		keyBus, err := lo.busFor(arm.Key)
		if err != nil {
			return err
		}
		resBus, err := lo.busFor(arm.Result)
		if err != nil {
			return err
		}
		resBus = extend(resBus, width, false)
		sel := busEq(disc, keyBus)
		next := make([]*ntl.Wire, width)
		for i := range next {
			next[i] = ntl.NewGate(ntl.GateMux, sel, acc[i], resBus[i])
		}
		acc = next
	}
	lo.wires[inst.LHS] = acc
	return nil
}
