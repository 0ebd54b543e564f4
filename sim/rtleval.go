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
package sim

import (
	"fmt"

	"hwkit/ast"
	"hwkit/bits"
	"hwkit/rtl"
)

// EvalRTL interprets a combinational *rtl.Module directly over concrete
// bits.Value operands, in program order — rtl.Module carries no loops, so
// unlike Cycle.settle this never needs a fixed-point sweep. It exists
// purely so a test can check that an rtl.Module and the ntl.Netlist
// lowered from it agree (spec.md §8's
// NTL-equals-RTL testable property), by running this interpreter and
// sim.Cycle over the same inputs and comparing results.
func EvalRTL(m *rtl.Module, args []bits.Value) (bits.Value, error) {
	if len(args) != len(m.Params) {
		return bits.Value{}, fmt.Errorf("sim: EvalRTL: got %d args, want %d", len(args), len(m.Params))
	}
	vals := make(map[rtl.Reg]bits.Value, m.Regs.NumRegs())
	for r := 0; r < m.Regs.NumRegs(); r++ {
		if v, ok := m.Regs.ConstValue(rtl.Reg(r)); ok {
			vals[rtl.Reg(r)] = v
		}
	}
	for i, p := range m.Params {
		vals[p] = args[i]
	}
	for _, inst := range m.Insts {
		v, err := evalInst(inst, vals, m)
		if err != nil {
			return bits.Value{}, err
		}
		vals[inst.LHS] = v
	}
	if m.Result == rtl.NoReg {
		return bits.Value{}, nil
	}
	return vals[m.Result], nil
}

func evalInst(inst rtl.Inst, vals map[rtl.Reg]bits.Value, m *rtl.Module) (bits.Value, error) {
	switch inst.Code {
	case rtl.CodeBinary:
		return evalBinary(inst, vals)
	case rtl.CodeUnary:
		return evalUnary(inst, vals)
	case rtl.CodeConcat:
		return evalConcat(inst, vals), nil
	case rtl.CodeIndexBits:
		a := vals[inst.Args[0]]
		width := inst.Range.Len()
		shifted := bits.Shr(bits.AsUnsigned(a), uint(inst.Range.Low))
		return bits.Resize(shifted, width), nil
	case rtl.CodeSplice:
		return evalSplice(inst, vals, m), nil
	case rtl.CodeCase:
		for _, arm := range inst.Table {
			if arm.Default {
				continue
			}
			if vals[inst.Args[0]].Uint64() == vals[arm.Key].Uint64() {
				return vals[arm.Result], nil
			}
		}
		for _, arm := range inst.Table {
			if arm.Default {
				return vals[arm.Result], nil
			}
		}
		return bits.Value{}, fmt.Errorf("sim: EvalRTL: Case has no matching arm and no default")
	case rtl.CodeCast:
		a := vals[inst.Args[0]]
		out := m.Regs
		width := out.Width(inst.LHS)
		signed := out.Signed(inst.LHS)
		resized := bits.Resize(a, width)
		if signed {
			return bits.AsSigned(resized), nil
		}
		return bits.AsUnsigned(resized), nil
	case rtl.CodeRetime:
		return vals[inst.Args[0]], nil
	default:
		return bits.Value{}, fmt.Errorf("sim: EvalRTL: unsupported rtl.Code %s", inst.Code)
	}
}

func evalBinary(inst rtl.Inst, vals map[rtl.Reg]bits.Value) (bits.Value, error) {
	a, b := vals[inst.Args[0]], vals[inst.Args[1]]
	switch inst.BinOp {
	case ast.OpAdd:
		return bits.Add(a, b), nil
	case ast.OpSub:
		return bits.Sub(a, b), nil
	case ast.OpMul:
		return bits.Mul(a, b), nil
	case ast.OpAnd, ast.OpLogAnd:
		return bits.And(a, b), nil
	case ast.OpOr, ast.OpLogOr:
		return bits.Or(a, b), nil
	case ast.OpXor:
		return bits.Xor(a, b), nil
	case ast.OpShl:
		return bits.Shl(a, uint(b.Uint64())), nil
	case ast.OpShr:
		if a.Signed() {
			return bits.Sar(a, uint(b.Uint64())), nil
		}
		return bits.Shr(a, uint(b.Uint64())), nil
	case ast.OpEq:
		return boolBit(bits.Cmp(bits.CmpEQ, a, b)), nil
	case ast.OpNe:
		return boolBit(bits.Cmp(bits.CmpNE, a, b)), nil
	case ast.OpLt:
		return boolBit(bits.Cmp(bits.CmpLT, a, b)), nil
	case ast.OpLe:
		return boolBit(bits.Cmp(bits.CmpLE, a, b)), nil
	case ast.OpGt:
		return boolBit(bits.Cmp(bits.CmpGT, a, b)), nil
	case ast.OpGe:
		return boolBit(bits.Cmp(bits.CmpGE, a, b)), nil
	default:
		return bits.Value{}, fmt.Errorf("sim: EvalRTL: unsupported BinOp %s", inst.BinOp)
	}
}

func boolBit(v bool) bits.Value {
	if v {
		return bits.New(1, 1)
	}
	return bits.New(1, 0)
}

func evalUnary(inst rtl.Inst, vals map[rtl.Reg]bits.Value) (bits.Value, error) {
	a := vals[inst.Args[0]]
	switch inst.UnOp {
	case ast.OpNeg:
		return bits.Sub(bits.New(a.Width(), 0), a), nil
	case ast.OpNot, ast.OpLogNot:
		return bits.Not(a), nil
	default:
		return bits.Value{}, fmt.Errorf("sim: EvalRTL: unsupported UnOp %s", inst.UnOp)
	}
}

func evalConcat(inst rtl.Inst, vals map[rtl.Reg]bits.Value) bits.Value {
	total := 0
	for _, a := range inst.Args {
		total += vals[a].Width()
	}
	out := bits.New(total, 0)
	shift := 0
	for _, a := range inst.Args {
		v := vals[a]
		out = bits.Or(out, bits.Shl(bits.Resize(bits.AsUnsigned(v), total), uint(shift)))
		shift += v.Width()
	}
	return out
}

func evalSplice(inst rtl.Inst, vals map[rtl.Reg]bits.Value, m *rtl.Module) bits.Value {
	base := vals[inst.Args[0]]
	repl := vals[inst.Args[1]]
	width := m.Regs.Width(inst.LHS)
	mask := bits.Shl(bits.Resize(bits.New(width, 1), width), uint(inst.Range.Len()))
	mask = bits.Sub(mask, bits.New(width, 1))
	mask = bits.Shl(mask, uint(inst.Range.Low))
	cleared := bits.And(bits.AsUnsigned(base), bits.Not(mask))
	placed := bits.Shl(bits.Resize(bits.AsUnsigned(repl), width), uint(inst.Range.Low))
	return bits.Or(cleared, placed)
}
