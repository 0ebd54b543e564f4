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
	"hwkit/ast"
	"hwkit/bits"
	"hwkit/kind"
)

// ConstProp folds every op whose operands are all literal slots into an
// Assign of a freshly interned literal, using the bits arithmetic oracle
// so folded results agree bit-for-bit with runtime evaluation (spec's
// constant-folding-soundness property). When the folded op produced
// f.Result, f.Result is redirected to the literal slot itself. It leaves
// non-foldable ops untouched and never removes an op (that is DCE's job).
func ConstProp(f *Func) (changed bool) {
	for i, op := range f.Ops {
		v, ok := foldOp(f, op)
		if !ok {
			continue
		}
		lit := f.Symbols.InternLiteral(v)
		f.Ops[i] = Op{Code: CodeAssign, LHS: op.LHS, Args: []Slot{lit}}
		if op.LHS == f.Result {
			f.Result = lit
		}
		changed = true
	}
	return changed
}

func foldOp(f *Func, op Op) (bits.Value, bool) {
	switch op.Code {
	case CodeBinary:
		a, aOk := f.Symbols.Literal(op.Args[0])
		b, bOk := f.Symbols.Literal(op.Args[1])
		if !aOk || !bOk {
			return bits.Value{}, false
		}
		return foldBinary(op.BinOp, op.Widen, a, b)
	case CodeUnary:
		a, ok := f.Symbols.Literal(op.Args[0])
		if !ok {
			return bits.Value{}, false
		}
		return foldUnary(op.UnOp, a)
	case CodeAsBits:
		a, ok := f.Symbols.Literal(op.Args[0])
		if !ok {
			return bits.Value{}, false
		}
		return bits.AsUnsigned(a), true
	case CodeAsSigned:
		a, ok := f.Symbols.Literal(op.Args[0])
		if !ok {
			return bits.Value{}, false
		}
		return bits.AsSigned(a), true
	case CodeResize:
		a, ok := f.Symbols.Literal(op.Args[0])
		if !ok {
			return bits.Value{}, false
		}
		return bits.Resize(a, kindWidth(f.Symbols.Kind(op.LHS))), true
	default:
		return bits.Value{}, false
	}
}

func foldBinary(op ast.BinOp, widen bool, a, b bits.Value) (bits.Value, bool) {
	if widen {
		switch op {
		case ast.OpAdd:
			return bits.XAdd(a, b), true
		case ast.OpSub:
			return bits.XSub(a, b), true
		case ast.OpMul:
			return bits.XMul(a, b), true
		}
		return bits.Value{}, false
	}
	switch op {
	case ast.OpAdd:
		return bits.Add(a, b), true
	case ast.OpSub:
		return bits.Sub(a, b), true
	case ast.OpMul:
		return bits.Mul(a, b), true
	case ast.OpAnd:
		return bits.And(a, b), true
	case ast.OpOr:
		return bits.Or(a, b), true
	case ast.OpXor:
		return bits.Xor(a, b), true
	case ast.OpShl:
		return bits.Shl(a, uint(b.Int64())), true
	case ast.OpShr:
		if a.Signed() {
			return bits.Sar(a, uint(b.Int64())), true
		}
		return bits.Shr(a, uint(b.Int64())), true
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		cmp, ok := cmpOpFor(op)
		if !ok {
			return bits.Value{}, false
		}
		if bits.Cmp(cmp, a, b) {
			return bits.New(1, 1), true
		}
		return bits.New(1, 0), true
	case ast.OpLogAnd:
		return bits.New(1, boolBit(a)&boolBit(b)), true
	case ast.OpLogOr:
		return bits.New(1, boolBit(a)|boolBit(b)), true
	default:
		return bits.Value{}, false
	}
}

func cmpOpFor(op ast.BinOp) (bits.CmpOp, bool) {
	switch op {
	case ast.OpEq:
		return bits.CmpEQ, true
	case ast.OpNe:
		return bits.CmpNE, true
	case ast.OpLt:
		return bits.CmpLT, true
	case ast.OpLe:
		return bits.CmpLE, true
	case ast.OpGt:
		return bits.CmpGT, true
	case ast.OpGe:
		return bits.CmpGE, true
	}
	return 0, false
}

func boolBit(v bits.Value) uint64 {
	if v.Uint64() != 0 {
		return 1
	}
	return 0
}

func kindWidth(k kind.Kind) int {
	switch kk := k.(type) {
	case kind.BitsKind:
		return kk.Width
	case kind.SignedKind:
		return kk.Width
	default:
		return 0
	}
}

func foldUnary(op ast.UnOp, a bits.Value) (bits.Value, bool) {
	switch op {
	case ast.OpNeg:
		zero := bits.New(a.Width(), 0)
		if a.Signed() {
			zero = bits.NewSigned(a.Width(), 0)
		}
		return bits.Sub(zero, a), true
	case ast.OpNot:
		return bits.Not(a), true
	case ast.OpLogNot:
		if boolBit(a) == 0 {
			return bits.New(1, 1), true
		}
		return bits.New(1, 0), true
	default:
		return bits.Value{}, false
	}
}
