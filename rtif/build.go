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
	"math/big"

	"hwkit/ast"
	"hwkit/bits"
	"hwkit/diag"
	"hwkit/kind"
	"hwkit/mir"
)

// builder lowers one already-inferred kernel into a Func by structural
// recursion over the AST: every expression node becomes zero or more Ops
// appended in program order, and the node's own Slot is whatever its
// subtree left behind. For loops are unrolled here (mir only validated
// their bounds are constant); if/match compile straight to Select/Case
// over already-built arm slots instead of basic blocks.
type builder struct {
	tk  *mir.TypedKernel
	f   *Func
	env []map[string]Slot
}

// Build lowers tk into an RTIF Func.
func Build(tk *mir.TypedKernel) (*Func, error) {
	f := NewFunc(tk.Kernel.Name)
	b := &builder{tk: tk, f: f, env: []map[string]Slot{make(map[string]Slot)}}
	for i, p := range tk.Kernel.Params {
		s := f.Symbols.NewRegister(tk.ParamKinds[i])
		b.bind(p.Name, s)
		f.Params = append(f.Params, s)
	}
	result, err := b.buildBlock(tk.Kernel.Body)
	if err != nil {
		return nil, err
	}
	f.Result = result
	return f, nil
}

func (b *builder) bind(name string, s Slot) { b.env[len(b.env)-1][name] = s }

func (b *builder) lookup(name string) (Slot, bool) {
	for i := len(b.env) - 1; i >= 0; i-- {
		if s, ok := b.env[i][name]; ok {
			return s, true
		}
	}
	return NoSlot, false
}

func (b *builder) pushScope() { b.env = append(b.env, make(map[string]Slot)) }
func (b *builder) popScope()  { b.env = b.env[:len(b.env)-1] }

func (b *builder) kindOf(n ast.Node) kind.Kind { return b.tk.TypeOf(n) }

func (b *builder) emit(op Op) Slot { return b.f.emit(op) }

func (b *builder) unitSlot() Slot { return b.f.Symbols.InternLiteral(bits.New(0, 0)) }

func (b *builder) buildBlock(blk *ast.BlockExpr) (Slot, error) {
	b.pushScope()
	defer b.popScope()
	for _, s := range blk.Stmts {
		if err := b.buildStmt(s); err != nil {
			return NoSlot, err
		}
	}
	if blk.Tail == nil {
		return b.unitSlot(), nil
	}
	return b.buildExpr(blk.Tail)
}

func (b *builder) buildStmt(s ast.Stmt) error {
	switch st := s.(type) {
	case *ast.LocalStmt:
		slot, err := b.buildExpr(st.Init)
		if err != nil {
			return err
		}
		return b.bindPattern(st.Pat, slot)
	case *ast.ExprStmt:
		_, err := b.buildExpr(st.Expr)
		return err
	default:
		return diag.New(diag.CodeSynthUnsupported, ast.Span{}, "unsupported statement %T", s)
	}
}

// bindPattern binds the irrefutable pattern shapes a let-statement may
// use, decomposing a tuple slot into per-element Index ops as needed.
func (b *builder) bindPattern(p ast.Pat, slot Slot) error {
	switch pt := p.(type) {
	case *ast.IdentPat:
		b.bind(pt.Name, slot)
		return nil
	case *ast.WildPat:
		return nil
	case *ast.TuplePat:
		tup, ok := b.f.Symbols.Kind(slot).(kind.TupleKind)
		if !ok || len(tup.Elements) != len(pt.Elements) {
			return diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "tuple pattern does not match slot kind")
		}
		for i, el := range pt.Elements {
			elemSlot := b.emit(Op{
				Code: CodeIndex,
				LHS:  b.f.Symbols.NewRegister(tup.Elements[i]),
				Args: []Slot{slot},
				Path: []PathStep{{Index: i}},
			})
			if err := b.bindPattern(el, elemSlot); err != nil {
				return err
			}
		}
		return nil
	default:
		return diag.New(diag.CodeSynthUnsupported, ast.Span{}, "unsupported let pattern %T", p)
	}
}

func (b *builder) buildExpr(e ast.Expr) (Slot, error) {
	switch ex := e.(type) {
	case *ast.BitsLitExpr:
		v := bits.FromBigInt(ex.Width, ex.Signed, new(big.Int).SetUint64(ex.Value))
		return b.f.Symbols.InternLiteral(v), nil
	case *ast.LitExpr:
		k := b.kindOf(ex)
		var v bits.Value
		if sk, ok := k.(kind.SignedKind); ok {
			v = bits.NewSigned(sk.Width, ex.Value)
		} else {
			bk := k.(kind.BitsKind)
			v = bits.New(bk.Width, uint64(ex.Value))
		}
		return b.f.Symbols.InternLiteral(v), nil
	case *ast.PathExpr:
		name := ex.Segments[len(ex.Segments)-1]
		s, ok := b.lookup(name)
		if !ok {
			return NoSlot, diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "undefined name %q", name)
		}
		return s, nil
	case *ast.ParenExpr:
		return b.buildExpr(ex.Inner)
	case *ast.GroupExpr:
		return b.buildExpr(ex.Inner)
	case *ast.UnaryExpr:
		argSlot, err := b.buildExpr(ex.Expr)
		if err != nil {
			return NoSlot, err
		}
		return b.emit(Op{
			Code: CodeUnary,
			LHS:  b.f.Symbols.NewRegister(b.kindOf(ex)),
			Args: []Slot{argSlot},
			UnOp: ex.Op,
		}), nil
	case *ast.BinaryExpr:
		lhsSlot, err := b.buildExpr(ex.Left)
		if err != nil {
			return NoSlot, err
		}
		rhsSlot, err := b.buildExpr(ex.Right)
		if err != nil {
			return NoSlot, err
		}
		return b.emit(Op{
			Code:  CodeBinary,
			LHS:   b.f.Symbols.NewRegister(b.kindOf(ex)),
			Args:  []Slot{lhsSlot, rhsSlot},
			BinOp: ex.Op,
		}), nil
	case *ast.IndexExpr:
		return b.buildIndex(ex)
	case *ast.FieldExpr:
		targetSlot, err := b.buildExpr(ex.Target)
		if err != nil {
			return NoSlot, err
		}
		return b.emit(Op{
			Code: CodeIndex,
			LHS:  b.f.Symbols.NewRegister(b.kindOf(ex)),
			Args: []Slot{targetSlot},
			Path: []PathStep{{Field: ex.Name}},
		}), nil
	case *ast.TupleExpr:
		elems, err := b.buildExprList(ex.Elements)
		if err != nil {
			return NoSlot, err
		}
		return b.emit(Op{Code: CodeTuple, LHS: b.f.Symbols.NewRegister(b.kindOf(ex)), Args: elems}), nil
	case *ast.ArrayExpr:
		elems, err := b.buildExprList(ex.Elements)
		if err != nil {
			return NoSlot, err
		}
		return b.emit(Op{Code: CodeArray, LHS: b.f.Symbols.NewRegister(b.kindOf(ex)), Args: elems}), nil
	case *ast.RepeatExpr:
		valSlot, err := b.buildExpr(ex.Value)
		if err != nil {
			return NoSlot, err
		}
		return b.emit(Op{
			Code: CodeRepeat,
			LHS:  b.f.Symbols.NewRegister(b.kindOf(ex)),
			Args: []Slot{valSlot},
			Path: []PathStep{{Index: ex.Count}},
		}), nil
	case *ast.StructExpr:
		return b.buildStruct(ex)
	case *ast.AssignExpr:
		return b.buildAssign(ex)
	case *ast.IfExpr:
		return b.buildIf(ex)
	case *ast.MatchExpr:
		return b.buildMatch(ex)
	case *ast.ReturnExpr:
		if ex.Value == nil {
			return b.unitSlot(), nil
		}
		return b.buildExpr(ex.Value)
	case *ast.ForLoopExpr:
		return b.buildForLoop(ex)
	case *ast.LetExpr:
		slot, err := b.buildExpr(ex.Init)
		if err != nil {
			return NoSlot, err
		}
		if err := b.bindPattern(ex.Pat, slot); err != nil {
			return NoSlot, err
		}
		return b.f.Symbols.InternLiteral(bits.New(1, 1)), nil
	case *ast.BlockExpr:
		return b.buildBlock(ex)
	case *ast.CallExpr:
		argSlots, err := b.buildExprList(ex.Args)
		if err != nil {
			return NoSlot, err
		}
		return b.emit(Op{Code: CodeExec, LHS: b.f.Symbols.NewRegister(b.kindOf(ex)), Args: argSlots, FuncId: ex.Callee}), nil
	case *ast.MethodCallExpr:
		return b.buildMethodCall(ex)
	default:
		return NoSlot, diag.New(diag.CodeSynthUnsupported, ast.Span{}, "unsupported expression %T", e)
	}
}

func (b *builder) buildExprList(exprs []ast.Expr) ([]Slot, error) {
	slots := make([]Slot, 0, len(exprs))
	for _, e := range exprs {
		s, err := b.buildExpr(e)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, nil
}

// buildIndex lowers a[i]. The kernel language only ever indexes with a
// compile-time-constant expression (the induction variable of an
// unrolled for loop, or a literal) — there is no dynamic-array-index
// primitive, so a non-literal index is a synthesis error rather than a
// runtime mux.
func (b *builder) buildIndex(ex *ast.IndexExpr) (Slot, error) {
	targetSlot, err := b.buildExpr(ex.Target)
	if err != nil {
		return NoSlot, err
	}
	idxSlot, err := b.buildExpr(ex.Index)
	if err != nil {
		return NoSlot, err
	}
	v, ok := b.f.Symbols.Literal(idxSlot)
	if !ok {
		return NoSlot, diag.New(diag.CodeSynthUnsupported, ast.Span{}, "array index must be a compile-time constant")
	}
	// Uint64, not Int64: an index literal is always non-negative, and
	// Int64 decodes its operand as two's complement off the sign bit
	// regardless of the literal's own signedness, which would misread an
	// unsigned index whose top bit happens to be set.
	return b.emit(Op{
		Code: CodeIndex,
		LHS:  b.f.Symbols.NewRegister(b.kindOf(ex)),
		Args: []Slot{targetSlot},
		Path: []PathStep{{Index: int(v.Uint64())}},
	}), nil
}

func (b *builder) buildStruct(ex *ast.StructExpr) (Slot, error) {
	sk, ok := b.kindOf(ex).(kind.StructKind)
	if !ok {
		return NoSlot, diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "struct literal %q did not resolve to a struct kind", ex.TypeName)
	}
	bySource := make(map[string]ast.Expr, len(ex.Fields))
	for _, fi := range ex.Fields {
		bySource[fi.Name] = fi.Value
	}
	args := make([]Slot, 0, len(sk.Fields))
	for _, f := range sk.Fields {
		fe, ok := bySource[f.Name]
		if !ok {
			return NoSlot, diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "struct %s missing field %q", ex.TypeName, f.Name)
		}
		s, err := b.buildExpr(fe)
		if err != nil {
			return NoSlot, err
		}
		args = append(args, s)
	}
	return b.emit(Op{Code: CodeStruct, LHS: b.f.Symbols.NewRegister(sk), Args: args}), nil
}

// buildAssign lowers `name = expr`: only a plain variable on the left is
// supported (the grammar never builds field/index assignment targets),
// and rebinds the name to a freshly materialized slot rather than
// mutating in place, preserving write-once registers.
func (b *builder) buildAssign(ex *ast.AssignExpr) (Slot, error) {
	pe, ok := ex.Left.(*ast.PathExpr)
	if !ok {
		return NoSlot, diag.New(diag.CodeSynthUnsupported, ast.Span{}, "assignment target must be a plain variable")
	}
	rhsSlot, err := b.buildExpr(ex.Right)
	if err != nil {
		return NoSlot, err
	}
	name := pe.Segments[len(pe.Segments)-1]
	newSlot := b.emit(Op{
		Code: CodeAssign,
		LHS:  b.f.Symbols.NewRegister(b.f.Symbols.Kind(rhsSlot)),
		Args: []Slot{rhsSlot},
	})
	b.bind(name, newSlot)
	return b.unitSlot(), nil
}

func (b *builder) buildIf(ex *ast.IfExpr) (Slot, error) {
	condSlot, err := b.buildExpr(ex.Cond)
	if err != nil {
		return NoSlot, err
	}
	thenSlot, err := b.buildBlock(ex.Then)
	if err != nil {
		return NoSlot, err
	}
	var elseSlot Slot
	if ex.Else != nil {
		elseSlot, err = b.buildExpr(ex.Else)
		if err != nil {
			return NoSlot, err
		}
	} else {
		elseSlot = b.unitSlot()
	}
	return b.emit(Op{
		Code: CodeSelect,
		LHS:  b.f.Symbols.NewRegister(b.kindOf(ex)),
		Args: []Slot{condSlot, thenSlot, elseSlot},
	}), nil
}

func (b *builder) buildForLoop(ex *ast.ForLoopExpr) (Slot, error) {
	lo, _ := constInt(ex.Range.Start)
	hi, _ := constInt(ex.Range.End)
	width := inductionWidth(hi - 1)
	for it := lo; it < hi; it++ {
		b.pushScope()
		litSlot := b.f.Symbols.InternLiteral(bits.New(width, uint64(it)))
		b.bind(ex.Var, litSlot)
		if _, err := b.buildBlock(ex.Body); err != nil {
			b.popScope()
			return NoSlot, err
		}
		b.popScope()
	}
	return b.unitSlot(), nil
}

func inductionWidth(maxVal int64) int {
	if maxVal < 0 {
		return 1
	}
	w := 1
	for (int64(1) << w) <= maxVal {
		w++
	}
	return w
}

func constInt(e ast.Expr) (int64, bool) {
	switch ex := e.(type) {
	case *ast.LitExpr:
		return ex.Value, true
	case *ast.BitsLitExpr:
		return int64(ex.Value), true
	case *ast.UnaryExpr:
		if ex.Op == ast.OpNeg {
			v, ok := constInt(ex.Expr)
			return -v, ok
		}
	case *ast.ParenExpr:
		return constInt(ex.Inner)
	}
	return 0, false
}

func (b *builder) buildMethodCall(ex *ast.MethodCallExpr) (Slot, error) {
	recvSlot, err := b.buildExpr(ex.Receiver)
	if err != nil {
		return NoSlot, err
	}
	switch ex.Method {
	case "bits":
		return b.emit(Op{Code: CodeAsBits, LHS: b.f.Symbols.NewRegister(b.kindOf(ex)), Args: []Slot{recvSlot}}), nil
	case "signed":
		return b.emit(Op{Code: CodeAsSigned, LHS: b.f.Symbols.NewRegister(b.kindOf(ex)), Args: []Slot{recvSlot}}), nil
	case "resize":
		return b.emit(Op{Code: CodeResize, LHS: b.f.Symbols.NewRegister(b.kindOf(ex)), Args: []Slot{recvSlot}}), nil
	case "xadd", "xsub", "xmul":
		argSlot, err := b.buildExpr(ex.Args[0])
		if err != nil {
			return NoSlot, err
		}
		var op ast.BinOp
		switch ex.Method {
		case "xadd":
			op = ast.OpAdd
		case "xsub":
			op = ast.OpSub
		case "xmul":
			op = ast.OpMul
		}
		return b.emit(Op{
			Code:  CodeBinary,
			LHS:   b.f.Symbols.NewRegister(b.kindOf(ex)),
			Args:  []Slot{recvSlot, argSlot},
			BinOp: op,
			Widen: true,
		}), nil
	default:
		return NoSlot, diag.New(diag.CodeTypeUnknownMethod, ast.Span{}, "unknown method %q", ex.Method)
	}
}

func (b *builder) buildMatch(ex *ast.MatchExpr) (Slot, error) {
	for i := range ex.Arms {
		if ex.Arms[i].Guard != nil {
			return NoSlot, diag.New(diag.CodeSynthUnsupported, ast.Span{}, "match arm guards are not yet supported by synthesis")
		}
	}
	scrutSlot, err := b.buildExpr(ex.Scrutinee)
	if err != nil {
		return NoSlot, err
	}
	scrutKind := b.f.Symbols.Kind(scrutSlot)
	ek, isEnum := scrutKind.(kind.EnumKind)

	var discSlot Slot
	if isEnum {
		discSlot = b.emit(Op{
			Code: CodeIndex,
			LHS:  b.f.Symbols.NewRegister(discKind(ek)),
			Args: []Slot{scrutSlot},
			Path: []PathStep{{Discriminant: true}},
		})
	} else {
		discSlot = scrutSlot
	}

	resultKind := b.kindOf(ex)
	table := make([]CaseArm, 0, len(ex.Arms))
	for i := range ex.Arms {
		arm := &ex.Arms[i]
		b.pushScope()
		key, isDefault, err := b.bindCasePattern(arm.Pat, scrutSlot, ek, isEnum)
		if err != nil {
			b.popScope()
			return NoSlot, err
		}
		bodySlot, err := b.buildExpr(arm.Body)
		b.popScope()
		if err != nil {
			return NoSlot, err
		}
		table = append(table, CaseArm{Key: key, Default: isDefault, Result: bodySlot})
	}
	return b.emit(Op{
		Code:  CodeCase,
		LHS:   b.f.Symbols.NewRegister(resultKind),
		Args:  []Slot{discSlot},
		Table: table,
	}), nil
}

func discKind(ek kind.EnumKind) kind.Kind {
	if ek.Layout.Signed {
		return kind.Signed(ek.Layout.Width)
	}
	return kind.Bits(ek.Layout.Width)
}

// bindCasePattern binds names a match arm's pattern introduces and
// reports the CaseArm key to dispatch on (or Default for a catch-all).
func (b *builder) bindCasePattern(p ast.Pat, scrutSlot Slot, ek kind.EnumKind, isEnum bool) (Slot, bool, error) {
	switch pt := p.(type) {
	case *ast.WildPat:
		return NoSlot, true, nil
	case *ast.IdentPat:
		b.bind(pt.Name, scrutSlot)
		return NoSlot, true, nil
	case *ast.LitPat:
		k := b.f.Symbols.Kind(scrutSlot)
		var v bits.Value
		if sk, ok := k.(kind.SignedKind); ok {
			v = bits.NewSigned(sk.Width, pt.Value)
		} else {
			bk := k.(kind.BitsKind)
			v = bits.New(bk.Width, uint64(pt.Value))
		}
		return b.f.Symbols.InternLiteral(v), false, nil
	case *ast.TupleStructPat:
		if !isEnum {
			return NoSlot, false, diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "tuple-struct pattern needs an enum scrutinee")
		}
		var variant *kind.Variant
		for i := range ek.Variants {
			if ek.Variants[i].Name == pt.TypeName {
				variant = &ek.Variants[i]
				break
			}
		}
		if variant == nil {
			return NoSlot, false, diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "enum %s has no variant %q", ek.Name, pt.TypeName)
		}
		if len(pt.Elements) > 0 {
			payloadSlot := b.emit(Op{
				Code: CodeIndex,
				LHS:  b.f.Symbols.NewRegister(variant.Payload),
				Args: []Slot{scrutSlot},
				Path: []PathStep{{Field: "$payload"}},
			})
			if err := b.bindPattern(pt.Elements[0], payloadSlot); err != nil {
				return NoSlot, false, err
			}
		}
		keyWidth := ek.Layout.Width
		var key Slot
		if ek.Layout.Signed {
			key = b.f.Symbols.InternLiteral(bits.NewSigned(keyWidth, variant.Discriminant))
		} else {
			key = b.f.Symbols.InternLiteral(bits.New(keyWidth, uint64(variant.Discriminant)))
		}
		return key, false, nil
	default:
		return NoSlot, false, diag.New(diag.CodeSynthUnsupported, ast.Span{}, "unsupported match pattern %T", p)
	}
}
