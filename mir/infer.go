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
package mir

import (
	"hwkit/ast"
	"hwkit/diag"
	"hwkit/kind"
)

// TypedKernel is the output of Infer: a kernel whose every expression node
// has a resolved Kind, ready for rtif's structural SSA lowering.
type TypedKernel struct {
	Kernel     *ast.KernelFn
	Types      map[ast.NodeId]kind.Kind
	ParamKinds []kind.Kind
	RetKind    kind.Kind
}

// TypeOf looks up a previously inferred node's Kind; callers (rtif) only
// ever ask about nodes Infer has already visited, so a missing entry is a
// construction bug rather than a user error.
func (tk *TypedKernel) TypeOf(n ast.Node) kind.Kind { return tk.Types[n.Id()] }

// infer carries the per-kernel inference state: the registry of named
// types/kernels, a lexical environment of bound names, the node->Kind
// result map under construction, and the union-find used to resolve bare
// integer literals' widths.
type infer struct {
	reg   *Registry
	env   []map[string]kind.Kind
	types map[ast.NodeId]kind.Kind
	uf    *UnionFind
	// litVars remembers which VarId a given LitExpr node was assigned, so
	// every occurrence consults the same unification variable.
	litVars map[ast.NodeId]VarId
}

// Infer type-checks one kernel's body against reg, resolving every
// expression node (including bare integer literals, via union-find
// unification against the context each appears in) to a concrete
// kind.Kind.
func Infer(k *ast.KernelFn, reg *Registry) (*TypedKernel, error) {
	in := &infer{
		reg:     reg,
		env:     []map[string]kind.Kind{make(map[string]kind.Kind)},
		types:   make(map[ast.NodeId]kind.Kind),
		uf:      NewUnionFind(),
		litVars: make(map[ast.NodeId]VarId),
	}
	paramKinds := make([]kind.Kind, 0, len(k.Params))
	for _, p := range k.Params {
		pk, err := reg.ResolveType(p.Type)
		if err != nil {
			return nil, err
		}
		in.bind(p.Name, pk)
		paramKinds = append(paramKinds, pk)
	}
	var retKind kind.Kind
	if k.RetType != nil {
		rk, err := reg.ResolveType(k.RetType)
		if err != nil {
			return nil, err
		}
		retKind = rk
	}
	bodyKind, err := in.inferBlock(k.Body)
	if err != nil {
		return nil, err
	}
	if retKind != nil && !kindsEqual(bodyKind, retKind) {
		return nil, diag.New(diag.CodeTypeKindMismatch, ast.Span{},
			"kernel %s returns %s, declared return type is %s", k.Name, bodyKind, retKind)
	}
	if retKind == nil {
		retKind = bodyKind
	}
	if err := in.sealLiterals(); err != nil {
		return nil, err
	}
	return &TypedKernel{Kernel: k, Types: in.types, ParamKinds: paramKinds, RetKind: retKind}, nil
}

// sealLiterals walks every literal var and errors if any never resolved
// to a concrete Kind — spec.md's "unresolved width variable at sealing"
// failure mode.
func (in *infer) sealLiterals() error {
	for nodeId, v := range in.litVars {
		k, ok := in.uf.Resolve(v)
		if !ok {
			return diag.New(diag.CodeTypeUnresolvedWidth, ast.Span{},
				"literal (node %d) never resolved to a concrete width", nodeId)
		}
		in.types[nodeId] = k
	}
	return nil
}

func (in *infer) bind(name string, k kind.Kind) {
	in.env[len(in.env)-1][name] = k
}

func (in *infer) lookup(name string) (kind.Kind, bool) {
	for i := len(in.env) - 1; i >= 0; i-- {
		if k, ok := in.env[i][name]; ok {
			return k, true
		}
	}
	return nil, false
}

func (in *infer) pushScope() { in.env = append(in.env, make(map[string]kind.Kind)) }
func (in *infer) popScope()  { in.env = in.env[:len(in.env)-1] }

func (in *infer) record(n ast.Node, k kind.Kind) kind.Kind {
	in.types[n.Id()] = k
	return k
}

func (in *infer) inferBlock(b *ast.BlockExpr) (kind.Kind, error) {
	in.pushScope()
	defer in.popScope()
	for _, s := range b.Stmts {
		if err := in.inferStmt(s); err != nil {
			return nil, err
		}
	}
	if b.Tail == nil {
		return in.record(b, kind.Empty), nil
	}
	tk, err := in.inferExpr(b.Tail, nil)
	if err != nil {
		return nil, err
	}
	return in.record(b, tk), nil
}

func (in *infer) inferStmt(s ast.Stmt) error {
	switch st := s.(type) {
	case *ast.LocalStmt:
		var expect kind.Kind
		if st.Type != nil {
			rk, err := in.reg.ResolveType(st.Type)
			if err != nil {
				return err
			}
			expect = rk
		}
		ik, err := in.inferExpr(st.Init, expect)
		if err != nil {
			return err
		}
		if expect != nil && !kindsEqual(ik, expect) {
			return diag.New(diag.CodeTypeKindMismatch, ast.Span{},
				"let binding initializer is %s, annotation says %s", ik, expect)
		}
		if err := in.bindPattern(st.Pat, ik); err != nil {
			return err
		}
		return nil
	case *ast.ExprStmt:
		_, err := in.inferExpr(st.Expr, nil)
		return err
	default:
		return diag.New(diag.CodeSynthUnsupported, ast.Span{}, "unsupported statement %T", s)
	}
}

// bindPattern only supports the irrefutable binding shapes a let-statement
// may use (identifier, wildcard, tuple); match arms handle the full
// pattern language separately in rtif, since only rtif builds the
// per-arm environments a Case lowering needs.
func (in *infer) bindPattern(p ast.Pat, k kind.Kind) error {
	switch pt := p.(type) {
	case *ast.IdentPat:
		in.bind(pt.Name, k)
		in.record(pt, k)
		return nil
	case *ast.WildPat:
		in.record(pt, k)
		return nil
	case *ast.TuplePat:
		tk, ok := k.(kind.TupleKind)
		if !ok || len(tk.Elements) != len(pt.Elements) {
			return diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "tuple pattern does not match %s", k)
		}
		for i, el := range pt.Elements {
			if err := in.bindPattern(el, tk.Elements[i]); err != nil {
				return err
			}
		}
		in.record(pt, k)
		return nil
	default:
		return diag.New(diag.CodeSynthUnsupported, ast.Span{}, "unsupported let pattern %T", p)
	}
}

// inferExpr resolves e's Kind; expect, when non-nil, is the Kind the
// surrounding context wants (used to unify bare literal widths).
func (in *infer) inferExpr(e ast.Expr, expect kind.Kind) (kind.Kind, error) {
	switch ex := e.(type) {
	case *ast.BitsLitExpr:
		if !kind.ValidWidth(ex.Width) {
			return nil, diag.New(diag.CodeTypeWidthMismatch, ast.Span{}, "invalid bit width %d", ex.Width)
		}
		k := kind.Bits(ex.Width)
		if ex.Signed {
			k = kind.Signed(ex.Width)
		}
		return in.record(ex, k), nil
	case *ast.LitExpr:
		v, ok := in.litVars[ex.Id()]
		if !ok {
			v = in.uf.New()
			in.litVars[ex.Id()] = v
		}
		if expect != nil {
			if err := in.uf.SetKind(v, expect); err != nil {
				return nil, diag.New(diag.CodeTypeWidthMismatch, ast.Span{}, "%v", err)
			}
		}
		if rk, ok := in.uf.Resolve(v); ok {
			return rk, nil // not recorded yet: sealLiterals fills types[] once resolution is final
		}
		return nil, nil
	case *ast.PathExpr:
		name := ex.Segments[len(ex.Segments)-1]
		k, ok := in.lookup(name)
		if !ok {
			return nil, diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "undefined name %q", name)
		}
		return in.record(ex, k), nil
	case *ast.ParenExpr:
		ik, err := in.inferExpr(ex.Inner, expect)
		if err != nil {
			return nil, err
		}
		return in.record(ex, ik), nil
	case *ast.GroupExpr:
		ik, err := in.inferExpr(ex.Inner, expect)
		if err != nil {
			return nil, err
		}
		return in.record(ex, ik), nil
	case *ast.UnaryExpr:
		ik, err := in.inferExpr(ex.Expr, expect)
		if err != nil {
			return nil, err
		}
		return in.record(ex, ik), nil
	case *ast.BinaryExpr:
		return in.inferBinary(ex)
	case *ast.IndexExpr:
		tk, err := in.inferExpr(ex.Target, nil)
		if err != nil {
			return nil, err
		}
		ak, ok := tk.(kind.ArrayKind)
		if !ok {
			return nil, diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "cannot index non-array kind %s", tk)
		}
		if _, err := in.inferExpr(ex.Index, nil); err != nil {
			return nil, err
		}
		return in.record(ex, ak.Base), nil
	case *ast.FieldExpr:
		tk, err := in.inferExpr(ex.Target, nil)
		if err != nil {
			return nil, err
		}
		sk, ok := tk.(kind.StructKind)
		if !ok {
			return nil, diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "cannot access field %q on non-struct kind %s", ex.Name, tk)
		}
		for _, f := range sk.Fields {
			if f.Name == ex.Name {
				return in.record(ex, f.Kind), nil
			}
		}
		return nil, diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "struct %s has no field %q", sk.Name, ex.Name)
	case *ast.TupleExpr:
		elems := make([]kind.Kind, 0, len(ex.Elements))
		for _, el := range ex.Elements {
			ek, err := in.inferExpr(el, nil)
			if err != nil {
				return nil, err
			}
			elems = append(elems, ek)
		}
		return in.record(ex, kind.Tuple(elems...)), nil
	case *ast.ArrayExpr:
		if len(ex.Elements) == 0 {
			return nil, diag.New(diag.CodeSynthUnsupported, ast.Span{}, "empty array literal needs an explicit type annotation")
		}
		first, err := in.inferExpr(ex.Elements[0], nil)
		if err != nil {
			return nil, err
		}
		for _, el := range ex.Elements[1:] {
			ek, err := in.inferExpr(el, first)
			if err != nil {
				return nil, err
			}
			if !kindsEqual(ek, first) {
				return nil, diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "array elements have mismatched kinds %s vs %s", first, ek)
			}
		}
		return in.record(ex, kind.Array(first, len(ex.Elements))), nil
	case *ast.RepeatExpr:
		vk, err := in.inferExpr(ex.Value, nil)
		if err != nil {
			return nil, err
		}
		return in.record(ex, kind.Array(vk, ex.Count)), nil
	case *ast.StructExpr:
		sk, ok := in.reg.Structs[ex.TypeName]
		if !ok {
			return nil, diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "unknown struct type %q", ex.TypeName)
		}
		st := sk.(kind.StructKind)
		for _, fi := range ex.Fields {
			var fieldKind kind.Kind
			for _, f := range st.Fields {
				if f.Name == fi.Name {
					fieldKind = f.Kind
					break
				}
			}
			if fieldKind == nil {
				return nil, diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "struct %s has no field %q", ex.TypeName, fi.Name)
			}
			if _, err := in.inferExpr(fi.Value, fieldKind); err != nil {
				return nil, err
			}
		}
		return in.record(ex, sk), nil
	case *ast.AssignExpr:
		lk, err := in.inferExpr(ex.Left, nil)
		if err != nil {
			return nil, err
		}
		if _, err := in.inferExpr(ex.Right, lk); err != nil {
			return nil, err
		}
		return in.record(ex, kind.Empty), nil
	case *ast.IfExpr:
		if _, err := in.inferExpr(ex.Cond, kind.Bits(1)); err != nil {
			return nil, err
		}
		thenK, err := in.inferBlock(ex.Then)
		if err != nil {
			return nil, err
		}
		if ex.Else == nil {
			return in.record(ex, thenK), nil
		}
		elseK, err := in.inferExpr(ex.Else, thenK)
		if err != nil {
			return nil, err
		}
		if !kindsEqual(thenK, elseK) {
			return nil, diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "if branches disagree: %s vs %s", thenK, elseK)
		}
		return in.record(ex, thenK), nil
	case *ast.MatchExpr:
		return in.inferMatch(ex)
	case *ast.ReturnExpr:
		if ex.Value != nil {
			if _, err := in.inferExpr(ex.Value, expect); err != nil {
				return nil, err
			}
		}
		return in.record(ex, kind.Empty), nil
	case *ast.ForLoopExpr:
		return in.inferForLoop(ex)
	case *ast.LetExpr:
		ik, err := in.inferExpr(ex.Init, nil)
		if err != nil {
			return nil, err
		}
		if err := in.bindPattern(ex.Pat, ik); err != nil {
			return nil, err
		}
		return in.record(ex, kind.Bits(1)), nil
	case *ast.BlockExpr:
		return in.inferBlock(ex)
	case *ast.CallExpr:
		sig, ok := in.reg.Kernels[ex.Callee]
		if !ok {
			return nil, diag.New(diag.CodeSynthMissingKernel, ast.Span{}, "call to undeclared kernel %q", ex.Callee)
		}
		if len(sig.Params) != len(ex.Args) {
			return nil, diag.New(diag.CodeSynthCircuitMismatch, ast.Span{},
				"kernel %q expects %d arguments, got %d", ex.Callee, len(sig.Params), len(ex.Args))
		}
		for i, a := range ex.Args {
			if _, err := in.inferExpr(a, sig.Params[i]); err != nil {
				return nil, err
			}
		}
		return in.record(ex, sig.Ret), nil
	case *ast.MethodCallExpr:
		return in.inferMethodCall(ex)
	default:
		return nil, diag.New(diag.CodeSynthUnsupported, ast.Span{}, "unsupported expression %T", e)
	}
}

func (in *infer) inferBinary(ex *ast.BinaryExpr) (kind.Kind, error) {
	lk, err := in.inferExpr(ex.Left, nil)
	if err != nil {
		return nil, err
	}
	rk, err := in.inferExpr(ex.Right, lk)
	if err != nil {
		return nil, err
	}
	if lk == nil && rk != nil {
		lk, err = in.inferExpr(ex.Left, rk)
		if err != nil {
			return nil, err
		}
	}
	if lk != nil && rk == nil {
		rk = lk
	}
	if lk != nil && rk != nil && !kindsEqual(lk, rk) {
		return nil, diag.New(diag.CodeTypeWidthMismatch, ast.Span{},
			"operand kinds disagree for %s: %s vs %s", ex.Op, lk, rk)
	}
	if ex.Op.IsComparison() || ex.Op == ast.OpLogAnd || ex.Op == ast.OpLogOr {
		return in.record(ex, kind.Bits(1)), nil
	}
	return in.record(ex, lk), nil
}

func bitsWidth(k kind.Kind) int {
	switch t := k.(type) {
	case kind.BitsKind:
		return t.Width
	case kind.SignedKind:
		return t.Width
	default:
		return 0
	}
}

func isSigned(k kind.Kind) bool {
	_, ok := k.(kind.SignedKind)
	return ok
}

func (in *infer) inferMatch(ex *ast.MatchExpr) (kind.Kind, error) {
	scrutKind, err := in.inferExpr(ex.Scrutinee, nil)
	if err != nil {
		return nil, err
	}
	var resultKind kind.Kind
	for i := range ex.Arms {
		arm := &ex.Arms[i]
		in.pushScope()
		if err := in.bindMatchPattern(arm.Pat, scrutKind); err != nil {
			in.popScope()
			return nil, err
		}
		if arm.Guard != nil {
			if _, err := in.inferExpr(arm.Guard, kind.Bits(1)); err != nil {
				in.popScope()
				return nil, err
			}
		}
		bk, err := in.inferExpr(arm.Body, resultKind)
		in.popScope()
		if err != nil {
			return nil, err
		}
		if resultKind == nil {
			resultKind = bk
		} else if bk != nil && !kindsEqual(resultKind, bk) {
			return nil, diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "match arms disagree: %s vs %s", resultKind, bk)
		}
	}
	return in.record(ex, resultKind), nil
}

// bindMatchPattern binds names introduced by a pattern against scrutKind;
// it does not itself validate exhaustiveness or enum-variant membership
// (left for a later synthesis-stage pass, since that needs the full
// rtif.Case lowering to report usefully), only structural shape and name
// binding.
func (in *infer) bindMatchPattern(p ast.Pat, scrutKind kind.Kind) error {
	switch pt := p.(type) {
	case *ast.WildPat, *ast.LitPat:
		return nil
	case *ast.IdentPat:
		in.bind(pt.Name, scrutKind)
		return nil
	case *ast.TupleStructPat:
		ek, ok := scrutKind.(kind.EnumKind)
		if !ok {
			if len(pt.Elements) == 0 {
				return nil
			}
			return diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "pattern %s needs an enum scrutinee, got %s", pt.TypeName, scrutKind)
		}
		var payload kind.Kind
		for _, v := range ek.Variants {
			if v.Name == pt.TypeName {
				payload = v.Payload
				break
			}
		}
		if payload == nil {
			payload = kind.Empty
		}
		for _, el := range pt.Elements {
			if err := in.bindMatchPattern(el, payload); err != nil {
				return err
			}
		}
		return nil
	case *ast.StructPat:
		sk, ok := scrutKind.(kind.StructKind)
		if !ok {
			return diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "struct pattern needs a struct scrutinee, got %s", scrutKind)
		}
		for _, f := range pt.Fields {
			var fk kind.Kind
			for _, sf := range sk.Fields {
				if sf.Name == f.Name {
					fk = sf.Kind
					break
				}
			}
			if err := in.bindMatchPattern(f.Pat, fk); err != nil {
				return err
			}
		}
		return nil
	case *ast.OrPat:
		for _, alt := range pt.Alternatives {
			if err := in.bindMatchPattern(alt, scrutKind); err != nil {
				return err
			}
		}
		return nil
	case *ast.ParenPat:
		return in.bindMatchPattern(pt.Inner, scrutKind)
	case *ast.TuplePat:
		tk, ok := scrutKind.(kind.TupleKind)
		if !ok {
			return diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "tuple pattern needs a tuple scrutinee, got %s", scrutKind)
		}
		for i, el := range pt.Elements {
			if i >= len(tk.Elements) {
				break
			}
			if err := in.bindMatchPattern(el, tk.Elements[i]); err != nil {
				return err
			}
		}
		return nil
	default:
		return diag.New(diag.CodeSynthUnsupported, ast.Span{}, "unsupported pattern %T", p)
	}
}

// inferForLoop validates the range bounds are compile-time constants
// (unbounded/variable loop bounds are a synthesis error, spec.md's
// CodeSynthUnboundedLoop) and type-checks the body once against a
// representative induction-variable Kind; rtif performs the actual
// per-iteration unrolling by re-walking this same AST with the loop
// variable substituted, so the body only needs to be checked here, not
// duplicated.
func (in *infer) inferForLoop(ex *ast.ForLoopExpr) (kind.Kind, error) {
	lo, loOk := constInt(ex.Range.Start)
	hi, hiOk := constInt(ex.Range.End)
	if !loOk || !hiOk {
		return nil, diag.New(diag.CodeSynthUnboundedLoop, ast.Span{}, "for-loop bounds must be compile-time constants")
	}
	if hi < lo {
		return nil, diag.New(diag.CodeSynthUnboundedLoop, ast.Span{}, "for-loop upper bound %d is before lower bound %d", hi, lo)
	}
	width := inductionWidth(hi - 1)
	in.pushScope()
	in.bind(ex.Var, kind.Bits(width))
	_, err := in.inferBlock(ex.Body)
	in.popScope()
	if err != nil {
		return nil, err
	}
	return in.record(ex, kind.Empty), nil
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

// constInt folds the small constant-expression subset legal in a for-loop
// range bound: integer and bit literals, and negation thereof.
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

// inferMethodCall handles the fixed intrinsic method surface SPEC_FULL
// §4.M names: .bits() / .signed() (AsBits/AsSigned reinterpretation),
// .resize(n) (zero/sign-extend or truncate), and .xadd()/.xsub()/.xmul()
// (widening arithmetic, result width = operand width + 1 for xadd/xsub
// and twice the operand width for xmul — spec.md's extended add/sub/mul).
// The widening ops are spelled as method calls
// rather than infix operators so their lexeme never collides with a
// plain identifier (a bare "x" is always a legal variable name).
func (in *infer) inferMethodCall(ex *ast.MethodCallExpr) (kind.Kind, error) {
	rk, err := in.inferExpr(ex.Receiver, nil)
	if err != nil {
		return nil, err
	}
	switch ex.Method {
	case "bits":
		return in.record(ex, kind.Bits(bitsWidth(rk))), nil
	case "signed":
		return in.record(ex, kind.Signed(bitsWidth(rk))), nil
	case "xadd", "xsub", "xmul":
		if len(ex.Args) != 1 {
			return nil, diag.New(diag.CodeSynthUnsupported, ast.Span{}, ".%s takes exactly one operand", ex.Method)
		}
		if _, err := in.inferExpr(ex.Args[0], rk); err != nil {
			return nil, err
		}
		// bits.XAdd/XSub/XMul always return a signed result (scenario 3:
		// XSub(Bits<8>(0), Bits<8>(255)) = SignedBits<9>(-255), signed even
		// though both operands were unsigned), so the widened Kind is
		// always Signed regardless of the receiver's own signedness.
		width := bitsWidth(rk) + 1
		if ex.Method == "xmul" {
			width = bitsWidth(rk) + bitsWidth(rk)
		}
		return in.record(ex, kind.Signed(width)), nil
	case "resize":
		if len(ex.Args) != 1 {
			return nil, diag.New(diag.CodeSynthUnsupported, ast.Span{}, ".resize takes exactly one width argument")
		}
		n, ok := constInt(ex.Args[0])
		if !ok {
			return nil, diag.New(diag.CodeSynthUnsupported, ast.Span{}, ".resize argument must be a compile-time constant")
		}
		if isSigned(rk) {
			return in.record(ex, kind.Signed(int(n))), nil
		}
		return in.record(ex, kind.Bits(int(n))), nil
	default:
		return nil, diag.New(diag.CodeTypeUnknownMethod, ast.Span{}, "unknown method %q", ex.Method)
	}
}
