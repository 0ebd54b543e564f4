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
package ast

// Visitor traverses the AST with default recursion; implementers embed
// BaseVisitor and override only the node kinds they care about. This
// generalizes the teacher's three-closure AstWalker into one method per
// node kind, which hwkit needs because a pass over kernel source has many
// more distinct node shapes (patterns, type expressions, kernels) than the
// teacher's small expression/statement grammar.
//
// A Visit method returns an error to short-circuit traversal; the first
// enclosing node it crosses wraps it with that node (unless it is already
// wrapped) before propagating it upward,
// matching spec §4.A ("errors short-circuit traversal with the current
// node's span attached").
type Visitor interface {
	VisitBinaryExpr(*BinaryExpr) error
	VisitUnaryExpr(*UnaryExpr) error
	VisitBitsLitExpr(*BitsLitExpr) error
	VisitLitExpr(*LitExpr) error
	VisitPathExpr(*PathExpr) error
	VisitIndexExpr(*IndexExpr) error
	VisitFieldExpr(*FieldExpr) error
	VisitParenExpr(*ParenExpr) error
	VisitTupleExpr(*TupleExpr) error
	VisitArrayExpr(*ArrayExpr) error
	VisitRepeatExpr(*RepeatExpr) error
	VisitRangeExpr(*RangeExpr) error
	VisitStructExpr(*StructExpr) error
	VisitCallExpr(*CallExpr) error
	VisitMethodCallExpr(*MethodCallExpr) error
	VisitAssignExpr(*AssignExpr) error
	VisitIfExpr(*IfExpr) error
	VisitMatchExpr(*MatchExpr) error
	VisitReturnExpr(*ReturnExpr) error
	VisitForLoopExpr(*ForLoopExpr) error
	VisitGroupExpr(*GroupExpr) error
	VisitLetExpr(*LetExpr) error
	VisitBlockExpr(*BlockExpr) error
	VisitLocalStmt(*LocalStmt) error
	VisitExprStmt(*ExprStmt) error
	VisitKernelFn(*KernelFn) error
	VisitStructDecl(*StructDecl) error
	VisitEnumDecl(*EnumDecl) error
	VisitRootDecl(*RootDecl) error
}

// BaseVisitor implements every Visitor method as "recurse into children,
// stop at the first error". Embed it and override specific methods.
type BaseVisitor struct {
	Self Visitor // set to the outer value so overridden methods are reached during recursion
}

func (v *BaseVisitor) self() Visitor {
	if v.Self != nil {
		return v.Self
	}
	return v
}

func visitExpr(v Visitor, e Expr) error {
	if e == nil {
		return nil
	}
	switch e := e.(type) {
	case *BinaryExpr:
		return v.VisitBinaryExpr(e)
	case *UnaryExpr:
		return v.VisitUnaryExpr(e)
	case *BitsLitExpr:
		return v.VisitBitsLitExpr(e)
	case *LitExpr:
		return v.VisitLitExpr(e)
	case *PathExpr:
		return v.VisitPathExpr(e)
	case *IndexExpr:
		return v.VisitIndexExpr(e)
	case *FieldExpr:
		return v.VisitFieldExpr(e)
	case *ParenExpr:
		return v.VisitParenExpr(e)
	case *TupleExpr:
		return v.VisitTupleExpr(e)
	case *ArrayExpr:
		return v.VisitArrayExpr(e)
	case *RepeatExpr:
		return v.VisitRepeatExpr(e)
	case *RangeExpr:
		return v.VisitRangeExpr(e)
	case *StructExpr:
		return v.VisitStructExpr(e)
	case *CallExpr:
		return v.VisitCallExpr(e)
	case *MethodCallExpr:
		return v.VisitMethodCallExpr(e)
	case *AssignExpr:
		return v.VisitAssignExpr(e)
	case *IfExpr:
		return v.VisitIfExpr(e)
	case *MatchExpr:
		return v.VisitMatchExpr(e)
	case *ReturnExpr:
		return v.VisitReturnExpr(e)
	case *ForLoopExpr:
		return v.VisitForLoopExpr(e)
	case *GroupExpr:
		return v.VisitGroupExpr(e)
	case *LetExpr:
		return v.VisitLetExpr(e)
	case *BlockExpr:
		return v.VisitBlockExpr(e)
	default:
		panic("ast: unhandled expr kind in visitExpr")
	}
}

func (v *BaseVisitor) VisitBinaryExpr(e *BinaryExpr) error {
	if err := visitExpr(v.self(), e.Left); err != nil {
		return attach(err, e)
	}
	if err := visitExpr(v.self(), e.Right); err != nil {
		return attach(err, e)
	}
	return nil
}

func (v *BaseVisitor) VisitUnaryExpr(e *UnaryExpr) error {
	return attach(visitExpr(v.self(), e.Expr), e)
}

func (v *BaseVisitor) VisitBitsLitExpr(e *BitsLitExpr) error { return nil }
func (v *BaseVisitor) VisitLitExpr(e *LitExpr) error         { return nil }
func (v *BaseVisitor) VisitPathExpr(e *PathExpr) error       { return nil }

func (v *BaseVisitor) VisitIndexExpr(e *IndexExpr) error {
	if err := visitExpr(v.self(), e.Target); err != nil {
		return attach(err, e)
	}
	return attach(visitExpr(v.self(), e.Index), e)
}

func (v *BaseVisitor) VisitFieldExpr(e *FieldExpr) error {
	return attach(visitExpr(v.self(), e.Target), e)
}

func (v *BaseVisitor) VisitParenExpr(e *ParenExpr) error {
	return attach(visitExpr(v.self(), e.Inner), e)
}

func (v *BaseVisitor) VisitTupleExpr(e *TupleExpr) error {
	for _, el := range e.Elements {
		if err := visitExpr(v.self(), el); err != nil {
			return attach(err, e)
		}
	}
	return nil
}

func (v *BaseVisitor) VisitArrayExpr(e *ArrayExpr) error {
	for _, el := range e.Elements {
		if err := visitExpr(v.self(), el); err != nil {
			return attach(err, e)
		}
	}
	return nil
}

func (v *BaseVisitor) VisitRepeatExpr(e *RepeatExpr) error {
	return attach(visitExpr(v.self(), e.Value), e)
}

func (v *BaseVisitor) VisitRangeExpr(e *RangeExpr) error {
	if err := visitExpr(v.self(), e.Start); err != nil {
		return attach(err, e)
	}
	return attach(visitExpr(v.self(), e.End), e)
}

func (v *BaseVisitor) VisitStructExpr(e *StructExpr) error {
	for _, f := range e.Fields {
		if err := visitExpr(v.self(), f.Value); err != nil {
			return attach(err, e)
		}
	}
	return nil
}

func (v *BaseVisitor) VisitCallExpr(e *CallExpr) error {
	for _, a := range e.Args {
		if err := visitExpr(v.self(), a); err != nil {
			return attach(err, e)
		}
	}
	return nil
}

func (v *BaseVisitor) VisitMethodCallExpr(e *MethodCallExpr) error {
	if err := visitExpr(v.self(), e.Receiver); err != nil {
		return attach(err, e)
	}
	for _, a := range e.Args {
		if err := visitExpr(v.self(), a); err != nil {
			return attach(err, e)
		}
	}
	return nil
}

func (v *BaseVisitor) VisitAssignExpr(e *AssignExpr) error {
	if err := visitExpr(v.self(), e.Left); err != nil {
		return attach(err, e)
	}
	return attach(visitExpr(v.self(), e.Right), e)
}

func (v *BaseVisitor) VisitIfExpr(e *IfExpr) error {
	if err := visitExpr(v.self(), e.Cond); err != nil {
		return attach(err, e)
	}
	if err := v.self().VisitBlockExpr(e.Then); err != nil {
		return attach(err, e)
	}
	return attach(visitExpr(v.self(), e.Else), e)
}

func (v *BaseVisitor) VisitMatchExpr(e *MatchExpr) error {
	if err := visitExpr(v.self(), e.Scrutinee); err != nil {
		return attach(err, e)
	}
	for _, arm := range e.Arms {
		if err := visitExpr(v.self(), arm.Guard); err != nil {
			return attach(err, e)
		}
		if err := visitExpr(v.self(), arm.Body); err != nil {
			return attach(err, e)
		}
	}
	return nil
}

func (v *BaseVisitor) VisitReturnExpr(e *ReturnExpr) error {
	return attach(visitExpr(v.self(), e.Value), e)
}

func (v *BaseVisitor) VisitForLoopExpr(e *ForLoopExpr) error {
	if err := v.self().VisitRangeExpr(&e.Range); err != nil {
		return attach(err, e)
	}
	return attach(v.self().VisitBlockExpr(e.Body), e)
}

func (v *BaseVisitor) VisitGroupExpr(e *GroupExpr) error {
	return attach(visitExpr(v.self(), e.Inner), e)
}

func (v *BaseVisitor) VisitLetExpr(e *LetExpr) error {
	return attach(visitExpr(v.self(), e.Init), e)
}

func (v *BaseVisitor) VisitBlockExpr(e *BlockExpr) error {
	for _, s := range e.Stmts {
		if err := visitStmt(v.self(), s); err != nil {
			return attach(err, e)
		}
	}
	return attach(visitExpr(v.self(), e.Tail), e)
}

func visitStmt(v Visitor, s Stmt) error {
	if s == nil {
		return nil
	}
	switch s := s.(type) {
	case *LocalStmt:
		return v.VisitLocalStmt(s)
	case *ExprStmt:
		return v.VisitExprStmt(s)
	case *KernelFn:
		return v.VisitKernelFn(s)
	case *StructDecl:
		return v.VisitStructDecl(s)
	case *EnumDecl:
		return v.VisitEnumDecl(s)
	default:
		panic("ast: unhandled stmt kind in visitStmt")
	}
}

func (v *BaseVisitor) VisitLocalStmt(s *LocalStmt) error {
	return attach(visitExpr(v.self(), s.Init), s)
}

func (v *BaseVisitor) VisitExprStmt(s *ExprStmt) error {
	return attach(visitExpr(v.self(), s.Expr), s)
}

func (v *BaseVisitor) VisitKernelFn(k *KernelFn) error {
	return attach(v.self().VisitBlockExpr(k.Body), k)
}

func (v *BaseVisitor) VisitStructDecl(d *StructDecl) error { return nil }
func (v *BaseVisitor) VisitEnumDecl(d *EnumDecl) error     { return nil }

func (v *BaseVisitor) VisitRootDecl(r *RootDecl) error {
	for _, d := range r.Decls {
		var err error
		switch d := d.(type) {
		case *KernelFn:
			err = v.self().VisitKernelFn(d)
		case *StructDecl:
			err = v.self().VisitStructDecl(d)
		case *EnumDecl:
			err = v.self().VisitEnumDecl(d)
		}
		if err != nil {
			return attach(err, r)
		}
	}
	return nil
}

// spanError is attached to a plain error the first time it crosses a node
// boundary during a Walk, recording the innermost node whose traversal
// produced it.
type spanError struct {
	Node Node
	err  error
}

func (e *spanError) Error() string { return e.err.Error() }
func (e *spanError) Unwrap() error { return e.err }

// attach wraps err (if non-nil and not already a spanError) with the
// current node, implementing "errors short-circuit traversal with the
// current node's span attached" without requiring every Visit method to
// remember to do it.
func attach(err error, node Node) error {
	if err == nil {
		return nil
	}
	if _, already := err.(*spanError); already {
		return err
	}
	return &spanError{Node: node, err: err}
}

// Walk runs visitor over root, starting from the outermost dispatch point.
// Callers set visitor's embedded BaseVisitor.Self to visitor itself so
// recursive calls reach overridden methods (Go has no virtual dispatch
// through an embedded struct).
func Walk(visitor Visitor, root *RootDecl) error {
	return visitor.VisitRootDecl(root)
}

// ErrorNode returns the node a Walk error short-circuited at, if any.
func ErrorNode(err error) (Node, bool) {
	se, ok := err.(*spanError)
	if !ok {
		return nil, false
	}
	return se.Node, true
}
