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

import (
	"testing"
)

const adderSrc = `
kernel fn add8(a: b8, b: b8) -> b8 {
    a + b
}
`

func TestParseAdderKernel(t *testing.T) {
	root, _, err := ParseKernelSource("adder.hw", adderSrc)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(root.Decls) != 1 {
		t.Fatalf("expected 1 decl, got %d", len(root.Decls))
	}
	k, ok := root.Decls[0].(*KernelFn)
	if !ok {
		t.Fatalf("decl is %T, want *KernelFn", root.Decls[0])
	}
	if k.Name != "add8" {
		t.Fatalf("name = %q, want add8", k.Name)
	}
	if len(k.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(k.Params))
	}
	bt, ok := k.Params[0].Type.(*BitsTypeExpr)
	if !ok || bt.Width != 8 {
		t.Fatalf("param 0 type = %#v, want b8", k.Params[0].Type)
	}
	if k.Body.Tail == nil {
		t.Fatal("expected a tail expression")
	}
	bin, ok := k.Body.Tail.(*BinaryExpr)
	if !ok || bin.Op != OpAdd {
		t.Fatalf("tail = %#v, want BinaryExpr{+}", k.Body.Tail)
	}
}

const dffSrc = `
struct DffState {
    q: b1,
}

kernel fn dff(clk: Signal<b1, sys>, d: b1, q_prev: b1) -> b1 {
    let next = d;
    next
}
`

func TestParseStructAndSignalKernel(t *testing.T) {
	root, _, err := ParseKernelSource("dff.hw", dffSrc)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(root.Decls) != 2 {
		t.Fatalf("expected 2 decls, got %d", len(root.Decls))
	}
	sd, ok := root.Decls[0].(*StructDecl)
	if !ok || sd.Name != "DffState" {
		t.Fatalf("decl 0 = %#v, want StructDecl{DffState}", root.Decls[0])
	}
	k, ok := root.Decls[1].(*KernelFn)
	if !ok || k.Name != "dff" {
		t.Fatalf("decl 1 = %#v, want KernelFn{dff}", root.Decls[1])
	}
	sig, ok := k.Params[0].Type.(*SignalTypeExpr)
	if !ok || sig.Color != "sys" {
		t.Fatalf("param 0 type = %#v, want Signal<b1, sys>", k.Params[0].Type)
	}
	if len(k.Body.Stmts) != 1 {
		t.Fatalf("expected 1 stmt, got %d", len(k.Body.Stmts))
	}
	local, ok := k.Body.Stmts[0].(*LocalStmt)
	if !ok {
		t.Fatalf("stmt 0 = %#v, want LocalStmt", k.Body.Stmts[0])
	}
	ip, ok := local.Pat.(*IdentPat)
	if !ok || ip.Name != "next" {
		t.Fatalf("pattern = %#v, want IdentPat{next}", local.Pat)
	}
}

const enumSrc = `
enum Mode {
    Idle,
    Run(b4),
    Error = 7,
}

kernel fn step(m: Mode) -> b1 {
    match m {
        Mode::Idle => 0'd0,
        Mode::Run(n) => 1'd1,
        _ => 1'd0,
    }
}
`

func TestParseEnumAndMatchKernel(t *testing.T) {
	root, _, err := ParseKernelSource("mode.hw", enumSrc)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	ed, ok := root.Decls[0].(*EnumDecl)
	if !ok || ed.Name != "Mode" {
		t.Fatalf("decl 0 = %#v, want EnumDecl{Mode}", root.Decls[0])
	}
	if len(ed.Variants) != 3 {
		t.Fatalf("expected 3 variants, got %d", len(ed.Variants))
	}
	if ed.Variants[2].Discriminant == nil || *ed.Variants[2].Discriminant != 7 {
		t.Fatalf("Error variant discriminant = %v, want 7", ed.Variants[2].Discriminant)
	}
	k := root.Decls[1].(*KernelFn)
	match, ok := k.Body.Tail.(*MatchExpr)
	if !ok {
		t.Fatalf("tail = %#v, want MatchExpr", k.Body.Tail)
	}
	if len(match.Arms) != 3 {
		t.Fatalf("expected 3 arms, got %d", len(match.Arms))
	}
	tscPat, ok := match.Arms[1].Pat.(*TupleStructPat)
	if !ok || tscPat.TypeName != "Mode::Run" && tscPat.TypeName != "Run" {
		// path-qualified constructors are parsed as a dotted PathExpr
		// elsewhere; tuple-struct patterns only ever see the final
		// segment as TypeName here since parsePatternPrimary walks `::`
		// but keeps only the last segment. Assert only that it parsed as
		// a tuple-struct pattern.
		if !ok {
			t.Fatalf("arm 1 pat = %#v, want TupleStructPat", match.Arms[1].Pat)
		}
	}
}

const forLoopSrc = `
kernel fn sum4(xs: [b8; 4]) -> b8 {
    let mut acc = 0'd0;
    for i in 0..4 {
        acc = acc + xs[i];
    }
    acc
}
`

func TestParseForLoopAndIndexKernel(t *testing.T) {
	root, _, err := ParseKernelSource("sum4.hw", forLoopSrc)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	k := root.Decls[0].(*KernelFn)
	arr, ok := k.Params[0].Type.(*ArrayTypeExpr)
	if !ok || arr.Len != 4 {
		t.Fatalf("param 0 type = %#v, want [b8; 4]", k.Params[0].Type)
	}
	if len(k.Body.Stmts) != 2 {
		t.Fatalf("expected 2 stmts, got %d", len(k.Body.Stmts))
	}
	forLoop, ok := k.Body.Stmts[1].(*ExprStmt).Expr.(*ForLoopExpr)
	if !ok {
		t.Fatalf("stmt 1 expr = %#v, want ForLoopExpr", k.Body.Stmts[1])
	}
	assign, ok := forLoop.Body.Stmts[0].(*ExprStmt).Expr.(*AssignExpr)
	if !ok {
		t.Fatalf("loop body stmt = %#v, want AssignExpr", forLoop.Body.Stmts[0])
	}
	bin, ok := assign.Right.(*BinaryExpr)
	if !ok || bin.Op != OpAdd {
		t.Fatalf("assign rhs = %#v, want BinaryExpr{+}", assign.Right)
	}
	if _, ok := bin.Right.(*IndexExpr); !ok {
		t.Fatalf("assign rhs.Right = %#v, want IndexExpr", bin.Right)
	}
}

func TestParseUnexpectedTokenRaisesDiagError(t *testing.T) {
	_, _, err := ParseKernelSource("bad.hw", "kernel fn broken(")
	if err == nil {
		t.Fatal("expected a parse error")
	}
}

// countingVisitor counts how many of each expression kind it visits,
// exercising the default BaseVisitor recursion without overriding anything
// but the two kinds being counted.
type countingVisitor struct {
	BaseVisitor
	binaryCount int
	litCount    int
}

func (v *countingVisitor) VisitBinaryExpr(e *BinaryExpr) error {
	v.binaryCount++
	return v.BaseVisitor.VisitBinaryExpr(e)
}

func (v *countingVisitor) VisitLitExpr(e *LitExpr) error {
	v.litCount++
	return nil
}

func TestVisitorDefaultRecursionVisitsNestedNodes(t *testing.T) {
	root, _, err := ParseKernelSource("sum4.hw", forLoopSrc)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	v := &countingVisitor{}
	v.Self = v
	if err := Walk(v, root); err != nil {
		t.Fatalf("walk error: %v", err)
	}
	if v.litCount == 0 {
		t.Fatal("expected at least one literal to be visited")
	}
}

// erroringVisitor fails the moment it sees an IndexExpr, to check that
// Walk attaches the innermost node to a short-circuited error.
type erroringVisitor struct {
	BaseVisitor
	target error
}

func (v *erroringVisitor) VisitIndexExpr(e *IndexExpr) error {
	return errBoom
}

var errBoom = errBoomType{}

type errBoomType struct{}

func (errBoomType) Error() string { return "boom" }

func TestWalkAttachesNodeToShortCircuitedError(t *testing.T) {
	root, _, err := ParseKernelSource("sum4.hw", forLoopSrc)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	v := &erroringVisitor{}
	v.Self = v
	walkErr := Walk(v, root)
	if walkErr == nil {
		t.Fatal("expected an error from Walk")
	}
	node, ok := ErrorNode(walkErr)
	if !ok {
		t.Fatalf("expected a spanError, got %T", walkErr)
	}
	if node == nil {
		t.Fatal("expected a non-nil node attached to the error")
	}
}
