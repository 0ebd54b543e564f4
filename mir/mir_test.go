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
	"testing"

	"hwkit/ast"
	"hwkit/kind"
)

// buildRegistry parses src and declares every struct/enum it contains
// (in source order, so later declarations may reference earlier ones),
// returning the registry plus the parsed root for kernel lookup.
func buildRegistry(t *testing.T, src string) (*Registry, *ast.RootDecl) {
	t.Helper()
	root, _, err := ast.ParseKernelSource("test.hwk", src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	reg := NewRegistry()
	for _, d := range root.Decls {
		switch decl := d.(type) {
		case *ast.StructDecl:
			if err := reg.DeclareStruct(decl); err != nil {
				t.Fatalf("DeclareStruct: %v", err)
			}
		case *ast.EnumDecl:
			if err := reg.DeclareEnum(decl); err != nil {
				t.Fatalf("DeclareEnum: %v", err)
			}
		}
	}
	for _, d := range root.Decls {
		if k, ok := d.(*ast.KernelFn); ok {
			if err := reg.DeclareKernelSig(k); err != nil {
				t.Fatalf("DeclareKernelSig: %v", err)
			}
		}
	}
	return reg, root
}

func findKernel(t *testing.T, root *ast.RootDecl, name string) *ast.KernelFn {
	t.Helper()
	for _, d := range root.Decls {
		if k, ok := d.(*ast.KernelFn); ok && k.Name == name {
			return k
		}
	}
	t.Fatalf("kernel %q not found", name)
	return nil
}

func TestInferAdderKernelResolvesParamAndLiteralWidths(t *testing.T) {
	src := `
kernel fn add8(a: b8, b: b8) -> b8 {
    a + b
}
`
	reg, root := buildRegistry(t, src)
	k := findKernel(t, root, "add8")
	tk, err := Infer(k, reg)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if tk.RetKind.String() != "b8" {
		t.Fatalf("RetKind = %s, want b8", tk.RetKind)
	}
	if len(tk.ParamKinds) != 2 || tk.ParamKinds[0].String() != "b8" {
		t.Fatalf("ParamKinds = %v", tk.ParamKinds)
	}
}

func TestInferWidthPolymorphicLiteralUnifiesFromContext(t *testing.T) {
	src := `
kernel fn addOne(a: b8) -> b8 {
    a + 1
}
`
	reg, root := buildRegistry(t, src)
	k := findKernel(t, root, "addOne")
	tk, err := Infer(k, reg)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	body := k.Body.Tail.(*ast.BinaryExpr)
	litKind := tk.TypeOf(body.Right)
	if litKind == nil || litKind.String() != "b8" {
		t.Fatalf("bare literal resolved to %v, want b8", litKind)
	}
}

func TestInferExtendedAddWidensResultByOne(t *testing.T) {
	src := `
kernel fn xadd8(a: b8, b: b8) -> s9 {
    a.xadd(b)
}
`
	reg, root := buildRegistry(t, src)
	k := findKernel(t, root, "xadd8")
	tk, err := Infer(k, reg)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if tk.RetKind.String() != "s9" {
		t.Fatalf("RetKind = %s, want s9", tk.RetKind)
	}
}

func TestInferEnumDiscriminantWidthMatchesWorkedExample(t *testing.T) {
	src := `
enum Mode {
    A = -2,
    B = -1,
    C = 0,
    D = 2,
}
kernel fn passthrough(m: Mode) -> Mode {
    m
}
`
	reg, root := buildRegistry(t, src)
	k := findKernel(t, root, "passthrough")
	tk, err := Infer(k, reg)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	ek, ok := tk.RetKind.(kind.EnumKind)
	if !ok {
		t.Fatalf("RetKind = %T, want kind.EnumKind", tk.RetKind)
	}
	if len(ek.Variants) != 4 {
		t.Fatalf("got %d variants, want 4", len(ek.Variants))
	}
	if ek.Layout.Width != 3 || !ek.Layout.Signed {
		t.Fatalf("discriminant layout = %+v, want signed width 3", ek.Layout)
	}
}

func TestInferStructFieldAccessResolvesFieldKind(t *testing.T) {
	src := `
struct Pair {
    lo: b8,
    hi: b8,
}
kernel fn getLo(p: Pair) -> b8 {
    p.lo
}
`
	reg, root := buildRegistry(t, src)
	k := findKernel(t, root, "getLo")
	tk, err := Infer(k, reg)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if tk.RetKind.String() != "b8" {
		t.Fatalf("RetKind = %s, want b8", tk.RetKind)
	}
}

func TestInferForLoopRejectsVariableBound(t *testing.T) {
	src := `
kernel fn badLoop(n: b8) -> b8 {
    let mut acc = 8'd0;
    for i in 0..n {
        acc = acc + 8'd1;
    }
    acc
}
`
	reg, root := buildRegistry(t, src)
	k := findKernel(t, root, "badLoop")
	if _, err := Infer(k, reg); err == nil {
		t.Fatalf("expected unbounded-loop error, got nil")
	}
}

func TestInferForLoopWithConstantBoundsSucceeds(t *testing.T) {
	src := `
kernel fn sum4(xs: [b8; 4]) -> b8 {
    let mut acc = 8'd0;
    for i in 0..4 {
        acc = acc + xs[i];
    }
    acc
}
`
	reg, root := buildRegistry(t, src)
	k := findKernel(t, root, "sum4")
	if _, err := Infer(k, reg); err != nil {
		t.Fatalf("Infer: %v", err)
	}
}

func TestInferIfBranchMismatchIsError(t *testing.T) {
	src := `
kernel fn bad(a: b1) -> b8 {
    if a {
        8'd0
    } else {
        1'b0
    }
}
`
	reg, root := buildRegistry(t, src)
	k := findKernel(t, root, "bad")
	if _, err := Infer(k, reg); err == nil {
		t.Fatalf("expected kind-mismatch error between if/else branches, got nil")
	}
}

func TestInferCallExprChecksCalleeSignature(t *testing.T) {
	src := `
kernel fn inc8(a: b8) -> b8 {
    a + 1
}
kernel fn incTwice(a: b8) -> b8 {
    inc8(inc8(a))
}
`
	reg, root := buildRegistry(t, src)
	k := findKernel(t, root, "incTwice")
	tk, err := Infer(k, reg)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if tk.RetKind.String() != "b8" {
		t.Fatalf("RetKind = %s, want b8", tk.RetKind)
	}
}

func TestInferCallExprArgCountMismatchIsError(t *testing.T) {
	src := `
kernel fn inc8(a: b8) -> b8 {
    a + 1
}
kernel fn bad(a: b8) -> b8 {
    inc8(a, a)
}
`
	reg, root := buildRegistry(t, src)
	k := findKernel(t, root, "bad")
	if _, err := Infer(k, reg); err == nil {
		t.Fatalf("expected argument-count mismatch error, got nil")
	}
}

func TestInferMatchOnEnumBindsPayload(t *testing.T) {
	src := `
enum Mode {
    Idle,
    Run(b4),
    Error = 7,
}
kernel fn step(m: Mode) -> b4 {
    match m {
        Mode::Idle => 4'd0,
        Mode::Run(n) => n,
        Mode::Error => 4'd0,
    }
}
`
	reg, root := buildRegistry(t, src)
	k := findKernel(t, root, "step")
	tk, err := Infer(k, reg)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if tk.RetKind.String() != "b4" {
		t.Fatalf("RetKind = %s, want b4", tk.RetKind)
	}
}
