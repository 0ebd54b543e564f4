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
	"testing"

	"hwkit/ast"
	"hwkit/bits"
	"hwkit/kind"
	"hwkit/mir"
)

func buildTypedKernel(t *testing.T, src, name string) *mir.TypedKernel {
	t.Helper()
	root, _, err := ast.ParseKernelSource("test.hwk", src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	reg := mir.NewRegistry()
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
	var kernel *ast.KernelFn
	for _, d := range root.Decls {
		if k, ok := d.(*ast.KernelFn); ok && k.Name == name {
			kernel = k
		}
	}
	if kernel == nil {
		t.Fatalf("kernel %q not found", name)
	}
	tk, err := mir.Infer(kernel, reg)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	return tk
}

// TestBuildAdderFoldsToWrappedSum exercises the worked 8-bit-adder
// scenario: 250 + 10 wraps to 4 in an 8-bit field.
func TestBuildAdderFoldsToWrappedSum(t *testing.T) {
	tk := buildTypedKernel(t, `
kernel fn add8(a: b8, b: b8) -> b8 {
    a + b
}
`, "add8")
	f, err := Build(tk)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := FlowCheck(f); err != nil {
		t.Fatalf("FlowCheck: %v", err)
	}

	paramA, paramB := f.Params[0], f.Params[1]
	f.Symbols.slots[paramA] = slotInfo{kind: f.Symbols.Kind(paramA), literal: true, value: bits.New(8, 250)}
	f.Symbols.slots[paramB] = slotInfo{kind: f.Symbols.Kind(paramB), literal: true, value: bits.New(8, 10)}

	for ConstProp(f) {
	}
	result, ok := f.Symbols.Literal(f.Result)
	if !ok {
		t.Fatalf("result slot %s did not fold to a literal", f.Result)
	}
	if result.Uint64() != 4 {
		t.Fatalf("250+10 in b8 = %d, want 4 (wraps at 8 bits)", result.Uint64())
	}
}

// TestBuildExtendedSubtractWidensAndSignsResult exercises scenario 3:
// XSub(Bits<8>(0), Bits<8>(255)) = SignedBits<9>(-255).
func TestBuildExtendedSubtractWidensAndSignsResult(t *testing.T) {
	tk := buildTypedKernel(t, `
kernel fn xsub8(a: b8, b: b8) -> s9 {
    a.xsub(b)
}
`, "xsub8")
	f, err := Build(tk)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	paramA, paramB := f.Params[0], f.Params[1]
	f.Symbols.slots[paramA] = slotInfo{kind: f.Symbols.Kind(paramA), literal: true, value: bits.New(8, 0)}
	f.Symbols.slots[paramB] = slotInfo{kind: f.Symbols.Kind(paramB), literal: true, value: bits.New(8, 255)}

	for ConstProp(f) {
	}
	result, ok := f.Symbols.Literal(f.Result)
	if !ok {
		t.Fatalf("result slot did not fold to a literal")
	}
	if result.Width() != 9 || result.Int64() != -255 {
		t.Fatalf("xsub(0,255) = s%d'%d, want s9'-255", result.Width(), result.Int64())
	}
}

func TestFlowCheckCatchesDoubleWrite(t *testing.T) {
	f := NewFunc("bad")
	r := f.Symbols.NewRegister(kind.Bits(1))
	lit := f.Symbols.InternLiteral(bits.New(1, 1))
	f.Ops = append(f.Ops,
		Op{Code: CodeAssign, LHS: r, Args: []Slot{lit}},
		Op{Code: CodeAssign, LHS: r, Args: []Slot{lit}},
	)
	f.Result = r
	if err := FlowCheck(f); err == nil {
		t.Fatalf("expected double-write to be caught")
	}
}

func TestFlowCheckCatchesReadBeforeWrite(t *testing.T) {
	f := NewFunc("bad")
	r := f.Symbols.NewRegister(kind.Bits(8))
	unwritten := f.Symbols.NewRegister(kind.Bits(8))
	f.Ops = append(f.Ops, Op{Code: CodeAssign, LHS: r, Args: []Slot{unwritten}})
	f.Result = r
	if err := FlowCheck(f); err == nil {
		t.Fatalf("expected read-before-write to be caught")
	}
}

func TestDCERemovesUnreadOp(t *testing.T) {
	f := NewFunc("k")
	live := f.Symbols.NewRegister(kind.Bits(8))
	dead := f.Symbols.NewRegister(kind.Bits(8))
	lit := f.Symbols.InternLiteral(bits.New(8, 1))
	f.Ops = append(f.Ops,
		Op{Code: CodeAssign, LHS: dead, Args: []Slot{lit}},
		Op{Code: CodeAssign, LHS: live, Args: []Slot{lit}},
	)
	f.Result = live

	before := len(f.Ops)
	removed := DCE(f)
	if removed != 1 || len(f.Ops) != before-1 {
		t.Fatalf("DCE removed %d ops, want 1", removed)
	}
	if err := FlowCheck(f); err != nil {
		t.Fatalf("FlowCheck after DCE: %v", err)
	}
}

func TestLowerCaseCollapsesLiteralDiscriminant(t *testing.T) {
	f := NewFunc("k")
	discLit := f.Symbols.InternLiteral(bits.New(2, 1))
	keyA := f.Symbols.InternLiteral(bits.New(2, 0))
	keyB := f.Symbols.InternLiteral(bits.New(2, 1))
	armA := f.Symbols.NewRegister(kind.Bits(8))
	armB := f.Symbols.NewRegister(kind.Bits(8))
	litA := f.Symbols.InternLiteral(bits.New(8, 10))
	litB := f.Symbols.InternLiteral(bits.New(8, 20))
	result := f.Symbols.NewRegister(kind.Bits(8))

	f.Ops = append(f.Ops,
		Op{Code: CodeAssign, LHS: armA, Args: []Slot{litA}},
		Op{Code: CodeAssign, LHS: armB, Args: []Slot{litB}},
		Op{Code: CodeCase, LHS: result, Args: []Slot{discLit}, Table: []CaseArm{
			{Key: keyA, Result: armA},
			{Key: keyB, Result: armB},
		}},
	)
	f.Result = result

	if !LowerCase(f) {
		t.Fatalf("expected LowerCase to collapse the literal-discriminant case")
	}
	caseOp := f.Ops[2]
	if caseOp.Code != CodeAssign || caseOp.Args[0] != armB {
		t.Fatalf("case did not collapse to the matching arm: %+v", caseOp)
	}
}
