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
package opt

import (
	"testing"

	"hwkit/ast"
	"hwkit/mir"
	"hwkit/rtif"
)

func buildFunc(t *testing.T, src, name string) *rtif.Func {
	t.Helper()
	root, _, err := ast.ParseKernelSource("test.hwk", src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	reg := mir.NewRegistry()
	for _, d := range root.Decls {
		if k, ok := d.(*ast.KernelFn); ok {
			if err := reg.DeclareKernelSig(k); err != nil {
				t.Fatalf("DeclareKernelSig: %v", err)
			}
		}
	}
	var kern *ast.KernelFn
	for _, d := range root.Decls {
		if k, ok := d.(*ast.KernelFn); ok && k.Name == name {
			kern = k
		}
	}
	tk, err := mir.Infer(kern, reg)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	f, err := rtif.Build(tk)
	if err != nil {
		t.Fatalf("rtif.Build: %v", err)
	}
	return f
}

func TestPipelineFoldsConstantExpression(t *testing.T) {
	f := buildFunc(t, `
kernel fn foldme() -> b8 {
    8'd2 + 8'd3
}
`, "foldme")
	f, err := Pipeline(f)
	if err != nil {
		t.Fatalf("Pipeline: %v", err)
	}
	v, ok := f.Symbols.Literal(f.Result)
	if !ok {
		t.Fatalf("result slot %v did not fold to a literal", f.Result)
	}
	if v.Uint64() != 5 {
		t.Fatalf("folded result = %d, want 5", v.Uint64())
	}
}

func TestCSEMergesDuplicateAdds(t *testing.T) {
	f := buildFunc(t, `
kernel fn dup(a: b8, b: b8) -> b8 {
    let x = a + b;
    let y = a + b;
    x + y
}
`, "dup")
	before := len(f.Ops)
	changed := CSE(f)
	if !changed {
		t.Fatalf("CSE reported no change on a function with a duplicate add")
	}
	// CSE never removes ops (that's DCE's job), it only rewrites the
	// duplicate into an Assign, so the op count is unchanged.
	if len(f.Ops) != before {
		t.Fatalf("CSE changed op count from %d to %d", before, len(f.Ops))
	}
}

func TestPipelineLeavesFuncFlowClean(t *testing.T) {
	f := buildFunc(t, `
kernel fn simple(a: b8, b: b8) -> b8 {
    a + b
}
`, "simple")
	f, err := Pipeline(f)
	if err != nil {
		t.Fatalf("Pipeline: %v", err)
	}
	if err := rtif.FlowCheck(f); err != nil {
		t.Fatalf("FlowCheck after Pipeline: %v", err)
	}
}
