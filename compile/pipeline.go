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

// Package compile orchestrates the whole pipeline, source text to
// simulatable/synthesizable Circuit, the way falcon's own compile package
// orchestrated source text to x86 object code: a parse stage, a
// per-declaration lowering stage, and debug dump switches a caller flips
// on for one kernel at a time rather than a generic verbosity level.
package compile

import (
	"fmt"

	"hwkit/ast"
	"hwkit/circuit"
	"hwkit/diag"
	"hwkit/kind"
	"hwkit/mir"
	"hwkit/ntl"
	"hwkit/rtif"
	"hwkit/rtl"
)

// Debug print switches, flipped per call site rather than threaded as a
// generic verbosity level — the same shape as falcon's
// DebugPrintTypedAst/DebugDumpAst/DebugDumpSSA consts.
const DebugPrintTypedKind = false
const DebugDumpRTL = false
const DebugDumpNTL = false

// Kernel is one compiled top-level kernel: every IR stage survives past
// Build so a caller (cmd/hwkitc) can choose to emit HDL, simulate, or
// dump any intermediate form without recompiling.
type Kernel struct {
	Name string
	Sig  mir.KernelSig
	RTIF *rtif.Func
	RTL  *rtl.Module
	NTL  *ntl.Netlist
	Leaf *circuit.Leaf
}

// CompileSource parses src under fileName and lowers every kernel it
// declares through mir -> rtif -> rtl -> ntl, returning one Kernel per
// declared kernel function in source order. Struct/enum declarations are
// registered but produce no Kernel of their own.
func CompileSource(fileName, src string) ([]*Kernel, error) {
	root, spans, err := ast.ParseKernelSource(fileName, src)
	if err != nil {
		return nil, err
	}
	_ = spans // not returned: errors below reach the caller unrendered

	reg := mir.NewRegistry()
	var kernelDecls []*ast.KernelFn
	for _, d := range root.Decls {
		switch decl := d.(type) {
		case *ast.StructDecl:
			if err := reg.DeclareStruct(decl); err != nil {
				return nil, err
			}
		case *ast.EnumDecl:
			if err := reg.DeclareEnum(decl); err != nil {
				return nil, err
			}
		case *ast.KernelFn:
			kernelDecls = append(kernelDecls, decl)
		}
	}
	for _, k := range kernelDecls {
		if err := reg.DeclareKernelSig(k); err != nil {
			return nil, err
		}
	}

	lib := make(rtl.Library, len(kernelDecls))
	nlib := make(map[string]*ntl.Netlist, len(kernelDecls))
	var out []*Kernel
	for _, k := range kernelDecls {
		kr, err := compileKernel(k, reg, lib, nlib)
		if err != nil {
			return nil, fmt.Errorf("compile: kernel %s: %w", k.Name, err)
		}
		lib[k.Name] = kr.RTL
		nlib[k.Name] = kr.NTL
		out = append(out, kr)
	}
	return out, nil
}

func compileKernel(k *ast.KernelFn, reg *mir.Registry, lib rtl.Library, nlib map[string]*ntl.Netlist) (*Kernel, error) {
	tk, err := mir.Infer(k, reg)
	if err != nil {
		return nil, err
	}
	if DebugPrintTypedKind {
		fmt.Printf("== Typed(%s) ==\n", k.Name)
	}

	f, err := rtif.Build(tk)
	if err != nil {
		return nil, err
	}

	m, err := rtl.Build(f, lib)
	if err != nil {
		return nil, err
	}
	if DebugDumpRTL {
		fmt.Printf("== RTL(%s) ==\n", k.Name)
	}

	n, err := rtl.LowerToNTL(m, nlib)
	if err != nil {
		return nil, err
	}
	if DebugDumpNTL {
		fmt.Printf("== NTL(%s) ==\n", k.Name)
	}

	sig := reg.Kernels[k.Name]
	iKind := kind.Tuple(sig.Params...)
	leaf := circuit.NewLeaf(k.Name, m, n, iKind, sig.Ret, nil, nil)

	return &Kernel{Name: k.Name, Sig: sig, RTIF: f, RTL: m, NTL: n, Leaf: leaf}, nil
}

// Find looks a compiled Kernel up by name, the shape diag.Error reporting
// wants when a CLI flag names a kernel that doesn't exist.
func Find(kernels []*Kernel, name string) (*Kernel, error) {
	for _, k := range kernels {
		if k.Name == name {
			return k, nil
		}
	}
	return nil, diag.New(diag.CodeSynthMissingKernel, diag.Span{}, "no kernel named %q in this source", name)
}
