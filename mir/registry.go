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

// KernelSig is a previously-inferred kernel's externally visible type, so
// that a CallExpr referencing another kernel can be checked without
// re-inferring its body.
type KernelSig struct {
	Params []kind.Kind
	Ret    kind.Kind
}

// Registry resolves named types (struct/enum declarations) and kernel
// call targets to Kinds during inference. It has no falcon analogue —
// falcon's toy language has no user-defined types — and is built fresh
// from one parsed source's declarations before Infer runs over its
// kernels.
type Registry struct {
	Structs map[string]kind.Kind
	Enums   map[string]kind.Kind
	Kernels map[string]KernelSig
}

func NewRegistry() *Registry {
	return &Registry{
		Structs: make(map[string]kind.Kind),
		Enums:   make(map[string]kind.Kind),
		Kernels: make(map[string]KernelSig),
	}
}

// DeclareStruct resolves a struct declaration's field types (which may
// reference previously declared structs/enums) and registers the result.
func (r *Registry) DeclareStruct(d *ast.StructDecl) error {
	fields := make([]kind.Field, 0, len(d.Fields))
	for _, f := range d.Fields {
		fk, err := r.ResolveType(f.Type)
		if err != nil {
			return err
		}
		fields = append(fields, kind.Field{Name: f.Name, Kind: fk})
	}
	r.Structs[d.Name] = kind.Struct(d.Name, fields...)
	return nil
}

// DeclareEnum resolves an enum's variant payload types and assigns
// discriminants (explicit ones as given, auto-incrementing from the
// previous variant's discriminant otherwise — zero for the first
// variant), then registers a default LSB-aligned, minimum-width
// discriminant layout that is signed exactly when some discriminant is
// negative.
func (r *Registry) DeclareEnum(d *ast.EnumDecl) error {
	variants := make([]kind.Variant, 0, len(d.Variants))
	next := int64(0)
	minDisc, maxDisc := int64(0), int64(0)
	anySigned := false
	for i, v := range d.Variants {
		disc := next
		if v.Discriminant != nil {
			disc = *v.Discriminant
		}
		if disc < 0 {
			anySigned = true
		}
		if i == 0 || disc < minDisc {
			minDisc = disc
		}
		if i == 0 || disc > maxDisc {
			maxDisc = disc
		}
		next = disc + 1
		payload := kind.Empty
		if v.Payload != nil {
			pk, err := r.ResolveType(v.Payload)
			if err != nil {
				return err
			}
			payload = pk
		}
		variants = append(variants, kind.Variant{Name: v.Name, Discriminant: disc, Payload: payload})
	}
	width := minWidthFor(minDisc, maxDisc, anySigned)
	layout := kind.DiscriminantLayout{Width: width, Signed: anySigned, Align: kind.LSB}
	r.Enums[d.Name] = kind.Enum(d.Name, layout, variants...)
	return nil
}

// minWidthFor picks the smallest width whose two's-complement (if signed)
// or unsigned range holds every discriminant in [minDisc, maxDisc],
// matching the worked example in spec scenario 5 (a 3-bit signed field
// holding -2..2: 2-bit signed only reaches -2..1, so 2 is rejected and
// width climbs to 3).
func minWidthFor(minDisc, maxDisc int64, signed bool) int {
	for w := 1; w <= 64; w++ {
		var lo, hi int64
		if signed {
			lo, hi = -(int64(1) << (w - 1)), (int64(1)<<(w-1))-1
		} else {
			lo, hi = 0, (int64(1)<<w)-1
		}
		if minDisc >= lo && maxDisc <= hi {
			return w
		}
	}
	return 64
}

// DeclareKernelSig registers a kernel's external signature (parameter and
// return Kinds) ahead of inferring any kernel body, so a CallExpr to a
// sibling kernel — declared earlier or later in the same source — can be
// checked without re-inferring the callee's body.
func (r *Registry) DeclareKernelSig(k *ast.KernelFn) error {
	params := make([]kind.Kind, 0, len(k.Params))
	for _, p := range k.Params {
		pk, err := r.ResolveType(p.Type)
		if err != nil {
			return err
		}
		params = append(params, pk)
	}
	var ret kind.Kind = kind.Empty
	if k.RetType != nil {
		rk, err := r.ResolveType(k.RetType)
		if err != nil {
			return err
		}
		ret = rk
	}
	r.Kernels[k.Name] = KernelSig{Params: params, Ret: ret}
	return nil
}

// ResolveType turns surface type syntax into a kind.Kind, looking up
// named types against previously declared structs/enums.
func (r *Registry) ResolveType(te ast.TypeExpr) (kind.Kind, error) {
	switch t := te.(type) {
	case *ast.BitsTypeExpr:
		if !kind.ValidWidth(t.Width) {
			return nil, diag.New(diag.CodeTypeWidthMismatch, ast.Span{}, "invalid bit width %d", t.Width)
		}
		return kind.Bits(t.Width), nil
	case *ast.SignedTypeExpr:
		if !kind.ValidWidth(t.Width) {
			return nil, diag.New(diag.CodeTypeWidthMismatch, ast.Span{}, "invalid bit width %d", t.Width)
		}
		return kind.Signed(t.Width), nil
	case *ast.NamedTypeExpr:
		if k, ok := r.Structs[t.Name]; ok {
			return k, nil
		}
		if k, ok := r.Enums[t.Name]; ok {
			return k, nil
		}
		return nil, diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "unknown named type %q", t.Name)
	case *ast.TupleTypeExpr:
		elems := make([]kind.Kind, 0, len(t.Elements))
		for _, e := range t.Elements {
			ek, err := r.ResolveType(e)
			if err != nil {
				return nil, err
			}
			elems = append(elems, ek)
		}
		return kind.Tuple(elems...), nil
	case *ast.ArrayTypeExpr:
		ek, err := r.ResolveType(t.Elem)
		if err != nil {
			return nil, err
		}
		return kind.Array(ek, t.Len), nil
	case *ast.SignalTypeExpr:
		ik, err := r.ResolveType(t.Inner)
		if err != nil {
			return nil, err
		}
		return kind.Signal(ik, kind.Color(t.Color)), nil
	default:
		return nil, diag.New(diag.CodeTypeKindMismatch, ast.Span{}, "unhandled type expression %T", te)
	}
}
