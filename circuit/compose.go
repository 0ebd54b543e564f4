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
package circuit

import (
	"fmt"

	"hwkit/hdl"
	"hwkit/kind"
)

// structOf ties named children side by side: the parent's input is the
// concatenation of every child's own input, in order, and likewise for
// output and state. Sim simply slices and delegates — the graph-cloning
// rtl/lower_ntl.go uses to inline one callee's netlist into a caller
// isn't needed here because a Circuit's Sim is already a clean function
// of (in, state) -> (out, state); only HDL needs to actually wire
// netlists together, and instance statements do that without touching
// either child's Netlist.
type structOf struct {
	name       string
	order      []string
	children   map[string]Circuit
	inWidth    []int
	outWidth   []int
	stateWidth []int
}

// StructOf composes named children into one parent Circuit, evaluated in
// order: every order[i] must have a matching entry in children.
func StructOf(name string, order []string, children map[string]Circuit) Circuit {
	s := &structOf{name: name, order: append([]string(nil), order...), children: children}
	for _, n := range order {
		c := children[n]
		mod := c.HDL(n)
		s.inWidth = append(s.inWidth, portWidth(mod, "i"))
		s.outWidth = append(s.outWidth, portWidth(mod, "o"))
		s.stateWidth = append(s.stateWidth, len(c.Init()))
	}
	return s
}

func (s *structOf) Init() []kind.BitX {
	var out []kind.BitX
	for _, n := range s.order {
		out = append(out, s.children[n].Init()...)
	}
	return out
}

func (s *structOf) Sim(cr ClockReset, in []kind.BitX, state *[]kind.BitX) []kind.BitX {
	var outs []kind.BitX
	inCursor, stateCursor := 0, 0
	newState := make([]kind.BitX, 0, len(*state))
	for i, n := range s.order {
		iw, sw := s.inWidth[i], s.stateWidth[i]
		childIn := in[inCursor : inCursor+iw]
		inCursor += iw
		childState := append([]kind.BitX(nil), (*state)[stateCursor:stateCursor+sw]...)
		stateCursor += sw
		outs = append(outs, s.children[n].Sim(cr, childIn, &childState)...)
		newState = append(newState, childState...)
	}
	*state = newState
	return outs
}

func (s *structOf) Descriptor(name string) *Descriptor {
	children := make(map[string]*Descriptor, len(s.order))
	for _, n := range s.order {
		children[n] = s.children[n].Descriptor(n)
	}
	return &Descriptor{Name: name, Children: children}
}

func (s *structOf) HDL(name string) *hdl.Module {
	m := &hdl.Module{Name: name}
	inOffset := 0
	var outParts []hdl.Expr
	for i, n := range s.order {
		childMod := s.children[n].HDL(n)
		iw, ow := s.inWidth[i], s.outWidth[i]
		instName := hdl.InstanceName(i, len(s.order))
		outWire := instName + "_o"
		m.Decls = append(m.Decls, hdl.Decl{Name: outWire, Width: ow})
		m.Instances = append(m.Instances, childMod)
		conns := []hdl.PortConn{
			{Port: "clock_reset", Net: hdl.IdentExpr{Name: "clock_reset"}},
			{Port: "o", Net: hdl.IdentExpr{Name: outWire}},
		}
		if iw > 0 {
			conns = append(conns, hdl.PortConn{Port: "i", Net: hdl.SliceExpr{Base: hdl.IdentExpr{Name: "i"}, High: inOffset + iw - 1, Low: inOffset}})
		}
		m.Stmts = append(m.Stmts, hdl.InstanceStmt{ModuleName: childMod.Name, InstName: instName, Conns: conns})
		inOffset += iw
		outParts = append(outParts, hdl.IdentExpr{Name: outWire})
	}
	m.Ports = []hdl.Port{
		{Name: "clock_reset", Width: 2, Dir: hdl.DirIn},
		{Name: "i", Width: inOffset, Dir: hdl.DirIn},
		{Name: "o", Width: sum(s.outWidth), Dir: hdl.DirOut},
	}
	m.Stmts = append(m.Stmts, hdl.AssignStmt{Target: "o", Value: hdl.ConcatExpr{Parts: reverseExprs(outParts)}})
	return m
}

// ArrayOf builds n homogeneous children named c0..c{n-1}, delegating to
// StructOf for the actual wiring.
func ArrayOf(name string, n int, build func(i int) Circuit) Circuit {
	order := make([]string, n)
	children := make(map[string]Circuit, n)
	for i := 0; i < n; i++ {
		nm := fmt.Sprintf("c%d", i)
		order[i] = nm
		children[nm] = build(i)
	}
	return StructOf(name, order, children)
}

// chainOf pipes children in sequence: child i's output feeds child i+1's
// input directly, the parent's own input only drives the first child and
// its output is only the last child's.
type chainOf struct {
	name       string
	children   []Circuit
	names      []string
	inWidth    []int
	outWidth   []int
	stateWidth []int
}

// Chain composes children into a sequential pipeline; every adjacent pair
// must agree on width (child i's output width equals child i+1's input
// width) — a mismatch surfaces as a malformed HDL slice/concat rather than
// being checked here, the same trust boundary StructOf's caller-supplied
// order already assumes.
func Chain(name string, children ...Circuit) Circuit {
	c := &chainOf{name: name}
	for i, ch := range children {
		nm := fmt.Sprintf("c%d", i)
		mod := ch.HDL(nm)
		c.children = append(c.children, ch)
		c.names = append(c.names, nm)
		c.inWidth = append(c.inWidth, portWidth(mod, "i"))
		c.outWidth = append(c.outWidth, portWidth(mod, "o"))
		c.stateWidth = append(c.stateWidth, len(ch.Init()))
	}
	return c
}

func (c *chainOf) Init() []kind.BitX {
	var out []kind.BitX
	for _, ch := range c.children {
		out = append(out, ch.Init()...)
	}
	return out
}

func (c *chainOf) Sim(cr ClockReset, in []kind.BitX, state *[]kind.BitX) []kind.BitX {
	cur := in
	stateCursor := 0
	newState := make([]kind.BitX, 0, len(*state))
	for i, ch := range c.children {
		sw := c.stateWidth[i]
		childState := append([]kind.BitX(nil), (*state)[stateCursor:stateCursor+sw]...)
		stateCursor += sw
		cur = ch.Sim(cr, cur, &childState)
		newState = append(newState, childState...)
	}
	*state = newState
	return cur
}

func (c *chainOf) Descriptor(name string) *Descriptor {
	children := make(map[string]*Descriptor, len(c.children))
	for i, ch := range c.children {
		children[c.names[i]] = ch.Descriptor(c.names[i])
	}
	return &Descriptor{Name: name, Children: children}
}

func (c *chainOf) HDL(name string) *hdl.Module {
	m := &hdl.Module{Name: name}
	prevOutWire := "i"
	for i, ch := range c.children {
		mod := ch.HDL(c.names[i])
		m.Instances = append(m.Instances, mod)
		outWire := c.names[i] + "_o"
		m.Decls = append(m.Decls, hdl.Decl{Name: outWire, Width: c.outWidth[i]})
		m.Stmts = append(m.Stmts, hdl.InstanceStmt{
			ModuleName: mod.Name,
			InstName:   c.names[i],
			Conns: []hdl.PortConn{
				{Port: "clock_reset", Net: hdl.IdentExpr{Name: "clock_reset"}},
				{Port: "i", Net: hdl.IdentExpr{Name: prevOutWire}},
				{Port: "o", Net: hdl.IdentExpr{Name: outWire}},
			},
		})
		prevOutWire = outWire
	}
	inWidth := 0
	if len(c.inWidth) > 0 {
		inWidth = c.inWidth[0]
	}
	outWidth := 0
	if len(c.outWidth) > 0 {
		outWidth = c.outWidth[len(c.outWidth)-1]
	}
	m.Ports = []hdl.Port{
		{Name: "clock_reset", Width: 2, Dir: hdl.DirIn},
		{Name: "i", Width: inWidth, Dir: hdl.DirIn},
		{Name: "o", Width: outWidth, Dir: hdl.DirOut},
	}
	m.Stmts = append(m.Stmts, hdl.AssignStmt{Target: "o", Value: hdl.IdentExpr{Name: prevOutWire}})
	return m
}

// adapter rewires an inner Circuit's port bits by an explicit bit-level
// permutation — the impedance-matching primitive for plugging a Circuit
// with one I/O shape into a composition expecting another, without
// touching the inner Circuit's own netlist.
type adapter struct {
	name                        string
	inner                       Circuit
	inputMap, outputMap         []int
	innerInWidth, innerOutWidth int
}

// Adapter maps adapter input bit i to inner input bit inputMap[i], and
// inner output bit outputMap[i] to adapter output bit i. Bits of inner's
// input with no entry in inputMap are left floating (X); bits of inner's
// output never read by outputMap are simply dropped.
func Adapter(name string, inner Circuit, inputMap, outputMap []int) Circuit {
	mod := inner.HDL("inner")
	return &adapter{
		name: name, inner: inner, inputMap: inputMap, outputMap: outputMap,
		innerInWidth: portWidth(mod, "i"), innerOutWidth: portWidth(mod, "o"),
	}
}

func (a *adapter) Init() []kind.BitX { return a.inner.Init() }

func (a *adapter) Sim(cr ClockReset, in []kind.BitX, state *[]kind.BitX) []kind.BitX {
	innerIn := make([]kind.BitX, a.innerInWidth)
	for i := range innerIn {
		innerIn[i] = kind.BitUnknown
	}
	for adapterBit, innerBit := range a.inputMap {
		if adapterBit < len(in) && innerBit < len(innerIn) {
			innerIn[innerBit] = in[adapterBit]
		}
	}
	innerOut := a.inner.Sim(cr, innerIn, state)
	out := make([]kind.BitX, len(a.outputMap))
	for i, innerBit := range a.outputMap {
		if innerBit < len(innerOut) {
			out[i] = innerOut[innerBit]
		}
	}
	return out
}

func (a *adapter) Descriptor(name string) *Descriptor {
	return &Descriptor{Name: name, Children: map[string]*Descriptor{"inner": a.inner.Descriptor("inner")}}
}

func (a *adapter) HDL(name string) *hdl.Module {
	innerMod := a.inner.HDL("inner")
	m := &hdl.Module{Name: name, Instances: []*hdl.Module{innerMod}}
	m.Decls = append(m.Decls,
		hdl.Decl{Name: "inner_i", Width: a.innerInWidth},
		hdl.Decl{Name: "inner_o", Width: a.innerOutWidth},
	)

	inParts := make([]hdl.Expr, a.innerInWidth)
	for i := range inParts {
		inParts[i] = hdl.LiteralExpr{Width: 1, Bits: "x"}
	}
	for adapterBit, innerBit := range a.inputMap {
		if innerBit < len(inParts) {
			inParts[innerBit] = hdl.SliceExpr{Base: hdl.IdentExpr{Name: "i"}, High: adapterBit, Low: adapterBit}
		}
	}
	m.Stmts = append(m.Stmts, hdl.AssignStmt{Target: "inner_i", Value: hdl.ConcatExpr{Parts: reverseExprs(inParts)}})

	m.Stmts = append(m.Stmts, hdl.InstanceStmt{
		ModuleName: innerMod.Name,
		InstName:   "a",
		Conns: []hdl.PortConn{
			{Port: "clock_reset", Net: hdl.IdentExpr{Name: "clock_reset"}},
			{Port: "i", Net: hdl.IdentExpr{Name: "inner_i"}},
			{Port: "o", Net: hdl.IdentExpr{Name: "inner_o"}},
		},
	})

	outParts := make([]hdl.Expr, len(a.outputMap))
	for i, innerBit := range a.outputMap {
		outParts[i] = hdl.SliceExpr{Base: hdl.IdentExpr{Name: "inner_o"}, High: innerBit, Low: innerBit}
	}
	m.Stmts = append(m.Stmts, hdl.AssignStmt{Target: "o", Value: hdl.ConcatExpr{Parts: reverseExprs(outParts)}})

	m.Ports = []hdl.Port{
		{Name: "clock_reset", Width: 2, Dir: hdl.DirIn},
		{Name: "i", Width: len(a.inputMap), Dir: hdl.DirIn},
		{Name: "o", Width: len(a.outputMap), Dir: hdl.DirOut},
	}
	return m
}

func sum(ws []int) int {
	total := 0
	for _, w := range ws {
		total += w
	}
	return total
}

// reverseExprs flips a slice into MSB-first concatenation order: callers
// build Parts LSB-first (index == bit position) because that's the
// natural order for per-bit wiring, but hdl.ConcatExpr renders
// most-significant part first, Verilog's own convention.
func reverseExprs(parts []hdl.Expr) []hdl.Expr {
	out := make([]hdl.Expr, len(parts))
	for i, p := range parts {
		out[len(parts)-1-i] = p
	}
	return out
}
