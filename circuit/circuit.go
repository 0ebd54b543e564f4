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

// Package circuit composes already-synthesized circuits (spec.md §4.C):
// a Circuit is anything that can be simulated one cycle at a time,
// described structurally, and emitted as HDL. Leaf wraps a single
// rtl.Module/ntl.Netlist pair produced by the rest of the pipeline;
// StructOf, ArrayOf, Chain, and Adapter build composites out of other
// Circuits without ever re-lowering them, mirroring the same wiring at
// both the simulation level (delegate Sim calls) and the HDL level
// (instance declarations and port connections).
//
// The source language's own In/Out/State types are fully described by
// kind.Kind by the time a circuit reaches this package, so rather than
// re-introduce them as Go type parameters (which would force every
// composition primitive to do its wiring through reflection, since a
// struct of heterogeneous children can't share one concrete type
// argument), Circuit represents In, Out, and State uniformly as flat
// []kind.BitX bit vectors — the same flattened view hdl.Module's own "i"
// and "o" ports already use. A Descriptor still carries the original
// kind.Kind shape for callers that want it.
package circuit

import (
	"encoding/json"
	"fmt"

	"hwkit/hdl"
	"hwkit/kind"
	"hwkit/ntl"
	"hwkit/rtl"
	"hwkit/sim"
)

// ClockReset is circuit's runtime carrier for the clock and reset lines
// driving a Sim call. kind.ClockReset (hwkit/kind) describes the *shape*
// of a clock/reset pair at compile time — both its fields are always
// BitsKind{1} — it was never meant to carry a live value, so Sim takes
// this package-local type instead of a *kind.ClockReset.
type ClockReset struct {
	Clock, Reset kind.BitX
}

// Circuit is anything one cycle of simulation, a structural dump, and an
// HDL module can be produced from. Leaf wraps one synthesized module;
// StructOf/ArrayOf/Chain/Adapter wrap other Circuits.
type Circuit interface {
	// Init returns the circuit's power-on state (every flop at Bit0).
	Init() []kind.BitX
	// Sim advances the circuit by one cycle, reading and overwriting
	// state in place, and returns the new output.
	Sim(cr ClockReset, in []kind.BitX, state *[]kind.BitX) []kind.BitX
	// Descriptor names this circuit (and, recursively, its children).
	Descriptor(name string) *Descriptor
	// HDL synthesizes this circuit as a standalone Verilog module named
	// name, instantiating any children it has.
	HDL(name string) *hdl.Module
}

// Descriptor is a structural dump of a Circuit: its own shape (I/O/D/Q,
// when known), its named children, and — for a Leaf — the concrete IR
// that produced it.
type Descriptor struct {
	Name     string
	I, O     kind.Kind
	D, Q     kind.Kind
	Children map[string]*Descriptor
	NTL      *ntl.Netlist
	RTL      *rtl.Module
}

// MarshalJSON renders Kind fields as their String() text (Kind is a
// sealed interface, not itself marshalable) and omits NTL/RTL — those are
// IR, not a structural summary; a caller wanting the synthesized text
// uses HDL directly, the same division hdl.Module.MarshalJSON draws
// between Ports/Decls and its own rendered Body.
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	type shallow struct {
		Name     string                  `json:"name"`
		I        string                  `json:"i,omitempty"`
		O        string                  `json:"o,omitempty"`
		D        string                  `json:"d,omitempty"`
		Q        string                  `json:"q,omitempty"`
		Children map[string]*Descriptor `json:"children,omitempty"`
	}
	s := shallow{Name: d.Name, Children: d.Children}
	if d.I != nil {
		s.I = d.I.String()
	}
	if d.O != nil {
		s.O = d.O.String()
	}
	if d.D != nil {
		s.D = d.D.String()
	}
	if d.Q != nil {
		s.Q = d.Q.String()
	}
	return json.Marshal(s)
}

// Leaf is a Circuit backed by one already-lowered rtl.Module/ntl.Netlist
// pair — the bottom of the circuit tree, everything above it in this
// package is pure composition.
type Leaf struct {
	name         string
	m            *rtl.Module
	n            *ntl.Netlist
	iKind, oKind kind.Kind
	dKind, qKind kind.Kind
}

// NewLeaf wraps an already-lowered module/netlist pair as a Circuit. The
// Kind arguments are carried for Descriptor only — by the time a Module
// and Netlist exist, the pipeline has already flattened every register to
// plain Width/Signed scalars, so the original shape has to come from the
// caller (the compile stage that still has it) rather than be
// reconstructed here.
func NewLeaf(name string, m *rtl.Module, n *ntl.Netlist, iKind, oKind, dKind, qKind kind.Kind) *Leaf {
	return &Leaf{name: name, m: m, n: n, iKind: iKind, oKind: oKind, dKind: dKind, qKind: qKind}
}

func (l *Leaf) Init() []kind.BitX {
	return make([]kind.BitX, len(l.n.Flops))
}

func (l *Leaf) Sim(cr ClockReset, in []kind.BitX, state *[]kind.BitX) []kind.BitX {
	c := sim.NewCycle(l.n)
	c.ImportState(*state)
	if cr.Reset == kind.Bit1 {
		c.Reset()
	}
	buses := make([][]kind.BitX, len(l.n.Inputs))
	cursor := 0
	for i, bus := range l.n.Inputs {
		buses[i] = in[cursor : cursor+len(bus)]
		cursor += len(bus)
	}
	out, err := c.Step(buses)
	if err != nil {
		// Circuit's Sim has no error return (spec.md §4.C) — a port
		// mismatch here is a composition bug, not a user-facing
		// runtime condition, so it surfaces the same way Cycle's own
		// did-not-converge path does.
		panic(fmt.Errorf("circuit: %s: %w", l.name, err))
	}
	*state = c.ExportState()
	return out
}

func (l *Leaf) Descriptor(name string) *Descriptor {
	return &Descriptor{Name: name, I: l.iKind, O: l.oKind, D: l.dKind, Q: l.qKind, NTL: l.n, RTL: l.m}
}

func (l *Leaf) HDL(name string) *hdl.Module {
	m := hdl.FromRTL(l.m)
	m.Name = name
	return m
}

func portWidth(m *hdl.Module, name string) int {
	for _, p := range m.Ports {
		if p.Name == name {
			return p.Width
		}
	}
	return 0
}
