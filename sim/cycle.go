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

// Package sim interprets an *ntl.Netlist directly: Cycle drives one clock
// edge (present inputs, settle combinational logic to a fixed point,
// propagate flops, emit outputs), Stream composes cycles over time.
package sim

import (
	"fmt"

	"hwkit/diag"
	"hwkit/kind"
	"hwkit/ntl"
)

// MaxIters bounds combinational fixed-point iteration within one cycle
// (spec.md §4.S's MAX_ITERS ≈ 64).
const MaxIters = 64

// Cycle evaluates one *ntl.Netlist across successive clock edges, holding
// flop state between calls to Step.
type Cycle struct {
	n        *ntl.Netlist
	regState map[*ntl.Wire]kind.BitX
	reset    bool
}

// NewCycle builds a Cycle with every flop reset to Bit0, matching a
// synchronous-reset power-on state.
func NewCycle(n *ntl.Netlist) *Cycle {
	c := &Cycle{n: n, regState: make(map[*ntl.Wire]kind.BitX)}
	for _, f := range n.Flops {
		c.regState[f] = kind.Bit0
	}
	return c
}

// Reset arranges for the next Step to assert synchronous reset on every
// flop (the Reset input line held Bit1 for that edge).
func (c *Cycle) Reset() { c.reset = true }

// ExportState reads every flop's current value, in n.Flops order — the
// circuit package uses this to round-trip a Leaf's register state through
// a composite's own flat State slice between Sim calls.
func (c *Cycle) ExportState() []kind.BitX {
	out := make([]kind.BitX, len(c.n.Flops))
	for i, f := range c.n.Flops {
		out[i] = c.regState[f]
	}
	return out
}

// ImportState overwrites each flop's current value from s, in n.Flops
// order; if s is shorter than n.Flops the remaining flops keep their
// values, and entries of s past len(n.Flops) are ignored.
func (c *Cycle) ImportState(s []kind.BitX) {
	for i, f := range c.n.Flops {
		if i < len(s) {
			c.regState[f] = s[i]
		}
	}
}

// Step presents inputs (one []kind.BitX bus per netlist parameter, matching
// n.Inputs), settles combinational logic to a fixed point, propagates flops
// on the edge, and returns the output bus.
func (c *Cycle) Step(inputs [][]kind.BitX) ([]kind.BitX, error) {
	if len(inputs) != len(c.n.Inputs) {
		return nil, diag.New(diag.CodeSimPortMismatch, diag.Span{},
			"sim: Step: got %d input buses, want %d", len(inputs), len(c.n.Inputs))
	}
	values := make(map[*ntl.Wire]kind.BitX)
	for i, bus := range c.n.Inputs {
		if len(bus) != len(inputs[i]) {
			return nil, diag.New(diag.CodeSimPortMismatch, diag.Span{},
				"sim: Step: input bus %d has %d bits, want %d", i, len(inputs[i]), len(bus))
		}
		for j, w := range bus {
			values[w] = inputs[i][j]
		}
	}
	values[c.n.Clock] = kind.Bit1
	if c.reset {
		values[c.n.Reset] = kind.Bit1
	} else {
		values[c.n.Reset] = kind.Bit0
	}
	for _, f := range c.n.Flops {
		values[f] = c.regState[f]
	}

	gates := reachableGates(c.n)
	if err := settle(gates, values); err != nil {
		return nil, err
	}

	nextState := make(map[*ntl.Wire]kind.BitX, len(c.n.Flops))
	for _, f := range c.n.Flops {
		g := f.Origin.(ntl.Gate)
		d := values[g.Ins[2]]
		if values[g.Ins[1]] == kind.Bit1 {
			nextState[f] = kind.Bit0
		} else {
			nextState[f] = d
		}
	}
	c.regState = nextState
	c.reset = false

	outs := make([]kind.BitX, len(c.n.Outputs))
	for i, w := range c.n.Outputs {
		outs[i] = values[w]
	}
	if page := currentTracePage(); page != nil {
		page.record(c.n.Name, outs)
	}
	return outs, nil
}

// reachableGates lists every Gate wire reachable from the netlist's outputs
// and flop D-inputs, parents after children — the evaluation order settle
// relies on for any acyclic fanin graph to converge in a single sweep.
func reachableGates(n *ntl.Netlist) []*ntl.Wire {
	var order []*ntl.Wire
	seen := make(map[*ntl.Wire]bool)
	var visit func(w *ntl.Wire)
	visit = func(w *ntl.Wire) {
		if w == nil || seen[w] {
			return
		}
		seen[w] = true
		if g, ok := w.Origin.(ntl.Gate); ok {
			if g.Op != ntl.GateFlop {
				for _, in := range g.Ins {
					visit(in)
				}
			}
			order = append(order, w)
		}
	}
	for _, w := range n.Outputs {
		visit(w)
	}
	for _, f := range n.Flops {
		g := f.Origin.(ntl.Gate)
		visit(g.Ins[2])
	}
	return order
}

// settle evaluates every combinational gate to a fixed point, comparing the
// full state hash between sweeps exactly as spec.md §4.S describes, bounded
// by MaxIters; exhausting the bound is the did-not-converge scenario (spec
// §8 scenario 6) and panics via diag.PanicDidNotConverge, the simulator's
// one sanctioned panic path.
func settle(gates []*ntl.Wire, values map[*ntl.Wire]kind.BitX) error {
	prevHash := stateHash(gates, values)
	for iter := 0; iter < MaxIters; iter++ {
		for _, w := range gates {
			g := w.Origin.(ntl.Gate)
			if g.Op == ntl.GateFlop {
				continue
			}
			ins := make([]kind.BitX, len(g.Ins))
			for i, in := range g.Ins {
				ins[i] = values[in]
			}
			v, ok := ntl.FoldGate(g.Op, ins)
			if !ok {
				return fmt.Errorf("sim: settle: gate op %s has no evaluation rule", g.Op)
			}
			values[w] = v
		}
		hash := stateHash(gates, values)
		if hash == prevHash {
			return nil
		}
		prevHash = hash
	}
	diag.PanicDidNotConverge(diag.Span{}, "combinational settle exceeded %d iterations", MaxIters)
	return nil
}

func stateHash(gates []*ntl.Wire, values map[*ntl.Wire]kind.BitX) string {
	buf := make([]byte, len(gates))
	for i, w := range gates {
		switch values[w] {
		case kind.Bit0:
			buf[i] = '0'
		case kind.Bit1:
			buf[i] = '1'
		default:
			buf[i] = 'x'
		}
	}
	return string(buf)
}

// Retime marks a clock-domain boundary at the interpreter level and
// returns v unchanged. srcColor/dstColor are the signal color tags
// (ast.SignalTypeExpr.Color) and are not consulted; Retime holds no
// per-edge sample of its own, so it does not pin v to its pre-edge value
// across settle sweeps.
func Retime(v kind.BitX, srcColor, dstColor string) kind.BitX {
	_ = srcColor
	_ = dstColor
	return v
}
