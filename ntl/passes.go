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
package ntl

import (
	"fmt"

	"hwkit/kind"
	"hwkit/pass"
)

// walkReachable visits every Wire reachable from roots exactly once,
// depth-first, children before parents (a post-order visit), calling fn
// on each. Flop.Ins[2] (the D input) is still walked — reachability
// doesn't stop at a register boundary, only simulation timing does.
func walkReachable(roots []*Wire, fn func(*Wire)) {
	seen := make(map[*Wire]bool)
	var visit func(w *Wire)
	visit = func(w *Wire) {
		if w == nil || seen[w] {
			return
		}
		seen[w] = true
		if g, ok := w.Origin.(Gate); ok {
			for _, in := range g.Ins {
				visit(in)
			}
		}
		fn(w)
	}
	for _, w := range roots {
		visit(w)
	}
}

func roots(n *Netlist) []*Wire {
	all := append([]*Wire{}, n.Outputs...)
	all = append(all, n.Flops...)
	return all
}

// ConstProp folds every Wire whose transitive inputs are all Const down to
// a single Const Origin, via FoldGate — the one centralized three-valued
// folding table. It mutates Wire.Origin in place rather than rebuilding
// the graph, since every reference to a Wire is the same pointer: folding
// w's Origin is visible to every Gate that lists w as an input without a
// separate substitution pass.
func ConstProp(n *Netlist) (*Netlist, bool, error) {
	changed := false
	folded := make(map[*Wire]kind.BitX)
	walkReachable(roots(n), func(w *Wire) {
		switch o := w.Origin.(type) {
		case Const:
			folded[w] = o.Value
		case Gate:
			ins := make([]kind.BitX, len(o.Ins))
			allConst := o.Op != GateFlop // a flop is never constant-folded: it holds state across cycles
			for i, in := range o.Ins {
				v, ok := folded[in]
				if !ok {
					allConst = false
					break
				}
				ins[i] = v
			}
			if !allConst {
				return
			}
			v, ok := FoldGate(o.Op, ins)
			if !ok {
				return
			}
			w.Origin = Const{Value: v}
			folded[w] = v
			changed = true
		}
	})
	return n, changed, nil
}

// ForwardWires collapses two no-op shapes a structural lowering tends to
// produce: Not(Not(x)) and a Mux whose two data arms are the identical
// Wire regardless of selector. Both rewrite the outer Wire's Origin to
// alias the inner Wire's Origin directly, shortening the gate chain
// without changing behavior.
func ForwardWires(n *Netlist) (*Netlist, bool, error) {
	changed := false
	walkReachable(roots(n), func(w *Wire) {
		g, ok := w.Origin.(Gate)
		if !ok {
			return
		}
		switch g.Op {
		case GateNot:
			if inner, ok := g.Ins[0].Origin.(Gate); ok && inner.Op == GateNot {
				w.Origin = inner.Ins[0].Origin
				changed = true
			}
		case GateMux:
			if g.Ins[1] == g.Ins[2] {
				w.Origin = g.Ins[1].Origin
				changed = true
			}
		}
	})
	return n, changed, nil
}

// DeadWireElim drops Flops that no longer feed any Output or surviving
// Flop. Plain combinational Wires need no separate list trim: they are
// only ever referenced from the Gate graph rooted at Outputs/Flops, so an
// unreachable one is already garbage the walk never visits again once its
// last referencing Flop is gone.
func DeadWireElim(n *Netlist) (*Netlist, bool, error) {
	live := make(map[*Wire]bool)
	walkReachable(n.Outputs, func(w *Wire) { live[w] = true })
	kept := n.Flops[:0:0]
	changed := false
	for _, f := range n.Flops {
		if live[f] {
			kept = append(kept, f)
			continue
		}
		changed = true
	}
	n.Flops = kept
	if changed {
		// Liveness above is walked from Outputs alone, through Flop
		// inputs, so a feedback chain of flops with no path to an output
		// is already dropped in that one walk; this recomputed set is
		// not consulted. The caller's pass.Driver re-runs passes to a
		// fixed point, so this just needs to report progress honestly.
		live = make(map[*Wire]bool)
		walkReachable(roots(n), func(w *Wire) { live[w] = true })
	}
	return n, changed, nil
}

// UndrivenCheck reports an error if any reachable Wire has a nil Origin —
// a netlist wire that was allocated (e.g. as a flop's forward-declared D
// input in a feedback loop) but never wired up before lowering finished.
func UndrivenCheck(n *Netlist) (*Netlist, bool, error) {
	var bad *Wire
	walkReachable(roots(n), func(w *Wire) {
		if w.Origin == nil && bad == nil {
			bad = w
		}
	})
	if bad != nil {
		return n, false, fmt.Errorf("ntl: undriven wire %q in netlist %s", bad.Name, n.Name)
	}
	return n, false, nil
}

// Optimize is the fixed-point optimizer for one Netlist: ConstProp,
// ForwardWires and DeadWireElim run in that order to convergence, and
// UndrivenCheck is the invariant pass.Driver re-checks after each pass
// and at the end (spec.md §4.O
// orders constant-fold before structural cleanup the same way opt.Pipeline
// does for rtif).
func Optimize(n *Netlist) (*Netlist, error) {
	d := pass.Driver[*Netlist]{
		Invariants: []pass.Pass[*Netlist]{
			pass.Func[*Netlist]{PassName: "UndrivenCheck", Fn: UndrivenCheck},
		},
	}
	return d.Run(n,
		pass.Func[*Netlist]{PassName: "ConstProp", Fn: ConstProp},
		pass.Func[*Netlist]{PassName: "ForwardWires", Fn: ForwardWires},
		pass.Func[*Netlist]{PassName: "DeadWireElim", Fn: DeadWireElim},
	)
}
