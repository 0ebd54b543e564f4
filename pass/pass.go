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

// Package pass is the generic whole-object rewrite-pass driver shared by
// every IR stage (rtif, rtl, ntl). falcon hardcodes one fixed-point loop
// over three peephole passes for its single SSA IR
// (compile/ssa/optimize.go's Optimizer.Ideal); hwkit needs the identical
// "run to convergence, re-checking invariants as it goes" shape over three
// different IR types, so the loop itself is factored out as a type
// parameter rather than copy-pasted per IR.
package pass

// Pass rewrites an Object of type T, reporting whether it made progress.
// A Pass that found nothing to do returns the input unchanged and
// changed=false; Driver.Run uses that to detect a fixed point.
type Pass[T any] interface {
	Name() string
	Run(obj T) (out T, changed bool, err error)
}

// Func adapts a plain function into a Pass, the way falcon's optimizer
// calls bare functions (foldConstant, simplifyArith, ...) rather than
// defining a type per pass.
type Func[T any] struct {
	PassName string
	Fn       func(T) (T, bool, error)
}

func (f Func[T]) Name() string { return f.PassName }

func (f Func[T]) Run(obj T) (T, bool, error) { return f.Fn(obj) }

// Driver runs a fixed list of passes to a fixed point, re-running
// Invariants after every pass and once more at the end (their own Run
// must never report changed=true; a
// true return from an invariant pass is treated as a violation and
// surfaced as an error) so passes can't leave the object in a state that
// violates whatever invariants the IR promises its consumers.
type Driver[T any] struct {
	Invariants []Pass[T]
	// MaxIters bounds the fixed-point loop the way falcon's Ideal() never
	// needs to (its peephole set always shrinks the value list, so falcon
	// trusts it to terminate); hwkit's optimizer ordering is proven to
	// terminate by construction, but a bound guards against a future pass
	// bug turning one mistake into a silent infinite loop. Zero means the
	// teacher's originally unbounded behavior.
	MaxIters int
}

// Run executes passes in order repeatedly until one full pass over the
// list makes no further progress, checks Invariants after each pass and
// once more after the loop (so a call with no passes still checks them),
// and returns the final object.
func (d Driver[T]) Run(obj T, passes ...Pass[T]) (T, error) {
	iters := 0
	for {
		changedAny := false
		for _, p := range passes {
			out, changed, err := p.Run(obj)
			if err != nil {
				return obj, err
			}
			obj = out
			if err := d.checkInvariants(obj); err != nil {
				return obj, err
			}
			changedAny = changedAny || changed
		}
		iters++
		if !changedAny {
			break
		}
		if d.MaxIters > 0 && iters >= d.MaxIters {
			break
		}
	}
	if err := d.checkInvariants(obj); err != nil {
		return obj, err
	}
	return obj, nil
}

func (d Driver[T]) checkInvariants(obj T) error {
	for _, inv := range d.Invariants {
		out, changed, err := inv.Run(obj)
		if err != nil {
			return err
		}
		if changed {
			return &ViolationError{Pass: inv.Name()}
		}
		obj = out
	}
	return nil
}

// ViolationError reports an invariant pass that found something to change
// after a pass ran or after the fixed point was reached.
type ViolationError struct {
	Pass string
}

func (e *ViolationError) Error() string {
	return "pass: invariant " + e.Pass + " found a violation"
}
