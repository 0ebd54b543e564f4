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
	"hwkit/pass"
	"hwkit/rtif"
)

func boolPass(name string, fn func(*rtif.Func) bool) pass.Pass[*rtif.Func] {
	return pass.Func[*rtif.Func]{PassName: name, Fn: func(f *rtif.Func) (*rtif.Func, bool, error) {
		return f, fn(f), nil
	}}
}

func dcePass() pass.Pass[*rtif.Func] {
	return pass.Func[*rtif.Func]{PassName: "DCE", Fn: func(f *rtif.Func) (*rtif.Func, bool, error) {
		return f, rtif.DCE(f) > 0, nil
	}}
}

func flowCheckInvariant() pass.Pass[*rtif.Func] {
	return pass.Func[*rtif.Func]{PassName: "FlowCheck", Fn: func(f *rtif.Func) (*rtif.Func, bool, error) {
		return f, false, rtif.FlowCheck(f)
	}}
}

// Pipeline runs the fixed optimizer ordering spec.md §4.O names exactly:
// constant-fold, case-lowering, dead-code elimination, common-subexpression
// elimination, dead-code elimination again (CSE can make an op that fed
// only a now-merged duplicate dead, so a second sweep is needed). Each
// stage is driven to its own fixed point by runToFixedPoint before the
// next begins; pass.Driver is then run with no passes, only to check the
// FlowCheck invariant on the result.
func Pipeline(f *rtif.Func) (*rtif.Func, error) {
	d := pass.Driver[*rtif.Func]{
		Invariants: []pass.Pass[*rtif.Func]{flowCheckInvariant()},
	}
	stages := []pass.Pass[*rtif.Func]{
		boolPass("ConstProp", rtif.ConstProp),
		boolPass("LowerCase", rtif.LowerCase),
		dcePass(),
		boolPass("CSE", CSE),
		dcePass(),
	}
	for _, stage := range stages {
		out, _, err := runToFixedPoint(stage, f)
		if err != nil {
			return f, err
		}
		f = out
	}
	return d.Run(f)
}

// runToFixedPoint repeats a single pass until it stops reporting progress,
// the same "for ConstProp(f) {}" convention rtif_test.go already exercises
// for each pass individually.
func runToFixedPoint(p pass.Pass[*rtif.Func], f *rtif.Func) (*rtif.Func, bool, error) {
	anyChange := false
	for {
		out, changed, err := p.Run(f)
		if err != nil {
			return out, anyChange, err
		}
		f = out
		if !changed {
			return f, anyChange, nil
		}
		anyChange = true
	}
}
