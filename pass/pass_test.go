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
package pass

import "testing"

// decrementToZero is a toy Pass[int] that halves a counter until it hits
// zero, standing in for a shrinking optimizer pass.
func decrementToZero(n int) (int, bool, error) {
	if n == 0 {
		return n, false, nil
	}
	return n - 1, true, nil
}

func TestDriverRunsToFixedPoint(t *testing.T) {
	d := Driver[int]{}
	out, err := d.Run(5, Func[int]{PassName: "dec", Fn: decrementToZero})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != 0 {
		t.Fatalf("out = %d, want 0", out)
	}
}

func TestDriverMaxItersBoundsLoop(t *testing.T) {
	d := Driver[int]{MaxIters: 2}
	out, err := d.Run(5, Func[int]{PassName: "dec", Fn: decrementToZero})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != 3 {
		t.Fatalf("out = %d, want 3 after 2 bounded iterations", out)
	}
}

func TestDriverSurfacesInvariantViolation(t *testing.T) {
	alwaysChanges := Func[int]{PassName: "bad-invariant", Fn: func(n int) (int, bool, error) {
		return n, true, nil
	}}
	d := Driver[int]{Invariants: []Pass[int]{alwaysChanges}}
	_, err := d.Run(0)
	if err == nil {
		t.Fatalf("expected invariant violation error, got nil")
	}
	if _, ok := err.(*ViolationError); !ok {
		t.Fatalf("err = %T, want *ViolationError", err)
	}
}
