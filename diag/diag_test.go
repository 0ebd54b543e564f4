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
package diag

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorRendersCodeAndMessage(t *testing.T) {
	err := New(CodeTypeWidthMismatch, Span{Start: 3, End: 7}, "width %d != %d", 8, 16)
	if !strings.Contains(err.Error(), "type.width-mismatch") {
		t.Fatalf("Error() missing code: %s", err.Error())
	}
	if !strings.Contains(err.Error(), "8 != 16") {
		t.Fatalf("Error() missing formatted message: %s", err.Error())
	}
}

func TestICEWrapsCauseWithStack(t *testing.T) {
	cause := errors.New("register written twice")
	err := ICE(cause, Span{}, "slot r3")
	if err.Code != CodeICE {
		t.Fatalf("ICE code = %s, want %s", err.Code, CodeICE)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("ICE should wrap cause such that errors.Is finds it")
	}
}

func TestPanicICEPanicsWithICEPrefix(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		e, ok := r.(*Error)
		if !ok {
			t.Fatalf("panic value is %T, want *diag.Error", r)
		}
		if !strings.HasPrefix(e.Message, "ICE: ") {
			t.Fatalf("message = %q, want ICE: prefix", e.Message)
		}
	}()
	PanicICE(errors.New("boom"), Span{}, "invariant violated")
}

func TestSessionIdsAreMonotonicAndUnique(t *testing.T) {
	ResetSessionCounterForTest()
	a := NewSession()
	b := NewSession()
	if b.Ordinal <= a.Ordinal {
		t.Fatalf("session ordinals not monotonic: %d then %d", a.Ordinal, b.Ordinal)
	}
	if a.External == b.External {
		t.Fatal("session external ids should not collide")
	}
}

type stubResolver struct{}

func (stubResolver) Resolve(s Span) (Location, bool) {
	if s.Start == 0 && s.End == 0 {
		return Location{}, false
	}
	return Location{File: "kernel.hw", Line: 3, Col: 5, Text: "a + b"}, true
}

func TestSourcePoolRendersResolvedSpan(t *testing.T) {
	pool := NewSourcePool(stubResolver{})
	err := New(CodeFlowUndrivenNet, Span{Start: 10, End: 15}, "net never driven")
	rendered := pool.Render(err)
	if !strings.Contains(rendered, "kernel.hw:3:5") {
		t.Fatalf("rendered output missing location: %s", rendered)
	}
}
