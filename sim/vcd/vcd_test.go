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
package vcd

import (
	"strings"
	"testing"

	"hwkit/kind"
	"hwkit/sim"
)

func TestWriteEmitsTimescaleAndVarDecl(t *testing.T) {
	samples := []sim.Sample{
		{Time: 0, Path: "dff", Key: "o[0]", Value: kind.Bit0},
		{Time: 1, Path: "dff", Key: "o[0]", Value: kind.Bit1},
	}
	out := Write(samples, 0)
	if !strings.Contains(out, "$timescale 1 ps $end") {
		t.Fatalf("missing timescale line:\n%s", out)
	}
	if !strings.Contains(out, "$var wire 1 ! dff_o_0 $end") {
		t.Fatalf("missing var decl for the first signal:\n%s", out)
	}
	if !strings.Contains(out, "#1") {
		t.Fatalf("missing time marker for the change at t=1:\n%s", out)
	}
	if !strings.Contains(out, "1!") {
		t.Fatalf("missing the Bit1 value change line:\n%s", out)
	}
}

func TestWriteDeduplicatesUnchangedValues(t *testing.T) {
	samples := []sim.Sample{
		{Time: 0, Path: "dff", Key: "o[0]", Value: kind.Bit0},
		{Time: 1, Path: "dff", Key: "o[0]", Value: kind.Bit0},
		{Time: 2, Path: "dff", Key: "o[0]", Value: kind.Bit1},
	}
	out := Write(samples, 1)
	if strings.Contains(out, "#1\n") {
		t.Fatalf("a repeated value at t=1 should not open a new time block:\n%s", out)
	}
	if !strings.Contains(out, "#2\n") {
		t.Fatalf("the changed value at t=2 should open a time block:\n%s", out)
	}
}

func TestIdentForAssignsDistinctSequentialIdents(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := identFor(i)
		if seen[id] {
			t.Fatalf("identFor(%d) = %q collides with an earlier index", i, id)
		}
		seen[id] = true
	}
	if identFor(0) != "!" {
		t.Fatalf("identFor(0) = %q, want \"!\"", identFor(0))
	}
}
