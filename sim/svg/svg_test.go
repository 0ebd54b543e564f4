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
package svg

import (
	"regexp"
	"strings"
	"testing"

	"hwkit/kind"
	"hwkit/sim"
)

func sampleTrace() []sim.Sample {
	return []sim.Sample{
		{Time: 0, Path: "dff", Key: "o[0]", Value: kind.Bit0},
		{Time: 1, Path: "dff", Key: "o[0]", Value: kind.Bit1},
		{Time: 0, Path: "dff", Key: "d[0]", Value: kind.Bit1},
	}
}

func TestRenderProducesAnSvgDocumentWithOneRowPerSignal(t *testing.T) {
	out := Render(sampleTrace(), SvgOptions{})
	if !strings.HasPrefix(out, "<svg") {
		t.Fatalf("output does not start with an <svg> tag:\n%s", out)
	}
	if strings.Count(out, "<path") != 2 {
		t.Fatalf("want one waveform <path> per distinct signal, got:\n%s", out)
	}
	if !strings.Contains(out, "dff.d[0]") {
		t.Fatalf("missing label for dff.d[0]:\n%s", out)
	}
}

func TestRenderNameFiltersRestrictsRows(t *testing.T) {
	filter := regexp.MustCompile(`o\[0\]`)
	out := Render(sampleTrace(), SvgOptions{NameFilters: filter})
	if strings.Count(out, "<path") != 1 {
		t.Fatalf("want exactly one row surviving the filter, got:\n%s", out)
	}
	if strings.Contains(out, "dff.d[0]") {
		t.Fatalf("a filtered-out signal's label leaked into the output:\n%s", out)
	}
}

func TestRTTListsOneLinePerSignal(t *testing.T) {
	out := RTT(sampleTrace())
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2:\n%s", len(lines), out)
	}
	if !strings.Contains(out, "dff.d[0] bit") {
		t.Fatalf("missing dff.d[0] entry:\n%s", out)
	}
}
