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
package sim

import (
	"fmt"
	"sync"

	"hwkit/kind"
)

// Sample is one (path, key, value) triple recorded at a point in logical
// time, the unit sim/vcd and sim/svg consume.
type Sample struct {
	Time  uint64
	Path  string
	Key   string
	Value kind.BitX
}

// TracePage accumulates Samples across a simulation run. Go has no true
// thread-local storage, and spec.md's concurrency model is explicitly
// single-threaded cooperative (§5), so a package-level pointer guarded by a
// mutex is the faithful translation of "thread-local page" rather than an
// actual per-goroutine slot.
type TracePage struct {
	mu      sync.Mutex
	samples []Sample
	time    uint64
}

// NewTracePage returns an empty page at time 0.
func NewTracePage() *TracePage { return &TracePage{} }

// Advance moves the page's logical clock forward by dt before the next
// batch of Record calls.
func (p *TracePage) Advance(dt uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.time += dt
}

// Record appends one (path, key, value) triple at the page's current time.
func (p *TracePage) Record(path, key string, value kind.BitX) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.samples = append(p.samples, Sample{Time: p.time, Path: path, Key: key, Value: value})
}

// record is Cycle.Step's hook: one Key per output bit, named by index since
// the netlist itself carries no per-bit signal names beyond hdl.ScopedName
// (computed only at HDL-emission time, not netlist-construction time).
func (p *TracePage) record(path string, bits []kind.BitX) {
	for i, b := range bits {
		p.Record(path, fmt.Sprintf("o[%d]", i), b)
	}
}

// Samples returns every Sample recorded so far, in recording order.
func (p *TracePage) Samples() []Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Sample(nil), p.samples...)
}

var (
	tracePageMu sync.Mutex
	tracePage   *TracePage
)

// EnterTracePage installs p as the current page for the duration of a
// simulation run; callers must pair it with LeaveTracePage.
func EnterTracePage(p *TracePage) {
	tracePageMu.Lock()
	defer tracePageMu.Unlock()
	tracePage = p
}

// LeaveTracePage clears the current page.
func LeaveTracePage() {
	tracePageMu.Lock()
	defer tracePageMu.Unlock()
	tracePage = nil
}

func currentTracePage() *TracePage {
	tracePageMu.Lock()
	defer tracePageMu.Unlock()
	return tracePage
}
