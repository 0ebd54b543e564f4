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

// Package vcd renders a sim.TracePage's recorded samples as an IEEE 1364
// Value Change Dump: a picosecond-timescale text format GTKWave and every
// other waveform viewer already reads, so hwkit needs no viewer of its
// own (spec.md §6).
package vcd

import (
	"fmt"
	"strings"

	"hwkit/kind"
	"hwkit/sim"
)

type sigKey struct{ path, key string }

// Write renders samples as a complete VCD file body. timescalePs is the
// number of picoseconds one time unit represents (spec.md §6: picosecond
// timescale by default); pass 0 to use 1.
func Write(samples []sim.Sample, timescalePs uint64) string {
	if timescalePs == 0 {
		timescalePs = 1
	}

	var order []sigKey
	seen := make(map[sigKey]bool)
	for _, s := range samples {
		k := sigKey{s.Path, s.Key}
		if !seen[k] {
			seen[k] = true
			order = append(order, k)
		}
	}
	ids := make(map[sigKey]string, len(order))
	for i, k := range order {
		ids[k] = identFor(i)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "$timescale %d ps $end\n", timescalePs)
	fmt.Fprintf(&b, "$scope module top $end\n")
	for _, k := range order {
		fmt.Fprintf(&b, "$var wire 1 %s %s $end\n", ids[k], signalName(k))
	}
	fmt.Fprintf(&b, "$upscope $end\n")
	fmt.Fprintf(&b, "$enddefinitions $end\n")

	fmt.Fprintf(&b, "$dumpvars\n")
	for _, k := range order {
		fmt.Fprintf(&b, "x%s\n", ids[k])
	}
	fmt.Fprintf(&b, "$end\n")

	last := make(map[sigKey]kind.BitX)
	var curTime uint64
	timeOpen := false
	for _, s := range samples {
		k := sigKey{s.Path, s.Key}
		if prev, ok := last[k]; ok && prev == s.Value {
			continue
		}
		last[k] = s.Value
		if !timeOpen || s.Time != curTime {
			fmt.Fprintf(&b, "#%d\n", s.Time)
			curTime = s.Time
			timeOpen = true
		}
		fmt.Fprintf(&b, "%s%s\n", bitChar(s.Value), ids[k])
	}
	return b.String()
}

func signalName(k sigKey) string {
	name := k.path
	if k.key != "" {
		name += "_" + k.key
	}
	return strings.NewReplacer("[", "_", "]", "", ".", "_").Replace(name)
}

func bitChar(v kind.BitX) string {
	switch v {
	case kind.Bit0:
		return "0"
	case kind.Bit1:
		return "1"
	default:
		return "x"
	}
}

// identFor assigns VCD's compact identifier encoding, printable ASCII
// '!' (33) through '~' (126), sequentially from 0 — spec.md §6: "identifiers
// are assigned sequentially starting from !".
func identFor(n int) string {
	const base = 94
	const first = '!'
	var buf []byte
	for {
		buf = append(buf, byte(first+n%base))
		n /= base
		if n == 0 {
			break
		}
		n--
	}
	return string(buf)
}
