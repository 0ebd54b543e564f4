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

// Package svg renders a sim.TracePage's recorded samples as a standalone
// SVG waveform, and the companion .rtt sidecar that records what each
// traced signal is for post-hoc type-aware viewing (spec.md §6 calls this
// the .rhdl/.rtt companion file; renamed here to match this repo).
package svg

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"hwkit/kind"
	"hwkit/sim"
)

// SvgOptions controls waveform layout (spec.md §6).
type SvgOptions struct {
	// Spacing is the pixel width of one unit of logical time.
	Spacing int
	// TailFlushTime extends every signal's final level this many time
	// units past its last sample, so a waveform doesn't visually stop
	// dead at the last recorded edge.
	TailFlushTime uint64
	// NameFilters, when non-nil, restricts rendering to signals whose
	// "path.key" matches.
	NameFilters *regexp.Regexp
	// LabelWidth is the pixel width reserved for the signal name column.
	LabelWidth int
}

func (o SvgOptions) withDefaults() SvgOptions {
	if o.Spacing <= 0 {
		o.Spacing = 20
	}
	if o.LabelWidth <= 0 {
		o.LabelWidth = 120
	}
	return o
}

const rowHeight = 24
const rowTop = 3
const rowBottom = 18
const rowMid = 10

type signalRow struct {
	name    string
	samples []sim.Sample
}

// Render draws one horizontal row per distinct (path,key) signal, a step
// waveform across the row tracking Bit0/Bit1/BitUnknown, and returns the
// complete standalone SVG document.
func Render(samples []sim.Sample, opts SvgOptions) string {
	opts = opts.withDefaults()

	rows, order := groupRows(samples, opts.NameFilters)

	var maxTime uint64
	for _, s := range samples {
		if s.Time > maxTime {
			maxTime = s.Time
		}
	}
	width := opts.LabelWidth + int(maxTime+opts.TailFlushTime)*opts.Spacing + opts.Spacing
	height := len(order)*rowHeight + rowHeight

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" font-family="monospace" font-size="12">`+"\n", width, height)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="white"/>`+"\n", width, height)

	for i, name := range order {
		row := rows[name]
		y := i * rowHeight
		fmt.Fprintf(&b, `<text x="4" y="%d">%s</text>`+"\n", y+rowBottom, escapeText(name))
		fmt.Fprint(&b, waveformPath(row.samples, opts, y, maxTime))
	}

	fmt.Fprint(&b, "</svg>\n")
	return b.String()
}

func groupRows(samples []sim.Sample, filter *regexp.Regexp) (map[string]*signalRow, []string) {
	rows := make(map[string]*signalRow)
	var order []string
	for _, s := range samples {
		name := s.Path
		if s.Key != "" {
			name += "." + s.Key
		}
		if filter != nil && !filter.MatchString(name) {
			continue
		}
		r, ok := rows[name]
		if !ok {
			r = &signalRow{name: name}
			rows[name] = r
			order = append(order, name)
		}
		r.samples = append(r.samples, s)
	}
	sort.Strings(order)
	return rows, order
}

func level(v kind.BitX) int {
	switch v {
	case kind.Bit1:
		return rowTop
	case kind.Bit0:
		return rowBottom
	default:
		return rowMid
	}
}

func waveformPath(samples []sim.Sample, opts SvgOptions, rowY int, maxTime uint64) string {
	if len(samples) == 0 {
		return ""
	}
	x := func(t uint64) int { return opts.LabelWidth + int(t)*opts.Spacing }

	var d strings.Builder
	fmt.Fprintf(&d, "M%d %d", x(samples[0].Time), rowY+level(samples[0].Value))
	for i := 1; i < len(samples); i++ {
		fmt.Fprintf(&d, " H%d", x(samples[i].Time))
		fmt.Fprintf(&d, " V%d", rowY+level(samples[i].Value))
	}
	tail := maxTime + opts.TailFlushTime
	fmt.Fprintf(&d, " H%d", x(tail))
	return fmt.Sprintf(`<path d="%s" fill="none" stroke="black" stroke-width="1.5"/>`+"\n", d.String())
}

func escapeText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

// RTT writes the companion sidecar recording each traced signal's name
// and width, in the same row order Render draws them, so a viewer can
// label a waveform without re-deriving signal shape from raw samples.
// Samples reach TracePage already flattened to one kind.BitX per key
// (Cycle.record names each output bit "o[i]"), so the only shape left to
// record per signal is that it is a single bit — a richer per-signal Kind
// would have to be threaded through TracePage.Record itself, which
// spec.md's tracing model never asks for.
func RTT(samples []sim.Sample) string {
	_, order := groupRows(samples, nil)
	var b strings.Builder
	for _, name := range order {
		fmt.Fprintf(&b, "%s bit\n", name)
	}
	return b.String()
}
