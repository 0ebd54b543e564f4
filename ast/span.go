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

// Package ast is the source-equivalent AST (component A): a closed node
// set, each carrying a stable NodeId and a span into the original kernel
// source, plus the lexer/parser that produce it. A kernel is an ordinary
// function in the host language, annotated and handed to the parser as
// one self-contained source text; a circuit is typically built from many
// kernels, so SpannedSourceSet exists to give diagnostics a single
// coherent coordinate space across all of them.
package ast

import (
	"fmt"

	"hwkit/diag"
)

// Span is re-exported from diag so AST nodes and diag.Errors share one
// span type (diag itself has no dependency back on ast, which is what
// lets ast construct diag.Errors directly during parsing).
type Span = diag.Span

// NodeId is a stable, per-build identifier assigned to every AST node as
// it is constructed. IDs are never reused and are assigned in construction
// order, so lower ids are (informally) "earlier" in the source.
type NodeId int

// FunctionId identifies one kernel's source text within a SpannedSourceSet.
type FunctionId int

// SpannedSource maps NodeId -> byte range within one function's own source
// text.
type SpannedSource struct {
	File  string
	Text  string
	Spans map[NodeId]Span
}

// NewSpannedSource creates an empty per-function span table.
func NewSpannedSource(file, text string) *SpannedSource {
	return &SpannedSource{File: file, Text: text, Spans: make(map[NodeId]Span)}
}

// Record associates id with a span local to this function's text.
func (s *SpannedSource) Record(id NodeId, span Span) {
	s.Spans[id] = span
}

// resolveLocal resolves a span local to this function's own text into a
// diag.Location (file/line/col/snippet).
func (s *SpannedSource) resolveLocal(span Span) (diag.Location, bool) {
	if span.Start < 0 || span.End > len(s.Text) || span.Start > span.End {
		return diag.Location{}, false
	}
	line, col := 1, 1
	for i := 0; i < span.Start && i < len(s.Text); i++ {
		if s.Text[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	lineStart := span.Start
	for lineStart > 0 && s.Text[lineStart-1] != '\n' {
		lineStart--
	}
	lineEnd := span.Start
	for lineEnd < len(s.Text) && s.Text[lineEnd] != '\n' {
		lineEnd++
	}
	return diag.Location{File: s.File, Line: line, Col: col, Text: s.Text[lineStart:lineEnd]}, true
}

// SpannedSourceSet concatenates multiple functions' sources into one
// virtual source for diagnostic rendering, and resolves
// (FunctionId, NodeId) -> global byte range, per spec §4.A.
type SpannedSourceSet struct {
	funcs  []*SpannedSource
	ids    []FunctionId
	offset map[FunctionId]int // start offset of each function's text in the virtual concatenation
}

// NewSpannedSourceSet builds an empty set; functions are added with Add.
func NewSpannedSourceSet() *SpannedSourceSet {
	return &SpannedSourceSet{offset: make(map[FunctionId]int)}
}

// Add registers a function's SpannedSource under id, appending its text to
// the virtual concatenation.
func (set *SpannedSourceSet) Add(id FunctionId, src *SpannedSource) {
	total := 0
	for _, f := range set.funcs {
		total += len(f.Text)
	}
	set.offset[id] = total
	set.funcs = append(set.funcs, src)
	set.ids = append(set.ids, id)
}

// Global resolves a node's local span to a global byte range in the
// virtual concatenated source.
func (set *SpannedSourceSet) Global(fn FunctionId, node NodeId) (Span, bool) {
	src, ok := set.bySource(fn)
	if !ok {
		return Span{}, false
	}
	local, ok := src.Spans[node]
	if !ok {
		return Span{}, false
	}
	off := set.offset[fn]
	return Span{Start: local.Start + off, End: local.End + off}, true
}

func (set *SpannedSourceSet) bySource(fn FunctionId) (*SpannedSource, bool) {
	for i, id := range set.ids {
		if id == fn {
			return set.funcs[i], true
		}
	}
	return nil, false
}

// Resolve implements diag.SourceResolver by finding which function's
// offset range a global span falls into, then delegating to that
// function's own line/column resolution.
func (set *SpannedSourceSet) Resolve(global Span) (diag.Location, bool) {
	for i, id := range set.ids {
		src := set.funcs[i]
		off := set.offset[id]
		if global.Start >= off && global.Start <= off+len(src.Text) {
			local := Span{Start: global.Start - off, End: global.End - off}
			return src.resolveLocal(local)
		}
	}
	return diag.Location{}, false
}

func (s Span) String() string { return fmt.Sprintf("%d..%d", s.Start, s.End) }
