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

import "fmt"

// Location is a resolved human-readable position: a filename, 1-based line
// and column, and the source line's text for context.
type Location struct {
	File string
	Line int
	Col  int
	Text string
}

// SourceResolver locates a Span within the virtual concatenated source.
// ast.SpannedSourceSet implements this; diag itself never needs to know
// about the ast package's types. Kept as an interface so diag has no
// dependency on ast (which depends on diag to construct errors).
type SourceResolver interface {
	Resolve(s Span) (Location, bool)
}

// SourcePool renders diag.Errors against a SourceResolver, per spec §4.P
// ("Diagnostics use the SourcePool that concatenates per-function
// sources; a span is located to a function and rendered against that
// function's original text with line/column and filename").
type SourcePool struct {
	Resolver SourceResolver
}

// NewSourcePool wraps a resolver (typically an *ast.SpannedSourceSet).
func NewSourcePool(r SourceResolver) *SourcePool {
	return &SourcePool{Resolver: r}
}

// Render formats err with every span it carries resolved to
// file:line:col, falling back to the raw offsets when the resolver can't
// place a span (e.g. a span synthesized by an optimizer pass that has
// drifted past RTIF, per spec §9's open question on span preservation).
func (p *SourcePool) Render(err *Error) string {
	out := fmt.Sprintf("%s: %s\n", err.Code, err.Message)
	out += "  --> " + p.renderSpan(err.Primary) + "\n"
	for _, s := range err.Secondary {
		out += "  note: " + p.renderSpan(s) + "\n"
	}
	if err.Suggestion != "" {
		out += "  suggestion: " + err.Suggestion + "\n"
	}
	return out
}

func (p *SourcePool) renderSpan(s Span) string {
	if p.Resolver == nil {
		return fmt.Sprintf("<offset %d..%d>", s.Start, s.End)
	}
	loc, ok := p.Resolver.Resolve(s)
	if !ok {
		return fmt.Sprintf("<offset %d..%d>", s.Start, s.End)
	}
	return fmt.Sprintf("%s:%d:%d: %s", loc.File, loc.Line, loc.Col, loc.Text)
}
