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

// Package diag implements the error taxonomy of spec §7: every pass
// returns a *diag.Error carrying a code, a primary span, optional
// secondary spans, and a suggestion, so the top-level driver can render a
// located message without any pass needing to know about source text.
package diag

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Span is a byte range (Start inclusive, End exclusive) into a virtual,
// concatenated source text. It carries no file identity by itself —
// resolving a Span to a filename/line/column is the job of a
// SourceResolver (implemented by ast.SpannedSourceSet), kept out of this
// package to avoid an import cycle (ast needs to construct diag.Errors).
type Span struct {
	Start, End int
}

// Code is the closed, namespaced taxonomy of diagnostic codes. Each
// category from spec §7 gets its own code prefix.
type Code string

const (
	// Parse/AST errors.
	CodeParseUnexpectedToken Code = "parse.unexpected-token"
	CodeParseMalformedLit    Code = "parse.malformed-literal"

	// Type/kind errors.
	CodeTypeKindMismatch     Code = "type.kind-mismatch"
	CodeTypeWidthMismatch    Code = "type.width-mismatch"
	CodeTypeSignMismatch     Code = "type.signedness-mismatch"
	CodeTypeUnresolvedWidth  Code = "type.unresolved-width-var"
	CodeTypeUnknownMethod    Code = "type.unknown-method"
	CodeTypeRollYourOwnUnary Code = "type.roll-your-own-unary"
	CodeTypeRollYourOwnBin   Code = "type.roll-your-own-binary"

	// Flow/IR invariants.
	CodeFlowReadBeforeWrite Code = "flow.read-before-write"
	CodeFlowDoubleWrite     Code = "flow.double-write"
	CodeFlowWriteToLiteral  Code = "flow.write-to-literal"
	CodeFlowUndrivenNet     Code = "flow.undriven-net"

	// Clock-domain errors.
	CodeClockDomainCrossing Code = "clock.domain-crossing"

	// Synthesis errors.
	CodeSynthUnsupported      Code = "synth.unsupported-construct"
	CodeSynthWidthOverflow    Code = "synth.width-overflow"
	CodeSynthMissingKernel    Code = "synth.missing-kernel"
	CodeSynthCircuitMismatch  Code = "synth.circuit-type-mismatch"
	CodeSynthUnboundedLoop    Code = "synth.unbounded-loop"

	// Simulation errors.
	CodeSimDidNotConverge  Code = "sim.did-not-converge"
	CodeSimPortMismatch    Code = "sim.testbench-port-mismatch"
	CodeSimTraceIO         Code = "sim.trace-io"

	// Internal compiler errors.
	CodeICE Code = "ice"
)

// Error is hwkit's user-visible diagnostic: every pass returns this type
// (wrapped in the error interface) instead of a bare string, per spec §7.
type Error struct {
	Code       Code
	Primary    Span
	Secondary  []Span
	Message    string
	Suggestion string
	cause      error
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", e.Code, e.Message)
	if e.Suggestion != "" {
		fmt.Fprintf(&sb, " (suggestion: %s)", e.Suggestion)
	}
	return sb.String()
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// New constructs a located diagnostic with no secondary spans or
// suggestion; use the With* helpers to add them.
func New(code Code, primary Span, message string, args ...interface{}) *Error {
	return &Error{Code: code, Primary: primary, Message: fmt.Sprintf(message, args...)}
}

func (e *Error) WithSecondary(spans ...Span) *Error {
	e.Secondary = append(e.Secondary, spans...)
	return e
}

func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

// ICE builds an internal-compiler-error: it wraps cause with a stack trace
// via github.com/pkg/errors (so the failure's Go call stack survives up to
// whatever renders it) and returns a *Error with CodeICE anchored at the
// nearest span to the invariant violation, per spec §7 ("always carries
// the span nearest the cause").
func ICE(cause error, near Span, message string, args ...interface{}) *Error {
	wrapped := pkgerrors.WithStack(cause)
	return New(CodeICE, near, "ICE: "+message, args...).WithCause(wrapped)
}

// PanicICE is the one sanctioned panic path in the compiler (spec §7: "the
// compiler never panics for user-visible problems; it panics only for
// internal bugs and always with a did-not-converge or ICE prefix").
func PanicICE(cause error, near Span, message string, args ...interface{}) {
	panic(ICE(cause, near, message, args...))
}

// PanicDidNotConverge is the simulator's sanctioned panic for fixed-point
// iteration exhaustion (spec §4.S / §8 scenario 6).
func PanicDidNotConverge(near Span, message string, args ...interface{}) {
	err := New(CodeSimDidNotConverge, near, "did not converge: "+message, args...)
	panic(err)
}
