// Package errors defines the diagnostic model shared by every stage of the
// decoder generator: the expression engine, the IR builder, and the emitter
// all report through the same Kind/Diagnostic/Listener types so a single
// top-level summary can be produced regardless of which stage failed.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind classifies a diagnostic the way spec §7 enumerates error kinds.
type Kind string

const (
	AlreadyExists   Kind = "AlreadyExists"
	NotFound        Kind = "NotFound"
	InvalidArgument Kind = "InvalidArgument"
	Internal        Kind = "Internal"
	Parse           Kind = "Parse"
)

// SourceLocation identifies where in the input a diagnostic originated.
type SourceLocation struct {
	FileIndex int
	File      string
	Line      int
	Column    int
}

func (l SourceLocation) String() string {
	if l.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Diagnostic is a single recorded error or warning.
type Diagnostic struct {
	Kind     Kind
	Message  string
	Location SourceLocation
	Source   string // the offending source line, if available
}

// GenError wraps a Diagnostic as a Go error so it can flow through normal
// error-returning APIs while still carrying its Kind and SourceLocation.
type GenError struct {
	Diagnostic
}

func New(kind Kind, format string, args ...interface{}) *GenError {
	return &GenError{Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

func NewAt(kind Kind, loc SourceLocation, format string, args ...interface{}) *GenError {
	return &GenError{Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...), Location: loc}}
}

func (e *GenError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if loc := e.Location.String(); loc != "" {
		sb.WriteString(" (at ")
		sb.WriteString(loc)
		sb.WriteString(")")
	}
	return sb.String()
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *GenError; ok is false for plain errors, which are treated as Internal by
// callers that need to pick a kind regardless.
func KindOf(err error) (Kind, bool) {
	var ge *GenError
	if stderrors.As(err, &ge) {
		return ge.Kind, true
	}
	return "", false
}

// Listener accumulates diagnostics across an entire generator invocation
// instead of aborting on the first one, mirroring spec §7's policy that the
// IR builder "reports every error it can recover from and continues."
type Listener struct {
	diagnostics []Diagnostic
}

func NewListener() *Listener {
	return &Listener{}
}

func (l *Listener) Report(d Diagnostic) {
	l.diagnostics = append(l.diagnostics, d)
}

func (l *Listener) ReportError(err error) {
	if err == nil {
		return
	}
	if ge, isGenErr := err.(*GenError); isGenErr {
		l.Report(ge.Diagnostic)
		return
	}
	l.Report(Diagnostic{Kind: Internal, Message: err.Error()})
}

func (l *Listener) HasErrors() bool { return len(l.diagnostics) > 0 }

func (l *Listener) Diagnostics() []Diagnostic { return l.diagnostics }

// Summary renders the one-line failure summary required by spec §6/§7.
func (l *Listener) Summary() string {
	if len(l.diagnostics) == 0 {
		return "no diagnostics"
	}
	return fmt.Sprintf("%d diagnostic(s), first: %s", len(l.diagnostics), l.diagnostics[0].Message)
}
