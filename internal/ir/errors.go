package ir

import (
	"fmt"
	"strings"

	"sable/internal/token"
)

// ErrorKind classifies a compile error. Kinds are comparable values, so
// errors.Is(err, ir.UnresolvedIdentifier) works on a CompileError or an
// ErrorList containing one.
type ErrorKind string

const (
	UnresolvedIdentifier    ErrorKind = "UnresolvedIdentifier"
	InvalidAssignmentTarget ErrorKind = "InvalidAssignmentTarget"
	DuplicateParameter      ErrorKind = "DuplicateParameter"
	// UnsupportedSyntax marks tree nodes the compiler has no lowering for.
	UnsupportedSyntax ErrorKind = "UnsupportedSyntax"
)

func (k ErrorKind) Error() string { return string(k) }

// CompileError is a single diagnostic produced by the compiler.
type CompileError struct {
	Kind ErrorKind
	Pos  token.Position
	Name string // offending identifier, if any
	Msg  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

func (e *CompileError) Unwrap() error { return e.Kind }

// ErrorList is every error reported while compiling one unit.
type ErrorList []*CompileError

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

func (l ErrorList) Unwrap() []error {
	errs := make([]error, len(l))
	for i, e := range l {
		errs[i] = e
	}
	return errs
}
