package vm

import (
	"fmt"

	"sable/internal/token"
)

// FaultKind classifies a runtime fault. Kinds are comparable error values,
// so errors.Is(err, vm.DivisionByZero) matches a *Fault of that kind.
type FaultKind string

const (
	TypeMismatch        FaultKind = "TypeMismatch"
	DivisionByZero      FaultKind = "DivisionByZero"
	ArityMismatch       FaultKind = "ArityMismatch"
	UninitializedGlobal FaultKind = "UninitializedGlobal"
	StackUnderflow      FaultKind = "StackUnderflow"
	IndexOutOfRange     FaultKind = "IndexOutOfRange"
	// StackOverflow is raised when the frame or operand stack limit is hit.
	StackOverflow FaultKind = "StackOverflow"
	// Canceled is raised when the context is done or the step budget runs out.
	Canceled FaultKind = "Canceled"
	// HostError is a builtin failure that is not the program's fault.
	HostError FaultKind = "HostError"
)

func (k FaultKind) Error() string { return string(k) }

// Fault is a terminal runtime error. Offset is the index of the faulting
// instruction in Function, and Depth the number of frames at the time.
type Fault struct {
	Kind     FaultKind
	Offset   int
	Depth    int
	Function string
	Pos      token.Position
	Msg      string
}

func (f *Fault) Error() string {
	where := fmt.Sprintf("%s@%04d", f.Function, f.Offset)
	if f.Pos.IsValid() {
		where += " (" + f.Pos.String() + ")"
	}
	return fmt.Sprintf("%s: %s at %s, depth %d", f.Kind, f.Msg, where, f.Depth)
}

func (f *Fault) Unwrap() error { return f.Kind }
