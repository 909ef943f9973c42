package vm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"sable/internal/ir"
	"sable/internal/runtime"
	"sable/internal/runtime/builtins"
	"sable/internal/value"
)

var log = commonlog.GetLogger("sable.vm")

// State is the lifecycle state of a VM.
type State int

const (
	Running State = iota
	Halted
	Faulted
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Halted:
		return "Halted"
	case Faulted:
		return "Faulted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Frame represents a function call frame.
//
// The callee value sits at stack[Base-1] and the arguments start at Base,
// so locals are addressed as stack[Base+slot]. On return the stack is cut
// back to Base-1 and the return value overwrites the callee slot.
type Frame struct {
	Fn   *ir.Function
	IP   int // Instruction pointer: index into Fn.Code
	Base int // Stack index where local variables start
}

// VM is a stack-based virtual machine for sable. A VM executes one unit
// once; it owns its globals and operand stack, and only reads the unit.
type VM struct {
	bc     *ir.Bytecode
	consts []value.Value

	globals []value.Value
	defined []bool

	stack  []value.Value
	sp     int // Stack pointer: next free index
	frames []Frame

	env   *runtime.Env
	opts  options
	state State
	steps int64

	result value.Value
	fault  *Fault
}

// New creates a VM for the given unit. A nil env prints to stdout.
func New(bc *ir.Bytecode, env *runtime.Env, opts ...Option) *VM {
	if env == nil {
		env = runtime.DefaultEnv()
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	consts := make([]value.Value, len(bc.Constants))
	for i, c := range bc.Constants {
		consts[i] = value.FromConstant(c)
	}

	vm := &VM{
		bc:      bc,
		consts:  consts,
		globals: make([]value.Value, bc.NumGlobals),
		defined: make([]bool, bc.NumGlobals),
		stack:   make([]value.Value, 0, 256),
		frames:  make([]Frame, 0, 16),
		env:     env,
		opts:    o,
	}
	vm.frames = append(vm.frames, Frame{Fn: bc.Main, Base: 0})
	return vm
}

// State reports the lifecycle state.
func (vm *VM) State() State { return vm.state }

// FrameDepth is the number of frames on the call stack. After a normal
// halt the main frame remains, so it is 1.
func (vm *VM) FrameDepth() int { return len(vm.frames) }

// StackDepth is the number of values on the operand stack.
func (vm *VM) StackDepth() int { return vm.sp }

// Frames returns a copy of the call stack, outermost first.
func (vm *VM) Frames() []Frame {
	out := make([]Frame, len(vm.frames))
	copy(out, vm.frames)
	return out
}

// Fault returns the fault that stopped the run, if any.
func (vm *VM) Fault() *Fault { return vm.fault }

// Steps is the number of instructions executed so far.
func (vm *VM) Steps() int64 { return vm.steps }

// push/pop

func (vm *VM) push(v value.Value) error {
	if vm.sp >= vm.opts.maxStack {
		return vm.faultf(StackOverflow, "operand stack limit %d exceeded", vm.opts.maxStack)
	}
	if vm.sp >= len(vm.stack) {
		vm.stack = append(vm.stack, v)
	} else {
		vm.stack[vm.sp] = v
	}
	vm.sp++
	return nil
}

func (vm *VM) pop() (value.Value, error) {
	if vm.sp <= vm.frameFloor() {
		return value.Value{}, vm.faultf(StackUnderflow, "pop on empty stack")
	}
	vm.sp--
	v := vm.stack[vm.sp]
	vm.stack[vm.sp] = value.Value{}
	return v, nil
}

func (vm *VM) peek() (value.Value, error) {
	if vm.sp <= vm.frameFloor() {
		return value.Value{}, vm.faultf(StackUnderflow, "peek on empty stack")
	}
	return vm.stack[vm.sp-1], nil
}

// frameFloor is the lowest stack index the current frame may pop: its
// locals sit below it.
func (vm *VM) frameFloor() int {
	fr := &vm.frames[len(vm.frames)-1]
	return fr.Base + fr.Fn.NumLocals
}

func (vm *VM) faultf(kind FaultKind, format string, args ...interface{}) *Fault {
	f := &Fault{
		Kind:  kind,
		Depth: len(vm.frames),
		Msg:   fmt.Sprintf(format, args...),
	}
	if len(vm.frames) > 0 {
		fr := vm.frames[len(vm.frames)-1]
		f.Offset = fr.IP - 1
		if f.Offset < 0 {
			f.Offset = 0
		}
		f.Function = fr.Fn.Name
		f.Pos = fr.Fn.PosAt(f.Offset)
	}
	return f
}

// fail moves the VM into the Faulted state. Frames and instruction pointers
// are left as they were at the fault.
func (vm *VM) fail(err error) (value.Value, error) {
	var f *Fault
	if !errors.As(err, &f) {
		f = vm.faultf(HostError, "%v", err)
	}
	vm.state = Faulted
	vm.fault = f
	vm.opts.log.Errorf("fault: %s", f)
	return value.Null(), f
}

func (vm *VM) halt() (value.Value, error) {
	vm.state = Halted
	return vm.result, nil
}

// Run executes the unit until it halts or faults. The result is the value
// of a top-level return, otherwise the last value discarded by a top-level
// expression statement, otherwise null.
func (vm *VM) Run(ctx context.Context) (value.Value, error) {
	if vm.state != Running || vm.steps > 0 {
		return value.Null(), fmt.Errorf("vm: run called in state %s", vm.state)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	done := ctx.Done()

	for {
		if done != nil && vm.steps%pollInterval == 0 {
			select {
			case <-done:
				return vm.fail(vm.faultf(Canceled, "%v", ctx.Err()))
			default:
			}
		}
		if vm.opts.stepBudget > 0 && vm.steps >= vm.opts.stepBudget {
			return vm.fail(vm.faultf(Canceled, "step budget of %d instructions exhausted", vm.opts.stepBudget))
		}

		fr := &vm.frames[len(vm.frames)-1]
		if fr.IP >= len(fr.Fn.Code) {
			if len(vm.frames) == 1 {
				return vm.halt()
			}
			// Compiled functions always end in a return; hand-built ones
			// that fall off the end return null.
			if err := vm.doReturn(value.Null()); err != nil {
				return vm.fail(err)
			}
			continue
		}

		ins := fr.Fn.Code[fr.IP]
		fr.IP++
		vm.steps++

		halted, err := vm.exec(ins)
		if err != nil {
			return vm.fail(err)
		}
		if halted {
			return vm.halt()
		}
	}
}

// exec executes one instruction. It reports whether the run halted.
func (vm *VM) exec(ins ir.Instruction) (bool, error) {
	switch ins.Op {
	case ir.OpConstant:
		if ins.A < 0 || ins.A >= len(vm.consts) {
			return false, vm.faultf(TypeMismatch, "constant index %d out of range", ins.A)
		}
		return false, vm.push(vm.consts[ins.A])

	case ir.OpNull:
		return false, vm.push(value.Null())

	case ir.OpPop:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		if len(vm.frames) == 1 {
			vm.result = v
		}
		return false, nil

	case ir.OpDrop:
		_, err := vm.pop()
		return false, err

	case ir.OpAdd:
		return false, vm.binaryIntOp("+", func(a, b int64) int64 { return a + b })
	case ir.OpSub:
		return false, vm.binaryIntOp("-", func(a, b int64) int64 { return a - b })
	case ir.OpMul:
		return false, vm.binaryIntOp("*", func(a, b int64) int64 { return a * b })
	case ir.OpDiv, ir.OpMod:
		return false, vm.binaryDivOp(ins.Op)

	case ir.OpEqual, ir.OpNotEqual:
		b, a, err := vm.pop2()
		if err != nil {
			return false, err
		}
		eq := value.Equal(a, b)
		if ins.Op == ir.OpNotEqual {
			eq = !eq
		}
		return false, vm.push(value.Bool(eq))

	case ir.OpLessThan:
		return false, vm.binaryIntCmp("<", func(a, b int64) bool { return a < b })
	case ir.OpGreaterThan:
		return false, vm.binaryIntCmp(">", func(a, b int64) bool { return a > b })

	case ir.OpAnd:
		return false, vm.binaryBoolOp("&&", func(a, b bool) bool { return a && b })
	case ir.OpOr:
		return false, vm.binaryBoolOp("||", func(a, b bool) bool { return a || b })

	case ir.OpNot:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		if v.Kind != value.KindBool {
			return false, vm.faultf(TypeMismatch, "operator ! expects bool, got %s", v.Kind)
		}
		return false, vm.push(value.Bool(!v.Bool))

	case ir.OpNegate:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		if v.Kind != value.KindInt {
			return false, vm.faultf(TypeMismatch, "unary - expects int, got %s", v.Kind)
		}
		return false, vm.push(value.Int(-v.Int))

	case ir.OpJump:
		vm.frames[len(vm.frames)-1].IP = ins.A
		return false, nil

	case ir.OpJumpNotTruthy:
		cond, err := vm.pop()
		if err != nil {
			return false, err
		}
		if cond.Kind != value.KindBool {
			return false, vm.faultf(TypeMismatch, "condition must be bool, got %s", cond.Kind)
		}
		if !cond.Bool {
			vm.frames[len(vm.frames)-1].IP = ins.A
		}
		return false, nil

	case ir.OpGetGlobal:
		if ins.A < 0 || ins.A >= len(vm.globals) || !vm.defined[ins.A] {
			return false, vm.faultf(UninitializedGlobal, "global slot %d read before assignment", ins.A)
		}
		return false, vm.push(vm.globals[ins.A])

	case ir.OpSetGlobal:
		v, err := vm.peek()
		if err != nil {
			return false, err
		}
		return false, vm.setGlobal(ins.A, v)

	case ir.OpGetLocal:
		fr := &vm.frames[len(vm.frames)-1]
		return false, vm.push(vm.stack[fr.Base+ins.A])

	case ir.OpSetLocal:
		v, err := vm.peek()
		if err != nil {
			return false, err
		}
		fr := &vm.frames[len(vm.frames)-1]
		vm.stack[fr.Base+ins.A] = v
		return false, nil

	case ir.OpCurrentFunction:
		fr := &vm.frames[len(vm.frames)-1]
		return false, vm.push(value.Function(fr.Fn))

	case ir.OpCall:
		return false, vm.call(ins.A)

	case ir.OpCallBuiltin:
		return false, vm.callBuiltin(builtins.ID(ins.A), ins.B)

	case ir.OpReturn:
		ret, err := vm.pop()
		if err != nil {
			return false, err
		}
		if len(vm.frames) == 1 {
			vm.result = ret
			return true, nil
		}
		return false, vm.doReturn(ret)

	case ir.OpArray:
		n := ins.A
		if n < 0 || vm.sp-n < vm.frameFloor() {
			return false, vm.faultf(StackUnderflow, "array of %d elements", n)
		}
		elems := make([]value.Value, n)
		copy(elems, vm.stack[vm.sp-n:vm.sp])
		vm.sp -= n
		return false, vm.push(value.Array(elems))

	case ir.OpIndex:
		return false, vm.index()

	case ir.OpSetIndex:
		return false, vm.setIndex()
	}

	return false, vm.faultf(TypeMismatch, "unknown opcode %s", ins.Op)
}

func (vm *VM) setGlobal(idx int, v value.Value) error {
	if idx < 0 || (idx >= len(vm.globals) && idx >= maxGlobals) {
		return vm.faultf(IndexOutOfRange, "global slot %d out of range", idx)
	}
	if idx >= len(vm.globals) {
		n := idx + 1
		vm.globals = append(vm.globals, make([]value.Value, n-len(vm.globals))...)
		vm.defined = append(vm.defined, make([]bool, n-len(vm.defined))...)
	}
	vm.globals[idx] = v
	vm.defined[idx] = true
	return nil
}

// call invokes the function sitting below argc arguments.
func (vm *VM) call(argc int) error {
	calleeIdx := vm.sp - 1 - argc
	if argc < 0 || calleeIdx < vm.frameFloor() {
		return vm.faultf(StackUnderflow, "call with %d arguments", argc)
	}
	callee := vm.stack[calleeIdx]
	if callee.Kind != value.KindFunction || callee.Fn == nil {
		return vm.faultf(TypeMismatch, "cannot call %s", callee.Kind)
	}
	fn := callee.Fn
	if argc != fn.NumParams {
		return vm.faultf(ArityMismatch, "%s expects %d argument(s), got %d", fn.Name, fn.NumParams, argc)
	}
	if len(vm.frames) >= vm.opts.maxFrames {
		return vm.faultf(StackOverflow, "call depth limit %d exceeded", vm.opts.maxFrames)
	}

	// Reserve the locals beyond the parameters.
	for i := fn.NumParams; i < fn.NumLocals; i++ {
		if err := vm.push(value.Null()); err != nil {
			return err
		}
	}

	vm.frames = append(vm.frames, Frame{Fn: fn, IP: 0, Base: calleeIdx + 1})
	vm.opts.log.Debugf("call %s/%d depth=%d", fn.Name, argc, len(vm.frames))
	return nil
}

// doReturn pops the current frame and leaves ret in the callee slot.
func (vm *VM) doReturn(ret value.Value) error {
	fr := vm.frames[len(vm.frames)-1]
	vm.frames = vm.frames[:len(vm.frames)-1]

	for i := fr.Base - 1; i < vm.sp; i++ {
		vm.stack[i] = value.Value{}
	}
	vm.sp = fr.Base - 1
	vm.opts.log.Debugf("return from %s depth=%d", fr.Fn.Name, len(vm.frames))
	return vm.push(ret)
}

func (vm *VM) callBuiltin(id builtins.ID, argc int) error {
	if argc < 0 || vm.sp-argc < vm.frameFloor() {
		return vm.faultf(StackUnderflow, "builtin call with %d arguments", argc)
	}
	name, arity, ok := runtime.LookupBuiltin(id)
	if !ok {
		return vm.faultf(HostError, "unknown builtin id %d", id)
	}
	if argc != arity {
		return vm.faultf(ArityMismatch, "%s expects %d argument(s), got %d", name, arity, argc)
	}

	args := make([]value.Value, argc)
	copy(args, vm.stack[vm.sp-argc:vm.sp])
	vm.sp -= argc

	res, err := runtime.CallBuiltin(vm.env, id, args)
	if err != nil {
		switch {
		case errors.Is(err, builtins.ErrArity):
			return vm.faultf(ArityMismatch, "%v", err)
		case errors.Is(err, builtins.ErrType):
			return vm.faultf(TypeMismatch, "%v", err)
		}
		return vm.faultf(HostError, "%s: %v", name, err)
	}
	return vm.push(res)
}

func (vm *VM) index() error {
	idx, container, err := vm.pop2()
	if err != nil {
		return err
	}
	if idx.Kind != value.KindInt {
		return vm.faultf(TypeMismatch, "index must be int, got %s", idx.Kind)
	}
	switch container.Kind {
	case value.KindArray:
		elems := container.Array.Elems
		if idx.Int < 0 || idx.Int >= int64(len(elems)) {
			return vm.faultf(IndexOutOfRange, "index %d out of range for array of length %d", idx.Int, len(elems))
		}
		return vm.push(elems[idx.Int])
	case value.KindString:
		if idx.Int < 0 || idx.Int >= int64(len(container.Str)) {
			return vm.faultf(IndexOutOfRange, "index %d out of range for string of length %d", idx.Int, len(container.Str))
		}
		return vm.push(value.Str(container.Str[idx.Int : idx.Int+1]))
	}
	return vm.faultf(TypeMismatch, "cannot index %s", container.Kind)
}

func (vm *VM) setIndex() error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	idx, container, err := vm.pop2()
	if err != nil {
		return err
	}
	if container.Kind != value.KindArray {
		return vm.faultf(TypeMismatch, "cannot assign into %s", container.Kind)
	}
	if idx.Kind != value.KindInt {
		return vm.faultf(TypeMismatch, "index must be int, got %s", idx.Kind)
	}
	elems := container.Array.Elems
	if idx.Int < 0 || idx.Int >= int64(len(elems)) {
		return vm.faultf(IndexOutOfRange, "index %d out of range for array of length %d", idx.Int, len(elems))
	}
	elems[idx.Int] = v
	return vm.push(v)
}

// pop2 pops the right operand then the left one.
func (vm *VM) pop2() (right, left value.Value, err error) {
	right, err = vm.pop()
	if err != nil {
		return
	}
	left, err = vm.pop()
	return
}

func (vm *VM) binaryIntOp(sym string, op func(a, b int64) int64) error {
	b, a, err := vm.pop2()
	if err != nil {
		return err
	}
	if a.Kind != value.KindInt || b.Kind != value.KindInt {
		return vm.faultf(TypeMismatch, "operator %s expects int operands, got %s and %s", sym, a.Kind, b.Kind)
	}
	return vm.push(value.Int(op(a.Int, b.Int)))
}

func (vm *VM) binaryDivOp(op ir.OpCode) error {
	b, a, err := vm.pop2()
	if err != nil {
		return err
	}
	sym := "/"
	if op == ir.OpMod {
		sym = "%"
	}
	if a.Kind != value.KindInt || b.Kind != value.KindInt {
		return vm.faultf(TypeMismatch, "operator %s expects int operands, got %s and %s", sym, a.Kind, b.Kind)
	}
	if b.Int == 0 {
		return vm.faultf(DivisionByZero, "%d %s 0", a.Int, sym)
	}
	if op == ir.OpMod {
		return vm.push(value.Int(a.Int % b.Int))
	}
	return vm.push(value.Int(a.Int / b.Int))
}

func (vm *VM) binaryIntCmp(sym string, op func(a, b int64) bool) error {
	b, a, err := vm.pop2()
	if err != nil {
		return err
	}
	if a.Kind != value.KindInt || b.Kind != value.KindInt {
		return vm.faultf(TypeMismatch, "operator %s expects int operands, got %s and %s", sym, a.Kind, b.Kind)
	}
	return vm.push(value.Bool(op(a.Int, b.Int)))
}

func (vm *VM) binaryBoolOp(sym string, op func(a, b bool) bool) error {
	b, a, err := vm.pop2()
	if err != nil {
		return err
	}
	if a.Kind != value.KindBool || b.Kind != value.KindBool {
		return vm.faultf(TypeMismatch, "operator %s expects bool operands, got %s and %s", sym, a.Kind, b.Kind)
	}
	return vm.push(value.Bool(op(a.Bool, b.Bool)))
}
