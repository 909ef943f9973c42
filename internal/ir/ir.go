package ir

import (
	"fmt"

	"sable/internal/token"
)

// OpCode is an opcode for sable VM bytecode
type OpCode byte

const (
	OpConstant OpCode = iota // A = constant index; push constant
	OpNull                   // push null
	OpPop                    // discard top; at top level it becomes the run result
	OpDrop                   // discard top without touching the run result

	// Math
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod

	// Compare / logic
	OpEqual
	OpNotEqual
	OpLessThan
	OpGreaterThan
	OpAnd // both operands already evaluated
	OpOr
	OpNot
	OpNegate

	// Control flow
	OpJump          // A = absolute ip
	OpJumpNotTruthy // A = absolute ip, pop cond

	// Variables
	OpGetGlobal // A = global slot
	OpSetGlobal // A = global slot; globals[A] = top (no pop)
	OpGetLocal  // A = frame slot
	OpSetLocal  // A = frame slot; stack[base+A] = top (no pop)

	OpCurrentFunction // push the running function

	// Calls / returns
	OpCall        // A = number of arguments, callee below them
	OpCallBuiltin // A = builtin id, B = number of arguments
	OpReturn      // pop result and return it

	// Arrays
	OpArray    // A = number of elements
	OpIndex    // pop index, pop array, push element
	OpSetIndex // pop value, pop index, pop array; store; push value
)

var opNames = [...]string{
	OpConstant:        "OpConstant",
	OpNull:            "OpNull",
	OpPop:             "OpPop",
	OpDrop:            "OpDrop",
	OpAdd:             "OpAdd",
	OpSub:             "OpSub",
	OpMul:             "OpMul",
	OpDiv:             "OpDiv",
	OpMod:             "OpMod",
	OpEqual:           "OpEqual",
	OpNotEqual:        "OpNotEqual",
	OpLessThan:        "OpLessThan",
	OpGreaterThan:     "OpGreaterThan",
	OpAnd:             "OpAnd",
	OpOr:              "OpOr",
	OpNot:             "OpNot",
	OpNegate:          "OpNegate",
	OpJump:            "OpJump",
	OpJumpNotTruthy:   "OpJumpNotTruthy",
	OpGetGlobal:       "OpGetGlobal",
	OpSetGlobal:       "OpSetGlobal",
	OpGetLocal:        "OpGetLocal",
	OpSetLocal:        "OpSetLocal",
	OpCurrentFunction: "OpCurrentFunction",
	OpCall:            "OpCall",
	OpCallBuiltin:     "OpCallBuiltin",
	OpReturn:          "OpReturn",
	OpArray:           "OpArray",
	OpIndex:           "OpIndex",
	OpSetIndex:        "OpSetIndex",
}

func (op OpCode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("OpCode(%d)", int(op))
}

// Valid reports whether op is a known opcode.
func (op OpCode) Valid() bool {
	return int(op) < len(opNames) && opNames[op] != ""
}

// Operands returns how many of A and B the opcode uses.
func (op OpCode) Operands() int {
	switch op {
	case OpCallBuiltin:
		return 2
	case OpConstant, OpJump, OpJumpNotTruthy,
		OpGetGlobal, OpSetGlobal, OpGetLocal, OpSetLocal,
		OpCall, OpArray:
		return 1
	default:
		return 0
	}
}

// Instruction is one bytecode instruction
// A and B are operands (semantics depend on Op)
type Instruction struct {
	Op OpCode
	A  int
	B  int
}

type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstString
	ConstBool
	ConstFunction
)

func (k ConstKind) String() string {
	switch k {
	case ConstInt:
		return "int"
	case ConstString:
		return "string"
	case ConstBool:
		return "bool"
	case ConstFunction:
		return "function"
	}
	return fmt.Sprintf("ConstKind(%d)", int(k))
}

// Constant is one entry of the unit's constant pool
type Constant struct {
	Kind ConstKind
	Int  int64
	Str  string
	Bool bool
	Fn   *Function
}

// Chunk is a sequence of instructions with the source position of each.
type Chunk struct {
	Code      []Instruction
	Positions []token.Position // parallel to Code
}

// Emit appends an instruction to the end of the chunk.
func (c *Chunk) Emit(op OpCode, a, b int, pos token.Position) int {
	c.Code = append(c.Code, Instruction{
		Op: op,
		A:  a,
		B:  b,
	})
	c.Positions = append(c.Positions, pos)
	return len(c.Code) - 1
}

// PosAt returns the source position of the instruction at ip.
func (c *Chunk) PosAt(ip int) token.Position {
	if ip >= 0 && ip < len(c.Positions) {
		return c.Positions[ip]
	}
	return token.Position{}
}

// Function is a compiled function body. It is immutable once compiled and
// owned by the constant pool; call frames only reference it.
type Function struct {
	Name      string
	NumParams int
	NumLocals int // local slots including parameters
	Chunk
}

// Bytecode is a compiled unit: top-level code, the shared constant pool and
// the number of global slots it defines.
type Bytecode struct {
	Main       *Function
	Constants  []Constant
	NumGlobals int
}

// Functions returns the function constants in pool order.
func (bc *Bytecode) Functions() []*Function {
	var fns []*Function
	for _, c := range bc.Constants {
		if c.Kind == ConstFunction {
			fns = append(fns, c.Fn)
		}
	}
	return fns
}

// ConstantPool collects constants for one compilation unit. Int, string
// and bool literals are interned so repeated literals share an index.
type ConstantPool struct {
	consts []Constant
	ints   map[int64]int
	strs   map[string]int
	bools  map[bool]int
}

func NewConstantPool() *ConstantPool {
	return &ConstantPool{
		ints:  make(map[int64]int),
		strs:  make(map[string]int),
		bools: make(map[bool]int),
	}
}

// AddInt adds an integer constant and returns its index.
func (p *ConstantPool) AddInt(v int64) int {
	if idx, ok := p.ints[v]; ok {
		return idx
	}
	idx := p.add(Constant{Kind: ConstInt, Int: v})
	p.ints[v] = idx
	return idx
}

// AddString adds a string constant and returns its index.
func (p *ConstantPool) AddString(s string) int {
	if idx, ok := p.strs[s]; ok {
		return idx
	}
	idx := p.add(Constant{Kind: ConstString, Str: s})
	p.strs[s] = idx
	return idx
}

// AddBool adds a boolean constant and returns its index.
func (p *ConstantPool) AddBool(b bool) int {
	if idx, ok := p.bools[b]; ok {
		return idx
	}
	idx := p.add(Constant{Kind: ConstBool, Bool: b})
	p.bools[b] = idx
	return idx
}

// AddFunction adds a function constant. Functions are never interned.
func (p *ConstantPool) AddFunction(fn *Function) int {
	return p.add(Constant{Kind: ConstFunction, Fn: fn})
}

func (p *ConstantPool) add(c Constant) int {
	p.consts = append(p.consts, c)
	return len(p.consts) - 1
}

func (p *ConstantPool) Len() int { return len(p.consts) }

// Constants returns the pool contents.
func (p *ConstantPool) Constants() []Constant { return p.consts }
