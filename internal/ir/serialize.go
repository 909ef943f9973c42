package ir

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"sable/internal/token"
)

// Image layout: the 4-byte magic followed by a CBOR envelope holding the
// format version, a blake2b-256 checksum and the CBOR-encoded unit.
var magic = [4]byte{'S', 'B', 'C', '1'}

// ImageVersion is bumped whenever the wire structs change incompatibly.
const ImageVersion = 2

// ErrChecksum is returned when an image payload does not match its checksum.
var ErrChecksum = errors.New("image checksum mismatch")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("ir: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type wireEnvelope struct {
	Version  uint     `cbor:"1,keyasint"`
	Checksum [32]byte `cbor:"2,keyasint"`
	Payload  []byte   `cbor:"3,keyasint"`
}

type wireUnit struct {
	Main       wireFunction   `cbor:"1,keyasint"`
	Constants  []wireConstant `cbor:"2,keyasint,omitempty"`
	NumGlobals int            `cbor:"3,keyasint"`
}

type wireFunction struct {
	Name      string      `cbor:"1,keyasint"`
	NumParams int         `cbor:"2,keyasint"`
	NumLocals int         `cbor:"3,keyasint"`
	Code      []wireInstr `cbor:"4,keyasint,omitempty"`
	Positions []wirePos   `cbor:"5,keyasint,omitempty"`
}

type wireInstr struct {
	_  struct{} `cbor:",toarray"`
	Op uint8
	A  int
	B  int
}

type wirePos struct {
	_      struct{} `cbor:",toarray"`
	Line   int
	Column int
}

type wireConstant struct {
	Kind ConstKind     `cbor:"1,keyasint"`
	Int  int64         `cbor:"2,keyasint,omitempty"`
	Str  string        `cbor:"3,keyasint,omitempty"`
	Bool bool          `cbor:"4,keyasint,omitempty"`
	Fn   *wireFunction `cbor:"5,keyasint,omitempty"`
}

// MarshalBytecode encodes a unit as a self-checking image.
func MarshalBytecode(bc *Bytecode) ([]byte, error) {
	if bc == nil || bc.Main == nil {
		return nil, fmt.Errorf("nil bytecode")
	}
	unit := wireUnit{
		Main:       toWireFunction(bc.Main),
		NumGlobals: bc.NumGlobals,
	}
	for i, c := range bc.Constants {
		wc := wireConstant{Kind: c.Kind, Int: c.Int, Str: c.Str, Bool: c.Bool}
		if c.Kind == ConstFunction {
			if c.Fn == nil {
				return nil, fmt.Errorf("const[%d]: nil function", i)
			}
			fn := toWireFunction(c.Fn)
			wc.Fn = &fn
		}
		unit.Constants = append(unit.Constants, wc)
	}

	payload, err := cborEncMode.Marshal(unit)
	if err != nil {
		return nil, fmt.Errorf("encode unit: %w", err)
	}
	env, err := cborEncMode.Marshal(wireEnvelope{
		Version:  ImageVersion,
		Checksum: blake2b.Sum256(payload),
		Payload:  payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(magic) + len(env))
	buf.Write(magic[:])
	buf.Write(env)
	return buf.Bytes(), nil
}

// UnmarshalBytecode decodes and validates an image produced by MarshalBytecode.
func UnmarshalBytecode(data []byte) (*Bytecode, error) {
	if len(data) < len(magic) || !bytes.Equal(data[:len(magic)], magic[:]) {
		return nil, fmt.Errorf("not a sable image (bad magic)")
	}

	var env wireEnvelope
	if err := cbor.Unmarshal(data[len(magic):], &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version != ImageVersion {
		return nil, fmt.Errorf("unsupported image version %d (want %d)", env.Version, ImageVersion)
	}
	if blake2b.Sum256(env.Payload) != env.Checksum {
		return nil, ErrChecksum
	}

	var unit wireUnit
	if err := cbor.Unmarshal(env.Payload, &unit); err != nil {
		return nil, fmt.Errorf("decode unit: %w", err)
	}

	bc := &Bytecode{
		Main:       fromWireFunction(unit.Main),
		NumGlobals: unit.NumGlobals,
	}
	for i, wc := range unit.Constants {
		c := Constant{Kind: wc.Kind, Int: wc.Int, Str: wc.Str, Bool: wc.Bool}
		switch wc.Kind {
		case ConstInt, ConstString, ConstBool:
		case ConstFunction:
			if wc.Fn == nil {
				return nil, fmt.Errorf("const[%d]: function constant without body", i)
			}
			c.Fn = fromWireFunction(*wc.Fn)
		default:
			return nil, fmt.Errorf("const[%d]: unknown constant kind %d", i, wc.Kind)
		}
		bc.Constants = append(bc.Constants, c)
	}

	if err := Validate(bc); err != nil {
		return nil, err
	}
	return bc, nil
}

// Validate checks the structural invariants the VM relies on: known
// opcodes and in-range constant indices, jump targets, local and global
// slots.
func Validate(bc *Bytecode) error {
	if bc.NumGlobals < 0 {
		return fmt.Errorf("negative global count %d", bc.NumGlobals)
	}
	check := func(fn *Function) error {
		if fn.NumParams < 0 || fn.NumLocals < fn.NumParams {
			return fmt.Errorf("function %s: bad slot counts (params=%d, locals=%d)", fn.Name, fn.NumParams, fn.NumLocals)
		}
		if len(fn.Positions) != 0 && len(fn.Positions) != len(fn.Code) {
			return fmt.Errorf("function %s: %d positions for %d instructions", fn.Name, len(fn.Positions), len(fn.Code))
		}
		for ip, ins := range fn.Code {
			if !ins.Op.Valid() {
				return fmt.Errorf("function %s @%04d: unknown opcode %d", fn.Name, ip, ins.Op)
			}
			switch ins.Op {
			case OpConstant:
				if ins.A < 0 || ins.A >= len(bc.Constants) {
					return fmt.Errorf("function %s @%04d: constant index %d out of range", fn.Name, ip, ins.A)
				}
			case OpJump, OpJumpNotTruthy:
				if ins.A < 0 || ins.A > len(fn.Code) {
					return fmt.Errorf("function %s @%04d: jump target %d out of range", fn.Name, ip, ins.A)
				}
			case OpGetLocal, OpSetLocal:
				if ins.A < 0 || ins.A >= fn.NumLocals {
					return fmt.Errorf("function %s @%04d: local slot %d out of range", fn.Name, ip, ins.A)
				}
			case OpGetGlobal, OpSetGlobal:
				if ins.A < 0 || ins.A >= bc.NumGlobals {
					return fmt.Errorf("function %s @%04d: global slot %d out of range", fn.Name, ip, ins.A)
				}
			case OpCall, OpArray, OpCallBuiltin:
				if ins.A < 0 || ins.B < 0 {
					return fmt.Errorf("function %s @%04d: negative operand", fn.Name, ip)
				}
			}
		}
		return nil
	}

	if err := check(bc.Main); err != nil {
		return err
	}
	for _, c := range bc.Constants {
		if c.Kind == ConstFunction {
			if err := check(c.Fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func toWireFunction(fn *Function) wireFunction {
	wf := wireFunction{
		Name:      fn.Name,
		NumParams: fn.NumParams,
		NumLocals: fn.NumLocals,
	}
	for _, ins := range fn.Code {
		wf.Code = append(wf.Code, wireInstr{Op: uint8(ins.Op), A: ins.A, B: ins.B})
	}
	for _, p := range fn.Positions {
		wf.Positions = append(wf.Positions, wirePos{Line: p.Line, Column: p.Column})
	}
	return wf
}

func fromWireFunction(wf wireFunction) *Function {
	fn := &Function{
		Name:      wf.Name,
		NumParams: wf.NumParams,
		NumLocals: wf.NumLocals,
	}
	for _, ins := range wf.Code {
		fn.Code = append(fn.Code, Instruction{Op: OpCode(ins.Op), A: ins.A, B: ins.B})
	}
	for _, p := range wf.Positions {
		fn.Positions = append(fn.Positions, token.Position{Line: p.Line, Column: p.Column})
	}
	return fn
}

func WriteBytecode(w io.Writer, bc *Bytecode) error {
	data, err := MarshalBytecode(bc)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func ReadBytecode(r io.Reader) (*Bytecode, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return UnmarshalBytecode(data)
}

func WriteBytecodeToFile(filename string, bc *Bytecode) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := WriteBytecode(f, bc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ReadBytecodeFromFile(filename string) (*Bytecode, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBytecode(f)
}
