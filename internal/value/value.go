package value

import (
	"fmt"
	"strconv"
	"strings"

	"sable/internal/ir"
)

// Kind is the type of a value at runtime.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindBool
	KindString
	KindArray
	KindFunction
)

var kindNames = [...]string{
	KindNull:     "null",
	KindInt:      "int",
	KindBool:     "bool",
	KindString:   "string",
	KindArray:    "array",
	KindFunction: "function",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ArrayObject is the shared backing store of an array value. Copies of an
// array Value alias the same object, so index assignment is visible through
// every copy.
type ArrayObject struct {
	Elems []Value
}

// Value is a universal value for the VM/runtime. The zero Value is null.
type Value struct {
	Kind  Kind
	Int   int64
	Bool  bool
	Str   string
	Array *ArrayObject // for KindArray
	Fn    *ir.Function // for KindFunction; owned by the constant pool
}

// maxDepth bounds recursion through nested or self-referencing arrays.
const maxDepth = 64

func (v Value) String() string {
	var b strings.Builder
	v.write(&b, false, 0)
	return b.String()
}

// Inspect is like String but quotes strings.
func (v Value) Inspect() string {
	var b strings.Builder
	v.write(&b, true, 0)
	return b.String()
}

func (v Value) write(b *strings.Builder, quote bool, depth int) {
	switch v.Kind {
	case KindNull:
		b.WriteString("null")
	case KindInt:
		b.WriteString(strconv.FormatInt(v.Int, 10))
	case KindBool:
		b.WriteString(strconv.FormatBool(v.Bool))
	case KindString:
		if quote {
			b.WriteString(strconv.Quote(v.Str))
		} else {
			b.WriteString(v.Str)
		}
	case KindArray:
		if depth >= maxDepth {
			b.WriteString("[...]")
			return
		}
		b.WriteByte('[')
		for i, el := range v.Array.Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			el.write(b, true, depth+1)
		}
		b.WriteByte(']')
	case KindFunction:
		if v.Fn != nil {
			fmt.Fprintf(b, "<fun %s/%d>", v.Fn.Name, v.Fn.NumParams)
			return
		}
		b.WriteString("<fun nil>")
	default:
		b.WriteString("<invalid>")
	}
}

// Helpers

func Null() Value {
	return Value{Kind: KindNull}
}

func Int(v int64) Value {
	return Value{Kind: KindInt, Int: v}
}

func Str(s string) Value {
	return Value{Kind: KindString, Str: s}
}

func Bool(v bool) Value {
	return Value{Kind: KindBool, Bool: v}
}

// Array wraps elems without copying.
func Array(elems []Value) Value {
	return Value{Kind: KindArray, Array: &ArrayObject{Elems: elems}}
}

func Function(fn *ir.Function) Value {
	return Value{Kind: KindFunction, Fn: fn}
}

// FromConstant converts a constant-pool entry into a runtime value.
func FromConstant(c ir.Constant) Value {
	switch c.Kind {
	case ir.ConstInt:
		return Int(c.Int)
	case ir.ConstString:
		return Str(c.Str)
	case ir.ConstBool:
		return Bool(c.Bool)
	case ir.ConstFunction:
		return Function(c.Fn)
	default:
		return Null()
	}
}

func (v Value) IsNull() bool { return v.Kind == KindNull }

// Equal compares by value within one variant. Values of different
// variants are never equal. Arrays compare element-wise and functions by
// identity.
func Equal(a, b Value) bool {
	return equal(a, b, 0)
}

func equal(a, b Value, depth int) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindInt:
		return a.Int == b.Int
	case KindBool:
		return a.Bool == b.Bool
	case KindString:
		return a.Str == b.Str
	case KindFunction:
		return a.Fn == b.Fn
	case KindArray:
		if a.Array == b.Array {
			return true
		}
		if depth >= maxDepth || len(a.Array.Elems) != len(b.Array.Elems) {
			return false
		}
		for i := range a.Array.Elems {
			if !equal(a.Array.Elems[i], b.Array.Elems[i], depth+1) {
				return false
			}
		}
		return true
	}
	return false
}
