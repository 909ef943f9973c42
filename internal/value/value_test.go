package value

import (
	"testing"

	"sable/internal/ir"
)

func TestString(t *testing.T) {
	fn := &ir.Function{Name: "f", NumParams: 2}
	tests := []struct {
		v       Value
		str     string
		inspect string
	}{
		{Null(), "null", "null"},
		{Int(-42), "-42", "-42"},
		{Bool(true), "true", "true"},
		{Str("hi"), "hi", `"hi"`},
		{Array([]Value{Int(1), Str("a"), Null()}), `[1, "a", null]`, `[1, "a", null]`},
		{Array(nil), "[]", "[]"},
		{Function(fn), "<fun f/2>", "<fun f/2>"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.str {
			t.Fatalf("String() = %q, want %q", got, tt.str)
		}
		if got := tt.v.Inspect(); got != tt.inspect {
			t.Fatalf("Inspect() = %q, want %q", got, tt.inspect)
		}
	}
}

func TestSelfReferentialArrayTerminates(t *testing.T) {
	a := Array([]Value{Int(1)})
	a.Array.Elems = append(a.Array.Elems, a)
	if s := a.String(); len(s) == 0 {
		t.Fatalf("expected a rendering")
	}
	if !Equal(a, a) {
		t.Fatalf("array must equal itself")
	}
}

func TestEqual(t *testing.T) {
	f1 := &ir.Function{Name: "f"}
	f2 := &ir.Function{Name: "f"}
	tests := []struct {
		a, b Value
		want bool
	}{
		{Null(), Null(), true},
		{Int(1), Int(1), true},
		{Int(1), Int(2), false},
		{Int(1), Bool(true), false},
		{Int(0), Null(), false},
		{Str("1"), Int(1), false},
		{Str("x"), Str("x"), true},
		{Bool(false), Bool(false), true},
		{Array([]Value{Int(1), Array([]Value{Str("a")})}), Array([]Value{Int(1), Array([]Value{Str("a")})}), true},
		{Array([]Value{Int(1)}), Array([]Value{Int(1), Int(2)}), false},
		{Function(f1), Function(f1), true},
		{Function(f1), Function(f2), false},
	}
	for i, tt := range tests {
		if got := Equal(tt.a, tt.b); got != tt.want {
			t.Fatalf("case %d: Equal(%s, %s) = %v, want %v", i, tt.a.Inspect(), tt.b.Inspect(), got, tt.want)
		}
	}
}

func TestFromConstant(t *testing.T) {
	fn := &ir.Function{Name: "g"}
	tests := []struct {
		c    ir.Constant
		want Value
	}{
		{ir.Constant{Kind: ir.ConstInt, Int: 7}, Int(7)},
		{ir.Constant{Kind: ir.ConstString, Str: "s"}, Str("s")},
		{ir.Constant{Kind: ir.ConstBool, Bool: true}, Bool(true)},
		{ir.Constant{Kind: ir.ConstFunction, Fn: fn}, Function(fn)},
	}
	for _, tt := range tests {
		if got := FromConstant(tt.c); !Equal(got, tt.want) {
			t.Fatalf("FromConstant(%v) = %s, want %s", tt.c.Kind, got.Inspect(), tt.want.Inspect())
		}
	}
}

func TestZeroValueIsNull(t *testing.T) {
	var v Value
	if !v.IsNull() || v.Kind.String() != "null" {
		t.Fatalf("zero Value should be null, got %s", v.Kind)
	}
}
