package ir_test

import (
	"errors"
	"testing"

	"sable/internal/ir"
	"sable/internal/parser"
	_ "sable/internal/runtime" // registers builtins
	"sable/internal/runtime/builtins"
)

func compileSource(t *testing.T, src string) (*ir.Bytecode, error) {
	t.Helper()
	prog, errs := parser.ParseProgram(src)
	if len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	return ir.Compile(prog)
}

func mustCompile(t *testing.T, src string) *ir.Bytecode {
	t.Helper()
	bc, err := compileSource(t, src)
	if err != nil {
		t.Fatalf("compile %q: %v", src, err)
	}
	return bc
}

func expectCode(t *testing.T, fn *ir.Function, want []ir.Instruction) {
	t.Helper()
	if len(fn.Code) != len(want) {
		t.Fatalf("%s: expected %d instructions, got %d: %v", fn.Name, len(want), len(fn.Code), fn.Code)
	}
	for i, ins := range fn.Code {
		if ins != want[i] {
			t.Fatalf("%s @%04d: expected %s %d %d, got %s %d %d",
				fn.Name, i, want[i].Op, want[i].A, want[i].B, ins.Op, ins.A, ins.B)
		}
	}
}

func ins(op ir.OpCode, a ...int) ir.Instruction {
	in := ir.Instruction{Op: op}
	if len(a) > 0 {
		in.A = a[0]
	}
	if len(a) > 1 {
		in.B = a[1]
	}
	return in
}

func TestCompileLetAndArithmetic(t *testing.T) {
	bc := mustCompile(t, "let x = 1 + 2; x * 2;")
	expectCode(t, bc.Main, []ir.Instruction{
		ins(ir.OpConstant, 0),
		ins(ir.OpConstant, 1),
		ins(ir.OpAdd),
		ins(ir.OpSetGlobal, 0),
		ins(ir.OpDrop),
		ins(ir.OpGetGlobal, 0),
		ins(ir.OpConstant, 1),
		ins(ir.OpMul),
		ins(ir.OpPop),
	})
	if bc.NumGlobals != 1 {
		t.Fatalf("expected 1 global, got %d", bc.NumGlobals)
	}
}

func TestConstantDedup(t *testing.T) {
	bc := mustCompile(t, `1; 1; "a"; "a"; true; true; 2;`)
	if len(bc.Constants) != 4 {
		t.Fatalf("expected 4 constants, got %d: %v", len(bc.Constants), bc.Constants)
	}
	if bc.Main.Code[0].A != bc.Main.Code[2].A {
		t.Fatalf("repeated integer literal got two pool entries")
	}
	if bc.Main.Code[4].A != bc.Main.Code[6].A {
		t.Fatalf("repeated string literal got two pool entries")
	}
}

func TestLetWithoutInitializerPushesNull(t *testing.T) {
	bc := mustCompile(t, "let x;")
	expectCode(t, bc.Main, []ir.Instruction{
		ins(ir.OpNull),
		ins(ir.OpSetGlobal, 0),
		ins(ir.OpDrop),
	})
}

func TestLessEqualLowering(t *testing.T) {
	bc := mustCompile(t, "1 <= 2; 1 >= 2;")
	expectCode(t, bc.Main, []ir.Instruction{
		ins(ir.OpConstant, 0),
		ins(ir.OpConstant, 1),
		ins(ir.OpGreaterThan),
		ins(ir.OpNot),
		ins(ir.OpPop),
		ins(ir.OpConstant, 0),
		ins(ir.OpConstant, 1),
		ins(ir.OpLessThan),
		ins(ir.OpNot),
		ins(ir.OpPop),
	})
}

func TestIfElseBackpatching(t *testing.T) {
	bc := mustCompile(t, "if (true) { 1; } else { 2; }")
	expectCode(t, bc.Main, []ir.Instruction{
		ins(ir.OpConstant, 0),
		ins(ir.OpJumpNotTruthy, 5),
		ins(ir.OpConstant, 1),
		ins(ir.OpPop),
		ins(ir.OpJump, 7),
		ins(ir.OpConstant, 2),
		ins(ir.OpPop),
	})

	bc = mustCompile(t, "if (true) { 1; }")
	expectCode(t, bc.Main, []ir.Instruction{
		ins(ir.OpConstant, 0),
		ins(ir.OpJumpNotTruthy, 4),
		ins(ir.OpConstant, 1),
		ins(ir.OpPop),
	})
}

func TestWhileBackpatching(t *testing.T) {
	bc := mustCompile(t, "while (false) { 1; }")
	expectCode(t, bc.Main, []ir.Instruction{
		ins(ir.OpConstant, 0),
		ins(ir.OpJumpNotTruthy, 5),
		ins(ir.OpConstant, 1),
		ins(ir.OpPop),
		ins(ir.OpJump, 0),
	})
}

func TestForLowering(t *testing.T) {
	bc := mustCompile(t, "for (let i = 0; i < 3; i = i + 1) { }")
	expectCode(t, bc.Main, []ir.Instruction{
		ins(ir.OpConstant, 0), // init
		ins(ir.OpSetGlobal, 0),
		ins(ir.OpDrop),
		ins(ir.OpGetGlobal, 0), // cond
		ins(ir.OpConstant, 1),
		ins(ir.OpLessThan),
		ins(ir.OpJumpNotTruthy, 13),
		ins(ir.OpGetGlobal, 0), // post
		ins(ir.OpConstant, 2),
		ins(ir.OpAdd),
		ins(ir.OpSetGlobal, 0),
		ins(ir.OpDrop),
		ins(ir.OpJump, 3),
	})
}

func TestFunctionCompilation(t *testing.T) {
	bc := mustCompile(t, "fun add(a, b) { let c = a + b; return c; } add(1, 2);")
	fns := bc.Functions()
	if len(fns) != 1 {
		t.Fatalf("expected 1 function constant, got %d", len(fns))
	}
	fn := fns[0]
	if fn.Name != "add" || fn.NumParams != 2 || fn.NumLocals != 3 {
		t.Fatalf("unexpected function header %s params=%d locals=%d", fn.Name, fn.NumParams, fn.NumLocals)
	}
	expectCode(t, fn, []ir.Instruction{
		ins(ir.OpGetLocal, 0),
		ins(ir.OpGetLocal, 1),
		ins(ir.OpAdd),
		ins(ir.OpSetLocal, 2),
		ins(ir.OpDrop),
		ins(ir.OpGetLocal, 2),
		ins(ir.OpReturn),
		ins(ir.OpNull),
		ins(ir.OpReturn),
	})

	main := bc.Main.Code
	if main[0].Op != ir.OpConstant || bc.Constants[main[0].A].Kind != ir.ConstFunction {
		t.Fatalf("expected main to load the function constant, got %s", main[0].Op)
	}
	if last := main[len(main)-2]; last.Op != ir.OpCall || last.A != 2 {
		t.Fatalf("expected OpCall 2, got %s %d", last.Op, last.A)
	}
}

func TestFunctionSelfReference(t *testing.T) {
	bc := mustCompile(t, "fun f(n) { return f(n); }")
	fn := bc.Functions()[0]
	expectCode(t, fn, []ir.Instruction{
		ins(ir.OpCurrentFunction),
		ins(ir.OpGetLocal, 0),
		ins(ir.OpCall, 1),
		ins(ir.OpReturn),
		ins(ir.OpNull),
		ins(ir.OpReturn),
	})
}

func TestNestedFunctionCallsEnclosingTopLevelFunction(t *testing.T) {
	bc := mustCompile(t, `let k = 1;
fun outer(n) {
    fun inner(m) { return outer(m); }
    return inner(n);
}`)
	fns := bc.Functions()
	if len(fns) != 2 || fns[0].Name != "inner" {
		t.Fatalf("expected inner then outer in the pool, got %d functions", len(fns))
	}
	expectCode(t, fns[0], []ir.Instruction{
		ins(ir.OpGetGlobal, 1),
		ins(ir.OpGetLocal, 0),
		ins(ir.OpCall, 1),
		ins(ir.OpReturn),
		ins(ir.OpNull),
		ins(ir.OpReturn),
	})
	if in := fns[1].Code[1]; in.Op != ir.OpSetLocal || in.A != 1 {
		t.Fatalf("expected outer to store inner in local 1, got %s %d", in.Op, in.A)
	}
	if bc.NumGlobals != 2 {
		t.Fatalf("expected 2 globals, got %d", bc.NumGlobals)
	}

	// A nested function is not reachable from functions nested inside it.
	_, err := compileSource(t, "fun a() { fun b() { fun c() { return b(); } return 0; } return 0; }")
	if !errors.Is(err, ir.UnresolvedIdentifier) {
		t.Fatalf("expected unresolved b, got %v", err)
	}
}

func TestDeclarationsUseDrop(t *testing.T) {
	bc := mustCompile(t, "fun f() { } 1;")
	expectCode(t, bc.Main, []ir.Instruction{
		ins(ir.OpConstant, 0),
		ins(ir.OpSetGlobal, 0),
		ins(ir.OpDrop),
		ins(ir.OpConstant, 1),
		ins(ir.OpPop),
	})
}

func TestSiblingBlocksDoNotShareSlots(t *testing.T) {
	bc := mustCompile(t, "fun f() { { let a = 1; } { let b = 2; } }")
	if n := bc.Functions()[0].NumLocals; n != 2 {
		t.Fatalf("expected 2 locals, got %d", n)
	}
}

func TestBuiltinCalls(t *testing.T) {
	bc := mustCompile(t, "print(1);")
	expectCode(t, bc.Main, []ir.Instruction{
		ins(ir.OpConstant, 0),
		ins(ir.OpCallBuiltin, int(builtins.Print), 1),
		ins(ir.OpPop),
	})

	// A user binding shadows the builtin.
	bc = mustCompile(t, "fun len(x) { return 0; } len(1);")
	for _, in := range bc.Main.Code {
		if in.Op == ir.OpCallBuiltin {
			t.Fatalf("expected user function call, got builtin call")
		}
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind ir.ErrorKind
	}{
		{"undeclared", "x;", ir.UnresolvedIdentifier},
		{"assign undeclared", "y = 1;", ir.UnresolvedIdentifier},
		{"use before declaration", "f(); fun f() { }", ir.UnresolvedIdentifier},
		{"out of block", "{ let a = 1; } a;", ir.UnresolvedIdentifier},
		{"capture outer local", "fun outer(a) { fun inner() { return a; } return 0; }", ir.UnresolvedIdentifier},
		{"literal target", "1 = 2;", ir.InvalidAssignmentTarget},
		{"call target", "fun f() { } f() = 2;", ir.InvalidAssignmentTarget},
		{"function name target", "fun f() { f = 1; }", ir.InvalidAssignmentTarget},
		{"duplicate parameter", "fun f(a, a) { }", ir.DuplicateParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bc, err := compileSource(t, tt.src)
			if err == nil {
				t.Fatalf("expected %s error", tt.kind)
			}
			if bc != nil {
				t.Fatalf("expected no bytecode on error")
			}
			if !errors.Is(err, tt.kind) {
				t.Fatalf("expected %s, got %v", tt.kind, err)
			}
		})
	}
}

func TestCompileErrorsAreCollected(t *testing.T) {
	_, err := compileSource(t, "a;\nb;")
	var list ir.ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("expected ErrorList, got %T", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(list))
	}
	if list[1].Pos.Line != 2 || list[1].Name != "b" {
		t.Fatalf("unexpected second error %+v", list[1])
	}
	if got := list[0].Error(); got != `1:1: unresolved identifier "a"` {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestGlobalFunctionsVisibleInsideFunctions(t *testing.T) {
	bc := mustCompile(t, "let k = 3; fun g() { return k; } fun h() { return g(); }")
	fns := bc.Functions()
	if fns[0].Code[0].Op != ir.OpGetGlobal {
		t.Fatalf("expected global load of k, got %s", fns[0].Code[0].Op)
	}
	if fns[1].Code[0].Op != ir.OpGetGlobal {
		t.Fatalf("expected global load of g, got %s", fns[1].Code[0].Op)
	}
}
