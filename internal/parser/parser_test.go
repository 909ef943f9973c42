package parser_test

import (
	"strings"
	"testing"

	"sable/internal/ast"
	"sable/internal/lexer"
	"sable/internal/parser"
	"sable/internal/token"
)

func parseOK(t *testing.T, input string) *ast.Program {
	t.Helper()
	l := lexer.New(input)
	p := parser.New(l)

	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		for _, e := range errs {
			t.Logf("parser error: %s", e)
		}
		t.Fatalf("expected no parser errors, got %d", len(errs))
	}
	return prog
}

func TestParseSimpleProgram(t *testing.T) {
	input := `let five = 5;
fun add(a, b) {
    return a + b;
}
add(five, 10);
`
	prog := parseOK(t, input)

	if len(prog.Stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(prog.Stmts))
	}

	decl, ok := prog.Stmts[0].(*ast.VarDeclStmt)
	if !ok || decl.Name != "five" {
		t.Fatalf("expected let five, got %#v", prog.Stmts[0])
	}
	if lit, ok := decl.Value.(*ast.IntLiteral); !ok || lit.Value != 5 {
		t.Fatalf("expected initializer 5, got %#v", decl.Value)
	}

	fn, ok := prog.Stmts[1].(*ast.FunDecl)
	if !ok {
		t.Fatalf("expected FunDecl, got %T", prog.Stmts[1])
	}
	if fn.Name != "add" || len(fn.Params) != 2 || fn.Params[1].Name != "b" {
		t.Fatalf("unexpected function %#v", fn)
	}
	if len(fn.Body.Stmts) != 1 {
		t.Fatalf("expected 1 body statement, got %d", len(fn.Body.Stmts))
	}

	es, ok := prog.Stmts[2].(*ast.ExprStmt)
	if !ok {
		t.Fatalf("expected ExprStmt, got %T", prog.Stmts[2])
	}
	call, ok := es.Expression.(*ast.CallExpr)
	if !ok || len(call.Args) != 2 {
		t.Fatalf("expected call with 2 args, got %#v", es.Expression)
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2 * 3;", "(1 + (2 * 3))"},
		{"(1 + 2) * 3;", "((1 + 2) * 3)"},
		{"1 - 2 - 3;", "((1 - 2) - 3)"},
		{"-a * b;", "((-a) * b)"},
		{"!a == b;", "((!a) == b)"},
		{"a < b == c > d;", "((a < b) == (c > d))"},
		{"a || b && c;", "(a || (b && c))"},
		{"a + b % c;", "(a + (b % c))"},
		{"a = b = 3;", "(a = (b = 3))"},
		{"xs[1] = f(2)[0];", "(xs[1] = f(2)[0])"},
		{"a <= b >= c;", "((a <= b) >= c)"},
	}

	for _, tt := range tests {
		prog := parseOK(t, tt.input)
		es, ok := prog.Stmts[0].(*ast.ExprStmt)
		if !ok {
			t.Fatalf("%q: expected ExprStmt, got %T", tt.input, prog.Stmts[0])
		}
		if got := render(es.Expression); got != tt.want {
			t.Fatalf("%q: expected %s, got %s", tt.input, tt.want, got)
		}
	}
}

func TestParseControlFlow(t *testing.T) {
	input := `
if (x > 1) { x = 1; } else if (x < 0) { x = 0; } else { x = 2; }
while (i < 10) {
    i = i + 1;
}
for (let i = 0; i < 3; i = i + 1) { }
for (;;) { }
{ let inner = 1; }
`
	prog := parseOK(t, input)
	if len(prog.Stmts) != 5 {
		t.Fatalf("expected 5 statements, got %d", len(prog.Stmts))
	}

	ifs := prog.Stmts[0].(*ast.IfStmt)
	elseIf, ok := ifs.Else.(*ast.IfStmt)
	if !ok {
		t.Fatalf("expected else-if, got %T", ifs.Else)
	}
	if _, ok := elseIf.Else.(*ast.BlockStmt); !ok {
		t.Fatalf("expected trailing else block, got %T", elseIf.Else)
	}

	ws := prog.Stmts[1].(*ast.WhileStmt)
	if len(ws.Body.Stmts) != 1 {
		t.Fatalf("expected 1 statement in while body, got %d", len(ws.Body.Stmts))
	}

	fs := prog.Stmts[2].(*ast.ForStmt)
	if _, ok := fs.Init.(*ast.VarDeclStmt); !ok {
		t.Fatalf("expected let in for init, got %T", fs.Init)
	}
	if fs.Cond == nil || fs.Post == nil {
		t.Fatalf("expected cond and post in for loop")
	}

	empty := prog.Stmts[3].(*ast.ForStmt)
	if empty.Init != nil || empty.Cond != nil || empty.Post != nil {
		t.Fatalf("expected empty for header, got %#v", empty)
	}

	if _, ok := prog.Stmts[4].(*ast.BlockStmt); !ok {
		t.Fatalf("expected bare block, got %T", prog.Stmts[4])
	}
}

func TestParseTypeAnnotationsAndAliases(t *testing.T) {
	input := `def n: int = 3;
fun id(x: int): int { ret x; }
let empty;
return;
`
	prog := parseOK(t, input)

	decl := prog.Stmts[0].(*ast.VarDeclStmt)
	if st, ok := decl.Type.(*ast.SimpleType); !ok || st.Name != "int" {
		t.Fatalf("expected int annotation, got %#v", decl.Type)
	}
	fn := prog.Stmts[1].(*ast.FunDecl)
	if fn.Params[0].Type == nil || fn.Return == nil {
		t.Fatalf("expected parameter and return annotations")
	}
	if _, ok := fn.Body.Stmts[0].(*ast.ReturnStmt); !ok {
		t.Fatalf("expected ret to parse as return, got %T", fn.Body.Stmts[0])
	}
	if prog.Stmts[2].(*ast.VarDeclStmt).Value != nil {
		t.Fatalf("expected nil initializer")
	}
	if prog.Stmts[3].(*ast.ReturnStmt).Result != nil {
		t.Fatalf("expected bare return")
	}
}

func TestParseArrayLiteral(t *testing.T) {
	prog := parseOK(t, `[1, "a", [true, null], []];`)
	arr := prog.Stmts[0].(*ast.ExprStmt).Expression.(*ast.ArrayLiteral)
	if len(arr.Elements) != 4 {
		t.Fatalf("expected 4 elements, got %d", len(arr.Elements))
	}
	inner := arr.Elements[2].(*ast.ArrayLiteral)
	if len(inner.Elements) != 2 {
		t.Fatalf("expected 2 inner elements, got %d", len(inner.Elements))
	}
	if len(arr.Elements[3].(*ast.ArrayLiteral).Elements) != 0 {
		t.Fatalf("expected empty array")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"let = 1;", "expected identifier"},
		{"1 + ;", "unexpected token in expression"},
		{"fun (a) {}", "expected function name"},
		{"if x { }", "expected LParen"},
		{"{ let a = 1;", "expected '}'"},
		{"let a = 1", "expected Semicolon"},
		{"99999999999999999999;", "invalid integer literal"},
		{`let s = "open;`, "unterminated string literal"},
	}

	for _, tt := range tests {
		_, errs := parser.ParseProgram(tt.input)
		if len(errs) == 0 {
			t.Fatalf("%q: expected errors", tt.input)
		}
		found := false
		for _, e := range errs {
			if strings.Contains(e, tt.want) {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("%q: expected error containing %q, got %v", tt.input, tt.want, errs)
		}
	}
}

func TestErrorRecovery(t *testing.T) {
	src := "let = 1;\nlet ok = 2;\n1 +;\nfun f() { 1 * ; let inner = 3; }\nok;"
	prog, errs := parser.ParseProgram(src)
	if len(errs) != 3 {
		t.Fatalf("expected one error per broken statement, got %d: %v", len(errs), errs)
	}
	for i, prefix := range []string{"1:5:", "3:4:", "4:15:"} {
		if !strings.HasPrefix(errs[i], prefix) {
			t.Fatalf("error %d: expected prefix %q, got %q", i, prefix, errs[i])
		}
	}

	var names []string
	for _, st := range prog.Stmts {
		switch s := st.(type) {
		case *ast.VarDeclStmt:
			names = append(names, s.Name)
		case *ast.FunDecl:
			names = append(names, s.Name)
			if n := len(s.Body.Stmts); n != 2 {
				t.Fatalf("expected 2 statements in f, got %d", n)
			}
		}
	}
	if strings.Join(names, ",") != "ok,f" {
		t.Fatalf("expected declarations ok,f after recovery, got %v", names)
	}
	if _, ok := prog.Stmts[len(prog.Stmts)-1].(*ast.ExprStmt); !ok {
		t.Fatalf("expected trailing expression statement, got %T", prog.Stmts[len(prog.Stmts)-1])
	}
}

func TestDump(t *testing.T) {
	prog := parseOK(t, "fun f(a) { return a; }\nlet x = f(1);")
	out := ast.Dump(prog)
	for _, want := range []string{"Program", "FunDecl name=f", "Param name=a", "ReturnStmt", "VarDecl name=x", "CallExpr", "IntLiteral 1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("dump missing %q:\n%s", want, out)
		}
	}
}

func render(e ast.Expr) string {
	switch e := e.(type) {
	case *ast.IdentExpr:
		return e.Name
	case *ast.IntLiteral:
		return e.Raw
	case *ast.BinaryExpr:
		return "(" + render(e.Left) + " " + opString(e.Op) + " " + render(e.Right) + ")"
	case *ast.UnaryExpr:
		return "(" + opString(e.Op) + render(e.X) + ")"
	case *ast.AssignExpr:
		return "(" + render(e.Target) + " = " + render(e.Value) + ")"
	case *ast.IndexExpr:
		return render(e.X) + "[" + render(e.Index) + "]"
	case *ast.CallExpr:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = render(a)
		}
		return render(e.Callee) + "(" + strings.Join(args, ", ") + ")"
	default:
		return "?"
	}
}

func opString(k token.Kind) string {
	switch k {
	case token.Plus:
		return "+"
	case token.Minus:
		return "-"
	case token.Star:
		return "*"
	case token.Slash:
		return "/"
	case token.Percent:
		return "%"
	case token.Bang:
		return "!"
	case token.Eq:
		return "=="
	case token.NotEq:
		return "!="
	case token.Lt:
		return "<"
	case token.LtEq:
		return "<="
	case token.Gt:
		return ">"
	case token.GtEq:
		return ">="
	case token.AndAnd:
		return "&&"
	case token.OrOr:
		return "||"
	}
	return k.String()
}
