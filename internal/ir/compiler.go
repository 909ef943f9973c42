package ir

import (
	"fmt"

	"github.com/tliron/commonlog"

	"sable/internal/ast"
	"sable/internal/runtime/builtins"
	"sable/internal/token"
)

var log = commonlog.GetLogger("sable.compiler")

// MainName is the name given to the top-level code of a unit.
const MainName = "<main>"

// Compiler compiles an AST program into a Bytecode unit in one forward pass.
type Compiler struct {
	pool    *ConstantPool
	symbols *SymbolTable

	// funcs is the stack of functions being compiled; funcs[0] is main.
	funcs []*Function

	errors ErrorList
}

// Compile compiles a program. On failure the returned error is an ErrorList
// and no bytecode is returned.
//
// Builtin names resolve against the builtins registry, which is filled by
// the init functions of the builtin packages. Callers must link them in,
// usually by importing sable/internal/runtime; otherwise a call such as
// print(1) is an unresolved identifier.
func Compile(prog *ast.Program) (*Bytecode, error) {
	if prog == nil {
		return nil, fmt.Errorf("nil program")
	}

	c := &Compiler{
		pool:    NewConstantPool(),
		symbols: NewSymbolTable(),
		funcs:   []*Function{{Name: MainName}},
	}

	for _, st := range prog.Stmts {
		c.compileStmt(st)
	}

	if len(c.errors) > 0 {
		return nil, c.errors
	}

	bc := &Bytecode{
		Main:       c.funcs[0],
		Constants:  c.pool.Constants(),
		NumGlobals: c.symbols.NumGlobals(),
	}
	log.Debugf("compiled unit: %d instructions, %d constants, %d globals",
		len(bc.Main.Code), c.pool.Len(), bc.NumGlobals)
	return bc, nil
}

func (c *Compiler) chunk() *Chunk {
	return &c.funcs[len(c.funcs)-1].Chunk
}

func (c *Compiler) emit(op OpCode, a int, pos token.Position) int {
	return c.chunk().Emit(op, a, 0, pos)
}

// here is the offset of the next instruction to be emitted.
func (c *Compiler) here() int {
	return len(c.chunk().Code)
}

// patch points the jump at idx to target.
func (c *Compiler) patch(idx, target int) {
	c.chunk().Code[idx].A = target
}

func (c *Compiler) addError(kind ErrorKind, pos token.Position, name string, format string, args ...interface{}) {
	c.errors = append(c.errors, &CompileError{
		Kind: kind,
		Pos:  pos,
		Name: name,
		Msg:  fmt.Sprintf(format, args...),
	})
}

// ---------- Statements ----------

func (c *Compiler) compileBlock(b *ast.BlockStmt) {
	c.symbols.EnterBlock()
	for _, st := range b.Stmts {
		c.compileStmt(st)
	}
	c.symbols.ExitBlock()
}

func (c *Compiler) compileStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.BlockStmt:
		c.compileBlock(st)

	case *ast.VarDeclStmt:
		if st.Value != nil {
			c.compileExpr(st.Value)
		} else {
			c.emit(OpNull, 0, st.Pos())
		}
		// the initializer sees the outer binding of the name
		sym := c.symbols.Define(st.Name)
		c.emitStore(sym, st.NamePos)
		c.emit(OpDrop, 0, st.Pos())

	case *ast.FunDecl:
		// A top-level function gets its global slot before the body is
		// compiled so functions nested in it can call it.
		var sym Symbol
		global := -1
		if c.symbols.Depth() == 0 {
			sym = c.symbols.Define(st.Name)
			global = sym.Index
		}
		idx := c.compileFunction(st, global)
		c.emit(OpConstant, idx, st.Pos())
		if global < 0 {
			sym = c.symbols.Define(st.Name)
		}
		c.emitStore(sym, st.NamePos)
		c.emit(OpDrop, 0, st.Pos())

	case *ast.ExprStmt:
		c.compileExpr(st.Expression)
		c.emit(OpPop, 0, st.Pos())

	case *ast.ReturnStmt:
		if st.Result != nil {
			c.compileExpr(st.Result)
		} else {
			c.emit(OpNull, 0, st.Pos())
		}
		c.emit(OpReturn, 0, st.Pos())

	case *ast.IfStmt:
		c.compileIf(st)

	case *ast.WhileStmt:
		c.compileWhile(st)

	case *ast.ForStmt:
		c.compileFor(st)

	default:
		c.addError(UnsupportedSyntax, s.Pos(), "", "unsupported statement %T", s)
	}
}

func (c *Compiler) compileIf(s *ast.IfStmt) {
	// cond
	c.compileExpr(s.Cond)
	jumpNotTruthyIdx := c.emit(OpJumpNotTruthy, 0, s.Pos())

	// then
	c.compileBlock(s.Then)

	if s.Else != nil {
		// Jump over else branch
		jumpEndIdx := c.emit(OpJump, 0, s.Pos())
		c.patch(jumpNotTruthyIdx, c.here())

		c.compileStmt(s.Else)

		c.patch(jumpEndIdx, c.here())
	} else {
		c.patch(jumpNotTruthyIdx, c.here())
	}
}

func (c *Compiler) compileWhile(s *ast.WhileStmt) {
	loopStart := c.here()

	c.compileExpr(s.Cond)
	jumpNotTruthyIdx := c.emit(OpJumpNotTruthy, 0, s.Pos())

	c.compileBlock(s.Body)

	// Jump back to the condition
	c.emit(OpJump, loopStart, s.Pos())

	c.patch(jumpNotTruthyIdx, c.here())
}

// compileFor lowers `for (init; cond; post) body` to
// `{ init; while (cond) { body; post; } }`. The init binding lives in a
// scope of its own that encloses the body.
func (c *Compiler) compileFor(s *ast.ForStmt) {
	c.symbols.EnterBlock()

	if s.Init != nil {
		c.compileStmt(s.Init)
	}

	condStart := c.here()

	jumpNotTruthyIdx := -1
	if s.Cond != nil {
		c.compileExpr(s.Cond)
		jumpNotTruthyIdx = c.emit(OpJumpNotTruthy, 0, s.Pos())
	}

	c.compileBlock(s.Body)

	if s.Post != nil {
		c.compileExpr(s.Post)
		c.emit(OpDrop, 0, s.Post.Pos())
	}

	c.emit(OpJump, condStart, s.Pos())

	if jumpNotTruthyIdx >= 0 {
		c.patch(jumpNotTruthyIdx, c.here())
	}

	c.symbols.ExitBlock()
}

// compileFunction compiles a declaration into a new Function constant and
// returns its pool index. The body shares the parameter scope.
func (c *Compiler) compileFunction(decl *ast.FunDecl, global int) int {
	fn := &Function{
		Name:      decl.Name,
		NumParams: len(decl.Params),
	}

	c.symbols.EnterFunction()
	c.symbols.DefineFunctionName(decl.Name, global)

	seen := make(map[string]bool, len(decl.Params))
	for _, p := range decl.Params {
		if seen[p.Name] {
			c.addError(DuplicateParameter, p.NamePos, p.Name,
				"duplicate parameter %q in function %q", p.Name, decl.Name)
		}
		seen[p.Name] = true
		c.symbols.Define(p.Name)
	}

	c.funcs = append(c.funcs, fn)
	for _, st := range decl.Body.Stmts {
		c.compileStmt(st)
	}
	// Falling off the end returns null.
	c.emit(OpNull, 0, decl.Body.RBrace)
	c.emit(OpReturn, 0, decl.Body.RBrace)
	c.funcs = c.funcs[:len(c.funcs)-1]

	fn.NumLocals = c.symbols.ExitFunction()

	log.Debugf("compiled function %s: %d params, %d locals, %d instructions",
		fn.Name, fn.NumParams, fn.NumLocals, len(fn.Code))

	return c.pool.AddFunction(fn)
}

// ---------- Symbols ----------

// resolve looks a name up and rejects bindings that belong to an enclosing
// function, since functions cannot capture outer locals. An enclosing
// top-level function is reached through its global slot.
func (c *Compiler) resolve(name string, pos token.Position) (Symbol, bool) {
	sym, ok := c.symbols.Resolve(name)
	if !ok {
		return Symbol{}, false
	}
	if sym.Scope == FunctionScope && sym.Depth != c.symbols.Depth() && sym.Index >= 0 {
		return Symbol{Name: name, Scope: GlobalScope, Index: sym.Index}, true
	}
	if sym.Scope != GlobalScope && sym.Depth != c.symbols.Depth() {
		c.addError(UnresolvedIdentifier, pos, name,
			"%q belongs to an enclosing function and cannot be captured", name)
		return Symbol{}, false
	}
	return sym, true
}

func (c *Compiler) emitLoad(sym Symbol, pos token.Position) {
	switch sym.Scope {
	case GlobalScope:
		c.emit(OpGetGlobal, sym.Index, pos)
	case LocalScope:
		c.emit(OpGetLocal, sym.Index, pos)
	case FunctionScope:
		c.emit(OpCurrentFunction, 0, pos)
	}
}

// emitStore stores the top of stack without popping it.
func (c *Compiler) emitStore(sym Symbol, pos token.Position) {
	switch sym.Scope {
	case GlobalScope:
		c.emit(OpSetGlobal, sym.Index, pos)
	case LocalScope:
		c.emit(OpSetLocal, sym.Index, pos)
	default:
		c.addError(InvalidAssignmentTarget, pos, sym.Name,
			"cannot assign to function name %q", sym.Name)
	}
}

// ---------- Expressions ----------

func (c *Compiler) compileExpr(e ast.Expr) {
	switch ex := e.(type) {
	case *ast.IntLiteral:
		c.emit(OpConstant, c.pool.AddInt(ex.Value), ex.Pos())

	case *ast.StringLiteral:
		c.emit(OpConstant, c.pool.AddString(ex.Value), ex.Pos())

	case *ast.BoolLiteral:
		c.emit(OpConstant, c.pool.AddBool(ex.Value), ex.Pos())

	case *ast.NullLiteral:
		c.emit(OpNull, 0, ex.Pos())

	case *ast.IdentExpr:
		sym, ok := c.resolve(ex.Name, ex.NamePos)
		if !ok {
			if _, exists := c.symbols.Resolve(ex.Name); !exists {
				c.addError(UnresolvedIdentifier, ex.NamePos, ex.Name,
					"unresolved identifier %q", ex.Name)
			}
			return
		}
		c.emitLoad(sym, ex.NamePos)

	case *ast.ArrayLiteral:
		for _, el := range ex.Elements {
			c.compileExpr(el)
		}
		c.emit(OpArray, len(ex.Elements), ex.Pos())

	case *ast.IndexExpr:
		c.compileExpr(ex.X)
		c.compileExpr(ex.Index)
		c.emit(OpIndex, 0, ex.LBracket)

	case *ast.UnaryExpr:
		c.compileExpr(ex.X)
		switch ex.Op {
		case token.Bang:
			c.emit(OpNot, 0, ex.OpPos)
		case token.Minus:
			c.emit(OpNegate, 0, ex.OpPos)
		default:
			c.addError(UnsupportedSyntax, ex.OpPos, "", "unsupported unary operator %s", ex.Op)
		}

	case *ast.BinaryExpr:
		c.compileBinary(ex)

	case *ast.AssignExpr:
		c.compileAssign(ex)

	case *ast.CallExpr:
		c.compileCall(ex)

	default:
		c.addError(UnsupportedSyntax, e.Pos(), "", "unsupported expression %T", e)
	}
}

func (c *Compiler) compileBinary(b *ast.BinaryExpr) {
	c.compileExpr(b.Left)
	c.compileExpr(b.Right)

	switch b.Op {
	case token.Plus:
		c.emit(OpAdd, 0, b.OpPos)
	case token.Minus:
		c.emit(OpSub, 0, b.OpPos)
	case token.Star:
		c.emit(OpMul, 0, b.OpPos)
	case token.Slash:
		c.emit(OpDiv, 0, b.OpPos)
	case token.Percent:
		c.emit(OpMod, 0, b.OpPos)

	case token.Lt:
		c.emit(OpLessThan, 0, b.OpPos)
	case token.Gt:
		c.emit(OpGreaterThan, 0, b.OpPos)
	case token.LtEq:
		// a <= b is !(a > b)
		c.emit(OpGreaterThan, 0, b.OpPos)
		c.emit(OpNot, 0, b.OpPos)
	case token.GtEq:
		c.emit(OpLessThan, 0, b.OpPos)
		c.emit(OpNot, 0, b.OpPos)

	case token.Eq:
		c.emit(OpEqual, 0, b.OpPos)
	case token.NotEq:
		c.emit(OpNotEqual, 0, b.OpPos)

	case token.AndAnd:
		c.emit(OpAnd, 0, b.OpPos)
	case token.OrOr:
		c.emit(OpOr, 0, b.OpPos)

	default:
		c.addError(UnsupportedSyntax, b.OpPos, "", "unsupported binary operator %s", b.Op)
	}
}

// compileAssign leaves the assigned value on the stack.
func (c *Compiler) compileAssign(a *ast.AssignExpr) {
	switch target := a.Target.(type) {
	case *ast.IdentExpr:
		c.compileExpr(a.Value)
		sym, ok := c.resolve(target.Name, target.NamePos)
		if !ok {
			if _, exists := c.symbols.Resolve(target.Name); !exists {
				c.addError(UnresolvedIdentifier, target.NamePos, target.Name,
					"assignment to undeclared identifier %q", target.Name)
			}
			return
		}
		c.emitStore(sym, a.AssignPos)

	case *ast.IndexExpr:
		c.compileExpr(target.X)
		c.compileExpr(target.Index)
		c.compileExpr(a.Value)
		c.emit(OpSetIndex, 0, a.AssignPos)

	default:
		c.addError(InvalidAssignmentTarget, a.AssignPos, "",
			"invalid assignment target %T", a.Target)
	}
}

func (c *Compiler) compileCall(call *ast.CallExpr) {
	if id, ok := call.Callee.(*ast.IdentExpr); ok {
		if _, declared := c.symbols.Resolve(id.Name); !declared {
			if b := builtins.LookupByName(id.Name); b != nil {
				for _, arg := range call.Args {
					c.compileExpr(arg)
				}
				c.chunk().Emit(OpCallBuiltin, int(b.Meta.ID), len(call.Args), call.LParen)
				return
			}
		}
	}

	c.compileExpr(call.Callee)
	for _, arg := range call.Args {
		c.compileExpr(arg)
	}
	c.emit(OpCall, len(call.Args), call.LParen)
}
