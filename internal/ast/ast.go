package ast

import "sable/internal/token"

// Basic interfaces

type Node interface {
	Pos() token.Position
}

type Stmt interface {
	Node
	stmtNode()
}

type Expr interface {
	Node
	exprNode()
}

type TypeNode interface {
	Node
	typeNode()
}

// Program

// Program is a sequence of top-level statements executed in order.
type Program struct {
	Stmts []Stmt
}

func (p *Program) Pos() token.Position {
	if len(p.Stmts) > 0 {
		return p.Stmts[0].Pos()
	}
	return token.Position{}
}

// FunDecl / Param

type FunDecl struct {
	FunPos  token.Position
	Name    string
	NamePos token.Position
	Params  []*Param
	Return  TypeNode // optional annotation, ignored by the compiler
	Body    *BlockStmt
}

func (f *FunDecl) Pos() token.Position { return f.FunPos }
func (f *FunDecl) stmtNode()           {}

type Param struct {
	Name    string
	NamePos token.Position
	Type    TypeNode // may be nil
}

func (p *Param) Pos() token.Position { return p.NamePos }

// ---------- Types ----------

// SimpleType is a type annotation. Annotations are accepted by the parser
// and carried in the tree; the runtime stays dynamically typed.
type SimpleType struct {
	Name    string
	NamePos token.Position
}

func (t *SimpleType) Pos() token.Position { return t.NamePos }
func (t *SimpleType) typeNode()           {}

// ---------- Statements ----------

type BlockStmt struct {
	LBrace token.Position
	Stmts  []Stmt
	RBrace token.Position
}

func (b *BlockStmt) Pos() token.Position { return b.LBrace }
func (b *BlockStmt) stmtNode()           {}

type VarDeclStmt struct {
	VarPos  token.Position
	Name    string
	NamePos token.Position
	Type    TypeNode // may be nil
	Value   Expr     // may be nil for `let x;`
}

func (s *VarDeclStmt) Pos() token.Position { return s.VarPos }
func (s *VarDeclStmt) stmtNode()           {}

type ExprStmt struct {
	Expression Expr
}

func (s *ExprStmt) Pos() token.Position { return s.Expression.Pos() }
func (s *ExprStmt) stmtNode()           {}

type IfStmt struct {
	IfPos token.Position
	Cond  Expr
	Then  *BlockStmt
	Else  Stmt // either *BlockStmt or *IfStmt (else-if)
}

func (s *IfStmt) Pos() token.Position { return s.IfPos }
func (s *IfStmt) stmtNode()           {}

type ReturnStmt struct {
	ReturnPos token.Position
	Result    Expr // may be nil for `return;`
}

func (s *ReturnStmt) Pos() token.Position { return s.ReturnPos }
func (s *ReturnStmt) stmtNode()           {}

type WhileStmt struct {
	WhilePos token.Position
	Cond     Expr
	Body     *BlockStmt
}

func (s *WhileStmt) Pos() token.Position { return s.WhilePos }
func (s *WhileStmt) stmtNode()           {}

type ForStmt struct {
	ForPos token.Position
	Init   Stmt // may be nil
	Cond   Expr // may be nil
	Post   Expr // may be nil
	Body   *BlockStmt
}

func (s *ForStmt) Pos() token.Position { return s.ForPos }
func (s *ForStmt) stmtNode()           {}

// ---------- Expressions ----------

type IdentExpr struct {
	Name    string
	NamePos token.Position
}

func (e *IdentExpr) Pos() token.Position { return e.NamePos }
func (e *IdentExpr) exprNode()           {}

type IntLiteral struct {
	Value  int64
	LitPos token.Position
	Raw    string
}

func (e *IntLiteral) Pos() token.Position { return e.LitPos }
func (e *IntLiteral) exprNode()           {}

type StringLiteral struct {
	Value  string
	LitPos token.Position
}

func (e *StringLiteral) Pos() token.Position { return e.LitPos }
func (e *StringLiteral) exprNode()           {}

type BoolLiteral struct {
	Value  bool
	LitPos token.Position
}

func (e *BoolLiteral) Pos() token.Position { return e.LitPos }
func (e *BoolLiteral) exprNode()           {}

type NullLiteral struct {
	LitPos token.Position
}

func (e *NullLiteral) Pos() token.Position { return e.LitPos }
func (e *NullLiteral) exprNode()           {}

type ArrayLiteral struct {
	LBracket token.Position
	Elements []Expr
	RBracket token.Position
}

func (e *ArrayLiteral) Pos() token.Position { return e.LBracket }
func (e *ArrayLiteral) exprNode()           {}

type CallExpr struct {
	Callee Expr
	LParen token.Position
	Args   []Expr
	RParen token.Position
}

func (e *CallExpr) Pos() token.Position { return e.Callee.Pos() }
func (e *CallExpr) exprNode()           {}

type IndexExpr struct {
	X        Expr
	LBracket token.Position
	Index    Expr
	RBracket token.Position
}

func (e *IndexExpr) Pos() token.Position { return e.X.Pos() }
func (e *IndexExpr) exprNode()           {}

type BinaryExpr struct {
	OpPos token.Position
	Op    token.Kind
	Left  Expr
	Right Expr
}

func (e *BinaryExpr) Pos() token.Position { return e.OpPos }
func (e *BinaryExpr) exprNode()           {}

type UnaryExpr struct {
	OpPos token.Position
	Op    token.Kind
	X     Expr
}

func (e *UnaryExpr) Pos() token.Position { return e.OpPos }
func (e *UnaryExpr) exprNode()           {}

// AssignExpr stores Value into Target and evaluates to Value.
// The parser accepts any expression as Target; the compiler rejects
// anything other than an identifier or an index expression.
type AssignExpr struct {
	Target    Expr
	AssignPos token.Position
	Value     Expr
}

func (e *AssignExpr) Pos() token.Position { return e.AssignPos }
func (e *AssignExpr) exprNode()           {}
