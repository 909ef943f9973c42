package parser

import (
	"fmt"
	"strconv"

	"sable/internal/ast"
	"sable/internal/lexer"
	"sable/internal/token"
)

type Parser struct {
	l *lexer.Lexer

	prev token.Token
	cur  token.Token
	peek token.Token

	errors []string
	// panicking is set by the first error of a statement and silences the
	// rest until synchronize skips to the next statement.
	panicking bool
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	// init cur/peek
	p.nextToken()
	p.nextToken()
	return p
}

// Errors returns parser errors followed by any lexer errors.
func (p *Parser) Errors() []string {
	return append(append([]string(nil), p.l.Errors()...), p.errors...)
}

func (p *Parser) nextToken() {
	p.prev = p.cur
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) errorf(pos token.Position, format string, args ...interface{}) {
	if p.panicking {
		return
	}
	p.panicking = true
	msg := fmt.Sprintf("%d:%d: ", pos.Line, pos.Column) + fmt.Sprintf(format, args...)
	p.errors = append(p.errors, msg)
}

func (p *Parser) expect(kind token.Kind) token.Token {
	if p.cur.Kind != kind {
		p.errorf(p.cur.Pos, "expected %s, got %s (%q)", kind, p.cur.Kind, p.cur.Lexeme)
	}
	tok := p.cur
	p.nextToken()
	return tok
}

// ParseProgram parses a whole source file.
func ParseProgram(src string) (*ast.Program, []string) {
	p := New(lexer.New(src))
	prog := p.ParseProgram()
	return prog, p.Errors()
}

// ---------- Top-level ----------

func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}

	for p.cur.Kind != token.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Stmts = append(prog.Stmts, stmt)
		}
		if p.panicking {
			p.synchronize()
		}
	}

	return prog
}

// synchronize skips tokens until the start of the next statement: just past
// a ';' or a balanced '}', or before a statement keyword or an unmatched '}'.
func (p *Parser) synchronize() {
	defer func() { p.panicking = false }()

	depth := 0
	for p.cur.Kind != token.EOF {
		if depth == 0 && p.prev.Kind == token.Semicolon {
			return
		}
		switch p.cur.Kind {
		case token.LBrace:
			depth++
		case token.RBrace:
			if depth == 0 {
				return
			}
			depth--
			if depth == 0 {
				p.nextToken()
				return
			}
		case token.Let, token.Fun, token.If, token.While, token.For, token.Return:
			if depth == 0 {
				return
			}
		}
		p.nextToken()
	}
}

func (p *Parser) parseFunDecl() ast.Stmt {
	funTok := p.cur
	p.nextToken() // consume 'fun'

	if p.cur.Kind != token.Ident {
		p.errorf(p.cur.Pos, "expected function name after 'fun'")
		return nil
	}
	nameTok := p.cur
	p.nextToken()

	p.expect(token.LParen)

	var params []*ast.Param
	if p.cur.Kind != token.RParen {
		for {
			if p.cur.Kind != token.Ident {
				p.errorf(p.cur.Pos, "expected parameter name, got %s", p.cur.Kind)
				break
			}
			paramTok := p.cur
			p.nextToken()
			params = append(params, &ast.Param{
				Name:    paramTok.Lexeme,
				NamePos: paramTok.Pos,
				Type:    p.parseOptionalType(),
			})
			if p.cur.Kind == token.Comma {
				p.nextToken()
				continue
			}
			break
		}
	}
	p.expect(token.RParen)

	ret := p.parseOptionalType()
	body := p.parseBlock()

	return &ast.FunDecl{
		FunPos:  funTok.Pos,
		Name:    nameTok.Lexeme,
		NamePos: nameTok.Pos,
		Params:  params,
		Return:  ret,
		Body:    body,
	}
}

// parseOptionalType parses `: type` if present.
func (p *Parser) parseOptionalType() ast.TypeNode {
	if p.cur.Kind != token.Colon {
		return nil
	}
	p.nextToken()
	switch p.cur.Kind {
	case token.Ident, token.Null, token.Fun:
		tok := p.cur
		p.nextToken()
		return &ast.SimpleType{Name: tok.Lexeme, NamePos: tok.Pos}
	default:
		p.errorf(p.cur.Pos, "expected type name, got %s", p.cur.Kind)
		return nil
	}
}

func (p *Parser) parseBlock() *ast.BlockStmt {
	lbrace := p.expect(token.LBrace)

	block := &ast.BlockStmt{
		LBrace: lbrace.Pos,
	}

	for p.cur.Kind != token.RBrace && p.cur.Kind != token.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		if p.panicking {
			p.synchronize()
		}
	}

	if p.cur.Kind == token.RBrace {
		block.RBrace = p.cur.Pos
		p.nextToken()
	} else {
		p.errorf(p.cur.Pos, "expected '}' to close block")
	}

	return block
}

// parseStatement always consumes at least one token.
func (p *Parser) parseStatement() ast.Stmt {
	switch p.cur.Kind {
	case token.Let:
		return p.parseVarDeclStmt()
	case token.Fun:
		return p.parseFunDecl()
	case token.If:
		return p.parseIfStmt()
	case token.While:
		return p.parseWhileStmt()
	case token.For:
		return p.parseForStmt()
	case token.Return:
		return p.parseReturnStmt()
	case token.LBrace:
		return p.parseBlock()
	case token.Semicolon:
		p.nextToken()
		return nil
	default:
		expr := p.parseExpr()
		p.expect(token.Semicolon)
		return &ast.ExprStmt{Expression: expr}
	}
}

func (p *Parser) parseVarDeclStmt() ast.Stmt {
	varTok := p.cur
	p.nextToken() // consume 'let'

	if p.cur.Kind != token.Ident {
		p.errorf(p.cur.Pos, "expected identifier after %q", varTok.Lexeme)
		p.nextToken()
		return nil
	}
	nameTok := p.cur
	p.nextToken()

	typ := p.parseOptionalType()

	var value ast.Expr
	if p.cur.Kind == token.Assign {
		p.nextToken()
		value = p.parseExpr()
	}
	p.expect(token.Semicolon)

	return &ast.VarDeclStmt{
		VarPos:  varTok.Pos,
		Name:    nameTok.Lexeme,
		NamePos: nameTok.Pos,
		Type:    typ,
		Value:   value,
	}
}

func (p *Parser) parseReturnStmt() ast.Stmt {
	retTok := p.cur
	p.nextToken()

	var result ast.Expr
	if p.cur.Kind != token.Semicolon {
		result = p.parseExpr()
	}
	p.expect(token.Semicolon)

	return &ast.ReturnStmt{
		ReturnPos: retTok.Pos,
		Result:    result,
	}
}

func (p *Parser) parseIfStmt() ast.Stmt {
	ifTok := p.cur
	p.nextToken()
	p.expect(token.LParen)
	cond := p.parseExpr()
	p.expect(token.RParen)

	thenBlock := p.parseBlock()

	var elseStmt ast.Stmt
	if p.cur.Kind == token.Else {
		p.nextToken()
		if p.cur.Kind == token.If {
			elseStmt = p.parseIfStmt()
		} else {
			elseStmt = p.parseBlock()
		}
	}

	return &ast.IfStmt{
		IfPos: ifTok.Pos,
		Cond:  cond,
		Then:  thenBlock,
		Else:  elseStmt,
	}
}

func (p *Parser) parseWhileStmt() ast.Stmt {
	whileTok := p.cur
	p.nextToken()
	p.expect(token.LParen)
	cond := p.parseExpr()
	p.expect(token.RParen)
	body := p.parseBlock()

	return &ast.WhileStmt{
		WhilePos: whileTok.Pos,
		Cond:     cond,
		Body:     body,
	}
}

func (p *Parser) parseForStmt() ast.Stmt {
	forTok := p.cur
	p.nextToken()
	p.expect(token.LParen)

	// C-style for loop: `for (init; cond; post)`
	var init ast.Stmt
	var cond ast.Expr
	var post ast.Expr

	// Parse init (optional); both forms consume the ';'
	switch p.cur.Kind {
	case token.Semicolon:
		p.nextToken()
	case token.Let:
		init = p.parseVarDeclStmt()
	default:
		expr := p.parseExpr()
		p.expect(token.Semicolon)
		init = &ast.ExprStmt{Expression: expr}
	}

	// Parse cond (optional)
	if p.cur.Kind != token.Semicolon {
		cond = p.parseExpr()
	}
	p.expect(token.Semicolon)

	// Parse post (optional); it ends with ')' rather than ';'
	if p.cur.Kind != token.RParen {
		post = p.parseExpr()
	}
	p.expect(token.RParen)

	body := p.parseBlock()

	return &ast.ForStmt{
		ForPos: forTok.Pos,
		Init:   init,
		Cond:   cond,
		Post:   post,
		Body:   body,
	}
}

// ---------- Expressions ----------

func (p *Parser) parseExpr() ast.Expr {
	return p.parseAssignment()
}

// parseAssignment is right associative: a = b = c parses as a = (b = c).
func (p *Parser) parseAssignment() ast.Expr {
	left := p.parseOr()
	if p.cur.Kind == token.Assign {
		assignTok := p.cur
		p.nextToken()
		value := p.parseAssignment()
		return &ast.AssignExpr{
			Target:    left,
			AssignPos: assignTok.Pos,
			Value:     value,
		}
	}
	return left
}

func (p *Parser) parseOr() ast.Expr {
	left := p.parseAnd()
	for p.cur.Kind == token.OrOr {
		opTok := p.cur
		p.nextToken()
		right := p.parseAnd()
		left = &ast.BinaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *Parser) parseAnd() ast.Expr {
	left := p.parseEquality()
	for p.cur.Kind == token.AndAnd {
		opTok := p.cur
		p.nextToken()
		right := p.parseEquality()
		left = &ast.BinaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *Parser) parseEquality() ast.Expr {
	left := p.parseRelational()
	for p.cur.Kind == token.Eq || p.cur.Kind == token.NotEq {
		opTok := p.cur
		p.nextToken()
		right := p.parseRelational()
		left = &ast.BinaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *Parser) parseRelational() ast.Expr {
	left := p.parseAdditive()
	for p.cur.Kind == token.Lt || p.cur.Kind == token.LtEq ||
		p.cur.Kind == token.Gt || p.cur.Kind == token.GtEq {
		opTok := p.cur
		p.nextToken()
		right := p.parseAdditive()
		left = &ast.BinaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	for p.cur.Kind == token.Plus || p.cur.Kind == token.Minus {
		opTok := p.cur
		p.nextToken()
		right := p.parseMultiplicative()
		left = &ast.BinaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expr {
	left := p.parseUnary()
	for p.cur.Kind == token.Star || p.cur.Kind == token.Slash || p.cur.Kind == token.Percent {
		opTok := p.cur
		p.nextToken()
		right := p.parseUnary()
		left = &ast.BinaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expr {
	if p.cur.Kind == token.Bang || p.cur.Kind == token.Minus {
		opTok := p.cur
		p.nextToken()
		x := p.parseUnary()
		return &ast.UnaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			X:     x,
		}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expr {
	expr := p.parsePrimary()

	for {
		switch p.cur.Kind {
		case token.LParen:
			// function call
			lparen := p.cur
			p.nextToken()
			var args []ast.Expr
			if p.cur.Kind != token.RParen {
				for {
					args = append(args, p.parseExpr())
					if p.cur.Kind == token.Comma {
						p.nextToken()
						continue
					}
					break
				}
			}
			rparen := p.expect(token.RParen)
			expr = &ast.CallExpr{
				Callee: expr,
				LParen: lparen.Pos,
				Args:   args,
				RParen: rparen.Pos,
			}
		case token.LBracket:
			// indexing
			lbr := p.cur
			p.nextToken()
			indexExpr := p.parseExpr()
			rbr := p.expect(token.RBracket)
			expr = &ast.IndexExpr{
				X:        expr,
				LBracket: lbr.Pos,
				Index:    indexExpr,
				RBracket: rbr.Pos,
			}
		default:
			return expr
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	switch p.cur.Kind {
	case token.Ident:
		tok := p.cur
		p.nextToken()
		return &ast.IdentExpr{
			Name:    tok.Lexeme,
			NamePos: tok.Pos,
		}
	case token.Int:
		tok := p.cur
		p.nextToken()
		val, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			p.errorf(tok.Pos, "invalid integer literal %q: %v", tok.Lexeme, err)
			val = 0
		}
		return &ast.IntLiteral{
			Value:  val,
			LitPos: tok.Pos,
			Raw:    tok.Lexeme,
		}
	case token.String:
		tok := p.cur
		p.nextToken()
		return &ast.StringLiteral{
			Value:  tok.Lexeme,
			LitPos: tok.Pos,
		}
	case token.True, token.False:
		tok := p.cur
		p.nextToken()
		return &ast.BoolLiteral{
			Value:  tok.Kind == token.True,
			LitPos: tok.Pos,
		}
	case token.Null:
		tok := p.cur
		p.nextToken()
		return &ast.NullLiteral{
			LitPos: tok.Pos,
		}
	case token.LParen:
		p.nextToken()
		expr := p.parseExpr()
		p.expect(token.RParen)
		return expr
	case token.LBracket:
		// array literal: [expr, expr, ...]
		lbr := p.cur
		p.nextToken()
		var elems []ast.Expr
		if p.cur.Kind != token.RBracket {
			for {
				elems = append(elems, p.parseExpr())
				if p.cur.Kind == token.Comma {
					p.nextToken()
					continue
				}
				break
			}
		}
		rbr := p.expect(token.RBracket)
		return &ast.ArrayLiteral{
			LBracket: lbr.Pos,
			Elements: elems,
			RBracket: rbr.Pos,
		}
	default:
		tok := p.cur
		p.errorf(tok.Pos, "unexpected token in expression: %s", tok.Kind)
		switch tok.Kind {
		case token.EOF, token.Semicolon, token.RBrace, token.RParen, token.RBracket:
			// left for the enclosing construct to consume
		default:
			p.nextToken()
		}
		return &ast.NullLiteral{LitPos: tok.Pos}
	}
}
