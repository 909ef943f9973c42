package lexer

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"sable/internal/token"
)

type Lexer struct {
	input []rune

	pos int

	ch   rune
	line int
	col  int

	errors []string
}

func New(input string) *Lexer {
	l := &Lexer{
		input: []rune(input),
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// Tokenize drains the lexer. The returned slice always ends with EOF.
func Tokenize(input string) ([]token.Token, []string) {
	l := New(input)
	var toks []token.Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks, l.Errors()
}

func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	pos := token.Position{
		Line:   l.line,
		Column: l.col,
	}

	ch := l.ch

	// EOF
	if ch == 0 {
		return token.Token{
			Kind:   token.EOF,
			Lexeme: "",
			Pos:    pos,
		}
	}

	// Numbers
	if isDigit(ch) {
		return token.Token{
			Kind:   token.Int,
			Lexeme: l.readNumber(),
			Pos:    pos,
		}
	}

	// Identifiers / keywords
	if isLetter(ch) {
		lit := l.readIdentifier()
		return token.Token{
			Kind:   token.LookupIdent(lit),
			Lexeme: lit,
			Pos:    pos,
		}
	}

	// Strings
	if ch == '"' {
		l.readChar() // consume opening quote
		lit, ok := l.readString(pos)
		if !ok {
			return token.Token{Kind: token.Illegal, Lexeme: "", Pos: pos}
		}
		return token.Token{
			Kind:   token.String,
			Lexeme: lit,
			Pos:    pos,
		}
	}

	// Single- and two-character tokens
	var kind token.Kind
	var lexeme string

	switch ch {
	case ';':
		kind, lexeme = token.Semicolon, ";"
	case ',':
		kind, lexeme = token.Comma, ","
	case ':':
		kind, lexeme = token.Colon, ":"
	case '(':
		kind, lexeme = token.LParen, "("
	case ')':
		kind, lexeme = token.RParen, ")"
	case '{':
		kind, lexeme = token.LBrace, "{"
	case '}':
		kind, lexeme = token.RBrace, "}"
	case '[':
		kind, lexeme = token.LBracket, "["
	case ']':
		kind, lexeme = token.RBracket, "]"
	case '+':
		kind, lexeme = token.Plus, "+"
	case '-':
		kind, lexeme = token.Minus, "-"
	case '*':
		kind, lexeme = token.Star, "*"
	case '/':
		kind, lexeme = token.Slash, "/"
	case '%':
		kind, lexeme = token.Percent, "%"
	case '!':
		kind, lexeme = l.either('=', token.Bang, "!", token.NotEq, "!=")
	case '=':
		kind, lexeme = l.either('=', token.Assign, "=", token.Eq, "==")
	case '<':
		kind, lexeme = l.either('=', token.Lt, "<", token.LtEq, "<=")
	case '>':
		kind, lexeme = l.either('=', token.Gt, ">", token.GtEq, ">=")
	case '&':
		kind, lexeme = l.either('&', token.Illegal, "&", token.AndAnd, "&&")
	case '|':
		kind, lexeme = l.either('|', token.Illegal, "|", token.OrOr, "||")
	default:
		kind = token.Illegal
		lexeme = string(ch)
	}

	if kind == token.Illegal {
		l.errorf(pos, fmt.Sprintf("unexpected character %q", lexeme))
	}

	l.readChar()

	return token.Token{
		Kind:   kind,
		Lexeme: lexeme,
		Pos:    pos,
	}
}

// either picks the two-character token when the next rune is next.
// The current rune is left for NextToken to consume.
func (l *Lexer) either(next rune, single token.Kind, singleLex string, double token.Kind, doubleLex string) (token.Kind, string) {
	if l.peekChar() == next {
		l.readChar()
		return double, doubleLex
	}
	return single, singleLex
}

// Helpers

func (l *Lexer) readChar() {
	if l.pos >= len(l.input) {
		l.ch = 0
		return
	}

	l.ch = l.input[l.pos]
	l.pos++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

func (l *Lexer) peekChar() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for unicode.IsSpace(l.ch) {
			l.readChar()
		}

		if l.ch == '/' {
			switch l.peekChar() {
			case '/':
				l.readChar() // '/'
				l.readChar() // second '/'
				for l.ch != '\n' && l.ch != 0 {
					l.readChar()
				}
				continue
			case '*':
				start := token.Position{Line: l.line, Column: l.col}
				l.readChar() // '/'
				l.readChar() // '*'
				for {
					if l.ch == 0 {
						l.errorf(start, "unterminated block comment")
						return
					}
					if l.ch == '*' && l.peekChar() == '/' {
						l.readChar() // '*'
						l.readChar() // '/'
						break
					}
					l.readChar()
				}
				continue
			}
		}

		break
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.pos - 1 // current rune is already in l.ch
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return string(l.input[start:l.offset()])
}

func (l *Lexer) readNumber() string {
	start := l.pos - 1
	for isDigit(l.ch) {
		l.readChar()
	}
	return string(l.input[start:l.offset()])
}

// offset is the index of the current rune, or len(input) once exhausted.
func (l *Lexer) offset() int {
	if l.ch == 0 && l.pos >= len(l.input) {
		return len(l.input)
	}
	return l.pos - 1
}

func (l *Lexer) readString(startPos token.Position) (string, bool) {
	var sb []rune
	for {
		if l.ch == 0 || l.ch == '\n' {
			l.errorf(startPos, "unterminated string literal")
			return "", false
		}
		if l.ch == '"' {
			l.readChar()
			return string(sb), true
		}
		if l.ch == '\\' {
			escPos := token.Position{Line: l.line, Column: l.col}
			l.readChar()
			r, ok := l.readEscape(escPos)
			if !ok {
				return "", false
			}
			sb = append(sb, r)
			l.readChar()
			continue
		}
		sb = append(sb, l.ch)
		l.readChar()
	}
}

func (l *Lexer) readEscape(pos token.Position) (rune, bool) {
	switch l.ch {
	case '\\':
		return '\\', true
	case '"':
		return '"', true
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case '0':
		return 0, true
	case 'x':
		return l.readHexEscape(pos, 2)
	default:
		l.errorf(pos, "invalid escape sequence")
		return 0, false
	}
}

func (l *Lexer) readHexEscape(pos token.Position, count int) (rune, bool) {
	var val rune
	for i := 0; i < count; i++ {
		l.readChar()
		v, ok := hexValue(l.ch)
		if !ok {
			l.errorf(pos, "invalid hex escape")
			return 0, false
		}
		val = val*16 + v
	}
	return val, true
}

func hexValue(ch rune) (rune, bool) {
	switch {
	case ch >= '0' && ch <= '9':
		return ch - '0', true
	case ch >= 'a' && ch <= 'f':
		return ch - 'a' + 10, true
	case ch >= 'A' && ch <= 'F':
		return ch - 'A' + 10, true
	default:
		return 0, false
	}
}

func (l *Lexer) errorf(pos token.Position, msg string) {
	l.errors = append(l.errors, formatError(pos, msg))
}

func formatError(pos token.Position, msg string) string {
	return fmt.Sprintf("%d:%d: %s", pos.Line, pos.Column, msg)
}

func (l *Lexer) Errors() []string {
	return l.errors
}

func isLetter(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	if ch > utf8.RuneSelf {
		return false
	}
	return ch >= '0' && ch <= '9'
}
