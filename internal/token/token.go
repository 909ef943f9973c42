package token

import "fmt"

type Kind int

const (
	Illegal Kind = iota
	EOF

	Ident  // Identifier
	Int    // Integer
	String // String literal

	// Keywords
	Let
	Fun
	Return
	If
	Else
	While
	For
	True
	False
	Null

	// Operators
	Assign // =

	Plus    // +
	Minus   // -
	Star    // *
	Slash   // /
	Percent // %

	Bang   // !
	AndAnd // &&
	OrOr   // ||

	Eq    // ==
	NotEq // !=
	Lt    // <
	LtEq  // <=
	Gt    // >
	GtEq  // >=

	// Symbols
	Comma     // ,
	Semicolon // ;
	Colon     // :

	LParen   // (
	RParen   // )
	LBrace   // {
	RBrace   // }
	LBracket // [
	RBracket // ]
)

type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// IsValid reports whether the position was set by the lexer.
func (p Position) IsValid() bool {
	return p.Line > 0
}

type Token struct {
	Kind   Kind
	Lexeme string
	Pos    Position
}

var kindNames = [...]string{
	Illegal:   "Illegal",
	EOF:       "EOF",
	Ident:     "Ident",
	Int:       "Int",
	String:    "String",
	Let:       "Let",
	Fun:       "Fun",
	Return:    "Return",
	If:        "If",
	Else:      "Else",
	While:     "While",
	For:       "For",
	True:      "True",
	False:     "False",
	Null:      "Null",
	Assign:    "Assign",
	Plus:      "Plus",
	Minus:     "Minus",
	Star:      "Star",
	Slash:     "Slash",
	Percent:   "Percent",
	Bang:      "Bang",
	AndAnd:    "AndAnd",
	OrOr:      "OrOr",
	Eq:        "Eq",
	NotEq:     "NotEq",
	Lt:        "Lt",
	LtEq:      "LtEq",
	Gt:        "Gt",
	GtEq:      "GtEq",
	Comma:     "Comma",
	Semicolon: "Semicolon",
	Colon:     "Colon",
	LParen:    "LParen",
	RParen:    "RParen",
	LBrace:    "LBrace",
	RBrace:    "RBrace",
	LBracket:  "LBracket",
	RBracket:  "RBracket",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// def and ret are the short spellings of let and return.
var keywords = map[string]Kind{
	"let":    Let,
	"def":    Let,
	"fun":    Fun,
	"return": Return,
	"ret":    Return,
	"if":     If,
	"else":   Else,
	"while":  While,
	"for":    For,
	"true":   True,
	"false":  False,
	"null":   Null,
}

func LookupIdent(lit string) Kind {
	if kind, ok := keywords[lit]; ok {
		return kind
	}
	return Ident
}
